package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCardUID(t *testing.T) {
	t.Run("separators and case", func(t *testing.T) {
		for _, in := range []string{"04:a2:2b:9c", "04-A2-2B-9C", " 04 a2 2b 9c ", "04A22B9C"} {
			got, err := NormalizeCardUID(in)
			require.NoError(t, err, in)
			assert.Equal(t, "04A22B9C", got)
		}
	})

	t.Run("virtual token", func(t *testing.T) {
		got, err := NormalizeCardUID("FAKEUID010")
		require.NoError(t, err)
		assert.Equal(t, "FAKEUID010", got)
	})

	t.Run("rejects", func(t *testing.T) {
		for _, in := range []string{"", "abc", "04A2_2B9C", "04A2/2B9C"} {
			_, err := NormalizeCardUID(in)
			require.ErrorIs(t, err, ErrInvalidCard, in)
		}
	})
}

func TestLastFour(t *testing.T) {
	assert.Equal(t, "2B9C", LastFour("04A22B9C"))
	assert.Equal(t, "AB", LastFour("AB"))
}

func TestSameCard(t *testing.T) {
	a := &Account{CardUID: "04A22B9C"}
	b := &Account{CardUID: "04A22B9C"}
	c := &Account{}
	d := &Account{}

	assert.True(t, a.SameCard(b))
	assert.False(t, a.SameCard(c))
	assert.False(t, c.SameCard(d), "accounts without cards never share one")
}

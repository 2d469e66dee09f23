package memory_test

import (
	"testing"

	"github.com/ibrahimkeyboad/tappay/internal/adapter/storage/memory"
	"github.com/ibrahimkeyboad/tappay/internal/adapter/storage/storetest"
	"github.com/ibrahimkeyboad/tappay/internal/core/domain"
)

func TestAccountStore(t *testing.T) {
	storetest.RunAccountStoreContract(t, func(t *testing.T) domain.AccountStore {
		return memory.NewAccountStore()
	})
}

func TestIdempotencyStore(t *testing.T) {
	storetest.RunIdempotencyContract(t, memory.NewIdempotencyStore())
}

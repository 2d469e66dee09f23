package domain

import (
	"regexp"
	"strings"
)

var cardUIDPattern = regexp.MustCompile(`^[0-9A-Z]{4,64}$`)

// NormalizeCardUID strips reader separators and upper-cases the UID so that
// "04:a2:2b:9c" and "04A22B9C" identify the same card. Physical NFC UIDs are
// 4, 7 or 10 bytes of hex; virtual cards may use any alphanumeric token.
func NormalizeCardUID(uid string) (string, error) {
	clean := strings.TrimSpace(uid)
	for _, sep := range []string{" ", ":", "-"} {
		clean = strings.ReplaceAll(clean, sep, "")
	}
	clean = strings.ToUpper(clean)

	if !cardUIDPattern.MatchString(clean) {
		return "", ErrInvalidCard
	}
	return clean, nil
}

// LastFour returns the trailing four characters of a card UID for display.
func LastFour(uid string) string {
	if len(uid) <= 4 {
		return uid
	}
	return uid[len(uid)-4:]
}

// NormalizeEmail lower-cases an email address; emails are matched case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

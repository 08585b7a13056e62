package registry

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

const MaxUsernameLength = 50

var ErrInvalidUsername = errors.New("invalid username")

// ValidateUsername rejects usernames that no platform could hold.
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("%w: username cannot be empty", ErrInvalidUsername)
	}
	if n := utf8.RuneCountInString(username); n > MaxUsernameLength {
		return fmt.Errorf("%w: username too long (%d > %d characters)", ErrInvalidUsername, n, MaxUsernameLength)
	}
	if strings.IndexFunc(username, unicode.IsControl) >= 0 {
		return fmt.Errorf("%w: username contains control characters", ErrInvalidUsername)
	}
	return nil
}

// FormatURL substitutes the percent-encoded username into template.
func FormatURL(template, username string) string {
	return strings.ReplaceAll(template, Placeholder, url.PathEscape(username))
}

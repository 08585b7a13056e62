package registry

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"simple", "johndoe", false},
		{"with dash and underscore", "john_doe-99", false},
		{"with dot", "john.doe", false},
		{"empty", "", true},
		{"max length", strings.Repeat("a", MaxUsernameLength), false},
		{"too long", strings.Repeat("a", MaxUsernameLength+1), true},
		{"control character", "john\x00doe", true},
		{"newline", "john\ndoe", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateUsername(%q) err = %v, wantErr %v", tt.username, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidUsername) {
				t.Fatalf("expected ErrInvalidUsername, got %v", err)
			}
		})
	}
}

func TestFormatURL(t *testing.T) {
	tests := []struct {
		template string
		username string
		want     string
	}{
		{"https://github.com/{username}", "johndoe", "https://github.com/johndoe"},
		{"https://medium.com/@{username}", "john doe", "https://medium.com/@john%20doe"},
		{"https://x.test/{username}", "a/b?c", "https://x.test/a%2Fb%3Fc"},
		{"https://x.test/{username}/{username}", "ab", "https://x.test/ab/ab"},
	}

	for _, tt := range tests {
		if got := FormatURL(tt.template, tt.username); got != tt.want {
			t.Errorf("FormatURL(%q, %q) = %q, want %q", tt.template, tt.username, got, tt.want)
		}
	}
}

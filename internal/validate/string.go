// Package validate provides validation for user supplied text before it is
// persisted: proposal messages, chat messages and identifiers.
package validate

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// String validation errors
var (
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrEmpty             = errors.New("string is empty")
)

// StringConstraints defines validation constraints for a string.
// Lengths are counted in characters, not bytes.
type StringConstraints struct {
	MinLength     int  // Minimum length (0 = no minimum)
	MaxLength     int  // Maximum length (0 = no maximum)
	AllowEmpty    bool // Whether empty strings are allowed
	TrimSpace     bool // Whether to trim whitespace before validation
	AllowNewlines bool // Whether \n, \r and \t are accepted
}

// String validates a string against the given constraints.
// Returns the validated (and optionally trimmed) string and an error if validation fails.
// Invalid UTF-8 and control characters are always rejected.
func String(s string, constraints StringConstraints) (string, error) {
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: not valid UTF-8", ErrInvalidCharacters)
	}
	for _, r := range s {
		if !unicode.IsControl(r) {
			continue
		}
		if constraints.AllowNewlines && (r == '\n' || r == '\r' || r == '\t') {
			continue
		}
		return "", fmt.Errorf("%w: control character %U", ErrInvalidCharacters, r)
	}

	length := utf8.RuneCountInString(s)
	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, constraints.MinLength)
	}
	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength)
	}

	return s, nil
}

// Text field limits.
const (
	MaxProposalMessageLength = 5000
	MaxMessageTextLength     = 4000
	MaxDurationLength        = 64
	MaxIdentifierLength      = 128
)

// ProposalMessage validates the cover message of a proposal:
// - Required
// - Max 5000 characters, multi-line
func ProposalMessage(s string) (string, error) {
	return String(s, StringConstraints{
		MinLength:     1,
		MaxLength:     MaxProposalMessageLength,
		TrimSpace:     true,
		AllowNewlines: true,
	})
}

// MessageText validates a chat message body:
// - Required
// - Max 4000 characters, multi-line
func MessageText(s string) (string, error) {
	return String(s, StringConstraints{
		MinLength:     1,
		MaxLength:     MaxMessageTextLength,
		TrimSpace:     true,
		AllowNewlines: true,
	})
}

// Duration validates the free-text delivery estimate of a proposal.
// It is optional and single-line.
func Duration(s string) (string, error) {
	return String(s, StringConstraints{
		MaxLength:  MaxDurationLength,
		AllowEmpty: true,
		TrimSpace:  true,
	})
}

// Identifier validates a job, thread or profile id.
func Identifier(s string) (string, error) {
	return String(s, StringConstraints{
		MinLength: 1,
		MaxLength: MaxIdentifierLength,
		TrimSpace: true,
	})
}

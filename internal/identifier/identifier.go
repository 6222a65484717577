// Package identifier classifies and normalizes the email addresses and phone
// numbers users sign in with.
package identifier

import (
	"errors"
	"strings"
)

// Kind tells which user field an identifier is matched against.
type Kind int

const (
	Email Kind = iota + 1
	Phone
)

func (k Kind) String() string {
	switch k {
	case Email:
		return "email"
	case Phone:
		return "phone"
	default:
		return "unknown"
	}
}

var ErrEmpty = errors.New("email or phone is required")

// Identifier is a normalized lookup key.
type Identifier struct {
	Kind  Kind
	Value string
}

func (id Identifier) String() string { return id.Value }

// Parse classifies raw as an email (anything containing "@") or a phone
// number and normalizes it.
func Parse(raw string) (Identifier, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identifier{}, ErrEmpty
	}
	if IsEmail(raw) {
		return Identifier{Kind: Email, Value: NormalizeEmail(raw)}, nil
	}
	phone := NormalizePhone(raw)
	if phone == "" {
		return Identifier{}, ErrEmpty
	}
	return Identifier{Kind: Phone, Value: phone}, nil
}

// IsEmail reports whether s should be treated as an email address.
func IsEmail(s string) bool {
	return strings.Contains(s, "@")
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizePhone reduces a phone number to "+" followed by its digits. A
// leading "+" is kept, every other non-digit is dropped, and a "+" is added
// when missing. Returns "" when no digits remain.
func NormalizePhone(s string) string {
	var b strings.Builder
	b.WriteByte('+')
	for _, r := range strings.TrimSpace(s) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 1 {
		return ""
	}
	return b.String()
}

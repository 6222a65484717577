// Package otp holds the code generation and environment policy used when
// issuing and checking one-time sign-in codes.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	// CodeLength is the number of digits in a code.
	CodeLength = 6
	// DebugCode is issued and accepted outside production for test automation.
	DebugCode = "000000"
	// DefaultTTL is how long an issued code stays valid.
	DefaultTTL = 10 * time.Minute
)

var codeSpace = big.NewInt(1_000_000)

// Generator produces codes for new challenges.
type Generator interface {
	Generate() (string, error)
}

// RandomGenerator returns uniformly random zero-padded 6-digit codes read
// from crypto/rand.
type RandomGenerator struct{}

func (RandomGenerator) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}

// FixedGenerator always returns its own value.
type FixedGenerator string

func (g FixedGenerator) Generate() (string, error) { return string(g), nil }

// Policy bundles every environment dependent behaviour of the OTP flow. It is
// chosen once when the auth service is built.
type Policy struct {
	Generator Generator
	TTL       time.Duration
	// AcceptDebugCode lets DebugCode verify for any existing user without a
	// stored challenge.
	AcceptDebugCode bool
	// RevealCode returns the plaintext code to the caller of issuance.
	RevealCode bool
	// FailOnDeliveryError turns a notifier failure into an issuance error.
	// Otherwise the failure is only logged.
	FailOnDeliveryError bool
}

// ProductionPolicy issues random codes, never reveals them and treats
// delivery failures as fatal.
func ProductionPolicy() Policy {
	return Policy{
		Generator:           RandomGenerator{},
		TTL:                 DefaultTTL,
		FailOnDeliveryError: true,
	}
}

// DevelopmentPolicy issues DebugCode, returns it to the caller, accepts it
// unconditionally and tolerates delivery failures.
func DevelopmentPolicy() Policy {
	return Policy{
		Generator:       FixedGenerator(DebugCode),
		TTL:             DefaultTTL,
		AcceptDebugCode: true,
		RevealCode:      true,
	}
}

// PolicyFor returns ProductionPolicy for env "production" and
// DevelopmentPolicy for anything else.
func PolicyFor(env string) Policy {
	if env == "production" {
		return ProductionPolicy()
	}
	return DevelopmentPolicy()
}

// Bypasses reports whether code skips the stored challenge check.
func (p Policy) Bypasses(code string) bool {
	return p.AcceptDebugCode && code == DebugCode
}

// ExpiresAt returns the expiry of a challenge issued at now.
func (p Policy) ExpiresAt(now time.Time) time.Time {
	ttl := p.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return now.Add(ttl)
}

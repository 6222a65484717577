package model

import "time"

// OTPChallenge is the single outstanding sign-in code of a user.
type OTPChallenge struct {
	UserID    int64
	CodeHash  string // bcrypt hash of the code
	ExpiresAt time.Time
	Verified  bool
	CreatedAt time.Time
}

// Usable reports whether the challenge can still be consumed at now.
func (c *OTPChallenge) Usable(now time.Time) bool {
	return c != nil && !c.Verified && now.Before(c.ExpiresAt)
}

// OTPResult is returned by issuance. OTP is only set outside production.
type OTPResult struct {
	Success bool   `json:"success"`
	OTP     string `json:"otp,omitempty"`
}

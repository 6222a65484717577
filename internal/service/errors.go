package service

import "otp_auth/internal/apperr"

var (
	ErrUserNotFound       = apperr.New(apperr.NotFound, "user not found")
	ErrIdentifierRequired = apperr.New(apperr.BadRequest, "either email or phone is required")
	ErrEmailTaken         = apperr.New(apperr.Conflict, "a user with this email already exists")
	ErrPhoneTaken         = apperr.New(apperr.Conflict, "a user with this phone number already exists")
	ErrInvalidCode        = apperr.New(apperr.Unauthorized, "invalid or expired code")
	ErrDeliveryFailed     = apperr.New(apperr.DeliveryFailure, "failed to deliver code")
	ErrNothingToUpdate    = apperr.New(apperr.BadRequest, "no profile fields to update")
)

// internal wraps an unexpected failure so handlers report it as a 500
// without leaking the cause.
func internal(message string, err error) error {
	return apperr.Wrap(apperr.Internal, message, err)
}

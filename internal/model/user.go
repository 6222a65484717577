package model

import "time"

// User represents a user in the system. At least one of Email or Phone is set.
type User struct {
	ID        int64     `json:"id"`
	Email     *string   `json:"email"`
	Phone     *string   `json:"phone"` // Canonical "+digits" form
	FirstName *string   `json:"first_name"`
	LastName  *string   `json:"last_name"`
	CreatedAt time.Time `json:"created_at"`
}

// RegisterRequest is used for creating a new user
type RegisterRequest struct {
	Email     string `json:"email" binding:"omitempty,email"`
	Phone     string `json:"phone"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// UpdateProfileRequest carries a partial profile update. Nil fields are left unchanged.
type UpdateProfileRequest struct {
	Email     *string `json:"email,omitempty" binding:"omitempty,email"`
	Phone     *string `json:"phone,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}

// IsEmpty reports whether the request changes nothing.
func (r UpdateProfileRequest) IsEmpty() bool {
	return r.Email == nil && r.Phone == nil && r.FirstName == nil && r.LastName == nil
}

package repository

import (
	"context"
	"sync"
	"time"

	"otp_auth/internal/model"
)

// MemoryUserRepository keeps users in process memory. It enforces the same
// uniqueness rules as the users table and is meant for local runs and tests.
type MemoryUserRepository struct {
	mu     sync.Mutex
	users  map[int64]model.User
	nextID int64
}

// NewMemoryUserRepository creates an empty MemoryUserRepository
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[int64]model.User)}
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts(0, user.Email, user.Phone) {
		return ErrDuplicate
	}
	r.nextID++
	user.ID = r.nextID
	r.users[user.ID] = *user
	return nil
}

func (r *MemoryUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.find(func(u model.User) bool { return equal(u.Email, &email) }), nil
}

func (r *MemoryUserRepository) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	return r.find(func(u model.User) bool { return equal(u.Phone, &phone) }), nil
}

func (r *MemoryUserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.ID == id }), nil
}

func (r *MemoryUserRepository) Update(ctx context.Context, id int64, fields model.UpdateProfileRequest) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	if r.conflicts(id, fields.Email, fields.Phone) {
		return nil, ErrDuplicate
	}
	if fields.Email != nil {
		u.Email = copyString(fields.Email)
	}
	if fields.Phone != nil {
		u.Phone = copyString(fields.Phone)
	}
	if fields.FirstName != nil {
		u.FirstName = copyString(fields.FirstName)
	}
	if fields.LastName != nil {
		u.LastName = copyString(fields.LastName)
	}
	r.users[id] = u
	return &u, nil
}

func (r *MemoryUserRepository) find(match func(model.User) bool) *model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			return &u
		}
	}
	return nil
}

// conflicts must be called with mu held.
func (r *MemoryUserRepository) conflicts(selfID int64, email, phone *string) bool {
	for id, u := range r.users {
		if id != selfID && (equal(u.Email, email) || equal(u.Phone, phone)) {
			return true
		}
	}
	return false
}

func equal(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

func copyString(s *string) *string {
	v := *s
	return &v
}

// MemoryOTPRepository keeps one challenge per user id. MarkVerified is a
// compare-and-set under the lock, matching the conditional UPDATE.
type MemoryOTPRepository struct {
	mu         sync.Mutex
	challenges map[int64]model.OTPChallenge
}

// NewMemoryOTPRepository creates an empty MemoryOTPRepository
func NewMemoryOTPRepository() *MemoryOTPRepository {
	return &MemoryOTPRepository{challenges: make(map[int64]model.OTPChallenge)}
}

func (r *MemoryOTPRepository) Upsert(ctx context.Context, c *model.OTPChallenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.challenges[c.UserID] = *c
	return nil
}

func (r *MemoryOTPRepository) FindByUserID(ctx context.Context, userID int64) (*model.OTPChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.challenges[userID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *MemoryOTPRepository) MarkVerified(ctx context.Context, userID int64, codeHash string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.challenges[userID]
	if !ok || c.CodeHash != codeHash || !c.Usable(now) {
		return false, nil
	}
	c.Verified = true
	r.challenges[userID] = c
	return true, nil
}

// Len returns the number of stored challenges.
func (r *MemoryOTPRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.challenges)
}

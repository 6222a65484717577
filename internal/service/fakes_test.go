package service

import (
	"context"
	"errors"
	"sync"

	"otp_auth/internal/model"
	"otp_auth/internal/repository"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (n *fakeNotifier) Send(ctx context.Context, destination, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, destination+": "+message)
	return n.err
}

// sequenceGenerator hands out codes in order.
type sequenceGenerator struct {
	mu    sync.Mutex
	codes []string
}

func (g *sequenceGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	code := g.codes[0]
	g.codes = g.codes[1:]
	return code, nil
}

var errStoreDown = errors.New("db down")

// brokenUserRepo fails every call.
type brokenUserRepo struct{}

func (brokenUserRepo) Create(ctx context.Context, user *model.User) error { return errStoreDown }

func (brokenUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, errStoreDown
}

func (brokenUserRepo) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	return nil, errStoreDown
}

func (brokenUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	return nil, errStoreDown
}

func (brokenUserRepo) Update(ctx context.Context, id int64, fields model.UpdateProfileRequest) (*model.User, error) {
	return nil, errStoreDown
}

// blindUserRepo misses every lookup, as if a concurrent registration
// committed between the pre-check and the insert.
type blindUserRepo struct{ *repository.MemoryUserRepository }

func (blindUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, nil
}

func (blindUserRepo) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	return nil, nil
}

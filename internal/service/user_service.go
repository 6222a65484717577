package service

import (
	"context"
	"errors"
	"strings"

	"otp_auth/internal/apperr"
	"otp_auth/internal/identifier"
	"otp_auth/internal/model"
	"otp_auth/internal/repository"
)

// UserService exposes the canonical user records clients reconcile against.
type UserService interface {
	GetByIdentifier(ctx context.Context, identifier string) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	UpdateProfile(ctx context.Context, id int64, req model.UpdateProfileRequest) (*model.User, error)
}

type userService struct {
	userRepo repository.UserRepository
}

// NewUserService creates a new UserService
func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) GetByIdentifier(ctx context.Context, raw string) (*model.User, error) {
	user, _, err := findByIdentifier(ctx, s.userRepo, raw)
	return user, err
}

func (s *userService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, internal("failed to find user", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateProfile applies a partial update. Contact fields are normalized the
// same way as at registration and must stay unique.
func (s *userService) UpdateProfile(ctx context.Context, id int64, req model.UpdateProfileRequest) (*model.User, error) {
	if req.IsEmpty() {
		return nil, ErrNothingToUpdate
	}
	if req.Email != nil {
		email := identifier.NormalizeEmail(*req.Email)
		if email == "" {
			return nil, apperr.New(apperr.BadRequest, "email cannot be cleared")
		}
		req.Email = &email
	}
	if req.Phone != nil {
		phone := identifier.NormalizePhone(*req.Phone)
		if phone == "" {
			return nil, apperr.New(apperr.BadRequest, "phone number must contain digits")
		}
		req.Phone = &phone
	}
	if req.FirstName != nil {
		v := strings.TrimSpace(*req.FirstName)
		req.FirstName = &v
	}
	if req.LastName != nil {
		v := strings.TrimSpace(*req.LastName)
		req.LastName = &v
	}

	user, err := s.userRepo.Update(ctx, id, req)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Wrap(apperr.Conflict, "email or phone already belongs to another user", err)
		}
		return nil, internal("failed to update user", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

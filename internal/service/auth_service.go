package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"otp_auth/internal/apperr"
	"otp_auth/internal/identifier"
	"otp_auth/internal/model"
	"otp_auth/internal/notify"
	"otp_auth/internal/otp"
	"otp_auth/internal/repository"
	"otp_auth/internal/utils"
)

// AuthService provides registration and one-time code sign-in.
type AuthService interface {
	Register(ctx context.Context, req model.RegisterRequest) (*model.User, error)
	// RequestOTP issues a fresh code for the user owning identifier, replacing
	// any code issued before.
	RequestOTP(ctx context.Context, identifier string) (*model.OTPResult, error)
	// Login verifies code and returns the user with a session token.
	Login(ctx context.Context, identifier, code string) (*model.User, string, error)
}

type authService struct {
	userRepo repository.UserRepository
	otpRepo  repository.OTPRepository
	notifier notify.Notifier
	policy   otp.Policy
	jwtUtil  *utils.JWTUtil
	now      func() time.Time
}

// NewAuthService creates a new AuthService. policy is fixed for the lifetime
// of the service.
func NewAuthService(userRepo repository.UserRepository, otpRepo repository.OTPRepository, notifier notify.Notifier, policy otp.Policy, jwtUtil *utils.JWTUtil) AuthService {
	return &authService{
		userRepo: userRepo,
		otpRepo:  otpRepo,
		notifier: notifier,
		policy:   policy,
		jwtUtil:  jwtUtil,
		now:      time.Now,
	}
}

// Register creates a new user account
func (s *authService) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	user := &model.User{
		FirstName: optional(req.FirstName),
		LastName:  optional(req.LastName),
		CreatedAt: s.now(),
	}
	if email := identifier.NormalizeEmail(req.Email); email != "" {
		user.Email = &email
	}
	if strings.TrimSpace(req.Phone) != "" {
		phone := identifier.NormalizePhone(req.Phone)
		if phone == "" {
			return nil, apperr.New(apperr.BadRequest, "phone number must contain digits")
		}
		user.Phone = &phone
	}
	if user.Email == nil && user.Phone == nil {
		return nil, ErrIdentifierRequired
	}

	if user.Email != nil {
		existing, err := s.userRepo.FindByEmail(ctx, *user.Email)
		if err != nil {
			return nil, internal("failed to check existing user", err)
		}
		if existing != nil {
			return nil, ErrEmailTaken
		}
	}
	if user.Phone != nil {
		existing, err := s.userRepo.FindByPhone(ctx, *user.Phone)
		if err != nil {
			return nil, internal("failed to check existing user", err)
		}
		if existing != nil {
			return nil, ErrPhoneTaken
		}
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost a race with a concurrent registration.
			return nil, apperr.Wrap(apperr.Conflict, "a user with this email or phone already exists", err)
		}
		return nil, internal("failed to create user", err)
	}

	log.Printf("INFO: registered user %d", user.ID)
	return user, nil
}

// RequestOTP generates, stores and delivers a new code.
func (s *authService) RequestOTP(ctx context.Context, rawIdentifier string) (*model.OTPResult, error) {
	user, id, err := s.resolve(ctx, rawIdentifier)
	if err != nil {
		return nil, err
	}

	code, err := s.policy.Generator.Generate()
	if err != nil {
		return nil, internal("failed to generate code", err)
	}
	hash, err := utils.HashCode(code)
	if err != nil {
		return nil, internal("failed to generate code", err)
	}

	now := s.now()
	challenge := &model.OTPChallenge{
		UserID:    user.ID,
		CodeHash:  hash,
		ExpiresAt: s.policy.ExpiresAt(now),
		Verified:  false,
		CreatedAt: now,
	}
	if err := s.otpRepo.Upsert(ctx, challenge); err != nil {
		return nil, internal("failed to store code", err)
	}

	// The challenge is stored before delivery, so a failed send leaves a valid
	// code behind and the caller can simply ask again.
	message := fmt.Sprintf("Your sign-in code is %s. It expires in %d minutes.", code, int(challenge.ExpiresAt.Sub(now).Minutes()))
	if err := s.notifier.Send(ctx, id.Value, message); err != nil {
		if s.policy.FailOnDeliveryError {
			log.Printf("ERROR: failed to deliver code to user %d via %s: %v", user.ID, id.Kind, err)
			return nil, apperr.Wrap(apperr.DeliveryFailure, ErrDeliveryFailed.Message, err)
		}
		log.Printf("WARN: failed to deliver code to user %d via %s: %v", user.ID, id.Kind, err)
	}

	result := &model.OTPResult{Success: true}
	if s.policy.RevealCode {
		result.OTP = code
	}
	return result, nil
}

// Login verifies a submitted code and consumes the challenge.
func (s *authService) Login(ctx context.Context, rawIdentifier, code string) (*model.User, string, error) {
	user, _, err := s.resolve(ctx, rawIdentifier)
	if err != nil {
		return nil, "", err
	}

	if !s.policy.Bypasses(code) {
		ok, err := s.consume(ctx, user.ID, code)
		if err != nil {
			return nil, "", internal("failed to verify code", err)
		}
		if !ok {
			return nil, "", ErrInvalidCode
		}
	}

	token, err := s.jwtUtil.GenerateToken(user.ID)
	if err != nil {
		return nil, "", internal("failed to generate token", err)
	}
	return user, token, nil
}

// consume reports whether code matches the user's usable challenge and marks
// it verified. The final write only succeeds if the same challenge is still
// unconsumed, so two concurrent logins with one code cannot both pass.
func (s *authService) consume(ctx context.Context, userID int64, code string) (bool, error) {
	challenge, err := s.otpRepo.FindByUserID(ctx, userID)
	if err != nil {
		return false, err
	}
	now := s.now()
	if !challenge.Usable(now) || !utils.CheckCodeHash(code, challenge.CodeHash) {
		return false, nil
	}
	return s.otpRepo.MarkVerified(ctx, userID, challenge.CodeHash, now)
}

func (s *authService) resolve(ctx context.Context, raw string) (*model.User, identifier.Identifier, error) {
	return findByIdentifier(ctx, s.userRepo, raw)
}

func findByIdentifier(ctx context.Context, repo repository.UserRepository, raw string) (*model.User, identifier.Identifier, error) {
	id, err := identifier.Parse(raw)
	if err != nil {
		return nil, id, ErrIdentifierRequired
	}
	var user *model.User
	switch id.Kind {
	case identifier.Email:
		user, err = repo.FindByEmail(ctx, id.Value)
	default:
		user, err = repo.FindByPhone(ctx, id.Value)
	}
	if err != nil {
		return nil, id, internal("failed to find user", err)
	}
	if user == nil {
		return nil, id, ErrUserNotFound
	}
	return user, id, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

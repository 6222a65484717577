package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"otp_auth/internal/apperr"
	"otp_auth/internal/model"
	"otp_auth/internal/otp"
	"otp_auth/internal/repository"
	"otp_auth/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authFixture struct {
	svc      *authService
	users    *repository.MemoryUserRepository
	otps     *repository.MemoryOTPRepository
	notifier *fakeNotifier
	now      time.Time
}

func newAuthFixture(t *testing.T, policy otp.Policy) *authFixture {
	t.Helper()
	f := &authFixture{
		users:    repository.NewMemoryUserRepository(),
		otps:     repository.NewMemoryOTPRepository(),
		notifier: &fakeNotifier{},
		now:      time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.svc = NewAuthService(f.users, f.otps, f.notifier, policy, utils.NewJWTUtil("test-secret", 1)).(*authService)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *authFixture) register(t *testing.T, req model.RegisterRequest) *model.User {
	t.Helper()
	user, err := f.svc.Register(context.Background(), req)
	require.NoError(t, err)
	return user
}

func prodPolicy(codes ...string) otp.Policy {
	p := otp.ProductionPolicy()
	p.Generator = &sequenceGenerator{codes: codes}
	return p
}

func TestRegister_RequiresEmailOrPhone(t *testing.T) {
	f := newAuthFixture(t, otp.DevelopmentPolicy())

	_, err := f.svc.Register(context.Background(), model.RegisterRequest{FirstName: "Ann", Email: "  "})
	assert.ErrorIs(t, err, ErrIdentifierRequired)
	assert.Equal(t, apperr.BadRequest, apperr.KindOf(err))
}

func TestRegister_Conflicts(t *testing.T) {
	f := newAuthFixture(t, otp.DevelopmentPolicy())
	f.register(t, model.RegisterRequest{Email: "a@x.com", Phone: "+1 555 0100"})

	_, err := f.svc.Register(context.Background(), model.RegisterRequest{Email: "A@X.com"})
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	assert.Equal(t, ErrEmailTaken.Message, apperr.MessageOf(err))
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.NotErrorIs(t, err, ErrPhoneTaken)

	_, err = f.svc.Register(context.Background(), model.RegisterRequest{Phone: "15550100"})
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	assert.Equal(t, ErrPhoneTaken.Message, apperr.MessageOf(err))
	assert.ErrorIs(t, err, ErrPhoneTaken)
	assert.NotErrorIs(t, err, ErrEmailTaken)
}

func TestRegister_NormalizesFields(t *testing.T) {
	f := newAuthFixture(t, otp.DevelopmentPolicy())

	user := f.register(t, model.RegisterRequest{Phone: "(555) 010-0200", FirstName: " Bo ", LastName: ""})
	require.NotNil(t, user.Phone)
	assert.Equal(t, "+5550100200", *user.Phone)
	assert.Nil(t, user.Email)
	assert.Equal(t, "Bo", *user.FirstName)
	assert.Nil(t, user.LastName)
	assert.NotZero(t, user.ID)
}

func TestRegister_DuplicateRace(t *testing.T) {
	users := repository.NewMemoryUserRepository()
	svc := NewAuthService(blindUserRepo{users}, repository.NewMemoryOTPRepository(), &fakeNotifier{}, otp.DevelopmentPolicy(), utils.NewJWTUtil("s", 1))

	_, err := svc.Register(context.Background(), model.RegisterRequest{Email: "a@x.com"})
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), model.RegisterRequest{Email: "a@x.com"})
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
}

func TestRegister_StoreFailure(t *testing.T) {
	svc := NewAuthService(brokenUserRepo{}, repository.NewMemoryOTPRepository(), &fakeNotifier{}, otp.DevelopmentPolicy(), utils.NewJWTUtil("s", 1))

	_, err := svc.Register(context.Background(), model.RegisterRequest{Email: "a@x.com"})
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))
}

func TestRequestOTP_UnknownUser(t *testing.T) {
	f := newAuthFixture(t, otp.DevelopmentPolicy())

	_, err := f.svc.RequestOTP(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Zero(t, f.otps.Len(), "issuance never creates challenges for unknown identifiers")
}

func TestRequestOTP_DevelopmentRevealsDebugCode(t *testing.T) {
	f := newAuthFixture(t, otp.DevelopmentPolicy())
	user := f.register(t, model.RegisterRequest{Email: "a@x.com"})

	res, err := f.svc.RequestOTP(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, otp.DebugCode, res.OTP)

	c, _ := f.otps.FindByUserID(context.Background(), user.ID)
	require.NotNil(t, c)
	assert.False(t, c.Verified)
	assert.Equal(t, f.now.Add(10*time.Minute), c.ExpiresAt)
	assert.True(t, utils.CheckCodeHash(otp.DebugCode, c.CodeHash))
	require.Len(t, f.notifier.sent, 1)
	assert.Contains(t, f.notifier.sent[0], "a@x.com: ")
}

func TestRequestOTP_ProductionHidesCode(t *testing.T) {
	f := newAuthFixture(t, prodPolicy("482913"))
	f.register(t, model.RegisterRequest{Phone: "+15550100"})

	res, err := f.svc.RequestOTP(context.Background(), "+1 555 0100")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.OTP)
	require.Len(t, f.notifier.sent, 1)
	assert.Contains(t, f.notifier.sent[0], "+15550100: ")
	assert.Contains(t, f.notifier.sent[0], "482913")
}

func TestRequestOTP_DeliveryFailure(t *testing.T) {
	t.Run("production is fatal but keeps the challenge", func(t *testing.T) {
		f := newAuthFixture(t, prodPolicy("111111"))
		user := f.register(t, model.RegisterRequest{Email: "a@x.com"})
		f.notifier.err = errors.New("smtp unreachable")

		_, err := f.svc.RequestOTP(context.Background(), "a@x.com")
		assert.ErrorIs(t, err, ErrDeliveryFailed)

		c, _ := f.otps.FindByUserID(context.Background(), user.ID)
		require.NotNil(t, c, "challenge is stored before delivery")
		_, _, err = f.svc.Login(context.Background(), "a@x.com", "111111")
		assert.NoError(t, err)
	})

	t.Run("development only warns", func(t *testing.T) {
		f := newAuthFixture(t, otp.DevelopmentPolicy())
		f.register(t, model.RegisterRequest{Email: "a@x.com"})
		f.notifier.err = errors.New("smtp unreachable")

		res, err := f.svc.RequestOTP(context.Background(), "a@x.com")
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, otp.DebugCode, res.OTP)
	})
}

func TestLogin_SecondIssuanceInvalidatesFirst(t *testing.T) {
	f := newAuthFixture(t, prodPolicy("111111", "222222"))
	f.register(t, model.RegisterRequest{Email: "a@x.com"})

	_, err := f.svc.RequestOTP(context.Background(), "a@x.com")
	require.NoError(t, err)
	_, err = f.svc.RequestOTP(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, 1, f.otps.Len())

	_, _, err = f.svc.Login(context.Background(), "a@x.com", "111111")
	assert.ErrorIs(t, err, ErrInvalidCode)

	user, token, err := f.svc.Login(context.Background(), "a@x.com", "222222")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", *user.Email)
	assert.NotEmpty(t, token)
}

func TestLogin_CodeWorksExactlyOnce(t *testing.T) {
	f := newAuthFixture(t, prodPolicy("123456"))
	f.register(t, model.RegisterRequest{Email: "a@x.com"})
	_, err := f.svc.RequestOTP(context.Background(), "a@x.com")
	require.NoError(t, err)

	_, _, err = f.svc.Login(context.Background(), "a@x.com", "123456")
	require.NoError(t, err)

	_, _, err = f.svc.Login(context.Background(), "a@x.com", "123456")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestLogin_ExpiredCode(t *testing.T) {
	f := newAuthFixture(t, prodPolicy("123456"))
	f.register(t, model.RegisterRequest{Email: "a@x.com"})
	_, err := f.svc.RequestOTP(context.Background(), "a@x.com")
	require.NoError(t, err)

	f.now = f.now.Add(10 * time.Minute)
	_, _, err = f.svc.Login(context.Background(), "a@x.com", "123456")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestLogin_WrongCodeAndNoChallenge(t *testing.T) {
	f := newAuthFixture(t, prodPolicy("123456"))
	f.register(t, model.RegisterRequest{Email: "a@x.com"})

	_, _, err := f.svc.Login(context.Background(), "a@x.com", "123456")
	assert.ErrorIs(t, err, ErrInvalidCode, "no challenge issued yet")

	_, err = f.svc.RequestOTP(context.Background(), "a@x.com")
	require.NoError(t, err)
	_, _, err = f.svc.Login(context.Background(), "a@x.com", "654321")
	assert.ErrorIs(t, err, ErrInvalidCode)
	assert.Equal(t, "invalid or expired code", apperr.MessageOf(err))
}

func TestLogin_UnknownUser(t *testing.T) {
	f := newAuthFixture(t, otp.DevelopmentPolicy())

	_, _, err := f.svc.Login(context.Background(), "ghost@x.com", otp.DebugCode)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLogin_DebugCode(t *testing.T) {
	t.Run("development accepts it without a challenge", func(t *testing.T) {
		f := newAuthFixture(t, otp.DevelopmentPolicy())
		f.register(t, model.RegisterRequest{Email: "a@x.com"})

		for i := 0; i < 2; i++ {
			_, token, err := f.svc.Login(context.Background(), "a@x.com", otp.DebugCode)
			require.NoError(t, err)
			assert.NotEmpty(t, token)
		}
	})

	t.Run("production treats it as an ordinary code", func(t *testing.T) {
		f := newAuthFixture(t, prodPolicy("123456", otp.DebugCode))
		f.register(t, model.RegisterRequest{Email: "a@x.com"})

		_, _, err := f.svc.Login(context.Background(), "a@x.com", otp.DebugCode)
		assert.ErrorIs(t, err, ErrInvalidCode)

		_, err = f.svc.RequestOTP(context.Background(), "a@x.com")
		require.NoError(t, err)
		_, _, err = f.svc.Login(context.Background(), "a@x.com", otp.DebugCode)
		assert.ErrorIs(t, err, ErrInvalidCode)

		_, err = f.svc.RequestOTP(context.Background(), "a@x.com")
		require.NoError(t, err)
		_, _, err = f.svc.Login(context.Background(), "a@x.com", otp.DebugCode)
		assert.NoError(t, err, "matches the stored value")
	})
}

func TestLogin_ConcurrentUseOfOneCode(t *testing.T) {
	f := newAuthFixture(t, prodPolicy("123456"))
	f.register(t, model.RegisterRequest{Email: "a@x.com"})
	_, err := f.svc.RequestOTP(context.Background(), "a@x.com")
	require.NoError(t, err)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := f.svc.Login(context.Background(), "a@x.com", "123456"); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

package utils

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// TokenIssuer is the iss claim of every session token.
	TokenIssuer = "otp_auth"
	// AuthMethodOTP is the amr value for a one-time code sign-in.
	AuthMethodOTP = "otp"
)

// SessionClaims are carried by the bearer token handed out after a code
// has been verified.
type SessionClaims struct {
	UserID      int64    `json:"user_id"`
	AuthMethods []string `json:"amr,omitempty"`
	jwt.RegisteredClaims
}

// JWTUtil signs and checks session tokens with one HS256 secret.
type JWTUtil struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTUtil creates a new JWTUtil. A non-positive lifetime yields tokens
// that are already expired.
func NewJWTUtil(secretKey string, expirationHours int64) *JWTUtil {
	return &JWTUtil{
		secret: []byte(secretKey),
		ttl:    time.Duration(expirationHours) * time.Hour,
		now:    time.Now,
	}
}

// GenerateToken issues a session token for a user who just passed a code
// check. Each token gets a unique jti.
func (ju *JWTUtil) GenerateToken(userID int64) (string, error) {
	now := ju.now()
	claims := &SessionClaims{
		UserID:      userID,
		AuthMethods: []string{AuthMethodOTP},
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    TokenIssuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ju.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ju.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses a session token. Only HS256 tokens from this issuer
// with an expiry and a subject matching user_id are accepted.
func (ju *JWTUtil) ValidateToken(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return ju.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ju.now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if claims.Subject != strconv.FormatInt(claims.UserID, 10) {
		return nil, errors.New("token subject does not match user")
	}
	return claims, nil
}

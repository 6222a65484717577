package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"otp_auth/internal/model"

	"github.com/jackc/pgx/v5"
)

// OTPRepository stores at most one challenge per user.
type OTPRepository interface {
	// Upsert writes c, replacing any challenge the user already has.
	Upsert(ctx context.Context, c *model.OTPChallenge) error
	FindByUserID(ctx context.Context, userID int64) (*model.OTPChallenge, error)
	// MarkVerified consumes the challenge identified by userID and codeHash if it
	// is still unverified and unexpired at now. It reports false when no row
	// qualified, e.g. because a concurrent call consumed it first.
	MarkVerified(ctx context.Context, userID int64, codeHash string, now time.Time) (bool, error)
}

type otpRepository struct {
	db DBTX
}

// NewOTPRepository creates a new OTPRepository
func NewOTPRepository(db DBTX) OTPRepository {
	return &otpRepository{db: db}
}

func (r *otpRepository) Upsert(ctx context.Context, c *model.OTPChallenge) error {
	sql := `INSERT INTO otp_challenges (user_id, code_hash, expires_at, verified, created_at)
            VALUES ($1, $2, $3, $4, $5)
            ON CONFLICT (user_id) DO UPDATE
            SET code_hash = EXCLUDED.code_hash, expires_at = EXCLUDED.expires_at,
                verified = EXCLUDED.verified, created_at = EXCLUDED.created_at`
	_, err := r.db.Exec(ctx, sql, c.UserID, c.CodeHash, c.ExpiresAt, c.Verified, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to store otp challenge: %w", err)
	}
	return nil
}

func (r *otpRepository) FindByUserID(ctx context.Context, userID int64) (*model.OTPChallenge, error) {
	c := &model.OTPChallenge{}
	sql := `SELECT user_id, code_hash, expires_at, verified, created_at FROM otp_challenges WHERE user_id = $1`
	err := r.db.QueryRow(ctx, sql, userID).Scan(&c.UserID, &c.CodeHash, &c.ExpiresAt, &c.Verified, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find otp challenge: %w", err)
	}
	return c, nil
}

func (r *otpRepository) MarkVerified(ctx context.Context, userID int64, codeHash string, now time.Time) (bool, error) {
	sql := `UPDATE otp_challenges SET verified = TRUE
            WHERE user_id = $1 AND code_hash = $2 AND verified = FALSE AND expires_at > $3`
	tag, err := r.db.Exec(ctx, sql, userID, codeHash, now)
	if err != nil {
		return false, fmt.Errorf("failed to consume otp challenge: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"otp_auth/internal/model"

	"github.com/jackc/pgx/v5"
)

// UserRepository defines operations for user data
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByPhone(ctx context.Context, phone string) (*model.User, error)
	FindByID(ctx context.Context, id int64) (*model.User, error)
	Update(ctx context.Context, id int64, fields model.UpdateProfileRequest) (*model.User, error)
}

type userRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, email, phone, first_name, last_name, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(&user.ID, &user.Email, &user.Phone, &user.FirstName, &user.LastName, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Create inserts a new user into the database
func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	sql := `INSERT INTO users (email, phone, first_name, last_name, created_at)
            VALUES ($1, $2, $3, $4, $5) RETURNING id`
	err := r.db.QueryRow(ctx, sql, user.Email, user.Phone, user.FirstName, user.LastName, user.CreatedAt).Scan(&user.ID)
	if err != nil {
		if constraint, ok := uniqueConstraint(err); ok {
			return fmt.Errorf("failed to create user (%s): %w", constraint, ErrDuplicate)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindByEmail retrieves a user by their email address
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, "email", email)
}

// FindByPhone retrieves a user by their phone number
func (r *userRepository) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	return r.findOne(ctx, "phone", phone)
}

// FindByID retrieves a user by their ID
func (r *userRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	return r.findOne(ctx, "id", id)
}

// findOne is only called with fixed column names, never user input.
func (r *userRepository) findOne(ctx context.Context, column string, value any) (*model.User, error) {
	sql := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = $1`
	user, err := scanUser(r.db.QueryRow(ctx, sql, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found is not an error here, the service layer decides
		}
		return nil, fmt.Errorf("failed to find user by %s: %w", column, err)
	}
	return user, nil
}

// Update applies the non-nil fields to the user and returns the stored row.
// Returns (nil, nil) when the user does not exist.
func (r *userRepository) Update(ctx context.Context, id int64, fields model.UpdateProfileRequest) (*model.User, error) {
	var setParts []string
	args := []interface{}{}
	argCount := 1

	add := func(column string, value *string) {
		if value == nil {
			return
		}
		setParts = append(setParts, fmt.Sprintf("%s = $%d", column, argCount))
		args = append(args, *value)
		argCount++
	}
	add("email", fields.Email)
	add("phone", fields.Phone)
	add("first_name", fields.FirstName)
	add("last_name", fields.LastName)

	if len(setParts) == 0 {
		return r.FindByID(ctx, id)
	}

	var queryBuilder strings.Builder
	queryBuilder.WriteString("UPDATE users SET ")
	queryBuilder.WriteString(strings.Join(setParts, ", "))
	queryBuilder.WriteString(fmt.Sprintf(" WHERE id = $%d RETURNING %s", argCount, userColumns))
	args = append(args, id)

	user, err := scanUser(r.db.QueryRow(ctx, queryBuilder.String(), args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if constraint, ok := uniqueConstraint(err); ok {
			return nil, fmt.Errorf("failed to update user (%s): %w", constraint, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

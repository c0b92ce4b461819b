package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"notulio/internal/core"
)

// Token purposes for the auth_tokens table.
const (
	TokenPurposeVerifyEmail   = "verify_email"
	TokenPurposeResetPassword = "reset_password"
)

// CreateUser inserts a new user and returns it with id and creation time set.
func (s *Store) CreateUser(ctx context.Context, email, name, passwordHash string) (*core.User, error) {
	user := &core.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Name:         strings.TrimSpace(name),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, email_verified, created_at)
		VALUES (?, ?, ?, ?, 0, ?)`,
		user.ID, user.Email, user.Name, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		if sqliteErr, ok := err.(sqlite3.Error); ok && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return user, nil
}

// GetUserByEmail looks a user up by (case-insensitive) email address.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, email_verified, created_at
		FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email))))
}

// GetUserByID looks a user up by id.
func (s *Store) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, email_verified, created_at
		FROM users WHERE id = ?`, id))
}

func (s *Store) scanUser(row *sql.Row) (*core.User, error) {
	var user core.User
	var name sql.NullString
	err := row.Scan(&user.ID, &user.Email, &name, &user.PasswordHash, &user.EmailVerified, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	user.Name = name.String
	return &user, nil
}

// MarkEmailVerified flips the verified flag for a user.
func (s *Store) MarkEmailVerified(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET email_verified = 1 WHERE id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to mark email verified: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePassword replaces a user's password hash.
func (s *Store) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateAuthToken issues a single-use token for email verification or
// password reset and returns its value.
func (s *Store) CreateAuthToken(ctx context.Context, userID, purpose string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	expires := time.Now().UTC().Add(ttl)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_tokens (token, user_id, purpose, expires_at) VALUES (?, ?, ?, ?)`,
		token, userID, purpose, expires,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert auth token: %w", err)
	}
	return token, nil
}

// ConsumeAuthToken resolves and deletes a token. Unknown, mismatched, or
// expired tokens yield ErrTokenInvalid.
func (s *Store) ConsumeAuthToken(ctx context.Context, token, purpose string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var userID string
	var expires time.Time
	err = tx.QueryRowContext(ctx, `
		SELECT user_id, expires_at FROM auth_tokens WHERE token = ? AND purpose = ?`,
		token, purpose,
	).Scan(&userID, &expires)
	if err == sql.ErrNoRows {
		return "", ErrTokenInvalid
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch auth token: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM auth_tokens WHERE token = ?`, token); err != nil {
		return "", fmt.Errorf("failed to delete auth token: %w", err)
	}

	if time.Now().UTC().After(expires) {
		if err := tx.Commit(); err != nil {
			return "", fmt.Errorf("failed to commit token delete: %w", err)
		}
		return "", ErrTokenInvalid
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit token consume: %w", err)
	}
	return userID, nil
}

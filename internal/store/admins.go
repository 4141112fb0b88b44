package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CreateAdmin inserts a new administrator account. The email is the primary
// key; collisions surface as ErrDuplicateEmail.
func (s *Store) CreateAdmin(ctx context.Context, email, passwordHash, displayName string) (*Admin, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO admins (email, password_hash, display_name, verified)
		 VALUES ($1, $2, $3, TRUE)
		 RETURNING email, password_hash, display_name, verified, created_at`,
		email, passwordHash, displayName)

	var a Admin
	if err := row.Scan(&a.Email, &a.PasswordHash, &a.DisplayName, &a.Verified, &a.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEmail, email)
		}
		return nil, fmt.Errorf("inserting admin: %w", err)
	}

	s.logger.Debug("created admin", "email", a.Email)
	return &a, nil
}

// AdminByEmail looks up an administrator account by email.
func (s *Store) AdminByEmail(ctx context.Context, email string) (*Admin, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT email, password_hash, display_name, verified, created_at
		 FROM admins WHERE LOWER(email) = LOWER($1)`, email)

	var a Admin
	if err := row.Scan(&a.Email, &a.PasswordHash, &a.DisplayName, &a.Verified, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying admin: %w", err)
	}
	return &a, nil
}

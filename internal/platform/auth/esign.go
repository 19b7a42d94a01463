package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/labflow/labflow/internal/platform/apperr"
)

// ESignVerifier is the step-up authentication gate consulted before
// sensitive workflow transitions commit. Implementations return an
// AuthenticationError on mismatch or missing credential.
type ESignVerifier interface {
	VerifyPassword(ctx context.Context, userID, password string) error
}

// ESignStore is a bcrypt-backed credential store over the esign_credential
// table. The e-sign password is distinct from the login credential so a
// stolen session alone cannot approve a report.
type ESignStore struct {
	pool *pgxpool.Pool
}

func NewESignStore(pool *pgxpool.Pool) *ESignStore {
	return &ESignStore{pool: pool}
}

// VerifyPassword compares the supplied plaintext against the stored hash.
func (s *ESignStore) VerifyPassword(ctx context.Context, userID, password string) error {
	if password == "" {
		return apperr.Authentication("e-sign password is required")
	}

	var hash string
	err := s.pool.QueryRow(ctx,
		`SELECT password_hash FROM esign_credential WHERE user_id = $1`, userID).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Authentication("no e-sign credential on file for user %s", userID)
	}
	if err != nil {
		return fmt.Errorf("load e-sign credential: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return apperr.Authentication("e-sign password mismatch")
	}
	return nil
}

// SetPassword hashes and upserts the user's e-sign password.
func (s *ESignStore) SetPassword(ctx context.Context, userID, password string) error {
	if len(password) < 8 {
		return apperr.Validation("e-sign password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash e-sign password: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO esign_credential (user_id, password_hash, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET password_hash = $2, updated_at = NOW()`,
		userID, string(hash))
	if err != nil {
		return fmt.Errorf("store e-sign credential: %w", err)
	}
	return nil
}

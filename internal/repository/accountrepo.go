// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/meal-planner/internal/model"
)

// AccountRepository stores user accounts and their credentials.
type AccountRepository interface {
	// Create inserts a new account. A taken email yields errs.ErrAlreadyExists.
	Create(ctx context.Context, a *model.Account) error
	// GetByID loads an account by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
	// GetByEmail loads an account by its (lower-cased) email.
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	// SetPassword replaces the credentials and drops any pending reset token.
	SetPassword(ctx context.Context, id uuid.UUID, hash, salt []byte) error
	// SetResetToken stores the hash of a password reset token.
	SetResetToken(ctx context.Context, id uuid.UUID, tokenHash []byte, expiresAt time.Time) error
}

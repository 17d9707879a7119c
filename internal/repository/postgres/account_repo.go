package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/meal-planner/internal/errs"
	"github.com/and161185/meal-planner/internal/model"
)

// AccountRepo implements AccountRepository using PostgreSQL.
type AccountRepo struct{ db *DB }

// NewAccountRepo constructs an account repository.
func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

// Create inserts a new account row.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) error {
	const q = `
INSERT INTO accounts (id, email, display_name, phone_number, email_verified, disabled, pwd_hash, pwd_salt, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.Pool.Exec(ctx, q, a.ID, a.Email, a.DisplayName, a.PhoneNumber,
		a.EmailVerified, a.Disabled, a.PwdHash, a.PwdSalt, a.CreatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

const selectAccount = `
SELECT id, email, display_name, phone_number, email_verified, disabled,
       pwd_hash, pwd_salt, reset_token_hash, reset_expires_at, created_at
FROM accounts`

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	err := row.Scan(&a.ID, &a.Email, &a.DisplayName, &a.PhoneNumber, &a.EmailVerified, &a.Disabled,
		&a.PwdHash, &a.PwdSalt, &a.ResetTokenHash, &a.ResetExpiresAt, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// GetByID selects an account by ID.
func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	return scanAccount(r.db.Pool.QueryRow(ctx, selectAccount+` WHERE id=$1`, id))
}

// GetByEmail selects an account by email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	return scanAccount(r.db.Pool.QueryRow(ctx, selectAccount+` WHERE email=$1`, email))
}

// SetPassword stores new credentials and clears the reset token.
func (r *AccountRepo) SetPassword(ctx context.Context, id uuid.UUID, hash, salt []byte) error {
	const q = `
UPDATE accounts
SET pwd_hash=$2, pwd_salt=$3, reset_token_hash=''::bytea, reset_expires_at='epoch'
WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id, hash, salt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// SetResetToken stores a reset token hash with its expiry.
func (r *AccountRepo) SetResetToken(ctx context.Context, id uuid.UUID, tokenHash []byte, expiresAt time.Time) error {
	const q = `UPDATE accounts SET reset_token_hash=$2, reset_expires_at=$3 WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id, tokenHash, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Package service contains application services for accounts and documents.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/and161185/meal-planner/internal/crypto"
	"github.com/and161185/meal-planner/internal/errs"
	"github.com/and161185/meal-planner/internal/limiter"
	"github.com/and161185/meal-planner/internal/model"
	"github.com/and161185/meal-planner/internal/repository"
)

// MinPasswordLen is the shortest accepted password.
const MinPasswordLen = 6

const tokenIssuer = "mealplanner"

// AuthService defines account and session operations. Failures a user can
// act on are returned as *errs.AuthError.
type AuthService interface {
	// SignUp creates an account and signs it in.
	SignUp(ctx context.Context, email, password, displayName string) (model.Tokens, model.User, error)
	// SignIn applies rate limiting and authenticates by email and password.
	SignIn(ctx context.Context, email, password, ip string) (model.Tokens, model.User, error)
	// SignOut checks that token still denotes a session.
	SignOut(ctx context.Context, token string) error
	// ValidateToken returns the account id carried by an access token.
	ValidateToken(token string) (uuid.UUID, error)
	// Me returns the principal of an account.
	Me(ctx context.Context, uid uuid.UUID) (model.User, error)
	// RequestPasswordReset issues a reset token for email. Unknown emails succeed silently.
	RequestPasswordReset(ctx context.Context, email string) error
	// ConfirmPasswordReset sets a new password using a reset token.
	ConfirmPasswordReset(ctx context.Context, email, token, newPassword string) error
	// ChangePassword sets a new password for a signed-in account.
	ChangePassword(ctx context.Context, uid uuid.UUID, newPassword string) error
}

// ResetNotifier delivers password reset tokens to their owner.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error
}

// LogNotifier writes reset tokens to the log in plain text. Only dev servers
// use it.
type LogNotifier struct{ Log *zap.Logger }

// SendPasswordReset logs the token.
func (n LogNotifier) SendPasswordReset(_ context.Context, email, token string, expiresAt time.Time) error {
	n.Log.Info("password reset issued",
		zap.String("email", email), zap.String("token", token), zap.Time("expires_at", expiresAt))
	return nil
}

// AuthConfig tunes AuthServiceImpl.
type AuthConfig struct {
	SignKey   []byte
	AccessTTL time.Duration
	ResetTTL  time.Duration
	Hash      pkgcrypto.Params
}

type AuthServiceImpl struct {
	accounts  repository.AccountRepository
	lim       limiter.Limiter
	notifier  ResetNotifier
	hasher    pkgcrypto.Hasher
	signKey   []byte
	accessTTL time.Duration
	resetTTL  time.Duration
	now       func() time.Time
	log       *zap.Logger
}

var _ AuthService = (*AuthServiceImpl)(nil)

// NewAuthService constructs AuthService with required dependencies. A nil
// notifier disables password reset.
func NewAuthService(
	accounts repository.AccountRepository, lim limiter.Limiter, notifier ResetNotifier, cfg AuthConfig, log *zap.Logger,
) *AuthServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	if lim == nil {
		lim = limiter.Nop{}
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	return &AuthServiceImpl{
		accounts:  accounts,
		lim:       lim,
		notifier:  notifier,
		hasher:    pkgcrypto.NewHasher(cfg.Hash),
		signKey:   cfg.SignKey,
		accessTTL: cfg.AccessTTL,
		resetTTL:  cfg.ResetTTL,
		now:       time.Now,
		log:       log,
	}
}

func authErr(code errs.AuthCode, err error) error { return errs.NewAuthError(code, err) }

// normalizeEmail lower-cases and validates a bare address.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	a, err := mail.ParseAddress(email)
	if err != nil || a.Address != email {
		return "", authErr(errs.CodeInvalidEmail, errs.ErrValidation)
	}
	return email, nil
}

func checkPassword(pw string) error {
	if len(pw) < MinPasswordLen {
		return authErr(errs.CodeWeakPassword, fmt.Errorf("%w: password shorter than %d", errs.ErrValidation, MinPasswordLen))
	}
	return nil
}

// SignUp validates input, stores a new account and issues a token.
func (s *AuthServiceImpl) SignUp(ctx context.Context, email, password, displayName string) (model.Tokens, model.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	if err := checkPassword(password); err != nil {
		return model.Tokens{}, model.User{}, err
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	hash, salt, err := s.hasher.Hash(password)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	a := &model.Account{
		ID:          uid,
		Email:       email,
		DisplayName: strings.TrimSpace(displayName),
		PwdHash:     hash,
		PwdSalt:     salt,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			return model.Tokens{}, model.User{}, authErr(errs.CodeEmailInUse, err)
		}
		return model.Tokens{}, model.User{}, err
	}
	s.log.Info("account created", zap.String("uid", uid.String()))
	tok, err := s.issueAccessToken(uid)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	return tok, a.User(), nil
}

// SignIn authenticates with rate limiting by (email, ip).
func (s *AuthServiceImpl) SignIn(ctx context.Context, email, password, ip string) (model.Tokens, model.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	ipHash := limiter.HashIP(ip)

	allowed, retry, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	if !allowed {
		return model.Tokens{}, model.User{}, authErr(errs.CodeTooManyRequests,
			fmt.Errorf("%w: retry in %s", errs.ErrRateLimited, retry.Round(time.Second)))
	}

	a, err := s.accounts.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return model.Tokens{}, model.User{}, s.failedAttempt(ctx, email, ipHash, errs.CodeUserNotFound)
	case err != nil:
		return model.Tokens{}, model.User{}, err
	case a.Disabled:
		return model.Tokens{}, model.User{}, authErr(errs.CodeUserDisabled, errs.ErrForbidden)
	case !s.hasher.Verify(password, a.PwdSalt, a.PwdHash):
		return model.Tokens{}, model.User{}, s.failedAttempt(ctx, email, ipHash, errs.CodeWrongPassword)
	}

	if err := s.lim.Success(ctx, email, ipHash); err != nil {
		s.log.Warn("limiter reset failed", zap.Error(err))
	}
	tok, err := s.issueAccessToken(a.ID)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	return tok, a.User(), nil
}

// failedAttempt records a failure and picks the code to report.
func (s *AuthServiceImpl) failedAttempt(ctx context.Context, email string, ipHash []byte, code errs.AuthCode) error {
	blocked, _, err := s.lim.Failure(ctx, email, ipHash)
	if err != nil {
		s.log.Warn("limiter failure not recorded", zap.Error(err))
	}
	if blocked {
		return authErr(errs.CodeTooManyRequests, errs.ErrRateLimited)
	}
	return authErr(code, errs.ErrUnauthorized)
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (s *AuthServiceImpl) issueAccessToken(uid uuid.UUID) (model.Tokens, error) {
	now := s.now()
	exp := now.Add(s.accessTTL)
	jti, err := uuid.NewV4()
	if err != nil {
		return model.Tokens{}, err
	}
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   uid.String(),
		ID:        jti.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: signed, ExpiresAt: exp}, nil
}

// ValidateToken parses and verifies an access token.
func (s *AuthServiceImpl) ValidateToken(token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, authErr(errs.CodeNullUser, errs.ErrUnauthorized)
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) { return s.signKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithLeeway(30*time.Second),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, authErr(errs.CodeUserTokenExpired, errs.ErrUnauthorized)
		}
		return uuid.Nil, authErr(errs.CodeInvalidUserToken, fmt.Errorf("%w: %v", errs.ErrUnauthorized, err))
	}
	uid, err := uuid.FromString(claims.Subject)
	if err != nil || uid == uuid.Nil {
		return uuid.Nil, authErr(errs.CodeInvalidUserToken, errs.ErrUnauthorized)
	}
	return uid, nil
}

// SignOut succeeds for any token that still denotes an existing account.
// Tokens are stateless; the client drops its copy.
func (s *AuthServiceImpl) SignOut(ctx context.Context, token string) error {
	uid, err := s.ValidateToken(token)
	if err != nil {
		return err
	}
	if _, err := s.Me(ctx, uid); err != nil {
		return err
	}
	return nil
}

// Me loads the principal for uid.
func (s *AuthServiceImpl) Me(ctx context.Context, uid uuid.UUID) (model.User, error) {
	a, err := s.accounts.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.User{}, authErr(errs.CodeUserNotFound, err)
		}
		return model.User{}, err
	}
	if a.Disabled {
		return model.User{}, authErr(errs.CodeUserDisabled, errs.ErrForbidden)
	}
	return a.User(), nil
}

// RequestPasswordReset stores a fresh token hash and hands the token to the notifier.
func (s *AuthServiceImpl) RequestPasswordReset(ctx context.Context, email string) error {
	if s.notifier == nil {
		return errs.ErrResetDisabled
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	a, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, errs.ErrNotFound) {
		s.log.Debug("reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}
	token, hash, err := pkgcrypto.NewResetToken()
	if err != nil {
		return err
	}
	exp := s.now().Add(s.resetTTL)
	if err := s.accounts.SetResetToken(ctx, a.ID, hash, exp); err != nil {
		return err
	}
	return s.notifier.SendPasswordReset(ctx, email, token, exp)
}

// ConfirmPasswordReset checks the token and replaces the password.
func (s *AuthServiceImpl) ConfirmPasswordReset(ctx context.Context, email, token, newPassword string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if err := checkPassword(newPassword); err != nil {
		return err
	}
	a, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, errs.ErrNotFound) {
		return authErr(errs.CodeInvalidResetCode, err)
	}
	if err != nil {
		return err
	}
	if !pkgcrypto.TokenMatches(token, a.ResetTokenHash) || !s.now().Before(a.ResetExpiresAt) {
		return authErr(errs.CodeInvalidResetCode, errs.ErrUnauthorized)
	}
	return s.setPassword(ctx, a.ID, newPassword)
}

// ChangePassword replaces the password of uid.
func (s *AuthServiceImpl) ChangePassword(ctx context.Context, uid uuid.UUID, newPassword string) error {
	if err := checkPassword(newPassword); err != nil {
		return err
	}
	if _, err := s.Me(ctx, uid); err != nil {
		return err
	}
	return s.setPassword(ctx, uid, newPassword)
}

func (s *AuthServiceImpl) setPassword(ctx context.Context, uid uuid.UUID, pw string) error {
	hash, salt, err := s.hasher.Hash(pw)
	if err != nil {
		return err
	}
	if err := s.accounts.SetPassword(ctx, uid, hash, salt); err != nil {
		return err
	}
	s.log.Info("password changed", zap.String("uid", uid.String()))
	return nil
}

package main

import (
	"context"
	"net/mail"
	"strings"
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/meal-planner/internal/errs"
	"github.com/and161185/meal-planner/internal/model"
	"github.com/and161185/meal-planner/internal/notify"
	"github.com/and161185/meal-planner/internal/session"
)

// localUser is the account --local mode starts signed in as.
const localUser = "local@localhost"

const minPasswordLen = 6

type localAccount struct {
	user     model.User
	password string
	reset    string
}

// localProvider is an in-process identity service for --local mode. All
// accounts share one in-memory store.
type localProvider struct {
	log *zap.Logger

	mu       sync.Mutex
	pubMu    sync.Mutex
	accounts map[string]*localAccount
	current  *model.User

	listeners notify.List[func(*model.User)]
}

var _ session.Provider = (*localProvider)(nil)

func newLocalProvider(log *zap.Logger) *localProvider {
	u := model.User{UID: "local", Email: localUser, DisplayName: "Local", EmailVerified: true}
	return &localProvider{
		log:      log.Named("local"),
		accounts: map[string]*localAccount{localUser: {user: u}},
		current:  &u,
	}
}

func normalizeEmail(email string) (string, error) {
	a, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return "", errs.NewAuthError(errs.CodeInvalidEmail, err)
	}
	return strings.ToLower(a.Address), nil
}

// announceLocked releases p.mu and tells listeners about u.
func (p *localProvider) announceLocked(u *model.User) {
	p.current = u
	fns := p.listeners.Snapshot()
	p.pubMu.Lock()
	p.mu.Unlock()
	defer p.pubMu.Unlock()
	for _, fn := range fns {
		fn(cloneUser(u))
	}
}

func (p *localProvider) SignUp(_ context.Context, email, password, displayName string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if len(password) < minPasswordLen {
		return errs.NewAuthError(errs.CodeWeakPassword, nil)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return err
	}
	p.mu.Lock()
	if _, ok := p.accounts[email]; ok {
		p.mu.Unlock()
		return errs.NewAuthError(errs.CodeEmailInUse, nil)
	}
	acc := &localAccount{user: model.User{UID: id.String(), Email: email, DisplayName: displayName}, password: password}
	p.accounts[email] = acc
	u := acc.user
	p.announceLocked(&u)
	return nil
}

func (p *localProvider) SignIn(_ context.Context, email, password string) (*model.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	acc, ok := p.accounts[email]
	switch {
	case !ok:
		p.mu.Unlock()
		return nil, errs.NewAuthError(errs.CodeUserNotFound, nil)
	case acc.password != password:
		p.mu.Unlock()
		return nil, errs.NewAuthError(errs.CodeWrongPassword, nil)
	}
	u := acc.user
	p.announceLocked(&u)
	return cloneUser(&u), nil
}

func (p *localProvider) SignOut(context.Context) error {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return errs.NewAuthError(errs.CodeNullUser, nil)
	}
	p.announceLocked(nil)
	return nil
}

func (p *localProvider) OnSessionChange(fn func(*model.User)) func() {
	p.mu.Lock()
	remove := p.listeners.Add(fn)
	u := cloneUser(p.current)
	p.pubMu.Lock()
	p.mu.Unlock()
	defer p.pubMu.Unlock()
	fn(u)
	return remove
}

// RequestPasswordReset logs the code instead of mailing it. Unknown emails
// succeed silently.
func (p *localProvider) RequestPasswordReset(_ context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	code, err := uuid.NewV4()
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if acc, ok := p.accounts[email]; ok {
		acc.reset = code.String()
		p.log.Info("password reset issued", zap.String("email", email), zap.String("token", acc.reset))
	}
	return nil
}

func (p *localProvider) ConfirmPasswordReset(_ context.Context, email, token, newPassword string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if len(newPassword) < minPasswordLen {
		return errs.NewAuthError(errs.CodeWeakPassword, nil)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	acc, ok := p.accounts[email]
	if !ok || acc.reset == "" || acc.reset != token {
		return errs.NewAuthError(errs.CodeInvalidResetCode, nil)
	}
	acc.password, acc.reset = newPassword, ""
	return nil
}

func (p *localProvider) ChangePassword(_ context.Context, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return errs.NewAuthError(errs.CodeWeakPassword, nil)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return errs.NewAuthError(errs.CodeNullUser, nil)
	}
	p.accounts[p.current.Email].password = newPassword
	return nil
}

func cloneUser(u *model.User) *model.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

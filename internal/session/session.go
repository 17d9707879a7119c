// Package session holds the signed-in principal and bridges identity
// provider notifications into it.
package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/meal-planner/internal/model"
	"github.com/and161185/meal-planner/internal/notify"
)

// Provider is the identity service behind a Session.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*model.User, error)
	SignOut(ctx context.Context) error
	// OnSessionChange calls fn with the current principal (nil when signed
	// out) every time it changes.
	OnSessionChange(fn func(*model.User)) (unsubscribe func())
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, email, token, newPassword string) error
	ChangePassword(ctx context.Context, newPassword string) error
}

// State is a snapshot of the session.
type State struct {
	User        *model.User
	Initialized bool
	Error       string
}

// IsAuthenticated reports whether a user is signed in.
func (s State) IsAuthenticated() bool { return s.User != nil }

// Session owns the current principal. Until the provider announces the first
// session it is uninitialized; afterwards it moves freely between signed in
// and signed out.
type Session struct {
	provider Provider
	log      *zap.Logger

	lifeMu sync.Mutex // serializes Start and Stop
	unsub  func()

	mu    sync.Mutex
	pubMu sync.Mutex
	state State

	watchers notify.List[func(State)]
}

// New returns an uninitialized session. Call Start to follow the provider.
func New(provider Provider, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{provider: provider, log: log.Named("session")}
}

// Start registers the single provider listener. Calling it again is a no-op.
func (s *Session) Start() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.unsub != nil {
		return
	}
	s.unsub = s.provider.OnSessionChange(s.RefreshUser)
}

// Stop removes the provider listener. Calling it again is a no-op.
func (s *Session) Stop() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.unsub == nil {
		return
	}
	s.unsub()
	s.unsub = nil
}

// Login signs in through the provider. The user itself arrives through the
// session-change notification, not from the call's result.
func (s *Session) Login(ctx context.Context, email, password string) error {
	if _, err := s.provider.SignIn(ctx, email, password); err != nil {
		return s.failed("login", loginMessage(email, err), err)
	}
	s.log.Debug("signed in", zap.String("email", email))
	s.setError("")
	return nil
}

// Logout signs out. The notification clears the user.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.provider.SignOut(ctx); err != nil {
		return s.failed("logout", logoutMessage(err), err)
	}
	s.setError("")
	return nil
}

// ForgotPassword asks the provider to send a reset code to email.
func (s *Session) ForgotPassword(ctx context.Context, email string) error {
	if err := s.provider.RequestPasswordReset(ctx, email); err != nil {
		return s.failed("forgot-password", passwordMessage(MsgForgotFailed, err), err)
	}
	return nil
}

// SetPassword changes the password of the signed-in user.
func (s *Session) SetPassword(ctx context.Context, password string) error {
	if err := s.provider.ChangePassword(ctx, password); err != nil {
		return s.failed("set-password", passwordMessage(MsgSetFailed, err), err)
	}
	return nil
}

// ResetPassword completes a reset started by ForgotPassword.
func (s *Session) ResetPassword(ctx context.Context, email, token, password string) error {
	if err := s.provider.ConfirmPasswordReset(ctx, email, token, password); err != nil {
		return s.failed("reset-password", passwordMessage(MsgResetFailed, err), err)
	}
	return nil
}

// RefreshUser replaces the current user. The first call marks the session
// initialized.
func (s *Session) RefreshUser(u *model.User) {
	s.mu.Lock()
	s.state.User = cloneUser(u)
	s.state.Initialized = true
	s.publishLocked()
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.User = cloneUser(st.User)
	return st
}

// User returns a copy of the signed-in user, or nil.
func (s *Session) User() *model.User { return s.State().User }

// IsAuthenticated reports whether a user is signed in.
func (s *Session) IsAuthenticated() bool { return s.State().IsAuthenticated() }

// Initialized reports whether the provider has announced a session yet.
func (s *Session) Initialized() bool { return s.State().Initialized }

// Watch registers fn for every state change.
func (s *Session) Watch(fn func(State)) (unsubscribe func()) {
	return s.watchers.Add(fn)
}

func (s *Session) failed(op, msg string, err error) error {
	s.log.Info("provider call failed", zap.String("op", op), zap.Error(err))
	s.setError(msg)
	return &Error{Op: op, Message: msg, Err: err}
}

func (s *Session) setError(msg string) {
	s.mu.Lock()
	if s.state.Error == msg {
		s.mu.Unlock()
		return
	}
	s.state.Error = msg
	s.publishLocked()
}

// publishLocked releases s.mu and notifies watchers in change order.
func (s *Session) publishLocked() {
	st := s.state
	st.User = cloneUser(st.User)
	s.pubMu.Lock()
	s.mu.Unlock()
	defer s.pubMu.Unlock()
	for _, fn := range s.watchers.Snapshot() {
		fn(st)
	}
}

func cloneUser(u *model.User) *model.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

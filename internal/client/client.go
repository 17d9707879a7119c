// Package client talks to the meal planner server. A Client is both the
// remote document store of the entity layer and the identity provider of
// a session.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	pb "github.com/and161185/meal-planner/gen/go/mealplanner/v1"
	"github.com/and161185/meal-planner/internal/convert"
	"github.com/and161185/meal-planner/internal/errs"
	"github.com/and161185/meal-planner/internal/model"
	"github.com/and161185/meal-planner/internal/notify"
	"github.com/and161185/meal-planner/internal/remote"
	"github.com/and161185/meal-planner/internal/session"
)

// Options tune a Client.
type Options struct {
	Store          *TokenStore   // nil keeps the token in memory only
	RequestTimeout time.Duration // per unary call; zero means none
	Secure         bool          // send the token only over TLS
	Log            *zap.Logger
}

// Client is a signed-in or signed-out connection to the server.
type Client struct {
	rpc     pb.PlannerClient
	store   *TokenStore
	timeout time.Duration
	secure  bool
	log     *zap.Logger

	mu    sync.Mutex
	pubMu sync.Mutex // orders session change delivery
	token string
	user  *model.User

	listeners notify.List[func(*model.User)]

	// watch retry pacing, replaced in tests
	backoff func() retry.Backoff
}

var (
	_ remote.Client    = (*Client)(nil)
	_ session.Provider = (*Client)(nil)
)

// New wraps a connection.
func New(cc grpc.ClientConnInterface, opts Options) *Client {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		rpc:     pb.NewPlannerClient(cc),
		store:   opts.Store,
		timeout: opts.RequestTimeout,
		secure:  opts.Secure,
		log:     log.Named("client"),
		backoff: func() retry.Backoff {
			return retry.WithCappedDuration(30*time.Second, retry.WithJitterPercent(10, retry.NewExponential(500*time.Millisecond)))
		},
	}
}

func (c *Client) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// auth returns the call options carrying the current token, if any.
func (c *Client) auth() []grpc.CallOption {
	c.mu.Lock()
	tok := c.token
	c.mu.Unlock()
	if tok == "" {
		return nil
	}
	return []grpc.CallOption{grpc.PerRPCCredentials(bearerCreds{token: tok, secure: c.secure})}
}

// --- session ---

// OnSessionChange registers fn and calls it right away with the current
// principal, then on every sign-in and sign-out.
func (c *Client) OnSessionChange(fn func(*model.User)) func() {
	c.mu.Lock()
	remove := c.listeners.Add(fn)
	u := cloneUser(c.user)
	c.pubMu.Lock()
	c.mu.Unlock()
	defer c.pubMu.Unlock()
	fn(u)
	return remove
}

// setSession replaces token and principal and announces the change.
func (c *Client) setSession(tok string, u *model.User) {
	c.mu.Lock()
	c.token, c.user = tok, cloneUser(u)
	snap := cloneUser(u)
	fns := c.listeners.Snapshot()
	c.pubMu.Lock()
	c.mu.Unlock()
	defer c.pubMu.Unlock()
	for _, fn := range fns {
		fn(cloneUser(snap))
	}
}

// User returns the signed-in principal or nil.
func (c *Client) User() *model.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneUser(c.user)
}

// Restore reuses the stored token when the server still accepts it. A
// rejected token is dropped from the store.
func (c *Client) Restore(ctx context.Context) (*model.User, error) {
	tok, stored, err := c.store.Load()
	if err != nil {
		if errors.Is(err, ErrNoToken) {
			return nil, nil
		}
		return nil, err
	}
	c.mu.Lock()
	c.token = tok.AccessToken
	c.mu.Unlock()

	u, err := c.Me(ctx)
	if err != nil {
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
		if errors.Is(err, errs.ErrUnauthorized) || errors.Is(err, errs.ErrForbidden) {
			c.log.Debug("stored token rejected", zap.String("uid", stored.UID), zap.Error(err))
			return nil, c.store.Clear()
		}
		return nil, err
	}
	c.setSession(tok.AccessToken, &u)
	return &u, nil
}

func (c *Client) signedIn(resp *structpb.Struct) (*model.User, error) {
	tok, u, err := convert.FromStructSession(resp)
	if err != nil {
		return nil, err
	}
	if err := c.store.Save(tok, u); err != nil {
		c.log.Warn("token not persisted", zap.Error(err))
	}
	c.setSession(tok.AccessToken, &u)
	return &u, nil
}

// SignUp creates an account and signs it in.
func (c *Client) SignUp(ctx context.Context, email, password, displayName string) (*model.User, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	resp, err := c.rpc.SignUp(ctx, convert.Strings(map[string]string{
		convert.KeyEmail: email, convert.KeyPassword: password, convert.KeyDisplayName: displayName,
	}))
	if err != nil {
		return nil, fromStatus(err)
	}
	return c.signedIn(resp)
}

// SignIn authenticates and announces the new principal.
func (c *Client) SignIn(ctx context.Context, email, password string) (*model.User, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	resp, err := c.rpc.SignIn(ctx, convert.Strings(map[string]string{
		convert.KeyEmail: email, convert.KeyPassword: password,
	}))
	if err != nil {
		return nil, fromStatus(err)
	}
	return c.signedIn(resp)
}

// SignOut ends the session. A token the server no longer accepts is dropped
// locally as well, and the rejection is still returned.
func (c *Client) SignOut(ctx context.Context) error {
	opts := c.auth()
	if opts == nil {
		return errs.NewAuthError(errs.CodeNullUser, errs.ErrUnauthorized)
	}
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	_, err := c.rpc.SignOut(ctx, &emptypb.Empty{}, opts...)
	err = fromStatus(err)
	if err != nil && !errors.Is(err, errs.ErrUnauthorized) {
		return err
	}
	if cerr := c.store.Clear(); cerr != nil {
		c.log.Warn("token not removed", zap.Error(cerr))
	}
	c.setSession("", nil)
	return err
}

// Me asks the server for the current principal.
func (c *Client) Me(ctx context.Context) (model.User, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	resp, err := c.rpc.Me(ctx, &emptypb.Empty{}, c.auth()...)
	if err != nil {
		return model.User{}, fromStatus(err)
	}
	return convert.FromStructUser(resp), nil
}

// RequestPasswordReset asks for a reset token to be sent to email.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	_, err := c.rpc.RequestPasswordReset(ctx, convert.Strings(map[string]string{convert.KeyEmail: email}))
	return fromStatus(err)
}

// ConfirmPasswordReset sets a new password with a reset token.
func (c *Client) ConfirmPasswordReset(ctx context.Context, email, token, newPassword string) error {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	_, err := c.rpc.ConfirmPasswordReset(ctx, convert.Strings(map[string]string{
		convert.KeyEmail: email, convert.KeyToken: token, convert.KeyPassword: newPassword,
	}))
	return fromStatus(err)
}

// ChangePassword sets a new password for the signed-in user.
func (c *Client) ChangePassword(ctx context.Context, newPassword string) error {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	_, err := c.rpc.ChangePassword(ctx, convert.Strings(map[string]string{convert.KeyPassword: newPassword}), c.auth()...)
	return fromStatus(err)
}

// --- documents ---

func documentRequest(collection string, d model.Document) (*structpb.Struct, error) {
	req, err := convert.ToStructDocument(d)
	if err != nil {
		return nil, err
	}
	req.Fields[convert.KeyCollection] = structpb.NewStringValue(collection)
	return req, nil
}

func (c *Client) document(ctx context.Context, call func(context.Context, *structpb.Struct, ...grpc.CallOption) (*structpb.Struct, error), collection string, d model.Document) (model.Document, error) {
	req, err := documentRequest(collection, d)
	if err != nil {
		return model.Document{}, err
	}
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	resp, err := call(ctx, req, c.auth()...)
	if err != nil {
		return model.Document{}, fromStatus(err)
	}
	return convert.FromStructDocument(resp)
}

// Create stores body in collection under a server generated id.
func (c *Client) Create(ctx context.Context, collection string, body json.RawMessage) (model.Document, error) {
	return c.document(ctx, c.rpc.CreateDocument, collection, model.Document{Body: body})
}

// Update replaces the body of doc.
func (c *Client) Update(ctx context.Context, collection string, doc model.Document) (model.Document, error) {
	return c.document(ctx, c.rpc.UpdateDocument, collection, doc)
}

// Delete removes doc.
func (c *Client) Delete(ctx context.Context, collection string, doc model.Document) (model.Document, error) {
	return c.document(ctx, c.rpc.DeleteDocument, collection, model.Document{ID: doc.ID})
}

// permanent reports stream failures a retry cannot fix.
func permanent(err error) bool {
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied, codes.InvalidArgument, codes.Canceled:
		return true
	}
	return false
}

// Subscribe opens a watch on path and delivers the first snapshot before it
// returns. Later snapshots arrive from a background goroutine; a broken
// stream is reopened with backoff. No snapshot is delivered once the
// returned function has returned, so onSnapshot must not call it.
func (c *Client) Subscribe(ctx context.Context, path string, onSnapshot func([]model.Document)) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	opts := c.auth()
	req := convert.Strings(map[string]string{convert.KeyPath: path})

	var (
		dmu     sync.Mutex
		stopped bool
	)
	deliver := func(msg *structpb.Struct) error {
		docs, err := convert.FromStructDocuments(msg)
		if err != nil {
			return err
		}
		dmu.Lock()
		defer dmu.Unlock()
		if !stopped {
			onSnapshot(docs)
		}
		return nil
	}

	open := func() (grpc.ServerStreamingClient[structpb.Struct], *structpb.Struct, error) {
		st, err := c.rpc.Watch(sctx, req, opts...)
		if err != nil {
			return nil, nil, err
		}
		first, err := st.Recv()
		if err != nil {
			return nil, nil, err
		}
		return st, first, nil
	}

	// the caller's ctx bounds the first snapshot only; it is delivered here
	// so nothing reaches onSnapshot when Subscribe fails
	type opened struct {
		st    grpc.ServerStreamingClient[structpb.Struct]
		first *structpb.Struct
		err   error
	}
	ch := make(chan opened, 1)
	go func() {
		st, first, err := open()
		ch <- opened{st, first, err}
	}()
	var st grpc.ServerStreamingClient[structpb.Struct]
	select {
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	case o := <-ch:
		if o.err != nil {
			cancel()
			return nil, fromStatus(o.err)
		}
		if err := deliver(o.first); err != nil {
			cancel()
			return nil, err
		}
		st = o.st
	}

	go func() {
		for {
			err := c.pump(st, deliver)
			if sctx.Err() != nil {
				return
			}
			if permanent(err) {
				c.log.Warn("watch ended", zap.String("path", path), zap.Error(err))
				return
			}
			c.log.Info("watch interrupted, reopening", zap.String("path", path), zap.Error(err))
			err = retry.Do(sctx, c.backoff(), func(context.Context) error {
				s, first, err := open()
				if err != nil {
					if permanent(err) {
						return err
					}
					return retry.RetryableError(err)
				}
				st = s
				return deliver(first)
			})
			if err != nil {
				if sctx.Err() == nil {
					c.log.Warn("watch abandoned", zap.String("path", path), zap.Error(err))
				}
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			dmu.Lock()
			stopped = true
			dmu.Unlock()
		})
	}, nil
}

func (c *Client) pump(st grpc.ServerStreamingClient[structpb.Struct], deliver func(*structpb.Struct) error) error {
	for {
		msg, err := st.Recv()
		if err != nil {
			return err
		}
		if err := deliver(msg); err != nil {
			c.log.Warn("undecodable snapshot", zap.Error(err))
		}
	}
}

func cloneUser(u *model.User) *model.User {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}

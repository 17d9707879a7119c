package grpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	pb "github.com/and161185/meal-planner/gen/go/mealplanner/v1"
	"github.com/and161185/meal-planner/internal/convert"
	"github.com/and161185/meal-planner/internal/errs"
	"github.com/and161185/meal-planner/internal/model"
	"github.com/and161185/meal-planner/internal/remote"
	"github.com/and161185/meal-planner/internal/service"
)

type fakeAuth struct {
	*service.AuthServiceImpl // token validation only
	id                       uuid.UUID
	key                      []byte
	signInErr                error
	lastIP                   string
}

var _ service.AuthService = (*fakeAuth)(nil)

func (f *fakeAuth) session(t time.Time) model.Tokens {
	claims := jwt.RegisteredClaims{
		Issuer:    "mealplanner",
		Subject:   f.id.String(),
		IssuedAt:  jwt.NewNumericDate(t),
		ExpiresAt: jwt.NewNumericDate(t.Add(time.Hour)),
	}
	s, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(f.key)
	return model.Tokens{AccessToken: s, ExpiresAt: t.Add(time.Hour)}
}

func (f *fakeAuth) user() model.User { return model.User{UID: f.id.String(), Email: "cook@example.com"} }

func (f *fakeAuth) SignUp(context.Context, string, string, string) (model.Tokens, model.User, error) {
	return f.session(time.Now()), f.user(), nil
}
func (f *fakeAuth) SignIn(_ context.Context, _, _, ip string) (model.Tokens, model.User, error) {
	f.lastIP = ip
	if f.signInErr != nil {
		return model.Tokens{}, model.User{}, f.signInErr
	}
	return f.session(time.Now()), f.user(), nil
}
func (f *fakeAuth) SignOut(context.Context, string) error              { return nil }
func (f *fakeAuth) Me(context.Context, uuid.UUID) (model.User, error) { return f.user(), nil }
func (f *fakeAuth) RequestPasswordReset(context.Context, string) error {
	return nil
}
func (f *fakeAuth) ConfirmPasswordReset(context.Context, string, string, string) error {
	return errs.NewAuthError(errs.CodeInvalidResetCode, errs.ErrUnauthorized)
}
func (f *fakeAuth) ChangePassword(context.Context, uuid.UUID, string) error {
	return errs.NewAuthError(errs.CodeWeakPassword, errs.ErrValidation)
}

type fakeDocs struct {
	mu   sync.Mutex
	docs []model.Document
	subs []func([]model.Document)
}

var _ service.DocumentService = (*fakeDocs)(nil)

func (f *fakeDocs) snapshotLocked() []model.Document {
	return append([]model.Document(nil), f.docs...)
}

func (f *fakeDocs) notifyLocked() {
	for _, fn := range f.subs {
		if fn != nil {
			fn(f.snapshotLocked())
		}
	}
}

func (f *fakeDocs) Create(_ context.Context, _ uuid.UUID, _ string, body json.RawMessage) (model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	d := model.Document{ID: uuid.Must(uuid.NewV4()).String(), Created: now, Updated: now, Body: body}
	f.docs = append(f.docs, d)
	f.notifyLocked()
	return d, nil
}

func (f *fakeDocs) Update(_ context.Context, _ uuid.UUID, _ string, doc model.Document) (model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.docs {
		if f.docs[i].ID == doc.ID {
			f.docs[i].Body, f.docs[i].Updated = doc.Body, time.Now().UTC()
			f.notifyLocked()
			return f.docs[i], nil
		}
	}
	return model.Document{}, errs.ErrNotFound
}

func (f *fakeDocs) Delete(_ context.Context, _ uuid.UUID, _, id string) (model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, d := range f.docs {
		if d.ID == id {
			f.docs = append(f.docs[:i:i], f.docs[i+1:]...)
			f.notifyLocked()
			return d, nil
		}
	}
	return model.Document{}, errs.ErrNotFound
}

func (f *fakeDocs) Snapshot(context.Context, uuid.UUID, string) ([]model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked(), nil
}

func (f *fakeDocs) Watch(_ context.Context, _ uuid.UUID, collection string, fn func([]model.Document)) (func(), error) {
	if collection == "broken" {
		return nil, errors.New("db down")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.subs)
	f.subs = append(f.subs, fn)
	fn(f.snapshotLocked())
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.subs[i] = nil
	}, nil
}

const bufSize = 1 << 20

func startBufGRPC(t *testing.T, srv *Server, v TokenValidator) (*grpc.ClientConn, func()) {
	t.Helper()
	lis := bufconn.Listen(bufSize)
	log := zaptest.NewLogger(t)
	m := NewMetrics(prometheus.NewRegistry())
	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(RecoverUnary(log), LoggingUnary(log), m.Unary(), AuthUnary(v)),
		grpc.ChainStreamInterceptor(RecoverStream(log), LoggingStream(log), m.Stream(), AuthStream(v)),
	)
	pb.RegisterPlannerServer(gs, srv)
	go func() { _ = gs.Serve(lis) }()
	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	//nolint:staticcheck // DialContext is supported through 1.x; migrate when grpc.NewClient is stable
	cc, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	stop := func() { _ = cc.Close(); gs.Stop(); _ = lis.Close() }
	return cc, stop
}

func newTestServer(t *testing.T) (pb.PlannerClient, *fakeAuth, func()) {
	t.Helper()
	key := []byte("test-secret")
	a := &fakeAuth{
		AuthServiceImpl: service.NewAuthService(nil, nil, nil, service.AuthConfig{SignKey: key}, nil),
		id:              uuid.Must(uuid.NewV4()),
		key:             key,
	}
	srv := New(a, &fakeDocs{}, zaptest.NewLogger(t))
	cc, stop := startBufGRPC(t, srv, a)
	return pb.NewPlannerClient(cc), a, stop
}

func outAuth(tok string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+tok)
}

func signIn(t *testing.T, cl pb.PlannerClient) (model.Tokens, model.User) {
	t.Helper()
	resp, err := cl.SignIn(context.Background(), convert.Strings(map[string]string{
		convert.KeyEmail: "cook@example.com", convert.KeyPassword: "secret1",
	}))
	require.NoError(t, err)
	tok, u, err := convert.FromStructSession(resp)
	require.NoError(t, err)
	return tok, u
}

func TestServer_E2E_AuthFlow(t *testing.T) {
	t.Parallel()
	cl, a, stop := newTestServer(t)
	defer stop()

	tok, u := signIn(t, cl)
	require.Equal(t, a.id.String(), u.UID)
	require.NotEmpty(t, a.lastIP)

	_, err := cl.Me(context.Background(), &emptypb.Empty{})
	requireStatus(t, err, codes.Unauthenticated, "auth/null-user")

	me, err := cl.Me(outAuth(tok.AccessToken), &emptypb.Empty{})
	require.NoError(t, err)
	require.Equal(t, "cook@example.com", convert.FromStructUser(me).Email)

	_, err = cl.SignOut(outAuth(tok.AccessToken), &emptypb.Empty{})
	require.NoError(t, err)

	_, err = cl.ChangePassword(outAuth(tok.AccessToken), convert.Strings(map[string]string{convert.KeyPassword: "x"}))
	requireStatus(t, err, codes.InvalidArgument, "auth/weak-password")

	_, err = cl.RequestPasswordReset(context.Background(), convert.Strings(map[string]string{convert.KeyEmail: "a@b.c"}))
	require.NoError(t, err)
	_, err = cl.ConfirmPasswordReset(context.Background(), convert.Strings(map[string]string{convert.KeyToken: "bad"}))
	requireStatus(t, err, codes.InvalidArgument, "auth/invalid-action-code")
}

func TestServer_E2E_SignInErrorsCarryCode(t *testing.T) {
	t.Parallel()
	cl, a, stop := newTestServer(t)
	defer stop()

	cases := []struct {
		err  error
		code codes.Code
		msg  string
	}{
		{errs.NewAuthError(errs.CodeWrongPassword, errs.ErrUnauthorized), codes.Unauthenticated, "auth/wrong-password"},
		{errs.NewAuthError(errs.CodeUserDisabled, errs.ErrForbidden), codes.PermissionDenied, "auth/user-disabled"},
		{errs.NewAuthError(errs.CodeTooManyRequests, errs.ErrRateLimited), codes.ResourceExhausted, "auth/too-many-requests"},
		{errors.New("db down"), codes.Internal, "internal"},
	}
	for _, c := range cases {
		a.signInErr = c.err
		_, err := cl.SignIn(context.Background(), convert.Strings(map[string]string{convert.KeyEmail: "x@y.z"}))
		requireStatus(t, err, c.code, c.msg)
	}
}

func TestServer_E2E_Documents(t *testing.T) {
	t.Parallel()
	cl, _, stop := newTestServer(t)
	defer stop()
	tok, _ := signIn(t, cl)
	ctx := outAuth(tok.AccessToken)

	body, err := convert.FromJSON(json.RawMessage(`{"title":"Soup"}`))
	require.NoError(t, err)
	created, err := cl.CreateDocument(ctx, &structpb.Struct{Fields: map[string]*structpb.Value{
		convert.KeyCollection: structpb.NewStringValue("recipes"),
		convert.KeyBody:       structpb.NewStructValue(body),
	}})
	require.NoError(t, err)
	d, err := convert.FromStructDocument(created)
	require.NoError(t, err)
	require.NotEmpty(t, d.ID)
	require.JSONEq(t, `{"title":"Soup"}`, string(d.Body))

	d.Body = json.RawMessage(`{"title":"Stew"}`)
	req, err := convert.ToStructDocument(d)
	require.NoError(t, err)
	req.Fields[convert.KeyCollection] = structpb.NewStringValue("recipes")
	updated, err := cl.UpdateDocument(ctx, req)
	require.NoError(t, err)
	require.Equal(t, "Stew", updated.GetFields()[convert.KeyBody].GetStructValue().GetFields()["title"].GetStringValue())

	del := convert.Strings(map[string]string{convert.KeyCollection: "recipes", convert.KeyID: d.ID})
	_, err = cl.DeleteDocument(ctx, del)
	require.NoError(t, err)
	_, err = cl.DeleteDocument(ctx, del)
	requireStatus(t, err, codes.NotFound, "")

	_, err = cl.CreateDocument(context.Background(), del)
	requireStatus(t, err, codes.Unauthenticated, "")
}

func TestServer_E2E_Watch(t *testing.T) {
	t.Parallel()
	cl, a, stop := newTestServer(t)
	defer stop()
	tok, _ := signIn(t, cl)

	ctx, cancel := context.WithTimeout(outAuth(tok.AccessToken), 5*time.Second)
	defer cancel()

	path := convert.Strings(map[string]string{convert.KeyPath: remote.UserPath(a.id.String(), "recipes")})
	st, err := cl.Watch(ctx, path)
	require.NoError(t, err)

	first, err := st.Recv()
	require.NoError(t, err)
	docs, err := convert.FromStructDocuments(first)
	require.NoError(t, err)
	require.Empty(t, docs)

	_, err = cl.CreateDocument(ctx, &structpb.Struct{Fields: map[string]*structpb.Value{
		convert.KeyCollection: structpb.NewStringValue("recipes"),
		convert.KeyBody:       structpb.NewStructValue(&structpb.Struct{}),
	}})
	require.NoError(t, err)

	next, err := st.Recv()
	require.NoError(t, err)
	docs, err = convert.FromStructDocuments(next)
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestServer_E2E_WatchRejects(t *testing.T) {
	t.Parallel()
	cl, a, stop := newTestServer(t)
	defer stop()
	tok, _ := signIn(t, cl)
	ctx := outAuth(tok.AccessToken)

	recvErr := func(path string) error {
		st, err := cl.Watch(ctx, convert.Strings(map[string]string{convert.KeyPath: path}))
		if err != nil {
			return err
		}
		_, err = st.Recv()
		return err
	}

	requireStatus(t, recvErr(remote.UserPath(uuid.Must(uuid.NewV4()).String(), "recipes")), codes.PermissionDenied, "")
	requireStatus(t, recvErr("recipes"), codes.InvalidArgument, "")
	requireStatus(t, recvErr(remote.UserPath(a.id.String(), "broken")), codes.Internal, "")

	st, err := cl.Watch(context.Background(), convert.Strings(map[string]string{convert.KeyPath: "users/x/y"}))
	require.NoError(t, err)
	_, err = st.Recv()
	requireStatus(t, err, codes.Unauthenticated, "auth/null-user")
}

func TestToStatus(t *testing.T) {
	t.Parallel()

	require.NoError(t, toStatus(nil))
	cases := []struct {
		err  error
		code codes.Code
	}{
		{errs.NewAuthError(errs.CodeEmailInUse, errs.ErrAlreadyExists), codes.AlreadyExists},
		{errs.NewAuthError(errs.CodeInvalidEmail, errs.ErrValidation), codes.InvalidArgument},
		{errs.NewAuthError(errs.CodeUnknown, errs.ErrNotFound), codes.NotFound},
		{errs.ErrNotFound, codes.NotFound},
		{errs.ErrValidation, codes.InvalidArgument},
		{errs.ErrForbidden, codes.PermissionDenied},
		{errs.ErrUnauthorized, codes.Unauthenticated},
		{errs.ErrRateLimited, codes.ResourceExhausted},
		{errs.ErrResetDisabled, codes.Unimplemented},
		{context.Canceled, codes.Canceled},
		{errors.New("boom"), codes.Internal},
	}
	for _, c := range cases {
		requireStatus(t, toStatus(c.err), c.code, "")
	}
}

func TestAdminRouter(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	_, err := m.Unary()(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/mealplanner.v1.Planner/Me"},
		func(context.Context, any) (any, error) { return nil, nil })
	require.NoError(t, err)

	healthy := true
	r := NewAdminRouter(reg, func(context.Context) error {
		if !healthy {
			return errors.New("db down")
		}
		return nil
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	healthy = false
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "mealplanner_grpc_requests_total"))
}

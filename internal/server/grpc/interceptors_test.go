package grpcserver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	pb "github.com/and161185/meal-planner/gen/go/mealplanner/v1"
)

type fakeAddr struct{}

func (fakeAddr) Network() string { return "tcp" }
func (fakeAddr) String() string  { return "127.0.0.1:12345" }

func observed(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}

func TestLoggingUnary_RecordsCallMetadata(t *testing.T) {
	t.Parallel()

	log, logs := observed(zap.InfoLevel)
	ic := LoggingUnary(log)
	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: fakeAddr{}})
	info := &grpc.UnaryServerInfo{FullMethod: pb.Planner_CreateDocument_FullMethodName}

	resp, err := ic(ctx, "req", info, func(context.Context, any) (any, error) { return "ok", nil })
	require.NoError(t, err)
	require.Equal(t, "ok", resp)

	notFound := status.Error(codes.NotFound, "recipes/1: not found")
	_, err = ic(ctx, "req", info, func(context.Context, any) (any, error) { return nil, notFound })
	require.Equal(t, notFound, err)

	entries := logs.FilterMessage("grpc").AllUntimed()
	require.Len(t, entries, 2)
	for i, code := range []string{"OK", "NotFound"} {
		fields := entries[i].ContextMap()
		require.Equal(t, pb.Planner_CreateDocument_FullMethodName, fields["method"])
		require.Equal(t, code, fields["code"])
		require.Equal(t, "127.0.0.1:12345", fields["peer"])
		require.NotContains(t, fields, "req")
	}
}

func TestLoggingUnary_DurationCoversHandler(t *testing.T) {
	t.Parallel()

	log, logs := observed(zap.InfoLevel)
	ic := LoggingUnary(log)
	info := &grpc.UnaryServerInfo{FullMethod: pb.Planner_Me_FullMethodName}

	_, err := ic(context.Background(), nil, info, func(context.Context, any) (any, error) {
		time.Sleep(5 * time.Millisecond)
		return nil, nil
	})
	require.NoError(t, err)

	entries := logs.AllUntimed()
	require.Len(t, entries, 1)
	dur, ok := entries[0].ContextMap()["dur"].(time.Duration)
	require.True(t, ok)
	require.GreaterOrEqual(t, dur, 5*time.Millisecond)
	require.Equal(t, "", entries[0].ContextMap()["peer"])
}

func TestRecoverUnary(t *testing.T) {
	t.Parallel()

	log, logs := observed(zap.ErrorLevel)
	ic := RecoverUnary(log)
	info := &grpc.UnaryServerInfo{FullMethod: pb.Planner_UpdateDocument_FullMethodName}

	_, err := ic(context.Background(), nil, info, func(context.Context, any) (any, error) {
		panic("nil map write")
	})
	requireStatus(t, err, codes.Internal, "internal")

	entries := logs.FilterMessage("panic").AllUntimed()
	require.Len(t, entries, 1)
	require.Equal(t, "nil map write", entries[0].ContextMap()["reason"])
	require.Equal(t, pb.Planner_UpdateDocument_FullMethodName, entries[0].ContextMap()["method"])

	resp, err := ic(context.Background(), nil, info, func(context.Context, any) (any, error) { return 42, nil })
	require.NoError(t, err)
	require.Equal(t, 42, resp)

	want := errors.New("boom")
	_, err = ic(context.Background(), nil, info, func(context.Context, any) (any, error) { return nil, want })
	require.ErrorIs(t, err, want)
	require.Equal(t, 1, logs.Len())
}

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *fakeStream) Context() context.Context { return s.ctx }

func TestAuthUnary_PublicAndProtected(t *testing.T) {
	t.Parallel()

	key := []byte("secret")
	ic := AuthUnary(validator(key))
	var seen uuid.UUID
	h := func(ctx context.Context, req any) (any, error) {
		seen, _ = UserIDFromCtx(ctx)
		return "ok", nil
	}

	// public methods pass without a token
	_, err := ic(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/mealplanner.v1.Planner/SignIn"}, h)
	require.NoError(t, err)
	require.Equal(t, uuid.Nil, seen)

	info := &grpc.UnaryServerInfo{FullMethod: "/mealplanner.v1.Planner/Me"}
	_, err = ic(context.Background(), nil, info, h)
	requireStatus(t, err, codes.Unauthenticated, "auth/null-user")

	sub := uuid.Must(uuid.NewV4())
	j := makeJWT(t, sub.String(), key, jwt.SigningMethodHS256, time.Now().UTC(), time.Hour)
	_, err = ic(ctxWithAuth(j), nil, info, h)
	require.NoError(t, err)
	require.Equal(t, sub, seen)
}

func TestAuthStream_WrapsContext(t *testing.T) {
	t.Parallel()

	key := []byte("secret")
	ic := AuthStream(validator(key))
	info := &grpc.StreamServerInfo{FullMethod: "/mealplanner.v1.Planner/Watch", IsServerStream: true}

	called := false
	err := ic(nil, &fakeStream{ctx: context.Background()}, info, func(any, grpc.ServerStream) error {
		called = true
		return nil
	})
	requireStatus(t, err, codes.Unauthenticated, "auth/null-user")
	require.False(t, called)

	sub := uuid.Must(uuid.NewV4())
	j := makeJWT(t, sub.String(), key, jwt.SigningMethodHS256, time.Now().UTC(), time.Hour)
	err = ic(nil, &fakeStream{ctx: ctxWithAuth(j)}, info, func(_ any, ss grpc.ServerStream) error {
		id, ok := UserIDFromCtx(ss.Context())
		require.True(t, ok)
		require.Equal(t, sub, id)
		return nil
	})
	require.NoError(t, err)
}

func TestRecoverStream_CatchesPanic(t *testing.T) {
	t.Parallel()

	ic := RecoverStream(zaptest.NewLogger(t))
	info := &grpc.StreamServerInfo{FullMethod: "/mealplanner.v1.Planner/Watch"}
	err := ic(nil, &fakeStream{ctx: context.Background()}, info, func(any, grpc.ServerStream) error {
		panic("oh no")
	})
	requireStatus(t, err, codes.Internal, "internal")
}

func TestLoggingStream_ReturnsHandlerError(t *testing.T) {
	t.Parallel()

	ic := LoggingStream(zaptest.NewLogger(t))
	info := &grpc.StreamServerInfo{FullMethod: "/mealplanner.v1.Planner/Watch"}
	want := status.Error(codes.NotFound, "gone")
	err := ic(nil, &fakeStream{ctx: peer.NewContext(context.Background(), &peer.Peer{Addr: fakeAddr{}})}, info,
		func(any, grpc.ServerStream) error { return want })
	require.ErrorIs(t, err, want)
}

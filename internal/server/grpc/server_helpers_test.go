package grpcserver

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/and161185/meal-planner/internal/service"
)

func makeJWT(t *testing.T, sub string, key []byte, method jwt.SigningMethod, iat time.Time, ttl time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Issuer:    "mealplanner",
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(iat),
		NotBefore: jwt.NewNumericDate(iat),
		ExpiresAt: jwt.NewNumericDate(iat.Add(ttl)),
	}
	token := jwt.NewWithClaims(method, claims)
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return s
}

func ctxWithAuth(token string) context.Context {
	md := metadata.New(map[string]string{
		"authorization": "Bearer " + token,
	})
	return metadata.NewIncomingContext(context.Background(), md)
}

func validator(key []byte) TokenValidator {
	return service.NewAuthService(nil, nil, nil, service.AuthConfig{SignKey: key}, nil)
}

func requireStatus(t *testing.T, err error, code codes.Code, msg string) {
	t.Helper()
	st, ok := status.FromError(err)
	require.True(t, ok, "not a status: %v", err)
	require.Equal(t, code, st.Code())
	if msg != "" {
		require.Equal(t, msg, st.Message())
	}
}

func Test_bearerTokenFromMD_OkAndErrors(t *testing.T) {
	t.Parallel()

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer abc.def.ghi"))
	got, err := bearerTokenFromMD(ctx)
	if err != nil || got != "abc.def.ghi" {
		t.Fatalf("ok: got=%q err=%v", got, err)
	}

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Basic foo"))
	if _, err := bearerTokenFromMD(ctx); err == nil {
		t.Fatalf("want error on non-bearer")
	}

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer   "))
	if _, err := bearerTokenFromMD(ctx); err == nil {
		t.Fatalf("want error on empty token")
	}

	if _, err := bearerTokenFromMD(context.Background()); err == nil {
		t.Fatalf("want error on no metadata")
	}
}

func Test_authenticate_Valid(t *testing.T) {
	t.Parallel()

	key := []byte("secret")
	sub := uuid.Must(uuid.NewV4()).String()
	j := makeJWT(t, sub, key, jwt.SigningMethodHS256, time.Now().UTC().Add(-time.Minute), 10*time.Minute)

	ctx, err := authenticate(ctxWithAuth(j), validator(key))
	require.NoError(t, err)
	id, ok := UserIDFromCtx(ctx)
	require.True(t, ok)
	require.Equal(t, sub, id.String())
	require.Equal(t, j, tokenFromCtx(ctx))
}

func Test_authenticate_NoMetadata(t *testing.T) {
	t.Parallel()

	_, err := authenticate(context.Background(), validator([]byte("secret")))
	requireStatus(t, err, codes.Unauthenticated, "auth/null-user")
}

func Test_authenticate_Expired(t *testing.T) {
	t.Parallel()

	key := []byte("secret")
	sub := uuid.Must(uuid.NewV4()).String()
	j := makeJWT(t, sub, key, jwt.SigningMethodHS256, time.Now().UTC().Add(-2*time.Hour), time.Hour)

	_, err := authenticate(ctxWithAuth(j), validator(key))
	requireStatus(t, err, codes.Unauthenticated, "auth/user-token-expired")
}

func Test_authenticate_Rejects(t *testing.T) {
	t.Parallel()

	key := []byte("secret")
	sub := uuid.Must(uuid.NewV4()).String()
	now := time.Now().UTC()

	cases := map[string]string{
		"bad subject": makeJWT(t, "not-a-uuid", key, jwt.SigningMethodHS256, now, time.Hour),
		"wrong alg":   makeJWT(t, sub, key, jwt.SigningMethodHS384, now, time.Hour),
		"wrong key":   makeJWT(t, sub, []byte("other"), jwt.SigningMethodHS256, now, time.Hour),
		"not a jwt":   "this-is-not-a-jwt",
	}
	for name, tok := range cases {
		tok := tok
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := authenticate(ctxWithAuth(tok), validator(key))
			requireStatus(t, err, codes.Unauthenticated, "auth/invalid-user-token")
		})
	}
}

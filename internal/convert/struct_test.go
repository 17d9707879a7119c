package convert

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/meal-planner/internal/model"
)

func TestDocument_Roundtrip(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 3, 4, 5, 6, 7, 890, time.UTC)
	d := model.Document{
		ID:      "6f1cbe8e-b2e7-4a3b-9f6e-2a2c0f2f9c11",
		Created: created,
		Updated: created.Add(time.Minute),
		Body:    json.RawMessage(`{"title":"Soup","isSoftDeleted":false,"n":2}`),
	}
	s, err := ToStructDocument(d)
	require.NoError(t, err)
	require.Equal(t, "2024-03-04T05:06:07.00000089Z", String(s, KeyCreated))

	got, err := FromStructDocument(s)
	require.NoError(t, err)
	require.Equal(t, d.ID, got.ID)
	require.True(t, d.Created.Equal(got.Created))
	require.True(t, d.Updated.Equal(got.Updated))
	require.JSONEq(t, string(d.Body), string(got.Body))
}

func TestDocument_Errors(t *testing.T) {
	t.Parallel()

	_, err := ToStructDocument(model.Document{Body: json.RawMessage(`[1]`)})
	if err == nil || !strings.Contains(err.Error(), "body") {
		t.Fatalf("want body error, got: %v", err)
	}

	_, err = FromStructDocument(nil)
	require.Error(t, err)

	_, err = FromStructDocument(Strings(map[string]string{KeyCreated: "yesterday"}))
	if err == nil || !strings.Contains(err.Error(), KeyCreated) {
		t.Fatalf("want created error, got: %v", err)
	}
}

func TestDocument_EmptyFields(t *testing.T) {
	t.Parallel()

	s, err := ToStructDocument(model.Document{ID: "x"})
	require.NoError(t, err)
	got, err := FromStructDocument(s)
	require.NoError(t, err)
	require.True(t, got.Created.IsZero())
	require.JSONEq(t, `{}`, string(got.Body))
}

func TestDocuments_KeepOrder(t *testing.T) {
	t.Parallel()

	docs := []model.Document{
		{ID: "b", Body: json.RawMessage(`{"k":"1"}`)},
		{ID: "a", Body: json.RawMessage(`{"k":"2"}`)},
	}
	s, err := ToStructDocuments(docs)
	require.NoError(t, err)
	got, err := FromStructDocuments(s)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "b", got[0].ID)
	require.Equal(t, "a", got[1].ID)

	empty, err := FromStructDocuments(&structpb.Struct{})
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestSession_Roundtrip(t *testing.T) {
	t.Parallel()

	u := model.User{UID: "u1", Email: "a@b.c", DisplayName: "A", EmailVerified: true}
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	s := ToStructSession(model.Tokens{AccessToken: "tok", ExpiresAt: exp}, u)

	tok, gotU, err := FromStructSession(s)
	require.NoError(t, err)
	require.Equal(t, "tok", tok.AccessToken)
	require.True(t, exp.Equal(tok.ExpiresAt))
	require.Equal(t, u, gotU)

	_, _, err = FromStructSession(&structpb.Struct{})
	require.Error(t, err)
}

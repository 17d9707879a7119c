// Package convert maps domain values to the Struct messages carried on the wire
// and back.
package convert

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/meal-planner/internal/model"
)

// Message keys.
const (
	KeyID          = "id"
	KeyCreated     = "created"
	KeyUpdated     = "updated"
	KeyBody        = "body"
	KeyDocuments   = "documents"
	KeyCollection  = "collection"
	KeyPath        = "path"
	KeyEmail       = "email"
	KeyPassword    = "password"
	KeyDisplayName = "displayName"
	KeyToken       = "token"
	KeyAccessToken = "accessToken"
	KeyExpiresAt   = "expiresAt"
	KeyUser        = "user"
)

// --- helpers ---

func ts(t time.Time) *structpb.Value {
	if t.IsZero() {
		return structpb.NewStringValue("")
	}
	return structpb.NewStringValue(t.UTC().Format(time.RFC3339Nano))
}

func parseTS(s *structpb.Struct, key string) (time.Time, error) {
	v := String(s, key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", key, err)
	}
	return t, nil
}

// String returns the string field key of s, or "".
func String(s *structpb.Struct, key string) string {
	if s == nil {
		return ""
	}
	return s.GetFields()[key].GetStringValue()
}

// Bool returns the bool field key of s, or false.
func Bool(s *structpb.Struct, key string) bool {
	if s == nil {
		return false
	}
	return s.GetFields()[key].GetBoolValue()
}

// Strings builds a Struct of string fields.
func Strings(kv map[string]string) *structpb.Struct {
	out := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(kv))}
	for k, v := range kv {
		out.Fields[k] = structpb.NewStringValue(v)
	}
	return out
}

// --- Body ---

// FromJSON parses a JSON object into a Struct.
func FromJSON(body json.RawMessage) (*structpb.Struct, error) {
	out := &structpb.Struct{}
	if len(body) == 0 {
		return out, nil
	}
	if err := protojson.Unmarshal(body, out); err != nil {
		return nil, fmt.Errorf("body: %w", err)
	}
	return out, nil
}

// ToJSON renders a Struct as a JSON object. A nil Struct yields "{}".
func ToJSON(s *structpb.Struct) (json.RawMessage, error) {
	if s == nil {
		return json.RawMessage("{}"), nil
	}
	b, err := protojson.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("body: %w", err)
	}
	return b, nil
}

// --- Document ---

// ToStructDocument converts a document to its wire form.
func ToStructDocument(d model.Document) (*structpb.Struct, error) {
	body, err := FromJSON(d.Body)
	if err != nil {
		return nil, err
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		KeyID:      structpb.NewStringValue(d.ID),
		KeyCreated: ts(d.Created),
		KeyUpdated: ts(d.Updated),
		KeyBody:    structpb.NewStructValue(body),
	}}, nil
}

// FromStructDocument converts a wire document back.
func FromStructDocument(s *structpb.Struct) (model.Document, error) {
	if s == nil {
		return model.Document{}, fmt.Errorf("nil document")
	}
	created, err := parseTS(s, KeyCreated)
	if err != nil {
		return model.Document{}, err
	}
	updated, err := parseTS(s, KeyUpdated)
	if err != nil {
		return model.Document{}, err
	}
	body, err := ToJSON(s.GetFields()[KeyBody].GetStructValue())
	if err != nil {
		return model.Document{}, err
	}
	return model.Document{ID: String(s, KeyID), Created: created, Updated: updated, Body: body}, nil
}

// ToStructDocuments wraps a snapshot as {"documents": [...]}.
func ToStructDocuments(docs []model.Document) (*structpb.Struct, error) {
	vals := make([]*structpb.Value, 0, len(docs))
	for i, d := range docs {
		s, err := ToStructDocument(d)
		if err != nil {
			return nil, fmt.Errorf("document[%d]: %w", i, err)
		}
		vals = append(vals, structpb.NewStructValue(s))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		KeyDocuments: structpb.NewListValue(&structpb.ListValue{Values: vals}),
	}}, nil
}

// FromStructDocuments unwraps a snapshot. A missing list is an empty snapshot.
func FromStructDocuments(s *structpb.Struct) ([]model.Document, error) {
	vals := s.GetFields()[KeyDocuments].GetListValue().GetValues()
	out := make([]model.Document, 0, len(vals))
	for i, v := range vals {
		d, err := FromStructDocument(v.GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("document[%d]: %w", i, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// --- User / session ---

// ToStructUser converts a principal.
func ToStructUser(u model.User) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"uid":           structpb.NewStringValue(u.UID),
		"email":         structpb.NewStringValue(u.Email),
		"displayName":   structpb.NewStringValue(u.DisplayName),
		"phoneNumber":   structpb.NewStringValue(u.PhoneNumber),
		"emailVerified": structpb.NewBoolValue(u.EmailVerified),
	}}
}

// FromStructUser converts a principal back.
func FromStructUser(s *structpb.Struct) model.User {
	return model.User{
		UID:           String(s, "uid"),
		Email:         String(s, "email"),
		DisplayName:   String(s, "displayName"),
		PhoneNumber:   String(s, "phoneNumber"),
		EmailVerified: Bool(s, "emailVerified"),
	}
}

// ToStructSession is the reply of SignUp and SignIn.
func ToStructSession(t model.Tokens, u model.User) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		KeyAccessToken: structpb.NewStringValue(t.AccessToken),
		KeyExpiresAt:   ts(t.ExpiresAt),
		KeyUser:        structpb.NewStructValue(ToStructUser(u)),
	}}
}

// FromStructSession reads a SignUp or SignIn reply.
func FromStructSession(s *structpb.Struct) (model.Tokens, model.User, error) {
	exp, err := parseTS(s, KeyExpiresAt)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	tok := model.Tokens{AccessToken: String(s, KeyAccessToken), ExpiresAt: exp}
	if tok.AccessToken == "" {
		return model.Tokens{}, model.User{}, fmt.Errorf("empty access token")
	}
	return tok, FromStructUser(s.GetFields()[KeyUser].GetStructValue()), nil
}

// Package model defines domain entities shared by the client core and the backend.
package model

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Base holds the fields every remotely persisted entity carries.
type Base struct {
	ID      string    `json:"id"`      // assigned by the remote store, immutable
	Created time.Time `json:"created"` // set once on creation
	Updated time.Time `json:"updated"` // refreshed on every update
}

// Entity composes the base fields with a typed attribute payload.
type Entity[A any] struct {
	Base
	Attributes A
}

// MarshalJSON writes the entity as a single flat object: base keys merged
// with the attribute keys.
func (e Entity[A]) MarshalJSON() ([]byte, error) {
	fields := map[string]json.RawMessage{}
	attrs, err := json.Marshal(e.Attributes)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(attrs, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	base, err := json.Marshal(e.Base)
	if err != nil {
		return nil, err
	}
	baseFields := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &baseFields); err != nil {
		return nil, err
	}
	for k, v := range baseFields {
		fields[k] = v
	}
	return json.Marshal(fields)
}

// UnmarshalJSON reads a flat object produced by MarshalJSON.
func (e *Entity[A]) UnmarshalJSON(b []byte) error {
	if err := json.Unmarshal(b, &e.Base); err != nil {
		return err
	}
	return json.Unmarshal(b, &e.Attributes)
}

// RecipeAttributes is the payload of a recipe.
type RecipeAttributes struct {
	Title       string `json:"title"`
	SoftDeleted bool   `json:"isSoftDeleted"`
}

// Recipe is a persisted recipe.
type Recipe = Entity[RecipeAttributes]

// MealAttributes is the payload of a meal: a recipe placed on a date.
type MealAttributes struct {
	Date     time.Time `json:"date"`
	RecipeID string    `json:"recipeID"`
}

// Meal is a persisted meal.
type Meal = Entity[MealAttributes]

// User is a read-only projection of the signed-in principal.
type User struct {
	UID           string `json:"uid"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName"`
	PhoneNumber   string `json:"phoneNumber"`
	EmailVerified bool   `json:"emailVerified"`
}

// Document is a raw remote document; Body holds the JSON attribute object.
type Document struct {
	ID      string
	Created time.Time
	Updated time.Time
	Body    json.RawMessage
}

// StoredDocument is a document row as kept by the backend.
type StoredDocument struct {
	Document
	OwnerID    uuid.UUID
	Collection string
}

// Tokens collects the issued access token.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// Account represents a user stored on the server. Passwords are never stored in plaintext.
type Account struct {
	ID             uuid.UUID // PK
	Email          string    // unique
	DisplayName    string
	PhoneNumber    string
	EmailVerified  bool
	Disabled       bool
	PwdHash        []byte // Argon2id(password, PwdSalt)
	PwdSalt        []byte
	ResetTokenHash []byte // sha256 of the last issued reset token, empty if none
	ResetExpiresAt time.Time
	CreatedAt      time.Time
}

// User projects the account into the client-facing principal.
func (a Account) User() User {
	return User{
		UID:           a.ID.String(),
		Email:         a.Email,
		DisplayName:   a.DisplayName,
		PhoneNumber:   a.PhoneNumber,
		EmailVerified: a.EmailVerified,
	}
}

// Package remote defines the remote collection contract used by the entity
// state layer, a typed adapter over it, and an in-process implementation.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/and161185/meal-planner/internal/model"
)

// Client is a document store keyed by collection name.
type Client interface {
	// Create stores body under a newly generated id and returns the full document.
	Create(ctx context.Context, collection string, body json.RawMessage) (model.Document, error)
	// Update replaces the document body and returns it with a refreshed Updated stamp.
	Update(ctx context.Context, collection string, doc model.Document) (model.Document, error)
	// Delete removes the document and returns it.
	Delete(ctx context.Context, collection string, doc model.Document) (model.Document, error)
	// Subscribe delivers full snapshots of path until the returned function is called.
	Subscribe(ctx context.Context, path string, onSnapshot func([]model.Document)) (unsubscribe func(), err error)
}

// ErrBadPath indicates a subscription path that is not users/{uid}/{collection}.
var ErrBadPath = errors.New("bad collection path")

// UserPath returns the subscription path of a user's collection.
func UserPath(uid, collection string) string {
	return "users/" + uid + "/" + collection
}

// ParseUserPath splits users/{uid}/{collection}.
func ParseUserPath(path string) (uid, collection string, err error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[0] != "users" || parts[1] == "" || parts[2] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrBadPath, path)
	}
	return parts[1], parts[2], nil
}

package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/meal-planner/internal/model"
)

// DocumentRepository stores JSON documents grouped by owner and collection.
type DocumentRepository interface {
	// Insert stores a new document; ID and timestamps are set by the caller.
	Insert(ctx context.Context, d *model.StoredDocument) error

	// Update replaces the body and updated stamp, returning the stored row.
	// A missing document yields errs.ErrNotFound.
	Update(ctx context.Context, owner uuid.UUID, collection string, id uuid.UUID, body json.RawMessage, at time.Time) (model.Document, error)

	// Delete removes a document and returns it.
	Delete(ctx context.Context, owner uuid.UUID, collection string, id uuid.UUID) (model.Document, error)

	// List returns a collection in creation order.
	List(ctx context.Context, owner uuid.UUID, collection string) ([]model.Document, error)
}

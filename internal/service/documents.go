package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/meal-planner/internal/errs"
	"github.com/and161185/meal-planner/internal/model"
	"github.com/and161185/meal-planner/internal/repository"
)

// DocumentService defines per-user collection operations.
type DocumentService interface {
	// Create stores body under a generated id.
	Create(ctx context.Context, owner uuid.UUID, collection string, body json.RawMessage) (model.Document, error)
	// Update replaces the body of an existing document.
	Update(ctx context.Context, owner uuid.UUID, collection string, doc model.Document) (model.Document, error)
	// Delete removes a document and returns it.
	Delete(ctx context.Context, owner uuid.UUID, collection, id string) (model.Document, error)
	// Snapshot lists a collection in creation order.
	Snapshot(ctx context.Context, owner uuid.UUID, collection string) ([]model.Document, error)
	// Watch delivers the current snapshot and then one per change until the
	// returned function is called.
	Watch(ctx context.Context, owner uuid.UUID, collection string, fn func([]model.Document)) (func(), error)
}

var collectionRe = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,63}$`)

// maxBodySize bounds a single document body.
const maxBodySize = 64 << 10

type DocumentServiceImpl struct {
	repo repository.DocumentRepository
	hub  *Hub
	now  func() time.Time
	log  *zap.Logger
}

var _ DocumentService = (*DocumentServiceImpl)(nil)

// NewDocumentService constructs DocumentService. A nil hub disables Watch fan-out.
func NewDocumentService(repo repository.DocumentRepository, hub *Hub, log *zap.Logger) *DocumentServiceImpl {
	if hub == nil {
		hub = NewHub()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DocumentServiceImpl{repo: repo, hub: hub, now: time.Now, log: log}
}

func validate(owner uuid.UUID, collection string) error {
	if owner == uuid.Nil {
		return fmt.Errorf("%w: empty owner", errs.ErrValidation)
	}
	if !collectionRe.MatchString(collection) {
		return fmt.Errorf("%w: bad collection %q", errs.ErrValidation, collection)
	}
	return nil
}

func validBody(body json.RawMessage) error {
	if len(body) > maxBodySize {
		return fmt.Errorf("%w: body too large (%d > %d)", errs.ErrValidation, len(body), maxBodySize)
	}
	b := bytes.TrimSpace(body)
	if len(b) == 0 || b[0] != '{' || !json.Valid(b) {
		return fmt.Errorf("%w: body must be a JSON object", errs.ErrValidation)
	}
	return nil
}

// parseID maps malformed ids to not found: no such document can exist.
func parseID(id string) (uuid.UUID, error) {
	u, err := uuid.FromString(id)
	if err != nil || u == uuid.Nil {
		return uuid.Nil, fmt.Errorf("document %q: %w", id, errs.ErrNotFound)
	}
	return u, nil
}

// Create validates input, stamps created = updated = now and stores the document.
func (s *DocumentServiceImpl) Create(ctx context.Context, owner uuid.UUID, collection string, body json.RawMessage) (model.Document, error) {
	if err := validate(owner, collection); err != nil {
		return model.Document{}, err
	}
	if err := validBody(body); err != nil {
		return model.Document{}, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.Document{}, err
	}
	now := s.stamp()
	d := model.StoredDocument{
		Document:   model.Document{ID: id.String(), Created: now, Updated: now, Body: body},
		OwnerID:    owner,
		Collection: collection,
	}
	if err := s.repo.Insert(ctx, &d); err != nil {
		return model.Document{}, err
	}
	s.changed(ctx, owner, collection)
	return d.Document, nil
}

// stamp is now at the precision timestamptz keeps, so what Create and Update
// return matches later snapshots.
func (s *DocumentServiceImpl) stamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// Update keeps the created stamp and refreshes updated.
func (s *DocumentServiceImpl) Update(ctx context.Context, owner uuid.UUID, collection string, doc model.Document) (model.Document, error) {
	if err := validate(owner, collection); err != nil {
		return model.Document{}, err
	}
	if err := validBody(doc.Body); err != nil {
		return model.Document{}, err
	}
	id, err := parseID(doc.ID)
	if err != nil {
		return model.Document{}, err
	}
	out, err := s.repo.Update(ctx, owner, collection, id, doc.Body, s.stamp())
	if err != nil {
		return model.Document{}, err
	}
	s.changed(ctx, owner, collection)
	return out, nil
}

// Delete removes the document and returns it as it was stored.
func (s *DocumentServiceImpl) Delete(ctx context.Context, owner uuid.UUID, collection, id string) (model.Document, error) {
	if err := validate(owner, collection); err != nil {
		return model.Document{}, err
	}
	uid, err := parseID(id)
	if err != nil {
		return model.Document{}, err
	}
	out, err := s.repo.Delete(ctx, owner, collection, uid)
	if err != nil {
		return model.Document{}, err
	}
	s.changed(ctx, owner, collection)
	return out, nil
}

// Snapshot returns the collection in creation order.
func (s *DocumentServiceImpl) Snapshot(ctx context.Context, owner uuid.UUID, collection string) ([]model.Document, error) {
	if err := validate(owner, collection); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, owner, collection)
}

// Watch subscribes fn to the collection.
func (s *DocumentServiceImpl) Watch(ctx context.Context, owner uuid.UUID, collection string, fn func([]model.Document)) (func(), error) {
	if err := validate(owner, collection); err != nil {
		return nil, err
	}
	return s.hub.subscribe(owner, collection, fn, func() ([]model.Document, error) {
		return s.repo.List(ctx, owner, collection)
	})
}

// changed publishes a fresh snapshot. The mutation already succeeded, so a
// failed reload is only logged; watchers catch up on the next change.
func (s *DocumentServiceImpl) changed(ctx context.Context, owner uuid.UUID, collection string) {
	err := s.hub.publish(owner, collection, func() ([]model.Document, error) {
		return s.repo.List(context.WithoutCancel(ctx), owner, collection)
	})
	if err != nil {
		s.log.Warn("snapshot publish failed",
			zap.String("owner", owner.String()), zap.String("collection", collection), zap.Error(err))
	}
}

package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/and161185/meal-planner/internal/model"
)

// Typed adapts a raw Client to entities with attribute type A.
type Typed[A any] struct {
	c Client
}

// NewTyped wraps c.
func NewTyped[A any](c Client) *Typed[A] {
	return &Typed[A]{c: c}
}

// CreateWithGeneratedID stores attrs and returns the entity as created remotely.
func (t *Typed[A]) CreateWithGeneratedID(ctx context.Context, collection string, attrs A) (model.Entity[A], error) {
	body, err := json.Marshal(attrs)
	if err != nil {
		return model.Entity[A]{}, fmt.Errorf("encode %s: %w", collection, err)
	}
	doc, err := t.c.Create(ctx, collection, body)
	if err != nil {
		return model.Entity[A]{}, err
	}
	return Decode[A](doc)
}

// UpdateByID replaces the stored attributes of e.
func (t *Typed[A]) UpdateByID(ctx context.Context, collection string, e model.Entity[A]) (model.Entity[A], error) {
	doc, err := Encode(e)
	if err != nil {
		return model.Entity[A]{}, fmt.Errorf("encode %s/%s: %w", collection, e.ID, err)
	}
	out, err := t.c.Update(ctx, collection, doc)
	if err != nil {
		return model.Entity[A]{}, err
	}
	return Decode[A](out)
}

// DeleteByID removes e and returns it.
func (t *Typed[A]) DeleteByID(ctx context.Context, collection string, e model.Entity[A]) (model.Entity[A], error) {
	doc, err := Encode(e)
	if err != nil {
		return model.Entity[A]{}, fmt.Errorf("encode %s/%s: %w", collection, e.ID, err)
	}
	out, err := t.c.Delete(ctx, collection, doc)
	if err != nil {
		return model.Entity[A]{}, err
	}
	if len(out.Body) == 0 {
		return e, nil
	}
	return Decode[A](out)
}

// Subscribe decodes every snapshot of path. Documents that fail to decode are
// reported through onError and skipped.
func (t *Typed[A]) Subscribe(ctx context.Context, path string, onSnapshot func([]model.Entity[A]), onError func(model.Document, error)) (func(), error) {
	return t.c.Subscribe(ctx, path, func(docs []model.Document) {
		out := make([]model.Entity[A], 0, len(docs))
		for _, d := range docs {
			e, err := Decode[A](d)
			if err != nil {
				if onError != nil {
					onError(d, err)
				}
				continue
			}
			out = append(out, e)
		}
		onSnapshot(out)
	})
}

// Encode converts an entity into a raw document.
func Encode[A any](e model.Entity[A]) (model.Document, error) {
	body, err := json.Marshal(e.Attributes)
	if err != nil {
		return model.Document{}, err
	}
	return model.Document{ID: e.ID, Created: e.Created, Updated: e.Updated, Body: body}, nil
}

// Decode converts a raw document into an entity.
func Decode[A any](d model.Document) (model.Entity[A], error) {
	var attrs A
	if len(d.Body) > 0 {
		if err := json.Unmarshal(d.Body, &attrs); err != nil {
			return model.Entity[A]{}, fmt.Errorf("decode %s: %w", d.ID, err)
		}
	}
	return model.Entity[A]{
		Base:       model.Base{ID: d.ID, Created: d.Created, Updated: d.Updated},
		Attributes: attrs,
	}, nil
}

package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/meal-planner/internal/errs"
	"github.com/and161185/meal-planner/internal/model"
	"github.com/and161185/meal-planner/internal/notify"
)

// Memory is an in-process Client for a single user. Documents are kept per
// collection in creation order.
type Memory struct {
	mu    sync.Mutex
	pubMu sync.Mutex // orders snapshot delivery; callbacks must not call back into Memory
	now   func() time.Time
	colls map[string]*memCollection
}

type memCollection struct {
	docs  map[string]model.Document
	order []string
	subs  notify.List[func([]model.Document)]
}

var _ Client = (*Memory)(nil)

// NewMemory returns an empty store. now may be nil.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Memory{now: now, colls: map[string]*memCollection{}}
}

func (m *Memory) coll(name string) *memCollection {
	c, ok := m.colls[name]
	if !ok {
		c = &memCollection{docs: map[string]model.Document{}}
		m.colls[name] = c
	}
	return c
}

// Create stores body under a generated id.
func (m *Memory) Create(_ context.Context, collection string, body json.RawMessage) (model.Document, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return model.Document{}, err
	}
	m.mu.Lock()
	ts := m.now()
	doc := model.Document{ID: id.String(), Created: ts, Updated: ts, Body: clone(body)}
	c := m.coll(collection)
	c.docs[doc.ID] = doc
	c.order = append(c.order, doc.ID)
	m.publishLocked(c)
	return doc, nil
}

// Update replaces the body of an existing document.
func (m *Memory) Update(_ context.Context, collection string, doc model.Document) (model.Document, error) {
	m.mu.Lock()
	c := m.coll(collection)
	cur, ok := c.docs[doc.ID]
	if !ok {
		m.mu.Unlock()
		return model.Document{}, fmt.Errorf("%s/%s: %w", collection, doc.ID, errs.ErrNotFound)
	}
	cur.Body = clone(doc.Body)
	cur.Updated = m.now()
	c.docs[doc.ID] = cur
	m.publishLocked(c)
	return cur, nil
}

// Delete removes a document and returns it.
func (m *Memory) Delete(_ context.Context, collection string, doc model.Document) (model.Document, error) {
	m.mu.Lock()
	c := m.coll(collection)
	cur, ok := c.docs[doc.ID]
	if !ok {
		m.mu.Unlock()
		return model.Document{}, fmt.Errorf("%s/%s: %w", collection, doc.ID, errs.ErrNotFound)
	}
	delete(c.docs, doc.ID)
	for i, id := range c.order {
		if id == doc.ID {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			break
		}
	}
	m.publishLocked(c)
	return cur, nil
}

// Subscribe delivers the current snapshot immediately and then one per change.
func (m *Memory) Subscribe(_ context.Context, path string, onSnapshot func([]model.Document)) (func(), error) {
	_, collection, err := ParseUserPath(path)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	c := m.coll(collection)
	remove := c.subs.Add(onSnapshot)
	snap := c.snapshot()
	m.pubMu.Lock()
	m.mu.Unlock()

	onSnapshot(snap)
	m.pubMu.Unlock()
	return remove, nil
}

func (c *memCollection) snapshot() []model.Document {
	out := make([]model.Document, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.docs[id])
	}
	return out
}

// publishLocked releases m.mu and delivers c's snapshot in mutation order.
func (m *Memory) publishLocked(c *memCollection) {
	snap, subs := c.snapshot(), c.subs.Snapshot()
	m.pubMu.Lock()
	m.mu.Unlock()
	defer m.pubMu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

func clone(b json.RawMessage) json.RawMessage {
	if b == nil {
		return nil
	}
	return append(json.RawMessage(nil), b...)
}

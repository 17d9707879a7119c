package service

import (
	"sync"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/meal-planner/internal/model"
	"github.com/and161185/meal-planner/internal/notify"
)

type topicKey struct {
	owner      uuid.UUID
	collection string
}

type topic struct {
	mu   sync.Mutex // held while a snapshot is loaded and delivered
	subs notify.List[func([]model.Document)]
	refs int // guarded by Hub.mu
}

// Hub fans collection snapshots out to watchers of (owner, collection).
// A topic is dropped when its last watcher leaves.
type Hub struct {
	mu     sync.Mutex
	topics map[topicKey]*topic
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{topics: map[topicKey]*topic{}}
}

func (h *Hub) acquire(k topicKey) *topic {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.topics[k]
	if !ok {
		t = &topic{}
		h.topics[k] = t
	}
	t.refs++
	return t
}

func (h *Hub) release(k topicKey, t *topic) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t.refs--
	if t.refs == 0 && h.topics[k] == t {
		delete(h.topics, k)
	}
}

// subscribe registers fn and delivers the snapshot returned by load, both
// under the topic lock so fn never sees an older snapshot after a newer one.
func (h *Hub) subscribe(owner uuid.UUID, collection string, fn func([]model.Document), load func() ([]model.Document, error)) (func(), error) {
	k := topicKey{owner, collection}
	t := h.acquire(k)
	t.mu.Lock()
	defer t.mu.Unlock()
	docs, err := load()
	if err != nil {
		h.release(k, t)
		return nil, err
	}
	remove := t.subs.Add(fn)
	fn(docs)
	var once sync.Once
	return func() {
		once.Do(func() {
			remove()
			h.release(k, t)
		})
	}, nil
}

// publish loads the current snapshot and hands it to every watcher.
func (h *Hub) publish(owner uuid.UUID, collection string, load func() ([]model.Document, error)) error {
	h.mu.Lock()
	t, ok := h.topics[topicKey{owner, collection}]
	h.mu.Unlock()
	if !ok {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	subs := t.subs.Snapshot()
	if len(subs) == 0 {
		return nil
	}
	docs, err := load()
	if err != nil {
		return err
	}
	for _, fn := range subs {
		fn(docs)
	}
	return nil
}

// Watchers reports the number of active watchers.
func (h *Hub) Watchers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, t := range h.topics {
		n += t.subs.Len()
	}
	return n
}

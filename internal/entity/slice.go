package entity

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/meal-planner/internal/model"
	"github.com/and161185/meal-planner/internal/notify"
)

// Remote is the collection store a Slice writes through.
type Remote[A any] interface {
	CreateWithGeneratedID(ctx context.Context, collection string, attrs A) (model.Entity[A], error)
	UpdateByID(ctx context.Context, collection string, e model.Entity[A]) (model.Entity[A], error)
	DeleteByID(ctx context.Context, collection string, e model.Entity[A]) (model.Entity[A], error)
}

// Action tags a state change, e.g. "recipes/add/pending".
type Action string

// Observer receives every visible state change together with its tag.
type Observer[A any] func(Action, State[A])

// Slice owns the cache of one entity type. All writes go through its
// methods; remote calls run without holding the lock and their outcome is
// applied atomically, so concurrent requests settle in completion order.
type Slice[A any] struct {
	name   string
	remote Remote[A]
	log    *zap.Logger

	mu    sync.Mutex
	pubMu sync.Mutex // orders deliveries; observers must not write to the slice
	state State[A]
	obs   notify.List[Observer[A]]
}

// NewSlice creates an empty slice for collection name.
func NewSlice[A any](name string, remote Remote[A], log *zap.Logger) *Slice[A] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Slice[A]{
		name:   name,
		remote: remote,
		log:    log.With(zap.String("entity", name)),
		state:  Empty[A](),
	}
}

// Name returns the collection name.
func (s *Slice[A]) Name() string { return s.name }

// Subscribe registers fn for state changes.
func (s *Slice[A]) Subscribe(fn Observer[A]) (unsubscribe func()) {
	return s.obs.Add(fn)
}

// Set replaces the whole state. Any pending or rejected status is discarded
// in favour of the one carried by st.
func (s *Slice[A]) Set(st State[A]) {
	s.mu.Lock()
	s.state = normalize(st)
	s.publishLocked(s.action("set"))
}

// Hydrate replaces the cache with a full snapshot of the collection.
func (s *Slice[A]) Hydrate(entities []model.Entity[A]) {
	s.Set(Build(entities))
}

// Clear resets to an empty idle state.
func (s *Slice[A]) Clear() {
	s.mu.Lock()
	s.state = Empty[A]()
	s.publishLocked(s.action("clear"))
}

// Add creates an entity remotely and appends the stored result.
func (s *Slice[A]) Add(ctx context.Context, attrs A) (model.Entity[A], error) {
	s.begin("add")
	e, err := s.remote.CreateWithGeneratedID(ctx, s.name, attrs)
	if err != nil {
		return model.Entity[A]{}, s.fail("add", err)
	}
	s.mu.Lock()
	s.state.put(e)
	s.settleLocked("add")
	return e, nil
}

// Update writes e remotely and replaces the cached value in place.
func (s *Slice[A]) Update(ctx context.Context, e model.Entity[A]) (model.Entity[A], error) {
	s.begin("update")
	out, err := s.remote.UpdateByID(ctx, s.name, e)
	if err != nil {
		return model.Entity[A]{}, s.fail("update", err)
	}
	s.mu.Lock()
	// put keeps the position; an id removed meanwhile goes to the end.
	s.state.put(out)
	s.settleLocked("update")
	return out, nil
}

// Delete removes e remotely and from the cache.
func (s *Slice[A]) Delete(ctx context.Context, e model.Entity[A]) (model.Entity[A], error) {
	s.begin("delete")
	out, err := s.remote.DeleteByID(ctx, s.name, e)
	if err != nil {
		return model.Entity[A]{}, s.fail("delete", err)
	}
	id := out.ID
	if id == "" {
		id = e.ID
	}
	s.mu.Lock()
	s.state.remove(id)
	s.settleLocked("delete")
	return out, nil
}

// State returns a copy of the current state.
func (s *Slice[A]) State() State[A] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Get returns the cached entity with id.
func (s *Slice[A]) Get(id string) (model.Entity[A], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.state.ByID[id]
	return e, ok
}

// List returns cached entities in insertion order.
func (s *Slice[A]) List() []model.Entity[A] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.List()
}

// Len reports the number of cached entities.
func (s *Slice[A]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.AllIDs)
}

func (s *Slice[A]) action(parts ...string) Action {
	a := s.name
	for _, p := range parts {
		a += "/" + p
	}
	return Action(a)
}

func (s *Slice[A]) begin(op string) {
	s.log.Debug("request started", zap.String("op", op))
	s.mu.Lock()
	s.state.Status = StatusPending
	s.state.Error = ""
	s.publishLocked(s.action(op, string(StatusPending)))
}

func (s *Slice[A]) settleLocked(op string) {
	s.state.Status = StatusFulfilled
	s.state.Error = ""
	s.publishLocked(s.action(op, string(StatusFulfilled)))
}

func (s *Slice[A]) fail(op string, err error) error {
	s.log.Warn("request failed", zap.String("op", op), zap.Error(err))
	s.mu.Lock()
	s.state.Status = StatusRejected
	s.state.Error = err.Error()
	s.publishLocked(s.action(op, string(StatusRejected)))
	return err
}

// publishLocked releases s.mu and delivers a copy of the state to observers.
func (s *Slice[A]) publishLocked(a Action) {
	snap := s.state.clone()
	s.pubMu.Lock()
	s.mu.Unlock()
	defer s.pubMu.Unlock()
	for _, fn := range s.obs.Snapshot() {
		fn(a, snap)
	}
}

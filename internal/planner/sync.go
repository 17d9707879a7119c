package planner

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/meal-planner/internal/session"
)

// Syncer keeps a Store in step with the signed-in user: on sign-in every
// slice follows users/{uid}/{collection}, on sign-out the slices are
// unsubscribed and emptied.
type Syncer struct {
	store *Store
	log   *zap.Logger

	lifeMu  sync.Mutex
	stopped func()

	mu     sync.Mutex
	ctx    context.Context
	uid    string
	unsubs []func()
}

// NewSyncer returns a syncer for store.
func NewSyncer(store *Store, log *zap.Logger) *Syncer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Syncer{store: store, log: log.Named("sync")}
}

// Start follows sess until Stop. ctx bounds the subscriptions it opens.
// Calling Start again is a no-op.
func (s *Syncer) Start(ctx context.Context, sess *session.Session) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.stopped != nil {
		return
	}
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.stopped = sess.Watch(s.apply)
	s.apply(sess.State())
}

// Stop unsubscribes and clears every slice.
func (s *Syncer) Stop() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.stopped == nil {
		return
	}
	s.stopped()
	s.stopped = nil

	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachLocked()
	s.uid = ""
}

// UID returns the user the store currently follows.
func (s *Syncer) UID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uid
}

func (s *Syncer) apply(st session.State) {
	uid := ""
	if st.User != nil {
		uid = st.User.UID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if uid == s.uid {
		return
	}
	s.detachLocked()
	s.uid = uid
	if uid == "" {
		return
	}
	for _, b := range s.store.bindings {
		unsub, err := b.follow(s.ctx, uid)
		if err != nil {
			s.log.Warn("subscribe failed", zap.String("collection", b.name()), zap.Error(err))
			continue
		}
		s.unsubs = append(s.unsubs, unsub)
	}
	s.log.Debug("following user", zap.String("uid", uid), zap.Int("collections", len(s.unsubs)))
}

func (s *Syncer) detachLocked() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
	for _, b := range s.store.bindings {
		b.clear()
	}
}

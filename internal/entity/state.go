// Package entity keeps a normalized client-side cache of one remote
// collection and tracks the status of the last request made against it.
package entity

import (
	"sort"

	"github.com/and161185/meal-planner/internal/model"
)

// Status describes the most recent asynchronous action of a slice.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusPending   Status = "pending"
	StatusFulfilled Status = "fulfilled"
	StatusRejected  Status = "rejected"
)

// State is the normalized cache of entities with attribute type A.
// Keys of ByID and the ids in AllIDs are always the same set, and AllIDs
// never holds an id twice.
type State[A any] struct {
	ByID   map[string]model.Entity[A]
	AllIDs []string
	Status Status
	Error  string
}

// Empty returns an idle state with no entities.
func Empty[A any]() State[A] {
	return State[A]{ByID: map[string]model.Entity[A]{}, AllIDs: []string{}, Status: StatusIdle}
}

// Build returns an idle state holding entities in the given order. Later
// duplicates of an id replace the earlier value but keep its position.
func Build[A any](entities []model.Entity[A]) State[A] {
	st := Empty[A]()
	for _, e := range entities {
		if _, ok := st.ByID[e.ID]; !ok {
			st.AllIDs = append(st.AllIDs, e.ID)
		}
		st.ByID[e.ID] = e
	}
	return st
}

// normalize repairs a caller-supplied state: ids listed twice or without an
// entry are dropped and unlisted entries are appended in id order.
func normalize[A any](in State[A]) State[A] {
	out := State[A]{
		ByID:   make(map[string]model.Entity[A], len(in.ByID)),
		AllIDs: make([]string, 0, len(in.ByID)),
		Status: in.Status,
		Error:  in.Error,
	}
	if out.Status == "" {
		out.Status = StatusIdle
	}
	for _, id := range in.AllIDs {
		e, ok := in.ByID[id]
		if !ok {
			continue
		}
		if _, seen := out.ByID[id]; seen {
			continue
		}
		out.ByID[id] = e
		out.AllIDs = append(out.AllIDs, id)
	}
	var rest []string
	for id := range in.ByID {
		if _, ok := out.ByID[id]; !ok {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	for _, id := range rest {
		out.ByID[id] = in.ByID[id]
		out.AllIDs = append(out.AllIDs, id)
	}
	return out
}

func (s State[A]) clone() State[A] {
	out := State[A]{
		ByID:   make(map[string]model.Entity[A], len(s.ByID)),
		AllIDs: append(make([]string, 0, len(s.AllIDs)), s.AllIDs...),
		Status: s.Status,
		Error:  s.Error,
	}
	for id, e := range s.ByID {
		out.ByID[id] = e
	}
	return out
}

// List returns the entities in AllIDs order.
func (s State[A]) List() []model.Entity[A] {
	out := make([]model.Entity[A], 0, len(s.AllIDs))
	for _, id := range s.AllIDs {
		out = append(out, s.ByID[id])
	}
	return out
}

func (s *State[A]) put(e model.Entity[A]) {
	if _, ok := s.ByID[e.ID]; !ok {
		s.AllIDs = append(s.AllIDs, e.ID)
	}
	s.ByID[e.ID] = e
}

func (s *State[A]) remove(id string) {
	if _, ok := s.ByID[id]; !ok {
		return
	}
	delete(s.ByID, id)
	for i, v := range s.AllIDs {
		if v == id {
			s.AllIDs = append(s.AllIDs[:i:i], s.AllIDs[i+1:]...)
			return
		}
	}
}

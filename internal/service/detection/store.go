package detection

import (
	"sync"
	"sync/atomic"

	"parkingserver/internal/model"
)

// Store publishes DetectionState values for concurrent readers.
// Each update builds a new value and swaps it in with a single atomic store,
// so a reader never sees occupancy and timestamps from different cycles.
type Store struct {
	current atomic.Pointer[model.DetectionState]
	writeMu sync.Mutex
}

// NewStore creates a store whose occupancy holds slots free entries.
func NewStore(slots int) *Store {
	s := &Store{}
	s.current.Store(&model.DetectionState{Occupancy: model.NewOccupancy(slots)})
	return s
}

// Snapshot returns the latest published state.
func (s *Store) Snapshot() model.DetectionState {
	return s.current.Load().Clone()
}

// update applies fn to a copy of the current state and publishes the result.
func (s *Store) update(fn func(st *model.DetectionState)) model.DetectionState {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.current.Load().Clone()
	fn(&next)
	s.current.Store(&next)
	return next.Clone()
}

func setError(st *model.DetectionState, source model.ErrorSource, err error) {
	st.LastError = err.Error()
	st.ErrorSource = source
}

func clearError(st *model.DetectionState, source model.ErrorSource) {
	if st.ErrorSource == source {
		st.LastError = ""
		st.ErrorSource = model.ErrorSourceNone
	}
}

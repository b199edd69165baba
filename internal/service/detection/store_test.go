package detection

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"parkingserver/internal/model"
)

func TestStore_InitialState(t *testing.T) {
	s := NewStore(4)

	st := s.Snapshot()
	assert.Equal(t, model.Occupancy{0, 0, 0, 0}, st.Occupancy)
	assert.True(t, st.LastFrameAt.IsZero())
	assert.True(t, st.LastPostAt.IsZero())
	assert.False(t, st.CameraHealthy)
	assert.False(t, st.HasError())
}

func TestStore_SnapshotIsIsolated(t *testing.T) {
	s := NewStore(2)

	st := s.Snapshot()
	st.Occupancy[0] = 1

	assert.Equal(t, model.Occupancy{0, 0}, s.Snapshot().Occupancy)
}

func TestStore_ErrorSources(t *testing.T) {
	s := NewStore(1)

	s.update(func(st *model.DetectionState) {
		setError(st, model.ErrorSourceTelemetry, assert.AnError)
	})
	s.update(func(st *model.DetectionState) {
		clearError(st, model.ErrorSourceCamera)
	})
	assert.Equal(t, assert.AnError.Error(), s.Snapshot().LastError)

	s.update(func(st *model.DetectionState) {
		clearError(st, model.ErrorSourceTelemetry)
	})
	assert.False(t, s.Snapshot().HasError())
}

// Readers must never observe occupancy from one update and a timestamp from another.
func TestStore_ConcurrentReadersSeeWholeUpdates(t *testing.T) {
	s := NewStore(8)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	const updates = 2000

	var wg sync.WaitGroup
	stop := make(chan struct{})
	torn := make(chan model.DetectionState, 1)

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				st := s.Snapshot()
				if st.LastFrameAt.IsZero() {
					continue
				}
				want := int(st.LastFrameAt.Sub(base)/time.Second) % 2
				for _, v := range st.Occupancy {
					if v != want {
						select {
						case torn <- st:
						default:
						}
						return
					}
				}
			}
		}()
	}

	for i := 0; i < updates; i++ {
		i := i
		s.update(func(st *model.DetectionState) {
			occ := model.NewOccupancy(8)
			for j := range occ {
				occ[j] = i % 2
			}
			st.Occupancy = occ
			st.LastFrameAt = base.Add(time.Duration(i) * time.Second)
		})
	}
	close(stop)
	wg.Wait()

	select {
	case st := <-torn:
		t.Fatalf("observed torn state: %+v", st)
	default:
	}
}

package app

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"parkingserver/internal/config"
	"parkingserver/internal/logger"
	"parkingserver/internal/model"
	"parkingserver/internal/service/detection"
)

type whiteSource struct {
	mu     sync.Mutex
	open   bool
	closes int
}

func (s *whiteSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	return nil
}

func (s *whiteSource) Read() (gocv.Mat, error) {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 20, 20, gocv.MatTypeCV8UC3), nil
}

func (s *whiteSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		s.closes++
	}
	s.open = false
	return nil
}

type countingSink struct {
	mu    sync.Mutex
	posts int
}

func (s *countingSink) Post(ctx context.Context, occ model.Occupancy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts++
	return nil
}

func TestApp_ServesAndShutsDown(t *testing.T) {
	cfg := &config.Config{
		StaticDirectory: t.TempDir(),
		SlotBoxes: []model.Region{
			{X1: 0, Y1: 0, X2: 10, Y2: 10},
			{X1: 10, Y1: 10, X2: 20, Y2: 20},
		},
		LuminanceThreshold:    100,
		FilledThreshold:       0.4,
		DetectInterval:        10 * time.Millisecond,
		CameraRetryInterval:   10 * time.Millisecond,
		StopTimeout:           time.Second,
		ThingSpeakMinInterval: time.Hour,
		ThingSpeakTimeout:     time.Second,
	}
	src := &whiteSource{}
	sink := &countingSink{}
	a := newApp(cfg, logger.NewConsoleLogger(io.Discard), src, sink)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- a.serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/status"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var body struct{ Slots []int }
		if json.NewDecoder(resp.Body).Decode(&body) != nil {
			return false
		}
		return assert.ObjectsAreEqual([]int{1, 1}, body.Slots)
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, detection.PhaseRunning, a.Detector().Phase())

	cancel()
	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not shut down")
	}

	assert.Equal(t, detection.PhaseStopped, a.Detector().Phase())
	src.mu.Lock()
	assert.Equal(t, 1, src.closes)
	src.mu.Unlock()
	sink.mu.Lock()
	assert.Equal(t, 1, sink.posts)
	sink.mu.Unlock()
}

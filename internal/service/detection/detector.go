package detection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"gocv.io/x/gocv"

	"parkingserver/internal/config"
	"parkingserver/internal/logger"
	"parkingserver/internal/model"
	"parkingserver/internal/service/camera"
)

// Phase is the lifecycle phase of a Detector.
type Phase int32

const (
	PhaseStopped Phase = iota
	PhaseStarting
	PhaseRunning
	PhaseStopping
)

func (p Phase) String() string {
	switch p {
	case PhaseStopped:
		return "stopped"
	case PhaseStarting:
		return "starting"
	case PhaseRunning:
		return "running"
	case PhaseStopping:
		return "stopping"
	}
	return "unknown"
}

// ErrPreviousRunActive is returned by Start while a loop abandoned by Stop is
// still finishing its last iteration.
var ErrPreviousRunActive = errors.New("previous detection run has not exited yet")

// Publisher receives occupancy reports. Implementations should honour ctx.
type Publisher interface {
	Post(ctx context.Context, occ model.Occupancy) error
}

// Option configures a Detector.
type Option func(*Detector)

// WithClock replaces the wall clock used for cadence and timestamps.
func WithClock(c clock.Clock) Option {
	return func(d *Detector) { d.clock = c }
}

// WithListener registers fn to receive every published state.
// fn runs on the detection goroutine and must not block.
func WithListener(fn func(model.DetectionState)) Option {
	return func(d *Detector) { d.listeners = append(d.listeners, fn) }
}

// WithPreview registers fn to receive an annotated JPEG of every classified frame.
// fn runs on the detection goroutine and must not block.
func WithPreview(fn func([]byte)) Option {
	return func(d *Detector) { d.previews = append(d.previews, fn) }
}

// Detector runs the read, classify, publish loop on its own goroutine and is
// the only writer to its Store.
type Detector struct {
	source     camera.FrameSource
	classifier *Classifier
	sink       Publisher
	store      *Store
	logger     *logger.Logger
	clock      clock.Clock

	detectInterval  time.Duration
	retryInterval   time.Duration
	minPostInterval time.Duration
	postTimeout     time.Duration
	stopTimeout     time.Duration

	listeners []func(model.DetectionState)
	previews  []func([]byte)

	lifeMu sync.Mutex
	phase  atomic.Int32
	stop   chan struct{}
	done   chan struct{}
}

// NewDetector wires a detector from cfg. Nothing runs until Start.
func NewDetector(cfg *config.Config, source camera.FrameSource, sink Publisher, logger *logger.Logger, opts ...Option) *Detector {
	classifier := NewClassifier(cfg.SlotBoxes, cfg.FilledThreshold)
	if cfg.LuminanceThreshold > 0 {
		classifier.Cutoff = float32(cfg.LuminanceThreshold)
	}

	d := &Detector{
		source:          source,
		classifier:      classifier,
		sink:            sink,
		store:           NewStore(len(cfg.SlotBoxes)),
		logger:          logger,
		clock:           clock.New(),
		detectInterval:  cfg.DetectInterval,
		retryInterval:   cfg.CameraRetryInterval,
		minPostInterval: cfg.ThingSpeakMinInterval,
		postTimeout:     cfg.ThingSpeakTimeout,
		stopTimeout:     cfg.StopTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Snapshot returns the latest detection state.
func (d *Detector) Snapshot() model.DetectionState {
	return d.store.Snapshot()
}

// Phase returns the current lifecycle phase.
func (d *Detector) Phase() Phase {
	return Phase(d.phase.Load())
}

// Regions returns the configured slot regions.
func (d *Detector) Regions() []model.Region {
	return d.classifier.Regions
}

func (d *Detector) setPhase(p Phase) {
	d.phase.Store(int32(p))
}

// alive reports whether the current loop goroutine has not exited. Callers hold lifeMu.
func (d *Detector) alive() bool {
	if d.done == nil {
		return false
	}
	select {
	case <-d.done:
		return false
	default:
		return true
	}
}

// Start launches the detection loop and returns once the camera open attempt
// has completed. A failed open leaves the detector Running with an unhealthy
// camera and no loop; calling Start again retries from scratch.
func (d *Detector) Start() error {
	d.lifeMu.Lock()
	defer d.lifeMu.Unlock()

	if d.alive() {
		if d.Phase() == PhaseRunning {
			return nil
		}
		return ErrPreviousRunActive
	}

	d.setPhase(PhaseStarting)

	stop := make(chan struct{})
	done := make(chan struct{})
	opened := make(chan struct{})
	d.stop, d.done = stop, done

	go d.run(stop, opened, done)
	<-opened

	d.setPhase(PhaseRunning)
	d.logger.Info("Detector running (%d slots, detect every %s, post every %s)",
		len(d.classifier.Regions), d.detectInterval, d.minPostInterval)
	return nil
}

// Stop signals the loop, waits up to the stop timeout for it to exit and then
// releases the camera. A loop that does not exit in time is abandoned and
// releases the camera itself when its current iteration ends.
func (d *Detector) Stop() {
	d.lifeMu.Lock()
	defer d.lifeMu.Unlock()

	if d.Phase() == PhaseStopped {
		return
	}
	d.setPhase(PhaseStopping)
	close(d.stop)

	timer := time.NewTimer(d.stopTimeout)
	defer timer.Stop()

	select {
	case <-d.done:
		if err := d.source.Close(); err != nil {
			d.logger.Warning("Error releasing camera: %v", err)
		}
		d.logger.Info("Detector stopped")
	case <-timer.C:
		d.logger.Warning("Detector loop did not exit within %s, abandoning it", d.stopTimeout)
	}

	d.setPhase(PhaseStopped)
}

func (d *Detector) run(stop <-chan struct{}, opened chan<- struct{}, done chan<- struct{}) {
	defer close(done)

	if err := d.source.Open(); err != nil {
		d.logger.Error("Camera open failed, detection run ended: %v", err)
		state := d.store.update(func(st *model.DetectionState) {
			st.CameraHealthy = false
			setError(st, model.ErrorSourceCamera, err)
		})
		close(opened)
		d.notify(state)
		return
	}
	defer d.source.Close()

	state := d.store.update(func(st *model.DetectionState) {
		st.CameraHealthy = true
		clearError(st, model.ErrorSourceCamera)
	})
	close(opened)
	d.notify(state)

	for {
		select {
		case <-stop:
			return
		default:
		}

		wait := d.cycle()

		select {
		case <-stop:
			return
		case <-d.clock.After(wait):
		}
	}
}

// cycle runs one loop iteration and returns how long to wait before the next.
func (d *Detector) cycle() time.Duration {
	frame, err := d.source.Read()
	if err != nil {
		wasHealthy := d.store.Snapshot().CameraHealthy
		state := d.store.update(func(st *model.DetectionState) {
			st.CameraHealthy = false
			setError(st, model.ErrorSourceCamera, err)
		})
		if wasHealthy {
			d.logger.Warning("Camera read failed, retrying every %s: %v", d.retryInterval, err)
		}
		d.notify(state)
		return d.retryInterval
	}
	defer frame.Close()

	now := d.clock.Now()
	occ := d.classifier.Classify(frame)

	wasHealthy := d.store.Snapshot().CameraHealthy
	state := d.store.update(func(st *model.DetectionState) {
		st.CameraHealthy = true
		st.LastFrameAt = now
		st.Occupancy = occ
		clearError(st, model.ErrorSourceCamera)
	})
	if !wasHealthy {
		d.logger.Info("Camera delivering frames")
	}

	if len(d.previews) > 0 {
		d.preview(frame, occ)
	}

	if d.duePost(state.LastPostAt, now) {
		state = d.post(now, occ)
	}

	d.notify(state)
	return d.detectInterval
}

func (d *Detector) duePost(lastPost, now time.Time) bool {
	return lastPost.IsZero() || now.Sub(lastPost) >= d.minPostInterval
}

// post reports occ and records the attempt time whether or not it succeeded.
func (d *Detector) post(now time.Time, occ model.Occupancy) model.DetectionState {
	ctx := context.Background()
	if d.postTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.postTimeout)
		defer cancel()
	}

	err := d.sink.Post(ctx, occ)
	if err != nil {
		d.logger.Error("Telemetry post failed: %v", err)
	}

	return d.store.update(func(st *model.DetectionState) {
		st.LastPostAt = now
		if err != nil {
			setError(st, model.ErrorSourceTelemetry, err)
		} else {
			clearError(st, model.ErrorSourceTelemetry)
		}
	})
}

func (d *Detector) preview(frame gocv.Mat, occ model.Occupancy) {
	img, err := Annotate(frame, d.classifier.Regions, occ)
	if err != nil {
		d.logger.Warning("Preview failed: %v", err)
		return
	}
	for _, fn := range d.previews {
		fn(img)
	}
}

func (d *Detector) notify(state model.DetectionState) {
	for _, fn := range d.listeners {
		fn(state)
	}
}

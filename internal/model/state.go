package model

import "time"

// ErrorSource tells which part of the pipeline produced DetectionState.LastError.
type ErrorSource string

const (
	ErrorSourceNone      ErrorSource = ""
	ErrorSourceCamera    ErrorSource = "camera"
	ErrorSourceTelemetry ErrorSource = "telemetry"
)

// DetectionState is the observable result of the detection loop.
// Values are published whole; a published Occupancy is never modified.
type DetectionState struct {
	Occupancy     Occupancy
	LastFrameAt   time.Time
	LastPostAt    time.Time
	CameraHealthy bool
	LastError     string
	ErrorSource   ErrorSource
}

// Clone returns a deep copy.
func (s DetectionState) Clone() DetectionState {
	s.Occupancy = s.Occupancy.Clone()
	return s
}

// HasError reports whether an error is currently recorded.
func (s DetectionState) HasError() bool {
	return s.LastError != ""
}

// EpochSeconds converts t to fractional epoch seconds; the zero time maps to 0.
func EpochSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / float64(time.Second)
}

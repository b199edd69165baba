package dto

import "parkingserver/internal/model"

// Health is the body of GET /health.
type Health struct {
	OK           bool    `json:"ok"`
	CameraOK     bool    `json:"camera_ok"`
	LastFrameTS  float64 `json:"last_frame_ts"`
	LastPostTime float64 `json:"last_post_time"`
	Error        *string `json:"error"`
}

// NewHealth builds the health body from a detection state.
func NewHealth(st model.DetectionState) Health {
	return Health{
		OK:           true,
		CameraOK:     st.CameraHealthy,
		LastFrameTS:  model.EpochSeconds(st.LastFrameAt),
		LastPostTime: model.EpochSeconds(st.LastPostAt),
		Error:        errorOrNil(st),
	}
}

func errorOrNil(st model.DetectionState) *string {
	if !st.HasError() {
		return nil
	}
	msg := st.LastError
	return &msg
}

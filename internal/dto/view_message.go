package dto

import "parkingserver/internal/model"

// Message types pushed to dashboard viewers.
const (
	MessageState   = "state"
	MessagePreview = "preview"
)

// StateMessage is pushed whenever occupancy, camera health or the error changes.
type StateMessage struct {
	Type        string  `json:"type"`
	Slots       []int   `json:"slots"`
	Free        int     `json:"free"`
	CameraOK    bool    `json:"camera_ok"`
	LastFrameTS float64 `json:"last_frame_ts"`
	Error       *string `json:"error"`
}

// NewStateMessage builds a state message from a detection state.
func NewStateMessage(st model.DetectionState) StateMessage {
	return StateMessage{
		Type:        MessageState,
		Slots:       NewStatus(st).Slots,
		Free:        st.Occupancy.FreeCount(),
		CameraOK:    st.CameraHealthy,
		LastFrameTS: model.EpochSeconds(st.LastFrameAt),
		Error:       errorOrNil(st),
	}
}

// PreviewMessage carries an annotated JPEG frame, base64 encoded.
type PreviewMessage struct {
	Type  string `json:"type"`
	Image string `json:"image"`
}

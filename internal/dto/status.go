package dto

import "parkingserver/internal/model"

// Status is the body of GET /status.
type Status struct {
	Slots []int `json:"slots"`
}

// NewStatus builds the status body; slots is never null.
func NewStatus(st model.DetectionState) Status {
	slots := []int(st.Occupancy.Clone())
	if slots == nil {
		slots = []int{}
	}
	return Status{Slots: slots}
}

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"parkingserver/internal/config"
	"parkingserver/internal/model"
)

const (
	// DefaultFields is the number of fields a ThingSpeak channel accepts per update.
	DefaultFields = 4
	// DefaultTimeout bounds a single update request.
	DefaultTimeout = 5 * time.Second
)

// ErrRejected is returned when ThingSpeak answers an update with entry id 0,
// which it does for rate-limited or otherwise refused updates.
var ErrRejected = errors.New("thingspeak rejected update")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("thingspeak: unexpected status %s", e.Status)
}

// ThingSpeak posts occupancy vectors to a ThingSpeak-compatible update endpoint.
type ThingSpeak struct {
	url    string
	apiKey string
	fields int
	client *http.Client
}

// NewThingSpeak creates a sink from the telemetry section of cfg.
func NewThingSpeak(cfg *config.Config) *ThingSpeak {
	fields := cfg.ThingSpeakFields
	if fields <= 0 {
		fields = DefaultFields
	}
	timeout := cfg.ThingSpeakTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &ThingSpeak{
		url:    cfg.ThingSpeakURL,
		apiKey: cfg.ThingSpeakWriteKey,
		fields: fields,
		client: &http.Client{Timeout: timeout},
	}
}

// Payload maps occupancy positions to field1..fieldN. Positions past N are
// dropped and missing positions are reported as free.
func (t *ThingSpeak) Payload(occ model.Occupancy) url.Values {
	form := url.Values{}
	form.Set("api_key", t.apiKey)
	for i := 0; i < t.fields; i++ {
		v := model.Free
		if i < len(occ) {
			v = occ[i]
		}
		form.Set("field"+strconv.Itoa(i+1), strconv.Itoa(v))
	}
	return form
}

// Post sends one update. Any transport or response failure is returned.
func (t *ThingSpeak) Post(ctx context.Context, occ model.Occupancy) error {
	body := strings.NewReader(t.Payload(occ).Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, body)
	if err != nil {
		return fmt.Errorf("thingspeak: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("thingspeak: post failed: %w", err)
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return fmt.Errorf("thingspeak: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	if strings.TrimSpace(string(text)) == "0" {
		return ErrRejected
	}
	return nil
}

package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkingserver/internal/config"
	"parkingserver/internal/model"
)

// ========================================
// Test Setup Helpers
// ========================================

type capturedRequest struct {
	method      string
	contentType string
	form        url.Values
}

func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *[]capturedRequest) {
	t.Helper()

	var mu sync.Mutex
	var captured []capturedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		mu.Lock()
		captured = append(captured, capturedRequest{
			method:      r.Method,
			contentType: r.Header.Get("Content-Type"),
			form:        r.PostForm,
		})
		mu.Unlock()
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv, &captured
}

func newTestSink(url string) *ThingSpeak {
	return NewThingSpeak(&config.Config{
		ThingSpeakURL:      url,
		ThingSpeakWriteKey: "WRITEKEY",
		ThingSpeakFields:   4,
		ThingSpeakTimeout:  time.Second,
	})
}

// ========================================
// Payload Tests
// ========================================

func TestPayload_ShortVectorPadsWithFree(t *testing.T) {
	sink := newTestSink("http://unused")

	form := sink.Payload(model.Occupancy{1})

	assert.Equal(t, "WRITEKEY", form.Get("api_key"))
	assert.Equal(t, "1", form.Get("field1"))
	assert.Equal(t, "0", form.Get("field2"))
	assert.Equal(t, "0", form.Get("field3"))
	assert.Equal(t, "0", form.Get("field4"))
}

func TestPayload_LongVectorIsTruncated(t *testing.T) {
	sink := newTestSink("http://unused")

	form := sink.Payload(model.Occupancy{1, 0, 1, 1, 1, 1})

	assert.Equal(t, "1", form.Get("field1"))
	assert.Equal(t, "0", form.Get("field2"))
	assert.Equal(t, "1", form.Get("field3"))
	assert.Equal(t, "1", form.Get("field4"))
	assert.False(t, form.Has("field5"))
	assert.Len(t, form, 5)
}

func TestPayload_Defaults(t *testing.T) {
	sink := NewThingSpeak(&config.Config{ThingSpeakWriteKey: "k"})

	form := sink.Payload(nil)

	assert.Len(t, form, DefaultFields+1)
	assert.Equal(t, DefaultTimeout, sink.client.Timeout)
}

// ========================================
// Post Tests
// ========================================

func TestPost_SendsFormEncodedUpdate(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusOK, "42")
	sink := newTestSink(srv.URL)

	err := sink.Post(context.Background(), model.Occupancy{1})
	require.NoError(t, err)

	require.Len(t, *captured, 1)
	req := (*captured)[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "application/x-www-form-urlencoded", req.contentType)
	assert.Equal(t, url.Values{
		"api_key": {"WRITEKEY"},
		"field1":  {"1"},
		"field2":  {"0"},
		"field3":  {"0"},
		"field4":  {"0"},
	}, req.form)
}

func TestPost_NonSuccessStatus(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusBadRequest, "invalid key")
	sink := newTestSink(srv.URL)

	err := sink.Post(context.Background(), model.Occupancy{0, 1})

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Contains(t, err.Error(), "400")
}

func TestPost_RejectedUpdate(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, "0")
	sink := newTestSink(srv.URL)

	err := sink.Post(context.Background(), model.Occupancy{1, 1, 1, 1})

	assert.ErrorIs(t, err, ErrRejected)
}

func TestPost_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	err := newTestSink(addr).Post(context.Background(), model.Occupancy{1})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "post failed")
}

func TestPost_TimeoutBoundsCall(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	sink := NewThingSpeak(&config.Config{
		ThingSpeakURL:      srv.URL,
		ThingSpeakWriteKey: "k",
		ThingSpeakTimeout:  50 * time.Millisecond,
	})

	started := time.Now()
	err := sink.Post(context.Background(), model.Occupancy{1})

	require.Error(t, err)
	assert.Less(t, time.Since(started), time.Second)
}

func TestPost_ContextCancelled(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, "1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestSink(srv.URL).Post(ctx, model.Occupancy{1})

	assert.True(t, errors.Is(err, context.Canceled))
}

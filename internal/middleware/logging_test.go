package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"parkingserver/internal/logger"
)

func TestLoggingMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
		logged bool
	}{
		{"health ok is quiet", "/health", http.StatusOK, false},
		{"status ok is quiet", "/status", http.StatusOK, false},
		{"static ok is quiet", "/static/js/dashboard.js", http.StatusOK, false},
		{"static missing is logged", "/static/missing.js", http.StatusNotFound, true},
		{"health failure is logged", "/health", http.StatusMethodNotAllowed, true},
		{"dashboard is logged", "/", http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			rec := httptest.NewRecorder()
			LoggingMiddleware(logger.NewConsoleLogger(&buf), next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.status, rec.Code)
			if tt.logged {
				assert.Contains(t, buf.String(), tt.path)
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestStatusRecorder_HijackUnsupported(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}

	_, _, err := rec.Hijack()
	assert.Error(t, err)
}

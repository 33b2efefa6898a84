package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewHandler(nil, nil, nil, nil, quietLogger()).HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleReady(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		storage    Pinger
		wantStatus int
		wantDB     string
	}{
		{"connected", &fakePinger{}, http.StatusOK, "connected"},
		{"ping fails", &fakePinger{err: errors.New("disk I/O error")}, http.StatusServiceUnavailable, "unavailable"},
		{"no storage", nil, http.StatusServiceUnavailable, "not configured"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			NewHandler(tt.storage, nil, nil, nil, quietLogger()).HandleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantDB, body["database"])
		})
	}
}

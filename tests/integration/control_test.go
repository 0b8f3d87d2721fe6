package integration_test

import (
	"net/http"
	"testing"

	"github.com/rovercam/rovercam/tests/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestControl_FireAndForget exercises the rover control routes. Command
// delivery is best-effort, so every route must acknowledge regardless
// of broker availability (the test services run with publishing
// disabled entirely).
func TestControl_FireAndForget(t *testing.T) {
	srv := helpers.RequireService(t, "control_test")
	t.Parallel()

	client := &http.Client{}
	base := srv.GetServerBasePath()

	tests := []struct {
		summary string
		method  string
		path    string
	}{
		{"drive forward", http.MethodGet, "direction/forward"},
		{"drive backward", http.MethodGet, "direction/backward"},
		{"steer left", http.MethodGet, "direction/left"},
		{"steer right", http.MethodGet, "direction/right"},
		{"start recording", http.MethodPost, "record"},
		{"stop recording", http.MethodPost, "stop-record"},
		{"start tracking", http.MethodPost, "track"},
		{"stop tracking", http.MethodPost, "stop-track"},
	}

	for _, tt := range tests {
		t.Run(tt.summary, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, base+tt.path, nil)
			require.NoError(t, err)

			resp, err := client.Do(req)
			require.NoError(t, err)
			resp.Body.Close()

			assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		})
	}
}

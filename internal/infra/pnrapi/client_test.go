package pnrapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pnr_tracker/internal/domain/pnr"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_FetchStatus_Success(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/getPNRStatus/1234567890", r.URL.Path)
		assert.Equal(t, "pnr.example", r.Header.Get("x-rapidapi-host"))
		assert.Equal(t, "secret", r.Header.Get("x-rapidapi-key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"passengerStatus":[{"currentStatus":"RAC 4","coach":"S1","seatNumber":"7","berthPreference":"SL"}],"boardingPoint":"BCT","chartPrepared":false}`))
	})

	c := NewClient(srv.URL, "pnr.example", "secret", time.Second)
	snap, err := c.FetchStatus(context.Background(), "1234567890")

	require.NoError(t, err)
	assert.Equal(t, pnr.StatusSnapshot{
		Status:          "RAC 4",
		Coach:           "S1",
		SeatNumber:      "7",
		BerthPreference: "SL",
		CurrentLocation: "BCT",
		ChartStatus:     "Chart Not Prepared",
	}, snap)
}

func TestClient_FetchStatus_Failures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCause string
	}{
		{"server error", http.StatusInternalServerError, `{"passengerStatus":[]}`, "unexpected status 500"},
		{"rate limited", http.StatusTooManyRequests, ``, "unexpected status 429"},
		{"embedded error", http.StatusOK, `{"error":"Invalid PNR"}`, "Invalid PNR"},
		{"null body", http.StatusOK, `null`, "invalid response from PNR API"},
		{"empty body", http.StatusOK, ``, "invalid response from PNR API"},
		{"array body", http.StatusOK, `[{"currentStatus":"CNF"}]`, "invalid response from PNR API"},
		{"html body", http.StatusOK, `<html>gateway</html>`, "invalid response from PNR API"},
		{"truncated json", http.StatusOK, `{"passengerStatus":[`, "decoding response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := NewClient(srv.URL, "", "", time.Second).FetchStatus(context.Background(), "1234567890")

			require.Error(t, err)
			assert.True(t, errors.Is(err, pnr.ErrUpstreamUnavailable))
			var fe *pnr.FetchError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, "1234567890", fe.PNR)
			assert.Contains(t, fe.Cause, tt.wantCause)
		})
	}
}

func TestClient_FetchStatus_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	c := NewClient(srv.URL, "", "", 50*time.Millisecond)
	start := time.Now()
	_, err := c.FetchStatus(context.Background(), "1234567890")

	require.Error(t, err)
	assert.ErrorIs(t, err, pnr.ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClient_FetchStatus_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := NewClient(addr, "", "", time.Second).FetchStatus(context.Background(), "1234567890")

	require.Error(t, err)
	assert.ErrorIs(t, err, pnr.ErrUpstreamUnavailable)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("", "", "", 0)

	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
}

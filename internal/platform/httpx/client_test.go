package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientTimeouts(t *testing.T) {
	tests := []struct {
		name        string
		timeout     time.Duration
		wantClient  time.Duration
		wantDial    time.Duration
		wantHeaders time.Duration
	}{
		{name: "default", timeout: 0, wantClient: defaultClientTimeout, wantDial: defaultDialTimeout, wantHeaders: defaultClientTimeout},
		{name: "provider_call", timeout: 30 * time.Second, wantClient: 30 * time.Second, wantDial: defaultDialTimeout, wantHeaders: defaultResponseHeaderTimeout},
		{name: "short", timeout: 1500 * time.Millisecond, wantClient: 1500 * time.Millisecond, wantDial: 1500 * time.Millisecond, wantHeaders: 1500 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(tt.timeout)
			assert.Equal(t, tt.wantClient, c.Timeout)

			tr, ok := c.Transport.(*http.Transport)
			require.True(t, ok, "transport type %T", c.Transport)
			assert.Equal(t, tt.wantDial, tr.TLSHandshakeTimeout)
			assert.Equal(t, tt.wantHeaders, tr.ResponseHeaderTimeout)
			assert.Equal(t, defaultMaxIdleConnsPerHost, tr.MaxIdleConnsPerHost)
		})
	}
}

func TestNewTracedClientRoundTrips(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-Method", r.Method)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewTracedClient(2*time.Second, "social.webhook")
	_, plain := c.Transport.(*http.Transport)
	assert.False(t, plain, "transport is wrapped by otelhttp")

	resp, err := c.Post(srv.URL, "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, http.MethodPost, resp.Header.Get("X-Seen-Method"))
}

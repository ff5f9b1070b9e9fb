package retry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/controlplane-com/pool-orchestrator/pkg/shared/apierr"
)

func newTestTransport(t *testing.T, spec Spec) (*Transport, *[]time.Duration) {
	t.Helper()
	tr, err := NewTransport(http.DefaultTransport, spec)
	require.NoError(t, err)

	var sleeps []time.Duration
	tr.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return tr, &sleeps
}

// scriptedServer answers with the given status codes in order, then 200
func scriptedServer(codes ...int) (*httptest.Server, *int32, *[]string) {
	var calls int32
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if int(n) <= len(codes) {
			w.WriteHeader(codes[n-1])
			w.Write([]byte("transient"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	return srv, &calls, &bodies
}

func TestRetriesTransientStatusUntilSuccess(t *testing.T) {
	srv, calls, _ := scriptedServer(503, 503, 503)
	defer srv.Close()

	spec := DefaultSpec()
	spec.MaxRetries = 3
	tr, sleeps := newTestTransport(t, spec)

	resp, err := (&http.Client{Transport: tr}).Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(4), atomic.LoadInt32(calls))
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, *sleeps)
}

func TestReturnsLastResponseWhenRetriesExhausted(t *testing.T) {
	srv, calls, _ := scriptedServer(503, 503, 503, 503, 503)
	defer srv.Close()

	spec := DefaultSpec()
	spec.MaxRetries = 2
	tr, _ := newTestTransport(t, spec)

	resp, err := (&http.Client{Transport: tr}).Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "transient", string(body))
}

func TestNonRetryableMethodIsSentOnce(t *testing.T) {
	srv, calls, _ := scriptedServer(503, 503)
	defer srv.Close()

	spec := DefaultSpec()
	spec.MaxRetries = 3
	spec.Methods = []string{http.MethodGet}
	tr, sleeps := newTestTransport(t, spec)

	resp, err := (&http.Client{Transport: tr}).Post(srv.URL, "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Empty(t, *sleeps)
}

func TestZeroRetriesSendsOnce(t *testing.T) {
	srv, calls, _ := scriptedServer(503)
	defer srv.Close()

	tr, _ := newTestTransport(t, DefaultSpec())

	resp, err := (&http.Client{Transport: tr}).Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestNonTransientStatusIsNotRetried(t *testing.T) {
	srv, calls, _ := scriptedServer(500)
	defer srv.Close()

	spec := DefaultSpec()
	spec.MaxRetries = 5
	tr, _ := newTestTransport(t, spec)

	resp, err := (&http.Client{Transport: tr}).Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestRetryReplaysRequestBody(t *testing.T) {
	srv, _, bodies := scriptedServer(502)
	defer srv.Close()

	spec := DefaultSpec()
	spec.MaxRetries = 1
	tr, _ := newTestTransport(t, spec)

	resp, err := (&http.Client{Transport: tr}).Post(srv.URL, "application/json", strings.NewReader(`{"a":1}`))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{`{"a":1}`, `{"a":1}`}, *bodies)
}

func TestConnectionErrorIsNotRetried(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	spec := DefaultSpec()
	spec.MaxRetries = 3
	tr, sleeps := newTestTransport(t, spec)

	_, err := (&http.Client{Transport: tr}).Get(url)
	require.Error(t, err)
	assert.Empty(t, *sleeps)
}

func TestNewTransportValidatesSpec(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr bool
	}{
		{"default", DefaultSpec(), false},
		{"max retries", Spec{MaxRetries: 10, Delay: time.Second}, false},
		{"too many retries", Spec{MaxRetries: 11, Delay: time.Second}, true},
		{"negative retries", Spec{MaxRetries: -1, Delay: time.Second}, true},
		{"short delay", Spec{MaxRetries: 1, Delay: 500 * time.Millisecond}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTransport(nil, tt.spec)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apierr.ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
		})
	}
}

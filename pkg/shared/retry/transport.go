package retry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/controlplane-com/pool-orchestrator/pkg/shared/apierr"
)

const (
	MaxRetriesLimit = 10
	MinDelay        = time.Second
)

// DefaultStatusCodes are the responses treated as transient by the platform
var DefaultStatusCodes = []int{
	http.StatusTooManyRequests,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// DefaultMethods are the HTTP methods eligible for a retry
var DefaultMethods = []string{
	http.MethodHead,
	http.MethodGet,
	http.MethodPut,
	http.MethodPost,
	http.MethodDelete,
	http.MethodOptions,
}

// Spec configures a Transport
type Spec struct {
	MaxRetries  int
	Delay       time.Duration
	StatusCodes []int
	Methods     []string
}

// DefaultSpec returns 0 retries with a 1s delay and the default status/method sets
func DefaultSpec() Spec {
	return Spec{
		MaxRetries:  0,
		Delay:       MinDelay,
		StatusCodes: slices.Clone(DefaultStatusCodes),
		Methods:     slices.Clone(DefaultMethods),
	}
}

// Validate enforces 0 <= MaxRetries <= 10 and Delay >= 1s
func (s Spec) Validate() error {
	if s.MaxRetries < 0 || s.MaxRetries > MaxRetriesLimit {
		return apierr.InvalidConfig("retries must be between 0 and %d, got %d", MaxRetriesLimit, s.MaxRetries)
	}
	if s.Delay < MinDelay {
		return apierr.InvalidConfig("retry delay must be at least %v, got %v", MinDelay, s.Delay)
	}
	return nil
}

// Transport wraps an http.RoundTripper and re-sends requests that received a
// transient status. Connection-level errors are returned as-is.
type Transport struct {
	base        http.RoundTripper
	maxRetries  int
	delay       time.Duration
	statusCodes map[int]struct{}
	methods     map[string]struct{}
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *slog.Logger
}

// NewTransport validates spec and wraps base. A nil base uses http.DefaultTransport.
func NewTransport(base http.RoundTripper, spec Spec) (*Transport, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if base == nil {
		base = http.DefaultTransport
	}

	codes := spec.StatusCodes
	if codes == nil {
		codes = DefaultStatusCodes
	}
	methods := spec.Methods
	if methods == nil {
		methods = DefaultMethods
	}

	t := &Transport{
		base:        base,
		maxRetries:  spec.MaxRetries,
		delay:       spec.Delay,
		statusCodes: make(map[int]struct{}, len(codes)),
		methods:     make(map[string]struct{}, len(methods)),
		sleep:       sleepContext,
		logger:      slog.Default(),
	}
	for _, c := range codes {
		t.statusCodes[c] = struct{}{}
	}
	for _, m := range methods {
		t.methods[strings.ToUpper(m)] = struct{}{}
	}
	return t, nil
}

// Base returns the wrapped transport
func (t *Transport) Base() http.RoundTripper {
	return t.base
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (t *Transport) retryable(req *http.Request) bool {
	if t.maxRetries == 0 {
		return false
	}
	_, ok := t.methods[strings.ToUpper(req.Method)]
	return ok
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.retryable(req) {
		return t.base.RoundTrip(req)
	}

	remaining := t.maxRetries
	for attempt := 0; ; attempt++ {
		outgoing := req
		if attempt > 0 {
			var err error
			outgoing, err = rewind(req)
			if err != nil {
				return nil, err
			}
		}

		resp, err := t.base.RoundTrip(outgoing)
		if err != nil {
			return nil, err
		}

		if _, transient := t.statusCodes[resp.StatusCode]; !transient || remaining == 0 {
			return resp, nil
		}

		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		t.logger.Warn("retrying request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", resp.StatusCode,
			"attempt", attempt+1,
			"remaining", remaining-1)

		remaining--
		if err := t.sleep(req.Context(), t.delay); err != nil {
			return nil, err
		}
	}
}

// rewind clones req with a fresh body for a repeated send
func rewind(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("failed to retry %s %s: request body cannot be replayed", req.Method, req.URL.Path)
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("failed to rewind request body: %w", err)
	}
	clone.Body = body
	return clone, nil
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/controlplane-com/pool-orchestrator/pkg/shared/apierr"
	"github.com/controlplane-com/pool-orchestrator/pkg/shared/retry"
	"github.com/controlplane-com/pool-orchestrator/pkg/shared/types"
)

// Connection pool limits of the shared transport
const (
	MaxIdleConnsPerHost = 5
	MaxConnsPerHost     = 10
)

const defaultUserAgent = "pool-orchestrator/1.0"

// KeyType selects the Authorization scheme for the API token
type KeyType string

const (
	KeyTypeAppKey  KeyType = "APP_KEY"
	KeyTypeUserKey KeyType = "USER_KEY"
	KeyTypeBearer  KeyType = "BEARER"
)

func (k KeyType) scheme() string {
	if k == KeyTypeAppKey {
		return "AppKey"
	}
	return "Bearer"
}

// Config holds the client configuration
type Config struct {
	BaseURL   string
	APIToken  string
	KeyType   KeyType
	Retry     retry.Spec
	RateLimit float64 // requests per second, 0 = unlimited
	RateBurst int
	Timeout   time.Duration
	UserAgent string

	// Transport is wrapped by the retrying transport. Nil uses a pooled http.Transport.
	Transport http.RoundTripper
}

// DefaultConfig returns a Config with the platform defaults
func DefaultConfig() Config {
	return Config{
		KeyType:   KeyTypeAppKey,
		Retry:     retry.DefaultSpec(),
		RateBurst: 1,
		Timeout:   2 * time.Minute,
		UserAgent: defaultUserAgent,
	}
}

// ConfigFromEnv creates a Config from environment variables.
// Unparseable values keep their defaults.
func ConfigFromEnv() Config {
	config := DefaultConfig()

	config.BaseURL = os.Getenv("EMS_BASE_URL")
	config.APIToken = os.Getenv("EMS_API_TOKEN")

	if keyType := os.Getenv("EMS_KEY_TYPE"); keyType != "" {
		config.KeyType = KeyType(strings.ToUpper(keyType))
	}

	if retries := os.Getenv("EMS_RETRIES"); retries != "" {
		if n, err := strconv.Atoi(retries); err == nil {
			config.Retry.MaxRetries = n
		}
	}

	if delay := os.Getenv("EMS_RETRY_DELAY"); delay != "" {
		if n, err := strconv.Atoi(delay); err == nil {
			config.Retry.Delay = time.Duration(n) * time.Second
		}
	}

	if limit := os.Getenv("EMS_RATE_LIMIT"); limit != "" {
		if f, err := strconv.ParseFloat(limit, 64); err == nil {
			config.RateLimit = f
		}
	}

	if timeout := os.Getenv("EMS_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Timeout = d
		}
	}

	return config
}

// Client is an HTTP client for the platform REST API.
// It is safe for concurrent use; all calls share one connection pool.
type Client struct {
	baseURL    string
	authHeader string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// New validates config and creates a Client
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, apierr.InvalidConfig("base URL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, apierr.InvalidConfig("invalid base URL %q: %v", config.BaseURL, err)
	}
	switch config.KeyType {
	case KeyTypeAppKey, KeyTypeUserKey, KeyTypeBearer:
	case "":
		config.KeyType = KeyTypeAppKey
	default:
		return nil, apierr.InvalidConfig("unknown key type %q", config.KeyType)
	}

	base := config.Transport
	if base == nil {
		base = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: MaxIdleConnsPerHost,
			MaxConnsPerHost:     MaxConnsPerHost,
			IdleConnTimeout:     90 * time.Second,
		}
	}
	transport, err := retry.NewTransport(base, config.Retry)
	if err != nil {
		return nil, err
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Client{
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		authHeader: config.KeyType.scheme() + " " + config.APIToken,
		userAgent:  userAgent,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
		limiter: limiter,
		logger:  slog.Default(),
	}, nil
}

// BaseURL returns the base URL of the client
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Invoke sends a JSON request and decodes a JSON response into out (if non-nil)
func (c *Client) Invoke(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	contentType := ""
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		contentType = "application/json"
	}
	return c.doRequest(ctx, method, path, query, contentType, payload, out)
}

// doRequest performs a single logical request. Transient statuses are retried
// by the transport; whatever comes back is classified here.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, contentType string, payload []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "requestId", requestID, "error", err)
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := classify(method, path, resp.StatusCode, respBody)
		c.logger.Debug("request returned error status",
			"method", method,
			"path", path,
			"requestId", requestID,
			"statusCode", resp.StatusCode)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response from %s %s: %w", method, path, err)
	}
	return nil
}

// classify maps an error status onto the error taxonomy
func classify(method, path string, statusCode int, body []byte) *apierr.Error {
	var errResp types.ErrorResponse
	message := ""
	if err := json.Unmarshal(body, &errResp); err == nil {
		message = errResp.Text()
	}
	if message == "" {
		message = strings.TrimSpace(string(body))
	}

	e := &apierr.Error{
		Kind:       apierr.KindHTTPStatus,
		Operation:  method + " " + path,
		StatusCode: statusCode,
		Message:    message,
	}
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		e.Kind = apierr.KindPermission
	case statusCode == http.StatusNotFound:
		e.Kind = apierr.KindNotFound
	case slices.Contains(retry.DefaultStatusCodes, statusCode):
		e.Kind = apierr.KindTransient
	}
	return e
}

// escape builds a path from segments, escaping each identifier
func escape(format string, ids ...string) string {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = url.PathEscape(id)
	}
	return fmt.Sprintf(format, args...)
}

package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultBaseURL = "https://api.mercadopago.com"
	DefaultTimeout = 30 * time.Second

	cardTokensPath = "/v1/card_tokens"
)

// Client defines the interface for interacting with the MercadoPago card token API
type Client interface {
	CreateCardToken(ctx context.Context, req *CardTokenRequest) (*CardToken, error)
}

// Option configures a Client
type Option func(*clientImpl)

// WithBaseURL points the client at another API host, e.g. a local fake.
func WithBaseURL(baseURL string) Option {
	return func(c *clientImpl) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the instrumented default HTTP client, so callers
// can share one transport and timeout across clients.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *clientImpl) {
		c.httpClient = httpClient
	}
}

type clientImpl struct {
	accessToken string
	baseURL     string
	httpClient  *http.Client
}

// NewClient creates a new MercadoPago client bound to one access token
func NewClient(accessToken string, opts ...Option) Client {
	c := &clientImpl{
		accessToken: accessToken,
		baseURL:     DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   DefaultTimeout,
		}
	}

	return c
}

func (c *clientImpl) CreateCardToken(ctx context.Context, req *CardTokenRequest) (*CardToken, error) {
	jsonPayload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("error creating payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+cardTokensPath, bytes.NewReader(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Idempotency-Key", uuid.NewString())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error creating card token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp.StatusCode, body)
	}

	var token CardToken
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("error parsing response: %w", err)
	}

	return &token, nil
}

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/erp/storefront/internal/domain/cart"
	"github.com/erp/storefront/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// maxResponseSize caps how much of a server reply is read (1MB)
const maxResponseSize = 1 << 20

const (
	cartPath  = "/cart"
	mergePath = "/cart/merge"
)

// Errors returned by the gateway; wrapped with %w
var (
	ErrUnavailable     = errors.New("gateway: server unreachable")
	ErrRequestFailed   = errors.New("gateway: request failed")
	ErrInvalidResponse = errors.New("gateway: invalid response")
	ErrNoToken         = errors.New("gateway: no credentials for scope")
)

// TokenSource supplies the bearer token for a user scope
type TokenSource interface {
	Token(scope cart.Scope) (string, error)
}

// TokenFunc adapts a function to TokenSource
type TokenFunc func(scope cart.Scope) (string, error)

// Token implements TokenSource
func (f TokenFunc) Token(scope cart.Scope) (string, error) {
	return f(scope)
}

// StaticToken returns the same token for every user scope
func StaticToken(token string) TokenSource {
	return TokenFunc(func(cart.Scope) (string, error) {
		if token == "" {
			return "", ErrNoToken
		}
		return token, nil
	})
}

type fetchResponse struct {
	Cart *[]cart.Line `json:"cart"`
}

type mergeRequest struct {
	CartToAdd []cart.Line `json:"cartToAdd"`
}

type beaconRequest struct {
	Cart []cart.Line `json:"cart"`
}

// HTTPGateway implements cart.Gateway against the cart service REST API
type HTTPGateway struct {
	config     Config
	tokens     TokenSource
	httpClient *http.Client
	logger     *zap.Logger

	beacons sync.WaitGroup
}

// Option configures an HTTPGateway
type Option func(*HTTPGateway)

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(g *HTTPGateway) {
		g.httpClient = c
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(g *HTTPGateway) {
		g.logger = l
	}
}

// NewHTTPGateway creates a gateway for the given configuration
func NewHTTPGateway(config Config, tokens TokenSource, opts ...Option) (*HTTPGateway, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if tokens == nil {
		tokens = StaticToken("")
	}
	g := &HTTPGateway{
		config: config.withDefaults(),
		tokens: tokens,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.httpClient == nil {
		g.httpClient = &http.Client{}
	}
	g.logger = g.logger.Named("gateway")
	return g, nil
}

// Fetch returns the server cart of a user scope
func (g *HTTPGateway) Fetch(ctx context.Context, scope cart.Scope) ([]cart.Line, error) {
	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	body, err := g.do(ctx, "fetch", http.MethodGet, cartPath, scope, nil)
	if err != nil {
		return nil, err
	}

	var resp fetchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if resp.Cart == nil {
		return nil, fmt.Errorf("%w: missing cart", ErrInvalidResponse)
	}
	return *resp.Cart, nil
}

// Merge pushes lines into the server cart
func (g *HTTPGateway) Merge(ctx context.Context, scope cart.Scope, lines []cart.Line) error {
	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	_, err := g.do(ctx, "merge", http.MethodPost, mergePath, scope, mergeRequest{CartToAdd: nonNil(lines)})
	return err
}

// Beacon sends lines to the merge endpoint in the background and returns
// immediately. Failures are logged at debug level and never surface.
func (g *HTTPGateway) Beacon(scope cart.Scope, lines []cart.Line) {
	payload := beaconRequest{Cart: nonNil(lines)}
	g.beacons.Add(1)
	go func() {
		defer g.beacons.Done()
		defer func() {
			if r := recover(); r != nil {
				g.logger.Debug("beacon panicked", zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), g.config.BeaconTimeout)
		defer cancel()
		if _, err := g.do(ctx, "beacon", http.MethodPost, mergePath, scope, payload); err != nil {
			g.logger.Debug("beacon failed",
				zap.String("scope", scope.String()),
				zap.Error(err),
			)
			return
		}
		g.logger.Debug("beacon sent", zap.String("scope", scope.String()), zap.Int("lines", len(lines)))
	}()
}

// Flush waits for in-flight beacons until they finish or ctx is done. It
// reports whether every beacon finished.
func (g *HTTPGateway) Flush(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		g.beacons.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// do runs one request under a client span named after op and propagates
// the trace to the cart service
func (g *HTTPGateway) do(ctx context.Context, op, method, path string, scope cart.Scope, payload any) (body []byte, err error) {
	ctx, span := telemetry.StartSpan(ctx, "cart.gateway."+op, trace.SpanKindClient,
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
	)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	if !scope.IsUser() {
		return nil, ErrNoToken
	}
	token, err := g.tokens.Token(scope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoToken, err)
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("gateway: failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.config.endpoint(path), reqBody)
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrRequestFailed, resp.StatusCode)
	}
	return body, nil
}

func nonNil(lines []cart.Line) []cart.Line {
	if lines == nil {
		return []cart.Line{}
	}
	return lines
}

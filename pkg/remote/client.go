// Package remote is the HTTP client for the recruiting platform API that
// owns workflows, stages and positions.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dukex/hireflow/pkg/log"
	"github.com/dukex/hireflow/pkg/models"
	"github.com/dukex/hireflow/pkg/otelhelper"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultTimeout       = 10 * time.Second
	defaultRetryElapsed  = 5 * time.Second
	maxErrorBodyBytes    = 1 << 20
	requestIDHeader      = "X-Request-Id"
	validationErrorsKey  = "validation_errors"
	contentTypeJSON      = "application/json"
	authorizationHeader  = "Authorization"
	bearerPrefix         = "Bearer "
	defaultUserAgentName = "hireflow"
)

// Client talks to the remote API. GET requests are retried with
// exponential backoff on transport failures; writes are never retried.
type Client struct {
	baseURL      *url.URL
	httpClient   *http.Client
	token        string
	retryElapsed time.Duration
	logger       *slog.Logger
}

type Option func(*Client)

// WithToken sends a bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRetryElapsed bounds the total time spent retrying a GET. Zero disables retries.
func WithRetryElapsed(d time.Duration) Option {
	return func(c *Client) {
		c.retryElapsed = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid remote API URL: %w", err)
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid remote API URL %q: scheme and host are required", baseURL)
	}

	c := &Client{
		baseURL:      parsed,
		httpClient:   &http.Client{Timeout: defaultTimeout},
		retryElapsed: defaultRetryElapsed,
		logger:       log.WithModule("remote"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// GetWorkflow fetches a workflow with its custom field configuration.
func (c *Client) GetWorkflow(ctx context.Context, workflowID string) (*models.Workflow, error) {
	var workflow models.Workflow

	err := c.get(ctx, "GetWorkflow", "/workflows/"+url.PathEscape(workflowID), &workflow)
	if err != nil {
		return nil, err
	}

	return &workflow, nil
}

// ListStages fetches the stages of a workflow.
func (c *Client) ListStages(ctx context.Context, workflowID string) ([]*models.Stage, error) {
	var stages []*models.Stage

	err := c.get(ctx, "ListStages", "/workflows/"+url.PathEscape(workflowID)+"/stages", &stages)
	if err != nil {
		return nil, err
	}

	return stages, nil
}

// ListPositions fetches every position that references the workflow.
func (c *Client) ListPositions(ctx context.Context, workflowID string) ([]*models.Position, error) {
	var positions []*models.Position

	err := c.get(ctx, "ListPositions", "/workflows/"+url.PathEscape(workflowID)+"/positions", &positions)
	if err != nil {
		return nil, err
	}

	return positions, nil
}

// GetPosition fetches a single position.
func (c *Client) GetPosition(ctx context.Context, positionID string) (*models.Position, error) {
	var position models.Position

	err := c.get(ctx, "GetPosition", "/positions/"+url.PathEscape(positionID), &position)
	if err != nil {
		return nil, err
	}

	return &position, nil
}

// UpdatePosition writes changes to a position. A 400 response with
// validation_errors is returned as *ValidationError.
func (c *Client) UpdatePosition(ctx context.Context, positionID string, changes map[string]any) (*models.Position, error) {
	var position models.Position

	err := c.do(ctx, "UpdatePosition", http.MethodPut, "/positions/"+url.PathEscape(positionID), changes, &position)
	if err != nil {
		return nil, err
	}

	return &position, nil
}

// MoveToStage asks the server to move a position to stageID.
func (c *Client) MoveToStage(ctx context.Context, positionID, stageID string) (*models.Position, error) {
	var position models.Position

	body := map[string]string{"stage_id": stageID}

	err := c.do(ctx, "MoveToStage", http.MethodPost, "/positions/"+url.PathEscape(positionID)+"/move-to-stage", body, &position)
	if err != nil {
		return nil, err
	}

	return &position, nil
}

// PerformAction posts a lifecycle action. The returned position is the
// updated one, or the new copy for clone.
func (c *Client) PerformAction(ctx context.Context, positionID, action string, payload map[string]string) (*models.Position, error) {
	var position models.Position

	path := "/positions/" + url.PathEscape(positionID) + "/" + url.PathEscape(action)

	var body any
	if len(payload) > 0 {
		body = payload
	}

	err := c.do(ctx, "PerformAction", http.MethodPost, path, body, &position)
	if err != nil {
		return nil, err
	}

	return &position, nil
}

func (c *Client) get(ctx context.Context, op, path string, out any) error {
	if c.retryElapsed <= 0 {
		return c.do(ctx, op, http.MethodGet, path, nil, out)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = c.retryElapsed

	return backoff.Retry(func() error {
		err := c.do(ctx, op, http.MethodGet, path, nil, out)

		var terr *TransportError
		if err != nil && errors.As(err, &terr) && terr.retryable() && ctx.Err() == nil {
			c.logger.DebugContext(ctx, "Retrying remote request", "op", op, "error", err)

			return err
		}

		if err != nil {
			return backoff.Permanent(err)
		}

		return nil
	}, backoff.WithContext(bo, ctx))
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	ctx, span := otelhelper.StartSpan(ctx, otel.Tracer("hireflow/remote"), "remote."+op,
		attribute.String(otelhelper.HTTPPathKey, path))
	defer span.End()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}

	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("User-Agent", defaultUserAgentName)
	req.Header.Set(requestIDHeader, uuid.New().String())

	if body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}

	if c.token != "" {
		req.Header.Set(authorizationHeader, bearerPrefix+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		terr := &TransportError{Op: op, Err: err}
		otelhelper.SetError(span, terr)

		return terr
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.DebugContext(ctx, "Failed to close response body", "op", op, "error", err)
		}
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			terr := &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
			otelhelper.SetError(span, terr)

			return terr
		}

		return nil
	}

	rerr := decodeError(op, resp)
	otelhelper.SetError(span, rerr)

	return rerr
}

// decodeError maps a non-2xx response onto ValidationError or TransportError.
// Only a 400 carrying validation_errors becomes a ValidationError.
func decodeError(op string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	if resp.StatusCode == http.StatusNotFound {
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: ErrNotFound}
	}

	if resp.StatusCode == http.StatusBadRequest {
		if fields, ok := parseValidationErrors(data); ok {
			return &ValidationError{Op: op, Fields: fields}
		}
	}

	message := strings.TrimSpace(string(data))
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	return &TransportError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(message)}
}

// parseValidationErrors accepts messages as a list of strings or a single string.
func parseValidationErrors(data []byte) (models.FieldErrors, bool) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, false
	}

	raw, ok := envelope[validationErrorsKey]
	if !ok {
		return nil, false
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil || len(entries) == 0 {
		return nil, false
	}

	fields := make(models.FieldErrors, len(entries))

	for field, value := range entries {
		var messages []string
		if err := json.Unmarshal(value, &messages); err == nil {
			fields[field] = messages

			continue
		}

		var message string
		if err := json.Unmarshal(value, &message); err == nil {
			fields[field] = []string{message}
		}
	}

	return fields, len(fields) > 0
}

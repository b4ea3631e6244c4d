// Package backend talks to the inference service over HTTP. Every response
// passes through a Validator before any of it is decoded.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bnema/askdb/internal/domain"
	"github.com/bnema/askdb/internal/metrics"
	"github.com/bnema/askdb/internal/ports"
	ollama "github.com/ollama/ollama/api"
	"github.com/rs/zerolog"
)

const (
	defaultRequestTimeout = 120 * time.Second
	maxHealthTimeout      = 2 * time.Second
	errorExcerptBytes     = 512
)

type Options struct {
	Dialect       string
	BaseURL       string
	Model         string
	APIKey        string
	HTTPClient    *http.Client
	Timeout       time.Duration
	HealthTimeout time.Duration
	Validator     *Validator
	Logger        zerolog.Logger
	Metrics       *metrics.Metrics
}

type Client struct {
	dialect       string
	baseURL       *url.URL
	model         string
	apiKey        string
	httpClient    *http.Client
	timeout       time.Duration
	healthTimeout time.Duration
	validator     *Validator
	logger        zerolog.Logger
	metrics       *metrics.Metrics
}

var _ ports.Backend = (*Client)(nil)

func New(opts Options) (*Client, error) {
	dialect := strings.ToLower(strings.TrimSpace(opts.Dialect))
	if dialect != DialectOllama && dialect != DialectOpenAI {
		return nil, fmt.Errorf("unsupported backend dialect %q", opts.Dialect)
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, errors.New("backend model is required")
	}

	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	healthTimeout := opts.HealthTimeout
	if healthTimeout <= 0 || healthTimeout > maxHealthTimeout {
		healthTimeout = maxHealthTimeout
	}
	validator := opts.Validator
	if validator == nil {
		validator = NewValidator(DefaultMaxResponseBytes, DefaultWarnResponseBytes, opts.Logger, opts.Metrics)
	}

	return &Client{
		dialect:       dialect,
		baseURL:       base,
		model:         strings.TrimSpace(opts.Model),
		apiKey:        opts.APIKey,
		httpClient:    httpClient,
		timeout:       timeout,
		healthTimeout: healthTimeout,
		validator:     validator,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
	}, nil
}

func (c *Client) Dialect() string {
	return c.dialect
}

func (c *Client) Model() string {
	return c.model
}

// Chat sends one model round. Failures are *domain.TurnError values of kind
// transport or validation; Chat itself never retries.
func (c *Client) Chat(ctx context.Context, req ports.ChatRequest) (ports.ChatReply, error) {
	body, path, err := encodeRequest(c.dialect, c.model, req)
	if err != nil {
		return ports.ChatReply{}, err
	}

	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, http.MethodPost, c.endpoint(path), bytes.NewReader(body))
	if err != nil {
		return ports.ChatReply{}, fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	c.authorize(httpReq)

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.RecordBackendRequest(c.dialect, "transport_error", time.Since(started))
		return ports.ChatReply{}, &domain.TurnError{
			Kind:    domain.KindTransport,
			Message: "backend request failed",
			Err:     err,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.metrics.RecordBackendRequest(c.dialect, "http_error", time.Since(started))
		return ports.ChatReply{}, &domain.TurnError{
			Kind:    domain.KindTransport,
			Message: c.statusMessage(resp),
		}
	}

	payload, err := c.validator.Validate(resp)
	if err != nil {
		c.metrics.RecordBackendRequest(c.dialect, "validation_error", time.Since(started))
		return ports.ChatReply{}, &domain.TurnError{
			Kind:    domain.KindValidation,
			Message: "backend response failed validation",
			Err:     err,
		}
	}

	reply, shape, errText := decodeReply(payload)
	switch shape {
	case shapeError:
		c.metrics.RecordBackendRequest(c.dialect, "backend_error", time.Since(started))
		return ports.ChatReply{}, &domain.TurnError{
			Kind:    domain.KindTransport,
			Message: "backend returned an error: " + errText,
		}
	case shapeUnknown:
		c.metrics.RecordUnknownShape()
		c.logger.Warn().
			Str("dialect", c.dialect).
			Int("size", len(payload)).
			Msg("unrecognised backend response shape, treating as an empty reply")
	}

	c.metrics.RecordBackendRequest(c.dialect, "ok", time.Since(started))
	return reply, nil
}

// Ping is the lightweight availability probe run before a turn. It never
// waits longer than the health timeout.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	var err error
	switch c.dialect {
	case DialectOllama:
		err = c.ollamaClient().Heartbeat(pingCtx)
	default:
		err = c.pingModels(pingCtx)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}
	return nil
}

// Version reports the server version when the dialect exposes one.
func (c *Client) Version(ctx context.Context) (string, error) {
	if c.dialect != DialectOllama {
		return "", nil
	}

	versionCtx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()
	version, err := c.ollamaClient().Version(versionCtx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}
	return version, nil
}

func (c *Client) ollamaClient() *ollama.Client {
	return ollama.NewClient(c.baseURL, c.httpClient)
}

func (c *Client) pingModels(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(openAIModelsPath), nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, errorExcerptBytes))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("health probe: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" && c.dialect == DialectOpenAI {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.JoinPath(path).String()
}

// statusMessage describes a non-2xx reply. The body excerpt is only included
// when the error body itself has an allowed content type.
func (c *Client) statusMessage(resp *http.Response) string {
	msg := fmt.Sprintf("backend returned status %d", resp.StatusCode)
	if _, ok := c.validator.allowedMediaType(resp.Header.Get("Content-Type")); !ok {
		return msg
	}

	excerpt, err := io.ReadAll(io.LimitReader(resp.Body, errorExcerptBytes))
	if err != nil || len(bytes.TrimSpace(excerpt)) == 0 {
		return msg
	}
	if reply, _, errText := decodeOne(excerpt); reply.Content == "" && errText != "" {
		return msg + ": " + errText
	}
	return msg + ": " + strings.TrimSpace(string(excerpt))
}

func parseBaseURL(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("backend url is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.New("backend url must use http or https")
	}
	if parsed.Host == "" {
		return nil, errors.New("backend url host is required")
	}
	return parsed, nil
}

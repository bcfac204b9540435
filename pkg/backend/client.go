// Package backend is the HTTP client for the interaction logging service.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/hcplog/pkg/models"
)

const (
	// DefaultBaseURL is where the service listens in a local setup.
	DefaultBaseURL = "http://127.0.0.1:8000/api/v1"

	// DefaultTimeout bounds a single request; extraction by the AI service is slow.
	DefaultTimeout = 20 * time.Second

	// DefaultUserID is the user all interactions are attributed to.
	DefaultUserID = 1

	// RequestIDHeader carries the per-request correlation id.
	RequestIDHeader = "X-Request-ID"

	maxBodySize = 4 << 20
)

// Client talks to the backend endpoints.
type Client struct {
	http    *http.Client
	baseURL string
	userID  int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithUserID sets the user_id sent with every request.
func WithUserID(id int) Option {
	return func(c *Client) {
		c.userID = id
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

// NewClient creates a client for baseURL (DefaultBaseURL when empty).
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		userID:  DefaultUserID,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured endpoint root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// LogInteraction extracts and stores a new interaction from free text.
func (c *Client) LogInteraction(ctx context.Context, text string) (*RecordResult, error) {
	const op = "log interaction"
	var env envelope
	if err := c.do(ctx, op, http.MethodPost, "/log_interaction", textRequest{UserID: c.userID, Text: text}, &env); err != nil {
		return nil, err
	}
	rec, ok := decodeRecord(&env, "")
	if !ok {
		return nil, &BoundaryError{Op: op, Err: ErrUnrecognizedResponse}
	}
	return rec, nil
}

// FillFormWithAI is LogInteraction plus suggested follow-up actions.
func (c *Client) FillFormWithAI(ctx context.Context, text string) (*RecordResult, error) {
	const op = "fill form"
	var env envelope
	if err := c.do(ctx, op, http.MethodPost, "/fill_form_with_ai", textRequest{UserID: c.userID, Text: text}, &env); err != nil {
		return nil, err
	}
	rec, ok := decodeRecord(&env, "")
	if !ok {
		return nil, &BoundaryError{Op: op, Err: ErrUnrecognizedResponse}
	}
	return rec, nil
}

// UpdateInteraction overwrites the fields of a saved interaction.
// When the backend answers with a bare confirmation, the returned record is the one sent.
func (c *Client) UpdateInteraction(ctx context.Context, r models.InteractionRecord) (*RecordResult, error) {
	const op = "update interaction"
	if r.LogID.IsZero() {
		return nil, &BoundaryError{Op: op, Err: fmt.Errorf("record has no log id")}
	}
	var env envelope
	path := "/update_interaction/" + url.PathEscape(r.LogID.String())
	if err := c.do(ctx, op, http.MethodPut, path, toFields(r), &env); err != nil {
		return nil, err
	}
	if env.LogID.IsZero() {
		env.LogID = r.LogID
	}
	if rec, ok := decodeRecord(&env, r.LogID); ok {
		return rec, nil
	}
	return &RecordResult{Record: r, Message: env.Message}, nil
}

// SaveManual stores a form-entered record; a zero LogID creates a new one.
func (c *Client) SaveManual(ctx context.Context, r models.InteractionRecord) (*RecordResult, error) {
	const op = "save interaction"
	req := saveManualRequest{recordFields: toFields(r), LogID: r.LogID, UserID: c.userID}
	var env envelope
	if err := c.do(ctx, op, http.MethodPost, "/save_manual", req, &env); err != nil {
		return nil, err
	}
	rec, ok := decodeRecord(&env, r.LogID)
	if !ok {
		return nil, &BoundaryError{Op: op, Err: ErrUnrecognizedResponse}
	}
	return rec, nil
}

// ChatWithAI asks a question and returns the natural-language answer.
func (c *Client) ChatWithAI(ctx context.Context, text string) (*QueryResult, error) {
	const op = "chat with ai"
	var env envelope
	if err := c.do(ctx, op, http.MethodPost, "/chat_with_ai", textRequest{UserID: c.userID, Text: text}, &env); err != nil {
		return nil, err
	}
	if env.AIMessage == nil {
		return nil, &BoundaryError{Op: op, Err: ErrUnrecognizedResponse}
	}
	return &QueryResult{Message: *env.AIMessage}, nil
}

// Chat lets the backend decide between creating, editing current, or answering.
func (c *Client) Chat(ctx context.Context, text string, current models.LogID) (ChatResult, error) {
	const op = "chat"
	var env envelope
	req := chatRequest{UserID: c.userID, Text: text, CurrentLogID: current}
	if err := c.do(ctx, op, http.MethodPost, "/chat", req, &env); err != nil {
		return nil, err
	}
	res, err := decodeChat(&env, current)
	if err != nil {
		return nil, &BoundaryError{Op: op, Err: err}
	}
	return res, nil
}

// Health checks that the backend answers.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, "health", http.MethodGet, "/health", nil, nil)
}

// do performs one JSON round trip and maps every failure to a *BoundaryError.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &BoundaryError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &BoundaryError{Op: op, Err: err}
	}
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("op", op).Str("requestId", reqID).Msg("Backend request failed")
		return &BoundaryError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &BoundaryError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	log.Debug().
		Str("op", op).
		Str("requestId", reqID).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("Backend request completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &BoundaryError{Op: op, StatusCode: resp.StatusCode, Detail: parseDetail(data)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &BoundaryError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

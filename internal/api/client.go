// Package api is the HTTP client for the remote finance service: the
// transaction store and the AI endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

// DefaultBaseURL points at a locally running backend.
const DefaultBaseURL = "http://localhost:5001/api"

const maxBodyBytes = 4 << 20

var (
	// ErrNotAuthenticated is returned before any I/O when a call needs a
	// principal and none is usable.
	ErrNotAuthenticated = auth.ErrNotAuthenticated
	// ErrUnexpectedResponse means a 2xx body lacked the expected field.
	ErrUnexpectedResponse = errors.New("unexpected response from API")
)

// StatusError is a non-2xx answer from the remote service.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api: status %d: %s", e.StatusCode, e.Message)
}

// NewTransaction is the body of POST /expenses.
type NewTransaction struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
}

// CreateResult carries whatever the store answered: the created record when
// it echoed one, otherwise its status text.
type CreateResult struct {
	Record *core.TransactionRecord
	Status string
}

// Client talks to the remote service. It holds no transaction state.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the transport timeout. Zero leaves it unbounded.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New builds a client for baseURL, falling back to DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{baseURL: baseURL, http: &http.Client{}, logger: log.Discard()}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.WithComponent(log.ComponentAPI)
	return c
}

// BaseURL is the configured service root.
func (c *Client) BaseURL() string { return c.baseURL }

// ListTransactions fetches every record for the principal. A body that is not
// a JSON array fails with core.ErrInvalidDataFormat.
func (c *Client) ListTransactions(ctx context.Context, p *auth.Principal) ([]core.TransactionRecord, error) {
	body, err := c.do(ctx, http.MethodGet, "/expenses", p, true, nil)
	if err != nil {
		return nil, err
	}
	records, err := core.DecodeRecords(body)
	if err != nil {
		c.logger.Warn("Transaction list rejected",
			log.FieldOperation, log.OpList,
			log.FieldErrorType, log.ErrorTypeDataFormat,
			log.FieldError, err)
		return nil, err
	}
	return records, nil
}

// CreateTransaction stores a new record. The sign of Amount is what makes it
// income or expense.
func (c *Client) CreateTransaction(ctx context.Context, p *auth.Principal, tx NewTransaction) (CreateResult, error) {
	body, err := c.do(ctx, http.MethodPost, "/expenses", p, true, tx)
	if err != nil {
		return CreateResult{}, err
	}
	return parseCreateResult(body), nil
}

func parseCreateResult(body []byte) CreateResult {
	trimmed := bytes.TrimSpace(body)
	var probe map[string]json.RawMessage
	if json.Unmarshal(trimmed, &probe) == nil {
		if _, ok := probe["id"]; ok {
			var rec core.TransactionRecord
			if json.Unmarshal(trimmed, &rec) == nil {
				return CreateResult{Record: &rec, Status: "created"}
			}
		}
		if msg := messageFrom(probe); msg != "" {
			return CreateResult{Status: msg}
		}
	}
	var s string
	if json.Unmarshal(trimmed, &s) == nil {
		return CreateResult{Status: s}
	}
	return CreateResult{Status: string(trimmed)}
}

// Categorize asks the AI service for a category label. No principal needed.
func (c *Client) Categorize(ctx context.Context, description string) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/ai/categorize", nil, false, map[string]string{"description": description})
	if err != nil {
		return "", err
	}
	var out struct {
		Category *string `json:"category"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.Category == nil {
		return "", ErrUnexpectedResponse
	}
	return strings.TrimSpace(*out.Category), nil
}

// Advice asks the AI service a free-text question. No principal needed.
func (c *Client) Advice(ctx context.Context, question string) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/ai/advice", nil, false, map[string]string{"question": question})
	if err != nil {
		return "", err
	}
	var out struct {
		Advice *string `json:"advice"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.Advice == nil {
		return "", ErrUnexpectedResponse
	}
	return *out.Advice, nil
}

func (c *Client) do(ctx context.Context, method, path string, p *auth.Principal, needsAuth bool, payload any) ([]byte, error) {
	var token string
	if needsAuth {
		if p == nil {
			return nil, ErrNotAuthenticated
		}
		t, err := p.Token(ctx)
		if err != nil {
			if errors.Is(err, auth.ErrNotAuthenticated) {
				return nil, ErrNotAuthenticated
			}
			return nil, err
		}
		token = t
	}

	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("Remote request failed",
			log.FieldMethod, method,
			log.FieldPath, path,
			log.FieldErrorType, log.ErrorTypeNetwork,
			log.FieldError, err)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", method, path, err)
	}

	c.logger.Debug("Remote request",
		log.FieldMethod, method,
		log.FieldPath, path,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
		c.logger.Warn("Remote request rejected",
			log.FieldMethod, method,
			log.FieldPath, path,
			log.FieldStatusCode, resp.StatusCode,
			log.FieldErrorType, log.ErrorTypeRemote,
			log.FieldError, se.Message)
		return nil, se
	}
	return body, nil
}

// maxMessageRunes caps plain-text error bodies shown to the user.
const maxMessageRunes = 200

func errorMessage(body []byte) string {
	var fields map[string]json.RawMessage
	if json.Unmarshal(body, &fields) == nil {
		if msg := messageFrom(fields); msg != "" {
			return msg
		}
	}
	msg := strings.ToValidUTF8(strings.TrimSpace(string(body)), "")
	if r := []rune(msg); len(r) > maxMessageRunes {
		msg = string(r[:maxMessageRunes])
	}
	return msg
}

func messageFrom(obj map[string]json.RawMessage) string {
	for _, key := range []string{"error", "message", "status"} {
		var s string
		if raw, ok := obj[key]; ok && json.Unmarshal(raw, &s) == nil && s != "" {
			return s
		}
	}
	return ""
}

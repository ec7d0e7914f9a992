// Package remote implements the HTTP client for the external agent service.
//
// The client is stateless and never panics: timeouts, non-2xx statuses,
// connection failures, and malformed bodies are all normalized into *Error
// values, so callers can branch on a single typed failure shape.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/botforge/botforge/internal/config"
)

// maxErrorBodyBytes caps how much of an error response is kept as detail.
const maxErrorBodyBytes = 500

// Error is the normalized failure returned by every client call.
type Error struct {
	Message    string `json:"error"`
	Details    string `json:"details,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
}

func (e *Error) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// AsError converts any error from a client call into its *Error form.
// Client methods only ever return *Error, so this never fabricates.
func AsError(err error) *Error {
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	return &Error{Message: err.Error()}
}

// Agent is the remote agent resource.
type Agent struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Description         string `json:"description"`
	CompositionMode     string `json:"composition_mode"`
	MaxEngineIterations int    `json:"max_engine_iterations"`
}

// AgentPayload is the create-agent request body.
type AgentPayload struct {
	Name                string `json:"name"`
	Description         string `json:"description"`
	CompositionMode     string `json:"composition_mode"`
	MaxEngineIterations int    `json:"max_engine_iterations"`
}

// Guideline is the remote guideline resource.
type Guideline struct {
	ID          string   `json:"id"`
	Condition   string   `json:"condition"`
	Action      string   `json:"action,omitempty"`
	Description string   `json:"description,omitempty"`
	Criticality string   `json:"criticality,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// GuidelinePayload is the create-guideline request body. Tags carry the
// owning agent reference ("agent:<id>").
type GuidelinePayload struct {
	Condition   string   `json:"condition"`
	Action      string   `json:"action,omitempty"`
	Description string   `json:"description,omitempty"`
	Criticality string   `json:"criticality"`
	Tags        []string `json:"tags"`
}

// Journey is the remote journey resource.
type Journey struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Conditions  []string `json:"conditions"`
	Tags        []string `json:"tags,omitempty"`
}

// JourneyPayload is the create-journey request body.
type JourneyPayload struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Conditions  []string `json:"conditions"`
	Tags        []string `json:"tags"`
}

// Session is the remote conversation session resource.
type Session struct {
	ID         string `json:"id"`
	AgentID    string `json:"agent_id,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
}

// Event is a session event. The remote service's event schema is open-ended,
// so events stay as raw maps.
type Event map[string]any

// Client performs CRUD calls against the agent service for the four
// resource kinds. All methods take a context and honor the configured
// request timeout.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	http    *http.Client
}

// NewClient builds a client from the remote service configuration.
func NewClient(cfg config.RemoteConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		timeout: cfg.Timeout,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// ── Agents ──────────────────────────────────────────────────

func (c *Client) CreateAgent(ctx context.Context, payload AgentPayload) (*Agent, error) {
	var out Agent
	if err := c.do(ctx, http.MethodPost, "/agents", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetAgent(ctx context.Context, id string) (*Agent, error) {
	var out Agent
	if err := c.do(ctx, http.MethodGet, "/agents/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	var out []Agent
	if err := c.doList(ctx, "/agents", "agents", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateAgent(ctx context.Context, id string, updates map[string]any) error {
	return c.do(ctx, http.MethodPatch, "/agents/"+url.PathEscape(id), updates, nil)
}

func (c *Client) DeleteAgent(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/agents/"+url.PathEscape(id), nil, nil)
}

// ── Guidelines ──────────────────────────────────────────────

func (c *Client) CreateGuideline(ctx context.Context, payload GuidelinePayload) (*Guideline, error) {
	var out Guideline
	if err := c.do(ctx, http.MethodPost, "/guidelines", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetGuideline(ctx context.Context, id string) (*Guideline, error) {
	var out Guideline
	if err := c.do(ctx, http.MethodGet, "/guidelines/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListGuidelines lists guidelines, optionally filtered by tag
// (e.g. "agent:abc123").
func (c *Client) ListGuidelines(ctx context.Context, tag string) ([]Guideline, error) {
	path := "/guidelines"
	if tag != "" {
		path += "?tag=" + url.QueryEscape(tag)
	}
	var out []Guideline
	if err := c.doList(ctx, path, "guidelines", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateGuideline(ctx context.Context, id string, updates map[string]any) error {
	return c.do(ctx, http.MethodPatch, "/guidelines/"+url.PathEscape(id), updates, nil)
}

func (c *Client) DeleteGuideline(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/guidelines/"+url.PathEscape(id), nil, nil)
}

// ── Journeys ────────────────────────────────────────────────

func (c *Client) CreateJourney(ctx context.Context, payload JourneyPayload) (*Journey, error) {
	var out Journey
	if err := c.do(ctx, http.MethodPost, "/journeys", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetJourney(ctx context.Context, id string) (*Journey, error) {
	var out Journey
	if err := c.do(ctx, http.MethodGet, "/journeys/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListJourneys(ctx context.Context, tag string) ([]Journey, error) {
	path := "/journeys"
	if tag != "" {
		path += "?tag=" + url.QueryEscape(tag)
	}
	var out []Journey
	if err := c.doList(ctx, path, "journeys", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateJourney(ctx context.Context, id string, updates map[string]any) error {
	return c.do(ctx, http.MethodPatch, "/journeys/"+url.PathEscape(id), updates, nil)
}

func (c *Client) DeleteJourney(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/journeys/"+url.PathEscape(id), nil, nil)
}

// ── Sessions ────────────────────────────────────────────────

func (c *Client) CreateSession(ctx context.Context, agentID, customerID string) (*Session, error) {
	var payload any
	if customerID != "" {
		payload = map[string]string{"customer_id": customerID}
	}
	var out Session
	if err := c.do(ctx, http.MethodPost, "/agents/"+url.PathEscape(agentID)+"/sessions", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetSession(ctx context.Context, id string) (*Session, error) {
	var out Session
	if err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(id), nil, nil)
}

// GetEvents returns session events. The service returns either a bare list
// or an {"events": [...]} wrapper depending on version; both are accepted.
func (c *Client) GetEvents(ctx context.Context, sessionID string) ([]Event, error) {
	var out []Event
	if err := c.doList(ctx, "/sessions/"+url.PathEscape(sessionID)+"/events", "events", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SendEvent(ctx context.Context, sessionID string, event Event) error {
	return c.do(ctx, http.MethodPost, "/sessions/"+url.PathEscape(sessionID)+"/events", event, nil)
}

// ── Transport ───────────────────────────────────────────────

// do executes one request and decodes a 2xx body into out (when non-nil).
// A 204 or empty body is a successful empty result. The returned error is
// always a *Error.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.normalizeTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Message: fmt.Sprintf("failed to read response body: %v", err)}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Message: fmt.Sprintf("malformed response body: %v", err)}
	}
	return nil
}

// doList decodes list endpoints that return either a bare JSON array or an
// object wrapping the array under wrapperKey.
func (c *Client) doList(ctx context.Context, path, wrapperKey string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.normalizeTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Message: fmt.Sprintf("failed to read response body: %v", err)}
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if data[0] == '{' {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return &Error{Message: fmt.Sprintf("malformed response body: %v", err)}
		}
		inner, ok := wrapper[wrapperKey]
		if !ok {
			return nil
		}
		data = inner
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Message: fmt.Sprintf("malformed response body: %v", err)}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Message: fmt.Sprintf("failed to encode request body: %v", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("failed to build request: %v", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) normalizeTransportError(err error) *Error {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return &Error{Message: fmt.Sprintf("API timeout after %s", c.timeout)}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Message: fmt.Sprintf("API timeout after %s", c.timeout)}
	}
	return &Error{Message: fmt.Sprintf("API connection failed: %v", err)}
}

func (c *Client) statusError(resp *http.Response) *Error {
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return &Error{
		Message:    fmt.Sprintf("API returned %d", resp.StatusCode),
		Details:    string(detail),
		StatusCode: resp.StatusCode,
	}
}

// Package chatclient is a Go client for the SRC chat action API.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// APIError is a failure envelope returned by the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat API error %d %s: %s", e.Status, e.Code, e.Message)
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// Client talks to /api/v1/chat.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu      sync.Mutex
	token   string
	pollers map[*Poller]struct{}
}

// NewClient creates a client for baseURL (scheme and host).
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		pollers: make(map[*Poller]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Option configures the client
type Option func(*Client)

// WithToken sets the bearer token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithTimeout sets the HTTP client timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Login exchanges credentials for a token and keeps it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	c.SetToken(out.Token)
	return out.Token, nil
}

func (c *Client) actionURL(action string, q url.Values) string {
	if q == nil {
		q = url.Values{}
	}
	q.Set("action", action)
	return c.baseURL + "/api/v1/chat?" + q.Encode()
}

func (c *Client) get(ctx context.Context, action string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.actionURL(action, q), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, action string, params map[string]any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.actionURL(action, nil), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode}
		var env struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(raw, &env) == nil && env.Code != "" {
			apiErr.Code, apiErr.Message = env.Code, env.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func idString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// StartSession opens a helpdesk session or returns the caller's open one.
func (c *Client) StartSession(ctx context.Context, subject, priority, department string) (*StartResult, error) {
	var out StartResult
	err := c.post(ctx, "start_session", map[string]any{
		"subject":    subject,
		"priority":   priority,
		"department": department,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSession fetches a session; id 0 asks for the caller's open session,
// which may be nil.
func (c *Client) GetSession(ctx context.Context, sessionID uint) (*Session, error) {
	q := url.Values{}
	if sessionID != 0 {
		q.Set("session_id", idString(sessionID))
	}
	var out struct {
		Session *Session `json:"session"`
	}
	if err := c.get(ctx, "get_session", q, &out); err != nil {
		return nil, err
	}
	return out.Session, nil
}

// SendMessage appends a message; msgType may be empty for text.
func (c *Client) SendMessage(ctx context.Context, sessionID uint, text, msgType string) (*Message, error) {
	var out struct {
		Message *Message `json:"message"`
	}
	err := c.post(ctx, "send_message", map[string]any{
		"session_id": sessionID,
		"message":    text,
		"type":       msgType,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Message, nil
}

// GetMessages returns messages with id greater than afterID.
func (c *Client) GetMessages(ctx context.Context, sessionID, afterID uint) ([]Message, error) {
	var out struct {
		Messages []Message `json:"messages"`
	}
	q := url.Values{"session_id": {idString(sessionID)}, "last_message_id": {idString(afterID)}}
	if err := c.get(ctx, "get_messages", q, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// EndSession closes the session and stops message polling in pollers
// watching it.
func (c *Client) EndSession(ctx context.Context, sessionID uint, rating *int, feedback string) (*Session, error) {
	params := map[string]any{"session_id": sessionID, "feedback": feedback}
	if rating != nil {
		params["rating"] = *rating
	}
	var out struct {
		Session *Session `json:"session"`
	}
	if err := c.post(ctx, "end_session", params, &out); err != nil {
		return nil, err
	}
	c.sessionEnded(sessionID)
	return out.Session, nil
}

// GetAgentSessions lists dashboard sessions; status "" means active, "all"
// means every status.
func (c *Client) GetAgentSessions(ctx context.Context, status string) ([]SessionSummary, error) {
	var out struct {
		Sessions []SessionSummary `json:"sessions"`
	}
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if err := c.get(ctx, "get_agent_sessions", q, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// AssignSession binds agentID (0 for the caller) to the session.
func (c *Client) AssignSession(ctx context.Context, sessionID, agentID uint) (*Session, error) {
	params := map[string]any{"session_id": sessionID}
	if agentID != 0 {
		params["agent_id"] = agentID
	}
	var out struct {
		Session *Session `json:"session"`
	}
	if err := c.post(ctx, "assign_session", params, &out); err != nil {
		return nil, err
	}
	return out.Session, nil
}

// UpdateAgentStatus publishes the caller's presence.
func (c *Client) UpdateAgentStatus(ctx context.Context, status string, maxChats int, autoAssign bool) (*AgentStatus, error) {
	var out struct {
		Status *AgentStatus `json:"status"`
	}
	err := c.post(ctx, "update_agent_status", map[string]any{
		"status":      status,
		"max_chats":   maxChats,
		"auto_assign": autoAssign,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Status, nil
}

// GetQuickResponses lists canned replies, optionally by category.
func (c *Client) GetQuickResponses(ctx context.Context, category string) ([]QuickResponse, error) {
	var out struct {
		Responses []QuickResponse `json:"responses"`
	}
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	if err := c.get(ctx, "get_quick_responses", q, &out); err != nil {
		return nil, err
	}
	return out.Responses, nil
}

// MarkMessagesRead flips other participants' messages to read.
func (c *Client) MarkMessagesRead(ctx context.Context, sessionID uint) (int64, error) {
	var out struct {
		Marked int64 `json:"marked"`
	}
	if err := c.post(ctx, "mark_messages_read", map[string]any{"session_id": sessionID}, &out); err != nil {
		return 0, err
	}
	return out.Marked, nil
}

// AgentHeartbeat refreshes the caller's last_seen.
func (c *Client) AgentHeartbeat(ctx context.Context) error {
	return c.post(ctx, "agent_heartbeat", map[string]any{}, nil)
}

// GetAgents lists agent presence.
func (c *Client) GetAgents(ctx context.Context) ([]Agent, error) {
	var out struct {
		Agents []Agent `json:"agents"`
	}
	if err := c.get(ctx, "get_agents", nil, &out); err != nil {
		return nil, err
	}
	return out.Agents, nil
}

// GetUnreadCount returns the caller's unread total over open sessions.
func (c *Client) GetUnreadCount(ctx context.Context) (int64, error) {
	var out struct {
		UnreadCount int64 `json:"unread_count"`
	}
	if err := c.get(ctx, "get_unread_count", nil, &out); err != nil {
		return 0, err
	}
	return out.UnreadCount, nil
}

// AddSessionTag tags a session and returns its tags.
func (c *Client) AddSessionTag(ctx context.Context, sessionID uint, tag string) ([]string, error) {
	var out struct {
		Tags []string `json:"tags"`
	}
	if err := c.post(ctx, "add_session_tag", map[string]any{"session_id": sessionID, "tag": tag}, &out); err != nil {
		return nil, err
	}
	return out.Tags, nil
}

// UploadFile posts an attachment as a file or image message.
func (c *Client) UploadFile(ctx context.Context, sessionID uint, name string, r io.Reader) (*Message, *File, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("session_id", idString(sessionID)); err != nil {
		return nil, nil, err
	}
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return nil, nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, nil, fmt.Errorf("read upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.actionURL("upload_file", nil), &buf)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	var out struct {
		Message *Message `json:"message"`
		File    *File    `json:"file"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, nil, err
	}
	return out.Message, out.File, nil
}

func (c *Client) register(p *Poller) {
	c.mu.Lock()
	c.pollers[p] = struct{}{}
	c.mu.Unlock()
}

func (c *Client) unregister(p *Poller) {
	c.mu.Lock()
	delete(c.pollers, p)
	c.mu.Unlock()
}

func (c *Client) sessionEnded(sessionID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for p := range c.pollers {
		if p.sessionID == sessionID {
			p.stop()
		}
	}
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mininotes/mininotes-go/internal/model"
)

const maxResponseBytes = 10 << 20 // 10MB

// Session supplies the bearer token at request time and is told when the
// gateway answers an authenticated call with 401.
type Session interface {
	Token(ctx context.Context) (string, error)
	HandleUnauthorized(ctx context.Context)
}

// Client talks to the notes API gateway.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    Session
}

// NewClient creates a Client. A nil httpClient gets a 10 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// UseSession binds the credential source used for authenticated requests.
func (c *Client) UseSession(s Session) {
	c.session = s
}

// Login handles POST /api/auth/login.
func (c *Client) Login(ctx context.Context, creds model.Credentials) (model.AuthResponse, error) {
	return c.authenticate(ctx, "/api/auth/login", creds)
}

// Register handles POST /api/auth/register.
func (c *Client) Register(ctx context.Context, creds model.Credentials) (model.AuthResponse, error) {
	return c.authenticate(ctx, "/api/auth/register", creds)
}

func (c *Client) authenticate(ctx context.Context, path string, creds model.Credentials) (model.AuthResponse, error) {
	body, err := c.do(ctx, http.MethodPost, path, creds, false)
	if err != nil {
		return model.AuthResponse{}, err
	}

	var resp model.AuthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.AuthResponse{}, fmt.Errorf("%w: decode auth response: %w", ErrNetworkOrServer, err)
	}
	if resp.Token == "" {
		return model.AuthResponse{}, fmt.Errorf("%w: auth response carried no token", ErrNetworkOrServer)
	}

	return resp, nil
}

// ListNotes handles GET /api/notes.
func (c *Client) ListNotes(ctx context.Context) ([]model.Note, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/notes", nil, true)
	if err != nil {
		return nil, err
	}

	notes, err := model.DecodeNotes(body)
	if err != nil {
		return nil, fmt.Errorf("%w: decode notes: %w", ErrNetworkOrServer, err)
	}
	return notes, nil
}

// GetNote handles GET /api/notes/{id}.
func (c *Client) GetNote(ctx context.Context, id int64) (model.Note, error) {
	body, err := c.do(ctx, http.MethodGet, notePath(id), nil, true)
	if err != nil {
		return model.Note{}, err
	}
	return decodeNote(body)
}

// CreateNote handles POST /api/notes.
func (c *Client) CreateNote(ctx context.Context, content string) (model.Note, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/notes", model.NoteRequest{Content: content}, true)
	if err != nil {
		return model.Note{}, err
	}
	return decodeNote(body)
}

// UpdateNote handles PUT /api/notes/{id}.
func (c *Client) UpdateNote(ctx context.Context, id int64, content string) (model.Note, error) {
	body, err := c.do(ctx, http.MethodPut, notePath(id), model.NoteRequest{Content: content}, true)
	if err != nil {
		return model.Note{}, err
	}
	return decodeNote(body)
}

// DeleteNote handles DELETE /api/notes/{id}. Any response body is ignored.
func (c *Client) DeleteNote(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, notePath(id), nil, true)
	return err
}

// Health handles GET /health.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/health", nil, false)
	return err
}

func notePath(id int64) string {
	return "/api/notes/" + strconv.FormatInt(id, 10)
}

func decodeNote(body []byte) (model.Note, error) {
	n, err := model.DecodeNote(body)
	if err != nil {
		return model.Note{}, fmt.Errorf("%w: decode note: %w", ErrNetworkOrServer, err)
	}
	if n.ID == 0 {
		return model.Note{}, fmt.Errorf("%w: note without id", ErrNetworkOrServer)
	}
	return n, nil
}

// do builds the request from scratch, including the Authorization header read
// from the session at call time, and classifies the reply.
func (c *Client) do(ctx context.Context, method, path string, payload any, authed bool) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if authed && c.session != nil {
		token, err := c.session.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: read token: %w", ErrNetworkOrServer, err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetworkOrServer, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrNetworkOrServer, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	apiErr := &APIError{Status: resp.StatusCode, Message: errorMessage(body), kind: ErrNetworkOrServer}
	switch {
	case authed && resp.StatusCode == http.StatusUnauthorized:
		apiErr.kind = ErrAuthorizationExpired
		if c.session != nil {
			c.session.HandleUnauthorized(context.WithoutCancel(ctx))
		}
	case !authed && isAuthPath(path) && IsAuthRejection(resp.StatusCode):
		apiErr.kind = ErrAuth
	}
	return nil, apiErr
}

func isAuthPath(path string) bool {
	return strings.HasPrefix(path, "/api/auth/")
}

// errorMessage extracts {"error": "..."} or {"message": "..."}, falling back
// to a plain-text body.
func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}

	text := strings.TrimSpace(string(body))
	if len(text) > 200 || strings.HasPrefix(text, "{") || strings.HasPrefix(text, "<") {
		return ""
	}
	return text
}

// Message returns a human readable message for err, preferring the gateway's own text.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

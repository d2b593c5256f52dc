package opencode

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server-side utility agents that are never user-selectable.
var internalAgents = map[string]bool{
	"compaction": true,
	"title":      true,
	"summary":    true,
}

// Client is a thin HTTP client for the OpenCode assistant server. The server
// itself is an external collaborator; this type only shapes requests and
// decodes responses.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // prompt calls can legitimately run long
		},
	}
}

// BaseURL returns the configured server address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("opencode server returned %d for %s %s: %s", resp.StatusCode, method, path, bytes.TrimSpace(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
		}
	}
	return nil
}

// CreateSession creates a new assistant session and returns its record.
func (c *Client) CreateSession(ctx context.Context, title string) (*Session, error) {
	if title == "" {
		title = fmt.Sprintf("Telegram Session %s", time.Now().Format(time.RFC3339))
	}

	var session Session
	err := c.do(ctx, http.MethodPost, "/session", map[string]string{"title": title}, &session)
	if err != nil {
		return nil, err
	}
	if session.ID == "" {
		return nil, fmt.Errorf("server created session without an id")
	}
	return &session, nil
}

// DeleteSession removes a session on the server.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/session/"+url.PathEscape(sessionID), nil, nil)
}

// AbortSession cancels the session's in-flight operation without ending it.
func (c *Client) AbortSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodPost, "/session/"+url.PathEscape(sessionID)+"/abort", nil, nil)
}

// UpdateSessionTitle renames a session.
func (c *Client) UpdateSessionTitle(ctx context.Context, sessionID, title string) error {
	return c.do(ctx, http.MethodPatch, "/session/"+url.PathEscape(sessionID),
		map[string]string{"title": title}, nil)
}

// Prompt sends text (plus optional pre-built context parts) to a session and
// returns the typed parts of the final response.
func (c *Client) Prompt(ctx context.Context, sessionID, agent string, parts []Part) ([]Part, error) {
	body := map[string]any{
		"parts": parts,
	}
	if agent != "" {
		body["agent"] = agent
	}

	var resp struct {
		Parts []Part `json:"parts"`
	}
	err := c.do(ctx, http.MethodPost, "/session/"+url.PathEscape(sessionID)+"/message", body, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Parts, nil
}

// FindFiles runs the server's fuzzy file search. Results come back ranked by
// relevance; directories are excluded.
func (c *Client) FindFiles(ctx context.Context, query string) ([]string, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("dirs", "false")

	var paths []string
	err := c.do(ctx, http.MethodGet, "/find/file?"+q.Encode(), nil, &paths)
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// ReadFile fetches file content by path.
func (c *Client) ReadFile(ctx context.Context, path string) (string, error) {
	q := url.Values{}
	q.Set("path", path)

	var resp struct {
		Type    string `json:"type"` // "raw" or "patch"
		Content string `json:"content"`
	}
	err := c.do(ctx, http.MethodGet, "/file?"+q.Encode(), nil, &resp)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Agents lists the user-selectable assistant modes. Hidden agents, subagents
// and the server's internal utility agents are filtered out.
func (c *Client) Agents(ctx context.Context) ([]Agent, error) {
	var all []Agent
	if err := c.do(ctx, http.MethodGet, "/agent", nil, &all); err != nil {
		return nil, err
	}
	return FilterAgents(all), nil
}

// FilterAgents applies the three exclusion rules for user-selectable agents.
func FilterAgents(all []Agent) []Agent {
	var filtered []Agent
	for _, a := range all {
		if a.Hidden || a.Mode == "subagent" || internalAgents[a.Name] {
			continue
		}
		if a.Mode == "primary" || a.Mode == "all" {
			filtered = append(filtered, a)
		}
	}
	return filtered
}

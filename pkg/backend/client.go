package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"Alora/pkg/errors"
)

// Client talks to the external AI backend that owns sessions, media tokens and summaries.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message,omitempty"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
}

// CreateSession asks the backend for a new session id. The duration hint is
// forwarded as a query parameter; the backend is free to ignore it.
func (c *Client) CreateSession(ctx context.Context, durationMinutes int) (string, error) {
	path := "/session/create"
	if durationMinutes > 0 {
		path += "?" + url.Values{"duration_minutes": {fmt.Sprint(durationMinutes)}}.Encode()
	}
	var out sessionResponse
	if err := c.do(ctx, http.MethodPost, path, "", nil, &out); err != nil {
		return "", err
	}
	if out.SessionID == "" {
		return "", errors.WithCode(errors.CodeExternal, "backend returned an empty session id")
	}
	return out.SessionID, nil
}

// IssueMediaToken returns a room token for sessionID (multipart form, as the backend expects).
func (c *Client) IssueMediaToken(ctx context.Context, sessionID string) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("session_id", sessionID); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	var out tokenResponse
	if err := c.do(ctx, http.MethodPost, "/token", w.FormDataContentType(), &buf, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.WithCode(errors.CodeExternal, "backend returned an empty media token")
	}
	return out.Token, nil
}

func (c *Client) Summarize(ctx context.Context, sessionID string, req SummaryRequest) (*Summary, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var out Summary
	path := "/session/" + url.PathEscape(sessionID) + "/summary"
	if err := c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(body), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.WrapCode(err, errors.CodeExternal, "backend request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return errors.WrapCode(err, errors.CodeExternal, "backend response unreadable")
	}
	c.log.Debug("backend call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode >= 300 {
		return errors.WithCode(errors.CodeExternal, errorMessage(resp.StatusCode, raw))
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.WrapCode(err, errors.CodeExternal, "backend returned malformed JSON")
	}
	return nil
}

// errorMessage extracts FastAPI-style {"detail": ...} or {"message": ...} bodies.
func errorMessage(status int, raw []byte) string {
	var body struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if len(body.Detail) > 0 {
			var s string
			if json.Unmarshal(body.Detail, &s) == nil && s != "" {
				return s
			}
			var items []json.RawMessage
			if json.Unmarshal(body.Detail, &items) == nil {
				parts := make([]string, 0, len(items))
				for _, it := range items {
					var str string
					if json.Unmarshal(it, &str) == nil {
						parts = append(parts, str)
						continue
					}
					var obj struct {
						Msg string `json:"msg"`
					}
					if json.Unmarshal(it, &obj) == nil && obj.Msg != "" {
						parts = append(parts, obj.Msg)
						continue
					}
					parts = append(parts, string(it))
				}
				if len(parts) > 0 {
					return strings.Join(parts, " | ")
				}
			}
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return fmt.Sprintf("Request failed with status %d", status)
}

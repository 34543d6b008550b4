// Package backend talks to the remote timer service.
package backend

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
	"strconv"
	"strings"
	"time"
)

const maxErrorBody = 4 << 10

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) CreateTimer(ctx context.Context, in CreateTimerRequest) (Timer, error) {
	var out Timer
	err := c.do(ctx, "create timer", http.MethodPost, "/timers", in, &out)
	return out, err
}

// StartTimer creates a timer record for today and starts it in one call.
func (c *Client) StartTimer(ctx context.Context, in StartTimerRequest) (Timer, error) {
	var out Timer
	err := c.do(ctx, "start timer", http.MethodPost, "/timers/start", in, &out)
	return out, err
}

func (c *Client) ResumeTimer(ctx context.Context, timerID, at int64) (Timer, error) {
	var out Timer
	err := c.do(ctx, "resume timer", http.MethodPost, "/timers/resume", resumeTimerRequest{TimerID: timerID, ResumeTime: at}, &out)
	return out, err
}

func (c *Client) StopTimer(ctx context.Context, timerID, at int64) (Timer, error) {
	var out Timer
	err := c.do(ctx, "stop timer", http.MethodPost, "/timers/stop", stopTimerRequest{TimerID: timerID, StopTime: at}, &out)
	return out, err
}

func (c *Client) UpdateTimer(ctx context.Context, timerID int64, in UpdateTimerRequest) (Timer, error) {
	var out Timer
	err := c.do(ctx, "update timer", http.MethodPatch, "/timers/"+strconv.FormatInt(timerID, 10), in, &out)
	return out, err
}

// ListTimers accepts both a bare array and an {"all_timers": [...]} envelope.
func (c *Client) ListTimers(ctx context.Context, userID int64, activeDate string) ([]Timer, error) {
	q := url.Values{}
	q.Set("user_id", strconv.FormatInt(userID, 10))
	if activeDate != "" {
		q.Set("active_date", activeDate)
	}
	var raw json.RawMessage
	if err := c.do(ctx, "list timers", http.MethodGet, "/timers?"+q.Encode(), nil, &raw); err != nil {
		return nil, err
	}
	return decodeTimerList(raw)
}

func (c *Client) CreateInterval(ctx context.Context, in CreateIntervalRequest) (Interval, error) {
	var out Interval
	err := c.do(ctx, "create interval", http.MethodPost, "/timer_intervals", in, &out)
	return out, err
}

func (c *Client) DeleteInterval(ctx context.Context, intervalID int64) error {
	return c.do(ctx, "delete interval", http.MethodDelete, "/timer_intervals/"+strconv.FormatInt(intervalID, 10), nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: %s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("backend request failed", "op", op, "err", err)
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	c.log.Debug("backend request", "op", op, "method", method, "path", path, "status", resp.StatusCode, "took", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newBackendError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return &NetworkError{Op: op, Err: errors.New("empty response body")}
		}
		return &NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func newBackendError(resp *http.Response) *BackendError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(raw))

	var structured struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &structured) == nil {
		switch {
		case structured.Message != "":
			msg = structured.Message
		case structured.Error != "":
			msg = structured.Error
		}
	}
	if msg == "" {
		msg = fmt.Sprintf("request failed: %s", http.StatusText(resp.StatusCode))
	}
	return &BackendError{Message: msg, StatusCode: resp.StatusCode}
}

func decodeTimerList(raw json.RawMessage) ([]Timer, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var out []Timer
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, &NetworkError{Op: "list timers", Err: err}
		}
		return out, nil
	}
	var env listTimersEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, &NetworkError{Op: "list timers", Err: err}
	}
	if env.AllTimers == nil {
		return []Timer{}, nil
	}
	return env.AllTimers, nil
}

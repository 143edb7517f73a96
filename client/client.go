// Package client provides a Go client for a remote seatwatch server.
//
// Usage:
//
//	c := client.New("https://seatwatch.example.com",
//	    client.WithUserID("alice"),
//	)
//
//	// Submit a watch job.
//	sub, err := c.Submit(ctx, job.Request{...})
//
//	// Watch status updates.
//	events, err := c.Watch(ctx)
//	for evt := range events {
//	    fmt.Printf("job %s: %s\n", evt.JobID, evt.Status)
//	}
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"seatwatch"
	"seatwatch/event"
	"seatwatch/job"
	"seatwatch/queue"
)

// Client talks to a seatwatch server over its HTTP API.
type Client struct {
	baseURL string
	userID  string
	hc      *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithUserID sets the identity sent with every request.
func WithUserID(id string) Option {
	return func(c *Client) { c.userID = id }
}

// WithHTTPClient replaces the underlying HTTP client. The default has no
// timeout so that Watch connections can stay open indefinitely; calls
// should be bounded through their context instead.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithLogger sets the logger used by the Watch read loop.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submission is the server's acknowledgement of an accepted job.
type Submission struct {
	JobID    string `json:"jobId"`
	Status   string `json:"status"`
	Attempts int    `json:"attempts"`
	Deadline string `json:"deadline"`
}

// JobStatus is a job annotated with its queue phase, when still queued.
type JobStatus struct {
	job.Job
	Phase queue.Phase `json:"phase,omitempty"`
}

// HistoryOpts filter History calls.
type HistoryOpts struct {
	Limit  int
	Offset int
	Status job.Status
}

// APIError is a non-2xx response decoded into its error payload. It
// unwraps to the matching sentinel so callers can use errors.Is.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	// RetryAfter is set on rate-limit rejections.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("seatwatch server: %s (%s)", e.Message, e.Code)
}

func (e *APIError) Unwrap() error {
	switch e.Code {
	case "INVALID_REQUEST":
		return seatwatch.ErrValidation
	case "UNAUTHORIZED":
		return seatwatch.ErrUnauthorized
	case "FORBIDDEN":
		return seatwatch.ErrNotOwner
	case "NOT_FOUND":
		return seatwatch.ErrJobNotFound
	case "JOB_TERMINAL":
		return seatwatch.ErrJobTerminal
	case "RATE_LIMITED":
		return seatwatch.ErrRateLimited
	default:
		return nil
	}
}

// Submit creates a watch job.
func (c *Client) Submit(ctx context.Context, req job.Request) (*Submission, error) {
	var sub Submission
	if err := c.do(ctx, http.MethodPost, "/api/queue/job", nil, req, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// Get returns a job's current state.
func (c *Client) Get(ctx context.Context, jobID string) (*JobStatus, error) {
	var js JobStatus
	q := url.Values{"jobId": {jobID}}
	if err := c.do(ctx, http.MethodGet, "/api/queue/job", q, nil, &js); err != nil {
		return nil, err
	}
	return &js, nil
}

// Cancel cancels a job and returns its final state.
func (c *Client) Cancel(ctx context.Context, jobID string) (*job.Job, error) {
	var j job.Job
	q := url.Values{"jobId": {jobID}}
	if err := c.do(ctx, http.MethodDelete, "/api/queue/job", q, nil, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// History lists the caller's jobs, newest first.
func (c *Client) History(ctx context.Context, opts HistoryOpts) ([]*job.Job, error) {
	q := url.Values{}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	if opts.Status != "" {
		q.Set("status", string(opts.Status))
	}
	var jobs []*job.Job
	if err := c.do(ctx, http.MethodGet, "/api/jobs/history", q, nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// Health reports whether the server and its store are reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

// Watch opens the status stream and returns a channel of the caller's
// job status updates. The channel closes when ctx is cancelled or the
// connection drops; reconnecting is the caller's decision.
func (c *Client) Watch(ctx context.Context) (<-chan event.StatusEvent, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/jobs/stream", nil, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("seatwatch client: stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	out := make(chan event.StatusEvent)
	go c.readEvents(resp.Body, out)
	go func() {
		<-ctx.Done()
		resp.Body.Close()
	}()
	return out, nil
}

// readEvents parses SSE frames, forwarding job status events and skipping
// control frames such as connected and heartbeat.
func (c *Client) readEvents(body io.ReadCloser, out chan<- event.StatusEvent) {
	defer close(out)
	defer body.Close()

	sc := bufio.NewScanner(body)
	for sc.Scan() {
		line := sc.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var evt event.StatusEvent
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			c.logger.Warn("skipping malformed stream frame", "error", err)
			continue
		}
		if evt.JobID == "" {
			continue
		}
		out <- evt
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, into any) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("seatwatch client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if into == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("seatwatch client: decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("seatwatch client: encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, fmt.Errorf("seatwatch client: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set("X-User-ID", c.userID)
	}
	return req, nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
		apiErr.Code = payload.Code
		apiErr.Message = payload.Message
	} else {
		apiErr.Message = resp.Status
	}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
		apiErr.RetryAfter = time.Duration(secs) * time.Second
	}
	return apiErr
}

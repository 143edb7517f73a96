package api_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"seatwatch/api"
	"seatwatch/budget"
	"seatwatch/engine"
	"seatwatch/job"
	"seatwatch/ratelimit"
	"seatwatch/seatcheck"
	"seatwatch/store/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// emptyChecker always reports no seats, keeping jobs in waiting.
var emptyChecker = seatcheck.CheckerFunc(func(_ context.Context, q seatcheck.Query) (*seatcheck.Result, error) {
	return &seatcheck.Result{Query: q, Success: true}, nil
})

func newServer(t *testing.T, opts ...engine.Option) *httptest.Server {
	t.Helper()
	e := engine.New(memory.New(), emptyChecker, opts...)
	e.Start(context.Background())
	srv := httptest.NewServer(api.NewHandler(e).Router())
	t.Cleanup(func() {
		srv.Close()
		if err := e.Stop(context.Background()); err != nil {
			t.Errorf("Stop: %v", err)
		}
	})
	return srv
}

func submission() job.Request {
	target := budget.Now().Add(30 * time.Minute)
	return job.Request{
		DepartureCd: "010",
		ArrivalCd:   "300",
		TargetMonth: fmt.Sprintf("%d월", int(target.Month())),
		TargetDate:  fmt.Sprintf("%d", target.Day()),
		TargetTimes: []string{target.Format("15:04")},
		DelayMs:     3_600_000, // keep attempts out of the way
	}
}

func do(t *testing.T, srv *httptest.Server, method, path, user string, body any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func submitJob(t *testing.T, srv *httptest.Server, user string) api.SubmitResponse {
	t.Helper()
	resp := do(t, srv, http.MethodPost, "/api/queue/job", user, submission())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit status = %d, want 201", resp.StatusCode)
	}
	return decode[api.SubmitResponse](t, resp)
}

func TestSubmitJob(t *testing.T) {
	srv := newServer(t)

	sub := submitJob(t, srv, "alice")
	if !strings.HasPrefix(sub.JobID, "job_") {
		t.Errorf("jobId = %q, want job_ prefix", sub.JobID)
	}
	if sub.Status != "waiting" {
		t.Errorf("status = %q, want waiting", sub.Status)
	}
	if sub.Attempts < 1 {
		t.Errorf("attempts = %d, want >= 1", sub.Attempts)
	}
}

func TestSubmitJobUnauthorized(t *testing.T) {
	srv := newServer(t)

	resp := do(t, srv, http.MethodPost, "/api/queue/job", "", submission())
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if e := decode[api.ErrorResponse](t, resp); e.Code != "UNAUTHORIZED" {
		t.Errorf("code = %q, want UNAUTHORIZED", e.Code)
	}
}

func TestSubmitJobValidation(t *testing.T) {
	srv := newServer(t)

	req := submission()
	req.TargetTimes = []string{"9:00"} // missing leading zero
	resp := do(t, srv, http.MethodPost, "/api/queue/job", "alice", req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if e := decode[api.ErrorResponse](t, resp); e.Code != "INVALID_REQUEST" {
		t.Errorf("code = %q, want INVALID_REQUEST", e.Code)
	}
}

func TestSubmitJobRateLimited(t *testing.T) {
	srv := newServer(t, engine.WithLimiter(ratelimit.NewMemoryLimiter(
		ratelimit.WithMemoryMax(1),
	)))

	submitJob(t, srv, "alice")
	resp := do(t, srv, http.MethodPost, "/api/queue/job", "alice", submission())
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs < 1 {
		t.Errorf("Retry-After = %q, want positive integer seconds", resp.Header.Get("Retry-After"))
	}
}

func TestGetJob(t *testing.T) {
	srv := newServer(t)
	sub := submitJob(t, srv, "alice")

	resp := do(t, srv, http.MethodGet, "/api/queue/job?jobId="+sub.JobID, "alice", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	view := decode[api.JobView](t, resp)
	if view.ID.String() != sub.JobID {
		t.Errorf("id = %q, want %q", view.ID, sub.JobID)
	}
	if view.Status != job.StatusWaiting {
		t.Errorf("status = %q, want waiting", view.Status)
	}
	// The first attempt is delayed an hour, so the entry is still queued.
	if view.Phase == "" {
		t.Error("phase missing for queued job")
	}
}

func TestGetJobErrors(t *testing.T) {
	srv := newServer(t)
	sub := submitJob(t, srv, "alice")

	cases := []struct {
		name string
		path string
		user string
		want int
	}{
		{"missing param", "/api/queue/job", "alice", http.StatusBadRequest},
		{"malformed id", "/api/queue/job?jobId=not-an-id", "alice", http.StatusBadRequest},
		{"unknown id", "/api/queue/job?jobId=job_00000000000000000000000000", "alice", http.StatusNotFound},
		{"wrong owner", "/api/queue/job?jobId=" + sub.JobID, "mallory", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(t, srv, http.MethodGet, tc.path, tc.user, nil)
			if resp.StatusCode != tc.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestCancelJob(t *testing.T) {
	srv := newServer(t)
	sub := submitJob(t, srv, "alice")

	resp := do(t, srv, http.MethodDelete, "/api/queue/job?jobId="+sub.JobID, "alice", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	j := decode[job.Job](t, resp)
	if j.Status != job.StatusCancelled {
		t.Errorf("status = %q, want cancelled", j.Status)
	}
	if j.CancelReason != job.ReasonUserCancelled {
		t.Errorf("cancel_reason = %q, want USER_CANCELLED", j.CancelReason)
	}

	// Cancelling again conflicts with the terminal state.
	resp = do(t, srv, http.MethodDelete, "/api/queue/job?jobId="+sub.JobID, "alice", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second cancel status = %d, want 409", resp.StatusCode)
	}
	if e := decode[api.ErrorResponse](t, resp); e.Code != "JOB_TERMINAL" {
		t.Errorf("code = %q, want JOB_TERMINAL", e.Code)
	}
}

func TestHistory(t *testing.T) {
	srv := newServer(t)
	submitJob(t, srv, "alice")
	submitJob(t, srv, "alice")

	resp := do(t, srv, http.MethodGet, "/api/jobs/history", "alice", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if jobs := decode[[]*job.Job](t, resp); len(jobs) != 2 {
		t.Errorf("len(jobs) = %d, want 2", len(jobs))
	}

	resp = do(t, srv, http.MethodGet, "/api/jobs/history?limit=1", "alice", nil)
	if jobs := decode[[]*job.Job](t, resp); len(jobs) != 1 {
		t.Errorf("limited len(jobs) = %d, want 1", len(jobs))
	}

	// Another owner sees an empty list, not alice's jobs.
	resp = do(t, srv, http.MethodGet, "/api/jobs/history", "bob", nil)
	if jobs := decode[[]*job.Job](t, resp); len(jobs) != 0 {
		t.Errorf("foreign len(jobs) = %d, want 0", len(jobs))
	}
}

func TestHistoryBadLimit(t *testing.T) {
	srv := newServer(t)

	resp := do(t, srv, http.MethodGet, "/api/jobs/history?limit=zero", "alice", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestStream(t *testing.T) {
	srv := newServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/jobs/stream", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("X-User-ID", "alice")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("stream request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type = %q, want text/event-stream", ct)
	}

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if !strings.Contains(line, "connected") {
		t.Errorf("first frame = %q, want connected event", line)
	}
}

func TestStreamUnauthorized(t *testing.T) {
	srv := newServer(t)

	resp := do(t, srv, http.MethodGet, "/api/jobs/stream", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	srv := newServer(t)

	resp := do(t, srv, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

package seatcheck

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"seatwatch/budget"
)

// Page paths on the reservation site.
const (
	sessionPath   = "/main.do"
	routeInfoPath = "/mrs/rotinf.do"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// DefaultTimeout bounds one full check, both requests included.
const DefaultTimeout = 15 * time.Second

// Markers in the schedule row cells that mean a departure is closed.
const (
	soldOutMarker   = "매진"
	zeroSeatsMarker = "0석"
)

// Placeholders recorded for a target time missing from the page.
const (
	remainNotAvailable = "-"
	statusNoInfo       = "정보 없음"
)

// NameResolver maps terminal codes to display names for the search
// form. Returning the codes themselves is acceptable.
type NameResolver func(ctx context.Context, departureCd, arrivalCd string) (string, string)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at a different site root. Used in tests.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithTimeout bounds the whole check.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithSelectors overrides the page selectors.
func WithSelectors(sel Selectors) ClientOption {
	return func(c *Client) { c.selectors = sel }
}

// WithNameResolver supplies terminal display names for the search form.
func WithNameResolver(r NameResolver) ClientOption {
	return func(c *Client) { c.resolver = r }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

// WithClientLogger sets the client's logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// Client checks seat availability against the reservation site. Each
// check uses a fresh cookie jar so session state never leaks between
// attempts.
type Client struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	selectors Selectors
	resolver  NameResolver
	transport http.RoundTripper
	now       func() time.Time
	logger    *slog.Logger
}

var _ Checker = (*Client)(nil)

// NewClient builds a Client for the given site root.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: defaultUserAgent,
		timeout:   DefaultTimeout,
		selectors: DefaultSelectors,
		transport: http.DefaultTransport,
		now:       budget.Now,
		logger:    slog.Default(),
	}
	c.resolver = func(_ context.Context, dep, arr string) (string, string) { return dep, arr }
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check performs one availability check. A failed check returns a
// Result with Success false and the error set on both the Result and
// the error return.
func (c *Client) Check(ctx context.Context, q Query) (*Result, error) {
	start := c.now()
	res := &Result{
		Timestamp:       start,
		Query:           q,
		TotalCheckCount: len(q.TargetTimes),
	}

	rows, err := c.fetchSchedule(ctx, q)
	if err != nil {
		res.Success = false
		res.Error = err.Error()
		res.DurationMs = c.now().Sub(start).Milliseconds()
		c.logger.Error("seat check failed",
			slog.String("departure_cd", q.DepartureCd),
			slog.String("arrival_cd", q.ArrivalCd),
			slog.String("error", err.Error()),
		)
		return res, err
	}

	for _, want := range q.TargetTimes {
		slot, ok := matchRow(rows, want)
		if !ok {
			res.Results = append(res.Results, Slot{
				Time:        want,
				RemainSeats: remainNotAvailable,
				Status:      statusNoInfo,
			})
			continue
		}
		if slot.HasSeats {
			res.FoundSeats = true
			if res.FirstFoundTime == "" {
				res.FirstFoundTime = want
			}
		}
		res.Results = append(res.Results, slot)
	}

	res.Success = true
	res.DurationMs = c.now().Sub(start).Milliseconds()
	return res, nil
}

func (c *Client) fetchSchedule(ctx context.Context, q Query) ([]scheduleRow, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	client := &http.Client{Jar: jar, Transport: c.transport, Timeout: c.timeout}

	if err := c.primeSession(ctx, client); err != nil {
		return nil, err
	}

	targetDay, err := targetDate(q.TargetMonth, q.TargetDate, c.now())
	if err != nil {
		return nil, err
	}
	depName, arrName := c.resolver(ctx, q.DepartureCd, q.ArrivalCd)
	form := searchForm(q, depName, arrName, targetDay)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+routeInfoPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Referer", c.baseURL+sessionPath)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("route info request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("route info request: unexpected status %d", resp.StatusCode)
	}
	rows, err := parseSchedule(resp.Body, c.selectors)
	if err != nil {
		return nil, fmt.Errorf("parse route info page: %w", err)
	}
	return rows, nil
}

// primeSession fetches the landing page so the site issues the session
// cookie the search endpoint requires.
func (c *Client) primeSession(ctx context.Context, client *http.Client) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+sessionPath, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("session request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("session request: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func matchRow(rows []scheduleRow, want string) (Slot, bool) {
	for _, row := range rows {
		if row.Time != want {
			continue
		}
		hasSeats := !strings.Contains(row.Status, soldOutMarker) &&
			!strings.Contains(row.RemainSeats, zeroSeatsMarker)
		return Slot{
			Time:        want,
			RemainSeats: row.RemainSeats,
			Status:      row.Status,
			HasSeats:    hasSeats,
		}, true
	}
	return Slot{}, false
}

var koreanWeekdays = [...]string{"일", "월", "화", "수", "목", "금", "토"}

// targetDate resolves "11월"/"18" to a concrete KST date. A month/day
// already behind the current date rolls into next year.
func targetDate(month, day string, now time.Time) (time.Time, error) {
	m, err := strconv.Atoi(strings.TrimSuffix(month, "월"))
	if err != nil {
		return time.Time{}, fmt.Errorf("target month %q: %w", month, err)
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return time.Time{}, fmt.Errorf("target date %q: %w", day, err)
	}
	now = now.In(budget.Location)
	t := time.Date(now.Year(), time.Month(m), d, 0, 0, 0, 0, budget.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, budget.Location)
	if t.Before(today) {
		t = t.AddDate(1, 0, 0)
	}
	return t, nil
}

// searchForm builds the route search POST body the site expects.
func searchForm(q Query, depName, arrName string, day time.Time) url.Values {
	ymd := day.Format("20060102")
	formatted := fmt.Sprintf("%s (%s)", day.Format("2006. 01. 02."), koreanWeekdays[day.Weekday()])
	form := url.Values{}
	form.Set("deprCd", q.DepartureCd)
	form.Set("deprNm", depName)
	form.Set("arvlCd", q.ArrivalCd)
	form.Set("arvlNm", arrName)
	form.Set("pathDvs", "sngl")
	form.Set("pathStep", "1")
	form.Set("crchDeprArvlYn", "N")
	form.Set("deprDtm", ymd)
	form.Set("deprDtmAll", formatted)
	form.Set("arvlDtm", ymd)
	form.Set("arvlDtmAll", formatted)
	form.Set("busClsCd", "0")
	form.Set("prmmDcYn", "N")
	form.Set("tfrCd", "")
	form.Set("tfrNm", "")
	form.Set("tfrArvlFullNm", "")
	form.Set("abnrData", "N")
	return form
}

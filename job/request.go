package job

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"seatwatch"
)

// maxTerminalCd bounds route terminal codes.
const maxTerminalCd = 20

var (
	monthRe = regexp.MustCompile(`^\d{1,2}월$`)
	dateRe  = regexp.MustCompile(`^\d{1,2}$`)
	timeRe  = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

// Request is a job submission payload. Field names mirror the reservation
// site's terminology: terminal codes, a "N월" month string, a day-of-month
// string, and HH:MM departure times.
type Request struct {
	DepartureCd string   `json:"departureCd"`
	ArrivalCd   string   `json:"arrivalCd"`
	TargetMonth string   `json:"targetMonth"`
	TargetDate  string   `json:"targetDate"`
	TargetTimes []string `json:"targetTimes"`
	Priority    int      `json:"priority,omitempty"`
	DelayMs     int64    `json:"delay,omitempty"`
}

// Validate checks the submission contract and normalizes TargetTimes
// (dedup + ascending sort). All violations wrap seatwatch.ErrValidation.
func (r *Request) Validate() error {
	if err := validTerminalCd("departureCd", r.DepartureCd); err != nil {
		return err
	}
	if err := validTerminalCd("arrivalCd", r.ArrivalCd); err != nil {
		return err
	}

	if !monthRe.MatchString(r.TargetMonth) {
		return fmt.Errorf("%w: targetMonth must be like %q, got %q", seatwatch.ErrValidation, "11월", r.TargetMonth)
	}
	if !dateRe.MatchString(r.TargetDate) {
		return fmt.Errorf("%w: targetDate must be a day number, got %q", seatwatch.ErrValidation, r.TargetDate)
	}

	if len(r.TargetTimes) == 0 {
		return fmt.Errorf("%w: targetTimes must have at least one entry", seatwatch.ErrValidation)
	}

	seen := make(map[string]struct{}, len(r.TargetTimes))
	times := make([]string, 0, len(r.TargetTimes))
	for _, tm := range r.TargetTimes {
		if !timeRe.MatchString(tm) {
			return fmt.Errorf("%w: time must be HH:MM format, got %q", seatwatch.ErrValidation, tm)
		}
		if _, dup := seen[tm]; dup {
			continue
		}
		seen[tm] = struct{}{}
		times = append(times, tm)
	}
	sort.Strings(times)
	r.TargetTimes = times

	return nil
}

func validTerminalCd(field, cd string) error {
	if cd == "" {
		return fmt.Errorf("%w: %s is required", seatwatch.ErrValidation, field)
	}
	if len(cd) > maxTerminalCd {
		return fmt.Errorf("%w: %s exceeds %d characters", seatwatch.ErrValidation, field, maxTerminalCd)
	}
	return nil
}

// MonthDay returns the numeric month and day. Call Validate first; the
// parse cannot fail on a validated request.
func (r *Request) MonthDay() (month, day int) {
	month, _ = strconv.Atoi(strings.TrimSuffix(r.TargetMonth, "월"))
	day, _ = strconv.Atoi(r.TargetDate)
	return month, day
}

// LastTime returns the latest of the target times. On a validated request
// the slice is sorted, so this is the final element.
func (r *Request) LastTime() string {
	if len(r.TargetTimes) == 0 {
		return ""
	}
	return r.TargetTimes[len(r.TargetTimes)-1]
}

package seatcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const schedulePage = `<!DOCTYPE html>
<html><body>
<div class="bus_time_box">
  <p class="start_time">09 : 00</p>
  <p class="remain_seat">12석</p>
  <p class="seat_state">예매가능</p>
</div>
<div class="bus_time_box">
  <p class="start_time">10:30</p>
  <p class="remain_seat">0석</p>
  <p class="seat_state">매진</p>
</div>
<div class="bus_time_box">
  <p class="start_time">12:00</p>
  <p class="remain_seat">3석</p>
  <p class="seat_state">매진</p>
</div>
</body></html>`

func TestParseSchedule(t *testing.T) {
	rows, err := parseSchedule(strings.NewReader(schedulePage), DefaultSelectors)
	if err != nil {
		t.Fatalf("parseSchedule: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("parsed %d rows, want 3", len(rows))
	}
	if rows[0].Time != "09:00" {
		t.Errorf("row 0 time = %q, want %q (whitespace normalized)", rows[0].Time, "09:00")
	}
	if rows[1].RemainSeats != "0석" || rows[1].Status != "매진" {
		t.Errorf("row 1 = %+v, want remain 0석 status 매진", rows[1])
	}
}

func TestParseScheduleEmptyPage(t *testing.T) {
	rows, err := parseSchedule(strings.NewReader("<html><body></body></html>"), DefaultSelectors)
	if err != nil {
		t.Fatalf("parseSchedule: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("parsed %d rows from empty page, want 0", len(rows))
	}
}

func TestClientCheck(t *testing.T) {
	var sessionHit, searchForm bool
	var gotDeprCd, gotDeprDtm string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case sessionPath:
			sessionHit = true
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "test"})
			w.Write([]byte("<html></html>"))
		case routeInfoPath:
			if cookie, err := r.Cookie("JSESSIONID"); err != nil || cookie.Value != "test" {
				t.Error("search request missing session cookie")
			}
			if err := r.ParseForm(); err != nil {
				t.Fatalf("ParseForm: %v", err)
			}
			searchForm = true
			gotDeprCd = r.PostFormValue("deprCd")
			gotDeprDtm = r.PostFormValue("deprDtm")
			w.Write([]byte(schedulePage))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	now := time.Date(2026, 11, 1, 8, 0, 0, 0, time.FixedZone("KST", 9*60*60))
	c := NewClient(srv.URL, WithClock(func() time.Time { return now }))

	res, err := c.Check(context.Background(), Query{
		DepartureCd: "010",
		ArrivalCd:   "300",
		TargetMonth: "11월",
		TargetDate:  "18",
		TargetTimes: []string{"09:00", "10:30", "12:00", "23:30"},
	})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !sessionHit || !searchForm {
		t.Fatal("expected session GET then search POST")
	}
	if gotDeprCd != "010" {
		t.Errorf("deprCd = %q, want 010", gotDeprCd)
	}
	if gotDeprDtm != "20261118" {
		t.Errorf("deprDtm = %q, want 20261118", gotDeprDtm)
	}

	if !res.Success {
		t.Fatalf("result not successful: %s", res.Error)
	}
	if !res.FoundSeats || res.FirstFoundTime != "09:00" {
		t.Errorf("foundSeats=%v firstFoundTime=%q, want true / 09:00", res.FoundSeats, res.FirstFoundTime)
	}
	if len(res.Results) != 4 {
		t.Fatalf("got %d slots, want 4", len(res.Results))
	}
	if res.Results[1].HasSeats {
		t.Error("sold-out 10:30 slot reported as having seats")
	}
	if res.Results[2].HasSeats {
		t.Error("12:00 slot marked 매진 must not report seats even with a nonzero count")
	}
	if got := res.Results[3]; got.Status != statusNoInfo || got.HasSeats {
		t.Errorf("missing 23:30 slot = %+v, want no-info placeholder", got)
	}
	if res.TotalCheckCount != 4 {
		t.Errorf("totalCheckCount = %d, want 4", res.TotalCheckCount)
	}
}

func TestClientCheckServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	res, err := c.Check(context.Background(), Query{
		DepartureCd: "010", ArrivalCd: "300",
		TargetMonth: "11월", TargetDate: "18",
		TargetTimes: []string{"09:00"},
	})
	if err == nil {
		t.Fatal("expected error from failing site")
	}
	if res == nil || res.Success {
		t.Fatal("failure must still produce an unsuccessful result")
	}
	if res.Error == "" {
		t.Error("failure result missing error detail")
	}
}

func TestTargetDateRollsToNextYear(t *testing.T) {
	kst := time.FixedZone("KST", 9*60*60)
	now := time.Date(2026, 12, 20, 10, 0, 0, 0, kst)
	got, err := targetDate("1월", "5", now)
	if err != nil {
		t.Fatalf("targetDate: %v", err)
	}
	if got.Year() != 2027 || got.Month() != time.January || got.Day() != 5 {
		t.Errorf("targetDate = %v, want 2027-01-05", got)
	}
}

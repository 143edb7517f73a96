package seatcheck

import (
	"context"
	"time"
)

// Query identifies one route and the departure times to check.
type Query struct {
	DepartureCd string   `json:"departureCd"`
	ArrivalCd   string   `json:"arrivalCd"`
	TargetMonth string   `json:"targetMonth"` // e.g. "11월"
	TargetDate  string   `json:"targetDate"`  // e.g. "18"
	TargetTimes []string `json:"targetTimes"` // HH:MM
}

// Slot is the observed state of one departure time.
type Slot struct {
	Time        string `json:"time"`
	RemainSeats string `json:"remainSeats"`
	Status      string `json:"status"`
	HasSeats    bool   `json:"hasSeats"`
}

// Result is the outcome of one check. Success false means the check
// itself failed (network or parse error); FoundSeats false with Success
// true means the check ran and no seats were open.
type Result struct {
	Timestamp       time.Time `json:"timestamp"`
	Query           Query     `json:"config"`
	Results         []Slot    `json:"results"`
	FoundSeats      bool      `json:"foundSeats"`
	FirstFoundTime  string    `json:"firstFoundTime,omitempty"`
	Success         bool      `json:"success"`
	Error           string    `json:"error,omitempty"`
	TotalCheckCount int       `json:"totalCheckCount"`
	DurationMs      int64     `json:"durationMs"`
}

// Checker is the seat availability capability.
type Checker interface {
	Check(ctx context.Context, q Query) (*Result, error)
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context, q Query) (*Result, error)

// Check implements Checker.
func (f CheckerFunc) Check(ctx context.Context, q Query) (*Result, error) {
	return f(ctx, q)
}

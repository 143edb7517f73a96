package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"seatwatch/notify"
	"seatwatch/seatcheck"
)

func TestWebhookDeliversPayload(t *testing.T) {
	var got struct {
		OwnerID string            `json:"ownerId"`
		Result  *seatcheck.Result `json:"result"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := notify.NewWebhook(srv.URL)
	result := &seatcheck.Result{FoundSeats: true, FirstFoundTime: "09:00", Success: true}
	if err := wh.Notify(context.Background(), "alice", result); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if got.OwnerID != "alice" {
		t.Errorf("ownerId = %q, want alice", got.OwnerID)
	}
	if got.Result == nil || got.Result.FirstFoundTime != "09:00" {
		t.Errorf("result = %+v, want firstFoundTime 09:00", got.Result)
	}
}

func TestWebhookNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	wh := notify.NewWebhook(srv.URL)
	if err := wh.Notify(context.Background(), "alice", &seatcheck.Result{}); err == nil {
		t.Fatal("expected error on 502 response")
	}
}

func TestMultiAttemptsAll(t *testing.T) {
	var calls int
	counting := notifierFunc(func(context.Context, string, *seatcheck.Result) error {
		calls++
		return nil
	})
	failing := notifierFunc(func(context.Context, string, *seatcheck.Result) error {
		return errors.New("boom")
	})

	m := notify.Multi{failing, counting, counting}
	err := m.Notify(context.Background(), "alice", &seatcheck.Result{})
	if err == nil {
		t.Fatal("expected first error to propagate")
	}
	if calls != 2 {
		t.Fatalf("later notifiers called %d times, want 2", calls)
	}
}

type notifierFunc func(ctx context.Context, ownerID string, result *seatcheck.Result) error

func (f notifierFunc) Notify(ctx context.Context, ownerID string, result *seatcheck.Result) error {
	return f(ctx, ownerID, result)
}

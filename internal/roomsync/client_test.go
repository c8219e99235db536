package roomsync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/model"
)

func TestGetBookingTotals_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/api/bookings/bk-1/totals" {
			t.Fatalf("path = %s, want /api/bookings/bk-1/totals", r.URL.Path)
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(model.LinkedTotals{
			BookingID:   "bk-1",
			InvoiceID:   "inv-1",
			TotalAmount: decimal.NewFromInt(661),
			Nights:      1,
			Status:      model.InvoiceStatusPaid,
		}); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, code, retry, err := client.GetBookingTotals(ctx, "bk-1")
	if err != nil {
		t.Fatalf("GetBookingTotals error: %v", err)
	}
	if code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", code, http.StatusOK)
	}
	if retry != 0 {
		t.Fatalf("retryAfter = %v, want 0", retry)
	}
	if res == nil || res.InvoiceID != "inv-1" || !res.TotalAmount.Equal(decimal.NewFromInt(661)) {
		t.Fatalf("unexpected response: %+v", res)
	}
}

func TestGetBookingTotals_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	res, code, _, err := NewClient(ts.URL).GetBookingTotals(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetBookingTotals error: %v", err)
	}
	if res != nil || code != http.StatusNotFound {
		t.Fatalf("res = %+v, code = %d", res, code)
	}
}

func TestPutBookingTotals_TooManyRequests(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	code, retry, err := NewClient(ts.URL).PutBookingTotals(context.Background(), model.LinkedTotals{BookingID: "bk-1"})
	if err != nil {
		t.Fatalf("PutBookingTotals error: %v", err)
	}
	if code != http.StatusTooManyRequests {
		t.Fatalf("status code = %d, want %d", code, http.StatusTooManyRequests)
	}
	if retry < 5*time.Second {
		t.Fatalf("retryAfter = %v, want at least 5s", retry)
	}
}

func TestPutBookingTotals_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	code, _, err := NewClient(ts.URL).PutBookingTotals(context.Background(), model.LinkedTotals{BookingID: "bk-1"})
	if err == nil {
		t.Fatalf("expected error for 500")
	}
	if code != http.StatusInternalServerError {
		t.Fatalf("status code = %d, want %d", code, http.StatusInternalServerError)
	}
}

func TestClient_NotConfigured(t *testing.T) {
	var c *Client
	if _, _, err := c.PutBookingTotals(context.Background(), model.LinkedTotals{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
	if _, _, _, err := NewClient("").GetBookingTotals(context.Background(), "x"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestReconciler(t *testing.T) {
	var got model.LinkedTotals
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Method != http.MethodPut {
			t.Fatalf("method = %s, want PUT", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	rec := NewReconciler(NewClient(ts.URL))

	if err := rec.ReconcileLinkedRecord(context.Background(), &model.Invoice{ID: "inv-1"}); err != nil {
		t.Fatalf("unlinked invoice: %v", err)
	}
	if calls != 0 {
		t.Fatalf("unlinked invoice must not call room service")
	}

	booking := "bk-9"
	inv := &model.Invoice{
		ID:              "inv-2",
		LinkedBookingID: &booking,
		TotalAmount:     decimal.NewFromInt(9337),
		Breakdown:       model.CostBreakdown{Nights: 7},
		Status:          model.InvoiceStatusUnpaid,
	}
	if err := rec.ReconcileLinkedRecord(context.Background(), inv); err != nil {
		t.Fatalf("ReconcileLinkedRecord error: %v", err)
	}
	if calls != 1 || got.BookingID != "bk-9" || got.Nights != 7 || !got.TotalAmount.Equal(decimal.NewFromInt(9337)) {
		t.Fatalf("unexpected totals sent: %+v (calls %d)", got, calls)
	}
}

func TestReconciler_RateLimited(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	booking := "bk-1"
	err := NewReconciler(NewClient(ts.URL)).RestoreLinkedRecord(context.Background(), &model.Invoice{LinkedBookingID: &booking})

	var rl *RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("err = %v, want RateLimitedError", err)
	}
	if rl.RetryAfter != 2*time.Second {
		t.Fatalf("RetryAfter = %v, want 2s", rl.RetryAfter)
	}
}

func TestReconciler_LinkedRecordInSync(t *testing.T) {
	stored := model.LinkedTotals{
		BookingID:   "bk-1",
		InvoiceID:   "inv-1",
		TotalAmount: decimal.NewFromInt(661),
		Nights:      1,
		Status:      model.InvoiceStatusPaid,
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		if r.URL.Path == "/api/bookings/missing/totals" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stored); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	rec := NewReconciler(NewClient(ts.URL))

	booking := "bk-1"
	inv := &model.Invoice{
		ID:              "inv-1",
		LinkedBookingID: &booking,
		TotalAmount:     decimal.RequireFromString("661.00"),
		Breakdown:       model.CostBreakdown{Nights: 1},
		Status:          model.InvoiceStatusPaid,
	}

	inSync, err := rec.LinkedRecordInSync(context.Background(), inv)
	if err != nil {
		t.Fatalf("LinkedRecordInSync error: %v", err)
	}
	if !inSync {
		t.Fatalf("matching totals reported as out of sync")
	}

	inv.TotalAmount = decimal.NewFromInt(781)
	if inSync, _ = rec.LinkedRecordInSync(context.Background(), inv); inSync {
		t.Fatalf("changed total reported as in sync")
	}

	missing := "missing"
	inv.LinkedBookingID = &missing
	if inSync, _ = rec.LinkedRecordInSync(context.Background(), inv); inSync {
		t.Fatalf("absent linked record reported as in sync")
	}

	if inSync, _ = rec.LinkedRecordInSync(context.Background(), &model.Invoice{ID: "unlinked"}); !inSync {
		t.Fatalf("unlinked invoice must be in sync")
	}
}

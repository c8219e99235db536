package roomsync

import (
	"context"
	"fmt"
	"net/http"

	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/model"
)

// Reconciler переносит пересчитанные суммы счёта в связанную запись бронирования.
// Счета без связанного бронирования пропускаются.
type Reconciler struct {
	client *Client
}

// NewReconciler создаёт синхронизатор поверх клиента. Nil-клиент означает, что синхронизация отключена.
func NewReconciler(client *Client) *Reconciler {
	return &Reconciler{client: client}
}

// ReconcileLinkedRecord записывает суммы счёта в связанную запись.
func (r *Reconciler) ReconcileLinkedRecord(ctx context.Context, inv *model.Invoice) error {
	return r.put(ctx, inv)
}

// RestoreLinkedRecord возвращает связанной записи суммы предыдущей версии счёта.
func (r *Reconciler) RestoreLinkedRecord(ctx context.Context, prev *model.Invoice) error {
	return r.put(ctx, prev)
}

// LinkedRecordInSync сообщает, совпадают ли суммы в связанной записи с суммами счёта.
// Счёт без связанного бронирования всегда считается синхронизированным.
func (r *Reconciler) LinkedRecordInSync(ctx context.Context, inv *model.Invoice) (bool, error) {
	if !linked(r.client, inv) {
		return true, nil
	}

	current, code, wait, err := r.client.GetBookingTotals(ctx, *inv.LinkedBookingID)
	if err != nil {
		return false, fmt.Errorf("get booking totals: %w", err)
	}
	if code == http.StatusTooManyRequests {
		return false, &RateLimitedError{RetryAfter: wait}
	}
	if current == nil {
		return false, nil
	}

	return mirrors(*current, model.TotalsOf(inv)), nil
}

func mirrors(got, want model.LinkedTotals) bool {
	return got.BookingID == want.BookingID &&
		got.InvoiceID == want.InvoiceID &&
		got.TotalAmount.Equal(want.TotalAmount) &&
		got.Nights == want.Nights &&
		got.Status == want.Status
}

func linked(client *Client, inv *model.Invoice) bool {
	return client != nil && inv != nil && inv.LinkedBookingID != nil && *inv.LinkedBookingID != ""
}

func (r *Reconciler) put(ctx context.Context, inv *model.Invoice) error {
	if !linked(r.client, inv) {
		return nil
	}

	code, wait, err := r.client.PutBookingTotals(ctx, model.TotalsOf(inv))
	if err != nil {
		return fmt.Errorf("put booking totals: %w", err)
	}
	if code == http.StatusTooManyRequests {
		return &RateLimitedError{RetryAfter: wait}
	}
	return nil
}

// Package invoice собирает счёт за проживание из описания проживания и расчёта стоимости.
package invoice

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/model"
	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/pricing"
)

// DefaultShortStayHours задаёт длительность короткого проживания, если не указаны ни выезд, ни часы.
const DefaultShortStayHours = 3

// Extras описывает дополнения к счёту. Nil-поля означают «оставить как было».
type Extras struct {
	Expenses    []model.Expense
	HasTVRemote *bool
}

// LinkedRecordReconciler синхронизирует связанную запись бронирования с пересчитанным счётом.
// Builder его не вызывает: запись в чужое хранилище выполняет вызывающая сторона.
type LinkedRecordReconciler interface {
	ReconcileLinkedRecord(ctx context.Context, inv *model.Invoice) error
	RestoreLinkedRecord(ctx context.Context, prev *model.Invoice) error
}

// Builder собирает счета.
type Builder struct {
	calc  *pricing.Calculator
	newID func() string
	now   func() time.Time
}

// Option настраивает Builder.
type Option func(*Builder)

// WithIDGenerator задаёт генератор идентификаторов счетов.
func WithIDGenerator(fn func() string) Option {
	return func(b *Builder) { b.newID = fn }
}

// WithClock задаёт источник текущего времени.
func WithClock(fn func() time.Time) Option {
	return func(b *Builder) { b.now = fn }
}

// NewBuilder создаёт сборщик счетов.
func NewBuilder(calc *pricing.Calculator, opts ...Option) *Builder {
	b := &Builder{
		calc:  calc,
		newID: uuid.NewString,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Nights возвращает количество ночей, округлённое вверх. Без даты выезда возвращает 0.
func Nights(checkIn time.Time, checkOut *time.Time) int {
	if checkOut == nil {
		return 0
	}
	return ceilDiv(checkOut.Sub(checkIn), 24*time.Hour)
}

// Hours возвращает длительность проживания в часах для отображения.
func Hours(stay model.StayRequest) int {
	if stay.BookingType == model.BookingTypeHourly && stay.DurationHours != nil {
		return *stay.DurationHours
	}
	if stay.CheckOut != nil {
		return ceilDiv(stay.CheckOut.Sub(stay.CheckIn), time.Hour)
	}
	if stay.DurationHours != nil {
		return *stay.DurationHours
	}
	return DefaultShortStayHours
}

func ceilDiv(d, unit time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(float64(d) / float64(unit)))
}

// Validate проверяет описание проживания.
func Validate(stay model.StayRequest) error {
	inputErr := newInvalidStayError()

	if stay.CheckIn.IsZero() {
		inputErr.add("check_in", "check-in is required")
	}
	if stay.CheckOut != nil && stay.CheckOut.Before(stay.CheckIn) {
		inputErr.add("check_out", "check-out precedes check-in")
	}
	if stay.DurationHours != nil && *stay.DurationHours < 1 {
		inputErr.add("duration_hours", "duration must be at least one hour")
	}
	if stay.BookingType != "" && !stay.BookingType.Valid() {
		inputErr.add("booking_type", "unknown booking type")
	}

	if len(inputErr.fields) > 0 {
		return inputErr
	}
	return nil
}

// PricingInput переводит описание проживания во входные данные калькулятора.
func PricingInput(stay model.StayRequest) pricing.Input {
	hours := Hours(stay)
	return pricing.Input{
		Nights:      Nights(stay.CheckIn, stay.CheckOut),
		BookingType: stay.BookingType,
		HasCheckOut: stay.CheckOut != nil,
		HasTVRemote: stay.HasTVRemote,
		Hours:       &hours,
	}
}

// Quote рассчитывает стоимость проживания без создания счёта.
func (b *Builder) Quote(stay model.StayRequest) (model.CostBreakdown, error) {
	if err := Validate(stay); err != nil {
		return model.CostBreakdown{}, err
	}
	return b.calc.Compute(PricingInput(stay)), nil
}

// Build собирает новый счёт или полностью пересчитывает существующий.
// Денежные поля никогда не правятся частично: они всегда вычисляются заново.
func (b *Builder) Build(existing *model.Invoice, stay model.StayRequest, extras Extras) (*model.Invoice, error) {
	if extras.HasTVRemote != nil {
		stay.HasTVRemote = *extras.HasTVRemote
	}
	if err := Validate(stay); err != nil {
		return nil, err
	}

	expenses := extras.Expenses
	if expenses == nil && existing != nil {
		expenses = existing.Expenses
	}
	expensesTotal, err := sumExpenses(expenses)
	if err != nil {
		return nil, err
	}

	in := PricingInput(stay)
	breakdown := b.calc.Compute(in)

	now := b.now()
	inv := &model.Invoice{
		CustomerName:    stay.CustomerName,
		RoomNumber:      stay.RoomNumber,
		RoomType:        stay.RoomType,
		CheckIn:         stay.CheckIn,
		CheckOut:        copyTime(stay.CheckOut),
		BookingType:     stay.BookingType,
		Hours:           *in.Hours,
		Breakdown:       breakdown,
		Expenses:        append([]model.Expense(nil), expenses...),
		ExpensesTotal:   expensesTotal,
		TotalAmount:     breakdown.TotalAmount.Add(expensesTotal),
		Status:          model.InvoiceStatusUnpaid,
		LinkedBookingID: copyString(stay.LinkedBookingID),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if existing == nil {
		inv.ID = b.newID()
		return inv, nil
	}

	inv.ID = existing.ID
	inv.Status = existing.Status
	inv.CreatedAt = existing.CreatedAt
	inv.SyncPending = existing.SyncPending
	if inv.LinkedBookingID == nil {
		inv.LinkedBookingID = copyString(existing.LinkedBookingID)
	}

	return inv, nil
}

func sumExpenses(expenses []model.Expense) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, e := range expenses {
		if e.Amount.IsNegative() {
			inputErr := newInvalidStayError()
			inputErr.add("expenses", "expense amount must not be negative")
			return decimal.Zero, inputErr
		}
		if !e.Amount.Equal(e.Amount.Truncate(0)) {
			inputErr := newInvalidStayError()
			inputErr.add("expenses", "expense amount must be in whole pesos")
			return decimal.Zero, inputErr
		}
		total = total.Add(e.Amount)
	}
	return total, nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

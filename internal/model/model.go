// Package model содержит доменные сущности сервиса учёта бронирований LodgeEase.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingType описывает тип бронирования.
type BookingType string

const (
	BookingTypeStandard   BookingType = "standard"
	BookingTypeNightPromo BookingType = "night_promo"
	BookingTypeHourly     BookingType = "hourly"
)

// Valid сообщает, входит ли тип бронирования в известный набор.
func (t BookingType) Valid() bool {
	switch t {
	case BookingTypeStandard, BookingTypeNightPromo, BookingTypeHourly:
		return true
	}
	return false
}

// RoomType описывает категорию номера.
type RoomType string

const (
	RoomTypeStandard RoomType = "standard"
	RoomTypeDeluxe   RoomType = "deluxe"
	RoomTypeFamily   RoomType = "family"
	RoomTypeSuite    RoomType = "suite"
)

// RoomTypes возвращает каталог категорий номеров в фиксированном порядке.
func RoomTypes() []RoomType {
	return []RoomType{RoomTypeStandard, RoomTypeDeluxe, RoomTypeFamily, RoomTypeSuite}
}

// InvoiceStatus описывает статус оплаты счёта.
type InvoiceStatus string

const (
	InvoiceStatusUnpaid    InvoiceStatus = "unpaid"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// Valid сообщает, входит ли статус в известный набор.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusUnpaid, InvoiceStatusPaid, InvoiceStatusPending, InvoiceStatusCancelled:
		return true
	}
	return false
}

// StayRequest описывает проживание, которое нужно оценить и оформить счётом.
// Отсутствующий CheckOut означает короткое проживание без даты выезда.
type StayRequest struct {
	CheckIn       time.Time
	CheckOut      *time.Time
	BookingType   BookingType
	DurationHours *int
	HasTVRemote   bool

	CustomerName    string
	RoomNumber      string
	RoomType        RoomType
	LinkedBookingID *string
}

// CostBreakdown содержит детализацию стоимости проживания.
// TotalAmount всегда равен Subtotal + ServiceFeeAmount.
type CostBreakdown struct {
	NightlyRate      decimal.Decimal `json:"nightly_rate"`
	Nights           int             `json:"nights"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	TVRemoteFee      decimal.Decimal `json:"tv_remote_fee"`
	ServiceFeeAmount decimal.Decimal `json:"service_fee_amount"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	IsShortStay      bool            `json:"is_short_stay"`
}

// Expense описывает дополнительный расход, добавленный к счёту.
type Expense struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// Invoice описывает счёт за проживание.
// TotalAmount равен Breakdown.TotalAmount + ExpensesTotal.
type Invoice struct {
	ID              string
	CustomerName    string
	RoomNumber      string
	RoomType        RoomType
	CheckIn         time.Time
	CheckOut        *time.Time
	BookingType     BookingType
	Hours           int
	Breakdown       CostBreakdown
	Expenses        []Expense
	ExpensesTotal   decimal.Decimal
	TotalAmount     decimal.Decimal
	Status          InvoiceStatus
	LinkedBookingID *string
	SyncPending     bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RoomTypeStats содержит агрегированные показатели по категории номеров.
type RoomTypeStats struct {
	Revenue       decimal.Decimal `json:"revenue"`
	Bookings      int             `json:"bookings"`
	AvgStayLength float64         `json:"avg_stay_length"`
}

// MonthlyReport содержит сводку выручки за месяц. Отчёт всегда пересчитывается из счетов.
type MonthlyReport struct {
	Year                 int                        `json:"year"`
	Month                time.Month                 `json:"month"`
	TotalSales           decimal.Decimal            `json:"total_sales"`
	TotalBookings        int                        `json:"total_bookings"`
	AverageBookingValue  decimal.Decimal            `json:"average_booking_value"`
	PerRoomType          map[RoomType]RoomTypeStats `json:"per_room_type"`
	MonthlyGrowthPercent float64                    `json:"monthly_growth_percent"`
	IsEstimated          bool                       `json:"is_estimated"`
	Skipped              int                        `json:"skipped"`
}

// LinkedTotals содержит итоговые суммы, которые зеркалируются в связанной записи бронирования.
type LinkedTotals struct {
	BookingID   string          `json:"booking_id"`
	InvoiceID   string          `json:"invoice_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Nights      int             `json:"nights"`
	Status      InvoiceStatus   `json:"status"`
}

// TotalsOf возвращает суммы счёта для связанной записи.
func TotalsOf(inv *Invoice) LinkedTotals {
	t := LinkedTotals{
		InvoiceID:   inv.ID,
		TotalAmount: inv.TotalAmount,
		Nights:      inv.Breakdown.Nights,
		Status:      inv.Status,
	}
	if inv.LinkedBookingID != nil {
		t.BookingID = *inv.LinkedBookingID
	}
	return t
}

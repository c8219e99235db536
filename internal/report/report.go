// Package report агрегирует счета в ежемесячные отчёты о выручке.
package report

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/model"
	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/rate"
	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/window"
)

var (
	errMissingID       = errors.New("missing invoice id")
	errMissingCheckIn  = errors.New("missing check-in")
	errCheckOutBefore  = errors.New("check-out precedes check-in")
	errNegativeTotal   = errors.New("negative total amount")
	errUnknownRoomType = errors.New("unknown room type")
)

// Aggregator строит ежемесячные отчёты о выручке.
type Aggregator struct {
	policy      rate.Policy
	assumptions Assumptions
	loc         *time.Location
	logger      *zap.Logger
}

// NewAggregator создаёт агрегатор. Месячные окна строятся в часовом поясе loc.
func NewAggregator(policy rate.Policy, loc *time.Location, logger *zap.Logger) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		policy:      policy,
		assumptions: DefaultAssumptions(),
		loc:         loc,
		logger:      logger,
	}
}

// Location возвращает часовой пояс отчётов.
func (a *Aggregator) Location() *time.Location {
	return a.loc
}

// Span возвращает интервал проживания по счёту.
func Span(inv model.Invoice) window.Span {
	return window.Span{Start: inv.CheckIn, End: inv.CheckOut}
}

// AggregateMonth строит отчёт за месяц по снимку счетов. Рост считается относительно
// предыдущего месяца по тому же снимку. Некорректные счета пропускаются и логируются.
func (a *Aggregator) AggregateMonth(invoices []model.Invoice, year int, month time.Month) model.MonthlyReport {
	valid, skipped := a.sanitize(invoices)

	rep := a.summarize(valid, window.Month(year, month, a.loc))
	rep.Year = year
	rep.Month = month
	rep.Skipped = skipped

	py, pm := window.PreviousMonth(year, month)
	prev := a.summarize(valid, window.Month(py, pm, a.loc))
	rep.MonthlyGrowthPercent = growthPercent(rep.TotalSales, prev.TotalSales)

	return rep
}

func (a *Aggregator) sanitize(invoices []model.Invoice) ([]model.Invoice, int) {
	valid := make([]model.Invoice, 0, len(invoices))
	skipped := 0
	for _, inv := range invoices {
		if err := checkInvoice(inv); err != nil {
			skipped++
			a.logger.Warn("skip malformed invoice",
				zap.String("invoiceID", inv.ID),
				zap.Error(err),
			)
			continue
		}
		valid = append(valid, inv)
	}
	return valid, skipped
}

func checkInvoice(inv model.Invoice) error {
	switch {
	case inv.ID == "":
		return errMissingID
	case inv.CheckIn.IsZero():
		return errMissingCheckIn
	case inv.CheckOut != nil && inv.CheckOut.Before(inv.CheckIn):
		return errCheckOutBefore
	case inv.TotalAmount.IsNegative():
		return errNegativeTotal
	case inv.RoomType != "" && !knownRoomType(inv.RoomType):
		return errUnknownRoomType
	}
	return nil
}

func knownRoomType(rt model.RoomType) bool {
	for _, known := range model.RoomTypes() {
		if rt == known {
			return true
		}
	}
	return false
}

type roomAccumulator struct {
	revenue decimal.Decimal
	count   int
	nights  int
}

func (a *Aggregator) summarize(invoices []model.Invoice, w window.Window) model.MonthlyReport {
	rep := model.MonthlyReport{
		TotalSales:          decimal.Zero,
		AverageBookingValue: decimal.Zero,
		PerRoomType:         make(map[model.RoomType]model.RoomTypeStats),
	}

	groups := make(map[model.RoomType]*roomAccumulator)
	for _, inv := range window.Filter(invoices, Span, w) {
		if inv.Status == model.InvoiceStatusCancelled {
			continue
		}

		rep.TotalSales = rep.TotalSales.Add(inv.TotalAmount)
		rep.TotalBookings++

		roomType := inv.RoomType
		if roomType == "" {
			roomType = model.RoomTypeStandard
		}
		g, ok := groups[roomType]
		if !ok {
			g = &roomAccumulator{revenue: decimal.Zero}
			groups[roomType] = g
		}
		g.revenue = g.revenue.Add(inv.TotalAmount)
		g.count++
		g.nights += inv.Breakdown.Nights
	}

	if rep.TotalBookings > 0 {
		rep.AverageBookingValue = rep.TotalSales.Div(decimal.NewFromInt(int64(rep.TotalBookings))).Round(2)
	}

	for rt, g := range groups {
		rep.PerRoomType[rt] = model.RoomTypeStats{
			Revenue:       g.revenue,
			Bookings:      g.count,
			AvgStayLength: float64(g.nights) / float64(g.count),
		}
	}

	return rep
}

func growthPercent(current, previous decimal.Decimal) float64 {
	if previous.IsZero() {
		return 0
	}
	growth := current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100)).Round(2)
	return growth.InexactFloat64()
}

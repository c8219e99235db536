package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/model"
	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/rate"
)

func day(month time.Month, d int) time.Time {
	return time.Date(2024, month, d, 14, 0, 0, 0, time.UTC)
}

func ptrTime(t time.Time) *time.Time { return &t }

func newInvoice(id string, rt model.RoomType, checkIn time.Time, nights int, total int64, status model.InvoiceStatus) model.Invoice {
	out := checkIn.AddDate(0, 0, nights)
	return model.Invoice{
		ID:          id,
		RoomType:    rt,
		CheckIn:     checkIn,
		CheckOut:    &out,
		Breakdown:   model.CostBreakdown{Nights: nights, TotalAmount: decimal.NewFromInt(total)},
		TotalAmount: decimal.NewFromInt(total),
		Status:      status,
	}
}

func newTestAggregator() *Aggregator {
	return NewAggregator(rate.Default(), time.UTC, zap.NewNop())
}

func TestAggregateMonth_ExcludesCancelled(t *testing.T) {
	a := newTestAggregator()

	invoices := []model.Invoice{
		newInvoice("a", model.RoomTypeStandard, day(time.May, 3), 1, 661, model.InvoiceStatusPaid),
		newInvoice("b", model.RoomTypeDeluxe, day(time.May, 10), 7, 9337, model.InvoiceStatusUnpaid),
		newInvoice("c", model.RoomTypeDeluxe, day(time.May, 12), 3, 5000, model.InvoiceStatusCancelled),
	}

	rep := a.AggregateMonth(invoices, 2024, time.May)

	assert.Equal(t, "9998", rep.TotalSales.String())
	assert.Equal(t, 2, rep.TotalBookings)
	assert.Equal(t, "4999", rep.AverageBookingValue.String())
	assert.False(t, rep.IsEstimated)
	assert.Equal(t, 0.0, rep.MonthlyGrowthPercent)

	require.Len(t, rep.PerRoomType, 2)
	deluxe := rep.PerRoomType[model.RoomTypeDeluxe]
	assert.Equal(t, 1, deluxe.Bookings)
	assert.Equal(t, "9337", deluxe.Revenue.String())
	assert.Equal(t, 7.0, deluxe.AvgStayLength)
}

func TestAggregateMonth_EmptyMonth(t *testing.T) {
	a := newTestAggregator()

	rep := a.AggregateMonth(nil, 2024, time.January)

	assert.True(t, rep.TotalSales.IsZero())
	assert.Equal(t, 0, rep.TotalBookings)
	assert.True(t, rep.AverageBookingValue.IsZero())
	assert.Equal(t, 0.0, rep.MonthlyGrowthPercent)
	assert.Empty(t, rep.PerRoomType)
}

func TestAggregateMonth_Growth(t *testing.T) {
	a := newTestAggregator()

	invoices := []model.Invoice{
		newInvoice("apr", model.RoomTypeStandard, day(time.April, 5), 2, 2000, model.InvoiceStatusPaid),
		newInvoice("may-1", model.RoomTypeStandard, day(time.May, 5), 2, 2000, model.InvoiceStatusPaid),
		newInvoice("may-2", model.RoomTypeSuite, day(time.May, 6), 1, 1000, model.InvoiceStatusPaid),
	}

	rep := a.AggregateMonth(invoices, 2024, time.May)

	assert.Equal(t, "3000", rep.TotalSales.String())
	assert.Equal(t, 50.0, rep.MonthlyGrowthPercent)

	april := a.AggregateMonth(invoices, 2024, time.April)
	assert.Equal(t, "2000", april.TotalSales.String())
	assert.Equal(t, 0.0, april.MonthlyGrowthPercent)
}

func TestAggregateMonth_StayCrossingMonthsCountsInBoth(t *testing.T) {
	a := newTestAggregator()

	invoices := []model.Invoice{
		newInvoice("long", model.RoomTypeFamily, day(time.April, 20), 45, 40000, model.InvoiceStatusPaid),
	}

	for _, m := range []time.Month{time.April, time.May, time.June} {
		rep := a.AggregateMonth(invoices, 2024, m)
		assert.Equal(t, 1, rep.TotalBookings, "month %s", m)
	}

	july := a.AggregateMonth(invoices, 2024, time.July)
	assert.Equal(t, 0, july.TotalBookings)
}

func TestAggregateMonth_ShortStayWithoutCheckout(t *testing.T) {
	a := newTestAggregator()

	invoices := []model.Invoice{
		{ID: "short", CheckIn: day(time.May, 31), TotalAmount: decimal.NewFromInt(855), Status: model.InvoiceStatusPaid},
		{ID: "short-prev", CheckIn: day(time.April, 30), TotalAmount: decimal.NewFromInt(741), Status: model.InvoiceStatusPaid},
	}

	rep := a.AggregateMonth(invoices, 2024, time.May)

	assert.Equal(t, "855", rep.TotalSales.String())
	assert.Equal(t, 1, rep.PerRoomType[model.RoomTypeStandard].Bookings)
	assert.Equal(t, 0.0, rep.PerRoomType[model.RoomTypeStandard].AvgStayLength)
}

func TestAggregateMonth_SkipsMalformedAndLogs(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	a := NewAggregator(rate.Default(), time.UTC, zap.New(core))

	good := newInvoice("good", model.RoomTypeStandard, day(time.May, 3), 1, 661, model.InvoiceStatusPaid)
	backwards := newInvoice("backwards", model.RoomTypeStandard, day(time.May, 3), 1, 661, model.InvoiceStatusPaid)
	backwards.CheckOut = ptrTime(day(time.May, 1))
	noCheckIn := model.Invoice{ID: "no-check-in", TotalAmount: decimal.NewFromInt(10)}
	negative := newInvoice("negative", model.RoomTypeStandard, day(time.May, 4), 1, -5, model.InvoiceStatusPaid)
	unknown := newInvoice("unknown", model.RoomType("penthouse"), day(time.May, 4), 1, 500, model.InvoiceStatusPaid)

	rep := a.AggregateMonth([]model.Invoice{good, backwards, noCheckIn, negative, unknown}, 2024, time.May)

	assert.Equal(t, "661", rep.TotalSales.String())
	assert.Equal(t, 1, rep.TotalBookings)
	assert.Equal(t, 4, rep.Skipped)
	assert.Equal(t, 4, logs.FilterMessage("skip malformed invoice").Len())
}

func TestAggregateMonth_GrowthIgnoresCancelledPreviousMonth(t *testing.T) {
	a := newTestAggregator()

	invoices := []model.Invoice{
		newInvoice("a", model.RoomTypeStandard, day(time.April, 3), 1, 661, model.InvoiceStatusPaid),
		newInvoice("b", model.RoomTypeStandard, day(time.April, 4), 1, 661, model.InvoiceStatusCancelled),
		newInvoice("c", model.RoomTypeStandard, day(time.May, 3), 1, 1322, model.InvoiceStatusPaid),
	}

	rep := a.AggregateMonth(invoices, 2024, time.May)
	assert.Equal(t, 100.0, rep.MonthlyGrowthPercent)
}

func TestEstimate(t *testing.T) {
	a := newTestAggregator()

	rep := a.Estimate(2024, time.May)

	assert.True(t, rep.IsEstimated)
	assert.Equal(t, 196, rep.TotalBookings)
	assert.Equal(t, "857740", rep.TotalSales.String())

	standard := rep.PerRoomType[model.RoomTypeStandard]
	assert.Equal(t, 101, standard.Bookings)
	assert.Equal(t, "262600", standard.Revenue.String())

	suite := rep.PerRoomType[model.RoomTypeSuite]
	assert.Equal(t, 20, suite.Bookings)
	assert.Equal(t, "171600", suite.Revenue.String())
}

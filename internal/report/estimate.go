package report

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/model"
	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/window"
)

// RoomAssumption содержит допущения оценки для категории номеров.
type RoomAssumption struct {
	RoomCount       int
	AvgStayLength   float64
	PriceMultiplier float64
}

// Assumptions содержит фиксированные допущения резервной оценки выручки.
type Assumptions struct {
	OccupancyRate float64
	Rooms         map[model.RoomType]RoomAssumption
}

// DefaultAssumptions возвращает допущения для номерного фонда гостиницы.
func DefaultAssumptions() Assumptions {
	return Assumptions{
		OccupancyRate: 0.65,
		Rooms: map[model.RoomType]RoomAssumption{
			model.RoomTypeStandard: {RoomCount: 10, AvgStayLength: 2, PriceMultiplier: 1.0},
			model.RoomTypeDeluxe:   {RoomCount: 6, AvgStayLength: 2.5, PriceMultiplier: 1.5},
			model.RoomTypeFamily:   {RoomCount: 4, AvgStayLength: 3, PriceMultiplier: 1.8},
			model.RoomTypeSuite:    {RoomCount: 3, AvgStayLength: 3, PriceMultiplier: 2.2},
		},
	}
}

// Estimate строит оценочный отчёт за месяц по фиксированным допущениям.
// Используется только по явному запросу, когда реальных счетов за период нет.
func (a *Aggregator) Estimate(year int, month time.Month) model.MonthlyReport {
	days := float64(window.DaysIn(year, month))
	standard := decimal.NewFromInt(a.policy.StandardNightlyRate)

	rep := model.MonthlyReport{
		Year:                year,
		Month:               month,
		TotalSales:          decimal.Zero,
		AverageBookingValue: decimal.Zero,
		PerRoomType:         make(map[model.RoomType]model.RoomTypeStats),
		IsEstimated:         true,
	}

	for _, rt := range model.RoomTypes() {
		as, ok := a.assumptions.Rooms[rt]
		if !ok || as.AvgStayLength <= 0 {
			continue
		}

		bookings := int(math.Round(float64(as.RoomCount) * days * a.assumptions.OccupancyRate / as.AvgStayLength))
		basePrice := standard.Mul(decimal.NewFromFloat(as.PriceMultiplier))
		revenue := basePrice.
			Mul(decimal.NewFromInt(int64(bookings))).
			Mul(decimal.NewFromFloat(as.AvgStayLength)).
			Round(0)

		rep.PerRoomType[rt] = model.RoomTypeStats{
			Revenue:       revenue,
			Bookings:      bookings,
			AvgStayLength: as.AvgStayLength,
		}
		rep.TotalSales = rep.TotalSales.Add(revenue)
		rep.TotalBookings += bookings
	}

	if rep.TotalBookings > 0 {
		rep.AverageBookingValue = rep.TotalSales.Div(decimal.NewFromInt(int64(rep.TotalBookings))).Round(2)
	}

	return rep
}

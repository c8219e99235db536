// Package pricing рассчитывает стоимость проживания по тарифной политике.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/model"
	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/rate"
)

// Input описывает параметры расчёта стоимости.
type Input struct {
	Nights      int
	BookingType model.BookingType
	HasCheckOut bool
	HasTVRemote bool
	// Hours сохраняется только для отображения и на цену не влияет.
	Hours *int
}

// Calculator рассчитывает детализацию стоимости. Нулевое значение не используется,
// создавайте через NewCalculator.
type Calculator struct {
	policy rate.Policy
}

// NewCalculator создаёт калькулятор для указанной тарифной политики.
func NewCalculator(policy rate.Policy) *Calculator {
	return &Calculator{policy: policy}
}

// Compute рассчитывает детализацию стоимости. Округление выполняется один раз,
// при расчёте сервисного сбора, поэтому повторный вызов даёт идентичный результат.
func (c *Calculator) Compute(in Input) model.CostBreakdown {
	nights := in.Nights
	if nights < 0 {
		nights = 0
	}

	b := model.CostBreakdown{
		Nights:         nights,
		DiscountAmount: decimal.Zero,
		TVRemoteFee:    decimal.Zero,
	}

	var subtotal decimal.Decimal
	if !in.HasCheckOut {
		b.NightlyRate = c.policy.ShortStayRate()
		b.IsShortStay = true
		subtotal = b.NightlyRate
	} else {
		b.NightlyRate = c.policy.NightlyRate(nights)
		subtotal = b.NightlyRate.Mul(decimal.NewFromInt(int64(nights)))
		if c.policy.WeeklyDiscountApplies(nights) {
			b.DiscountAmount = c.policy.WeeklyDiscount(subtotal)
			subtotal = subtotal.Sub(b.DiscountAmount)
		}
	}

	if in.HasTVRemote {
		b.TVRemoteFee = c.policy.TVRemote()
		subtotal = subtotal.Add(b.TVRemoteFee)
	}

	b.Subtotal = subtotal
	b.ServiceFeeAmount = c.policy.ServiceFee(subtotal)
	b.TotalAmount = subtotal.Add(b.ServiceFeeAmount)

	return b
}

// RateOverridden сообщает, что переданный тип бронирования противоречит тарифу,
// выбранному по количеству ночей. Тариф всё равно определяется только количеством ночей.
func (c *Calculator) RateOverridden(in Input) bool {
	if !in.HasCheckOut {
		return false
	}
	switch in.BookingType {
	case model.BookingTypeNightPromo:
		return !c.policy.IsPromo(in.Nights)
	case model.BookingTypeStandard:
		return c.policy.IsPromo(in.Nights)
	}
	return false
}

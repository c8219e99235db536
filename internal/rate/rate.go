// Package rate содержит фиксированную тарифную политику гостиницы.
package rate

import "github.com/shopspring/decimal"

// Policy хранит все тарифы и сборы в одном месте. Суммы указаны в целых песо,
// проценты задаются в целых процентах.
type Policy struct {
	PromoNightlyRate      int64
	StandardNightlyRate   int64
	ShortStayFlatRate     int64
	TVRemoteFee           int64
	ServiceFeePercent     int64
	WeeklyDiscountPercent int64
	WeeklyDiscountNights  int
}

// Default возвращает действующую тарифную политику.
func Default() Policy {
	return Policy{
		PromoNightlyRate:      580,
		StandardNightlyRate:   1300,
		ShortStayFlatRate:     650,
		TVRemoteFee:           100,
		ServiceFeePercent:     14,
		WeeklyDiscountPercent: 10,
		WeeklyDiscountNights:  7,
	}
}

// NightlyRate возвращает ночной тариф. Акционный тариф применяется только к проживанию ровно в одну ночь.
func (p Policy) NightlyRate(nights int) decimal.Decimal {
	if nights == 1 {
		return decimal.NewFromInt(p.PromoNightlyRate)
	}
	return decimal.NewFromInt(p.StandardNightlyRate)
}

// IsPromo сообщает, применяется ли акционный тариф.
func (p Policy) IsPromo(nights int) bool {
	return nights == 1
}

// ShortStayRate возвращает фиксированный тариф короткого проживания без даты выезда.
func (p Policy) ShortStayRate() decimal.Decimal {
	return decimal.NewFromInt(p.ShortStayFlatRate)
}

// TVRemote возвращает стоимость аренды пульта от телевизора.
func (p Policy) TVRemote() decimal.Decimal {
	return decimal.NewFromInt(p.TVRemoteFee)
}

// WeeklyDiscountApplies сообщает, положена ли недельная скидка.
func (p Policy) WeeklyDiscountApplies(nights int) bool {
	return nights >= p.WeeklyDiscountNights
}

// ServiceFee возвращает сервисный сбор с суммы, округлённый до целого песо.
func (p Policy) ServiceFee(amount decimal.Decimal) decimal.Decimal {
	return percentOf(amount, p.ServiceFeePercent).Round(0)
}

// WeeklyDiscount возвращает недельную скидку с суммы без округления.
func (p Policy) WeeklyDiscount(amount decimal.Decimal) decimal.Decimal {
	return percentOf(amount, p.WeeklyDiscountPercent)
}

func percentOf(amount decimal.Decimal, percent int64) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(percent)).Shift(-2)
}

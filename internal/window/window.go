// Package window определяет принадлежность проживаний временным окнам:
// счета на сегодня, бронирования за месяц.
package window

import "time"

// Window описывает замкнутый интервал времени [Start, End].
type Window struct {
	Start time.Time
	End   time.Time
}

// Span описывает интервал проживания. End отсутствует у коротких проживаний без даты выезда.
type Span struct {
	Start time.Time
	End   *time.Time
}

// Contains сообщает, попадает ли момент t в окно, включая границы.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Precision задаёт точность границ окон. Моменты проживания приводятся к ней перед сравнением,
// иначе заезд в последнюю миллисекунду месяца с микросекундами (PostgreSQL хранит их)
// не попал бы ни в одно месячное окно.
const Precision = time.Millisecond

// Overlaps сообщает, пересекается ли проживание с окном. Это единственное место,
// где определяется отнесение проживания к периоду.
func Overlaps(s Span, w Window) bool {
	start := s.Start.Truncate(Precision)
	if w.Contains(start) {
		return true
	}
	if s.End == nil {
		return false
	}
	end := s.End.Truncate(Precision)
	if w.Contains(end) {
		return true
	}
	return start.Before(w.Start) && end.After(w.End)
}

// Month возвращает окно календарного месяца: от первого мгновения месяца до 23:59:59.999 последнего дня.
func Month(year int, month time.Month, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return Window{
		Start: start,
		End:   start.AddDate(0, 1, 0).Add(-Precision),
	}
}

// Day возвращает окно календарного дня, содержащего t, в часовом поясе t.
func Day(t time.Time) Window {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return Window{
		Start: start,
		End:   start.AddDate(0, 0, 1).Add(-Precision),
	}
}

// PreviousMonth возвращает год и номер предыдущего месяца.
func PreviousMonth(year int, month time.Month) (int, time.Month) {
	if month == time.January {
		return year - 1, time.December
	}
	return year, month - 1
}

// DaysIn возвращает количество дней в месяце.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Filter оставляет элементы, проживание которых пересекается с окном.
func Filter[T any](items []T, span func(T) Span, w Window) []T {
	res := make([]T, 0, len(items))
	for _, it := range items {
		if Overlaps(span(it), w) {
			res = append(res, it)
		}
	}
	return res
}

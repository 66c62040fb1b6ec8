package calls

import (
	"fmt"
	"time"
)

// DateRange selects the period of the list request.
type DateRange int

const (
	RangeCustom    DateRange = -1
	RangeThreeDays DateRange = 0
	RangeWeek      DateRange = 1
	RangeMonth     DateRange = 2
	RangeYear      DateRange = 3
)

func (r DateRange) Valid() bool {
	return r >= RangeCustom && r <= RangeYear
}

const datePlaceholder = "__.__.__"

var monthsGenitive = [...]string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

func DateRangeTitle(r DateRange, start, end *time.Time) string {
	switch r {
	case RangeThreeDays:
		return "3 дня"
	case RangeWeek:
		return "Неделя"
	case RangeMonth:
		return "Месяц"
	case RangeYear:
		return "Год"
	case RangeCustom:
		return FormatDate(start) + "-" + FormatDate(end)
	}
	return "Неизвестно"
}

// DateRangeToDates resolves a selector into concrete bounds. Presets end at
// now; the custom selector passes start and end through untouched.
func DateRangeToDates(r DateRange, now time.Time, start, end *time.Time) (*time.Time, *time.Time) {
	var from time.Time
	switch r {
	case RangeThreeDays:
		from = now.AddDate(0, 0, -3)
	case RangeWeek:
		from = now.AddDate(0, 0, -7)
	case RangeMonth:
		from = subMonths(now, 1)
	case RangeYear:
		from = subMonths(now, 12)
	case RangeCustom:
		return start, end
	default:
		return nil, nil
	}
	to := now
	return &from, &to
}

// subMonths moves t back n months keeping the clock, clamping the day to the
// length of the target month (31 March - 1 month = 29 February in a leap year).
func subMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	target := time.Date(y, m-time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	if last := daysIn(target.Year(), target.Month()); d > last {
		d = last
	}
	return time.Date(target.Year(), target.Month(), d,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// FormatDate renders dd.mm.yy, or the placeholder for a missing date.
func FormatDate(t *time.Time) string {
	if t == nil {
		return datePlaceholder
	}
	return t.Format("02.01.06")
}

// LongDate renders "15 июня 2024 г.".
func LongDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d г.", t.Day(), monthsGenitive[t.Month()-1], t.Year())
}

// DayDiff is the difference a-b in calendar days, each taken in its own
// location.
func DayDiff(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(da.Sub(db).Hours() / 24)
}

func SameDay(a, b time.Time) bool {
	return DayDiff(a, b) == 0
}

func RelativeDayLabel(day, today time.Time) string {
	switch DayDiff(day, today) {
	case 0:
		return "Сегодня"
	case -1:
		return "Вчера"
	case -2:
		return "Позавчера"
	}
	return LongDate(day)
}

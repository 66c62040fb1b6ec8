package calls

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"calllog_viewer/internal/mango"
)

func TestFormatDuration(t *testing.T) {
	cases := map[int]string{
		0:    "00:00",
		9:    "00:09",
		65:   "01:05",
		600:  "10:00",
		3599: "59:59",
		6000: "100:00",
		-3:   "00:00",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatDuration(in), "seconds=%d", in)
	}
}

func TestCallIconAndTitle(t *testing.T) {
	tests := []struct {
		dir    mango.Direction
		status string
		icon   string
		title  string
	}{
		{mango.Outbound, mango.StatusConnected, IconOutgoing, "Исходящий"},
		{mango.Outbound, "Не дозвонился", IconNoAnswer, "Недозвон"},
		{mango.Inbound, mango.StatusConnected, IconIncoming, "Входящий"},
		{mango.Inbound, "", IconMissing, "Пропущенный"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.icon, CallIcon(tt.dir, tt.status))
		assert.Equal(t, tt.title, CallTitle(tt.dir, tt.status))
	}

	// Only the exact sentinel counts as connected.
	assert.Equal(t, IconMissing, CallIcon(mango.Inbound, "дозвонился"))
}

func TestCallTypeTitle(t *testing.T) {
	assert.Equal(t, "Все типы", CallTypeTitle(mango.CallTypeAll))
	assert.Equal(t, "Входящие", CallTypeTitle(mango.CallTypeInbound))
	assert.Equal(t, "Исходящие", CallTypeTitle(mango.CallTypeOutbound))
}

func TestDateRangeTitle(t *testing.T) {
	start := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "3 дня", DateRangeTitle(RangeThreeDays, nil, nil))
	assert.Equal(t, "Неделя", DateRangeTitle(RangeWeek, nil, nil))
	assert.Equal(t, "Месяц", DateRangeTitle(RangeMonth, nil, nil))
	assert.Equal(t, "Год", DateRangeTitle(RangeYear, nil, nil))
	assert.Equal(t, "01.06.24-15.06.24", DateRangeTitle(RangeCustom, &start, &end))
	assert.Equal(t, "01.06.24-__.__.__", DateRangeTitle(RangeCustom, &start, nil))
	assert.Equal(t, "Неизвестно", DateRangeTitle(DateRange(7), nil, nil))
}

func TestDateRangeToDates(t *testing.T) {
	now := time.Date(2024, time.June, 15, 14, 30, 0, 0, time.UTC)

	t.Run("presets", func(t *testing.T) {
		want := map[DateRange]time.Time{
			RangeThreeDays: time.Date(2024, time.June, 12, 14, 30, 0, 0, time.UTC),
			RangeWeek:      time.Date(2024, time.June, 8, 14, 30, 0, 0, time.UTC),
			RangeMonth:     time.Date(2024, time.May, 15, 14, 30, 0, 0, time.UTC),
			RangeYear:      time.Date(2023, time.June, 15, 14, 30, 0, 0, time.UTC),
		}
		for r, from := range want {
			gotFrom, gotTo := DateRangeToDates(r, now, nil, nil)
			if assert.NotNil(t, gotFrom) && assert.NotNil(t, gotTo) {
				assert.True(t, from.Equal(*gotFrom), "range %d: %v", r, *gotFrom)
				assert.True(t, now.Equal(*gotTo))
			}
		}
	})

	t.Run("month clamps", func(t *testing.T) {
		from, _ := DateRangeToDates(RangeMonth, time.Date(2024, time.March, 31, 9, 0, 0, 0, time.UTC), nil, nil)
		assert.Equal(t, time.Date(2024, time.February, 29, 9, 0, 0, 0, time.UTC), *from)

		from, _ = DateRangeToDates(RangeYear, time.Date(2024, time.February, 29, 9, 0, 0, 0, time.UTC), nil, nil)
		assert.Equal(t, time.Date(2023, time.February, 28, 9, 0, 0, 0, time.UTC), *from)
	})

	t.Run("custom passes through", func(t *testing.T) {
		start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
		from, to := DateRangeToDates(RangeCustom, now, &start, nil)
		assert.Same(t, &start, from)
		assert.Nil(t, to)
	})

	t.Run("unknown", func(t *testing.T) {
		from, to := DateRangeToDates(DateRange(9), now, nil, nil)
		assert.Nil(t, from)
		assert.Nil(t, to)
	})
}

func TestFormatDate(t *testing.T) {
	d := time.Date(2024, time.June, 5, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "05.06.24", FormatDate(&d))
	assert.Equal(t, "__.__.__", FormatDate(nil))
}

func TestRelativeDayLabel(t *testing.T) {
	today := time.Date(2024, time.June, 15, 0, 5, 0, 0, time.UTC)

	assert.Equal(t, "Сегодня", RelativeDayLabel(time.Date(2024, time.June, 15, 23, 59, 0, 0, time.UTC), today))
	assert.Equal(t, "Вчера", RelativeDayLabel(time.Date(2024, time.June, 14, 23, 59, 0, 0, time.UTC), today))
	assert.Equal(t, "Позавчера", RelativeDayLabel(time.Date(2024, time.June, 13, 0, 0, 0, 0, time.UTC), today))
	assert.Equal(t, "12 июня 2024 г.", RelativeDayLabel(time.Date(2024, time.June, 12, 10, 0, 0, 0, time.UTC), today))
	assert.Equal(t, "16 июня 2024 г.", RelativeDayLabel(time.Date(2024, time.June, 16, 10, 0, 0, 0, time.UTC), today))
	assert.Equal(t, "1 января 2024 г.", RelativeDayLabel(time.Date(2024, time.January, 1, 10, 0, 0, 0, time.UTC), today))
}

func TestDayDiffAcrossMonths(t *testing.T) {
	a := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	b := time.Date(2024, time.February, 28, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, 2, DayDiff(a, b))
	assert.Equal(t, -2, DayDiff(b, a))
}

func TestGradeLabels(t *testing.T) {
	assert.Equal(t, "Отлично", GradeGood.Label())
	assert.Equal(t, "Хорошо", GradeNormal.Label())
	assert.Equal(t, "Плохо", GradeBad.Label())
	assert.Equal(t, "", GradeNone.Label())

	g, ok := ParseGrade(" Bad ")
	assert.True(t, ok)
	assert.Equal(t, GradeBad, g)

	g, ok = ParseGrade("excellent")
	assert.False(t, ok)
	assert.Equal(t, GradeNone, g)
}

func TestNewPerson(t *testing.T) {
	p := NewPerson("", "Иван", "Петров")
	assert.Equal(t, "ИП", p.Initials)
	assert.Equal(t, "Иван Петров", p.FullName)
	assert.Empty(t, p.AvatarURL)

	p = NewPerson(NoAvatarURL, "Иван", "Петров")
	assert.Equal(t, DefaultAvatar, p.AvatarURL)
	assert.Empty(t, p.Initials)

	p = NewPerson("https://cdn/a.jpg", "Иван", "")
	assert.Equal(t, "https://cdn/a.jpg", p.AvatarURL)
	assert.Equal(t, "Иван", p.FullName)

	assert.Equal(t, "И", NewPerson("", "Иван", "").Initials)
}

func TestTotalTitle(t *testing.T) {
	assert.Equal(t, "42", TotalTitle(42))
	assert.NotEqual(t, "12345", TotalTitle(12345))
	assert.Contains(t, TotalTitle(12345), "345")
}

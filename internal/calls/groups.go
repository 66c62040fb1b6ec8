package calls

import (
	"time"

	"calllog_viewer/internal/mango"
)

// UnknownDayTitle heads a group whose timestamp could not be parsed.
const UnknownDayTitle = "Дата неизвестна"

// BuildGroups splits the page into runs of rows sharing a calendar day in
// today's location. Row order is kept as received. The first group has no
// title when it is today; every later group has one.
func BuildGroups(resp *mango.ListResponse, today time.Time, grades GradeLookup) []Group {
	result := make([]Group, 0)
	if resp == nil {
		return result
	}

	loc := today.Location()
	var (
		cur      *Group
		curDay   time.Time
		curValid bool
		nextID   int
	)

	for _, raw := range resp.Results {
		day, ok := mango.ParseDate(raw.Date, loc)

		// Unparseable dates never share a day with anything.
		if cur == nil || !ok || !curValid || !SameDay(day, curDay) {
			if cur != nil {
				result = append(result, *cur)
			}
			cur = &Group{
				ID:    nextID,
				Title: groupTitle(day, ok, today, len(result) == 0),
				Rows:  make([]Row, 0),
			}
			curDay, curValid = day, ok
			nextID++
		}

		cur.Rows = append(cur.Rows, buildRow(raw, day, ok, grades))
	}

	if cur != nil {
		result = append(result, *cur)
	}
	return result
}

func groupTitle(day time.Time, ok bool, today time.Time, first bool) string {
	if !ok {
		return UnknownDayTitle
	}
	if first && SameDay(day, today) {
		return ""
	}
	return RelativeDayLabel(day, today)
}

func buildRow(raw mango.Call, at time.Time, ok bool, grades GradeLookup) Row {
	timeOfDay := "--:--"
	if ok {
		timeOfDay = at.Format("15:04")
	}
	grade := grades.For(raw.ID)

	row := Row{
		ID:                    raw.ID,
		CallIcon:              CallIcon(raw.InOut, raw.Status),
		CallTitle:             CallTitle(raw.InOut, raw.Status),
		TimeOfDay:             timeOfDay,
		Person:                NewPerson(raw.PersonAvatar, raw.PersonName, raw.PersonSurname),
		CallDetails:           raw.PartnerData.Name,
		CallDetailsAdditional: raw.PartnerData.Phone,
		Source:                raw.Source,
		Grade:                 grade,
		GradeLabel:            grade.Label(),
		CallDuration:          raw.Time,
		Record:                raw.Record,
		PartnershipID:         raw.PartnershipID,
	}
	if raw.Time > 0 {
		row.Duration = FormatDuration(raw.Time)
	}
	return row
}

package mango

import (
	"strings"
	"time"

	"github.com/spf13/cast"
)

// StatusConnected is the status label the API uses for answered calls.
const StatusConnected = "Дозвонился"

type Direction int

const (
	Outbound Direction = 0
	Inbound  Direction = 1
)

// CallType is the direction filter of the list request. CallTypeAll omits
// in_out from the query.
type CallType int

const (
	CallTypeAll      CallType = -1
	CallTypeOutbound CallType = 0
	CallTypeInbound  CallType = 1
)

func (t CallType) Valid() bool {
	return t == CallTypeAll || t == CallTypeOutbound || t == CallTypeInbound
}

type SortBy string

const (
	SortByDate     SortBy = "date"
	SortByDuration SortBy = "duration"
)

func (s SortBy) Valid() bool {
	return s == SortByDate || s == SortByDuration
}

type PartnerData struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type Call struct {
	ID            int64       `json:"id"`
	InOut         Direction   `json:"in_out"`
	Date          string      `json:"date"`
	Status        string      `json:"status"`
	PersonAvatar  string      `json:"person_avatar"`
	PersonName    string      `json:"person_name"`
	PersonSurname string      `json:"person_surname"`
	PartnerData   PartnerData `json:"partner_data"`
	Source        string      `json:"source"`
	Time          int         `json:"time"`
	Record        string      `json:"record"`
	PartnershipID string      `json:"partnership_id"`
}

type ListResponse struct {
	TotalRows string `json:"total_rows"`
	Results   []Call `json:"results"`
}

// Total parses total_rows. Unparseable values count as zero.
func (r *ListResponse) Total() int {
	if r == nil {
		return 0
	}
	n, err := cast.ToIntE(strings.TrimSpace(r.TotalRows))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ListParams describes one page request. Nil bounds are rejected with
// ErrInvalidRange before any request is made.
type ListParams struct {
	DateFrom *time.Time
	DateTo   *time.Time
	CallType CallType
	SortBy   SortBy
	Desc     bool
	Page     int
	Limit    int
}

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseDate reads a call timestamp as local time in loc. Offsets carried by
// RFC 3339 values are converted into loc.
func ParseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}

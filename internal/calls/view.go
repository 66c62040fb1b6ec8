package calls

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Grade is the quality assessment shown next to a call. The list endpoint
// carries no grade; it comes from a GradeLookup when one is configured.
type Grade string

const (
	GradeGood   Grade = "good"
	GradeNormal Grade = "normal"
	GradeBad    Grade = "bad"
	GradeNone   Grade = "none"
)

func ParseGrade(s string) (Grade, bool) {
	switch g := Grade(strings.ToLower(strings.TrimSpace(s))); g {
	case GradeGood, GradeNormal, GradeBad, GradeNone:
		return g, true
	}
	return GradeNone, false
}

// Label is the badge text; GradeNone has no badge.
func (g Grade) Label() string {
	switch g {
	case GradeGood:
		return "Отлично"
	case GradeNormal:
		return "Хорошо"
	case GradeBad:
		return "Плохо"
	}
	return ""
}

// GradeLookup maps call ids to grades. A nil lookup grades nothing.
type GradeLookup map[int64]Grade

func (l GradeLookup) For(id int64) Grade {
	if g, ok := l[id]; ok {
		return g
	}
	return GradeNone
}

const (
	// NoAvatarURL is what the API sends for agents without a photo.
	NoAvatarURL   = "https://lk.skilla.ru/img/noavatar.jpg"
	DefaultAvatar = "person.svg"
)

type Person struct {
	AvatarURL string `json:"avatar_url"`
	Name      string `json:"name"`
	Surname   string `json:"surname"`
	FullName  string `json:"full_name"`
	Initials  string `json:"initials,omitempty"`
}

// NewPerson builds the agent cell. Without an avatar the cell shows initials.
func NewPerson(avatar, name, surname string) Person {
	p := Person{
		Name:     name,
		Surname:  surname,
		FullName: strings.TrimSpace(name + " " + surname),
	}
	switch avatar {
	case "":
		p.Initials = firstRune(name) + firstRune(surname)
	case NoAvatarURL:
		p.AvatarURL = DefaultAvatar
	default:
		p.AvatarURL = avatar
	}
	return p
}

func firstRune(s string) string {
	r, size := utf8.DecodeRuneInString(strings.TrimSpace(s))
	if size == 0 || r == utf8.RuneError {
		return ""
	}
	return string(r)
}

type Row struct {
	ID                    int64  `json:"id"`
	CallIcon              string `json:"call_icon"`
	CallTitle             string `json:"call_title"`
	TimeOfDay             string `json:"time_of_day"`
	Person                Person `json:"person"`
	CallDetails           string `json:"call_details"`
	CallDetailsAdditional string `json:"call_details_additional"`
	Source                string `json:"source"`
	Grade                 Grade  `json:"grade"`
	GradeLabel            string `json:"grade_label,omitempty"`
	CallDuration          int    `json:"call_duration"`
	Duration              string `json:"duration,omitempty"`
	Record                string `json:"record"`
	PartnershipID         string `json:"partnership_id"`
}

// HasRecording reports whether the row can open a player.
func (r Row) HasRecording() bool {
	return r.CallDuration > 0
}

// Group ids are assigned per build and are not stable across fetches.
type Group struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Rows  []Row  `json:"rows"`
}

var ruPrinter = message.NewPrinter(language.Russian)

// TotalTitle formats a row counter with Russian digit grouping.
func TotalTitle(n int) string {
	return ruPrinter.Sprintf("%d", n)
}

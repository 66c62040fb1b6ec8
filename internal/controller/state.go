package controller

import (
	"errors"
	"time"

	"calllog_viewer/internal/calls"
	"calllog_viewer/internal/mango"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnknownRow      = errors.New("row is not on the current page")
	ErrNoRecording     = errors.New("call has no recording")
	ErrPlayerClosed    = errors.New("player is not open")
	ErrClosed          = errors.New("controller is closed")
)

type ModeKind string

const (
	ModeNone          ModeKind = "none"
	ModeCallTypePopup ModeKind = "call_type_popup"
	ModeDatePopup     ModeKind = "date_popup"
	ModeCalendar      ModeKind = "calendar"
	ModePlayer        ModeKind = "player"
)

// Mode is the single overlay state of the page. RowID is set only for
// ModePlayer.
type Mode struct {
	Kind  ModeKind `json:"kind"`
	RowID int64    `json:"row_id,omitempty"`
}

// Query is everything the list request depends on.
type Query struct {
	CallType mango.CallType
	Range    calls.DateRange
	Start    *time.Time
	End      *time.Time
	SortBy   mango.SortBy
	Desc     bool
	Page     int
}

func defaultQuery() Query {
	return Query{
		CallType: mango.CallTypeAll,
		Range:    calls.RangeThreeDays,
		SortBy:   mango.SortByDate,
		Desc:     true,
	}
}

func (q Query) equal(o Query) bool {
	return q.CallType == o.CallType &&
		q.Range == o.Range &&
		sameTime(q.Start, o.Start) &&
		sameTime(q.End, o.End) &&
		q.SortBy == o.SortBy &&
		q.Desc == o.Desc &&
		q.Page == o.Page
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

type PlayerView struct {
	RowID int64  `json:"row_id"`
	Ready bool   `json:"ready"`
	Size  int    `json:"size,omitempty"`
	Error string `json:"error,omitempty"`
}

// View is a consistent copy of the page state plus the strings derived from
// it.
type View struct {
	Groups     []calls.Group `json:"groups"`
	Total      int           `json:"total"`
	TotalTitle string        `json:"total_title"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	HasPrev    bool          `json:"has_prev"`
	HasNext    bool          `json:"has_next"`
	Loading    bool          `json:"loading"`

	CallType      mango.CallType `json:"call_type"`
	CallTypeTitle string         `json:"call_type_title"`
	FiltersActive bool           `json:"filters_active"`

	DateRange        calls.DateRange `json:"date_range"`
	DateRangeTitle   string          `json:"date_range_title"`
	CustomRangeTitle string          `json:"custom_range_title"`
	CalendarStart    *time.Time      `json:"calendar_start,omitempty"`
	CalendarEnd      *time.Time      `json:"calendar_end,omitempty"`

	SortBy mango.SortBy `json:"sort_by"`
	Desc   bool         `json:"desc"`

	Mode   Mode        `json:"mode"`
	Player *PlayerView `json:"player,omitempty"`
}

package controller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calllog_viewer/internal/calls"
	"calllog_viewer/internal/mango"
)

var fixedNow = time.Date(2024, time.June, 15, 18, 0, 0, 0, time.UTC)

func testOptions() Options {
	return Options{
		Location: time.UTC,
		Now:      func() time.Time { return fixedNow },
	}
}

func rawCall(id int64, date string, duration int) mango.Call {
	return mango.Call{
		ID:            id,
		InOut:         mango.Inbound,
		Date:          date,
		Status:        mango.StatusConnected,
		PersonName:    "Анна",
		PersonSurname: "Смирнова",
		Time:          duration,
		Record:        "rec-" + date,
		PartnershipID: "578",
	}
}

func listOf(total string, rows ...mango.Call) *mango.ListResponse {
	return &mango.ListResponse{TotalRows: total, Results: rows}
}

// stubFetcher answers immediately.
type stubFetcher struct {
	mu     sync.Mutex
	params []mango.ListParams
	list   func(p mango.ListParams) (*mango.ListResponse, error)
	record func(ctx context.Context, record string) ([]byte, error)
}

func (f *stubFetcher) FetchList(ctx context.Context, p mango.ListParams) (*mango.ListResponse, error) {
	f.mu.Lock()
	f.params = append(f.params, p)
	fn := f.list
	f.mu.Unlock()
	if fn == nil {
		return listOf("0"), nil
	}
	return fn(p)
}

func (f *stubFetcher) FetchRecording(ctx context.Context, record, partnershipID string) ([]byte, error) {
	if f.record == nil {
		return []byte(record), nil
	}
	return f.record(ctx, record)
}

func (f *stubFetcher) calls() []mango.ListParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mango.ListParams(nil), f.params...)
}

func (f *stubFetcher) last() mango.ListParams {
	all := f.calls()
	return all[len(all)-1]
}

type listReply struct {
	resp *mango.ListResponse
	err  error
}

type listCall struct {
	ctx    context.Context
	params mango.ListParams
	reply  chan listReply
}

// gatedFetcher hands every list request to the test and waits for an answer.
// Answers ignore cancellation on purpose.
type gatedFetcher struct {
	lists chan *listCall
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{lists: make(chan *listCall, 8)}
}

func (f *gatedFetcher) FetchList(ctx context.Context, p mango.ListParams) (*mango.ListResponse, error) {
	call := &listCall{ctx: ctx, params: p, reply: make(chan listReply, 1)}
	f.lists <- call
	r := <-call.reply
	return r.resp, r.err
}

func (f *gatedFetcher) FetchRecording(ctx context.Context, record, partnershipID string) ([]byte, error) {
	return nil, errors.New("not used")
}

func (f *gatedFetcher) next(t *testing.T) *listCall {
	t.Helper()
	select {
	case c := <-f.lists:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no list request issued")
		return nil
	}
}

func settle(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
}

func currentDone(c *Controller) chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

func waitClosed(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

func TestInitialFetchUsesDefaults(t *testing.T) {
	f := &stubFetcher{list: func(p mango.ListParams) (*mango.ListResponse, error) {
		return listOf("2",
			rawCall(1, "2024-06-15 10:00:00", 30),
			rawCall(2, "2024-06-14 09:00:00", 0),
		), nil
	}}
	c := New(f, testOptions())
	defer c.Close()
	settle(t, c)

	p := f.last()
	require.NotNil(t, p.DateFrom)
	require.NotNil(t, p.DateTo)
	assert.Equal(t, fixedNow.AddDate(0, 0, -3), *p.DateFrom)
	assert.Equal(t, fixedNow, *p.DateTo)
	assert.Equal(t, mango.CallTypeAll, p.CallType)
	assert.Equal(t, mango.SortByDate, p.SortBy)
	assert.True(t, p.Desc)
	assert.Equal(t, 0, p.Page)
	assert.Equal(t, DefaultPageSize, p.Limit)

	v := c.Snapshot()
	assert.False(t, v.Loading)
	assert.Equal(t, 2, v.Total)
	require.Len(t, v.Groups, 2)
	assert.Equal(t, "", v.Groups[0].Title)
	assert.Equal(t, "Вчера", v.Groups[1].Title)
	assert.Equal(t, "Все типы", v.CallTypeTitle)
	assert.Equal(t, "3 дня", v.DateRangeTitle)
	assert.Equal(t, "__.__.__-__.__.__", v.CustomRangeTitle)
	assert.Equal(t, ModeNone, v.Mode.Kind)
	assert.False(t, v.HasPrev)
	assert.False(t, v.HasNext)
	assert.False(t, v.FiltersActive)
}

func TestLatestFetchWins(t *testing.T) {
	older := listOf("1", rawCall(1, "2024-06-15 10:00:00", 10))
	newer := listOf("1", rawCall(2, "2024-06-15 11:00:00", 10))

	for _, newerFirst := range []bool{true, false} {
		f := newGatedFetcher()
		c := New(f, testOptions())

		first := f.next(t)
		firstDone := currentDone(c)

		require.NoError(t, c.SetCallType(mango.CallTypeInbound))
		second := f.next(t)
		assert.Equal(t, mango.CallTypeInbound, second.params.CallType)
		assert.Error(t, first.ctx.Err(), "superseded request must be cancelled")
		assert.NoError(t, second.ctx.Err())

		if newerFirst {
			second.reply <- listReply{resp: newer}
			settle(t, c)
			first.reply <- listReply{resp: older}
			waitClosed(t, firstDone)
		} else {
			first.reply <- listReply{resp: older}
			waitClosed(t, firstDone)
			assert.Empty(t, c.Snapshot().Groups)
			second.reply <- listReply{resp: newer}
			settle(t, c)
		}

		v := c.Snapshot()
		require.Len(t, v.Groups, 1)
		require.Len(t, v.Groups[0].Rows, 1)
		assert.Equal(t, int64(2), v.Groups[0].Rows[0].ID)
		c.Close()
	}
}

func TestSupersededFailureIsIgnored(t *testing.T) {
	f := newGatedFetcher()
	c := New(f, testOptions())
	defer c.Close()

	first := f.next(t)
	firstDone := currentDone(c)
	require.NoError(t, c.SortBy(mango.SortByDuration))
	second := f.next(t)

	second.reply <- listReply{resp: listOf("1", rawCall(9, "2024-06-15 10:00:00", 5))}
	settle(t, c)
	first.reply <- listReply{err: &mango.TransportError{Op: "getList", StatusCode: 500}}
	waitClosed(t, firstDone)

	v := c.Snapshot()
	assert.Equal(t, 1, v.Total)
	assert.Len(t, v.Groups, 1)
}

func TestFetchErrorClearsState(t *testing.T) {
	fail := false
	var mu sync.Mutex
	f := &stubFetcher{list: func(p mango.ListParams) (*mango.ListResponse, error) {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return nil, &mango.TransportError{Op: "getList", Err: errors.New("connection refused")}
		}
		return listOf("75", rawCall(1, "2024-06-15 10:00:00", 5)), nil
	}}
	c := New(f, testOptions())
	defer c.Close()
	settle(t, c)
	require.Equal(t, 75, c.Snapshot().Total)

	mu.Lock()
	fail = true
	mu.Unlock()
	require.True(t, c.NextPage())
	settle(t, c)

	v := c.Snapshot()
	assert.Equal(t, 0, v.Total)
	assert.NotNil(t, v.Groups)
	assert.Empty(t, v.Groups)
	assert.False(t, v.HasNext)
}

func TestUnresolvedRangeClearsStateWithoutRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"total_rows":"1","results":[{"id":1,"in_out":1,"date":"2024-06-15 10:00:00","status":"Дозвонился","time":5}]}`))
	}))
	defer srv.Close()

	c := New(mango.NewClient(srv.URL, "t", time.Second), testOptions())
	defer c.Close()
	settle(t, c)
	require.Equal(t, 1, c.Snapshot().Total)
	require.Equal(t, int32(1), hits.Load())

	// A custom range without bounds cannot be reached through the public
	// operations; force it to check the failure path.
	c.mu.Lock()
	c.query.Range = calls.RangeCustom
	c.refreshLocked()
	c.mu.Unlock()
	settle(t, c)

	v := c.Snapshot()
	assert.Equal(t, 0, v.Total)
	assert.Empty(t, v.Groups)
	assert.Equal(t, int32(1), hits.Load())
}

func TestSortToggle(t *testing.T) {
	f := &stubFetcher{}
	c := New(f, testOptions())
	defer c.Close()
	settle(t, c)

	require.NoError(t, c.SortBy(mango.SortByDate))
	settle(t, c)
	assert.Equal(t, mango.SortByDate, f.last().SortBy)
	assert.False(t, f.last().Desc)

	require.NoError(t, c.SortBy(mango.SortByDuration))
	settle(t, c)
	assert.Equal(t, mango.SortByDuration, f.last().SortBy)
	assert.True(t, f.last().Desc)

	require.NoError(t, c.SortBy(mango.SortByDuration))
	settle(t, c)
	assert.False(t, f.last().Desc)

	assert.ErrorIs(t, c.SortBy("price"), ErrInvalidArgument)
}

func TestPaging(t *testing.T) {
	f := &stubFetcher{list: func(p mango.ListParams) (*mango.ListResponse, error) {
		return listOf("120", rawCall(int64(p.Page+1), "2024-06-15 10:00:00", 5)), nil
	}}
	c := New(f, testOptions())
	defer c.Close()
	settle(t, c)

	assert.False(t, c.PrevPage())
	assert.True(t, c.Snapshot().HasNext)

	require.True(t, c.NextPage())
	settle(t, c)
	assert.Equal(t, 1, f.last().Page)

	require.True(t, c.NextPage())
	settle(t, c)
	assert.Equal(t, 2, f.last().Page)
	assert.False(t, c.Snapshot().HasNext)
	assert.False(t, c.NextPage())

	require.True(t, c.PrevPage())
	settle(t, c)
	assert.Equal(t, 1, f.last().Page)

	// A filter change starts over from the first page.
	require.NoError(t, c.SetCallType(mango.CallTypeOutbound))
	settle(t, c)
	assert.Equal(t, 0, f.last().Page)
	assert.Equal(t, mango.CallTypeOutbound, f.last().CallType)
	v := c.Snapshot()
	assert.True(t, v.FiltersActive)
	assert.Equal(t, "Исходящие", v.CallTypeTitle)
}

func TestResetFiltersKeepsPage(t *testing.T) {
	f := &stubFetcher{list: func(p mango.ListParams) (*mango.ListResponse, error) {
		return listOf("500"), nil
	}}
	c := New(f, testOptions())
	defer c.Close()
	settle(t, c)

	require.NoError(t, c.SetCallType(mango.CallTypeInbound))
	settle(t, c)
	require.True(t, c.NextPage())
	settle(t, c)

	c.ResetFilters()
	settle(t, c)
	assert.Equal(t, mango.CallTypeAll, f.last().CallType)
	assert.Equal(t, 1, f.last().Page)
}

func TestUnchangedQueryDoesNotRefetch(t *testing.T) {
	f := &stubFetcher{}
	c := New(f, testOptions())
	defer c.Close()
	settle(t, c)

	require.NoError(t, c.SetCallType(mango.CallTypeAll))
	require.NoError(t, c.SelectDateRange(calls.RangeThreeDays))
	settle(t, c)
	assert.Len(t, f.calls(), 1)

	c.Refresh()
	settle(t, c)
	assert.Len(t, f.calls(), 2)
}

func TestModesAreExclusive(t *testing.T) {
	f := &stubFetcher{}
	c := New(f, testOptions())
	defer c.Close()
	settle(t, c)

	c.ToggleCallTypePopup()
	assert.Equal(t, ModeCallTypePopup, c.Snapshot().Mode.Kind)
	c.OpenDatePopup()
	assert.Equal(t, ModeDatePopup, c.Snapshot().Mode.Kind)
	c.ToggleCallTypePopup()
	assert.Equal(t, ModeCallTypePopup, c.Snapshot().Mode.Kind)
	c.ToggleCallTypePopup()
	assert.Equal(t, ModeNone, c.Snapshot().Mode.Kind)

	c.OpenDatePopup()
	c.CloseOverlay()
	assert.Equal(t, ModeNone, c.Snapshot().Mode.Kind)
}

func TestCalendarRange(t *testing.T) {
	f := &stubFetcher{}
	c := New(f, testOptions())
	defer c.Close()
	settle(t, c)

	c.OpenDatePopup()
	require.NoError(t, c.SelectDateRange(calls.RangeCustom))
	assert.Equal(t, ModeCalendar, c.Snapshot().Mode.Kind)
	assert.Len(t, f.calls(), 1, "opening the calendar does not fetch")

	end := time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)
	start := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, c.PickCalendarRange(&end, nil))
	v := c.Snapshot()
	assert.Equal(t, ModeCalendar, v.Mode.Kind)
	assert.Equal(t, &end, v.CalendarStart)

	require.NoError(t, c.PickCalendarRange(&end, &start))
	settle(t, c)
	v = c.Snapshot()
	assert.Equal(t, ModeNone, v.Mode.Kind)
	assert.Equal(t, calls.RangeCustom, v.DateRange)
	assert.Equal(t, "01.06.24-10.06.24", v.DateRangeTitle)
	assert.Equal(t, start, *f.last().DateFrom)
	assert.Equal(t, end, *f.last().DateTo)

	future := fixedNow.AddDate(0, 0, 2)
	assert.ErrorIs(t, c.PickCalendarRange(&start, &future), ErrInvalidArgument)

	require.NoError(t, c.SelectDateRange(calls.RangeYear))
	settle(t, c)
	v = c.Snapshot()
	assert.Equal(t, "Год", v.DateRangeTitle)
	assert.Nil(t, v.CalendarStart)
	assert.Equal(t, time.Date(2023, time.June, 15, 18, 0, 0, 0, time.UTC), *f.last().DateFrom)

	assert.ErrorIs(t, c.SelectDateRange(calls.DateRange(5)), ErrInvalidArgument)
	assert.ErrorIs(t, c.SetCallType(mango.CallType(3)), ErrInvalidArgument)
}

type gradeStub struct {
	grades calls.GradeLookup
	err    error
}

func (g gradeStub) GradesByCallIDs(ctx context.Context, ids []int64) (calls.GradeLookup, error) {
	return g.grades, g.err
}

func TestGrades(t *testing.T) {
	f := &stubFetcher{list: func(p mango.ListParams) (*mango.ListResponse, error) {
		return listOf("2", rawCall(1, "2024-06-15 10:00:00", 5), rawCall(2, "2024-06-15 09:00:00", 5)), nil
	}}

	opts := testOptions()
	opts.Grades = gradeStub{grades: calls.GradeLookup{2: calls.GradeBad}}
	c := New(f, opts)
	settle(t, c)
	rows := c.Snapshot().Groups[0].Rows
	assert.Equal(t, calls.GradeNone, rows[0].Grade)
	assert.Equal(t, calls.GradeBad, rows[1].Grade)
	c.Close()

	opts.Grades = gradeStub{err: errors.New("db down")}
	c = New(f, opts)
	defer c.Close()
	settle(t, c)
	v := c.Snapshot()
	assert.Equal(t, 2, v.Total)
	assert.Equal(t, calls.GradeNone, v.Groups[0].Rows[1].Grade)
}

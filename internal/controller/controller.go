package controller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"calllog_viewer/internal/calls"
	"calllog_viewer/internal/logger"
	"calllog_viewer/internal/mango"
	"calllog_viewer/internal/metrics"
)

const DefaultPageSize = 50

// Fetcher is the remote side of the page. *mango.Client implements it.
type Fetcher interface {
	FetchList(ctx context.Context, p mango.ListParams) (*mango.ListResponse, error)
	FetchRecording(ctx context.Context, record, partnershipID string) ([]byte, error)
}

// GradeSource supplies call grades. Optional.
type GradeSource interface {
	GradesByCallIDs(ctx context.Context, ids []int64) (calls.GradeLookup, error)
}

type Options struct {
	PageSize int
	Location *time.Location
	Now      func() time.Time
	Grades   GradeSource
	Session  string
}

// Controller owns the state of one call-log page: query, overlay mode,
// current groups and the open player. Every query change starts a new list
// fetch and cancels the previous one; only the latest result is applied.
type Controller struct {
	fetcher  Fetcher
	grades   GradeSource
	now      func() time.Time
	pageSize int
	log      *zap.Logger

	base context.Context
	stop context.CancelFunc

	held atomic.Int64

	mu       sync.Mutex
	closed   bool
	query    Query
	calStart *time.Time
	calEnd   *time.Time
	mode     Mode
	groups   []calls.Group
	total    int

	gen         uint64
	cancelFetch context.CancelFunc
	done        chan struct{}

	player *player
}

// New creates the controller and starts loading the first page.
func New(fetcher Fetcher, opts Options) *Controller {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().In(loc) }
	}

	base, stop := context.WithCancel(context.Background())
	c := &Controller{
		fetcher:  fetcher,
		grades:   opts.Grades,
		now:      now,
		pageSize: opts.PageSize,
		log:      logger.Lg.With(zap.String("session", opts.Session)),
		base:     base,
		stop:     stop,
		query:    defaultQuery(),
		mode:     Mode{Kind: ModeNone},
		groups:   make([]calls.Group, 0),
	}

	c.mu.Lock()
	c.refreshLocked()
	c.mu.Unlock()
	return c
}

// refreshLocked supersedes any in-flight fetch with one for the current
// query.
func (c *Controller) refreshLocked() {
	if c.closed {
		return
	}
	if c.cancelFetch != nil {
		c.cancelFetch()
	}
	c.gen++
	ctx, cancel := context.WithCancel(c.base)
	done := make(chan struct{})
	c.cancelFetch = cancel
	c.done = done

	go c.load(ctx, c.gen, c.query, done)
}

func (c *Controller) load(ctx context.Context, gen uint64, q Query, done chan struct{}) {
	defer close(done)

	today := c.now()
	from, to := calls.DateRangeToDates(q.Range, today, q.Start, q.End)

	started := time.Now()
	resp, err := c.fetcher.FetchList(ctx, mango.ListParams{
		DateFrom: from,
		DateTo:   to,
		CallType: q.CallType,
		SortBy:   q.SortBy,
		Desc:     q.Desc,
		Page:     q.Page,
		Limit:    c.pageSize,
	})

	var (
		groups []calls.Group
		total  int
	)
	if err == nil {
		metrics.ListFetchDuration.Observe(time.Since(started).Seconds())
		groups = calls.BuildGroups(resp, today, c.lookupGrades(ctx, resp))
		total = resp.Total()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if mango.IsCancelled(err) {
		metrics.ListFetches.WithLabelValues(metrics.OutcomeCancelled).Inc()
		return
	}
	if gen != c.gen || c.closed {
		metrics.ListFetches.WithLabelValues(metrics.OutcomeStale).Inc()
		return
	}

	if err != nil {
		metrics.ListFetches.WithLabelValues(metrics.OutcomeError).Inc()
		c.log.Error("call list fetch failed",
			zap.Error(err),
			zap.Int("page", q.Page),
			zap.Int("range", int(q.Range)),
			zap.Int("call_type", int(q.CallType)))
		c.groups = make([]calls.Group, 0)
		c.total = 0
		return
	}

	metrics.ListFetches.WithLabelValues(metrics.OutcomeOK).Inc()
	c.groups = groups
	c.total = total
	c.log.Debug("call list loaded",
		zap.Int("page", q.Page),
		zap.Int("groups", len(groups)),
		zap.Int("total", total))
}

func (c *Controller) lookupGrades(ctx context.Context, resp *mango.ListResponse) calls.GradeLookup {
	if c.grades == nil || resp == nil || len(resp.Results) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(resp.Results))
	for _, r := range resp.Results {
		ids = append(ids, r.ID)
	}
	grades, err := c.grades.GradesByCallIDs(ctx, ids)
	if err != nil {
		if !mango.IsCancelled(err) {
			c.log.Warn("grade lookup failed", zap.Error(err))
		}
		return nil
	}
	return grades
}

// applyLocked switches to q and refetches if anything changed.
func (c *Controller) applyLocked(q Query) {
	if q.equal(c.query) {
		return
	}
	c.query = q
	c.refreshLocked()
}

// setModeLocked enters m; leaving the player releases its recording.
func (c *Controller) setModeLocked(m Mode) {
	if c.mode.Kind == ModePlayer && m != c.mode {
		c.closePlayerLocked()
	}
	c.mode = m
}

// Wait blocks until the latest list fetch has been applied or ctx ends.
func (c *Controller) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		done, gen := c.done, c.gen
		c.mu.Unlock()
		if done == nil {
			return nil
		}

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}

		c.mu.Lock()
		latest := gen == c.gen
		c.mu.Unlock()
		if latest {
			return nil
		}
	}
}

func (c *Controller) ToggleCallTypePopup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode.Kind == ModeCallTypePopup {
		c.setModeLocked(Mode{Kind: ModeNone})
		return
	}
	c.setModeLocked(Mode{Kind: ModeCallTypePopup})
}

func (c *Controller) OpenDatePopup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setModeLocked(Mode{Kind: ModeDatePopup})
}

// CloseOverlay dismisses a popup or the calendar. An open player stays.
func (c *Controller) CloseOverlay() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode.Kind != ModePlayer {
		c.mode = Mode{Kind: ModeNone}
	}
}

func (c *Controller) SetCallType(t mango.CallType) error {
	if !t.Valid() {
		return fmt.Errorf("%w: call type %d", ErrInvalidArgument, t)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setModeLocked(Mode{Kind: ModeNone})
	q := c.query
	q.CallType = t
	q.Page = 0
	c.applyLocked(q)
	return nil
}

// ResetFilters clears the call type filter and keeps the page.
func (c *Controller) ResetFilters() {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.query
	q.CallType = mango.CallTypeAll
	c.applyLocked(q)
}

// SelectDateRange picks a preset, or opens the calendar for RangeCustom.
func (c *Controller) SelectDateRange(r calls.DateRange) error {
	if !r.Valid() {
		return fmt.Errorf("%w: date range %d", ErrInvalidArgument, r)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if r == calls.RangeCustom {
		c.setModeLocked(Mode{Kind: ModeCalendar})
		return nil
	}

	c.setModeLocked(Mode{Kind: ModeNone})
	c.calStart, c.calEnd = nil, nil
	q := c.query
	q.Range = r
	q.Start, q.End = nil, nil
	q.Page = 0
	c.applyLocked(q)
	return nil
}

// PickCalendarRange records a calendar selection. The custom range becomes
// active once both ends are chosen; reversed ends are swapped.
func (c *Controller) PickCalendarRange(start, end *time.Time) error {
	today := c.now()
	for _, d := range []*time.Time{start, end} {
		if d != nil && calls.DayDiff(d.In(today.Location()), today) > 0 {
			return fmt.Errorf("%w: %s is in the future", ErrInvalidArgument, d.Format("2006-01-02"))
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.calStart, c.calEnd = start, end
	if start == nil || end == nil {
		c.setModeLocked(Mode{Kind: ModeCalendar})
		return nil
	}
	if end.Before(*start) {
		start, end = end, start
		c.calStart, c.calEnd = start, end
	}

	c.setModeLocked(Mode{Kind: ModeNone})
	q := c.query
	q.Range = calls.RangeCustom
	q.Start, q.End = start, end
	q.Page = 0
	c.applyLocked(q)
	return nil
}

// SortBy toggles the direction for the active key, or switches to a new key
// in descending order.
func (c *Controller) SortBy(key mango.SortBy) error {
	if !key.Valid() {
		return fmt.Errorf("%w: sort key %q", ErrInvalidArgument, key)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	q := c.query
	if q.SortBy == key {
		q.Desc = !q.Desc
	} else {
		q.SortBy = key
		q.Desc = true
	}
	q.Page = 0
	c.closePlayerLocked()
	c.applyLocked(q)
	return nil
}

func (c *Controller) NextPage() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if (c.query.Page+1)*c.pageSize >= c.total {
		return false
	}
	q := c.query
	q.Page++
	c.applyLocked(q)
	return true
}

func (c *Controller) PrevPage() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.query.Page <= 0 {
		return false
	}
	q := c.query
	q.Page--
	c.applyLocked(q)
	return true
}

// Refresh refetches the current query.
func (c *Controller) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshLocked()
}

func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := c.query
	loading := false
	if c.done != nil {
		select {
		case <-c.done:
		default:
			loading = true
		}
	}

	return View{
		Groups:           c.groups,
		Total:            c.total,
		TotalTitle:       calls.TotalTitle(c.total),
		Page:             q.Page,
		PageSize:         c.pageSize,
		HasPrev:          q.Page > 0,
		HasNext:          (q.Page+1)*c.pageSize < c.total,
		Loading:          loading,
		CallType:         q.CallType,
		CallTypeTitle:    calls.CallTypeTitle(q.CallType),
		FiltersActive:    q.CallType != mango.CallTypeAll,
		DateRange:        q.Range,
		DateRangeTitle:   calls.DateRangeTitle(q.Range, q.Start, q.End),
		CustomRangeTitle: calls.DateRangeTitle(calls.RangeCustom, q.Start, q.End),
		CalendarStart:    c.calStart,
		CalendarEnd:      c.calEnd,
		SortBy:           q.SortBy,
		Desc:             q.Desc,
		Mode:             c.mode,
		Player:           c.playerViewLocked(),
	}
}

// Close cancels in-flight work and releases the player. Later calls are
// no-ops.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.closePlayerLocked()
	c.mode = Mode{Kind: ModeNone}
	c.stop()
}

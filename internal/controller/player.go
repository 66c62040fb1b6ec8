package controller

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"calllog_viewer/internal/mango"
	"calllog_viewer/internal/metrics"
)

// Recording is the downloaded audio of one call. It is owned by the player
// that fetched it and released when that player goes away.
type Recording struct {
	mu       sync.Mutex
	data     []byte
	released bool
	onFree   func()
}

func newRecording(data []byte, onFree func()) *Recording {
	metrics.RecordingsHeld.Inc()
	return &Recording{data: data, onFree: onFree}
}

// Bytes returns nil once the recording has been released.
func (r *Recording) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data
}

// Release drops the payload. Only the first call has an effect.
func (r *Recording) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.released = true
	r.data = nil
	metrics.RecordingsHeld.Dec()
	if r.onFree != nil {
		r.onFree()
	}
}

type player struct {
	rowID  int64
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
	rec    *Recording
	err    error
}

func (c *Controller) openPlayerLocked(rowID int64, record, partnershipID string) {
	c.closePlayerLocked()

	ctx, cancel := context.WithCancel(c.base)
	p := &player{
		rowID:  rowID,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.player = p
	c.mode = Mode{Kind: ModePlayer, RowID: rowID}

	go c.loadRecording(ctx, p, record, partnershipID)
}

func (c *Controller) loadRecording(ctx context.Context, p *player, record, partnershipID string) {
	defer close(p.done)

	data, err := c.fetcher.FetchRecording(ctx, record, partnershipID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		p.err = err
		if mango.IsCancelled(err) {
			metrics.RecordingFetches.WithLabelValues(metrics.OutcomeCancelled).Inc()
			return
		}
		metrics.RecordingFetches.WithLabelValues(metrics.OutcomeError).Inc()
		c.log.Warn("recording fetch failed", zap.Int64("call_id", p.rowID), zap.Error(err))
		return
	}

	rec := newRecording(data, c.recordingFreed)
	c.held.Add(1)
	if p.closed || c.player != p {
		rec.Release()
		metrics.RecordingFetches.WithLabelValues(metrics.OutcomeStale).Inc()
		return
	}
	p.rec = rec
	metrics.RecordingFetches.WithLabelValues(metrics.OutcomeOK).Inc()
	c.log.Debug("recording loaded", zap.Int64("call_id", p.rowID), zap.Int("bytes", len(data)))
}

func (c *Controller) recordingFreed() {
	c.held.Add(-1)
}

// closePlayerLocked cancels the download and releases whatever it produced.
// Safe to call with no player open.
func (c *Controller) closePlayerLocked() {
	p := c.player
	if p == nil {
		return
	}
	c.player = nil
	if c.mode.Kind == ModePlayer {
		c.mode = Mode{Kind: ModeNone}
	}
	p.closed = true
	p.cancel()
	if p.rec != nil {
		p.rec.Release()
	}
}

// OpenPlayer starts playback of a row on the current page. Rows without a
// recording are rejected.
func (c *Controller) OpenPlayer(rowID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.player != nil && c.player.rowID == rowID {
		return nil
	}

	for _, g := range c.groups {
		for _, r := range g.Rows {
			if r.ID != rowID {
				continue
			}
			if !r.HasRecording() {
				return ErrNoRecording
			}
			c.openPlayerLocked(r.ID, r.Record, r.PartnershipID)
			return nil
		}
	}
	return ErrUnknownRow
}

func (c *Controller) ClosePlayer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closePlayerLocked()
}

// Recording waits for the open player's download.
func (c *Controller) Recording(ctx context.Context) (*Recording, error) {
	c.mu.Lock()
	p := c.player
	c.mu.Unlock()
	if p == nil {
		return nil, ErrPlayerClosed
	}

	select {
	case <-p.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.player != p || p.rec == nil {
		if p.err != nil && !mango.IsCancelled(p.err) {
			return nil, p.err
		}
		return nil, ErrPlayerClosed
	}
	return p.rec, nil
}

// HeldRecordings counts recordings fetched and not yet released.
func (c *Controller) HeldRecordings() int64 {
	return c.held.Load()
}

func (c *Controller) playerViewLocked() *PlayerView {
	p := c.player
	if p == nil {
		return nil
	}
	v := &PlayerView{RowID: p.rowID}
	if p.rec != nil {
		v.Ready = true
		v.Size = len(p.rec.Bytes())
	}
	if p.err != nil && !mango.IsCancelled(p.err) {
		v.Error = p.err.Error()
	}
	return v
}

package engine

import (
	"context"
	"sync/atomic"
)

// Handle is an owned cancellation token for one load or count refresh.
type Handle struct {
	ctx      context.Context
	cancel   context.CancelFunc
	released atomic.Int32
}

func newHandle(parent context.Context) *Handle {
	ctx, cancel := context.WithCancel(parent)
	return &Handle{ctx: ctx, cancel: cancel}
}

// Context is cancelled once the handle is superseded or released.
func (h *Handle) Context() context.Context {
	return h.ctx
}

// Released reports whether the handle has been released.
func (h *Handle) Released() bool {
	return h.released.Load() > 0
}

// release cancels the handle. Only the party that removed the handle from
// its slot may call it.
func (h *Handle) release() {
	if h.released.Add(1) > 1 {
		panic("engine: handle released twice")
	}
	h.cancel()
}

// slot holds at most one active handle.
type slot struct {
	active atomic.Pointer[Handle]
}

// begin swaps in a fresh handle and releases the displaced one.
func (s *slot) begin(parent context.Context) *Handle {
	h := newHandle(parent)
	if old := s.active.Swap(h); old != nil {
		old.release()
	}
	return h
}

// finish removes h if it still owns the slot.
func (s *slot) finish(h *Handle) bool {
	if s.active.CompareAndSwap(h, nil) {
		h.release()
		return true
	}
	return false
}

func (s *slot) cancel() {
	if old := s.active.Swap(nil); old != nil {
		old.release()
	}
}

func (s *slot) owns(h *Handle) bool {
	return h != nil && s.active.Load() == h
}

// Broker owns the primary-load and count-refresh slots. The two slots are
// independent: a load and a count refresh may run together, but never two
// of the same kind.
type Broker struct {
	primary slot
	counts  slot
}

// NewBroker returns an empty broker.
func NewBroker() *Broker {
	return &Broker{}
}

// BeginPrimaryLoad installs a new primary handle, cancelling the previous one.
func (b *Broker) BeginPrimaryLoad(parent context.Context) *Handle {
	return b.primary.begin(parent)
}

// CancelPrimaryLoad cancels the active primary load, if any.
func (b *Broker) CancelPrimaryLoad() {
	b.primary.cancel()
}

// IsPrimary reports whether h is still the active primary handle.
func (b *Broker) IsPrimary(h *Handle) bool {
	return b.primary.owns(h)
}

// FinishPrimary releases h if it is still primary. It reports whether h was.
func (b *Broker) FinishPrimary(h *Handle) bool {
	return b.primary.finish(h)
}

// BeginCountRefresh installs a new count-refresh handle, cancelling the previous one.
func (b *Broker) BeginCountRefresh(parent context.Context) *Handle {
	return b.counts.begin(parent)
}

// IsCountRefresh reports whether h is still the active count-refresh handle.
func (b *Broker) IsCountRefresh(h *Handle) bool {
	return b.counts.owns(h)
}

// FinishCountRefresh releases h if it is still the active count refresh.
func (b *Broker) FinishCountRefresh(h *Handle) bool {
	return b.counts.finish(h)
}

// Close cancels both slots.
func (b *Broker) Close() {
	b.primary.cancel()
	b.counts.cancel()
}

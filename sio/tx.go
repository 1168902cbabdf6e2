package sio

import (
	"sync/atomic"
	"time"

	"stm32zero-go/errcode"
	"stm32zero-go/x/cache"
	"stm32zero-go/x/dmamem"
	"stm32zero-go/x/timex"
)

const idle = -1

// TxEngine stages outgoing bytes in two DMA slots. The task fills the
// active slot while the other one may be in flight; completion in
// interrupt context hands the next slot to the hardware if it holds data.
//
// Write and Flush are for a single task. OnTxComplete and OnTxError are
// called from interrupt context.
type TxEngine struct {
	slots [2]*dmamem.Region
	fill  [2]atomic.Uint32

	active   atomic.Uint32 // slot open for writing
	inflight atomic.Int32  // slot owned by DMA, or idle

	// Byte counters, wrapping. staged-queued is what the task has written
	// but the hardware has not been given yet.
	staged atomic.Uint32
	queued atomic.Uint32

	peak      atomic.Uint32
	transfers atomic.Uint32
	completed atomic.Uint32
	errors    atomic.Uint32
	closed    atomic.Bool

	start func([]byte) error
	cache cache.Maintainer
	sig   WaitSignal

	// Hooks run in interrupt context (or with interrupts masked).
	OnDone  func()
	OnFault func(error)
}

// NewTxEngine builds an engine over two slots. start hands a staged slot to
// the DMA and must not block.
func NewTxEngine(a, b *dmamem.Region, start func([]byte) error, m cache.Maintainer, sig WaitSignal) *TxEngine {
	if a == nil || b == nil || start == nil {
		panic("sio: tx engine needs two slots and a start function")
	}
	if m == nil {
		m = cache.Default()
	}
	if sig == nil {
		sig = NewChanSignal()
	}
	e := &TxEngine{start: start, cache: m, sig: sig}
	e.slots[0], e.slots[1] = a, b
	e.inflight.Store(idle)
	return e
}

// Write copies as much of p as fits in the active slot and never blocks.
// A short copy is still OK; no room at all is BufferFull. Filling the slot
// completely starts a transfer if the hardware is idle.
func (e *TxEngine) Write(p []byte) Result {
	if len(p) == 0 {
		return ok(0)
	}
	if e.closed.Load() {
		return fail(errcode.Closed, 0)
	}
	var n int
	critical(func() {
		s := e.active.Load()
		buf := e.slots[s].Bytes()
		f := e.fill[s].Load()
		n = copy(buf[f:], p)
		if n == 0 {
			return
		}
		f += uint32(n)
		e.fill[s].Store(f)
		e.staged.Add(uint32(n))
		if f > e.peak.Load() {
			e.peak.Store(f)
		}
		if int(f) == len(buf) && e.inflight.Load() == idle {
			e.kick()
		}
	})
	if n == 0 {
		return fail(errcode.BufferFull, 0)
	}
	return ok(n)
}

// Flush hands everything staged so far to the hardware. If a transfer is
// in flight it waits up to timeout for completion and retries; expiry
// returns BufferFull. N is the number of bytes handed over.
func (e *TxEngine) Flush(timeout time.Duration) Result {
	var target, base uint32
	critical(func() {
		target, base = e.staged.Load(), e.queued.Load()
	})
	if target == base {
		return ok(0)
	}
	defer e.relay()
	dl := timex.After(timeout)
	for {
		var err error
		critical(func() {
			if e.handed(target) || e.inflight.Load() != idle {
				return
			}
			err = e.kick()
		})
		if err != nil {
			return fail(errcode.HardwareError, 0)
		}
		if e.handed(target) {
			return ok(int(target - base))
		}
		if e.closed.Load() {
			return fail(errcode.Closed, 0)
		}
		rem, alive := dl.Remaining()
		if !alive {
			return fail(errcode.BufferFull, 0)
		}
		e.sig.Take(rem)
	}
}

// FlushWait flushes and then waits until no transfer is in flight and
// nothing is staged.
func (e *TxEngine) FlushWait(timeout time.Duration) bool {
	defer e.relay()
	dl := timex.After(timeout)
	for {
		rem, _ := dl.Remaining()
		if r := e.Flush(rem); !r.OK() {
			return false
		}
		if e.Idle() {
			return true
		}
		if e.closed.Load() {
			return false
		}
		rem, alive := dl.Remaining()
		if !alive {
			return false
		}
		e.sig.Take(rem)
	}
}

func (e *TxEngine) handed(target uint32) bool {
	return int32(e.queued.Load()-target) >= 0
}

// kick starts DMA on the active slot. Interrupts must be masked.
func (e *TxEngine) kick() error {
	s := e.active.Load()
	n := e.fill[s].Load()
	if n == 0 {
		return nil
	}
	buf := e.slots[s].Bytes()[:n]
	cache.CleanBytes(e.cache, buf)
	e.inflight.Store(int32(s))
	e.active.Store(s ^ 1)
	e.fill[s^1].Store(0)
	if err := e.start(buf); err != nil {
		e.inflight.Store(idle)
		e.active.Store(s)
		e.errors.Add(1)
		e.fault(err)
		return err
	}
	e.queued.Add(n)
	e.transfers.Add(1)
	return nil
}

// OnTxComplete is called by the transport when a transfer finishes.
func (e *TxEngine) OnTxComplete() {
	if e.inflight.Load() == idle {
		return
	}
	e.inflight.Store(idle)
	e.completed.Add(1)
	e.kick()
	if e.OnDone != nil {
		e.OnDone()
	}
	e.sig.Give()
}

// OnTxError is called by the transport when a transfer fails. The slot's
// bytes are dropped; nothing is retried.
func (e *TxEngine) OnTxError(err error) {
	e.inflight.Store(idle)
	e.errors.Add(1)
	e.fault(err)
	e.sig.Give()
}

func (e *TxEngine) fault(err error) {
	if e.OnFault != nil {
		e.OnFault(err)
	}
}

// Close fails further writes and wakes every blocked Flush.
func (e *TxEngine) Close() {
	e.closed.Store(true)
	e.sig.Give()
}

func (e *TxEngine) relay() {
	if e.closed.Load() {
		e.sig.Give()
	}
}

// WaterMark is the most bytes ever staged in one slot.
func (e *TxEngine) WaterMark() int { return int(e.peak.Load()) }

// Writable reports whether the active slot has room.
func (e *TxEngine) Writable() bool {
	s := e.active.Load()
	return int(e.fill[s].Load()) < e.slots[s].Cap()
}

// Busy reports a transfer in flight.
func (e *TxEngine) Busy() bool { return e.inflight.Load() != idle }

// Pending is the number of bytes written but not yet handed to DMA.
func (e *TxEngine) Pending() int { return int(e.staged.Load() - e.queued.Load()) }

// Idle reports no transfer in flight and nothing pending.
func (e *TxEngine) Idle() bool { return !e.Busy() && e.Pending() == 0 }

// SlotSize is the capacity of one slot.
func (e *TxEngine) SlotSize() int { return e.slots[0].Cap() }

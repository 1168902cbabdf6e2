package sio

import (
	"sync/atomic"
	"time"

	"stm32zero-go/errcode"
	"stm32zero-go/x/cache"
	"stm32zero-go/x/dmamem"
	"stm32zero-go/x/mathx"
	"stm32zero-go/x/timex"
)

// RxEngine is a single-producer, single-consumer byte ring fed by circular
// DMA. The interrupt side advances wr; the task side advances rd. Cursors
// are free-running and the ring size is a power of two, so wr-rd is the
// unread count and cursor&mask the index.
//
// The DMA either targets the ring directly or, when a separate staging
// region is given, a smaller circular buffer whose new bytes the interrupt
// copies into the ring.
type RxEngine struct {
	ring []byte
	size uint32
	mask uint32

	dma     []byte
	dmaSize uint32
	last    uint32 // DMA position at the previous event; interrupt side only

	wr atomic.Uint32
	rd atomic.Uint32

	peak     atomic.Uint32
	overruns atomic.Uint32
	lost     atomic.Uint32
	events   atomic.Uint32
	closed   atomic.Bool

	cache cache.Maintainer
	sig   WaitSignal

	// Hooks run in interrupt context.
	OnData    func()
	OnOverrun func(lost int)
}

// NewRxEngine builds a ring over ring. If staging is non-nil the DMA
// targets it instead and bytes are copied into ring per event. The ring
// must be a power-of-two size of at least one cache line; the staging
// region must span whole cache lines.
func NewRxEngine(ring, staging *dmamem.Region, m cache.Maintainer, sig WaitSignal) *RxEngine {
	if ring == nil {
		panic("sio: rx engine needs a ring")
	}
	n := ring.Cap()
	if !mathx.IsPow2(n) || n < cache.LineSize {
		panic("sio: rx ring size must be a power of two >= cache line")
	}
	if m == nil {
		m = cache.Default()
	}
	if sig == nil {
		sig = NewChanSignal()
	}
	e := &RxEngine{
		ring:  ring.Bytes(),
		size:  uint32(n),
		mask:  uint32(n - 1),
		cache: m,
		sig:   sig,
	}
	e.dma = e.ring
	if staging != nil {
		if !cache.IsAligned(uintptr(staging.Cap())) {
			panic("sio: rx staging region must span whole cache lines")
		}
		e.dma = staging.Bytes()
	}
	e.dmaSize = uint32(len(e.dma))
	return e
}

// Buffer is the memory the transport must receive into, circularly.
func (e *RxEngine) Buffer() []byte { return e.dma }

// Staged reports whether the DMA targets a staging buffer.
func (e *RxEngine) Staged() bool { return &e.dma[0] != &e.ring[0] }

// OnRxEvent is called from interrupt context on half-transfer,
// transfer-complete and line-idle with the DMA write position in the
// receive buffer. pos equal to the buffer length marks the wrap.
func (e *RxEngine) OnRxEvent(pos int) {
	if pos < 0 || uint32(pos) > e.dmaSize {
		return
	}
	p := uint32(pos)
	var delta, next uint32
	switch {
	case p == e.dmaSize:
		delta, next = e.dmaSize-e.last, 0
	case p >= e.last:
		delta, next = p-e.last, p
	default:
		delta, next = e.dmaSize-e.last+p, p
	}
	if delta == 0 {
		return
	}
	from := e.last
	e.last = next
	e.invalidate(from, delta)

	wr := e.wr.Load()
	if e.Staged() {
		e.copyIn(wr, from, delta)
	}
	wr += delta
	e.events.Add(1)

	var dropped uint32
	unread := wr - e.rd.Load()
	if unread > e.size {
		dropped = mathx.Min(delta, unread-e.size)
		e.overruns.Add(1)
		e.lost.Add(dropped)
		unread = e.size
	}
	e.wr.Store(wr)
	e.raisePeak(unread)
	e.sig.Give()
	if e.OnData != nil {
		e.OnData()
	}
	if dropped > 0 && e.OnOverrun != nil {
		e.OnOverrun(int(dropped))
	}
}

// invalidate discards cached lines over n bytes of the DMA buffer from
// index from, in two ranges when the span wraps.
func (e *RxEngine) invalidate(from, n uint32) {
	end := from + n
	if end <= e.dmaSize {
		cache.InvalidateBytes(e.cache, e.dma[from:end])
		return
	}
	cache.InvalidateBytes(e.cache, e.dma[from:])
	cache.InvalidateBytes(e.cache, e.dma[:end-e.dmaSize])
}

// copyIn moves n staged bytes starting at DMA index from into the ring at
// cursor wr.
func (e *RxEngine) copyIn(wr, from, n uint32) {
	for n > 0 {
		src := e.dma[from:mathx.Min(from+n, e.dmaSize)]
		dst := e.ring[wr&e.mask:]
		c := uint32(copy(dst, src))
		wr += c
		n -= c
		from += c
		if from == e.dmaSize {
			from = 0
		}
	}
}

// take copies up to len(p) unread bytes, consuming them if consume is set.
// After an overrun the oldest surviving byte is wr-size.
func (e *RxEngine) take(p []byte, consume bool) int {
	wr := e.wr.Load()
	rd := e.rd.Load()
	if wr-rd > e.size {
		rd = wr - e.size
	}
	e.raisePeak(wr - rd)
	n := mathx.Min(wr-rd, uint32(len(p)))
	if n == 0 {
		return 0
	}
	c := uint32(copy(p[:n], e.ring[rd&e.mask:]))
	if c < n {
		copy(p[c:n], e.ring[:n-c])
	}
	if consume {
		e.rd.Store(rd + n)
	}
	return int(n)
}

// raisePeak records unread as the watermark if it is a new maximum. Both
// the interrupt and the reader call it.
func (e *RxEngine) raisePeak(unread uint32) {
	for {
		old := e.peak.Load()
		if unread <= old || e.peak.CompareAndSwap(old, unread) {
			return
		}
	}
}

// Available is the number of unread bytes.
func (e *RxEngine) Available() int {
	n := e.wr.Load() - e.rd.Load()
	return int(mathx.Min(n, e.size))
}

func (e *RxEngine) IsEmpty() bool { return e.Available() == 0 }

// Read copies buffered bytes into p. With nothing buffered it returns
// BufferEmpty for a zero timeout, otherwise waits up to timeout for data.
func (e *RxEngine) Read(p []byte, timeout time.Duration) Result {
	if len(p) == 0 {
		return ok(0)
	}
	defer e.relay()
	dl := timex.After(timeout)
	for {
		if n := e.take(p, true); n > 0 {
			return ok(n)
		}
		if e.closed.Load() {
			return fail(errcode.Closed, 0)
		}
		if timeout == NoWait {
			return fail(errcode.BufferEmpty, 0)
		}
		rem, alive := dl.Remaining()
		if !alive {
			return fail(errcode.Timeout, 0)
		}
		e.sig.Take(rem)
	}
}

// ReadLine reads up to '\n' or len(p)-1 bytes, dropping a CR before the LF,
// and NUL-terminates p. N excludes the terminator. The timeout covers the
// whole line; on failure N is the partial line already consumed.
func (e *RxEngine) ReadLine(p []byte, timeout time.Duration) Result {
	if len(p) == 0 {
		return fail(errcode.InvalidParams, 0)
	}
	limit := len(p) - 1
	n := 0
	defer e.relay()
	dl := timex.After(timeout)
	var b [1]byte
	for {
		for n < limit && e.take(b[:], true) == 1 {
			if b[0] == '\n' {
				if n > 0 && p[n-1] == '\r' {
					n--
				}
				p[n] = 0
				return ok(n)
			}
			p[n] = b[0]
			n++
		}
		p[n] = 0
		if n == limit {
			return ok(n)
		}
		if e.closed.Load() {
			return fail(errcode.Closed, n)
		}
		if timeout == NoWait {
			return fail(errcode.BufferEmpty, n)
		}
		rem, alive := dl.Remaining()
		if !alive {
			return fail(errcode.Timeout, n)
		}
		e.sig.Take(rem)
	}
}

// Peek copies buffered bytes without consuming them.
func (e *RxEngine) Peek(p []byte) Result {
	if len(p) == 0 {
		return ok(0)
	}
	if n := e.take(p, false); n > 0 {
		return ok(n)
	}
	return fail(errcode.BufferEmpty, 0)
}

// Discard drops everything buffered.
func (e *RxEngine) Discard() int {
	wr := e.wr.Load()
	n := mathx.Min(wr-e.rd.Load(), e.size)
	e.rd.Store(wr)
	return int(n)
}

// Wait blocks until data is buffered or timeout passes.
func (e *RxEngine) Wait(timeout time.Duration) bool {
	defer e.relay()
	dl := timex.After(timeout)
	for {
		if e.Available() > 0 {
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

// Close wakes every blocked reader; buffered bytes stay readable.
func (e *RxEngine) Close() {
	e.closed.Store(true)
	e.sig.Give()
}

// relay passes the close wake-up on to the next waiter. The signal holds a
// single token, so each reader leaving after Close gives it again.
func (e *RxEngine) relay() {
	if e.closed.Load() {
		e.sig.Give()
	}
}

// WaterMark is the most unread bytes ever observed.
func (e *RxEngine) WaterMark() int { return int(e.peak.Load()) }

// Overruns counts events that overwrote unread data.
func (e *RxEngine) Overruns() int { return int(e.overruns.Load()) }

// Size is the ring capacity.
func (e *RxEngine) Size() int { return int(e.size) }

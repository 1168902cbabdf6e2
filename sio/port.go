// Package sio is a lock-free serial I/O channel over one UART: a
// double-buffered DMA transmit path and a circular-DMA receive ring, with
// interrupt-to-task hand-off through WaitSignals.
//
// One task writes and one task reads. Transports call the Handler from
// interrupt context through Interrupt.
package sio

import (
	"context"
	"sync/atomic"
	"time"

	"stm32zero-go/errcode"
	"stm32zero-go/x/conv"
	"stm32zero-go/x/dmamem"

	"tinygo.org/x/drivers"
)

// Transport is the UART/DMA hardware below a Port.
type Transport interface {
	// Bind registers the interrupt-side callbacks. Called once, before
	// StartRx.
	Bind(h Handler)
	// StartTx starts a memory-to-peripheral transfer of p. It must not
	// block; completion is reported through Handler.OnTxComplete.
	StartTx(p []byte) error
	// StartRx starts circular reception into buf, reporting positions
	// through Handler.OnRxEvent.
	StartRx(buf []byte) error
	// StopRx halts reception.
	StopRx()
}

// Handler receives transport events in interrupt context.
type Handler interface {
	OnTxComplete()
	OnTxError(err error)
	OnRxEvent(pos int)
	OnRxError(err error)
}

// Dir names the side of the channel a Fault came from.
type Dir uint8

const (
	DirTx Dir = iota
	DirRx
)

func (d Dir) String() string {
	if d == DirTx {
		return "tx"
	}
	return "rx"
}

// Fault is passed to the error callback. Code is HardwareError for
// transport faults and Overrun for lost receive data (Lost bytes).
type Fault struct {
	Dir  Dir
	Code errcode.Code
	Err  error
	Lost int
}

// Stats is a snapshot of a Port's counters.
type Stats struct {
	TxStaged    uint32
	TxQueued    uint32
	TxTransfers uint32
	TxCompleted uint32
	TxErrors    uint32
	TxPeak      int

	RxEvents   uint32
	RxBytes    uint32
	RxOverruns uint32
	RxLost     uint32
	RxErrors   uint32
	RxPeak     int
}

// Port binds a transmit and a receive engine to a Transport.
type Port struct {
	t  Transport
	tx *TxEngine
	rx *RxEngine

	readable chan struct{}
	closed   atomic.Bool
	rxErrors atomic.Uint32

	onTxDone atomic.Pointer[func()]
	onError  atomic.Pointer[func(Fault)]
}

var _ drivers.UART = (*Port)(nil)
var _ Handler = (*Port)(nil)

// New allocates the buffers from cfg's arena, binds to t and starts
// reception.
func New(t Transport, cfg Config) (*Port, error) {
	if t == nil {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "sio.new", Msg: "nil transport"}
	}
	cfg = cfg.Normalise()
	if cfg.Arena.Free() < cfg.footprint() {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "sio.new", Msg: "dma arena exhausted"}
	}

	ring := cfg.Arena.Alloc(cfg.RxSize, dmamem.RX)
	var staging *dmamem.Region
	if cfg.DMASize > 0 {
		staging = cfg.Arena.Alloc(cfg.DMASize, dmamem.RX)
	}
	a := cfg.Arena.Alloc(cfg.TxSize, dmamem.TX)
	b := cfg.Arena.Alloc(cfg.TxSize, dmamem.TX)

	p := &Port{t: t, readable: make(chan struct{}, 1)}
	p.tx = NewTxEngine(a, b, t.StartTx, cfg.Cache, cfg.NewSignal())
	p.rx = NewRxEngine(ring, staging, cfg.Cache, cfg.NewSignal())
	p.tx.OnDone = p.txDone
	p.tx.OnFault = func(err error) { p.fault(Fault{Dir: DirTx, Code: errcode.HardwareError, Err: err}) }
	p.rx.OnData = p.notifyReadable
	p.rx.OnOverrun = func(n int) { p.fault(Fault{Dir: DirRx, Code: errcode.Overrun, Lost: n}) }

	t.Bind(p)
	if err := t.StartRx(p.rx.Buffer()); err != nil {
		return nil, errcode.Wrap(errcode.HardwareError, "sio.start_rx", err)
	}
	return p, nil
}

// Handler side.

func (p *Port) OnTxComplete()       { p.tx.OnTxComplete() }
func (p *Port) OnTxError(err error) { p.tx.OnTxError(err) }
func (p *Port) OnRxEvent(pos int)   { p.rx.OnRxEvent(pos) }

func (p *Port) OnRxError(err error) {
	p.rxErrors.Add(1)
	p.fault(Fault{Dir: DirRx, Code: errcode.HardwareError, Err: err})
}

func (p *Port) txDone() {
	if fn := p.onTxDone.Load(); fn != nil {
		(*fn)()
	}
}

func (p *Port) fault(f Fault) {
	if fn := p.onError.Load(); fn != nil {
		(*fn)(f)
	}
}

func (p *Port) notifyReadable() {
	select {
	case p.readable <- struct{}{}:
	default:
	}
}

// OnTxDone registers fn to run in interrupt context after every completed
// transfer. nil clears it.
func (p *Port) OnTxDone(fn func()) {
	if fn == nil {
		p.onTxDone.Store(nil)
		return
	}
	p.onTxDone.Store(&fn)
}

// OnError registers fn to run in interrupt context on transport faults and
// receive overruns. nil clears it. fn must not block or call Port methods
// that mask interrupts.
func (p *Port) OnError(fn func(Fault)) {
	if fn == nil {
		p.onError.Store(nil)
		return
	}
	p.onError.Store(&fn)
}

// Task side.

// Send stages p for transmission without blocking; see TxEngine.Write.
func (p *Port) Send(b []byte) Result { return p.tx.Write(b) }

// Flush hands staged bytes to the hardware; see TxEngine.Flush.
func (p *Port) Flush(timeout time.Duration) Result { return p.tx.Flush(timeout) }

// FlushWait flushes and waits for the transmitter to go idle.
func (p *Port) FlushWait(timeout time.Duration) bool { return p.tx.FlushWait(timeout) }

// Recv reads buffered bytes, waiting up to timeout; see RxEngine.Read.
func (p *Port) Recv(b []byte, timeout time.Duration) Result { return p.rx.Read(b, timeout) }

// RecvLine reads one NUL-terminated line; see RxEngine.ReadLine.
func (p *Port) RecvLine(b []byte, timeout time.Duration) Result { return p.rx.ReadLine(b, timeout) }

func (p *Port) Peek(b []byte) Result            { return p.rx.Peek(b) }
func (p *Port) Available() int                  { return p.rx.Available() }
func (p *Port) IsEmpty() bool                   { return p.rx.IsEmpty() }
func (p *Port) Wait(timeout time.Duration) bool { return p.rx.Wait(timeout) }
func (p *Port) Discard() int                    { return p.rx.Discard() }
func (p *Port) Writable() bool                  { return p.tx.Writable() }
func (p *Port) TxWaterMark() int                { return p.tx.WaterMark() }
func (p *Port) RxWaterMark() int                { return p.rx.WaterMark() }
func (p *Port) Readable() <-chan struct{}       { return p.readable }
func (p *Port) Closed() bool                    { return p.closed.Load() }
func (p *Port) Engines() (*TxEngine, *RxEngine) { return p.tx, p.rx }

// Stats returns a snapshot of the counters.
func (p *Port) Stats() Stats {
	return Stats{
		TxStaged:    p.tx.staged.Load(),
		TxQueued:    p.tx.queued.Load(),
		TxTransfers: p.tx.transfers.Load(),
		TxCompleted: p.tx.completed.Load(),
		TxErrors:    p.tx.errors.Load(),
		TxPeak:      p.tx.WaterMark(),
		RxEvents:    p.rx.events.Load(),
		RxBytes:     p.rx.wr.Load(),
		RxOverruns:  p.rx.overruns.Load(),
		RxLost:      p.rx.lost.Load(),
		RxErrors:    p.rxErrors.Load(),
		RxPeak:      p.rx.WaterMark(),
	}
}

// Close stops reception and wakes every blocked call, which then returns
// Closed. Buffered receive data stays readable.
func (p *Port) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.t.StopRx()
	p.tx.Close()
	p.rx.Close()
	p.notifyReadable()
	return nil
}

// io adapters, shaped like machine.UART.

// Write stages and flushes all of b, blocking while both slots are busy.
func (p *Port) Write(b []byte) (int, error) {
	sent := 0
	for sent < len(b) {
		r := p.tx.Write(b[sent:])
		sent += r.N
		if r.Status == errcode.Closed {
			return sent, errcode.Closed
		}
		if sent < len(b) {
			if f := p.tx.Flush(Forever); !f.OK() {
				return sent, f.Err()
			}
		}
	}
	if f := p.tx.Flush(Forever); !f.OK() {
		return sent, f.Err()
	}
	return sent, nil
}

// Read returns whatever is buffered without blocking.
func (p *Port) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	if n := p.rx.take(b, true); n > 0 {
		return n, nil
	}
	if p.closed.Load() {
		return 0, errcode.Closed
	}
	return 0, nil
}

// Buffered is the number of unread bytes.
func (p *Port) Buffered() int { return p.rx.Available() }

// RecvSomeContext blocks until at least one byte is read or ctx is done.
func (p *Port) RecvSomeContext(ctx context.Context, b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	for {
		if n, err := p.Read(b); n > 0 || err != nil {
			if p.closed.Load() {
				p.notifyReadable()
			}
			return n, err
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-p.readable:
		}
	}
}

// WritefMax bounds one Writef line; longer output is cut.
const WritefMax = 256

// Writef formats into a stack buffer of WritefMax bytes and writes it like
// Write. See conv.Appendf for the accepted verbs.
func (p *Port) Writef(format string, args ...any) (int, error) {
	var scratch [WritefMax]byte
	b := conv.Appendf(scratch[:0], format, args...)
	if len(b) > WritefMax {
		b = b[:WritefMax]
	}
	return p.Write(b)
}

// WriteString is Write for strings.
func (p *Port) WriteString(s string) (int, error) { return p.Write([]byte(s)) }

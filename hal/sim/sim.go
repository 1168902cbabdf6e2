//go:build !tinygo

// Package sim is a host transport for sio: goroutines stand in for the DMA
// controller and move bytes over shmring wires, delivering completions
// through sio.Interrupt.
package sim

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"stm32zero-go/hal/halerr"
	"stm32zero-go/sio"
	"stm32zero-go/x/shmring"
	"stm32zero-go/x/timex"
)

const (
	DefaultBurst   = 16
	DefaultIdleGap = 2 * time.Millisecond
)

// Options tune one simulated endpoint.
type Options struct {
	Name    string
	Baud    uint32        // 0 disables line pacing
	Burst   int           // bytes per DMA beat
	IdleGap time.Duration // quiet time before a line-idle event
	Tracer  Tracer
}

func (o Options) normalise() Options {
	if o.Name == "" {
		o.Name = "sim"
	}
	if o.Burst <= 0 {
		o.Burst = DefaultBurst
	}
	if o.IdleGap <= 0 {
		o.IdleGap = DefaultIdleGap
	}
	return o
}

// Transport implements sio.Transport over two rings: out carries what this
// endpoint transmits, in what it receives.
type Transport struct {
	opt     Options
	out, in *shmring.Ring

	h    sio.Handler
	txq  chan []byte
	busy atomic.Bool

	faultMu sync.Mutex
	txFault error

	rxMu   sync.Mutex
	rxStop chan struct{}
	rxDone chan struct{}

	txBytes atomic.Uint64
	rxBytes atomic.Uint64

	stop      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

var _ sio.Transport = (*Transport)(nil)

// New starts an endpoint transmitting on out and receiving from in.
func New(out, in *shmring.Ring, opt Options) *Transport {
	t := &Transport{
		opt:  opt.normalise(),
		out:  out,
		in:   in,
		txq:  make(chan []byte, 1),
		stop: make(chan struct{}),
	}
	t.wg.Add(1)
	go t.txLoop()
	return t
}

// Loopback returns an endpoint whose transmit line feeds its own receiver.
func Loopback(size int, opt Options) *Transport {
	r := shmring.New(size)
	return New(r, r, opt)
}

// Pair returns two endpoints cross-connected by lines of size bytes.
func Pair(size int, a, b Options) (*Transport, *Transport) {
	ab, ba := shmring.New(size), shmring.New(size)
	return New(ab, ba, a), New(ba, ab, b)
}

// Wire attaches to the named line, creating it on first use. The first
// endpoint transmits on name/ab, the second on name/ba.
func Wire(name string, size int, opt Options) *Transport {
	ab, first := shmring.Attach(name+"/ab", size)
	ba, _ := shmring.Attach(name+"/ba", size)
	if first {
		return New(ab, ba, opt)
	}
	return New(ba, ab, opt)
}

func (t *Transport) Name() string { return t.opt.Name }

func (t *Transport) Bind(h sio.Handler) { t.h = h }

// StartTx queues p for the DMA goroutine. Only one transfer may be in
// flight.
func (t *Transport) StartTx(p []byte) error {
	if t.h == nil {
		return halerr.ErrNotBound
	}
	select {
	case <-t.stop:
		return halerr.ErrStopped
	default:
	}
	if !t.busy.CompareAndSwap(false, true) {
		return halerr.ErrTxBusy
	}
	t.trace(Event{Kind: TxStart, N: len(p)})
	select {
	case t.txq <- p:
		return nil
	default:
		t.busy.Store(false)
		return halerr.ErrTxBusy
	}
}

// FailNextTx makes the next transfer complete with err instead of success.
func (t *Transport) FailNextTx(err error) {
	if err == nil {
		err = halerr.ErrInjected
	}
	t.faultMu.Lock()
	t.txFault = err
	t.faultMu.Unlock()
}

func (t *Transport) takeTxFault() error {
	t.faultMu.Lock()
	defer t.faultMu.Unlock()
	err := t.txFault
	t.txFault = nil
	return err
}

func (t *Transport) txLoop() {
	defer t.wg.Done()
	for {
		select {
		case <-t.stop:
			return
		case p := <-t.txq:
			err := t.send(p)
			if err == halerr.ErrStopped {
				return
			}
			if f := t.takeTxFault(); f != nil {
				err = f
			}
			t.busy.Store(false)
			if err != nil {
				glog.Warningf("%s: tx transfer failed: %v", t.opt.Name, err)
				t.trace(Event{Kind: TxError, N: len(p), Err: err})
				sio.Interrupt(func() { t.h.OnTxError(err) })
				continue
			}
			if glog.V(2) {
				glog.Infof("%s: tx %d bytes", t.opt.Name, len(p))
			}
			t.trace(Event{Kind: TxDone, N: len(p)})
			sio.Interrupt(t.h.OnTxComplete)
		}
	}
}

// send moves p onto the line in bursts, pacing to the baud rate and
// waiting while the line is full.
func (t *Transport) send(p []byte) error {
	wait := time.NewTimer(time.Hour)
	defer wait.Stop()
	for off := 0; off < len(p); {
		n := t.out.TryWriteFrom(p[off:min(off+t.opt.Burst, len(p))])
		if n == 0 {
			timex.ResetTimer(wait, time.Millisecond)
			select {
			case <-t.stop:
				return halerr.ErrStopped
			case <-t.out.Writable():
			case <-wait.C:
			}
			continue
		}
		off += n
		t.txBytes.Add(uint64(n))
		if t.opt.Baud > 0 {
			time.Sleep(time.Duration(n) * timex.BytePeriod(t.opt.Baud))
		}
	}
	return nil
}

// StartRx begins circular reception into buf.
func (t *Transport) StartRx(buf []byte) error {
	if t.h == nil {
		return halerr.ErrNotBound
	}
	t.rxMu.Lock()
	defer t.rxMu.Unlock()
	if t.rxStop != nil {
		return halerr.ErrRxRunning
	}
	t.rxStop, t.rxDone = make(chan struct{}), make(chan struct{})
	go t.rxLoop(buf, t.rxStop, t.rxDone)
	return nil
}

// StopRx halts reception and waits for the receive goroutine to exit.
func (t *Transport) StopRx() {
	t.rxMu.Lock()
	stop, done := t.rxStop, t.rxDone
	t.rxStop, t.rxDone = nil, nil
	t.rxMu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// rxLoop plays a circular peripheral-to-memory stream: it reports
// half-transfer, transfer-complete and, once the line goes quiet,
// line-idle positions.
func (t *Transport) rxLoop(buf []byte, stop, done chan struct{}) {
	defer close(done)
	half := len(buf) / 2
	pos, reported := 0, 0
	event := func(p int) {
		reported = p % len(buf)
		t.trace(Event{Kind: RxEvent, Pos: p})
		sio.Interrupt(func() { t.h.OnRxEvent(p) })
	}
	tmp := make([]byte, t.opt.Burst)
	idle := time.NewTimer(time.Hour)
	defer idle.Stop()
	for {
		n := t.in.TryReadInto(tmp)
		if n == 0 {
			if pos != reported {
				event(pos)
			}
			timex.ResetTimer(idle, t.opt.IdleGap)
			select {
			case <-stop:
				return
			case <-t.in.Readable():
			case <-idle.C:
			}
			continue
		}
		t.rxBytes.Add(uint64(n))
		for _, c := range tmp[:n] {
			buf[pos] = c
			pos++
			switch pos {
			case half:
				event(half)
			case len(buf):
				event(len(buf))
				pos = 0
			}
		}
	}
}

// InjectRxError raises a receive fault as the UART error interrupt would.
func (t *Transport) InjectRxError(err error) {
	if err == nil {
		err = halerr.ErrInjected
	}
	t.trace(Event{Kind: RxError, Err: err})
	sio.Interrupt(func() { t.h.OnRxError(err) })
}

// Counters returns bytes put on and taken off the line.
func (t *Transport) Counters() (tx, rx uint64) { return t.txBytes.Load(), t.rxBytes.Load() }

// Close stops both directions. It is safe to call more than once.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		close(t.stop)
		t.StopRx()
		t.wg.Wait()
	})
	return nil
}

func (t *Transport) trace(e Event) {
	if t.opt.Tracer == nil {
		return
	}
	e.At = time.Now()
	e.Port = t.opt.Name
	t.opt.Tracer.Record(e)
}

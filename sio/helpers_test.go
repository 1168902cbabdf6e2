package sio

import (
	"errors"
	"testing"

	"stm32zero-go/x/cache"
	"stm32zero-go/x/dmamem"
)

// dmaFeeder plays a circular DMA: it writes bytes into buf and reports
// half-transfer, transfer-complete and line-idle positions.
type dmaFeeder struct {
	buf   []byte
	pos   int
	event func(pos int)
}

func (f *dmaFeeder) feed(p []byte) {
	half := len(f.buf) / 2
	for _, c := range p {
		f.buf[f.pos] = c
		f.pos++
		switch f.pos {
		case half:
			f.event(half)
		case len(f.buf):
			f.event(len(f.buf))
			f.pos = 0
		}
	}
	if f.pos != half && f.pos != 0 {
		f.event(f.pos)
	}
}

func seq(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func newRx(t *testing.T, size, staging int) (*RxEngine, *cache.Recorder, *dmaFeeder) {
	t.Helper()
	a := dmamem.NewArena(size + staging + cache.LineSize)
	var st *dmamem.Region
	ring := a.Alloc(size, dmamem.RX)
	if staging > 0 {
		st = a.Alloc(staging, dmamem.RX)
	}
	rec := &cache.Recorder{}
	e := NewRxEngine(ring, st, rec, nil)
	f := &dmaFeeder{buf: e.Buffer()}
	f.event = func(pos int) { Interrupt(func() { e.OnRxEvent(pos) }) }
	return e, rec, f
}

// txLog records what the engine hands to the hardware.
type txLog struct {
	sent [][]byte
	err  error
}

func (l *txLog) start(p []byte) error {
	if l.err != nil {
		return l.err
	}
	l.sent = append(l.sent, append([]byte(nil), p...))
	return nil
}

func (l *txLog) all() []byte {
	var out []byte
	for _, s := range l.sent {
		out = append(out, s...)
	}
	return out
}

func newTx(t *testing.T, slot int) (*TxEngine, *txLog, *cache.Recorder) {
	t.Helper()
	a := dmamem.NewArena(2 * int(cache.Align(uintptr(slot))))
	l := &txLog{}
	rec := &cache.Recorder{}
	e := NewTxEngine(a.Alloc(slot, dmamem.TX), a.Alloc(slot, dmamem.TX), l.start, rec, nil)
	return e, l, rec
}

// loopback wires TX straight back to RX through a goroutine standing in
// for the DMA controller.
type loopback struct {
	h    Handler
	rx   *dmaFeeder
	jobs chan []byte
	done chan struct{}
}

func newLoopback() *loopback {
	l := &loopback{jobs: make(chan []byte, 2), done: make(chan struct{})}
	go l.run()
	return l
}

func (l *loopback) Bind(h Handler) { l.h = h }

func (l *loopback) StartRx(buf []byte) error {
	l.rx = &dmaFeeder{buf: buf}
	l.rx.event = func(pos int) { Interrupt(func() { l.h.OnRxEvent(pos) }) }
	return nil
}

func (l *loopback) StopRx() {}

func (l *loopback) StartTx(p []byte) error {
	select {
	case l.jobs <- p:
		return nil
	default:
		return errors.New("loopback: busy")
	}
}

func (l *loopback) run() {
	for {
		select {
		case p := <-l.jobs:
			l.rx.feed(p)
			Interrupt(l.h.OnTxComplete)
		case <-l.done:
			return
		}
	}
}

func (l *loopback) stop() { close(l.done) }

func newLoopPort(t *testing.T, cfg Config) (*Port, *loopback) {
	t.Helper()
	l := newLoopback()
	t.Cleanup(l.stop)
	if cfg.Arena == nil {
		cfg.Arena = dmamem.NewArena(16 * 1024)
	}
	p, err := New(l, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p, l
}

//go:build rp2040 || rp2350

// Package rp2 adapts the interrupt-driven uartx PL011 driver to sio. The
// RP2 parts have no D-cache and uartx owns the FIFO interrupt, so two pump
// goroutines stand in for DMA and report progress with interrupts masked.
package rp2

import (
	"context"
	"runtime/interrupt"
	"sync/atomic"

	"github.com/jangala-dev/tinygo-uartx/uartx"

	"stm32zero-go/hal/halerr"
	"stm32zero-go/sio"
)

// UART is a sio.Transport over uartx.UART0 or uartx.UART1.
type UART struct {
	hw *uartx.UART
	h  sio.Handler

	txq  chan []byte
	busy atomic.Bool

	rxCancel context.CancelFunc
	rxDone   chan struct{}
}

// Open configures hw and starts the transmit pump. Zero config fields take
// the uartx defaults.
func Open(hw *uartx.UART, cfg uartx.UARTConfig) (*UART, error) {
	if err := hw.Configure(cfg); err != nil {
		return nil, err
	}
	u := &UART{hw: hw, txq: make(chan []byte, 1)}
	go u.txLoop()
	return u, nil
}

func (u *UART) Bind(h sio.Handler) { u.h = h }

// isr runs fn as the DMA completion interrupt would: masked, to completion.
func isr(fn func()) {
	state := interrupt.Disable()
	fn()
	interrupt.Restore(state)
}

func (u *UART) StartTx(p []byte) error {
	if u.h == nil {
		return halerr.ErrNotBound
	}
	if !u.busy.CompareAndSwap(false, true) {
		return halerr.ErrTxBusy
	}
	u.txq <- p
	return nil
}

func (u *UART) txLoop() {
	for p := range u.txq {
		// Write returns once uartx has taken every byte, so p is free.
		_, err := u.hw.Write(p)
		u.busy.Store(false)
		if err != nil {
			isr(func() { u.h.OnTxError(err) })
			continue
		}
		isr(u.h.OnTxComplete)
	}
}

func (u *UART) StartRx(buf []byte) error {
	if u.h == nil {
		return halerr.ErrNotBound
	}
	if u.rxCancel != nil {
		return halerr.ErrRxRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	u.rxCancel = cancel
	u.rxDone = make(chan struct{})
	go u.rxLoop(ctx, buf)
	return nil
}

// rxLoop fills buf circularly, reporting the write position after each
// chunk the driver hands over.
func (u *UART) rxLoop(ctx context.Context, buf []byte) {
	defer close(u.rxDone)
	pos := 0
	for {
		n, err := u.hw.RecvSomeContext(ctx, buf[pos:])
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			isr(func() { u.h.OnRxError(err) })
			continue
		}
		pos += n
		at := pos
		if pos == len(buf) {
			pos = 0
		}
		isr(func() { u.h.OnRxEvent(at) })
	}
}

func (u *UART) StopRx() {
	if u.rxCancel == nil {
		return
	}
	u.rxCancel()
	<-u.rxDone
	u.rxCancel = nil
}

var _ sio.Transport = (*UART)(nil)

//go:build stm32h7

package stm32

import (
	"runtime/interrupt"
	"sync/atomic"
	"unsafe"

	"stm32zero-go/hal/halerr"
	"stm32zero-go/sio"
)

const (
	txStream = 1
	rxStream = 0
)

// DefaultKernelHz is the USART3 kernel clock (PCLK1) of the stock
// NUCLEO-H753ZI clock tree.
const DefaultKernelHz = 120_000_000

type Config struct {
	Baud     uint32 // default 115200
	KernelHz uint32 // default DefaultKernelHz
}

// USART is a sio.Transport over USART3 with DMA1 streams 0 (rx) and 1 (tx).
type USART struct {
	h      sio.Handler
	rxBuf  []byte
	txBusy atomic.Bool
}

// USART3 is the ST-LINK virtual COM port on NUCLEO-144 boards.
var USART3 = &USART{}

// Configure enables the peripheral clocks, programs the line and installs
// the three interrupt handlers. Call once before sio.New.
func (u *USART) Configure(cfg Config) error {
	if cfg.Baud == 0 {
		cfg.Baud = 115200
	}
	if cfg.KernelHz == 0 {
		cfg.KernelHz = DefaultKernelHz
	}
	ahb1enr.SetBits(rccDMA1EN)
	apb1lenr.SetBits(rccUSART3EN)

	usart3.CR1.Set(0)
	usart3.BRR.Set(brr(cfg.KernelHz, cfg.Baud))
	usart3.CR3.Set(cr3EIE | cr3DMAR | cr3DMAT)
	usart3.ICR.Set(0xFFFFFFFF)
	usart3.CR1.Set(cr1UE | cr1RE | cr1TE | cr1IDLEIE | cr1PEIE)

	dmamux1.CCR[rxStream].Set(reqUSART3RX)
	dmamux1.CCR[txStream].Set(reqUSART3TX)

	rx := interrupt.New(irqDMA1Stream0, func(interrupt.Interrupt) { USART3.rxDMAIRQ() })
	tx := interrupt.New(irqDMA1Stream1, func(interrupt.Interrupt) { USART3.txDMAIRQ() })
	line := interrupt.New(irqUSART3, func(interrupt.Interrupt) { USART3.lineIRQ() })
	for _, irq := range []interrupt.Interrupt{rx, tx, line} {
		irq.SetPriority(0x80)
		irq.Enable()
	}
	return nil
}

func (u *USART) Bind(h sio.Handler) { u.h = h }

// StartTx hands p to stream 1. p must stay untouched until OnTxComplete.
func (u *USART) StartTx(p []byte) error {
	if u.h == nil {
		return halerr.ErrNotBound
	}
	if len(p) == 0 || len(p) > 0xFFFF {
		return halerr.ErrTooLarge
	}
	if !u.txBusy.CompareAndSwap(false, true) {
		return halerr.ErrTxBusy
	}
	s := &dma1.S[txStream]
	s.CR.ClearBits(scrEN)
	for s.CR.HasBits(scrEN) {
	}
	dma1.clear(txStream, dmaAllIF)
	s.PAR.Set(uint32(uintptr(unsafe.Pointer(&usart3.TDR))))
	s.M0AR.Set(uint32(uintptr(unsafe.Pointer(&p[0]))))
	s.NDTR.Set(uint32(len(p)))
	s.FCR.Set(0)
	s.CR.Set(scrDirM2P | scrMINC | scrPLHigh | scrTRBUFF | scrTCIE | scrTEIE)
	s.CR.SetBits(scrEN)
	return nil
}

// StartRx runs stream 0 in circular mode over buf.
func (u *USART) StartRx(buf []byte) error {
	if u.h == nil {
		return halerr.ErrNotBound
	}
	if len(buf) == 0 || len(buf) > 0xFFFF {
		return halerr.ErrTooLarge
	}
	s := &dma1.S[rxStream]
	if s.CR.HasBits(scrEN) {
		return halerr.ErrRxRunning
	}
	u.rxBuf = buf
	dma1.clear(rxStream, dmaAllIF)
	s.PAR.Set(uint32(uintptr(unsafe.Pointer(&usart3.RDR))))
	s.M0AR.Set(uint32(uintptr(unsafe.Pointer(&buf[0]))))
	s.NDTR.Set(uint32(len(buf)))
	s.FCR.Set(0)
	s.CR.Set(scrCIRC | scrMINC | scrPLHigh | scrTRBUFF | scrHTIE | scrTCIE | scrTEIE)
	s.CR.SetBits(scrEN)
	return nil
}

func (u *USART) StopRx() {
	s := &dma1.S[rxStream]
	s.CR.ClearBits(scrEN)
	for s.CR.HasBits(scrEN) {
	}
	dma1.clear(rxStream, dmaAllIF)
}

func (u *USART) txDMAIRQ() {
	f := dma1.flags(txStream)
	dma1.clear(txStream, f)
	switch {
	case f&(dmaTEIF|dmaDMEIF) != 0:
		u.txBusy.Store(false)
		u.h.OnTxError(halerr.ErrTransfer)
	case f&dmaTCIF != 0:
		u.txBusy.Store(false)
		u.h.OnTxComplete()
	}
}

func (u *USART) rxDMAIRQ() {
	f := dma1.flags(rxStream)
	dma1.clear(rxStream, f)
	if f&(dmaTEIF|dmaDMEIF) != 0 {
		u.h.OnRxError(halerr.ErrTransfer)
		return
	}
	size := uint32(len(u.rxBuf))
	if f&dmaTCIF != 0 {
		u.h.OnRxEvent(rxPos(size, 0, true))
	}
	if f&dmaHTIF != 0 || f&dmaTCIF != 0 {
		u.h.OnRxEvent(rxPos(size, dma1.S[rxStream].NDTR.Get(), false))
	}
}

func (u *USART) lineIRQ() {
	isr := usart3.ISR.Get()
	if e := isr & icrErrors; e != 0 {
		usart3.ICR.Set(e)
		u.h.OnRxError(lineError(e))
	}
	if isr&isrIDLE != 0 {
		usart3.ICR.Set(isrIDLE)
		u.h.OnRxEvent(rxPos(uint32(len(u.rxBuf)), dma1.S[rxStream].NDTR.Get(), false))
	}
}

var _ sio.Transport = (*USART)(nil)

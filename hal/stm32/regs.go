//go:build stm32h7

package stm32

import (
	"runtime/volatile"
	"unsafe"
)

type usartRegs struct {
	CR1   volatile.Register32
	CR2   volatile.Register32
	CR3   volatile.Register32
	BRR   volatile.Register32
	GTPR  volatile.Register32
	RTOR  volatile.Register32
	RQR   volatile.Register32
	ISR   volatile.Register32
	ICR   volatile.Register32
	RDR   volatile.Register32
	TDR   volatile.Register32
	PRESC volatile.Register32
}

type dmaStream struct {
	CR   volatile.Register32
	NDTR volatile.Register32
	PAR  volatile.Register32
	M0AR volatile.Register32
	M1AR volatile.Register32
	FCR  volatile.Register32
}

type dmaRegs struct {
	LISR  volatile.Register32
	HISR  volatile.Register32
	LIFCR volatile.Register32
	HIFCR volatile.Register32
	S     [8]dmaStream
}

type dmamuxRegs struct {
	CCR [16]volatile.Register32
}

const (
	usart3Base  = 0x40004800
	dma1Base    = 0x40020000
	dmamux1Base = 0x40020800
	rccBase     = 0x58024400

	rccAHB1ENR  = rccBase + 0xD8
	rccAPB1LENR = rccBase + 0xE8
)

var (
	usart3  = (*usartRegs)(unsafe.Pointer(uintptr(usart3Base)))
	dma1    = (*dmaRegs)(unsafe.Pointer(uintptr(dma1Base)))
	dmamux1 = (*dmamuxRegs)(unsafe.Pointer(uintptr(dmamux1Base)))

	ahb1enr  = (*volatile.Register32)(unsafe.Pointer(uintptr(rccAHB1ENR)))
	apb1lenr = (*volatile.Register32)(unsafe.Pointer(uintptr(rccAPB1LENR)))
)

// RCC enables.
const (
	rccDMA1EN   = 1 << 0
	rccUSART3EN = 1 << 18
)

// USART bits (RM0433 48.7).
const (
	cr1UE     = 1 << 0
	cr1RE     = 1 << 2
	cr1TE     = 1 << 3
	cr1IDLEIE = 1 << 4
	cr1PEIE   = 1 << 8

	cr3EIE  = 1 << 0
	cr3DMAR = 1 << 6
	cr3DMAT = 1 << 7

	isrPE   = 1 << 0
	isrFE   = 1 << 1
	isrNE   = 1 << 2
	isrORE  = 1 << 3
	isrIDLE = 1 << 4

	// ICR clear bits share the ISR positions for these flags.
	icrErrors = isrPE | isrFE | isrNE | isrORE
)

// DMA stream CR bits (RM0433 15.5.5).
const (
	scrEN     = 1 << 0
	scrTEIE   = 1 << 2
	scrHTIE   = 1 << 3
	scrTCIE   = 1 << 4
	scrDirM2P = 1 << 6
	scrCIRC   = 1 << 8
	scrMINC   = 1 << 10
	scrPLHigh = 2 << 16
	scrTRBUFF = 1 << 20
)

// DMAMUX1 request lines (RM0433 table 121) and NVIC positions.
const (
	reqUSART3RX = 45
	reqUSART3TX = 46

	irqDMA1Stream0 = 11
	irqDMA1Stream1 = 12
	irqUSART3      = 39
)

func (d *dmaRegs) flags(s int) uint32 {
	if s < 4 {
		return streamFlags(d.LISR.Get(), s)
	}
	return streamFlags(d.HISR.Get(), s)
}

func (d *dmaRegs) clear(s int, f uint32) {
	if s < 4 {
		d.LIFCR.Set(f << flagShift(s))
		return
	}
	d.HIFCR.Set(f << flagShift(s))
}

// Package stm32 drives one STM32H7 USART through a pair of DMA1 streams
// routed by DMAMUX1: a memory-to-peripheral stream for transmit and a
// circular peripheral-to-memory stream for receive. Pin muxing and the
// clock tree are left to board start-up.
//
// The register overlays build only for stm32h7; the arithmetic below is
// shared so it can be tested on the host.
package stm32

import "stm32zero-go/hal/halerr"

// DMA stream interrupt status flags, relative to the stream's field in
// LISR/HISR.
const (
	dmaFEIF  = 1 << 0
	dmaDMEIF = 1 << 2
	dmaTEIF  = 1 << 3
	dmaHTIF  = 1 << 4
	dmaTCIF  = 1 << 5

	dmaAllIF = dmaFEIF | dmaDMEIF | dmaTEIF | dmaHTIF | dmaTCIF
)

// flagShift is the bit offset of stream s (0..7) inside LISR or HISR.
func flagShift(s int) uint32 {
	return [4]uint32{0, 6, 16, 22}[s&3]
}

// streamFlags extracts stream s's flags from the matching status register.
func streamFlags(isr uint32, s int) uint32 {
	return (isr >> flagShift(s)) & dmaAllIF
}

// brr computes the USART divider for oversampling by 16, rounded to
// nearest. It never returns less than 16, the smallest legal divider.
func brr(kernelHz, baud uint32) uint32 {
	if baud == 0 {
		return 0
	}
	d := (kernelHz + baud/2) / baud
	if d < 16 {
		d = 16
	}
	if d > 0xFFFF {
		d = 0xFFFF
	}
	return d
}

// rxPos converts a circular stream's remaining count into the write
// position sio expects. tc reports a completed lap; pos then equals size.
func rxPos(size, ndtr uint32, tc bool) int {
	if tc {
		return int(size)
	}
	if ndtr > size || ndtr == 0 {
		return 0
	}
	return int(size - ndtr)
}

// lineError picks the most significant USART error from ISR bits.
func lineError(isr uint32) error {
	switch {
	case isr&(1<<3) != 0:
		return halerr.ErrOverrun
	case isr&(1<<1) != 0:
		return halerr.ErrFraming
	case isr&(1<<0) != 0:
		return halerr.ErrParity
	default:
		return halerr.ErrNoise
	}
}

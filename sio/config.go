package sio

import (
	"stm32zero-go/x/cache"
	"stm32zero-go/x/dmamem"
	"stm32zero-go/x/mathx"
)

const (
	DefaultRxSize = 1024
	DefaultTxSize = 2048

	MaxRxSize = 8 * 1024
	MaxTxSize = 4 * 1024
	MaxDMA    = 1024
)

// Config sizes a Port's buffers. Zero values take the defaults.
type Config struct {
	RxSize  int // ring capacity, rounded up to a power of two
	TxSize  int // capacity of each of the two transmit slots
	DMASize int // receive staging buffer; 0 means DMA straight into the ring

	Cache     cache.Maintainer  // nil: the build's default
	Arena     *dmamem.Arena     // nil: the static arena
	NewSignal func() WaitSignal // nil: NewChanSignal
}

// Normalise fills defaults and clamps sizes to what the engines accept.
func (c Config) Normalise() Config {
	if c.RxSize <= 0 {
		c.RxSize = DefaultRxSize
	}
	c.RxSize = mathx.Clamp(c.RxSize, cache.LineSize, MaxRxSize)
	c.RxSize = int(mathx.NextPow2(uint32(c.RxSize)))

	if c.TxSize <= 0 {
		c.TxSize = DefaultTxSize
	}
	c.TxSize = mathx.Clamp(c.TxSize, cache.LineSize, MaxTxSize)

	if c.DMASize > 0 {
		c.DMASize = int(cache.Align(uintptr(mathx.Clamp(c.DMASize, cache.LineSize, MaxDMA))))
		if c.DMASize >= c.RxSize {
			c.DMASize = 0
		}
	} else {
		c.DMASize = 0
	}

	if c.Cache == nil {
		c.Cache = cache.Default()
	}
	if c.Arena == nil {
		c.Arena = dmamem.Static()
	}
	if c.NewSignal == nil {
		c.NewSignal = func() WaitSignal { return NewChanSignal() }
	}
	return c
}

// footprint is the arena space the buffers take.
func (c Config) footprint() int {
	line := func(n int) int { return int(cache.Align(uintptr(n))) }
	return line(c.RxSize) + line(c.DMASize) + 2*line(c.TxSize)
}

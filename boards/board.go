package boards

import (
	"stm32zero-go/sio"
	"stm32zero-go/x/cache"
)

// Board describes the console UART a target exposes and how its serial
// buffers are sized. It must not include pin muxing or clock setup.
type Board struct {
	Name string
	UART string // controller identity, e.g. "usart3"
	Baud uint32

	RxSize  int // receive ring
	TxSize  int // each transmit slot
	DMASize int // receive staging buffer; 0 means DMA into the ring

	// CacheLine is the D-cache line size; 0 for parts without a D-cache.
	CacheLine int
}

// HasDCache reports whether DMA buffers need cache maintenance.
func (b Board) HasDCache() bool { return b.CacheLine > 0 }

// SIOConfig returns the port sizing for this board. Cache maintenance and
// arena come from the build.
func (b Board) SIOConfig() sio.Config {
	return sio.Config{RxSize: b.RxSize, TxSize: b.TxSize, DMASize: b.DMASize}
}

// Check reports descriptor values the sio layer would silently adjust.
func (b Board) Check() error {
	if b.CacheLine != 0 && b.CacheLine != cache.LineSize {
		return badBoard(b, "cache line does not match build")
	}
	n := b.SIOConfig().Normalise()
	switch {
	case n.RxSize != b.RxSize:
		return badBoard(b, "rx size not a power of two in range")
	case n.TxSize != b.TxSize:
		return badBoard(b, "tx size out of range")
	case n.DMASize != b.DMASize:
		return badBoard(b, "dma staging size not usable")
	}
	return nil
}

func (b Board) String() string { return b.Name + "/" + b.UART }

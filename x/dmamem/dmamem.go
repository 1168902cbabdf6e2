// Package dmamem hands out DMA-capable, cache-line-aligned byte regions.
//
// Regions are carved from an arena that lives for the whole program and are
// never resized or freed: DMA engines hold raw addresses, so the memory must
// not move and must not be reused behind their back.
package dmamem

import (
	"sync"
	"unsafe"

	"stm32zero-go/x/cache"
)

// Placement tags a region with the direction of the DMA traffic it carries.
type Placement uint8

const (
	Any Placement = iota
	TX            // memory-to-peripheral
	RX            // peripheral-to-memory
)

func (p Placement) String() string {
	switch p {
	case TX:
		return "tx"
	case RX:
		return "rx"
	default:
		return "any"
	}
}

// StaticSize is the size of the program-lifetime arena used by Alloc.
const StaticSize = 16 * 1024

var (
	staticMem [StaticSize + cache.LineSize]byte
	static    = over(staticMem[:], StaticSize)
)

// Alloc carves a region of n bytes from the static arena.
func Alloc(n int, p Placement) *Region { return static.Alloc(n, p) }

// Static returns the program-lifetime arena behind Alloc.
func Static() *Arena { return static }

// StaticFree reports the bytes still available in the static arena.
func StaticFree() int { return static.Free() }

// Region is a fixed-capacity DMA buffer whose first byte sits on a cache line
// boundary and whose reserved span is a whole number of lines.
type Region struct {
	buf       []byte
	placement Placement
}

// Wrap adopts caller-provided memory (for example a linker-placed array).
// It panics if b does not start on a cache line or is empty.
func Wrap(b []byte, p Placement) *Region {
	if len(b) == 0 {
		panic("dmamem: empty region")
	}
	r := &Region{buf: b, placement: p}
	if !cache.IsAligned(r.Addr()) {
		panic("dmamem: region not cache-line aligned")
	}
	return r
}

// Cap returns the usable capacity in bytes.
func (r *Region) Cap() int { return len(r.buf) }

// AlignedSize returns the capacity rounded up to whole cache lines.
func (r *Region) AlignedSize() int { return int(cache.Align(uintptr(len(r.buf)))) }

// Bytes returns the full-capacity backing slice. Software may touch it only
// while it owns the region.
func (r *Region) Bytes() []byte { return r.buf }

// Addr returns the bus address of the first byte.
func (r *Region) Addr() uintptr { return uintptr(unsafe.Pointer(&r.buf[0])) }

// Pointer returns the first byte as an unsafe.Pointer for register setup.
func (r *Region) Pointer() unsafe.Pointer { return unsafe.Pointer(&r.buf[0]) }

// Placement returns the direction tag.
func (r *Region) Placement() Placement { return r.placement }

// Arena is a bump allocator over an aligned block. It never frees.
type Arena struct {
	mu  sync.Mutex
	mem []byte
	off int
}

// NewArena allocates an arena able to hold size bytes of regions.
func NewArena(size int) *Arena {
	if size <= 0 {
		panic("dmamem: arena size must be > 0")
	}
	size = int(cache.Align(uintptr(size)))
	return over(make([]byte, size+cache.LineSize), size)
}

// over builds an arena of at most size bytes on raw, skipping to the first
// line boundary. raw carries one spare line for the skip.
func over(raw []byte, size int) *Arena {
	base := uintptr(unsafe.Pointer(&raw[0]))
	skip := int(cache.Align(base) - base)
	usable := int(cache.AlignDown(uintptr(len(raw) - skip)))
	if usable > size {
		usable = size
	}
	return &Arena{mem: raw[skip : skip+usable]}
}

// Alloc carves n bytes, reserving whole cache lines so neighbouring regions
// never share a line. It panics when the arena is exhausted.
func (a *Arena) Alloc(n int, p Placement) *Region {
	if n <= 0 {
		panic("dmamem: region size must be > 0")
	}
	span := int(cache.Align(uintptr(n)))
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.off+span > len(a.mem) {
		panic("dmamem: arena exhausted")
	}
	b := a.mem[a.off : a.off+n : a.off+span]
	a.off += span
	return Wrap(b, p)
}

// Free reports the bytes still available.
func (a *Arena) Free() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.mem) - a.off
}

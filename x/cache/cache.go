// Package cache wraps data-cache maintenance for DMA buffers. Every range
// handed to a Maintainer is widened to whole cache lines first: partial-line
// clean or invalidate would corrupt a neighbouring buffer sharing the line.
package cache

import "unsafe"

// LineSize is the D-cache line size of the Cortex-M7 parts (STM32H7). Parts
// without a data cache use the same value so buffer layout stays identical.
const LineSize = 32

// Align rounds n up to the next multiple of LineSize. Align(0) == 0.
func Align(n uintptr) uintptr {
	return (n + LineSize - 1) &^ (LineSize - 1)
}

// AlignDown rounds n down to a multiple of LineSize.
func AlignDown(n uintptr) uintptr {
	return n &^ (LineSize - 1)
}

// IsAligned reports whether n is a multiple of LineSize.
func IsAligned(n uintptr) bool { return n&(LineSize-1) == 0 }

// Range widens [addr, addr+n) to whole lines and returns the line-aligned
// start and length. A zero-length range stays empty.
func Range(addr uintptr, n int) (start uintptr, length int) {
	if n <= 0 {
		return AlignDown(addr), 0
	}
	start = AlignDown(addr)
	end := Align(addr + uintptr(n))
	return start, int(end - start)
}

// Maintainer performs clean (write back) and invalidate (discard) by address
// range. Implementations receive line-aligned ranges only.
type Maintainer interface {
	// Clean writes dirty lines back to memory before a DMA read of them.
	Clean(addr uintptr, n int)
	// Invalidate discards cached lines after a DMA write to them.
	Invalidate(addr uintptr, n int)
}

// Addr returns the address of the first byte of b, or 0 for an empty slice.
func Addr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

// CleanBytes cleans the lines covering b.
func CleanBytes(m Maintainer, b []byte) {
	if len(b) == 0 {
		return
	}
	start, n := Range(Addr(b), len(b))
	m.Clean(start, n)
}

// InvalidateBytes invalidates the lines covering b.
func InvalidateBytes(m Maintainer, b []byte) {
	if len(b) == 0 {
		return
	}
	start, n := Range(Addr(b), len(b))
	m.Invalidate(start, n)
}

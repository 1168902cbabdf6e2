// Package shmring is a single-producer, single-consumer byte ring with
// coalesced edge notifications. The host simulator uses one per direction
// of a UART line.
package shmring

import (
	"sync/atomic"
)

// Ring is a single-producer, single-consumer byte ring.
type Ring struct {
	buf  []byte
	mask uint32
	rd   atomic.Uint32 // consumer index (monotonic)
	wr   atomic.Uint32 // producer index (monotonic)

	readable chan struct{} // 0->>0 available edge
	writable chan struct{} // full->not full edge
}

// New allocates a ring of size bytes. size must be a power of two >= 2.
func New(size int) *Ring {
	if size < 2 || (size&(size-1)) != 0 {
		panic("shmring: size must be power of two >= 2")
	}
	return &Ring{
		buf:      make([]byte, size),
		mask:     uint32(size - 1),
		readable: make(chan struct{}, 1),
		writable: make(chan struct{}, 1),
	}
}

func (r *Ring) size() uint32 { return uint32(len(r.buf)) }

// Size is the ring capacity.
func (r *Ring) Size() int { return len(r.buf) }

// Producer side

func (r *Ring) Space() int {
	rd := r.rd.Load()
	wr := r.wr.Load()
	return int(r.size() - (wr - rd))
}

// TryWriteFrom copies as much of src as fits and returns the count.
func (r *Ring) TryWriteFrom(src []byte) (n int) {
	if len(src) == 0 {
		return 0
	}
	rd := r.rd.Load()
	wr := r.wr.Load()
	beforeAvail := wr - rd
	space := int(r.size() - beforeAvail)
	if space <= 0 {
		return 0
	}
	n = min(space, len(src))

	wrIdx := wr & r.mask
	first := min(int(r.size()-wrIdx), n)
	copy(r.buf[wrIdx:wrIdx+uint32(first)], src[:first])
	if second := n - first; second > 0 {
		copy(r.buf[:second], src[first:n])
	}
	r.wr.Store(wr + uint32(n)) // release

	if beforeAvail == 0 {
		notify(r.readable)
	}
	return n
}

// Consumer side

func (r *Ring) Available() int {
	rd := r.rd.Load()
	wr := r.wr.Load()
	return int(wr - rd)
}

// TryReadInto copies up to len(dst) bytes out and returns the count.
func (r *Ring) TryReadInto(dst []byte) (n int) {
	if len(dst) == 0 {
		return 0
	}
	rd := r.rd.Load()
	wr := r.wr.Load() // acquire
	avail := int(wr - rd)
	if avail <= 0 {
		return 0
	}
	n = min(avail, len(dst))

	rdIdx := rd & r.mask
	first := min(int(r.size()-rdIdx), n)
	copy(dst[:first], r.buf[rdIdx:rdIdx+uint32(first)])
	if second := n - first; second > 0 {
		copy(dst[first:n], r.buf[:second])
	}
	r.rd.Store(rd + uint32(n)) // release

	if wr-rd == r.size() {
		notify(r.writable)
	}
	return n
}

// Discard drops everything currently buffered. Consumer side only.
func (r *Ring) Discard() int {
	rd := r.rd.Load()
	wr := r.wr.Load()
	r.rd.Store(wr)
	if wr-rd == r.size() {
		notify(r.writable)
	}
	return int(wr - rd)
}

func (r *Ring) Watermarks() (rd, wr uint32) {
	return r.rd.Load(), r.wr.Load()
}

func (r *Ring) Readable() <-chan struct{} { return r.readable }
func (r *Ring) Writable() <-chan struct{} { return r.writable }

func notify(c chan struct{}) {
	select {
	case c <- struct{}{}:
	default:
	}
}

package cache

import "sync"

// OpKind distinguishes recorded maintenance operations.
type OpKind uint8

const (
	OpClean OpKind = iota
	OpInvalidate
)

func (k OpKind) String() string {
	if k == OpInvalidate {
		return "invalidate"
	}
	return "clean"
}

// Op is one recorded maintenance call.
type Op struct {
	Kind OpKind
	Addr uintptr
	Len  int
}

// Recorder is a Maintainer for host builds and tests. It records every call
// and counts ranges that do not start and end on a line boundary.
type Recorder struct {
	mu         sync.Mutex
	ops        []Op
	misaligned int
}

func (r *Recorder) Clean(addr uintptr, n int)      { r.record(OpClean, addr, n) }
func (r *Recorder) Invalidate(addr uintptr, n int) { r.record(OpInvalidate, addr, n) }

func (r *Recorder) record(k OpKind, addr uintptr, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !IsAligned(addr) || !IsAligned(uintptr(n)) {
		r.misaligned++
	}
	r.ops = append(r.ops, Op{Kind: k, Addr: addr, Len: n})
}

// Ops returns a copy of the recorded operations.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Op(nil), r.ops...)
}

// Misaligned returns the number of partial-line ranges seen.
func (r *Recorder) Misaligned() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.misaligned
}

// Reset clears the log.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.ops = nil
	r.misaligned = 0
	r.mu.Unlock()
}

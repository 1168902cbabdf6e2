package shmring

import "sync"

// Wires are rings registered by name so that independently configured
// endpoints in one process can meet on the same line.
var (
	regMu sync.Mutex
	reg   = map[string]*Ring{}
)

// Attach returns the ring registered as name, creating one of the given
// size if none exists. created reports which happened.
func Attach(name string, size int) (r *Ring, created bool) {
	regMu.Lock()
	defer regMu.Unlock()
	if r = reg[name]; r != nil {
		return r, false
	}
	r = New(size)
	reg[name] = r
	return r, true
}

// Lookup returns the ring registered as name, or nil.
func Lookup(name string) *Ring {
	regMu.Lock()
	defer regMu.Unlock()
	return reg[name]
}

// Detach removes name from the registry. Existing pointers stay valid.
func Detach(name string) {
	regMu.Lock()
	delete(reg, name)
	regMu.Unlock()
}

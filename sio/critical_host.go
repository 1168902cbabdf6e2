//go:build !tinygo

package sio

import "sync"

// isrMu stands in for the interrupt mask on the host: simulated interrupts
// and task critical sections exclude each other, as on a single core.
var isrMu sync.Mutex

func critical(fn func()) {
	isrMu.Lock()
	defer isrMu.Unlock()
	fn()
}

// Interrupt runs fn as if from an interrupt service routine. Simulated
// transports deliver every Handler callback through it.
func Interrupt(fn func()) {
	isrMu.Lock()
	defer isrMu.Unlock()
	fn()
}

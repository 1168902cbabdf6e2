//go:build tinygo

package sio

import "runtime/interrupt"

// critical runs fn with interrupts masked.
func critical(fn func()) {
	state := interrupt.Disable()
	defer interrupt.Restore(state)
	fn()
}

// Interrupt runs a handler callback. On target the caller is already the
// interrupt service routine.
func Interrupt(fn func()) { fn() }

//go:build !tinygo

package main

import (
	"stm32zero-go/boards"
	"stm32zero-go/hal/sim"
	"stm32zero-go/sio"
)

// On the host the console is a simulated loopback line.
func openTransport(b boards.Board) (sio.Transport, bool, error) {
	return sim.Loopback(4096, sim.Options{Name: b.UART, Baud: b.Baud}), true, nil
}

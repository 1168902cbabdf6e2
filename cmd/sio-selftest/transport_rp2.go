//go:build rp2040 || rp2350

package main

import (
	"github.com/jangala-dev/tinygo-uartx/uartx"

	"stm32zero-go/boards"
	"stm32zero-go/hal/rp2"
	"stm32zero-go/sio"
)

func openTransport(b boards.Board) (sio.Transport, bool, error) {
	u, err := rp2.Open(uartx.UART0, uartx.UARTConfig{BaudRate: b.Baud})
	if err != nil {
		return nil, false, err
	}
	return u, false, nil
}

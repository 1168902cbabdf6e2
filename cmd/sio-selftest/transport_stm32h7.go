//go:build stm32h7

package main

import (
	"stm32zero-go/boards"
	"stm32zero-go/hal/stm32"
	"stm32zero-go/sio"
)

func openTransport(b boards.Board) (sio.Transport, bool, error) {
	err := stm32.USART3.Configure(stm32.Config{Baud: b.Baud})
	return stm32.USART3, false, err
}

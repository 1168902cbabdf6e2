package boards

import "stm32zero-go/errcode"

// NucleoH753ZI routes the console through the ST-LINK VCP on USART3.
var NucleoH753ZI = Board{
	Name:      "nucleo-h753zi",
	UART:      "usart3",
	Baud:      115200,
	RxSize:    1024,
	TxSize:    4096,
	CacheLine: 32,
}

// WeActH503 has no D-cache; reception is staged through a small DMA buffer.
var WeActH503 = Board{
	Name:    "weact-h503",
	UART:    "usart1",
	Baud:    115200,
	RxSize:  256,
	TxSize:  2048,
	DMASize: 64,
}

var Pico = Board{
	Name:   "pico",
	UART:   "uart0",
	Baud:   115200,
	RxSize: 1024,
	TxSize: 512,
}

// Host sizes the simulator ports like the H7 part so the cache paths run.
var Host = Board{
	Name:      "host",
	UART:      "sim0",
	Baud:      0,
	RxSize:    1024,
	TxSize:    2048,
	CacheLine: 32,
}

// All lists every known descriptor.
func All() []Board { return []Board{NucleoH753ZI, WeActH503, Pico, Host} }

// Lookup finds a descriptor by name.
func Lookup(name string) (Board, bool) {
	for _, b := range All() {
		if b.Name == name {
			return b, true
		}
	}
	return Board{}, false
}

func badBoard(b Board, msg string) error {
	return &errcode.E{C: errcode.InvalidParams, Op: "boards." + b.Name, Msg: msg}
}

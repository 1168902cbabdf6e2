//go:build !tinygo

package sim

import "time"

// Kind classifies a simulated hardware event.
type Kind uint8

const (
	TxStart Kind = iota
	TxDone
	TxError
	RxEvent
	RxError
)

func (k Kind) String() string {
	switch k {
	case TxStart:
		return "tx_start"
	case TxDone:
		return "tx_done"
	case TxError:
		return "tx_error"
	case RxEvent:
		return "rx_event"
	case RxError:
		return "rx_error"
	default:
		return "unknown"
	}
}

// Event is one hardware-level occurrence on a simulated port.
type Event struct {
	At   time.Time
	Port string
	Kind Kind
	N    int // bytes moved
	Pos  int // DMA position for RxEvent
	Err  error
}

// Tracer receives events from the simulator goroutines. Implementations
// must be safe for concurrent use.
type Tracer interface {
	Record(Event)
}

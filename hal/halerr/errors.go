package halerr

import "errors"

var (
	// Transfer control
	ErrTxBusy    = errors.New("tx_busy")
	ErrNotBound  = errors.New("not_bound")
	ErrRxRunning = errors.New("rx_running")
	ErrStopped   = errors.New("stopped")
	ErrTooLarge  = errors.New("buffer_too_large")

	// Line and DMA faults
	ErrTransfer = errors.New("dma_transfer_error")
	ErrFraming  = errors.New("framing_error")
	ErrNoise    = errors.New("noise_error")
	ErrParity   = errors.New("parity_error")
	ErrOverrun  = errors.New("uart_overrun")

	// Simulation
	ErrInjected = errors.New("injected_fault")

	// Generic / pass-through
	ErrUnsupported = errors.New("unsupported")
)

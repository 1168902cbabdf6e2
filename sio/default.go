package sio

import (
	"sync/atomic"

	"stm32zero-go/errcode"
)

var std atomic.Pointer[Port]

// Init builds the program's default port. A second call fails with Busy.
func Init(t Transport, cfg Config) (*Port, error) {
	if std.Load() != nil {
		return nil, &errcode.E{C: errcode.Busy, Op: "sio.init", Msg: "already initialised"}
	}
	p, err := New(t, cfg)
	if err != nil {
		return nil, err
	}
	if !std.CompareAndSwap(nil, p) {
		p.Close()
		return nil, &errcode.E{C: errcode.Busy, Op: "sio.init", Msg: "already initialised"}
	}
	return p, nil
}

// Default returns the port built by Init, or nil.
func Default() *Port { return std.Load() }

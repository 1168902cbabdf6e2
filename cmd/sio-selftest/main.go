// sio-selftest runs the runtime check suite over the board's console port,
// then echoes typed lines.
package main

import (
	"sync/atomic"
	"time"

	"stm32zero-go/boards"
	"stm32zero-go/selftest"
	"stm32zero-go/sio"
)

func main() {
	println("[sio] boot …")
	time.Sleep(100 * time.Millisecond)

	b := boards.Selected
	if err := b.Check(); err != nil {
		println("[sio] FAIL: board", b.String(), err.Error())
		return
	}
	t, loop, err := openTransport(b)
	if err != nil {
		println("[sio] FAIL: transport", err.Error())
		return
	}
	p, err := sio.Init(t, b.SIOConfig())
	if err != nil {
		println("[sio] FAIL: init", err.Error())
		return
	}
	println("[sio] up on", b.String())

	// Interrupt context: count only, report from the task.
	p.OnError(func(sio.Fault) { faults.Add(1) })

	out := func(line []byte) {
		if loop {
			// The port's TX feeds its RX; keep the report off the wire.
			println(string(line))
			return
		}
		p.Write(line)
		p.WriteString("\r\n")
	}

	r := selftest.Run(p, out, selftest.Options{Loopback: loop})
	if n := faults.Load(); n > 0 {
		println("[sio] faults reported:", n)
	}
	if pass, fail := r.Counts(); fail > 0 {
		println("[sio] suite:", pass, "passed,", fail, "failed")
	}
	if loop {
		return
	}
	selftest.Echo(p, out, 5*time.Second)
}

var faults atomic.Uint32

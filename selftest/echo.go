package selftest

import (
	"time"

	"stm32zero-go/errcode"
	"stm32zero-go/sio"
	"stm32zero-go/x/conv"
)

// Echo waits for a key, then echoes typed lines until the port closes.
// Each pass allows idle seconds for a line.
func Echo(p *sio.Port, out func(line []byte), idle time.Duration) {
	if idle <= 0 {
		idle = 5 * time.Second
	}
	say := func(s string) { out([]byte(s)) }
	say("Press any key to run interactive SIO tests...")
	if !p.Wait(sio.Forever) {
		return
	}
	p.Discard()
	say("")
	say("--- Interactive SIO Tests ---")
	say("Type a line and press Enter:")

	buf := make([]byte, 128)
	msg := make([]byte, 0, 160)
	for {
		res := p.RecvLine(buf, idle)
		switch res.Status {
		case errcode.OK:
			msg = append(msg[:0], "Echo["...)
			msg = conv.AppendInt(msg, int64(res.N))
			msg = append(msg, "]: "...)
			msg = append(msg, buf[:res.N]...)
			out(msg)
		case errcode.Timeout:
			say("(timeout - type something)")
		default:
			return
		}
	}
}

package selftest

import (
	"time"

	"stm32zero-go/errcode"
	"stm32zero-go/sio"
)

// Options select the checks that need the port's TX wired to its RX.
type Options struct {
	Loopback bool
	Settle   time.Duration // time for echoed bytes to land once the wire idles
}

// within reports whether d falls in the tolerance band around 50ms.
func within(d time.Duration) bool {
	return d >= 40*time.Millisecond && d <= 100*time.Millisecond
}

// drain waits for the transmitter, lets echoed bytes land, then drops
// whatever is buffered.
func drain(p *sio.Port, o Options) {
	p.FlushWait(time.Second)
	if o.Loopback {
		time.Sleep(o.Settle)
	}
	p.Discard()
}

// SIO exercises the port's task-side API.
func SIO(r *Reporter, p *sio.Port, o Options) {
	if o.Settle <= 0 {
		o.Settle = 20 * time.Millisecond
	}

	msg := "SIO init test\r\n"
	n, err := p.WriteString(msg)
	r.Check(err == nil && n > 0, "port initialised (write works)")

	msg = "Hello, STM32ZERO!\r\n"
	res := p.Send([]byte(msg))
	r.CheckEq(res.N, len(msg), "Send returns correct length")
	r.CheckEq(p.Send(nil).N, 0, "Send empty returns 0")
	bin := []byte{0x00, 0x01, 0x02, 0xFF, 0xFE, 0xFD}
	r.CheckEq(p.Send(bin).N, len(bin), "Send binary data")

	p.Send([]byte("Flush test\r\n"))
	res = p.Flush(time.Second)
	r.CheckStatus(string(res.Status), string(errcode.OK), "Flush starts transfer")
	r.Check(p.FlushWait(time.Second), "FlushWait drains to idle")
	r.Check(p.Writable(), "Writable after drain")

	drain(p, o)
	buf := make([]byte, 64)
	res = p.Recv(buf, sio.NoWait)
	r.CheckEq(res.N, 0, "Recv returns 0 when empty")
	r.CheckStatus(string(res.Status), string(errcode.BufferEmpty), "Recv reports buffer_empty")
	r.Check(p.IsEmpty(), "IsEmpty when drained")

	start := time.Now()
	res = p.Recv(buf[:10], 50*time.Millisecond)
	el := time.Since(start)
	r.CheckStatus(string(res.Status), string(errcode.Timeout), "Recv(timeout) times out")
	r.Check(within(el), "Recv(timeout) waits ~50ms")

	start = time.Now()
	ready := p.Wait(50 * time.Millisecond)
	el = time.Since(start)
	r.Check(!ready, "Wait returns false on timeout")
	r.Check(within(el), "Wait waits ~50ms")

	start = time.Now()
	res = p.RecvLine(buf, 50*time.Millisecond)
	el = time.Since(start)
	r.CheckStatus(string(res.Status), string(errcode.Timeout), "RecvLine times out with no data")
	r.Check(within(el), "RecvLine waits ~50ms")

	x := make([]byte, 256)
	for i := range x {
		x[i] = 'X'
	}
	before := p.TxWaterMark()
	p.Send(x)
	p.Flush(time.Second)
	r.Check(p.TxWaterMark() >= 100, "TX watermark > 100 after write")
	r.Check(p.TxWaterMark() >= before, "TX watermark monotonic")
	r.Check(p.RxWaterMark() < 65535, "RX watermark in range")

	if o.Loopback {
		loopback(r, p, o)
	}
	drain(p, o)
}

func loopback(r *Reporter, p *sio.Port, o Options) {
	drain(p, o)

	want := make([]byte, 64)
	for i := range want {
		want[i] = byte(i)
	}
	p.Send(want)
	p.Flush(time.Second)
	got := make([]byte, 0, 64)
	tmp := make([]byte, 64)
	deadline := time.Now().Add(time.Second)
	for len(got) < len(want) && time.Now().Before(deadline) {
		res := p.Recv(tmp[:len(want)-len(got)], 100*time.Millisecond)
		got = append(got, tmp[:res.N]...)
	}
	r.Check(string(got) == string(want), "loopback round trip 0x00..0x3F")

	p.WriteString("peek\n")
	p.Wait(time.Second)
	time.Sleep(o.Settle)
	avail := p.Available()
	p.Peek(tmp[:4])
	r.CheckEq(p.Available(), avail, "Peek leaves available unchanged")

	line := make([]byte, 32)
	res := p.RecvLine(line, time.Second)
	r.CheckEq(res.N, 4, "RecvLine strips terminator")
	r.Check(string(line[:res.N]) == "peek" && line[res.N] == 0, "RecvLine text and NUL")

	capacity(r, p, o)
}

// capacity fills the ring exactly, then overflows it by one byte.
func capacity(r *Reporter, p *sio.Port, o Options) {
	drain(p, o)
	_, rx := p.Engines()
	size := rx.Size()
	before := p.Stats().RxOverruns

	fill := make([]byte, size)
	for i := range fill {
		fill[i] = byte(i)
	}
	p.Write(fill)
	deadline := time.Now().Add(2 * time.Second)
	for p.Available() < size && time.Now().Before(deadline) {
		time.Sleep(o.Settle)
	}
	r.CheckEq(p.Available(), size, "ring holds exactly capacity bytes")
	r.CheckEq(int(p.Stats().RxOverruns-before), 0, "no overrun at capacity")

	p.Write([]byte{0xEE})
	deadline = time.Now().Add(time.Second)
	for p.Stats().RxOverruns == before && time.Now().Before(deadline) {
		time.Sleep(o.Settle)
	}
	r.CheckEq(int(p.Stats().RxOverruns-before), 1, "capacity+1 overruns once")
	p.Discard()
}

package selftest

import (
	"stm32zero-go/sio"
	"stm32zero-go/x/cache"
	"stm32zero-go/x/dmamem"
	"stm32zero-go/x/mathx"
)

// Core checks DMA regions, cache alignment and the interrupt hand-off
// without touching a UART.
func Core(r *Reporter) {
	a := dmamem.NewArena(256)
	free := a.Free()
	tx := a.Alloc(64, dmamem.TX)
	rx := a.Alloc(48, dmamem.RX)

	buf := tx.Bytes()
	for i := range buf {
		buf[i] = byte(i ^ 0x5A)
	}
	ok := true
	for i, b := range buf {
		if b != byte(i^0x5A) {
			ok = false
		}
	}
	r.Check(ok, "DMA region write/read pattern")
	r.CheckEq(tx.Cap(), 64, "DMA region capacity")
	r.Check(cache.IsAligned(tx.Addr()), "DMA region TX cache-line aligned (32 bytes)")
	r.Check(cache.IsAligned(rx.Addr()), "DMA region RX cache-line aligned (32 bytes)")
	r.CheckEq(rx.AlignedSize(), 64, "DMA region RX rounded to whole lines")
	r.CheckEq(free-a.Free(), 128, "arena reserves whole lines per region")

	r.CheckEq(int(cache.Align(100)), 128, "cache.Align(100)")
	r.CheckEq(int(cache.Align(32)), 32, "cache.Align(32)")
	r.CheckEq(int(cache.Align(0)), 0, "cache.Align(0)")
	props := true
	for x := uintptr(0); x < 4*cache.LineSize; x++ {
		y := cache.Align(x)
		if cache.Align(y) != y || y < x || y >= x+cache.LineSize {
			props = false
		}
	}
	r.Check(props, "cache.Align idempotent and bounded")

	r.Check(mathx.IsPow2(256) && !mathx.IsPow2(300), "power-of-two test")
	r.CheckEq(int(mathx.NextPow2(300)), 512, "NextPow2(300)")

	n := 0
	sio.Interrupt(func() { n++ })
	sio.Interrupt(func() { n++ })
	r.CheckEq(n, 2, "interrupt hand-off runs callbacks")
}

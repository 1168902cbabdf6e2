package sio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stm32zero-go/errcode"
	"stm32zero-go/x/cache"
	"stm32zero-go/x/dmamem"
)

func TestRxRoundTrip(t *testing.T) {
	e, _, f := newRx(t, 256, 0)
	want := seq(0x40)
	f.feed(want)

	require.Equal(t, 0x40, e.Available())
	got := make([]byte, 0x40)
	r := e.Read(got, NoWait)
	require.True(t, r.OK())
	require.Equal(t, 0x40, r.N)
	require.Equal(t, want, got)
	require.True(t, e.IsEmpty())
}

func TestRxExactCapacityNoOverrun(t *testing.T) {
	e, _, f := newRx(t, 256, 0)
	want := seq(256)
	f.feed(want)

	require.Equal(t, 0, e.Overruns())
	require.Equal(t, 256, e.Available())
	got := make([]byte, 300)
	r := e.Read(got, NoWait)
	require.Equal(t, 256, r.N)
	require.Equal(t, want, got[:r.N])
}

func TestRxCapacityPlusOneOverrunsOnce(t *testing.T) {
	e, _, f := newRx(t, 256, 0)
	var lost []int
	e.OnOverrun = func(n int) { lost = append(lost, n) }
	data := make([]byte, 257)
	for i := range data {
		data[i] = byte(i * 7)
	}
	f.feed(data)

	require.Equal(t, 1, e.Overruns())
	require.Equal(t, []int{1}, lost)
	require.Equal(t, 256, e.Available())

	got := make([]byte, 256)
	r := e.Read(got, NoWait)
	require.Equal(t, 256, r.N)
	require.Equal(t, data[1:], got, "oldest byte is the one overwritten")
}

func TestRxReadTimeout(t *testing.T) {
	e, _, _ := newRx(t, 64, 0)
	buf := make([]byte, 8)

	r := e.Read(buf, NoWait)
	require.Equal(t, errcode.BufferEmpty, r.Status)
	require.Zero(t, r.N)

	start := time.Now()
	r = e.Read(buf, 50*time.Millisecond)
	elapsed := time.Since(start)
	require.Equal(t, errcode.Timeout, r.Status)
	require.Zero(t, r.N)
	require.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
	require.Less(t, elapsed, 100*time.Millisecond)
}

func TestRxReadWakesOnData(t *testing.T) {
	e, _, f := newRx(t, 64, 0)
	go func() {
		time.Sleep(10 * time.Millisecond)
		f.feed([]byte("ping"))
	}()
	buf := make([]byte, 8)
	r := e.Read(buf, time.Second)
	require.True(t, r.OK())
	require.Equal(t, "ping", string(buf[:r.N]))
}

func TestRxReadLine(t *testing.T) {
	e, _, f := newRx(t, 64, 0)
	f.feed([]byte("hello\r\nworld\n"))

	buf := make([]byte, 16)
	r := e.ReadLine(buf, NoWait)
	require.True(t, r.OK())
	require.Equal(t, "hello", string(buf[:r.N]))
	require.Zero(t, buf[r.N])

	r = e.ReadLine(buf, NoWait)
	require.True(t, r.OK())
	require.Equal(t, "world", string(buf[:r.N]))
	require.True(t, e.IsEmpty())
}

func TestRxReadLineFullBuffer(t *testing.T) {
	e, _, f := newRx(t, 64, 0)
	f.feed([]byte("abcdef\n"))

	buf := make([]byte, 4)
	r := e.ReadLine(buf, NoWait)
	require.True(t, r.OK())
	require.Equal(t, 3, r.N)
	require.Equal(t, []byte{'a', 'b', 'c', 0}, buf)
	require.Equal(t, 4, e.Available())
}

func TestRxReadLineTimeoutKeepsPartial(t *testing.T) {
	e, _, f := newRx(t, 64, 0)
	f.feed([]byte("par"))

	buf := make([]byte, 16)
	start := time.Now()
	r := e.ReadLine(buf, 30*time.Millisecond)
	require.Equal(t, errcode.Timeout, r.Status)
	require.Equal(t, 3, r.N)
	require.Equal(t, "par", string(buf[:r.N]))
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	require.Equal(t, errcode.InvalidParams, e.ReadLine(nil, NoWait).Status)
}

func TestRxReadLineTimeoutBoundsTrickle(t *testing.T) {
	e, _, f := newRx(t, 256, 0)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		tick := time.NewTicker(5 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				f.feed([]byte{'x'})
			}
		}
	}()

	buf := make([]byte, 128)
	start := time.Now()
	r := e.ReadLine(buf, 50*time.Millisecond)
	elapsed := time.Since(start)
	require.Equal(t, errcode.Timeout, r.Status)
	require.Positive(t, r.N)
	require.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
	require.Less(t, elapsed, 100*time.Millisecond)
}

func TestRxCloseWakesAllReaders(t *testing.T) {
	e, _, _ := newRx(t, 64, 0)
	done := make(chan errcode.Code, 3)
	go func() { done <- e.Read(make([]byte, 4), Forever).Status }()
	go func() { done <- e.ReadLine(make([]byte, 8), Forever).Status }()
	go func() {
		e.Wait(Forever)
		done <- errcode.Closed
	}()
	time.Sleep(10 * time.Millisecond)

	e.Close()
	for i := 0; i < 3; i++ {
		select {
		case st := <-done:
			require.Equal(t, errcode.Closed, st)
		case <-time.After(time.Second):
			t.Fatalf("reader %d still blocked after Close", i)
		}
	}
}

func TestRxWaterMarkSurvivesDrain(t *testing.T) {
	e, _, f := newRx(t, 64, 0)
	f.feed(seq(40))
	require.Equal(t, 40, e.WaterMark())

	require.Equal(t, 40, e.Read(make([]byte, 64), NoWait).N)
	require.Equal(t, 40, e.WaterMark())
	f.feed(seq(8))
	require.Equal(t, 40, e.WaterMark())
}

func TestRxReaderRaisesWaterMark(t *testing.T) {
	e, _, _ := newRx(t, 64, 0)
	// Cursor published but the interrupt has not recorded the peak yet.
	e.wr.Store(20)
	require.Zero(t, e.WaterMark())

	require.True(t, e.Peek(make([]byte, 4)).OK())
	require.Equal(t, 20, e.WaterMark())
}

func TestRxReadLineSpansEvents(t *testing.T) {
	e, _, f := newRx(t, 64, 0)
	go func() {
		f.feed([]byte("AT+"))
		time.Sleep(10 * time.Millisecond)
		f.feed([]byte("OK\n"))
	}()
	buf := make([]byte, 16)
	r := e.ReadLine(buf, time.Second)
	require.True(t, r.OK())
	require.Equal(t, "AT+OK", string(buf[:r.N]))
}

func TestRxPeekIsNonDestructive(t *testing.T) {
	e, _, f := newRx(t, 64, 0)
	f.feed([]byte("abc"))

	buf := make([]byte, 2)
	r := e.Peek(buf)
	require.True(t, r.OK())
	require.Equal(t, "ab", string(buf))
	require.Equal(t, 3, e.Available())

	all := make([]byte, 3)
	require.Equal(t, 3, e.Read(all, NoWait).N)
	require.Equal(t, "abc", string(all))
	require.Equal(t, errcode.BufferEmpty, e.Peek(buf).Status)
}

func TestRxWaterMarkMonotonic(t *testing.T) {
	e, _, f := newRx(t, 256, 0)
	buf := make([]byte, 256)
	marks := []int{}
	for _, n := range []int{10, 100, 5, 200, 1} {
		f.feed(seq(n))
		marks = append(marks, e.WaterMark())
		e.Read(buf, NoWait)
		marks = append(marks, e.WaterMark())
	}
	for i := 1; i < len(marks); i++ {
		require.GreaterOrEqual(t, marks[i], marks[i-1])
	}
	require.Equal(t, 200, e.WaterMark())
}

func TestRxInvalidatesWholeLines(t *testing.T) {
	e, rec, f := newRx(t, 128, 0)
	buf := make([]byte, 128)
	for _, n := range []int{3, 61, 17, 100, 90} {
		f.feed(seq(n))
		e.Read(buf, NoWait)
	}
	ops := rec.Ops()
	require.NotEmpty(t, ops)
	require.Zero(t, rec.Misaligned())

	base := cache.Addr(e.Buffer())
	for _, op := range ops {
		require.Equal(t, cache.OpInvalidate, op.Kind)
		require.GreaterOrEqual(t, op.Addr, base)
		require.LessOrEqual(t, op.Addr+uintptr(op.Len), base+128)
	}
}

func TestRxStagingCopiesIntoRing(t *testing.T) {
	e, rec, f := newRx(t, 256, 64)
	require.True(t, e.Staged())
	require.Len(t, e.Buffer(), 64)

	want := seq(200)
	got := make([]byte, 0, 200)
	buf := make([]byte, 50)
	for off := 0; off < len(want); off += 50 {
		f.feed(want[off : off+50])
		r := e.Read(buf, NoWait)
		got = append(got, buf[:r.N]...)
	}
	require.Equal(t, want, got)
	require.Zero(t, rec.Misaligned())

	f.feed(seq(300))
	require.Equal(t, 256, e.Available())
	require.Positive(t, e.Overruns())
}

func TestRxDiscardAndWait(t *testing.T) {
	e, _, f := newRx(t, 64, 0)
	require.False(t, e.Wait(NoWait))
	f.feed([]byte("xyz"))
	require.True(t, e.Wait(NoWait))
	require.Equal(t, 3, e.Discard())
	require.True(t, e.IsEmpty())

	start := time.Now()
	require.False(t, e.Wait(20*time.Millisecond))
	require.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestRxCloseWakesReader(t *testing.T) {
	e, _, _ := newRx(t, 64, 0)
	done := make(chan Result, 1)
	go func() {
		buf := make([]byte, 4)
		done <- e.Read(buf, Forever)
	}()
	time.Sleep(10 * time.Millisecond)
	e.Close()
	select {
	case r := <-done:
		require.Equal(t, errcode.Closed, r.Status)
	case <-time.After(time.Second):
		t.Fatal("reader not woken by Close")
	}
}

func TestNewRxEngineRejectsBadSizes(t *testing.T) {
	a := dmamem.NewArena(1024)
	require.Panics(t, func() { NewRxEngine(a.Alloc(96, dmamem.RX), nil, nil, nil) })
	require.Panics(t, func() { NewRxEngine(a.Alloc(16, dmamem.RX), nil, nil, nil) })
	require.Panics(t, func() { NewRxEngine(nil, nil, nil, nil) })
}

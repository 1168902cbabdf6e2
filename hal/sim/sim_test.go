//go:build !tinygo

package sim

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stm32zero-go/errcode"
	"stm32zero-go/hal/halerr"
	"stm32zero-go/sio"
	"stm32zero-go/x/dmamem"
)

type memTracer struct {
	mu     sync.Mutex
	events []Event
}

func (m *memTracer) Record(e Event) {
	m.mu.Lock()
	m.events = append(m.events, e)
	m.mu.Unlock()
}

func (m *memTracer) count(k Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.Kind == k {
			n++
		}
	}
	return n
}

func open(t *testing.T, tr *Transport, cfg sio.Config) *sio.Port {
	t.Helper()
	if cfg.Arena == nil {
		cfg.Arena = dmamem.NewArena(16 * 1024)
	}
	p, err := sio.New(tr, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		p.Close()
		tr.Close()
	})
	return p
}

func recvAll(t *testing.T, p *sio.Port, n int) []byte {
	t.Helper()
	out := make([]byte, 0, n)
	buf := make([]byte, 128)
	deadline := time.Now().Add(3 * time.Second)
	for len(out) < n && time.Now().Before(deadline) {
		r := p.Recv(buf, 50*time.Millisecond)
		out = append(out, buf[:r.N]...)
	}
	return out
}

func TestLoopbackRoundTrip(t *testing.T) {
	tr := &memTracer{}
	p := open(t, Loopback(256, Options{Name: "loop", Tracer: tr}), sio.Config{RxSize: 256, TxSize: 128})

	want := make([]byte, 0x40)
	for i := range want {
		want[i] = byte(i)
	}
	require.Equal(t, len(want), p.Send(want).N)
	require.True(t, p.Flush(sio.Forever).OK())
	require.Equal(t, want, recvAll(t, p, len(want)))

	require.Equal(t, 1, tr.count(TxStart))
	require.Eventually(t, func() bool { return tr.count(TxDone) == 1 }, time.Second, time.Millisecond)
	require.Positive(t, tr.count(RxEvent))
}

func TestPairLines(t *testing.T) {
	a, b := Pair(512, Options{Name: "a"}, Options{Name: "b"})
	pa := open(t, a, sio.Config{RxSize: 256, TxSize: 256})
	pb := open(t, b, sio.Config{RxSize: 256, TxSize: 256})

	_, err := pa.Write([]byte("$GPGGA,1\r\nhello\n"))
	require.NoError(t, err)

	line := make([]byte, 32)
	r := pb.RecvLine(line, time.Second)
	require.True(t, r.OK())
	require.Equal(t, "$GPGGA,1", string(line[:r.N]))
	r = pb.RecvLine(line, time.Second)
	require.Equal(t, "hello", string(line[:r.N]))
	require.True(t, pa.IsEmpty())
}

func TestWireByName(t *testing.T) {
	a := Wire("sim-test", 64, Options{Name: "first"})
	b := Wire("sim-test", 64, Options{Name: "second"})
	pa := open(t, a, sio.Config{RxSize: 64, TxSize: 64})
	pb := open(t, b, sio.Config{RxSize: 64, TxSize: 64})

	_, err := pb.Write([]byte("up"))
	require.NoError(t, err)
	require.Equal(t, "up", string(recvAll(t, pa, 2)))
}

func TestBaudPacing(t *testing.T) {
	// 500 bytes at 100 kBd is 50 ms on the line.
	p := open(t, Loopback(1024, Options{Baud: 100_000}), sio.Config{RxSize: 1024, TxSize: 512})
	start := time.Now()
	_, err := p.Write(make([]byte, 500))
	require.NoError(t, err)
	require.True(t, p.FlushWait(time.Second))
	require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestInjectedFaults(t *testing.T) {
	tr := Loopback(256, Options{})
	p := open(t, tr, sio.Config{RxSize: 128, TxSize: 64})
	faults := make(chan sio.Fault, 4)
	p.OnError(func(f sio.Fault) { faults <- f })

	tr.FailNextTx(nil)
	p.Send([]byte("dropped"))
	require.True(t, p.Flush(sio.NoWait).OK())
	f := <-faults
	require.Equal(t, sio.DirTx, f.Dir)
	require.Equal(t, errcode.HardwareError, f.Code)
	require.ErrorIs(t, f.Err, halerr.ErrInjected)

	tr.InjectRxError(halerr.ErrFraming)
	f = <-faults
	require.Equal(t, sio.DirRx, f.Dir)
	require.ErrorIs(t, f.Err, halerr.ErrFraming)

	st := p.Stats()
	require.EqualValues(t, 1, st.TxErrors)
	require.EqualValues(t, 1, st.RxErrors)

	// The channel keeps working after a fault.
	_, err := p.Write([]byte("ok"))
	require.NoError(t, err)
	require.Contains(t, string(recvAll(t, p, 9)), "ok")
}

func TestReceiverOverrun(t *testing.T) {
	a, b := Pair(1024, Options{Name: "a"}, Options{Name: "b"})
	pa := open(t, a, sio.Config{RxSize: 64, TxSize: 256})
	pb := open(t, b, sio.Config{RxSize: 256, TxSize: 64})

	data := make([]byte, 300)
	for i := range data {
		data[i] = byte(i)
	}
	_, err := pa.Write(data)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return pb.Stats().RxBytes == 300 }, 2*time.Second, time.Millisecond)

	st := pb.Stats()
	require.Positive(t, st.RxOverruns)
	require.EqualValues(t, 300-256, st.RxLost)
	require.Equal(t, 256, pb.Available())

	got := make([]byte, 256)
	require.Equal(t, 256, pb.Recv(got, sio.NoWait).N)
	require.Equal(t, data[44:], got)
}

func TestTransportGuards(t *testing.T) {
	tr := Loopback(64, Options{})
	defer tr.Close()
	require.ErrorIs(t, tr.StartTx([]byte("x")), halerr.ErrNotBound)
	require.ErrorIs(t, tr.StartRx(make([]byte, 64)), halerr.ErrNotBound)

	p := open(t, tr, sio.Config{RxSize: 64, TxSize: 64})
	require.ErrorIs(t, tr.StartRx(make([]byte, 64)), halerr.ErrRxRunning)
	p.Close()
	tr.StopRx()
	require.NoError(t, tr.Close())
	require.ErrorIs(t, tr.StartTx([]byte("x")), halerr.ErrStopped)
}

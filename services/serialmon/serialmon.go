// Package serialmon turns a serial port's receive stream into bounded,
// timestamped events, either as raw chunks or as CR-stripped lines.
package serialmon

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"stm32zero-go/errcode"
	"stm32zero-go/x/mathx"
	"stm32zero-go/x/timex"
)

const pollEvery = 250 * time.Millisecond

type Dir string

const (
	RX Dir = "rx"
	TX Dir = "tx"
)

type Mode string

const (
	Bytes Mode = "bytes"
	Lines Mode = "lines"
)

type Event struct {
	Port string
	Dir  Dir
	Data []byte
	TS   time.Time
}

// Source is the receive side of a port; *sio.Port satisfies it.
type Source interface {
	Buffered() int
	Readable() <-chan struct{}
	RecvSomeContext(ctx context.Context, p []byte) (int, error)
}

type Config struct {
	Name      string
	Source    Source
	Mode      Mode
	MaxFrame  int           // clamp 16..256
	IdleFlush time.Duration // clamp 0..2s (lines mode)
}

// Monitor fans events from any number of watched ports into one queue.
// Events are dropped, and counted, when the consumer falls behind.
type Monitor struct {
	outQ    chan Event
	dropped atomic.Uint32

	mu     sync.Mutex
	frames map[string]int
}

func New(outBuf int) *Monitor {
	if outBuf <= 0 {
		outBuf = 64
	}
	return &Monitor{outQ: make(chan Event, outBuf), frames: map[string]int{}}
}

func (m *Monitor) Events() <-chan Event { return m.outQ }

// Dropped counts events lost to a full queue.
func (m *Monitor) Dropped() int { return int(m.dropped.Load()) }

func (m *Monitor) emit(ev Event) {
	select {
	case m.outQ <- ev:
	default:
		m.dropped.Add(1)
	}
}

// Watch starts a reader goroutine for cfg.Source. It stops when ctx is
// cancelled, the returned cancel is called, or the port is closed.
func (m *Monitor) Watch(ctx context.Context, cfg Config) (func(), error) {
	if cfg.Source == nil {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "serialmon.watch", Msg: "nil source"}
	}
	switch cfg.Mode {
	case "":
		cfg.Mode = Bytes
	case Bytes, Lines:
	default:
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "serialmon.watch", Msg: "unknown mode " + string(cfg.Mode)}
	}
	max := mathx.Clamp(cfg.MaxFrame, 16, 256)
	idle := mathx.Clamp(cfg.IdleFlush, 0, 2*time.Second)

	m.mu.Lock()
	m.frames[cfg.Name] = max
	m.mu.Unlock()

	cctx, cancel := context.WithCancel(ctx)
	go m.run(cctx, cfg, max, idle)
	return cancel, nil
}

func (m *Monitor) run(ctx context.Context, cfg Config, max int, idle time.Duration) {
	src := cfg.Source
	buf := make([]byte, max)
	var line []byte

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		timex.DrainTimer(timer)
	}
	defer timer.Stop()

	flush := func(now time.Time) {
		if len(line) == 0 {
			return
		}
		payload := append([]byte(nil), line...)
		line = line[:0]
		m.emit(Event{Port: cfg.Name, Dir: RX, Data: payload, TS: now})
	}

	for {
		// Arm idle flush only when needed; otherwise poll so a closed
		// port whose wakeup coalesced with a data wakeup is still noticed.
		flushing := cfg.Mode == Lines && len(line) > 0 && idle > 0
		if flushing {
			timex.ResetTimer(timer, idle)
		} else {
			timex.ResetTimer(timer, pollEvery)
		}
		if src.Buffered() == 0 {
			select {
			case <-ctx.Done():
				return
			case <-src.Readable():
			case <-timer.C:
				if flushing {
					flush(time.Now())
					continue
				}
			}
		}
		// Bound the blocking wait to assist shutdown.
		rctx, rcancel := context.WithTimeout(ctx, pollEvery)
		n, err := src.RecvSomeContext(rctx, buf)
		rcancel()
		if errors.Is(err, errcode.Closed) {
			flush(time.Now())
			return
		}
		if n <= 0 {
			continue
		}
		now := time.Now()
		if cfg.Mode == Bytes {
			// Emit raw chunk (binary-safe).
			m.emit(Event{Port: cfg.Name, Dir: RX, Data: append([]byte(nil), buf[:n]...), TS: now})
			continue
		}
		// Accumulate lines; ignore CR; split on LF.
		for _, b := range buf[:n] {
			switch b {
			case '\n':
				flush(now)
			case '\r':
			default:
				if len(line) < max {
					line = append(line, b)
				}
			}
		}
	}
}

// EmitTX publishes a TX echo event, split into frames of the port's
// MaxFrame (256 for ports not being watched).
func (m *Monitor) EmitTX(port string, data []byte) {
	m.mu.Lock()
	max, ok := m.frames[port]
	m.mu.Unlock()
	if !ok {
		max = 256
	}
	now := time.Now()
	for len(data) > 0 {
		n := min(max, len(data))
		m.emit(Event{Port: port, Dir: TX, Data: append([]byte(nil), data[:n]...), TS: now})
		data = data[n:]
	}
}

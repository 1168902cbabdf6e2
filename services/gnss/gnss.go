// Package gnss reads NMEA sentences line by line from a serial port and
// publishes position fixes.
package gnss

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"stm32zero-go/errcode"
	"stm32zero-go/sio"

	"tinygo.org/x/drivers/gps"
)

// NMEA 0183 caps a sentence at 82 characters, but high-precision
// receivers routinely exceed it. Longer lines are counted and skipped.
const lineBuf = 128

// LineSource is the receive side of a port; *sio.Port satisfies it.
type LineSource interface {
	RecvLine(p []byte, timeout time.Duration) sio.Result
}

type Config struct {
	LineTimeout time.Duration // per RecvLine call
	QueueSize   int
}

// Fix is a parsed position together with the sentence it came from.
type Fix struct {
	gps.Fix
	Sentence string // GGA, GLL or RMC
	At       time.Time
}

type Stats struct {
	Lines       uint32
	Fixes       uint32
	BadChecksum uint32
	Unsupported uint32
	Malformed   uint32
	Overlong    uint32
	Timeouts    uint32
	Dropped     uint32
}

type Receiver struct {
	cfg    Config
	src    LineSource
	parser gps.Parser
	out    chan Fix

	mu     sync.Mutex
	latest Fix
	have   bool

	lines, fixes, badSum, unsupported, malformed, overlong, timeouts, dropped atomic.Uint32
}

func New(src LineSource, cfg Config) *Receiver {
	if cfg.LineTimeout <= 0 {
		cfg.LineTimeout = time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 8
	}
	return &Receiver{cfg: cfg, src: src, parser: gps.NewParser(), out: make(chan Fix, cfg.QueueSize)}
}

func (r *Receiver) Fixes() <-chan Fix { return r.out }

// Latest returns the most recent valid fix.
func (r *Receiver) Latest() (Fix, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest, r.have
}

func (r *Receiver) Stats() Stats {
	return Stats{
		Lines:       r.lines.Load(),
		Fixes:       r.fixes.Load(),
		BadChecksum: r.badSum.Load(),
		Unsupported: r.unsupported.Load(),
		Malformed:   r.malformed.Load(),
		Overlong:    r.overlong.Load(),
		Timeouts:    r.timeouts.Load(),
		Dropped:     r.dropped.Load(),
	}
}

// Run reads sentences until ctx is done or the port closes. It returns nil
// on cancellation and the port's status otherwise.
func (r *Receiver) Run(ctx context.Context) error {
	buf := make([]byte, lineBuf)
	skipping := false
	for {
		if ctx.Err() != nil {
			return nil
		}
		res := r.src.RecvLine(buf, r.cfg.LineTimeout)
		switch res.Status {
		case errcode.OK:
		case errcode.Timeout, errcode.BufferEmpty:
			r.timeouts.Add(1)
			continue
		default:
			return res.Err()
		}
		// A full buffer means no terminator was seen yet; drop input up to
		// the next line end rather than parse a fragment.
		full := res.N == len(buf)-1
		if skipping {
			skipping = full
			continue
		}
		if full {
			r.overlong.Add(1)
			skipping = true
			continue
		}
		if res.N == 0 {
			continue
		}
		r.lines.Add(1)
		r.handle(string(buf[:res.N]))
	}
}

// Start runs the receiver in its own goroutine.
func (r *Receiver) Start(ctx context.Context) {
	go func() { _ = r.Run(ctx) }()
}

func (r *Receiver) handle(line string) {
	if err := Validate(line); err != nil {
		if err == errcode.InvalidParams {
			r.malformed.Add(1)
		} else {
			r.badSum.Add(1)
		}
		return
	}
	typ := line[3:6]
	switch typ {
	case "GGA", "GLL", "RMC":
	default:
		r.unsupported.Add(1)
		return
	}
	f, err := r.parser.Parse(line)
	if err != nil {
		r.malformed.Add(1)
		return
	}
	fix := Fix{Fix: f, Sentence: typ, At: time.Now()}
	if f.Valid {
		r.mu.Lock()
		r.latest, r.have = fix, true
		r.mu.Unlock()
	}
	r.fixes.Add(1)
	select {
	case r.out <- fix:
	default:
		r.dropped.Add(1)
	}
}

// ErrChecksum reports a sentence whose trailing checksum does not match.
const ErrChecksum errcode.Code = "nmea_checksum"

// Validate checks framing ("$" talker+type ... "*hh") and the XOR checksum.
func Validate(s string) error {
	n := len(s)
	if n < 10 || s[0] != '$' || s[n-3] != '*' {
		return errcode.InvalidParams
	}
	var sum byte
	for i := 1; i < n-3; i++ {
		sum ^= s[i]
	}
	hi, ok1 := unhex(s[n-2])
	lo, ok2 := unhex(s[n-1])
	if !ok1 || !ok2 {
		return errcode.InvalidParams
	}
	if hi<<4|lo != sum {
		return ErrChecksum
	}
	return nil
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

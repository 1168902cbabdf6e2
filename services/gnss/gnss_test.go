package gnss

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stm32zero-go/errcode"
	"stm32zero-go/sio"
)

const (
	gga = "$GPGGA,115739.00,4158.8441367,N,09147.4416929,W,4,13,0.9,255.747,M,-32.00,M,01,0000*6E"
	rmc = "$GPRMC,203522.00,A,5109.0262308,N,11401.8407342,W,0.004,133.4,010622,0.0,E,D*2B"
	gsv = "$GPGSV,3,1,09,07,14,317,22,08,31,284,25,10,32,133,39,16,85,232,29*7F"
)

// scripted replays lines, then reports Closed. Lines longer than the
// caller's buffer are split across calls the way a port delivers them.
type scripted struct {
	lines  []string
	stalls int
}

func (s *scripted) RecvLine(p []byte, _ time.Duration) sio.Result {
	if s.stalls > 0 {
		s.stalls--
		return sio.Result{Status: errcode.Timeout}
	}
	if len(s.lines) == 0 {
		return sio.Result{Status: errcode.Closed}
	}
	l := s.lines[0]
	n := copy(p[:len(p)-1], l)
	if n < len(l) {
		s.lines[0] = l[n:]
	} else {
		s.lines = s.lines[1:]
	}
	p[n] = 0
	return sio.Result{Status: errcode.OK, N: n}
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(gga))
	require.NoError(t, Validate(rmc))
	require.ErrorIs(t, Validate(gga[:len(gga)-2]+"6F"), ErrChecksum)
	require.ErrorIs(t, Validate("GPGGA,1*00"), errcode.InvalidParams)
	require.ErrorIs(t, Validate("$GPGGA,1*ZZ"), errcode.InvalidParams)
	require.ErrorIs(t, Validate(""), errcode.InvalidParams)
}

func TestReceiver_ParsesFixes(t *testing.T) {
	src := &scripted{lines: []string{gga, gsv, "", gga[:40], rmc}, stalls: 2}
	r := New(src, Config{})

	err := r.Run(context.Background())
	require.ErrorIs(t, err, errcode.Closed)

	st := r.Stats()
	require.Equal(t, uint32(4), st.Lines)
	require.Equal(t, uint32(2), st.Fixes)
	require.Equal(t, uint32(1), st.Unsupported)
	require.Equal(t, uint32(1), st.Malformed)
	require.Equal(t, uint32(2), st.Timeouts)

	first := <-r.Fixes()
	require.Equal(t, "GGA", first.Sentence)
	require.InDelta(t, 41.9807, first.Latitude, 1e-3)
	require.InDelta(t, -91.7907, first.Longitude, 1e-3)
	require.Equal(t, int32(255), first.Altitude)
	require.Equal(t, int16(13), first.Satellites)

	second := <-r.Fixes()
	require.Equal(t, "RMC", second.Sentence)
	require.True(t, second.Valid)
	require.Equal(t, 2022, second.Time.Year())

	latest, ok := r.Latest()
	require.True(t, ok)
	require.Equal(t, "RMC", latest.Sentence)
}

func TestReceiver_CountsBadChecksum(t *testing.T) {
	bad := rmc[:len(rmc)-2] + "00"
	r := New(&scripted{lines: []string{bad}}, Config{})
	require.ErrorIs(t, r.Run(context.Background()), errcode.Closed)
	require.Equal(t, uint32(1), r.Stats().BadChecksum)
	_, ok := r.Latest()
	require.False(t, ok)
}

func TestReceiver_DropsWhenQueueFull(t *testing.T) {
	r := New(&scripted{lines: []string{gga, gga, gga}}, Config{QueueSize: 1})
	require.ErrorIs(t, r.Run(context.Background()), errcode.Closed)
	require.Equal(t, uint32(3), r.Stats().Fixes)
	require.Equal(t, uint32(2), r.Stats().Dropped)
}

func TestReceiver_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New(&scripted{stalls: 1 << 30}, Config{})
	require.NoError(t, r.Run(ctx))
}

func TestReceiver_SkipsOverlongLines(t *testing.T) {
	long := "$GPTXT," + strings.Repeat("X", 300) + "*00"
	r := New(&scripted{lines: []string{long, gga}}, Config{})
	require.ErrorIs(t, r.Run(context.Background()), errcode.Closed)

	st := r.Stats()
	require.Equal(t, uint32(1), st.Overlong)
	require.Equal(t, uint32(1), st.Lines)
	require.Equal(t, uint32(1), st.Fixes)
	require.Zero(t, st.Malformed)
	require.Zero(t, st.BadChecksum)
}

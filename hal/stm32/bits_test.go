package stm32

import (
	"testing"

	"github.com/stretchr/testify/require"

	"stm32zero-go/hal/halerr"
)

func TestStreamFlags(t *testing.T) {
	// Stream 1 transfer complete and half transfer in LISR.
	isr := uint32(dmaTCIF|dmaHTIF) << 6
	require.Equal(t, uint32(dmaTCIF|dmaHTIF), streamFlags(isr, 1))
	require.Zero(t, streamFlags(isr, 0))

	// Stream 6 lives at bit 16 of HISR.
	require.Equal(t, uint32(dmaTEIF), streamFlags(dmaTEIF<<16, 6))
	require.Equal(t, uint32(22), flagShift(7))
}

func TestBRR(t *testing.T) {
	require.Equal(t, uint32(1042), brr(120_000_000, 115200))
	require.Equal(t, uint32(16), brr(1_000_000, 921600))
	require.Equal(t, uint32(0xFFFF), brr(120_000_000, 300))
	require.Zero(t, brr(64_000_000, 0))
}

func TestRxPos(t *testing.T) {
	require.Equal(t, 0, rxPos(256, 256, false))
	require.Equal(t, 128, rxPos(256, 128, false))
	require.Equal(t, 255, rxPos(256, 1, false))
	require.Equal(t, 256, rxPos(256, 256, true))
	require.Equal(t, 0, rxPos(256, 0, false))
}

func TestLineError(t *testing.T) {
	require.ErrorIs(t, lineError(1<<3|1<<1), halerr.ErrOverrun)
	require.ErrorIs(t, lineError(1<<1), halerr.ErrFraming)
	require.ErrorIs(t, lineError(1<<0), halerr.ErrParity)
	require.ErrorIs(t, lineError(1<<2), halerr.ErrNoise)
}

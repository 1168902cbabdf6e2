// Package conv formats integers and short printf-style lines into
// caller-owned byte slices without fmt or strconv, for output built on the
// target.
package conv

const hexDigits = "0123456789ABCDEF"

// AppendUint appends the base-10 form of n to dst.
func AppendUint(dst []byte, n uint64) []byte {
	var tmp [20]byte
	i := len(tmp)
	for {
		i--
		tmp[i] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	return append(dst, tmp[i:]...)
}

// AppendInt appends the base-10 form of n to dst.
func AppendInt(dst []byte, n int64) []byte {
	if n < 0 {
		// Negate in unsigned space so the minimum int64 survives.
		return AppendUint(append(dst, '-'), uint64(^n)+1)
	}
	return AppendUint(dst, uint64(n))
}

// AppendHex appends n as zero-padded uppercase hex of width nibbles
// (1..16), without a prefix.
func AppendHex(dst []byte, n uint64, width int) []byte {
	if width < 1 {
		width = 1
	}
	if width > 16 {
		width = 16
	}
	for s := (width - 1) * 4; s >= 0; s -= 4 {
		dst = append(dst, hexDigits[(n>>uint(s))&0xF])
	}
	return dst
}

// Itoa is AppendInt into a fresh string.
func Itoa(n int) string {
	var buf [24]byte
	return string(AppendInt(buf[:0], int64(n)))
}

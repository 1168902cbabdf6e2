package conv

// Appendf appends a formatted line to dst. It covers the subset of fmt the
// target report and console paths use:
//
//	%d %x %X %s %c %t %v %%
//
// with an optional '-' or '0' flag and a decimal width. Integers of any
// size, strings, byte slices, bools and errors are accepted. A verb with no
// argument left prints %!v(MISSING); an argument of the wrong kind prints
// %!v(BAD).
func Appendf(dst []byte, format string, args ...any) []byte {
	ai := 0
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			dst = append(dst, c)
			continue
		}
		i++
		if i == len(format) {
			return append(dst, "%!(NOVERB)"...)
		}
		var left, zero bool
		for ; i < len(format); i++ {
			if format[i] == '-' {
				left = true
			} else if format[i] == '0' {
				zero = true
			} else {
				break
			}
		}
		width := 0
		for ; i < len(format) && format[i] >= '0' && format[i] <= '9'; i++ {
			width = width*10 + int(format[i]-'0')
		}
		if i == len(format) {
			return append(dst, "%!(NOVERB)"...)
		}
		verb := format[i]
		if verb == '%' {
			dst = append(dst, '%')
			continue
		}
		if ai >= len(args) {
			dst = append(dst, '%', '!', verb)
			dst = append(dst, "(MISSING)"...)
			continue
		}
		start := len(dst)
		var ok bool
		dst, ok = appendArg(dst, verb, args[ai])
		ai++
		if !ok {
			dst = append(dst[:start], '%', '!', verb)
			dst = append(dst, "(BAD)"...)
			continue
		}
		dst = pad(dst, start, width, left, zero && !left && verb != 's')
	}
	return dst
}

func appendArg(dst []byte, verb byte, a any) ([]byte, bool) {
	if u, neg, isInt := integer(a); isInt {
		switch verb {
		case 'd', 'v':
			if neg {
				dst = append(dst, '-')
			}
			return AppendUint(dst, u), true
		case 'x', 'X':
			if neg {
				dst = append(dst, '-')
			}
			return appendHexLen(dst, u, verb == 'x'), true
		case 'c':
			return appendRune(dst, rune(u)), true
		}
		return dst, false
	}
	switch v := a.(type) {
	case string:
		if verb == 's' || verb == 'v' {
			return append(dst, v...), true
		}
	case []byte:
		if verb == 's' || verb == 'v' {
			return append(dst, v...), true
		}
	case bool:
		if verb == 't' || verb == 'v' {
			if v {
				return append(dst, "true"...), true
			}
			return append(dst, "false"...), true
		}
	case error:
		if verb == 's' || verb == 'v' {
			return append(dst, v.Error()...), true
		}
	}
	return dst, false
}

// integer returns the magnitude and sign of any integer kind.
func integer(a any) (mag uint64, neg bool, ok bool) {
	var s int64
	switch v := a.(type) {
	case int:
		s = int64(v)
	case int8:
		s = int64(v)
	case int16:
		s = int64(v)
	case int32:
		s = int64(v)
	case int64:
		s = v
	case uint:
		return uint64(v), false, true
	case uint8:
		return uint64(v), false, true
	case uint16:
		return uint64(v), false, true
	case uint32:
		return uint64(v), false, true
	case uint64:
		return v, false, true
	case uintptr:
		return uint64(v), false, true
	default:
		return 0, false, false
	}
	if s < 0 {
		return uint64(^s) + 1, true, true
	}
	return uint64(s), false, true
}

// appendHexLen appends n in hex with no leading zeros.
func appendHexLen(dst []byte, n uint64, lower bool) []byte {
	w := 1
	for v := n >> 4; v != 0; v >>= 4 {
		w++
	}
	start := len(dst)
	dst = AppendHex(dst, n, w)
	if lower {
		for i := start; i < len(dst); i++ {
			if dst[i] >= 'A' {
				dst[i] += 'a' - 'A'
			}
		}
	}
	return dst
}

func appendRune(dst []byte, r rune) []byte {
	switch {
	case r < 0x80:
		return append(dst, byte(r))
	case r < 0x800:
		return append(dst, byte(0xC0|r>>6), byte(0x80|r&0x3F))
	case r < 0x10000:
		return append(dst, byte(0xE0|r>>12), byte(0x80|(r>>6)&0x3F), byte(0x80|r&0x3F))
	default:
		return append(dst, byte(0xF0|r>>18), byte(0x80|(r>>12)&0x3F), byte(0x80|(r>>6)&0x3F), byte(0x80|r&0x3F))
	}
}

// pad widens dst[start:] to width. Zero padding goes after a leading sign.
func pad(dst []byte, start, width int, left, zero bool) []byte {
	n := len(dst) - start
	if n >= width {
		return dst
	}
	fill := width - n
	if left {
		for ; fill > 0; fill-- {
			dst = append(dst, ' ')
		}
		return dst
	}
	for k := 0; k < fill; k++ {
		dst = append(dst, 0)
	}
	at := start
	c := byte(' ')
	if zero {
		c = '0'
		if dst[start] == '-' {
			at++
		}
	}
	copy(dst[at+fill:], dst[at:at+n-(at-start)])
	for k := at; k < at+fill; k++ {
		dst[k] = c
	}
	return dst
}

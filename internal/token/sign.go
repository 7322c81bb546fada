// Package token computes the "tk" request signature the translate_tts
// endpoint requires and holds the process-wide seed it is derived from.
//
// The arithmetic reproduces the endpoint's own script bit for bit; any
// change to it makes every request fail with 403.
package token

import (
	"errors"
	"strconv"
	"unicode/utf16"
)

// ErrEmptyText is returned when signing empty text.
var ErrEmptyText = errors.New("token: text is empty")

const (
	mask32 = 0xFFFFFFFF

	// Op strings walked by mix, three characters per step.
	perUnitOps = "+-a^+6"
	finalOps   = "+-3^+b+-f"

	tokenModulus = 1_000_000
)

// Sign returns the endpoint token for text under seed, formatted "r.(r^A)".
// Sign is pure.
func Sign(seed Seed, text string) (string, error) {
	if text == "" {
		return "", ErrEmptyText
	}

	r := seed.A
	for _, u := range units(text) {
		r += int64(u)
		r = mix(r, perUnitOps)
	}
	r = mix(r, finalOps)
	r ^= seed.B
	if r < 0 {
		r = (r & 0x7FFFFFFF) + 0x80000000
	}
	r %= tokenModulus

	return strconv.FormatInt(r, 10) + "." + strconv.FormatInt(r^seed.A, 10), nil
}

// units expands text the way the endpoint's script does: it walks UTF-16
// code units, recombines surrogate pairs and emits each code point in the
// UTF-8 byte layout. A lone surrogate is emitted as three units.
func units(text string) []int {
	cu := utf16.Encode([]rune(text))
	out := make([]int, 0, len(cu)*3)

	for i := 0; i < len(cu); i++ {
		c := int(cu[i])
		switch {
		case c < 0x80:
			out = append(out, c)
		case c < 0x800:
			out = append(out, c>>6|0xC0, c&0x3F|0x80)
		case c&0xFC00 == 0xD800 && i+1 < len(cu) && int(cu[i+1])&0xFC00 == 0xDC00:
			i++
			c = 0x10000 + (c&0x3FF)<<10 + int(cu[i])&0x3FF
			out = append(out, c>>18|0xF0, c>>12&0x3F|0x80, c>>6&0x3F|0x80, c&0x3F|0x80)
		default:
			out = append(out, c>>12|0xE0, c>>6&0x3F|0x80, c&0x3F|0x80)
		}
	}
	return out
}

// mix applies ops in (op, direction, amount) triples. Direction '+' is an
// unsigned 32-bit right shift, '-' a left shift; op '+' adds and masks to
// 32 bits, '^' xors. Amounts are a digit or a letter ('a' = 10).
func mix(r int64, ops string) int64 {
	for i := 0; i+2 < len(ops); i += 3 {
		amount := ops[i+2]
		var n uint
		if amount >= 'a' {
			n = uint(amount - 87)
		} else {
			n = uint(amount - '0')
		}

		var d int64
		if ops[i+1] == '+' {
			d = urshift(r, n)
		} else {
			d = r << n
		}

		if ops[i] == '+' {
			r = (r + d) & mask32
		} else {
			r ^= d
		}
	}
	return r
}

// urshift mirrors JavaScript's >>> on a value that may be negative.
func urshift(v int64, n uint) int64 {
	if v < 0 {
		v += 0x100000000
	}
	return v >> n
}

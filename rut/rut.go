// Package rut validates and formats Chilean tax identifiers (RUT) using the
// standard mod-11 checksum.
package rut

import (
	"errors"
	"strings"
)

var (
	ErrMalformed = errors.New("rut: malformed")
	ErrChecksum  = errors.New("rut: check digit mismatch")
)

// normalize strips everything but digits and the check letter K and
// uppercases the result.
func normalize(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'k' || r == 'K':
			b.WriteRune('K')
		}
	}
	return b.String()
}

// CheckDigit computes the expected check character for a RUT body using
// weights cycling 2,3,4,5,6,7 from the least significant digit. The mod-11
// remainder maps 11 to '0' and 10 to 'K'.
func CheckDigit(body string) (byte, bool) {
	if body == "" {
		return 0, false
	}
	sum := 0
	weight := 2
	for i := len(body) - 1; i >= 0; i-- {
		d := body[i]
		if d < '0' || d > '9' {
			return 0, false
		}
		sum += int(d-'0') * weight
		weight++
		if weight > 7 {
			weight = 2
		}
	}
	switch expected := 11 - sum%11; expected {
	case 11:
		return '0', true
	case 10:
		return 'K', true
	default:
		return byte('0' + expected), true
	}
}

// Validate reports whether raw is a well-formed RUT with a correct check
// character. Separators and case are ignored.
func Validate(raw string) error {
	clean := normalize(raw)
	if len(clean) < 8 || len(clean) > 9 {
		return ErrMalformed
	}
	body, check := clean[:len(clean)-1], clean[len(clean)-1]
	expected, ok := CheckDigit(body)
	if !ok {
		return ErrMalformed
	}
	if check != expected {
		return ErrChecksum
	}
	return nil
}

// Format renders a RUT with dot thousands separators and a hyphen before
// the check character: "12.345.678-5". It works incrementally on partial
// input as the operator types, and is idempotent: formatting an already
// formatted string yields the same string. It does not verify the checksum.
func Format(raw string) string {
	clean := normalize(raw)
	if clean == "" {
		return ""
	}
	if len(clean) == 1 {
		return clean
	}

	body, check := clean[:len(clean)-1], clean[len(clean)-1]
	var b strings.Builder
	for i, r := range body {
		if i > 0 && (len(body)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteByte('-')
	b.WriteByte(check)
	return b.String()
}

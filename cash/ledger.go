// Package cash implements drawer arithmetic: pure denomination-count
// operations, change validation, and the confirmed-projection ledger of one
// open cash session.
package cash

import (
	"errors"
	"fmt"

	"tallerpos/domain"
)

var (
	ErrInsufficientDenomination = errors.New("insufficient denomination")
	ErrInsufficientTender       = errors.New("insufficient tender")
	ErrChangeMismatch           = errors.New("change breakdown mismatch")
	ErrInvalidCounts            = errors.New("invalid denomination counts")
)

// Total is the face value of a breakdown: sum of denomination times count.
func Total(counts domain.DenominationCount) int64 {
	var total int64
	for _, denom := range domain.Denominations {
		total += int64(denom) * int64(counts[denom])
	}
	return total
}

// Merge sums two breakdowns per denomination. Neither input is mutated.
func Merge(a, b domain.DenominationCount) domain.DenominationCount {
	out := make(domain.DenominationCount, len(domain.Denominations))
	for _, denom := range domain.Denominations {
		if n := a[denom] + b[denom]; n != 0 {
			out[denom] = n
		}
	}
	return out
}

// Subtract removes b from a per denomination. It fails if any resulting
// count would go negative, naming the denomination and the missing units.
func Subtract(a, b domain.DenominationCount) (domain.DenominationCount, error) {
	out := make(domain.DenominationCount, len(domain.Denominations))
	for _, denom := range domain.Denominations {
		n := a[denom] - b[denom]
		if n < 0 {
			return nil, fmt.Errorf("%w: %d short %d", ErrInsufficientDenomination, denom, -n)
		}
		if n != 0 {
			out[denom] = n
		}
	}
	return out, nil
}

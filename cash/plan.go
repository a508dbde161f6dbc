package cash

import (
	"context"
	"errors"
	"fmt"

	"tallerpos/domain"
)

// ErrDrawerNotUpdated wraps the one non-fatal failure mode of a coordinated
// operation: the business record committed but a drawer movement after it
// was rejected. The record stands; the drawer needs manual reconciliation.
// A receipt returned alongside this error is valid.
var ErrDrawerNotUpdated = errors.New("transaction committed but drawer not updated")

// Movement is one planned drawer mutation. Coordinators validate a whole
// transaction first, collect the resulting movements, commit the business
// record, and only then apply the plan. Recording the plan up front means a
// partial failure leaves behind an exact description of what never reached
// the drawer instead of a hand-derived inverse.
type Movement struct {
	Direction string
	Counts    domain.DenominationCount
	Memo      string
}

// Apply runs the movements in order against the ledger and stops at the
// first failure. It returns how many movements were confirmed; when err is
// non-nil, movements[applied:] never reached the drawer.
func Apply(ctx context.Context, ledger *SessionLedger, movements []Movement) (int, error) {
	for i, m := range movements {
		var err error
		switch m.Direction {
		case domain.MovementCredit:
			err = ledger.Credit(ctx, m.Counts, m.Memo)
		case domain.MovementDebit:
			err = ledger.Debit(ctx, m.Counts, m.Memo)
		default:
			err = fmt.Errorf("%w: direction %q", ErrInvalidCounts, m.Direction)
		}
		if err != nil {
			return i, err
		}
	}
	return len(movements), nil
}

package cash

import (
	"fmt"

	"tallerpos/domain"
	"tallerpos/remote"
)

// ComputeChange returns the change owed for a cash sale. It fails when the
// tendered total does not cover the due amount.
func ComputeChange(due int64, tendered domain.DenominationCount) (int64, error) {
	if due < 0 {
		return 0, fmt.Errorf("%w: negative due amount", remote.ErrInvalidInput)
	}
	if !tendered.IsValid() {
		return 0, fmt.Errorf("%w: tendered", ErrInvalidCounts)
	}
	total := Total(tendered)
	if total < due {
		return 0, fmt.Errorf("%w: tendered %d, due %d", ErrInsufficientTender, total, due)
	}
	return total - due, nil
}

// ValidateChangeBreakdown checks an operator-proposed change breakdown: it
// must sum to the change amount exactly, and every denomination must be
// available in the drawer. The operator decides which physical notes move;
// this only guards against arithmetic and stock errors, so there is no
// automatic denomination selection anywhere.
func ValidateChangeBreakdown(changeAmount int64, proposed, drawerAvailable domain.DenominationCount) error {
	if !proposed.IsValid() {
		return fmt.Errorf("%w: proposed breakdown", ErrInvalidCounts)
	}
	if got := Total(proposed); got != changeAmount {
		return fmt.Errorf("%w: breakdown sums to %d, change is %d", ErrChangeMismatch, got, changeAmount)
	}
	for _, denom := range domain.Denominations {
		if proposed[denom] > drawerAvailable[denom] {
			return fmt.Errorf("%w: %d short %d",
				remote.ErrInsufficientDrawerStock, denom, proposed[denom]-drawerAvailable[denom])
		}
	}
	return nil
}

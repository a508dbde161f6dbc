package cash

import (
	"errors"
	"strings"
	"testing"

	"tallerpos/domain"
	"tallerpos/remote"
)

func TestComputeChange(t *testing.T) {
	change, err := ComputeChange(13000, domain.DenominationCount{domain.Denom10000: 2})
	if err != nil {
		t.Fatalf("ComputeChange: %v", err)
	}
	if change != 7000 {
		t.Fatalf("change = %d, want 7000", change)
	}

	change, err = ComputeChange(20000, domain.DenominationCount{domain.Denom20000: 1})
	if err != nil || change != 0 {
		t.Fatalf("exact tender: change %d err %v", change, err)
	}
}

func TestComputeChangeInsufficientTender(t *testing.T) {
	_, err := ComputeChange(13000, domain.DenominationCount{domain.Denom10000: 1})
	if !errors.Is(err, ErrInsufficientTender) {
		t.Fatalf("got %v, want ErrInsufficientTender", err)
	}
}

func TestComputeChangeInvalidCounts(t *testing.T) {
	_, err := ComputeChange(1000, domain.DenominationCount{domain.Denom1000: -1})
	if !errors.Is(err, ErrInvalidCounts) {
		t.Fatalf("negative count: got %v, want ErrInvalidCounts", err)
	}
	_, err = ComputeChange(1000, domain.DenominationCount{domain.Denomination(250): 4})
	if !errors.Is(err, ErrInvalidCounts) {
		t.Fatalf("unknown denomination: got %v, want ErrInvalidCounts", err)
	}
}

func TestValidateChangeBreakdown(t *testing.T) {
	drawer := domain.DenominationCount{domain.Denom5000: 1, domain.Denom2000: 1, domain.Denom1000: 2}

	err := ValidateChangeBreakdown(7000,
		domain.DenominationCount{domain.Denom5000: 1, domain.Denom2000: 1}, drawer)
	if err != nil {
		t.Fatalf("valid breakdown rejected: %v", err)
	}
}

func TestValidateChangeBreakdownMismatch(t *testing.T) {
	drawer := domain.DenominationCount{domain.Denom5000: 1, domain.Denom1000: 2}

	err := ValidateChangeBreakdown(7000,
		domain.DenominationCount{domain.Denom5000: 1, domain.Denom1000: 1}, drawer)
	if !errors.Is(err, ErrChangeMismatch) {
		t.Fatalf("got %v, want ErrChangeMismatch", err)
	}
}

func TestValidateChangeBreakdownDrawerShort(t *testing.T) {
	// One unit over what the drawer holds must fail and name the
	// denomination.
	drawer := domain.DenominationCount{domain.Denom2000: 1, domain.Denom1000: 5}

	err := ValidateChangeBreakdown(4000,
		domain.DenominationCount{domain.Denom2000: 2}, drawer)
	if !errors.Is(err, remote.ErrInsufficientDrawerStock) {
		t.Fatalf("got %v, want ErrInsufficientDrawerStock", err)
	}
	if !strings.Contains(err.Error(), "2000") {
		t.Fatalf("error should name the denomination: %v", err)
	}
}

package cash

import (
	"errors"
	"strings"
	"testing"

	"tallerpos/domain"
)

func TestTotal(t *testing.T) {
	counts := domain.DenominationCount{
		domain.Denom10000: 2,
		domain.Denom1000:  3,
		domain.Denom100:   4,
	}
	if got := Total(counts); got != 23400 {
		t.Fatalf("Total = %d, want 23400", got)
	}
	if got := Total(domain.DenominationCount{}); got != 0 {
		t.Fatalf("Total of empty breakdown = %d, want 0", got)
	}
}

func TestMerge(t *testing.T) {
	a := domain.DenominationCount{domain.Denom5000: 1, domain.Denom1000: 2}
	b := domain.DenominationCount{domain.Denom1000: 1, domain.Denom500: 4}

	got := Merge(a, b)
	want := domain.DenominationCount{domain.Denom5000: 1, domain.Denom1000: 3, domain.Denom500: 4}
	for _, denom := range domain.Denominations {
		if got[denom] != want[denom] {
			t.Fatalf("Merge[%d] = %d, want %d", denom, got[denom], want[denom])
		}
	}
	if a[domain.Denom1000] != 2 || b[domain.Denom1000] != 1 {
		t.Fatal("Merge mutated an input")
	}
}

func TestSubtract(t *testing.T) {
	a := domain.DenominationCount{domain.Denom5000: 2, domain.Denom1000: 3}
	b := domain.DenominationCount{domain.Denom5000: 1, domain.Denom1000: 3}

	got, err := Subtract(a, b)
	if err != nil {
		t.Fatalf("Subtract: %v", err)
	}
	if got[domain.Denom5000] != 1 {
		t.Fatalf("Subtract left %d five-thousands, want 1", got[domain.Denom5000])
	}
	if _, present := got[domain.Denom1000]; present {
		t.Fatal("zeroed denomination should be omitted")
	}
}

func TestSubtractInsufficient(t *testing.T) {
	a := domain.DenominationCount{domain.Denom1000: 1}
	b := domain.DenominationCount{domain.Denom1000: 3}

	_, err := Subtract(a, b)
	if !errors.Is(err, ErrInsufficientDenomination) {
		t.Fatalf("got %v, want ErrInsufficientDenomination", err)
	}
	if !strings.Contains(err.Error(), "1000") || !strings.Contains(err.Error(), "2") {
		t.Fatalf("error should name denomination and shortfall: %v", err)
	}
}

package stock

import (
	"context"
	"errors"
	"testing"

	"tallerpos/domain"
)

type fakeCatalog struct {
	variants []domain.StockVariant
}

func (c *fakeCatalog) QueryVariantStock(_ context.Context, filter domain.VariantFilter) ([]domain.StockVariant, error) {
	out := make([]domain.StockVariant, 0, len(c.variants))
	for _, v := range c.variants {
		if v.GarmentType == filter.GarmentType && v.Design == filter.Design && v.Color == filter.Color {
			out = append(out, v)
		}
	}
	return out, nil
}

func catalogSL(stockS, stockL int) *fakeCatalog {
	return &fakeCatalog{variants: []domain.StockVariant{
		{ID: "v-s", GarmentType: "polera", Design: "cordillera", Color: "negro", Size: "S", UnitPrice: 13000, StockOnHand: stockS},
		{ID: "v-l", GarmentType: "polera", Design: "cordillera", Color: "negro", Size: "L", UnitPrice: 13000, StockOnHand: stockL},
	}}
}

func filterFor(size string) domain.VariantFilter {
	return domain.VariantFilter{GarmentType: "polera", Design: "cordillera", Color: "negro", Size: size}
}

func TestResolveExactSize(t *testing.T) {
	r := NewResolver(catalogSL(4, 6))

	v, err := r.Resolve(context.Background(), filterFor("L"), 5)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v.ID != "v-l" {
		t.Fatalf("resolved %s, want v-l", v.ID)
	}
}

func TestResolveSizeMissing(t *testing.T) {
	// Size M does not exist; other sizes covering the quantity do not count.
	r := NewResolver(catalogSL(4, 6))

	_, err := r.Resolve(context.Background(), filterFor("M"), 1)
	if !errors.Is(err, ErrVariantNotFound) {
		t.Fatalf("got %v, want ErrVariantNotFound", err)
	}
}

func TestResolveSizeShortStock(t *testing.T) {
	r := NewResolver(catalogSL(4, 6))

	_, err := r.Resolve(context.Background(), filterFor("S"), 5)
	var insufficient *InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("got %v, want InsufficientStockError", err)
	}
	if insufficient.Available != 4 || insufficient.Required != 5 {
		t.Fatalf("reported %d/%d, want 4/5", insufficient.Available, insufficient.Required)
	}
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatal("InsufficientStockError should unwrap to ErrInsufficientStock")
	}
}

func TestResolveNoSizePicksFirstSufficient(t *testing.T) {
	// Quantity 3 fits the first size in catalog order.
	r := NewResolver(catalogSL(4, 6))

	v, err := r.Resolve(context.Background(), filterFor(""), 3)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v.ID != "v-s" {
		t.Fatalf("resolved %s, want v-s (first in stable order)", v.ID)
	}
}

func TestResolveNoSizeSumsAvailability(t *testing.T) {
	// No single size covers 10, but 4+4 exist: best-effort reports the sum.
	r := NewResolver(catalogSL(4, 4))

	_, err := r.Resolve(context.Background(), filterFor(""), 10)
	var insufficient *InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("got %v, want InsufficientStockError", err)
	}
	if insufficient.Available != 8 || insufficient.Required != 10 {
		t.Fatalf("reported %d/%d, want 8/10", insufficient.Available, insufficient.Required)
	}
}

func TestResolveNoSizeOutOfStock(t *testing.T) {
	r := NewResolver(catalogSL(0, 0))

	_, err := r.Resolve(context.Background(), filterFor(""), 1)
	if !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("got %v, want ErrOutOfStock", err)
	}
}

func TestResolveRejectsNonPositiveQuantity(t *testing.T) {
	r := NewResolver(catalogSL(4, 6))

	if _, err := r.Resolve(context.Background(), filterFor("S"), 0); err == nil {
		t.Fatal("quantity 0 should be rejected")
	}
}

// Package stock resolves catalog queries to concrete stock-keeping variants
// and caches catalog lookups.
package stock

import (
	"context"
	"errors"
	"fmt"

	"tallerpos/domain"
	"tallerpos/remote"
)

var (
	ErrVariantNotFound   = errors.New("variant not found")
	ErrOutOfStock        = errors.New("out of stock")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// InsufficientStockError reports how much stock was available against how
// much was required. When no size was requested, Available is the sum
// across all sizes — "no single size suffices", not "out of stock".
type InsufficientStockError struct {
	Available int
	Required  int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: %d available, %d required", e.Available, e.Required)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// Resolver picks one variant for a catalog query and a required quantity.
type Resolver struct {
	catalog remote.Catalog
}

func NewResolver(catalog remote.Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// Resolve applies the selection policy:
//
// With an explicit size, only that exact variant qualifies — a missing size
// is VariantNotFound and short stock is InsufficientStock, even if another
// size could cover the quantity. Without a size, the first variant in the
// catalog's stable order whose stock covers the quantity wins; if none does
// but some stock exists anywhere, InsufficientStock reports the summed
// availability; only a fully empty variant set is OutOfStock.
//
// The asymmetry is deliberate: a customer asking for size M wants size M,
// while a no-size query is "give me whichever fits the quantity".
func (r *Resolver) Resolve(ctx context.Context, filter domain.VariantFilter, quantity int) (*domain.StockVariant, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity %d", remote.ErrInvalidInput, quantity)
	}

	query := filter
	query.Size = ""
	variants, err := r.catalog.QueryVariantStock(ctx, query)
	if err != nil {
		return nil, err
	}

	if filter.Size != "" {
		for i := range variants {
			if variants[i].Size != filter.Size {
				continue
			}
			if variants[i].StockOnHand < quantity {
				return nil, &InsufficientStockError{Available: variants[i].StockOnHand, Required: quantity}
			}
			v := variants[i]
			return &v, nil
		}
		return nil, fmt.Errorf("%w: size %s", ErrVariantNotFound, filter.Size)
	}

	totalAvailable := 0
	for i := range variants {
		if variants[i].StockOnHand >= quantity {
			v := variants[i]
			return &v, nil
		}
		totalAvailable += variants[i].StockOnHand
	}
	if totalAvailable > 0 {
		return nil, &InsufficientStockError{Available: totalAvailable, Required: quantity}
	}
	return nil, ErrOutOfStock
}

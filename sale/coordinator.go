// Package sale orchestrates one sale end to end: variant resolution, tender
// validation, the remote commit, and the drawer movements that follow it.
package sale

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tallerpos/cash"
	"tallerpos/domain"
	"tallerpos/remote"
	"tallerpos/stock"
)

type Coordinator struct {
	resolver    *stock.Resolver
	ledger      *cash.SessionLedger
	commits     remote.Commits
	recons      remote.Reconciliations
	invalidator stock.Invalidator
	logger      *zap.Logger
}

func NewCoordinator(
	resolver *stock.Resolver,
	ledger *cash.SessionLedger,
	commits remote.Commits,
	recons remote.Reconciliations,
	invalidator stock.Invalidator,
	logger *zap.Logger,
) *Coordinator {
	if invalidator == nil {
		invalidator = stock.NoopInvalidator{}
	}
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &Coordinator{
		resolver:    resolver,
		ledger:      ledger,
		commits:     commits,
		recons:      recons,
		invalidator: invalidator,
		logger:      logger,
	}
}

// Sell runs one sale. Validation and resolution errors return before any
// remote commit; a commit failure aborts with no local mutation. After a
// successful commit the tendered cash is credited and the change debited as
// two independently confirmed drawer movements — if one of those fails the
// receipt is still returned, with the error wrapping
// cash.ErrDrawerNotUpdated and the divergence recorded as a pending
// reconciliation.
func (c *Coordinator) Sell(ctx context.Context, req domain.SaleRequest) (*domain.SaleReceipt, error) {
	variant, err := c.resolver.Resolve(ctx, req.Filter, req.Quantity)
	if err != nil {
		return nil, err
	}

	if req.UnitPrice <= 0 {
		return nil, fmt.Errorf("%w: unit price must be positive", remote.ErrInvalidInput)
	}
	if !req.Payment.Supported() {
		return nil, fmt.Errorf("%w: payment method %q", remote.ErrInvalidInput, req.Payment)
	}
	if req.Payment.RequiresVoucher() && req.VoucherNumber == "" {
		return nil, fmt.Errorf("%w: voucher number required for %s", remote.ErrInvalidInput, req.Payment)
	}

	due := req.UnitPrice * int64(req.Quantity)
	var changeAmount int64
	var movements []cash.Movement

	switch req.Payment {
	case domain.PayCash:
		if cash.Total(req.Tendered) <= 0 {
			return nil, fmt.Errorf("%w: cash sale requires tendered denominations", remote.ErrInvalidInput)
		}
		changeAmount, err = cash.ComputeChange(due, req.Tendered)
		if err != nil {
			return nil, err
		}
		movements = append(movements, cash.Movement{
			Direction: domain.MovementCredit,
			Counts:    req.Tendered,
			Memo:      domain.MemoSaleTender,
		})
		if changeAmount > 0 || len(req.ChangeBreakdown) > 0 {
			if err := cash.ValidateChangeBreakdown(changeAmount, req.ChangeBreakdown, c.ledger.Contents()); err != nil {
				return nil, err
			}
		}
		if changeAmount > 0 {
			movements = append(movements, cash.Movement{
				Direction: domain.MovementDebit,
				Counts:    req.ChangeBreakdown,
				Memo:      domain.MemoSaleChange,
			})
		}
	default:
		if len(req.Tendered) > 0 || len(req.ChangeBreakdown) > 0 {
			return nil, fmt.Errorf("%w: denominations only apply to cash sales", remote.ErrInvalidInput)
		}
	}

	saleID, err := c.commits.CommitSale(ctx, remote.SaleCommit{
		VariantID:     variant.ID,
		Quantity:      req.Quantity,
		UnitPrice:     req.UnitPrice,
		Payment:       req.Payment,
		VoucherNumber: req.VoucherNumber,
	})
	if err != nil {
		c.logger.Error("sale commit rejected",
			zap.String("variant_id", variant.ID),
			zap.Int("quantity", req.Quantity),
			zap.Error(err))
		return nil, fmt.Errorf("sale commit: %w", err)
	}

	receipt := &domain.SaleReceipt{
		SaleID:        saleID,
		VariantID:     variant.ID,
		Quantity:      req.Quantity,
		UnitPrice:     req.UnitPrice,
		Total:         due,
		ChangeAmount:  changeAmount,
		DrawerUpdated: true,
	}

	applied, applyErr := cash.Apply(ctx, c.ledger, movements)
	if applyErr != nil {
		rec := c.recordDivergence(ctx, domain.ReconciliationRefSale, saleID, movements[applied:])
		receipt.DrawerUpdated = false
		receipt.Reconciliation = rec
		c.refreshStock(ctx, req.Filter, req.Quantity)
		return receipt, fmt.Errorf("%w: %v", cash.ErrDrawerNotUpdated, applyErr)
	}

	c.logger.Info("sale committed",
		zap.String("sale_id", saleID),
		zap.String("variant_id", variant.ID),
		zap.Int64("total", due),
		zap.Int64("change", changeAmount))

	c.refreshStock(ctx, req.Filter, req.Quantity)
	return receipt, nil
}

// recordDivergence persists every drawer movement that never reached the
// drawer. The plan describes them exactly, so no inverse is derived by hand.
func (c *Coordinator) recordDivergence(ctx context.Context, refKind, refID string, missed []cash.Movement) *domain.PendingReconciliation {
	var first *domain.PendingReconciliation
	for _, m := range missed {
		rec := domain.PendingReconciliation{
			ID:        domain.NewID("recon"),
			SessionID: c.ledger.SessionID(),
			RefKind:   refKind,
			RefID:     refID,
			Direction: m.Direction,
			Counts:    m.Counts.Clone(),
			Memo:      m.Memo,
			CreatedAt: time.Now().UTC(),
		}
		if err := c.recons.CreatePendingReconciliation(ctx, rec); err != nil {
			c.logger.Error("failed to record pending reconciliation",
				zap.String("ref_id", refID), zap.Error(err))
			continue
		}
		if first == nil {
			saved := rec
			first = &saved
		}
	}
	return first
}

// refreshStock invalidates the cached catalog entry for the affected
// variant family and re-resolves availability so the next sale starts from
// fresh counts. Resolution errors here only mean low stock; they are logged,
// not returned.
func (c *Coordinator) refreshStock(ctx context.Context, filter domain.VariantFilter, quantity int) {
	c.invalidator.Invalidate(ctx, filter)
	if _, err := c.resolver.Resolve(ctx, filter, quantity); err != nil {
		c.logger.Info("variant availability after sale", zap.Error(err))
	}
}

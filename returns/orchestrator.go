// Package returns orchestrates returns and exchanges against an original
// sale: quantity validation, refund and price-difference settlement, the
// remote commit, drawer adjustments, and post-commit notifications.
package returns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tallerpos/cash"
	"tallerpos/domain"
	"tallerpos/notify"
	"tallerpos/remote"
	"tallerpos/rut"
	"tallerpos/stock"
)

var (
	ErrOverReturn          = errors.New("returned quantity exceeds remaining quantity")
	ErrInvalidRefundAmount = errors.New("invalid refund amount")
)

type Orchestrator struct {
	resolver    *stock.Resolver
	ledger      *cash.SessionLedger
	commits     remote.Commits
	recons      remote.Reconciliations
	invalidator stock.Invalidator
	notifier    *notify.Dispatcher
	logger      *zap.Logger
}

func NewOrchestrator(
	resolver *stock.Resolver,
	ledger *cash.SessionLedger,
	commits remote.Commits,
	recons remote.Reconciliations,
	invalidator stock.Invalidator,
	notifier *notify.Dispatcher,
	logger *zap.Logger,
) *Orchestrator {
	if invalidator == nil {
		invalidator = stock.NoopInvalidator{}
	}
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &Orchestrator{
		resolver:    resolver,
		ledger:      ledger,
		commits:     commits,
		recons:      recons,
		invalidator: invalidator,
		notifier:    notifier,
		logger:      logger,
	}
}

// Process runs one return or exchange. Every validation happens before the
// remote commit; the commit is the durability boundary for stock and the
// return record; confirmed drawer movements and best-effort notifications
// follow it. A drawer failure after commit returns the record together with
// an error wrapping cash.ErrDrawerNotUpdated.
func (o *Orchestrator) Process(ctx context.Context, req domain.ReturnRequest) (*domain.ReturnRecord, error) {
	if req.OriginalSaleID == "" || len(req.Lines) == 0 {
		return nil, fmt.Errorf("%w: original sale and returned lines required", remote.ErrInvalidInput)
	}
	if err := checkKind(req.Kind, req.Resolution); err != nil {
		return nil, err
	}

	original, err := o.commits.QuerySale(ctx, req.OriginalSaleID)
	if err != nil {
		return nil, err
	}

	lines, originalSubtotal, totalQty, err := selectLines(original, req.Lines)
	if err != nil {
		return nil, err
	}

	record := &domain.ReturnRecord{
		ID:             domain.NewID("ret"),
		OriginalSaleID: req.OriginalSaleID,
		Kind:           req.Kind,
		Resolution:     req.Resolution,
		Lines:          lines,
		Settlement:     req.Settlement,
		Difference:     domain.DifferenceNone,
		DrawerUpdated:  true,
		CreatedAt:      time.Now().UTC(),
	}

	var movements []cash.Movement
	var replacement *domain.ReturnLine
	notifyAmount := int64(0)

	switch req.Resolution {
	case domain.ResolveCashRefund:
		if req.RefundAmount <= 0 || req.RefundAmount > originalSubtotal {
			return nil, fmt.Errorf("%w: %d against subtotal %d",
				ErrInvalidRefundAmount, req.RefundAmount, originalSubtotal)
		}
		record.RefundAmount = req.RefundAmount
		notifyAmount = req.RefundAmount

		switch req.Settlement {
		case domain.SettleCash:
			movements, err = payoutMovements(req.RefundAmount, req.Payout, req.PayoutExcessReturn,
				o.ledger.Contents(), domain.MemoRefundPayout)
			if err != nil {
				return nil, err
			}
		case domain.SettleBankTransfer:
			if err := checkTransfer(req.Transfer); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: settlement %q", remote.ErrInvalidInput, req.Settlement)
		}

	case domain.ResolveProductExchange:
		if req.Replacement == nil {
			return nil, fmt.Errorf("%w: exchange requires a replacement variant", remote.ErrInvalidInput)
		}
		// The replacement must cover the full exchanged quantity in one
		// variant.
		variant, err := o.resolver.Resolve(ctx, *req.Replacement, totalQty)
		if err != nil {
			return nil, err
		}
		replacement = &domain.ReturnLine{
			VariantID: variant.ID,
			Quantity:  totalQty,
			UnitPrice: variant.UnitPrice,
		}
		record.ReplacementVariant = variant.ID

		diff := variant.UnitPrice*int64(totalQty) - originalSubtotal
		switch {
		case diff > 0:
			record.Difference = domain.CustomerOwes
			record.DifferenceAmount = diff
		case diff < 0:
			record.Difference = domain.CustomerIsOwed
			record.DifferenceAmount = -diff
		}

		movements, err = o.settleDifference(record, req)
		if err != nil {
			return nil, err
		}
		notifyAmount = record.DifferenceAmount
	}

	returnID, err := o.commits.CommitReturn(ctx, remote.ReturnCommit{
		OriginalSaleID:   req.OriginalSaleID,
		Kind:             req.Kind,
		Resolution:       req.Resolution,
		Lines:            lines,
		Replacement:      replacement,
		Difference:       record.Difference,
		DifferenceAmount: record.DifferenceAmount,
		RefundAmount:     record.RefundAmount,
		Settlement:       req.Settlement,
		Transfer:         req.Transfer,
	})
	if err != nil {
		o.logger.Error("return commit rejected",
			zap.String("original_sale_id", req.OriginalSaleID),
			zap.Error(err))
		return nil, fmt.Errorf("return commit: %w", err)
	}
	record.ID = returnID

	applied, applyErr := cash.Apply(ctx, o.ledger, movements)
	if applyErr != nil {
		rec := o.recordDivergence(ctx, returnID, movements[applied:])
		record.DrawerUpdated = false
		record.Reconciliation = rec
	}

	o.dispatchNotices(ctx, record, req, notifyAmount)

	if req.Replacement != nil {
		o.invalidator.Invalidate(ctx, *req.Replacement)
	}

	o.logger.Info("return committed",
		zap.String("return_id", returnID),
		zap.String("kind", string(req.Kind)),
		zap.String("difference", string(record.Difference)),
		zap.Int64("refund", record.RefundAmount),
		zap.Bool("drawer_updated", record.DrawerUpdated))

	if applyErr != nil {
		return record, fmt.Errorf("%w: %v", cash.ErrDrawerNotUpdated, applyErr)
	}
	return record, nil
}

// settleDifference validates the settlement of an exchange price difference
// and returns the drawer movements it implies.
func (o *Orchestrator) settleDifference(record *domain.ReturnRecord, req domain.ReturnRequest) ([]cash.Movement, error) {
	switch record.Difference {
	case domain.DifferenceNone:
		return nil, nil

	case domain.CustomerOwes:
		switch req.Settlement {
		case domain.SettleCash:
			// Money coming from the customer: same tender-and-change rules
			// as a sale.
			change, err := cash.ComputeChange(record.DifferenceAmount, req.Tendered)
			if err != nil {
				return nil, err
			}
			movements := []cash.Movement{{
				Direction: domain.MovementCredit,
				Counts:    req.Tendered,
				Memo:      domain.MemoExchangeTender,
			}}
			if change > 0 || len(req.ChangeBreakdown) > 0 {
				if err := cash.ValidateChangeBreakdown(change, req.ChangeBreakdown, o.ledger.Contents()); err != nil {
					return nil, err
				}
			}
			if change > 0 {
				movements = append(movements, cash.Movement{
					Direction: domain.MovementDebit,
					Counts:    req.ChangeBreakdown,
					Memo:      domain.MemoExchangeChange,
				})
			}
			return movements, nil
		case domain.SettleBankTransfer:
			return nil, checkTransfer(req.Transfer)
		}

	case domain.CustomerIsOwed:
		switch req.Settlement {
		case domain.SettleCash:
			return payoutMovements(record.DifferenceAmount, req.Payout, req.PayoutExcessReturn,
				o.ledger.Contents(), domain.MemoRefundPayout)
		case domain.SettleBankTransfer:
			return nil, checkTransfer(req.Transfer)
		}
	}
	return nil, fmt.Errorf("%w: settlement %q", remote.ErrInvalidInput, req.Settlement)
}

func (o *Orchestrator) recordDivergence(ctx context.Context, returnID string, missed []cash.Movement) *domain.PendingReconciliation {
	var first *domain.PendingReconciliation
	for _, m := range missed {
		rec := domain.PendingReconciliation{
			ID:        domain.NewID("recon"),
			SessionID: o.ledger.SessionID(),
			RefKind:   domain.ReconciliationRefReturn,
			RefID:     returnID,
			Direction: m.Direction,
			Counts:    m.Counts.Clone(),
			Memo:      m.Memo,
			CreatedAt: time.Now().UTC(),
		}
		if err := o.recons.CreatePendingReconciliation(ctx, rec); err != nil {
			o.logger.Error("failed to record pending reconciliation",
				zap.String("return_id", returnID), zap.Error(err))
			continue
		}
		if first == nil {
			saved := rec
			first = &saved
		}
	}
	return first
}

// dispatchNotices queues the best-effort notifications after the commit.
// Failures inside the dispatcher are logged and can never surface here.
func (o *Orchestrator) dispatchNotices(ctx context.Context, record *domain.ReturnRecord, req domain.ReturnRequest, amount int64) {
	if o.notifier == nil || amount <= 0 {
		return
	}
	actor, _ := domain.ActorFromContext(ctx)

	if req.Settlement == domain.SettleBankTransfer && req.Transfer != nil {
		o.notifier.BankTransfer(domain.BankTransferNotice{
			Details: *req.Transfer,
			Amount:  amount,
			Reason:  fmt.Sprintf("%s %s", record.Kind, record.ID),
		})
		return
	}
	o.notifier.CashMovement(domain.CashMovementNotice{
		Amount: amount,
		Reason: fmt.Sprintf("%s %s", record.Kind, record.ID),
		Actor:  actor.Username,
	})
}

func checkKind(kind domain.OperationKind, resolution domain.ResolutionMethod) error {
	switch kind {
	case domain.OpReturn:
		if resolution != domain.ResolveCashRefund {
			return fmt.Errorf("%w: return requires cash_refund resolution", remote.ErrInvalidInput)
		}
	case domain.OpExchange:
		if resolution != domain.ResolveProductExchange {
			return fmt.Errorf("%w: exchange requires product_exchange resolution", remote.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: operation kind %q", remote.ErrInvalidInput, kind)
	}
	return nil
}

// selectLines validates the requested quantities against what remains
// unreturned on the original sale and prices them from the original lines.
func selectLines(original *domain.SaleRecord, requested []domain.ReturnLine) ([]domain.ReturnLine, int64, int, error) {
	byVariant := make(map[string]domain.SaleRecordLine, len(original.Lines))
	for _, line := range original.Lines {
		current := byVariant[line.VariantID]
		current.VariantID = line.VariantID
		current.Quantity += line.Quantity
		current.ReturnedQty += line.ReturnedQty
		if current.UnitPrice == 0 {
			current.UnitPrice = line.UnitPrice
		}
		byVariant[line.VariantID] = current
	}

	// Aggregate the request per variant first: a variant split over several
	// lines is judged against the remaining quantity as one total, so
	// duplicates cannot slip past the over-return check or inflate the
	// refundable subtotal.
	order := make([]string, 0, len(requested))
	wanted := make(map[string]int, len(requested))
	for _, req := range requested {
		if req.VariantID == "" || req.Quantity < 1 {
			return nil, 0, 0, fmt.Errorf("%w: return line", remote.ErrInvalidInput)
		}
		if _, seen := wanted[req.VariantID]; !seen {
			order = append(order, req.VariantID)
		}
		wanted[req.VariantID] += req.Quantity
	}

	lines := make([]domain.ReturnLine, 0, len(order))
	var subtotal int64
	totalQty := 0
	for _, variantID := range order {
		sold, ok := byVariant[variantID]
		if !ok {
			return nil, 0, 0, fmt.Errorf("%w: variant %s not on sale", remote.ErrInvalidInput, variantID)
		}
		remaining := sold.Quantity - sold.ReturnedQty
		qty := wanted[variantID]
		if qty > remaining {
			return nil, 0, 0, fmt.Errorf("%w: variant %s has %d remaining, %d requested",
				ErrOverReturn, variantID, remaining, qty)
		}
		lines = append(lines, domain.ReturnLine{
			VariantID: variantID,
			Quantity:  qty,
			UnitPrice: sold.UnitPrice,
		})
		subtotal += int64(qty) * sold.UnitPrice
		totalQty += qty
	}
	return lines, subtotal, totalQty, nil
}

// payoutMovements validates cash leaving the drawer. The payout breakdown
// must cover the owed amount and be available per denomination; when it
// exceeds the amount, the excess must be matched exactly by the
// change-returned-to-drawer breakdown — the inversion of the sale-side
// change check, since here the store is the paying party.
func payoutMovements(owed int64, payout, excessReturn, available domain.DenominationCount, memo string) ([]cash.Movement, error) {
	if !payout.IsValid() || !excessReturn.IsValid() {
		return nil, fmt.Errorf("%w: payout breakdown", cash.ErrInvalidCounts)
	}
	total := cash.Total(payout)
	if total < owed {
		return nil, fmt.Errorf("%w: payout %d below amount owed %d", cash.ErrInsufficientTender, total, owed)
	}
	for _, denom := range domain.Denominations {
		if payout[denom] > available[denom] {
			return nil, fmt.Errorf("%w: %d short %d",
				remote.ErrInsufficientDrawerStock, denom, payout[denom]-available[denom])
		}
	}

	excess := total - owed
	if got := cash.Total(excessReturn); got != excess {
		return nil, fmt.Errorf("%w: excess return sums to %d, excess is %d", cash.ErrChangeMismatch, got, excess)
	}

	movements := []cash.Movement{{
		Direction: domain.MovementDebit,
		Counts:    payout,
		Memo:      memo,
	}}
	if excess > 0 {
		movements = append(movements, cash.Movement{
			Direction: domain.MovementCredit,
			Counts:    excessReturn,
			Memo:      domain.MemoPayoutExcess,
		})
	}
	return movements, nil
}

// checkTransfer requires every bank transfer field and a valid tax id.
func checkTransfer(t *domain.BankTransferDetails) error {
	if t == nil {
		return fmt.Errorf("%w: bank transfer details required", remote.ErrInvalidInput)
	}
	if t.HolderName == "" || t.Bank == "" || t.AccountType == "" || t.AccountNumber == "" || t.Email == "" {
		return fmt.Errorf("%w: incomplete bank transfer details", remote.ErrInvalidInput)
	}
	if err := rut.Validate(t.RUT); err != nil {
		return fmt.Errorf("%w: %v", remote.ErrInvalidInput, err)
	}
	return nil
}

package cash

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"tallerpos/domain"
	"tallerpos/remote"
	"tallerpos/remote/memory"
)

func openLedger(t *testing.T, st *memory.Store, float domain.DenominationCount) *SessionLedger {
	t.Helper()
	session, err := st.OpenSession(context.Background(), "store-1", float)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	return NewSessionLedger(*session, st, zaptest.NewLogger(t))
}

func TestSessionLedgerCreditDebit(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	ledger := openLedger(t, st, domain.DenominationCount{domain.Denom1000: 10})

	if err := ledger.Credit(ctx, domain.DenominationCount{domain.Denom5000: 2}, domain.MemoSaleTender); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if got := ledger.CurrentTotal(); got != 20000 {
		t.Fatalf("total after credit = %d, want 20000", got)
	}

	if err := ledger.Debit(ctx, domain.DenominationCount{domain.Denom1000: 3}, domain.MemoSaleChange); err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if got := ledger.CurrentTotal(); got != 17000 {
		t.Fatalf("total after debit = %d, want 17000", got)
	}

	// The projection must agree with the remote drawer.
	contents, err := st.QueryDrawerContents(ctx, ledger.SessionID())
	if err != nil {
		t.Fatalf("QueryDrawerContents: %v", err)
	}
	if Total(contents) != ledger.CurrentTotal() {
		t.Fatalf("projection %d diverged from remote %d", ledger.CurrentTotal(), Total(contents))
	}
}

func TestSessionLedgerDebitInsufficient(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	ledger := openLedger(t, st, domain.DenominationCount{domain.Denom1000: 1})

	err := ledger.Debit(ctx, domain.DenominationCount{domain.Denom1000: 2}, domain.MemoSaleChange)
	if !errors.Is(err, remote.ErrInsufficientDrawerStock) {
		t.Fatalf("got %v, want ErrInsufficientDrawerStock", err)
	}
	if got := ledger.CurrentTotal(); got != 1000 {
		t.Fatalf("failed debit mutated the projection: total %d", got)
	}
}

func TestSessionLedgerClosedRejects(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	ledger := openLedger(t, st, domain.DenominationCount{domain.Denom1000: 1})
	ledger.MarkClosed()

	if err := ledger.Credit(ctx, domain.DenominationCount{domain.Denom1000: 1}, domain.MemoManualIncome); !errors.Is(err, remote.ErrSessionClosed) {
		t.Fatalf("credit on closed session: got %v, want ErrSessionClosed", err)
	}
	if err := ledger.Debit(ctx, domain.DenominationCount{domain.Denom1000: 1}, domain.MemoManualExpense); !errors.Is(err, remote.ErrSessionClosed) {
		t.Fatalf("debit on closed session: got %v, want ErrSessionClosed", err)
	}
}

func TestSessionLedgerRefresh(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	ledger := openLedger(t, st, domain.DenominationCount{domain.Denom1000: 5})

	// Mutate the remote drawer behind the projection's back.
	if err := st.CreditDrawer(ctx, ledger.SessionID(), domain.DenominationCount{domain.Denom5000: 1}, domain.MemoManualIncome); err != nil {
		t.Fatalf("CreditDrawer: %v", err)
	}
	if got := ledger.CurrentTotal(); got != 5000 {
		t.Fatalf("projection should still be stale, total %d", got)
	}
	if err := ledger.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := ledger.CurrentTotal(); got != 10000 {
		t.Fatalf("total after refresh = %d, want 10000", got)
	}
}

func TestApplyStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	ledger := openLedger(t, st, domain.DenominationCount{domain.Denom1000: 1})

	movements := []Movement{
		{Direction: domain.MovementCredit, Counts: domain.DenominationCount{domain.Denom1000: 2}, Memo: domain.MemoSaleTender},
		{Direction: domain.MovementDebit, Counts: domain.DenominationCount{domain.Denom5000: 1}, Memo: domain.MemoSaleChange},
		{Direction: domain.MovementCredit, Counts: domain.DenominationCount{domain.Denom1000: 1}, Memo: domain.MemoSaleTender},
	}
	applied, err := Apply(ctx, ledger, movements)
	if err == nil {
		t.Fatal("expected the debit to fail")
	}
	if applied != 1 {
		t.Fatalf("applied = %d, want 1", applied)
	}
	if got := ledger.CurrentTotal(); got != 3000 {
		t.Fatalf("total after partial apply = %d, want 3000", got)
	}
}

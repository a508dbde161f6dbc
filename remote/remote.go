// Package remote defines the contract of the back-office collaborators the
// engine talks to. Implementations own the canonical cash-session and stock
// state; the engine only holds projections refreshed from confirmed results.
package remote

import (
	"context"
	"errors"

	"tallerpos/domain"
)

var (
	ErrNotFound                = errors.New("not found")
	ErrInvalidInput            = errors.New("invalid input")
	ErrOutOfStock              = errors.New("out of stock")
	ErrInsufficientDrawerStock = errors.New("insufficient drawer stock")
	ErrOverReturn              = errors.New("return exceeds remaining quantity")
	ErrSessionClosed           = errors.New("cash session closed")
	ErrBackend                 = errors.New("backend failure")
)

// Catalog is the read-only stock lookup.
type Catalog interface {
	QueryVariantStock(ctx context.Context, filter domain.VariantFilter) ([]domain.StockVariant, error)
}

// Drawer mutates and reads one cash session's physical contents. Credit and
// debit are the durability boundary for drawer movements: the engine applies
// its local projection only after these return nil.
type Drawer interface {
	CreditDrawer(ctx context.Context, sessionID string, counts domain.DenominationCount, memo string) error
	DebitDrawer(ctx context.Context, sessionID string, counts domain.DenominationCount, memo string) error
	QueryDrawerContents(ctx context.Context, sessionID string) (domain.DenominationCount, error)
}

// SaleCommit is the payload of the atomic stock-decrement + sale-record call.
type SaleCommit struct {
	VariantID     string
	Quantity      int
	UnitPrice     int64
	Payment       domain.PaymentMethod
	VoucherNumber string
}

// ReturnCommit is the payload of the atomic return/exchange call: stock
// adjustments (returned lines back in, replacement out) plus the record.
type ReturnCommit struct {
	OriginalSaleID   string
	Kind             domain.OperationKind
	Resolution       domain.ResolutionMethod
	Lines            []domain.ReturnLine
	Replacement      *domain.ReturnLine
	Difference       domain.DifferenceKind
	DifferenceAmount int64
	RefundAmount     int64
	Settlement       domain.SettlementMethod
	Transfer         *domain.BankTransferDetails
}

// Commits are the durability boundaries of the two orchestrated operations.
type Commits interface {
	CommitSale(ctx context.Context, commit SaleCommit) (string, error)
	CommitReturn(ctx context.Context, commit ReturnCommit) (string, error)
	QuerySale(ctx context.Context, saleID string) (*domain.SaleRecord, error)
}

// Reconciliations persist the divergence state left behind when a committed
// transaction's drawer movement fails.
type Reconciliations interface {
	CreatePendingReconciliation(ctx context.Context, rec domain.PendingReconciliation) error
	ListPendingReconciliations(ctx context.Context, sessionID string) ([]domain.PendingReconciliation, error)
}

// Sessions covers the drawer lifecycle around the engine: opening a shift
// with a counted float and closing it against a declared count.
type Sessions interface {
	OpenSession(ctx context.Context, storeID string, openingFloat domain.DenominationCount) (*domain.CashSession, error)
	CloseSession(ctx context.Context, sessionID string, declared domain.DenominationCount) (*domain.CashSession, error)
	GetSession(ctx context.Context, sessionID string) (*domain.CashSession, error)
}

// Backend is the full remote surface, implemented by remote/memory and
// remote/postgres.
type Backend interface {
	Catalog
	Drawer
	Commits
	Reconciliations
	Sessions
}

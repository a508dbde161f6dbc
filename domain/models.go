package domain

import "time"

// Denomination is one face value of the bills and coins accepted at the
// register. The set is closed: drawer arithmetic is only defined over the
// values listed in Denominations.
type Denomination int64

const (
	Denom100   Denomination = 100
	Denom500   Denomination = 500
	Denom1000  Denomination = 1000
	Denom2000  Denomination = 2000
	Denom5000  Denomination = 5000
	Denom10000 Denomination = 10000
	Denom20000 Denomination = 20000
)

// Denominations lists every accepted denomination, largest first. Iteration
// over drawer contents always uses this slice so output order is stable.
var Denominations = []Denomination{
	Denom20000,
	Denom10000,
	Denom5000,
	Denom2000,
	Denom1000,
	Denom500,
	Denom100,
}

// DenominationCount maps a denomination to how many physical units of it a
// breakdown holds. Counts are never negative.
type DenominationCount map[Denomination]int

func (c DenominationCount) Clone() DenominationCount {
	out := make(DenominationCount, len(c))
	for denom, n := range c {
		out[denom] = n
	}
	return out
}

// IsValid reports whether every key is a known denomination and every count
// is non-negative.
func (c DenominationCount) IsValid() bool {
	for denom, n := range c {
		if n < 0 || !denom.Known() {
			return false
		}
	}
	return true
}

func (d Denomination) Known() bool {
	for _, known := range Denominations {
		if d == known {
			return true
		}
	}
	return false
}

type SessionStatus string

const (
	SessionOpen   SessionStatus = "open"
	SessionClosed SessionStatus = "closed"
)

// CashSession is one drawer period for one store. At most one open session
// exists per store; the backend enforces that, the engine assumes it.
type CashSession struct {
	ID            string            `json:"id"`
	StoreID       string            `json:"store_id"`
	OpeningFloat  int64             `json:"opening_float"`
	Drawer        DenominationCount `json:"drawer"`
	Status        SessionStatus     `json:"status"`
	OpenedAt      time.Time         `json:"opened_at"`
	ClosedAt      *time.Time        `json:"closed_at,omitempty"`
	DeclaredTotal *int64            `json:"declared_total,omitempty"`
	Deviation     *int64            `json:"deviation,omitempty"`
}

type PaymentMethod string

const (
	PayCash       PaymentMethod = "cash"
	PayDebitCard  PaymentMethod = "debit_card"
	PayCreditCard PaymentMethod = "credit_card"
)

// RequiresVoucher reports whether the method needs a receipt/voucher number
// from the card terminal.
func (m PaymentMethod) RequiresVoucher() bool {
	return m == PayDebitCard || m == PayCreditCard
}

func (m PaymentMethod) Supported() bool {
	return m == PayCash || m == PayDebitCard || m == PayCreditCard
}

// VariantFilter selects stock variants by catalog attributes. Size is
// optional; when empty the resolver picks the first size that can cover the
// requested quantity.
type VariantFilter struct {
	GarmentType string `json:"garment_type"`
	Design      string `json:"design"`
	Color       string `json:"color"`
	Size        string `json:"size,omitempty"`
}

// StockVariant is the unit of stock tracking: one size of one
// design/color/garment combination.
type StockVariant struct {
	ID          string `json:"id"`
	GarmentType string `json:"garment_type"`
	Design      string `json:"design"`
	Color       string `json:"color"`
	Size        string `json:"size"`
	UnitPrice   int64  `json:"unit_price"`
	StockOnHand int    `json:"stock_on_hand"`
}

// SaleRequest carries everything the coordinator needs to run one sale.
type SaleRequest struct {
	Filter          VariantFilter     `json:"filter"`
	Quantity        int               `json:"quantity"`
	UnitPrice       int64             `json:"unit_price"`
	Payment         PaymentMethod     `json:"payment"`
	VoucherNumber   string            `json:"voucher_number,omitempty"`
	Tendered        DenominationCount `json:"tendered,omitempty"`
	ChangeBreakdown DenominationCount `json:"change_breakdown,omitempty"`
}

// SaleReceipt is the confirmed outcome of a committed sale. DrawerUpdated is
// false when the sale stands but a drawer movement was rejected; in that
// case Reconciliation points at the recorded divergence.
type SaleReceipt struct {
	SaleID         string                 `json:"sale_id"`
	VariantID      string                 `json:"variant_id"`
	Quantity       int                    `json:"quantity"`
	UnitPrice      int64                  `json:"unit_price"`
	Total          int64                  `json:"total"`
	ChangeAmount   int64                  `json:"change_amount"`
	DrawerUpdated  bool                   `json:"drawer_updated"`
	Reconciliation *PendingReconciliation `json:"reconciliation,omitempty"`
}

// SaleRecordLine is one line of a committed sale as the backend reports it,
// including how much of it has already been returned.
type SaleRecordLine struct {
	VariantID   string `json:"variant_id"`
	Quantity    int    `json:"quantity"`
	ReturnedQty int    `json:"returned_qty"`
	UnitPrice   int64  `json:"unit_price"`
}

type SaleRecord struct {
	ID            string           `json:"id"`
	Payment       PaymentMethod    `json:"payment"`
	VoucherNumber string           `json:"voucher_number,omitempty"`
	Lines         []SaleRecordLine `json:"lines"`
	CreatedAt     time.Time        `json:"created_at"`
}

type OperationKind string

const (
	OpReturn   OperationKind = "return"
	OpExchange OperationKind = "exchange"
)

type ResolutionMethod string

const (
	ResolveCashRefund      ResolutionMethod = "cash_refund"
	ResolveProductExchange ResolutionMethod = "product_exchange"
)

type SettlementMethod string

const (
	SettleCash         SettlementMethod = "cash"
	SettleBankTransfer SettlementMethod = "bank_transfer"
)

// DifferenceKind classifies the price difference of an exchange.
type DifferenceKind string

const (
	DifferenceNone DifferenceKind = "none"
	CustomerOwes   DifferenceKind = "customer_owes"
	CustomerIsOwed DifferenceKind = "customer_is_owed"
)

// BankTransferDetails identifies the account a refund or difference is
// wired to. Required only when a settlement uses SettleBankTransfer.
type BankTransferDetails struct {
	RUT           string `json:"rut"`
	HolderName    string `json:"holder_name"`
	Bank          string `json:"bank"`
	AccountType   string `json:"account_type"`
	AccountNumber string `json:"account_number"`
	Email         string `json:"email"`
}

// ReturnLine selects a quantity of one original sale line to be returned.
type ReturnLine struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price,omitempty"`
}

// ReturnRequest carries one return or exchange. Which breakdown fields are
// consulted depends on the resolution, the settlement method and, for
// exchanges, the direction of the price difference:
//   - cash payout to the customer: Payout, and PayoutExcessReturn when the
//     payout breakdown exceeds the owed amount;
//   - cash collected from the customer: Tendered and ChangeBreakdown;
//   - bank transfer: Transfer.
type ReturnRequest struct {
	OriginalSaleID     string               `json:"original_sale_id"`
	Kind               OperationKind        `json:"kind"`
	Resolution         ResolutionMethod     `json:"resolution"`
	Lines              []ReturnLine         `json:"lines"`
	RefundAmount       int64                `json:"refund_amount,omitempty"`
	Settlement         SettlementMethod     `json:"settlement"`
	Payout             DenominationCount    `json:"payout,omitempty"`
	PayoutExcessReturn DenominationCount    `json:"payout_excess_return,omitempty"`
	Tendered           DenominationCount    `json:"tendered,omitempty"`
	ChangeBreakdown    DenominationCount    `json:"change_breakdown,omitempty"`
	Replacement        *VariantFilter       `json:"replacement,omitempty"`
	Transfer           *BankTransferDetails `json:"transfer,omitempty"`
}

// ReturnRecord is the confirmed outcome of a committed return or exchange.
type ReturnRecord struct {
	ID                 string                 `json:"id"`
	OriginalSaleID     string                 `json:"original_sale_id"`
	Kind               OperationKind          `json:"kind"`
	Resolution         ResolutionMethod       `json:"resolution"`
	Lines              []ReturnLine           `json:"lines"`
	ReplacementVariant string                 `json:"replacement_variant,omitempty"`
	Difference         DifferenceKind         `json:"difference"`
	DifferenceAmount   int64                  `json:"difference_amount"`
	RefundAmount       int64                  `json:"refund_amount"`
	Settlement         SettlementMethod       `json:"settlement"`
	DrawerUpdated      bool                   `json:"drawer_updated"`
	Reconciliation     *PendingReconciliation `json:"reconciliation,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
}

// PendingReconciliation records a committed business transaction whose
// drawer movement was rejected afterwards. It is a durable, queryable state,
// not a transient warning: the drawer and the books disagree until an
// operator settles it.
type PendingReconciliation struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	RefKind   string            `json:"ref_kind"`
	RefID     string            `json:"ref_id"`
	Direction string            `json:"direction"`
	Counts    DenominationCount `json:"counts"`
	Memo      string            `json:"memo"`
	CreatedAt time.Time         `json:"created_at"`
}

const (
	ReconciliationRefSale   = "sale"
	ReconciliationRefReturn = "return"

	MovementCredit = "credit"
	MovementDebit  = "debit"
)

// Drawer movement memos, recorded with every credit/debit.
const (
	MemoSaleTender     = "sale_tender"
	MemoSaleChange     = "sale_change"
	MemoRefundPayout   = "refund_payout"
	MemoPayoutExcess   = "payout_excess_return"
	MemoExchangeTender = "exchange_tender"
	MemoExchangeChange = "exchange_change"
	MemoManualIncome   = "manual_income"
	MemoManualExpense  = "manual_expense"
)

// CashMovementNotice and BankTransferNotice are the payloads of the
// best-effort notification side-channel.
type CashMovementNotice struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

type BankTransferNotice struct {
	Details BankTransferDetails `json:"details"`
	Amount  int64               `json:"amount"`
	Reason  string              `json:"reason"`
}

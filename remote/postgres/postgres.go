// Package postgres is the production remote backend. It owns the canonical
// session, drawer, stock and sale state; drawer counts and breakdowns are
// stored as jsonb and every commit runs in one transaction, so the engine's
// pre-checks stay advisory and this layer stays authoritative.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tallerpos/domain"
	"tallerpos/remote"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) QueryVariantStock(ctx context.Context, filter domain.VariantFilter) ([]domain.StockVariant, error) {
	if filter.GarmentType == "" || filter.Design == "" || filter.Color == "" {
		return nil, fmt.Errorf("%w: garment type, design and color are required", remote.ErrInvalidInput)
	}

	query := `
		SELECT id, garment_type, design, color, size, unit_price, stock_on_hand
		FROM stock_variants
		WHERE garment_type = $1 AND design = $2 AND color = $3
	`
	args := []any{filter.GarmentType, filter.Design, filter.Color}
	if filter.Size != "" {
		query += ` AND size = $4`
		args = append(args, filter.Size)
	}
	query += ` ORDER BY position, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}
	defer rows.Close()

	variants := make([]domain.StockVariant, 0, 4)
	for rows.Next() {
		var v domain.StockVariant
		if err := rows.Scan(&v.ID, &v.GarmentType, &v.Design, &v.Color, &v.Size, &v.UnitPrice, &v.StockOnHand); err != nil {
			return nil, fmt.Errorf("%w: %v", remote.ErrBackend, err)
		}
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}
	return variants, nil
}

func (s *Store) OpenSession(ctx context.Context, storeID string, openingFloat domain.DenominationCount) (*domain.CashSession, error) {
	if storeID == "" || !openingFloat.IsValid() {
		return nil, fmt.Errorf("%w: store id and a valid opening float required", remote.ErrInvalidInput)
	}

	drawerJSON, err := json.Marshal(openingFloat)
	if err != nil {
		return nil, err
	}

	session := domain.CashSession{
		ID:           domain.NewID("ses"),
		StoreID:      storeID,
		OpeningFloat: countTotal(openingFloat),
		Drawer:       openingFloat.Clone(),
		Status:       domain.SessionOpen,
		OpenedAt:     time.Now().UTC(),
	}

	// A partial unique index on (store_id) WHERE status = 'open' backs the
	// one-open-session-per-store rule.
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cash_sessions (id, store_id, opening_float, drawer, status, opened_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, session.ID, session.StoreID, session.OpeningFloat, drawerJSON, session.Status, session.OpenedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: store %s already has an open session", remote.ErrInvalidInput, storeID)
		}
		return nil, fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}
	return &session, nil
}

func (s *Store) CloseSession(ctx context.Context, sessionID string, declared domain.DenominationCount) (*domain.CashSession, error) {
	if !declared.IsValid() {
		return nil, fmt.Errorf("%w: declared counts", remote.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}
	defer func() { _ = tx.Rollback() }()

	session, err := lockSession(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.SessionOpen {
		return nil, remote.ErrSessionClosed
	}

	declaredTotal := countTotal(declared)
	deviation := declaredTotal - countTotal(session.Drawer)
	now := time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		UPDATE cash_sessions
		SET status = $2, closed_at = $3, declared_total = $4, deviation = $5
		WHERE id = $1
	`, sessionID, domain.SessionClosed, now, declaredTotal, deviation)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}

	session.Status = domain.SessionClosed
	session.ClosedAt = &now
	session.DeclaredTotal = &declaredTotal
	session.Deviation = &deviation
	return session, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*domain.CashSession, error) {
	var session domain.CashSession
	var drawerJSON []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, store_id, opening_float, drawer, status, opened_at, closed_at, declared_total, deviation
		FROM cash_sessions
		WHERE id = $1
	`, sessionID).Scan(&session.ID, &session.StoreID, &session.OpeningFloat, &drawerJSON,
		&session.Status, &session.OpenedAt, &session.ClosedAt, &session.DeclaredTotal, &session.Deviation)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, remote.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}
	if err := json.Unmarshal(drawerJSON, &session.Drawer); err != nil {
		return nil, fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}
	return &session, nil
}

func (s *Store) CreditDrawer(ctx context.Context, sessionID string, counts domain.DenominationCount, memo string) error {
	return s.moveDrawer(ctx, sessionID, counts, memo, domain.MovementCredit)
}

func (s *Store) DebitDrawer(ctx context.Context, sessionID string, counts domain.DenominationCount, memo string) error {
	return s.moveDrawer(ctx, sessionID, counts, memo, domain.MovementDebit)
}

// moveDrawer locks the session row, applies one movement to the drawer
// jsonb and appends the movement to the audit trail. Debits that would push
// any denomination negative are rejected without mutating anything.
func (s *Store) moveDrawer(ctx context.Context, sessionID string, counts domain.DenominationCount, memo string, direction string) error {
	if !counts.IsValid() || memo == "" {
		return fmt.Errorf("%w: drawer movement", remote.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}
	defer func() { _ = tx.Rollback() }()

	session, err := lockSession(ctx, tx, sessionID)
	if err != nil {
		return err
	}
	if session.Status != domain.SessionOpen {
		return remote.ErrSessionClosed
	}

	drawer := session.Drawer
	for _, denom := range domain.Denominations {
		n := counts[denom]
		if n == 0 {
			continue
		}
		if direction == domain.MovementDebit {
			if n > drawer[denom] {
				return fmt.Errorf("%w: %d short %d",
					remote.ErrInsufficientDrawerStock, denom, n-drawer[denom])
			}
			drawer[denom] -= n
		} else {
			drawer[denom] += n
		}
	}

	drawerJSON, err := json.Marshal(drawer)
	if err != nil {
		return err
	}
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE cash_sessions SET drawer = $2 WHERE id = $1
	`, sessionID, drawerJSON); err != nil {
		return fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO drawer_movements (session_id, direction, counts, memo, created_at)
		VALUES ($1,$2,$3,$4,now())
	`, sessionID, direction, countsJSON, memo); err != nil {
		return fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}
	return nil
}

func (s *Store) QueryDrawerContents(ctx context.Context, sessionID string) (domain.DenominationCount, error) {
	var drawerJSON []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT drawer FROM cash_sessions WHERE id = $1
	`, sessionID).Scan(&drawerJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, remote.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}
	var drawer domain.DenominationCount
	if err := json.Unmarshal(drawerJSON, &drawer); err != nil {
		return nil, fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}
	return drawer, nil
}

// CommitSale decrements stock and writes the sale record atomically. The
// conditional UPDATE is the authoritative stock check.
func (s *Store) CommitSale(ctx context.Context, commit remote.SaleCommit) (string, error) {
	if commit.Quantity < 1 || commit.UnitPrice < 1 || !commit.Payment.Supported() {
		return "", fmt.Errorf("%w: sale commit", remote.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return "", fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE stock_variants
		SET stock_on_hand = stock_on_hand - $2
		WHERE id = $1 AND stock_on_hand >= $2
	`, commit.VariantID, commit.Quantity)
	if err != nil {
		return "", fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}
	if affected == 0 {
		if exists, err := variantExists(ctx, tx, commit.VariantID); err != nil {
			return "", err
		} else if !exists {
			return "", fmt.Errorf("%w: variant %s", remote.ErrNotFound, commit.VariantID)
		}
		return "", fmt.Errorf("%w: variant %s", remote.ErrOutOfStock, commit.VariantID)
	}

	saleID := domain.NewID("sale")
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sales (id, payment, voucher_number, created_at)
		VALUES ($1,$2,$3,now())
	`, saleID, commit.Payment, commit.VoucherNumber); err != nil {
		return "", fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sale_lines (sale_id, variant_id, quantity, returned_qty, unit_price)
		VALUES ($1,$2,$3,0,$4)
	`, saleID, commit.VariantID, commit.Quantity, commit.UnitPrice); err != nil {
		return "", fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}
	return saleID, nil
}

func (s *Store) QuerySale(ctx context.Context, saleID string) (*domain.SaleRecord, error) {
	var sale domain.SaleRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT id, payment, voucher_number, created_at FROM sales WHERE id = $1
	`, saleID).Scan(&sale.ID, &sale.Payment, &sale.VoucherNumber, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: sale %s", remote.ErrNotFound, saleID)
		}
		return nil, fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT variant_id, quantity, returned_qty, unit_price
		FROM sale_lines
		WHERE sale_id = $1
		ORDER BY variant_id
	`, saleID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.SaleRecordLine
		if err := rows.Scan(&line.VariantID, &line.Quantity, &line.ReturnedQty, &line.UnitPrice); err != nil {
			return nil, fmt.Errorf("%w: %v", remote.ErrBackend, err)
		}
		sale.Lines = append(sale.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}
	return &sale, nil
}

// CommitReturn adjusts returned quantities, restocks the returned lines,
// takes the replacement out of stock and writes the return record in one
// transaction. Conditional UPDATEs re-validate remaining quantities and
// replacement stock authoritatively.
func (s *Store) CommitReturn(ctx context.Context, commit remote.ReturnCommit) (string, error) {
	if len(commit.Lines) == 0 {
		return "", fmt.Errorf("%w: return commit without lines", remote.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return "", fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, line := range commit.Lines {
		res, err := tx.ExecContext(ctx, `
			UPDATE sale_lines
			SET returned_qty = returned_qty + $3
			WHERE sale_id = $1 AND variant_id = $2 AND quantity - returned_qty >= $3
		`, commit.OriginalSaleID, line.VariantID, line.Quantity)
		if err != nil {
			return "", fmt.Errorf("%w: %v", remote.ErrBackend, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return "", fmt.Errorf("%w: %v", remote.ErrBackend, err)
		}
		if affected == 0 {
			return "", fmt.Errorf("%w: variant %s", remote.ErrOverReturn, line.VariantID)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE stock_variants SET stock_on_hand = stock_on_hand + $2 WHERE id = $1
		`, line.VariantID, line.Quantity); err != nil {
			return "", fmt.Errorf("%w: %v", remote.ErrBackend, err)
		}
	}

	if commit.Replacement != nil {
		res, err := tx.ExecContext(ctx, `
			UPDATE stock_variants
			SET stock_on_hand = stock_on_hand - $2
			WHERE id = $1 AND stock_on_hand >= $2
		`, commit.Replacement.VariantID, commit.Replacement.Quantity)
		if err != nil {
			return "", fmt.Errorf("%w: %v", remote.ErrBackend, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return "", fmt.Errorf("%w: %v", remote.ErrBackend, err)
		}
		if affected == 0 {
			return "", fmt.Errorf("%w: variant %s", remote.ErrOutOfStock, commit.Replacement.VariantID)
		}
	}

	linesJSON, err := json.Marshal(commit.Lines)
	if err != nil {
		return "", err
	}
	var replacementJSON, transferJSON []byte
	if commit.Replacement != nil {
		if replacementJSON, err = json.Marshal(commit.Replacement); err != nil {
			return "", err
		}
	}
	if commit.Transfer != nil {
		if transferJSON, err = json.Marshal(commit.Transfer); err != nil {
			return "", err
		}
	}

	returnID := domain.NewID("ret")
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO returns (id, original_sale_id, kind, resolution, lines, replacement,
			difference, difference_amount, refund_amount, settlement, transfer, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now())
	`, returnID, commit.OriginalSaleID, commit.Kind, commit.Resolution, linesJSON, replacementJSON,
		commit.Difference, commit.DifferenceAmount, commit.RefundAmount, commit.Settlement, transferJSON); err != nil {
		return "", fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}
	return returnID, nil
}

func (s *Store) CreatePendingReconciliation(ctx context.Context, rec domain.PendingReconciliation) error {
	if rec.SessionID == "" || rec.RefID == "" {
		return fmt.Errorf("%w: pending reconciliation", remote.ErrInvalidInput)
	}

	countsJSON, err := json.Marshal(rec.Counts)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pending_reconciliations (id, session_id, ref_kind, ref_id, direction, counts, memo, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, rec.ID, rec.SessionID, rec.RefKind, rec.RefID, rec.Direction, countsJSON, rec.Memo, rec.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: reconciliation %s", remote.ErrInvalidInput, rec.ID)
		}
		return fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}
	return nil
}

func (s *Store) ListPendingReconciliations(ctx context.Context, sessionID string) ([]domain.PendingReconciliation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, ref_kind, ref_id, direction, counts, memo, created_at
		FROM pending_reconciliations
		WHERE session_id = $1
		ORDER BY created_at, id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}
	defer rows.Close()

	recs := make([]domain.PendingReconciliation, 0, 4)
	for rows.Next() {
		var rec domain.PendingReconciliation
		var countsJSON []byte
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.RefKind, &rec.RefID,
			&rec.Direction, &countsJSON, &rec.Memo, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", remote.ErrBackend, err)
		}
		if err := json.Unmarshal(countsJSON, &rec.Counts); err != nil {
			return nil, fmt.Errorf("%w: %v", remote.ErrBackend, err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}
	return recs, nil
}

func lockSession(ctx context.Context, tx *sql.Tx, sessionID string) (*domain.CashSession, error) {
	var session domain.CashSession
	var drawerJSON []byte
	err := tx.QueryRowContext(ctx, `
		SELECT id, store_id, opening_float, drawer, status, opened_at
		FROM cash_sessions
		WHERE id = $1
		FOR UPDATE
	`, sessionID).Scan(&session.ID, &session.StoreID, &session.OpeningFloat,
		&drawerJSON, &session.Status, &session.OpenedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, remote.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}
	if err := json.Unmarshal(drawerJSON, &session.Drawer); err != nil {
		return nil, fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}
	return &session, nil
}

func variantExists(ctx context.Context, tx *sql.Tx, variantID string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM stock_variants WHERE id = $1`, variantID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", remote.ErrBackend, err)
	}
	return true, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func countTotal(counts domain.DenominationCount) int64 {
	var total int64
	for denom, n := range counts {
		total += int64(denom) * int64(n)
	}
	return total
}

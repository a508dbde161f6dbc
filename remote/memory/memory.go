// Package memory is the in-memory remote backend used for dev and tests. It
// owns the canonical session, drawer, stock and sale state behind a RWMutex
// and enforces the same rules the postgres backend does: one open session
// per store, non-negative drawer counts, atomic stock-and-record commits.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tallerpos/domain"
	"tallerpos/remote"
)

type Store struct {
	mu               sync.RWMutex
	variants         []domain.StockVariant
	sessionsByID     map[string]*domain.CashSession
	openSessionStore map[string]string
	salesByID        map[string]*domain.SaleRecord
	returnsByID      map[string]remote.ReturnCommit
	reconsBySession  map[string][]domain.PendingReconciliation
	seq              int
}

// NewStore seeds a catalog of workshop garments. Variant order is fixed at
// seed time; QueryVariantStock preserves it, which is what gives the
// no-size resolution its stable pick.
func NewStore() *Store {
	return &Store{
		variants:         seedVariants(),
		sessionsByID:     map[string]*domain.CashSession{},
		openSessionStore: map[string]string{},
		salesByID:        map[string]*domain.SaleRecord{},
		returnsByID:      map[string]remote.ReturnCommit{},
		reconsBySession:  map[string][]domain.PendingReconciliation{},
	}
}

func seedVariants() []domain.StockVariant {
	type row struct {
		garment, design, color, size string
		price                        int64
		stock                        int
	}
	rows := []row{
		{"polera", "cordillera", "negro", "S", 13000, 8},
		{"polera", "cordillera", "negro", "M", 13000, 5},
		{"polera", "cordillera", "negro", "L", 13000, 6},
		{"polera", "cordillera", "blanco", "M", 13000, 4},
		{"polera", "valparaiso", "azul", "S", 15000, 7},
		{"polera", "valparaiso", "azul", "M", 15000, 3},
		{"poleron", "cordillera", "gris", "M", 18000, 4},
		{"poleron", "cordillera", "gris", "L", 18000, 2},
	}
	variants := make([]domain.StockVariant, 0, len(rows))
	for i, r := range rows {
		variants = append(variants, domain.StockVariant{
			ID:          fmt.Sprintf("var-%03d", i+1),
			GarmentType: r.garment,
			Design:      r.design,
			Color:       r.color,
			Size:        r.size,
			UnitPrice:   r.price,
			StockOnHand: r.stock,
		})
	}
	return variants
}

func (s *Store) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%06d", prefix, s.seq)
}

func (s *Store) QueryVariantStock(_ context.Context, filter domain.VariantFilter) ([]domain.StockVariant, error) {
	if filter.GarmentType == "" || filter.Design == "" || filter.Color == "" {
		return nil, fmt.Errorf("%w: garment type, design and color are required", remote.ErrInvalidInput)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]domain.StockVariant, 0, 4)
	for _, v := range s.variants {
		if v.GarmentType != filter.GarmentType || v.Design != filter.Design || v.Color != filter.Color {
			continue
		}
		if filter.Size != "" && v.Size != filter.Size {
			continue
		}
		matches = append(matches, v)
	}
	return matches, nil
}

// SetStock overrides one variant's stock. Test helper.
func (s *Store) SetStock(variantID string, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.variants {
		if s.variants[i].ID == variantID {
			s.variants[i].StockOnHand = qty
			return
		}
	}
}

func (s *Store) OpenSession(_ context.Context, storeID string, openingFloat domain.DenominationCount) (*domain.CashSession, error) {
	if storeID == "" || !openingFloat.IsValid() {
		return nil, fmt.Errorf("%w: store id and a valid opening float required", remote.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if open, ok := s.openSessionStore[storeID]; ok {
		return nil, fmt.Errorf("%w: store %s already has open session %s", remote.ErrInvalidInput, storeID, open)
	}

	session := &domain.CashSession{
		ID:           s.nextID("ses"),
		StoreID:      storeID,
		OpeningFloat: countTotal(openingFloat),
		Drawer:       openingFloat.Clone(),
		Status:       domain.SessionOpen,
		OpenedAt:     time.Now().UTC(),
	}
	s.sessionsByID[session.ID] = session
	s.openSessionStore[storeID] = session.ID

	out := cloneSession(session)
	return &out, nil
}

func (s *Store) CloseSession(_ context.Context, sessionID string, declared domain.DenominationCount) (*domain.CashSession, error) {
	if !declared.IsValid() {
		return nil, fmt.Errorf("%w: declared counts", remote.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessionsByID[sessionID]
	if !ok {
		return nil, remote.ErrNotFound
	}
	if session.Status != domain.SessionOpen {
		return nil, remote.ErrSessionClosed
	}

	declaredTotal := countTotal(declared)
	deviation := declaredTotal - countTotal(session.Drawer)
	now := time.Now().UTC()

	session.Status = domain.SessionClosed
	session.ClosedAt = &now
	session.DeclaredTotal = &declaredTotal
	session.Deviation = &deviation
	delete(s.openSessionStore, session.StoreID)

	out := cloneSession(session)
	return &out, nil
}

func (s *Store) GetSession(_ context.Context, sessionID string) (*domain.CashSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessionsByID[sessionID]
	if !ok {
		return nil, remote.ErrNotFound
	}
	out := cloneSession(session)
	return &out, nil
}

func (s *Store) CreditDrawer(_ context.Context, sessionID string, counts domain.DenominationCount, memo string) error {
	if !counts.IsValid() || memo == "" {
		return fmt.Errorf("%w: drawer credit", remote.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.openSession(sessionID)
	if err != nil {
		return err
	}
	for denom, n := range counts {
		session.Drawer[denom] += n
	}
	return nil
}

func (s *Store) DebitDrawer(_ context.Context, sessionID string, counts domain.DenominationCount, memo string) error {
	if !counts.IsValid() || memo == "" {
		return fmt.Errorf("%w: drawer debit", remote.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.openSession(sessionID)
	if err != nil {
		return err
	}
	for _, denom := range domain.Denominations {
		if counts[denom] > session.Drawer[denom] {
			return fmt.Errorf("%w: %d short %d",
				remote.ErrInsufficientDrawerStock, denom, counts[denom]-session.Drawer[denom])
		}
	}
	for denom, n := range counts {
		session.Drawer[denom] -= n
	}
	return nil
}

func (s *Store) QueryDrawerContents(_ context.Context, sessionID string) (domain.DenominationCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessionsByID[sessionID]
	if !ok {
		return nil, remote.ErrNotFound
	}
	return session.Drawer.Clone(), nil
}

func (s *Store) CommitSale(_ context.Context, commit remote.SaleCommit) (string, error) {
	if commit.Quantity < 1 || commit.UnitPrice < 1 || !commit.Payment.Supported() {
		return "", fmt.Errorf("%w: sale commit", remote.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	variant := s.findVariant(commit.VariantID)
	if variant == nil {
		return "", fmt.Errorf("%w: variant %s", remote.ErrNotFound, commit.VariantID)
	}
	if variant.StockOnHand < commit.Quantity {
		return "", fmt.Errorf("%w: variant %s has %d", remote.ErrOutOfStock, commit.VariantID, variant.StockOnHand)
	}
	variant.StockOnHand -= commit.Quantity

	sale := &domain.SaleRecord{
		ID:            s.nextID("sale"),
		Payment:       commit.Payment,
		VoucherNumber: commit.VoucherNumber,
		Lines: []domain.SaleRecordLine{{
			VariantID: commit.VariantID,
			Quantity:  commit.Quantity,
			UnitPrice: commit.UnitPrice,
		}},
		CreatedAt: time.Now().UTC(),
	}
	s.salesByID[sale.ID] = sale
	return sale.ID, nil
}

func (s *Store) QuerySale(_ context.Context, saleID string) (*domain.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[saleID]
	if !ok {
		return nil, fmt.Errorf("%w: sale %s", remote.ErrNotFound, saleID)
	}
	out := *sale
	out.Lines = append([]domain.SaleRecordLine(nil), sale.Lines...)
	return &out, nil
}

// CommitReturn re-validates remaining quantities authoritatively, restocks
// the returned lines, takes the replacement out of stock and records the
// return, all under one lock so the engine's pre-checks stay advisory.
func (s *Store) CommitReturn(_ context.Context, commit remote.ReturnCommit) (string, error) {
	if len(commit.Lines) == 0 {
		return "", fmt.Errorf("%w: return commit without lines", remote.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.salesByID[commit.OriginalSaleID]
	if !ok {
		return "", fmt.Errorf("%w: sale %s", remote.ErrNotFound, commit.OriginalSaleID)
	}

	// Validate requested quantities aggregated per variant, so a variant
	// split over several commit lines counts once against what remains.
	wanted := make(map[string]int, len(commit.Lines))
	for _, line := range commit.Lines {
		if line.Quantity < 1 {
			return "", fmt.Errorf("%w: return line", remote.ErrInvalidInput)
		}
		if lineIndex(sale.Lines, line.VariantID) < 0 {
			return "", fmt.Errorf("%w: variant %s not on sale", remote.ErrInvalidInput, line.VariantID)
		}
		wanted[line.VariantID] += line.Quantity
	}
	for variantID, qty := range wanted {
		idx := lineIndex(sale.Lines, variantID)
		remaining := sale.Lines[idx].Quantity - sale.Lines[idx].ReturnedQty
		if qty > remaining {
			return "", fmt.Errorf("%w: variant %s has %d remaining", remote.ErrOverReturn, variantID, remaining)
		}
	}

	if commit.Replacement != nil {
		variant := s.findVariant(commit.Replacement.VariantID)
		if variant == nil {
			return "", fmt.Errorf("%w: variant %s", remote.ErrNotFound, commit.Replacement.VariantID)
		}
		if variant.StockOnHand < commit.Replacement.Quantity {
			return "", fmt.Errorf("%w: variant %s has %d",
				remote.ErrOutOfStock, variant.ID, variant.StockOnHand)
		}
		variant.StockOnHand -= commit.Replacement.Quantity
	}

	for _, line := range commit.Lines {
		idx := lineIndex(sale.Lines, line.VariantID)
		sale.Lines[idx].ReturnedQty += line.Quantity
		if variant := s.findVariant(line.VariantID); variant != nil {
			variant.StockOnHand += line.Quantity
		}
	}

	returnID := s.nextID("ret")
	s.returnsByID[returnID] = commit
	return returnID, nil
}

func (s *Store) CreatePendingReconciliation(_ context.Context, rec domain.PendingReconciliation) error {
	if rec.SessionID == "" || rec.RefID == "" {
		return fmt.Errorf("%w: pending reconciliation", remote.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec.Counts = rec.Counts.Clone()
	s.reconsBySession[rec.SessionID] = append(s.reconsBySession[rec.SessionID], rec)
	return nil
}

func (s *Store) ListPendingReconciliations(_ context.Context, sessionID string) ([]domain.PendingReconciliation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.reconsBySession[sessionID]
	out := make([]domain.PendingReconciliation, len(recs))
	copy(out, recs)
	return out, nil
}

func (s *Store) openSession(sessionID string) (*domain.CashSession, error) {
	session, ok := s.sessionsByID[sessionID]
	if !ok {
		return nil, remote.ErrNotFound
	}
	if session.Status != domain.SessionOpen {
		return nil, remote.ErrSessionClosed
	}
	return session, nil
}

func (s *Store) findVariant(id string) *domain.StockVariant {
	for i := range s.variants {
		if s.variants[i].ID == id {
			return &s.variants[i]
		}
	}
	return nil
}

func lineIndex(lines []domain.SaleRecordLine, variantID string) int {
	for i := range lines {
		if lines[i].VariantID == variantID {
			return i
		}
	}
	return -1
}

func cloneSession(session *domain.CashSession) domain.CashSession {
	out := *session
	out.Drawer = session.Drawer.Clone()
	return out
}

func countTotal(counts domain.DenominationCount) int64 {
	var total int64
	for denom, n := range counts {
		total += int64(denom) * int64(n)
	}
	return total
}

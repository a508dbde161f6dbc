package cash

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tallerpos/domain"
	"tallerpos/remote"
)

// SessionLedger tracks one open cash session. The drawer contents it holds
// are a projection of the remote session state: every credit/debit goes to
// the remote collaborator first and mutates the projection only once the
// collaborator confirms. Between a query and a commit the projection may be
// stale — checks against it are advisory, the backend re-validates.
type SessionLedger struct {
	drawer  remote.Drawer
	session domain.CashSession
	logger  *zap.Logger
}

func NewSessionLedger(session domain.CashSession, drawer remote.Drawer, logger *zap.Logger) *SessionLedger {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	session.Drawer = session.Drawer.Clone()
	return &SessionLedger{drawer: drawer, session: session, logger: logger}
}

func (l *SessionLedger) SessionID() string { return l.session.ID }

// Contents returns a copy of the projected drawer contents.
func (l *SessionLedger) Contents() domain.DenominationCount {
	return l.session.Drawer.Clone()
}

// CurrentTotal is the projected drawer value.
func (l *SessionLedger) CurrentTotal() int64 {
	return Total(l.session.Drawer)
}

func (l *SessionLedger) open() error {
	if l.session.Status != domain.SessionOpen {
		return fmt.Errorf("%w: session %s", remote.ErrSessionClosed, l.session.ID)
	}
	return nil
}

// Credit adds cash received to the drawer. The projection is updated only
// after the remote credit is confirmed.
func (l *SessionLedger) Credit(ctx context.Context, counts domain.DenominationCount, memo string) error {
	if err := l.open(); err != nil {
		return err
	}
	if !counts.IsValid() {
		return fmt.Errorf("%w: credit counts", ErrInvalidCounts)
	}
	if err := l.drawer.CreditDrawer(ctx, l.session.ID, counts, memo); err != nil {
		return err
	}
	l.session.Drawer = Merge(l.session.Drawer, counts)
	l.logger.Info("drawer credited",
		zap.String("session_id", l.session.ID),
		zap.String("memo", memo),
		zap.Int64("amount", Total(counts)),
		zap.Int64("drawer_total", l.CurrentTotal()))
	return nil
}

// Debit removes cash from the drawer. Availability is checked against the
// projection first to fail fast, but the remote collaborator is the
// authority; the projection is updated only on its confirmation.
func (l *SessionLedger) Debit(ctx context.Context, counts domain.DenominationCount, memo string) error {
	if err := l.open(); err != nil {
		return err
	}
	if !counts.IsValid() {
		return fmt.Errorf("%w: debit counts", ErrInvalidCounts)
	}
	for _, denom := range domain.Denominations {
		if counts[denom] > l.session.Drawer[denom] {
			return fmt.Errorf("%w: %d short %d",
				remote.ErrInsufficientDrawerStock, denom, counts[denom]-l.session.Drawer[denom])
		}
	}
	if err := l.drawer.DebitDrawer(ctx, l.session.ID, counts, memo); err != nil {
		return err
	}
	remaining, err := Subtract(l.session.Drawer, counts)
	if err != nil {
		// The remote accepted a debit the projection cannot absorb: the
		// projection was stale. Re-read rather than go negative.
		l.logger.Warn("drawer projection stale after confirmed debit",
			zap.String("session_id", l.session.ID), zap.Error(err))
		return l.Refresh(ctx)
	}
	l.session.Drawer = remaining
	l.logger.Info("drawer debited",
		zap.String("session_id", l.session.ID),
		zap.String("memo", memo),
		zap.Int64("amount", Total(counts)),
		zap.Int64("drawer_total", l.CurrentTotal()))
	return nil
}

// Refresh replaces the projection with the remote drawer contents.
func (l *SessionLedger) Refresh(ctx context.Context) error {
	contents, err := l.drawer.QueryDrawerContents(ctx, l.session.ID)
	if err != nil {
		return err
	}
	l.session.Drawer = contents.Clone()
	return nil
}

// MarkClosed flips the local state after the shift has been closed
// externally. Further credits and debits are rejected.
func (l *SessionLedger) MarkClosed() {
	l.session.Status = domain.SessionClosed
}

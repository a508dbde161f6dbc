package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"tallerpos/domain"
)

type captureSender struct {
	mu    sync.Mutex
	seen  []string
	fail  bool
	calls int
}

func (s *captureSender) SendCashMovement(_ context.Context, n domain.CashMovementNotice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail {
		return errors.New("gateway down")
	}
	s.seen = append(s.seen, n.Reason)
	return nil
}

func (s *captureSender) SendBankTransfer(_ context.Context, n domain.BankTransferNotice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail {
		return errors.New("gateway down")
	}
	s.seen = append(s.seen, n.Reason)
	return nil
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sender := &captureSender{}
	d := NewDispatcher(sender, zaptest.NewLogger(t), 8)
	d.Start(context.Background())

	d.CashMovement(domain.CashMovementNotice{Amount: 1000, Reason: "first"})
	d.BankTransfer(domain.BankTransferNotice{Amount: 2000, Reason: "second"})
	d.CashMovement(domain.CashMovementNotice{Amount: 3000, Reason: "third"})
	d.Close()

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.seen) != 3 {
		t.Fatalf("delivered = %d, want 3", len(sender.seen))
	}
	for i, want := range []string{"first", "second", "third"} {
		if sender.seen[i] != want {
			t.Fatalf("delivery %d = %q, want %q", i, sender.seen[i], want)
		}
	}
}

func TestDispatcherSwallowsSenderFailures(t *testing.T) {
	sender := &captureSender{fail: true}
	d := NewDispatcher(sender, zaptest.NewLogger(t), 8)
	d.Start(context.Background())

	d.CashMovement(domain.CashMovementNotice{Amount: 1000, Reason: "doomed"})
	d.Close()

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if sender.calls != 1 {
		t.Fatalf("sender calls = %d, want 1", sender.calls)
	}
}

func TestDispatcherDropsAfterClose(t *testing.T) {
	sender := &captureSender{}
	d := NewDispatcher(sender, zaptest.NewLogger(t), 8)
	d.Start(context.Background())
	d.Close()

	// Must not panic or block.
	d.CashMovement(domain.CashMovementNotice{Amount: 1000, Reason: "late"})
	d.Close()

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.seen) != 0 {
		t.Fatalf("delivered after close: %v", sender.seen)
	}
}

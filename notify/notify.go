// Package notify delivers cash-movement and bank-transfer notices to the
// messaging gateway. Delivery is best-effort and fully decoupled from the
// transactions that produce the notices: enqueueing never blocks, failures
// are logged and dropped, and nothing here can fail a committed sale or
// return.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"tallerpos/domain"
)

// Sender performs the actual delivery of one notice.
type Sender interface {
	SendCashMovement(ctx context.Context, n domain.CashMovementNotice) error
	SendBankTransfer(ctx context.Context, n domain.BankTransferNotice) error
}

// NoopSender drops every notice. Used when no gateway is configured.
type NoopSender struct{}

func (NoopSender) SendCashMovement(context.Context, domain.CashMovementNotice) error { return nil }
func (NoopSender) SendBankTransfer(context.Context, domain.BankTransferNotice) error { return nil }

type notice struct {
	cash     *domain.CashMovementNotice
	transfer *domain.BankTransferNotice
}

// Dispatcher queues notices and delivers them on a single background
// worker, preserving enqueue order. Notices are always enqueued after the
// commit they describe, never before.
type Dispatcher struct {
	sender  Sender
	logger  *zap.Logger
	ch      chan notice
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(sender Sender, logger *zap.Logger, buffer int) *Dispatcher {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	if buffer < 1 {
		buffer = 64
	}
	return &Dispatcher{
		sender:  sender,
		logger:  logger,
		ch:      make(chan notice, buffer),
		timeout: 10 * time.Second,
	}
}

// Start launches the delivery worker. It returns immediately.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for n := range d.ch {
			d.deliver(ctx, n)
		}
	}()
}

// Close stops accepting notices, waits for the queue to drain, and returns.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.ch)
	d.mu.Unlock()
	d.wg.Wait()
}

// CashMovement enqueues a cash movement notice. Never blocks; a full queue
// drops the notice with a warning.
func (d *Dispatcher) CashMovement(n domain.CashMovementNotice) {
	d.enqueue(notice{cash: &n})
}

// BankTransfer enqueues a bank transfer notice.
func (d *Dispatcher) BankTransfer(n domain.BankTransferNotice) {
	d.enqueue(notice{transfer: &n})
}

func (d *Dispatcher) enqueue(n notice) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.logger.Warn("notice dropped: dispatcher closed")
		return
	}
	select {
	case d.ch <- n:
	default:
		d.logger.Warn("notice dropped: queue full")
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n notice) {
	deliverCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var err error
	switch {
	case n.cash != nil:
		err = d.sender.SendCashMovement(deliverCtx, *n.cash)
	case n.transfer != nil:
		err = d.sender.SendBankTransfer(deliverCtx, *n.transfer)
	}
	if err != nil {
		d.logger.Warn("notice delivery failed", zap.Error(err))
	}
}

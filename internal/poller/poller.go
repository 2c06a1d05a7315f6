// Package poller follows submitted operations until their receipt settles
// the pending transaction record.
package poller

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/0xPexy/petpay-backend/internal/bundler"
	"github.com/0xPexy/petpay-backend/internal/store"
)

type Config struct {
	Interval    time.Duration
	MaxAttempts int
}

func (c Config) interval() time.Duration {
	if c.Interval <= 0 {
		return 10 * time.Second
	}
	return c.Interval
}

func (c Config) maxAttempts() int {
	if c.MaxAttempts <= 0 {
		return 30
	}
	return c.MaxAttempts
}

type ReceiptSource interface {
	Receipt(ctx context.Context, opHash string) (*bundler.Receipt, error)
}

type Store interface {
	GetTransactionByHash(ctx context.Context, hash string) (*store.Transaction, error)
	ListPendingTransactions(ctx context.Context) ([]store.Transaction, error)
	ResolvePending(ctx context.Context, hash, status string, meta map[string]any) (bool, error)
}

type Sink interface {
	PublishTransaction(tx store.Transaction)
}

type Poller struct {
	ctx      context.Context
	cfg      Config
	receipts ReceiptSource
	store    Store
	sink     Sink
	logger   *log.Logger
	wg       sync.WaitGroup
}

// New binds the poller to ctx, normally the server root context. Loops stop
// when it is cancelled.
func New(ctx context.Context, cfg Config, receipts ReceiptSource, st Store, sink Sink, logger *log.Logger) *Poller {
	return &Poller{ctx: ctx, cfg: cfg, receipts: receipts, store: st, sink: sink, logger: logger}
}

func (p *Poller) logf(format string, args ...any) {
	if p.logger != nil {
		p.logger.Printf(format, args...)
	}
}

// Watch starts a detached loop for hash and returns immediately.
func (p *Poller) Watch(hash string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.poll(hash)
	}()
}

// Resume starts a loop for every record still pending, normally once at
// startup so operations submitted before a restart are settled.
func (p *Poller) Resume(ctx context.Context) (int, error) {
	txs, err := p.store.ListPendingTransactions(ctx)
	if err != nil {
		return 0, err
	}
	for _, tx := range txs {
		p.Watch(tx.TransactionHash)
	}
	if len(txs) > 0 {
		p.logf("resumed %d pending operations", len(txs))
	}
	return len(txs), nil
}

// Wait blocks until every loop has returned.
func (p *Poller) Wait() {
	p.wg.Wait()
}

func (p *Poller) poll(hash string) {
	timer := time.NewTimer(p.cfg.interval())
	defer timer.Stop()
	limit := p.cfg.maxAttempts()
	for attempt := 1; attempt <= limit; attempt++ {
		select {
		case <-p.ctx.Done():
			return
		case <-timer.C:
		}
		if p.check(hash, attempt) {
			return
		}
		timer.Reset(p.cfg.interval())
	}
	// The bundler never included the operation. Failing the record releases
	// its idempotency key so the sender can submit again.
	p.logf("%s not included after %d attempts; marking failed", hash, limit)
	if _, err := p.resolve(hash, store.StatusFailed, map[string]any{
		"error":    "operation not included",
		"attempts": limit,
	}); err != nil {
		p.logf("%s: update to %s: %v", hash, store.StatusFailed, err)
	}
}

// check runs one iteration and reports whether polling is finished. Errors
// are logged and never end the loop.
func (p *Poller) check(hash string, attempt int) bool {
	tx, err := p.store.GetTransactionByHash(p.ctx, hash)
	if err != nil {
		p.logf("attempt %d %s: load record: %v", attempt, hash, err)
		return false
	}
	if tx.Status != store.StatusPending {
		return true
	}
	receipt, err := p.receipts.Receipt(p.ctx, hash)
	if err != nil {
		p.logf("attempt %d %s: %v", attempt, hash, err)
		return false
	}
	if receipt == nil {
		return false
	}

	status := store.StatusConfirmed
	meta := map[string]any{"txHash": receipt.Receipt.TransactionHash.Hex()}
	if !receipt.Success {
		status = store.StatusFailed
		meta["error"] = "operation reverted"
		if receipt.Reason != "" {
			meta["reason"] = receipt.Reason
		}
	}
	if receipt.ActualGasCost != nil {
		meta["actualGasCost"] = receipt.ActualGasCost.ToInt().String()
	}
	if receipt.Receipt.BlockNumber != nil {
		meta["blockNumber"] = receipt.Receipt.BlockNumber.ToInt().String()
	}
	moved, err := p.resolve(hash, status, meta)
	if err != nil {
		p.logf("attempt %d %s: update to %s: %v", attempt, hash, status, err)
		return false
	}
	if moved {
		p.logf("%s %s after %d attempts", hash, status, attempt)
	}
	return true
}

// resolve settles a pending record and publishes the new state. Records that
// already left pending are left alone.
func (p *Poller) resolve(hash, status string, meta map[string]any) (bool, error) {
	moved, err := p.store.ResolvePending(p.ctx, hash, status, meta)
	if err != nil || !moved {
		return moved, err
	}
	if p.sink != nil {
		if updated, err := p.store.GetTransactionByHash(p.ctx, hash); err == nil {
			p.sink.PublishTransaction(*updated)
		}
	}
	return true, nil
}

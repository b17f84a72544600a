package sales

import (
	"context"
	"sync"
)

// StaticFeed serves transactions from memory. Used by the memory runtime and tests.
type StaticFeed struct {
	mu  sync.RWMutex
	txs []Transaction
	err error
}

// NewStaticFeed constructs a feed seeded with txs.
func NewStaticFeed(txs ...Transaction) *StaticFeed {
	return &StaticFeed{txs: append([]Transaction(nil), txs...)}
}

// Add appends transactions, e.g. sales landing while a shift is being counted.
func (f *StaticFeed) Add(txs ...Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs = append(f.txs, txs...)
}

// FailWith makes subsequent queries return err; nil restores normal behaviour.
func (f *StaticFeed) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Transactions implements Feed.
func (f *StaticFeed) Transactions(_ context.Context, window Window) ([]Transaction, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]Transaction, 0, len(f.txs))
	for _, tx := range f.txs {
		if window.Contains(tx.CompletedAt) {
			out = append(out, tx)
		}
	}
	return out, nil
}

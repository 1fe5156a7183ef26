package db

import (
	"fmt"

	"cashledger/logx"
)

// TxManager wraps multi-record writes into one atomic batch against the
// shared Provider, so two-record operations commit as a single unit.
type TxManager struct {
	provider Provider
}

func NewTxManager(provider Provider) *TxManager {
	return &TxManager{provider: provider}
}

// WithBatch executes fn within a batch context. If fn returns nil the batch
// is committed; otherwise it is discarded and fn's error is surfaced
// verbatim, so typed validation failures reach the caller unchanged.
func (tm *TxManager) WithBatch(fn func(batch Batch) error) error {
	batch := tm.provider.Batch()
	defer func() {
		if err := batch.Close(); err != nil {
			logx.Error("TX_MANAGER", "Failed to close batch:", err)
		}
	}()

	if err := fn(batch); err != nil {
		batch.Reset()
		return err
	}

	if err := batch.Write(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}

	return nil
}

package store

import (
	"fmt"
	"sync"

	"cashledger/db"
	"cashledger/errors"
	"cashledger/jsonx"
	"cashledger/logx"
	"cashledger/types"
)

type CashAccountStore interface {
	// Create writes a new record, failing with already_exists when the slot
	// is occupied. Initialization safety depends on this never overwriting.
	Create(addr string, account *types.CashAccount) error
	// Get returns the record at addr, failing with not_found when absent
	Get(addr string) (*types.CashAccount, error)
	// Put fully replaces the record at addr
	Put(addr string, account *types.CashAccount) error
	// BatchPut stages a replace into batch; commit is the caller's
	BatchPut(batch db.Batch, addr string, account *types.CashAccount) error
	Exists(addr string) (bool, error)
	MustClose()
}

type GenericCashAccountStore struct {
	mu         sync.RWMutex
	dbProvider db.Provider
}

func NewCashAccountStore(dbProvider db.Provider) (*GenericCashAccountStore, error) {
	if dbProvider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}

	return &GenericCashAccountStore{dbProvider: dbProvider}, nil
}

func (as *GenericCashAccountStore) Create(addr string, account *types.CashAccount) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	existed, err := as.dbProvider.Has(as.getDbKey(addr))
	if err != nil {
		return fmt.Errorf("could not check existence of account %s: %w", addr, err)
	}
	if existed {
		return errors.Newf(errors.ErrCodeAlreadyExists, "cash account already exists at %s", addr)
	}

	data, err := jsonx.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}
	if err := as.dbProvider.Put(as.getDbKey(addr), data); err != nil {
		return fmt.Errorf("failed to write account to db: %w", err)
	}

	return nil
}

func (as *GenericCashAccountStore) Get(addr string) (*types.CashAccount, error) {
	as.mu.RLock()
	defer as.mu.RUnlock()

	data, err := as.dbProvider.Get(as.getDbKey(addr))
	if err != nil {
		return nil, fmt.Errorf("could not get account %s from db: %w", addr, err)
	}
	if data == nil {
		return nil, errors.Newf(errors.ErrCodeNotFound, "no cash account at %s", addr)
	}

	var acc types.CashAccount
	if err := jsonx.Unmarshal(data, &acc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account %s: %w", addr, err)
	}
	return &acc, nil
}

func (as *GenericCashAccountStore) Put(addr string, account *types.CashAccount) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	data, err := jsonx.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}
	if err := as.dbProvider.Put(as.getDbKey(addr), data); err != nil {
		return fmt.Errorf("failed to write account to db: %w", err)
	}
	return nil
}

func (as *GenericCashAccountStore) BatchPut(batch db.Batch, addr string, account *types.CashAccount) error {
	data, err := jsonx.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}
	batch.Put(as.getDbKey(addr), data)
	return nil
}

func (as *GenericCashAccountStore) Exists(addr string) (bool, error) {
	as.mu.RLock()
	defer as.mu.RUnlock()

	return as.dbProvider.Has(as.getDbKey(addr))
}

func (as *GenericCashAccountStore) MustClose() {
	if err := as.dbProvider.Close(); err != nil {
		logx.Error("ACCOUNT_STORE", "Failed to close db provider:", err.Error())
	}
}

func (as *GenericCashAccountStore) getDbKey(addr string) []byte {
	return []byte(PrefixCashAccount + addr)
}

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

type PendingRequestStore interface {
	Create(addr string, request *types.PendingRequest) error
	Get(addr string) (*types.PendingRequest, error)
	// Put fully replaces the record at addr; the engine uses it to reuse a
	// slot whose previous request reached a terminal status
	Put(addr string, request *types.PendingRequest) error
	BatchPut(batch db.Batch, addr string, request *types.PendingRequest) error
	Exists(addr string) (bool, error)
	MustClose()
}

type GenericPendingRequestStore struct {
	mu         sync.RWMutex
	dbProvider db.Provider
}

func NewPendingRequestStore(dbProvider db.Provider) (*GenericPendingRequestStore, error) {
	if dbProvider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}

	return &GenericPendingRequestStore{dbProvider: dbProvider}, nil
}

func (rs *GenericPendingRequestStore) Create(addr string, request *types.PendingRequest) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	existed, err := rs.dbProvider.Has(rs.getDbKey(addr))
	if err != nil {
		return fmt.Errorf("could not check existence of request %s: %w", addr, err)
	}
	if existed {
		return errors.Newf(errors.ErrCodeAlreadyExists, "pending request already exists at %s", addr)
	}

	return rs.put(addr, request)
}

func (rs *GenericPendingRequestStore) Get(addr string) (*types.PendingRequest, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	data, err := rs.dbProvider.Get(rs.getDbKey(addr))
	if err != nil {
		return nil, fmt.Errorf("could not get request %s from db: %w", addr, err)
	}
	if data == nil {
		return nil, errors.Newf(errors.ErrCodeNotFound, "no pending request at %s", addr)
	}

	var req types.PendingRequest
	if err := jsonx.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request %s: %w", addr, err)
	}
	return &req, nil
}

func (rs *GenericPendingRequestStore) Put(addr string, request *types.PendingRequest) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	return rs.put(addr, request)
}

func (rs *GenericPendingRequestStore) put(addr string, request *types.PendingRequest) error {
	data, err := jsonx.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	if err := rs.dbProvider.Put(rs.getDbKey(addr), data); err != nil {
		return fmt.Errorf("failed to write request to db: %w", err)
	}
	return nil
}

func (rs *GenericPendingRequestStore) BatchPut(batch db.Batch, addr string, request *types.PendingRequest) error {
	data, err := jsonx.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	batch.Put(rs.getDbKey(addr), data)
	return nil
}

func (rs *GenericPendingRequestStore) Exists(addr string) (bool, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	return rs.dbProvider.Has(rs.getDbKey(addr))
}

func (rs *GenericPendingRequestStore) MustClose() {
	if err := rs.dbProvider.Close(); err != nil {
		logx.Error("REQUEST_STORE", "Failed to close db provider:", err.Error())
	}
}

func (rs *GenericPendingRequestStore) getDbKey(addr string) []byte {
	return []byte(PrefixPendingRequest + addr)
}

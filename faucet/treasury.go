package faucet

import (
	"github.com/holiman/uint256"

	"cashledger/db"
	"cashledger/derivation"
	"cashledger/errors"
	"cashledger/logx"
	"cashledger/store"
	"cashledger/types"
)

// Treasury is the external funding source deposits draw from. It lives in
// the account store like any other cash account, under its own namespace
// tag, so a deposit's treasury debit and account credit conserve value in
// one committed batch.
type Treasury struct {
	owner    string
	addr     string
	bump     uint8
	accounts store.CashAccountStore
}

func NewTreasury(owner string, accounts store.CashAccountStore) (*Treasury, error) {
	addr, bump, err := derivation.Derive(derivation.TagTreasury, owner)
	if err != nil {
		return nil, err
	}
	return &Treasury{
		owner:    owner,
		addr:     addr,
		bump:     bump,
		accounts: accounts,
	}, nil
}

func (t *Treasury) Owner() string {
	return t.owner
}

func (t *Treasury) Address() string {
	return t.addr
}

// Seed creates the treasury account with the genesis balance. A treasury
// that already exists is left untouched so node restarts do not re-fund it.
func (t *Treasury) Seed(balance *uint256.Int) error {
	existed, err := t.accounts.Exists(t.addr)
	if err != nil {
		return err
	}
	if existed {
		logx.Info("FAUCET", "Treasury already seeded at ", t.addr)
		return nil
	}

	acc := &types.CashAccount{
		Owner:   t.owner,
		Balance: balance.Clone(),
		Friends: []string{},
		Bump:    t.bump,
	}
	if err := t.accounts.Create(t.addr, acc); err != nil {
		return err
	}
	logx.Info("FAUCET", "Treasury seeded at ", t.addr, " with ", balance.Dec())
	return nil
}

func (t *Treasury) Balance() (*uint256.Int, error) {
	acc, err := t.accounts.Get(t.addr)
	if err != nil {
		return nil, err
	}
	return acc.Balance, nil
}

// Debit validates coverage and stages the treasury debit into batch. The
// caller owns the commit, so a failed deposit leaves the treasury unchanged.
func (t *Treasury) Debit(batch db.Batch, amount *uint256.Int) error {
	acc, err := t.accounts.Get(t.addr)
	if err != nil {
		return err
	}
	if acc.Balance.Cmp(amount) < 0 {
		return errors.Newf(errors.ErrCodeInsufficientExternalFunds,
			"treasury holds %s, cannot fund %s", acc.Balance.Dec(), amount.Dec())
	}
	acc.Balance = new(uint256.Int).Sub(acc.Balance, amount)
	return t.accounts.BatchPut(batch, t.addr, acc)
}

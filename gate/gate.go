package gate

import (
	"github.com/holiman/uint256"

	"cashledger/errors"
	"cashledger/ledger"
	"cashledger/types"
)

// Gate wraps every engine entry point and verifies the caller's claimed
// identity matches the party the operation acts for before the engine body
// runs. The caller identity is already authenticated by the hosting layer;
// the gate only compares it against the operation's arguments and, for
// accept/reject, against the request's designated payer.
type Gate struct {
	ledger *ledger.Ledger
}

func New(l *ledger.Ledger) *Gate {
	return &Gate{ledger: l}
}

func (g *Gate) InitializeAccount(caller string) (*types.CashAccount, error) {
	// The created account is always the caller's own.
	return g.ledger.InitializeAccount(caller)
}

func (g *Gate) DepositFunds(caller string, owner string, amount *uint256.Int) error {
	if err := authorize(caller, owner); err != nil {
		return err
	}
	return g.ledger.DepositFunds(owner, amount)
}

func (g *Gate) WithdrawFunds(caller string, owner string, amount *uint256.Int) error {
	if err := authorize(caller, owner); err != nil {
		return err
	}
	return g.ledger.WithdrawFunds(owner, amount)
}

func (g *Gate) TransferFunds(caller string, sender string, recipient string, amount *uint256.Int) error {
	if err := authorize(caller, sender); err != nil {
		return err
	}
	return g.ledger.TransferFunds(sender, recipient, amount)
}

func (g *Gate) AddFriend(caller string, owner string, friend string) error {
	if err := authorize(caller, owner); err != nil {
		return err
	}
	return g.ledger.AddFriend(owner, friend)
}

func (g *Gate) CreatePendingRequest(caller string, initiator string, counterparty string, amount *uint256.Int) (*types.PendingRequest, error) {
	if err := authorize(caller, initiator); err != nil {
		return nil, err
	}
	return g.ledger.CreatePendingRequest(initiator, counterparty, amount)
}

func (g *Gate) AcceptRequest(caller string, initiator string, payer string) error {
	if err := authorize(caller, payer); err != nil {
		return err
	}
	return g.ledger.AcceptRequest(payer, initiator)
}

func (g *Gate) RejectRequest(caller string, initiator string, payer string) error {
	if err := authorize(caller, payer); err != nil {
		return err
	}
	return g.ledger.RejectRequest(payer, initiator)
}

// Record fetches and the derive query are read-only and unauthenticated.

func (g *Gate) GetCashAccount(owner string) (*types.CashAccount, error) {
	return g.ledger.GetCashAccount(owner)
}

func (g *Gate) GetPendingRequest(initiator string, counterparty string) (*types.PendingRequest, error) {
	return g.ledger.GetPendingRequest(initiator, counterparty)
}

func (g *Gate) GetAccountByAddress(addr string) (*types.CashAccount, error) {
	return g.ledger.GetAccountByAddress(addr)
}

func (g *Gate) GetRequestByAddress(addr string) (*types.PendingRequest, error) {
	return g.ledger.GetRequestByAddress(addr)
}

func (g *Gate) Balance(owner string) (*uint256.Int, error) {
	return g.ledger.Balance(owner)
}

func (g *Gate) AccountExists(owner string) (bool, error) {
	return g.ledger.AccountExists(owner)
}

func authorize(caller string, party string) error {
	if caller != party {
		return errors.Newf(errors.ErrCodeUnauthorized,
			"caller %s is not %s", caller, party)
	}
	return nil
}

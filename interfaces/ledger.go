package interfaces

import (
	"github.com/holiman/uint256"

	"cashledger/types"
)

// CashLedger is the authorized engine surface the transport layer exposes.
// Every mutating method takes the authenticated caller identity first.
type CashLedger interface {
	InitializeAccount(caller string) (*types.CashAccount, error)
	DepositFunds(caller string, owner string, amount *uint256.Int) error
	WithdrawFunds(caller string, owner string, amount *uint256.Int) error
	TransferFunds(caller string, sender string, recipient string, amount *uint256.Int) error
	AddFriend(caller string, owner string, friend string) error
	CreatePendingRequest(caller string, initiator string, counterparty string, amount *uint256.Int) (*types.PendingRequest, error)
	AcceptRequest(caller string, initiator string, payer string) error
	RejectRequest(caller string, initiator string, payer string) error

	GetCashAccount(owner string) (*types.CashAccount, error)
	GetPendingRequest(initiator string, counterparty string) (*types.PendingRequest, error)
	GetAccountByAddress(addr string) (*types.CashAccount, error)
	GetRequestByAddress(addr string) (*types.PendingRequest, error)
	Balance(owner string) (*uint256.Int, error)
	AccountExists(owner string) (bool, error)
}

package ledger

import (
	"fmt"

	"github.com/holiman/uint256"

	"cashledger/common"
	"cashledger/db"
	"cashledger/derivation"
	"cashledger/errors"
	"cashledger/faucet"
	"cashledger/logx"
	"cashledger/monitoring"
	"cashledger/store"
	"cashledger/types"
)

// Operation names used for logging and metrics labels.
const (
	OpInitializeAccount    = "initialize_account"
	OpDepositFunds         = "deposit_funds"
	OpWithdrawFunds        = "withdraw_funds"
	OpTransferFunds        = "transfer_funds"
	OpAddFriend            = "add_friend"
	OpCreatePendingRequest = "create_pending_request"
	OpAcceptRequest        = "accept_request"
	OpRejectRequest        = "reject_request"
)

// Ledger is the engine: every operation reads current records, validates all
// preconditions, computes the new records, and commits them as one unit
// while holding the locks for the address set it touches. The engine keeps
// no state of its own between calls.
type Ledger struct {
	accounts store.CashAccountStore
	requests store.PendingRequestStore
	treasury *faucet.Treasury
	tm       *db.TxManager
	locks    *lockSet
}

func NewLedger(accounts store.CashAccountStore, requests store.PendingRequestStore, treasury *faucet.Treasury, tm *db.TxManager) *Ledger {
	return &Ledger{
		accounts: accounts,
		requests: requests,
		treasury: treasury,
		tm:       tm,
		locks:    newLockSet(),
	}
}

// InitializeAccount creates the cash account for owner at its derived
// address. A second call for the same owner targets the same slot and fails
// with already_exists, leaving the stored record untouched.
func (l *Ledger) InitializeAccount(owner string) (*types.CashAccount, error) {
	monitoring.IncreaseOperationCount(OpInitializeAccount)

	addr, bump, err := derivation.Derive(derivation.TagCashAccount, owner)
	if err != nil {
		return nil, l.fail(OpInitializeAccount, err)
	}

	release := l.locks.Acquire(addr)
	defer release()

	account := &types.CashAccount{
		Owner:   owner,
		Balance: uint256.NewInt(0),
		Friends: []string{},
		Bump:    bump,
	}
	if err := l.accounts.Create(addr, account); err != nil {
		return nil, l.fail(OpInitializeAccount, err)
	}

	logx.Info("LEDGER", fmt.Sprintf("Initialized cash account %s for owner %s", addr, owner))
	return account, nil
}

// DepositFunds credits owner's account from the treasury. The treasury debit
// and the account credit commit as one batch.
func (l *Ledger) DepositFunds(owner string, amount *uint256.Int) error {
	monitoring.IncreaseOperationCount(OpDepositFunds)

	if err := validAmount(amount); err != nil {
		return l.fail(OpDepositFunds, err)
	}
	addr, _, err := derivation.Derive(derivation.TagCashAccount, owner)
	if err != nil {
		return l.fail(OpDepositFunds, err)
	}

	release := l.locks.Acquire(addr, l.treasury.Address())
	defer release()

	account, err := l.accounts.Get(addr)
	if err != nil {
		return l.fail(OpDepositFunds, err)
	}
	account.Balance = new(uint256.Int).Add(account.Balance, amount)

	err = l.tm.WithBatch(func(batch db.Batch) error {
		if err := l.treasury.Debit(batch, amount); err != nil {
			return err
		}
		return l.accounts.BatchPut(batch, addr, account)
	})
	if err != nil {
		return l.fail(OpDepositFunds, err)
	}

	logx.Info("LEDGER", fmt.Sprintf("Deposited %s to %s", amount.Dec(), addr))
	return nil
}

// WithdrawFunds debits owner's account. The withdrawn value leaves the
// ledger; the external destination is not the engine's concern.
func (l *Ledger) WithdrawFunds(owner string, amount *uint256.Int) error {
	monitoring.IncreaseOperationCount(OpWithdrawFunds)

	if err := validAmount(amount); err != nil {
		return l.fail(OpWithdrawFunds, err)
	}
	addr, _, err := derivation.Derive(derivation.TagCashAccount, owner)
	if err != nil {
		return l.fail(OpWithdrawFunds, err)
	}

	release := l.locks.Acquire(addr)
	defer release()

	account, err := l.accounts.Get(addr)
	if err != nil {
		return l.fail(OpWithdrawFunds, err)
	}
	if account.Balance.Cmp(amount) < 0 {
		return l.fail(OpWithdrawFunds, errors.Newf(errors.ErrCodeInsufficientBalance,
			"balance %s cannot cover withdrawal of %s", account.Balance.Dec(), amount.Dec()))
	}
	account.Balance = new(uint256.Int).Sub(account.Balance, amount)

	if err := l.accounts.Put(addr, account); err != nil {
		return l.fail(OpWithdrawFunds, err)
	}

	logx.Info("LEDGER", fmt.Sprintf("Withdrew %s from %s", amount.Dec(), addr))
	return nil
}

// TransferFunds moves amount from sender to recipient as one atomic step.
// Both records are validated before either is written, so total value across
// the two accounts is conserved.
func (l *Ledger) TransferFunds(sender string, recipient string, amount *uint256.Int) error {
	monitoring.IncreaseOperationCount(OpTransferFunds)

	if err := validAmount(amount); err != nil {
		return l.fail(OpTransferFunds, err)
	}
	if sender == recipient {
		return l.fail(OpTransferFunds, errors.Newf(errors.ErrCodeSelfTransferNotAllowed,
			"sender and recipient are both %s", sender))
	}

	senderAddr, _, err := derivation.Derive(derivation.TagCashAccount, sender)
	if err != nil {
		return l.fail(OpTransferFunds, err)
	}
	recipientAddr, _, err := derivation.Derive(derivation.TagCashAccount, recipient)
	if err != nil {
		return l.fail(OpTransferFunds, err)
	}

	release := l.locks.Acquire(senderAddr, recipientAddr)
	defer release()

	senderAcc, err := l.accounts.Get(senderAddr)
	if err != nil {
		return l.fail(OpTransferFunds, err)
	}
	recipientAcc, err := l.accounts.Get(recipientAddr)
	if err != nil {
		return l.fail(OpTransferFunds, err)
	}
	if senderAcc.Balance.Cmp(amount) < 0 {
		return l.fail(OpTransferFunds, errors.Newf(errors.ErrCodeInsufficientBalance,
			"balance %s cannot cover transfer of %s", senderAcc.Balance.Dec(), amount.Dec()))
	}

	senderAcc.Balance = new(uint256.Int).Sub(senderAcc.Balance, amount)
	recipientAcc.Balance = new(uint256.Int).Add(recipientAcc.Balance, amount)

	err = l.tm.WithBatch(func(batch db.Batch) error {
		if err := l.accounts.BatchPut(batch, senderAddr, senderAcc); err != nil {
			return err
		}
		return l.accounts.BatchPut(batch, recipientAddr, recipientAcc)
	})
	if err != nil {
		return l.fail(OpTransferFunds, err)
	}

	logx.Info("LEDGER", fmt.Sprintf("Transferred %s from %s to %s", amount.Dec(), senderAddr, recipientAddr))
	return nil
}

// AddFriend appends friend to owner's friend list, preserving insertion
// order and rejecting duplicates.
func (l *Ledger) AddFriend(owner string, friend string) error {
	monitoring.IncreaseOperationCount(OpAddFriend)

	if friend == owner {
		return l.fail(OpAddFriend, errors.New(errors.ErrCodeSelfFriendNotAllowed,
			"cannot add yourself as a friend"))
	}
	if !common.IsValidBase58(friend) {
		return l.fail(OpAddFriend, errors.Newf(errors.ErrCodeInvalidAddress,
			"friend identity is not valid base58: %s", friend))
	}
	addr, _, err := derivation.Derive(derivation.TagCashAccount, owner)
	if err != nil {
		return l.fail(OpAddFriend, err)
	}

	release := l.locks.Acquire(addr)
	defer release()

	account, err := l.accounts.Get(addr)
	if err != nil {
		return l.fail(OpAddFriend, err)
	}
	if account.HasFriend(friend) {
		return l.fail(OpAddFriend, errors.Newf(errors.ErrCodeDuplicateFriend,
			"%s is already a friend", friend))
	}
	if len(account.Friends) >= types.MaxFriends {
		return l.fail(OpAddFriend, errors.Newf(errors.ErrCodeFriendLimitReached,
			"friend list is full (%d entries)", types.MaxFriends))
	}
	account.Friends = append(account.Friends, friend)

	if err := l.accounts.Put(addr, account); err != nil {
		return l.fail(OpAddFriend, err)
	}

	return nil
}

// CreatePendingRequest records a request by initiator that counterparty pay
// amount. One live request per (initiator, counterparty) pair: the slot is
// derived from both identities and an unresolved request blocks a new one,
// while a terminal record is replaced.
func (l *Ledger) CreatePendingRequest(initiator string, counterparty string, amount *uint256.Int) (*types.PendingRequest, error) {
	monitoring.IncreaseOperationCount(OpCreatePendingRequest)

	if err := validAmount(amount); err != nil {
		return nil, l.fail(OpCreatePendingRequest, err)
	}
	if initiator == counterparty {
		return nil, l.fail(OpCreatePendingRequest, errors.New(errors.ErrCodeInvalidRequest,
			"request cannot target its own initiator"))
	}

	addr, bump, err := derivation.Derive(derivation.TagPendingRequest, initiator, counterparty)
	if err != nil {
		return nil, l.fail(OpCreatePendingRequest, err)
	}

	release := l.locks.Acquire(addr)
	defer release()

	existing, err := l.requests.Get(addr)
	if err != nil && !errors.IsCode(err, errors.ErrCodeNotFound) {
		return nil, l.fail(OpCreatePendingRequest, err)
	}
	if existing != nil && existing.IsPending() {
		return nil, l.fail(OpCreatePendingRequest, errors.Newf(errors.ErrCodeAlreadyExists,
			"an unresolved request already exists at %s", addr))
	}

	request := &types.PendingRequest{
		Initiator:    initiator,
		Counterparty: counterparty,
		Amount:       amount.Clone(),
		Status:       types.RequestPending,
		Bump:         bump,
	}
	if err := l.requests.Put(addr, request); err != nil {
		return nil, l.fail(OpCreatePendingRequest, err)
	}

	logx.Info("LEDGER", fmt.Sprintf("Created pending request %s: %s requests %s from %s",
		addr, initiator, amount.Dec(), counterparty))
	return request, nil
}

// AcceptRequest settles the request initiator created against payer. The
// payer debit, initiator credit, and status flip commit as one batch; a
// request that is not pending fails without touching any balance.
func (l *Ledger) AcceptRequest(payer string, initiator string) error {
	monitoring.IncreaseOperationCount(OpAcceptRequest)

	reqAddr, _, err := derivation.Derive(derivation.TagPendingRequest, initiator, payer)
	if err != nil {
		return l.fail(OpAcceptRequest, err)
	}
	payerAddr, _, err := derivation.Derive(derivation.TagCashAccount, payer)
	if err != nil {
		return l.fail(OpAcceptRequest, err)
	}
	initiatorAddr, _, err := derivation.Derive(derivation.TagCashAccount, initiator)
	if err != nil {
		return l.fail(OpAcceptRequest, err)
	}

	release := l.locks.Acquire(reqAddr, payerAddr, initiatorAddr)
	defer release()

	request, err := l.requests.Get(reqAddr)
	if err != nil {
		return l.fail(OpAcceptRequest, err)
	}
	if !request.IsPending() {
		return l.fail(OpAcceptRequest, errors.Newf(errors.ErrCodeNotPending,
			"request at %s is %s", reqAddr, request.Status))
	}
	if request.Counterparty != payer {
		return l.fail(OpAcceptRequest, errors.Newf(errors.ErrCodeUnauthorized,
			"request at %s designates payer %s", reqAddr, request.Counterparty))
	}

	payerAcc, err := l.accounts.Get(payerAddr)
	if err != nil {
		return l.fail(OpAcceptRequest, err)
	}
	initiatorAcc, err := l.accounts.Get(initiatorAddr)
	if err != nil {
		return l.fail(OpAcceptRequest, err)
	}
	if payerAcc.Balance.Cmp(request.Amount) < 0 {
		return l.fail(OpAcceptRequest, errors.Newf(errors.ErrCodeInsufficientBalance,
			"payer balance %s cannot cover requested %s", payerAcc.Balance.Dec(), request.Amount.Dec()))
	}

	payerAcc.Balance = new(uint256.Int).Sub(payerAcc.Balance, request.Amount)
	initiatorAcc.Balance = new(uint256.Int).Add(initiatorAcc.Balance, request.Amount)
	request.Status = types.RequestAccepted

	err = l.tm.WithBatch(func(batch db.Batch) error {
		if err := l.accounts.BatchPut(batch, payerAddr, payerAcc); err != nil {
			return err
		}
		if err := l.accounts.BatchPut(batch, initiatorAddr, initiatorAcc); err != nil {
			return err
		}
		return l.requests.BatchPut(batch, reqAddr, request)
	})
	if err != nil {
		return l.fail(OpAcceptRequest, err)
	}

	logx.Info("LEDGER", fmt.Sprintf("Accepted request %s: %s paid %s to %s",
		reqAddr, payer, request.Amount.Dec(), initiator))
	return nil
}

// RejectRequest transitions the request to Rejected with no value movement.
// Only the designated payer may reject, mirroring who could have accepted.
func (l *Ledger) RejectRequest(payer string, initiator string) error {
	monitoring.IncreaseOperationCount(OpRejectRequest)

	reqAddr, _, err := derivation.Derive(derivation.TagPendingRequest, initiator, payer)
	if err != nil {
		return l.fail(OpRejectRequest, err)
	}

	release := l.locks.Acquire(reqAddr)
	defer release()

	request, err := l.requests.Get(reqAddr)
	if err != nil {
		return l.fail(OpRejectRequest, err)
	}
	if !request.IsPending() {
		return l.fail(OpRejectRequest, errors.Newf(errors.ErrCodeNotPending,
			"request at %s is %s", reqAddr, request.Status))
	}
	if request.Counterparty != payer {
		return l.fail(OpRejectRequest, errors.Newf(errors.ErrCodeUnauthorized,
			"request at %s designates payer %s", reqAddr, request.Counterparty))
	}

	request.Status = types.RequestRejected
	if err := l.requests.Put(reqAddr, request); err != nil {
		return l.fail(OpRejectRequest, err)
	}

	logx.Info("LEDGER", fmt.Sprintf("Rejected request %s", reqAddr))
	return nil
}

// GetCashAccount returns the account record for owner
func (l *Ledger) GetCashAccount(owner string) (*types.CashAccount, error) {
	addr, _, err := derivation.Derive(derivation.TagCashAccount, owner)
	if err != nil {
		return nil, err
	}
	return l.accounts.Get(addr)
}

// GetPendingRequest returns the request record for the (initiator,
// counterparty) pair
func (l *Ledger) GetPendingRequest(initiator string, counterparty string) (*types.PendingRequest, error) {
	addr, _, err := derivation.Derive(derivation.TagPendingRequest, initiator, counterparty)
	if err != nil {
		return nil, err
	}
	return l.requests.Get(addr)
}

// GetAccountByAddress fetches an account record directly by derived address
func (l *Ledger) GetAccountByAddress(addr string) (*types.CashAccount, error) {
	return l.accounts.Get(addr)
}

// GetRequestByAddress fetches a request record directly by derived address
func (l *Ledger) GetRequestByAddress(addr string) (*types.PendingRequest, error) {
	return l.requests.Get(addr)
}

// Balance returns the current balance for owner
func (l *Ledger) Balance(owner string) (*uint256.Int, error) {
	account, err := l.GetCashAccount(owner)
	if err != nil {
		return nil, err
	}
	return account.Balance.Clone(), nil
}

// AccountExists checks if owner has an initialized cash account
func (l *Ledger) AccountExists(owner string) (bool, error) {
	addr, _, err := derivation.Derive(derivation.TagCashAccount, owner)
	if err != nil {
		return false, err
	}
	return l.accounts.Exists(addr)
}

// CreateAccountsFromGenesis creates prefunded accounts at node bootstrap.
// Accounts that already exist are skipped so restarts are safe.
func (l *Ledger) CreateAccountsFromGenesis(owners []GenesisAccount) error {
	for _, g := range owners {
		addr, bump, err := derivation.Derive(derivation.TagCashAccount, g.Owner)
		if err != nil {
			return err
		}
		release := l.locks.Acquire(addr)
		existed, err := l.accounts.Exists(addr)
		if err != nil {
			release()
			return err
		}
		if existed {
			release()
			continue
		}
		account := &types.CashAccount{
			Owner:   g.Owner,
			Balance: g.Balance.Clone(),
			Friends: []string{},
			Bump:    bump,
		}
		err = l.accounts.Create(addr, account)
		release()
		if err != nil {
			return fmt.Errorf("could not create genesis account %s: %w", g.Owner, err)
		}
	}
	return nil
}

// GenesisAccount is a prefunded account from the genesis config.
type GenesisAccount struct {
	Owner   string
	Balance *uint256.Int
}

func (l *Ledger) fail(op string, err error) error {
	monitoring.IncreaseFailedOperationCount(op, string(errors.CodeOf(err)))
	logx.Warn("LEDGER", fmt.Sprintf("%s failed: %v", op, err))
	return err
}

func validAmount(amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return errors.New(errors.ErrCodeInvalidAmount, "amount must be positive")
	}
	return nil
}


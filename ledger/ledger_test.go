package ledger

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/holiman/uint256"

	"cashledger/common"
	"cashledger/db"
	"cashledger/errors"
	"cashledger/faucet"
	"cashledger/store"
	"cashledger/types"
)

const testTreasuryBalance = 1_000_000_000_000

func testIdentity(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	return common.EncodeBytesToBase58(pub)
}

func newTestLedger(t *testing.T) (*Ledger, *faucet.Treasury) {
	t.Helper()
	provider := db.NewMemoryProvider()
	accounts, err := store.NewCashAccountStore(provider)
	if err != nil {
		t.Fatal(err)
	}
	requests, err := store.NewPendingRequestStore(provider)
	if err != nil {
		t.Fatal(err)
	}
	treasury, err := faucet.NewTreasury(testIdentity(t), accounts)
	if err != nil {
		t.Fatal(err)
	}
	if err := treasury.Seed(uint256.NewInt(testTreasuryBalance)); err != nil {
		t.Fatal(err)
	}
	return NewLedger(accounts, requests, treasury, db.NewTxManager(provider)), treasury
}

func mustBalance(t *testing.T, l *Ledger, owner string) uint64 {
	t.Helper()
	balance, err := l.Balance(owner)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	return balance.Uint64()
}

func initAndFund(t *testing.T, l *Ledger, owner string, amount uint64) {
	t.Helper()
	if _, err := l.InitializeAccount(owner); err != nil {
		t.Fatalf("InitializeAccount failed: %v", err)
	}
	if amount > 0 {
		if err := l.DepositFunds(owner, uint256.NewInt(amount)); err != nil {
			t.Fatalf("DepositFunds failed: %v", err)
		}
	}
}

func TestInitializeAccount(t *testing.T) {
	l, _ := newTestLedger(t)
	owner := testIdentity(t)

	acc, err := l.InitializeAccount(owner)
	if err != nil {
		t.Fatalf("InitializeAccount failed: %v", err)
	}
	if acc.Owner != owner {
		t.Errorf("Expected owner %s, got %s", owner, acc.Owner)
	}
	if !acc.Balance.IsZero() {
		t.Errorf("Expected zero balance, got %s", acc.Balance.Dec())
	}
	if len(acc.Friends) != 0 {
		t.Errorf("Expected empty friends, got %v", acc.Friends)
	}

	exists, err := l.AccountExists(owner)
	if err != nil || !exists {
		t.Fatalf("Expected account to exist, exists=%v err=%v", exists, err)
	}
}

func TestInitializeAccountTwice(t *testing.T) {
	l, _ := newTestLedger(t)
	owner := testIdentity(t)

	initAndFund(t, l, owner, 50)

	// Re-initialization targets the same derived slot and must fail without
	// touching the stored balance.
	_, err := l.InitializeAccount(owner)
	if !errors.IsCode(err, errors.ErrCodeAlreadyExists) {
		t.Fatalf("Expected already_exists, got %v", err)
	}
	if got := mustBalance(t, l, owner); got != 50 {
		t.Errorf("Expected balance 50 after rejected re-init, got %d", got)
	}
}

func TestDepositWithdrawRoundTrip(t *testing.T) {
	l, _ := newTestLedger(t)
	owner := testIdentity(t)
	initAndFund(t, l, owner, 300)

	if err := l.DepositFunds(owner, uint256.NewInt(120)); err != nil {
		t.Fatal(err)
	}
	if err := l.WithdrawFunds(owner, uint256.NewInt(120)); err != nil {
		t.Fatal(err)
	}
	if got := mustBalance(t, l, owner); got != 300 {
		t.Errorf("Expected balance restored to 300, got %d", got)
	}
}

func TestWithdrawInsufficientBalance(t *testing.T) {
	l, _ := newTestLedger(t)
	owner := testIdentity(t)
	if _, err := l.InitializeAccount(owner); err != nil {
		t.Fatal(err)
	}

	err := l.WithdrawFunds(owner, uint256.NewInt(1))
	if !errors.IsCode(err, errors.ErrCodeInsufficientBalance) {
		t.Fatalf("Expected insufficient_balance, got %v", err)
	}
	if got := mustBalance(t, l, owner); got != 0 {
		t.Errorf("Expected balance untouched at 0, got %d", got)
	}
}

func TestDepositInvalidAmount(t *testing.T) {
	l, _ := newTestLedger(t)
	owner := testIdentity(t)
	if _, err := l.InitializeAccount(owner); err != nil {
		t.Fatal(err)
	}

	if err := l.DepositFunds(owner, uint256.NewInt(0)); !errors.IsCode(err, errors.ErrCodeInvalidAmount) {
		t.Errorf("Expected invalid_amount for zero, got %v", err)
	}
	if err := l.DepositFunds(owner, nil); !errors.IsCode(err, errors.ErrCodeInvalidAmount) {
		t.Errorf("Expected invalid_amount for nil, got %v", err)
	}
}

func TestDepositMissingAccount(t *testing.T) {
	l, _ := newTestLedger(t)

	err := l.DepositFunds(testIdentity(t), uint256.NewInt(10))
	if !errors.IsCode(err, errors.ErrCodeNotFound) {
		t.Fatalf("Expected not_found, got %v", err)
	}
}

func TestDepositDrainsTreasury(t *testing.T) {
	l, treasury := newTestLedger(t)
	owner := testIdentity(t)
	initAndFund(t, l, owner, 0)

	before, err := treasury.Balance()
	if err != nil {
		t.Fatal(err)
	}
	if err := l.DepositFunds(owner, uint256.NewInt(777)); err != nil {
		t.Fatal(err)
	}
	after, err := treasury.Balance()
	if err != nil {
		t.Fatal(err)
	}

	diff := new(uint256.Int).Sub(before, after)
	if diff.Uint64() != 777 {
		t.Errorf("Expected treasury debited by 777, got %s", diff.Dec())
	}
}

func TestDepositInsufficientExternalFunds(t *testing.T) {
	l, _ := newTestLedger(t)
	owner := testIdentity(t)
	initAndFund(t, l, owner, 0)

	tooMuch := uint256.NewInt(testTreasuryBalance + 1)
	err := l.DepositFunds(owner, tooMuch)
	if !errors.IsCode(err, errors.ErrCodeInsufficientExternalFunds) {
		t.Fatalf("Expected insufficient_external_funds, got %v", err)
	}
	if got := mustBalance(t, l, owner); got != 0 {
		t.Errorf("Expected balance untouched at 0, got %d", got)
	}
}

func TestTransferConservation(t *testing.T) {
	l, _ := newTestLedger(t)
	sender := testIdentity(t)
	recipient := testIdentity(t)
	initAndFund(t, l, sender, 1000)
	initAndFund(t, l, recipient, 250)

	if err := l.TransferFunds(sender, recipient, uint256.NewInt(400)); err != nil {
		t.Fatalf("TransferFunds failed: %v", err)
	}

	senderBalance := mustBalance(t, l, sender)
	recipientBalance := mustBalance(t, l, recipient)
	if senderBalance != 600 {
		t.Errorf("Expected sender balance 600, got %d", senderBalance)
	}
	if recipientBalance != 650 {
		t.Errorf("Expected recipient balance 650, got %d", recipientBalance)
	}
	if senderBalance+recipientBalance != 1250 {
		t.Errorf("Value not conserved: %d + %d != 1250", senderBalance, recipientBalance)
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	l, _ := newTestLedger(t)
	sender := testIdentity(t)
	recipient := testIdentity(t)
	initAndFund(t, l, sender, 10)
	initAndFund(t, l, recipient, 0)

	err := l.TransferFunds(sender, recipient, uint256.NewInt(11))
	if !errors.IsCode(err, errors.ErrCodeInsufficientBalance) {
		t.Fatalf("Expected insufficient_balance, got %v", err)
	}
	if got := mustBalance(t, l, sender); got != 10 {
		t.Errorf("Expected sender balance untouched at 10, got %d", got)
	}
	if got := mustBalance(t, l, recipient); got != 0 {
		t.Errorf("Expected recipient balance untouched at 0, got %d", got)
	}
}

func TestTransferToSelf(t *testing.T) {
	l, _ := newTestLedger(t)
	owner := testIdentity(t)
	initAndFund(t, l, owner, 100)

	err := l.TransferFunds(owner, owner, uint256.NewInt(10))
	if !errors.IsCode(err, errors.ErrCodeSelfTransferNotAllowed) {
		t.Fatalf("Expected self_transfer_not_allowed, got %v", err)
	}
}

func TestTransferMissingRecipient(t *testing.T) {
	l, _ := newTestLedger(t)
	sender := testIdentity(t)
	initAndFund(t, l, sender, 100)

	err := l.TransferFunds(sender, testIdentity(t), uint256.NewInt(10))
	if !errors.IsCode(err, errors.ErrCodeNotFound) {
		t.Fatalf("Expected not_found, got %v", err)
	}
	if got := mustBalance(t, l, sender); got != 100 {
		t.Errorf("Expected sender balance untouched at 100, got %d", got)
	}
}

func TestAddFriend(t *testing.T) {
	l, _ := newTestLedger(t)
	owner := testIdentity(t)
	friendA := testIdentity(t)
	friendB := testIdentity(t)
	initAndFund(t, l, owner, 0)

	if err := l.AddFriend(owner, friendA); err != nil {
		t.Fatalf("AddFriend failed: %v", err)
	}
	if err := l.AddFriend(owner, friendB); err != nil {
		t.Fatalf("AddFriend failed: %v", err)
	}

	acc, err := l.GetCashAccount(owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(acc.Friends) != 2 {
		t.Fatalf("Expected 2 friends, got %d", len(acc.Friends))
	}
	// Insertion order is preserved.
	if acc.Friends[0] != friendA || acc.Friends[1] != friendB {
		t.Errorf("Expected friends in insertion order, got %v", acc.Friends)
	}
}

func TestAddFriendDuplicate(t *testing.T) {
	l, _ := newTestLedger(t)
	owner := testIdentity(t)
	friend := testIdentity(t)
	initAndFund(t, l, owner, 0)

	if err := l.AddFriend(owner, friend); err != nil {
		t.Fatal(err)
	}
	err := l.AddFriend(owner, friend)
	if !errors.IsCode(err, errors.ErrCodeDuplicateFriend) {
		t.Fatalf("Expected duplicate_friend, got %v", err)
	}

	acc, err := l.GetCashAccount(owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(acc.Friends) != 1 {
		t.Errorf("Expected friend list length 1, got %d", len(acc.Friends))
	}
}

func TestAddFriendSelf(t *testing.T) {
	l, _ := newTestLedger(t)
	owner := testIdentity(t)
	initAndFund(t, l, owner, 0)

	err := l.AddFriend(owner, owner)
	if !errors.IsCode(err, errors.ErrCodeSelfFriendNotAllowed) {
		t.Fatalf("Expected self_friend_not_allowed, got %v", err)
	}
}

func TestAddFriendLimit(t *testing.T) {
	l, _ := newTestLedger(t)
	owner := testIdentity(t)
	initAndFund(t, l, owner, 0)

	for i := 0; i < types.MaxFriends; i++ {
		if err := l.AddFriend(owner, testIdentity(t)); err != nil {
			t.Fatalf("AddFriend %d failed: %v", i, err)
		}
	}

	err := l.AddFriend(owner, testIdentity(t))
	if !errors.IsCode(err, errors.ErrCodeFriendLimitReached) {
		t.Fatalf("Expected friend_limit_reached, got %v", err)
	}
}

func TestCreatePendingRequest(t *testing.T) {
	l, _ := newTestLedger(t)
	initiator := testIdentity(t)
	payer := testIdentity(t)

	req, err := l.CreatePendingRequest(initiator, payer, uint256.NewInt(500))
	if err != nil {
		t.Fatalf("CreatePendingRequest failed: %v", err)
	}
	if req.Status != types.RequestPending {
		t.Errorf("Expected pending status, got %s", req.Status)
	}
	if req.Initiator != initiator || req.Counterparty != payer {
		t.Errorf("Unexpected parties: %s / %s", req.Initiator, req.Counterparty)
	}

	got, err := l.GetPendingRequest(initiator, payer)
	if err != nil {
		t.Fatal(err)
	}
	if got.Amount.Uint64() != 500 {
		t.Errorf("Expected amount 500, got %s", got.Amount.Dec())
	}
}

func TestCreatePendingRequestConflict(t *testing.T) {
	l, _ := newTestLedger(t)
	initiator := testIdentity(t)
	payer := testIdentity(t)

	if _, err := l.CreatePendingRequest(initiator, payer, uint256.NewInt(500)); err != nil {
		t.Fatal(err)
	}

	// An unresolved request occupies the slot.
	_, err := l.CreatePendingRequest(initiator, payer, uint256.NewInt(900))
	if !errors.IsCode(err, errors.ErrCodeAlreadyExists) {
		t.Fatalf("Expected already_exists, got %v", err)
	}
}

func TestCreatePendingRequestSelf(t *testing.T) {
	l, _ := newTestLedger(t)
	initiator := testIdentity(t)

	_, err := l.CreatePendingRequest(initiator, initiator, uint256.NewInt(1))
	if !errors.IsCode(err, errors.ErrCodeInvalidRequest) {
		t.Fatalf("Expected invalid_request, got %v", err)
	}
}

func TestAcceptRequest(t *testing.T) {
	l, _ := newTestLedger(t)
	initiator := testIdentity(t)
	payer := testIdentity(t)
	initAndFund(t, l, initiator, 0)
	initAndFund(t, l, payer, 1000)

	if _, err := l.CreatePendingRequest(initiator, payer, uint256.NewInt(300)); err != nil {
		t.Fatal(err)
	}
	if err := l.AcceptRequest(payer, initiator); err != nil {
		t.Fatalf("AcceptRequest failed: %v", err)
	}

	if got := mustBalance(t, l, payer); got != 700 {
		t.Errorf("Expected payer balance 700, got %d", got)
	}
	if got := mustBalance(t, l, initiator); got != 300 {
		t.Errorf("Expected initiator balance 300, got %d", got)
	}

	req, err := l.GetPendingRequest(initiator, payer)
	if err != nil {
		t.Fatal(err)
	}
	if req.Status != types.RequestAccepted {
		t.Errorf("Expected accepted status, got %s", req.Status)
	}
}

func TestAcceptRequestTwice(t *testing.T) {
	l, _ := newTestLedger(t)
	initiator := testIdentity(t)
	payer := testIdentity(t)
	initAndFund(t, l, initiator, 0)
	initAndFund(t, l, payer, 1000)

	if _, err := l.CreatePendingRequest(initiator, payer, uint256.NewInt(300)); err != nil {
		t.Fatal(err)
	}
	if err := l.AcceptRequest(payer, initiator); err != nil {
		t.Fatal(err)
	}

	err := l.AcceptRequest(payer, initiator)
	if !errors.IsCode(err, errors.ErrCodeNotPending) {
		t.Fatalf("Expected not_pending, got %v", err)
	}
	// Terminal acceptance never moves value twice.
	if got := mustBalance(t, l, payer); got != 700 {
		t.Errorf("Expected payer balance still 700, got %d", got)
	}
	if got := mustBalance(t, l, initiator); got != 300 {
		t.Errorf("Expected initiator balance still 300, got %d", got)
	}
}

func TestAcceptRequestInsufficientPayer(t *testing.T) {
	l, _ := newTestLedger(t)
	initiator := testIdentity(t)
	payer := testIdentity(t)
	initAndFund(t, l, initiator, 0)
	initAndFund(t, l, payer, 100)

	if _, err := l.CreatePendingRequest(initiator, payer, uint256.NewInt(300)); err != nil {
		t.Fatal(err)
	}

	err := l.AcceptRequest(payer, initiator)
	if !errors.IsCode(err, errors.ErrCodeInsufficientBalance) {
		t.Fatalf("Expected insufficient_balance, got %v", err)
	}

	// Failed acceptance mutates nothing: balances and status are intact.
	if got := mustBalance(t, l, payer); got != 100 {
		t.Errorf("Expected payer balance 100, got %d", got)
	}
	if got := mustBalance(t, l, initiator); got != 0 {
		t.Errorf("Expected initiator balance 0, got %d", got)
	}
	req, err := l.GetPendingRequest(initiator, payer)
	if err != nil {
		t.Fatal(err)
	}
	if !req.IsPending() {
		t.Errorf("Expected request still pending, got %s", req.Status)
	}
}

func TestAcceptRequestMissing(t *testing.T) {
	l, _ := newTestLedger(t)

	err := l.AcceptRequest(testIdentity(t), testIdentity(t))
	if !errors.IsCode(err, errors.ErrCodeNotFound) {
		t.Fatalf("Expected not_found, got %v", err)
	}
}

func TestRejectRequest(t *testing.T) {
	l, _ := newTestLedger(t)
	initiator := testIdentity(t)
	payer := testIdentity(t)
	initAndFund(t, l, initiator, 0)
	initAndFund(t, l, payer, 1000)

	if _, err := l.CreatePendingRequest(initiator, payer, uint256.NewInt(300)); err != nil {
		t.Fatal(err)
	}
	if err := l.RejectRequest(payer, initiator); err != nil {
		t.Fatalf("RejectRequest failed: %v", err)
	}

	// Rejection moves no value and is terminal.
	if got := mustBalance(t, l, payer); got != 1000 {
		t.Errorf("Expected payer balance 1000, got %d", got)
	}
	if got := mustBalance(t, l, initiator); got != 0 {
		t.Errorf("Expected initiator balance 0, got %d", got)
	}
	err := l.AcceptRequest(payer, initiator)
	if !errors.IsCode(err, errors.ErrCodeNotPending) {
		t.Fatalf("Expected not_pending after reject, got %v", err)
	}
}

func TestRecreateRequestAfterTerminal(t *testing.T) {
	l, _ := newTestLedger(t)
	initiator := testIdentity(t)
	payer := testIdentity(t)

	if _, err := l.CreatePendingRequest(initiator, payer, uint256.NewInt(300)); err != nil {
		t.Fatal(err)
	}
	if err := l.RejectRequest(payer, initiator); err != nil {
		t.Fatal(err)
	}

	// A terminal record no longer blocks the slot.
	req, err := l.CreatePendingRequest(initiator, payer, uint256.NewInt(900))
	if err != nil {
		t.Fatalf("Expected re-create after terminal status, got %v", err)
	}
	if req.Amount.Uint64() != 900 || !req.IsPending() {
		t.Errorf("Unexpected recreated request: %+v", req)
	}
}

// The end-to-end trace the system is known to serve: fund, withdraw, request,
// settle, and refuse double settlement.
func TestRequestScenario(t *testing.T) {
	l, _ := newTestLedger(t)
	a := testIdentity(t)
	b := testIdentity(t)

	initAndFund(t, l, a, 0)
	initAndFund(t, l, b, 20_000_000)

	if err := l.DepositFunds(a, uint256.NewInt(1_000_000_000)); err != nil {
		t.Fatal(err)
	}
	if got := mustBalance(t, l, a); got != 1_000_000_000 {
		t.Fatalf("Expected balance 1000000000, got %d", got)
	}

	if err := l.WithdrawFunds(a, uint256.NewInt(500_000_000)); err != nil {
		t.Fatal(err)
	}
	if got := mustBalance(t, l, a); got != 500_000_000 {
		t.Fatalf("Expected balance 500000000, got %d", got)
	}

	if _, err := l.CreatePendingRequest(a, b, uint256.NewInt(10_000_000)); err != nil {
		t.Fatal(err)
	}
	if err := l.AcceptRequest(b, a); err != nil {
		t.Fatal(err)
	}

	if got := mustBalance(t, l, b); got != 10_000_000 {
		t.Errorf("Expected payer balance 10000000, got %d", got)
	}
	if got := mustBalance(t, l, a); got != 510_000_000 {
		t.Errorf("Expected initiator balance 510000000, got %d", got)
	}
	req, err := l.GetPendingRequest(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if req.Status != types.RequestAccepted {
		t.Errorf("Expected accepted status, got %s", req.Status)
	}

	err = l.AcceptRequest(b, a)
	if !errors.IsCode(err, errors.ErrCodeNotPending) {
		t.Fatalf("Expected not_pending on second accept, got %v", err)
	}
}

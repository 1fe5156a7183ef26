package store

// Declare database key prefix for objects
const (
	PrefixCashAccount    = "cash_account:"
	PrefixPendingRequest = "pending_request:"
)

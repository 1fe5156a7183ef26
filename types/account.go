package types

import (
	"github.com/holiman/uint256"
)

// MaxFriends caps the friend list at the space reserved for it in the
// on-disk account record.
const MaxFriends = 100

type CashAccount struct {
	Owner   string       `json:"owner"`
	Balance *uint256.Int `json:"balance"`
	Friends []string     `json:"friends"`
	Bump    uint8        `json:"bump"`
}

func (a *CashAccount) HasFriend(identity string) bool {
	for _, f := range a.Friends {
		if f == identity {
			return true
		}
	}
	return false
}

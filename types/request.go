package types

import (
	"github.com/holiman/uint256"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestAccepted RequestStatus = "ACCEPTED"
	RequestRejected RequestStatus = "REJECTED"
)

// PendingRequest is a request-to-pay created by Initiator against
// Counterparty. Status is terminal once accepted or rejected.
type PendingRequest struct {
	Initiator    string        `json:"initiator"`
	Counterparty string        `json:"counterparty"`
	Amount       *uint256.Int  `json:"amount"`
	Status       RequestStatus `json:"status"`
	Bump         uint8         `json:"bump"`
}

func (r *PendingRequest) IsPending() bool {
	return r.Status == RequestPending
}

package model

import (
	"time"

	"iran-payment/internal/domain"
)

type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending" // record created, awaiting bank redirect
	TransactionStatusSucceed TransactionStatus = "succeed" // verified OK at the bank
	TransactionStatusFailed  TransactionStatus = "failed"  // bank rejected or verification failed
	TransactionStatusError   TransactionStatus = "error"   // infra failure before a terminal bank response
)

// Terminal reports whether no further status transition is permitted.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionStatusSucceed || s == TransactionStatusFailed || s == TransactionStatusError
}

// PayableRef is a weak back-reference to the merchant's own business object
// (an order, an invoice). Never an owning pointer; the gateway layer stores
// it untouched.
type PayableRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Transaction is the persisted record of one payment attempt. Code, Amount
// and Currency are fixed at creation; Status only moves pending -> terminal;
// GatewayData is an open per-adapter key set, appended stage by stage.
type Transaction struct {
	ID              string // ULID, storage primary id
	Code            string // opaque public identifier, unguessable, immutable
	Status          TransactionStatus
	Amount          int64
	Currency        Currency
	GatewayName     string
	GatewayData     map[string]string // adapter-owned, never interpreted by the orchestrator
	TrackingCode    string            // bank-assigned, set on successful verify
	ReferenceNumber string            // bank-assigned, set on successful verify
	Payable         *PayableRef
	Description     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	PaidAt          *time.Time
}

// MergeGatewayData appends adapter state into GatewayData. Keys written by an
// earlier lifecycle stage are not clobbered by a later one.
func (t *Transaction) MergeGatewayData(kv map[string]string) {
	if t.GatewayData == nil {
		t.GatewayData = make(map[string]string, len(kv))
	}
	for k, v := range kv {
		if _, exists := t.GatewayData[k]; exists {
			continue
		}
		t.GatewayData[k] = v
	}
}

// Transition moves the transaction to the given status, enforcing that
// terminal states are absorbing.
func (t *Transaction) Transition(to TransactionStatus) error {
	if t.Status.Terminal() {
		return domain.ErrTransactionAlreadyFinalized
	}
	t.Status = to
	t.UpdatedAt = time.Now()
	if to == TransactionStatusSucceed {
		now := t.UpdatedAt
		t.PaidAt = &now
	}
	return nil
}

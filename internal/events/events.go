package events

import "time"

// Event types
const (
	AccountCreated       = "account.created"
	AccountBranchUpdated = "account.branch_updated"
	AccountDeposited     = "account.deposited"
	AccountWithdrawn     = "account.withdrawn"
	AccountDeleted       = "account.deleted"
)

// Stream names
const (
	LedgerEventsStream = "ledger.events"
)

// Base event structure
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// AccountChangedEvent carries the account state right after a committed
// change, so consumers can rebuild their views from any single event.
// Seq is the sequence number of the transaction event that was appended.
type AccountChangedEvent struct {
	AccountNumber int64     `json:"accountNumber"`
	HolderName    string    `json:"holderName"`
	Branch        string    `json:"branch"`
	Balance       int64     `json:"balance"`
	Amount        int64     `json:"amount,omitempty"`
	TransactionID string    `json:"transactionId"`
	Seq           int64     `json:"seq"`
	EventCount    int       `json:"eventCount"`
	OccurredAt    time.Time `json:"occurredAt"`
}

type AccountDeletedEvent struct {
	AccountNumber int64 `json:"accountNumber"`
}

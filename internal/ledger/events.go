package ledger

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// The builders below never write to the slice they are given. Each returns a
// fresh slice holding the existing events plus the new one, so a caller that
// abandons an operation can drop the result without side effects.

// NewAccountEvents starts the history of a freshly created account.
func NewAccountEvents(now time.Time) []TransactionEvent {
	return appendEvent(nil, KindAccountCreated, 0, now)
}

// AppendBranchUpdated records a branch change.
func AppendBranchUpdated(existing []TransactionEvent, now time.Time) []TransactionEvent {
	return appendEvent(existing, KindBranchUpdated, 0, now)
}

// AppendDeposit records a deposit of amount minor units.
func AppendDeposit(existing []TransactionEvent, amount int64, now time.Time) []TransactionEvent {
	return appendEvent(existing, KindDeposit, amount, now)
}

// AppendWithdrawal records a withdrawal of amount minor units.
func AppendWithdrawal(existing []TransactionEvent, amount int64, now time.Time) []TransactionEvent {
	return appendEvent(existing, KindWithdrawal, amount, now)
}

func appendEvent(existing []TransactionEvent, kind Kind, amount int64, now time.Time) []TransactionEvent {
	out := make([]TransactionEvent, len(existing), len(existing)+1)
	copy(out, existing)
	return append(out, TransactionEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		Amount:    amount,
		Timestamp: now,
		Seq:       nextSeq(existing),
	})
}

// nextSeq scans rather than reading the last element because stored
// histories are not guaranteed to be in order.
func nextSeq(events []TransactionEvent) int64 {
	var max int64
	for _, e := range events {
		if e.Seq > max {
			max = e.Seq
		}
	}
	return max + 1
}

// SortedByTimestamp returns a copy of events ordered by timestamp, with Seq
// breaking ties between events recorded at the same instant.
func SortedByTimestamp(events []TransactionEvent) []TransactionEvent {
	if events == nil {
		return nil
	}
	out := make([]TransactionEvent, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

package projection

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/eaglebank/ledger/internal/events"
	"github.com/eaglebank/ledger/internal/ledger"
	goredis "github.com/redis/go-redis/v9"
)

func newTestSummaries(t *testing.T) *AccountSummaries {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewAccountSummaries(client, nil)
}

// overTheWire mimics a stream round trip, where Data arrives as a generic map.
func overTheWire(t *testing.T, eventType string, data any) events.Event {
	t.Helper()
	raw, err := json.Marshal(events.Event{Type: eventType, Timestamp: time.Now().UTC(), Data: data})
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	var event events.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	return event
}

func changed(seq int64, balance int64) events.AccountChangedEvent {
	return events.AccountChangedEvent{
		AccountNumber: 12345,
		HolderName:    "Ada Lovelace",
		Branch:        "London",
		Balance:       balance,
		Seq:           seq,
		EventCount:    int(seq),
		OccurredAt:    time.Date(2024, 1, 1, 0, 0, int(seq), 0, time.UTC),
	}
}

func TestHandleLedgerEvent_BuildsSummary(t *testing.T) {
	p := newTestSummaries(t)
	ctx := context.Background()

	if err := p.HandleLedgerEvent(ctx, overTheWire(t, events.AccountCreated, changed(1, 0))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.HandleLedgerEvent(ctx, overTheWire(t, events.AccountDeposited, changed(2, 100))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	summary, err := p.Summary(ctx, "12345")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Balance != 100 || summary.EventCount != 2 || summary.LastSeq != 2 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if summary.LastEventType != events.AccountDeposited {
		t.Errorf("expected last event %s, got %s", events.AccountDeposited, summary.LastEventType)
	}
	if summary.HolderName != "Ada Lovelace" || summary.Branch != "London" {
		t.Errorf("unexpected holder details: %+v", summary)
	}
}

func TestHandleLedgerEvent_IgnoresStaleEvents(t *testing.T) {
	p := newTestSummaries(t)
	ctx := context.Background()

	_ = p.HandleLedgerEvent(ctx, overTheWire(t, events.AccountWithdrawn, changed(3, 50)))
	if err := p.HandleLedgerEvent(ctx, overTheWire(t, events.AccountDeposited, changed(2, 100))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Redelivery of the latest event is a no-op as well.
	_ = p.HandleLedgerEvent(ctx, overTheWire(t, events.AccountWithdrawn, changed(3, 50)))

	summary, err := p.Summary(ctx, "12345")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.LastSeq != 3 || summary.Balance != 50 {
		t.Errorf("expected newest event to win, got %+v", summary)
	}
}

func TestHandleLedgerEvent_Deleted(t *testing.T) {
	p := newTestSummaries(t)
	ctx := context.Background()

	_ = p.HandleLedgerEvent(ctx, overTheWire(t, events.AccountCreated, changed(1, 0)))
	if err := p.HandleLedgerEvent(ctx, overTheWire(t, events.AccountDeleted, events.AccountDeletedEvent{AccountNumber: 12345})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := p.Summary(ctx, "12345"); !errors.Is(err, ErrSummaryNotFound) {
		t.Errorf("expected ErrSummaryNotFound, got %v", err)
	}
}

func TestHandleLedgerEvent_BadPayload(t *testing.T) {
	p := newTestSummaries(t)
	event := events.Event{Type: events.AccountDeposited, Data: map[string]any{"accountNumber": "oops"}}

	if err := p.HandleLedgerEvent(context.Background(), event); err == nil {
		t.Fatal("expected decode error so the message stays pending")
	}
}

func TestHandleLedgerEvent_UnknownType(t *testing.T) {
	p := newTestSummaries(t)
	if err := p.HandleLedgerEvent(context.Background(), events.Event{Type: "user.created"}); err != nil {
		t.Errorf("expected unknown events to be ignored, got %v", err)
	}
}

func TestSummary_InvalidNumber(t *testing.T) {
	p := newTestSummaries(t)

	_, err := p.Summary(context.Background(), "12ab")
	var vErr *ledger.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, err := p.Summary(context.Background(), "99999"); !errors.Is(err, ErrSummaryNotFound) {
		t.Errorf("expected ErrSummaryNotFound, got %v", err)
	}
}

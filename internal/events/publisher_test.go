package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestPublisher_Publish(t *testing.T) {
	client, mr := newTestClient(t)
	p := NewPublisher(client, 0)

	err := p.Publish(context.Background(), LedgerEventsStream, AccountDeposited, AccountChangedEvent{
		AccountNumber: 12345,
		Balance:       100,
		Amount:        100,
		Seq:           2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := mr.Stream(LedgerEventsStream)
	if err != nil {
		t.Fatalf("failed to read stream: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	values := entries[0].Values
	if len(values) != 2 || values[0] != "event" {
		t.Fatalf("unexpected entry values: %v", values)
	}

	var event Event
	if err := json.Unmarshal([]byte(values[1]), &event); err != nil {
		t.Fatalf("failed to unmarshal event: %v", err)
	}
	if event.Type != AccountDeposited {
		t.Errorf("expected type %s, got %s", AccountDeposited, event.Type)
	}
	if event.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}

	var data AccountChangedEvent
	if err := Decode(event, &data); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	if data.AccountNumber != 12345 || data.Balance != 100 || data.Seq != 2 {
		t.Errorf("unexpected payload: %+v", data)
	}
}

func TestPublisher_RedisDown(t *testing.T) {
	client, mr := newTestClient(t)
	mr.Close()

	p := NewPublisher(client, 100)
	if err := p.Publish(context.Background(), LedgerEventsStream, AccountCreated, nil); err == nil {
		t.Fatal("expected error when redis is unavailable")
	}
}

func TestDecode_TypeMismatch(t *testing.T) {
	event := Event{Type: AccountDeleted, Data: map[string]any{"accountNumber": "not-a-number"}}

	var data AccountDeletedEvent
	if err := Decode(event, &data); err == nil {
		t.Fatal("expected decode error")
	}
}

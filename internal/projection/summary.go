// Package projection keeps an eventually consistent summary of each account
// in Redis, fed by the ledger event stream. The ledger never reads it.
package projection

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/eaglebank/ledger/internal/cache"
	"github.com/eaglebank/ledger/internal/events"
	"github.com/eaglebank/ledger/internal/ledger"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const summaryKeyPrefix = "account:summary:"

var ErrSummaryNotFound = errors.New("account summary not found")

// AccountSummary is the read-optimised view of an account.
type AccountSummary struct {
	AccountNumber int64     `json:"accountNumber"`
	HolderName    string    `json:"accountHolderName"`
	Branch        string    `json:"accountBranch"`
	Balance       int64     `json:"accountBalance"`
	EventCount    int       `json:"transactionCount"`
	LastEventType string    `json:"lastEventType"`
	LastSeq       int64     `json:"lastSequence"`
	UpdatedAt     time.Time `json:"updatedTimestamp"`
}

type AccountSummaries struct {
	cache  *cache.ViewCache[AccountSummary]
	logger *zap.Logger
}

func NewAccountSummaries(client *goredis.Client, logger *zap.Logger) *AccountSummaries {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountSummaries{
		cache:  cache.NewViewCache[AccountSummary](client, 0, logger),
		logger: logger,
	}
}

func summaryKey(number int64) string {
	return summaryKeyPrefix + strconv.FormatInt(number, 10)
}

// Summary looks up the projected view of an account.
func (p *AccountSummaries) Summary(ctx context.Context, accountNumber string) (*AccountSummary, error) {
	number, err := ledger.ParseAccountNumber(accountNumber)
	if err != nil {
		return nil, err
	}
	summary, ok := p.cache.Get(ctx, summaryKey(number))
	if !ok {
		return nil, ErrSummaryNotFound
	}
	return summary, nil
}

// HandleLedgerEvent is the stream subscriber handler. Redelivered or
// out-of-order events are ignored by comparing sequence numbers.
func (p *AccountSummaries) HandleLedgerEvent(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.AccountCreated, events.AccountBranchUpdated, events.AccountDeposited, events.AccountWithdrawn:
		var data events.AccountChangedEvent
		if err := events.Decode(event, &data); err != nil {
			return err
		}
		key := summaryKey(data.AccountNumber)
		if current, ok := p.cache.Get(ctx, key); ok && current.LastSeq >= data.Seq {
			p.logger.Debug("Skipping stale ledger event",
				zap.String("type", event.Type), zap.Int64("accountNumber", data.AccountNumber), zap.Int64("seq", data.Seq))
			return nil
		}
		p.cache.Set(ctx, key, &AccountSummary{
			AccountNumber: data.AccountNumber,
			HolderName:    data.HolderName,
			Branch:        data.Branch,
			Balance:       data.Balance,
			EventCount:    data.EventCount,
			LastEventType: event.Type,
			LastSeq:       data.Seq,
			UpdatedAt:     data.OccurredAt,
		})
	case events.AccountDeleted:
		var data events.AccountDeletedEvent
		if err := events.Decode(event, &data); err != nil {
			return err
		}
		p.cache.Delete(ctx, summaryKey(data.AccountNumber))
	default:
		p.logger.Debug("Ignoring event", zap.String("type", event.Type))
	}
	return nil
}

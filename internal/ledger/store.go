package ledger

import "context"

// Store is the single source of truth for accounts.
//
// Save inserts when the snapshot's Version is zero and otherwise updates only
// if the stored version still matches, returning ErrVersionConflict when it
// does not. Balance and history are written together or not at all. The
// returned snapshot carries the new Version.
type Store interface {
	FindByNumber(ctx context.Context, number int64) (Account, error)
	Save(ctx context.Context, account Account) (Account, error)
	DeleteByNumber(ctx context.Context, number int64) error
	ListAll(ctx context.Context) ([]Account, error)
	Exists(ctx context.Context, number int64) (bool, error)
}

// Locker hands out exclusive per-key locks. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Publisher emits ledger events after a successful commit.
type Publisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

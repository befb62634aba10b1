package ledger

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
)

// NumberGenerator allocates account numbers for new accounts.
type NumberGenerator interface {
	Next(ctx context.Context) (int64, error)
}

const (
	minRandomNumber = 10000
	maxRandomNumber = 99999

	defaultDrawAttempts = 20
)

// RandomNumbers draws five-digit numbers and skips any already in the store.
// A number can still be taken between the check and the insert; Service
// handles that through ErrDuplicateNumber.
type RandomNumbers struct {
	store    Store
	attempts int
	draw     func() (int64, error)
}

func NewRandomNumbers(store Store, attempts int) *RandomNumbers {
	if attempts <= 0 {
		attempts = defaultDrawAttempts
	}
	return &RandomNumbers{store: store, attempts: attempts, draw: drawFiveDigits}
}

func (g *RandomNumbers) Next(ctx context.Context) (int64, error) {
	for i := 0; i < g.attempts; i++ {
		n, err := g.draw()
		if err != nil {
			return 0, fmt.Errorf("failed to draw account number: %w", err)
		}
		exists, err := g.store.Exists(ctx, n)
		if err != nil {
			return 0, fmt.Errorf("failed to check account number %d: %w", n, err)
		}
		if !exists {
			return n, nil
		}
	}
	return 0, ErrNumbersExhausted
}

func drawFiveDigits() (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(maxRandomNumber-minRandomNumber+1))
	if err != nil {
		return 0, err
	}
	return minRandomNumber + n.Int64(), nil
}

// Sequence is implemented by stores that can hand out monotonic numbers.
type Sequence interface {
	NextAccountNumber(ctx context.Context) (int64, error)
}

// SequenceNumbers delegates to a store-backed monotonic sequence.
type SequenceNumbers struct {
	seq Sequence
}

func NewSequenceNumbers(seq Sequence) *SequenceNumbers {
	return &SequenceNumbers{seq: seq}
}

func (g *SequenceNumbers) Next(ctx context.Context) (int64, error) {
	n, err := g.seq.NextAccountNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate account number: %w", err)
	}
	return n, nil
}

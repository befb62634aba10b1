package ledger

import (
	"context"
	"errors"
	"testing"
)

type existsStore struct {
	Store
	taken   map[int64]bool
	checked []int64
	err     error
}

func (s *existsStore) Exists(ctx context.Context, number int64) (bool, error) {
	s.checked = append(s.checked, number)
	if s.err != nil {
		return false, s.err
	}
	return s.taken[number], nil
}

func drawSequence(numbers ...int64) func() (int64, error) {
	i := 0
	return func() (int64, error) {
		n := numbers[i%len(numbers)]
		i++
		return n, nil
	}
}

func TestRandomNumbers_SkipsTakenNumbers(t *testing.T) {
	store := &existsStore{taken: map[int64]bool{11111: true, 22222: true}}
	gen := NewRandomNumbers(store, 5)
	gen.draw = drawSequence(11111, 22222, 33333)

	n, err := gen.Next(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 33333 {
		t.Errorf("expected 33333, got %d", n)
	}
	if len(store.checked) != 3 {
		t.Errorf("expected 3 existence checks, got %d", len(store.checked))
	}
}

func TestRandomNumbers_Exhausted(t *testing.T) {
	store := &existsStore{taken: map[int64]bool{11111: true}}
	gen := NewRandomNumbers(store, 4)
	gen.draw = drawSequence(11111)

	_, err := gen.Next(context.Background())
	if !errors.Is(err, ErrNumbersExhausted) {
		t.Fatalf("expected ErrNumbersExhausted, got %v", err)
	}
	if len(store.checked) != 4 {
		t.Errorf("expected 4 attempts, got %d", len(store.checked))
	}
}

func TestRandomNumbers_StoreFailure(t *testing.T) {
	storeErr := errors.New("connection refused")
	gen := NewRandomNumbers(&existsStore{err: storeErr}, 3)

	_, err := gen.Next(context.Background())
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestDrawFiveDigits(t *testing.T) {
	for i := 0; i < 1000; i++ {
		n, err := drawFiveDigits()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n < 10000 || n > 99999 {
			t.Fatalf("expected a five digit number, got %d", n)
		}
	}
}

type fixedSequence struct {
	next int64
	err  error
}

func (s *fixedSequence) NextAccountNumber(ctx context.Context) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.next++
	return s.next, nil
}

func TestSequenceNumbers(t *testing.T) {
	gen := NewSequenceNumbers(&fixedSequence{next: 10000})

	first, _ := gen.Next(context.Background())
	second, _ := gen.Next(context.Background())
	if first != 10001 || second != 10002 {
		t.Errorf("expected 10001 then 10002, got %d then %d", first, second)
	}

	seqErr := errors.New("sequence unavailable")
	if _, err := NewSequenceNumbers(&fixedSequence{err: seqErr}).Next(context.Background()); !errors.Is(err, seqErr) {
		t.Errorf("expected wrapped sequence error, got %v", err)
	}
}

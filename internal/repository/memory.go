package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/eaglebank/ledger/internal/ledger"
)

const firstSequenceNumber = 10000

// accountRecord is the persisted shape of an account: the row columns plus
// the transaction history as a JSON blob.
type accountRecord struct {
	Number       int64           `json:"accNo"`
	HolderName   string          `json:"holderName"`
	Branch       string          `json:"branch"`
	StartDate    time.Time       `json:"startDate"`
	Balance      *int64          `json:"balance"`
	Transactions json.RawMessage `json:"transactions"`
	CreatedBy    string          `json:"createdBy"`
	CreatedDate  time.Time       `json:"createdDate"`
	ModifiedBy   string          `json:"modifiedBy,omitempty"`
	ModifiedDate *time.Time      `json:"modifiedDate,omitempty"`
	Version      int64           `json:"version"`
}

func encodeAccount(a ledger.Account) ([]byte, error) {
	blob, err := encodeTransactions(a.Transactions)
	if err != nil {
		return nil, err
	}
	balance := a.Balance
	rec := accountRecord{
		Number:       a.Number,
		HolderName:   a.HolderName,
		Branch:       a.Branch,
		StartDate:    a.StartDate,
		Balance:      &balance,
		Transactions: blob,
		CreatedBy:    a.CreatedBy,
		CreatedDate:  a.CreatedDate,
		ModifiedBy:   a.ModifiedBy,
		Version:      a.Version,
	}
	if !a.ModifiedDate.IsZero() {
		modified := a.ModifiedDate
		rec.ModifiedDate = &modified
	}
	return json.Marshal(rec)
}

func decodeAccount(data []byte) (ledger.Account, error) {
	var rec accountRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return ledger.Account{}, fmt.Errorf("failed to decode account: %w", err)
	}
	txs, err := decodeTransactions(rec.Transactions)
	if err != nil {
		return ledger.Account{}, err
	}
	a := ledger.Account{
		Number:       rec.Number,
		HolderName:   rec.HolderName,
		Branch:       rec.Branch,
		StartDate:    rec.StartDate,
		Transactions: txs,
		CreatedBy:    rec.CreatedBy,
		CreatedDate:  rec.CreatedDate,
		ModifiedBy:   rec.ModifiedBy,
		Version:      rec.Version,
	}
	if rec.Balance != nil {
		a.Balance = *rec.Balance
	}
	if rec.ModifiedDate != nil {
		a.ModifiedDate = *rec.ModifiedDate
	}
	return a, nil
}

func encodeTransactions(txs []ledger.TransactionEvent) ([]byte, error) {
	if txs == nil {
		txs = []ledger.TransactionEvent{}
	}
	blob, err := json.Marshal(txs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transactions: %w", err)
	}
	return blob, nil
}

func decodeTransactions(blob []byte) ([]ledger.TransactionEvent, error) {
	if len(blob) == 0 || string(blob) == "null" {
		return nil, nil
	}
	var txs []ledger.TransactionEvent
	if err := json.Unmarshal(blob, &txs); err != nil {
		return nil, fmt.Errorf("failed to decode transactions: %w", err)
	}
	return txs, nil
}

// MemoryStore keeps encoded account records in process memory. Every read
// decodes a fresh snapshot, so callers never share state with the store.
// Numbers of deleted accounts are retired and never accepted again.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int64][]byte
	retired map[int64]struct{}
	order   []int64
	seq     int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[int64][]byte),
		retired: make(map[int64]struct{}),
		seq:     firstSequenceNumber - 1,
	}
}

func (s *MemoryStore) taken(number int64) bool {
	if _, ok := s.records[number]; ok {
		return true
	}
	_, ok := s.retired[number]
	return ok
}

func (s *MemoryStore) FindByNumber(ctx context.Context, number int64) (ledger.Account, error) {
	s.mu.RLock()
	data, ok := s.records[number]
	s.mu.RUnlock()
	if !ok {
		return ledger.Account{}, ledger.ErrNotFound
	}
	return decodeAccount(data)
}

func (s *MemoryStore) Save(ctx context.Context, account ledger.Account) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.records[account.Number]
	if account.Version == 0 {
		if s.taken(account.Number) {
			return ledger.Account{}, ledger.ErrDuplicateNumber
		}
	} else {
		if !exists {
			return ledger.Account{}, ledger.ErrNotFound
		}
		current, err := decodeAccount(stored)
		if err != nil {
			return ledger.Account{}, err
		}
		if current.Version != account.Version {
			return ledger.Account{}, ledger.ErrVersionConflict
		}
	}

	next := account.Clone()
	next.Version = account.Version + 1
	data, err := encodeAccount(next)
	if err != nil {
		return ledger.Account{}, err
	}
	s.records[account.Number] = data
	if !exists {
		s.order = append(s.order, account.Number)
	}
	return decodeAccount(data)
}

func (s *MemoryStore) DeleteByNumber(ctx context.Context, number int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[number]; !ok {
		return ledger.ErrNotFound
	}
	delete(s.records, number)
	s.retired[number] = struct{}{}
	for i, n := range s.order {
		if n == number {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accounts := make([]ledger.Account, 0, len(s.order))
	for _, n := range s.order {
		a, err := decodeAccount(s.records[n])
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

func (s *MemoryStore) Exists(ctx context.Context, number int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.taken(number), nil
}

// NextAccountNumber hands out numbers from 10000 upwards, skipping any that
// are in use or retired.
func (s *MemoryStore) NextAccountNumber(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		s.seq++
		if !s.taken(s.seq) {
			return s.seq, nil
		}
	}
}

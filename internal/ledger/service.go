package ledger

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/eaglebank/ledger/internal/events"
	"go.uber.org/zap"
)

const defaultMaxRetries = 5

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	// ServiceAccount is stamped into CreatedBy and ModifiedBy.
	ServiceAccount string
	// MaxRetries bounds how many times a mutation is replayed after a
	// version conflict.
	MaxRetries int
	Now        func() time.Time
}

// Service owns every change to account balances and histories. It keeps no
// account state between calls: each operation reads a snapshot from the Store,
// derives the next snapshot, and saves it.
type Service struct {
	store          Store
	numbers        NumberGenerator
	locker         Locker
	publisher      Publisher
	logger         *zap.Logger
	serviceAccount string
	maxRetries     int
	now            func() time.Time
}

// NewService wires a ledger. publisher and logger may be nil.
func NewService(
	store Store,
	numbers NumberGenerator,
	locker Locker,
	publisher Publisher,
	logger *zap.Logger,
	opts Options,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		store:          store,
		numbers:        numbers,
		locker:         locker,
		publisher:      publisher,
		logger:         logger,
		serviceAccount: opts.ServiceAccount,
		maxRetries:     opts.MaxRetries,
		now:            opts.Now,
	}
}

// GetAccountInformation returns one account with its history in timestamp order.
func (s *Service) GetAccountInformation(ctx context.Context, accountNumber string) (*AccountDto, error) {
	v := &inputValidator{}
	number := v.digits(FieldAccountNumber, accountNumber)
	if err := v.err(); err != nil {
		return nil, err
	}

	account, err := s.find(ctx, number)
	if err != nil {
		return nil, err
	}
	dto := newAccountDto(account, true)
	return &dto, nil
}

// CreateAccount opens an account with a zero balance under a freshly
// allocated number.
func (s *Service) CreateAccount(ctx context.Context, holderName, branch string) (*AccountDto, error) {
	v := &inputValidator{}
	v.notBlank(FieldHolderName, holderName)
	v.notBlank(FieldBranch, branch)
	if err := v.err(); err != nil {
		return nil, err
	}

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		number, err := s.numbers.Next(ctx)
		if errors.Is(err, ErrNumbersExhausted) {
			return nil, err
		}
		if err != nil {
			return nil, &StoreError{Op: "allocate account number", Err: err}
		}

		now := s.now()
		saved, err := s.store.Save(ctx, Account{
			Number:       number,
			HolderName:   holderName,
			Branch:       branch,
			StartDate:    now,
			Balance:      0,
			Transactions: NewAccountEvents(now),
			CreatedBy:    s.serviceAccount,
			CreatedDate:  now,
		})
		if errors.Is(err, ErrDuplicateNumber) {
			s.logger.Debug("Account number taken during insert, drawing again", zap.Int64("accountNumber", number))
			continue
		}
		if err != nil {
			return nil, &StoreError{Op: "create account", Err: err}
		}

		s.logger.Info("Account created", zap.Int64("accountNumber", saved.Number))
		s.publish(ctx, events.AccountCreated, changedEvent(saved, 0))
		dto := newAccountDto(saved, true)
		return &dto, nil
	}
	return nil, ErrNumbersExhausted
}

// UpdateAccountBranch moves an account to newBranch.
func (s *Service) UpdateAccountBranch(ctx context.Context, accountNumber, newBranch string) (*AccountDto, error) {
	v := &inputValidator{}
	number := v.digits(FieldAccountNumber, accountNumber)
	v.notBlank(FieldNewBranch, newBranch)
	if err := v.err(); err != nil {
		return nil, err
	}

	saved, err := s.mutate(ctx, number, func(current Account, now time.Time) (Account, error) {
		next := current
		next.Branch = newBranch
		next.Transactions = AppendBranchUpdated(current.Transactions, now)
		next.ModifiedBy = s.serviceAccount
		next.ModifiedDate = now
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.AccountBranchUpdated, changedEvent(saved, 0))
	dto := newAccountDto(saved, true)
	return &dto, nil
}

// DeleteAccount removes an account. No history entry survives it.
func (s *Service) DeleteAccount(ctx context.Context, accountNumber string) error {
	v := &inputValidator{}
	number := v.digits(FieldAccountNumber, accountNumber)
	if err := v.err(); err != nil {
		return err
	}

	unlock, err := s.lock(ctx, number)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := s.find(ctx, number); err != nil {
		return err
	}
	if err := s.store.DeleteByNumber(ctx, number); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return &StoreError{Op: "delete account", Err: err}
	}

	s.logger.Info("Account deleted", zap.Int64("accountNumber", number))
	s.publish(ctx, events.AccountDeleted, events.AccountDeletedEvent{AccountNumber: number})
	return nil
}

// Deposit credits amount minor units. It never fails for lack of funds.
func (s *Service) Deposit(ctx context.Context, accountNumber, amount string) (*AccountDto, error) {
	v := &inputValidator{}
	number := v.digits(FieldAccountNumber, accountNumber)
	credit := v.digits(FieldDepositAmount, amount)
	if err := v.err(); err != nil {
		return nil, err
	}

	saved, err := s.mutate(ctx, number, func(current Account, now time.Time) (Account, error) {
		if credit > math.MaxInt64-current.Balance {
			return Account{}, invalidInput(FieldDepositAmount)
		}
		next := current
		next.Balance = current.Balance + credit
		next.Transactions = AppendDeposit(current.Transactions, credit, now)
		next.ModifiedBy = s.serviceAccount
		next.ModifiedDate = now
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.AccountDeposited, changedEvent(saved, credit))
	dto := newAccountDto(saved, true)
	return &dto, nil
}

// Withdraw debits amount minor units. When the balance does not cover it the
// account is left exactly as it was and ErrInsufficientBalance is returned.
func (s *Service) Withdraw(ctx context.Context, accountNumber, amount string) (*AccountDto, error) {
	v := &inputValidator{}
	number := v.digits(FieldAccountNumber, accountNumber)
	debit := v.digits(FieldWithdrawalAmount, amount)
	if err := v.err(); err != nil {
		return nil, err
	}

	saved, err := s.mutate(ctx, number, func(current Account, now time.Time) (Account, error) {
		if debit > current.Balance {
			return Account{}, ErrInsufficientBalance
		}
		next := current
		next.Balance = current.Balance - debit
		next.Transactions = AppendWithdrawal(current.Transactions, debit, now)
		next.ModifiedBy = s.serviceAccount
		next.ModifiedDate = now
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.AccountWithdrawn, changedEvent(saved, debit))
	dto := newAccountDto(saved, true)
	return &dto, nil
}

// GetAllAccounts lists accounts in store order. Histories are returned as
// stored, without sorting.
func (s *Service) GetAllAccounts(ctx context.Context) ([]AccountDto, error) {
	accounts, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, &StoreError{Op: "list accounts", Err: err}
	}
	dtos := make([]AccountDto, 0, len(accounts))
	for _, a := range accounts {
		dtos = append(dtos, newAccountDto(a, false))
	}
	return dtos, nil
}

// mutate applies fn to the current snapshot of an account while holding its
// lock and saves the result. fn must derive a new snapshot and leave its
// argument untouched; any error it returns aborts without a write. Version
// conflicts replay the whole read-modify-write.
func (s *Service) mutate(ctx context.Context, number int64, fn func(current Account, now time.Time) (Account, error)) (Account, error) {
	unlock, err := s.lock(ctx, number)
	if err != nil {
		return Account{}, err
	}
	defer unlock()

	for attempt := 0; ; attempt++ {
		current, err := s.find(ctx, number)
		if err != nil {
			return Account{}, err
		}
		next, err := fn(current, s.now())
		if err != nil {
			return Account{}, err
		}

		saved, err := s.store.Save(ctx, next)
		switch {
		case err == nil:
			return saved, nil
		case errors.Is(err, ErrNotFound):
			return Account{}, ErrNotFound
		case !errors.Is(err, ErrVersionConflict):
			return Account{}, &StoreError{Op: "save account", Err: err}
		case attempt >= s.maxRetries:
			s.logger.Warn("Giving up after repeated version conflicts",
				zap.Int64("accountNumber", number), zap.Int("attempts", attempt+1))
			return Account{}, ErrConcurrentUpdate
		}
		s.logger.Debug("Version conflict, replaying update",
			zap.Int64("accountNumber", number), zap.Int("attempt", attempt+1))
	}
}

func (s *Service) find(ctx context.Context, number int64) (Account, error) {
	account, err := s.store.FindByNumber(ctx, number)
	if errors.Is(err, ErrNotFound) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, &StoreError{Op: "load account", Err: err}
	}
	return account, nil
}

func (s *Service) lock(ctx context.Context, number int64) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	unlock, err := s.locker.Lock(ctx, lockKey(number))
	if err != nil {
		// A caller that gave up is not a store failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &StoreError{Op: "lock account", Err: err}
	}
	return unlock, nil
}

func lockKey(number int64) string {
	return "account:" + strconv.FormatInt(number, 10)
}

func (s *Service) publish(ctx context.Context, eventType string, data any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.LedgerEventsStream, eventType, data); err != nil {
		s.logger.Warn("Failed to publish ledger event", zap.String("type", eventType), zap.Error(err))
	}
}

func changedEvent(a Account, amount int64) events.AccountChangedEvent {
	evt := events.AccountChangedEvent{
		AccountNumber: a.Number,
		HolderName:    a.HolderName,
		Branch:        a.Branch,
		Balance:       a.Balance,
		Amount:        amount,
		EventCount:    len(a.Transactions),
	}
	for _, t := range a.Transactions {
		if t.Seq > evt.Seq {
			evt.TransactionID = t.ID
			evt.Seq = t.Seq
			evt.OccurredAt = t.Timestamp
		}
	}
	return evt
}

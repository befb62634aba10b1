package ledger

import "time"

// Kind identifies the change a TransactionEvent records.
type Kind string

const (
	KindAccountCreated Kind = "ACCOUNT_CREATED"
	KindBranchUpdated  Kind = "BRANCH_UPDATED"
	KindDeposit        Kind = "DEPOSIT"
	KindWithdrawal     Kind = "WITHDRAWAL"
)

// TransactionEvent is an immutable entry in an account's history.
// Amount is set only for deposits and withdrawals.
type TransactionEvent struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"type"`
	Amount    int64     `json:"amount,omitempty"`
	Timestamp time.Time `json:"ts"`
	Seq       int64     `json:"seq"`
}

// Account is a snapshot of one bank account as held by the Store.
// Balance is in minor units and never negative. Version belongs to the Store:
// zero means the account has never been saved.
type Account struct {
	Number       int64
	HolderName   string
	Branch       string
	StartDate    time.Time
	Balance      int64
	Transactions []TransactionEvent
	CreatedBy    string
	CreatedDate  time.Time
	ModifiedBy   string
	ModifiedDate time.Time
	Version      int64
}

// Clone returns a copy that shares no memory with a.
func (a Account) Clone() Account {
	if a.Transactions != nil {
		txs := make([]TransactionEvent, len(a.Transactions))
		copy(txs, a.Transactions)
		a.Transactions = txs
	}
	return a
}

// AccountDto is the read-only projection handed back to callers.
type AccountDto struct {
	AccountNumber       int64              `json:"accountNumber"`
	AccountHolderName   string             `json:"accountHolderName"`
	AccountStartDate    time.Time          `json:"accountStartDate"`
	AccountBranch       string             `json:"accountBranch"`
	AccountBalance      int64              `json:"accountBalance"`
	AccountTransactions []TransactionEvent `json:"accountTransactions"`
}

func newAccountDto(a Account, sorted bool) AccountDto {
	txs := a.Transactions
	if sorted {
		txs = SortedByTimestamp(txs)
	} else {
		txs = a.Clone().Transactions
	}
	if txs == nil {
		txs = []TransactionEvent{}
	}
	return AccountDto{
		AccountNumber:       a.Number,
		AccountHolderName:   a.HolderName,
		AccountStartDate:    a.StartDate,
		AccountBranch:       a.Branch,
		AccountBalance:      a.Balance,
		AccountTransactions: txs,
	}
}

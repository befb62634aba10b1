package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/eaglebank/ledger/internal/ledger"
	"github.com/eaglebank/ledger/internal/middleware"
	"github.com/eaglebank/ledger/internal/projection"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AccountCommander defines the ledger operations that change accounts.
type AccountCommander interface {
	CreateAccount(ctx context.Context, holderName, branch string) (*ledger.AccountDto, error)
	UpdateAccountBranch(ctx context.Context, accountNumber, newBranch string) (*ledger.AccountDto, error)
	DeleteAccount(ctx context.Context, accountNumber string) error
	Deposit(ctx context.Context, accountNumber, amount string) (*ledger.AccountDto, error)
	Withdraw(ctx context.Context, accountNumber, amount string) (*ledger.AccountDto, error)
}

// AccountQuerier defines the ledger read operations.
type AccountQuerier interface {
	GetAccountInformation(ctx context.Context, accountNumber string) (*ledger.AccountDto, error)
	GetAllAccounts(ctx context.Context) ([]ledger.AccountDto, error)
}

// SummaryQuerier serves the projected account summaries.
type SummaryQuerier interface {
	Summary(ctx context.Context, accountNumber string) (*projection.AccountSummary, error)
}

// AccountHandler handles account-related HTTP requests.
type AccountHandler struct {
	commands  AccountCommander
	queries   AccountQuerier
	summaries SummaryQuerier
	logger    *zap.Logger
}

// Blankness and digit checks are left to the ledger so that callers get its
// single aggregated message; the tags here only bound sizes.
type CreateAccountRequest struct {
	HolderName string `json:"holderName" validate:"max=255"`
	Branch     string `json:"branch" validate:"max=255"`
}

type UpdateBranchRequest struct {
	Branch string `json:"branch" validate:"max=255"`
}

// AmountRequest carries the amount as a string of digits in minor units.
type AmountRequest struct {
	Amount string `json:"amount" validate:"max=19"`
}

type ListAccountsResponse struct {
	Accounts []ledger.AccountDto `json:"accounts"`
}

func NewAccountHandler(commands AccountCommander, queries AccountQuerier, summaries SummaryQuerier, logger *zap.Logger) *AccountHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountHandler{commands: commands, queries: queries, summaries: summaries, logger: logger}
}

// Register mounts the account routes on group.
func (h *AccountHandler) Register(group *gin.RouterGroup) {
	group.POST("", h.CreateAccount)
	group.GET("", h.ListAccounts)
	group.GET("/:accountNumber", h.GetAccount)
	group.PATCH("/:accountNumber", h.UpdateBranch)
	group.DELETE("/:accountNumber", h.DeleteAccount)
	group.POST("/:accountNumber/deposits", h.Deposit)
	group.POST("/:accountNumber/withdrawals", h.Withdraw)
	group.GET("/:accountNumber/summary", h.GetSummary)
}

func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if !bindRequest(c, &req) {
		return
	}

	account, err := h.commands.CreateAccount(c.Request.Context(), req.HolderName, req.Branch)
	if err != nil {
		h.respondWithLedgerError(c, err, "Failed to create account")
		return
	}

	c.JSON(http.StatusCreated, account)
}

func (h *AccountHandler) ListAccounts(c *gin.Context) {
	accounts, err := h.queries.GetAllAccounts(c.Request.Context())
	if err != nil {
		h.respondWithLedgerError(c, err, "Failed to list accounts")
		return
	}

	c.JSON(http.StatusOK, ListAccountsResponse{Accounts: accounts})
}

func (h *AccountHandler) GetAccount(c *gin.Context) {
	account, err := h.queries.GetAccountInformation(c.Request.Context(), c.Param("accountNumber"))
	if err != nil {
		h.respondWithLedgerError(c, err, "Failed to get account")
		return
	}

	c.JSON(http.StatusOK, account)
}

func (h *AccountHandler) UpdateBranch(c *gin.Context) {
	var req UpdateBranchRequest
	if !bindRequest(c, &req) {
		return
	}

	account, err := h.commands.UpdateAccountBranch(c.Request.Context(), c.Param("accountNumber"), req.Branch)
	if err != nil {
		h.respondWithLedgerError(c, err, "Failed to update account")
		return
	}

	c.JSON(http.StatusOK, account)
}

func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	if err := h.commands.DeleteAccount(c.Request.Context(), c.Param("accountNumber")); err != nil {
		h.respondWithLedgerError(c, err, "Failed to delete account")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *AccountHandler) Deposit(c *gin.Context) {
	var req AmountRequest
	if !bindRequest(c, &req) {
		return
	}

	account, err := h.commands.Deposit(c.Request.Context(), c.Param("accountNumber"), req.Amount)
	if err != nil {
		h.respondWithLedgerError(c, err, "Failed to deposit")
		return
	}

	c.JSON(http.StatusOK, account)
}

func (h *AccountHandler) Withdraw(c *gin.Context) {
	var req AmountRequest
	if !bindRequest(c, &req) {
		return
	}

	account, err := h.commands.Withdraw(c.Request.Context(), c.Param("accountNumber"), req.Amount)
	if err != nil {
		h.respondWithLedgerError(c, err, "Failed to withdraw")
		return
	}

	c.JSON(http.StatusOK, account)
}

func (h *AccountHandler) GetSummary(c *gin.Context) {
	summary, err := h.summaries.Summary(c.Request.Context(), c.Param("accountNumber"))
	if errors.Is(err, projection.ErrSummaryNotFound) {
		middleware.RespondWithError(c, http.StatusNotFound, "Account summary not found")
		return
	}
	if err != nil {
		h.respondWithLedgerError(c, err, "Failed to get account summary")
		return
	}

	c.JSON(http.StatusOK, summary)
}

func bindRequest(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return false
	}
	return true
}

// respondWithLedgerError maps the ledger's error taxonomy onto status codes.
// Only unexpected failures are logged.
func (h *AccountHandler) respondWithLedgerError(c *gin.Context, err error, fallback string) {
	var validationErr *ledger.ValidationError
	switch {
	case errors.As(err, &validationErr):
		middleware.RespondWithError(c, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, ledger.ErrNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "Account not found")
	case errors.Is(err, ledger.ErrInsufficientBalance):
		middleware.RespondWithError(c, http.StatusUnprocessableEntity, "Insufficient account balance")
	case errors.Is(err, ledger.ErrConcurrentUpdate):
		middleware.RespondWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrNumbersExhausted):
		h.logger.Warn(fallback, zap.Error(err))
		middleware.RespondWithError(c, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.logger.Debug("Request abandoned", zap.String("path", c.FullPath()), zap.Error(err))
		middleware.RespondWithError(c, http.StatusRequestTimeout, "Request cancelled")
	default:
		h.logger.Error(fallback, zap.String("path", c.FullPath()), zap.Error(err))
		middleware.RespondWithError(c, http.StatusInternalServerError, fallback)
	}
}

package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/bguntupallics/TradingSandbox/internal/domain"
)

// OpenAccountInput represents the input for opening a new trading account
type OpenAccountInput struct {
	Username string
}

// ChangeBalanceInput represents the input for a cash deposit or withdrawal
type ChangeBalanceInput struct {
	Amount decimal.Decimal
}

// AccountService handles account lifecycle and cash balance operations
type AccountService struct {
	AccountRepo domain.AccountRepository

	log zerolog.Logger
}

// NewAccountService creates a new AccountService instance
func NewAccountService(accountRepo domain.AccountRepository, log zerolog.Logger) *AccountService {
	return &AccountService{
		AccountRepo: accountRepo,
		log:         log.With().Str("component", "accounts").Logger(),
	}
}

// Open creates a new account with the default starting cash balance.
func (s *AccountService) Open(ctx context.Context, input OpenAccountInput) (*domain.Account, error) {
	acct := domain.NewAccount(strings.TrimSpace(input.Username))
	if err := acct.Validate(); err != nil {
		return nil, err
	}

	if err := s.AccountRepo.Create(ctx, acct); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("account", acct.ID.String()).
		Str("username", acct.Username).
		Msg("Account opened")
	return acct, nil
}

// Get retrieves an account with its holdings.
func (s *AccountService) Get(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.AccountRepo.GetByID(ctx, id)
}

// CreditBalance adds cash to the account.
func (s *AccountService) CreditBalance(ctx context.Context, id uuid.UUID, input ChangeBalanceInput) (*domain.Account, error) {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.NewValidationError("amount", "amount must be positive")
	}
	return s.AccountRepo.AdjustBalance(ctx, id, input.Amount.Round(4))
}

// DebitBalance removes cash from the account. The funds check runs inside
// the repository's atomic adjustment, never against a stale snapshot, so
// the balance can never go negative under concurrent withdrawals.
func (s *AccountService) DebitBalance(ctx context.Context, id uuid.UUID, input ChangeBalanceInput) (*domain.Account, error) {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.NewValidationError("amount", "amount must be positive")
	}

	amount := input.Amount.Round(4)
	acct, err := s.AccountRepo.AdjustBalance(ctx, id, amount.Neg())
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			return nil, fmt.Errorf("withdrawal of $%s: %w",
				amount.StringFixed(2), domain.ErrInsufficientFunds)
		}
		return nil, err
	}
	return acct, nil
}

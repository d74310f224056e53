package seeder

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/bguntupallics/TradingSandbox/internal/domain"
)

// MockAccountRepository is a mock implementation of AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountRepository) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountRepository) Create(ctx context.Context, acct *domain.Account) error {
	args := m.Called(ctx, acct)
	return args.Error(0)
}

func (m *MockAccountRepository) AdjustBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (*domain.Account, error) {
	args := m.Called(ctx, id, delta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountRepository) Settle(ctx context.Context, id uuid.UUID, fn domain.SettleFunc) (*domain.Trade, error) {
	args := m.Called(ctx, id, fn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Trade), args.Error(1)
}

func TestDemoSeeder_Seed_AccountMissing(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockAccountRepository)
	seeder := NewDemoSeeder(mockRepo)

	mockRepo.On("GetByUsername", ctx, DemoUsername).Return(nil, domain.ErrAccountNotFound)
	mockRepo.On("Create", ctx, mock.MatchedBy(func(acct *domain.Account) bool {
		return acct.Username == DemoUsername &&
			acct.CashBalance.Equal(decimal.NewFromInt(100000)) &&
			len(acct.Holdings) == 0
	})).Return(nil)

	err := seeder.Seed(ctx)

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockRepo.AssertNumberOfCalls(t, "Create", 1)
}

func TestDemoSeeder_Seed_AccountExists(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockAccountRepository)
	seeder := NewDemoSeeder(mockRepo)

	mockRepo.On("GetByUsername", ctx, DemoUsername).Return(domain.NewAccount(DemoUsername), nil)

	err := seeder.Seed(ctx)

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockRepo.AssertNotCalled(t, "Create")
}

func TestDemoSeeder_Seed_LookupFails(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockAccountRepository)
	seeder := NewDemoSeeder(mockRepo)

	mockRepo.On("GetByUsername", ctx, DemoUsername).Return(nil, errors.New("connection refused"))

	err := seeder.Seed(ctx)

	assert.Error(t, err)
	mockRepo.AssertNotCalled(t, "Create")
}

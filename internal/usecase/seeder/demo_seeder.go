package seeder

import (
	"context"
	"errors"
	"fmt"

	"github.com/bguntupallics/TradingSandbox/internal/domain"
)

// DemoUsername is the username of the account seeded at startup so a
// fresh sandbox is immediately usable.
const DemoUsername = "demo"

// DemoSeeder ensures the demo trading account exists
type DemoSeeder struct {
	repo domain.AccountRepository
}

// NewDemoSeeder creates a new DemoSeeder instance
func NewDemoSeeder(repo domain.AccountRepository) *DemoSeeder {
	return &DemoSeeder{
		repo: repo,
	}
}

// Seed creates the demo account with the default starting balance if it
// does not exist yet. Seeding is idempotent across restarts.
func (s *DemoSeeder) Seed(ctx context.Context) error {
	_, err := s.repo.GetByUsername(ctx, DemoUsername)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return fmt.Errorf("failed to check demo account: %w", err)
	}

	acct := domain.NewAccount(DemoUsername)
	if err := acct.Validate(); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, acct); err != nil {
		return fmt.Errorf("failed to create demo account: %w", err)
	}
	return nil
}

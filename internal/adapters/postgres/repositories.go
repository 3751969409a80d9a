package postgres

import (
	"github.com/viralforge/revenue-ledger/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Ledger      ports.LedgerRepository
	Balances    ports.BalanceRepository
	Holds       ports.EscrowHoldRepository
	Streams     ports.StreamRepository
	Royalties   ports.RoyaltyPeriodRepository
	Payouts     ports.PayoutRepository
	RateChanges ports.RateChangeRepository
	Idempotency ports.IdempotencyRepository
	Outbox      ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Ledger:      &ledgerRepository{db: db},
		Balances:    &balanceRepository{db: db},
		Holds:       &escrowHoldRepository{db: db},
		Streams:     &streamRepository{db: db},
		Royalties:   &royaltyPeriodRepository{db: db},
		Payouts:     &payoutRepository{db: db},
		RateChanges: &rateChangeRepository{db: db},
		Idempotency: &idempotencyRepository{db: db},
		Outbox:      &outboxRepository{db: db},
	}
}

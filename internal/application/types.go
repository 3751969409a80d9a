package application

import (
	"log/slog"
	"time"

	"github.com/viralforge/revenue-ledger/internal/domain"
	"github.com/viralforge/revenue-ledger/internal/ports"
)

type Config struct {
	ServiceName     string
	DefaultCurrency string

	IdempotencyTTL       time.Duration
	OutboxFlushBatchSize int
	OutboxMaxAttempts    int

	MinimumPayoutMinor  int64
	ProviderTimeout     time.Duration
	ProviderMaxAttempts int
	ProviderBackoff     time.Duration

	EscrowAutoRelease        time.Duration
	EscrowAutoReleaseFloor   time.Duration
	EscrowAutoReleaseCeiling time.Duration
	EscrowRefundWindow       time.Duration

	RoyaltyRatePer1KMinor   int64
	RoyaltyBatchParallelism int
	RunLockTTL              time.Duration

	RateChangeSecret []byte
}

type Actor struct {
	SubjectID      string
	Role           string
	RequestID      string
	IdempotencyKey string
}

func (a Actor) IsAdmin() bool {
	return a.Role == "admin"
}

type RecordEventInput struct {
	CreatorID         string
	Channel           domain.Channel
	GrossMinor        int64
	Currency          string
	SourceRef         string
	CommissionRateBPS *int64
	OccurredAt        time.Time
	Metadata          map[string]string
}

type CreateEscrowOrderInput struct {
	OrderID          string
	BuyerID          string
	CreatorID        string
	AmountMinor      int64
	Currency         string
	AutoReleaseHours int
}

type RecordStreamInput struct {
	TrackID         string
	CreatorID       string
	ListenerID      string
	DurationSeconds int
	StreamedAt      time.Time
}

type RequestPayoutInput struct {
	CreatorID   string
	AmountMinor int64
	Currency    string
	Method      domain.PayoutMethod
}

type Service struct {
	cfg    Config
	logger *slog.Logger

	ledger      ports.LedgerRepository
	balances    ports.BalanceRepository
	holds       ports.EscrowHoldRepository
	streams     ports.StreamRepository
	royalties   ports.RoyaltyPeriodRepository
	payouts     ports.PayoutRepository
	rateChanges ports.RateChangeRepository
	idempotency ports.IdempotencyRepository
	outbox      ports.OutboxRepository

	kyc      ports.KYCClient
	provider ports.PaymentProviderClient
	runLock  ports.RunLocker

	domainEvents ports.DomainPublisher
	analytics    ports.AnalyticsPublisher
	dlq          ports.DLQPublisher

	creatorLocks *keyedMutex
	nowFn        func() time.Time
	sleepFn      func(time.Duration)
}

type Dependencies struct {
	Config Config
	Logger *slog.Logger

	Ledger      ports.LedgerRepository
	Balances    ports.BalanceRepository
	Holds       ports.EscrowHoldRepository
	Streams     ports.StreamRepository
	Royalties   ports.RoyaltyPeriodRepository
	Payouts     ports.PayoutRepository
	RateChanges ports.RateChangeRepository
	Idempotency ports.IdempotencyRepository
	Outbox      ports.OutboxRepository

	KYC      ports.KYCClient
	Provider ports.PaymentProviderClient
	RunLock  ports.RunLocker

	DomainEvents ports.DomainPublisher
	Analytics    ports.AnalyticsPublisher
	DLQ          ports.DLQPublisher
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "Revenue-Ledger-Service"
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "EUR"
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 7 * 24 * time.Hour
	}
	if cfg.OutboxFlushBatchSize <= 0 {
		cfg.OutboxFlushBatchSize = 100
	}
	if cfg.OutboxMaxAttempts <= 0 {
		cfg.OutboxMaxAttempts = 5
	}
	if cfg.MinimumPayoutMinor <= 0 {
		cfg.MinimumPayoutMinor = domain.MinimumPayoutMinor
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 10 * time.Second
	}
	if cfg.ProviderMaxAttempts <= 0 {
		cfg.ProviderMaxAttempts = 3
	}
	if cfg.ProviderBackoff <= 0 {
		cfg.ProviderBackoff = 2 * time.Second
	}
	if cfg.EscrowAutoRelease <= 0 {
		cfg.EscrowAutoRelease = domain.DefaultAutoRelease
	}
	if cfg.EscrowAutoReleaseFloor <= 0 {
		cfg.EscrowAutoReleaseFloor = domain.MinAutoRelease
	}
	if cfg.EscrowAutoReleaseCeiling <= 0 {
		cfg.EscrowAutoReleaseCeiling = domain.MaxAutoRelease
	}
	if cfg.EscrowRefundWindow <= 0 {
		cfg.EscrowRefundWindow = 14 * 24 * time.Hour
	}
	if cfg.RoyaltyRatePer1KMinor <= 0 {
		cfg.RoyaltyRatePer1KMinor = domain.DefaultRatePer1KMinor
	}
	if cfg.RoyaltyBatchParallelism <= 0 {
		cfg.RoyaltyBatchParallelism = 4
	}
	if cfg.RunLockTTL <= 0 {
		cfg.RunLockTTL = 15 * time.Minute
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:          cfg,
		logger:       logger,
		ledger:       deps.Ledger,
		balances:     deps.Balances,
		holds:        deps.Holds,
		streams:      deps.Streams,
		royalties:    deps.Royalties,
		payouts:      deps.Payouts,
		rateChanges:  deps.RateChanges,
		idempotency:  deps.Idempotency,
		outbox:       deps.Outbox,
		kyc:          deps.KYC,
		provider:     deps.Provider,
		runLock:      deps.RunLock,
		domainEvents: deps.DomainEvents,
		analytics:    deps.Analytics,
		dlq:          deps.DLQ,
		creatorLocks: newKeyedMutex(),
		nowFn:        func() time.Time { return time.Now().UTC() },
		sleepFn:      time.Sleep,
	}
}

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/viralforge/revenue-ledger/internal/adapters/cache"
	eventadapter "github.com/viralforge/revenue-ledger/internal/adapters/events"
	grpcadapter "github.com/viralforge/revenue-ledger/internal/adapters/grpc"
	httpadapter "github.com/viralforge/revenue-ledger/internal/adapters/http"
	"github.com/viralforge/revenue-ledger/internal/adapters/memory"
	"github.com/viralforge/revenue-ledger/internal/adapters/postgres"
	"github.com/viralforge/revenue-ledger/internal/adapters/security"
	"github.com/viralforge/revenue-ledger/internal/app/worker"
	"github.com/viralforge/revenue-ledger/internal/application"
	"github.com/viralforge/revenue-ledger/internal/ports"
	"google.golang.org/grpc"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	worker     *worker.Worker
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With("service", cfg.ServiceID)
	slog.SetDefault(logger)

	var (
		ledger      ports.LedgerRepository
		balances    ports.BalanceRepository
		holds       ports.EscrowHoldRepository
		streams     ports.StreamRepository
		royalties   ports.RoyaltyPeriodRepository
		payouts     ports.PayoutRepository
		rateChanges ports.RateChangeRepository
		idempotency ports.IdempotencyRepository
		outbox      ports.OutboxRepository
	)
	if cfg.DatabaseURL != "" {
		db, dbErr := postgres.Connect(ctx, cfg.DatabaseURL, 20)
		if dbErr != nil {
			return nil, dbErr
		}
		if migrateErr := postgres.RunMigrations(ctx, db); migrateErr != nil {
			return nil, migrateErr
		}
		repos := postgres.NewRepositories(db)
		ledger = repos.Ledger
		balances = repos.Balances
		holds = repos.Holds
		streams = repos.Streams
		royalties = repos.Royalties
		payouts = repos.Payouts
		rateChanges = repos.RateChanges
		idempotency = repos.Idempotency
		outbox = repos.Outbox
	} else {
		logger.WarnContext(ctx, "no database configured, using in-memory repositories")
		repos := memory.NewRepositories()
		ledger = repos.Ledger
		balances = repos.Balances
		holds = repos.Holds
		streams = repos.Streams
		royalties = repos.Royalties
		payouts = repos.Payouts
		rateChanges = repos.RateChanges
		idempotency = repos.Idempotency
		outbox = repos.Outbox
	}

	var runLock ports.RunLocker
	if cfg.RedisURL != "" {
		client, redisErr := cache.Connect(ctx, cfg.RedisURL)
		if redisErr != nil {
			return nil, redisErr
		}
		runLock = cache.NewRedisRunLock(client, "")
	} else {
		runLock = memory.NewRunLock()
	}

	var (
		domainPublisher    ports.DomainPublisher
		analyticsPublisher ports.AnalyticsPublisher
		dlqPublisher       ports.DLQPublisher
		consumer           ports.EventConsumer
	)
	if len(cfg.KafkaBrokers) > 0 {
		publisher, kafkaErr := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, cfg.AnalyticsTopic, cfg.DLQTopic, nil)
		if kafkaErr != nil {
			return nil, kafkaErr
		}
		domainPublisher = publisher
		analyticsPublisher = publisher
		dlqPublisher = publisher
		if len(cfg.ConsumerTopics) > 0 {
			kafkaConsumer, consumerErr := eventadapter.NewKafkaConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, cfg.ConsumerTopics)
			if consumerErr != nil {
				return nil, consumerErr
			}
			consumer = kafkaConsumer
		}
	} else {
		logger.WarnContext(ctx, "no kafka brokers configured, events stay in-process")
		domainPublisher = eventadapter.NewMemoryDomainPublisher()
		analyticsPublisher = eventadapter.NewMemoryAnalyticsPublisher()
		dlqPublisher = eventadapter.NewLoggingDLQPublisher(logger)
	}

	service := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:              cfg.ServiceID,
			DefaultCurrency:          cfg.DefaultCurrency,
			IdempotencyTTL:           cfg.IdempotencyTTL,
			MinimumPayoutMinor:       cfg.MinimumPayoutMinor,
			ProviderTimeout:          cfg.ProviderTimeout,
			ProviderMaxAttempts:      cfg.ProviderMaxAttempts,
			ProviderBackoff:          cfg.ProviderBackoff,
			EscrowAutoRelease:        time.Duration(cfg.EscrowAutoReleaseHours) * time.Hour,
			EscrowAutoReleaseFloor:   time.Duration(cfg.EscrowReleaseFloorHours) * time.Hour,
			EscrowAutoReleaseCeiling: time.Duration(cfg.EscrowReleaseCeilHours) * time.Hour,
			EscrowRefundWindow:       time.Duration(cfg.EscrowRefundWindowDays) * 24 * time.Hour,
			RoyaltyRatePer1KMinor:    cfg.RoyaltyRatePer1KMinor,
			RoyaltyBatchParallelism:  cfg.RoyaltyBatchParallelism,
			RunLockTTL:               cfg.RunLockTTL,
			RateChangeSecret:         []byte(cfg.RateChangeSecret),
		},
		Logger:       logger,
		Ledger:       ledger,
		Balances:     balances,
		Holds:        holds,
		Streams:      streams,
		Royalties:    royalties,
		Payouts:      payouts,
		RateChanges:  rateChanges,
		Idempotency:  idempotency,
		Outbox:       outbox,
		KYC:          grpcadapter.NewKYCClient(cfg.KYCGRPCURL),
		Provider:     grpcadapter.NewPaymentProviderClient(cfg.ProviderGRPCURL),
		RunLock:      runLock,
		DomainEvents: domainPublisher,
		Analytics:    analyticsPublisher,
		DLQ:          dlqPublisher,
	})

	var verifier *security.TokenVerifier
	if cfg.JWTSecret != "" {
		verifier, err = security.NewTokenVerifier([]byte(cfg.JWTSecret))
		if err != nil {
			return nil, err
		}
	} else {
		logger.WarnContext(ctx, "no jwt secret configured, accepting raw bearer subjects")
	}

	handler := httpadapter.NewHandler(service)
	router := httpadapter.NewRouter(handler, verifier)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	grpcadapter.Register(grpcServer, grpcadapter.NewRevenueInternalServer(service))
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return nil, err
	}

	jobs := worker.New(logger, service, worker.Config{
		OutboxInterval: cfg.OutboxInterval,
		MatureInterval: cfg.MatureInterval,
		EscrowInterval: cfg.EscrowInterval,
		PayoutInterval: cfg.PayoutInterval,
		Consumer:       consumer,
		DLQ:            dlqPublisher,
	})

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		worker:     jobs,
	}, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 2)

	go func() {
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		r.logger.ErrorContext(ctx, "runtime failure", "error", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	return nil
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 1)
	go func() {
		if err := r.worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

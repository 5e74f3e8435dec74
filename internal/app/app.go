// Package app selects and opens the configured backends for the binaries.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"resultportal/internal/auth"
	"resultportal/internal/config"
	"resultportal/internal/handler"
	"resultportal/internal/httpmiddleware"
	"resultportal/internal/notify"
	"resultportal/internal/queue"
	"resultportal/internal/results"
	"resultportal/internal/store"
)

// Backends holds the opened storage, queue and cache connections.
type Backends struct {
	Repo   results.Repository
	Queue  queue.Queue
	Redis  *store.Redis
	Health map[string]handler.HealthCheck

	closers []func() error
}

func needsRedis(cfg config.App) bool {
	return cfg.ChallengeStore == "redis" || cfg.QueueBackend == "redis"
}

// Open connects every backend named in cfg. On error, whatever was opened
// is closed again.
func Open(ctx context.Context, cfg config.App, logger *zap.Logger) (*Backends, error) {
	return open(ctx, cfg, logger, true)
}

// OpenQueue connects only the event queue and the Redis client it may need.
func OpenQueue(ctx context.Context, cfg config.App, logger *zap.Logger) (*Backends, error) {
	return open(ctx, cfg, logger, false)
}

func open(ctx context.Context, cfg config.App, logger *zap.Logger, withStore bool) (_ *Backends, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Backends{Health: map[string]handler.HealthCheck{}}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	if needsRedis(cfg) {
		b.Redis = store.NewRedis(cfg.RedisAddr)
		b.closers = append(b.closers, b.Redis.Close)
		b.Health["redis"] = b.Redis.Healthy
		if !b.Redis.Healthy(ctx) {
			logger.Warn("redis not reachable at startup", zap.String("addr", cfg.RedisAddr))
		}
	}
	if withStore {
		if err := b.openStore(ctx, cfg, logger); err != nil {
			return nil, err
		}
	}
	if err := b.openQueue(cfg); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Backends) openStore(ctx context.Context, cfg config.App, logger *zap.Logger) error {
	switch cfg.StoreBackend {
	case "memory":
		b.Repo = results.NewMemoryRepository()
		logger.Warn("using in-memory result store; records are lost on restart")
	case "postgres":
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, db.Close)
		repo := results.NewPostgresRepository(db.Client)
		if err := repo.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
		b.Repo = repo
		b.Health["db"] = db.Healthy
	case "mongo":
		m, err := store.NewMongo(ctx, cfg.MongoURL, cfg.DBName)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, func() error { return m.Close(context.Background()) })
		repo := results.NewMongoRepository(m.DB)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("mongo indexes: %w", err)
		}
		b.Repo = repo
		b.Health["db"] = m.Healthy
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	return nil
}

func (b *Backends) openQueue(cfg config.App) error {
	switch cfg.QueueBackend {
	case "memory":
		b.Queue = queue.NewInMemory(64)
	case "redis":
		b.Queue = queue.NewRedisQueue(b.Redis.Client, "")
	case "kafka":
		if cfg.Kafka.Broker == "" {
			return fmt.Errorf("QUEUE_BACKEND=kafka requires KAFKA_BROKER")
		}
		kq := queue.NewKafkaQueue(queue.KafkaConfig{
			Broker:   cfg.Kafka.Broker,
			Topic:    cfg.Kafka.Topic,
			Username: cfg.Kafka.Username,
			Password: cfg.Kafka.Password,
		})
		b.closers = append(b.closers, kq.Close)
		b.Queue = kq
	default:
		return fmt.Errorf("unknown QUEUE_BACKEND %q", cfg.QueueBackend)
	}
	return nil
}

// Close releases every connection in reverse order of opening.
func (b *Backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
	b.closers = nil
}

// ChallengeStore returns the pending challenge store named by cfg.
func (b *Backends) ChallengeStore(cfg config.App) (auth.ChallengeStore, error) {
	switch cfg.ChallengeStore {
	case "memory":
		return auth.NewMemoryChallengeStore(), nil
	case "redis":
		return auth.NewRedisChallengeStore(b.Redis.Client, ""), nil
	}
	return nil, fmt.Errorf("unknown CHALLENGE_BACKEND %q", cfg.ChallengeStore)
}

// Limiter returns a Redis-backed limiter when Redis is in use so that every
// instance shares one budget, and an in-process bucket otherwise.
func (b *Backends) Limiter(cfg config.App) httpmiddleware.Limiter {
	if cfg.RateLimitPerMin <= 0 {
		return nil
	}
	if b.Redis != nil {
		return httpmiddleware.NewRedisWindow(b.Redis.Client, cfg.RateLimitPerMin)
	}
	return httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
}

// AuthService builds the admin login service. The code challenge is only
// enabled when the Verify settings are complete.
func (b *Backends) AuthService(cfg config.App, logger *zap.Logger) (*auth.Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	codec := auth.NewCodec(cfg.SessionSecret, cfg.JWTIssuer)
	admin := auth.Admin{Username: cfg.AdminUser, Password: cfg.AdminPass, PasswordHash: cfg.AdminPassHash}

	if !cfg.OTPConfigured() {
		logger.Warn("OTP delivery not configured; admin logins receive a session directly")
		return auth.NewService(admin, codec, nil, cfg.SessionTTL, logger), nil
	}

	challenges, err := b.ChallengeStore(cfg)
	if err != nil {
		return nil, err
	}
	verify := notify.New(cfg.Twilio.BaseURL, cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.VerifySID, cfg.NotifyTimeout)
	coord := auth.NewCoordinator(codec, challenges, verify, auth.CoordinatorConfig{
		Destination: cfg.Twilio.AdminPhone,
		TTL:         cfg.ChallengeTTL,
		Timeout:     cfg.NotifyTimeout,
	}, logger)
	return auth.NewService(admin, codec, coord, cfg.SessionTTL, logger), nil
}


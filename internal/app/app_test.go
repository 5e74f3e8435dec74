package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resultportal/internal/auth"
	"resultportal/internal/config"
	"resultportal/internal/httpmiddleware"
	"resultportal/internal/queue"
	"resultportal/internal/results"
)

func baseConfig() config.App {
	return config.App{
		StoreBackend:    "memory",
		QueueBackend:    "memory",
		ChallengeStore:  "memory",
		SessionSecret:   "secret",
		JWTIssuer:       "result-portal",
		SessionTTL:      time.Hour,
		ChallengeTTL:    10 * time.Minute,
		NotifyTimeout:   time.Second,
		AdminUser:       "admin",
		AdminPass:       "12345",
		RateLimitPerMin: 30,
	}
}

func TestOpenMemory(t *testing.T) {
	b, err := Open(context.Background(), baseConfig(), nil)
	require.NoError(t, err)
	defer b.Close()

	assert.IsType(t, &results.MemoryRepository{}, b.Repo)
	assert.IsType(t, &queue.InMemory{}, b.Queue)
	assert.Nil(t, b.Redis)
	assert.IsType(t, &httpmiddleware.SimpleTokenBucket{}, b.Limiter(baseConfig()))

	svc, err := b.AuthService(baseConfig(), nil)
	require.NoError(t, err)
	assert.False(t, svc.OTPEnabled())

	res, err := svc.Login(context.Background(), "admin", "12345")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
}

func TestOpenRedisBackends(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := baseConfig()
	cfg.RedisAddr = mr.Addr()
	cfg.QueueBackend = "redis"
	cfg.ChallengeStore = "redis"
	cfg.Twilio = config.Twilio{AccountSID: "AC", AuthToken: "tok", VerifySID: "VA", AdminPhone: "+1", BaseURL: "http://127.0.0.1:1"}

	b, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer b.Close()

	assert.IsType(t, &queue.RedisQueue{}, b.Queue)
	assert.True(t, b.Health["redis"](context.Background()))
	assert.IsType(t, &httpmiddleware.RedisWindow{}, b.Limiter(cfg))

	cs, err := b.ChallengeStore(cfg)
	require.NoError(t, err)
	assert.IsType(t, &auth.RedisChallengeStore{}, cs)

	svc, err := b.AuthService(cfg, nil)
	require.NoError(t, err)
	assert.True(t, svc.OTPEnabled())
}

func TestOpenRejectsUnknownBackends(t *testing.T) {
	cfg := baseConfig()
	cfg.StoreBackend = "sqlite"
	_, err := Open(context.Background(), cfg, nil)
	assert.Error(t, err)

	cfg = baseConfig()
	cfg.QueueBackend = "nats"
	_, err = Open(context.Background(), cfg, nil)
	assert.Error(t, err)

	cfg = baseConfig()
	cfg.QueueBackend = "kafka"
	_, err = Open(context.Background(), cfg, nil)
	assert.Error(t, err)

	b, err := Open(context.Background(), baseConfig(), nil)
	require.NoError(t, err)
	cfg = baseConfig()
	cfg.ChallengeStore = "etcd"
	_, err = b.ChallengeStore(cfg)
	assert.Error(t, err)
}

func TestLimiterDisabled(t *testing.T) {
	b, err := Open(context.Background(), baseConfig(), nil)
	require.NoError(t, err)
	cfg := baseConfig()
	cfg.RateLimitPerMin = 0
	assert.Nil(t, b.Limiter(cfg))
}

func TestOpenQueueSkipsStore(t *testing.T) {
	cfg := baseConfig()
	cfg.StoreBackend = "postgres"
	cfg.DatabaseURL = ""

	b, err := OpenQueue(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer b.Close()
	assert.Nil(t, b.Repo)
	assert.NotNil(t, b.Queue)
}

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PendingChallenge is the state held between the password step and the
// one-time-code step of a login.
type PendingChallenge struct {
	Username    string    `json:"username"`
	Destination string    `json:"destination"`
	CreatedAt   time.Time `json:"created_at"`
}

// ChallengeStore keeps pending challenges keyed by challenge id. Take must
// remove and return the entry in one step so a challenge is consumed once.
type ChallengeStore interface {
	Put(ctx context.Context, id string, pc PendingChallenge, ttl time.Duration) error
	Take(ctx context.Context, id string) (PendingChallenge, bool, error)
}

// Notifier delivers and checks one-time codes over an out-of-band channel.
type Notifier interface {
	SendCode(ctx context.Context, destination string) error
	CheckCode(ctx context.Context, destination, code string) (bool, error)
}

// Coordinator manages pending challenges and delegates code delivery and
// checking to the Notifier.
type Coordinator struct {
	codec       *Codec
	store       ChallengeStore
	notifier    Notifier
	destination string
	ttl         time.Duration
	timeout     time.Duration
	logger      *zap.Logger
}

// CoordinatorConfig configures a Coordinator.
type CoordinatorConfig struct {
	Destination string
	TTL         time.Duration
	Timeout     time.Duration
}

// NewCoordinator builds a coordinator.
func NewCoordinator(codec *Codec, store ChallengeStore, notifier Notifier, cfg CoordinatorConfig, logger *zap.Logger) *Coordinator {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		codec:       codec,
		store:       store,
		notifier:    notifier,
		destination: cfg.Destination,
		ttl:         cfg.TTL,
		timeout:     cfg.Timeout,
		logger:      logger,
	}
}

// Begin sends a code to the admin destination and records a pending
// challenge under a freshly issued short-lived token.
func (c *Coordinator) Begin(ctx context.Context, username string) (string, error) {
	sendCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.notifier.SendCode(sendCtx, c.destination); err != nil {
		c.logger.Error("otp sending failed", zap.String("user", username), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrChallengeDeliveryFailed, err)
	}

	id, err := c.codec.Issue(Claims{Subject: username, PendingOTP: true}, c.ttl)
	if err != nil {
		return "", err
	}
	pc := PendingChallenge{Username: username, Destination: c.destination, CreatedAt: time.Now().UTC()}
	if err := c.store.Put(ctx, id, pc, c.ttl); err != nil {
		c.logger.Error("store pending challenge failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrChallengeDeliveryFailed, err)
	}
	return id, nil
}

// Resolve consumes the challenge and checks the code. The challenge is gone
// after this call whatever the outcome, so a wrong code forces a new login.
func (c *Coordinator) Resolve(ctx context.Context, id, code string) (string, error) {
	claims, err := c.codec.Parse(id)
	if err != nil || !claims.PendingOTP {
		return "", ErrInvalidChallenge
	}
	pc, ok, err := c.store.Take(ctx, id)
	if err != nil {
		return "", fmt.Errorf("take challenge: %w", err)
	}
	if !ok || pc.Username != claims.Subject {
		return "", ErrInvalidChallenge
	}

	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	approved, err := c.notifier.CheckCode(checkCtx, pc.Destination, code)
	if err != nil {
		c.logger.Error("otp verification failed", zap.String("user", pc.Username), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrChallengeDeliveryFailed, err)
	}
	if !approved {
		return "", ErrInvalidCode
	}
	return pc.Username, nil
}

// MemoryChallengeStore keeps challenges in process memory. State does not
// survive a restart and is not shared between instances.
type MemoryChallengeStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	pc      PendingChallenge
	expires time.Time
}

// NewMemoryChallengeStore creates an empty in-memory store.
func NewMemoryChallengeStore() *MemoryChallengeStore {
	return &MemoryChallengeStore{entries: make(map[string]memoryEntry), now: time.Now}
}

// Put records a challenge and prunes expired ones.
func (s *MemoryChallengeStore) Put(_ context.Context, id string, pc PendingChallenge, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, k)
		}
	}
	s.entries[id] = memoryEntry{pc: pc, expires: now.Add(ttl)}
	return nil
}

// Take removes and returns a live challenge.
func (s *MemoryChallengeStore) Take(_ context.Context, id string) (PendingChallenge, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return PendingChallenge{}, false, nil
	}
	delete(s.entries, id)
	if !s.now().Before(e.expires) {
		return PendingChallenge{}, false, nil
	}
	return e.pc, true, nil
}

// Len reports the number of stored challenges, expired or not.
func (s *MemoryChallengeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// RedisChallengeStore keeps challenges in Redis with a native TTL so any
// replica can resolve a challenge begun on another.
type RedisChallengeStore struct {
	client *redis.Client
	prefix string
}

// NewRedisChallengeStore builds a store using keys under prefix.
func NewRedisChallengeStore(client *redis.Client, prefix string) *RedisChallengeStore {
	if prefix == "" {
		prefix = "resultportal:otp:"
	}
	return &RedisChallengeStore{client: client, prefix: prefix}
}

// Put stores the challenge with SET EX.
func (s *RedisChallengeStore) Put(ctx context.Context, id string, pc PendingChallenge, ttl time.Duration) error {
	body, err := json.Marshal(pc)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+id, body, ttl).Err()
}

// Take uses GETDEL so two concurrent resolves cannot both see the challenge.
func (s *RedisChallengeStore) Take(ctx context.Context, id string) (PendingChallenge, bool, error) {
	raw, err := s.client.GetDel(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return PendingChallenge{}, false, nil
		}
		return PendingChallenge{}, false, err
	}
	var pc PendingChallenge
	if err := json.Unmarshal(raw, &pc); err != nil {
		return PendingChallenge{}, false, fmt.Errorf("decode challenge: %w", err)
	}
	return pc, true, nil
}

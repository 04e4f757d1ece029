package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/dockprep/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dockprep/pkg/errors"
)

// ErrLockNotHeld is returned when releasing a lock this owner does not hold.
var ErrLockNotHeld = errors.New(errors.ErrCodeValidation, "lock not held by this owner")

// RunLock serializes docking runs per input combination: only one holder per
// run key across all pipeline instances.  Holding is token-based so a
// crashed holder's lock expires instead of wedging the combination forever.
type RunLock interface {
	// TryAcquire attempts the lock without waiting.  A refusal means an
	// identical run is in flight and surfaces as a run conflict.
	TryAcquire(ctx context.Context) error

	// Release frees the lock; only the acquiring holder can release it.
	Release(ctx context.Context) error

	// Extend pushes the expiry out, used by the watchdog during long runs.
	Extend(ctx context.Context, ttl time.Duration) (bool, error)
}

// LockFactory mints run locks bound to a shared client.
type LockFactory interface {
	ForRun(runKey string, opts ...LockOption) RunLock
}

type LockOption func(*lockConfig)

func WithLockTTL(ttl time.Duration) LockOption {
	return func(c *lockConfig) { c.ttl = ttl }
}

func WithWatchdog(enabled bool) LockOption {
	return func(c *lockConfig) { c.watchdogEnabled = enabled }
}

func WithWatchdogInterval(interval time.Duration) LockOption {
	return func(c *lockConfig) { c.watchdogInterval = interval }
}

type lockConfig struct {
	ttl              time.Duration
	watchdogEnabled  bool
	watchdogInterval time.Duration
}

type lockFactory struct {
	client *Client
	log    logging.Logger
}

func NewLockFactory(client *Client, log logging.Logger) LockFactory {
	return &lockFactory{client: client, log: log}
}

func (f *lockFactory) ForRun(runKey string, opts ...LockOption) RunLock {
	cfg := lockConfig{
		ttl:              10 * time.Minute,
		watchdogInterval: 3 * time.Minute,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.watchdogEnabled && cfg.watchdogInterval == 0 {
		cfg.watchdogInterval = cfg.ttl / 3
	}
	return &runLock{
		client: f.client,
		key:    "dockprep:runlock:" + runKey,
		token:  uuid.New().String(),
		config: cfg,
		logger: f.log,
	}
}

type runLock struct {
	client *Client
	key    string
	token  string
	config lockConfig
	logger logging.Logger

	watchdogCancel context.CancelFunc
	watchdogDone   chan struct{}
}

var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

func (l *runLock) TryAcquire(ctx context.Context) error {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.config.ttl).Result()
	if err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "failed to acquire run lock")
	}
	if !ok {
		return errors.New(errors.CodeRunConflict,
			"an identical docking run is already in flight").WithDetail(l.key)
	}
	if l.config.watchdogEnabled {
		l.startWatchdog()
	}
	return nil
}

func (l *runLock) Release(ctx context.Context) error {
	l.stopWatchdog()
	res, err := unlockScript.Run(ctx, l.client.GetUnderlyingClient(), []string{l.key}, l.token).Result()
	if err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "failed to release run lock")
	}
	if res.(int64) == 0 {
		return ErrLockNotHeld
	}
	return nil
}

func (l *runLock) Extend(ctx context.Context, ttl time.Duration) (bool, error) {
	res, err := extendScript.Run(ctx, l.client.GetUnderlyingClient(),
		[]string{l.key}, l.token, ttl.Milliseconds()).Result()
	if err != nil {
		return false, err
	}
	return res.(int64) == 1, nil
}

func (l *runLock) startWatchdog() {
	ctx, cancel := context.WithCancel(context.Background())
	l.watchdogCancel = cancel
	l.watchdogDone = make(chan struct{})

	go func() {
		defer close(l.watchdogDone)
		ticker := time.NewTicker(l.config.watchdogInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ok, err := l.Extend(ctx, l.config.ttl)
				if err != nil {
					l.logger.Error("run lock watchdog failed", logging.Err(err))
					return
				}
				if !ok {
					l.logger.Warn("run lock lost during docking",
						logging.String("key", l.key))
					return
				}
			}
		}
	}()
}

func (l *runLock) stopWatchdog() {
	if l.watchdogCancel != nil {
		l.watchdogCancel()
		<-l.watchdogDone
		l.watchdogCancel = nil
	}
}

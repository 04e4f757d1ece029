package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/dockprep/internal/domain/docking"
	"github.com/turtacn/dockprep/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dockprep/pkg/errors"
)

// ErrCacheMiss is returned when the run key has no cached result.
var ErrCacheMiss = errors.New(errors.ErrCodeNotFound, "pose cache miss")

// PoseCache keeps finished docking results keyed by the run's input hash, so
// re-submitting an identical accession+ligand+box combination skips the
// engine entirely.
type PoseCache interface {
	Get(ctx context.Context, runKey string) (*docking.Result, error)
	Put(ctx context.Context, runKey string, result *docking.Result) error
	Invalidate(ctx context.Context, runKey string) error

	// GetOrCompute returns the cached result or runs compute once per key,
	// collapsing concurrent identical requests onto a single computation.
	GetOrCompute(ctx context.Context, runKey string,
		compute func(ctx context.Context) (*docking.Result, error)) (*docking.Result, error)
}

type poseCacheConfig struct {
	prefix string
	ttl    time.Duration
}

type PoseCacheOption func(*poseCacheConfig)

func WithPoseTTL(ttl time.Duration) PoseCacheOption {
	return func(c *poseCacheConfig) { c.ttl = ttl }
}

func WithPosePrefix(prefix string) PoseCacheOption {
	return func(c *poseCacheConfig) { c.prefix = prefix }
}

type poseCache struct {
	client *Client
	logger logging.Logger
	config poseCacheConfig
	group  singleflight.Group
}

func NewPoseCache(client *Client, log logging.Logger, opts ...PoseCacheOption) PoseCache {
	cfg := poseCacheConfig{
		prefix: "dockprep:poses:",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &poseCache{client: client, logger: log, config: cfg}
}

func (c *poseCache) key(runKey string) string {
	return c.config.prefix + runKey
}

// jitterTTL spreads expiries +/- 10% so identical batches do not expire as
// one thundering herd.
func (c *poseCache) jitterTTL() time.Duration {
	jitter := float64(c.config.ttl) * 0.1 * (rand.Float64()*2 - 1)
	return c.config.ttl + time.Duration(jitter)
}

func (c *poseCache) Get(ctx context.Context, runKey string) (*docking.Result, error) {
	data, err := c.client.Get(ctx, c.key(runKey)).Bytes()
	if err == goredis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCacheError, "pose cache read failed")
	}
	var result docking.Result
	if err := json.Unmarshal(data, &result); err != nil {
		// A corrupt entry behaves like a miss so the pipeline recomputes.
		c.logger.Warn("corrupt pose cache entry dropped",
			logging.String("run_key", runKey), logging.Err(err))
		c.client.Del(ctx, c.key(runKey))
		return nil, ErrCacheMiss
	}
	return &result, nil
}

func (c *poseCache) Put(ctx context.Context, runKey string, result *docking.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to serialize docking result")
	}
	if err := c.client.Set(ctx, c.key(runKey), data, c.jitterTTL()).Err(); err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "pose cache write failed")
	}
	return nil
}

func (c *poseCache) Invalidate(ctx context.Context, runKey string) error {
	if err := c.client.Del(ctx, c.key(runKey)).Err(); err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "pose cache delete failed")
	}
	return nil
}

func (c *poseCache) GetOrCompute(ctx context.Context, runKey string,
	compute func(ctx context.Context) (*docking.Result, error)) (*docking.Result, error) {

	if cached, err := c.Get(ctx, runKey); err == nil {
		return cached, nil
	}

	v, err, _ := c.group.Do(runKey, func() (interface{}, error) {
		// Check again inside the flight: a concurrent caller may have
		// populated the entry while this one waited.
		if cached, err := c.Get(ctx, runKey); err == nil {
			return cached, nil
		}
		result, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if putErr := c.Put(ctx, runKey, result); putErr != nil {
			c.logger.Warn("pose cache population failed", logging.Err(putErr))
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*docking.Result), nil
}

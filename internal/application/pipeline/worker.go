package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/dockprep/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/dockprep/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dockprep/pkg/errors"
)

// PoolConfig bounds the docking worker pool.
type PoolConfig struct {
	// Concurrency is the maximum number of engine invocations in flight.
	Concurrency int

	// QueueDepth is the number of requests allowed to wait for a free slot
	// beyond the ones running; further requests are refused outright.
	// Zero means unbounded waiting.
	QueueDepth int

	// DrainGrace bounds how long Shutdown waits for in-flight runs.
	DrainGrace time.Duration
}

// Pool bounds concurrent docking runs.  Engine invocations are expensive
// multi-minute subprocesses; the pool keeps the host from oversubscribing
// regardless of how many requests arrive.
type Pool struct {
	svc    *DockService
	sem    chan struct{}
	queue  chan struct{}
	grace  time.Duration
	wg     sync.WaitGroup
	logger logging.Logger
}

// NewPool wraps the dock service in a bounded pool.
func NewPool(svc *DockService, cfg PoolConfig, log logging.Logger) (*Pool, error) {
	if svc == nil {
		return nil, errors.InvalidParam("pool requires a dock service")
	}
	if cfg.Concurrency < 1 {
		return nil, errors.InvalidParam("pool concurrency must be >= 1")
	}
	if cfg.QueueDepth < 0 {
		return nil, errors.InvalidParam("pool queue depth must be >= 0")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	p := &Pool{
		svc:    svc,
		sem:    make(chan struct{}, cfg.Concurrency),
		grace:  cfg.DrainGrace,
		logger: log,
	}
	if cfg.QueueDepth > 0 {
		p.queue = make(chan struct{}, cfg.Concurrency+cfg.QueueDepth)
	}
	return p, nil
}

// Do runs one docking request, blocking while the pool is saturated.  When
// the wait queue is full as well, the request is refused immediately so
// callers can back off instead of piling up.
func (p *Pool) Do(ctx context.Context, input DockInput) (*DockOutput, error) {
	if p.queue != nil {
		select {
		case p.queue <- struct{}{}:
		default:
			return nil, errors.New(errors.CodeConflict, "docking queue is full")
		}
		defer func() { <-p.queue }()
	}

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "docking request cancelled while queued")
	}
	defer func() { <-p.sem }()

	p.wg.Add(1)
	defer p.wg.Done()
	return p.svc.Dock(ctx, input)
}

// Handler adapts the pool to the kafka dock-request feed.  Lock conflicts
// mean another worker already holds the identical run; those requests are
// dropped rather than retried.
func (p *Pool) Handler() kafka.DockRequestHandler {
	return func(ctx context.Context, payload kafka.DockRequestedPayload) error {
		input := DockInput{
			Accession: payload.Accession,
			SMILES:    payload.LigandSMILES,
			Box: BoxInput{
				Center: &[3]float64{payload.CenterX, payload.CenterY, payload.CenterZ},
				Size:   &[3]float64{payload.SizeX, payload.SizeY, payload.SizeZ},
			},
		}
		_, err := p.Do(ctx, input)
		if errors.IsCode(err, errors.CodeRunConflict) {
			p.logger.Info("dock request already running elsewhere, skipping",
				logging.String("accession", payload.Accession))
			return nil
		}
		return err
	}
}

// Shutdown waits for in-flight runs to finish, up to the drain grace.
func (p *Pool) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	if p.grace > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.grace)
		defer cancel()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "worker pool drain timed out")
	}
}

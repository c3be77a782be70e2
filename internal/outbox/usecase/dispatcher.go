package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	apperrors "github.com/allisson/orders/internal/errors"
	"github.com/allisson/orders/internal/lock"
	"github.com/allisson/orders/internal/messaging"
	"github.com/allisson/orders/internal/metrics"
	"github.com/allisson/orders/internal/outbox/domain"
)

const (
	DefaultBatchSize          = 50
	DefaultMaxRetries         = 3
	DefaultProcessingInterval = 5 * time.Second
	DefaultReconcileInterval  = 60 * time.Second
	DefaultLockKey            = "orders:outbox:dispatcher"
	DefaultLockTTL            = 30 * time.Second

	// Reasons attached to the permanent failure signal.
	AbandonReasonMaxRetries       = "max_retries"
	AbandonReasonUnknownEventType = "unknown_event_type"
)

// ErrInvalidConfig indicates a dispatcher configuration that cannot run.
var ErrInvalidConfig = apperrors.Wrap(apperrors.ErrInvalidInput, "invalid outbox dispatcher configuration")

// Config holds outbox dispatcher configuration
type Config struct {
	BatchSize          int
	MaxRetries         int
	ProcessingInterval time.Duration
	// ReconcileInterval of zero disables the reconcile loop. ReconcileFailed can still be called directly.
	ReconcileInterval time.Duration
	// PublishTimeout bounds a single Publish call. Zero leaves it to the caller's context.
	PublishTimeout time.Duration
	LockKey        string
	// LockTTL is the lease expiry of the locker. The lease is extended before every publish, so it
	// has to outlast PublishTimeout.
	LockTTL time.Duration
}

// DefaultConfig returns the dispatcher defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:          DefaultBatchSize,
		MaxRetries:         DefaultMaxRetries,
		ProcessingInterval: DefaultProcessingInterval,
		ReconcileInterval:  DefaultReconcileInterval,
		LockKey:            DefaultLockKey,
		LockTTL:            DefaultLockTTL,
	}
}

// Validate rejects configurations the dispatcher cannot run with.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return apperrors.Wrapf(ErrInvalidConfig, "batch size must be positive, got %d", c.BatchSize)
	}
	if c.MaxRetries < 0 {
		return apperrors.Wrapf(ErrInvalidConfig, "max retries cannot be negative, got %d", c.MaxRetries)
	}
	if c.ProcessingInterval <= 0 {
		return apperrors.Wrapf(ErrInvalidConfig, "processing interval must be positive, got %s", c.ProcessingInterval)
	}
	if c.ReconcileInterval < 0 {
		return apperrors.Wrapf(ErrInvalidConfig, "reconcile interval cannot be negative, got %s", c.ReconcileInterval)
	}
	if c.LockTTL < 0 {
		return apperrors.Wrapf(ErrInvalidConfig, "lock ttl cannot be negative, got %s", c.LockTTL)
	}
	if c.LockTTL > 0 && c.PublishTimeout > 0 && c.LockTTL <= c.PublishTimeout {
		return apperrors.Wrapf(ErrInvalidConfig, "lock ttl %s must be longer than the publish timeout %s",
			c.LockTTL, c.PublishTimeout)
	}
	return nil
}

// PermanentFailureHook is called once for every event the dispatcher gives up on.
type PermanentFailureHook func(ctx context.Context, event *domain.OutboxEvent, reason string)

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithLocker makes every tick hold the lease lock named by Config.LockKey.
func WithLocker(locker lock.Locker) Option {
	return func(d *Dispatcher) {
		if locker != nil {
			d.locker = locker
		}
	}
}

// WithTracer sets the tracer used for tick and event spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(d *Dispatcher) {
		if tracer != nil {
			d.tracer = tracer
		}
	}
}

// WithMetrics sets the outbox metrics recorder.
func WithMetrics(m metrics.OutboxMetrics) Option {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// WithPermanentFailureHook registers a callback for abandoned events.
func WithPermanentFailureHook(hook PermanentFailureHook) Option {
	return func(d *Dispatcher) { d.onPermanentFailure = hook }
}

// DispatchResult captures one dispatch tick.
type DispatchResult struct {
	Fetched   int
	Published int
	Failed    int
	Abandoned int
	// StateUpdateFailed counts events whose new status could not be saved. A published event in this
	// state is published again on a later tick.
	StateUpdateFailed int
	// Skipped is set when another tick or another instance was already draining the ledger.
	Skipped bool
	// Halted is set when the broker became unavailable and the rest of the batch was left PENDING.
	Halted bool
	// LeaseLost is set when the lease lock could not be extended and the rest of the batch was left
	// PENDING for the instance that holds it now.
	LeaseLost bool
}

// Dispatcher publishes PENDING outbox events and requeues FAILED ones under the retry budget.
//
// Ticks are serialized: a tick that fires while another is in flight is skipped. Stop never cancels
// a tick mid-batch, it waits for it.
type Dispatcher struct {
	cfg                Config
	repo               OutboxEventRepository
	publisher          messaging.Publisher
	locker             lock.Locker
	tracer             trace.Tracer
	metrics            metrics.OutboxMetrics
	onPermanentFailure PermanentFailureHook
	logger             *slog.Logger

	dispatching atomic.Bool
	reconciling atomic.Bool

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. Without options it runs unlocked, untraced and without metrics.
func NewDispatcher(
	cfg Config,
	repo OutboxEventRepository,
	publisher messaging.Publisher,
	logger *slog.Logger,
	opts ...Option,
) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.LockKey == "" {
		cfg.LockKey = DefaultLockKey
	}

	d := &Dispatcher{
		cfg:       cfg,
		repo:      repo,
		publisher: publisher,
		locker:    lock.NoopLocker{},
		tracer:    noop.NewTracerProvider().Tracer("orders/outbox"),
		metrics:   metrics.NewNoOpOutboxMetrics(),
		logger:    logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

// Start connects the publisher and starts the dispatch and reconcile loops.
// Calling Start on a running dispatcher does nothing.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil
	}

	if err := d.publisher.Connect(ctx); err != nil {
		return apperrors.Wrap(err, "failed to connect publisher")
	}

	d.stop = make(chan struct{})
	d.running = true

	// Ticks outlive ctx so that a cancelled caller does not abort a batch halfway.
	loopCtx := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go d.loop(loopCtx, d.stop, d.cfg.ProcessingInterval, d.dispatchTick)

	if d.cfg.ReconcileInterval > 0 {
		d.wg.Add(1)
		go d.loop(loopCtx, d.stop, d.cfg.ReconcileInterval, d.reconcileTick)
	}

	d.logger.Info("outbox dispatcher started",
		slog.Int("batch_size", d.cfg.BatchSize),
		slog.Int("max_retries", d.cfg.MaxRetries),
		slog.Duration("processing_interval", d.cfg.ProcessingInterval),
		slog.Duration("reconcile_interval", d.cfg.ReconcileInterval),
	)
	return nil
}

// Stop stops both loops, waits for an in-flight tick and disconnects the publisher.
// The wait is bounded by ctx; the publisher is disconnected either way.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	close(d.stop)
	d.running = false
	d.mu.Unlock()

	d.logger.Info("stopping outbox dispatcher")

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	var waitErr error
	select {
	case <-done:
	case <-ctx.Done():
		waitErr = fmt.Errorf("outbox dispatcher shutdown: %w", ctx.Err())
		d.logger.Warn("outbox dispatcher stopped before the in-flight tick finished")
	}

	if err := d.publisher.Disconnect(context.WithoutCancel(ctx)); err != nil {
		return apperrors.Join(waitErr, apperrors.Wrap(err, "failed to disconnect publisher"))
	}

	d.logger.Info("outbox dispatcher stopped")
	return waitErr
}

// Run starts the dispatcher and blocks until ctx is done, then stops it within shutdownTimeout.
func (d *Dispatcher) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	if err := d.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return d.Stop(stopCtx)
}

// IsRunning reports whether the loops are running.
func (d *Dispatcher) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *Dispatcher) loop(ctx context.Context, stop <-chan struct{}, interval time.Duration, tick func(context.Context)) {
	defer d.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			tick(ctx)
		}
	}
}

func (d *Dispatcher) dispatchTick(ctx context.Context) {
	result, err := d.DispatchPending(ctx)
	if err != nil {
		d.logger.Error("failed to dispatch outbox events", slog.Any("error", err))
		return
	}
	if result.Fetched > 0 {
		d.logger.Info("outbox events dispatched",
			slog.Int("fetched", result.Fetched),
			slog.Int("published", result.Published),
			slog.Int("failed", result.Failed),
			slog.Int("abandoned", result.Abandoned),
		)
	}
}

func (d *Dispatcher) reconcileTick(ctx context.Context) {
	count, err := d.ReconcileFailed(ctx)
	if err != nil {
		d.logger.Error("failed to reconcile outbox events", slog.Any("error", err))
		return
	}
	if count > 0 {
		d.logger.Info("failed outbox events requeued", slog.Int("count", count))
	}
}

// DispatchPending runs one tick: it fetches up to BatchSize PENDING events and publishes them one at a
// time, oldest first, saving each event's new status before moving to the next.
//
// A tick that overlaps another tick, or that cannot take the lease lock, returns a Skipped result.
// The lease is extended before every publish and the tick stops with LeaseLost once it cannot be.
// When the broker is unavailable the remaining events stay PENDING and the error is returned together
// with the partial result.
func (d *Dispatcher) DispatchPending(ctx context.Context) (DispatchResult, error) {
	if !d.dispatching.CompareAndSwap(false, true) {
		d.logger.Debug("outbox dispatch already in progress, skipping tick")
		return DispatchResult{Skipped: true}, nil
	}
	defer d.dispatching.Store(false)

	ctx, span := d.tracer.Start(ctx, "outbox.dispatch")
	defer span.End()

	handle, err := d.acquire(ctx)
	if err != nil {
		spanError(span, err)
		return DispatchResult{}, err
	}
	if handle == nil {
		span.SetAttributes(attribute.Bool("outbox.dispatch.skipped", true))
		return DispatchResult{Skipped: true}, nil
	}
	defer d.release(ctx, handle)

	events, err := d.repo.FindPending(ctx, nil, d.cfg.BatchSize)
	if err != nil {
		spanError(span, err)
		return DispatchResult{}, apperrors.Wrap(err, "failed to fetch pending outbox events")
	}

	result := DispatchResult{Fetched: len(events)}
	d.metrics.RecordBacklog(ctx, len(events))

	for _, event := range events {
		if !d.extend(ctx, handle) {
			result.LeaseLost = true
			span.SetAttributes(dispatchAttributes(result)...)
			return result, nil
		}
		if err := d.dispatchEvent(ctx, event, &result); err != nil {
			result.Halted = true
			span.SetAttributes(dispatchAttributes(result)...)
			spanError(span, err)
			return result, err
		}
	}

	span.SetAttributes(dispatchAttributes(result)...)
	return result, nil
}

// dispatchEvent handles one event. It only returns an error when the rest of the batch must not run.
func (d *Dispatcher) dispatchEvent(ctx context.Context, event *domain.OutboxEvent, result *DispatchResult) error {
	ctx, span := d.tracer.Start(ctx, "outbox.publish", trace.WithAttributes(
		attribute.String("outbox.event.id", event.ID.String()),
		attribute.String("outbox.event.type", event.EventType.String()),
		attribute.String("outbox.aggregate.id", event.AggregateID),
		attribute.Int("outbox.event.retry_count", event.RetryCount),
	))
	defer span.End()

	logger := d.logger.With(
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", event.EventType.String()),
		slog.String("aggregate_id", event.AggregateID),
	)

	topic, err := event.EventType.Topic()
	if err != nil {
		spanError(span, err)
		d.abandon(ctx, logger, event, fmt.Sprintf("Unknown event type: %s", event.EventType),
			AbandonReasonUnknownEventType, result)
		return nil
	}
	span.SetAttributes(attribute.String("messaging.destination.name", topic))

	start := time.Now()
	err = d.publish(ctx, topic, event.ToMessage())
	if err != nil {
		spanError(span, err)

		if apperrors.Is(err, messaging.ErrBrokerUnavailable) {
			logger.Warn("broker unavailable, leaving remaining events pending", slog.Any("error", err))
			return apperrors.Wrap(err, "outbox dispatch halted")
		}

		if event.CanRetry(d.cfg.MaxRetries) {
			d.fail(ctx, logger, event, fmt.Sprintf("Processing failed: %v", err), result)
			return nil
		}

		d.abandon(ctx, logger, event, fmt.Sprintf("Max retries exceeded: %v", err),
			AbandonReasonMaxRetries, result)
		return nil
	}

	d.metrics.RecordPublished(ctx, event.EventType.String(), time.Since(start))
	result.Published++

	if err := event.MarkAsProcessed(); err != nil {
		if apperrors.Is(err, domain.ErrAlreadyProcessed) {
			logger.Debug("outbox event already processed")
			return nil
		}
		spanError(span, err)
		logger.Error("failed to mark outbox event as processed", slog.Any("error", err))
		result.StateUpdateFailed++
		return nil
	}

	if err := d.repo.Update(ctx, nil, event); err != nil {
		spanError(span, err)
		logger.Error("outbox event published but its status could not be saved", slog.Any("error", err))
		result.StateUpdateFailed++
		return nil
	}

	logger.Debug("outbox event published", slog.String("topic", topic))
	return nil
}

func (d *Dispatcher) publish(ctx context.Context, topic string, msg messaging.Message) error {
	if d.cfg.PublishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.PublishTimeout)
		defer cancel()
	}
	return d.publisher.Publish(ctx, topic, msg)
}

// fail marks a retryable failure. The event becomes a candidate for ReconcileFailed.
func (d *Dispatcher) fail(
	ctx context.Context,
	logger *slog.Logger,
	event *domain.OutboxEvent,
	reason string,
	result *DispatchResult,
) {
	result.Failed++
	d.metrics.RecordFailed(ctx, event.EventType.String())

	if !d.saveFailure(ctx, logger, event, reason) {
		result.StateUpdateFailed++
		return
	}

	logger.Warn("outbox event failed, will be retried",
		slog.Int("retry_count", event.RetryCount),
		slog.String("reason", reason),
	)
}

// abandon marks a failure that is never retried automatically and emits the permanent failure signal.
func (d *Dispatcher) abandon(
	ctx context.Context,
	logger *slog.Logger,
	event *domain.OutboxEvent,
	reason string,
	signal string,
	result *DispatchResult,
) {
	result.Abandoned++
	d.metrics.RecordAbandoned(ctx, event.EventType.String(), signal)

	if !d.saveFailure(ctx, logger, event, reason) {
		result.StateUpdateFailed++
	}

	logger.Error("outbox event permanently failed",
		slog.Int("retry_count", event.RetryCount),
		slog.String("reason", reason),
		slog.String("signal", signal),
	)

	if d.onPermanentFailure != nil {
		d.onPermanentFailure(ctx, event, signal)
	}
}

func (d *Dispatcher) saveFailure(
	ctx context.Context,
	logger *slog.Logger,
	event *domain.OutboxEvent,
	reason string,
) bool {
	if err := event.MarkAsFailed(reason); err != nil {
		logger.Error("failed to mark outbox event as failed", slog.Any("error", err))
		return false
	}
	if err := d.repo.Update(ctx, nil, event); err != nil {
		logger.Error("failed to save outbox event failure", slog.Any("error", err))
		return false
	}
	return true
}

// ReconcileFailed moves up to BatchSize FAILED events back to PENDING. Only events still under the
// retry budget with a known event type are fetched, so abandoned rows never crowd out retryable ones.
// It returns the number of events requeued.
func (d *Dispatcher) ReconcileFailed(ctx context.Context) (int, error) {
	if !d.reconciling.CompareAndSwap(false, true) {
		d.logger.Debug("outbox reconcile already in progress, skipping")
		return 0, nil
	}
	defer d.reconciling.Store(false)

	ctx, span := d.tracer.Start(ctx, "outbox.reconcile")
	defer span.End()

	events, err := d.repo.FindRetryable(ctx, nil, d.cfg.MaxRetries, d.cfg.BatchSize)
	if err != nil {
		spanError(span, err)
		return 0, apperrors.Wrap(err, "failed to fetch failed outbox events")
	}

	requeued := 0
	for _, event := range events {
		if err := event.Retry(); err != nil {
			d.logger.Error("failed to requeue outbox event",
				slog.String("event_id", event.ID.String()),
				slog.Any("error", err),
			)
			continue
		}

		if err := d.repo.Update(ctx, nil, event); err != nil {
			d.logger.Error("failed to save requeued outbox event",
				slog.String("event_id", event.ID.String()),
				slog.Any("error", err),
			)
			continue
		}
		requeued++
	}

	span.SetAttributes(
		attribute.Int("outbox.reconcile.fetched", len(events)),
		attribute.Int("outbox.reconcile.requeued", requeued),
	)
	d.metrics.RecordRequeued(ctx, requeued)
	return requeued, nil
}

// acquire takes the lease lock. A nil handle without an error means another holder has it.
func (d *Dispatcher) acquire(ctx context.Context) (lock.Handle, error) {
	handle, ok, err := d.locker.TryLock(ctx, d.cfg.LockKey)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to acquire outbox dispatcher lock")
	}
	if !ok {
		d.logger.Debug("outbox dispatcher lock held by another instance", slog.String("lock_key", d.cfg.LockKey))
		return nil, nil
	}
	return handle, nil
}

// extend renews the lease before a publish. It reports false when the lease is gone.
func (d *Dispatcher) extend(ctx context.Context, handle lock.Handle) bool {
	ok, err := handle.Extend(ctx)
	if err != nil {
		d.logger.Warn("failed to extend outbox dispatcher lock, leaving remaining events pending",
			slog.Any("error", err))
		return false
	}
	if !ok {
		d.logger.Warn("outbox dispatcher lock lost, leaving remaining events pending",
			slog.String("lock_key", d.cfg.LockKey))
		return false
	}
	return true
}

func (d *Dispatcher) release(ctx context.Context, handle lock.Handle) {
	if err := handle.Unlock(context.WithoutCancel(ctx)); err != nil {
		d.logger.Warn("failed to release outbox dispatcher lock", slog.Any("error", err))
	}
}

func dispatchAttributes(result DispatchResult) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int("outbox.dispatch.fetched", result.Fetched),
		attribute.Int("outbox.dispatch.published", result.Published),
		attribute.Int("outbox.dispatch.failed", result.Failed),
		attribute.Int("outbox.dispatch.abandoned", result.Abandoned),
		attribute.Int("outbox.dispatch.state_update_failed", result.StateUpdateFailed),
		attribute.Bool("outbox.dispatch.lease_lost", result.LeaseLost),
	}
}

func spanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

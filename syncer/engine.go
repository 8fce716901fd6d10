package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jrsteele09/go-pos-client/api"
	interrors "github.com/jrsteele09/go-pos-client/internal/errors"
	"github.com/jrsteele09/go-pos-client/internal/metrics"
	"github.com/jrsteele09/go-pos-client/queue"
	"github.com/jrsteele09/go-pos-client/sales"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName             = "github.com/jrsteele09/go-pos-client/syncer"
	defaultInterval        = 30 * time.Second
	defaultBackoffInitial  = 2 * time.Second
	defaultBackoffMax      = 5 * time.Minute
	defaultBackoffMultiply = 2.0
)

// Queue is the part of queue.Queue the engine drives.
type Queue interface {
	Enqueue(r sales.Record) error
	PeekOrdered() []queue.Entry
	MarkSynced(id, serverID string) error
	MarkFailed(id string, cause error) error
	Retry(id string) error
	Len() int
	Counts() queue.Counts
}

var _ Queue = (*queue.Queue)(nil)

type SalesClient interface {
	Create(ctx context.Context, r sales.Record) (*sales.Confirmation, error)
}

var _ SalesClient = (*sales.API)(nil)

// Result summarises one run. Failures are data; RunOnce never returns an error.
type Result struct {
	Synced    int    `json:"synced"`
	Failed    int    `json:"failed"`
	Remaining int    `json:"remaining"`
	LastError string `json:"lastError,omitempty"`
}

type Status struct {
	Runs       int
	LastRunAt  time.Time
	LastResult Result
	Pending    int
	Failed     int
}

// Engine drains the offline queue in order through the sales API.
type Engine struct {
	queue      Queue
	sales      SalesClient
	interval   time.Duration
	newBackOff func() backoff.BackOff
	tracer     trace.Tracer
	nowFunc    func() time.Time

	runMu   sync.Mutex
	trigger chan struct{}

	statusMu sync.RWMutex
	status   Status
}

type Option func(*Engine)

// WithInterval sets the periodic run interval used while runs succeed.
func WithInterval(interval time.Duration) Option {
	return func(e *Engine) {
		if interval > 0 {
			e.interval = interval
		}
	}
}

// WithBackoff sets the exponential delay between runs after a failed run.
func WithBackoff(initial, maxInterval time.Duration) Option {
	return func(e *Engine) {
		e.newBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = initial
			b.MaxInterval = maxInterval
			b.Multiplier = defaultBackoffMultiply
			return b
		}
	}
}

func WithBackOffFactory(factory func() backoff.BackOff) Option {
	return func(e *Engine) {
		e.newBackOff = factory
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		e.tracer = tp.Tracer(tracerName)
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(e *Engine) {
		e.nowFunc = now
	}
}

func New(q Queue, s SalesClient, options ...Option) (*Engine, error) {
	if q == nil {
		return nil, errors.New("[syncer.New] queue is required")
	}
	if s == nil {
		return nil, errors.New("[syncer.New] sales client is required")
	}
	e := &Engine{
		queue:    q,
		sales:    s,
		interval: defaultInterval,
		tracer:   otel.Tracer(tracerName),
		nowFunc:  time.Now,
		trigger:  make(chan struct{}, 1),
	}
	WithBackoff(defaultBackoffInitial, defaultBackoffMax)(e)
	for _, opt := range options {
		opt(e)
	}
	return e, nil
}

// Record validates and durably queues a sale, then schedules a run. Once this returns nil
// the sale is safe regardless of connectivity.
func (e *Engine) Record(ctx context.Context, r sales.Record) error {
	_, span := e.tracer.Start(ctx, "syncer.Record", trace.WithAttributes(attribute.String("sale.id", r.ID)))
	defer span.End()

	if err := sales.Validate(r); err != nil {
		span.RecordError(err)
		return err
	}
	if err := e.queue.Enqueue(r); err != nil {
		span.RecordError(err)
		return err
	}
	log.Debug().Str("sale_id", r.ID).Msg("sale queued")
	e.Trigger()
	return nil
}

// Trigger asks for a run. Triggers arriving while a run is pending or in progress collapse into one.
func (e *Engine) Trigger() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

func (e *Engine) ConnectivityRestored() {
	log.Info().Msg("connectivity restored, scheduling sync")
	e.Trigger()
}

// Run drives the engine until ctx is done: once at start, then on every trigger and on a timer.
// After a failed run the timer follows an exponential backoff instead of the interval.
func (e *Engine) Run(ctx context.Context) error {
	bo := e.newBackOff()
	timer := time.NewTimer(e.interval)
	defer timer.Stop()

	e.Trigger()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.trigger:
		case <-timer.C:
		}

		res := e.RunOnce(ctx)
		next := e.interval
		if res.Failed > 0 {
			if d := bo.NextBackOff(); d != backoff.Stop {
				next = d
			}
			log.Debug().Dur("retry_in", next).Msg("sync blocked, backing off")
		} else {
			bo.Reset()
		}
		timer.Reset(next)
	}
}

// RunOnce drains the queue in order, stopping at the first entry that is not confirmed.
// Runs never overlap.
func (e *Engine) RunOnce(ctx context.Context) Result {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	started := e.nowFunc()
	ctx, span := e.tracer.Start(ctx, "syncer.RunOnce")
	defer span.End()

	entries := e.queue.PeekOrdered()
	var res Result
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if err := e.submit(ctx, entry); err != nil {
			res.Failed++
			res.LastError = err.Error()
			break
		}
		res.Synced++
	}
	res.Remaining = e.queue.Len()

	result := metrics.ResultDrained
	switch {
	case len(entries) == 0:
		result = metrics.ResultIdle
	case res.Failed > 0:
		result = metrics.ResultBlocked
	}
	metrics.SyncRuns.WithLabelValues(result).Inc()
	metrics.SyncRunDuration.Observe(e.nowFunc().Sub(started).Seconds())
	span.SetAttributes(
		attribute.Int("sync.synced", res.Synced),
		attribute.Int("sync.failed", res.Failed),
		attribute.Int("sync.remaining", res.Remaining),
	)

	if len(entries) > 0 {
		log.Info().Int("synced", res.Synced).Int("failed", res.Failed).Int("remaining", res.Remaining).Msg("sync run finished")
	}

	e.statusMu.Lock()
	e.status.Runs++
	e.status.LastRunAt = started
	e.status.LastResult = res
	e.statusMu.Unlock()
	return res
}

// submit sends one entry and records its outcome. A non-nil error stops the run.
func (e *Engine) submit(ctx context.Context, entry queue.Entry) error {
	id := entry.ID()
	if entry.SyncStatus() == sales.SyncFailed {
		if err := e.queue.Retry(id); err != nil {
			log.Err(err).Str("sale_id", id).Msg("failed to reset entry for retry")
			return err
		}
	}

	conf, err := e.sales.Create(ctx, entry.Sale)
	switch {
	case err == nil:
		metrics.SyncEntries.WithLabelValues(metrics.ResultSynced).Inc()
		return e.markSynced(id, conf.ID)
	case interrors.Is(err, api.ErrConflict):
		// The server already holds this id, so an earlier delivery landed.
		metrics.SyncEntries.WithLabelValues(metrics.ResultDuplicate).Inc()
		log.Info().Str("sale_id", id).Msg("sale already on server, marking synced")
		return e.markSynced(id, sales.ConflictServerID(err))
	}

	metrics.SyncEntries.WithLabelValues(metrics.ResultFailed).Inc()
	logEvent := log.Warn()
	if !interrors.IsAny(err, api.ErrNetwork, api.ErrTimeout, api.ErrServer) {
		// Server rejection: needs attention.
		logEvent = log.Error()
	}
	logEvent.Err(err).Str("sale_id", id).Int("attempt", entry.AttemptCount+1).Msg("sale sync failed")

	if merr := e.queue.MarkFailed(id, err); merr != nil {
		log.Err(merr).Str("sale_id", id).Msg("failed to record sync failure")
	}
	return err
}

func (e *Engine) markSynced(id, serverID string) error {
	if err := e.queue.MarkSynced(id, serverID); err != nil {
		// The server has the sale; the next run resends it and gets a conflict.
		log.Err(err).Str("sale_id", id).Msg("failed to mark sale synced")
		return errors.Wrap(err, "[Engine.markSynced]")
	}
	return nil
}

func (e *Engine) Status() Status {
	e.statusMu.RLock()
	st := e.status
	e.statusMu.RUnlock()

	counts := e.queue.Counts()
	st.Pending = counts.Pending
	st.Failed = counts.Failed
	return st
}

package runtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/statetree/feed"
	configpkg "github.com/drblury/statetree/internal/runtime/config"
	errspkg "github.com/drblury/statetree/internal/runtime/errors"
	"github.com/drblury/statetree/internal/runtime/feedfactory"
	loggingpkg "github.com/drblury/statetree/internal/runtime/logging"
	"github.com/drblury/statetree/internal/runtime/operation"
	"github.com/drblury/statetree/internal/runtime/schema"
	"github.com/drblury/statetree/internal/runtime/serializer"
)

// Dependencies holds the collaborators of a StateTree. Store and Schema are
// required; leave the rest nil for defaults.
type Dependencies struct {
	Store  operation.Store
	Schema schema.Adapter

	Hooks           RequestHooks
	ErrorClassifier ErrorClassifier

	// MetricsRegisterer receives the request collectors when
	// Config.MetricsEnabled is set. Defaults to prometheus.DefaultRegisterer.
	MetricsRegisterer prometheus.Registerer
	TracerProvider    trace.TracerProvider

	// FeedPublisher enables the change feed with a caller-owned publisher.
	// Otherwise a transport is built through FeedFactory when
	// Config.FeedSystem is set, and closed by Close.
	FeedPublisher message.Publisher
	FeedFactory   feedfactory.Factory

	Clock func() time.Time
}

// StateTree mirrors a record store as an immutable snapshot of normalized
// entities plus one record per request.
type StateTree struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	mu       sync.Mutex
	snapshot *Snapshot
	ledger   RequestLedger

	store      operation.Store
	schema     schema.Adapter
	serializer *serializer.Serializer
	notifier   *notifier
	hooks      RequestHooks
	classify   ErrorClassifier
	metrics    *RequestMetrics
	gatherer   prometheus.Gatherer
	tracer     trace.Tracer
	feed       *ChangeFeed
	transport  *feed.Transport
	inflight   inflight
	now        func() time.Time
}

// TryNewStateTree constructs a StateTree. conf and log may be nil.
func TryNewStateTree(ctx context.Context, conf *configpkg.Config, log loggingpkg.ServiceLogger, deps Dependencies) (*StateTree, error) {
	if deps.Store == nil {
		return nil, errspkg.ErrStoreRequired
	}
	if deps.Schema == nil {
		return nil, errspkg.ErrSchemaRequired
	}
	if conf == nil {
		conf = &configpkg.Config{}
	}
	resolved := conf.WithDefaults()
	conf = &resolved
	if err := conf.Validate(); err != nil {
		return nil, errspkg.NewConfigValidationError(err)
	}
	if log == nil {
		log = loggingpkg.NewNopServiceLogger()
	}

	log.Info("Creating state tree", loggingpkg.LogFields{
		"feed_system":     conf.FeedSystem,
		"metrics_enabled": conf.MetricsEnabled,
		"config":          conf,
	})

	t := &StateTree{
		Conf:       conf,
		Logger:     log,
		snapshot:   emptySnapshot(),
		store:      deps.Store,
		schema:     deps.Schema,
		serializer: serializer.New(deps.Schema),
		hooks:      LoggingHooks(log),
		classify:   deps.ErrorClassifier,
		tracer:     newTracer(deps.TracerProvider),
		now:        deps.Clock,
	}
	if t.classify == nil {
		t.classify = DefaultErrorClassifier
	}
	if t.now == nil {
		t.now = time.Now
	}

	if conf.MetricsEnabled {
		t.metrics = NewRequestMetrics(conf.MetricsNamespace, deps.MetricsRegisterer)
		t.gatherer = gathererFor(deps.MetricsRegisterer)
		if err := t.metrics.Register(); err != nil {
			return nil, err
		}
		t.hooks = t.hooks.Merge(MetricsHooks(t.metrics))
	}
	// Caller hooks run last so a panicking one cannot skip logging or metrics.
	t.hooks = t.hooks.Merge(deps.Hooks)

	t.notifier = newNotifier(log, t.metrics)

	if err := t.setupFeed(ctx, deps); err != nil {
		return nil, err
	}

	return t, nil
}

// NewStateTree is TryNewStateTree that panics on error.
func NewStateTree(ctx context.Context, conf *configpkg.Config, log loggingpkg.ServiceLogger, deps Dependencies) *StateTree {
	t, err := TryNewStateTree(ctx, conf, log, deps)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *StateTree) setupFeed(ctx context.Context, deps Dependencies) error {
	publisher := deps.FeedPublisher
	if publisher == nil && t.Conf.FeedEnabled() {
		factory := deps.FeedFactory
		if factory == nil {
			factory = feedfactory.DefaultFactory()
		}
		transport, err := factory.Build(ctx, t.Conf, loggingpkg.NewWatermillAdapter(t.Logger))
		if err != nil {
			return err
		}
		t.transport = &transport
		publisher = transport.Publisher
	}
	if publisher == nil {
		return nil
	}

	changeFeed, err := NewChangeFeed(publisher, t.Conf.FeedTopic, t.Conf.FeedSource, t.Logger)
	if err != nil {
		return errors.Join(err, t.closeTransport())
	}
	t.feed = changeFeed
	t.notifier.tap = changeFeed.observe
	return nil
}

// OnChange registers an observer called with every new snapshot, in commit
// order. Observers must not wait on a Task from inside the callback: tasks
// settle after all observers of their final snapshot have returned.
func (t *StateTree) OnChange(fn ChangeObserver) (unsubscribe func()) {
	return t.notifier.onChange(fn)
}

// OnUnhandledError registers an observer for store errors that could not be
// classified as domain failures.
func (t *StateTree) OnUnhandledError(fn UnhandledErrorObserver) (unsubscribe func()) {
	return t.notifier.onUnhandledError(fn)
}

// Snapshot returns the current snapshot.
func (t *StateTree) Snapshot() *Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot
}

// Metrics returns the request metrics, or nil when metrics are disabled.
func (t *StateTree) Metrics() *RequestMetrics {
	return t.metrics
}

// Feed returns the change feed, or nil when it is disabled.
func (t *StateTree) Feed() *ChangeFeed {
	return t.feed
}

// FeedSubscriber returns the subscriber side of a transport the tree built
// itself, or nil.
func (t *StateTree) FeedSubscriber() message.Subscriber {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.transport == nil {
		return nil
	}
	return t.transport.Subscriber
}

// Drain waits until every dispatched operation has settled or ctx is done.
// Operations dispatched while draining are waited for too.
func (t *StateTree) Drain(ctx context.Context) error {
	for {
		idle := t.inflight.idle()
		if idle == nil {
			return nil
		}
		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close releases a feed transport built by the tree. Injected publishers are
// left to their owner.
func (t *StateTree) Close() error {
	return t.closeTransport()
}

func (t *StateTree) closeTransport() error {
	t.mu.Lock()
	transport := t.transport
	t.transport = nil
	t.mu.Unlock()
	if transport == nil {
		return nil
	}
	return transport.Close()
}

// commit merges delta under the tree lock and queues exactly one emission.
func (t *StateTree) commit(id RequestID, delta Delta, after func()) {
	t.mu.Lock()
	t.snapshot = Merge(t.snapshot, delta)
	t.notifier.enqueue(emission{snapshot: t.snapshot, delta: delta, requestID: id, after: after})
	t.mu.Unlock()
	t.notifier.drain()
}

func (t *StateTree) reportUnhandled(id RequestID, err error, after func()) {
	t.mu.Lock()
	t.notifier.enqueue(emission{snapshot: t.snapshot, err: err, requestID: id, after: after})
	t.mu.Unlock()
	t.notifier.drain()
}

// inflight counts unsettled operations.
type inflight struct {
	mu     sync.Mutex
	n      int
	idleCh chan struct{}
}

func (f *inflight) add() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.n == 0 {
		f.idleCh = make(chan struct{})
	}
	f.n++
}

func (f *inflight) done() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n--
	if f.n == 0 {
		close(f.idleCh)
		f.idleCh = nil
	}
}

// idle returns a channel closed when the current batch settles, or nil when
// nothing is in flight.
func (f *inflight) idle() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.n == 0 {
		return nil
	}
	return f.idleCh
}

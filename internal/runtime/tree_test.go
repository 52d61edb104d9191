package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/statetree/feed"
	"github.com/drblury/statetree/feed/feedtest"
	ce "github.com/drblury/statetree/internal/runtime/cloudevents"
	configpkg "github.com/drblury/statetree/internal/runtime/config"
	errspkg "github.com/drblury/statetree/internal/runtime/errors"
	"github.com/drblury/statetree/internal/runtime/feedfactory"
	"github.com/drblury/statetree/store/memory"
)

func TestTryNewStateTreeRequiresStoreAndSchema(t *testing.T) {
	ctx := context.Background()

	_, err := TryNewStateTree(ctx, nil, nil, Dependencies{Schema: planetSchema()})
	assert.ErrorIs(t, err, errspkg.ErrStoreRequired)

	_, err = TryNewStateTree(ctx, nil, nil, Dependencies{Store: memory.New(planetSchema())})
	assert.ErrorIs(t, err, errspkg.ErrSchemaRequired)
}

func TestTryNewStateTreeRejectsInvalidConfig(t *testing.T) {
	s := planetSchema()
	_, err := TryNewStateTree(context.Background(), &configpkg.Config{
		FeedSystem:       "kafka",
		MetricsNamespace: "not-valid",
	}, nil, Dependencies{Store: memory.New(s), Schema: s})
	require.Error(t, err)

	var validation errspkg.ConfigValidationError
	require.True(t, errors.As(err, &validation))
	assert.Contains(t, err.Error(), "kafka: brokers are required")
	assert.Contains(t, err.Error(), "metrics: invalid namespace")
}

func TestNewStateTreePanicsOnError(t *testing.T) {
	assert.Panics(t, func() {
		NewStateTree(context.Background(), nil, nil, Dependencies{})
	})
}

func TestNewStateTreeAppliesConfigDefaults(t *testing.T) {
	logger := newRecordingLogger()
	s := planetSchema()
	tree, err := TryNewStateTree(context.Background(), nil, logger, Dependencies{Store: memory.New(s), Schema: s})
	require.NoError(t, err)

	assert.Equal(t, configpkg.DefaultFeedTopic, tree.Conf.FeedTopic)
	assert.Equal(t, configpkg.DefaultMetricsNamespace, tree.Conf.MetricsNamespace)
	assert.Nil(t, tree.Metrics())
	assert.Nil(t, tree.Feed())
	assert.Nil(t, tree.FeedSubscriber())
	assert.Empty(t, tree.Snapshot().Requests)

	_, ok := logger.find("Creating state tree")
	assert.True(t, ok)
}

func TestStateTreeUsesInjectedClock(t *testing.T) {
	fixed := time.Date(2024, 2, 29, 10, 0, 0, 0, time.UTC)
	tree := newTestTree(t, Dependencies{Clock: func() time.Time { return fixed }})

	req := wait(t, must(t)(tree.AddRecord(context.Background(), "planet", map[string]any{"id": "earth"})))

	assert.Equal(t, fixed, req.Timestamp)
	assert.Equal(t, fixed, req.CompletedAt)
}

func TestStateTreeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	tree := newTestTree(t, Dependencies{MetricsRegisterer: reg})
	require.Nil(t, tree.Metrics())

	s := planetSchema()
	tree, err := TryNewStateTree(context.Background(), &configpkg.Config{MetricsEnabled: true}, nil, Dependencies{
		Store:             memory.New(s),
		Schema:            s,
		MetricsRegisterer: reg,
	})
	require.NoError(t, err)

	ctx := context.Background()
	wait(t, must(t)(tree.AddRecord(ctx, "planet", map[string]any{"id": "earth"})))
	wait(t, tree.FindRecord(ctx, "planet", "pluto"))

	m := tree.Metrics()
	require.NotNil(t, m)
	assert.Equal(t, uint64(1), m.GetOperationMetrics("addRecord").Succeeded)
	assert.Equal(t, uint64(1), m.GetOperationMetrics("findRecord").Failed)

	snap := m.GetSnapshot()
	assert.Equal(t, uint64(4), snap.Emissions)
	assert.Zero(t, snap.InFlight)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "statetree_requests_total")
	assert.Contains(t, names, "statetree_snapshot_emissions_total")
}

func TestStateTreeDrain(t *testing.T) {
	s := planetSchema()
	gate := &gateStore{Store: memory.New(s), release: make(chan struct{})}
	tree := newTestTree(t, Dependencies{Store: gate, Schema: s})
	ctx := context.Background()

	require.NoError(t, tree.Drain(ctx))

	handles := []Handle{
		must(t)(tree.AddRecord(ctx, "planet", map[string]any{"id": "earth"})),
		must(t)(tree.AddRecord(ctx, "planet", map[string]any{"id": "mars"})),
		tree.FindRecord(ctx, "planet", "earth"),
	}

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tree.Drain(short), context.DeadlineExceeded)

	close(gate.release)
	drainCtx, cancelDrain := context.WithTimeout(ctx, 5*time.Second)
	defer cancelDrain()
	require.NoError(t, tree.Drain(drainCtx))

	for _, h := range handles {
		assert.True(t, h.Task.Settled())
		req, ok := SelectRequest(tree.Snapshot(), h.RequestID)
		require.True(t, ok)
		assert.True(t, req.Completed)
	}
}

func TestStateTreeFeedWithInjectedPublisher(t *testing.T) {
	pub := &feedtest.Publisher{}
	tree := newTestTree(t, Dependencies{FeedPublisher: pub})
	require.NotNil(t, tree.Feed())
	assert.Nil(t, tree.FeedSubscriber())

	req := wait(t, must(t)(tree.AddRecord(context.Background(), "planet", map[string]any{"id": "earth"})))

	msgs := pub.Messages(configpkg.DefaultFeedTopic)
	require.Len(t, msgs, 2)
	first, _ := decodeChange(t, msgs[0].Payload)
	second, data := decodeChange(t, msgs[1].Payload)
	assert.Equal(t, ce.TypeRequestPending, first.Type)
	assert.Equal(t, ce.TypeRequestCompleted, second.Type)
	assert.Equal(t, req.ID, data.Request.ID)
	assert.Equal(t, map[string]int{"planet": 1}, data.EntityCounts)

	require.NoError(t, tree.Close())
	assert.False(t, pub.Closed())
}

func TestStateTreeFeedFromFactory(t *testing.T) {
	pub := &feedtest.Publisher{}
	sub := &feedtest.Subscriber{}
	factory := feedfactory.FactoryFunc(func(_ context.Context, conf *configpkg.Config, _ watermill.LoggerAdapter) (feed.Transport, error) {
		assert.Equal(t, "custom", conf.FeedSystem)
		return feed.Transport{Publisher: pub, Subscriber: sub}, nil
	})

	s := planetSchema()
	tree, err := TryNewStateTree(context.Background(), &configpkg.Config{FeedSystem: "custom", FeedTopic: "planets"}, nil, Dependencies{
		Store:       memory.New(s),
		Schema:      s,
		FeedFactory: factory,
	})
	require.NoError(t, err)
	assert.Equal(t, "planets", tree.Feed().Topic())
	assert.Equal(t, message.Subscriber(sub), tree.FeedSubscriber())

	require.NoError(t, tree.Close())
	assert.True(t, pub.Closed())
	assert.True(t, sub.Closed())
	assert.Nil(t, tree.FeedSubscriber())
}

func TestStateTreeFeedFactoryError(t *testing.T) {
	factory := feedfactory.FactoryFunc(func(context.Context, *configpkg.Config, watermill.LoggerAdapter) (feed.Transport, error) {
		return feed.Transport{}, errors.New("unreachable broker")
	})

	s := planetSchema()
	_, err := TryNewStateTree(context.Background(), &configpkg.Config{FeedSystem: "custom"}, nil, Dependencies{
		Store:       memory.New(s),
		Schema:      s,
		FeedFactory: factory,
	})
	assert.EqualError(t, err, "unreachable broker")
}

func TestStateTreeChannelFeed(t *testing.T) {
	s := planetSchema()
	tree, err := TryNewStateTree(context.Background(), &configpkg.Config{FeedSystem: "channel"}, nil, Dependencies{
		Store:  memory.New(s),
		Schema: s,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tree.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := tree.FeedSubscriber().Subscribe(ctx, configpkg.DefaultFeedTopic)
	require.NoError(t, err)

	wait(t, must(t)(tree.AddRecord(ctx, "planet", map[string]any{"id": "earth"})))

	types := map[string]bool{}
	for len(types) < 2 {
		select {
		case msg := <-messages:
			evt, _ := decodeChange(t, msg.Payload)
			types[evt.Type] = true
			msg.Ack()
		case <-ctx.Done():
			t.Fatalf("timed out waiting for change events, got %v", types)
		}
	}
	assert.True(t, types[ce.TypeRequestPending])
	assert.True(t, types[ce.TypeRequestCompleted])
}

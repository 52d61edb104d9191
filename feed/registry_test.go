package feed_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/statetree/feed"
	"github.com/drblury/statetree/feed/feedtest"
)

func TestRegistryBuildsRegisteredTransport(t *testing.T) {
	reg := feed.NewRegistry()
	pub := &feedtest.Publisher{}
	reg.Register("fake", func(ctx context.Context, cfg feed.Config, logger watermill.LoggerAdapter) (feed.Transport, error) {
		assert.NotNil(t, logger)
		return feed.Transport{Publisher: pub}, nil
	})

	tr, err := reg.Build(context.Background(), &feedtest.Config{System: "fake"}, nil)
	require.NoError(t, err)
	assert.Same(t, pub, tr.Publisher)
	assert.True(t, reg.Has("fake"))
	assert.False(t, reg.Has("kafka"))
}

func TestRegistryUnknownTransport(t *testing.T) {
	reg := feed.NewRegistry()
	reg.Register("b", nil)
	reg.Register("a", nil)

	_, err := reg.Build(context.Background(), &feedtest.Config{System: "missing"}, watermill.NopLogger{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown feed transport: "missing"`)
	assert.Equal(t, []string{"a", "b"}, reg.Names())
}

func TestRegistryRequiresConfig(t *testing.T) {
	_, err := feed.NewRegistry().Build(context.Background(), nil, nil)
	assert.EqualError(t, err, "config is required")
}

func TestRegistryPropagatesBuilderError(t *testing.T) {
	reg := feed.NewRegistry()
	reg.Register("broken", func(context.Context, feed.Config, watermill.LoggerAdapter) (feed.Transport, error) {
		return feed.Transport{}, errors.New("dial failed")
	})

	_, err := reg.Build(context.Background(), &feedtest.Config{System: "broken"}, nil)
	assert.EqualError(t, err, "dial failed")
}

func TestTransportCloseClosesBothSides(t *testing.T) {
	pub := &feedtest.Publisher{}
	sub := &feedtest.Subscriber{}

	require.NoError(t, feed.Transport{Publisher: pub, Subscriber: sub}.Close())
	assert.True(t, pub.Closed())
	assert.True(t, sub.Closed())

	require.NoError(t, feed.Transport{}.Close())
}

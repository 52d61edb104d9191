package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/statetree/feed"
	"github.com/drblury/statetree/feed/feedtest"
)

func stubFactories(t *testing.T) {
	t.Helper()
	originalPub := PublisherFactory
	originalSub := SubscriberFactory
	t.Cleanup(func() {
		PublisherFactory = originalPub
		SubscriberFactory = originalSub
	})
}

func TestRegisteredOnImport(t *testing.T) {
	assert.True(t, feed.DefaultRegistry.Has(TransportName))
}

func TestBuild(t *testing.T) {
	t.Run("publisher and subscriber with client id", func(t *testing.T) {
		stubFactories(t)
		pub := &feedtest.Publisher{}
		sub := &feedtest.Subscriber{}

		PublisherFactory = func(cfg kafka.PublisherConfig, _ watermill.LoggerAdapter) (message.Publisher, error) {
			assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
			require.NotNil(t, cfg.OverwriteSaramaConfig)
			assert.Equal(t, "planets", cfg.OverwriteSaramaConfig.ClientID)
			return pub, nil
		}
		SubscriberFactory = func(cfg kafka.SubscriberConfig, _ watermill.LoggerAdapter) (message.Subscriber, error) {
			assert.Equal(t, "dashboards", cfg.ConsumerGroup)
			assert.Equal(t, "planets", cfg.OverwriteSaramaConfig.ClientID)
			return sub, nil
		}

		tr, err := Build(context.Background(), &feedtest.Config{
			KafkaBrokers:       []string{"localhost:9092"},
			KafkaClientID:      "planets",
			KafkaConsumerGroup: "dashboards",
		}, watermill.NopLogger{})

		require.NoError(t, err)
		assert.Same(t, pub, tr.Publisher)
		assert.Same(t, sub, tr.Subscriber)
	})

	t.Run("publisher only without consumer group", func(t *testing.T) {
		stubFactories(t)
		PublisherFactory = func(kafka.PublisherConfig, watermill.LoggerAdapter) (message.Publisher, error) {
			return &feedtest.Publisher{}, nil
		}
		SubscriberFactory = func(kafka.SubscriberConfig, watermill.LoggerAdapter) (message.Subscriber, error) {
			t.Fatal("subscriber must not be created")
			return nil, nil
		}

		tr, err := Build(context.Background(), &feedtest.Config{KafkaBrokers: []string{"k:9092"}}, watermill.NopLogger{})
		require.NoError(t, err)
		assert.Nil(t, tr.Subscriber)
	})

	t.Run("requires brokers", func(t *testing.T) {
		_, err := Build(context.Background(), &feedtest.Config{}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "at least one broker")
	})

	t.Run("closes publisher when subscriber fails", func(t *testing.T) {
		stubFactories(t)
		pub := &feedtest.Publisher{}
		PublisherFactory = func(kafka.PublisherConfig, watermill.LoggerAdapter) (message.Publisher, error) {
			return pub, nil
		}
		SubscriberFactory = func(kafka.SubscriberConfig, watermill.LoggerAdapter) (message.Subscriber, error) {
			return nil, errors.New("group coordinator unavailable")
		}

		_, err := Build(context.Background(), &feedtest.Config{
			KafkaBrokers:       []string{"k:9092"},
			KafkaConsumerGroup: "g",
		}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "group coordinator unavailable")
		assert.True(t, pub.Closed())
	})

	t.Run("publisher error", func(t *testing.T) {
		stubFactories(t)
		PublisherFactory = func(kafka.PublisherConfig, watermill.LoggerAdapter) (message.Publisher, error) {
			return nil, errors.New("no brokers reachable")
		}

		_, err := Build(context.Background(), &feedtest.Config{KafkaBrokers: []string{"k:9092"}}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "kafka: create publisher")
	})
}

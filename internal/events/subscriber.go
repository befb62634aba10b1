package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Handler func(ctx context.Context, event Event) error

type Subscriber struct {
	client        *redis.Client
	group         string
	consumer      string
	stream        string
	handler       Handler
	batchSize     int64
	blockDuration time.Duration
	retryInterval time.Duration
	nextRetry     time.Time
	logger        *zap.Logger
}

type SubscriberConfig struct {
	Group         string
	Consumer      string
	Stream        string
	Handler       Handler
	BatchSize     int64
	BlockDuration time.Duration
	// RetryInterval is how long a failed message waits before it is
	// handed to Handler again.
	RetryInterval time.Duration
}

func NewSubscriber(client *redis.Client, config SubscriberConfig, logger *zap.Logger) *Subscriber {
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}
	if config.BlockDuration == 0 {
		config.BlockDuration = 5 * time.Second
	}
	if config.RetryInterval == 0 {
		config.RetryInterval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Subscriber{
		client:        client,
		group:         config.Group,
		consumer:      config.Consumer,
		stream:        config.Stream,
		handler:       config.Handler,
		batchSize:     config.BatchSize,
		blockDuration: config.BlockDuration,
		retryInterval: config.RetryInterval,
		logger:        logger.With(zap.String("stream", config.Stream), zap.String("group", config.Group)),
	}
}

func (s *Subscriber) Start(ctx context.Context) error {
	// Create consumer group if it doesn't exist
	err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	s.logger.Info("Subscriber started", zap.String("consumer", s.consumer))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Subscriber stopping")
			return ctx.Err()
		default:
			if err := s.readMessages(ctx); err != nil {
				if ctx.Err() != nil {
					continue
				}
				s.logger.Warn("Error reading messages", zap.Error(err))
				time.Sleep(time.Second)
			}
		}
	}
}

// readMessages first re-reads this consumer's pending entries when a retry
// is due, then blocks for new ones. Entries stay pending until Handler
// succeeds, so a failure is retried after retryInterval.
func (s *Subscriber) readMessages(ctx context.Context) error {
	if !time.Now().Before(s.nextRetry) {
		failed, err := s.read(ctx, "0", -1)
		if err != nil {
			return err
		}
		s.nextRetry = time.Time{}
		if failed > 0 {
			s.nextRetry = time.Now().Add(s.retryInterval)
		}
	}

	failed, err := s.read(ctx, ">", s.blockDuration)
	if err != nil {
		return err
	}
	if failed > 0 && s.nextRetry.IsZero() {
		s.nextRetry = time.Now().Add(s.retryInterval)
	}
	return nil
}

// read handles one batch from id and reports how many messages failed.
// A negative block returns immediately.
func (s *Subscriber) read(ctx context.Context, id string, block time.Duration) (int, error) {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, id},
		Count:    s.batchSize,
		Block:    block,
	}).Result()

	if errors.Is(err, redis.Nil) {
		return 0, nil // No messages
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read from stream: %w", err)
	}

	failed := 0
	for _, stream := range streams {
		for _, message := range stream.Messages {
			// Pending entries trimmed from the stream come back without values.
			if len(message.Values) > 0 {
				if err := s.processMessage(ctx, message); err != nil {
					s.logger.Warn("Failed to process message", zap.String("id", message.ID), zap.Error(err))
					failed++
					continue
				}
			}

			if err := s.client.XAck(ctx, s.stream, s.group, message.ID).Err(); err != nil {
				s.logger.Warn("Failed to ACK message", zap.String("id", message.ID), zap.Error(err))
			}
		}
	}

	return failed, nil
}

func (s *Subscriber) processMessage(ctx context.Context, message redis.XMessage) error {
	eventData, ok := message.Values["event"].(string)
	if !ok {
		return fmt.Errorf("invalid message format")
	}

	var event Event
	if err := json.Unmarshal([]byte(eventData), &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	return s.handler(ctx, event)
}

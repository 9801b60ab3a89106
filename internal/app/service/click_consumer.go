package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/snaplink/internal/app/model"
	apprepository "github.com/sifan077/snaplink/internal/app/repository"
	"go.uber.org/zap"
)

const (
	consumerBatchSize  = 10
	consumerFetchWait  = 5 * time.Second
	consumerWriteLimit = 2 * time.Second
	consumerBackoff    = time.Second
)

// pullSubscription is the part of *nats.Subscription the consume loop needs.
type pullSubscription interface {
	Fetch(batch int, opts ...nats.PullOpt) ([]*nats.Msg, error)
	IsValid() bool
	Unsubscribe() error
}

// ClickConsumer drains click events from NATS JetStream into the click store.
// Messages that cannot be stored are terminated, not redelivered.
type ClickConsumer struct {
	js       nats.JetStreamContext
	stream   ClickStream
	logger   *zap.Logger
	repo     apprepository.ClickEventRepository
	observer Observer
	backoff  time.Duration
	done     chan struct{}
}

// NewClickConsumer creates a new click event consumer
func NewClickConsumer(js nats.JetStreamContext, stream ClickStream, logger *zap.Logger, repo apprepository.ClickEventRepository, observer Observer) *ClickConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &ClickConsumer{
		js:       js,
		stream:   stream,
		logger:   logger,
		repo:     repo,
		observer: observer,
		backoff:  consumerBackoff,
		done:     make(chan struct{}),
	}
}

// Start provisions the stream and durable consumer, then consumes until ctx is cancelled.
func (c *ClickConsumer) Start(ctx context.Context) error {
	if err := EnsureClickStream(c.js, c.stream); err != nil {
		return err
	}

	_, err := c.js.ConsumerInfo(c.stream.Name, c.stream.Durable)
	if err != nil {
		_, err = c.js.AddConsumer(c.stream.Name, &nats.ConsumerConfig{
			Durable:   c.stream.Durable,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(c.stream.Subject, c.stream.Durable, nats.Bind(c.stream.Name, c.stream.Durable))
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(ctx, sub)
	return nil
}

// Done is closed once the consume loop has exited.
func (c *ClickConsumer) Done() <-chan struct{} {
	return c.done
}

func (c *ClickConsumer) consume(ctx context.Context, sub pullSubscription) {
	defer close(c.done)
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			c.logger.Warn("failed to unsubscribe click consumer", zap.Error(err))
		}
	}()

	for ctx.Err() == nil {
		fetchCtx, cancel := context.WithTimeout(ctx, consumerFetchWait)
		msgs, err := sub.Fetch(consumerBatchSize, nats.Context(fetchCtx))
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) || !sub.IsValid() {
				c.logger.Error("click consumer subscription closed", zap.Error(err))
				break
			}
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			c.logger.Error("failed to fetch messages", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(c.backoff):
			}
			continue
		}

		for _, msg := range msgs {
			c.handle(ctx, msg)
		}
	}

	c.logger.Info("click consumer stopped")
}

func (c *ClickConsumer) handle(ctx context.Context, msg *nats.Msg) {
	var event model.ClickEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		c.observer.ClickFailed(msg.Header.Get(LinkIDHeader), fmt.Errorf("decode click event: %w", err))
		c.terminate(msg)
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), consumerWriteLimit)
	defer cancel()

	if err := c.repo.Append(writeCtx, &event); err != nil {
		c.observer.ClickFailed(event.ID, err)
		c.terminate(msg)
		return
	}

	c.observer.ClickRecorded(event.ID)
	if err := msg.Ack(); err != nil {
		c.logger.Warn("failed to ack click event", zap.String("id", event.ID), zap.Error(err))
	}
}

func (c *ClickConsumer) terminate(msg *nats.Msg) {
	if err := msg.Term(); err != nil {
		c.logger.Warn("failed to terminate click event", zap.Error(err))
	}
}

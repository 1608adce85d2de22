package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type redisSubscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

type redisStreams interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

const (
	streamPrefix    = "rpc:queue:"
	streamBodyField = "body"
	streamMaxLen    = 10000
)

// RedisBus implementa Bus: respuestas por pub/sub y requests por streams con consumer groups.
// Ambos caminos son at-most-once.
type RedisBus struct {
	pub     redisPublisher
	sub     redisSubscriber
	streams redisStreams
	logger  *zap.Logger
	block   time.Duration
}

func NewRedisBus(client *redis.Client, logger *zap.Logger) *RedisBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBus{pub: client, sub: client, streams: client, logger: logger, block: time.Second}
}

func (b *RedisBus) Publish(ctx context.Context, topic string, body []byte) error {
	if err := b.pub.Publish(ctx, topic, body).Err(); err != nil {
		return fmt.Errorf("%w: publish %s: %v", ErrTransport, topic, err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, topic string, handler Handler) (Subscription, error) {
	ps := b.sub.Subscribe(ctx, topic)
	// Receive espera la confirmacion de SUBSCRIBE; sin esto se pierden respuestas rapidas.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("%w: subscribe %s: %v", ErrTransport, topic, err)
	}
	sub := &redisSubscription{ps: ps, done: make(chan struct{})}
	ch := ps.Channel()
	go func() {
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler(ctx, Message{Topic: msg.Channel, Body: []byte(msg.Payload)})
			case <-sub.done:
				return
			case <-ctx.Done():
				if err := sub.Close(); err != nil {
					b.logger.Warn("redis unsubscribe failed", zap.String("topic", topic), zap.Error(err))
				}
				return
			}
		}
	}()
	return sub, nil
}

func (b *RedisBus) Enqueue(ctx context.Context, queue string, body []byte) error {
	err := b.streams.XAdd(ctx, &redis.XAddArgs{
		Stream: streamPrefix + queue,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{streamBodyField: body},
	}).Err()
	if err != nil {
		return fmt.Errorf("%w: enqueue %s: %v", ErrTransport, queue, err)
	}
	return nil
}

// Consume crea el grupo si no existe (desde "$": lo anterior no se reprocesa) y lee con un
// consumidor propio. Cada mensaje se confirma antes de procesarlo.
func (b *RedisBus) Consume(ctx context.Context, queue, group string, handler Handler) (Subscription, error) {
	stream := streamPrefix + queue
	if err := b.streams.XGroupCreateMkStream(ctx, stream, group, "$").Err(); err != nil && !isBusyGroup(err) {
		return nil, fmt.Errorf("%w: create group %s on %s: %v", ErrTransport, group, queue, err)
	}
	loopCtx, cancel := context.WithCancel(ctx)
	sub := &streamSubscription{cancel: cancel, done: make(chan struct{})}
	consumer := uuid.NewString()
	go func() {
		defer close(sub.done)
		for loopCtx.Err() == nil {
			batches, err := b.streams.XReadGroup(loopCtx, &redis.XReadGroupArgs{
				Group:    group,
				Consumer: consumer,
				Streams:  []string{stream, ">"},
				Count:    16,
				Block:    b.block,
			}).Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				if loopCtx.Err() != nil {
					return
				}
				b.logger.Warn("read queue failed", zap.String("queue", queue), zap.Error(err))
				select {
				case <-time.After(b.block):
				case <-loopCtx.Done():
					return
				}
				continue
			}
			for _, batch := range batches {
				for _, msg := range batch.Messages {
					if err := b.streams.XAck(loopCtx, stream, group, msg.ID).Err(); err != nil {
						b.logger.Warn("ack failed", zap.String("queue", queue), zap.String("id", msg.ID), zap.Error(err))
					}
					body, _ := msg.Values[streamBodyField].(string)
					handler(ctx, Message{Topic: queue, Body: []byte(body)})
				}
			}
		}
	}()
	return sub, nil
}

func isBusyGroup(err error) bool {
	return strings.HasPrefix(err.Error(), "BUSYGROUP")
}

type redisSubscription struct {
	ps   *redis.PubSub
	done chan struct{}
	once sync.Once
	err  error
}

func (s *redisSubscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.err = s.ps.Close()
	})
	return s.err
}

type streamSubscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Close detiene la lectura; un handler en curso termina por su cuenta.
func (s *streamSubscription) Close() error {
	s.cancel()
	return nil
}

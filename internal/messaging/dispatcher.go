package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout es la espera maxima de una llamada bloqueante si no se configura otra.
const DefaultTimeout = 10 * time.Second

// Dispatcher es el lado productor: convierte llamadas logicas en envelopes.
type Dispatcher struct {
	bus     Bus
	logger  *zap.Logger
	timeout time.Duration
	replies ReplyCache
}

// NewDispatcher crea un dispatcher; replies puede ser nil si solo se usa Call.
func NewDispatcher(bus Bus, logger *zap.Logger, timeout time.Duration, replies ReplyCache) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		bus:     bus,
		logger:  logger,
		timeout: timeout,
		replies: replies,
	}
}

// Call encola en key y bloquea hasta la respuesta correlacionada, ctx o el timeout.
// La suscripcion de respuesta se cierra en todos los caminos de salida.
func (d *Dispatcher) Call(ctx context.Context, key, action string, header Header, payload any) (Envelope, error) {
	req, err := NewEnvelope(action, header, payload)
	if err != nil {
		d.logger.Error("couldn't encode request", zap.String("routing_key", key), zap.Error(err))
		return Envelope{}, err
	}
	req.ReplyTo = ReplyTopic(req.CorrelationID)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	replies := make(chan Envelope, 1)
	sub, err := d.bus.Subscribe(ctx, req.ReplyTo, func(_ context.Context, msg Message) {
		reply, err := DecodeEnvelope(msg.Body)
		if err != nil {
			d.logger.Error("couldn't decode reply", zap.String("routing_key", key), zap.Error(err))
			return
		}
		if reply.CorrelationID != req.CorrelationID {
			d.logger.Warn("reply with foreign correlation id",
				zap.String("expected", req.CorrelationID),
				zap.String("got", reply.CorrelationID),
			)
			return
		}
		select {
		case replies <- reply:
		default:
		}
	})
	if err != nil {
		return Envelope{}, err
	}
	defer func() {
		if err := sub.Close(); err != nil {
			d.logger.Warn("close reply subscription failed", zap.String("topic", req.ReplyTo), zap.Error(err))
		}
	}()

	body, err := req.Encode()
	if err != nil {
		return Envelope{}, err
	}
	start := time.Now()
	if err := d.bus.Enqueue(ctx, key, body); err != nil {
		return Envelope{}, err
	}

	select {
	case reply := <-replies:
		d.logger.Debug("reply received",
			zap.String("routing_key", key),
			zap.String("uuid", req.CorrelationID),
			zap.Duration("latency", time.Since(start)),
		)
		if reply.Failed() {
			return reply, fmt.Errorf("%w: %s", ErrRemote, reply.DetailMessage)
		}
		return reply, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			d.logger.Warn("rpc timed out",
				zap.String("routing_key", key),
				zap.String("uuid", req.CorrelationID),
				zap.Duration("timeout", d.timeout),
			)
			return Envelope{}, fmt.Errorf("%w: %s after %s", ErrTimeout, key, d.timeout)
		}
		return Envelope{}, ctx.Err()
	}
}

// Send encola fire-and-forget en topic y devuelve el correlation id de inmediato.
// La respuesta llega por GenerateFinished y la guarda ReplyListener.
func (d *Dispatcher) Send(ctx context.Context, topic, action string, header Header, payload any) (string, error) {
	req, err := NewEnvelope(action, header, payload)
	if err != nil {
		d.logger.Error("couldn't encode request", zap.String("topic", topic), zap.Error(err))
		return "", err
	}
	if d.replies != nil {
		if err := d.replies.Expect(ctx, req.CorrelationID, header.ExternalID, time.Now().UTC().Add(d.timeout)); err != nil {
			return "", err
		}
	}
	body, err := req.Encode()
	if err != nil {
		return "", err
	}
	if err := d.bus.Enqueue(ctx, topic, body); err != nil {
		if d.replies != nil {
			_ = d.replies.Forget(ctx, req.CorrelationID)
		}
		return "", err
	}
	d.logger.Debug("request sent", zap.String("topic", topic), zap.String("uuid", req.CorrelationID))
	return req.CorrelationID, nil
}

// Replies expone la cache de respuestas del modo desacoplado.
func (d *Dispatcher) Replies() ReplyCache {
	return d.replies
}

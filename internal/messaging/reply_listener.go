package messaging

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ReplyListener escucha el topic de resultados y llena la ReplyCache.
type ReplyListener struct {
	bus    Bus
	cache  ReplyCache
	topic  string
	logger *zap.Logger
}

func NewReplyListener(bus Bus, cache ReplyCache, topic string, logger *zap.Logger) *ReplyListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	if topic == "" {
		topic = GenerateFinished
	}
	return &ReplyListener{bus: bus, cache: cache, topic: topic, logger: logger}
}

// Start se suscribe; la suscripcion vive hasta que ctx se cancele o se cierre.
func (l *ReplyListener) Start(ctx context.Context) (Subscription, error) {
	return l.bus.Subscribe(ctx, l.topic, l.handle)
}

func (l *ReplyListener) handle(ctx context.Context, msg Message) {
	reply, err := DecodeEnvelope(msg.Body)
	if err != nil {
		l.logger.Error("couldn't decode result", zap.String("topic", msg.Topic), zap.Error(err))
		return
	}
	if reply.CorrelationID == "" || (!reply.HasPayload() && !reply.Failed()) {
		l.logger.Warn("discarding result without id or payload", zap.String("uuid", reply.CorrelationID))
		return
	}
	if err := l.cache.Complete(ctx, reply); err != nil {
		if errors.Is(err, ErrLateReply) {
			l.logger.Warn("result arrived after timeout", zap.String("uuid", reply.CorrelationID))
			return
		}
		l.logger.Error("couldn't cache result", zap.String("uuid", reply.CorrelationID), zap.Error(err))
		return
	}
	l.logger.Info("result cached", zap.String("uuid", reply.CorrelationID), zap.String("action", reply.Action))
}

package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// HandlerFunc atiende un request y devuelve el payload de respuesta.
type HandlerFunc func(ctx context.Context, req Envelope) (any, error)

type route struct {
	topic       string
	resultTopic string
	handler     HandlerFunc
}

// Server es el lado worker: consume routing keys y responde con envelopes "finished".
// Los servers con el mismo group se reparten los requests; cada uno llega a uno solo.
type Server struct {
	bus    Bus
	group  string
	logger *zap.Logger
	sem    *semaphore.Weighted
	routes []route

	mu     sync.Mutex
	subs   []Subscription
	closed bool
	wg     sync.WaitGroup
}

// NewServer limita a concurrency los handlers en ejecucion simultanea.
func NewServer(bus Bus, group string, logger *zap.Logger, concurrency int) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Server{
		bus:    bus,
		group:  group,
		logger: logger,
		sem:    semaphore.NewWeighted(int64(concurrency)),
	}
}

// Handle registra un handler que responde al ReplyTo del request.
func (s *Server) Handle(topic string, h HandlerFunc) {
	s.HandleWithResult(topic, "", h)
}

// HandleWithResult registra un handler cuyas respuestas sin ReplyTo van a resultTopic.
func (s *Server) HandleWithResult(topic, resultTopic string, h HandlerFunc) {
	s.routes = append(s.routes, route{topic: topic, resultTopic: resultTopic, handler: h})
}

// Start consume todas las rutas registradas.
func (s *Server) Start(ctx context.Context) error {
	for _, r := range s.routes {
		r := r
		sub, err := s.bus.Consume(ctx, r.topic, s.group, func(ctx context.Context, msg Message) {
			s.dispatch(ctx, r, msg)
		})
		if err != nil {
			s.Shutdown()
			return fmt.Errorf("listen %s: %w", r.topic, err)
		}
		s.mu.Lock()
		s.subs = append(s.subs, sub)
		s.mu.Unlock()
		s.logger.Info("listening", zap.String("topic", r.topic), zap.String("group", s.group))
	}
	return nil
}

// Shutdown cierra las suscripciones y espera a los handlers en curso.
func (s *Server) Shutdown() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.closed = true
	s.mu.Unlock()
	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			s.logger.Warn("close subscription failed", zap.Error(err))
		}
	}
	s.wg.Wait()
}

// dispatch registra el handler en wg bajo mu: tras Shutdown no entra ninguno nuevo.
func (s *Server) dispatch(ctx context.Context, r route, msg Message) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Warn("dropping message, server stopped", zap.String("topic", r.topic))
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.wg.Done()
		s.logger.Warn("dropping message, server stopping", zap.String("topic", r.topic))
		return
	}
	go func() {
		defer s.wg.Done()
		defer s.sem.Release(1)
		s.process(ctx, r, msg)
	}()
}

func (s *Server) process(ctx context.Context, r route, msg Message) {
	req, err := DecodeEnvelope(msg.Body)
	if err != nil {
		s.logger.Error("couldn't decode request", zap.String("topic", r.topic), zap.Error(err))
		return
	}

	payload, err := r.handler(ctx, req)
	if errors.Is(err, ErrIgnored) {
		s.logger.Debug("request ignored", zap.String("topic", r.topic), zap.String("action", req.Action))
		return
	}

	var reply Envelope
	if err != nil {
		s.logger.Error("handler failed", zap.String("topic", r.topic), zap.String("uuid", req.CorrelationID), zap.Error(err))
		reply = req.Failure(err)
	} else if reply, err = req.Reply(payload); err != nil {
		s.logger.Error("couldn't encode reply", zap.String("topic", r.topic), zap.Error(err))
		reply = req.Failure(err)
	}

	dest := req.ReplyTo
	if dest == "" {
		dest = r.resultTopic
	}
	if dest == "" {
		s.logger.Warn("no reply destination", zap.String("topic", r.topic), zap.String("uuid", req.CorrelationID))
		return
	}
	body, err := reply.Encode()
	if err != nil {
		s.logger.Error("couldn't encode reply", zap.String("topic", r.topic), zap.Error(err))
		return
	}
	if err := s.bus.Publish(ctx, dest, body); err != nil {
		s.logger.Error("couldn't publish reply", zap.String("dest", dest), zap.Error(err))
		return
	}
	s.logger.Debug("request finished", zap.String("topic", r.topic), zap.String("uuid", req.CorrelationID))
}

package messaging

import (
	"context"
	"sync"
)

// Message es lo que entrega el bus: topic y cuerpo crudo.
type Message struct {
	Topic string
	Body  []byte
}

type Handler func(ctx context.Context, msg Message)

type Subscription interface {
	Close() error
}

// Bus es el transporte. Publish/Subscribe difunde a todos los suscriptores y se usa para
// respuestas. Enqueue/Consume entrega cada mensaje a un solo consumidor de cada grupo y se
// usa para requests. Subscribe y Consume solo retornan cuando ya reciben mensajes.
type Bus interface {
	Publish(ctx context.Context, topic string, body []byte) error
	Subscribe(ctx context.Context, topic string, handler Handler) (Subscription, error)
	Enqueue(ctx context.Context, queue string, body []byte) error
	Consume(ctx context.Context, queue, group string, handler Handler) (Subscription, error)
}

// MemoryBus es un bus en proceso para desarrollo local y tests.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySubscription]struct{}
	queues map[string]map[string]*memoryGroup
	buffer int
}

type memoryGroup struct {
	members []*memorySubscription
	next    int
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subs:   make(map[string]map[*memorySubscription]struct{}),
		queues: make(map[string]map[string]*memoryGroup),
		buffer: 64,
	}
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, body []byte) error {
	b.mu.RLock()
	targets := make([]*memorySubscription, 0, len(b.subs[topic]))
	for sub := range b.subs[topic] {
		targets = append(targets, sub)
	}
	b.mu.RUnlock()
	return deliver(ctx, targets, Message{Topic: topic, Body: append([]byte(nil), body...)})
}

// Enqueue reparte round-robin entre los consumidores de cada grupo. Sin grupos el mensaje se pierde.
func (b *MemoryBus) Enqueue(ctx context.Context, queue string, body []byte) error {
	b.mu.Lock()
	targets := make([]*memorySubscription, 0, len(b.queues[queue]))
	for _, g := range b.queues[queue] {
		targets = append(targets, g.members[g.next%len(g.members)])
		g.next++
	}
	b.mu.Unlock()
	return deliver(ctx, targets, Message{Topic: queue, Body: append([]byte(nil), body...)})
}

func deliver(ctx context.Context, targets []*memorySubscription, msg Message) error {
	for _, sub := range targets {
		select {
		case sub.ch <- msg:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, topic string, handler Handler) (Subscription, error) {
	sub := b.newSubscription()
	sub.remove = func() {
		delete(b.subs[topic], sub)
		if len(b.subs[topic]) == 0 {
			delete(b.subs, topic)
		}
	}
	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*memorySubscription]struct{})
	}
	b.subs[topic][sub] = struct{}{}
	b.mu.Unlock()

	go sub.run(ctx, handler)
	return sub, nil
}

func (b *MemoryBus) Consume(ctx context.Context, queue, group string, handler Handler) (Subscription, error) {
	sub := b.newSubscription()
	sub.remove = func() {
		g := b.queues[queue][group]
		if g == nil {
			return
		}
		for i, m := range g.members {
			if m == sub {
				g.members = append(g.members[:i], g.members[i+1:]...)
				break
			}
		}
		if len(g.members) == 0 {
			delete(b.queues[queue], group)
		}
		if len(b.queues[queue]) == 0 {
			delete(b.queues, queue)
		}
	}
	b.mu.Lock()
	if b.queues[queue] == nil {
		b.queues[queue] = make(map[string]*memoryGroup)
	}
	g := b.queues[queue][group]
	if g == nil {
		g = &memoryGroup{}
		b.queues[queue][group] = g
	}
	g.members = append(g.members, sub)
	b.mu.Unlock()

	go sub.run(ctx, handler)
	return sub, nil
}

// Subscribers devuelve cuantas suscripciones activas tiene un topic.
func (b *MemoryBus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Consumers devuelve cuantos consumidores tiene un grupo de una cola.
func (b *MemoryBus) Consumers(queue, group string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if g := b.queues[queue][group]; g != nil {
		return len(g.members)
	}
	return 0
}

func (b *MemoryBus) newSubscription() *memorySubscription {
	return &memorySubscription{
		bus:  b,
		ch:   make(chan Message, b.buffer),
		done: make(chan struct{}),
	}
}

type memorySubscription struct {
	bus    *MemoryBus
	remove func()
	ch     chan Message
	done   chan struct{}
	once   sync.Once
}

func (s *memorySubscription) run(ctx context.Context, handler Handler) {
	for {
		select {
		case msg := <-s.ch:
			handler(ctx, msg)
		case <-s.done:
			return
		case <-ctx.Done():
			_ = s.Close()
			return
		}
	}
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		s.remove()
		s.bus.mu.Unlock()
		close(s.done)
	})
	return nil
}

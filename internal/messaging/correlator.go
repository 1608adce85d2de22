package messaging

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// State es el estado de una peticion desacoplada.
type State string

const (
	StatePending   State = "PENDING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
	StateTimedOut  State = "TIMED_OUT"
)

// Result es lo que el correlador sabe de un correlation id.
type Result struct {
	CorrelationID string          `json:"uuid"`
	Owner         string          `json:"owner,omitempty"`
	State         State           `json:"state"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	DetailMessage string          `json:"detailMessage,omitempty"`
	Deadline      time.Time       `json:"deadline,omitempty"`
	CompletedAt   time.Time       `json:"completedAt,omitempty"`
}

// Terminal es verdadero para cualquier estado distinto de PENDING.
func (r Result) Terminal() bool {
	return r.State != StatePending
}

// ReplyCache asocia correlation ids con sus respuestas asincronas.
type ReplyCache interface {
	// Expect registra un id enviado por owner que debe resolverse antes de deadline.
	Expect(ctx context.Context, id, owner string, deadline time.Time) error
	// Complete guarda la respuesta observada para el id del envelope.
	Complete(ctx context.Context, reply Envelope) error
	Get(ctx context.Context, id string) (Result, error)
	// Take devuelve el resultado y lo elimina si ya es terminal.
	Take(ctx context.Context, id string) (Result, error)
	// List devuelve todos los resultados completados.
	List(ctx context.Context) ([]Result, error)
	Forget(ctx context.Context, id string) error
}

// resolve aplica la respuesta sobre el estado actual. Los estados terminales no cambian.
func resolve(current *Result, reply Envelope, now time.Time) error {
	if current.State == StatePending && !current.Deadline.IsZero() && now.After(current.Deadline) {
		current.State = StateTimedOut
	}
	if current.State == StateTimedOut {
		return ErrLateReply
	}
	if current.Owner == "" {
		current.Owner = reply.Header.ExternalID
	}
	current.CompletedAt = now
	if reply.Failed() {
		current.State = StateFailed
		current.DetailMessage = reply.DetailMessage
		return nil
	}
	current.State = StateCompleted
	current.Payload = reply.Payload
	current.DetailMessage = reply.DetailMessage
	return nil
}

func refresh(r *Result, now time.Time) {
	if r.State == StatePending && !r.Deadline.IsZero() && now.After(r.Deadline) {
		r.State = StateTimedOut
	}
}

type cacheEntry struct {
	result    Result
	expiresAt time.Time
}

// MemoryReplyCache es un ReplyCache acotado en memoria con expiracion por TTL.
type MemoryReplyCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	max     int
	now     func() time.Time
}

// NewMemoryReplyCache: ttl es cuanto vive un resultado terminal; max limita las entradas.
func NewMemoryReplyCache(ttl time.Duration, max int) *MemoryReplyCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if max <= 0 {
		max = 10000
	}
	return &MemoryReplyCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		max:     max,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (c *MemoryReplyCache) Expect(_ context.Context, id, owner string, deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.makeRoomLocked(); err != nil {
		return err
	}
	c.entries[id] = &cacheEntry{
		result:    Result{CorrelationID: id, Owner: owner, State: StatePending, Deadline: deadline},
		expiresAt: deadline.Add(c.ttl),
	}
	return nil
}

func (c *MemoryReplyCache) Complete(_ context.Context, reply Envelope) error {
	if reply.CorrelationID == "" {
		return ErrUnknownCorrelation
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	entry, ok := c.entries[reply.CorrelationID]
	if !ok {
		// Respuestas de otra instancia o ya expiradas se guardan igual.
		if err := c.makeRoomLocked(); err != nil {
			return err
		}
		entry = &cacheEntry{result: Result{CorrelationID: reply.CorrelationID, State: StatePending}}
		c.entries[reply.CorrelationID] = entry
	}
	if err := resolve(&entry.result, reply, now); err != nil {
		return err
	}
	entry.expiresAt = now.Add(c.ttl)
	return nil
}

func (c *MemoryReplyCache) Get(_ context.Context, id string) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[id]
	if !ok {
		return Result{}, ErrUnknownCorrelation
	}
	refresh(&entry.result, c.now())
	return entry.result, nil
}

func (c *MemoryReplyCache) Take(_ context.Context, id string) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[id]
	if !ok {
		return Result{}, ErrUnknownCorrelation
	}
	refresh(&entry.result, c.now())
	if entry.result.Terminal() {
		delete(c.entries, id)
	}
	return entry.result, nil
}

func (c *MemoryReplyCache) List(_ context.Context) ([]Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Result, 0, len(c.entries))
	for _, entry := range c.entries {
		if entry.result.State == StateCompleted {
			out = append(out, entry.result)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CompletedAt.Before(out[j].CompletedAt)
	})
	return out, nil
}

func (c *MemoryReplyCache) Forget(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	return nil
}

func (c *MemoryReplyCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep elimina las entradas expiradas y devuelve cuantas borro.
func (c *MemoryReplyCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(c.now())
}

// Run barre la cache periodicamente hasta que ctx se cancele.
func (c *MemoryReplyCache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

func (c *MemoryReplyCache) sweepLocked(now time.Time) int {
	removed := 0
	for id, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

// makeRoomLocked libera espacio: primero expirados, despues el terminal mas viejo.
func (c *MemoryReplyCache) makeRoomLocked() error {
	if len(c.entries) < c.max {
		return nil
	}
	if c.sweepLocked(c.now()) > 0 {
		return nil
	}
	oldestID := ""
	var oldest time.Time
	now := c.now()
	for id, entry := range c.entries {
		refresh(&entry.result, now)
		if !entry.result.Terminal() {
			continue
		}
		if oldestID == "" || entry.expiresAt.Before(oldest) {
			oldestID, oldest = id, entry.expiresAt
		}
	}
	if oldestID == "" {
		return ErrCacheFull
	}
	delete(c.entries, oldestID)
	return nil
}

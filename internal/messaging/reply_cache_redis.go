package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	ZRemRangeByScore(ctx context.Context, key, min, max string) *redis.IntCmd
}

// RedisReplyCache guarda resultados en Redis con TTL; sobrevive reinicios del proceso.
// El indice es un sorted set con score = expiracion en ms y se poda en cada escritura.
type RedisReplyCache struct {
	client redisKV
	ttl    time.Duration
	prefix string
	index  string
	now    func() time.Time
}

func NewRedisReplyCache(client *redis.Client, ttl time.Duration) *RedisReplyCache {
	if client == nil {
		return nil
	}
	return newRedisReplyCache(client, ttl)
}

func newRedisReplyCache(client redisKV, ttl time.Duration) *RedisReplyCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisReplyCache{
		client: client,
		ttl:    ttl,
		prefix: "rpc:reply:",
		index:  "rpc:reply:index",
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (c *RedisReplyCache) Expect(ctx context.Context, id, owner string, deadline time.Time) error {
	res := Result{CorrelationID: id, Owner: owner, State: StatePending, Deadline: deadline}
	ttl := deadline.Sub(c.now()) + c.ttl
	return c.store(ctx, res, ttl)
}

func (c *RedisReplyCache) Complete(ctx context.Context, reply Envelope) error {
	if reply.CorrelationID == "" {
		return ErrUnknownCorrelation
	}
	current, err := c.load(ctx, reply.CorrelationID)
	if errors.Is(err, ErrUnknownCorrelation) {
		current = Result{CorrelationID: reply.CorrelationID, State: StatePending}
	} else if err != nil {
		return err
	}
	if err := resolve(&current, reply, c.now()); err != nil {
		return err
	}
	return c.store(ctx, current, c.ttl)
}

func (c *RedisReplyCache) Get(ctx context.Context, id string) (Result, error) {
	res, err := c.load(ctx, id)
	if err != nil {
		return Result{}, err
	}
	refresh(&res, c.now())
	return res, nil
}

func (c *RedisReplyCache) Take(ctx context.Context, id string) (Result, error) {
	res, err := c.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if res.Terminal() {
		if err := c.Forget(ctx, id); err != nil {
			return Result{}, err
		}
	}
	return res, nil
}

func (c *RedisReplyCache) List(ctx context.Context) ([]Result, error) {
	if err := c.prune(ctx); err != nil {
		return nil, err
	}
	ids, err := c.client.ZRangeByScore(ctx, c.index, &redis.ZRangeBy{
		Min: scoreOf(c.now()),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list replies: %v", ErrTransport, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.prefix + id
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list replies: %v", ErrTransport, err)
	}

	var out []Result
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var res Result
		if err := json.Unmarshal([]byte(raw), &res); err != nil {
			continue
		}
		if res.State == StateCompleted {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CompletedAt.Before(out[j].CompletedAt)
	})
	return out, nil
}

func (c *RedisReplyCache) Forget(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, c.prefix+id).Err(); err != nil {
		return fmt.Errorf("%w: forget reply: %v", ErrTransport, err)
	}
	if err := c.client.ZRem(ctx, c.index, id).Err(); err != nil {
		return fmt.Errorf("%w: forget reply: %v", ErrTransport, err)
	}
	return nil
}

func (c *RedisReplyCache) load(ctx context.Context, id string) (Result, error) {
	raw, err := c.client.Get(ctx, c.prefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return Result{}, ErrUnknownCorrelation
	}
	if err != nil {
		return Result{}, fmt.Errorf("%w: load reply: %v", ErrTransport, err)
	}
	var res Result
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return res, nil
}

func (c *RedisReplyCache) store(ctx context.Context, res Result, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	body, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	if err := c.client.Set(ctx, c.prefix+res.CorrelationID, body, ttl).Err(); err != nil {
		return fmt.Errorf("%w: store reply: %v", ErrTransport, err)
	}
	expiresAt := c.now().Add(ttl)
	member := redis.Z{Score: float64(expiresAt.UnixMilli()), Member: res.CorrelationID}
	if err := c.client.ZAdd(ctx, c.index, member).Err(); err != nil {
		return fmt.Errorf("%w: index reply: %v", ErrTransport, err)
	}
	return c.prune(ctx)
}

// prune quita del indice los ids cuyo valor ya expiro por TTL.
func (c *RedisReplyCache) prune(ctx context.Context) error {
	if err := c.client.ZRemRangeByScore(ctx, c.index, "-inf", "("+scoreOf(c.now())).Err(); err != nil {
		return fmt.Errorf("%w: prune reply index: %v", ErrTransport, err)
	}
	return nil
}

func scoreOf(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

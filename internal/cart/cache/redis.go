package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/NitheshChakaravarthySeelan/community-platform/internal/cart/domain"
	"github.com/redis/go-redis/v9"
)

const generationTTL = 24 * time.Hour

// fillScript writes KEYS[1] only while KEYS[2] still holds ARGV[1].
// A missing generation key counts as 0.
var fillScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[2])
if not cur then cur = '0' end
if cur ~= ARGV[1] then return 0 end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r *RedisCache) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get cart %s: %w", userID, err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cached cart %s: %w", userID, err)
	}
	if cart.UserID != userID {
		return nil, ErrCacheMiss
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	return &cart, nil
}

func (r *RedisCache) Generation(ctx context.Context, userID string) (int64, error) {
	gen, err := r.client.Get(ctx, generationKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation %s: %w", userID, err)
	}
	return gen, nil
}

// Set stores the cart with a jittered TTL so carts filled together do not
// expire together. It returns ErrStaleFill when gen is no longer current.
func (r *RedisCache) Set(ctx context.Context, userID string, cart *domain.Cart, gen int64) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart %s: %w", userID, err)
	}

	ttl := r.baseTTL + time.Duration(rand.Intn(5))*time.Minute
	stored, err := fillScript.Run(ctx, r.client,
		[]string{cacheKey(userID), generationKey(userID)},
		gen, data, ttl.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("redis fill cart %s: %w", userID, err)
	}
	if stored == 0 {
		return ErrStaleFill
	}
	return nil
}

// Delete drops the cached cart and bumps the generation in one transaction.
func (r *RedisCache) Delete(ctx context.Context, userID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(userID))
		pipe.Expire(ctx, generationKey(userID), generationTTL)
		pipe.Del(ctx, cacheKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate cart %s: %w", userID, err)
	}
	return nil
}

func cacheKey(userID string) string {
	return "cart:" + userID
}

func generationKey(userID string) string {
	return "cartgen:" + userID
}

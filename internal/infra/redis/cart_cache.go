package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"shop/internal/domain/model"
	repo "shop/internal/repository"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss はキャッシュに無いとき
var ErrCacheMiss = errors.New("cache miss")

// 保存済みより古いバージョンでは上書きしない
var setIfNewerScript = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if cur then
	local ok, doc = pcall(cjson.decode, cur)
	if ok and type(doc) == "table" and tonumber(doc["version"]) and tonumber(doc["version"]) >= tonumber(ARGV[2]) then
		return 0
	end
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
return 1
`)

// カート表示用の読み取りキャッシュ。
// 書き込み側は保存のたびに新しいバージョンでSetする（失敗したらDelete）。
type CartCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

var _ repo.CartCache = (*CartCache)(nil)

func NewCartCache(client *redis.Client) *CartCache {
	return &CartCache{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

func (c *CartCache) Get(ctx context.Context, userID int64) (*model.Cart, error) {
	data, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart model.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	for i := range cart.Items {
		cart.Items[i].UserID = cart.UserID
	}
	if cart.Items == nil {
		cart.Items = []model.CartLineItem{}
	}
	return &cart, nil
}

func (c *CartCache) Set(ctx context.Context, cart *model.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	//期限切れが同時に来ないようにずらす
	jitter := time.Duration(rand.Intn(5)) * time.Minute
	ttl := c.baseTTL + jitter

	keys := []string{cacheKey(cart.UserID)}
	if err := setIfNewerScript.Run(ctx, c.client, keys, data, cart.Version, ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *CartCache) Delete(ctx context.Context, userID int64) error {
	if err := c.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(userID int64) string {
	return fmt.Sprintf("cart:%d", userID)
}

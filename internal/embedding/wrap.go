package embedding

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// WithQueryCache 为单条查询向量化加上LRU缓存
// 相同问题重复检索时不再请求模型，批量向量化不经过缓存
func WithQueryCache(c Client, size int, ttl time.Duration) Client {
	if c == nil || size <= 0 || ttl <= 0 {
		return c
	}
	return &cachedClient{
		Client: c,
		cache:  expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type cachedClient struct {
	Client
	cache *expirable.LRU[string, []float32]
}

func (c *cachedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := c.cache.Get(text); ok {
		return cloneVector(cached), nil
	}
	vec, err := c.Client.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, cloneVector(vec))
	return vec, nil
}

func cloneVector(v []float32) []float32 {
	if len(v) == 0 {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

// WithRateLimit 限制对模型的请求速率，每次Embed或EmbedBatch消耗一个令牌
// rps<=0时不限速
func WithRateLimit(c Client, rps float64, burst int) Client {
	if c == nil || rps <= 0 {
		return c
	}
	if burst <= 0 {
		burst = 1
	}
	return &limitedClient{
		Client:  c,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

type limitedClient struct {
	Client
	limiter *rate.Limiter
}

func (c *limitedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.Client.Embed(ctx, text)
}

func (c *limitedClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.Client.EmbedBatch(ctx, texts)
}

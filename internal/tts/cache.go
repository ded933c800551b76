package tts

import (
    "context"
    "time"

    "github.com/patrickmn/go-cache"
)

// Cached memoizes synthesized audio by provider and text.
type Cached struct {
    next  Synthesizer
    cache *cache.Cache
}

func NewCached(next Synthesizer, ttl time.Duration) *Cached {
    return &Cached{next: next, cache: cache.New(ttl, 2*ttl)}
}

func (c *Cached) Name() string { return c.next.Name() }

func (c *Cached) Synthesize(ctx context.Context, text string) (Audio, error) {
    key := c.next.Name() + "\x00" + text
    if x, found := c.cache.Get(key); found {
        ttsCacheTotal.WithLabelValues("hit").Inc()
        return x.(Audio), nil
    }
    ttsCacheTotal.WithLabelValues("miss").Inc()
    a, err := c.next.Synthesize(ctx, text)
    if err != nil {
        return Audio{}, err
    }
    c.cache.Set(key, a, cache.DefaultExpiration)
    return a, nil
}

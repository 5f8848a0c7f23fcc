package cache

import (
	"context"
	"time"

	"SPXEngine/internal/services/model"
	pkgcache "SPXEngine/pkg/cache"
)

const weightsTTL = 7 * 24 * time.Hour

// WeightsCache adapts the shared cache service to the model loader's
// byte-cache contract so the last good weights survive restarts.
type WeightsCache struct {
	svc pkgcache.Service
}

func NewWeightsCache(svc pkgcache.Service) *WeightsCache {
	return &WeightsCache{svc: svc}
}

var _ model.WeightsCache = (*WeightsCache)(nil)

func (c *WeightsCache) Get(ctx context.Context, key string) ([]byte, bool) {
	var b []byte
	if err := c.svc.Get(ctx, key, &b); err != nil {
		return nil, false
	}
	return b, len(b) > 0
}

func (c *WeightsCache) Set(ctx context.Context, key string, value []byte) error {
	return c.svc.Set(ctx, key, value, weightsTTL)
}

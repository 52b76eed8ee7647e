package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"portfolio-advisor/internal/domain/model"
	"portfolio-advisor/internal/domain/ports/repository"
	"portfolio-advisor/internal/infra/metrics"
	red "portfolio-advisor/internal/infra/redis"
)

var _ repository.HoldingsRepository = (*holdingsRepoCacheDecorator)(nil)

type holdingsRepoCacheDecorator struct {
	inner repository.HoldingsRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

// NewHoldingsRepoCacheDecorator caches portfolio lookups in Redis for ttl.
// Cache failures fall through to the inner repository.
func NewHoldingsRepoCacheDecorator(inner repository.HoldingsRepository, cache red.RedisClient, ttl time.Duration, log *zerolog.Logger) repository.HoldingsRepository {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &holdingsRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: log}
}

func holdingsKey(userID string) string { return "holdings:" + userID }

func (d *holdingsRepoCacheDecorator) GetHoldings(ctx context.Context, userID string) ([]model.Holding, error) {
	key := holdingsKey(userID)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var hs []model.Holding
		if json.Unmarshal([]byte(val), &hs) == nil {
			metrics.IncCacheRequest("holdings", "hit")
			return hs, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		d.log.Warn().Err(err).Str("user_id", userID).Msg("holdings cache read failed")
	}

	metrics.IncCacheRequest("holdings", "miss")
	hs, err := d.inner.GetHoldings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(hs); err == nil {
		if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
			d.log.Warn().Err(err).Str("user_id", userID).Msg("holdings cache write failed")
		}
	}
	return hs, nil
}

// ReplaceHoldings invalidates the cached portfolio before writing through.
func (d *holdingsRepoCacheDecorator) ReplaceHoldings(ctx context.Context, userID string, holdings []model.Holding) error {
	_ = d.cache.Del(ctx, holdingsKey(userID))
	return d.inner.ReplaceHoldings(ctx, userID, holdings)
}

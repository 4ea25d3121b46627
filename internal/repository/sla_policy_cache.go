package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/helpline-hq/support-desk/internal/domain"
)

// absentPolicy is cached for tenants without a policy row so the default table is used
// without a database round trip.
const absentPolicy = "none"

type cachedSLAPolicyRepository struct {
	next   SLAPolicyRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedSLAPolicyRepository wraps next with a Redis read-through cache. Cache failures
// degrade to direct reads.
func NewCachedSLAPolicyRepository(next SLAPolicyRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) SLAPolicyRepository {
	if client == nil || ttl <= 0 {
		return next
	}
	return &cachedSLAPolicyRepository{next: next, client: client, ttl: ttl, logger: logger}
}

func slaCacheKey(tenantID string, priority domain.TicketPriority) string {
	return fmt.Sprintf("sla_policy:%s:%s", tenantID, priority)
}

func (r *cachedSLAPolicyRepository) Get(ctx context.Context, tenantID string, priority domain.TicketPriority) (*domain.SLAPolicy, error) {
	key := slaCacheKey(tenantID, priority)
	cached, err := r.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if cached == absentPolicy {
			return nil, nil
		}
		var policy domain.SLAPolicy
		if jsonErr := json.Unmarshal([]byte(cached), &policy); jsonErr == nil {
			return &policy, nil
		}
		r.logger.Warn("discarding malformed sla cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		r.logger.Warn("sla cache read failed", zap.String("key", key), zap.Error(err))
	}

	policy, err := r.next.Get(ctx, tenantID, priority)
	if err != nil {
		return nil, err
	}

	value := absentPolicy
	if policy != nil {
		encoded, err := json.Marshal(policy)
		if err != nil {
			return policy, nil
		}
		value = string(encoded)
	}
	if err := r.client.Set(ctx, key, value, r.ttl).Err(); err != nil {
		r.logger.Warn("sla cache write failed", zap.String("key", key), zap.Error(err))
	}
	return policy, nil
}

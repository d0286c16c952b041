package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/majnioui/calc/internal/logger"
	"github.com/majnioui/calc/internal/metrics"
	"github.com/majnioui/calc/internal/models"
)

const cacheKeyPrefix = "places:nearby:"

// CachedFinder memoises another Finder in Redis. Cache failures are logged
// and fall through to the wrapped Finder.
type CachedFinder struct {
	next   Finder
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedFinder(next Finder, client *redis.Client, ttl time.Duration, log logger.Logger) *CachedFinder {
	return &CachedFinder{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "places.cache"}),
	}
}

// CacheKey buckets coordinates to four decimals (about 11 m).
func CacheKey(loc models.GeoPoint, radiusMeters float64, keyword string) string {
	return fmt.Sprintf("%s%.4f:%.4f:%.0f:%s", cacheKeyPrefix, loc.Lat, loc.Lon, radiusMeters,
		strings.ToLower(strings.TrimSpace(keyword)))
}

func (c *CachedFinder) Nearby(ctx context.Context, loc models.GeoPoint, radiusMeters float64, keyword string) ([]models.Candidate, error) {
	key := CacheKey(loc, radiusMeters, keyword)

	val, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		var cached []models.Candidate
		if jsonErr := json.Unmarshal([]byte(val), &cached); jsonErr == nil {
			metrics.PlacesCache.WithLabelValues("hit").Inc()
			return cached, nil
		}
		c.logger.Warn("discarding corrupt cache entry", map[string]interface{}{"key": key})
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("cache read failed", map[string]interface{}{"key": key, "error": err})
	}
	metrics.PlacesCache.WithLabelValues("miss").Inc()

	out, err := c.next.Nearby(ctx, loc, radiusMeters, keyword)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(out)
	if err == nil {
		err = c.client.Set(ctx, key, data, c.ttl).Err()
	}
	if err != nil {
		c.logger.Warn("cache write failed", map[string]interface{}{"key": key, "error": err})
	}
	return out, nil
}

// NewRedisClient builds the client used by CachedFinder.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
}

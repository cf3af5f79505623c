package scan

import (
	"context"
	"errors"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/cache"
	"github.com/pulsewatch/pulsewatch/internal/models"
)

// ResultArchive is the pluggable mirror for terminal scan results. The
// in-memory store stays authoritative; the archive is best effort and its
// failures never fail a scan.
type ResultArchive interface {
	Save(ctx context.Context, result *models.ScanResult, ttl time.Duration) error
	Load(ctx context.Context, scanID string) (*models.ScanResult, error)
	Remove(ctx context.Context, scanID string) error
}

const archiveKeyPrefix = "pulsewatch:scan:"

// RedisArchive stores terminal scan results in Redis.
type RedisArchive struct {
	client *cache.RedisClient
}

// NewRedisArchive wraps an established Redis connection.
func NewRedisArchive(client *cache.RedisClient) *RedisArchive {
	return &RedisArchive{client: client}
}

func (a *RedisArchive) Save(ctx context.Context, result *models.ScanResult, ttl time.Duration) error {
	return a.client.Set(ctx, archiveKeyPrefix+result.ScanID, result, ttl)
}

func (a *RedisArchive) Load(ctx context.Context, scanID string) (*models.ScanResult, error) {
	var result models.ScanResult
	err := a.client.Get(ctx, archiveKeyPrefix+scanID, &result)
	if err != nil {
		if errors.Is(err, cache.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (a *RedisArchive) Remove(ctx context.Context, scanID string) error {
	return a.client.Delete(ctx, archiveKeyPrefix+scanID)
}

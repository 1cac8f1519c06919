package vaultstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrNotFound is returned when no vault mapping exists for a call ID.
var ErrNotFound = errors.New("vault mapping not found")

// Store persists exported vault mappings in Redis, keyed by call ID, so
// rehydration can happen in a different process than masking. Mappings are
// placeholder -> original and must stay inside the operator's network;
// nothing in this store is ever sent to the generation service.
type Store struct {
	client *redis.Client
	config *Config
	logger *zap.Logger
	stats  *storeStats
}

// storeStats tracks lookup performance
type storeStats struct {
	hits   int64
	misses int64
}

// Config contains vault store configuration
type Config struct {
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url"`
	KeyPrefix      string        `yaml:"key_prefix" mapstructure:"key_prefix"`
	DefaultTTL     time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
}

// Stats reports lookup counters
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	HitRate   float64 `json:"hit_rate"`
	TotalKeys int64   `json:"total_keys"`
}

// New creates a Redis-backed vault store
func New(config *Config, logger *zap.Logger) (*Store, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.MaxConnections
	opts.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opts)

	store := &Store{
		client: client,
		config: config,
		logger: logger,
		stats:  &storeStats{},
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Vault store initialized",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.Int("max_connections", config.MaxConnections),
		zap.Duration("default_ttl", config.DefaultTTL))

	return store, nil
}

// Save stores an exported vault mapping under the call ID with the
// configured TTL.
func (s *Store) Save(ctx context.Context, callID string, mapping map[string]string) error {
	data, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal vault mapping: %w", err)
	}

	key := s.key(callID)
	if err := s.client.Set(ctx, key, data, s.config.DefaultTTL).Err(); err != nil {
		s.logger.Error("Failed to persist vault mapping", zap.Error(err), zap.String("call_id", callID))
		return fmt.Errorf("failed to persist vault mapping: %w", err)
	}

	s.logger.Debug("Vault mapping persisted",
		zap.String("call_id", callID),
		zap.Int("entries", len(mapping)))
	return nil
}

// Load retrieves the vault mapping for a call ID. Returns ErrNotFound when
// the key is missing or expired.
func (s *Store) Load(ctx context.Context, callID string) (map[string]string, error) {
	data, err := s.client.Get(ctx, s.key(callID)).Result()
	if err == redis.Nil {
		s.stats.misses++
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("vault lookup failed: %w", err)
	}

	var mapping map[string]string
	if err := json.Unmarshal([]byte(data), &mapping); err != nil {
		// Delete corrupted entry
		s.client.Del(ctx, s.key(callID))
		return nil, fmt.Errorf("failed to unmarshal vault mapping: %w", err)
	}

	s.stats.hits++
	return mapping, nil
}

// Delete removes the vault mapping for a call ID. Called once rehydration
// for the call has completed.
func (s *Store) Delete(ctx context.Context, callID string) error {
	return s.client.Del(ctx, s.key(callID)).Err()
}

// GetStats returns lookup statistics
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Hits:   s.stats.hits,
		Misses: s.stats.misses,
	}

	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}

	keys, err := s.client.DBSize(ctx).Result()
	if err == nil {
		stats.TotalKeys = keys
	}

	return stats, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *Store) key(callID string) string {
	return fmt.Sprintf("%s:vault:%s", s.config.KeyPrefix, callID)
}

// maskRedisURL masks credentials in a Redis URL for logging
func maskRedisURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				userParts[len(userParts)-1] = "***"
				parts[0] = strings.Join(userParts, ":")
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}

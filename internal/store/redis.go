package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/couchcryptid/clima-ingest-service/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one hash per city under "<table>:<city>".
// Reads go to the configured node, which is the primary, so Get is always strong.
type RedisStore struct {
	client *redis.Client
	table  string
	clock  clockwork.Clock
}

// NewRedisStore connects to the Redis URL in dsn.
func NewRedisStore(ctx context.Context, dsn, table string, clock clockwork.Clock) (*RedisStore, error) {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return newRedisStore(client, table, clock), nil
}

func newRedisStore(client *redis.Client, table string, clock clockwork.Clock) *RedisStore {
	return &RedisStore{client: client, table: table, clock: clock}
}

func (s *RedisStore) key(city string) string {
	return s.table + ":" + city
}

func (s *RedisStore) Upsert(ctx context.Context, city string, temperature float64) error {
	fields := map[string]any{
		"city":        city,
		"temperature": strconv.FormatFloat(temperature, 'f', -1, 64),
		"observed_at": s.clock.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := s.client.HSet(ctx, s.key(city), fields).Err(); err != nil {
		return fmt.Errorf("saving observation: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, city string, _ Consistency) (domain.Observation, error) {
	fields, err := s.client.HGetAll(ctx, s.key(city)).Result()
	if err != nil {
		return domain.Observation{}, fmt.Errorf("reading observation: %w", err)
	}
	if len(fields) == 0 {
		return domain.Observation{}, ErrNotFound
	}

	temp, err := strconv.ParseFloat(fields["temperature"], 64)
	if err != nil {
		return domain.Observation{}, fmt.Errorf("parsing temperature for %s: %w", city, err)
	}
	observedAt, err := time.Parse(time.RFC3339Nano, fields["observed_at"])
	if err != nil {
		return domain.Observation{}, fmt.Errorf("parsing observed_at for %s: %w", city, err)
	}
	return domain.Observation{City: fields["city"], Temperature: temp, ObservedAt: observedAt}, nil
}

func (s *RedisStore) Delete(ctx context.Context, city string) error {
	if err := s.client.Del(ctx, s.key(city)).Err(); err != nil {
		return fmt.Errorf("deleting observation: %w", err)
	}
	return nil
}

func (s *RedisStore) Describe(ctx context.Context) (TableInfo, error) {
	var count int64
	iter := s.client.Scan(ctx, 0, s.table+":*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return TableInfo{}, fmt.Errorf("describing table: %w", err)
	}
	return TableInfo{
		Driver:    "redis",
		Table:     s.table,
		Status:    statusActive,
		KeySchema: keySchema,
		ItemCount: count,
	}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// internal/cache/redis.go
package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rdb is the global Redis client. Connect it once at application startup.
var Rdb *redis.Client

// TTLs for the keyspaces this service owns.
const (
	SnapshotTTL    = time.Hour
	DisconnectTTL  = 180 * time.Second
	LeaderboardTTL = 5 * time.Minute
)

// ErrNoSnapshot is returned when no game snapshot exists for a lobby code.
var ErrNoSnapshot = errors.New("no game snapshot")

// ConnectRedis initializes the global Redis client with environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func ConnectRedis() error {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	Rdb = redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return nil
}

// SetGameSnapshot stores the serialized game state under game:{code}.
// Every mutation rewrites the snapshot and refreshes its TTL.
func SetGameSnapshot(ctx context.Context, code string, data []byte) error {
	if err := Rdb.Set(ctx, "game:"+code, data, SnapshotTTL).Err(); err != nil {
		return fmt.Errorf("failed to store snapshot for lobby %s: %w", code, err)
	}
	return nil
}

// GetGameSnapshot loads the serialized game state for a lobby code.
// Returns ErrNoSnapshot if the key is missing or expired.
func GetGameSnapshot(ctx context.Context, code string) ([]byte, error) {
	data, err := Rdb.Get(ctx, "game:"+code).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot for lobby %s: %w", code, err)
	}
	return data, nil
}

// DeleteGameSnapshot removes the snapshot for a finished game.
func DeleteGameSnapshot(ctx context.Context, code string) error {
	return Rdb.Del(ctx, "game:"+code).Err()
}

// MarkDisconnected records that a player dropped from a lobby. The mark expires
// on its own after the reconnect grace period.
func MarkDisconnected(ctx context.Context, code string, userID int64) error {
	key := fmt.Sprintf("disconnect:%s:%d", code, userID)
	return Rdb.Set(ctx, key, "1", DisconnectTTL).Err()
}

// ClearDisconnected removes a player's disconnect mark after a reconnect.
func ClearDisconnected(ctx context.Context, code string, userID int64) error {
	key := fmt.Sprintf("disconnect:%s:%d", code, userID)
	return Rdb.Del(ctx, key).Err()
}

// IsDisconnected reports whether a player currently holds a disconnect mark.
func IsDisconnected(ctx context.Context, code string, userID int64) (bool, error) {
	key := fmt.Sprintf("disconnect:%s:%d", code, userID)
	n, err := Rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetCachedLeaderboard returns the cached top-5 leaderboard JSON, or nil if
// the cache is cold.
func GetCachedLeaderboard(ctx context.Context) ([]byte, error) {
	data, err := Rdb.Get(ctx, "leaderboard:top5").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return data, err
}

// SetCachedLeaderboard stores the top-5 leaderboard JSON for five minutes.
func SetCachedLeaderboard(ctx context.Context, data []byte) error {
	return Rdb.Set(ctx, "leaderboard:top5", data, LeaderboardTTL).Err()
}

// IncrRateLimit bumps the counter rl:{endpoint}:{ip} and returns its new
// value. The window TTL is set only when the counter is created.
func IncrRateLimit(ctx context.Context, endpoint, ip string, window time.Duration) (int64, error) {
	key := fmt.Sprintf("rl:%s:%s", endpoint, ip)
	n, err := Rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := Rdb.Expire(ctx, key, window).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

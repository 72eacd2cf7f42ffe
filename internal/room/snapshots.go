package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"fishbowl/internal/game"
)

var ErrNoSnapshot = errors.New("no stored snapshot")

// SnapshotStore persists the latest snapshot of every session so a restarted
// server can pick rooms up again.
type SnapshotStore interface {
	Save(ctx context.Context, snap game.SessionSnapshot) error
	Load(ctx context.Context, sessionID string) (game.SessionSnapshot, error)
	Delete(ctx context.Context, sessionID string) error
}

// MemorySnapshots keeps encoded snapshots in process memory.
type MemorySnapshots struct {
	mu    sync.Mutex
	snaps map[string][]byte
}

func NewMemorySnapshots() *MemorySnapshots {
	return &MemorySnapshots{snaps: make(map[string][]byte)}
}

func (m *MemorySnapshots) Save(_ context.Context, snap game.SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", snap.SessionID, err)
	}
	m.mu.Lock()
	m.snaps[snap.SessionID] = data
	m.mu.Unlock()
	return nil
}

func (m *MemorySnapshots) Load(_ context.Context, sessionID string) (game.SessionSnapshot, error) {
	m.mu.Lock()
	data, ok := m.snaps[sessionID]
	m.mu.Unlock()
	if !ok {
		return game.SessionSnapshot{}, ErrNoSnapshot
	}
	var snap game.SessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return game.SessionSnapshot{}, fmt.Errorf("decode snapshot %s: %w", sessionID, err)
	}
	return snap, nil
}

func (m *MemorySnapshots) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.snaps, sessionID)
	m.mu.Unlock()
	return nil
}

const redisKeyPrefix = "fishbowl:session:"

// RedisSnapshots stores snapshots as JSON strings that expire after ttl of
// inactivity.
type RedisSnapshots struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSnapshots(client *redis.Client, ttl time.Duration) *RedisSnapshots {
	return &RedisSnapshots{client: client, ttl: ttl}
}

// DialRedis connects and pings the server.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	return client, nil
}

func (r *RedisSnapshots) Save(ctx context.Context, snap game.SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", snap.SessionID, err)
	}
	return r.client.Set(ctx, redisKeyPrefix+snap.SessionID, data, r.ttl).Err()
}

func (r *RedisSnapshots) Load(ctx context.Context, sessionID string) (game.SessionSnapshot, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return game.SessionSnapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return game.SessionSnapshot{}, fmt.Errorf("load snapshot %s: %w", sessionID, err)
	}
	var snap game.SessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return game.SessionSnapshot{}, fmt.Errorf("decode snapshot %s: %w", sessionID, err)
	}
	return snap, nil
}

func (r *RedisSnapshots) Delete(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, redisKeyPrefix+sessionID).Err()
}

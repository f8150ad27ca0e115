package redisctrl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ragdesk/src/core/rag"
)

const memoryKeyPrefix = "memory:"

// Memory stores each session's conversation as a Redis list of JSON entries.
type Memory struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMemory returns a conversation memory. A positive ttl expires a session's
// history after that long without new messages.
func NewMemory(client *redis.Client, ttl time.Duration) *Memory {
	return &Memory{client: client, ttl: ttl}
}

func memoryKey(sessionID string) string {
	return memoryKeyPrefix + sessionID
}

func (m *Memory) Append(ctx context.Context, sessionID string, entry rag.MemoryEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal memory entry: %w", err)
	}

	key := memoryKey(sessionID)
	pipe := m.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	if m.ttl > 0 {
		pipe.Expire(ctx, key, m.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append memory entry: %w", err)
	}
	return nil
}

func (m *Memory) History(ctx context.Context, sessionID string) ([]rag.MemoryEntry, error) {
	values, err := m.client.LRange(ctx, memoryKey(sessionID), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load memory: %w", err)
	}

	history := make([]rag.MemoryEntry, 0, len(values))
	for _, v := range values {
		var entry rag.MemoryEntry
		if err := json.Unmarshal([]byte(v), &entry); err != nil {
			return nil, fmt.Errorf("failed to decode memory entry: %w", err)
		}
		history = append(history, entry)
	}
	return history, nil
}

// Ping checks the Redis connection.
func (m *Memory) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// internal/store/queue.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultMatchQueueName is the redis list finished matches are enqueued to
// for the archiver.
const DefaultMatchQueueName = "soliduel_matches"

// MatchRecord holds the minimal outcome the archiver persists.
type MatchRecord struct {
	RoomID     uuid.UUID `json:"room_id"`
	HostID     uuid.UUID `json:"host_id"`
	GuestID    uuid.UUID `json:"guest_id"`
	HostTotal  int       `json:"host_total"`
	GuestTotal int       `json:"guest_total"`
	Winner     uuid.UUID `json:"winner"`
	Draw       bool      `json:"draw"`
	Rounds     int       `json:"rounds"`
	FinishedAt int64     `json:"finished_at"`
}

// MatchQueue accepts finished-match records for asynchronous archival.
type MatchQueue interface {
	EnqueueMatch(ctx context.Context, rec MatchRecord) error
}

// EnqueueMatch pushes the record onto the archiver queue. This does not block
// game logic beyond a quick network send.
func (s *Redis) EnqueueMatch(ctx context.Context, rec MatchRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal match record: %w", err)
	}
	queue := getEnv("MATCH_QUEUE_NAME", DefaultMatchQueueName)
	if err := s.rdb.RPush(ctx, queue, data).Err(); err != nil {
		return fmt.Errorf("enqueue match to %q: %w", queue, err)
	}
	return nil
}

// DequeueMatch blocks up to timeout for the next record. A nil record with a
// nil error means the wait timed out.
func (s *Redis) DequeueMatch(ctx context.Context, timeout time.Duration) (*MatchRecord, error) {
	queue := getEnv("MATCH_QUEUE_NAME", DefaultMatchQueueName)
	res, err := s.rdb.BLPop(ctx, timeout, queue).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue match from %q: %w", queue, err)
	}
	var rec MatchRecord
	if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
		return nil, fmt.Errorf("decode match record: %w", err)
	}
	return &rec, nil
}

// memoryQueue collects records in memory, for tests.
type memoryQueue struct {
	mu      sync.Mutex
	records []MatchRecord
}

// EnqueueMatch appends the record to the in-memory queue.
func (m *Memory) EnqueueMatch(ctx context.Context, rec MatchRecord) error {
	m.queue.mu.Lock()
	defer m.queue.mu.Unlock()
	m.queue.records = append(m.queue.records, rec)
	return nil
}

// Matches returns all enqueued records.
func (m *Memory) Matches() []MatchRecord {
	m.queue.mu.Lock()
	defer m.queue.mu.Unlock()
	return append([]MatchRecord(nil), m.queue.records...)
}

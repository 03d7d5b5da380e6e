// internal/store/redis.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/soliduel/soliduel/internal/models"
)

// joinRetries bounds optimistic-transaction retries when two clients race for
// the guest slot; exactly one wins the check-and-set, the other re-reads and
// lands in the spectator set.
const joinRetries = 8

// Redis implements Store on a redis instance: one hash per room document, a
// list per attack log, and a pub/sub channel per room for change
// notification. Subscribers re-read the full document on every notification,
// giving at-least-once full-snapshot delivery in publish order.
type Redis struct {
	rdb *redis.Client
	log *logrus.Logger
}

var _ Store = (*Redis)(nil)

// ConnectRedis dials redis using environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func ConnectRedis(log *logrus.Logger) (*Redis, error) {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &Redis{rdb: rdb, log: log}, nil
}

func roomKey(id uuid.UUID) string    { return "room:" + id.String() }
func attacksKey(id uuid.UUID) string { return "room:" + id.String() + ":attacks" }
func roomChannel(id uuid.UUID) string {
	return "room-events:" + id.String()
}

func (s *Redis) CreateRoom(ctx context.Context, r *models.Room) error {
	fields, err := encodeRoom(r)
	if err != nil {
		return err
	}
	if err := s.rdb.HSet(ctx, roomKey(r.ID), flatten(fields)...).Err(); err != nil {
		return fmt.Errorf("create room %s: %w", r.ID, err)
	}
	return s.publish(ctx, r.ID)
}

func (s *Redis) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	fields, err := s.rdb.HGetAll(ctx, roomKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, ErrRoomNotFound
	}
	attacks, err := s.readAttacks(ctx, id)
	if err != nil {
		return nil, err
	}
	return decodeRoom(id, fields, attacks)
}

func (s *Redis) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]string) error {
	exists, err := s.rdb.Exists(ctx, roomKey(id)).Result()
	if err != nil {
		return fmt.Errorf("update room %s: %w", id, err)
	}
	if exists == 0 {
		return ErrRoomNotFound
	}
	if err := s.rdb.HSet(ctx, roomKey(id), flatten(fields)...).Err(); err != nil {
		return fmt.Errorf("update room %s: %w", id, err)
	}
	return s.publish(ctx, id)
}

func (s *Redis) AppendAttack(ctx context.Context, id uuid.UUID, ev models.AttackEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal attack %s: %w", ev.ID, err)
	}
	if err := s.rdb.RPush(ctx, attacksKey(id), data).Err(); err != nil {
		return fmt.Errorf("append attack to room %s: %w", id, err)
	}
	return s.publish(ctx, id)
}

// Join claims the guest slot or the spectator set under an optimistic WATCH
// transaction, so two simultaneous joiners cannot both become the guest.
func (s *Redis) Join(ctx context.Context, id uuid.UUID, userID uuid.UUID) (models.Role, error) {
	var role models.Role

	txn := func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, roomKey(id)).Result()
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return ErrRoomNotFound
		}
		r, err := decodeRoom(id, fields, nil)
		if err != nil {
			return err
		}
		if existing, ok := r.RoleOf(userID); ok {
			role = existing
			return nil // rejoin, nothing to write
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if r.GuestID == uuid.Nil {
				role = models.RoleGuest
				pipe.HSet(ctx, roomKey(id), fieldGuest, userID.String())
				return nil
			}
			role = models.RoleSpectator
			specs, err := json.Marshal(append(r.Spectators, userID))
			if err != nil {
				return err
			}
			pipe.HSet(ctx, roomKey(id), fieldSpectators, string(specs))
			return nil
		})
		return err
	}

	for i := 0; i < joinRetries; i++ {
		err := s.rdb.Watch(ctx, txn, roomKey(id))
		if err == nil {
			return role, s.publish(ctx, id)
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue // raced another joiner; re-read and retry
		}
		return "", err
	}
	return "", fmt.Errorf("join room %s: too many conflicting joiners", id)
}

func (s *Redis) Subscribe(ctx context.Context, id uuid.UUID) (<-chan *models.Room, func(), error) {
	if _, err := s.GetRoom(ctx, id); err != nil {
		return nil, nil, err
	}
	pubsub := s.rdb.Subscribe(ctx, roomChannel(id))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe to room %s: %w", id, err)
	}

	out := make(chan *models.Room, 16)
	subCtx, cancelCtx := context.WithCancel(context.Background())

	go func() {
		defer close(out)
		// Deliver the current document first, then one snapshot per
		// notification. A failed re-read is logged and skipped; the next
		// notification re-delivers full state.
		deliver := func() {
			snap, err := s.GetRoom(subCtx, id)
			if err != nil {
				s.log.WithError(err).Warnf("room %s: snapshot re-read failed", id)
				return
			}
			select {
			case out <- snap:
			case <-subCtx.Done():
			}
		}
		deliver()
		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				deliver()
			}
		}
	}()

	cancel := func() {
		cancelCtx()
		pubsub.Close()
	}
	return out, cancel, nil
}

func (s *Redis) publish(ctx context.Context, id uuid.UUID) error {
	if err := s.rdb.Publish(ctx, roomChannel(id), "changed").Err(); err != nil {
		return fmt.Errorf("notify room %s: %w", id, err)
	}
	return nil
}

func (s *Redis) readAttacks(ctx context.Context, id uuid.UUID) ([]models.AttackEvent, error) {
	raw, err := s.rdb.LRange(ctx, attacksKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read attack log for room %s: %w", id, err)
	}
	attacks := make([]models.AttackEvent, 0, len(raw))
	for _, item := range raw {
		var ev models.AttackEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, fmt.Errorf("decode attack event: %w", err)
		}
		attacks = append(attacks, ev)
	}
	return attacks, nil
}

// flatten turns a field map into the alternating key/value slice HSet wants.
func flatten(fields map[string]string) []interface{} {
	out := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt parses an environment variable as an integer, else a default.
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

// internal/store/memory.go
package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/soliduel/soliduel/internal/models"
)

// Memory is an in-process Store used by tests and single-process play. It
// honors the same contract as the redis store: full-snapshot notification on
// every change, atomic join, append-only attack log.
type Memory struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]*memoryRoom
	queue memoryQueue
}

var _ Store = (*Memory)(nil)

type memoryRoom struct {
	fields  map[string]string
	attacks []models.AttackEvent
	subs    map[int]chan *models.Room
	nextSub int
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{rooms: make(map[uuid.UUID]*memoryRoom)}
}

func (m *Memory) CreateRoom(ctx context.Context, r *models.Room) error {
	fields, err := encodeRoom(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[r.ID] = &memoryRoom{
		fields: fields,
		subs:   make(map[int]chan *models.Room),
	}
	return nil
}

func (m *Memory) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mr, ok := m.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return m.snapshotLocked(id, mr)
}

func (m *Memory) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mr, ok := m.rooms[id]
	if !ok {
		return ErrRoomNotFound
	}
	for k, v := range fields {
		mr.fields[k] = v
	}
	return m.notifyLocked(id, mr)
}

func (m *Memory) AppendAttack(ctx context.Context, id uuid.UUID, ev models.AttackEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mr, ok := m.rooms[id]
	if !ok {
		return ErrRoomNotFound
	}
	mr.attacks = append(mr.attacks, ev)
	return m.notifyLocked(id, mr)
}

func (m *Memory) Join(ctx context.Context, id uuid.UUID, userID uuid.UUID) (models.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mr, ok := m.rooms[id]
	if !ok {
		return "", ErrRoomNotFound
	}
	r, err := m.snapshotLocked(id, mr)
	if err != nil {
		return "", err
	}
	if role, ok := r.RoleOf(userID); ok {
		return role, nil
	}
	if r.GuestID == uuid.Nil {
		mr.fields[fieldGuest] = userID.String()
		return models.RoleGuest, m.notifyLocked(id, mr)
	}
	r.Spectators = append(r.Spectators, userID)
	fields, err := encodeRoom(r)
	if err != nil {
		return "", err
	}
	mr.fields[fieldSpectators] = fields[fieldSpectators]
	return models.RoleSpectator, m.notifyLocked(id, mr)
}

func (m *Memory) Subscribe(ctx context.Context, id uuid.UUID) (<-chan *models.Room, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mr, ok := m.rooms[id]
	if !ok {
		return nil, nil, ErrRoomNotFound
	}
	ch := make(chan *models.Room, 64)
	key := mr.nextSub
	mr.nextSub++
	mr.subs[key] = ch

	// Initial full snapshot, as the redis subscriber also delivers.
	snap, err := m.snapshotLocked(id, mr)
	if err != nil {
		delete(mr.subs, key)
		return nil, nil, err
	}
	ch <- snap

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if c, ok := mr.subs[key]; ok {
			delete(mr.subs, key)
			close(c)
		}
	}
	return ch, cancel, nil
}

// snapshotLocked decodes the current document. Caller holds the lock.
func (m *Memory) snapshotLocked(id uuid.UUID, mr *memoryRoom) (*models.Room, error) {
	attacks := append([]models.AttackEvent(nil), mr.attacks...)
	return decodeRoom(id, mr.fields, attacks)
}

// notifyLocked fans the current full document out to every subscriber.
// Caller holds the lock. A subscriber that cannot keep up misses intermediate
// snapshots but always receives a later, complete one.
func (m *Memory) notifyLocked(id uuid.UUID, mr *memoryRoom) error {
	snap, err := m.snapshotLocked(id, mr)
	if err != nil {
		return err
	}
	for _, ch := range mr.subs {
		select {
		case ch <- snap:
		default:
		}
	}
	return nil
}

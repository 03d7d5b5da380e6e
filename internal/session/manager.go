// internal/session/manager.go
package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/soliduel/soliduel/internal/store"
)

// Manager is the registry of live sessions, keyed by (room, user). A
// reconnecting client re-attaches to its existing session, keeping its board
// and round progress; a fresh session is only built when none is alive.
type Manager struct {
	log  *logrus.Logger
	st   store.Store
	opts Options

	mu       sync.Mutex
	sessions map[sessionKey]*Session

	// start launches a new session's loop; tests drive reducers directly
	// and override it.
	start func(key sessionKey, s *Session)
}

type sessionKey struct {
	room uuid.UUID
	user uuid.UUID
}

// NewManager builds a registry whose sessions share opts.
func NewManager(log *logrus.Logger, st store.Store, opts Options) *Manager {
	m := &Manager{
		log:      log,
		st:       st,
		opts:     opts,
		sessions: make(map[sessionKey]*Session),
	}
	m.start = m.run
	return m
}

// Attach returns the live session for (roomID, userID), joining the room and
// creating one when none exists. The second result reports whether an
// existing session was re-attached.
func (m *Manager) Attach(ctx context.Context, roomID, userID uuid.UUID) (*Session, bool, error) {
	key := sessionKey{room: roomID, user: userID}
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[key]; ok {
		select {
		case <-s.Done():
			delete(m.sessions, key)
		default:
			m.log.WithFields(logrus.Fields{
				"room": roomID,
				"user": userID,
			}).Info("reattached to live session")
			return s, true, nil
		}
	}

	// The session and its store subscription outlive the connection that
	// created them, so they must not inherit the request's cancellation.
	s, err := Join(context.WithoutCancel(ctx), m.log, m.st, roomID, userID, m.opts)
	if err != nil {
		return nil, false, err
	}
	m.sessions[key] = s
	m.start(key, s)
	return s, false, nil
}

// run drives the session loop for its whole lifetime, detached from any one
// connection's request context, and drops it from the registry on exit.
func (m *Manager) run(key sessionKey, s *Session) {
	go func() {
		s.Run(context.Background())
		m.mu.Lock()
		if m.sessions[key] == s {
			delete(m.sessions, key)
		}
		m.mu.Unlock()
	}()
}

// internal/models/room.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomStatus is the lifecycle state recorded on the shared room document.
// Lobby and Playing are client-local states: Lobby means no room is joined yet,
// and Playing is reached by each client at the end of its own local countdown.
// Only the host writes the shared status field.
type RoomStatus string

const (
	StatusLobby        RoomStatus = "lobby"
	StatusRoomWait     RoomStatus = "room_wait"
	StatusCountDown    RoomStatus = "count_down"
	StatusPlaying      RoomStatus = "playing"
	StatusIntermission RoomStatus = "intermission"
	StatusFinished     RoomStatus = "finished"
)

// Role is a participant's relationship to a room.
type Role string

const (
	RoleHost      Role = "host"
	RoleGuest     Role = "guest"
	RoleSpectator Role = "spectator"
)

// AttackKind tags an attack event. There is currently one kind: a temporary
// lock on a randomly chosen tableau column of the target's board.
type AttackKind string

const AttackFreeze AttackKind = "freeze"

// AttackEvent is a write-once entry in the room's append-only attack log.
// Targets de-duplicate by ID so a replayed snapshot never re-applies one.
type AttackEvent struct {
	ID        uuid.UUID  `json:"id"`
	Target    uuid.UUID  `json:"target"`
	Kind      AttackKind `json:"kind"`
	Timestamp int64      `json:"ts"`
}

// Room is the shared synchronized document, one per match. Each field has a
// single designated writer: the host owns Status, CurrentRound, StartTime,
// Winner and Draw; each player owns its own Scores/Totals/Charges entries;
// Attacks is append-only.
type Room struct {
	ID         uuid.UUID   `json:"id"`
	HostID     uuid.UUID   `json:"hostId"`
	GuestID    uuid.UUID   `json:"guestId"` // uuid.Nil until a guest joins
	Spectators []uuid.UUID `json:"spectators"`

	Status       RoomStatus `json:"status"`
	CurrentRound int        `json:"currentRound"`
	MaxRounds    int        `json:"maxRounds"`
	StartTime    time.Time  `json:"startTime"`

	Scores  map[uuid.UUID]int `json:"scores"`  // running score, this round
	Totals  map[uuid.UUID]int `json:"totals"`  // cumulative across rounds
	Charges map[uuid.UUID]int `json:"charges"` // attack charge counters

	Attacks []AttackEvent `json:"attacks"`

	Winner uuid.UUID `json:"winner"` // set once Status == finished
	Draw   bool      `json:"draw"`
}

// NewRoom builds a fresh room document in the room_wait state for the host.
func NewRoom(hostID uuid.UUID, maxRounds int) *Room {
	return &Room{
		ID:           uuid.New(),
		HostID:       hostID,
		Status:       StatusRoomWait,
		CurrentRound: 1,
		MaxRounds:    maxRounds,
		Scores:       map[uuid.UUID]int{},
		Totals:       map[uuid.UUID]int{},
		Charges:      map[uuid.UUID]int{},
	}
}

// RoleOf reports the participant's role, or false if the identity is unknown
// to this room.
func (r *Room) RoleOf(userID uuid.UUID) (Role, bool) {
	switch userID {
	case r.HostID:
		return RoleHost, true
	case r.GuestID:
		return RoleGuest, true
	}
	for _, s := range r.Spectators {
		if s == userID {
			return RoleSpectator, true
		}
	}
	return "", false
}

// Opponent returns the other player of the host/guest pair. Spectators have
// no opponent.
func (r *Room) Opponent(userID uuid.UUID) (uuid.UUID, bool) {
	switch userID {
	case r.HostID:
		if r.GuestID == uuid.Nil {
			return uuid.Nil, false
		}
		return r.GuestID, true
	case r.GuestID:
		return r.HostID, true
	}
	return uuid.Nil, false
}

// Clone returns a deep copy so a snapshot handed to a consumer stays immutable
// while the source keeps changing.
func (r *Room) Clone() *Room {
	cp := *r
	cp.Spectators = append([]uuid.UUID(nil), r.Spectators...)
	cp.Attacks = append([]AttackEvent(nil), r.Attacks...)
	cp.Scores = make(map[uuid.UUID]int, len(r.Scores))
	for k, v := range r.Scores {
		cp.Scores[k] = v
	}
	cp.Totals = make(map[uuid.UUID]int, len(r.Totals))
	for k, v := range r.Totals {
		cp.Totals[k] = v
	}
	cp.Charges = make(map[uuid.UUID]int, len(r.Charges))
	for k, v := range r.Charges {
		cp.Charges[k] = v
	}
	return &cp
}

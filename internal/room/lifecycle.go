// internal/room/lifecycle.go
package room

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/soliduel/soliduel/internal/models"
)

// Defaults for match shape. The binaries may override via environment.
const (
	DefaultMatchDuration = 180 * time.Second
	DefaultMaxRounds     = 3

	// CountdownSteps is the local 3-2-1 countdown each client runs after
	// observing the count_down status; CountdownGrace is the short delay
	// between the last step and the local flip to playing.
	CountdownSteps = 3
	CountdownTick  = time.Second
	CountdownGrace = 300 * time.Millisecond
)

var (
	// ErrNotHost: a non-host attempted a host-only transition. Surfaced as a
	// benign notice, never written to the store.
	ErrNotHost = errors.New("room: only the host may perform this transition")
	// ErrNoGuest: the match cannot start before a guest has joined.
	ErrNoGuest = errors.New("room: no guest has joined yet")
	// ErrBadTransition: the requested status change is not on the lifecycle
	// graph from the room's current status.
	ErrBadTransition = errors.New("room: illegal status transition")
	// ErrFinished: the room is terminal and accepts no further transitions.
	ErrFinished = errors.New("room: match already finished")
)

// transitions is the shared-status lifecycle graph. The count_down→playing
// flip is client-local and intentionally absent: the shared status stays
// count_down while boards are live, until the host resolves time-up.
var transitions = map[models.RoomStatus][]models.RoomStatus{
	models.StatusRoomWait:     {models.StatusCountDown, models.StatusFinished},
	models.StatusCountDown:    {models.StatusIntermission, models.StatusFinished},
	models.StatusIntermission: {models.StatusCountDown, models.StatusFinished},
	models.StatusFinished:     {},
}

// CanTransition reports whether from→to is on the lifecycle graph.
func CanTransition(from, to models.RoomStatus) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Outcome is the host's resolution of a round end.
type Outcome struct {
	Finished bool // false: intermission, more rounds remain
	Winner   uuid.UUID
	Draw     bool
}

// StartMatch moves room_wait→count_down and stamps a fresh start time.
// Host-only; requires a guest.
func StartMatch(r *models.Room, by uuid.UUID, now time.Time) error {
	if by != r.HostID {
		return ErrNotHost
	}
	if r.GuestID == uuid.Nil {
		return ErrNoGuest
	}
	if r.Status == models.StatusFinished {
		return ErrFinished
	}
	if !CanTransition(r.Status, models.StatusCountDown) || r.Status != models.StatusRoomWait {
		return ErrBadTransition
	}
	r.Status = models.StatusCountDown
	r.StartTime = now
	return nil
}

// NextRound moves intermission→count_down: increments the round counter,
// zeroes per-round score and charge fields, stamps a fresh start time.
// Host-only.
func NextRound(r *models.Room, by uuid.UUID, now time.Time) error {
	if by != r.HostID {
		return ErrNotHost
	}
	if r.Status == models.StatusFinished {
		return ErrFinished
	}
	if r.Status != models.StatusIntermission {
		return ErrBadTransition
	}
	r.Status = models.StatusCountDown
	r.CurrentRound++
	for id := range r.Scores {
		r.Scores[id] = 0
	}
	for id := range r.Charges {
		r.Charges[id] = 0
	}
	r.StartTime = now
	return nil
}

// ResolveRound folds each player's round score into their cumulative total
// and advances the room to intermission, or to finished with the winner
// determined by strictly higher cumulative total (equal totals draw).
// Host-only; invoked on time-up or host concession.
func ResolveRound(r *models.Room, by uuid.UUID) (Outcome, error) {
	if by != r.HostID {
		return Outcome{}, ErrNotHost
	}
	if r.Status == models.StatusFinished {
		return Outcome{}, ErrFinished
	}
	if r.Status != models.StatusCountDown {
		return Outcome{}, ErrBadTransition
	}

	for id, s := range r.Scores {
		r.Totals[id] += s
	}

	if r.CurrentRound < r.MaxRounds {
		r.Status = models.StatusIntermission
		return Outcome{}, nil
	}

	r.Status = models.StatusFinished
	hostTotal := r.Totals[r.HostID]
	guestTotal := r.Totals[r.GuestID]
	out := Outcome{Finished: true}
	switch {
	case hostTotal > guestTotal:
		out.Winner = r.HostID
	case guestTotal > hostTotal:
		out.Winner = r.GuestID
	default:
		out.Draw = true
	}
	r.Winner = out.Winner
	r.Draw = out.Draw
	return out, nil
}

// Concede requests early termination. From the host this resolves as an
// immediate final time-up: remaining rounds are forfeited and the match
// finishes on current cumulative totals. From anyone else it is rejected.
func Concede(r *models.Room, by uuid.UUID) (Outcome, error) {
	if by != r.HostID {
		return Outcome{}, ErrNotHost
	}
	if r.Status == models.StatusFinished {
		return Outcome{}, ErrFinished
	}
	if r.Status == models.StatusCountDown {
		for id, s := range r.Scores {
			r.Totals[id] += s
		}
	}
	r.Status = models.StatusFinished
	hostTotal := r.Totals[r.HostID]
	guestTotal := r.Totals[r.GuestID]
	out := Outcome{Finished: true}
	switch {
	case hostTotal > guestTotal:
		out.Winner = r.HostID
	case guestTotal > hostTotal:
		out.Winner = r.GuestID
	default:
		out.Draw = true
	}
	r.Winner = out.Winner
	r.Draw = out.Draw
	return out, nil
}

// Remaining derives the round timer from the shared start time, clamped at
// zero. Reaching zero is only actionable by the host.
func Remaining(r *models.Room, now time.Time, matchDuration time.Duration) time.Duration {
	if r.StartTime.IsZero() {
		return matchDuration
	}
	left := matchDuration - now.Sub(r.StartTime)
	if left < 0 {
		return 0
	}
	return left
}

// internal/session/events.go
package session

import (
	"github.com/google/uuid"

	"github.com/soliduel/soliduel/internal/models"
	"github.com/soliduel/soliduel/internal/solitaire"
)

// Event types pushed to the client.
const (
	EventState     = "state"      // full local view refresh
	EventCountdown = "countdown"  // local 3-2-1 step
	EventNotice    = "notice"     // benign, user-facing notice
	EventError     = "error"      // transient, user-retryable failure
	EventFrozen    = "frozen"     // a column of our board was locked
	EventUnfrozen  = "unfrozen"   // a freeze expired
	EventRoundOver = "round_over" // round resolved, intermission
	EventMatchOver = "match_over" // terminal
)

// Event is one outbound frame to the client driving this session.
type Event struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`

	Countdown int `json:"countdown,omitempty"`

	// Frozen / unfrozen column details.
	Column int   `json:"column,omitempty"`
	Until  int64 `json:"until,omitempty"` // unix ms expiry

	State *StateView `json:"state,omitempty"`
}

// BoardView is the client's own board. Opponent boards never cross the
// boundary; only the aggregate fields in StateView do.
type BoardView struct {
	Stock       int                                      `json:"stock"`
	Waste       []models.Card                            `json:"waste"`
	Tableau     [solitaire.TableauColumns][]models.Card  `json:"tableau"`
	Foundations [solitaire.FoundationPiles][]models.Card `json:"foundations"`
	Frozen      map[int]int64                            `json:"frozen,omitempty"` // column -> unix ms expiry
	Selection   *solitaire.Location                      `json:"selection,omitempty"`
}

// StateView is the full local view: lifecycle position, both players'
// aggregate scores, and this participant's board (nil for spectators and
// outside play).
type StateView struct {
	Status    models.RoomStatus `json:"status"`
	Role      models.Role       `json:"role"`
	Round     int               `json:"round"`
	MaxRounds int               `json:"maxRounds"`
	Remaining int               `json:"remainingSec"`

	Score  int `json:"score"`
	Total  int `json:"total"`
	Charge int `json:"charge"`
	Combo  int `json:"combo"`
	Gauge  int `json:"comboGauge"`

	OppScore int `json:"oppScore"`
	OppTotal int `json:"oppTotal"`

	Winner uuid.UUID `json:"winner,omitempty"`
	Draw   bool      `json:"draw,omitempty"`

	Board *BoardView `json:"board,omitempty"`
}

// InputKind discriminates client inputs.
type InputKind string

const (
	InputTap       InputKind = "tap"
	InputStart     InputKind = "start"      // host: room_wait -> count_down
	InputNextRound InputKind = "next_round" // host: intermission -> count_down
	InputConcede   InputKind = "concede"
	InputSync      InputKind = "sync" // request a full state refresh, sent on (re)connect
)

// Input is one client action fed into the session mailbox.
type Input struct {
	Kind InputKind          `json:"kind"`
	Loc  solitaire.Location `json:"loc"`
}

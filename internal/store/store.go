// internal/store/store.go
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/soliduel/soliduel/internal/models"
)

// ErrRoomNotFound is returned for operations against a room id no document
// exists for.
var ErrRoomNotFound = errors.New("store: room not found")

// Store is the shared synchronized document substrate: one document per room,
// point updates of field subsets, an append-only attack log, an atomic join
// transaction, and full-document change subscriptions with at-least-once,
// order-preserving delivery per subscriber.
type Store interface {
	CreateRoom(ctx context.Context, r *models.Room) error
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)

	// UpdateFields applies a point update of a field subset. Keys are the
	// Field* constants below; values use the codec's string encoding.
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]string) error

	// AppendAttack appends one write-once event to the room's attack log.
	AppendAttack(ctx context.Context, id uuid.UUID, ev models.AttackEvent) error

	// Join atomically claims the guest slot if it is free, otherwise records
	// the caller as a spectator. Identities already holding a role keep it,
	// so a rejoining participant re-attaches instead of demoting itself.
	Join(ctx context.Context, id uuid.UUID, userID uuid.UUID) (models.Role, error)

	// Subscribe delivers the full current document once on subscription and
	// again after every change. cancel stops delivery and closes the channel.
	Subscribe(ctx context.Context, id uuid.UUID) (snapshots <-chan *models.Room, cancel func(), err error)
}

// Shared document field names. Each field has a single designated writer: the
// host owns the lifecycle fields, each player owns its own score/total/charge
// entries, and the attack log is append-only.
const (
	FieldStatus    = "status"
	FieldRound     = "round"
	FieldStartTime = "start_ms"
	FieldWinner    = "winner"
	FieldDraw      = "draw"

	fieldHost       = "host"
	fieldGuest      = "guest"
	fieldMaxRounds  = "max_rounds"
	fieldSpectators = "spectators"

	scorePrefix  = "score:"
	totalPrefix  = "total:"
	chargePrefix = "charge:"
)

// ScoreField addresses one player's running round score.
func ScoreField(userID uuid.UUID) string { return scorePrefix + userID.String() }

// TotalField addresses one player's cumulative total.
func TotalField(userID uuid.UUID) string { return totalPrefix + userID.String() }

// ChargeField addresses one player's attack-charge counter.
func ChargeField(userID uuid.UUID) string { return chargePrefix + userID.String() }

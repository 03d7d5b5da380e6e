// internal/store/codec.go
package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soliduel/soliduel/internal/models"
)

// encodeRoom flattens a room document into the hash-field representation
// shared by every Store implementation. The attack log is kept separately.
func encodeRoom(r *models.Room) (map[string]string, error) {
	specs, err := json.Marshal(r.Spectators)
	if err != nil {
		return nil, fmt.Errorf("encode spectators: %w", err)
	}
	fields := map[string]string{
		fieldHost:       r.HostID.String(),
		fieldGuest:      r.GuestID.String(),
		fieldMaxRounds:  strconv.Itoa(r.MaxRounds),
		fieldSpectators: string(specs),
		FieldStatus:     string(r.Status),
		FieldRound:      strconv.Itoa(r.CurrentRound),
		FieldStartTime:  encodeStart(r.StartTime),
		FieldWinner:     r.Winner.String(),
		FieldDraw:       strconv.FormatBool(r.Draw),
	}
	for id, v := range r.Scores {
		fields[ScoreField(id)] = strconv.Itoa(v)
	}
	for id, v := range r.Totals {
		fields[TotalField(id)] = strconv.Itoa(v)
	}
	for id, v := range r.Charges {
		fields[ChargeField(id)] = strconv.Itoa(v)
	}
	return fields, nil
}

// decodeRoom rebuilds a room from its hash fields and attack log.
func decodeRoom(id uuid.UUID, fields map[string]string, attacks []models.AttackEvent) (*models.Room, error) {
	r := &models.Room{
		ID:      id,
		Scores:  map[uuid.UUID]int{},
		Totals:  map[uuid.UUID]int{},
		Charges: map[uuid.UUID]int{},
		Attacks: attacks,
	}
	for k, v := range fields {
		if err := applyField(r, k, v); err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
	}
	return r, nil
}

// applyField sets one encoded field on the room.
func applyField(r *models.Room, key, val string) error {
	switch key {
	case fieldHost:
		id, err := uuid.Parse(val)
		if err != nil {
			return err
		}
		r.HostID = id
	case fieldGuest:
		id, err := uuid.Parse(val)
		if err != nil {
			return err
		}
		r.GuestID = id
	case fieldSpectators:
		return json.Unmarshal([]byte(val), &r.Spectators)
	case fieldMaxRounds:
		n, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		r.MaxRounds = n
	case FieldStatus:
		r.Status = models.RoomStatus(val)
	case FieldRound:
		n, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		r.CurrentRound = n
	case FieldStartTime:
		ms, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return err
		}
		if ms != 0 {
			r.StartTime = time.UnixMilli(ms)
		}
	case FieldWinner:
		id, err := uuid.Parse(val)
		if err != nil {
			return err
		}
		r.Winner = id
	case FieldDraw:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return err
		}
		r.Draw = b
	default:
		var (
			prefix string
			dst    map[uuid.UUID]int
		)
		switch {
		case strings.HasPrefix(key, scorePrefix):
			prefix, dst = scorePrefix, r.Scores
		case strings.HasPrefix(key, totalPrefix):
			prefix, dst = totalPrefix, r.Totals
		case strings.HasPrefix(key, chargePrefix):
			prefix, dst = chargePrefix, r.Charges
		default:
			// Unknown fields are skipped so old clients tolerate new writers.
			return nil
		}
		id, err := uuid.Parse(strings.TrimPrefix(key, prefix))
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		dst[id] = n
	}
	return nil
}

// encodeStart renders the start-time field; a zero time stays "0" so it
// survives the round trip as a still-unset timer.
func encodeStart(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// EncodeInt renders an integer field value.
func EncodeInt(v int) string { return strconv.Itoa(v) }

// EncodeTime renders a timestamp field value in unix milliseconds.
func EncodeTime(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }

// EncodeBool renders a boolean field value.
func EncodeBool(b bool) string { return strconv.FormatBool(b) }

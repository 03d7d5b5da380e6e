// internal/database/match.go
package database

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"

	"github.com/soliduel/soliduel/internal/rating"
	"github.com/soliduel/soliduel/internal/store"
)

// RecordMatch persists one finished match and applies the Elo update for the
// host/guest pair, all inside a single transaction.
func RecordMatch(ctx context.Context, rec *store.MatchRecord) error {
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			INSERT INTO match_results
				(room_id, host_id, guest_id, host_total, guest_total, winner_id, draw, rounds, finished_at)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, '00000000-0000-0000-0000-000000000000')::uuid, $7, $8, to_timestamp($9 / 1000.0))
			ON CONFLICT (room_id) DO NOTHING
		`
		tag, err := tx.Exec(ctx, q,
			rec.RoomID, rec.HostID, rec.GuestID,
			rec.HostTotal, rec.GuestTotal,
			rec.Winner.String(), rec.Draw, rec.Rounds, rec.FinishedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			// Replayed record; ratings were already applied.
			return nil
		}
		return applyRating(ctx, tx, rec)
	})
	if err != nil {
		return fmt.Errorf("record match %s: %w", rec.RoomID, err)
	}
	return nil
}

// applyRating reads both ratings, computes the Elo update from the match
// outcome and writes the new values.
func applyRating(ctx context.Context, tx pgx.Tx, rec *store.MatchRecord) error {
	var hostRating, guestRating int
	row := tx.QueryRow(ctx, `SELECT rating FROM users WHERE id=$1`, rec.HostID)
	if err := row.Scan(&hostRating); err != nil {
		log.Printf("rating skipped, host %s not found: %v", rec.HostID, err)
		return nil
	}
	row = tx.QueryRow(ctx, `SELECT rating FROM users WHERE id=$1`, rec.GuestID)
	if err := row.Scan(&guestRating); err != nil {
		log.Printf("rating skipped, guest %s not found: %v", rec.GuestID, err)
		return nil
	}

	hostScore := 0.5
	if !rec.Draw {
		if rec.Winner == rec.HostID {
			hostScore = 1
		} else {
			hostScore = 0
		}
	}
	newHost, newGuest := rating.Update(hostRating, guestRating, hostScore)

	if _, err := tx.Exec(ctx, `UPDATE users SET rating=$1 WHERE id=$2`, newHost, rec.HostID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE users SET rating=$1 WHERE id=$2`, newGuest, rec.GuestID); err != nil {
		return err
	}
	return nil
}

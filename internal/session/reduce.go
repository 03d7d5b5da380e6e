// internal/session/reduce.go
package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/soliduel/soliduel/internal/models"
	"github.com/soliduel/soliduel/internal/room"
	"github.com/soliduel/soliduel/internal/solitaire"
	"github.com/soliduel/soliduel/internal/store"
)

// ApplySnapshot merges one full room document into local state. Snapshots
// may be re-delivered arbitrarily; the merge is idempotent and attack events
// are de-duplicated by id.
func (s *Session) ApplySnapshot(r *models.Room) {
	now := s.clock()
	prevShared := s.sharedStatus
	s.lastRoom = r
	s.sharedStatus = r.Status

	// A new round zeroes per-round local state so the next playing entry
	// deals a fresh board. A re-delivered snapshot of the current round
	// leaves the board alone.
	if r.CurrentRound != s.round {
		s.round = r.CurrentRound
		if s.status == models.StatusPlaying || s.status == models.StatusIntermission {
			s.board = nil
			s.score.ResetRound()
		}
	}

	switch r.Status {
	case models.StatusRoomWait:
		s.status = models.StatusRoomWait
	case models.StatusCountDown:
		// The shared trigger; each client runs its own local 3-2-1. Only a
		// transition into count_down starts it, a replayed snapshot does not.
		if prevShared != models.StatusCountDown {
			s.beginCountdown(now)
		}
	case models.StatusIntermission:
		if s.status != models.StatusIntermission {
			s.status = models.StatusIntermission
			s.countdownLeft = 0
			s.playAt = time.Time{}
			s.emit(Event{Type: EventRoundOver, State: s.View(now)})
		}
	case models.StatusFinished:
		if s.status != models.StatusFinished {
			s.status = models.StatusFinished
			s.emit(Event{Type: EventMatchOver, State: s.View(now)})
		}
	}

	s.applyAttacks(r, now)
	s.emitState(now)
}

// applyAttacks consumes new attack events addressed to this player: freeze
// one random non-empty column for FreezeDuration. Repeats, replays and
// events for the opponent are ignored; with no eligible column the effect is
// silently dropped.
func (s *Session) applyAttacks(r *models.Room, now time.Time) {
	for _, ev := range r.Attacks {
		if ev.Target != s.UserID {
			continue
		}
		if _, done := s.appliedAttacks[ev.ID]; done {
			continue
		}
		s.appliedAttacks[ev.ID] = struct{}{}

		if s.status != models.StatusPlaying || s.board == nil {
			continue
		}
		col, ok := s.board.RandomFreezableColumn(s.rng)
		if !ok {
			continue
		}
		until := now.Add(FreezeDuration)
		s.board.Freeze(col, until)
		s.frozenSeen[col] = until.UnixMilli()
		s.log.WithFields(logrus.Fields{
			"room":   s.RoomID,
			"user":   s.UserID,
			"attack": ev.ID,
			"column": col,
		}).Info("freeze applied")
		s.emit(Event{Type: EventFrozen, Column: col, Until: until.UnixMilli()})
	}
}

// beginCountdown arms the local 3-2-1 sequence ending in the playing flip.
func (s *Session) beginCountdown(now time.Time) {
	s.status = models.StatusCountDown
	s.countdownLeft = room.CountdownSteps
	s.playAt = time.Time{}
	s.resolved = false
	s.emit(Event{Type: EventCountdown, Countdown: s.countdownLeft})
}

// TickSecond advances the countdown and the round timer.
func (s *Session) TickSecond(now time.Time) {
	switch s.status {
	case models.StatusCountDown:
		if s.countdownLeft > 0 {
			s.countdownLeft--
			if s.countdownLeft > 0 {
				s.emit(Event{Type: EventCountdown, Countdown: s.countdownLeft})
			} else {
				s.playAt = now.Add(room.CountdownGrace)
			}
		}
	case models.StatusPlaying:
		if s.lastRoom == nil {
			return
		}
		left := room.Remaining(s.lastRoom, now, s.matchDuration)
		s.emitState(now)
		// Time-up is only actionable by the host.
		if left == 0 && s.Role == models.RoleHost {
			s.resolveTimeUp(now)
		}
	}
}

// TickCombo is the 100ms tick: it completes the countdown grace period,
// reports freeze expiries and streams state while the combo gauge is live so
// the client sees it drain smoothly between 1-second ticks.
func (s *Session) TickCombo(now time.Time) {
	if s.status == models.StatusCountDown && s.countdownLeft == 0 && !s.playAt.IsZero() && !now.Before(s.playAt) {
		s.enterPlaying(now)
		return
	}
	if s.board == nil {
		return
	}
	live := s.board.FrozenColumns(now)
	for col := range s.frozenSeen {
		if _, still := live[col]; !still {
			delete(s.frozenSeen, col)
			s.emit(Event{Type: EventUnfrozen, Column: col})
		}
	}
	if s.status != models.StatusPlaying {
		return
	}
	if s.score.Combo(now) > 0 {
		s.comboLive = true
		s.emitState(now)
	} else if s.comboLive {
		// One last frame showing the gauge at zero, then quiet until the
		// next chain starts.
		s.comboLive = false
		s.emitState(now)
	}
}

// enterPlaying flips the local state to playing. Host and guest deal a fresh
// deck when arriving with an empty board; rejoining a live round with a board
// already dealt must not redeal, and spectators never deal.
func (s *Session) enterPlaying(now time.Time) {
	s.status = models.StatusPlaying
	s.playAt = time.Time{}
	if s.Role != models.RoleSpectator && (s.board == nil || s.board.CardCount() == 0) {
		s.board = solitaire.NewBoard(solitaire.NewDeck(s.rng))
		s.frozenSeen = make(map[int]int64)
	}
	s.emitState(now)
}

// HandleInput applies one client action.
func (s *Session) HandleInput(in Input) {
	now := s.clock()
	switch in.Kind {
	case InputTap:
		s.handleTap(in.Loc, now)
	case InputStart:
		s.handleStart(now)
	case InputNextRound:
		s.handleNextRound(now)
	case InputConcede:
		s.handleConcede(now)
	case InputSync:
		s.emitState(now)
	default:
		s.emit(Event{Type: EventError, Message: "unknown input"})
	}
}

// handleTap runs one click through the rule engine and scores the outcome.
// Illegal moves clear the selection silently; no error is surfaced.
func (s *Session) handleTap(loc solitaire.Location, now time.Time) {
	if s.Role == models.RoleSpectator {
		s.emit(Event{Type: EventNotice, Message: "spectators cannot play"})
		return
	}
	if s.status != models.StatusPlaying || s.board == nil {
		return
	}

	mv := s.board.Tap(loc, now)
	switch mv.Kind {
	case solitaire.MoveFrozen:
		s.emit(Event{Type: EventNotice, Message: "that column is frozen"})
	case solitaire.MoveRecycle:
		s.score.Recycle()
		s.writeScore()
	case solitaire.MoveFoundation:
		res := s.score.FoundationMove(now)
		if mv.Flipped {
			s.score.Flip()
		}
		s.writeScore()
		if res.AttackReady {
			s.dispatchAttack(now)
		}
	case solitaire.MoveTableau:
		if mv.Flipped {
			s.score.Flip()
			s.writeScore()
		}
	}
	s.emitState(now)
}

// dispatchAttack appends one freeze event targeting the opponent to the
// shared attack log.
func (s *Session) dispatchAttack(now time.Time) {
	if s.lastRoom == nil {
		return
	}
	target, ok := s.lastRoom.Opponent(s.UserID)
	if !ok {
		return
	}
	ev := models.AttackEvent{
		ID:        uuid.New(),
		Target:    target,
		Kind:      models.AttackFreeze,
		Timestamp: now.UnixMilli(),
	}
	// Our own charge already reset; persist it alongside the event.
	s.writeScore()
	ctx, cancel := contextWithWriteTimeout()
	defer cancel()
	if err := s.store.AppendAttack(ctx, s.RoomID, ev); err != nil {
		s.log.WithError(err).WithField("room", s.RoomID).Error("attack append failed")
		s.emit(Event{Type: EventError, Message: "attack could not be sent"})
		return
	}
	s.log.WithFields(logrus.Fields{
		"room":   s.RoomID,
		"attack": ev.ID,
		"target": target,
	}).Info("attack dispatched")
}

// handleStart is the host-only room_wait -> count_down trigger.
func (s *Session) handleStart(now time.Time) {
	if s.lastRoom == nil {
		return
	}
	r := s.lastRoom.Clone()
	if err := room.StartMatch(r, s.UserID, now); err != nil {
		s.emit(Event{Type: EventNotice, Message: err.Error()})
		return
	}
	s.writeFields(map[string]string{
		store.FieldStatus:    string(r.Status),
		store.FieldStartTime: store.EncodeTime(r.StartTime),
	})
}

// handleNextRound is the host-only intermission -> count_down trigger: bump
// the round, zero per-round fields, stamp a fresh start time.
func (s *Session) handleNextRound(now time.Time) {
	if s.lastRoom == nil {
		return
	}
	r := s.lastRoom.Clone()
	if err := room.NextRound(r, s.UserID, now); err != nil {
		s.emit(Event{Type: EventNotice, Message: err.Error()})
		return
	}
	fields := map[string]string{
		store.FieldStatus:    string(r.Status),
		store.FieldRound:     store.EncodeInt(r.CurrentRound),
		store.FieldStartTime: store.EncodeTime(r.StartTime),
	}
	for _, id := range []uuid.UUID{r.HostID, r.GuestID} {
		if id != uuid.Nil {
			fields[store.ScoreField(id)] = store.EncodeInt(0)
			fields[store.ChargeField(id)] = store.EncodeInt(0)
		}
	}
	s.writeFields(fields)
}

// handleConcede requests early termination. From the host this resolves the
// match immediately; from anyone else it is a local no-op with a notice.
func (s *Session) handleConcede(now time.Time) {
	if s.lastRoom == nil {
		return
	}
	if s.Role != models.RoleHost {
		s.emit(Event{Type: EventNotice, Message: "only the host can end the match"})
		return
	}
	r := s.lastRoom.Clone()
	// Fold our own live score in before resolving so the concession counts
	// the current round.
	if s.status == models.StatusPlaying {
		r.Scores[s.UserID] = s.score.Score()
	}
	out, err := room.Concede(r, s.UserID)
	if err != nil {
		s.emit(Event{Type: EventNotice, Message: err.Error()})
		return
	}
	s.persistOutcome(r, out, now)
}

// resolveTimeUp is the host's reaction to the round timer reaching zero:
// fold round scores into cumulative totals and either open the intermission
// or finish the match. It fires once per round; later ticks before the
// snapshot comes back are ignored.
func (s *Session) resolveTimeUp(now time.Time) {
	if s.resolved {
		return
	}
	s.resolved = true
	r := s.lastRoom.Clone()
	// The host's own score field may lag its local engine; resolution uses
	// the local value, the opponent's comes from the document.
	r.Scores[s.UserID] = s.score.Score()
	out, err := room.ResolveRound(r, s.UserID)
	if err != nil {
		// A replayed tick after resolution lands here; nothing to do.
		return
	}
	s.persistOutcome(r, out, now)
}

// persistOutcome writes the host-owned resolution fields and, on a finished
// match, enqueues the archival record.
func (s *Session) persistOutcome(r *models.Room, out room.Outcome, now time.Time) {
	fields := map[string]string{
		store.FieldStatus: string(r.Status),
	}
	for id, total := range r.Totals {
		fields[store.TotalField(id)] = store.EncodeInt(total)
	}
	if out.Finished {
		fields[store.FieldWinner] = r.Winner.String()
		fields[store.FieldDraw] = store.EncodeBool(r.Draw)
	}
	s.writeFields(fields)

	if out.Finished && s.queue != nil {
		rec := store.MatchRecord{
			RoomID:     r.ID,
			HostID:     r.HostID,
			GuestID:    r.GuestID,
			HostTotal:  r.Totals[r.HostID],
			GuestTotal: r.Totals[r.GuestID],
			Winner:     r.Winner,
			Draw:       r.Draw,
			Rounds:     r.CurrentRound,
			FinishedAt: now.UnixMilli(),
		}
		ctx, cancel := contextWithWriteTimeout()
		defer cancel()
		if err := s.queue.EnqueueMatch(ctx, rec); err != nil {
			s.log.WithError(err).WithField("room", r.ID).Error("match archive enqueue failed")
		}
	}
}


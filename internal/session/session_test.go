// internal/session/session_test.go
package session

import (
	"context"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soliduel/soliduel/internal/models"
	"github.com/soliduel/soliduel/internal/room"
	"github.com/soliduel/soliduel/internal/scoring"
	"github.com/soliduel/soliduel/internal/solitaire"
	"github.com/soliduel/soliduel/internal/store"
)

var (
	hostID  = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	guestID = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	specID  = uuid.MustParse("33333333-3333-3333-3333-333333333333")
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

// fixture wires two player sessions to one in-memory store. The session
// loops are not running; tests drive the reducer methods directly and pump
// snapshots by hand.
type fixture struct {
	t     *testing.T
	st    *store.Memory
	clk   *fakeClock
	doc   *models.Room
	host  *Session
	guest *Session
}

func newFixture(t *testing.T, maxRounds int) *fixture {
	t.Helper()
	f := &fixture{
		t:   t,
		st:  store.NewMemory(),
		clk: &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
	f.doc = models.NewRoom(hostID, maxRounds)
	require.NoError(t, f.st.CreateRoom(context.Background(), f.doc))
	f.host = f.join(hostID)
	f.guest = f.join(guestID)
	require.Equal(t, models.RoleHost, f.host.Role)
	require.Equal(t, models.RoleGuest, f.guest.Role)
	return f
}

func (f *fixture) join(userID uuid.UUID) *Session {
	f.t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	s, err := Join(context.Background(), log, f.st, f.doc.ID, userID, Options{
		MatchDuration: 10 * time.Second,
		Queue:         f.st,
		Rand:          rand.New(rand.NewSource(1)),
		Clock:         f.clk.Now,
	})
	require.NoError(f.t, err)
	s.AttachClient()
	return s
}

// pump feeds every pending store snapshot into the session.
func (f *fixture) pump(s *Session) {
	for {
		select {
		case snap := <-s.snapshots:
			s.ApplySnapshot(snap)
		default:
			return
		}
	}
}

func (f *fixture) pumpAll() {
	f.pump(f.host)
	f.pump(f.guest)
}

func drainEvents(s *Session) []Event {
	s.clientMu.Lock()
	ch := s.client
	s.clientMu.Unlock()
	var out []Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func hasEvent(events []Event, typ string) bool {
	for _, ev := range events {
		if ev.Type == typ {
			return true
		}
	}
	return false
}

// start brings the whole room from room_wait into both players' local
// playing state.
func (f *fixture) start() {
	f.t.Helper()
	f.pumpAll()
	f.host.HandleInput(Input{Kind: InputStart})
	f.pumpAll()
	f.runCountdown(f.host)
	f.runCountdown(f.guest)
}

// runCountdown ticks one session through its local 3-2-1 and the grace
// period into playing.
func (f *fixture) runCountdown(s *Session) {
	f.t.Helper()
	require.Equal(f.t, models.StatusCountDown, s.status)
	for i := 0; i < room.CountdownSteps; i++ {
		f.clk.advance(room.CountdownTick)
		s.TickSecond(f.clk.now)
	}
	f.clk.advance(room.CountdownGrace)
	s.TickCombo(f.clk.now)
	require.Equal(f.t, models.StatusPlaying, s.status)
}

// rigBoard swaps in a hand-built board: empty tableau, the given cards on
// the waste (last element on top).
func rigBoard(s *Session, waste ...models.Card) {
	b := solitaire.NewBoard(solitaire.NewDeck(rand.New(rand.NewSource(1))))
	b.Stock = nil
	b.Waste = waste
	for i := range b.Tableau {
		b.Tableau[i] = nil
	}
	s.board = b
}

func fcard(suit models.Suit, value int) models.Card {
	return models.Card{Suit: suit, Value: value, FaceUp: true}
}

func TestThirdJoinBecomesSpectator(t *testing.T) {
	f := newFixture(t, 3)
	spec := f.join(specID)
	assert.Equal(t, models.RoleSpectator, spec.Role)
}

func TestHostStartReachesPlayingWithDealtBoard(t *testing.T) {
	f := newFixture(t, 3)
	f.start()

	require.NotNil(t, f.host.board)
	assert.Equal(t, 52, f.host.board.CardCount())
	require.NotNil(t, f.guest.board)

	// The shared status stays count_down while boards are live.
	doc, err := f.st.GetRoom(context.Background(), f.doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCountDown, doc.Status)
	assert.False(t, doc.StartTime.IsZero())
}

func TestGuestCannotStart(t *testing.T) {
	f := newFixture(t, 3)
	f.pumpAll()
	drainEvents(f.guest)

	f.guest.HandleInput(Input{Kind: InputStart})
	events := drainEvents(f.guest)
	assert.True(t, hasEvent(events, EventNotice))

	doc, err := f.st.GetRoom(context.Background(), f.doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRoomWait, doc.Status)
}

func TestReplayedCountdownSnapshotDoesNotRestart(t *testing.T) {
	f := newFixture(t, 3)
	f.start()

	snap, err := f.st.GetRoom(context.Background(), f.doc.ID)
	require.NoError(t, err)
	f.host.ApplySnapshot(snap)

	assert.Equal(t, models.StatusPlaying, f.host.status, "replay must not rewind into count_down")
	assert.Equal(t, 52, f.host.board.CardCount(), "replay must not redeal")
}

func TestFoundationTapScoresAndSyncs(t *testing.T) {
	f := newFixture(t, 3)
	f.start()
	rigBoard(f.host, fcard(models.SuitHearts, models.RankAce))

	f.host.HandleInput(Input{Kind: InputTap, Loc: solitaire.Location{Pile: solitaire.PileWaste}})

	assert.Equal(t, 20, f.host.score.Score())
	doc, err := f.st.GetRoom(context.Background(), f.doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, doc.Scores[hostID])
	assert.Equal(t, 1, doc.Charges[hostID])

	// The guest observes the opponent score through its next snapshot.
	f.pump(f.guest)
	view := f.guest.View(f.clk.now)
	assert.Equal(t, 20, view.OppScore)
}

func TestComboGaugeStreamsBetweenSeconds(t *testing.T) {
	f := newFixture(t, 3)
	f.start()
	rigBoard(f.host, fcard(models.SuitHearts, models.RankAce))

	f.host.HandleInput(Input{Kind: InputTap, Loc: solitaire.Location{Pile: solitaire.PileWaste}})
	drainEvents(f.host)

	// While the combo is live each 100ms tick streams a state frame with
	// the gauge draining.
	f.clk.advance(300 * time.Millisecond)
	f.host.TickCombo(f.clk.now)
	first := lastState(t, drainEvents(f.host))
	assert.InDelta(t, 90, first.Gauge, 1)

	f.clk.advance(300 * time.Millisecond)
	f.host.TickCombo(f.clk.now)
	second := lastState(t, drainEvents(f.host))
	assert.InDelta(t, 80, second.Gauge, 1)
	assert.Less(t, second.Gauge, first.Gauge)

	// Expiry emits one final zero-gauge frame, then the tick goes quiet.
	f.clk.advance(scoring.ComboWindow)
	f.host.TickCombo(f.clk.now)
	final := lastState(t, drainEvents(f.host))
	assert.Zero(t, final.Gauge)

	f.clk.advance(100 * time.Millisecond)
	f.host.TickCombo(f.clk.now)
	assert.False(t, hasEvent(drainEvents(f.host), EventState))
}

// lastState returns the most recent full state frame among events.
func lastState(t *testing.T, events []Event) *StateView {
	t.Helper()
	var st *StateView
	for _, ev := range events {
		if ev.Type == EventState {
			st = ev.State
		}
	}
	require.NotNil(t, st, "expected at least one state frame")
	return st
}

func TestAttackFreezesOpponentColumnOnce(t *testing.T) {
	f := newFixture(t, 3)
	f.start()
	rigBoard(f.host, fcard(models.SuitHearts, 2), fcard(models.SuitHearts, models.RankAce))
	drainEvents(f.guest)

	// Two chained foundation moves reach the charge threshold and dispatch.
	f.host.HandleInput(Input{Kind: InputTap, Loc: solitaire.Location{Pile: solitaire.PileWaste}})
	f.clk.advance(200 * time.Millisecond)
	f.host.HandleInput(Input{Kind: InputTap, Loc: solitaire.Location{Pile: solitaire.PileWaste}})

	doc, err := f.st.GetRoom(context.Background(), f.doc.ID)
	require.NoError(t, err)
	require.Len(t, doc.Attacks, 1)
	assert.NotEqual(t, uuid.Nil, doc.Attacks[0].ID)
	assert.Equal(t, guestID, doc.Attacks[0].Target)
	assert.Equal(t, models.AttackFreeze, doc.Attacks[0].Kind)
	assert.Equal(t, 0, doc.Charges[hostID], "charge resets on dispatch")

	f.pump(f.guest)
	events := drainEvents(f.guest)
	assert.True(t, hasEvent(events, EventFrozen))
	assert.Len(t, f.guest.board.FrozenColumns(f.clk.now), 1)

	// Replaying the same snapshot must not apply the attack again.
	snap, err := f.st.GetRoom(context.Background(), f.doc.ID)
	require.NoError(t, err)
	f.guest.ApplySnapshot(snap)
	assert.False(t, hasEvent(drainEvents(f.guest), EventFrozen))
	assert.Len(t, f.guest.board.FrozenColumns(f.clk.now), 1)

	// The host's own board is untouched.
	assert.Empty(t, f.host.board.FrozenColumns(f.clk.now))
}

func TestFreezeExpiryEmitsUnfrozen(t *testing.T) {
	f := newFixture(t, 3)
	f.start()
	rigBoard(f.host, fcard(models.SuitHearts, 2), fcard(models.SuitHearts, models.RankAce))

	f.host.HandleInput(Input{Kind: InputTap, Loc: solitaire.Location{Pile: solitaire.PileWaste}})
	f.host.HandleInput(Input{Kind: InputTap, Loc: solitaire.Location{Pile: solitaire.PileWaste}})
	f.pump(f.guest)
	drainEvents(f.guest)

	f.clk.advance(FreezeDuration + 100*time.Millisecond)
	f.guest.TickCombo(f.clk.now)

	events := drainEvents(f.guest)
	assert.True(t, hasEvent(events, EventUnfrozen))
	assert.Empty(t, f.guest.board.FrozenColumns(f.clk.now))
}

func TestAttackBeforePlayingIsDropped(t *testing.T) {
	f := newFixture(t, 3)
	f.pumpAll()

	ev := models.AttackEvent{ID: uuid.New(), Target: guestID, Kind: models.AttackFreeze, Timestamp: f.clk.now.UnixMilli()}
	require.NoError(t, f.st.AppendAttack(context.Background(), f.doc.ID, ev))

	f.pump(f.guest)
	assert.False(t, hasEvent(drainEvents(f.guest), EventFrozen))
	assert.Nil(t, f.guest.board)
}

func TestRecycleAppliesPenalty(t *testing.T) {
	f := newFixture(t, 3)
	f.start()
	rigBoard(f.host, fcard(models.SuitClubs, 9))

	// Stock empty, waste non-empty: the tap recycles.
	f.host.HandleInput(Input{Kind: InputTap, Loc: solitaire.Location{Pile: solitaire.PileStock}})

	assert.Equal(t, -50, f.host.score.Score())
	doc, err := f.st.GetRoom(context.Background(), f.doc.ID)
	require.NoError(t, err)
	assert.Equal(t, -50, doc.Scores[hostID])
}

func TestSpectatorTapsAreRejected(t *testing.T) {
	f := newFixture(t, 3)
	spec := f.join(specID)
	f.start()
	f.pump(spec)
	drainEvents(spec)

	spec.HandleInput(Input{Kind: InputTap, Loc: solitaire.Location{Pile: solitaire.PileStock}})
	assert.True(t, hasEvent(drainEvents(spec), EventNotice))
	assert.Nil(t, spec.board, "spectators never deal a board")
}

func TestHostResolvesTimeUpIntoIntermission(t *testing.T) {
	f := newFixture(t, 3)
	f.start()
	rigBoard(f.host, fcard(models.SuitHearts, models.RankAce))
	f.host.HandleInput(Input{Kind: InputTap, Loc: solitaire.Location{Pile: solitaire.PileWaste}})

	f.clk.advance(11 * time.Second)
	f.host.TickSecond(f.clk.now)

	doc, err := f.st.GetRoom(context.Background(), f.doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusIntermission, doc.Status)
	assert.Equal(t, 20, doc.Totals[hostID])
	assert.Equal(t, 0, doc.Totals[guestID])

	drainEvents(f.host)
	drainEvents(f.guest)
	f.pumpAll()
	assert.Equal(t, models.StatusIntermission, f.host.status)
	assert.Equal(t, models.StatusIntermission, f.guest.status)
	assert.True(t, hasEvent(drainEvents(f.guest), EventRoundOver))
}

func TestGuestTickNeverResolves(t *testing.T) {
	f := newFixture(t, 3)
	f.start()

	f.clk.advance(time.Hour)
	f.guest.TickSecond(f.clk.now)

	doc, err := f.st.GetRoom(context.Background(), f.doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCountDown, doc.Status, "time-up is only actionable by the host")
}

func TestTimeUpResolvesOnlyOnce(t *testing.T) {
	f := newFixture(t, 3)
	f.start()

	f.clk.advance(11 * time.Second)
	f.host.TickSecond(f.clk.now)
	// The snapshot has not come back yet; the next tick must not resolve a
	// second round.
	f.host.TickSecond(f.clk.now.Add(time.Second))

	doc, err := f.st.GetRoom(context.Background(), f.doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusIntermission, doc.Status)
	assert.Equal(t, 1, doc.CurrentRound)
}

func TestNextRoundDealsFreshBoard(t *testing.T) {
	f := newFixture(t, 3)
	f.start()
	rigBoard(f.host, fcard(models.SuitHearts, models.RankAce))
	f.host.HandleInput(Input{Kind: InputTap, Loc: solitaire.Location{Pile: solitaire.PileWaste}})

	f.clk.advance(11 * time.Second)
	f.host.TickSecond(f.clk.now)
	f.pumpAll()
	require.Equal(t, models.StatusIntermission, f.host.status)

	f.host.HandleInput(Input{Kind: InputNextRound})
	f.pumpAll()

	doc, err := f.st.GetRoom(context.Background(), f.doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.CurrentRound)
	assert.Equal(t, 0, doc.Scores[hostID], "per-round fields zeroed")
	assert.Equal(t, 20, doc.Totals[hostID], "totals carry over")

	assert.Equal(t, models.StatusCountDown, f.host.status)
	assert.Zero(t, f.host.score.Score(), "local engine reset for the new round")

	f.runCountdown(f.host)
	assert.Equal(t, 52, f.host.board.CardCount(), "fresh deal")
}

func TestFinalRoundFinishesAndArchives(t *testing.T) {
	f := newFixture(t, 1)
	f.start()
	rigBoard(f.host, fcard(models.SuitHearts, models.RankAce))
	f.host.HandleInput(Input{Kind: InputTap, Loc: solitaire.Location{Pile: solitaire.PileWaste}})

	f.clk.advance(11 * time.Second)
	f.host.TickSecond(f.clk.now)

	doc, err := f.st.GetRoom(context.Background(), f.doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinished, doc.Status)
	assert.Equal(t, hostID, doc.Winner)
	assert.False(t, doc.Draw)

	recs := f.st.Matches()
	require.Len(t, recs, 1)
	assert.Equal(t, f.doc.ID, recs[0].RoomID)
	assert.Equal(t, 20, recs[0].HostTotal)
	assert.Equal(t, 0, recs[0].GuestTotal)
	assert.Equal(t, hostID, recs[0].Winner)

	drainEvents(f.guest)
	f.pumpAll()
	assert.Equal(t, models.StatusFinished, f.guest.status)
	assert.True(t, hasEvent(drainEvents(f.guest), EventMatchOver))
}

func TestEqualTotalsFinishAsDraw(t *testing.T) {
	f := newFixture(t, 1)
	f.start()

	f.clk.advance(11 * time.Second)
	f.host.TickSecond(f.clk.now)

	doc, err := f.st.GetRoom(context.Background(), f.doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinished, doc.Status)
	assert.True(t, doc.Draw)
	assert.Equal(t, uuid.Nil, doc.Winner)
}

func TestGuestConcedeIsRejected(t *testing.T) {
	f := newFixture(t, 3)
	f.start()
	drainEvents(f.guest)

	f.guest.HandleInput(Input{Kind: InputConcede})
	assert.True(t, hasEvent(drainEvents(f.guest), EventNotice))

	doc, err := f.st.GetRoom(context.Background(), f.doc.ID)
	require.NoError(t, err)
	assert.NotEqual(t, models.StatusFinished, doc.Status)
}

func TestHostConcedeFinishesOnCurrentTotals(t *testing.T) {
	f := newFixture(t, 3)
	f.start()
	rigBoard(f.guest, fcard(models.SuitSpades, models.RankAce))
	f.guest.HandleInput(Input{Kind: InputTap, Loc: solitaire.Location{Pile: solitaire.PileWaste}})
	f.pump(f.host)

	f.host.HandleInput(Input{Kind: InputConcede})

	doc, err := f.st.GetRoom(context.Background(), f.doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinished, doc.Status)
	assert.Equal(t, guestID, doc.Winner, "guest's live round score counts")

	recs := f.st.Matches()
	require.Len(t, recs, 1)
	assert.Equal(t, guestID, recs[0].Winner)
}

func TestViewForSpectatorShowsBothAggregates(t *testing.T) {
	f := newFixture(t, 3)
	spec := f.join(specID)
	f.start()

	require.NoError(t, f.st.UpdateFields(context.Background(), f.doc.ID, map[string]string{
		store.ScoreField(hostID):  store.EncodeInt(120),
		store.ScoreField(guestID): store.EncodeInt(95),
	}))
	f.pump(spec)

	v := spec.View(f.clk.now)
	assert.Equal(t, 120, v.Score)
	assert.Equal(t, 95, v.OppScore)
	assert.Nil(t, v.Board)
}

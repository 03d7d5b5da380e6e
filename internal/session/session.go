// internal/session/session.go
//
// A Session is one participant's half of a match: the single-threaded
// reactive loop that owns the local board, scoring engine and timers, and the
// synchronization adapter between them and the shared room document. Local
// input, the 1-second wall-clock tick, the 100ms combo tick and store
// snapshots are independent event sources; each handler runs to completion
// before the next event is consumed.
package session

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/soliduel/soliduel/internal/models"
	"github.com/soliduel/soliduel/internal/room"
	"github.com/soliduel/soliduel/internal/scoring"
	"github.com/soliduel/soliduel/internal/solitaire"
	"github.com/soliduel/soliduel/internal/store"
)

// FreezeDuration is how long an applied attack locks a column.
const FreezeDuration = 5000 * time.Millisecond

// writeTimeout bounds each store write issued from the loop.
const writeTimeout = 3 * time.Second

// Session drives one participant. All fields are owned by the Run goroutine;
// tests may instead call the reducer methods directly.
type Session struct {
	log   *logrus.Logger
	store store.Store
	queue store.MatchQueue // nil: finished matches are not archived

	RoomID uuid.UUID
	UserID uuid.UUID
	Role   models.Role

	board *solitaire.Board
	score *scoring.Engine

	status       models.RoomStatus // local lifecycle state
	sharedStatus models.RoomStatus // last observed document status
	round        int
	lastRoom     *models.Room

	appliedAttacks map[uuid.UUID]struct{}
	frozenSeen     map[int]int64 // for expiry notifications

	countdownLeft int
	playAt        time.Time
	resolved      bool // host: this round's time-up already resolved
	comboLive     bool // a gauge frame was streamed on the last combo tick

	matchDuration time.Duration
	rng           *rand.Rand
	clock         func() time.Time

	inputs    chan Input
	snapshots <-chan *models.Room
	cancelSub func()
	done      chan struct{}

	clientMu   sync.Mutex
	client     chan Event // current transport's outbound channel, nil before attach
	clientShut bool       // loop exited, no further attaches deliver
}

// Options tune a session; zero values select defaults.
type Options struct {
	MatchDuration time.Duration
	Queue         store.MatchQueue
	Rand          *rand.Rand
	Clock         func() time.Time
}

// Join runs the atomic join transaction against the store, subscribes to the
// room document and returns a ready session. The caller starts the loop with
// Run.
func Join(ctx context.Context, log *logrus.Logger, st store.Store, roomID, userID uuid.UUID, opts Options) (*Session, error) {
	role, err := st.Join(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	snaps, cancel, err := st.Subscribe(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if opts.MatchDuration <= 0 {
		opts.MatchDuration = room.DefaultMatchDuration
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	s := &Session{
		log:            log,
		store:          st,
		queue:          opts.Queue,
		RoomID:         roomID,
		UserID:         userID,
		Role:           role,
		score:          scoring.NewEngine(),
		status:         models.StatusRoomWait,
		appliedAttacks: make(map[uuid.UUID]struct{}),
		frozenSeen:     make(map[int]int64),
		matchDuration:  opts.MatchDuration,
		rng:            opts.Rand,
		clock:          opts.Clock,
		inputs:         make(chan Input, 32),
		snapshots:      snaps,
		cancelSub:      cancel,
		done:           make(chan struct{}),
	}
	log.WithFields(logrus.Fields{
		"room": roomID,
		"user": userID,
		"role": role,
	}).Info("joined room")
	return s, nil
}

// Inputs is the mailbox the transport feeds client actions into.
func (s *Session) Inputs() chan<- Input { return s.inputs }

// AttachClient binds a fresh outbound channel for the connection now serving
// this session and closes the previous one, so a superseded connection's
// write pump terminates. A session that has already ended hands back a closed
// channel.
func (s *Session) AttachClient() <-chan Event {
	s.clientMu.Lock()
	defer s.clientMu.Unlock()
	if s.client != nil {
		close(s.client)
		s.client = nil
	}
	ch := make(chan Event, 64)
	if s.clientShut {
		close(ch)
		return ch
	}
	s.client = ch
	return ch
}

// Done closes once the session loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Run consumes the session's event sources until the context ends or the
// subscription closes. Timers governing a lifecycle state die with the loop.
func (s *Session) Run(ctx context.Context) {
	sec := time.NewTicker(time.Second)
	combo := time.NewTicker(100 * time.Millisecond)
	defer close(s.done)
	defer sec.Stop()
	defer combo.Stop()
	defer s.cancelSub()
	defer s.closeClient()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-s.snapshots:
			if !ok {
				s.log.WithField("room", s.RoomID).Warn("room subscription closed")
				return
			}
			s.ApplySnapshot(snap)
		case in := <-s.inputs:
			s.HandleInput(in)
		case t := <-sec.C:
			s.TickSecond(t)
		case t := <-combo.C:
			s.TickCombo(t)
		}
		if s.status == models.StatusFinished {
			return
		}
	}
}

// emit pushes an event without blocking the loop; a slow client drops frames
// and catches up from the next full state.
func (s *Session) emit(ev Event) {
	s.clientMu.Lock()
	defer s.clientMu.Unlock()
	if s.client == nil {
		return
	}
	select {
	case s.client <- ev:
	default:
		s.log.WithFields(logrus.Fields{
			"room": s.RoomID,
			"user": s.UserID,
			"type": ev.Type,
		}).Warn("event channel full, dropping frame")
	}
}

// closeClient ends outbound delivery once the loop is gone.
func (s *Session) closeClient() {
	s.clientMu.Lock()
	defer s.clientMu.Unlock()
	s.clientShut = true
	if s.client != nil {
		close(s.client)
		s.client = nil
	}
}

// emitState publishes the full local view.
func (s *Session) emitState(now time.Time) {
	s.emit(Event{Type: EventState, State: s.View(now)})
}

// View builds the current StateView.
func (s *Session) View(now time.Time) *StateView {
	v := &StateView{
		Status:    s.status,
		Role:      s.Role,
		Round:     s.round,
		MaxRounds: room.DefaultMaxRounds,
		Score:     s.score.Score(),
		Charge:    s.score.Charge(),
		Combo:     s.score.Combo(now),
		Gauge:     s.score.Gauge(now),
	}
	if r := s.lastRoom; r != nil {
		v.Round = r.CurrentRound
		v.MaxRounds = r.MaxRounds
		v.Remaining = int(room.Remaining(r, now, s.matchDuration) / time.Second)
		v.Total = r.Totals[s.UserID]
		if opp, ok := r.Opponent(s.UserID); ok {
			v.OppScore = r.Scores[opp]
			v.OppTotal = r.Totals[opp]
		} else if s.Role == models.RoleSpectator {
			// Spectators watch the host/guest aggregates.
			v.Score = r.Scores[r.HostID]
			v.Total = r.Totals[r.HostID]
			v.OppScore = r.Scores[r.GuestID]
			v.OppTotal = r.Totals[r.GuestID]
		}
		v.Winner = r.Winner
		v.Draw = r.Draw
	}
	if s.board != nil {
		v.Board = s.boardView(now)
	}
	return v
}

func (s *Session) boardView(now time.Time) *BoardView {
	bv := &BoardView{
		Stock:     len(s.board.Stock),
		Waste:     append([]models.Card(nil), s.board.Waste...),
		Selection: s.board.Selection(),
	}
	for i, col := range s.board.Tableau {
		bv.Tableau[i] = append([]models.Card(nil), col...)
	}
	for i, f := range s.board.Foundations {
		bv.Foundations[i] = append([]models.Card(nil), f...)
	}
	frozen := s.board.FrozenColumns(now)
	if len(frozen) > 0 {
		bv.Frozen = make(map[int]int64, len(frozen))
		for col, until := range frozen {
			bv.Frozen[col] = until.UnixMilli()
		}
	}
	return bv
}

// writeFields persists a field subset this participant owns; store failures
// are logged and surfaced as a retryable notice, never fatal.
func (s *Session) writeFields(fields map[string]string) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := s.store.UpdateFields(ctx, s.RoomID, fields); err != nil {
		s.log.WithError(err).WithField("room", s.RoomID).Error("store write failed")
		s.emit(Event{Type: EventError, Message: "could not sync with the room, your next move will retry"})
	}
}

// writeScore persists this player's running score and charge counters.
func (s *Session) writeScore() {
	s.writeFields(map[string]string{
		store.ScoreField(s.UserID):  store.EncodeInt(s.score.Score()),
		store.ChargeField(s.UserID): store.EncodeInt(s.score.Charge()),
	})
}

func contextWithWriteTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), writeTimeout)
}

// internal/scoring/scoring.go
package scoring

import "time"

// Base point values and combo tuning. Only foundation placements participate
// in the combo and attack-charge systems.
const (
	FoundationPoints = 20
	FlipBonus        = 5
	RecyclePenalty   = -50

	// ComboWindow is the rolling window within which consecutive foundation
	// placements chain.
	ComboWindow = 3000 * time.Millisecond

	// ComboStep is the multiplier gained per chained placement.
	ComboStep = 0.2

	// chargeComboThreshold: placements while the combo counter exceeds this
	// add double charge.
	chargeComboThreshold = 2

	// AttackThreshold is the charge at which an attack dispatches and the
	// counter resets.
	AttackThreshold = 2
)

// FoundationResult reports the effect of one foundation placement.
type FoundationResult struct {
	Points      int     // awarded points, multiplier applied and floored
	Combo       int     // combo counter after this placement
	Multiplier  float64 // multiplier that was applied
	ChargeAdded int
	AttackReady bool // charge hit the threshold; counter has been reset
}

// Engine accumulates one player's running round score, combo state and attack
// charge. It is owned by the session loop; no internal locking.
type Engine struct {
	window       time.Duration
	lastMoveTime time.Time
	combo        int
	charge       int
	score        int
}

// NewEngine returns an engine with the standard combo window.
func NewEngine() *Engine {
	return &Engine{window: ComboWindow}
}

// NewEngineWithWindow overrides the combo window, for tests.
func NewEngineWithWindow(w time.Duration) *Engine {
	return &Engine{window: w}
}

// FoundationMove scores a foundation placement at the given instant. A
// placement within the window of the previous one extends the combo;
// otherwise the combo restarts at 1 with no multiplier.
func (e *Engine) FoundationMove(now time.Time) FoundationResult {
	if e.combo > 0 && now.Sub(e.lastMoveTime) <= e.window {
		e.combo++
	} else {
		e.combo = 1
	}
	e.lastMoveTime = now

	mult := 1 + ComboStep*float64(e.combo-1)
	pts := int(float64(FoundationPoints) * mult)
	e.score += pts

	added := 1
	if e.combo > chargeComboThreshold {
		added = 2
	}
	e.charge += added

	res := FoundationResult{
		Points:      pts,
		Combo:       e.combo,
		Multiplier:  mult,
		ChargeAdded: added,
	}
	if e.charge >= AttackThreshold {
		res.AttackReady = true
		e.charge = 0
	}
	return res
}

// Flip awards the bonus for turning a newly exposed tableau card face-up.
func (e *Engine) Flip() int {
	e.score += FlipBonus
	return FlipBonus
}

// Recycle applies the stock-recycle penalty. The running score may go
// negative.
func (e *Engine) Recycle() int {
	e.score += RecyclePenalty
	return RecyclePenalty
}

// Combo returns the live combo counter: 0 once the window since the last
// qualifying move has elapsed.
func (e *Engine) Combo(now time.Time) int {
	if e.combo == 0 || now.Sub(e.lastMoveTime) > e.window {
		return 0
	}
	return e.combo
}

// Gauge derives the visible combo countdown as a 0..100 percentage of the
// remaining window.
func (e *Engine) Gauge(now time.Time) int {
	if e.Combo(now) == 0 {
		return 0
	}
	elapsed := now.Sub(e.lastMoveTime)
	g := 100 * (1 - float64(elapsed)/float64(e.window))
	if g < 0 {
		return 0
	}
	return int(g)
}

// Score returns the running round score.
func (e *Engine) Score() int { return e.score }

// Charge returns the pending attack charge.
func (e *Engine) Charge() int { return e.charge }

// ResetRound zeroes all per-round state for the next deal.
func (e *Engine) ResetRound() {
	e.combo = 0
	e.charge = 0
	e.score = 0
	e.lastMoveTime = time.Time{}
}

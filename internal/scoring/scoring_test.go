// internal/scoring/scoring_test.go
package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestFoundationComboProgression(t *testing.T) {
	e := NewEngine()

	r1 := e.FoundationMove(t0)
	assert.Equal(t, 1, r1.Combo)
	assert.InDelta(t, 1.0, r1.Multiplier, 1e-9)
	assert.Equal(t, 20, r1.Points)

	r2 := e.FoundationMove(t0.Add(time.Second))
	assert.Equal(t, 2, r2.Combo)
	assert.InDelta(t, 1.2, r2.Multiplier, 1e-9)
	assert.Equal(t, 24, r2.Points)

	r3 := e.FoundationMove(t0.Add(2 * time.Second))
	assert.Equal(t, 3, r3.Combo)
	assert.InDelta(t, 1.4, r3.Multiplier, 1e-9)
	assert.Equal(t, 28, r3.Points)

	assert.Equal(t, 20+24+28, e.Score())
}

func TestComboResetsAfterWindow(t *testing.T) {
	e := NewEngine()
	e.FoundationMove(t0)
	e.FoundationMove(t0.Add(time.Second))

	// Past the window: the chain restarts at 1 with no multiplier.
	r := e.FoundationMove(t0.Add(time.Second + ComboWindow + time.Millisecond))
	assert.Equal(t, 1, r.Combo)
	assert.Equal(t, 20, r.Points)
}

func TestComboExactWindowBoundaryStillChains(t *testing.T) {
	e := NewEngine()
	e.FoundationMove(t0)
	r := e.FoundationMove(t0.Add(ComboWindow))
	assert.Equal(t, 2, r.Combo)
}

func TestChargeDispatchesAtThreshold(t *testing.T) {
	e := NewEngine()

	r1 := e.FoundationMove(t0)
	assert.Equal(t, 1, r1.ChargeAdded)
	assert.False(t, r1.AttackReady)
	assert.Equal(t, 1, e.Charge())

	r2 := e.FoundationMove(t0.Add(time.Second))
	assert.True(t, r2.AttackReady)
	assert.Equal(t, 0, e.Charge(), "charge resets on dispatch")
}

func TestDeepComboAddsDoubleCharge(t *testing.T) {
	e := NewEngine()
	e.FoundationMove(t0)                  // combo 1, charge 1
	e.FoundationMove(t0.Add(time.Second)) // combo 2, dispatch, charge 0
	r3 := e.FoundationMove(t0.Add(2 * time.Second))

	assert.Equal(t, 2, r3.ChargeAdded)
	assert.True(t, r3.AttackReady, "double charge alone reaches the threshold")
	assert.Equal(t, 0, e.Charge())
}

func TestFlipAndRecycle(t *testing.T) {
	e := NewEngine()
	assert.Equal(t, FlipBonus, e.Flip())
	assert.Equal(t, 5, e.Score())

	assert.Equal(t, RecyclePenalty, e.Recycle())
	assert.Equal(t, -45, e.Score(), "running score may go negative")
}

func TestFlipDoesNotTouchCombo(t *testing.T) {
	e := NewEngine()
	e.FoundationMove(t0)
	e.Flip()
	assert.Equal(t, 1, e.Combo(t0.Add(time.Second)))

	r := e.FoundationMove(t0.Add(time.Second))
	assert.Equal(t, 2, r.Combo, "flip neither extends nor breaks the chain")
}

func TestComboDecayedView(t *testing.T) {
	e := NewEngine()
	assert.Equal(t, 0, e.Combo(t0))

	e.FoundationMove(t0)
	assert.Equal(t, 1, e.Combo(t0.Add(time.Second)))
	assert.Equal(t, 0, e.Combo(t0.Add(ComboWindow+time.Millisecond)))
}

func TestGauge(t *testing.T) {
	e := NewEngineWithWindow(2 * time.Second)
	e.FoundationMove(t0)

	assert.Equal(t, 100, e.Gauge(t0))
	assert.Equal(t, 50, e.Gauge(t0.Add(time.Second)))
	assert.Equal(t, 0, e.Gauge(t0.Add(3*time.Second)))
}

func TestResetRound(t *testing.T) {
	e := NewEngine()
	e.FoundationMove(t0)
	e.Flip()
	require.NotZero(t, e.Score())

	e.ResetRound()
	assert.Zero(t, e.Score())
	assert.Zero(t, e.Charge())
	assert.Zero(t, e.Combo(t0))

	// A placement after the reset starts a fresh chain.
	r := e.FoundationMove(t0.Add(time.Millisecond))
	assert.Equal(t, 1, r.Combo)
}

// internal/solitaire/board.go
package solitaire

import (
	"time"

	"github.com/soliduel/soliduel/internal/models"
)

const (
	// TableauColumns is the number of play columns dealt per board.
	TableauColumns = 7
	// FoundationPiles is one build pile per suit.
	FoundationPiles = 4
)

// PileKind identifies one of the four pile families on a board.
type PileKind string

const (
	PileStock      PileKind = "stock"
	PileWaste      PileKind = "waste"
	PileTableau    PileKind = "tableau"
	PileFoundation PileKind = "foundation"
)

// Location references a card position on the board. Index selects the pile
// within its family (always 0 for stock/waste); Card is the card index within
// a tableau column and is ignored for the other pile kinds, which only expose
// their top card.
type Location struct {
	Pile  PileKind
	Index int
	Card  int
}

// MoveKind classifies the outcome of a tap.
type MoveKind int

const (
	// MoveNone: the tap changed nothing (empty pile, face-down card, illegal
	// destination with no selection armed, ...).
	MoveNone MoveKind = iota
	// MoveSelected: the tap armed a selection.
	MoveSelected
	// MoveDeselected: the tap cleared the armed selection without moving.
	MoveDeselected
	// MoveStockDraw: top of stock turned onto the waste.
	MoveStockDraw
	// MoveRecycle: the waste was turned back into the stock.
	MoveRecycle
	// MoveFoundation: a card landed on a foundation.
	MoveFoundation
	// MoveTableau: a card or run landed on a tableau column.
	MoveTableau
	// MoveFrozen: the tap touched a frozen column and was rejected.
	MoveFrozen
)

// Move is the result of a single tap, carrying what the scoring layer needs.
type Move struct {
	Kind    MoveKind
	Flipped bool // a newly exposed tableau card was turned face-up
}

// Board is one player's deal. It is owned by a single goroutine (the session
// loop); it has no internal locking.
type Board struct {
	Stock       []models.Card
	Waste       []models.Card
	Tableau     [TableauColumns][]models.Card
	Foundations [FoundationPiles][]models.Card

	selection *Location
	frozen    map[int]time.Time
}

// NewBoard deals a board from the given deck: columns of 1..7 cards with only
// the last card face-up, remaining 24 cards to the stock face-down.
func NewBoard(deck []models.Card) *Board {
	b := &Board{frozen: make(map[int]time.Time)}
	next := 0
	for col := 0; col < TableauColumns; col++ {
		for i := 0; i <= col; i++ {
			c := deck[next]
			next++
			c.FaceUp = i == col
			b.Tableau[col] = append(b.Tableau[col], c)
		}
	}
	for ; next < len(deck); next++ {
		b.Stock = append(b.Stock, deck[next].Flipped(false))
	}
	return b
}

// Selection returns the currently armed source, or nil.
func (b *Board) Selection() *Location {
	return b.selection
}

// ClearSelection disarms any pending selection.
func (b *Board) ClearSelection() {
	b.selection = nil
}

// CanPlaceOnFoundation reports whether card may land on foundation fi: a bare
// Ace on an empty pile, else same suit and exactly one rank higher than the
// current top.
func (b *Board) CanPlaceOnFoundation(c models.Card, fi int) bool {
	if fi < 0 || fi >= FoundationPiles {
		return false
	}
	pile := b.Foundations[fi]
	if len(pile) == 0 {
		return c.Value == models.RankAce
	}
	top := pile[len(pile)-1]
	return c.Suit == top.Suit && c.Value == top.Value+1
}

// CanPlaceOnTableau reports whether card may land on column col: a bare King
// on an empty column, else opposite color and exactly one rank lower than the
// current top.
func (b *Board) CanPlaceOnTableau(c models.Card, col int) bool {
	if col < 0 || col >= TableauColumns {
		return false
	}
	pile := b.Tableau[col]
	if len(pile) == 0 {
		return c.Value == models.RankKing
	}
	top := pile[len(pile)-1]
	return c.Color() != top.Color() && c.Value == top.Value-1
}

// DrawStock turns the top stock card onto the waste. When the stock is empty
// it recycles a non-empty waste back into the stock, face-down, preserving
// relative order; the recycle penalty is the scoring layer's concern.
func (b *Board) DrawStock() Move {
	if len(b.Stock) > 0 {
		c := b.Stock[len(b.Stock)-1]
		b.Stock = b.Stock[:len(b.Stock)-1]
		b.Waste = append(b.Waste, c.Flipped(true))
		return Move{Kind: MoveStockDraw}
	}
	if len(b.Waste) == 0 {
		return Move{Kind: MoveNone}
	}
	for i := len(b.Waste) - 1; i >= 0; i-- {
		b.Stock = append(b.Stock, b.Waste[i].Flipped(false))
	}
	b.Waste = nil
	return Move{Kind: MoveRecycle}
}

// cardAt resolves a location to its card, reporting false for empty piles or
// out-of-range references.
func (b *Board) cardAt(loc Location) (models.Card, bool) {
	switch loc.Pile {
	case PileWaste:
		if len(b.Waste) == 0 {
			return models.Card{}, false
		}
		return b.Waste[len(b.Waste)-1], true
	case PileFoundation:
		if loc.Index < 0 || loc.Index >= FoundationPiles || len(b.Foundations[loc.Index]) == 0 {
			return models.Card{}, false
		}
		pile := b.Foundations[loc.Index]
		return pile[len(pile)-1], true
	case PileTableau:
		if loc.Index < 0 || loc.Index >= TableauColumns {
			return models.Card{}, false
		}
		pile := b.Tableau[loc.Index]
		if loc.Card < 0 || loc.Card >= len(pile) {
			return models.Card{}, false
		}
		return pile[loc.Card], true
	}
	return models.Card{}, false
}

// removeFrom takes count cards starting at the selected location out of their
// source pile and returns them. The caller has already validated the move.
// Returns whether the removal exposed and flipped a face-down tableau card.
func (b *Board) removeFrom(loc Location) (run []models.Card, flipped bool) {
	switch loc.Pile {
	case PileWaste:
		run = []models.Card{b.Waste[len(b.Waste)-1]}
		b.Waste = b.Waste[:len(b.Waste)-1]
	case PileFoundation:
		pile := b.Foundations[loc.Index]
		run = []models.Card{pile[len(pile)-1]}
		b.Foundations[loc.Index] = pile[:len(pile)-1]
	case PileTableau:
		pile := b.Tableau[loc.Index]
		run = append(run, pile[loc.Card:]...)
		b.Tableau[loc.Index] = pile[:loc.Card]
		rest := b.Tableau[loc.Index]
		if len(rest) > 0 && !rest[len(rest)-1].FaceUp {
			rest[len(rest)-1] = rest[len(rest)-1].Flipped(true)
			flipped = true
		}
	}
	return run, flipped
}

// selectionMovable reports whether the armed selection may act as a move
// source: tableau selections must start a face-up run, waste and foundation
// selections are their top card.
func (b *Board) selectionMovable(loc Location) bool {
	c, ok := b.cardAt(loc)
	return ok && c.FaceUp
}

// isTopmost reports whether loc references the top card of its pile.
func (b *Board) isTopmost(loc Location) bool {
	if loc.Pile == PileTableau {
		return loc.Card == len(b.Tableau[loc.Index])-1
	}
	return true
}

// Tap applies one click to the board and returns its outcome.
//
// With no selection armed: tapping the stock draws (or recycles); tapping a
// topmost face-up waste or tableau card first tries every foundation in index
// order and moves there on the first acceptor; otherwise the tap arms a
// selection. With a selection armed: tapping the identical location toggles
// the selection off, a legal destination executes the move, and anything else
// silently clears the selection.
//
// Any tap touching a frozen column, as source or destination, is rejected.
func (b *Board) Tap(loc Location, now time.Time) Move {
	if loc.Pile == PileTableau && b.IsFrozen(loc.Index, now) {
		b.selection = nil
		return Move{Kind: MoveFrozen}
	}
	if b.selection != nil {
		return b.tapWithSelection(loc, now)
	}

	switch loc.Pile {
	case PileStock:
		return b.DrawStock()
	case PileWaste, PileTableau:
		c, ok := b.cardAt(loc)
		if !ok || !c.FaceUp {
			return Move{Kind: MoveNone}
		}
		// Smart move: topmost cards route straight to a foundation when one
		// accepts, bypassing manual destination selection.
		if b.isTopmost(loc) {
			for fi := 0; fi < FoundationPiles; fi++ {
				if b.CanPlaceOnFoundation(c, fi) {
					run, flipped := b.removeFrom(loc)
					b.Foundations[fi] = append(b.Foundations[fi], run[0])
					return Move{Kind: MoveFoundation, Flipped: flipped}
				}
			}
		}
		b.selection = &loc
		return Move{Kind: MoveSelected}
	case PileFoundation:
		if _, ok := b.cardAt(loc); !ok {
			return Move{Kind: MoveNone}
		}
		b.selection = &loc
		return Move{Kind: MoveSelected}
	}
	return Move{Kind: MoveNone}
}

// tapWithSelection resolves the second click of a two-click move.
func (b *Board) tapWithSelection(loc Location, now time.Time) Move {
	src := *b.selection
	b.selection = nil

	if src == loc {
		return Move{Kind: MoveDeselected}
	}
	if src.Pile == PileTableau && b.IsFrozen(src.Index, now) {
		return Move{Kind: MoveFrozen}
	}
	if !b.selectionMovable(src) {
		return Move{Kind: MoveNone}
	}
	c, _ := b.cardAt(src)

	switch loc.Pile {
	case PileFoundation:
		// Foundations take single cards only; a tableau source must be its
		// column's top card.
		if !b.isTopmost(src) || !b.CanPlaceOnFoundation(c, loc.Index) {
			return Move{Kind: MoveDeselected}
		}
		run, flipped := b.removeFrom(src)
		b.Foundations[loc.Index] = append(b.Foundations[loc.Index], run[0])
		return Move{Kind: MoveFoundation, Flipped: flipped}
	case PileTableau:
		if !b.CanPlaceOnTableau(c, loc.Index) {
			return Move{Kind: MoveDeselected}
		}
		run, flipped := b.removeFrom(src)
		b.Tableau[loc.Index] = append(b.Tableau[loc.Index], run...)
		return Move{Kind: MoveTableau, Flipped: flipped}
	}
	return Move{Kind: MoveDeselected}
}

// CardCount returns the total number of cards across every pile. It is 52 for
// any legally reachable board.
func (b *Board) CardCount() int {
	n := len(b.Stock) + len(b.Waste)
	for _, col := range b.Tableau {
		n += len(col)
	}
	for _, f := range b.Foundations {
		n += len(f)
	}
	return n
}

// Cleared reports whether every card has reached a foundation.
func (b *Board) Cleared() bool {
	n := 0
	for _, f := range b.Foundations {
		n += len(f)
	}
	return n == 52
}

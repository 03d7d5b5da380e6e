// internal/models/card.go
package models

// Suit identifies one of the four French suits.
type Suit string

const (
	SuitSpades   Suit = "S"
	SuitHearts   Suit = "H"
	SuitClubs    Suit = "C"
	SuitDiamonds Suit = "D"
)

// Suits lists all suits in foundation index order.
var Suits = []Suit{SuitSpades, SuitHearts, SuitClubs, SuitDiamonds}

// Color is the red/black pairing of suits.
type Color int

const (
	Black Color = iota
	Red
)

// Color returns the color of the suit: hearts and diamonds are red.
func (s Suit) Color() Color {
	if s == SuitHearts || s == SuitDiamonds {
		return Red
	}
	return Black
}

// Rank values; Ace is low, King is high.
const (
	RankAce  = 1
	RankKing = 13
)

var rankNames = map[int]string{
	1: "A", 2: "2", 3: "3", 4: "4", 5: "5", 6: "6", 7: "7",
	8: "8", 9: "9", 10: "T", 11: "J", 12: "Q", 13: "K",
}

// Card is an immutable card value plus its face-up flag. Moves between piles
// always copy the value; a flip produces a new Card rather than mutating one
// referenced elsewhere.
type Card struct {
	Suit   Suit `json:"suit"`
	Value  int  `json:"value"`
	FaceUp bool `json:"faceUp"`
}

// Rank returns the display rank ("A".."K") for the card's value.
func (c Card) Rank() string {
	return rankNames[c.Value]
}

// Color returns the card's color, fixed per suit pair.
func (c Card) Color() Color {
	return c.Suit.Color()
}

// Flipped returns a copy of the card with the given face-up state.
func (c Card) Flipped(faceUp bool) Card {
	c.FaceUp = faceUp
	return c
}

func (c Card) String() string {
	return c.Rank() + string(c.Suit)
}

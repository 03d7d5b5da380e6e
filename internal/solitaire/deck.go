// internal/solitaire/deck.go
package solitaire

import (
	"math/rand"

	"github.com/soliduel/soliduel/internal/models"
)

// NewDeck returns all 52 cards, one per (suit, rank) pair, face-down, in a
// uniformly random order. The shuffle is a pure function of the supplied
// random source.
func NewDeck(r *rand.Rand) []models.Card {
	deck := make([]models.Card, 0, 52)
	for _, suit := range models.Suits {
		for v := models.RankAce; v <= models.RankKing; v++ {
			deck = append(deck, models.Card{Suit: suit, Value: v})
		}
	}
	r.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}

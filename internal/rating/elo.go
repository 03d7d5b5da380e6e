// internal/rating/elo.go
package rating

import "math"

// DefaultRating is the rating assigned to new players.
const DefaultRating = 1500

// KFactor controls how far one match moves a rating.
const KFactor = 32

// Expected returns the expected score of a player rated a against one rated
// b, in [0, 1].
func Expected(a, b int) float64 {
	return 1 / (1 + math.Pow(10, float64(b-a)/400))
}

// Update returns the post-match ratings for two players. score is the first
// player's actual result: 1 for a win, 0.5 for a draw, 0 for a loss.
func Update(a, b int, score float64) (int, int) {
	ea := Expected(a, b)
	na := float64(a) + KFactor*(score-ea)
	nb := float64(b) + KFactor*((1-score)-(1-ea))
	return int(math.Round(na)), int(math.Round(nb))
}

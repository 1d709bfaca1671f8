// internal/game/score.go
//
// Length-based word scoring.

package game

// Score returns the points for a word. It depends on length only and is used
// both to award a word and to take it back under the cancellation rule.
func Score(word string) int {
	switch n := len(word); {
	case n <= 3:
		return 1
	case n == 4:
		return 2
	case n == 5:
		return 4
	case n == 6:
		return 6
	case n == 7:
		return 8
	default:
		return 10
	}
}

// internal/game/path.go
//
// Path validator: depth-first search over 8-connected cells with a visited
// bitset. Grids are at most 8×8, so one uint64 holds the visited set.

package game

import "strings"

// IsReachable reports whether word can be traced on g as a path of distinct,
// 8-adjacent cells. Any cell holding the first letter is a valid start.
func IsReachable(word string, g Grid) bool {
	word = strings.ToLower(word)
	n := g.size
	if word == "" || n == 0 || len(word) > n*n {
		return false
	}
	for i := 0; i < n*n; i++ {
		if g.cells[i] == word[0] && extend(g, word, 1, i, uint64(1)<<i) {
			return true
		}
	}
	return false
}

// extend depth-first searches for word[k:] starting next to cell at.
// visited holds one bit per cell already on the current path.
func extend(g Grid, word string, k, at int, visited uint64) bool {
	if k == len(word) {
		return true
	}
	n := g.size
	row, col := at/n, at%n
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			r, c := row+dr, col+dc
			if r < 0 || r >= n || c < 0 || c >= n {
				continue
			}
			next := r*n + c
			bit := uint64(1) << next
			if visited&bit != 0 || g.cells[next] != word[k] {
				continue
			}
			if extend(g, word, k+1, next, visited|bit) {
				return true
			}
		}
	}
	return false
}

// internal/game/grid.go
//
// Letter grid and its generator.
//
// A generated grid never repeats a letter, so every letter has at most one
// starting cell. Grids built with ParseGrid may repeat letters; the path
// validator handles both.

package game

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
)

const (
	vowels     = "aeiou"
	consonants = "bcdfghjklmnpqrstvwxyz"

	// DefaultGridSize is the side of a standard board.
	DefaultGridSize = 4

	// maxParsedSize keeps N² within the validator's 64-bit visited set.
	maxParsedSize = 8
)

// Position addresses one cell.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Grid is an immutable N×N board of lowercase letters. The zero value is empty.
type Grid struct {
	size  int
	cells []byte // row-major
}

// Size returns N.
func (g Grid) Size() int { return g.size }

// Empty reports whether no board has been dealt.
func (g Grid) Empty() bool { return g.size == 0 }

// At returns the letter at p.
func (g Grid) At(p Position) byte { return g.cells[p.Row*g.size+p.Col] }

// Rows renders the grid as rows of single-letter strings.
func (g Grid) Rows() [][]string {
	if g.size == 0 {
		return nil
	}
	out := make([][]string, g.size)
	for r := 0; r < g.size; r++ {
		row := make([]string, g.size)
		for c := 0; c < g.size; c++ {
			row[c] = string(g.cells[r*g.size+c])
		}
		out[r] = row
	}
	return out
}

// MarshalJSON encodes the grid as [][]string.
func (g Grid) MarshalJSON() ([]byte, error) { return json.Marshal(g.Rows()) }

// String joins rows with '/', e.g. "ca/tx".
func (g Grid) String() string {
	var b strings.Builder
	for r := 0; r < g.size; r++ {
		if r > 0 {
			b.WriteByte('/')
		}
		b.Write(g.cells[r*g.size : (r+1)*g.size])
	}
	return b.String()
}

// ParseGrid builds a grid from equal-length rows of a–z letters, e.g.
// ParseGrid("ab", "ac"). Repeated letters are allowed.
func ParseGrid(rows ...string) (Grid, error) {
	n := len(rows)
	if n == 0 || n > maxParsedSize {
		return Grid{}, fmt.Errorf("grid with %d rows: %w", n, ErrConfiguration)
	}
	cells := make([]byte, 0, n*n)
	for i, row := range rows {
		row = strings.ToLower(row)
		if len(row) != n {
			return Grid{}, fmt.Errorf("row %d has %d letters, want %d: %w", i, len(row), n, ErrConfiguration)
		}
		for j := 0; j < n; j++ {
			if row[j] < 'a' || row[j] > 'z' {
				return Grid{}, fmt.Errorf("row %d: %q is not a letter: %w", i, row[j], ErrConfiguration)
			}
		}
		cells = append(cells, row...)
	}
	return Grid{size: n, cells: cells}, nil
}

// ValidateGridSize checks that size×size distinct letters exist.
func ValidateGridSize(size int) error {
	if size < 1 || size*size > len(vowels)+len(consonants) {
		return fmt.Errorf("grid size %d needs %d distinct letters: %w", size, size*size, ErrConfiguration)
	}
	return nil
}

// VowelTarget is floor(size²·0.4), capped at the number of vowels.
func VowelTarget(size int) int {
	return min(size*size*4/10, len(vowels))
}

// GenerateGrid deals a fresh size×size board: distinct vowels first, distinct
// consonants for the remaining cells, then a uniform shuffle of placement.
// Each call is an independent draw.
func GenerateGrid(size int) (Grid, error) {
	if err := ValidateGridSize(size); err != nil {
		return Grid{}, err
	}
	total := size * size
	nv := VowelTarget(size)

	letters := make([]byte, 0, total)
	letters = append(letters, pick(vowels, nv)...)
	letters = append(letters, pick(consonants, total-nv)...)
	rand.Shuffle(len(letters), func(i, j int) { letters[i], letters[j] = letters[j], letters[i] })

	return Grid{size: size, cells: letters}, nil
}

// pick draws k distinct letters from set without replacement.
func pick(set string, k int) []byte {
	out := make([]byte, 0, k)
	for _, i := range rand.Perm(len(set))[:k] {
		out = append(out, set[i])
	}
	return out
}

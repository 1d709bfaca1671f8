// internal/words/words.go
//
// Dictionary oracle for the game engine: a set-membership test over a word
// list. Implements game.Dictionary.
//
// Sources:
//   - Load(path, minLen): one word per line from a file (WORDS_FILE).
//   - Default(minLen):    the list embedded in the assets package.
//
// Lines are trimmed and lowercased; anything that is not purely a–z or is
// shorter than minLen is skipped. Blank lines and '#' comments are ignored.

package words

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jeffreyp/wordgame/assets"
)

// Dictionary is an immutable word set, safe for concurrent reads.
type Dictionary struct {
	set map[string]struct{}
}

// New builds a Dictionary from words, applying the minLen filter.
func New(list []string, minLen int) *Dictionary {
	d := &Dictionary{set: make(map[string]struct{}, len(list))}
	for _, w := range list {
		w = strings.TrimSpace(strings.ToLower(w))
		if len(w) >= minLen && isAlpha(w) {
			d.set[w] = struct{}{}
		}
	}
	return d
}

// Load reads a word file. It fails if no usable word remains.
func Load(path string, minLen int) (*Dictionary, error) {
	list, err := readWordFile(path)
	if err != nil {
		return nil, fmt.Errorf("words: read %s: %w", path, err)
	}
	return nonEmpty(New(list, minLen))
}

// Default returns the embedded dictionary.
func Default(minLen int) (*Dictionary, error) {
	list, err := assets.WordList()
	if err != nil {
		return nil, fmt.Errorf("words: embedded list: %w", err)
	}
	return nonEmpty(New(list, minLen))
}

func nonEmpty(d *Dictionary) (*Dictionary, error) {
	if d.Len() == 0 {
		return nil, errors.New("words: dictionary is empty")
	}
	return d, nil
}

// Contains reports whether w is a known word. w is expected lowercase.
func (d *Dictionary) Contains(w string) bool {
	_, ok := d.set[w]
	return ok
}

// Len returns the number of words.
func (d *Dictionary) Len() int { return len(d.set) }

// readWordFile loads one word per line, skipping blanks and comments.
func readWordFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

// isAlpha reports whether s is all lowercase ASCII letters.
func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

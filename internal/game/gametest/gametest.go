// Package gametest provides deterministic collaborators for engine tests:
// a manually advanced clock, a fixed word list and a fixed board.
package gametest

import (
	"sort"
	"sync"
	"time"

	"github.com/jeffreyp/wordgame/internal/game"
)

// Clock is a game.Clock whose time only moves on Advance.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*timer
}

type timer struct {
	clock *Clock
	at    time.Time
	f     func()
	done  bool // fired or stopped
}

// NewClock starts at t.
func NewClock(t time.Time) *Clock { return &Clock{now: t} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) AfterFunc(d time.Duration, f func()) game.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &timer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Pending counts timers that have neither fired nor been stopped.
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done {
			n++
		}
	}
	return n
}

// Advance moves time forward and runs due callbacks in deadline order on the
// calling goroutine, outside the clock lock.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*timer
	for _, t := range c.timers {
		if !t.done && !t.at.After(c.now) {
			t.done = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

func (t *timer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// Words is a fixed dictionary.
type Words map[string]struct{}

// NewWords builds a dictionary of the given lowercase words.
func NewWords(words ...string) Words {
	w := make(Words, len(words))
	for _, s := range words {
		w[s] = struct{}{}
	}
	return w
}

func (w Words) Contains(word string) bool {
	_, ok := w[word]
	return ok
}

// Board is a 4×4 grid used across tests. Reachable words include
// "kite", "kit", "bat", "tab", "long" and "snob"; "tie" and "song" are not.
//
//	k i t e
//	r a b s
//	l o n g
//	m u p h
var Board = MustGrid("kite", "rabs", "long", "muph")

// Dictionary accepts the Board words above plus a few that cannot be traced.
var Dictionary = NewWords("kite", "kit", "bat", "tab", "long", "snob", "tie", "song", "zebra")

// MustGrid parses rows or panics.
func MustGrid(rows ...string) game.Grid {
	g, err := game.ParseGrid(rows...)
	if err != nil {
		panic(err)
	}
	return g
}

// Deal always returns g, for game.Options.Deal.
func Deal(g game.Grid) func(int) (game.Grid, error) {
	return func(int) (game.Grid, error) { return g, nil }
}

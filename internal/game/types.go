// internal/game/types.go
//
// Core type definitions for the word-grid game engine.
// Defines:
//   - Status: round state of a session (waiting/playing/finished).
//   - Player: one seat in a room, with its score and accepted words.
//   - Reason: why a submitted word was rejected.
//   - SubmitResult, PlayerView, StatusView: values handed to transports.
//   - Event: notifications emitted by a Session for push transports.

package game

import "time"

// Status is the round state of a Session.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// MaxPlayers is the seat capacity of a room.
const MaxPlayers = 2

// Dictionary answers whether a lowercase string is a recognized word.
type Dictionary interface {
	Contains(word string) bool
}

// Reason explains a rejected submission. Rejections are values, not errors.
type Reason string

const (
	ReasonAlreadyUsed Reason = "already used"
	ReasonNotAWord    Reason = "not in dictionary"
	ReasonUnreachable Reason = "cannot be formed from grid"
)

// Player is one participant of a Session. Only the owning Session mutates it.
type Player struct {
	ID    string
	Name  string
	Score int
	Words []string // accepted words, insertion order

	seen map[string]struct{}
}

// NewPlayer returns a player with no score and no words.
func NewPlayer(id, name string) *Player {
	return &Player{ID: id, Name: name, Words: []string{}, seen: make(map[string]struct{})}
}

func (p *Player) has(word string) bool {
	_, ok := p.seen[word]
	return ok
}

func (p *Player) add(word string, points int) {
	p.seen[word] = struct{}{}
	p.Words = append(p.Words, word)
	p.Score += points
}

func (p *Player) remove(word string, points int) {
	if !p.has(word) {
		return
	}
	delete(p.seen, word)
	for i, w := range p.Words {
		if w == word {
			p.Words = append(p.Words[:i], p.Words[i+1:]...)
			break
		}
	}
	p.Score -= points
}

func (p *Player) reset() {
	p.Score = 0
	p.Words = []string{}
	p.seen = make(map[string]struct{})
}

// SubmitResult is the outcome of one word submission.
type SubmitResult struct {
	Word       string `json:"word"`
	Accepted   bool   `json:"valid"`
	Reason     Reason `json:"reason,omitempty"`
	Score      int    `json:"score,omitempty"`
	TotalScore int    `json:"total_score,omitempty"`
}

// PlayerView is a read-only copy of a Player.
// Words is nil when the viewer may not see them (an opponent mid-round).
type PlayerView struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Score     int      `json:"score"`
	WordCount int      `json:"word_count"`
	Words     []string `json:"words,omitempty"`
}

// StatusView is a consistent snapshot of a Session taken under its lock.
type StatusView struct {
	Room        string       `json:"room_code"`
	Status      Status       `json:"status"`
	Round       int          `json:"round"`
	PlayerID    string       `json:"player_id,omitempty"`
	Grid        [][]string   `json:"grid,omitempty"`
	Deadline    *time.Time   `json:"end_time,omitempty"`
	SecondsLeft int          `json:"seconds_left,omitempty"`
	Players     []PlayerView `json:"players"`
	Winners     []string     `json:"winners,omitempty"`
	Aborted     bool         `json:"aborted,omitempty"`
}

// EventKind names a Session notification. Values match the push event names.
type EventKind string

const (
	EventPlayerJoined  EventKind = "player_joined"
	EventRoundStarted  EventKind = "game_started"
	EventWordFound     EventKind = "opponent_found_word"
	EventRoundFinished EventKind = "game_ended"
	EventPlayerLeft    EventKind = "player_left"
)

// Event is emitted after the Session lock is released.
// State always reveals every player's words; push adapters decide what to forward.
type Event struct {
	Kind       EventKind
	Room       string
	PlayerID   string // actor, if any
	PlayerName string
	WordLength int // EventWordFound only
	Score      int // actor's running total for EventWordFound
	State      StatusView
}

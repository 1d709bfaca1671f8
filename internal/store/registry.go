// internal/store/registry.go
//
// In-memory registry of live game rooms. This is the boundary transports
// call into; it owns room lifecycle while each game.Session owns its own
// gameplay state.
//
// Characteristics:
//   - room code → *game.Session and player id → room code, guarded by one
//     RWMutex that is only held for structural changes and lookups.
//   - Gameplay runs under each session's own lock, never under the registry lock.
//   - Rooms are destroyed when their last player leaves; a pending round timer
//     for a destroyed room becomes a no-op.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jeffreyp/wordgame/internal/game"
)

// Rooms is the engine surface consumed by transports.
type Rooms interface {
	CreateRoom(ctx context.Context, creatorName string) (code, playerID string, err error)
	JoinRoom(ctx context.Context, code, playerName string) (playerID string, players []game.PlayerView, err error)
	SubmitWord(ctx context.Context, code, playerID, word string) (game.SubmitResult, error)
	Status(ctx context.Context, code, playerID string) (game.StatusView, error)
	RestartRoom(ctx context.Context, code, playerID string) error
	LeaveRoom(ctx context.Context, code, playerID string)
	RoomOf(playerID string) (code string, ok bool)
	Subscribe(fn func(game.Event)) (unsubscribe func())
}

// Options configures a Registry. Zero fields take game defaults.
type Options struct {
	GridSize      int
	RoundDuration time.Duration
	Dictionary    game.Dictionary
	Clock         game.Clock
	Deal          func(size int) (game.Grid, error)
	Logger        zerolog.Logger

	// NewCode and NewID override room-code and player-id generation.
	NewCode func() string
	NewID   func() string
}

// Registry is safe for concurrent use.
type Registry struct {
	opts Options
	log  zerolog.Logger

	mu          sync.RWMutex
	sessions    map[string]*game.Session
	playerRooms map[string]string

	subMu  sync.RWMutex
	nextID int
	subs   map[int]func(game.Event)
}

var _ Rooms = (*Registry)(nil)

// NewRegistry returns an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.GridSize == 0 {
		opts.GridSize = game.DefaultGridSize
	}
	if opts.NewCode == nil {
		opts.NewCode = randomCode
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Registry{
		opts:        opts,
		log:         opts.Logger.With().Str("component", "rooms").Logger(),
		sessions:    make(map[string]*game.Session),
		playerRooms: make(map[string]string),
		subs:        make(map[int]func(game.Event)),
	}
}

// CreateRoom opens a waiting room seated with its creator.
func (r *Registry) CreateRoom(ctx context.Context, creatorName string) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	if err := game.ValidateGridSize(r.opts.GridSize); err != nil {
		return "", "", err
	}
	pid := r.opts.NewID()
	creator := game.NewPlayer(pid, displayName(creatorName, pid))

	r.mu.Lock()
	code := r.opts.NewCode()
	for r.sessions[code] != nil {
		code = r.opts.NewCode()
	}
	r.sessions[code] = game.NewSession(code, creator, r.sessionOptions())
	r.playerRooms[pid] = code
	r.mu.Unlock()

	r.log.Info().Str("room", code).Str("player", pid).Msg("room created")
	return code, pid, nil
}

// JoinRoom seats a second player; a full room starts its first round.
func (r *Registry) JoinRoom(ctx context.Context, code, playerName string) (string, []game.PlayerView, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	code = normalizeCode(code)
	sess, err := r.lookup(code)
	if err != nil {
		return "", nil, err
	}
	pid := r.opts.NewID()
	if err := sess.Join(game.NewPlayer(pid, displayName(playerName, pid))); err != nil {
		return "", nil, err
	}

	r.mu.Lock()
	r.playerRooms[pid] = code
	r.mu.Unlock()

	r.log.Info().Str("room", code).Str("player", pid).Msg("player joined")
	return pid, sess.Players(), nil
}

// SubmitWord forwards a word to the room. Rejections are in the result.
func (r *Registry) SubmitWord(ctx context.Context, code, playerID, word string) (game.SubmitResult, error) {
	if err := ctx.Err(); err != nil {
		return game.SubmitResult{}, err
	}
	sess, err := r.lookup(normalizeCode(code))
	if err != nil {
		return game.SubmitResult{}, err
	}
	return sess.SubmitWord(playerID, word)
}

// Status returns the room as seen by playerID.
func (r *Registry) Status(ctx context.Context, code, playerID string) (game.StatusView, error) {
	if err := ctx.Err(); err != nil {
		return game.StatusView{}, err
	}
	sess, err := r.lookup(normalizeCode(code))
	if err != nil {
		return game.StatusView{}, err
	}
	return sess.Status(playerID)
}

// RestartRoom starts a new round in a finished room.
func (r *Registry) RestartRoom(ctx context.Context, code, playerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sess, err := r.lookup(normalizeCode(code))
	if err != nil {
		return err
	}
	if _, err := sess.Status(playerID); err != nil {
		return err
	}
	return sess.Restart()
}

// LeaveRoom removes a player. It never fails; leaving an unknown room only
// clears the player's reverse mapping.
func (r *Registry) LeaveRoom(ctx context.Context, code, playerID string) {
	code = normalizeCode(code)
	r.mu.RLock()
	sess := r.sessions[code]
	r.mu.RUnlock()

	empty := false
	if sess != nil {
		empty = sess.RemovePlayer(playerID)
	}

	r.mu.Lock()
	if r.playerRooms[playerID] == code {
		delete(r.playerRooms, playerID)
	}
	if empty && r.sessions[code] == sess {
		delete(r.sessions, code)
	}
	r.mu.Unlock()

	if empty {
		r.log.Info().Str("room", code).Msg("room destroyed")
	}
}

// RoomOf returns the room a player is seated in.
func (r *Registry) RoomOf(playerID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	code, ok := r.playerRooms[playerID]
	return code, ok
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Subscribe registers fn for every session event. fn runs on the goroutine
// that caused the event, receives each room's events in order, and must not
// block for long or call back into the room that raised the event.
func (r *Registry) Subscribe(fn func(game.Event)) func() {
	r.subMu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	r.subMu.Unlock()
	return func() {
		r.subMu.Lock()
		delete(r.subs, id)
		r.subMu.Unlock()
	}
}

// Shutdown closes every room and stops their timers.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*game.Session)
	r.playerRooms = make(map[string]string)
	r.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

func (r *Registry) lookup(code string) (*game.Session, error) {
	r.mu.RLock()
	sess := r.sessions[code]
	r.mu.RUnlock()
	if sess == nil {
		return nil, fmt.Errorf("room %q: %w", code, game.ErrRoomNotFound)
	}
	return sess, nil
}

func (r *Registry) sessionOptions() game.Options {
	return game.Options{
		GridSize:      r.opts.GridSize,
		RoundDuration: r.opts.RoundDuration,
		Dictionary:    r.opts.Dictionary,
		Clock:         r.opts.Clock,
		Deal:          r.opts.Deal,
		OnDeadline:    r.onDeadline,
		Notify:        r.dispatch,
	}
}

// onDeadline runs on the round timer. The room must still be registered
// under its code before the round is finalized.
func (r *Registry) onDeadline(s *game.Session, round int) {
	r.mu.RLock()
	live := r.sessions[s.Code()] == s
	r.mu.RUnlock()
	if !live {
		r.log.Debug().Str("room", s.Code()).Int("round", round).Msg("timer fired for destroyed room")
		return
	}
	s.FinalizeRound(round)
}

func (r *Registry) dispatch(ev game.Event) {
	r.logEvent(ev)
	r.subMu.RLock()
	subs := make([]func(game.Event), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.subMu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func (r *Registry) logEvent(ev game.Event) {
	switch ev.Kind {
	case game.EventRoundStarted:
		r.log.Info().Str("room", ev.Room).Int("round", ev.State.Round).Msg("round started")
	case game.EventRoundFinished:
		r.log.Info().Str("room", ev.Room).Int("round", ev.State.Round).
			Bool("aborted", ev.State.Aborted).Strs("winners", ev.State.Winners).Msg("round finished")
	case game.EventPlayerLeft:
		r.log.Info().Str("room", ev.Room).Str("player", ev.PlayerID).Msg("player left")
	}
}

const codeLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// randomCode returns four uppercase letters.
func randomCode() string {
	b := make([]byte, 4)
	for i := range b {
		b[i] = codeLetters[rand.IntN(len(codeLetters))]
	}
	return string(b)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func displayName(name, id string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if len(id) > 4 {
		id = id[:4]
	}
	return "Player_" + id
}

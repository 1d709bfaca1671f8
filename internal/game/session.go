// internal/game/session.go
//
// Session holds one room's full state and its round state machine:
//
//	waiting --2nd join--> playing --deadline/Finalize--> finished --Restart--> playing
//
// Every exported method takes the session mutex, so a submission and the
// round timer can never interleave. Events produced while the lock is held are
// delivered to Options.Notify after it is released, in operation order.

package game

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultRoundDuration is the length of one round.
const DefaultRoundDuration = 120 * time.Second

// Options configures a Session. Zero fields take defaults.
type Options struct {
	GridSize      int
	RoundDuration time.Duration
	Dictionary    Dictionary
	Clock         Clock

	// Deal produces the board for a new round. Defaults to GenerateGrid.
	Deal func(size int) (Grid, error)

	// OnDeadline is called by the round timer instead of FinalizeRound, so the
	// owner can check the session is still live first.
	OnDeadline func(s *Session, round int)

	// Notify receives events outside the session lock, one at a time and in
	// operation order. It must not call back into the same session.
	Notify func(Event)
}

func (o Options) withDefaults() Options {
	if o.GridSize == 0 {
		o.GridSize = DefaultGridSize
	}
	if o.RoundDuration <= 0 {
		o.RoundDuration = DefaultRoundDuration
	}
	if o.Clock == nil {
		o.Clock = SystemClock{}
	}
	if o.Deal == nil {
		o.Deal = GenerateGrid
	}
	return o
}

// Session is one game room. Create with NewSession.
type Session struct {
	mu     sync.Mutex
	emitMu sync.Mutex // held while delivering; taken before mu is released

	code string
	opts Options

	status   Status
	grid     Grid
	deadline time.Time
	round    int
	players  map[string]*Player
	order    []string // join order
	winners  []string
	aborted  bool
	timer    Timer
	closed   bool
}

// NewSession returns a waiting session with creator seated.
func NewSession(code string, creator *Player, opts Options) *Session {
	return &Session{
		code:    code,
		opts:    opts.withDefaults(),
		status:  StatusWaiting,
		players: map[string]*Player{creator.ID: creator},
		order:   []string{creator.ID},
	}
}

// Code returns the room code.
func (s *Session) Code() string { return s.code }

// Join seats p. The second seat starts the first round.
func (s *Session) Join(p *Player) error {
	s.mu.Lock()
	evs, err := s.join(p)
	s.unlockAndEmit(evs)
	return err
}

func (s *Session) join(p *Player) ([]Event, error) {
	switch {
	case s.closed:
		return nil, fmt.Errorf("room %s: %w", s.code, ErrRoomNotFound)
	case len(s.players) >= MaxPlayers:
		return nil, fmt.Errorf("room %s: %w", s.code, ErrRoomFull)
	case s.status != StatusWaiting:
		return nil, fmt.Errorf("join room %s while %s: %w", s.code, s.status, ErrInvalidState)
	}
	if _, dup := s.players[p.ID]; dup {
		return nil, fmt.Errorf("player %s already in room %s: %w", p.ID, s.code, ErrInvalidState)
	}
	s.players[p.ID] = p
	s.order = append(s.order, p.ID)

	if len(s.players) < MaxPlayers {
		return []Event{s.event(EventPlayerJoined, p)}, nil
	}
	joined := s.event(EventPlayerJoined, p)
	started, err := s.startRound()
	if err != nil {
		delete(s.players, p.ID)
		s.order = s.order[:len(s.order)-1]
		return nil, err
	}
	return append([]Event{joined}, started...), nil
}

// startRound deals a new board, zeroes every player and arms the round timer.
// It is the only place a Grid is produced.
func (s *Session) startRound() ([]Event, error) {
	if s.status != StatusWaiting && s.status != StatusFinished {
		return nil, fmt.Errorf("start round while %s: %w", s.status, ErrInvalidState)
	}
	g, err := s.opts.Deal(s.opts.GridSize)
	if err != nil {
		return nil, fmt.Errorf("deal grid: %w", err)
	}
	s.stopTimer()
	s.grid = g
	s.round++
	s.deadline = s.opts.Clock.Now().Add(s.opts.RoundDuration)
	s.status = StatusPlaying
	s.winners = nil
	s.aborted = false
	for _, p := range s.players {
		p.reset()
	}

	round := s.round
	s.timer = s.opts.Clock.AfterFunc(s.opts.RoundDuration, func() { s.deadlineReached(round) })
	return []Event{s.event(EventRoundStarted, nil)}, nil
}

func (s *Session) deadlineReached(round int) {
	if s.opts.OnDeadline != nil {
		s.opts.OnDeadline(s, round)
		return
	}
	s.FinalizeRound(round)
}

// SubmitWord adjudicates one word for playerID. Rejections come back as a
// SubmitResult with Accepted false; errors are reserved for misuse.
// A submission past the deadline finalizes the round and returns ErrRoundExpired.
func (s *Session) SubmitWord(playerID, word string) (SubmitResult, error) {
	s.mu.Lock()
	res, evs, err := s.submit(playerID, word)
	s.unlockAndEmit(evs)
	return res, err
}

func (s *Session) submit(playerID, raw string) (SubmitResult, []Event, error) {
	if s.closed {
		return SubmitResult{}, nil, fmt.Errorf("room %s: %w", s.code, ErrRoomNotFound)
	}
	p, ok := s.players[playerID]
	if !ok {
		return SubmitResult{}, nil, fmt.Errorf("player %s in room %s: %w", playerID, s.code, ErrPlayerNotFound)
	}
	if s.status != StatusPlaying {
		return SubmitResult{}, nil, fmt.Errorf("room %s is %s: %w", s.code, s.status, ErrRoundNotActive)
	}
	if s.expired() {
		evs := s.finalize()
		return SubmitResult{}, evs, fmt.Errorf("room %s round %d: %w", s.code, s.round, ErrRoundExpired)
	}

	word := normalize(raw)
	res := SubmitResult{Word: word}
	switch {
	case p.has(word):
		res.Reason = ReasonAlreadyUsed
	case s.opts.Dictionary == nil || !s.opts.Dictionary.Contains(word):
		res.Reason = ReasonNotAWord
	case !IsReachable(word, s.grid):
		res.Reason = ReasonUnreachable
	}
	if res.Reason != "" {
		return res, nil, nil
	}

	points := Score(word)
	p.add(word, points)
	res.Accepted = true
	res.Score = points
	res.TotalScore = p.Score

	ev := s.event(EventWordFound, p)
	ev.WordLength = len(word)
	ev.Score = p.Score
	return res, []Event{ev}, nil
}

// Finalize ends the current round. It is a no-op unless the session is playing.
func (s *Session) Finalize() {
	s.mu.Lock()
	evs := s.finalize()
	s.unlockAndEmit(evs)
}

// FinalizeRound ends round only if it is still the current round.
// Timers of earlier rounds therefore do nothing.
func (s *Session) FinalizeRound(round int) {
	s.mu.Lock()
	var evs []Event
	if !s.closed && s.round == round {
		evs = s.finalize()
	}
	s.unlockAndEmit(evs)
}

// finalize applies the cancellation rule: a word accepted by more than one
// player is removed from each of them along with its points.
func (s *Session) finalize() []Event {
	if s.status != StatusPlaying {
		return nil
	}
	s.stopTimer()
	s.status = StatusFinished

	owners := make(map[string][]*Player)
	for _, id := range s.order {
		p := s.players[id]
		for _, w := range p.Words {
			owners[w] = append(owners[w], p)
		}
	}
	for w, claimants := range owners {
		if len(claimants) < 2 {
			continue
		}
		points := Score(w)
		for _, p := range claimants {
			p.remove(w, points)
		}
	}
	s.winners = s.topScorers()
	return []Event{s.event(EventRoundFinished, nil)}
}

// topScorers returns every player holding the strict maximum score.
func (s *Session) topScorers() []string {
	var (
		best    int
		winners []string
	)
	for i, id := range s.order {
		score := s.players[id].Score
		switch {
		case i == 0 || score > best:
			best = score
			winners = []string{id}
		case score == best:
			winners = append(winners, id)
		}
	}
	return winners
}

// Restart begins a new round from finished with a new board and zeroed players.
func (s *Session) Restart() error {
	s.mu.Lock()
	evs, err := s.restart()
	s.unlockAndEmit(evs)
	return err
}

func (s *Session) restart() ([]Event, error) {
	switch {
	case s.closed:
		return nil, fmt.Errorf("room %s: %w", s.code, ErrRoomNotFound)
	case s.status != StatusFinished:
		return nil, fmt.Errorf("restart room %s while %s: %w", s.code, s.status, ErrInvalidState)
	case len(s.players) < MaxPlayers:
		return nil, fmt.Errorf("restart room %s with %d player(s): %w", s.code, len(s.players), ErrInvalidState)
	}
	return s.startRound()
}

// RemovePlayer drops playerID in any state and reports whether the room is
// now empty. An empty session is closed and its timer stopped. If an opponent
// remains mid-round the round is aborted to finished without cancellation.
func (s *Session) RemovePlayer(playerID string) (empty bool) {
	s.mu.Lock()
	empty, evs := s.removePlayer(playerID)
	s.unlockAndEmit(evs)
	return empty
}

func (s *Session) removePlayer(playerID string) (bool, []Event) {
	p, ok := s.players[playerID]
	if !ok {
		return len(s.players) == 0, nil
	}
	delete(s.players, playerID)
	for i, id := range s.order {
		if id == playerID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	// Winners only ever name seated players.
	kept := s.winners[:0]
	for _, id := range s.winners {
		if id != playerID {
			kept = append(kept, id)
		}
	}
	s.winners = kept
	evs := []Event{s.event(EventPlayerLeft, p)}

	if len(s.players) == 0 {
		s.closeLocked()
		return true, evs
	}
	if s.status == StatusPlaying {
		s.stopTimer()
		s.status = StatusFinished
		s.aborted = true
		s.winners = s.topScorers()
		evs = append(evs, s.event(EventRoundFinished, nil))
	}
	return false, evs
}

// Close stops the round timer and rejects further play. Used on shutdown.
func (s *Session) Close() {
	s.mu.Lock()
	s.closeLocked()
	s.mu.Unlock()
}

func (s *Session) closeLocked() {
	s.closed = true
	s.stopTimer()
}

// Status returns the room as seen by viewer, finalizing first if the deadline
// has passed. Opponent words stay hidden until the round is finished.
func (s *Session) Status(viewer string) (StatusView, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return StatusView{}, fmt.Errorf("room %s: %w", s.code, ErrRoomNotFound)
	}
	if _, ok := s.players[viewer]; !ok {
		s.mu.Unlock()
		return StatusView{}, fmt.Errorf("player %s in room %s: %w", viewer, s.code, ErrPlayerNotFound)
	}
	var evs []Event
	if s.status == StatusPlaying && s.expired() {
		evs = s.finalize()
	}
	v := s.view(viewer)
	s.unlockAndEmit(evs)
	return v, nil
}

// Players lists the seated players in join order, names and scores only.
func (s *Session) Players() []PlayerView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PlayerView, 0, len(s.order))
	for _, id := range s.order {
		p := s.players[id]
		out = append(out, PlayerView{ID: p.ID, Name: p.Name, Score: p.Score, WordCount: len(p.Words)})
	}
	return out
}

func (s *Session) expired() bool {
	return s.opts.Clock.Now().After(s.deadline)
}

// view snapshots the session. An empty viewer sees every player's words.
func (s *Session) view(viewer string) StatusView {
	v := StatusView{
		Room:     s.code,
		Status:   s.status,
		Round:    s.round,
		PlayerID: viewer,
		Players:  make([]PlayerView, 0, len(s.order)),
		Aborted:  s.aborted,
	}
	if !s.grid.Empty() {
		v.Grid = s.grid.Rows()
	}
	if !s.deadline.IsZero() {
		dl := s.deadline
		v.Deadline = &dl
		if left := dl.Sub(s.opts.Clock.Now()); s.status == StatusPlaying && left > 0 {
			v.SecondsLeft = int(left.Round(time.Second) / time.Second)
		}
	}
	if s.status == StatusFinished {
		v.Winners = append([]string(nil), s.winners...)
	}
	for _, id := range s.order {
		p := s.players[id]
		pv := PlayerView{ID: p.ID, Name: p.Name, Score: p.Score, WordCount: len(p.Words)}
		if viewer == "" || id == viewer || s.status == StatusFinished {
			pv.Words = append([]string{}, p.Words...)
		}
		v.Players = append(v.Players, pv)
	}
	return v
}

func (s *Session) event(kind EventKind, actor *Player) Event {
	ev := Event{Kind: kind, Room: s.code, State: s.view("")}
	if actor != nil {
		ev.PlayerID = actor.ID
		ev.PlayerName = actor.Name
	}
	return ev
}

// unlockAndEmit releases mu and delivers evs. emitMu is taken before mu is
// released, so this session's events reach Notify in the order their
// operations ran, even when a listener is slow.
func (s *Session) unlockAndEmit(evs []Event) {
	if len(evs) == 0 || s.opts.Notify == nil {
		s.mu.Unlock()
		return
	}
	s.emitMu.Lock()
	s.mu.Unlock()
	defer s.emitMu.Unlock()
	for _, ev := range evs {
		s.opts.Notify(ev)
	}
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func normalize(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}

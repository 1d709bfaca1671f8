package game_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffreyp/wordgame/internal/game"
	"github.com/jeffreyp/wordgame/internal/game/gametest"
)

var epoch = time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

type fixture struct {
	clock  *gametest.Clock
	sess   *game.Session
	mu     sync.Mutex
	events []game.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{clock: gametest.NewClock(epoch)}
	f.sess = game.NewSession("ABCD", game.NewPlayer("p1", "Alice"), game.Options{
		Dictionary: gametest.Dictionary,
		Clock:      f.clock,
		Deal:       gametest.Deal(gametest.Board),
		Notify: func(ev game.Event) {
			f.mu.Lock()
			f.events = append(f.events, ev)
			f.mu.Unlock()
		},
	})
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	require.NoError(t, f.sess.Join(game.NewPlayer("p2", "Bob")))
}

func (f *fixture) kinds() []game.EventKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]game.EventKind, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (f *fixture) submit(t *testing.T, player, word string) game.SubmitResult {
	t.Helper()
	res, err := f.sess.SubmitWord(player, word)
	require.NoError(t, err)
	return res
}

func (f *fixture) status(t *testing.T, viewer string) game.StatusView {
	t.Helper()
	v, err := f.sess.Status(viewer)
	require.NoError(t, err)
	return v
}

func scores(v game.StatusView) map[string]int {
	out := make(map[string]int)
	for _, p := range v.Players {
		out[p.ID] = p.Score
	}
	return out
}

func words(v game.StatusView, id string) []string {
	for _, p := range v.Players {
		if p.ID == id {
			return p.Words
		}
	}
	return nil
}

func TestSession_WaitingUntilSecondJoin(t *testing.T) {
	f := newFixture(t)
	v := f.status(t, "p1")
	assert.Equal(t, game.StatusWaiting, v.Status)
	assert.Nil(t, v.Grid)
	assert.Nil(t, v.Deadline)

	_, err := f.sess.SubmitWord("p1", "kite")
	assert.ErrorIs(t, err, game.ErrRoundNotActive)

	f.start(t)
	v = f.status(t, "p2")
	assert.Equal(t, game.StatusPlaying, v.Status)
	assert.Equal(t, 1, v.Round)
	assert.Equal(t, gametest.Board.Rows(), v.Grid)
	require.NotNil(t, v.Deadline)
	assert.Equal(t, epoch.Add(game.DefaultRoundDuration), *v.Deadline)
	assert.Equal(t, 120, v.SecondsLeft)
	assert.Equal(t, []game.EventKind{game.EventPlayerJoined, game.EventRoundStarted}, f.kinds())
}

func TestSession_JoinErrors(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	err := f.sess.Join(game.NewPlayer("p3", "Carol"))
	assert.ErrorIs(t, err, game.ErrRoomFull, "room is playing with two seats")

	f.sess.Finalize()
	err = f.sess.Join(game.NewPlayer("p3", "Carol"))
	assert.ErrorIs(t, err, game.ErrRoomFull)

	// A lone player left in a finished room cannot take a new opponent.
	f.sess.RemovePlayer("p2")
	err = f.sess.Join(game.NewPlayer("p3", "Carol"))
	assert.ErrorIs(t, err, game.ErrInvalidState)
}

func TestSession_JoinRollsBackFailedDeal(t *testing.T) {
	sess := game.NewSession("FAIL", game.NewPlayer("p1", "A"), game.Options{
		Clock: gametest.NewClock(epoch),
		Deal:  func(int) (game.Grid, error) { return game.Grid{}, game.ErrConfiguration },
	})
	require.ErrorIs(t, sess.Join(game.NewPlayer("p2", "B")), game.ErrConfiguration)

	v, err := sess.Status("p1")
	require.NoError(t, err)
	assert.Equal(t, game.StatusWaiting, v.Status)
	assert.Len(t, v.Players, 1)
	_, err = sess.Status("p2")
	assert.ErrorIs(t, err, game.ErrPlayerNotFound)
}

func TestSession_SubmitWord(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	res := f.submit(t, "p1", " Kite ")
	assert.Equal(t, game.SubmitResult{Word: "kite", Accepted: true, Score: 2, TotalScore: 2}, res)

	res = f.submit(t, "p1", "long")
	assert.True(t, res.Accepted)
	assert.Equal(t, 4, res.TotalScore)

	res = f.submit(t, "p1", "kite")
	assert.False(t, res.Accepted)
	assert.Equal(t, game.ReasonAlreadyUsed, res.Reason)

	res = f.submit(t, "p1", "xyzzy")
	assert.Equal(t, game.ReasonNotAWord, res.Reason)

	for i := 0; i < 3; i++ {
		res = f.submit(t, "p1", "song")
		assert.Equal(t, game.ReasonUnreachable, res.Reason)
	}

	// The opponent may find the same word during play.
	res = f.submit(t, "p2", "kite")
	assert.True(t, res.Accepted)

	v := f.status(t, "p1")
	assert.Equal(t, map[string]int{"p1": 4, "p2": 2}, scores(v))
	assert.Equal(t, []string{"kite", "long"}, words(v, "p1"))
	assert.Nil(t, words(v, "p2"), "opponent words stay hidden mid-round")

	_, err := f.sess.SubmitWord("ghost", "kite")
	assert.ErrorIs(t, err, game.ErrPlayerNotFound)
}

func TestSession_CancellationRule(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	for _, w := range []string{"kite", "bat", "long"} {
		require.True(t, f.submit(t, "p1", w).Accepted, w)
	}
	for _, w := range []string{"kite", "snob"} {
		require.True(t, f.submit(t, "p2", w).Accepted, w)
	}

	f.sess.Finalize()
	v := f.status(t, "p1")
	assert.Equal(t, game.StatusFinished, v.Status)
	assert.Equal(t, map[string]int{"p1": 3, "p2": 2}, scores(v))
	assert.Equal(t, []string{"bat", "long"}, words(v, "p1"))
	assert.Equal(t, []string{"snob"}, words(v, "p2"))
	assert.Equal(t, []string{"p1"}, v.Winners)
	assert.Equal(t, gametest.Board.Rows(), v.Grid, "finished rooms keep the board")

	// A second finalize must not subtract again.
	f.sess.Finalize()
	f.sess.FinalizeRound(v.Round)
	again := f.status(t, "p2")
	assert.Equal(t, scores(v), scores(again))
	assert.Equal(t, v.Winners, again.Winners)
}

func TestSession_TiedWinners(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.submit(t, "p1", "long")
	f.submit(t, "p2", "snob")
	f.sess.Finalize()

	v := f.status(t, "p1")
	assert.Equal(t, []string{"p1", "p2"}, v.Winners)
}

func TestSession_TimerFinalizes(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.submit(t, "p1", "kite")
	f.submit(t, "p2", "kite")

	f.clock.Advance(game.DefaultRoundDuration - time.Second)
	assert.Equal(t, game.StatusPlaying, f.status(t, "p1").Status)

	f.clock.Advance(time.Second)
	v := f.status(t, "p1")
	assert.Equal(t, game.StatusFinished, v.Status)
	assert.Equal(t, map[string]int{"p1": 0, "p2": 0}, scores(v))
	assert.Equal(t, []string{"p1", "p2"}, v.Winners)
	assert.Contains(t, f.kinds(), game.EventRoundFinished)
	assert.Zero(t, f.clock.Pending())
}

func TestSession_LazyExpiryOnSubmit(t *testing.T) {
	clock := gametest.NewClock(epoch)
	sess := game.NewSession("LAZY", game.NewPlayer("p1", "A"), game.Options{
		Dictionary: gametest.Dictionary,
		Clock:      clock,
		Deal:       gametest.Deal(gametest.Board),
		// No timer target: simulates a transport without background timers.
		OnDeadline: func(*game.Session, int) {},
	})
	require.NoError(t, sess.Join(game.NewPlayer("p2", "B")))
	_, err := sess.SubmitWord("p1", "kite")
	require.NoError(t, err)

	clock.Advance(game.DefaultRoundDuration + time.Millisecond)
	_, err = sess.SubmitWord("p1", "long")
	assert.ErrorIs(t, err, game.ErrRoundExpired)

	v, err := sess.Status("p2")
	require.NoError(t, err)
	assert.Equal(t, game.StatusFinished, v.Status)
	assert.Equal(t, []string{"p1"}, v.Winners)

	_, err = sess.SubmitWord("p1", "long")
	assert.ErrorIs(t, err, game.ErrRoundNotActive)
}

func TestSession_LazyExpiryOnStatus(t *testing.T) {
	clock := gametest.NewClock(epoch)
	sess := game.NewSession("POLL", game.NewPlayer("p1", "A"), game.Options{
		Dictionary: gametest.Dictionary,
		Clock:      clock,
		Deal:       gametest.Deal(gametest.Board),
		OnDeadline: func(*game.Session, int) {},
	})
	require.NoError(t, sess.Join(game.NewPlayer("p2", "B")))
	clock.Advance(game.DefaultRoundDuration + time.Second)

	v, err := sess.Status("p1")
	require.NoError(t, err)
	assert.Equal(t, game.StatusFinished, v.Status)
}

func TestSession_RestartAndStaleTimer(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.sess.Restart(), game.ErrInvalidState, "waiting")
	f.start(t)
	assert.ErrorIs(t, f.sess.Restart(), game.ErrInvalidState, "playing")

	f.submit(t, "p1", "long")
	f.clock.Advance(10 * time.Second)
	f.sess.Finalize()
	require.NoError(t, f.sess.Restart())

	v := f.status(t, "p1")
	assert.Equal(t, game.StatusPlaying, v.Status)
	assert.Equal(t, 2, v.Round)
	assert.Equal(t, map[string]int{"p1": 0, "p2": 0}, scores(v))
	assert.Empty(t, words(v, "p1"))
	require.NotNil(t, v.Deadline)
	assert.Equal(t, epoch.Add(10*time.Second+game.DefaultRoundDuration), *v.Deadline)

	// The first round's timer was stopped; a stale FinalizeRound does nothing.
	f.sess.FinalizeRound(1)
	assert.Equal(t, game.StatusPlaying, f.status(t, "p1").Status)
	assert.Equal(t, 1, f.clock.Pending())
}

func TestSession_RestartDealsNewGrid(t *testing.T) {
	clock := gametest.NewClock(epoch)
	sess := game.NewSession("DEAL", game.NewPlayer("p1", "A"), game.Options{Clock: clock})
	require.NoError(t, sess.Join(game.NewPlayer("p2", "B")))

	first, err := sess.Status("p1")
	require.NoError(t, err)
	sess.Finalize()
	require.NoError(t, sess.Restart())
	second, err := sess.Status("p1")
	require.NoError(t, err)

	assert.Len(t, second.Grid, game.DefaultGridSize)
	assert.Equal(t, first.Round+1, second.Round)
}

func TestSession_RemovePlayer(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.submit(t, "p1", "kite")
	f.submit(t, "p2", "kite")

	assert.False(t, f.sess.RemovePlayer("p2"))
	v := f.status(t, "p1")
	assert.Equal(t, game.StatusFinished, v.Status)
	assert.True(t, v.Aborted)
	assert.Equal(t, map[string]int{"p1": 2}, scores(v), "no cancellation on abort")
	assert.Equal(t, []string{"p1"}, v.Winners)
	assert.Zero(t, f.clock.Pending())
	assert.ErrorIs(t, f.sess.Restart(), game.ErrInvalidState, "needs an opponent")

	assert.False(t, f.sess.RemovePlayer("ghost"))
	assert.True(t, f.sess.RemovePlayer("p1"))
	_, err := f.sess.Status("p1")
	assert.ErrorIs(t, err, game.ErrRoomNotFound)
	assert.ErrorIs(t, f.sess.Join(game.NewPlayer("p3", "C")), game.ErrRoomNotFound)
}

func TestSession_ConcurrentSubmitAndDeadline(t *testing.T) {
	for i := 0; i < 20; i++ {
		f := newFixture(t)
		f.start(t)

		var wg sync.WaitGroup
		for _, p := range []string{"p1", "p2"} {
			wg.Add(1)
			go func(p string) {
				defer wg.Done()
				for _, w := range []string{"kite", "kit", "bat", "tab", "long", "snob"} {
					_, _ = f.sess.SubmitWord(p, w)
				}
			}(p)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.clock.Advance(game.DefaultRoundDuration + time.Second)
		}()
		wg.Wait()
		f.sess.Finalize()

		v := f.status(t, "p1")
		require.Equal(t, game.StatusFinished, v.Status)
		// Whatever interleaving happened, no word survives in both lists and
		// every total equals the sum of its remaining words.
		seen := make(map[string]int)
		for _, p := range v.Players {
			sum := 0
			for _, w := range p.Words {
				seen[w]++
				sum += game.Score(w)
			}
			assert.Equal(t, sum, p.Score, p.ID)
		}
		for w, n := range seen {
			assert.Equal(t, 1, n, w)
		}
	}
}

func TestSession_EventsKeepOperationOrder(t *testing.T) {
	var (
		mu      sync.Mutex
		kinds   []game.EventKind
		blocked = make(chan struct{})
		release = make(chan struct{})
	)
	sess := game.NewSession("ABCD", game.NewPlayer("p1", "Alice"), game.Options{
		Dictionary: gametest.Dictionary,
		Clock:      gametest.NewClock(epoch),
		Deal:       gametest.Deal(gametest.Board),
		Notify: func(ev game.Event) {
			if ev.Kind == game.EventWordFound {
				close(blocked)
				<-release
			}
			mu.Lock()
			kinds = append(kinds, ev.Kind)
			mu.Unlock()
		},
	})
	require.NoError(t, sess.Join(game.NewPlayer("p2", "Bob")))

	submitted := make(chan struct{})
	go func() {
		defer close(submitted)
		_, _ = sess.SubmitWord("p1", "kite")
	}()
	<-blocked

	finalized := make(chan struct{})
	go func() {
		defer close(finalized)
		sess.Finalize()
	}()
	// Give Finalize time to overtake the stalled delivery if it could.
	time.Sleep(20 * time.Millisecond)
	close(release)
	<-submitted
	<-finalized

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []game.EventKind{
		game.EventPlayerJoined, game.EventRoundStarted, game.EventWordFound, game.EventRoundFinished,
	}, kinds)
}

func TestSession_LeavingFinishedRoomDropsWinner(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.sess.Finalize()
	v := f.status(t, "p2")
	require.Equal(t, []string{"p1", "p2"}, v.Winners)

	assert.False(t, f.sess.RemovePlayer("p1"))
	v = f.status(t, "p2")
	assert.Equal(t, game.StatusFinished, v.Status)
	assert.False(t, v.Aborted)
	assert.Equal(t, []string{"p2"}, v.Winners)

	f.mu.Lock()
	last := f.events[len(f.events)-1]
	f.mu.Unlock()
	assert.Equal(t, game.EventPlayerLeft, last.Kind)
	assert.Equal(t, []string{"p2"}, last.State.Winners)
}

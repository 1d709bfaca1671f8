// internal/httpserver/ws.go
//
// Push transport. One websocket per player seat:
//   - client → server: {"type": "create_game"|"join_game"|"submit_word"|"restart_game"|"leave_game", ...}
//   - server → client: {"type": <event>, "data": {...}}
//
// The hub subscribes to registry events and fans them out to the sockets
// seated in the event's room. Closing a socket leaves its room.

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/jeffreyp/wordgame/internal/game"
	"github.com/jeffreyp/wordgame/internal/store"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
	sendBuffer   = 32
	maxFrame     = 4096
)

// wsIn is a client command.
type wsIn struct {
	Type     string `json:"type"`
	Name     string `json:"name,omitempty"`
	RoomCode string `json:"room_code,omitempty"`
	Word     string `json:"word,omitempty"`
}

// wsOut is a server event.
type wsOut struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type playerRef struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

type startedData struct {
	Round   int        `json:"round"`
	Grid    [][]string `json:"grid"`
	EndTime *time.Time `json:"end_time"`
}

type foundData struct {
	PlayerID   string `json:"player_id"`
	Name       string `json:"name"`
	WordLength int    `json:"word_length"`
	Score      int    `json:"score"`
}

type endedData struct {
	Round   int               `json:"round"`
	Players []game.PlayerView `json:"players"`
	Winners []string          `json:"winners"`
	Aborted bool              `json:"aborted,omitempty"`
	Reason  string            `json:"reason,omitempty"`
}

type seatData struct {
	RoomCode string            `json:"room_code"`
	PlayerID string            `json:"player_id"`
	Players  []game.PlayerView `json:"players,omitempty"`
}

type errorData struct {
	Message string `json:"message"`
}

// wsClient owns one socket. Writes happen only on its write pump.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
	room   string
	player string
}

// enqueue never blocks; a client that cannot keep up is dropped.
func (c *wsClient) enqueue(msg wsOut) {
	b, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("type", msg.Type).Msg("ws encode")
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- b:
	default:
		log.Warn().Str("player", c.player).Msg("ws send buffer full, dropping client")
		c.closed = true
		close(c.send)
	}
}

func (c *wsClient) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *wsClient) seat() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room, c.player
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case b, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// wsHub routes registry events to seated clients. Seat changes and event
// fan-out run as ops on a single goroutine, so the seat table needs no lock
// and a seat snapshot is ordered against the events around it.
type wsHub struct {
	rooms    store.Rooms
	upgrader websocket.Upgrader

	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
	done  chan struct{}
	stop  sync.Once

	// owned by run
	players map[string]*wsClient // player id → client
	clients map[*wsClient]struct{}

	unsubscribe func()
}

func newHub(rooms store.Rooms, origin string) *wsHub {
	h := &wsHub{
		rooms:   rooms,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		players: make(map[string]*wsClient),
		clients: make(map[*wsClient]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			o := r.Header.Get("Origin")
			return o == "" || o == origin || sameHost(r, o)
		},
	}
	go h.run()
	h.unsubscribe = rooms.Subscribe(h.onEvent)
	return h
}

func sameHost(r *http.Request, origin string) bool {
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// push schedules op on the run goroutine. It never blocks, so registry
// listeners and ops themselves may call it.
func (h *wsHub) push(op func()) {
	h.mu.Lock()
	h.queue = append(h.queue, op)
	h.mu.Unlock()
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

func (h *wsHub) run() {
	for {
		select {
		case <-h.done:
			return
		case <-h.wake:
		}
		for {
			h.mu.Lock()
			ops := h.queue
			h.queue = nil
			h.mu.Unlock()
			if len(ops) == 0 {
				break
			}
			for _, op := range ops {
				op()
			}
		}
	}
}

// ServeHTTP upgrades the connection and runs the read loop.
func (h *wsHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("ws upgrade")
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, sendBuffer)}
	h.push(func() { h.clients[c] = struct{}{} })

	go c.writePump()
	h.readLoop(c)
}

func (h *wsHub) readLoop(c *wsClient) {
	defer h.disconnect(c)

	c.conn.SetReadLimit(maxFrame)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, b, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("ws read")
			}
			return
		}
		var msg wsIn
		if err := json.Unmarshal(b, &msg); err != nil {
			c.enqueue(wsOut{Type: "error", Data: errorData{Message: "bad message"}})
			continue
		}
		h.handle(c, msg)
	}
}

func (h *wsHub) handle(c *wsClient, msg wsIn) {
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()

	switch msg.Type {
	case "create_game":
		h.leave(ctx, c)
		code, pid, err := h.rooms.CreateRoom(ctx, msg.Name)
		if err != nil {
			h.fail(c, err)
			return
		}
		h.seatClient(c, code, pid, "game_created")

	case "join_game":
		h.leave(ctx, c)
		pid, _, err := h.rooms.JoinRoom(ctx, msg.RoomCode, msg.Name)
		if err != nil {
			h.fail(c, err)
			return
		}
		code, _ := h.rooms.RoomOf(pid)
		h.seatClient(c, code, pid, "game_joined")

	case "submit_word":
		room, pid := c.seat()
		if pid == "" {
			c.enqueue(wsOut{Type: "error", Data: errorData{Message: "Not in a game"}})
			return
		}
		res, err := h.rooms.SubmitWord(ctx, room, pid, msg.Word)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.enqueue(wsOut{Type: "word_result", Data: res})

	case "restart_game":
		room, pid := c.seat()
		if pid == "" {
			c.enqueue(wsOut{Type: "error", Data: errorData{Message: "Not in a game"}})
			return
		}
		if err := h.rooms.RestartRoom(ctx, room, pid); err != nil {
			h.fail(c, err)
		}

	case "leave_game":
		h.leave(ctx, c)

	default:
		c.enqueue(wsOut{Type: "error", Data: errorData{Message: "unknown message type"}})
	}
}

// seatClient attaches c to a fresh seat and sends it the room as it stands.
// Events raised while the seat was taken were fanned out before the attach
// op runs, so the snapshot stands in for them.
func (h *wsHub) seatClient(c *wsClient, code, pid, kind string) {
	c.mu.Lock()
	c.room, c.player = code, pid
	c.mu.Unlock()

	h.push(func() {
		h.players[pid] = c

		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		v, err := h.rooms.Status(ctx, code, pid)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.enqueue(wsOut{Type: kind, Data: seatData{RoomCode: code, PlayerID: pid, Players: v.Players}})
		for _, p := range v.Players {
			c.enqueue(wsOut{Type: string(game.EventPlayerJoined), Data: playerRef{PlayerID: p.ID, Name: p.Name}})
		}
		switch v.Status {
		case game.StatusPlaying:
			c.enqueue(wsOut{Type: string(game.EventRoundStarted), Data: startedData{Round: v.Round, Grid: v.Grid, EndTime: v.Deadline}})
		case game.StatusFinished:
			c.enqueue(wsOut{Type: string(game.EventRoundFinished), Data: ended(v)})
		}
	})
}

// leave gives up the client's seat, if any.
func (h *wsHub) leave(ctx context.Context, c *wsClient) {
	c.mu.Lock()
	room, pid := c.room, c.player
	c.room, c.player = "", ""
	c.mu.Unlock()
	if pid == "" {
		return
	}
	h.push(func() {
		if h.players[pid] == c {
			delete(h.players, pid)
		}
	})
	h.rooms.LeaveRoom(ctx, room, pid)
}

func (h *wsHub) disconnect(c *wsClient) {
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	h.leave(ctx, c)
	h.push(func() { delete(h.clients, c) })
	c.shutdown()
}

func (h *wsHub) fail(c *wsClient, err error) {
	c.enqueue(wsOut{Type: "error", Data: errorData{Message: publicMessage(err)}})
}

// onEvent is the registry listener.
func (h *wsHub) onEvent(ev game.Event) {
	var (
		out  wsOut
		skip string
	)
	switch ev.Kind {
	case game.EventPlayerJoined, game.EventPlayerLeft:
		out = wsOut{Type: string(ev.Kind), Data: playerRef{PlayerID: ev.PlayerID, Name: ev.PlayerName}}
	case game.EventRoundStarted:
		out = wsOut{Type: string(ev.Kind), Data: startedData{Round: ev.State.Round, Grid: ev.State.Grid, EndTime: ev.State.Deadline}}
	case game.EventWordFound:
		out = wsOut{Type: string(ev.Kind), Data: foundData{PlayerID: ev.PlayerID, Name: ev.PlayerName, WordLength: ev.WordLength, Score: ev.Score}}
		skip = ev.PlayerID
	case game.EventRoundFinished:
		out = wsOut{Type: string(ev.Kind), Data: ended(ev.State)}
	default:
		return
	}
	players := ev.State.Players
	h.push(func() {
		for _, p := range players {
			if p.ID == skip {
				continue
			}
			if c := h.players[p.ID]; c != nil {
				c.enqueue(out)
			}
		}
	})
}

// closeAll stops fan-out and drops every client.
func (h *wsHub) closeAll() {
	h.stop.Do(func() {
		h.unsubscribe()
		conns := make(chan []*websocket.Conn, 1)
		h.push(func() {
			cs := make([]*websocket.Conn, 0, len(h.clients))
			for c := range h.clients {
				cs = append(cs, c.conn)
			}
			conns <- cs
		})
		select {
		case cs := <-conns:
			for _, conn := range cs {
				_ = conn.Close()
			}
		case <-time.After(writeWait):
		}
		close(h.done)
	})
}

func ended(v game.StatusView) endedData {
	d := endedData{Round: v.Round, Players: v.Players, Winners: v.Winners, Aborted: v.Aborted}
	if d.Winners == nil {
		d.Winners = []string{}
	}
	if v.Aborted {
		d.Reason = "Player disconnected"
	}
	return d
}

// publicMessage is the text shown to players for an engine error.
func publicMessage(err error) string {
	_, msg := statusFor(err)
	return msg
}

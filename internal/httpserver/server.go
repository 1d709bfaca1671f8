// internal/httpserver/server.go
//
// HTTP transport for the word-grid game.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs, access log).
//   - Polling endpoints under /api: create, join, status, submit, restart, leave.
//   - Push endpoint: GET /ws (see ws.go).
//   - Finished-round archive: GET /api/results (when a results source is configured).
//
// Notes:
//   - Players are identified by a signed seat token returned on create/join,
//     sent back as a bearer token or the wordgame_session cookie.
//   - Engine errors map to status codes in statusFor; word rejections are
//     ordinary 200 responses with valid=false.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/jeffreyp/wordgame/internal/game"
	"github.com/jeffreyp/wordgame/internal/history"
	"github.com/jeffreyp/wordgame/internal/store"
)

// Results reads the finished-round archive.
type Results interface {
	Recent(ctx context.Context, limit int) ([]history.Result, error)
}

// Options configures a Server.
type Options struct {
	Secret       string
	ClientOrigin string
	SecureCookie bool
	Results      Results // optional
}

// Server bundles router, rooms and the push hub.
type Server struct {
	r       *chi.Mux
	rooms   store.Rooms
	results Results
	tokens  *tokenSigner
	hub     *wsHub
	opts    Options
}

// New constructs a Server, installs middleware, and registers routes.
func New(rooms store.Rooms, opts Options) (*Server, error) {
	tokens, err := newTokenSigner(opts.Secret)
	if err != nil {
		return nil, err
	}
	if opts.ClientOrigin == "" {
		opts.ClientOrigin = "http://localhost:5173"
	}
	s := &Server{r: chi.NewRouter(), rooms: rooms, results: opts.Results, tokens: tokens, opts: opts}
	s.hub = newHub(rooms, opts.ClientOrigin)

	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(accessLog)
	s.r.Use(chimw.Recoverer)
	s.r.Use(cors(opts.ClientOrigin))

	// Websocket first: it must not get the JSON header or the handler timeout.
	s.r.Get("/ws", s.hub.ServeHTTP)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))
		r.Use(jsonContentType)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"service":"wordgame","endpoints":["/health","POST /api/create_game","POST /api/join_game","GET /api/game_status","POST /api/submit_word","POST /api/restart_game","POST /api/leave_game","GET /api/results","GET /ws"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"ok":true}`))
		})

		r.Route("/api", func(r chi.Router) {
			r.Post("/create_game", s.handleCreate)
			r.Post("/join_game", s.handleJoin)
			r.Get("/results", s.handleResults)
			r.Group(func(r chi.Router) {
				r.Use(s.requireSeat)
				r.Get("/game_status", s.handleStatus)
				r.Post("/submit_word", s.handleSubmit)
				r.Post("/restart_game", s.handleRestart)
				r.Post("/leave_game", s.handleLeave)
			})
		})
	})

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})
	return s, nil
}

// Handler exposes the router for http.Server and tests.
func (s *Server) Handler() http.Handler { return s.r }

// Close disconnects every websocket client.
func (s *Server) Close() { s.hub.closeAll() }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for a single origin.
func cors(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// accessLog writes one zerolog line per request.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("req_id", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("http")
	})
}

// ------------------------------ GAME ---------------------------------------

type createReq struct {
	Name string `json:"name"`
}
type createRes struct {
	RoomCode string `json:"room_code"`
	PlayerID string `json:"player_id"`
	Token    string `json:"token"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createReq
	_ = json.NewDecoder(r.Body).Decode(&req)

	code, pid, err := s.rooms.CreateRoom(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	tok, ok := s.issue(w, seat{Room: code, Player: pid})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, createRes{RoomCode: code, PlayerID: pid, Token: tok})
}

type joinReq struct {
	RoomCode string `json:"room_code"`
	Name     string `json:"name"`
}
type joinRes struct {
	RoomCode string            `json:"room_code"`
	PlayerID string            `json:"player_id"`
	Players  []game.PlayerView `json:"players"`
	Token    string            `json:"token"`
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_json"})
		return
	}
	pid, players, err := s.rooms.JoinRoom(r.Context(), req.RoomCode, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	code, _ := s.rooms.RoomOf(pid)
	tok, ok := s.issue(w, seat{Room: code, Player: pid})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, joinRes{RoomCode: code, PlayerID: pid, Players: players, Token: tok})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := seatFrom(r.Context())
	v, err := s.rooms.Status(r.Context(), st.Room, st.Player)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type submitReq struct {
	Word string `json:"word"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_json"})
		return
	}
	st := seatFrom(r.Context())
	res, err := s.rooms.SubmitWord(r.Context(), st.Room, st.Player, req.Word)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	st := seatFrom(r.Context())
	if err := s.rooms.RestartRoom(r.Context(), st.Room, st.Player); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "restarted"})
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	st := seatFrom(r.Context())
	s.rooms.LeaveRoom(r.Context(), st.Room, st.Player)
	clearSessionCookie(w, s.opts.SecureCookie)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type resultsRes struct {
	Results []history.Result `json:"results"`
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if s.results == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "results store disabled"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.results.Recent(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("load results")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "server error"})
		return
	}
	writeJSON(w, http.StatusOK, resultsRes{Results: rows})
}

// issue signs a seat token and sets the session cookie.
func (s *Server) issue(w http.ResponseWriter, st seat) (string, bool) {
	tok, exp, err := s.tokens.sign(st)
	if err != nil {
		log.Error().Err(err).Msg("sign seat token")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "sign_failed"})
		return "", false
	}
	setSessionCookie(w, tok, exp, s.opts.SecureCookie)
	return tok, true
}

// ------------------------------ errors -------------------------------------

type errorBody struct {
	Error string `json:"error"`
}

var errorStatus = []struct {
	err    error
	status int
}{
	{game.ErrRoomNotFound, http.StatusNotFound},
	{game.ErrPlayerNotFound, http.StatusNotFound},
	{game.ErrRoomFull, http.StatusConflict},
	{game.ErrInvalidState, http.StatusBadRequest},
	{game.ErrRoundNotActive, http.StatusBadRequest},
	{game.ErrRoundExpired, http.StatusBadRequest},
	{game.ErrConfiguration, http.StatusInternalServerError},
}

// statusFor maps an engine error to an HTTP status and a public message.
func statusFor(err error) (int, string) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status, e.err.Error()
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return http.StatusServiceUnavailable, "request cancelled"
	}
	return http.StatusInternalServerError, "server error"
}

func writeError(w http.ResponseWriter, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// internal/game/errors.go
//
// Sentinel errors of the engine. Game-logic rejections (a word not in the
// dictionary, already used, not on the grid) are SubmitResult values, not errors.

package game

import "errors"

// Caller mistakes surfaced to transports. Wrap with %w; test with errors.Is.
var (
	ErrConfiguration  = errors.New("invalid grid configuration")
	ErrRoomNotFound   = errors.New("game not found")
	ErrRoomFull       = errors.New("game is full")
	ErrInvalidState   = errors.New("invalid state for this action")
	ErrRoundNotActive = errors.New("game not in progress")
	ErrRoundExpired   = errors.New("time is up")
	ErrPlayerNotFound = errors.New("not in this game")
)

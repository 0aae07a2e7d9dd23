package game

import "errors"

var (
	ErrNotHost        = errors.New("only the host can do that")
	ErrInvalidState   = errors.New("not allowed in the current game state")
	ErrGameInProgress = errors.New("game already started")
	ErrNoPlayers      = errors.New("no players in room")
	ErrInvalidTotal   = errors.New("total images must be at least 1")
	ErrInvalidStep    = errors.New("reveal step must not be negative")
	ErrInvalidName    = errors.New("name must be 1 to 24 characters")
	ErrNotSelected    = errors.New("not selected to answer")
)

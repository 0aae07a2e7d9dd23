package events

import (
	"errors"

	"picturebuzz/internal/buzzer"
	"picturebuzz/internal/game"
	"picturebuzz/internal/players"
	"picturebuzz/internal/rooms"
)

var (
	ErrBadPayload     = errors.New("malformed request")
	ErrUnknownCommand = errors.New("unknown command")
	ErrRateLimited    = errors.New("too many requests")
)

var reasons = []struct {
	err  error
	code string
}{
	{rooms.ErrRoomNotFound, "room_not_found"},
	{rooms.ErrAlreadyInRoom, "already_joined"},
	{rooms.ErrNotInRoom, "not_in_room"},
	{players.ErrDuplicateName, "name_taken"},
	{players.ErrNotFound, "player_not_found"},
	{game.ErrNotHost, "not_host"},
	{game.ErrInvalidState, "invalid_state"},
	{game.ErrGameInProgress, "game_in_progress"},
	{game.ErrNoPlayers, "no_players"},
	{game.ErrInvalidTotal, "invalid_total"},
	{game.ErrInvalidStep, "invalid_step"},
	{game.ErrInvalidName, "invalid_name"},
	{game.ErrNotSelected, "not_selected"},
	{buzzer.ErrCannotBuzz, "cannot_buzz_now"},
	{buzzer.ErrBuzzerLocked, "buzzer_locked"},
	{buzzer.ErrEliminated, "eliminated"},
	{buzzer.ErrAlreadyBuzzed, "already_buzzed"},
	{ErrBadPayload, "bad_request"},
	{ErrUnknownCommand, "unknown_command"},
	{ErrRateLimited, "rate_limited"},
}

// Reason maps err to a short machine-checkable code.
func Reason(err error) string {
	var cd *buzzer.CooldownError
	if errors.As(err, &cd) {
		return "cooldown"
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.code
		}
	}
	return "internal"
}

// Structural reports whether err means the command referred to someone
// who is not there. Such commands are stale and dropped without a reply.
func Structural(err error) bool {
	return errors.Is(err, players.ErrNotFound) || errors.Is(err, rooms.ErrNotInRoom)
}

// ErrorFor builds the error event sent back to the caller of command.
func ErrorFor(command string, err error) Error {
	e := Error{
		Command: command,
		Reason:  Reason(err),
		Message: err.Error(),
	}
	var cd *buzzer.CooldownError
	if errors.As(err, &cd) {
		e.RetryAfterMs = cd.Remaining.Milliseconds()
	}
	return e
}

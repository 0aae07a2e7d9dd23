// Package buzzer arbitrates who gets to answer: it orders buzzes, locks
// the queue when it is full and enforces per-image elimination and
// cross-image cooldowns.
package buzzer

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"picturebuzz/internal/players"
	"picturebuzz/internal/rooms"
)

// MaxQueue is how many players may wait to answer one image.
const MaxQueue = rooms.QueueCapacity

// Rejections, in the order Buzz checks them.
var (
	ErrCannotBuzz    = errors.New("cannot buzz now")
	ErrBuzzerLocked  = errors.New("buzzer locked")
	ErrEliminated    = errors.New("must wait for next image")
	ErrAlreadyBuzzed = errors.New("already buzzed")
)

// CooldownError rejects a buzz from a player still serving a penalty.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("wait %d seconds", e.Seconds())
}

// Seconds rounds the remaining wait up to whole seconds.
func (e *CooldownError) Seconds() int {
	return int(math.Ceil(e.Remaining.Seconds()))
}

type Result struct {
	Queue    []players.ID
	Locked   bool
	Position int
}

// Buzz queues id if the room is open for buzzes and the player is not
// blocked. An expired cooldown is cleared on the way through.
func Buzz(room *rooms.Room, id players.ID, now time.Time) (Result, error) {
	if room.Players.Get(id) == nil {
		return Result{}, rooms.ErrNotInRoom
	}
	if room.State != rooms.StatePlaying {
		return Result{}, ErrCannotBuzz
	}
	if room.Locked {
		return Result{}, ErrBuzzerLocked
	}
	if room.IsEliminated(id) {
		return Result{}, ErrEliminated
	}
	if until, ok := room.Cooldowns[id]; ok {
		if now.Before(until) {
			return Result{}, &CooldownError{Remaining: until.Sub(now)}
		}
		delete(room.Cooldowns, id)
	}
	if room.InQueue(id) {
		return Result{}, ErrAlreadyBuzzed
	}

	room.Enqueue(id)
	return Result{
		Queue:    slices.Clone(room.Queue),
		Locked:   room.Locked,
		Position: len(room.Queue),
	}, nil
}

// Select marks id as the player answering and moves the room to
// ANSWERING. The player keeps its queue slot until the answer is judged.
func Select(room *rooms.Room, id players.ID) (rooms.Selection, bool) {
	p := room.Players.Get(id)
	if p == nil {
		return rooms.Selection{}, false
	}
	sel := rooms.Selection{ID: p.ID, Name: p.Name}
	room.Selected = &sel
	room.State = rooms.StateAnswering
	return sel, true
}

// Clear lets the host reset the buzzer without judging an answer.
func Clear(room *rooms.Room) {
	room.ResetBuzzer()
	room.State = rooms.StatePlaying
}

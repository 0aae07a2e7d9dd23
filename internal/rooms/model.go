package rooms

import (
	"slices"
	"time"

	"picturebuzz/internal/players"
)

// ConnID identifies one transport connection.
type ConnID string

type State string

const (
	StateLobby     State = "LOBBY"
	StatePlaying   State = "PLAYING"
	StateAnswering State = "ANSWERING"
	StateRoundEnd  State = "ROUND_END"
	StateGameOver  State = "GAME_OVER"
)

// QueueCapacity is the number of buzzes after which the buzzer locks.
const QueueCapacity = 5

type Selection struct {
	ID   players.ID `json:"id"`
	Name string     `json:"name"`
}

type Room struct {
	Code     string
	HostConn ConnID
	Category string
	Mode     string
	State    State

	Players  *players.Roster
	Queue    []players.ID
	Locked   bool
	Selected *Selection

	ImageIndex  int
	TotalImages int
	RevealStep  int

	Cooldowns  map[players.ID]time.Time
	Eliminated map[players.ID]struct{}

	CreatedAt time.Time
	StartedAt time.Time
	EndedAt   time.Time // set when the room enters GAME_OVER
}

func newRoom(code string, host ConnID, category, mode string, now time.Time) *Room {
	return &Room{
		Code:       code,
		HostConn:   host,
		Category:   category,
		Mode:       mode,
		State:      StateLobby,
		Players:    players.NewRoster(),
		Queue:      []players.ID{},
		Cooldowns:  make(map[players.ID]time.Time),
		Eliminated: make(map[players.ID]struct{}),
		CreatedAt:  now,
	}
}

func (r *Room) InQueue(id players.ID) bool {
	return slices.Contains(r.Queue, id)
}

// Enqueue appends id and locks the buzzer once the queue is full. It
// reports false when the buzzer is already locked or id is queued.
func (r *Room) Enqueue(id players.ID) bool {
	if r.Locked || r.InQueue(id) {
		return false
	}
	r.Queue = append(r.Queue, id)
	r.Locked = len(r.Queue) >= QueueCapacity
	return true
}

// Dequeue removes id and unlocks the buzzer if there is room again.
func (r *Room) Dequeue(id players.ID) bool {
	i := slices.Index(r.Queue, id)
	if i < 0 {
		return false
	}
	r.Queue = slices.Delete(r.Queue, i, i+1)
	r.Locked = len(r.Queue) >= QueueCapacity
	return true
}

// ResetBuzzer empties the queue and clears the lock and selection.
func (r *Room) ResetBuzzer() {
	r.Queue = []players.ID{}
	r.Locked = false
	r.Selected = nil
}

func (r *Room) IsEliminated(id players.ID) bool {
	_, ok := r.Eliminated[id]
	return ok
}

// Eliminate blocks id for the rest of the current image. A leftover
// cooldown is dropped so the two never coexist.
func (r *Room) Eliminate(id players.ID) {
	r.Dequeue(id)
	delete(r.Cooldowns, id)
	r.Eliminated[id] = struct{}{}
}

// ClearPenalties forgets every cooldown and elimination.
func (r *Room) ClearPenalties() {
	clear(r.Cooldowns)
	clear(r.Eliminated)
}

func (r *Room) IsSelected(id players.ID) bool {
	return r.Selected != nil && r.Selected.ID == id
}

func (r *Room) purge(id players.ID) {
	r.Dequeue(id)
	delete(r.Cooldowns, id)
	delete(r.Eliminated, id)
	if r.IsSelected(id) {
		r.Selected = nil
		if r.State == StateAnswering {
			r.State = StatePlaying
		}
	}
}

package players

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrDuplicateName = errors.New("name already taken")
	ErrDuplicateID   = errors.New("player already in room")
	ErrNotFound      = errors.New("player not found")
)

// Roster is the ordered player list of a single room. Join order is
// preserved and used as the tie-break when ranking.
//
// Roster is not safe for concurrent use; the owning room serializes access.
type Roster struct {
	order []*Player
	byID  map[ID]*Player
}

func NewRoster() *Roster {
	return &Roster{
		byID: make(map[ID]*Player),
	}
}

func (r *Roster) Add(id ID, name string, joinedAt time.Time) (*Player, error) {
	if _, exists := r.byID[id]; exists {
		return nil, ErrDuplicateID
	}
	if r.NameTaken(name) {
		return nil, ErrDuplicateName
	}
	p := &Player{ID: id, Name: name, Connected: true, JoinedAt: joinedAt}
	r.order = append(r.order, p)
	r.byID[id] = p
	return p, nil
}

func (r *Roster) Get(id ID) *Player {
	return r.byID[id]
}

// NameTaken compares names case-insensitively.
func (r *Roster) NameTaken(name string) bool {
	for _, p := range r.order {
		if strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

func (r *Roster) Remove(id ID) bool {
	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)
	for i, p := range r.order {
		if p.ID == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns the players in join order. The slice is a copy; the
// players are not.
func (r *Roster) List() []*Player {
	list := make([]*Player, len(r.order))
	copy(list, r.order)
	return list
}

func (r *Roster) Summaries() []Summary {
	list := make([]Summary, 0, len(r.order))
	for _, p := range r.order {
		list = append(list, p.Summary())
	}
	return list
}

func (r *Roster) Count() int {
	return len(r.order)
}

func (r *Roster) ResetScores() {
	for _, p := range r.order {
		p.Score = 0
	}
}

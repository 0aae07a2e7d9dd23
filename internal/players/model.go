package players

import "time"

// ID identifies a player within a room. It is issued from the joining
// connection's id but kept as its own type so the two can diverge later.
type ID string

type Player struct {
	ID        ID        `json:"id"`
	Name      string    `json:"name"`
	Score     int       `json:"score"`
	Connected bool      `json:"isConnected"`
	JoinedAt  time.Time `json:"-"`
}

// Summary is the player shape carried by roster broadcasts.
type Summary struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

func (p *Player) Summary() Summary {
	return Summary{ID: p.ID, Name: p.Name, Score: p.Score}
}

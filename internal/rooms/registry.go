package rooms

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"picturebuzz/internal/players"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrAlreadyInRoom = errors.New("connection already joined a room")
	ErrNotInRoom     = errors.New("not a player in this room")
)

// attempts per code length before the code grows by one character
const maxCodeAttempts = 64

type membership struct {
	code string
	id   players.ID
}

// Registry owns every live room plus the connection lookup tables.
// It is not safe for concurrent use: callers serialize access.
type Registry struct {
	rooms   map[string]*Room
	hosts   map[ConnID]string
	members map[ConnID]membership
	now     func() time.Time
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		rooms:   make(map[string]*Room),
		hosts:   make(map[ConnID]string),
		members: make(map[ConnID]membership),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create opens a new room in LOBBY hosted by host. A later Create by the
// same host replaces its host mapping; the older room lives until it is
// swept. A connection that joined a room as a player cannot host.
func (r *Registry) Create(host ConnID, category, mode string) (*Room, error) {
	if _, joined := r.members[host]; joined {
		return nil, ErrAlreadyInRoom
	}
	length := codeLength
	for {
		for range maxCodeAttempts {
			code, err := generateCode(length)
			if err != nil {
				return nil, fmt.Errorf("generating room code: %w", err)
			}
			if _, exists := r.rooms[code]; exists {
				continue
			}
			room := newRoom(code, host, category, mode, r.now())
			r.rooms[code] = room
			r.hosts[host] = code
			return room, nil
		}
		length++
	}
}

// NormalizeCode trims and upper-cases a user supplied room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (r *Registry) Get(code string) (*Room, bool) {
	room, ok := r.rooms[NormalizeCode(code)]
	return room, ok
}

// HostedRoom returns the code of the room conn currently hosts.
func (r *Registry) HostedRoom(conn ConnID) (string, bool) {
	code, ok := r.hosts[conn]
	return code, ok
}

// Membership returns the room and player id conn joined as.
func (r *Registry) Membership(conn ConnID) (string, players.ID, bool) {
	m, ok := r.members[conn]
	return m.code, m.id, ok
}

// ConnOf maps a player back to its connection.
func (r *Registry) ConnOf(id players.ID) ConnID {
	return ConnID(id)
}

func (r *Registry) AddPlayer(code string, conn ConnID, name string) (*players.Player, error) {
	room, ok := r.Get(code)
	if !ok {
		return nil, ErrRoomNotFound
	}
	if _, joined := r.members[conn]; joined {
		return nil, ErrAlreadyInRoom
	}
	// a host is never also a player, in its own room or any other
	if _, hosting := r.hosts[conn]; hosting || room.HostConn == conn {
		return nil, ErrAlreadyInRoom
	}
	id := players.ID(conn)
	p, err := room.Players.Add(id, name, r.now())
	if err != nil {
		return nil, err
	}
	r.members[conn] = membership{code: room.Code, id: id}
	return p, nil
}

// RemovePlayer drops id from the room and every per-player collection.
// It reports false when the room does not exist or id is not a member.
func (r *Registry) RemovePlayer(code string, id players.ID) bool {
	room, ok := r.Get(code)
	if !ok {
		return false
	}
	room.purge(id)
	removed := room.Players.Remove(id)
	conn := r.ConnOf(id)
	if m, ok := r.members[conn]; ok && m.code == room.Code {
		delete(r.members, conn)
	}
	return removed
}

type DisconnectKind int

const (
	DisconnectHost DisconnectKind = iota + 1
	DisconnectPlayer
)

// Disconnect describes what a dropped connection did to its room.
type Disconnect struct {
	Kind     DisconnectKind
	Code     string
	HostConn ConnID

	// host only: everyone who was in the room
	Affected []players.ID

	// player only
	PlayerID     players.ID
	WasSelected  bool
	QueueChanged bool

	Room *Room
}

func (r *Registry) HandleDisconnect(conn ConnID) (Disconnect, bool) {
	if code, ok := r.hosts[conn]; ok {
		if room, ok := r.rooms[code]; ok {
			affected := r.teardown(room)
			return Disconnect{
				Kind:     DisconnectHost,
				Code:     code,
				HostConn: conn,
				Affected: affected,
				Room:     room,
			}, true
		}
		delete(r.hosts, conn)
	}

	m, ok := r.members[conn]
	if !ok {
		return Disconnect{}, false
	}
	delete(r.members, conn)
	room, ok := r.rooms[m.code]
	if !ok {
		return Disconnect{}, false
	}
	out := Disconnect{
		Kind:     DisconnectPlayer,
		Code:     room.Code,
		HostConn: room.HostConn,
		PlayerID: m.id,
		Room:     room,
	}
	if p := room.Players.Get(m.id); p != nil {
		p.Connected = false
		out.QueueChanged = room.Dequeue(m.id)
		if room.IsSelected(m.id) {
			out.WasSelected = true
			room.Selected = nil
			room.State = StatePlaying
		}
	}
	return out, true
}

// Evicted is a room removed by CleanupOldRooms.
type Evicted struct {
	Code     string
	HostConn ConnID
	Players  []players.ID
}

// CleanupOldRooms evicts rooms older than maxAge and returns them in code order.
func (r *Registry) CleanupOldRooms(maxAge time.Duration) []Evicted {
	now := r.now()
	var evicted []Evicted
	for _, room := range r.rooms {
		if now.Sub(room.CreatedAt) > maxAge {
			ids := r.teardown(room)
			evicted = append(evicted, Evicted{Code: room.Code, HostConn: room.HostConn, Players: ids})
		}
	}
	sort.Slice(evicted, func(i, j int) bool { return evicted[i].Code < evicted[j].Code })
	return evicted
}

func (r *Registry) teardown(room *Room) []players.ID {
	ids := make([]players.ID, 0, room.Players.Count())
	for _, p := range room.Players.List() {
		conn := r.ConnOf(p.ID)
		if m, ok := r.members[conn]; ok && m.code == room.Code {
			delete(r.members, conn)
		}
		ids = append(ids, p.ID)
	}
	if r.hosts[room.HostConn] == room.Code {
		delete(r.hosts, room.HostConn)
	}
	delete(r.rooms, room.Code)
	return ids
}

func (r *Registry) Len() int {
	return len(r.rooms)
}

func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.rooms))
	for code := range r.rooms {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

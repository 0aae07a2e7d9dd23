package rooms

import (
	"strings"
	"testing"
	"time"

	"picturebuzz/internal/players"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestRegistry() (*Registry, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	return NewRegistry(WithClock(clock.Now)), clock
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}
	if r.Len() != 0 {
		t.Error("new registry should have no rooms")
	}
}

func TestRegistry_Create(t *testing.T) {
	r, clock := newTestRegistry()
	room, err := r.Create("host-1", "animals", "classic")
	if err != nil {
		t.Fatal(err)
	}
	if room.Code == "" {
		t.Error("room code should not be empty")
	}
	if room.HostConn != "host-1" {
		t.Errorf("HostConn = %q, want %q", room.HostConn, "host-1")
	}
	if room.Category != "animals" || room.Mode != "classic" {
		t.Errorf("Category/Mode = %q/%q", room.Category, room.Mode)
	}
	if room.State != StateLobby {
		t.Errorf("State = %s, want %s", room.State, StateLobby)
	}
	if room.Players.Count() != 0 || len(room.Queue) != 0 || room.Locked || room.Selected != nil {
		t.Error("new room should start with empty collections")
	}
	if !room.CreatedAt.Equal(clock.Now()) {
		t.Errorf("CreatedAt = %v, want %v", room.CreatedAt, clock.Now())
	}
	if code, ok := r.HostedRoom("host-1"); !ok || code != room.Code {
		t.Errorf("HostedRoom = %q, %v", code, ok)
	}
}

func TestRegistry_CreateUniqueCodes(t *testing.T) {
	r := NewRegistry()
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		room, err := r.Create(ConnID("host"), "", "")
		if err != nil {
			t.Fatal(err)
		}
		if seen[room.Code] {
			t.Fatalf("duplicate live room code %q", room.Code)
		}
		seen[room.Code] = true
	}
	if r.Len() != 500 {
		t.Errorf("Len = %d, want 500", r.Len())
	}
}

func TestRegistry_Get(t *testing.T) {
	r, _ := newTestRegistry()
	room, _ := r.Create("host-1", "", "")

	got, ok := r.Get(room.Code)
	if !ok {
		t.Fatal("Get() missed an existing room")
	}
	if got.Code != room.Code {
		t.Errorf("Code = %q, want %q", got.Code, room.Code)
	}

	if _, ok := r.Get(" " + strings.ToLower(room.Code) + " "); !ok {
		t.Error("Get() should normalise case and whitespace")
	}

	if _, ok := r.Get("ZZZZZZZ"); ok {
		t.Error("Get() should miss a nonexistent room")
	}
}

func TestRegistry_HostAndPlayerAreExclusive(t *testing.T) {
	r, _ := newTestRegistry()
	room1, _ := r.Create("host-1", "", "")
	room2, _ := r.Create("host-2", "", "")

	if _, err := r.AddPlayer(room2.Code, "host-1", "Sneaky"); err != ErrAlreadyInRoom {
		t.Errorf("host joining another room error = %v, want ErrAlreadyInRoom", err)
	}
	if room2.Players.Count() != 0 {
		t.Errorf("room2 players = %d, want 0", room2.Players.Count())
	}

	if _, err := r.AddPlayer(room1.Code, "conn-a", "Ada"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Create("conn-a", "", ""); err != ErrAlreadyInRoom {
		t.Errorf("player creating a room error = %v, want ErrAlreadyInRoom", err)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}

	// tearing down a host leaves no membership behind
	out, ok := r.HandleDisconnect("host-2")
	if !ok || out.Kind != DisconnectHost {
		t.Fatalf("HandleDisconnect = %+v, %v", out, ok)
	}
	if _, _, ok := r.Membership("host-2"); ok {
		t.Error("disconnected host must not remain a member anywhere")
	}
}

func TestRegistry_AddPlayer(t *testing.T) {
	r, _ := newTestRegistry()
	room, _ := r.Create("host-1", "", "")

	p, err := r.AddPlayer(room.Code, "conn-a", "Ada")
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != "conn-a" {
		t.Errorf("player ID = %q, want %q", p.ID, "conn-a")
	}
	code, id, ok := r.Membership("conn-a")
	if !ok || code != room.Code || id != p.ID {
		t.Errorf("Membership = %q, %q, %v", code, id, ok)
	}

	if _, err := r.AddPlayer(room.Code, "conn-b", "ADA"); err != players.ErrDuplicateName {
		t.Errorf("duplicate name error = %v, want ErrDuplicateName", err)
	}
	if _, err := r.AddPlayer(room.Code, "conn-a", "Again"); err != ErrAlreadyInRoom {
		t.Errorf("second join error = %v, want ErrAlreadyInRoom", err)
	}
	if _, err := r.AddPlayer(room.Code, "host-1", "Host"); err != ErrAlreadyInRoom {
		t.Errorf("host join error = %v, want ErrAlreadyInRoom", err)
	}
	if _, err := r.AddPlayer("NOPE99", "conn-c", "Cy"); err != ErrRoomNotFound {
		t.Errorf("missing room error = %v, want ErrRoomNotFound", err)
	}
	if _, _, ok := r.Membership("conn-b"); ok {
		t.Error("a rejected join must not leave a mapping behind")
	}
}

func TestRegistry_RemovePlayer(t *testing.T) {
	r, clock := newTestRegistry()
	room, _ := r.Create("host-1", "", "")
	r.AddPlayer(room.Code, "a", "Ada")
	r.AddPlayer(room.Code, "b", "Bob")

	room.State = StateAnswering
	room.Enqueue("a")
	room.Enqueue("b")
	room.Selected = &Selection{ID: "a", Name: "Ada"}
	room.Cooldowns["a"] = clock.Now().Add(time.Second)

	if !r.RemovePlayer(room.Code, "a") {
		t.Fatal("RemovePlayer should return true for a member")
	}
	if room.Players.Get("a") != nil {
		t.Error("player should be gone from the roster")
	}
	if room.InQueue("a") || len(room.Queue) != 1 {
		t.Errorf("queue = %v, want [b]", room.Queue)
	}
	if room.Selected != nil {
		t.Error("selection should be cleared")
	}
	if room.State != StatePlaying {
		t.Errorf("State = %s, want %s", room.State, StatePlaying)
	}
	if _, ok := room.Cooldowns["a"]; ok {
		t.Error("cooldown should be cleared")
	}
	if _, _, ok := r.Membership("a"); ok {
		t.Error("membership should be removed")
	}

	if r.RemovePlayer(room.Code, "a") {
		t.Error("second RemovePlayer should return false")
	}
	if r.RemovePlayer("NOPE99", "b") {
		t.Error("RemovePlayer on a missing room should return false")
	}
}

func TestRegistry_RemovePlayerUnlocksQueue(t *testing.T) {
	r, _ := newTestRegistry()
	room, _ := r.Create("host-1", "", "")
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		r.AddPlayer(room.Code, ConnID(id), "p-"+id)
		room.Enqueue(players.ID(id))
	}
	if !room.Locked {
		t.Fatal("queue of five should be locked")
	}

	r.RemovePlayer(room.Code, "c")

	if room.Locked {
		t.Error("queue should unlock once a slot frees up")
	}
}

func TestRegistry_HostDisconnect(t *testing.T) {
	r, _ := newTestRegistry()
	room, _ := r.Create("host-1", "", "")
	r.AddPlayer(room.Code, "a", "Ada")
	r.AddPlayer(room.Code, "b", "Bob")

	out, ok := r.HandleDisconnect("host-1")
	if !ok {
		t.Fatal("host disconnect should produce an outcome")
	}
	if out.Kind != DisconnectHost {
		t.Errorf("Kind = %v, want DisconnectHost", out.Kind)
	}
	if len(out.Affected) != 2 || out.Affected[0] != "a" || out.Affected[1] != "b" {
		t.Errorf("Affected = %v, want [a b]", out.Affected)
	}
	if _, ok := r.Get(room.Code); ok {
		t.Error("room should be deleted")
	}
	if _, _, ok := r.Membership("a"); ok {
		t.Error("player mappings should be detached")
	}
	if _, ok := r.HostedRoom("host-1"); ok {
		t.Error("host mapping should be removed")
	}
}

func TestRegistry_PlayerDisconnect(t *testing.T) {
	r, _ := newTestRegistry()
	room, _ := r.Create("host-1", "", "")
	r.AddPlayer(room.Code, "a", "Ada")
	r.AddPlayer(room.Code, "b", "Bob")
	room.State = StateAnswering
	room.Enqueue("a")
	room.Enqueue("b")
	room.Selected = &Selection{ID: "a", Name: "Ada"}

	out, ok := r.HandleDisconnect("a")
	if !ok {
		t.Fatal("player disconnect should produce an outcome")
	}
	if out.Kind != DisconnectPlayer || out.PlayerID != "a" || out.HostConn != "host-1" {
		t.Errorf("unexpected outcome: %+v", out)
	}
	if !out.WasSelected || !out.QueueChanged {
		t.Errorf("WasSelected/QueueChanged = %v/%v, want true/true", out.WasSelected, out.QueueChanged)
	}
	p := room.Players.Get("a")
	if p == nil {
		t.Fatal("disconnected player should stay on the roster")
	}
	if p.Connected {
		t.Error("player should be marked disconnected")
	}
	if room.InQueue("a") {
		t.Error("player should be purged from the queue")
	}
	if room.Selected != nil || room.State != StatePlaying {
		t.Errorf("Selected/State = %v/%s, want nil/PLAYING", room.Selected, room.State)
	}
}

func TestRegistry_UnknownDisconnect(t *testing.T) {
	r, _ := newTestRegistry()
	r.Create("host-1", "", "")

	if _, ok := r.HandleDisconnect("stranger"); ok {
		t.Error("unknown connection should yield no outcome")
	}
}

func TestRegistry_CleanupOldRooms(t *testing.T) {
	r, clock := newTestRegistry()
	old, _ := r.Create("host-1", "", "")
	r.AddPlayer(old.Code, "a", "Ada")

	clock.Advance(45 * time.Minute)
	fresh, _ := r.Create("host-2", "", "")

	clock.Advance(30 * time.Minute)
	evicted := r.CleanupOldRooms(time.Hour)

	if len(evicted) != 1 || evicted[0].Code != old.Code {
		t.Fatalf("evicted = %+v, want only %s", evicted, old.Code)
	}
	if len(evicted[0].Players) != 1 || evicted[0].Players[0] != "a" {
		t.Errorf("evicted players = %v, want [a]", evicted[0].Players)
	}
	if _, ok := r.Get(old.Code); ok {
		t.Error("old room should be evicted")
	}
	if _, ok := r.Get(fresh.Code); !ok {
		t.Error("fresh room should survive")
	}
	if _, _, ok := r.Membership("a"); ok {
		t.Error("evicted room's mappings should be released")
	}
	if _, ok := r.HostedRoom("host-1"); ok {
		t.Error("evicted room's host mapping should be released")
	}
}

func TestRegistry_RoomIsolation(t *testing.T) {
	r, _ := newTestRegistry()
	room1, _ := r.Create("host-1", "", "")
	room2, _ := r.Create("host-2", "", "")

	r.AddPlayer(room1.Code, "p1", "Ada")
	if _, err := r.AddPlayer(room2.Code, "p2", "Ada"); err != nil {
		t.Errorf("the same name in another room should be allowed: %v", err)
	}

	if room1.Players.Count() != 1 || room2.Players.Count() != 1 {
		t.Error("each room should only hold its own player")
	}
}

func TestRoom_EnqueueLocksAtCapacity(t *testing.T) {
	r, _ := newTestRegistry()
	room, _ := r.Create("host-1", "", "")

	for i, id := range []players.ID{"a", "b", "c", "d", "e"} {
		if !room.Enqueue(id) {
			t.Fatalf("Enqueue #%d rejected", i+1)
		}
	}
	if !room.Locked {
		t.Error("queue should lock at capacity")
	}
	if room.Enqueue("f") {
		t.Error("Enqueue should be refused once locked")
	}
	if room.Enqueue("a") {
		t.Error("Enqueue should refuse a duplicate")
	}
}

func TestRoom_EliminateDropsCooldown(t *testing.T) {
	r, clock := newTestRegistry()
	room, _ := r.Create("host-1", "", "")
	room.Cooldowns["a"] = clock.Now().Add(time.Second)
	room.Enqueue("a")

	room.Eliminate("a")

	if !room.IsEliminated("a") {
		t.Error("player should be eliminated")
	}
	if _, ok := room.Cooldowns["a"]; ok {
		t.Error("cooldown and elimination must not coexist")
	}
	if room.InQueue("a") {
		t.Error("eliminated player should leave the queue")
	}
}

package game

import (
	"slices"

	"picturebuzz/internal/players"
	"picturebuzz/internal/rooms"
)

// Snapshot is the full room state sent to a client that (re)connects.
type Snapshot struct {
	RoomCode          string           `json:"roomCode"`
	GameState         rooms.State      `json:"gameState"`
	Category          string           `json:"category,omitempty"`
	Mode              string           `json:"mode,omitempty"`
	Players           []players.Player `json:"players"`
	BuzzerQueue       []players.ID     `json:"buzzerQueue"`
	BuzzerLocked      bool             `json:"buzzerLocked"`
	SelectedPlayer    *rooms.Selection `json:"selectedPlayer"`
	CurrentImageIndex int              `json:"currentImageIndex"`
	CurrentRevealStep int              `json:"currentRevealStep"`
	TotalImages       int              `json:"totalImages"`
}

func (e *Engine) Snapshot(code string) (Snapshot, error) {
	room, err := e.room(code)
	if err != nil {
		return Snapshot{}, err
	}
	return snapshotOf(room), nil
}

func snapshotOf(room *rooms.Room) Snapshot {
	list := room.Players.List()
	ps := make([]players.Player, 0, len(list))
	for _, p := range list {
		ps = append(ps, *p)
	}
	var sel *rooms.Selection
	if room.Selected != nil {
		s := *room.Selected
		sel = &s
	}
	return Snapshot{
		RoomCode:          room.Code,
		GameState:         room.State,
		Category:          room.Category,
		Mode:              room.Mode,
		Players:           ps,
		BuzzerQueue:       slices.Clone(room.Queue),
		BuzzerLocked:      room.Locked,
		SelectedPlayer:    sel,
		CurrentImageIndex: room.ImageIndex,
		CurrentRevealStep: room.RevealStep,
		TotalImages:       room.TotalImages,
	}
}

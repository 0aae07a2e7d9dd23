// Package game drives a room through its lifecycle: lobby, the buzz and
// answer loop for each image, and the final standings.
package game

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"picturebuzz/internal/buzzer"
	"picturebuzz/internal/players"
	"picturebuzz/internal/rooms"
	"picturebuzz/internal/scoring"
)

const MaxNameLength = 24

// Engine applies host and player commands to the rooms it owns.
//
// Engine is not safe for concurrent use. Every call must come from the
// single goroutine that owns it so that buzzes are ordered by arrival.
type Engine struct {
	rooms   *rooms.Registry
	now     func() time.Time
	penalty time.Duration
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithPenaltyDuration sets how long a wrong answer blocks a player into
// the next image.
func WithPenaltyDuration(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.penalty = d
		}
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		now:     time.Now,
		penalty: scoring.DefaultPenaltyDuration,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.rooms = rooms.NewRegistry(rooms.WithClock(e.now))
	return e
}

func (e *Engine) Registry() *rooms.Registry {
	return e.rooms
}

func (e *Engine) PenaltyDuration() time.Duration {
	return e.penalty
}

func (e *Engine) room(code string) (*rooms.Room, error) {
	room, ok := e.rooms.Get(code)
	if !ok {
		return nil, rooms.ErrRoomNotFound
	}
	return room, nil
}

func (e *Engine) hostRoom(code string, conn rooms.ConnID) (*rooms.Room, error) {
	room, err := e.room(code)
	if err != nil {
		return nil, err
	}
	if room.HostConn != conn {
		return nil, ErrNotHost
	}
	return room, nil
}

func inState(room *rooms.Room, states ...rooms.State) error {
	if slices.Contains(states, room.State) {
		return nil
	}
	return ErrInvalidState
}

func (e *Engine) CreateRoom(host rooms.ConnID, category, mode string) (*rooms.Room, error) {
	return e.rooms.Create(host, category, mode)
}

type Joined struct {
	Code     string
	HostConn rooms.ConnID
	Player   players.Summary
	Players  []players.Summary
}

func (e *Engine) JoinRoom(code string, conn rooms.ConnID, name string) (Joined, error) {
	room, err := e.room(code)
	if err != nil {
		return Joined{}, err
	}
	if room.State != rooms.StateLobby {
		return Joined{}, ErrGameInProgress
	}
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n == 0 || n > MaxNameLength {
		return Joined{}, ErrInvalidName
	}
	p, err := e.rooms.AddPlayer(room.Code, conn, name)
	if err != nil {
		return Joined{}, err
	}
	return Joined{
		Code:     room.Code,
		HostConn: room.HostConn,
		Player:   p.Summary(),
		Players:  room.Players.Summaries(),
	}, nil
}

type Started struct {
	TotalImages int
	Players     []players.Summary
}

func (e *Engine) StartGame(code string, conn rooms.ConnID, totalImages int) (Started, error) {
	room, err := e.hostRoom(code, conn)
	if err != nil {
		return Started{}, err
	}
	if err := inState(room, rooms.StateLobby); err != nil {
		return Started{}, err
	}
	if room.Players.Count() == 0 {
		return Started{}, ErrNoPlayers
	}
	if totalImages < 1 {
		return Started{}, ErrInvalidTotal
	}

	room.TotalImages = totalImages
	room.ImageIndex = 0
	room.RevealStep = 0
	room.ResetBuzzer()
	room.ClearPenalties()
	room.Players.ResetScores()
	room.StartedAt = e.now()
	room.State = rooms.StatePlaying

	return Started{TotalImages: totalImages, Players: room.Players.Summaries()}, nil
}

func (e *Engine) UpdateRevealStep(code string, conn rooms.ConnID, step int) (int, error) {
	room, err := e.hostRoom(code, conn)
	if err != nil {
		return 0, err
	}
	if step < 0 {
		return 0, ErrInvalidStep
	}
	room.RevealStep = step
	return step, nil
}

// Buzz queues the player behind conn in the given room.
func (e *Engine) Buzz(code string, conn rooms.ConnID) (buzzer.Result, error) {
	room, err := e.room(code)
	if err != nil {
		return buzzer.Result{}, err
	}
	roomCode, id, ok := e.rooms.Membership(conn)
	if !ok || roomCode != room.Code {
		return buzzer.Result{}, rooms.ErrNotInRoom
	}
	return buzzer.Buzz(room, id, e.now())
}

func (e *Engine) SelectPlayer(code string, conn rooms.ConnID, id players.ID) (rooms.Selection, error) {
	room, err := e.hostRoom(code, conn)
	if err != nil {
		return rooms.Selection{}, err
	}
	if err := inState(room, rooms.StatePlaying, rooms.StateAnswering); err != nil {
		return rooms.Selection{}, err
	}
	sel, ok := buzzer.Select(room, id)
	if !ok {
		return rooms.Selection{}, players.ErrNotFound
	}
	return sel, nil
}

type AnswerOutcome struct {
	PlayerID players.ID
	Correct  bool
	Points   int
	Deducted int
	Score    int
	Queue    []players.ID
	Locked   bool
	Players  []players.Summary
}

// ProcessAnswer applies the host's verdict on id's answer. A correct
// answer ends the round and wipes every penalty in the room; a wrong one
// costs points and benches the player for the rest of the image.
func (e *Engine) ProcessAnswer(code string, conn rooms.ConnID, id players.ID, correct bool) (AnswerOutcome, error) {
	room, err := e.hostRoom(code, conn)
	if err != nil {
		return AnswerOutcome{}, err
	}
	if err := inState(room, rooms.StatePlaying, rooms.StateAnswering); err != nil {
		return AnswerOutcome{}, err
	}
	p := room.Players.Get(id)
	if p == nil {
		return AnswerOutcome{}, players.ErrNotFound
	}

	out := AnswerOutcome{PlayerID: id, Correct: correct}
	if correct {
		out.Points = scoring.Award(p, room.RevealStep)
		room.ResetBuzzer()
		room.ClearPenalties()
		room.State = rooms.StateRoundEnd
	} else {
		out.Deducted = scoring.Penalize(p)
		room.Eliminate(id)
		room.Selected = nil
		room.State = rooms.StatePlaying
	}
	out.Score = p.Score
	out.Queue = slices.Clone(room.Queue)
	out.Locked = room.Locked
	out.Players = room.Players.Summaries()
	return out, nil
}

type ImageAdvance struct {
	GameOver        bool
	ImageIndex      int
	TotalImages     int
	Penalized       []players.ID
	PenaltyDuration time.Duration
	FinalScores     []scoring.Standing
}

// NextImage moves to the next picture. Players benched on the old image
// carry a timed cooldown into the new one.
func (e *Engine) NextImage(code string, conn rooms.ConnID) (ImageAdvance, error) {
	room, err := e.hostRoom(code, conn)
	if err != nil {
		return ImageAdvance{}, err
	}
	if err := inState(room, rooms.StatePlaying, rooms.StateAnswering, rooms.StateRoundEnd); err != nil {
		return ImageAdvance{}, err
	}

	room.ImageIndex++
	room.RevealStep = 0
	room.ResetBuzzer()
	clear(room.Cooldowns)

	until := e.now().Add(e.penalty)
	penalized := make([]players.ID, 0, len(room.Eliminated))
	for _, p := range room.Players.List() {
		if room.IsEliminated(p.ID) {
			room.Cooldowns[p.ID] = until
			penalized = append(penalized, p.ID)
		}
	}
	clear(room.Eliminated)

	if room.ImageIndex >= room.TotalImages {
		e.finish(room)
		return ImageAdvance{
			GameOver:    true,
			ImageIndex:  room.ImageIndex,
			TotalImages: room.TotalImages,
			FinalScores: scoring.Rank(room.Players.List()),
		}, nil
	}

	room.State = rooms.StatePlaying
	return ImageAdvance{
		ImageIndex:      room.ImageIndex,
		TotalImages:     room.TotalImages,
		Penalized:       penalized,
		PenaltyDuration: e.penalty,
	}, nil
}

func (e *Engine) ClearBuzzer(code string, conn rooms.ConnID) error {
	room, err := e.hostRoom(code, conn)
	if err != nil {
		return err
	}
	if err := inState(room, rooms.StatePlaying, rooms.StateAnswering, rooms.StateRoundEnd); err != nil {
		return err
	}
	buzzer.Clear(room)
	return nil
}

type Ending struct {
	FinalScores []scoring.Standing
	// JustEnded is false when the room was already in GAME_OVER.
	JustEnded bool
}

// EndGame stops the game from any state.
func (e *Engine) EndGame(code string, conn rooms.ConnID) (Ending, error) {
	room, err := e.hostRoom(code, conn)
	if err != nil {
		return Ending{}, err
	}
	justEnded := room.State != rooms.StateGameOver
	if justEnded {
		e.finish(room)
	}
	return Ending{
		FinalScores: scoring.Rank(room.Players.List()),
		JustEnded:   justEnded,
	}, nil
}

func (e *Engine) finish(room *rooms.Room) {
	room.State = rooms.StateGameOver
	room.EndedAt = e.now()
}

type Departure struct {
	PlayerID    players.ID
	WasSelected bool
	Queue       []players.ID
	Locked      bool
	Players     []players.Summary
}

func (e *Engine) KickPlayer(code string, conn rooms.ConnID, id players.ID) (Departure, error) {
	room, err := e.hostRoom(code, conn)
	if err != nil {
		return Departure{}, err
	}
	return e.depart(room, id)
}

func (e *Engine) LeaveRoom(code string, conn rooms.ConnID) (Departure, error) {
	room, err := e.room(code)
	if err != nil {
		return Departure{}, err
	}
	roomCode, id, ok := e.rooms.Membership(conn)
	if !ok || roomCode != room.Code {
		return Departure{}, rooms.ErrNotInRoom
	}
	return e.depart(room, id)
}

func (e *Engine) depart(room *rooms.Room, id players.ID) (Departure, error) {
	if room.Players.Get(id) == nil {
		return Departure{}, players.ErrNotFound
	}
	wasSelected := room.IsSelected(id)
	e.rooms.RemovePlayer(room.Code, id)
	return Departure{
		PlayerID:    id,
		WasSelected: wasSelected,
		Queue:       slices.Clone(room.Queue),
		Locked:      room.Locked,
		Players:     room.Players.Summaries(),
	}, nil
}

type Submission struct {
	HostConn   rooms.ConnID
	PlayerID   players.ID
	PlayerName string
	Answer     string
}

// SubmitAnswer accepts typed answer text from the selected player for the
// host to judge.
func (e *Engine) SubmitAnswer(code string, conn rooms.ConnID, answer string) (Submission, error) {
	room, err := e.room(code)
	if err != nil {
		return Submission{}, err
	}
	roomCode, id, ok := e.rooms.Membership(conn)
	if !ok || roomCode != room.Code {
		return Submission{}, rooms.ErrNotInRoom
	}
	if room.State != rooms.StateAnswering || !room.IsSelected(id) {
		return Submission{}, ErrNotSelected
	}
	return Submission{
		HostConn:   room.HostConn,
		PlayerID:   id,
		PlayerName: room.Selected.Name,
		Answer:     strings.TrimSpace(answer),
	}, nil
}

func (e *Engine) Disconnect(conn rooms.ConnID) (rooms.Disconnect, bool) {
	return e.rooms.HandleDisconnect(conn)
}

func (e *Engine) Cleanup(maxAge time.Duration) []rooms.Evicted {
	return e.rooms.CleanupOldRooms(maxAge)
}

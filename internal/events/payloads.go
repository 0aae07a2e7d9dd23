package events

import (
	"picturebuzz/internal/players"
	"picturebuzz/internal/scoring"
)

// Inbound payloads.

type CreateRoomRequest struct {
	Category string `json:"category"`
	Mode     string `json:"mode"`
}

type RoomRequest struct {
	RoomCode string `json:"roomCode"`
}

type StartGameRequest struct {
	RoomCode    string `json:"roomCode"`
	TotalImages int    `json:"totalImages"`
}

type RevealStepRequest struct {
	RoomCode string `json:"roomCode"`
	Step     int    `json:"step"`
}

type PlayerRequest struct {
	RoomCode string     `json:"roomCode"`
	PlayerID players.ID `json:"playerId"`
}

type ValidateAnswerRequest struct {
	RoomCode          string     `json:"roomCode"`
	PlayerID          players.ID `json:"playerId"`
	IsCorrect         bool       `json:"isCorrect"`
	CorrectAnswerText string     `json:"correctAnswerText,omitempty"`
}

type JoinRoomRequest struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

type SubmitAnswerRequest struct {
	RoomCode string `json:"roomCode"`
	Answer   string `json:"answer"`
}

// Outbound payloads.

type RoomCreated struct {
	RoomCode string `json:"roomCode"`
	HostID   string `json:"hostId"`
}

type RoomJoined struct {
	RoomCode   string     `json:"roomCode"`
	PlayerID   players.ID `json:"playerId"`
	PlayerName string     `json:"playerName"`
}

type PlayerList struct {
	Players []players.Summary `json:"players"`
}

type PlayerLeft struct {
	PlayerID players.ID        `json:"playerId"`
	Players  []players.Summary `json:"players"`
}

type RoomClosed struct {
	RoomCode string `json:"roomCode"`
	Reason   string `json:"reason"`
}

type GameStarted struct {
	TotalImages int               `json:"totalImages"`
	Players     []players.Summary `json:"players"`
}

type RevealUpdated struct {
	RevealStep int `json:"revealStep"`
}

type AnswerRequest struct {
	PlayerID players.ID `json:"playerId"`
}

type AnswerResult struct {
	PlayerID          players.ID `json:"playerId"`
	IsCorrect         bool       `json:"isCorrect"`
	Points            int        `json:"points,omitempty"`
	Deducted          int        `json:"deducted,omitempty"`
	Score             int        `json:"score"`
	CorrectAnswerText string     `json:"correctAnswerText,omitempty"`
}

type QueueUpdated struct {
	Queue  []players.ID `json:"queue"`
	Locked bool         `json:"locked"`
}

type ImageChanged struct {
	ImageIndex  int `json:"imageIndex"`
	TotalImages int `json:"totalImages"`
}

type GameEnded struct {
	FinalScores []scoring.Standing `json:"finalScores"`
}

type AnswerSubmitted struct {
	PlayerID   players.ID `json:"playerId"`
	PlayerName string     `json:"playerName"`
	Answer     string     `json:"answer"`
}

// Penalty tells a player how long, in milliseconds, they must wait
// before buzzing on the new image.
type Penalty struct {
	Duration int64 `json:"duration"`
}

type Eliminated struct {
	PlayerID players.ID `json:"playerId"`
}

type Error struct {
	Command      string `json:"command"`
	Reason       string `json:"reason"`
	Message      string `json:"message"`
	RetryAfterMs int64  `json:"retryAfterMs,omitempty"`
}

package analytics

import "time"

type PlayerGameStats struct {
	PlayerName string  `json:"playerName"`
	Score      int     `json:"score"`
	Rank       int     `json:"rank"`
	Badges     []Badge `json:"badges"`
}

type PlayerLifetimeStats struct {
	PlayerName  string  `json:"playerName"`
	GamesPlayed int     `json:"gamesPlayed"`
	TotalScore  int     `json:"totalScore"`
	BestGame    int     `json:"bestGame"`
	WinCount    int     `json:"winCount"`
	WinStreak   int     `json:"winStreak"`
	Badges      []Badge `json:"badges"`
}

type LeaderboardEntry struct {
	PlayerName string `json:"playerName"`
	Value      int    `json:"value"`
	Rank       int    `json:"rank"`
}

type GameRecap struct {
	GameID       string            `json:"gameId"`
	RoomCode     string            `json:"roomCode"`
	Category     string            `json:"category"`
	Mode         string            `json:"mode"`
	TotalImages  int               `json:"totalImages"`
	ImagesPlayed int               `json:"imagesPlayed"`
	StartedAt    time.Time         `json:"startedAt"`
	EndedAt      time.Time         `json:"endedAt"`
	Players      []PlayerGameStats `json:"players"`
}

package analytics

type BadgeID string

const (
	BadgeChampion    BadgeID = "champion"
	BadgeCenturion   BadgeID = "centurion"
	BadgeHighRoller  BadgeID = "high_roller"
	BadgeVeteran     BadgeID = "veteran"
	BadgeUnstoppable BadgeID = "unstoppable"
)

type Badge struct {
	ID          BadgeID `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
}

var AllBadges = map[BadgeID]Badge{
	BadgeChampion:    {ID: BadgeChampion, Name: "Champion", Description: "Finished first in a game"},
	BadgeCenturion:   {ID: BadgeCenturion, Name: "Centurion", Description: "100+ points in a single game"},
	BadgeHighRoller:  {ID: BadgeHighRoller, Name: "High Roller", Description: "500+ points in a single game"},
	BadgeVeteran:     {ID: BadgeVeteran, Name: "Veteran", Description: "Played 10+ games"},
	BadgeUnstoppable: {ID: BadgeUnstoppable, Name: "Unstoppable", Description: "3-game win streak"},
}

// EvaluateGameBadges checks which badges a player earned in a single game.
func EvaluateGameBadges(stats PlayerGameStats) []Badge {
	earned := []Badge{}

	// ties for first all count
	if stats.Rank == 1 && stats.Score > 0 {
		earned = append(earned, AllBadges[BadgeChampion])
	}
	if stats.Score >= 100 {
		earned = append(earned, AllBadges[BadgeCenturion])
	}
	if stats.Score >= 500 {
		earned = append(earned, AllBadges[BadgeHighRoller])
	}
	return earned
}

// EvaluateLifetimeBadges checks which badges a player name earned across
// all archived games.
func EvaluateLifetimeBadges(stats PlayerLifetimeStats) []Badge {
	earned := []Badge{}

	if stats.WinStreak >= 3 {
		earned = append(earned, AllBadges[BadgeUnstoppable])
	}
	if stats.GamesPlayed >= 10 {
		earned = append(earned, AllBadges[BadgeVeteran])
	}
	return earned
}

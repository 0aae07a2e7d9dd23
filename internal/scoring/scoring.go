package scoring

import (
	"slices"
	"time"

	"picturebuzz/internal/players"
)

// Points awarded for a correct answer, indexed by reveal step.
var Points = [...]int{100, 80, 60, 50, 40, 30, 20}

const (
	// FallbackPoints applies to any reveal step outside Points.
	FallbackPoints = 20

	WrongAnswerPenalty     = 50
	DefaultPenaltyDuration = 3 * time.Second
)

func PointsForStep(step int) int {
	if step < 0 || step >= len(Points) {
		return FallbackPoints
	}
	return Points[step]
}

// Award credits p for a correct answer at the given reveal step and
// returns the points added.
func Award(p *players.Player, step int) int {
	pts := PointsForStep(step)
	p.Score += pts
	return pts
}

// Penalize docks p for a wrong answer without going below zero and
// returns how much was actually taken.
func Penalize(p *players.Player) int {
	taken := min(p.Score, WrongAnswerPenalty)
	p.Score -= taken
	return taken
}

type Standing struct {
	ID    players.ID `json:"id"`
	Name  string     `json:"name"`
	Score int        `json:"score"`
	Rank  int        `json:"rank"`
}

// Rank orders players by score, highest first. Ties keep join order and
// share a rank.
func Rank(list []*players.Player) []Standing {
	out := make([]Standing, 0, len(list))
	for _, p := range list {
		out = append(out, Standing{ID: p.ID, Name: p.Name, Score: p.Score})
	}
	slices.SortStableFunc(out, func(a, b Standing) int {
		return b.Score - a.Score
	})
	for i := range out {
		if i > 0 && out[i].Score == out[i-1].Score {
			out[i].Rank = out[i-1].Rank
		} else {
			out[i].Rank = i + 1
		}
	}
	return out
}

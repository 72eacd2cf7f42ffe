package game

import "sort"

// TeamScore pairs a team with a point total.
type TeamScore struct {
	TeamID TeamID `json:"teamId"`
	Points int    `json:"points"`
}

// ScoreBoard holds cumulative scores. Creation order breaks ranking ties.
type ScoreBoard struct {
	order  []TeamID
	scores map[TeamID]int
}

func NewScoreBoard(teams []TeamID) *ScoreBoard {
	b := &ScoreBoard{scores: make(map[TeamID]int, len(teams))}
	for _, id := range teams {
		if _, dup := b.scores[id]; dup {
			continue
		}
		b.order = append(b.order, id)
		b.scores[id] = 0
	}
	return b
}

// Award adds points to a team. Scores never decrease.
func (b *ScoreBoard) Award(team TeamID, points int) error {
	if _, ok := b.scores[team]; !ok {
		return ErrUnknownTeam
	}
	if points < 1 {
		return ErrInvalidPoints
	}
	b.scores[team] += points
	return nil
}

func (b *ScoreBoard) Has(team TeamID) bool {
	_, ok := b.scores[team]
	return ok
}

func (b *ScoreBoard) ScoreOf(team TeamID) int {
	return b.scores[team]
}

func (b *ScoreBoard) Total() int {
	total := 0
	for _, s := range b.scores {
		total += s
	}
	return total
}

// Ranking sorts by descending score; equal scores keep creation order.
func (b *ScoreBoard) Ranking() []TeamScore {
	out := make([]TeamScore, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, TeamScore{TeamID: id, Points: b.scores[id]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Points > out[j].Points
	})
	return out
}

// Scores lists every team in creation order.
func (b *ScoreBoard) Scores() []TeamScore {
	out := make([]TeamScore, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, TeamScore{TeamID: id, Points: b.scores[id]})
	}
	return out
}

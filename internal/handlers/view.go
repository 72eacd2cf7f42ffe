package handlers

import (
	"strconv"
	"time"

	"fishbowl/internal/archive"
	"fishbowl/internal/game"
	"fishbowl/internal/viewmodel"
)

var headings = map[game.PhaseKind]string{
	game.PhaseWelcome:       "Welcome",
	game.PhaseTeamSetup:     "Teams",
	game.PhaseWordSettings:  "Words per player",
	game.PhaseTimerSettings: "Turn timer",
	game.PhaseWordInput:     "Fill the bowl",
	game.PhaseRandomization: "Shuffle",
	game.PhaseFinalResults:  "Final results",
}

var backTargets = map[game.PhaseKind]game.PhaseKind{
	game.PhaseTeamSetup:     game.PhaseWelcome,
	game.PhaseWordSettings:  game.PhaseTeamSetup,
	game.PhaseTimerSettings: game.PhaseWordSettings,
	game.PhaseWordInput:     game.PhaseTimerSettings,
	game.PhaseRandomization: game.PhaseWordInput,
}

var ruleText = map[game.Rule]string{
	game.RuleDescribe: "describe it with any words but the word itself",
	game.RuleOneWord:  "a single word as the clue",
	game.RuleMime:     "mime it, no words at all",
}

// buildBoard projects the session for rendering. The caller holds the room
// lock.
func buildBoard(s *game.Session, now time.Time) viewmodel.Board {
	kind := s.Kind()
	ts := s.TurnSettings()
	b := viewmodel.Board{
		SessionID:      s.ID(),
		Version:        s.Version(),
		Phase:          string(kind),
		Heading:        headings[kind],
		BackTo:         string(backTargets[kind]),
		Teams:          teamRows(s),
		WordsPerPlayer: s.WordOptions().WordsPerPlayer,
		WordTarget:     s.WordTarget(),
		TurnSeconds:    int(ts.Duration / time.Second),
		MaxSkips:       ts.MaxSkipsPerTurn,
		RotateOnGuess:  ts.RotateOnGuess,
		TurnsPerTeam:   ts.TurnsPerTeam,
	}
	b.Seed, b.Seeded = s.Seed(), s.Seeded()

	hideText := !kind.Reenterable()
	for _, w := range s.Words() {
		row := viewmodel.WordRow{ID: string(w.ID), Text: w.Text, Guessed: w.Guessed}
		if hideText {
			row.Text = ""
		}
		b.Words = append(b.Words, row)
	}

	switch p := s.Phase().(type) {
	case game.Playing:
		b.Heading = "Round " + strconv.Itoa(int(p.Round))
		b.Turn = buildTurn(s, now)
	case game.RoundResults:
		b.Heading = "Round " + strconv.Itoa(int(p.Round)) + " results"
		b.Results = buildRoundResult(s, p.Round)
	case game.FinalResults:
		if final, err := s.FinalResults(); err == nil {
			b.Final = buildFinal(s, final)
		}
	}
	return b
}

func buildTurn(s *game.Session, now time.Time) *viewmodel.Turn {
	info, ok := s.TurnInfo(now)
	if !ok {
		return nil
	}
	team, _ := s.Team(info.TeamID)
	word, _ := s.CurrentWord()
	t := &viewmodel.Turn{
		Round:     int(info.Round),
		Rule:      string(info.Rule),
		RuleText:  ruleText[info.Rule],
		Number:    info.Turn,
		TeamName:  team.Name,
		TeamColor: team.Color,
		Word:      word.Text,
		Remaining: int((info.Remaining + time.Second - 1) / time.Second),
		Skips:     info.Skips,
		MaxSkips:  s.TurnSettings().MaxSkipsPerTurn,
		Guessed:   info.GuessedThisTurn,
		WordsLeft: info.WordsLeft,
	}
	if deadline, ok := s.Deadline(); ok {
		t.DeadlineMs = deadline.UnixMilli()
	}
	return t
}

func buildRoundResult(s *game.Session, r game.Round) *viewmodel.RoundResult {
	for _, sum := range s.Summaries() {
		if sum.Round != r {
			continue
		}
		res := roundResult(s, sum)
		res.Standings = scoreEntries(s, s.Ranking(), nil)
		res.Last = r == game.LastRound
		return &res
	}
	return nil
}

func roundResult(s *game.Session, sum game.RoundSummary) viewmodel.RoundResult {
	return viewmodel.RoundResult{
		Round:        int(sum.Round),
		Gained:       scoreEntries(s, sum.Gained, nil),
		WordsGuessed: sum.WordsGuessed,
		Turns:        sum.Turns,
		Empty:        sum.Empty,
	}
}

func buildFinal(s *game.Session, final game.FinalSummary) *viewmodel.Final {
	f := &viewmodel.Final{Standings: scoreEntries(s, final.Ranking, final.Winners)}
	for _, id := range final.Winners {
		if t, ok := s.Team(id); ok {
			f.Winners = append(f.Winners, t.Name)
		}
	}
	for _, sum := range final.Rounds {
		f.Rounds = append(f.Rounds, roundResult(s, sum))
	}
	return f
}

func teamRows(s *game.Session) []viewmodel.TeamRow {
	names := make(map[game.PlayerID]string)
	for _, p := range s.Players() {
		names[p.ID] = p.Name
	}
	var active game.TeamID
	if t, err := s.CurrentTeam(); err == nil {
		active = t.ID
	}
	teams := s.Teams()
	rows := make([]viewmodel.TeamRow, 0, len(teams))
	for _, t := range teams {
		row := viewmodel.TeamRow{
			ID:       string(t.ID),
			Name:     t.Name,
			Color:    t.Color,
			Score:    s.ScoreOf(t.ID),
			Active:   t.ID == active,
			Eligible: t.Eligible(),
		}
		for _, id := range t.PlayerIDs {
			row.Players = append(row.Players, viewmodel.PlayerRow{ID: string(id), Name: names[id]})
		}
		rows = append(rows, row)
	}
	return rows
}

func scoreEntries(s *game.Session, scores []game.TeamScore, winners []game.TeamID) []viewmodel.ScoreEntry {
	won := make(map[game.TeamID]bool, len(winners))
	for _, id := range winners {
		won[id] = true
	}
	out := make([]viewmodel.ScoreEntry, 0, len(scores))
	for _, sc := range scores {
		t, _ := s.Team(sc.TeamID)
		out = append(out, viewmodel.ScoreEntry{
			Name:   t.Name,
			Color:  t.Color,
			Points: sc.Points,
			Winner: won[sc.TeamID],
		})
	}
	return out
}

func recentGames(results []archive.Result) []viewmodel.RecentGame {
	out := make([]viewmodel.RecentGame, 0, len(results))
	for _, r := range results {
		g := viewmodel.RecentGame{
			SessionID:  r.SessionID,
			FinishedAt: r.FinishedAt.Format("Jan 2 15:04"),
			Rounds:     r.Rounds,
			Words:      r.Words,
		}
		for _, st := range r.Standings {
			g.Standings = append(g.Standings, viewmodel.ScoreEntry{Name: st.TeamName, Points: st.Points, Winner: st.Winner})
			if st.Winner {
				g.Winners = append(g.Winners, st.TeamName)
			}
		}
		out = append(out, g)
	}
	return out
}

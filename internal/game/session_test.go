package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	phases []Phase
	snaps  []SessionSnapshot
}

func (r *recorder) PhaseChanged(_, to Phase) { r.phases = append(r.phases, to) }

func (r *recorder) SnapshotChanged(s SessionSnapshot) { r.snaps = append(r.snaps, s) }

type table struct {
	s     *Session
	teams []TeamID
	words map[string]WordID
}

// newTable drives a session with two single-player teams and the given words
// up to Randomization.
func newTable(t *testing.T, words ...string) table {
	t.Helper()
	return newTableWith(t, DefaultTurnSettings(), words...)
}

func newTableWith(t *testing.T, ts TurnSettings, words ...string) table {
	t.Helper()
	s := NewSession(Config{ID: "s1", IDs: seqIDs("id"), Seeds: func() int64 { return 42 }})
	tb := table{s: s, words: make(map[string]WordID)}

	require.NoError(t, s.Advance(t0))
	for _, name := range []string{"A", "B"} {
		id, err := s.AddTeam(name, "")
		require.NoError(t, err)
		_, err = s.AddPlayer(id, "player "+name)
		require.NoError(t, err)
		tb.teams = append(tb.teams, id)
	}
	for s.Kind() != PhaseWordInput {
		if s.Kind() == PhaseTimerSettings {
			require.NoError(t, s.SetTurnSettings(ts))
		}
		require.NoError(t, s.Advance(t0))
	}
	for _, text := range words {
		id, err := s.AddWord(text)
		require.NoError(t, err)
		tb.words[text] = id
	}
	require.NoError(t, s.Advance(t0))
	require.Equal(t, PhaseRandomization, s.Kind())
	return tb
}

// play enters the first round and pins its draw order.
func (tb table) play(t *testing.T, order ...string) {
	t.Helper()
	require.NoError(t, tb.s.Advance(t0))
	if len(order) > 0 {
		tb.s.round.draw = tb.s.round.draw[:0]
		for _, text := range order {
			tb.s.round.draw = append(tb.s.round.draw, tb.words[text])
		}
	}
}

func TestSession_ForwardPath(t *testing.T) {
	s := NewSession(Config{IDs: seqIDs("id")})
	rec := &recorder{}
	s.Watch(rec)

	assert.Equal(t, Welcome{}, s.Phase())
	assert.NotEmpty(t, s.ID())

	require.NoError(t, s.Advance(t0))
	a, err := s.AddTeam("A", "")
	require.NoError(t, err)
	b, err := s.AddTeam("B", "#000000")
	require.NoError(t, err)
	_, err = s.AddPlayer(a, "ann")
	require.NoError(t, err)
	_, err = s.AddPlayer(b, "bob")
	require.NoError(t, err)

	require.NoError(t, s.Advance(t0))
	require.NoError(t, s.SetWordsPerPlayer(2))
	require.NoError(t, s.Advance(t0))
	require.NoError(t, s.SetTurnSettings(TurnSettings{Duration: 45 * time.Second, RotateOnGuess: true}))
	require.NoError(t, s.Advance(t0))
	assert.Equal(t, 4, s.WordTarget())
	_, err = s.AddWord("cat")
	require.NoError(t, err)
	require.NoError(t, s.Advance(t0))
	require.NoError(t, s.Advance(t0))

	assert.Equal(t, Playing{Round: Round1, ActiveTeamIndex: 0}, s.Phase())
	assert.Equal(t, []Phase{
		TeamSetup{}, WordSettings{}, TimerSettings{}, WordInput{}, Randomization{},
		Playing{Round: Round1},
	}, rec.phases)
	assert.Len(t, rec.snaps, int(s.Version()))
	assert.Equal(t, s.Version(), rec.snaps[len(rec.snaps)-1].Version)

	team, err := s.CurrentTeam()
	require.NoError(t, err)
	assert.Equal(t, "A", team.Name)
	assert.Equal(t, DefaultColors[0], team.Color)
	assert.Equal(t, 45*time.Second, s.TimeRemaining(t0))
}

func TestSession_ScenarioA(t *testing.T) {
	tb := newTable(t, "cat", "dog", "sun")
	tb.play(t, "cat", "dog", "sun")
	s := tb.s
	a, b := tb.teams[0], tb.teams[1]

	step := func(want TeamID, word string, outcome Outcome) {
		t.Helper()
		team, err := s.CurrentTeam()
		require.NoError(t, err)
		require.Equal(t, want, team.ID)
		w, err := s.CurrentWord()
		require.NoError(t, err)
		require.Equal(t, word, w.Text)
		require.NoError(t, s.Resolve(outcome, t0.Add(time.Second)))
	}
	step(a, "cat", OutcomeGuessed)
	step(b, "dog", OutcomeTimedOut)
	step(a, "dog", OutcomeGuessed)
	step(b, "sun", OutcomeGuessed)

	assert.Equal(t, 2, s.ScoreOf(a))
	assert.Equal(t, 1, s.ScoreOf(b))
	assert.Equal(t, RoundResults{Round: Round1}, s.Phase())
	for _, w := range s.Words() {
		assert.True(t, w.Guessed)
	}
	summaries := s.Summaries()
	require.Len(t, summaries, 1)
	assert.Equal(t, 3, summaries[0].WordsGuessed)
}

func TestSession_NeedsTwoEligibleTeams(t *testing.T) {
	s := NewSession(Config{IDs: seqIDs("id")})
	require.NoError(t, s.Advance(t0))
	a, _ := s.AddTeam("A", "")
	b, _ := s.AddTeam("B", "")
	_, err := s.AddPlayer(a, "ann")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Advance(t0))
	}
	_, err = s.AddWord("cat")
	require.NoError(t, err)
	require.NoError(t, s.Advance(t0))

	err = s.Advance(t0)
	assert.ErrorIs(t, err, ErrPreconditionNotMet)
	var pe *PreconditionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, PhasePlaying, pe.Phase)
	assert.Equal(t, Randomization{}, s.Phase())

	require.NoError(t, s.ReplacePhase(PhaseTeamSetup))
	_, err = s.AddPlayer(b, "bob")
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		require.NoError(t, s.Advance(t0))
	}
	require.NoError(t, s.Advance(t0))
	assert.Equal(t, PhasePlaying, s.Kind())
	assert.Len(t, s.EligibleTeams(), 2)
}

func TestSession_RandomizationNeedsWords(t *testing.T) {
	s := NewSession(Config{})
	for i := 0; i < 4; i++ {
		require.NoError(t, s.Advance(t0))
	}
	assert.ErrorIs(t, s.Advance(t0), ErrPreconditionNotMet)
	assert.Equal(t, PhaseWordInput, s.Kind())
}

func TestSession_OperationsGuardedByPhase(t *testing.T) {
	s := NewSession(Config{})
	_, err := s.AddTeam("A", "")
	assert.ErrorIs(t, err, ErrPreconditionNotMet)
	_, err = s.AddWord("cat")
	assert.ErrorIs(t, err, ErrPreconditionNotMet)
	assert.ErrorIs(t, s.SetWordsPerPlayer(3), ErrPreconditionNotMet)
	assert.ErrorIs(t, s.SetTurnSettings(DefaultTurnSettings()), ErrPreconditionNotMet)
	assert.ErrorIs(t, s.Resolve(OutcomeGuessed, t0), ErrPreconditionNotMet)
	assert.ErrorIs(t, s.SetSeed(1), ErrPreconditionNotMet)
	assert.Equal(t, uint64(0), s.Version())
}

func TestSession_Settings(t *testing.T) {
	s := NewSession(Config{})
	require.NoError(t, s.Advance(t0))
	require.NoError(t, s.Advance(t0))

	assert.ErrorIs(t, s.SetWordsPerPlayer(0), ErrInvalidSetting)
	assert.ErrorIs(t, s.SetWordsPerPlayer(MaxWordsPerPlayer+1), ErrInvalidSetting)
	assert.Equal(t, DefaultWordsPerPlayer, s.WordOptions().WordsPerPlayer)

	require.NoError(t, s.Advance(t0))
	assert.ErrorIs(t, s.SetTurnSettings(TurnSettings{Duration: time.Second}), ErrInvalidSetting)
	assert.ErrorIs(t, s.SetTurnSettings(TurnSettings{Duration: time.Hour}), ErrInvalidSetting)
	assert.ErrorIs(t, s.SetTurnSettings(TurnSettings{Duration: time.Minute, MaxSkipsPerTurn: -1}), ErrInvalidSetting)
	assert.ErrorIs(t, s.SetTurnSettings(TurnSettings{Duration: time.Minute, TurnsPerTeam: -1}), ErrInvalidSetting)
	assert.Equal(t, DefaultTurnSettings(), s.TurnSettings())
}

func TestSession_TeamRoster(t *testing.T) {
	s := NewSession(Config{IDs: seqIDs("id")})
	require.NoError(t, s.Advance(t0))

	_, err := s.AddTeam("  ", "")
	assert.ErrorIs(t, err, ErrInvalidSetting)
	a, _ := s.AddTeam("A", "")
	b, _ := s.AddTeam("B", "")
	_, err = s.AddPlayer("nope", "x")
	assert.ErrorIs(t, err, ErrUnknownTeam)

	p, err := s.AddPlayer(a, "ann")
	require.NoError(t, err)
	require.NoError(t, s.RenamePlayer(p, "anna"))
	require.NoError(t, s.MovePlayer(p, b))

	teamA, _ := s.Team(a)
	teamB, _ := s.Team(b)
	assert.Empty(t, teamA.PlayerIDs)
	assert.Equal(t, []PlayerID{p}, teamB.PlayerIDs)
	assert.Equal(t, []Player{{ID: p, Name: "anna", TeamID: b}}, s.Players())

	require.NoError(t, s.RenameTeam(a, "Apples"))
	require.NoError(t, s.RemoveTeam(b))
	assert.Empty(t, s.Players())
	require.Len(t, s.Teams(), 1)
	assert.Equal(t, "Apples", s.Teams()[0].Name)

	assert.ErrorIs(t, s.RemovePlayer(p), ErrNotFound)
	assert.ErrorIs(t, s.RemoveTeam(b), ErrUnknownTeam)
}

func TestSession_ReplacePhase(t *testing.T) {
	tb := newTable(t, "cat")
	s := tb.s

	assert.ErrorIs(t, s.ReplacePhase(PhasePlaying), ErrPreconditionNotMet)
	require.NoError(t, s.ReplacePhase(PhaseWordInput))
	assert.Equal(t, WordInput{}, s.Phase())
	_, err := s.AddWord("dog")
	require.NoError(t, err)
	require.NoError(t, s.Advance(t0))
	assert.Equal(t, int64(42), s.Seed())

	require.NoError(t, s.Advance(t0))
	assert.ErrorIs(t, s.ReplacePhase(PhaseTeamSetup), ErrPreconditionNotMet)
	assert.ErrorIs(t, s.RenamePlayer("id3", "x"), ErrPreconditionNotMet)
}

func TestSession_SeedFixesDrawOrder(t *testing.T) {
	order := func(seed int64) []WordID {
		tb := newTable(t, "a", "b", "c", "d", "e", "f")
		require.NoError(t, tb.s.SetSeed(seed))
		tb.play(t)
		return tb.s.round.Draw()
	}
	assert.Equal(t, order(11), order(11))
}

func TestSession_FullGameToFinalResults(t *testing.T) {
	tb := newTable(t, "cat", "dog", "sun", "sky")
	s := tb.s
	a, b := tb.teams[0], tb.teams[1]
	rec := &recorder{}
	s.Watch(rec)
	tb.play(t, "cat", "dog", "sun", "sky")

	require.NoError(t, s.Resolve(OutcomeGuessed, t0))
	require.NoError(t, s.Resolve(OutcomeTimedOut, t0))
	assert.Equal(t, Playing{Round: Round1, ActiveTeamIndex: 0}, s.Phase())

	// Advancing a running round is refused.
	assert.ErrorIs(t, s.Advance(t0), ErrPreconditionNotMet)

	require.NoError(t, s.Resolve(OutcomeGuessed, t0))
	require.NoError(t, s.Resolve(OutcomeGuessed, t0))
	require.NoError(t, s.Resolve(OutcomeGuessed, t0))
	assert.Equal(t, RoundResults{Round: Round1}, s.Phase())

	// Every word is guessed, so the later rounds have nothing to play.
	require.NoError(t, s.Advance(t0))
	assert.Equal(t, RoundResults{Round: Round2}, s.Phase())
	require.NoError(t, s.Advance(t0))
	assert.Equal(t, RoundResults{Round: Round3}, s.Phase())
	require.NoError(t, s.Advance(t0))
	assert.Equal(t, FinalResults{}, s.Phase())
	assert.ErrorIs(t, s.Advance(t0), ErrPreconditionNotMet)

	final, err := s.FinalResults()
	require.NoError(t, err)
	assert.Equal(t, []TeamScore{{TeamID: a, Points: 3}, {TeamID: b, Points: 1}}, final.Ranking)
	assert.Equal(t, []TeamID{a}, final.Winners)
	require.Len(t, final.Rounds, 3)
	assert.False(t, final.Rounds[0].Empty)
	assert.True(t, final.Rounds[1].Empty)
	assert.True(t, final.Rounds[2].Empty)

	// Rounds only ever move forward.
	highest := Round(0)
	for _, p := range rec.phases {
		if pl, ok := p.(Playing); ok {
			require.GreaterOrEqual(t, pl.Round, highest)
			highest = pl.Round
		}
	}
}

func TestSession_TurnQuotaCarriesWordsIntoNextRound(t *testing.T) {
	ts := DefaultTurnSettings()
	ts.TurnsPerTeam = 1
	tb := newTableWith(t, ts, "a", "b", "c", "d", "e", "f")
	s := tb.s
	a, b := tb.teams[0], tb.teams[1]
	tb.play(t, "a", "b", "c", "d", "e", "f")

	require.NoError(t, s.Resolve(OutcomeGuessed, t0))
	require.NoError(t, s.Resolve(OutcomeSkipped, t0))
	require.NoError(t, s.Resolve(OutcomeTimedOut, t0))
	require.Equal(t, RoundResults{Round: Round1}, s.Phase())
	sums := s.Summaries()
	require.Len(t, sums, 1)
	assert.Equal(t, RoundSummary{
		Round:        Round1,
		Gained:       []TeamScore{{TeamID: a, Points: 1}, {TeamID: b, Points: 0}},
		WordsGuessed: 1,
		Turns:        2,
	}, sums[0])

	require.NoError(t, s.Advance(t0))
	require.Equal(t, Playing{Round: Round2}, s.Phase())
	info, ok := s.TurnInfo(t0)
	require.True(t, ok)
	assert.Equal(t, RuleOneWord, info.Rule)
	assert.Equal(t, 5, info.WordsLeft)
	assert.Equal(t, a, info.TeamID)

	require.NoError(t, s.ExpireTurn(t0))
	require.NoError(t, s.Resolve(OutcomeGuessed, t0))
	require.Equal(t, RoundResults{Round: Round2}, s.Phase())

	guessedInTwo := 0
	for _, w := range s.Words() {
		if w.GuessedInRound == Round2 {
			guessedInTwo++
			assert.Equal(t, b, w.GuessedBy)
		}
	}
	assert.Equal(t, 1, guessedInTwo)
	sums = s.Summaries()
	require.Len(t, sums, 2)
	assert.False(t, sums[1].Empty)
	assert.Equal(t, 1, sums[1].WordsGuessed)

	// The snapshot of a quota game restores cleanly.
	restored, err := RestoreSession(s.Snapshot(), Config{})
	require.NoError(t, err)
	assert.Equal(t, s.Summaries(), restored.Summaries())
}

func TestSession_TickExpiresTurn(t *testing.T) {
	tb := newTable(t, "cat", "dog")
	tb.play(t)
	s := tb.s

	deadline, ok := s.Deadline()
	require.True(t, ok)
	assert.Equal(t, t0.Add(DefaultTurnDuration), deadline)

	assert.False(t, s.Tick(deadline.Add(-time.Millisecond)))
	assert.True(t, s.Tick(deadline))
	assert.Equal(t, Playing{Round: Round1, ActiveTeamIndex: 1}, s.Phase())

	info, ok := s.TurnInfo(deadline)
	require.True(t, ok)
	assert.Equal(t, 2, info.Turn)
	assert.Equal(t, RuleDescribe, info.Rule)
	assert.Equal(t, tb.teams[1], info.TeamID)
	assert.Equal(t, DefaultTurnDuration, info.Remaining)
	assert.Equal(t, 2, info.WordsLeft)
}

func TestSession_TiedWinners(t *testing.T) {
	tb := newTable(t, "cat", "dog")
	tb.play(t, "cat", "dog")
	s := tb.s
	require.NoError(t, s.Resolve(OutcomeGuessed, t0))
	require.NoError(t, s.Resolve(OutcomeGuessed, t0))
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Advance(t0))
	}
	final, err := s.FinalResults()
	require.NoError(t, err)
	assert.Equal(t, tb.teams, final.Winners)
}

func TestSession_NoWinnerWithoutPoints(t *testing.T) {
	tb := newTable(t, "cat")
	tb.play(t)
	s := tb.s
	s.round.finish()
	require.NoError(t, s.afterTurnEvent(Round1))
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Advance(t0))
	}
	final, err := s.FinalResults()
	require.NoError(t, err)
	assert.Empty(t, final.Winners)
	assert.Len(t, final.Ranking, 2)
}

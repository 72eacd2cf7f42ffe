package game

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/hashicorp/go-set/v3"
)

// SnapshotSchema is bumped whenever SessionSnapshot changes incompatibly.
const SnapshotSchema = 1

// PhaseState is the wire form of Phase.
type PhaseState struct {
	Kind            PhaseKind `json:"kind"`
	Round           Round     `json:"round,omitempty"`
	ActiveTeamIndex int       `json:"activeTeamIndex,omitempty"`
}

func PhaseStateOf(p Phase) PhaseState {
	ps := PhaseState{Kind: p.Kind(), Round: phaseRound(p)}
	if v, ok := p.(Playing); ok {
		ps.ActiveTeamIndex = v.ActiveTeamIndex
	}
	return ps
}

// Phase converts the wire form back to the sum type.
func (ps PhaseState) Phase() (Phase, error) {
	switch ps.Kind {
	case PhasePlaying, PhaseRoundResults:
		if !ps.Round.Valid() {
			return nil, fmt.Errorf("%s with round %d", ps.Kind, ps.Round)
		}
		if ps.Kind == PhasePlaying {
			return Playing{Round: ps.Round, ActiveTeamIndex: ps.ActiveTeamIndex}, nil
		}
		return RoundResults{Round: ps.Round}, nil
	}
	if p, ok := setupPhase(ps.Kind); ok {
		return p, nil
	}
	return nil, fmt.Errorf("unknown phase %q", ps.Kind)
}

type TeamState struct {
	Team
	Score int `json:"score"`
}

// RoundSnapshot is the transient state of the running round.
type RoundSnapshot struct {
	Round           Round       `json:"round"`
	State           RoundState  `json:"state"`
	Seed            int64       `json:"seed"`
	Draw            []WordID    `json:"draw"`
	Turn            int         `json:"turn"`
	TurnStartedAt   time.Time   `json:"turnStartedAt"`
	ActiveTeamIndex int         `json:"activeTeamIndex"`
	Skips           int         `json:"skips"`
	GuessedThisTurn int         `json:"guessedThisTurn"`
	Gained          []TeamScore `json:"gained"`
}

// SessionSnapshot is the complete, versioned state of a session, broadcast by
// the synchronizer after every mutation.
type SessionSnapshot struct {
	Schema       int            `json:"schema"`
	SessionID    string         `json:"sessionId"`
	Version      uint64         `json:"version"`
	Phase        PhaseState     `json:"phase"`
	HighestRound Round          `json:"highestRound,omitempty"`
	Players      []Player       `json:"players"`
	Teams        []TeamState    `json:"teams"`
	Words        []Word         `json:"words"`
	WordOptions  WordOptions    `json:"wordOptions"`
	TurnSettings TurnSettings   `json:"turnSettings"`
	Seed         int64          `json:"seed"`
	Seeded       bool           `json:"seeded"`
	Round        *RoundSnapshot `json:"round,omitempty"`
	Summaries    []RoundSummary `json:"summaries,omitempty"`
	Final        *FinalSummary  `json:"final,omitempty"`
}

func (s *Session) Snapshot() SessionSnapshot {
	snap := SessionSnapshot{
		Schema:       SnapshotSchema,
		SessionID:    s.id,
		Version:      s.version,
		Phase:        PhaseStateOf(s.currentPhase()),
		HighestRound: s.highestRound,
		Players:      s.Players(),
		Words:        s.pool.Words(),
		WordOptions:  s.wordOptions,
		TurnSettings: s.turnSettings,
		Seed:         s.seed,
		Seeded:       s.seeded,
		Summaries:    s.Summaries(),
	}
	for _, t := range s.Teams() {
		snap.Teams = append(snap.Teams, TeamState{Team: t, Score: s.ScoreOf(t.ID)})
	}
	if rc := s.round; rc != nil {
		snap.Round = &RoundSnapshot{
			Round:           rc.round,
			State:           rc.state,
			Seed:            rc.seed,
			Draw:            rc.Draw(),
			Turn:            rc.clock.Turn,
			TurnStartedAt:   rc.clock.StartedAt,
			ActiveTeamIndex: s.rotation.Index(),
			Skips:           rc.skips,
			GuessedThisTurn: rc.guessedThisTurn,
			Gained:          rc.summary().Gained,
		}
	}
	if s.final != nil {
		f := *s.final
		snap.Final = &f
	}
	return snap
}

// ApplySnapshot replaces local state with a remote snapshot. The snapshot must
// belong to this session, be newer than the local version, never rewind play
// and satisfy every invariant; otherwise a *ConflictError is returned and
// local state is untouched.
func (s *Session) ApplySnapshot(snap SessionSnapshot) error {
	conflict := func(reason string) error {
		return &ConflictError{Reason: reason, Local: s.version, Remote: snap.Version}
	}
	switch {
	case snap.Schema != SnapshotSchema:
		return conflict(fmt.Sprintf("schema %d, want %d", snap.Schema, SnapshotSchema))
	case snap.SessionID != s.id:
		return conflict("snapshot belongs to session " + snap.SessionID)
	case snap.Version <= s.version:
		return conflict("snapshot is not newer than local state")
	case snap.HighestRound < s.highestRound:
		return conflict("snapshot rewinds to an earlier round")
	}
	r, err := restoreSession(snap)
	if err != nil {
		return conflict(err.Error())
	}
	if local := phaseOrder[s.phase.Kind()]; local >= phaseOrder[PhasePlaying] {
		if r.highestRound == s.highestRound && phaseOrder[r.phase.Kind()] < local {
			return conflict(fmt.Sprintf("snapshot moves back from %s to %s", s.phase.Kind(), r.phase.Kind()))
		}
		if err := frozenSince(s, r); err != nil {
			return conflict(err.Error())
		}
	}

	before := s.currentPhase()
	s.version = r.version
	s.phase = r.phase
	s.highestRound = r.highestRound
	s.players = r.players
	s.teams = r.teams
	r.pool.newID = s.newID
	s.pool = r.pool
	s.wordOptions = r.wordOptions
	s.turnSettings = r.turnSettings
	s.seed, s.seeded = r.seed, r.seeded
	s.scores, s.rotation, s.round = r.scores, r.rotation, r.round
	s.summaries = r.summaries
	s.final = r.final
	s.publish(before)
	return nil
}

// RestoreSession builds a session from a snapshot, for example one loaded
// from persistent storage.
func RestoreSession(snap SessionSnapshot, cfg Config) (*Session, error) {
	if snap.Schema != SnapshotSchema {
		return nil, fmt.Errorf("snapshot schema %d: %w", snap.Schema, ErrConflict)
	}
	r, err := restoreSession(snap)
	if err != nil {
		return nil, &ConflictError{Reason: err.Error(), Remote: snap.Version}
	}
	if cfg.IDs != nil {
		r.newID = cfg.IDs
		r.pool.newID = cfg.IDs
	}
	if cfg.Seeds != nil {
		r.seeds = cfg.Seeds
	}
	return r, nil
}

// frozenSince compares the state fixed once play begins: turn settings, the
// roster and its order, and the text of every word.
func frozenSince(local, remote *Session) error {
	if local.turnSettings != remote.turnSettings {
		return errors.New("turn settings changed during play")
	}
	if len(local.teams) != len(remote.teams) {
		return errors.New("teams changed during play")
	}
	for i, t := range local.teams {
		rt := remote.teams[i]
		if t.ID != rt.ID {
			return errors.New("team order changed during play")
		}
		if t.Name != rt.Name || t.Color != rt.Color || !slices.Equal(t.PlayerIDs, rt.PlayerIDs) {
			return fmt.Errorf("team %s changed during play", t.ID)
		}
	}
	if !slices.Equal(local.players, remote.players) {
		return errors.New("players changed during play")
	}
	words := local.pool.Words()
	if len(words) != remote.pool.Len() {
		return errors.New("word pool changed during play")
	}
	for _, w := range words {
		rw, ok := remote.pool.Get(w.ID)
		if !ok {
			return fmt.Errorf("word %s missing from snapshot", w.ID)
		}
		if rw.Text != w.Text {
			return fmt.Errorf("word %s text changed", w.ID)
		}
		if w.Guessed && (rw.GuessedBy != w.GuessedBy || rw.GuessedInRound != w.GuessedInRound) {
			return fmt.Errorf("word %s guess rewritten", w.ID)
		}
	}
	return nil
}

func (s *Session) publish(before Phase) {
	after := s.currentPhase()
	if after != before {
		for _, o := range s.observers {
			o.PhaseChanged(before, after)
		}
	}
	if len(s.observers) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, o := range s.observers {
		o.SnapshotChanged(snap)
	}
}

func restoreSession(snap SessionSnapshot) (*Session, error) {
	phase, err := snap.Phase.Phase()
	if err != nil {
		return nil, err
	}
	if err := snap.TurnSettings.validate(); err != nil {
		return nil, err
	}
	if n := snap.WordOptions.WordsPerPlayer; n < 1 || n > MaxWordsPerPlayer {
		return nil, fmt.Errorf("words per player %d out of range", n)
	}

	s := NewSession(Config{ID: snap.SessionID, Turn: snap.TurnSettings})
	s.version = snap.Version
	s.phase = phase
	s.highestRound = snap.HighestRound
	s.wordOptions = snap.WordOptions
	s.seed, s.seeded = snap.Seed, snap.Seeded

	if err := restoreRoster(s, snap); err != nil {
		return nil, err
	}
	for _, w := range snap.Words {
		if err := checkWord(w, s); err != nil {
			return nil, err
		}
		s.pool.restore(w)
	}
	if !unique(wordIDs(snap.Words)) {
		return nil, errors.New("duplicate word id")
	}

	playing := phaseOrder[phase.Kind()] >= phaseOrder[PhasePlaying]
	if playing {
		if err := restorePlay(s, snap); err != nil {
			return nil, err
		}
	} else if snap.Round != nil || snap.HighestRound != 0 || len(snap.Summaries) > 0 {
		return nil, errors.New("round state outside of play")
	}
	if r := phaseRound(phase); r != 0 && r != snap.HighestRound {
		return nil, fmt.Errorf("phase round %d but highest round %d", r, snap.HighestRound)
	}

	s.summaries = append([]RoundSummary(nil), snap.Summaries...)
	switch {
	case phase.Kind() == PhaseFinalResults && snap.Final == nil:
		return nil, errors.New("final results missing")
	case phase.Kind() != PhaseFinalResults && snap.Final != nil:
		return nil, errors.New("final results before the end")
	case snap.Final != nil:
		f := *snap.Final
		s.final = &f
	}
	return s, nil
}

func restoreRoster(s *Session, snap SessionSnapshot) error {
	teamIDs := make([]TeamID, 0, len(snap.Teams))
	for _, ts := range snap.Teams {
		teamIDs = append(teamIDs, ts.ID)
		t := ts.Team
		t.PlayerIDs = append([]PlayerID(nil), ts.PlayerIDs...)
		s.teams = append(s.teams, t)
	}
	if !unique(teamIDs) {
		return errors.New("duplicate team id")
	}
	known := set.From(teamIDs)
	playerIDs := make([]PlayerID, 0, len(snap.Players))
	members := make(map[PlayerID]TeamID, len(snap.Players))
	for _, p := range snap.Players {
		if !known.Contains(p.TeamID) {
			return fmt.Errorf("player %s on unknown team %s", p.ID, p.TeamID)
		}
		playerIDs = append(playerIDs, p.ID)
		members[p.ID] = p.TeamID
	}
	if !unique(playerIDs) {
		return errors.New("duplicate player id")
	}
	listed := 0
	for _, t := range s.teams {
		for _, pid := range t.PlayerIDs {
			if members[pid] != t.ID {
				return fmt.Errorf("team %s lists player %s it does not own", t.ID, pid)
			}
			listed++
		}
	}
	if listed != len(playerIDs) {
		return errors.New("team rosters do not match players")
	}
	s.players = append([]Player(nil), snap.Players...)
	return nil
}

func checkWord(w Word, s *Session) error {
	if w.Text == "" {
		return fmt.Errorf("word %s has no text", w.ID)
	}
	if w.Guessed != (w.GuessedBy != "") || w.Guessed != (w.GuessedInRound != 0) {
		return fmt.Errorf("word %s guessed state is inconsistent", w.ID)
	}
	if w.Guessed {
		if s.teamIndex(w.GuessedBy) < 0 {
			return fmt.Errorf("word %s guessed by unknown team", w.ID)
		}
		if !w.GuessedInRound.Valid() {
			return fmt.Errorf("word %s guessed in round %d", w.ID, w.GuessedInRound)
		}
	}
	return nil
}

func restorePlay(s *Session, snap SessionSnapshot) error {
	if !snap.HighestRound.Valid() {
		return fmt.Errorf("highest round %d during play", snap.HighestRound)
	}
	eligible := s.EligibleTeams()
	if len(eligible) < MinEligibleTeams {
		return errors.New("not enough eligible teams for play")
	}
	ids := make([]TeamID, 0, len(eligible))
	for _, t := range eligible {
		ids = append(ids, t.ID)
	}
	s.rotation = NewTeamRotation(eligible)
	s.scores = NewScoreBoard(ids)

	total := 0
	for _, ts := range snap.Teams {
		if ts.Score < 0 {
			return fmt.Errorf("team %s has negative score", ts.ID)
		}
		if ts.Score == 0 {
			continue
		}
		if !s.scores.Has(ts.ID) {
			return fmt.Errorf("ineligible team %s has points", ts.ID)
		}
		if err := s.scores.Award(ts.ID, ts.Score); err != nil {
			return fmt.Errorf("team %s score: %w", ts.ID, err)
		}
		total += ts.Score
	}
	if total != s.pool.GuessedCount() {
		return fmt.Errorf("scores sum to %d but %d words are guessed", total, s.pool.GuessedCount())
	}
	if err := checkSummaries(s, snap.Summaries); err != nil {
		return err
	}

	playing, isPlaying := s.phase.(Playing)
	if !isPlaying {
		if snap.Round != nil {
			return errors.New("round state outside of a running round")
		}
		return nil
	}
	rs := snap.Round
	switch {
	case rs == nil:
		return errors.New("running round missing")
	case rs.Round != playing.Round:
		return fmt.Errorf("round state for round %d during round %d", rs.Round, playing.Round)
	case rs.State != RoundTurnActive:
		return fmt.Errorf("round state %s during play", rs.State)
	case rs.ActiveTeamIndex != playing.ActiveTeamIndex:
		return errors.New("active team index disagrees with phase")
	case len(rs.Draw) == 0:
		return errors.New("empty draw order during play")
	}
	if err := s.rotation.seek(rs.ActiveTeamIndex); err != nil {
		return fmt.Errorf("active team index %d: %w", rs.ActiveTeamIndex, err)
	}
	if !unique(rs.Draw) || len(rs.Draw) != s.pool.RemainingUnguessedCount() {
		return errors.New("draw order does not cover the unguessed words")
	}
	if q := s.turnSettings.TurnsPerTeam; q > 0 && rs.Turn > q*s.rotation.Len() {
		return fmt.Errorf("turn %d is past the quota of %d per team", rs.Turn, q)
	}
	if err := checkGained(s, rs.Round, rs.Gained); err != nil {
		return err
	}
	for _, id := range rs.Draw {
		w, ok := s.pool.Get(id)
		if !ok || w.Guessed {
			return fmt.Errorf("draw order holds unplayable word %s", id)
		}
	}

	rc := NewRoundController(rs.Round, s.pool, s.rotation, s.scores, s.turnSettings)
	rc.state = rs.State
	rc.seed = rs.Seed
	rc.draw = append([]WordID(nil), rs.Draw...)
	rc.clock.Turn = rs.Turn
	rc.clock.StartedAt = rs.TurnStartedAt
	rc.skips = rs.Skips
	rc.guessedThisTurn = rs.GuessedThisTurn
	for _, g := range rs.Gained {
		if g.Points > 0 {
			rc.gained[g.TeamID] = g.Points
		}
	}
	s.round = rc
	return nil
}

// checkSummaries requires one summary per closed round, in order, each
// matching the words guessed in that round.
func checkSummaries(s *Session, sums []RoundSummary) error {
	closed := int(s.highestRound)
	if p, ok := s.phase.(Playing); ok {
		closed = int(p.Round) - 1
	}
	if len(sums) != closed {
		return fmt.Errorf("%d round summaries for %d closed rounds", len(sums), closed)
	}
	for i, sum := range sums {
		if sum.Round != Round(i+1) {
			return fmt.Errorf("summary %d is for round %d", i+1, sum.Round)
		}
		if sum.Turns < 0 {
			return fmt.Errorf("round %d has %d turns", sum.Round, sum.Turns)
		}
		if err := checkGained(s, sum.Round, sum.Gained); err != nil {
			return err
		}
		if n := guessedTotal(s.pool, sum.Round); sum.WordsGuessed != n {
			return fmt.Errorf("round %d summary counts %d words, %d were guessed", sum.Round, sum.WordsGuessed, n)
		}
		if sum.Empty && sum.WordsGuessed != 0 {
			return fmt.Errorf("empty round %d has guessed words", sum.Round)
		}
	}
	return nil
}

// checkGained requires per-team points for round r to match the words each
// team guessed in that round.
func checkGained(s *Session, r Round, gained []TeamScore) error {
	want := make(map[TeamID]int)
	for _, w := range s.pool.Words() {
		if w.Guessed && w.GuessedInRound == r {
			want[w.GuessedBy]++
		}
	}
	seen := make(map[TeamID]bool, len(gained))
	for _, g := range gained {
		switch {
		case !s.scores.Has(g.TeamID):
			return fmt.Errorf("round %d credits ineligible team %s", r, g.TeamID)
		case seen[g.TeamID]:
			return fmt.Errorf("round %d credits team %s twice", r, g.TeamID)
		case g.Points != want[g.TeamID]:
			return fmt.Errorf("round %d credits team %s with %d, it guessed %d", r, g.TeamID, g.Points, want[g.TeamID])
		}
		seen[g.TeamID] = true
	}
	for id, n := range want {
		if !seen[id] && n > 0 {
			return fmt.Errorf("round %d omits %d words guessed by team %s", r, n, id)
		}
	}
	return nil
}

func guessedTotal(p *WordPool, r Round) int {
	n := 0
	for _, w := range p.Words() {
		if w.Guessed && w.GuessedInRound == r {
			n++
		}
	}
	return n
}

func unique[T comparable](items []T) bool {
	seen := set.New[T](len(items))
	for _, it := range items {
		if !seen.Insert(it) {
			return false
		}
	}
	return true
}

func wordIDs(words []Word) []WordID {
	ids := make([]WordID, 0, len(words))
	for _, w := range words {
		ids = append(ids, w.ID)
	}
	return ids
}

package game

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// WordOptions are chosen in the WordSettings phase.
type WordOptions struct {
	// WordsPerPlayer is the collection target shown while words are entered.
	WordsPerPlayer int `json:"wordsPerPlayer"`
}

const (
	DefaultWordsPerPlayer = 3
	MaxWordsPerPlayer     = 20
	MinEligibleTeams      = 2
)

// FinalSummary is computed once, after the last round's results.
type FinalSummary struct {
	Ranking []TeamScore    `json:"ranking"`
	Winners []TeamID       `json:"winners"`
	Rounds  []RoundSummary `json:"rounds"`
}

// Observer is notified after every committed mutation. PhaseChanged fires
// before SnapshotChanged when the phase value moved.
type Observer interface {
	PhaseChanged(from, to Phase)
	SnapshotChanged(SessionSnapshot)
}

type Config struct {
	ID   string
	Turn TurnSettings
	// IDs mints player, team and word ids. Defaults to UUIDs.
	IDs IDSource
	// Seeds draws the session seed when none was set. Defaults to math/rand.
	Seeds func() int64
}

// Session is the aggregate root of one play-through. It is not safe for
// concurrent use: the owner serializes every call.
type Session struct {
	id           string
	version      uint64
	phase        Phase
	highestRound Round

	players []Player
	teams   []Team
	pool    *WordPool

	wordOptions  WordOptions
	turnSettings TurnSettings
	seed         int64
	seeded       bool

	scores    *ScoreBoard
	rotation  *TeamRotation
	round     *RoundController
	summaries []RoundSummary
	final     *FinalSummary

	newID     IDSource
	seeds     func() int64
	observers []Observer
}

func NewSession(cfg Config) *Session {
	if cfg.IDs == nil {
		cfg.IDs = uuidSource
	}
	if cfg.Seeds == nil {
		cfg.Seeds = rand.Int63
	}
	if cfg.ID == "" {
		cfg.ID = cfg.IDs()
	}
	if cfg.Turn.Duration == 0 {
		cfg.Turn = DefaultTurnSettings()
	}
	return &Session{
		id:           cfg.ID,
		phase:        Welcome{},
		pool:         NewWordPool(cfg.IDs),
		wordOptions:  WordOptions{WordsPerPlayer: DefaultWordsPerPlayer},
		turnSettings: cfg.Turn,
		newID:        cfg.IDs,
		seeds:        cfg.Seeds,
	}
}

func (s *Session) Watch(o Observer) {
	s.observers = append(s.observers, o)
}

func (s *Session) ID() string { return s.id }
func (s *Session) Version() uint64 { return s.version }
func (s *Session) Seed() int64 { return s.seed }
func (s *Session) Seeded() bool { return s.seeded }
func (s *Session) Phase() Phase { return s.currentPhase() }
func (s *Session) Kind() PhaseKind { return s.phase.Kind() }

func (s *Session) currentPhase() Phase {
	if p, ok := s.phase.(Playing); ok && s.rotation != nil {
		p.ActiveTeamIndex = s.rotation.Index()
		return p
	}
	return s.phase
}

// commit publishes a successful mutation.
func (s *Session) commit(before Phase) {
	s.version++
	s.publish(before)
}

func (s *Session) require(kind PhaseKind, op string) error {
	if s.phase.Kind() != kind {
		return preconditionf(s.phase.Kind(), "%s is only allowed during %s", op, kind)
	}
	return nil
}

// --- team setup ---

func (s *Session) AddTeam(name, color string) (TeamID, error) {
	if err := s.require(PhaseTeamSetup, "adding a team"); err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("team name required: %w", ErrInvalidSetting)
	}
	if color = strings.TrimSpace(color); color == "" {
		color = DefaultColors[len(s.teams)%len(DefaultColors)]
	}
	before := s.currentPhase()
	t := Team{ID: TeamID(s.newID()), Name: name, Color: color}
	s.teams = append(s.teams, t)
	s.commit(before)
	return t.ID, nil
}

func (s *Session) RenameTeam(id TeamID, name string) error {
	if err := s.require(PhaseTeamSetup, "renaming a team"); err != nil {
		return err
	}
	i := s.teamIndex(id)
	if i < 0 {
		return ErrUnknownTeam
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("team name required: %w", ErrInvalidSetting)
	}
	before := s.currentPhase()
	s.teams[i].Name = name
	s.commit(before)
	return nil
}

// RemoveTeam deletes a team together with its players.
func (s *Session) RemoveTeam(id TeamID) error {
	if err := s.require(PhaseTeamSetup, "removing a team"); err != nil {
		return err
	}
	i := s.teamIndex(id)
	if i < 0 {
		return ErrUnknownTeam
	}
	before := s.currentPhase()
	s.teams = append(s.teams[:i], s.teams[i+1:]...)
	kept := s.players[:0]
	for _, p := range s.players {
		if p.TeamID != id {
			kept = append(kept, p)
		}
	}
	s.players = kept
	s.commit(before)
	return nil
}

func (s *Session) AddPlayer(team TeamID, name string) (PlayerID, error) {
	if err := s.require(PhaseTeamSetup, "adding a player"); err != nil {
		return "", err
	}
	i := s.teamIndex(team)
	if i < 0 {
		return "", ErrUnknownTeam
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("player name required: %w", ErrInvalidSetting)
	}
	before := s.currentPhase()
	p := Player{ID: PlayerID(s.newID()), Name: name, TeamID: team}
	s.players = append(s.players, p)
	s.teams[i].PlayerIDs = append(s.teams[i].PlayerIDs, p.ID)
	s.commit(before)
	return p.ID, nil
}

// RenamePlayer is allowed until play begins.
func (s *Session) RenamePlayer(id PlayerID, name string) error {
	if phaseOrder[s.phase.Kind()] >= phaseOrder[PhasePlaying] {
		return preconditionf(s.phase.Kind(), "player names are fixed once play begins")
	}
	i := s.playerIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("player name required: %w", ErrInvalidSetting)
	}
	before := s.currentPhase()
	s.players[i].Name = name
	s.commit(before)
	return nil
}

func (s *Session) MovePlayer(id PlayerID, to TeamID) error {
	if err := s.require(PhaseTeamSetup, "moving a player"); err != nil {
		return err
	}
	i := s.playerIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	ti := s.teamIndex(to)
	if ti < 0 {
		return ErrUnknownTeam
	}
	before := s.currentPhase()
	s.detachPlayer(s.players[i])
	s.players[i].TeamID = to
	s.teams[ti].PlayerIDs = append(s.teams[ti].PlayerIDs, id)
	s.commit(before)
	return nil
}

func (s *Session) RemovePlayer(id PlayerID) error {
	if err := s.require(PhaseTeamSetup, "removing a player"); err != nil {
		return err
	}
	i := s.playerIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	before := s.currentPhase()
	s.detachPlayer(s.players[i])
	s.players = append(s.players[:i], s.players[i+1:]...)
	s.commit(before)
	return nil
}

func (s *Session) detachPlayer(p Player) {
	ti := s.teamIndex(p.TeamID)
	if ti < 0 {
		return
	}
	ids := s.teams[ti].PlayerIDs
	for j, pid := range ids {
		if pid == p.ID {
			s.teams[ti].PlayerIDs = append(ids[:j:j], ids[j+1:]...)
			return
		}
	}
}

// --- settings and words ---

func (s *Session) SetWordsPerPlayer(n int) error {
	if err := s.require(PhaseWordSettings, "changing word settings"); err != nil {
		return err
	}
	if n < 1 || n > MaxWordsPerPlayer {
		return fmt.Errorf("words per player %d: %w", n, ErrInvalidSetting)
	}
	before := s.currentPhase()
	s.wordOptions.WordsPerPlayer = n
	s.commit(before)
	return nil
}

func (s *Session) SetTurnSettings(ts TurnSettings) error {
	if err := s.require(PhaseTimerSettings, "changing the turn timer"); err != nil {
		return err
	}
	if err := ts.validate(); err != nil {
		return err
	}
	before := s.currentPhase()
	s.turnSettings = ts
	s.commit(before)
	return nil
}

func (s *Session) AddWord(text string) (WordID, error) {
	if err := s.require(PhaseWordInput, "adding a word"); err != nil {
		return "", err
	}
	before := s.currentPhase()
	id, err := s.pool.Add(text)
	if err != nil {
		return "", err
	}
	s.commit(before)
	return id, nil
}

// RemoveWord is also how a word is edited: remove it and add the new text.
func (s *Session) RemoveWord(id WordID) error {
	if err := s.require(PhaseWordInput, "removing a word"); err != nil {
		return err
	}
	before := s.currentPhase()
	if err := s.pool.Remove(id); err != nil {
		return err
	}
	s.commit(before)
	return nil
}

// SetSeed pins the draw order seed. Only legal during Randomization.
func (s *Session) SetSeed(seed int64) error {
	if err := s.require(PhaseRandomization, "setting the seed"); err != nil {
		return err
	}
	before := s.currentPhase()
	s.seed, s.seeded = seed, true
	s.commit(before)
	return nil
}

// --- phase transitions ---

// Advance moves one step along the forward path, validating the target
// phase's preconditions. On failure the session stays where it is.
func (s *Session) Advance(now time.Time) error {
	before := s.currentPhase()
	switch cur := s.phase.(type) {
	case Welcome:
		s.phase = TeamSetup{}
	case TeamSetup:
		s.phase = WordSettings{}
	case WordSettings:
		s.phase = TimerSettings{}
	case TimerSettings:
		s.phase = WordInput{}
	case WordInput:
		if s.pool.Len() == 0 {
			return preconditionf(PhaseRandomization, "at least one word is required")
		}
		if !s.seeded {
			s.seed, s.seeded = s.seeds(), true
		}
		s.phase = Randomization{}
	case Randomization:
		if err := s.startPlay(now); err != nil {
			return err
		}
	case Playing:
		if err := s.closeRound(cur.Round); err != nil {
			return err
		}
	case RoundResults:
		if cur.Round < LastRound {
			if err := s.startRound(cur.Round+1, now); err != nil {
				return err
			}
			break
		}
		s.finishSession()
	case FinalResults:
		return preconditionf(PhaseFinalResults, "session is over")
	}
	s.commit(before)
	return nil
}

func (s *Session) startPlay(now time.Time) error {
	eligible := s.EligibleTeams()
	if len(eligible) < MinEligibleTeams {
		return preconditionf(PhasePlaying, "need %d teams with players, have %d", MinEligibleTeams, len(eligible))
	}
	if s.pool.RemainingUnguessedCount() == 0 {
		return preconditionf(PhasePlaying, "at least one word is required")
	}
	ids := make([]TeamID, 0, len(eligible))
	for _, t := range eligible {
		ids = append(ids, t.ID)
	}
	rotation := NewTeamRotation(eligible)
	scores := NewScoreBoard(ids)
	rc := NewRoundController(Round1, s.pool, rotation, scores, s.turnSettings)
	if err := rc.Start(s.roundSeed(Round1), now); err != nil {
		return err
	}
	s.rotation, s.scores, s.round = rotation, scores, rc
	s.highestRound = Round1
	s.phase = Playing{Round: Round1}
	return nil
}

// startRound opens the next pass. A pool with nothing left skips straight to
// that round's results with an empty summary.
func (s *Session) startRound(r Round, now time.Time) error {
	rc := NewRoundController(r, s.pool, s.rotation, s.scores, s.turnSettings)
	err := rc.Start(s.roundSeed(r), now)
	switch {
	case errors.Is(err, ErrEmptyPool):
		empty := rc.summary()
		empty.Empty = true
		s.round = nil
		s.summaries = append(s.summaries, empty)
		s.highestRound = r
		s.phase = RoundResults{Round: r}
		return nil
	case err != nil:
		return err
	}
	s.round = rc
	s.highestRound = r
	s.phase = Playing{Round: r}
	return nil
}

func (s *Session) closeRound(r Round) error {
	if s.round == nil {
		return preconditionf(PhaseRoundResults, "no round in progress")
	}
	summary, err := s.round.End()
	if err != nil {
		return err
	}
	s.summaries = append(s.summaries, summary)
	s.round = nil
	s.phase = RoundResults{Round: r}
	return nil
}

func (s *Session) finishSession() {
	ranking := s.scores.Ranking()
	f := &FinalSummary{
		Ranking: ranking,
		Rounds:  append([]RoundSummary(nil), s.summaries...),
	}
	if len(ranking) > 0 && ranking[0].Points > 0 {
		for _, ts := range ranking {
			if ts.Points != ranking[0].Points {
				break
			}
			f.Winners = append(f.Winners, ts.TeamID)
		}
	}
	s.final = f
	s.round = nil
	s.phase = FinalResults{}
}

func (s *Session) roundSeed(r Round) int64 {
	return s.seed + int64(r)
}

// ReplacePhase is backward navigation owned by the navigation layer. Only
// setup phases can be re-entered, and only before play begins.
func (s *Session) ReplacePhase(target PhaseKind) error {
	if !target.Reenterable() {
		return preconditionf(target, "phase cannot be re-entered")
	}
	if phaseOrder[s.phase.Kind()] >= phaseOrder[PhasePlaying] {
		return preconditionf(target, "play has already begun")
	}
	p, _ := setupPhase(target)
	if p == s.phase {
		return nil
	}
	before := s.currentPhase()
	s.phase = p
	s.commit(before)
	return nil
}

// --- play ---

// Resolve applies the active team's outcome for the current word. A round
// whose pool runs dry moves the session to that round's results.
func (s *Session) Resolve(outcome Outcome, now time.Time) error {
	p, ok := s.phase.(Playing)
	if !ok {
		return preconditionf(s.phase.Kind(), "no round in progress")
	}
	before := s.currentPhase()
	if err := s.round.Resolve(outcome, now); err != nil {
		return err
	}
	if err := s.afterTurnEvent(p.Round); err != nil {
		return err
	}
	s.commit(before)
	return nil
}

// ExpireTurn delivers the turn timer's expiry.
func (s *Session) ExpireTurn(now time.Time) error {
	p, ok := s.phase.(Playing)
	if !ok {
		return preconditionf(s.phase.Kind(), "no round in progress")
	}
	before := s.currentPhase()
	if err := s.round.ExpireTurn(now); err != nil {
		return err
	}
	if err := s.afterTurnEvent(p.Round); err != nil {
		return err
	}
	s.commit(before)
	return nil
}

// Tick expires the running turn if its deadline has passed. It reports
// whether anything changed.
func (s *Session) Tick(now time.Time) bool {
	if _, ok := s.phase.(Playing); !ok || !s.round.Due(now) {
		return false
	}
	return s.ExpireTurn(now) == nil
}

// Deadline is when the running turn expires, if one is running.
func (s *Session) Deadline() (time.Time, bool) {
	if _, ok := s.phase.(Playing); !ok {
		return time.Time{}, false
	}
	return s.round.Deadline()
}

func (s *Session) afterTurnEvent(r Round) error {
	if s.round.State() != RoundComplete {
		return nil
	}
	if err := s.closeRound(r); err != nil {
		return fmt.Errorf("close round %d: %w", r, err)
	}
	return nil
}

// --- projections ---

func (s *Session) Players() []Player {
	return append([]Player(nil), s.players...)
}

func (s *Session) Teams() []Team {
	out := make([]Team, len(s.teams))
	for i, t := range s.teams {
		out[i] = t
		out[i].PlayerIDs = append([]PlayerID(nil), t.PlayerIDs...)
	}
	return out
}

func (s *Session) Team(id TeamID) (Team, bool) {
	i := s.teamIndex(id)
	if i < 0 {
		return Team{}, false
	}
	return s.Teams()[i], true
}

// EligibleTeams are the teams with at least one player, in creation order.
func (s *Session) EligibleTeams() []Team {
	var out []Team
	for _, t := range s.Teams() {
		if t.Eligible() {
			out = append(out, t)
		}
	}
	return out
}

func (s *Session) Words() []Word { return s.pool.Words() }
func (s *Session) WordOptions() WordOptions { return s.wordOptions }
func (s *Session) TurnSettings() TurnSettings { return s.turnSettings }
func (s *Session) Summaries() []RoundSummary { return append([]RoundSummary(nil), s.summaries...) }

// WordTarget is how many words the collection phase aims for.
func (s *Session) WordTarget() int {
	return len(s.players) * s.wordOptions.WordsPerPlayer
}

func (s *Session) CurrentWord() (Word, error) {
	if _, ok := s.phase.(Playing); !ok {
		return Word{}, preconditionf(s.phase.Kind(), "no round in progress")
	}
	id, err := s.round.CurrentWord()
	if err != nil {
		return Word{}, err
	}
	w, _ := s.pool.Get(id)
	return w, nil
}

func (s *Session) CurrentTeam() (Team, error) {
	if _, ok := s.phase.(Playing); !ok {
		return Team{}, preconditionf(s.phase.Kind(), "no round in progress")
	}
	id, err := s.rotation.Current()
	if err != nil {
		return Team{}, err
	}
	t, _ := s.Team(id)
	return t, nil
}

func (s *Session) TimeRemaining(now time.Time) time.Duration {
	if _, ok := s.phase.(Playing); !ok {
		return 0
	}
	return s.round.TimeRemaining(now)
}

// Ranking is empty until play begins.
func (s *Session) Ranking() []TeamScore {
	if s.scores == nil {
		return nil
	}
	return s.scores.Ranking()
}

func (s *Session) ScoreOf(team TeamID) int {
	if s.scores == nil {
		return 0
	}
	return s.scores.ScoreOf(team)
}

func (s *Session) FinalResults() (FinalSummary, error) {
	if s.final == nil {
		return FinalSummary{}, preconditionf(PhaseFinalResults, "session not finished")
	}
	return *s.final, nil
}

// TurnInfo describes the running turn for presentation.
type TurnInfo struct {
	Round           Round
	Rule            Rule
	Turn            int
	TeamID          TeamID
	WordID          WordID
	Remaining       time.Duration
	Skips           int
	GuessedThisTurn int
	WordsLeft       int
}

func (s *Session) TurnInfo(now time.Time) (TurnInfo, bool) {
	p, ok := s.phase.(Playing)
	if !ok {
		return TurnInfo{}, false
	}
	team, _ := s.rotation.Current()
	word, _ := s.round.CurrentWord()
	return TurnInfo{
		Round:           p.Round,
		Rule:            p.Round.Rule(),
		Turn:            s.round.Turn(),
		TeamID:          team,
		WordID:          word,
		Remaining:       s.round.TimeRemaining(now),
		Skips:           s.round.SkipsThisTurn(),
		GuessedThisTurn: s.round.GuessedThisTurn(),
		WordsLeft:       s.pool.RemainingUnguessedCount(),
	}, true
}

func (s *Session) teamIndex(id TeamID) int {
	for i, t := range s.teams {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) playerIndex(id PlayerID) int {
	for i, p := range s.players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

package game

import (
	"fmt"
	"time"

	"fishbowl/pkg/realtime"
)

type RoundState string

const (
	RoundNotStarted    RoundState = "not_started"
	RoundTurnActive    RoundState = "turn_active"
	RoundTurnResolving RoundState = "turn_resolving"
	RoundComplete      RoundState = "round_complete"
)

// Outcome is how the active team resolved the current word.
type Outcome string

const (
	OutcomeGuessed  Outcome = "guessed"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeTimedOut Outcome = "timed_out"
)

// TurnSettings are fixed once play begins.
type TurnSettings struct {
	Duration time.Duration `json:"duration"`
	// MaxSkipsPerTurn bounds consecutive skips within one turn. 0 is unlimited.
	MaxSkipsPerTurn int `json:"maxSkipsPerTurn"`
	// RotateOnGuess ends the turn after every guessed word. When false the
	// team keeps going until the turn times out.
	RotateOnGuess bool `json:"rotateOnGuess"`
	// TurnsPerTeam ends a round once every eligible team has had this many
	// turns, even with words left in the bowl. 0 is unlimited.
	TurnsPerTeam int `json:"turnsPerTeam,omitempty"`
}

const (
	MinTurnDuration     = 5 * time.Second
	MaxTurnDuration     = 10 * time.Minute
	DefaultTurnDuration = 60 * time.Second
	MaxTurnsPerTeam     = 50
)

func DefaultTurnSettings() TurnSettings {
	return TurnSettings{Duration: DefaultTurnDuration, RotateOnGuess: true}
}

func (s TurnSettings) validate() error {
	if s.Duration < MinTurnDuration || s.Duration > MaxTurnDuration {
		return fmt.Errorf("turn duration %s out of range: %w", s.Duration, ErrInvalidSetting)
	}
	if s.MaxSkipsPerTurn < 0 {
		return fmt.Errorf("max skips %d: %w", s.MaxSkipsPerTurn, ErrInvalidSetting)
	}
	if s.TurnsPerTeam < 0 || s.TurnsPerTeam > MaxTurnsPerTeam {
		return fmt.Errorf("turns per team %d: %w", s.TurnsPerTeam, ErrInvalidSetting)
	}
	return nil
}

// RoundSummary is what a finished round contributed to the scores.
type RoundSummary struct {
	Round        Round       `json:"round"`
	Gained       []TeamScore `json:"gained"`
	WordsGuessed int         `json:"wordsGuessed"`
	Turns        int         `json:"turns"`
	// Empty is set when the round had no words left to play.
	Empty bool `json:"empty,omitempty"`
}

// RoundController runs the turn loop of one round over the shared pool,
// rotation and scoreboard.
type RoundController struct {
	round    Round
	pool     *WordPool
	rotation *TeamRotation
	scores   *ScoreBoard
	settings TurnSettings

	state           RoundState
	seed            int64
	draw            []WordID
	clock           realtime.TurnClock
	skips           int
	guessedThisTurn int
	gained          map[TeamID]int
}

func NewRoundController(round Round, pool *WordPool, rotation *TeamRotation, scores *ScoreBoard, settings TurnSettings) *RoundController {
	return &RoundController{
		round:    round,
		pool:     pool,
		rotation: rotation,
		scores:   scores,
		settings: settings,
		state:    RoundNotStarted,
		clock:    realtime.TurnClock{Duration: settings.Duration},
		gained:   make(map[TeamID]int),
	}
}

// Start fixes the draw order from seed, hands the first turn to the first
// eligible team and starts its timer.
func (c *RoundController) Start(seed int64, now time.Time) error {
	if c.state != RoundNotStarted {
		return preconditionf(PhasePlaying, "round %d already started", c.round)
	}
	if c.pool.RemainingUnguessedCount() == 0 {
		return ErrEmptyPool
	}
	if c.rotation.Len() == 0 {
		return ErrNoEligibleTeams
	}
	c.seed = seed
	c.draw = c.pool.Shuffle(seed)
	c.rotation.Reset()
	c.clock.Start(now)
	c.state = RoundTurnActive
	return nil
}

// CurrentWord is the front of the draw order.
func (c *RoundController) CurrentWord() (WordID, error) {
	switch {
	case c.state == RoundNotStarted:
		return "", preconditionf(PhasePlaying, "round %d not started", c.round)
	case c.state == RoundComplete || len(c.draw) == 0:
		return "", ErrRoundComplete
	}
	return c.draw[0], nil
}

func (c *RoundController) Resolve(outcome Outcome, now time.Time) error {
	switch c.state {
	case RoundComplete:
		return ErrRoundComplete
	case RoundTurnActive:
	default:
		return preconditionf(PhasePlaying, "no active turn")
	}
	word := c.draw[0]

	switch outcome {
	case OutcomeGuessed:
		team, err := c.rotation.Current()
		if err != nil {
			return err
		}
		if w, ok := c.pool.Get(word); !ok {
			return ErrNotFound
		} else if w.Guessed {
			return ErrAlreadyGuessed
		}
		if err := c.scores.Award(team, 1); err != nil {
			return err
		}
		if err := c.pool.MarkGuessed(word, team, c.round); err != nil {
			return err
		}
		c.state = RoundTurnResolving
		c.gained[team]++
		c.guessedThisTurn++
		c.skips = 0
		c.draw = c.draw[1:]
		if len(c.draw) == 0 || c.pool.RemainingUnguessedCount() == 0 {
			c.finish()
			return nil
		}
		if c.settings.RotateOnGuess {
			return c.endTurn(now)
		}
		c.state = RoundTurnActive
		return nil

	case OutcomeSkipped:
		if c.settings.MaxSkipsPerTurn > 0 && c.skips >= c.settings.MaxSkipsPerTurn {
			return ErrSkipLimit
		}
		c.draw = append(c.draw[1:], word)
		c.skips++
		return nil

	case OutcomeTimedOut:
		c.state = RoundTurnResolving
		return c.endTurn(now)
	}
	return fmt.Errorf("unknown outcome %q: %w", outcome, ErrInvalidSetting)
}

// ExpireTurn is the external timer signal for the running turn.
func (c *RoundController) ExpireTurn(now time.Time) error {
	switch c.state {
	case RoundComplete:
		return ErrRoundComplete
	case RoundTurnActive:
		c.state = RoundTurnResolving
		return c.endTurn(now)
	}
	return preconditionf(PhasePlaying, "no active turn")
}

// Due reports whether the running turn's timer has run out at now.
func (c *RoundController) Due(now time.Time) bool {
	return c.state == RoundTurnActive && c.clock.Expired(now)
}

// endTurn passes play to the next eligible team with a fresh timer. The
// current word, if any, stays at the front of the draw order.
func (c *RoundController) endTurn(now time.Time) error {
	if c.pool.RemainingUnguessedCount() == 0 || len(c.draw) == 0 || c.quotaReached() {
		c.finish()
		return nil
	}
	if _, err := c.rotation.Advance(); err != nil {
		return err
	}
	c.clock.Start(now)
	c.skips = 0
	c.guessedThisTurn = 0
	c.state = RoundTurnActive
	return nil
}

// quotaReached reports whether every eligible team has used its turns. The
// rotation starts each round at the first team, so turns are spread evenly.
func (c *RoundController) quotaReached() bool {
	n := c.settings.TurnsPerTeam
	return n > 0 && c.clock.Turn >= n*c.rotation.Len()
}

func (c *RoundController) finish() {
	c.clock.Stop()
	c.state = RoundComplete
}

// End returns the round summary. Only legal once the round is complete.
func (c *RoundController) End() (RoundSummary, error) {
	if c.state != RoundComplete {
		return RoundSummary{}, preconditionf(PhaseRoundResults, "round %d still running", c.round)
	}
	return c.summary(), nil
}

func (c *RoundController) summary() RoundSummary {
	s := RoundSummary{Round: c.round, Turns: c.clock.Turn}
	for _, ts := range c.scores.Scores() {
		n := c.gained[ts.TeamID]
		s.Gained = append(s.Gained, TeamScore{TeamID: ts.TeamID, Points: n})
		s.WordsGuessed += n
	}
	return s
}

func (c *RoundController) Round() Round { return c.round }
func (c *RoundController) State() RoundState { return c.state }
func (c *RoundController) Seed() int64 { return c.seed }
func (c *RoundController) Turn() int { return c.clock.Turn }
func (c *RoundController) TurnStartedAt() time.Time { return c.clock.StartedAt }
func (c *RoundController) SkipsThisTurn() int { return c.skips }
func (c *RoundController) GuessedThisTurn() int { return c.guessedThisTurn }

// Deadline is when the running turn expires.
func (c *RoundController) Deadline() (time.Time, bool) {
	if c.state != RoundTurnActive {
		return time.Time{}, false
	}
	return c.clock.Deadline()
}

func (c *RoundController) TimeRemaining(now time.Time) time.Duration {
	if c.state != RoundTurnActive {
		return 0
	}
	return c.clock.Remaining(now)
}

// Draw returns the remaining draw order, current word first.
func (c *RoundController) Draw() []WordID {
	return append([]WordID(nil), c.draw...)
}

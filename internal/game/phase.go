package game

// PhaseKind names a phase of the session. The declaration order of the
// constants below is the forward path of the machine.
type PhaseKind string

const (
	PhaseWelcome       PhaseKind = "welcome"
	PhaseTeamSetup     PhaseKind = "team_setup"
	PhaseWordSettings  PhaseKind = "word_settings"
	PhaseTimerSettings PhaseKind = "timer_settings"
	PhaseWordInput     PhaseKind = "word_input"
	PhaseRandomization PhaseKind = "randomization"
	PhasePlaying       PhaseKind = "playing"
	PhaseRoundResults  PhaseKind = "round_results"
	PhaseFinalResults  PhaseKind = "final_results"
)

var phaseOrder = map[PhaseKind]int{
	PhaseWelcome:       0,
	PhaseTeamSetup:     1,
	PhaseWordSettings:  2,
	PhaseTimerSettings: 3,
	PhaseWordInput:     4,
	PhaseRandomization: 5,
	PhasePlaying:       6,
	PhaseRoundResults:  7,
	PhaseFinalResults:  8,
}

// Reenterable reports whether the navigation layer may replace the current
// phase with k without losing data.
func (k PhaseKind) Reenterable() bool {
	o, ok := phaseOrder[k]
	return ok && o <= phaseOrder[PhaseWordInput]
}

// Phase is the current position of a session. It is one of Welcome,
// TeamSetup, WordSettings, TimerSettings, WordInput, Randomization, Playing,
// RoundResults or FinalResults.
type Phase interface {
	Kind() PhaseKind
	isPhase()
}

type (
	Welcome       struct{}
	TeamSetup     struct{}
	WordSettings  struct{}
	TimerSettings struct{}
	WordInput     struct{}
	Randomization struct{}
	FinalResults  struct{}
)

// Playing is a round in progress. ActiveTeamIndex indexes the eligible teams.
type Playing struct {
	Round           Round
	ActiveTeamIndex int
}

type RoundResults struct {
	Round Round
}

func (Welcome) Kind() PhaseKind       { return PhaseWelcome }
func (TeamSetup) Kind() PhaseKind     { return PhaseTeamSetup }
func (WordSettings) Kind() PhaseKind  { return PhaseWordSettings }
func (TimerSettings) Kind() PhaseKind { return PhaseTimerSettings }
func (WordInput) Kind() PhaseKind     { return PhaseWordInput }
func (Randomization) Kind() PhaseKind { return PhaseRandomization }
func (Playing) Kind() PhaseKind       { return PhasePlaying }
func (RoundResults) Kind() PhaseKind  { return PhaseRoundResults }
func (FinalResults) Kind() PhaseKind  { return PhaseFinalResults }

func (Welcome) isPhase()       {}
func (TeamSetup) isPhase()     {}
func (WordSettings) isPhase()  {}
func (TimerSettings) isPhase() {}
func (WordInput) isPhase()     {}
func (Randomization) isPhase() {}
func (Playing) isPhase()       {}
func (RoundResults) isPhase()  {}
func (FinalResults) isPhase()  {}

// setupPhase returns the data-less phase value for a setup kind.
func setupPhase(k PhaseKind) (Phase, bool) {
	switch k {
	case PhaseWelcome:
		return Welcome{}, true
	case PhaseTeamSetup:
		return TeamSetup{}, true
	case PhaseWordSettings:
		return WordSettings{}, true
	case PhaseTimerSettings:
		return TimerSettings{}, true
	case PhaseWordInput:
		return WordInput{}, true
	case PhaseRandomization:
		return Randomization{}, true
	case PhaseFinalResults:
		return FinalResults{}, true
	}
	return nil, false
}

// phaseRound returns the round carried by Playing and RoundResults, or 0.
func phaseRound(p Phase) Round {
	switch v := p.(type) {
	case Playing:
		return v.Round
	case RoundResults:
		return v.Round
	}
	return 0
}

// Round is one of the three passes over the word pool.
type Round int

const (
	Round1 Round = 1
	Round2 Round = 2
	Round3 Round = 3

	LastRound = Round3
)

// Rule is the description constraint shown to players during a round.
type Rule string

const (
	RuleDescribe Rule = "describe"
	RuleOneWord  Rule = "one_word"
	RuleMime     Rule = "mime"
)

func (r Round) Valid() bool {
	return r >= Round1 && r <= LastRound
}

func (r Round) Rule() Rule {
	switch r {
	case Round2:
		return RuleOneWord
	case Round3:
		return RuleMime
	default:
		return RuleDescribe
	}
}

package viewmodel

// GamePage holds data for the main session page.
type GamePage struct {
	Title      string
	SessionID  string
	InviteURL  string
	QRURL      string
	HasPlayer  bool
	PlayerName string
	Board      Board
	Scores     []ScoreEntry
}

// Board is the live part of the page, re-rendered on every change.
type Board struct {
	SessionID string
	Version   uint64
	Phase     string
	Heading   string
	BackTo    string

	Teams          []TeamRow
	WordsPerPlayer int
	WordTarget     int
	Words          []WordRow
	TurnSeconds    int
	MaxSkips       int
	RotateOnGuess  bool
	TurnsPerTeam   int
	Seed           int64
	Seeded         bool

	Turn    *Turn
	Results *RoundResult
	Final   *Final
}

// TeamRow is one team with its roster and running score.
type TeamRow struct {
	ID       string
	Name     string
	Color    string
	Players  []PlayerRow
	Score    int
	Active   bool
	Eligible bool
}

type PlayerRow struct {
	ID   string
	Name string
}

// WordRow is a collected word. Text is blank once play starts.
type WordRow struct {
	ID      string
	Text    string
	Guessed bool
}

// Turn holds data for the running turn.
type Turn struct {
	Round      int
	Rule       string
	RuleText   string
	Number     int
	TeamName   string
	TeamColor  string
	Word       string
	DeadlineMs int64
	Remaining  int
	Skips      int
	MaxSkips   int
	Guessed    int
	WordsLeft  int
}

// ScoreEntry holds a team's points for rendering.
type ScoreEntry struct {
	Name   string
	Color  string
	Points int
	Winner bool
}

// RoundResult holds data for the between-rounds panel.
type RoundResult struct {
	Round        int
	Gained       []ScoreEntry
	Standings    []ScoreEntry
	WordsGuessed int
	Turns        int
	Empty        bool
	Last         bool
}

// Final holds the closing standings.
type Final struct {
	Standings []ScoreEntry
	Winners   []string
	Rounds    []RoundResult
}

// HomePage holds data for the landing page.
type HomePage struct {
	Title  string
	Recent []RecentGame
}

// RecentGame is an archived session listed on the landing page.
type RecentGame struct {
	SessionID  string
	FinishedAt string
	Rounds     int
	Words      int
	Winners    []string
	Standings  []ScoreEntry
}

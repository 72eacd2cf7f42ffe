package room

import (
	"errors"
	"fmt"
	"time"

	"fishbowl/internal/game"
)

var ErrUnknownCommand = errors.New("unknown command")

// CommandType names one session operation.
type CommandType string

const (
	CmdAdvance        CommandType = "advance"
	CmdBack           CommandType = "back"
	CmdAddTeam        CommandType = "add_team"
	CmdRenameTeam     CommandType = "rename_team"
	CmdRemoveTeam     CommandType = "remove_team"
	CmdAddPlayer      CommandType = "add_player"
	CmdRenamePlayer   CommandType = "rename_player"
	CmdMovePlayer     CommandType = "move_player"
	CmdRemovePlayer   CommandType = "remove_player"
	CmdWordsPerPlayer CommandType = "words_per_player"
	CmdTurnSettings   CommandType = "turn_settings"
	CmdAddWord        CommandType = "add_word"
	CmdRemoveWord     CommandType = "remove_word"
	CmdSetSeed        CommandType = "set_seed"
	CmdResolve        CommandType = "resolve"
	CmdExpireTurn     CommandType = "expire_turn"
)

// Command is the transport-neutral form of a session operation, shared by
// the HTTP and websocket APIs.
type Command struct {
	Type    CommandType    `json:"type"`
	Team    game.TeamID    `json:"team,omitempty"`
	Player  game.PlayerID  `json:"player,omitempty"`
	Word    game.WordID    `json:"word,omitempty"`
	Name    string         `json:"name,omitempty"`
	Color   string         `json:"color,omitempty"`
	Text    string         `json:"text,omitempty"`
	Count   int            `json:"count,omitempty"`
	Seed    *int64         `json:"seed,omitempty"`
	Phase   game.PhaseKind `json:"phase,omitempty"`
	Outcome game.Outcome   `json:"outcome,omitempty"`
	Turn    *TurnInput     `json:"turn,omitempty"`
}

// TurnInput is the wire form of game.TurnSettings.
type TurnInput struct {
	Seconds       int  `json:"seconds"`
	MaxSkips      int  `json:"maxSkips"`
	RotateOnGuess bool `json:"rotateOnGuess"`
	TurnsPerTeam  int  `json:"turnsPerTeam"`
}

func (t TurnInput) settings() game.TurnSettings {
	return game.TurnSettings{
		Duration:        time.Duration(t.Seconds) * time.Second,
		MaxSkipsPerTurn: t.MaxSkips,
		RotateOnGuess:   t.RotateOnGuess,
		TurnsPerTeam:    t.TurnsPerTeam,
	}
}

// Result reports the id minted by add commands.
type Result struct {
	ID      string `json:"id,omitempty"`
	Version uint64 `json:"version"`
}

// Apply runs the command against s.
func (c Command) Apply(s *game.Session, now time.Time) (string, error) {
	switch c.Type {
	case CmdAdvance:
		return "", s.Advance(now)
	case CmdBack:
		return "", s.ReplacePhase(c.Phase)
	case CmdAddTeam:
		id, err := s.AddTeam(c.Name, c.Color)
		return string(id), err
	case CmdRenameTeam:
		return "", s.RenameTeam(c.Team, c.Name)
	case CmdRemoveTeam:
		return "", s.RemoveTeam(c.Team)
	case CmdAddPlayer:
		id, err := s.AddPlayer(c.Team, c.Name)
		return string(id), err
	case CmdRenamePlayer:
		return "", s.RenamePlayer(c.Player, c.Name)
	case CmdMovePlayer:
		return "", s.MovePlayer(c.Player, c.Team)
	case CmdRemovePlayer:
		return "", s.RemovePlayer(c.Player)
	case CmdWordsPerPlayer:
		return "", s.SetWordsPerPlayer(c.Count)
	case CmdTurnSettings:
		if c.Turn == nil {
			return "", fmt.Errorf("turn settings missing: %w", game.ErrInvalidSetting)
		}
		return "", s.SetTurnSettings(c.Turn.settings())
	case CmdAddWord:
		id, err := s.AddWord(c.Text)
		return string(id), err
	case CmdRemoveWord:
		return "", s.RemoveWord(c.Word)
	case CmdSetSeed:
		if c.Seed == nil {
			return "", fmt.Errorf("seed missing: %w", game.ErrInvalidSetting)
		}
		return "", s.SetSeed(*c.Seed)
	case CmdResolve:
		return "", s.Resolve(c.Outcome, now)
	case CmdExpireTurn:
		return "", s.ExpireTurn(now)
	}
	return "", fmt.Errorf("%w %q", ErrUnknownCommand, c.Type)
}

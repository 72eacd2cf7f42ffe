package game

import "github.com/google/uuid"

type (
	PlayerID string
	TeamID   string
	WordID   string
)

// IDSource mints identifiers. Tests swap it for a deterministic sequence.
type IDSource func() string

func uuidSource() string {
	return uuid.NewString()
}

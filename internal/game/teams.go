package game

type Player struct {
	ID     PlayerID `json:"id"`
	Name   string   `json:"name"`
	TeamID TeamID   `json:"teamId"`
}

type Team struct {
	ID        TeamID     `json:"id"`
	Name      string     `json:"name"`
	Color     string     `json:"color"`
	PlayerIDs []PlayerID `json:"playerIds"`
}

// Eligible reports whether the team takes part in turn rotation.
func (t Team) Eligible() bool {
	return len(t.PlayerIDs) > 0
}

// DefaultColors is assigned round-robin to teams created without a color.
var DefaultColors = []string{"#e4572e", "#29335c", "#f3a712", "#669bbc", "#a8c686", "#8e5572"}

// TeamRotation is the fixed turn order over eligible teams.
type TeamRotation struct {
	order []TeamID
	index int
}

// NewTeamRotation keeps the teams with at least one player, in the given order.
func NewTeamRotation(teams []Team) *TeamRotation {
	r := &TeamRotation{}
	for _, t := range teams {
		if t.Eligible() {
			r.order = append(r.order, t.ID)
		}
	}
	return r
}

func (r *TeamRotation) Current() (TeamID, error) {
	if len(r.order) == 0 {
		return "", ErrNoEligibleTeams
	}
	return r.order[r.index], nil
}

// Advance moves to the next eligible team, wrapping after the last one.
func (r *TeamRotation) Advance() (TeamID, error) {
	if len(r.order) == 0 {
		return "", ErrNoEligibleTeams
	}
	r.index = (r.index + 1) % len(r.order)
	return r.order[r.index], nil
}

func (r *TeamRotation) Reset() {
	r.index = 0
}

func (r *TeamRotation) Index() int {
	return r.index
}

func (r *TeamRotation) Len() int {
	return len(r.order)
}

// Order returns the eligible team ids in rotation order.
func (r *TeamRotation) Order() []TeamID {
	return append([]TeamID(nil), r.order...)
}

func (r *TeamRotation) seek(index int) error {
	if index < 0 || index >= len(r.order) {
		return ErrNoEligibleTeams
	}
	r.index = index
	return nil
}

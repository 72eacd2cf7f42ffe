package game

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func teamsOf(n int) []Team {
	teams := make([]Team, n)
	for i := range teams {
		id := TeamID(fmt.Sprintf("t%d", i+1))
		teams[i] = Team{ID: id, Name: string(id), PlayerIDs: []PlayerID{PlayerID("p-" + id)}}
	}
	return teams
}

func TestTeamRotation_SkipsTeamsWithoutPlayers(t *testing.T) {
	teams := teamsOf(3)
	teams[1].PlayerIDs = nil

	r := NewTeamRotation(teams)
	assert.Equal(t, []TeamID{"t1", "t3"}, r.Order())

	cur, err := r.Current()
	require.NoError(t, err)
	assert.Equal(t, TeamID("t1"), cur)

	next, err := r.Advance()
	require.NoError(t, err)
	assert.Equal(t, TeamID("t3"), next)
}

func TestTeamRotation_FullCycleReturnsToStart(t *testing.T) {
	for n := 1; n <= 6; n++ {
		t.Run(fmt.Sprintf("%d teams", n), func(t *testing.T) {
			r := NewTeamRotation(teamsOf(n))
			start, err := r.Current()
			require.NoError(t, err)

			seen := map[TeamID]bool{start: true}
			for i := 0; i < n; i++ {
				id, err := r.Advance()
				require.NoError(t, err)
				seen[id] = true
			}
			cur, _ := r.Current()
			assert.Equal(t, start, cur)
			assert.Len(t, seen, n)
		})
	}
}

func TestTeamRotation_SingleTeamNeverChanges(t *testing.T) {
	r := NewTeamRotation(teamsOf(1))
	for i := 0; i < 4; i++ {
		id, err := r.Advance()
		require.NoError(t, err)
		assert.Equal(t, TeamID("t1"), id)
	}
}

func TestTeamRotation_NoEligibleTeams(t *testing.T) {
	r := NewTeamRotation([]Team{{ID: "empty"}})
	_, err := r.Current()
	assert.ErrorIs(t, err, ErrNoEligibleTeams)
	_, err = r.Advance()
	assert.ErrorIs(t, err, ErrNoEligibleTeams)
	assert.Equal(t, 0, r.Len())
}

func TestTeamRotation_Reset(t *testing.T) {
	r := NewTeamRotation(teamsOf(3))
	_, _ = r.Advance()
	_, _ = r.Advance()
	assert.Equal(t, 2, r.Index())
	r.Reset()
	cur, _ := r.Current()
	assert.Equal(t, TeamID("t1"), cur)
}

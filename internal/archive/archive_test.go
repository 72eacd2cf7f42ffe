package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fishbowl/internal/game"
)

func openTemp(t *testing.T) *SQLite {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleFinal() ([]game.Team, game.FinalSummary) {
	teams := []game.Team{{ID: "a", Name: "Apples"}, {ID: "b", Name: "Bears"}, {ID: "c", Name: "Cats"}}
	final := game.FinalSummary{
		Ranking: []game.TeamScore{{TeamID: "a", Points: 5}, {TeamID: "b", Points: 5}, {TeamID: "c", Points: 3}},
		Winners: []game.TeamID{"a", "b"},
		Rounds:  make([]game.RoundSummary, 3),
	}
	return teams, final
}

func TestFromFinal(t *testing.T) {
	teams, final := sampleFinal()
	at := time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)
	r := FromFinal("s1", at, teams, 13, final)

	assert.Equal(t, 3, r.Rounds)
	assert.Equal(t, 13, r.Words)
	assert.Equal(t, []Standing{
		{Position: 1, TeamID: "a", TeamName: "Apples", Points: 5, Winner: true},
		{Position: 2, TeamID: "b", TeamName: "Bears", Points: 5, Winner: true},
		{Position: 3, TeamID: "c", TeamName: "Cats", Points: 3},
	}, r.Standings)
}

func TestSQLite_SaveAndGet(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()
	teams, final := sampleFinal()
	at := time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)
	want := FromFinal("s1", at, teams, 13, final)

	require.NoError(t, db.Save(ctx, want))
	got, err := db.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = db.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_SaveReplaces(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()
	teams, final := sampleFinal()
	at := time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)

	require.NoError(t, db.Save(ctx, FromFinal("s1", at, teams, 13, final)))
	final.Ranking = final.Ranking[:1]
	require.NoError(t, db.Save(ctx, FromFinal("s1", at, teams, 13, final)))

	got, err := db.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, got.Standings, 1)
}

func TestSQLite_Recent(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()
	teams, final := sampleFinal()
	base := time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, db.Save(ctx, FromFinal(id, base.Add(time.Duration(i)*time.Hour), teams, 4, final)))
	}

	recent, err := db.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "new", recent[0].SessionID)
	assert.Equal(t, "mid", recent[1].SessionID)
	assert.Len(t, recent[0].Standings, 3)
}

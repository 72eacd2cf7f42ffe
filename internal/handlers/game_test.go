package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fishbowl/internal/game"
	"fishbowl/internal/room"
)

type testServer struct {
	*httptest.Server
	store  *room.Store
	client *http.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := room.NewStore(room.Options{Logger: zerolog.Nop()})
	t.Cleanup(store.Close)

	r := chi.NewRouter()
	NewHomeHandler(store, nil, zerolog.Nop()).RegisterRoutes(r)
	NewGameHandler(store, GameOptions{BaseURL: "https://fish.test/", Logger: zerolog.Nop()}).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{
		Server: srv,
		store:  store,
		client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
	}
}

func (ts *testServer) create(t *testing.T) string {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/games", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")
	resp, err := ts.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct{ ID string }
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.ID)
	return body.ID
}

func (ts *testServer) send(t *testing.T, id string, cmd any) (int, []byte) {
	t.Helper()
	var payload []byte
	switch c := cmd.(type) {
	case string:
		payload = []byte(c)
	default:
		var err error
		payload, err = json.Marshal(c)
		require.NoError(t, err)
	}
	resp, err := ts.client.Post(ts.URL+"/game/"+id+"/commands", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func (ts *testServer) do(t *testing.T, id string, cmd room.Command) room.Result {
	t.Helper()
	status, body := ts.send(t, id, cmd)
	require.Equal(t, http.StatusOK, status, string(body))
	var res room.Result
	require.NoError(t, json.Unmarshal(body, &res))
	return res
}

func (ts *testServer) snapshot(t *testing.T, id string) game.SessionSnapshot {
	t.Helper()
	resp, err := ts.client.Get(ts.URL + "/game/" + id + "/snapshot")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap game.SessionSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	return snap
}

// setup walks a new session to team setup with one named team.
func (ts *testServer) setup(t *testing.T) (string, game.TeamID) {
	t.Helper()
	id := ts.create(t)
	ts.do(t, id, room.Command{Type: room.CmdAdvance})
	res := ts.do(t, id, room.Command{Type: room.CmdAddTeam, Name: "Red"})
	return id, game.TeamID(res.ID)
}

func TestCreateGame_Redirects(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.client.Post(ts.URL+"/games", "application/x-www-form-urlencoded", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	location := resp.Header.Get("Location")
	require.True(t, strings.HasPrefix(location, "/game/"), location)

	page, err := ts.client.Get(ts.URL + location)
	require.NoError(t, err)
	defer page.Body.Close()
	body, _ := io.ReadAll(page.Body)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, string(body), "Welcome")
	assert.Contains(t, string(body), "https://fish.test"+location)
}

func TestHome_ListsNothingWithoutArchive(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.client.Get(ts.URL + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "New game")

	resp, err = ts.client.Get(ts.URL + "/results")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.JSONEq(t, "[]", string(body))

	resp, err = ts.client.Get(ts.URL + "/results/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCommands_DriveSetup(t *testing.T) {
	ts := newTestServer(t)
	id, red := ts.setup(t)

	blue := game.TeamID(ts.do(t, id, room.Command{Type: room.CmdAddTeam, Name: "Blue", Color: "#0000ff"}).ID)
	ts.do(t, id, room.Command{Type: room.CmdAddPlayer, Team: red, Name: "Ann"})
	res := ts.do(t, id, room.Command{Type: room.CmdAddPlayer, Team: blue, Name: "Bob"})
	assert.NotEmpty(t, res.ID)

	snap := ts.snapshot(t, id)
	assert.Equal(t, game.PhaseTeamSetup, snap.Phase.Kind)
	assert.Equal(t, res.Version, snap.Version)
	require.Len(t, snap.Teams, 2)
	assert.Equal(t, "#0000ff", snap.Teams[1].Color)
	require.Len(t, snap.Players, 2)
	assert.Equal(t, blue, snap.Players[1].TeamID)
}

func TestCommands_ErrorStatuses(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)

	tests := []struct {
		name string
		id   string
		cmd  any
		want int
	}{
		{"unknown room", "missing", room.Command{Type: room.CmdAdvance}, http.StatusNotFound},
		{"malformed body", id, "{", http.StatusBadRequest},
		{"unknown command", id, room.Command{Type: "dance"}, http.StatusBadRequest},
		{"wrong phase", id, room.Command{Type: room.CmdResolve, Outcome: game.OutcomeGuessed}, http.StatusConflict},
		{"word before collection", id, room.Command{Type: room.CmdAddWord, Text: "cat"}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := ts.send(t, tt.id, tt.cmd)
			assert.Equal(t, tt.want, status, string(body))
			var e errorBody
			require.NoError(t, json.Unmarshal(body, &e))
			assert.NotEmpty(t, e.Error)
		})
	}
	assert.Equal(t, game.PhaseWelcome, ts.snapshot(t, id).Phase.Kind)
}

func TestSnapshot_PutAppliesAndRejectsStale(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)

	put := func(snap game.SessionSnapshot) int {
		payload, err := json.Marshal(snap)
		require.NoError(t, err)
		req, err := http.NewRequest(http.MethodPut, ts.URL+"/game/"+id+"/snapshot", bytes.NewReader(payload))
		require.NoError(t, err)
		resp, err := ts.client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	local := ts.snapshot(t, id)
	assert.Equal(t, http.StatusConflict, put(local))

	next := local
	next.Version++
	next.Phase = game.PhaseState{Kind: game.PhaseTeamSetup}
	assert.Equal(t, http.StatusOK, put(next))
	assert.Equal(t, game.PhaseTeamSetup, ts.snapshot(t, id).Phase.Kind)

	foreign := next
	foreign.Version++
	foreign.SessionID = "someone-else"
	assert.Equal(t, http.StatusConflict, put(foreign))
}

func TestJoin_SetsPlayerCookie(t *testing.T) {
	ts := newTestServer(t)
	id, red := ts.setup(t)

	form := url.Values{"team": {string(red)}, "name": {"Ann"}}
	resp, err := ts.client.PostForm(ts.URL+"/game/"+id+"/join", form)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == playerCookieName(id) {
			cookie = c
		}
	}
	require.NotNil(t, cookie)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/game/"+id, nil)
	require.NoError(t, err)
	req.AddCookie(cookie)
	page, err := ts.client.Do(req)
	require.NoError(t, err)
	defer page.Body.Close()
	body, _ := io.ReadAll(page.Body)
	assert.Contains(t, string(body), "Playing as <strong>Ann</strong>")
}

func TestJoin_UnknownTeam(t *testing.T) {
	ts := newTestServer(t)
	id, _ := ts.setup(t)

	form := url.Values{"team": {"nope"}, "name": {"Ann"}}
	resp, err := ts.client.PostForm(ts.URL+"/game/"+id+"/join", form)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFragments(t *testing.T) {
	ts := newTestServer(t)
	id, _ := ts.setup(t)

	resp, err := ts.client.Get(ts.URL + "/game/" + id + "/board")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `data-phase="team_setup"`)
	assert.Contains(t, string(body), "Red")

	resp, err = ts.client.Get(ts.URL + "/game/" + id + "/scores")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "<span>Red</span><span>0</span>")
}

func TestQRCode(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)

	resp, err := ts.client.Get(ts.URL + "/game/" + id + "/qr.png")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(body, []byte("\x89PNG")))

	resp, err = ts.client.Get(ts.URL + "/game/missing/qr.png")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRemoveGame(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/game/"+id, nil)
	require.NoError(t, err)
	resp, err := ts.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = ts.client.Get(ts.URL + "/game/" + id)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStream_SendsBoardOnChange(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/game/"+id+"/stream", nil)
	require.NoError(t, err)
	resp, err := ts.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	nextBoard := func() string {
		t.Helper()
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if line != "event: board\n" {
				continue
			}
			data, err := reader.ReadString('\n')
			require.NoError(t, err)
			return data
		}
	}

	assert.Contains(t, nextBoard(), `data-phase="welcome"`)
	ts.do(t, id, room.Command{Type: room.CmdAdvance})
	assert.Contains(t, nextBoard(), `data-phase="team_setup"`)
}

func TestSocket_CommandsAndSnapshots(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/game/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first socketMessage
	require.NoError(t, conn.ReadJSON(&first))
	require.Equal(t, "snapshot", first.Type)
	require.NotNil(t, first.Snapshot)
	assert.Equal(t, game.PhaseWelcome, first.Snapshot.Phase.Kind)

	require.NoError(t, conn.WriteJSON(room.Command{Type: room.CmdAdvance}))
	require.NoError(t, conn.WriteJSON(room.Command{Type: room.CmdResolve, Outcome: game.OutcomeGuessed}))

	var (
		results  int
		errs     []socketMessage
		lastSeen game.PhaseKind
	)
	for results+len(errs) < 2 || lastSeen != game.PhaseTeamSetup {
		var msg socketMessage
		require.NoError(t, conn.ReadJSON(&msg))
		switch msg.Type {
		case "snapshot":
			lastSeen = msg.Snapshot.Phase.Kind
		case "result":
			results++
		case "error":
			errs = append(errs, msg)
		}
	}
	assert.Equal(t, 1, results)
	require.Len(t, errs, 1)
	assert.Equal(t, http.StatusConflict, errs[0].Status)
}

func TestSocket_UnknownRoom(t *testing.T) {
	ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/game/missing/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{room.ErrRoomNotFound, http.StatusNotFound},
		{fmt.Errorf("apply: %w", game.ErrConflict), http.StatusConflict},
		{game.ErrSkipLimit, http.StatusConflict},
		{game.ErrEmptyPool, http.StatusConflict},
		{game.ErrInvalidWord, http.StatusBadRequest},
		{game.ErrNoEligibleTeams, http.StatusBadRequest},
		{room.ErrUnknownCommand, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

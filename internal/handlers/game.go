package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"

	"fishbowl/internal/game"
	"fishbowl/internal/room"
	"fishbowl/internal/viewmodel"
	"fishbowl/views/components"
	"fishbowl/views/pages"
)

const (
	keepAliveInterval = 25 * time.Second
	qrSize            = 256
	maxBodyBytes      = 1 << 20
)

type GameOptions struct {
	// BaseURL prefixes invite links. Empty uses the request host.
	BaseURL string
	// CommandRate bounds commands per second on one websocket.
	CommandRate float64
	Logger      zerolog.Logger
	Now         func() time.Time
}

type GameHandler struct {
	store       *room.Store
	baseURL     string
	commandRate float64
	log         zerolog.Logger
	now         func() time.Time
	upgrader    websocket.Upgrader
}

func NewGameHandler(store *room.Store, opts GameOptions) *GameHandler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CommandRate <= 0 {
		opts.CommandRate = 5
	}
	return &GameHandler{
		store:       store,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		commandRate: opts.CommandRate,
		log:         opts.Logger,
		now:         opts.Now,
		upgrader:    websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096},
	}
}

func (h *GameHandler) RegisterRoutes(r chi.Router) {
	r.Route("/game/{id}", func(r chi.Router) {
		r.Get("/", h.gamePage)
		r.Delete("/", h.removeGame)
		r.Post("/join", h.joinGame)
		r.Post("/commands", h.command)
		r.Get("/board", h.boardFragment)
		r.Get("/scores", h.scoresFragment)
		r.Get("/snapshot", h.snapshot)
		r.Put("/snapshot", h.applySnapshot)
		r.Get("/stream", h.stream)
		r.Get("/ws", h.socket)
		r.Get("/qr.png", h.qr)
	})
}

// loadRoom writes the error response itself and returns nil when the room
// cannot be served.
func (h *GameHandler) loadRoom(w http.ResponseWriter, r *http.Request) *room.Room {
	rm, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, game.ErrNotFound) {
		http.NotFound(w, r)
		return nil
	}
	if err != nil {
		h.log.Error().Err(err).Str("session", chi.URLParam(r, "id")).Msg("load session")
		http.Error(w, "failed to load game", http.StatusInternalServerError)
		return nil
	}
	return rm
}

func (h *GameHandler) gamePage(w http.ResponseWriter, r *http.Request) {
	rm := h.loadRoom(w, r)
	if rm == nil {
		return
	}
	gameID := rm.ID()
	playerID := game.PlayerID(playerIDFromCookie(r, gameID))
	data := viewmodel.GamePage{
		Title:     "Fishbowl",
		SessionID: gameID,
		InviteURL: h.buildInviteURL(r, gameID),
		QRURL:     "/game/" + gameID + "/qr.png",
	}
	rm.Read(func(s *game.Session) {
		data.Board = buildBoard(s, h.now())
		data.Scores = standings(s)
		data.PlayerName, data.HasPlayer = playerName(s, playerID)
	})
	render(w, r, pages.GamePage(data))
}

func (h *GameHandler) joinGame(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	cmd := room.Command{
		Type: room.CmdAddPlayer,
		Team: game.TeamID(r.FormValue("team")),
		Name: strings.TrimSpace(r.FormValue("name")),
	}
	res, err := h.store.Do(r.Context(), gameID, cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	setPlayerCookie(w, gameID, res.ID)
	if wantsJSON(r) {
		writeJSON(w, res)
		return
	}
	http.Redirect(w, r, "/game/"+gameID, http.StatusSeeOther)
}

func (h *GameHandler) command(w http.ResponseWriter, r *http.Request) {
	var cmd room.Command
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&cmd); err != nil {
		writeJSONStatus(w, http.StatusBadRequest, errorBody{Error: "invalid command: " + err.Error()})
		return
	}
	res, err := h.store.Do(r.Context(), chi.URLParam(r, "id"), cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, res)
}

func (h *GameHandler) boardFragment(w http.ResponseWriter, r *http.Request) {
	rm := h.loadRoom(w, r)
	if rm == nil {
		return
	}
	var board viewmodel.Board
	rm.Read(func(s *game.Session) { board = buildBoard(s, h.now()) })
	render(w, r, components.Board(board))
}

func (h *GameHandler) scoresFragment(w http.ResponseWriter, r *http.Request) {
	rm := h.loadRoom(w, r)
	if rm == nil {
		return
	}
	var scores []viewmodel.ScoreEntry
	rm.Read(func(s *game.Session) { scores = standings(s) })
	render(w, r, components.Scores(scores))
}

func (h *GameHandler) snapshot(w http.ResponseWriter, r *http.Request) {
	rm := h.loadRoom(w, r)
	if rm == nil {
		return
	}
	writeJSON(w, rm.Snapshot())
}

// applySnapshot merges a peer's snapshot. Stale or inconsistent snapshots
// are answered with 409.
func (h *GameHandler) applySnapshot(w http.ResponseWriter, r *http.Request) {
	var snap game.SessionSnapshot
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&snap); err != nil {
		writeJSONStatus(w, http.StatusBadRequest, errorBody{Error: "invalid snapshot: " + err.Error()})
		return
	}
	if err := h.store.Apply(r.Context(), chi.URLParam(r, "id"), snap); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, room.Result{Version: snap.Version})
}

func (h *GameHandler) removeGame(w http.ResponseWriter, r *http.Request) {
	if rm := h.loadRoom(w, r); rm == nil {
		return
	}
	if err := h.store.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.log.Error().Err(err).Msg("remove session")
		http.Error(w, "failed to remove game", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GameHandler) stream(w http.ResponseWriter, r *http.Request) {
	rm := h.loadRoom(w, r)
	if rm == nil {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	sub, cancel, err := h.store.Subscribe(r.Context(), rm.ID())
	if err != nil {
		writeError(w, err)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	send := func() {
		var (
			board  viewmodel.Board
			scores []viewmodel.ScoreEntry
		)
		rm.Read(func(s *game.Session) {
			board = buildBoard(s, h.now())
			scores = standings(s)
		})
		writeSSE(w, "board", renderToString(r, components.Board(board)))
		writeSSE(w, "scores", renderToString(r, components.Scores(scores)))
		flusher.Flush()
	}

	send()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case _, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce a burst of changes into one render.
			for drained := false; !drained; {
				select {
				case _, ok = <-sub:
					if !ok {
						return
					}
				default:
					drained = true
				}
			}
			send()
		case <-keepAlive.C:
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		}
	}
}

func (h *GameHandler) qr(w http.ResponseWriter, r *http.Request) {
	rm := h.loadRoom(w, r)
	if rm == nil {
		return
	}
	png, err := qrcode.Encode(h.buildInviteURL(r, rm.ID()), qrcode.Medium, qrSize)
	if err != nil {
		h.log.Error().Err(err).Msg("encode invite qr")
		http.Error(w, "failed to encode qr", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(png)
}

func (h *GameHandler) buildInviteURL(r *http.Request, gameID string) string {
	if h.baseURL != "" {
		return h.baseURL + "/game/" + gameID
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/game/" + gameID
}

func playerName(s *game.Session, id game.PlayerID) (string, bool) {
	if id == "" {
		return "", false
	}
	for _, p := range s.Players() {
		if p.ID == id {
			return p.Name, true
		}
	}
	return "", false
}

func standings(s *game.Session) []viewmodel.ScoreEntry {
	teams := s.Teams()
	out := make([]viewmodel.ScoreEntry, 0, len(teams))
	for _, t := range teams {
		out = append(out, viewmodel.ScoreEntry{Name: t.Name, Color: t.Color, Points: s.ScoreOf(t.ID)})
	}
	return out
}

func playerIDFromCookie(r *http.Request, gameID string) string {
	cookie, err := r.Cookie(playerCookieName(gameID))
	if err != nil {
		return ""
	}
	return cookie.Value
}

func setPlayerCookie(w http.ResponseWriter, gameID string, playerID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName(gameID),
		Value:    playerID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(24 * time.Hour),
	})
}

func playerCookieName(gameID string) string {
	return "fishbowl_player_" + gameID
}

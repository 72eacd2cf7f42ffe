package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"fishbowl/internal/archive"
	"fishbowl/internal/room"
	"fishbowl/internal/viewmodel"
	"fishbowl/views/pages"
)

const recentLimit = 10

type HomeHandler struct {
	store   *room.Store
	archive archive.Repository
	log     zerolog.Logger
}

// NewHomeHandler wires the landing page. repo may be nil when archiving is
// disabled.
func NewHomeHandler(store *room.Store, repo archive.Repository, log zerolog.Logger) *HomeHandler {
	return &HomeHandler{store: store, archive: repo, log: log}
}

func (h *HomeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.home)
	r.Post("/games", h.createGame)
	r.Get("/results", h.results)
	r.Get("/results/{id}", h.result)
}

func (h *HomeHandler) home(w http.ResponseWriter, r *http.Request) {
	data := viewmodel.HomePage{Title: "Fishbowl"}
	if h.archive != nil {
		recent, err := h.archive.Recent(r.Context(), recentLimit)
		if err != nil {
			h.log.Error().Err(err).Msg("list recent results")
		}
		data.Recent = recentGames(recent)
	}
	render(w, r, pages.HomePage(data))
}

func (h *HomeHandler) createGame(w http.ResponseWriter, r *http.Request) {
	rm, err := h.store.Create(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("create session")
		http.Error(w, "failed to create game", http.StatusInternalServerError)
		return
	}
	if wantsJSON(r) {
		writeJSONStatus(w, http.StatusCreated, map[string]string{"id": rm.ID()})
		return
	}
	http.Redirect(w, r, "/game/"+rm.ID(), http.StatusSeeOther)
}

func (h *HomeHandler) results(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeJSON(w, []archive.Result{})
		return
	}
	recent, err := h.archive.Recent(r.Context(), recentLimit)
	if err != nil {
		h.log.Error().Err(err).Msg("list recent results")
		http.Error(w, "failed to list results", http.StatusInternalServerError)
		return
	}
	writeJSON(w, recent)
}

func (h *HomeHandler) result(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		http.NotFound(w, r)
		return
	}
	res, err := h.archive.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, archive.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("load result")
		http.Error(w, "failed to load result", http.StatusInternalServerError)
		return
	}
	writeJSON(w, res)
}

func wantsJSON(r *http.Request) bool {
	return r.Header.Get("Accept") == "application/json" || r.Header.Get("Content-Type") == "application/json"
}

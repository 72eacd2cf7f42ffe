package handlers

import (
	"errors"
	"net/http"

	"fishbowl/internal/game"
	"fishbowl/internal/room"
)

// statusFor maps engine errors onto HTTP statuses. Anything unrecognised is
// a server fault.
func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrConflict),
		errors.Is(err, game.ErrPreconditionNotMet),
		errors.Is(err, game.ErrRoundComplete),
		errors.Is(err, game.ErrEmptyPool),
		errors.Is(err, game.ErrAlreadyGuessed),
		errors.Is(err, game.ErrSkipLimit):
		return http.StatusConflict
	case errors.Is(err, game.ErrInvalidWord),
		errors.Is(err, game.ErrInvalidSetting),
		errors.Is(err, game.ErrInvalidPoints),
		errors.Is(err, game.ErrUnknownTeam),
		errors.Is(err, game.ErrNoEligibleTeams),
		errors.Is(err, room.ErrUnknownCommand):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	writeJSONStatus(w, status, errorBody{Error: msg})
}

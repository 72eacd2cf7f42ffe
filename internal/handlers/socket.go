package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"fishbowl/internal/game"
	"fishbowl/internal/room"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
	maxFrame     = 64 << 10
	commandBurst = 10
)

// socketMessage is every frame the server sends on the websocket.
type socketMessage struct {
	Type     string                `json:"type"`
	Snapshot *game.SessionSnapshot `json:"snapshot,omitempty"`
	Result   *room.Result          `json:"result,omitempty"`
	Error    string                `json:"error,omitempty"`
	Status   int                   `json:"status,omitempty"`
}

// socket pushes every snapshot of the room and accepts commands in the same
// JSON form as the commands endpoint.
func (h *GameHandler) socket(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	rm := h.loadRoom(w, r)
	if rm == nil {
		return
	}
	sub, cancel, err := h.store.Subscribe(r.Context(), gameID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Str("session", gameID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(msg socketMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(msg)
	}

	snap := rm.Snapshot()
	if err := send(socketMessage{Type: "snapshot", Snapshot: &snap}); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.readCommands(r, conn, gameID, send)
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case snap, ok := <-sub:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(writeWait))
				return
			}
			if err := send(socketMessage{Type: "snapshot", Snapshot: &snap}); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *GameHandler) readCommands(r *http.Request, conn *websocket.Conn, gameID string, send func(socketMessage) error) {
	conn.SetReadLimit(maxFrame)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	limiter := rate.NewLimiter(rate.Limit(h.commandRate), commandBurst)
	for {
		var cmd room.Command
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Str("session", gameID).Msg("websocket closed")
			}
			return
		}
		if !limiter.Allow() {
			if send(socketMessage{Type: "error", Error: "too many commands", Status: http.StatusTooManyRequests}) != nil {
				return
			}
			continue
		}
		res, err := h.store.Do(r.Context(), gameID, cmd)
		msg := socketMessage{Type: "result", Result: &res}
		if err != nil {
			msg = socketMessage{Type: "error", Error: err.Error(), Status: statusFor(err)}
		}
		if send(msg) != nil {
			return
		}
	}
}

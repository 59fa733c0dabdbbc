package httpserver

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/riddler/internal/game"
)

const writeWait = 10 * time.Second

// handleTimer streams one TimerStatus frame per tick over a WebSocket until
// the attempt expires, is untimed, or the client goes away.
func (s *Server) handleTimer(w http.ResponseWriter, r *http.Request) {
	ctrl := s.controller(r)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("timer upgrade")
		return
	}
	defer conn.Close()

	// Drain client frames so close/ping control messages are processed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug().Err(err).Msg("timer client read")
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	for {
		st := ctrl.Tick()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(st); err != nil {
			return
		}
		if !st.Limited || st.Warning == game.WarningExpired {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "timer stopped")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		}
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

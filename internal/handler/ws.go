package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checks belong to the upstream gateway.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamSession upgrades the request to a WebSocket and streams session
// state snapshots (phase, generation progress, errors) until the client
// disconnects or the session is closed.
func (h *BuilderHandler) streamSession(c echo.Context) error {
	session, err := h.lookupSession(c)
	if err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.String("sessionID", session.ID().String()), zap.Error(err))
		return nil
	}
	defer conn.Close()

	log := h.logger.With(zap.String("sessionID", session.ID().String()))
	log.Debug("WebSocket progress stream opened")

	states, cancel := session.Subscribe()
	defer cancel()

	// Reader only detects disconnects; clients send nothing meaningful.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(session.State()); err != nil {
		return nil
	}

	pingTicker := time.NewTicker(wsPingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case state, ok := <-states:
			if !ok {
				// Session closed; tell the client before hanging up.
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
				return nil
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(state); err != nil {
				log.Debug("WebSocket write failed", zap.Error(err))
				return nil
			}
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-clientGone:
			log.Debug("WebSocket progress stream closed by client")
			return nil
		}
	}
}

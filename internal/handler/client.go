package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"liedar/internal/logger"
	hub "liedar/internal/service/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewWebsocketHandler registers viewers in the hub so they receive every
// Record as JSON.
func ViewWebsocketHandler(viewers *hub.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		viewers.Register(connection)
		defer viewers.Unregister(connection)

		logger.Info("Viewer connected")
		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				logDisconnect(logger, "Viewer", err)
				return
			}
		}
	}
}

func logDisconnect(logger *logger.Logger, who string, err error) {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		logger.Info("%s disconnected normally", who)
		return
	}
	logger.Error("%s disconnected with error: %v", who, err)
}

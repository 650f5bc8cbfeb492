package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"liedar/internal/logger"
	"liedar/internal/service"
)

// AudioWebsocketHandler ingests binary messages of little-endian 16-bit mono
// PCM at the configured sample rate.
func AudioWebsocketHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		defer connection.Close()
		connection.SetReadLimit(maxFrameBytes)

		logger.Info("🎙️  Audio source connected from %s", r.RemoteAddr)
		for {
			kind, data, err := connection.ReadMessage()
			if err != nil {
				logDisconnect(logger, "Audio source", err)
				return
			}
			if kind != websocket.BinaryMessage {
				logger.Warning("Ignoring non-binary audio message")
				continue
			}
			manager.HandleAudio(data)
		}
	}
}

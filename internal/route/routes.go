package route

import (
	"net/http"
	"os"
	"path/filepath"

	"liedar/internal/config"
	"liedar/internal/handler"
	"liedar/internal/logger"
	"liedar/internal/middleware"
	"liedar/internal/service"
	hub "liedar/internal/service/websocket"
)

// StaticDir holds the optional dashboard pages.
const StaticDir = "static"

var logFiles = map[string]string{
	"info":    logger.InfoFile,
	"warning": logger.WarningFile,
	"error":   logger.ErrorFile,
}

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join(StaticDir, filepath.Clean("/"+path)+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers ingest, viewer, control and log endpoints and wraps
// the mux with the authentication middleware.
func SetupRoutes(manager *service.Manager, viewers *hub.HubService, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(StaticDir))))

	// Capture clients
	mux.HandleFunc("/ingest/camera", handler.CameraWebsocketHandler(manager, logger))
	mux.HandleFunc("/ingest/audio", handler.AudioWebsocketHandler(manager, logger))

	// API endpoints
	mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(viewers, logger))
	mux.HandleFunc("/api/reset", handler.ResetHandler(manager))
	mux.HandleFunc("/api/weights", handler.WeightsHandler(manager, logger))
	mux.HandleFunc("/api/status", handler.StatusHandler(manager))

	// Log endpoints
	for level, file := range logFiles {
		mux.HandleFunc("/logs/"+level, handler.ShowLogsHandler(cfg, file))
		mux.HandleFunc("/logs/"+level+"/clear", handler.ClearLogsHandler(logger, file))
	}

	// Auth endpoints
	mux.HandleFunc("/auth/login", handler.LoginHandler(cfg, logger))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	// Automatic HTML handler mapping for example: /settings -> /static/settings.html
	mux.HandleFunc("/", dynamicHTMLHandler)

	// Apply middleware
	return middleware.AuthMiddleware(mux)
}

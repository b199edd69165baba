package route

import (
	"net/http"
	"os"
	"path/filepath"

	"parkingserver/internal/config"
	"parkingserver/internal/handler"
	"parkingserver/internal/logger"
	"parkingserver/internal/middleware"
	ws "parkingserver/internal/service/websocket"
)

// dashboardHandler serves /path as <static>/path.html if the file exists; otherwise 404.
func dashboardHandler(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/" {
			path = "/index"
		}

		filePath := filepath.Join(staticDir, filepath.Clean("/"+path)+".html")
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}

		http.ServeFile(w, r, filePath)
	}
}

// SetupRoutes registers the status API, the viewer websocket, log endpoints
// and the static dashboard, wrapped with request logging.
func SetupRoutes(state handler.StateReader, hub *ws.HubService, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDirectory))))

	// Detection API
	mux.HandleFunc("/health", handler.HealthHandler(state, logger))
	mux.HandleFunc("/status", handler.StatusHandler(state, logger))
	mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(hub, logger))

	// Log endpoints
	for _, name := range []string{"info", "warning", "error"} {
		file := name + ".log"
		mux.HandleFunc("/logs/"+name, handler.ShowLogsHandler(logger, file))
		mux.HandleFunc("/logs/"+name+"/clear", handler.ClearLogsHandler(logger, file))
	}

	mux.HandleFunc("/", dashboardHandler(cfg.StaticDirectory))

	return middleware.LoggingMiddleware(logger, mux)
}

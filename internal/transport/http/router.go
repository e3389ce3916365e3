package http

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
)

// NewRouter mounts the websocket and REST endpoints. allowedOrigins feeds the
// CORS policy; empty allows any origin.
func NewRouter(ws *WSHandler, api *APIHandler, allowedOrigins []string) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", api.Health).Methods(http.MethodGet)
	r.HandleFunc("/ws", ws.ServeWS)
	r.HandleFunc("/fetch_gamemode1", api.FetchQuestions).Methods(http.MethodPost)
	r.HandleFunc("/validate_answer", api.ValidateAnswer).Methods(http.MethodPost)
	r.HandleFunc("/get_scores", api.Scores).Methods(http.MethodGet)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})(r)
}

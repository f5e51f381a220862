// internal/gateway/routes.go

package gateway

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter registers every UI-facing route
func NewRouter(handler *Handler) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", handler.Health).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/ws", handler.HandleWebSocket).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(jsonContentType)

	// Conversations
	api.HandleFunc("/conversations", handler.GetConversations).Methods("GET")
	api.HandleFunc("/threads/{userId:[0-9]+}", handler.GetThread).Methods("GET")
	api.HandleFunc("/threads/{userId:[0-9]+}/messages", handler.SendMessage).Methods("POST")
	api.HandleFunc("/sync/{action:focus|blur|pause|resume|refresh}", handler.SyncCommand).Methods("POST")

	// Relationships
	api.HandleFunc("/relationships", handler.GetRelationships).Methods("GET")
	api.HandleFunc("/relationships/{userId:[0-9]+}", handler.GetRelationship).Methods("GET")
	api.HandleFunc("/relationships/{userId:[0-9]+}/{action:send|accept|reject|cancel|remove}", handler.MutateRelationship).Methods("POST")

	// Calls
	api.HandleFunc("/calls/tap/{messageId:[0-9]+}", handler.TapMessage).Methods("POST")
	api.HandleFunc("/calls/{sessionId:[0-9]+}/phase", handler.GetCallPhase).Methods("GET")
	api.HandleFunc("/calls/{userId:[0-9]+}", handler.InviteToCall).Methods("POST")

	// Favorites
	api.HandleFunc("/favorites", handler.GetFavorites).Methods("GET")
	api.HandleFunc("/favorites/{userId:[0-9]+}/toggle", handler.ToggleFavorite).Methods("POST")

	return router
}

func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

package health

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
)

// Server provides HTTP health check and stream status endpoints
type Server struct {
	server *http.Server
}

// New creates a health server; activeStreams reports how many platform
// connections are currently live
func New(addr string, activeStreams func() int) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("/streams", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"active": activeStreams()})
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	log.Printf("Health server listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down health server...")
	return s.server.Shutdown(ctx)
}

// Package api implements the HTTP management API: world and plugin
// lifecycle operations and an aggregate stats endpoint, fronting the
// world manager and sandbox manager with a gorilla/mux router.
package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/plunkit-dev/plunkit/internal/sandbox"
	"github.com/plunkit-dev/plunkit/internal/worldmanager"
)

// Server wraps a gorilla/mux router over the world and sandbox managers.
type Server struct {
	router  *mux.Router
	worlds  *worldmanager.Manager
	sandbox *sandbox.Manager
	logger  *logrus.Logger
}

// NewServer wires routes per the management API's route table.
func NewServer(worlds *worldmanager.Manager, sb *sandbox.Manager, logger *logrus.Logger) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		worlds:  worlds,
		sandbox: sb,
		logger:  logger,
	}

	limiter := rate.NewLimiter(50, 20) // 50 req/s, burst 20
	s.router.Use(logging(logger))
	s.router.Use(rateLimit(limiter))

	s.router.HandleFunc("/worlds", s.listWorlds).Methods(http.MethodGet)
	s.router.HandleFunc("/worlds", s.createWorld).Methods(http.MethodPost)
	s.router.HandleFunc("/worlds/{id}", s.getWorld).Methods(http.MethodGet)
	s.router.HandleFunc("/worlds/{id}", s.deleteWorld).Methods(http.MethodDelete)
	s.router.HandleFunc("/worlds/{id}/start", s.startWorld).Methods(http.MethodPost)
	s.router.HandleFunc("/worlds/{id}/stop", s.stopWorld).Methods(http.MethodPost)
	s.router.HandleFunc("/worlds/{id}/players", s.listPlayers).Methods(http.MethodGet)
	s.router.HandleFunc("/plugins", s.listPlugins).Methods(http.MethodGet)
	s.router.HandleFunc("/plugins", s.createPlugin).Methods(http.MethodPost)
	s.router.HandleFunc("/stats", s.stats).Methods(http.MethodGet)

	return s
}

// ServeHTTP lets Server be passed directly to http.ListenAndServe.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) listWorlds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.worlds.ListWorlds())
}

type createWorldRequest struct {
	ID string `json:"id"`
}

func (s *Server) createWorld(w http.ResponseWriter, r *http.Request) {
	var req createWorldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	if err := s.worlds.CreateWorld(req.ID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
}

func (s *Server) getWorld(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := s.worlds.GetWorld(id); !ok {
		http.Error(w, "world not found", http.StatusNotFound)
		return
	}
	for _, info := range s.worlds.ListWorlds() {
		if info.ID == id {
			writeJSON(w, http.StatusOK, info)
			return
		}
	}
	http.Error(w, "world not found", http.StatusNotFound)
}

func (s *Server) deleteWorld(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := s.worlds.GetWorld(id); !ok {
		http.Error(w, "world not found", http.StatusNotFound)
		return
	}
	if err := s.worlds.RemoveWorld(id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type startWorldRequest struct {
	Address string `json:"address"`
}

func (s *Server) startWorld(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req startWorldRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // a missing or malformed body leaves Address empty, rejected below
	if req.Address == "" {
		http.Error(w, "address is required", http.StatusBadRequest)
		return
	}
	if err := s.worlds.StartWorld(id, req.Address); err != nil {
		status := http.StatusInternalServerError
		if _, ok := s.worlds.GetWorld(id); !ok {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": worldmanager.StatusRunning})
}

func (s *Server) stopWorld(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.worlds.StopWorld(id); err != nil {
		status := http.StatusInternalServerError
		if _, ok := s.worlds.GetWorld(id); !ok {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": worldmanager.StatusStopped})
}

func (s *Server) listPlayers(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	wld, ok := s.worlds.GetWorld(id)
	if !ok {
		http.Error(w, "world not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, wld.AllPlayers())
}

func (s *Server) listPlugins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sandbox.ListPlugins())
}

func (s *Server) createPlugin(w http.ResponseWriter, r *http.Request) {
	worldID := r.URL.Query().Get("world")
	if worldID == "" {
		http.Error(w, "world query parameter is required", http.StatusBadRequest)
		return
	}
	wld, ok := s.worlds.GetWorld(worldID)
	if !ok {
		http.Error(w, "world not found", http.StatusNotFound)
		return
	}
	meta := sandbox.PluginMetadata{
		Name:    r.URL.Query().Get("name"),
		Version: r.URL.Query().Get("version"),
		Author:  r.URL.Query().Get("author"),
	}
	moduleBytes, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.sandbox.LoadPlugin(worldID, wld, meta, moduleBytes); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, meta)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.worlds.Stats())
}

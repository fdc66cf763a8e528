package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Get("/health", s.handleHealth)

	// WebSocket endpoint; authentication happens in-band on the first
	// frame, so no HTTP middleware guards it.
	r.Get(s.wsPath, s.hub.ServeWS)

	// Read-only registry snapshots for tooling and debugging. Writes
	// go through the WebSocket command path only.
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/devices", s.handleListDevices)
		r.Get("/devices/{node}", s.handleGetDevice)
		r.Get("/rooms", s.handleListRooms)
		r.Get("/rooms/{name}", s.handleGetRoom)
		r.Get("/scenes", s.handleListScenes)
		r.Get("/presence", s.handleGetPresence)
	})

	return r
}

// handleHealth probes each registered component and reports aggregate
// status: "ok" when every probe passes, "degraded" otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := make(map[string]string, len(s.checks))
	status := "ok"

	for name, check := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := check.HealthCheck(ctx)
		cancel()

		if err != nil {
			components[name] = err.Error()
			status = "degraded"
		} else {
			components[name] = "ok"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"version":    s.version,
		"clients":    s.hub.SessionCount(),
		"components": components,
	})
}

func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Devices())
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	node, err := strconv.Atoi(chi.URLParam(r, "node"))
	if err != nil {
		writeNotFound(w, "unknown device")
		return
	}

	device, ok := s.registry.Device(node)
	if !ok {
		writeNotFound(w, "unknown device")
		return
	}
	writeJSON(w, http.StatusOK, device)
}

func (s *Server) handleListRooms(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Rooms())
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, ok := s.registry.Room(chi.URLParam(r, "name"))
	if !ok {
		writeNotFound(w, "unknown room")
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *Server) handleListScenes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Scenes())
}

func (s *Server) handleGetPresence(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"athome": s.registry.AtHome()})
}

// Package http exposes the dispatch engine: websocket endpoints for drivers
// and dispatchers, and a REST surface for dispatcher tooling.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noachFrank/CarServiceServer/internal/coordinator"
	"github.com/noachFrank/CarServiceServer/internal/messaging"
	"github.com/noachFrank/CarServiceServer/internal/notify"
	"github.com/noachFrank/CarServiceServer/internal/presence"
	"github.com/noachFrank/CarServiceServer/internal/storage"
	"github.com/noachFrank/CarServiceServer/internal/tracking"
)

// Server wires the dispatch components to their transport.
type Server struct {
	logger   *slog.Logger
	registry *presence.Registry
	gateway  *notify.WSGateway
	coord    *coordinator.Coordinator
	tracker  *tracking.Tracker
	messages *messaging.Service
	rides    storage.RideStore

	upgrader websocket.Upgrader
}

func NewServer(
	logger *slog.Logger,
	registry *presence.Registry,
	gateway *notify.WSGateway,
	coord *coordinator.Coordinator,
	tracker *tracking.Tracker,
	messages *messaging.Service,
	rides storage.RideStore,
) *Server {
	return &Server{
		logger:   logger,
		registry: registry,
		gateway:  gateway,
		coord:    coord,
		tracker:  tracker,
		messages: messages,
		rides:    rides,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Mobile clients connect from app webviews; origin checks happen
			// at the edge.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Router builds the full route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware(s.logger))
	r.Use(observabilityMiddleware)

	r.HandleFunc("/ws/driver/{driver_id}", s.handleDriverWS).Methods(http.MethodGet)
	r.HandleFunc("/ws/dispatcher/{dispatcher_id}", s.handleDispatcherWS).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/calls", s.handleCreateCall).Methods(http.MethodPost)
	api.HandleFunc("/calls/{id}", s.handleGetCall).Methods(http.MethodGet)
	api.HandleFunc("/calls/{id}/assign", s.handleAssignCall).Methods(http.MethodPost)
	api.HandleFunc("/calls/{id}/unassign", s.handleUnassignCall).Methods(http.MethodPost)
	api.HandleFunc("/calls/{id}/cancel", s.handleCancelCall).Methods(http.MethodPost)
	api.HandleFunc("/calls/{id}/reset-pickup", s.handleResetPickup).Methods(http.MethodPost)
	api.HandleFunc("/drivers/online", s.handleOnlineDrivers).Methods(http.MethodGet)
	api.HandleFunc("/drivers/active-count", s.handleActiveDriverCount).Methods(http.MethodGet)
	api.HandleFunc("/drivers/locations", s.handleDriverLocations).Methods(http.MethodGet)
	api.HandleFunc("/drivers/{driver_id}/messages", s.handleDriverMessages).Methods(http.MethodGet)

	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

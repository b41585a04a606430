package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/noachFrank/CarServiceServer/internal/coordinator"
	"github.com/noachFrank/CarServiceServer/internal/models"
	"github.com/noachFrank/CarServiceServer/internal/storage"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

type createCallRequest struct {
	Call       models.Call            `json:"call"`
	Recurrence *models.RecurrenceRule `json:"recurrence,omitempty"`
}

func (s *Server) handleCreateCall(w http.ResponseWriter, r *http.Request) {
	var req createCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	call, err := s.coord.CreateCall(&req.Call, req.Recurrence)
	if err != nil {
		if errors.Is(err, coordinator.ErrInvalidCall) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("create call failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create call")
		return
	}
	respondJSON(w, http.StatusCreated, call)
}

func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	call, err := s.rides.GetByID(id)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "call not found")
		return
	}
	if err != nil {
		s.logger.Error("get call failed", "call_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load call")
		return
	}
	respondJSON(w, http.StatusOK, struct {
		*models.Call
		Status models.CallStatus `json:"status"`
	}{call, call.Status()})
}

type assignRequest struct {
	DriverID string `json:"driver_id"`
}

func (s *Server) handleAssignCall(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DriverID == "" {
		respondError(w, http.StatusBadRequest, "driver_id is required")
		return
	}

	err := s.coord.AssignCall(id, req.DriverID)
	var conflict *coordinator.AlreadyAssignedError
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]string{"call_id": id, "driver_id": req.DriverID})
	case errors.Is(err, coordinator.ErrCallNotFound):
		respondError(w, http.StatusNotFound, "call not found")
	case errors.Is(err, coordinator.ErrCallClosed):
		respondError(w, http.StatusGone, "call is closed")
	case errors.As(err, &conflict):
		respondJSON(w, http.StatusConflict, map[string]string{
			"error":          "call already assigned",
			"assigned_to_id": conflict.AssignedToID,
		})
	default:
		s.logger.Error("assign call failed", "call_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to assign call")
	}
}

func (s *Server) handleUnassignCall(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	err := s.coord.UnassignDriver(id)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]string{"call_id": id})
	case errors.Is(err, coordinator.ErrCallNotFound):
		respondError(w, http.StatusNotFound, "call not found")
	case errors.Is(err, coordinator.ErrNoActiveAssignee):
		respondError(w, http.StatusConflict, "call has no assigned driver")
	default:
		s.logger.Error("unassign call failed", "call_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to unassign call")
	}
}

func (s *Server) handleCancelCall(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	err := s.coord.CancelCall(id)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]string{"call_id": id})
	case errors.Is(err, coordinator.ErrCallNotFound):
		respondError(w, http.StatusNotFound, "call not found")
	default:
		s.logger.Error("cancel call failed", "call_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to cancel call")
	}
}

func (s *Server) handleResetPickup(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	err := s.coord.ResetPickupTime(id)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]string{"call_id": id})
	case errors.Is(err, coordinator.ErrCallNotFound):
		respondError(w, http.StatusNotFound, "call not found")
	case errors.Is(err, coordinator.ErrNoActiveAssignee):
		respondError(w, http.StatusConflict, "call has no assigned driver")
	default:
		s.logger.Error("reset pickup failed", "call_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to reset pickup time")
	}
}

func (s *Server) handleOnlineDrivers(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"driver_ids": s.registry.OnlineDriverIDs()})
}

func (s *Server) handleActiveDriverCount(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]int{"count": s.registry.ActiveDriverCount()})
}

func (s *Server) handleDriverLocations(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"locations": s.tracker.Snapshot()})
}

func (s *Server) handleDriverMessages(w http.ResponseWriter, r *http.Request) {
	driverID := mux.Vars(r)["driver_id"]
	msgs, err := s.messages.History(driverID)
	if err != nil {
		s.logger.Error("message history failed", "driver_id", driverID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

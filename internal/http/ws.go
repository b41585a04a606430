package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/noachFrank/CarServiceServer/internal/coordinator"
	"github.com/noachFrank/CarServiceServer/internal/models"
)

// inboundMessage is the wire shape of every client-sent websocket message.
type inboundMessage struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type callRef struct {
	CallID string `json:"call_id"`
}

type locationUpdate struct {
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	CurrentCallID *string `json:"current_call_id,omitempty"`
}

type messagePayload struct {
	DriverID string `json:"driver_id,omitempty"`
	Body     string `json:"body"`
}

type markReadPayload struct {
	MessageIDs []string `json:"message_ids"`
}

// handleDriverWS is the driver app's lifeline: registration on connect,
// heartbeats, assignment claims, trip progress and GPS fixes. A dropped
// transport only removes the connection; the driver stays available until
// their heartbeat ages out.
func (s *Server) handleDriverWS(w http.ResponseWriter, r *http.Request) {
	driverID := mux.Vars(r)["driver_id"]
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("driver websocket upgrade failed", "driver_id", driverID, "error", err)
		return
	}

	connID := uuid.NewString()
	s.gateway.Add(connID, conn)
	s.registry.RegisterDriver(driverID, connID)
	s.logger.Info("driver connected", "driver_id", driverID, "connection_id", connID)

	defer func() {
		conn.Close()
		s.gateway.Remove(connID)
		s.registry.OnDisconnect(connID)
		s.logger.Info("driver connection closed", "driver_id", driverID, "connection_id", connID)
	}()

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("driver websocket read failed", "driver_id", driverID, "error", err)
			}
			return
		}
		s.dispatchDriverMessage(driverID, connID, msg)
	}
}

func (s *Server) dispatchDriverMessage(driverID, connID string, msg inboundMessage) {
	switch msg.Action {
	case "heartbeat":
		s.registry.Heartbeat(driverID, connID)

	case "assign_call":
		var ref callRef
		if err := json.Unmarshal(msg.Payload, &ref); err != nil || ref.CallID == "" {
			s.logger.Warn("malformed assign_call payload", "driver_id", driverID)
			return
		}
		// Rejections reach the driver as events; the error here is bookkeeping.
		if err := s.coord.AssignCall(ref.CallID, driverID); err != nil {
			s.logger.Info("assignment attempt failed", "driver_id", driverID, "call_id", ref.CallID, "error", err)
		}

	case "picked_up":
		var ref callRef
		if err := json.Unmarshal(msg.Payload, &ref); err != nil || ref.CallID == "" {
			return
		}
		if err := s.coord.MarkPickedUp(ref.CallID); err != nil {
			s.logger.Warn("pickup failed", "driver_id", driverID, "call_id", ref.CallID, "error", err)
		}

	case "dropped_off":
		var ref callRef
		if err := json.Unmarshal(msg.Payload, &ref); err != nil || ref.CallID == "" {
			return
		}
		if err := s.coord.MarkDroppedOff(ref.CallID); err != nil {
			s.logger.Warn("dropoff failed", "driver_id", driverID, "call_id", ref.CallID, "error", err)
		}

	case "location":
		var loc locationUpdate
		if err := json.Unmarshal(msg.Payload, &loc); err != nil {
			return
		}
		s.tracker.Update(context.Background(), models.DriverLocation{
			DriverID:      driverID,
			Latitude:      loc.Latitude,
			Longitude:     loc.Longitude,
			CurrentCallID: loc.CurrentCallID,
		})

	case "message":
		var pl messagePayload
		if err := json.Unmarshal(msg.Payload, &pl); err != nil {
			return
		}
		if _, err := s.messages.SendToDispatchers(driverID, pl.Body); err != nil {
			s.logger.Warn("driver message failed", "driver_id", driverID, "error", err)
		}

	case "mark_read":
		var pl markReadPayload
		if err := json.Unmarshal(msg.Payload, &pl); err != nil {
			return
		}
		_ = s.messages.MarkRead(pl.MessageIDs, models.SenderDriver)

	case "sign_off":
		s.registry.UnregisterDriver(driverID)
		s.tracker.Remove(driverID)

	default:
		s.logger.Warn("unknown driver action", "driver_id", driverID, "action", msg.Action)
	}
}

// handleDispatcherWS joins the dispatcher to the broadcast group. Call
// mutations go through the REST API; messaging rides this socket so replies
// land in the same panel that shows incoming driver messages.
func (s *Server) handleDispatcherWS(w http.ResponseWriter, r *http.Request) {
	dispatcherID := mux.Vars(r)["dispatcher_id"]
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("dispatcher websocket upgrade failed", "dispatcher_id", dispatcherID, "error", err)
		return
	}

	connID := uuid.NewString()
	s.gateway.Add(connID, conn)
	s.gateway.JoinGroup(coordinator.DispatcherGroup, connID)
	s.registry.RegisterDispatcher(dispatcherID, connID)
	s.logger.Info("dispatcher connected", "dispatcher_id", dispatcherID, "connection_id", connID)

	defer func() {
		conn.Close()
		s.gateway.Remove(connID)
		s.registry.OnDisconnect(connID)
		s.logger.Info("dispatcher connection closed", "dispatcher_id", dispatcherID)
	}()

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		s.dispatchDispatcherMessage(dispatcherID, connID, msg)
	}
}

func (s *Server) dispatchDispatcherMessage(dispatcherID, connID string, msg inboundMessage) {
	switch msg.Action {
	case "message":
		var pl messagePayload
		if err := json.Unmarshal(msg.Payload, &pl); err != nil {
			return
		}
		if _, err := s.messages.SendToDriver(connID, pl.DriverID, pl.Body); err != nil {
			s.logger.Warn("dispatcher message failed",
				"dispatcher_id", dispatcherID, "driver_id", pl.DriverID, "error", err)
		}

	case "broadcast":
		var pl messagePayload
		if err := json.Unmarshal(msg.Payload, &pl); err != nil {
			return
		}
		if _, err := s.messages.Broadcast(connID, pl.Body); err != nil {
			s.logger.Warn("broadcast failed", "dispatcher_id", dispatcherID, "error", err)
		}

	case "mark_read":
		var pl markReadPayload
		if err := json.Unmarshal(msg.Payload, &pl); err != nil {
			return
		}
		_ = s.messages.MarkRead(pl.MessageIDs, models.SenderDispatcher)

	case "ping":

	default:
		s.logger.Debug("dispatcher message ignored", "dispatcher_id", dispatcherID, "action", msg.Action)
	}
}

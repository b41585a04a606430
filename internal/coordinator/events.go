package coordinator

import (
	"time"

	"github.com/noachFrank/CarServiceServer/internal/models"
)

// Outbound event names. These are the wire contract with driver and
// dispatcher clients.
const (
	EventNewCallAvailable      = "NewCallAvailable"
	EventCallAssignmentSuccess = "CallAssignmentSuccess"
	EventCallAlreadyAssigned   = "CallAlreadyAssigned"
	EventCallAssigned          = "CallAssigned" // retraction to non-winners
	EventCallUnassigned        = "CallUnassigned"
	EventCallAvailableAgain    = "CallAvailableAgain"
	EventCallCanceled          = "CallCanceled"
	EventPickupTimeReset       = "PickupTimeReset"
	EventRideCompleted         = "RideCompleted"
)

// DispatcherGroup is the broadcast group every registered dispatcher joins.
const DispatcherGroup = "dispatchers"

// CallNotice is the generic payload for call lifecycle events.
type CallNotice struct {
	CallID       string    `json:"call_id"`
	Message      string    `json:"message,omitempty"`
	AssignedToID string    `json:"assigned_to_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// CompletionNotice announces a dropoff to the dispatcher group.
type CompletionNotice struct {
	CallID    string    `json:"call_id"`
	DriverID  string    `json:"driver_id"`
	Timestamp time.Time `json:"timestamp"`
}

// PickupResetNotice carries the refreshed call so dispatcher views update in
// place.
type PickupResetNotice struct {
	CallID    string       `json:"call_id"`
	DriverID  string       `json:"driver_id"`
	Call      *models.Call `json:"call,omitempty"`
	Message   string       `json:"message,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

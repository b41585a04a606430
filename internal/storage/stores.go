package storage

import (
	"errors"
	"time"

	"github.com/noachFrank/CarServiceServer/internal/models"
)

var (
	// ErrNotFound is returned when a referenced call, recurrence or driver
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyAssigned is returned by Assign when the call already has an
	// effective driver. This is an expected outcome of racing assignment
	// attempts, not a failure.
	ErrAlreadyAssigned = errors.New("call already assigned")
)

// RideStore is the durable home of calls and recurrence rules. The dispatch
// core treats it as an external collaborator: implementations must make
// Assign conditional so that two racing assignment attempts cannot both
// succeed even without coordinator-level serialization.
type RideStore interface {
	GetByID(id string) (*models.Call, error)
	// GetActiveCallsForDriver returns calls where the driver is the effective
	// assignee and that are neither dropped off nor canceled.
	GetActiveCallsForDriver(driverID string) ([]*models.Call, error)
	CreateCall(c *models.Call) error
	CreateRecurrence(r *models.RecurrenceRule) error
	GetRecurrence(id string) (*models.RecurrenceRule, error)

	// Assign commits driverID as the call's effective driver. Fails with
	// ErrAlreadyAssigned if an effective driver already exists.
	Assign(callID, driverID string) error
	// SetReassignmentPending removes the current effective driver and marks
	// the call as awaiting reassignment.
	SetReassignmentPending(callID string) error
	Cancel(callID string) error
	SetPickupTime(callID string, t time.Time) error
	ClearPickupTime(callID string) error
	SetDropoffTime(callID string, t time.Time) error
}

// DriverStore provides read access to drivers and vehicles plus the active
// and on-job status writes the presence layer and coordinator need.
type DriverStore interface {
	GetAllDrivers() ([]*models.Driver, error)
	GetDriver(driverID string) (*models.Driver, error)
	// GetPrimaryVehicle returns (nil, nil) when the driver has no primary
	// vehicle on file; callers decide the fallback.
	GetPrimaryVehicle(driverID string) (*models.Vehicle, error)
	SetActiveStatus(driverID string, active bool) error
	SetOnJob(driverID string, onJob bool) error
	GetPushToken(driverID string) (string, error)
	GetPushTokens(driverIDs []string) (map[string]string, error)
}

// MessageStore persists the dispatch <-> driver conversation threads.
type MessageStore interface {
	CreateMessage(m *models.Message) error
	GetMessage(id string) (*models.Message, error)
	// MessagesForDriver returns the driver's thread in send order.
	MessagesForDriver(driverID string) ([]*models.Message, error)
	MarkMessageRead(id string) error
}

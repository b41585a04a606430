package models

import "time"

// VehicleClass identifies the class of vehicle a call requires or a driver
// operates. Compatibility between classes is NOT a plain ordinal comparison;
// see availability.VehicleCapable for the explicit table.
type VehicleClass string

const (
	ClassSedan     VehicleClass = "sedan"
	ClassSUV       VehicleClass = "suv"
	ClassMinivan   VehicleClass = "minivan"
	ClassVan12     VehicleClass = "van12"
	ClassVan15     VehicleClass = "van15"
	ClassLuxurySUV VehicleClass = "luxury_suv"
)

// Valid reports whether c is a known vehicle class.
func (c VehicleClass) Valid() bool {
	switch c {
	case ClassSedan, ClassSUV, ClassMinivan, ClassVan12, ClassVan15, ClassLuxurySUV:
		return true
	}
	return false
}

// CallStatus is the lifecycle state of a call, derived from the call's
// assignment and timestamp fields rather than stored directly.
type CallStatus string

const (
	StatusOpen                CallStatus = "open"
	StatusAssigned            CallStatus = "assigned"
	StatusReassignmentPending CallStatus = "reassignment_pending"
	StatusPickedUp            CallStatus = "picked_up"
	StatusDroppedOff          CallStatus = "dropped_off"
	StatusCanceled            CallStatus = "canceled"
)

// Route holds the pickup/dropoff addresses and the estimated on-trip time.
type Route struct {
	Pickup            string        `json:"pickup"`
	Dropoff           string        `json:"dropoff"`
	RoundTrip         bool          `json:"round_trip"`
	EstimatedDuration time.Duration `json:"estimated_duration"`
}

// Call is a transportation request moving through the dispatch lifecycle.
type Call struct {
	ID            string     `json:"id"`
	CustomerName  string     `json:"customer_name"`
	CustomerPhone string     `json:"customer_phone"`
	CallTime      time.Time  `json:"call_time"`
	ScheduledFor  time.Time  `json:"scheduled_for"`
	PickupTime    *time.Time `json:"pickup_time,omitempty"`
	DropoffTime   *time.Time `json:"dropoff_time,omitempty"`

	Route        Route        `json:"route"`
	VehicleClass VehicleClass `json:"vehicle_class"`
	Passengers   int          `json:"passengers"`
	CarSeat      bool         `json:"car_seat"`

	Cost           float64 `json:"cost"`
	Tip            float64 `json:"tip"`
	WaitTimeAmount float64 `json:"wait_time_amount"`

	AssignedToID   *string `json:"assigned_to_id,omitempty"`
	ReassignedToID *string `json:"reassigned_to_id,omitempty"`
	Reassigned     bool    `json:"reassigned"`
	Canceled       bool    `json:"canceled"`

	RecurrenceID *string `json:"recurrence_id,omitempty"`
	DispatcherID string  `json:"dispatcher_id,omitempty"`
	Notes        string  `json:"notes,omitempty"`
}

// EffectiveDriverID returns the driver currently responsible for the call.
// After a reassignment only ReassignedToID counts; before one only
// AssignedToID counts. At most one of the two is ever effective.
func (c *Call) EffectiveDriverID() (string, bool) {
	if c.Reassigned {
		if c.ReassignedToID != nil {
			return *c.ReassignedToID, true
		}
		return "", false
	}
	if c.AssignedToID != nil {
		return *c.AssignedToID, true
	}
	return "", false
}

// Status derives the lifecycle state from the call's fields.
func (c *Call) Status() CallStatus {
	switch {
	case c.Canceled:
		return StatusCanceled
	case c.DropoffTime != nil:
		return StatusDroppedOff
	case c.PickupTime != nil:
		return StatusPickedUp
	case c.Reassigned && c.ReassignedToID == nil:
		return StatusReassignmentPending
	default:
		if _, ok := c.EffectiveDriverID(); ok {
			return StatusAssigned
		}
		return StatusOpen
	}
}

// Active reports whether the call still occupies the driver's schedule.
func (c *Call) Active() bool {
	return !c.Canceled && c.DropoffTime == nil
}

// RecurrenceRule describes a weekly repeating call. A successor call is
// spawned seven days out each time the current occurrence completes or is
// canceled, until EndDate passes.
type RecurrenceRule struct {
	ID        string    `json:"id"`
	Weekday   int       `json:"weekday"`
	TimeOfDay string    `json:"time_of_day"`
	EndDate   time.Time `json:"end_date"`
}

// Driver as seen by the dispatch core. Credentials and contact details live
// outside this service.
type Driver struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	OnJob     bool   `json:"on_job"`
	PushToken string `json:"push_token,omitempty"`
}

// Vehicle is a driver's car. Eligibility uses the driver's primary vehicle.
type Vehicle struct {
	ID       string       `json:"id"`
	DriverID string       `json:"driver_id"`
	Class    VehicleClass `json:"class"`
	Seats    int          `json:"seats"`
	Primary  bool         `json:"primary"`
}

// Message sender values.
const (
	SenderDispatcher = "dispatcher"
	SenderDriver     = "driver"
	SenderBroadcast  = "broadcast"
)

// Message is one entry in the dispatch <-> driver conversation thread.
// Broadcasts are stored as one message per recipient driver.
type Message struct {
	ID       string    `json:"id"`
	DriverID string    `json:"driver_id"`
	Sender   string    `json:"sender"`
	Body     string    `json:"body"`
	SentAt   time.Time `json:"sent_at"`
	Read     bool      `json:"read"`
}

// DriverLocation is a live GPS fix used for dispatcher map tracking.
type DriverLocation struct {
	DriverID      string    `json:"driver_id"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	CurrentCallID *string   `json:"current_call_id,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Package coordinator owns the call lifecycle: creation, the assignment
// race, unassignment, cancellation, pickup/dropoff transitions and weekly
// recurrence. State commits to the ride store first; client notification is
// fire-and-forget and never blocks or fails an operation.
package coordinator

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/noachFrank/CarServiceServer/internal/availability"
	"github.com/noachFrank/CarServiceServer/internal/models"
	"github.com/noachFrank/CarServiceServer/internal/notify"
	"github.com/noachFrank/CarServiceServer/internal/observability"
	"github.com/noachFrank/CarServiceServer/internal/storage"
)

// Presence is the liveness view the coordinator needs: who is eligible for
// real-time delivery and on which connection.
type Presence interface {
	IsOnline(driverID string) bool
	ConnectionID(driverID string) (string, bool)
	DriverConnectionIDs() []string
}

// Coordinator orchestrates calls across the store, presence, availability
// and notification layers.
type Coordinator struct {
	rides    storage.RideStore
	drivers  storage.DriverStore
	presence Presence
	avail    *availability.Engine
	gateway  notify.Gateway
	logger   *slog.Logger

	locks *callLocks
	spawn func(func())
	now   func() time.Time
}

func New(rides storage.RideStore, drivers storage.DriverStore, pres Presence, avail *availability.Engine, gw notify.Gateway, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		rides:    rides,
		drivers:  drivers,
		presence: pres,
		avail:    avail,
		gateway:  gw,
		logger:   logger,
		locks:    newCallLocks(),
		spawn:    func(f func()) { go f() },
		now:      time.Now,
	}
}

// SetSpawn makes notification fan-out synchronous. Test hook.
func (c *Coordinator) SetSpawn(spawn func(func())) { c.spawn = spawn }

// SetClock overrides the time source. Test hook.
func (c *Coordinator) SetClock(now func() time.Time) { c.now = now }

// CreateCall validates and persists a new call, plus its recurrence rule if
// one is given, then fans the offer out. Pre-assigned calls go to the named
// driver only; open calls go to every driver whose vehicle and schedule fit.
func (c *Coordinator) CreateCall(call *models.Call, rule *models.RecurrenceRule) (*models.Call, error) {
	if err := validateCall(call); err != nil {
		return nil, err
	}
	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	if call.CallTime.IsZero() {
		call.CallTime = c.now()
	}

	if rule != nil {
		if rule.ID == "" {
			rule.ID = uuid.NewString()
		}
		if err := c.rides.CreateRecurrence(rule); err != nil {
			return nil, fmt.Errorf("persist recurrence rule: %w", err)
		}
		call.RecurrenceID = &rule.ID
	}

	if err := c.rides.CreateCall(call); err != nil {
		return nil, fmt.Errorf("persist call: %w", err)
	}
	observability.CallsCreated.Inc()
	c.logger.Info("call created",
		"call_id", call.ID, "scheduled_for", call.ScheduledFor, "vehicle_class", call.VehicleClass)

	snapshot := *call
	if driverID, ok := snapshot.EffectiveDriverID(); ok {
		c.spawn(func() { c.offerToDriver(driverID, &snapshot) })
	} else {
		c.spawn(func() { c.broadcastOpenCall(&snapshot, EventNewCallAvailable) })
	}
	return call, nil
}

func validateCall(call *models.Call) error {
	switch {
	case !call.VehicleClass.Valid():
		return fmt.Errorf("%w: unknown vehicle class %q", ErrInvalidCall, call.VehicleClass)
	case call.Passengers < 1:
		return fmt.Errorf("%w: passenger count must be positive", ErrInvalidCall)
	case call.ScheduledFor.IsZero():
		return fmt.Errorf("%w: scheduled time is required", ErrInvalidCall)
	case call.Route.Pickup == "":
		return fmt.Errorf("%w: pickup address is required", ErrInvalidCall)
	}
	return nil
}

// AssignCall commits driverID as the call's effective driver. The per-call
// lock plus the store's conditional write guarantee a single winner; losers
// get a CallAlreadyAssigned rejection naming the winner.
func (c *Coordinator) AssignCall(callID, driverID string) error {
	unlock := c.locks.acquire(callID)
	defer unlock()

	call, err := c.rides.GetByID(callID)
	if errors.Is(err, storage.ErrNotFound) {
		c.rejectAssignment(driverID, callID, "This call no longer exists", "")
		return ErrCallNotFound
	}
	if err != nil {
		return fmt.Errorf("load call %s: %w", callID, err)
	}

	if call.Canceled || call.DropoffTime != nil {
		c.rejectAssignment(driverID, callID, "This call is no longer available", "")
		return ErrCallClosed
	}

	if winner, taken := call.EffectiveDriverID(); taken {
		c.rejectAssignment(driverID, callID, "This call was already taken", winner)
		return &AlreadyAssignedError{CallID: callID, AssignedToID: winner}
	}

	if err := c.rides.Assign(callID, driverID); err != nil {
		if errors.Is(err, storage.ErrAlreadyAssigned) {
			winner := ""
			if fresh, ferr := c.rides.GetByID(callID); ferr == nil {
				winner, _ = fresh.EffectiveDriverID()
			}
			c.rejectAssignment(driverID, callID, "This call was already taken", winner)
			return &AlreadyAssignedError{CallID: callID, AssignedToID: winner}
		}
		if errors.Is(err, storage.ErrNotFound) {
			c.rejectAssignment(driverID, callID, "This call no longer exists", "")
			return ErrCallNotFound
		}
		return fmt.Errorf("assign call %s: %w", callID, err)
	}

	if err := c.drivers.SetOnJob(driverID, true); err != nil {
		c.logger.Error("failed to flag driver on-job", "driver_id", driverID, "error", err)
	}
	observability.CallsAssigned.Inc()
	c.logger.Info("call assigned", "call_id", callID, "driver_id", driverID)

	if connID, ok := c.presence.ConnectionID(driverID); ok {
		_ = c.gateway.SendToConnection(connID, EventCallAssignmentSuccess, CallNotice{
			CallID:       callID,
			Message:      "Call is yours",
			AssignedToID: driverID,
			Timestamp:    c.now(),
		})
	}

	notice := CallNotice{CallID: callID, AssignedToID: driverID, Timestamp: c.now()}
	c.spawn(func() {
		c.retractFromOtherDrivers(driverID, EventCallAssigned, notice)
		_ = c.gateway.SendToGroup(DispatcherGroup, EventCallAssigned, notice)
	})
	return nil
}

func (c *Coordinator) rejectAssignment(driverID, callID, message, winner string) {
	observability.AssignConflicts.Inc()
	c.logger.Info("assignment rejected",
		"call_id", callID, "driver_id", driverID, "assigned_to", winner)
	if connID, ok := c.presence.ConnectionID(driverID); ok {
		_ = c.gateway.SendToConnection(connID, EventCallAlreadyAssigned, CallNotice{
			CallID:       callID,
			Message:      message,
			AssignedToID: winner,
			Timestamp:    c.now(),
		})
	}
}

// UnassignDriver removes the call's effective driver and reopens it for the
// reassignment round. The removed driver is told directly; everyone eligible
// hears CallAvailableAgain.
func (c *Coordinator) UnassignDriver(callID string) error {
	unlock := c.locks.acquire(callID)
	defer unlock()

	call, err := c.rides.GetByID(callID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrCallNotFound
	}
	if err != nil {
		return fmt.Errorf("load call %s: %w", callID, err)
	}
	removedID, had := call.EffectiveDriverID()
	if !had {
		return ErrNoActiveAssignee
	}

	if err := c.rides.SetReassignmentPending(callID); err != nil {
		return fmt.Errorf("mark call %s for reassignment: %w", callID, err)
	}
	c.logger.Info("driver unassigned", "call_id", callID, "driver_id", removedID)

	updated, err := c.rides.GetByID(callID)
	if err != nil {
		return fmt.Errorf("reload call %s: %w", callID, err)
	}

	notice := CallNotice{
		CallID:    callID,
		Message:   "You were removed from this call",
		Timestamp: c.now(),
	}
	snapshot := *updated
	c.spawn(func() {
		c.notifyDriver(removedID, EventCallUnassigned, notice, notify.PushNotification{
			Title: "Removed from call",
			Body:  fmt.Sprintf("You are no longer on the %s call.", formatScheduled(snapshot.ScheduledFor)),
			Data:  map[string]any{"call_id": callID, "event": EventCallUnassigned},
		})
		_ = c.gateway.SendToGroup(DispatcherGroup, EventCallUnassigned, notice)
		// The removed driver's schedule no longer holds this call, so they
		// re-enter the eligible set on their own merits.
		c.broadcastOpenCall(&snapshot, EventCallAvailableAgain)
	})
	return nil
}

// CancelCall terminally cancels the call, spawns the recurrence successor if
// one is due, and retracts the call from every screen it might be on.
func (c *Coordinator) CancelCall(callID string) error {
	unlock := c.locks.acquire(callID)
	defer unlock()

	call, err := c.rides.GetByID(callID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrCallNotFound
	}
	if err != nil {
		return fmt.Errorf("load call %s: %w", callID, err)
	}
	if call.Canceled {
		return nil
	}

	if err := c.rides.Cancel(callID); err != nil {
		return fmt.Errorf("cancel call %s: %w", callID, err)
	}
	observability.CallsCanceled.Inc()
	c.logger.Info("call canceled", "call_id", callID)

	c.spawnSuccessor(call)

	assignee, hadAssignee := call.EffectiveDriverID()
	notice := CallNotice{CallID: callID, Message: "This call was canceled", Timestamp: c.now()}
	scheduled := call.ScheduledFor
	c.spawn(func() {
		if hadAssignee {
			c.notifyDriver(assignee, EventCallCanceled, notice, notify.PushNotification{
				Title: "Call canceled",
				Body:  fmt.Sprintf("Your %s call was canceled.", formatScheduled(scheduled)),
				Data:  map[string]any{"call_id": callID, "event": EventCallCanceled},
			})
		}
		c.retractFromOtherDrivers(assignee, EventCallCanceled, notice)
		_ = c.gateway.SendToGroup(DispatcherGroup, EventCallCanceled, notice)
	})
	return nil
}

// MarkPickedUp stamps the pickup time. Rejected once the call is canceled or
// completed.
func (c *Coordinator) MarkPickedUp(callID string) error {
	unlock := c.locks.acquire(callID)
	defer unlock()

	call, err := c.rides.GetByID(callID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrCallNotFound
	}
	if err != nil {
		return fmt.Errorf("load call %s: %w", callID, err)
	}
	if call.Canceled || call.DropoffTime != nil {
		return fmt.Errorf("call %s is %s, cannot record pickup", callID, call.Status())
	}

	if err := c.rides.SetPickupTime(callID, c.now()); err != nil {
		return fmt.Errorf("set pickup time on call %s: %w", callID, err)
	}
	c.logger.Info("pickup recorded", "call_id", callID)
	return nil
}

// MarkDroppedOff completes the call, frees the driver and spawns the
// recurrence successor if one is due.
func (c *Coordinator) MarkDroppedOff(callID string) error {
	unlock := c.locks.acquire(callID)
	defer unlock()

	call, err := c.rides.GetByID(callID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrCallNotFound
	}
	if err != nil {
		return fmt.Errorf("load call %s: %w", callID, err)
	}
	if call.Canceled {
		return fmt.Errorf("call %s is canceled, cannot record dropoff", callID)
	}
	if call.DropoffTime != nil {
		return nil
	}

	if err := c.rides.SetDropoffTime(callID, c.now()); err != nil {
		return fmt.Errorf("set dropoff time on call %s: %w", callID, err)
	}
	driverID, hadDriver := call.EffectiveDriverID()
	if hadDriver {
		if err := c.drivers.SetOnJob(driverID, false); err != nil {
			c.logger.Error("failed to clear driver on-job flag", "driver_id", driverID, "error", err)
		}
	}
	c.logger.Info("dropoff recorded", "call_id", callID, "driver_id", driverID)

	c.spawnSuccessor(call)

	notice := CompletionNotice{CallID: callID, DriverID: driverID, Timestamp: c.now()}
	c.spawn(func() {
		_ = c.gateway.SendToGroup(DispatcherGroup, EventRideCompleted, notice)
	})
	return nil
}

// ResetPickupTime clears a mistakenly recorded pickup. The assigned driver is
// told over their live connection, or by push if they are not connected.
func (c *Coordinator) ResetPickupTime(callID string) error {
	unlock := c.locks.acquire(callID)
	defer unlock()

	call, err := c.rides.GetByID(callID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrCallNotFound
	}
	if err != nil {
		return fmt.Errorf("load call %s: %w", callID, err)
	}
	driverID, ok := call.EffectiveDriverID()
	if !ok {
		return ErrNoActiveAssignee
	}

	if err := c.rides.ClearPickupTime(callID); err != nil {
		return fmt.Errorf("clear pickup time on call %s: %w", callID, err)
	}
	c.logger.Info("pickup time reset", "call_id", callID, "driver_id", driverID)

	updated, err := c.rides.GetByID(callID)
	if err != nil {
		return fmt.Errorf("reload call %s: %w", callID, err)
	}

	snapshot := *updated
	note := PickupResetNotice{
		CallID:    callID,
		DriverID:  driverID,
		Call:      &snapshot,
		Message:   "Dispatch reset the pickup time on your call",
		Timestamp: c.now(),
	}
	c.spawn(func() {
		c.notifyDriver(driverID, EventPickupTimeReset, note, notify.PushNotification{
			Title: "Pickup time reset",
			Body:  fmt.Sprintf("Dispatch reset the pickup on your %s call.", formatScheduled(snapshot.ScheduledFor)),
			Data:  map[string]any{"call_id": callID, "event": EventPickupTimeReset},
		})
		_ = c.gateway.SendToGroup(DispatcherGroup, EventPickupTimeReset, note)
	})
	return nil
}

// spawnSuccessor creates next week's occurrence of a recurring call. The
// successor is spawned open with tip and wait-time charges stripped; those
// belong to the completed occurrence only.
func (c *Coordinator) spawnSuccessor(call *models.Call) {
	if call.RecurrenceID == nil {
		return
	}
	rule, err := c.rides.GetRecurrence(*call.RecurrenceID)
	if err != nil {
		c.logger.Error("failed to load recurrence rule",
			"recurrence_id", *call.RecurrenceID, "call_id", call.ID, "error", err)
		return
	}

	next := call.ScheduledFor.AddDate(0, 0, 7)
	if rule.EndDate.Before(next) {
		c.logger.Info("recurrence ended", "recurrence_id", rule.ID, "call_id", call.ID)
		return
	}

	successor := &models.Call{
		ID:            uuid.NewString(),
		CustomerName:  call.CustomerName,
		CustomerPhone: call.CustomerPhone,
		CallTime:      c.now(),
		ScheduledFor:  next,
		Route:         call.Route,
		VehicleClass:  call.VehicleClass,
		Passengers:    call.Passengers,
		CarSeat:       call.CarSeat,
		Cost:          call.Cost,
		RecurrenceID:  call.RecurrenceID,
		DispatcherID:  call.DispatcherID,
		Notes:         call.Notes,
	}
	if err := c.rides.CreateCall(successor); err != nil {
		c.logger.Error("failed to spawn recurrence successor",
			"recurrence_id", rule.ID, "call_id", call.ID, "error", err)
		return
	}
	observability.RecurrenceSpawned.Inc()
	c.logger.Info("recurrence successor spawned",
		"recurrence_id", rule.ID, "call_id", successor.ID, "scheduled_for", next)

	snapshot := *successor
	c.spawn(func() { c.broadcastOpenCall(&snapshot, EventNewCallAvailable) })
}

// eligibleDrivers is the recipient set for an open call: every driver whose
// primary vehicle can serve it and whose schedule can absorb it. Per-driver
// lookup failures drop that driver from the set rather than failing the
// whole broadcast.
func (c *Coordinator) eligibleDrivers(call *models.Call) []*models.Driver {
	all, err := c.drivers.GetAllDrivers()
	if err != nil {
		c.logger.Error("failed to list drivers for broadcast", "call_id", call.ID, "error", err)
		return nil
	}
	eligible := make([]*models.Driver, 0, len(all))
	for _, d := range all {
		vehicle, err := c.drivers.GetPrimaryVehicle(d.ID)
		if err != nil {
			c.logger.Warn("primary vehicle lookup failed", "driver_id", d.ID, "error", err)
			continue
		}
		if !availability.VehicleCapable(vehicle, call) {
			continue
		}
		ok, err := c.avail.IsAvailable(d.ID, call)
		if err != nil {
			c.logger.Warn("availability check failed", "driver_id", d.ID, "error", err)
			continue
		}
		if ok {
			eligible = append(eligible, d)
		}
	}
	return eligible
}

// broadcastOpenCall fans an open call out to its eligible set: real-time to
// the subset with a fresh heartbeat and a live connection, push to everyone
// eligible.
func (c *Coordinator) broadcastOpenCall(call *models.Call, event string) {
	eligible := c.eligibleDrivers(call)
	if len(eligible) == 0 {
		c.logger.Info("no eligible drivers for call", "call_id", call.ID, "event", event)
		return
	}

	ids := make([]string, 0, len(eligible))
	for _, d := range eligible {
		ids = append(ids, d.ID)
		if !c.presence.IsOnline(d.ID) {
			continue
		}
		if connID, ok := c.presence.ConnectionID(d.ID); ok {
			_ = c.gateway.SendToConnection(connID, event, call)
		}
	}

	tokens, err := c.drivers.GetPushTokens(ids)
	if err != nil {
		c.logger.Error("push token lookup failed", "call_id", call.ID, "error", err)
		return
	}
	body := fmt.Sprintf("%s, %s to %s", formatScheduled(call.ScheduledFor), call.Route.Pickup, call.Route.Dropoff)
	batch := make([]notify.PushNotification, 0, len(tokens))
	for _, token := range tokens {
		if token == "" {
			continue
		}
		batch = append(batch, notify.PushNotification{
			Token: token,
			Title: "New call available",
			Body:  body,
			Data:  map[string]any{"call_id": call.ID, "event": event},
		})
	}
	if err := c.gateway.SendPushBatch(batch); err != nil {
		c.logger.Warn("push broadcast failed", "call_id", call.ID, "error", err)
	}
	c.logger.Info("call broadcast",
		"call_id", call.ID, "event", event, "eligible", len(eligible), "pushed", len(batch))
}

// offerToDriver delivers a pre-assigned call to its named driver only.
func (c *Coordinator) offerToDriver(driverID string, call *models.Call) {
	if connID, ok := c.presence.ConnectionID(driverID); ok {
		if err := c.gateway.SendToConnection(connID, EventNewCallAvailable, call); err == nil {
			return
		}
	}
	token, err := c.drivers.GetPushToken(driverID)
	if err != nil || token == "" {
		c.logger.Warn("cannot reach pre-assigned driver", "driver_id", driverID, "call_id", call.ID)
		return
	}
	_ = c.gateway.SendPush(notify.PushNotification{
		Token: token,
		Title: "You have a new call",
		Body:  fmt.Sprintf("%s, %s to %s", formatScheduled(call.ScheduledFor), call.Route.Pickup, call.Route.Dropoff),
		Data:  map[string]any{"call_id": call.ID, "event": EventNewCallAvailable},
	})
}

// notifyDriver prefers the live connection and falls back to push.
func (c *Coordinator) notifyDriver(driverID, event string, payload any, push notify.PushNotification) {
	if connID, ok := c.presence.ConnectionID(driverID); ok {
		if err := c.gateway.SendToConnection(connID, event, payload); err == nil {
			return
		}
	}
	token, err := c.drivers.GetPushToken(driverID)
	if err != nil || token == "" {
		return
	}
	push.Token = token
	_ = c.gateway.SendPush(push)
}

// retractFromOtherDrivers tells every connected driver except excludeID that
// the call is gone. Connection state alone decides delivery here: a driver
// with a lapsed heartbeat can still have the call on screen.
func (c *Coordinator) retractFromOtherDrivers(excludeID, event string, payload any) {
	excludeConn := ""
	if excludeID != "" {
		excludeConn, _ = c.presence.ConnectionID(excludeID)
	}
	for _, connID := range c.presence.DriverConnectionIDs() {
		if connID == excludeConn {
			continue
		}
		_ = c.gateway.SendToConnection(connID, event, payload)
	}
}

// formatScheduled renders a scheduled time for notification bodies.
func formatScheduled(t time.Time) string {
	now := time.Now()
	switch t.YearDay() - now.YearDay() {
	case 0:
		if t.Year() == now.Year() {
			return "today " + t.Format("3:04 PM")
		}
	case 1:
		if t.Year() == now.Year() {
			return "tomorrow " + t.Format("3:04 PM")
		}
	}
	return t.Format("Mon Jan 2 3:04 PM")
}

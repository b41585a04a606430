// Package presence tracks which drivers and dispatchers are live.
//
// Two notions are kept deliberately separate:
//
//   - a connection mapping (driver id -> websocket connection id), used for
//     real-time delivery. Mobile clients drop and resume transports all the
//     time, so losing a connection says nothing about availability;
//   - a heartbeat entry, refreshed by the client every ~30s. Only a fresh
//     heartbeat makes a driver eligible for new work.
//
// Dispatchers use the web app and get no such grace: their presence is
// exactly their connection.
package presence

import (
	"log/slog"
	"sync"
	"time"

	"github.com/noachFrank/CarServiceServer/internal/observability"
)

// DriverStatusSink receives active/inactive transitions so the durable
// driver record tracks what presence observes.
type DriverStatusSink interface {
	SetActiveStatus(driverID string, active bool) error
}

// Registry is the process-wide presence store. All maps are guarded by one
// RWMutex; every inbound client operation mutates it concurrently.
type Registry struct {
	mu              sync.RWMutex
	driverConns     map[string]string // driver id -> connection id
	dispatcherConns map[string]string // dispatcher id -> connection id
	heartbeats      map[string]time.Time

	timeout time.Duration
	now     func() time.Time

	sink   DriverStatusSink
	logger *slog.Logger
}

func NewRegistry(timeout time.Duration, sink DriverStatusSink, logger *slog.Logger) *Registry {
	return &Registry{
		driverConns:     make(map[string]string),
		dispatcherConns: make(map[string]string),
		heartbeats:      make(map[string]time.Time),
		timeout:         timeout,
		now:             time.Now,
		sink:            sink,
		logger:          logger,
	}
}

// SetClock overrides the time source. Test hook.
func (r *Registry) SetClock(now func() time.Time) { r.now = now }

// RegisterDriver records the driver's connection and starts heartbeat
// tracking. Idempotent: re-registering just refreshes both entries.
func (r *Registry) RegisterDriver(driverID, connectionID string) {
	r.touch(driverID, connectionID, "registration")
}

// Heartbeat refreshes the driver's last-seen timestamp and connection
// mapping. A heartbeat from an expired driver re-activates them.
func (r *Registry) Heartbeat(driverID, connectionID string) {
	r.touch(driverID, connectionID, "heartbeat")
}

func (r *Registry) touch(driverID, connectionID, via string) {
	r.mu.Lock()
	_, hadHeartbeat := r.heartbeats[driverID]
	r.heartbeats[driverID] = r.now()
	r.driverConns[driverID] = connectionID
	r.mu.Unlock()

	if !hadHeartbeat {
		r.logger.Info("driver became active", "driver_id", driverID, "via", via)
		if err := r.sink.SetActiveStatus(driverID, true); err != nil {
			r.logger.Error("failed to mark driver active", "driver_id", driverID, "error", err)
		}
	}
}

// UnregisterDriver removes the driver from all presence maps immediately and
// marks them inactive. Explicit sign-off, no grace window.
func (r *Registry) UnregisterDriver(driverID string) {
	r.mu.Lock()
	delete(r.driverConns, driverID)
	delete(r.heartbeats, driverID)
	r.mu.Unlock()

	r.logger.Info("driver unregistered", "driver_id", driverID)
	if err := r.sink.SetActiveStatus(driverID, false); err != nil {
		r.logger.Error("failed to mark driver inactive", "driver_id", driverID, "error", err)
	}
}

// RegisterDispatcher adds the dispatcher to the broadcast group.
func (r *Registry) RegisterDispatcher(dispatcherID, connectionID string) {
	r.mu.Lock()
	r.dispatcherConns[dispatcherID] = connectionID
	r.mu.Unlock()
	r.logger.Info("dispatcher registered", "dispatcher_id", dispatcherID, "connection_id", connectionID)
}

// OnDisconnect handles a dropped transport. For drivers only the connection
// mapping goes; the heartbeat entry stays so a brief drop (app switch, bad
// cell coverage) does not mark them unavailable. Dispatchers are removed
// outright.
func (r *Registry) OnDisconnect(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, conn := range r.driverConns {
		if conn == connectionID {
			delete(r.driverConns, id)
			r.logger.Info("driver connection dropped, heartbeat retained", "driver_id", id)
			return
		}
	}
	for id, conn := range r.dispatcherConns {
		if conn == connectionID {
			delete(r.dispatcherConns, id)
			r.logger.Info("dispatcher disconnected", "dispatcher_id", id)
			return
		}
	}
}

// IsOnline reports whether the driver has a heartbeat younger than the
// timeout. Connection state is irrelevant here.
func (r *Registry) IsOnline(driverID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hb, ok := r.heartbeats[driverID]
	return ok && r.now().Sub(hb) <= r.timeout
}

// OnlineDriverIDs returns every driver with a fresh heartbeat.
func (r *Registry) OnlineDriverIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	now := r.now()
	out := make([]string, 0, len(r.heartbeats))
	for id, hb := range r.heartbeats {
		if now.Sub(hb) <= r.timeout {
			out = append(out, id)
		}
	}
	return out
}

// ActiveDriverCount counts drivers with a fresh heartbeat.
func (r *Registry) ActiveDriverCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	now := r.now()
	n := 0
	for _, hb := range r.heartbeats {
		if now.Sub(hb) <= r.timeout {
			n++
		}
	}
	return n
}

// ConnectionID returns the driver's live connection, if any.
func (r *Registry) ConnectionID(driverID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.driverConns[driverID]
	return conn, ok
}

// DriverConnectionIDs returns every connected driver's connection id,
// regardless of heartbeat freshness. Used for retraction fan-out: a driver
// whose heartbeat lapsed can still have a stale call on screen.
func (r *Registry) DriverConnectionIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.driverConns))
	for _, conn := range r.driverConns {
		out = append(out, conn)
	}
	return out
}

// DispatcherConnectionIDs returns the dispatcher broadcast group.
func (r *Registry) DispatcherConnectionIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.dispatcherConns))
	for _, conn := range r.dispatcherConns {
		out = append(out, conn)
	}
	return out
}

// SweepExpired evicts heartbeat entries older than the timeout and marks the
// drivers inactive. Connection mappings are left alone: an expired driver can
// still receive messages, they just stop being offered new work.
func (r *Registry) SweepExpired() {
	now := r.now()

	r.mu.Lock()
	var expired []string
	active := 0
	for id, hb := range r.heartbeats {
		if now.Sub(hb) > r.timeout {
			expired = append(expired, id)
		} else {
			active++
		}
	}
	for _, id := range expired {
		delete(r.heartbeats, id)
	}
	r.mu.Unlock()

	observability.ActiveDrivers.Set(float64(active))

	for _, id := range expired {
		observability.SweepEvictions.Inc()
		r.logger.Info("driver heartbeat expired", "driver_id", id)
		if err := r.sink.SetActiveStatus(id, false); err != nil {
			r.logger.Error("failed to mark driver inactive", "driver_id", id, "error", err)
		}
	}
}

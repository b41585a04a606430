// Package tracking keeps the live driver map: the latest GPS fix per driver,
// streamed to dispatchers and mirrored to Kafka for downstream consumers.
// Fixes are process-local state; a restart simply rebuilds the map from the
// next round of updates.
package tracking

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/noachFrank/CarServiceServer/internal/models"
)

const (
	EventDriverLocationUpdated = "DriverLocationUpdated"
	EventDriverLocationRemoved = "DriverLocationRemoved"
)

// GroupSender is the slice of the notification gateway the tracker needs.
type GroupSender interface {
	SendToGroup(group, event string, payload any) error
}

// Publisher mirrors location fixes to the stream. Optional.
type Publisher interface {
	Publish(ctx context.Context, loc *models.DriverLocation) error
}

// Tracker is the process-wide location map.
type Tracker struct {
	mu        sync.RWMutex
	locations map[string]models.DriverLocation

	group     string
	gateway   GroupSender
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewTracker(group string, gateway GroupSender, publisher Publisher, logger *slog.Logger) *Tracker {
	return &Tracker{
		locations: make(map[string]models.DriverLocation),
		group:     group,
		gateway:   gateway,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Update records the driver's latest fix, streams it to the dispatcher group
// and mirrors it to Kafka. Neither delivery can fail the update.
func (t *Tracker) Update(ctx context.Context, loc models.DriverLocation) {
	loc.UpdatedAt = t.now()

	t.mu.Lock()
	t.locations[loc.DriverID] = loc
	t.mu.Unlock()

	_ = t.gateway.SendToGroup(t.group, EventDriverLocationUpdated, loc)

	if t.publisher != nil {
		if err := t.publisher.Publish(ctx, &loc); err != nil {
			t.logger.Warn("location publish failed", "driver_id", loc.DriverID, "error", err)
		}
	}
}

// Remove drops the driver from the map, typically on sign-off, and tells
// dispatchers to clear the marker.
func (t *Tracker) Remove(driverID string) {
	t.mu.Lock()
	_, had := t.locations[driverID]
	delete(t.locations, driverID)
	t.mu.Unlock()

	if had {
		_ = t.gateway.SendToGroup(t.group, EventDriverLocationRemoved, map[string]string{"driver_id": driverID})
	}
}

// Snapshot returns a copy of every known location, for dispatcher page loads.
func (t *Tracker) Snapshot() []models.DriverLocation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.DriverLocation, 0, len(t.locations))
	for _, loc := range t.locations {
		out = append(out, loc)
	}
	return out
}

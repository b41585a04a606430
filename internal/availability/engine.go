// Package availability decides whether a driver's schedule can absorb a
// candidate call.
//
// Each call occupies a time window [scheduled start, start + estimated
// duration + grace period]. The grace period scales with the estimated
// duration because long trips are less predictable. A window's end is then
// extended by the driving time between the two calls — computed in both
// directions, since we do not know which call the driver would run first.
// Two calls conflict if the extended windows overlap.
package availability

import (
	"log/slog"
	"math"
	"time"

	"github.com/noachFrank/CarServiceServer/internal/models"
	"github.com/noachFrank/CarServiceServer/internal/observability"
	"github.com/noachFrank/CarServiceServer/internal/traveltime"
)

// ActiveCallSource supplies the driver's not-yet-completed calls.
type ActiveCallSource interface {
	GetActiveCallsForDriver(driverID string) ([]*models.Call, error)
}

// Config carries the schedule-tuning knobs.
type Config struct {
	// DefaultTravelMinutes is used when the travel-time lookup fails or an
	// address is missing.
	DefaultTravelMinutes int
	// BaseGraceMinutes is the grace floor for calls at or above the long-call
	// threshold.
	BaseGraceMinutes int
	// LongCallThresholdMinutes is the duration below which no grace applies.
	LongCallThresholdMinutes int
	// ScalingEnabled adds 5 minutes of grace per 30 minutes over the
	// threshold, capped at 60 total.
	ScalingEnabled bool
}

// Engine is the schedule-compatibility checker.
type Engine struct {
	calls  ActiveCallSource
	travel traveltime.Provider
	cfg    Config
	logger *slog.Logger
}

func NewEngine(calls ActiveCallSource, travel traveltime.Provider, cfg Config, logger *slog.Logger) *Engine {
	return &Engine{calls: calls, travel: travel, cfg: cfg, logger: logger}
}

// timeWindow is derived on demand and never persisted.
type timeWindow struct {
	start        time.Time
	end          time.Time
	graceMinutes int
}

// GracePeriodMinutes returns the buffer appended to a call of the given
// estimated duration. Zero below the threshold; otherwise base + ceil(5 per
// extra half hour), capped at 60.
func (e *Engine) GracePeriodMinutes(duration time.Duration) int {
	durationMinutes := int(duration.Minutes())
	if durationMinutes < e.cfg.LongCallThresholdMinutes {
		return 0
	}
	if !e.cfg.ScalingEnabled {
		return e.cfg.BaseGraceMinutes
	}
	over := durationMinutes - e.cfg.LongCallThresholdMinutes
	additional := int(math.Ceil(float64(over) / 30.0 * 5))
	grace := e.cfg.BaseGraceMinutes + additional
	if grace > 60 {
		grace = 60
	}
	return grace
}

func (e *Engine) window(c *models.Call) timeWindow {
	grace := e.GracePeriodMinutes(c.Route.EstimatedDuration)
	end := c.ScheduledFor.Add(c.Route.EstimatedDuration).Add(time.Duration(grace) * time.Minute)
	return timeWindow{start: c.ScheduledFor, end: end, graceMinutes: grace}
}

// travelMinutes looks up driving time between two addresses, falling back to
// the configured default when either address is missing or the provider
// cannot answer.
func (e *Engine) travelMinutes(fromAddress, toAddress string) int {
	if fromAddress == "" || toAddress == "" {
		observability.TravelTimeFallbacks.Inc()
		return e.cfg.DefaultTravelMinutes
	}
	observability.TravelTimeLookups.Inc()
	minutes, err := e.travel.TravelTimeMinutes(fromAddress, toAddress)
	if err != nil || minutes <= 0 {
		if err != nil {
			e.logger.Warn("travel time lookup failed, using default",
				"from", fromAddress, "to", toAddress, "error", err)
		}
		observability.TravelTimeFallbacks.Inc()
		return e.cfg.DefaultTravelMinutes
	}
	return minutes
}

// IsAvailable reports whether the driver can take the candidate call without
// conflicting with any of their active calls.
func (e *Engine) IsAvailable(driverID string, candidate *models.Call) (bool, error) {
	active, err := e.calls.GetActiveCallsForDriver(driverID)
	if err != nil {
		return false, err
	}
	if len(active) == 0 {
		return true, nil
	}

	candidateWindow := e.window(candidate)

	for _, activeCall := range active {
		if activeCall.DropoffTime != nil {
			continue
		}
		// Calls more than two days apart cannot conflict; skip the travel
		// lookup entirely.
		dayGap := activeCall.ScheduledFor.Truncate(24 * time.Hour).Sub(candidate.ScheduledFor.Truncate(24 * time.Hour))
		if dayGap < 0 {
			dayGap = -dayGap
		}
		if dayGap > 48*time.Hour {
			continue
		}

		activeWindow := e.window(activeCall)

		// Travel time in both directions: we do not know which ride the
		// driver would run first that day.
		travelToCandidate := e.travelMinutes(activeCall.Route.Dropoff, candidate.Route.Pickup)
		travelToActive := e.travelMinutes(candidate.Route.Dropoff, activeCall.Route.Pickup)

		activeEffectiveEnd := activeWindow.end.Add(time.Duration(travelToCandidate) * time.Minute)
		candidateEffectiveEnd := candidateWindow.end.Add(time.Duration(travelToActive) * time.Minute)

		// Overlap: StartA < EndB and StartB < EndA, strict on both sides.
		if candidateWindow.start.Before(activeEffectiveEnd) && activeWindow.start.Before(candidateEffectiveEnd) {
			e.logger.Debug("schedule conflict",
				"driver_id", driverID, "candidate_id", candidate.ID, "active_id", activeCall.ID)
			return false, nil
		}
	}
	return true, nil
}

// FilterAvailable narrows a driver list to those without schedule conflicts.
// A store error for one driver fails the whole filter; the caller decides
// whether to proceed with a partial set.
func (e *Engine) FilterAvailable(drivers []*models.Driver, candidate *models.Call) ([]*models.Driver, error) {
	out := make([]*models.Driver, 0, len(drivers))
	for _, d := range drivers {
		ok, err := e.IsAvailable(d.ID, candidate)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}

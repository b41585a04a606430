package presence

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper runs the periodic heartbeat sweep. Exactly one sweep runs per
// process no matter how many components hold a reference: Start is
// once-guarded and the process owns the lifecycle.
type Sweeper struct {
	registry *Registry
	interval time.Duration
	logger   *slog.Logger

	startOnce sync.Once
	cron      *cron.Cron
}

func NewSweeper(registry *Registry, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{registry: registry, interval: interval, logger: logger}
}

// Start schedules the sweep. Subsequent calls are no-ops.
func (s *Sweeper) Start() error {
	var err error
	s.startOnce.Do(func() {
		s.cron = cron.New()
		_, err = s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), s.registry.SweepExpired)
		if err != nil {
			return
		}
		s.cron.Start()
		s.logger.Info("heartbeat sweep started", "interval", s.interval.String())
	})
	return err
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.logger.Info("heartbeat sweep stopped")
	}
}

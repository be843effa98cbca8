package project

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Monitor periodically applies the inactivity auto-pause policy to every
// playing project. It reuses the same service the request handlers use,
// so a sweep and an explicit pause follow identical transition rules.
type Monitor struct {
	svc  *Service
	cron *cron.Cron
}

func NewMonitor(svc *Service, interval time.Duration) *Monitor {
	m := &Monitor{svc: svc, cron: cron.New()}
	_, err := m.cron.AddFunc("@every "+interval.String(), func() {
		m.Sweep(context.Background())
	})
	if err != nil {
		log.Printf("auto-pause schedule failed: %v", err)
	}
	return m
}

func (m *Monitor) Start() {
	m.cron.Start()
}

// Stop cancels the schedule and returns a context that is done once any
// in-flight sweep has finished.
func (m *Monitor) Stop() context.Context {
	return m.cron.Stop()
}

// Sweep pauses every stale playing project, banking its elapsed time.
// A failure on one project does not abort the rest, and re-running the
// sweep is harmless: already-paused projects are skipped inside AutoPause.
func (m *Monitor) Sweep(ctx context.Context) int {
	ids, err := m.svc.StaleCandidates(ctx)
	if err != nil {
		log.Printf("auto-pause sweep query failed: %v", err)
		return 0
	}

	paused := 0
	for _, id := range ids {
		banked, err := m.svc.AutoPause(ctx, id)
		if err != nil {
			log.Printf("auto-pause of project %s failed: %v", id, err)
			continue
		}
		if banked {
			log.Printf("auto-paused project %s after inactivity", id)
			paused++
		}
	}
	return paused
}

package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/qzeleza/chargerman/internal/config"
	"github.com/qzeleza/chargerman/internal/notify"
)

// Run drives the cooperative tick loop: a ticker at the configured
// poll interval, an optional config-update channel for hot-reloaded
// tuning, and an event channel, all selected in one goroutine per
// spec.md §5. It returns when ctx is cancelled.
func (m *Monitor) Run(ctx context.Context, configUpdates <-chan *config.Description, events <-chan EventRequest) error {
	interval := time.Duration(m.cfg.Tuning.PollIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = 15 * time.Second
	}

	if m.cfg.Polling == config.PollDisabled {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.log.Info(fmt.Sprintf("monitor[%s]: starting run loop, poll interval %s", m.id, interval))

	for {
		select {
		case <-ctx.Done():
			m.log.Info(fmt.Sprintf("monitor[%s]: run loop stopping", m.id))
			return ctx.Err()

		case <-ticker.C:
			if !m.shouldPollNow() {
				continue
			}
			if err := m.Tick(time.Now()); err != nil {
				m.log.Error(fmt.Sprintf("monitor[%s]: tick failed: %v", m.id, err))
			}

		case cfg, ok := <-configUpdates:
			if !ok {
				configUpdates = nil
				continue
			}
			m.applyConfigUpdate(cfg)
			newInterval := time.Duration(cfg.Tuning.PollIntervalMS) * time.Millisecond
			if newInterval > 0 && newInterval != interval {
				interval = newInterval
				ticker.Reset(interval)
			}

		case req, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			m.OnEvent(req.Kind, req.Text)
		}
	}
}

// EventRequest is what callers post onto the events channel consumed
// by Run.
type EventRequest struct {
	Kind notify.Kind
	Text string
}

func (m *Monitor) shouldPollNow() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.cfg.Polling {
	case config.PollOnlyWhenAC:
		return m.state.ChargerType != int(config.ChargerUnknown) || m.state.ChargerEnabled
	case config.PollOnlyWhenCharging:
		return m.state.ChargerEnabled
	default:
		return true
	}
}

// applyConfigUpdate swaps in a hot-reloaded Description's mutable
// Tuning fields; the immutable thresholds are left as configured at
// construction time per spec.md §3 ("immutable afterwards").
func (m *Monitor) applyConfigUpdate(cfg *config.Description) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.Tuning = cfg.Tuning
	m.log.Info(fmt.Sprintf("monitor[%s]: tuning reloaded: poll=%dms level=%s", m.id, cfg.Tuning.PollIntervalMS, cfg.Tuning.LogLevel))
	m.log.SetLevel(cfg.Tuning.LogLevel)
}

package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"meshbot/internal/dispatch"
)

const servicePollInterval = 30 * time.Second

// ServiceSupervisor polls every registered background service plugin and
// restarts any that report unhealthy, with an independent backoff timer per
// service so one flapping service never blocks the others (spec.md §4.9).
type ServiceSupervisor struct {
	services []dispatch.Service
	backoff  time.Duration
	log      *slog.Logger

	mu           sync.Mutex
	nextRestart  map[string]time.Time
}

func NewServiceSupervisor(services []dispatch.Service, backoff time.Duration, log *slog.Logger) *ServiceSupervisor {
	if log == nil {
		log = slog.Default()
	}
	if backoff <= 0 {
		backoff = 300 * time.Second
	}
	return &ServiceSupervisor{
		services:    services,
		backoff:     backoff,
		log:         log,
		nextRestart: make(map[string]time.Time),
	}
}

// Run starts every service, then polls health every 30s until ctx is
// cancelled, restarting unhealthy services concurrently and non-blockingly.
func (s *ServiceSupervisor) Run(ctx context.Context) {
	for _, svc := range s.services {
		if err := svc.Start(ctx); err != nil {
			s.log.Warn("service failed to start", "service", svc.Name(), "error", err)
		}
	}

	ticker := time.NewTicker(servicePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.stopAll()
			return
		case <-ticker.C:
			s.checkAll(ctx)
		}
	}
}

func (s *ServiceSupervisor) checkAll(ctx context.Context) {
	now := time.Now()
	for _, svc := range s.services {
		if svc.IsHealthy() {
			continue
		}
		s.mu.Lock()
		due := s.nextRestart[svc.Name()]
		ready := due.IsZero() || !now.Before(due)
		if ready {
			s.nextRestart[svc.Name()] = now.Add(s.backoff)
		}
		s.mu.Unlock()
		if !ready {
			continue
		}
		go s.restart(ctx, svc)
	}
}

func (s *ServiceSupervisor) restart(ctx context.Context, svc dispatch.Service) {
	s.log.Warn("restarting unhealthy service", "service", svc.Name())
	stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := svc.Stop(stopCtx); err != nil {
		s.log.Warn("service stop failed during restart", "service", svc.Name(), "error", err)
	}
	if err := svc.Start(ctx); err != nil {
		s.log.Warn("service restart failed", "service", svc.Name(), "error", err)
	}
}

func (s *ServiceSupervisor) stopAll() {
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, svc := range s.services {
		if err := svc.Stop(stopCtx); err != nil {
			s.log.Warn("service stop failed during shutdown", "service", svc.Name(), "error", err)
		}
	}
}

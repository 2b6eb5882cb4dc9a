package sweeper

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Cleaner deactivates grants whose expiry has passed
type Cleaner interface {
	CleanupExpiredPermissions(ctx context.Context) (int, error)
}

// SweepObserver is told about every successful sweep
type SweepObserver interface {
	RecordSweep(expired int, at time.Time)
}

// Sweeper runs the expiry cleanup on a fixed interval
type Sweeper struct {
	cleaner  Cleaner
	observer SweepObserver
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	failureLog rate.Sometimes

	runs     *prometheus.CounterVec
	expired  prometheus.Counter
	duration prometheus.Histogram
}

// New creates a sweeper. observer may be nil. Collectors are registered on reg.
func New(cleaner Cleaner, observer SweepObserver, interval time.Duration, reg prometheus.Registerer, logger *zap.Logger) *Sweeper {
	factory := promauto.With(reg)
	return &Sweeper{
		cleaner:    cleaner,
		observer:   observer,
		interval:   interval,
		logger:     logger,
		now:        time.Now,
		failureLog: rate.Sometimes{First: 1, Interval: 10 * time.Minute},
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "accessd",
			Subsystem: "sweeper",
			Name:      "runs_total",
			Help:      "Expiry sweeps by result.",
		}, []string{"result"}),
		expired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "accessd",
			Subsystem: "sweeper",
			Name:      "expired_permissions_total",
			Help:      "Grants deactivated by expiry sweeps.",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "accessd",
			Subsystem: "sweeper",
			Name:      "duration_seconds",
			Help:      "Time spent in one expiry sweep.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Run sweeps once immediately and then every interval until ctx is done
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("expiry sweeper started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.SweepOnce(ctx)
	for {
		select {
		case <-ticker.C:
			s.SweepOnce(ctx)
		case <-ctx.Done():
			s.logger.Info("expiry sweeper stopped")
			return
		}
	}
}

// SweepOnce runs a single cleanup and records its outcome
func (s *Sweeper) SweepOnce(ctx context.Context) {
	start := s.now()
	expired, err := s.cleaner.CleanupExpiredPermissions(ctx)
	s.duration.Observe(s.now().Sub(start).Seconds())

	if err != nil {
		s.runs.WithLabelValues("error").Inc()
		// a persistently unavailable store would otherwise log every tick
		s.failureLog.Do(func() {
			s.logger.Warn("expiry sweep failed", zap.Error(err))
		})
		return
	}

	s.runs.WithLabelValues("ok").Inc()
	s.expired.Add(float64(expired))
	if s.observer != nil {
		s.observer.RecordSweep(expired, start)
	}
	if expired > 0 {
		s.logger.Info("expired permissions deactivated", zap.Int("count", expired))
	}
}

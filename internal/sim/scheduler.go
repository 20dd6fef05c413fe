package sim

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"cop-sim/internal/cop"
	"cop-sim/internal/metrics"
)

// Routine names, also used as metric labels.
const (
	RoutineUnitDrift       = "unit-drift"
	RoutineSpectrumRefresh = "spectrum-refresh"
	RoutineIncidentSpawn   = "incident-spawn"
)

// Intervals configures how often each routine fires.
type Intervals struct {
	UnitDrift       time.Duration
	SpectrumRefresh time.Duration
	IncidentSpawn   time.Duration
}

// DefaultIntervals are the periods of the three routines.
var DefaultIntervals = Intervals{
	UnitDrift:       7 * time.Second,
	SpectrumRefresh: 8 * time.Second,
	IncidentSpawn:   30 * time.Second,
}

// Routine is a supervised service running fn repeatedly, waiting interval
// between firings, until its context is cancelled. A firing in progress
// always completes.
type Routine struct {
	name     string
	interval time.Duration
	fn       func()
}

// NewRoutine creates a routine.
func NewRoutine(name string, interval time.Duration, fn func()) *Routine {
	return &Routine{name: name, interval: interval, fn: fn}
}

// Serve implements suture.Service. The interval is measured from the end
// of one firing to the start of the next.
func (r *Routine) Serve(ctx context.Context) error {
	timer := time.NewTimer(r.interval)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			r.fn()
			timer.Reset(r.interval)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (r *Routine) String() string { return r.name }

// Interval reports the firing period.
func (r *Routine) Interval() time.Duration { return r.interval }

// Scheduler drives the store's three tick routines and publishes each
// result to the feed. Extra services (HTTP server, stream hub) can be added
// so the whole process runs under one supervisor.
type Scheduler struct {
	store    *cop.Store
	feed     FeedWriter
	logger   *slog.Logger
	sup      *suture.Supervisor
	routines []*Routine
}

// NewScheduler builds the supervisor with one routine per tick. Zero
// intervals fall back to DefaultIntervals.
func NewScheduler(store *cop.Store, feed FeedWriter, iv Intervals, logger *slog.Logger) *Scheduler {
	if feed == nil {
		feed = NopWriter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if iv.UnitDrift <= 0 {
		iv.UnitDrift = DefaultIntervals.UnitDrift
	}
	if iv.SpectrumRefresh <= 0 {
		iv.SpectrumRefresh = DefaultIntervals.SpectrumRefresh
	}
	if iv.IncidentSpawn <= 0 {
		iv.IncidentSpawn = DefaultIntervals.IncidentSpawn
	}

	handler := &sutureslog.Handler{Logger: logger}
	sup := suture.New("cop-sim", suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})

	s := &Scheduler{store: store, feed: feed, logger: logger, sup: sup}
	s.routines = []*Routine{
		NewRoutine(RoutineUnitDrift, iv.UnitDrift, s.DriftUnits),
		NewRoutine(RoutineSpectrumRefresh, iv.SpectrumRefresh, s.RefreshSpectrum),
		NewRoutine(RoutineIncidentSpawn, iv.IncidentSpawn, s.SpawnIncident),
	}
	for _, r := range s.routines {
		sup.Add(r)
	}
	return s
}

// Add supervises an extra service alongside the routines.
func (s *Scheduler) Add(svc suture.Service) suture.ServiceToken {
	return s.sup.Add(svc)
}

// Routines returns the tick routines.
func (s *Scheduler) Routines() []*Routine { return s.routines }

// Serve runs every supervised service until ctx is cancelled.
func (s *Scheduler) Serve(ctx context.Context) error {
	s.logger.Info("scheduler starting",
		RoutineUnitDrift, s.routines[0].interval,
		RoutineSpectrumRefresh, s.routines[1].interval,
		RoutineIncidentSpawn, s.routines[2].interval)
	err := s.sup.Serve(ctx)
	s.reportUnstopped()
	s.logger.Info("scheduler stopped")
	return err
}

// reportUnstopped warns about services that outlived the stop timeout.
func (s *Scheduler) reportUnstopped() {
	unstopped, err := s.sup.UnstoppedServiceReport()
	if err != nil {
		s.logger.Debug("unstopped service report unavailable", "err", err)
		return
	}
	for _, svc := range unstopped {
		s.logger.Warn("service failed to stop", "service", svc.Name)
	}
}

// ServeBackground runs the supervisor in its own goroutine.
func (s *Scheduler) ServeBackground(ctx context.Context) <-chan error {
	return s.sup.ServeBackground(ctx)
}

// DriftUnits runs one unit-drift firing.
func (s *Scheduler) DriftUnits() {
	start := time.Now()
	units := s.store.TickUnitPositions()
	s.write(KindUnits, s.feed.WriteUnits(units))
	metrics.RecordTick(RoutineUnitDrift, time.Since(start))
	s.logger.Debug("units drifted", "count", len(units))
}

// RefreshSpectrum runs one spectrum-refresh firing.
func (s *Scheduler) RefreshSpectrum() {
	start := time.Now()
	readings := s.store.TickSpectrumRefresh()
	s.write(KindSpectrum, s.feed.WriteSpectrum(readings))
	metrics.RecordTick(RoutineSpectrumRefresh, time.Since(start))
	s.logger.Debug("spectrum refreshed", "count", len(readings))
}

// SpawnIncident runs one incident-spawn firing.
func (s *Scheduler) SpawnIncident() {
	start := time.Now()
	inc := s.store.TickIncidentSpawn()
	s.write(KindIncident, s.feed.WriteIncident(inc))
	metrics.RecordTick(RoutineIncidentSpawn, time.Since(start))
	metrics.RecordIncident(string(inc.Type), inc.Severity)
	s.logger.Info("incident spawned", "id", inc.ID, "type", inc.Type, "severity", inc.Severity)
}

// write logs a failed feed write. Feed errors never stop a routine.
func (s *Scheduler) write(kind Kind, err error) {
	if err == nil {
		return
	}
	metrics.FeedWriteErrors.WithLabelValues(string(kind)).Inc()
	s.logger.Warn("feed write failed", "kind", kind, "err", err)
}

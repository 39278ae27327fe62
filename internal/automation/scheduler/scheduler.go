package scheduler

import (
	"context"
	"fmt"
	"sync"

	"inboxflow/pkg/logger"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultSpec runs a scan every five seconds
const DefaultSpec = "*/5 * * * * *"

// Scanner runs one scan over every active automation
type Scanner interface {
	EvaluateAll(ctx context.Context) error
}

// Locker is a cross-process lock taken around each tick
type Locker interface {
	Acquire(ctx context.Context) (release func(context.Context) error, ok bool, err error)
}

// Scheduler triggers periodic scans. Overlapping ticks in one process are
// skipped, and when a Locker is set only one process scans at a time.
type Scheduler struct {
	scanner  Scanner
	lock     Locker
	schedule cron.Schedule
	spec     string
	logger   zerolog.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithLock makes every tick take l first
func WithLock(l Locker) Option {
	return func(s *Scheduler) { s.lock = l }
}

// New parses spec, a six field cron expression with seconds
func New(scanner Scanner, spec string, log zerolog.Logger, opts ...Option) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSpec
	}
	schedule, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor).Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	s := &Scheduler{
		scanner:  scanner,
		schedule: schedule,
		spec:     spec,
		logger:   logger.Component(log, "scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start begins ticking in the background. The first tick runs immediately.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	cronLog := cronLogger{logger: s.logger}
	job := cron.NewChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)).Then(cron.FuncJob(func() {
		if err := s.Tick(ctx); err != nil {
			s.logger.Error().Err(err).Msg("tick failed")
		}
	}))

	c := cron.New(cron.WithLogger(cronLog))
	c.Schedule(s.schedule, job)
	c.Start()

	s.cron = c
	s.cancel = cancel
	s.logger.Info().Str("schedule", s.spec).Bool("locked", s.lock != nil).Msg("scheduler started")

	go job.Run()
}

// Stop cancels the running tick and waits for it to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()
	if c == nil {
		return
	}

	cancel()
	<-c.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

// Tick runs one scan, unless another process holds the tick lock.
// An unreachable lock backend does not block the scan.
func (s *Scheduler) Tick(ctx context.Context) error {
	if s.lock != nil {
		release, ok, err := s.lock.Acquire(ctx)
		switch {
		case err != nil:
			s.logger.Warn().Err(err).Msg("tick lock unavailable, scanning without it")
		case !ok:
			s.logger.Debug().Msg("tick lock held elsewhere, skipping")
			return nil
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					s.logger.Warn().Err(err).Msg("failed to release tick lock")
				}
			}()
		}
	}

	return s.scanner.EvaluateAll(ctx)
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

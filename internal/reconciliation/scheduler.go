package reconciliation

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/custody-core/internal/models"
)

// Cron specs in UTC.
const (
	DailySpec   = "5 0 * * *"
	WeeklySpec  = "10 0 * * 1"
	MonthlySpec = "15 0 1 * *"
)

// Scheduler triggers the periodic runs.
type Scheduler struct {
	cron    *cron.Cron
	engine  *Engine
	logger  *zap.Logger
	timeout time.Duration
}

// NewScheduler creates a stopped scheduler; call Start to register the jobs.
func NewScheduler(engine *Engine, logger *zap.Logger, timeout time.Duration) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		engine:  engine,
		logger:  logger.Named("scheduler"),
		timeout: timeout,
	}
}

// Start registers the daily, weekly and monthly jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	jobs := []struct {
		spec   string
		period models.Period
		run    func(ctx context.Context) error
	}{
		{DailySpec, models.PeriodDaily, func(ctx context.Context) error {
			_, err := s.engine.RunDaily(ctx, nil)
			return err
		}},
		{WeeklySpec, models.PeriodWeekly, func(ctx context.Context) error {
			_, err := s.engine.RunWeekly(ctx, nil)
			return err
		}},
		{MonthlySpec, models.PeriodMonthly, func(ctx context.Context) error {
			_, err := s.engine.RunMonthly(ctx, 0, 0)
			return err
		}},
	}

	for _, j := range jobs {
		j := j
		if _, err := s.cron.AddFunc(j.spec, func() { s.runJob(j.period, j.run) }); err != nil {
			return err
		}
	}
	s.cron.Start()
	s.logger.Info("reconciliation scheduler started",
		zap.String("daily", DailySpec),
		zap.String("weekly", WeeklySpec),
		zap.String("monthly", MonthlySpec))
	return nil
}

func (s *Scheduler) runJob(period models.Period, run func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.logger.Info("scheduled reconciliation triggered", zap.String("period", string(period)))
	if err := run(ctx); err != nil {
		s.logger.Error("scheduled reconciliation failed", zap.String("period", string(period)), zap.Error(err))
	}
}

// Stop stops scheduling and waits for a running job to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	s.logger.Info("stopping reconciliation scheduler")
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("reconciliation job still running at shutdown")
	}
}

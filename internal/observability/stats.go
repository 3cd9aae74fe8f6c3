package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/franciscosanchezn/gin-forms-api/internal/models"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
}

// StatsCollector refreshes the business gauges and runs housekeeping jobs
// on a cron schedule
type StatsCollector struct {
	db      *gorm.DB
	metrics *Metrics
	cron    *cron.Cron
}

func NewStatsCollector(db *gorm.DB, metrics *Metrics) *StatsCollector {
	return &StatsCollector{
		db:      db,
		metrics: metrics,
		cron:    cron.New(),
	}
}

// Refresh counts users, templates and forms into the gauges
func (s *StatsCollector) Refresh(ctx context.Context) error {
	counts := []struct {
		model interface{}
		gauge interface{ Set(float64) }
	}{
		{&models.User{}, s.metrics.UsersTotal},
		{&models.Template{}, s.metrics.TemplatesTotal},
		{&models.Form{}, s.metrics.FormsTotal},
	}

	for _, c := range counts {
		var n int64
		if err := s.db.WithContext(ctx).Model(c.model).Count(&n).Error; err != nil {
			return fmt.Errorf("counting rows: %w", err)
		}
		c.gauge.Set(float64(n))
	}
	return nil
}

// AddJob schedules fn with a timeout of one minute per run
func (s *StatsCollector) AddJob(schedule, name string, fn func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.WithError(err).WithField("job", name).Error("Scheduled job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling %s with %q: %w", name, schedule, err)
	}
	return nil
}

// Start refreshes once, registers the refresh on schedule and starts the
// scheduler. Jobs added earlier with AddJob run on the same scheduler.
func (s *StatsCollector) Start(ctx context.Context, schedule string) error {
	if err := s.Refresh(ctx); err != nil {
		log.WithError(err).Warn("Initial stats refresh failed")
	}
	if err := s.AddJob(schedule, "stats_refresh", s.Refresh); err != nil {
		return err
	}
	s.cron.Start()
	log.WithField("schedule", schedule).Info("Stats collector started")
	return nil
}

// Stop halts the scheduler and waits for running jobs until ctx is done
func (s *StatsCollector) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// Package jobs runs periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// FlashSaleExpirer clears sales whose end time has passed.
type FlashSaleExpirer interface {
	ExpireFlashSales(ctx context.Context) (int64, error)
}

type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC), cron.WithParser(cronParser)),
		logger:  logger,
		timeout: 30 * time.Second,
	}
}

// AddFlashSaleExpiry registers the expiry sweep under spec, e.g. "@every 1m".
func (s *Scheduler) AddFlashSaleExpiry(spec string, expirer FlashSaleExpirer) error {
	_, err := s.cron.AddFunc(spec, func() { s.expireFlashSales(expirer) })
	if err != nil {
		return fmt.Errorf("schedule flash sale expiry %q: %w", spec, err)
	}
	return nil
}

func (s *Scheduler) expireFlashSales(expirer FlashSaleExpirer) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := expirer.ExpireFlashSales(ctx)
	if err != nil {
		s.logger.Error("expire flash sales", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("expired flash sales", zap.Int64("products", n))
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

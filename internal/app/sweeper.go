package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultSweepInterval = 30 * time.Second

// Sweeper periodically expires due holds and offers so freed slots do not
// depend on a client happening to query at the right moment.
type Sweeper struct {
	holds    *HoldService
	waitlist *WaitlistService
	interval time.Duration
	log      logrus.FieldLogger
}

func NewSweeper(holds *HoldService, waitlist *WaitlistService, interval time.Duration, log logrus.FieldLogger) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Sweeper{
		holds:    holds,
		waitlist: waitlist,
		interval: interval,
		log:      log,
	}
}

// Run blocks until ctx is cancelled, sweeping once per tick. A failed pass
// is retried on the next tick: a hold that is never swept is a latent
// double-booking, so sweeping twice beats missing one.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.WithField("interval", s.interval).Info("expiry sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs a single expiry pass over holds and outstanding offers.
func (s *Sweeper) Sweep(ctx context.Context) {
	holds, err := s.holds.ExpireDue(ctx)
	if err != nil {
		s.log.WithError(err).Error("hold expiry sweep failed")
	}
	offers, err := s.waitlist.ExpireDueOffers(ctx)
	if err != nil {
		s.log.WithError(err).Error("offer expiry sweep failed")
	}
	if holds > 0 || offers > 0 {
		s.log.WithFields(logrus.Fields{"holds": holds, "offers": offers}).Info("expired stale records")
	}
}

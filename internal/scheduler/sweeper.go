package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/kmills/fitbattle-backend/internal/config"
	"github.com/kmills/fitbattle-backend/internal/service"
)

// Sweeper runs the time-driven side of the battle lifecycle: completing
// active battles whose end date has passed and expiring invites nobody
// accepted. Everything else is handled at save time by the service.
type Sweeper struct {
	battles *service.BattleService
	cfg     *config.Config
	sched   gocron.Scheduler
}

func NewSweeper(battles *service.BattleService, cfg *config.Config) (*Sweeper, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Sweeper{battles: battles, cfg: cfg, sched: sched}, nil
}

func (s *Sweeper) Start() error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(s.cfg.SweepInterval),
		gocron.NewTask(s.sweep),
	)
	if err != nil {
		return err
	}
	s.sched.Start()
	log.Printf("[scheduler] battle lifecycle sweeper started (every %s)", s.cfg.SweepInterval)
	return nil
}

func (s *Sweeper) Stop() error {
	return s.sched.Shutdown()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if n, err := s.battles.AutoCompleteEnded(ctx); err != nil {
		log.Printf("ERROR [scheduler] auto-complete sweep failed: %v", err)
	} else if n > 0 {
		log.Printf("[scheduler] auto-completed %d battles", n)
	}

	if n, err := s.battles.ExpireStaleInvites(ctx, s.cfg.InviteTTL); err != nil {
		log.Printf("ERROR [scheduler] invite expiry sweep failed: %v", err)
	} else if n > 0 {
		log.Printf("[scheduler] expired %d unaccepted battle invites", n)
	}
}

package reservation

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Sweeper removes abandoned reservations on two cadences: expired HOLD
// slots on a short interval, and appointments stuck at PENDING beyond a
// grace age on a long one. It is the only writer that deletes holds, it
// is idempotent, and it tolerates racing confirms.
type Sweeper struct {
	repo           Repository
	log            *zap.Logger
	reaperInterval time.Duration
	staleInterval  time.Duration
	staleAge       time.Duration
	now            func() time.Time
}

func NewSweeper(repo Repository, log *zap.Logger, reaperInterval, staleInterval, staleAge time.Duration) *Sweeper {
	return &Sweeper{
		repo:           repo,
		log:            log,
		reaperInterval: reaperInterval,
		staleInterval:  staleInterval,
		staleAge:       staleAge,
		now:            time.Now,
	}
}

// Run blocks until ctx is cancelled, sweeping on both cadences. Each
// cadence runs once immediately at startup.
func (sw *Sweeper) Run(ctx context.Context) {
	sw.runExpired(ctx)
	sw.runStale(ctx)

	reaper := time.NewTicker(sw.reaperInterval)
	defer reaper.Stop()
	stale := time.NewTicker(sw.staleInterval)
	defer stale.Stop()

	for {
		select {
		case <-ctx.Done():
			sw.log.Info("sweeper stopping")
			return
		case <-reaper.C:
			sw.runExpired(ctx)
		case <-stale.C:
			sw.runStale(ctx)
		}
	}
}

func (sw *Sweeper) runExpired(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := sw.SweepExpiredHolds(runCtx)
	if err != nil {
		sw.log.Error("expired hold sweep failed", zap.Error(err))
		return
	}
	sw.log.Info("expired hold sweep complete",
		zap.Int("removed", n),
		zap.Duration("took", time.Since(start)),
	)
}

func (sw *Sweeper) runStale(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := sw.SweepStalePending(runCtx)
	if err != nil {
		sw.log.Error("stale pending sweep failed", zap.Error(err))
		return
	}
	sw.log.Info("stale pending sweep complete",
		zap.Int("removed", n),
		zap.Duration("took", time.Since(start)),
	)
}

// SweepExpiredHolds deletes HOLD slots whose expiry has passed. A slot
// whose appointment is still PENDING goes together with the appointment;
// an orphaned slot goes alone. Per-row errors are logged and skipped so
// one bad row never stalls the sweep.
func (sw *Sweeper) SweepExpiredHolds(ctx context.Context) (int, error) {
	slots, err := sw.repo.FindExpiredHoldSlots(ctx, sw.now())
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, slot := range slots {
		appt, err := sw.repo.GetAppointmentBySlot(ctx, slot.ID)
		switch {
		case errors.Is(err, ErrAppointmentNotFound):
			if err := sw.repo.DeleteHoldSlot(ctx, slot.ID); err != nil {
				sw.log.Warn("delete orphaned hold slot failed",
					zap.String("slot_id", slot.ID.String()), zap.Error(err))
				continue
			}
			removed++
		case err != nil:
			sw.log.Warn("load appointment for expired hold failed",
				zap.String("slot_id", slot.ID.String()), zap.Error(err))
		case appt.Status == StatusPending:
			if err := sw.repo.DeleteAppointmentCascade(ctx, appt.ID); err != nil {
				sw.log.Warn("delete expired hold failed",
					zap.String("appointment_id", appt.ID.String()), zap.Error(err))
				continue
			}
			removed++
		default:
			// a confirm won the race between our read and the expiry
			// cutoff; leave the row to its new state
		}
	}

	return removed, nil
}

// SweepStalePending deletes appointments stuck at PENDING longer than the
// stale age, hold record or not. Defense against inconsistent state.
func (sw *Sweeper) SweepStalePending(ctx context.Context) (int, error) {
	cutoff := sw.now().Add(-sw.staleAge)

	appts, err := sw.repo.FindStalePending(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, appt := range appts {
		if err := sw.repo.DeleteAppointmentCascade(ctx, appt.ID); err != nil {
			sw.log.Warn("delete stale pending failed",
				zap.String("appointment_id", appt.ID.String()), zap.Error(err))
			continue
		}
		removed++
	}

	return removed, nil
}

package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"reflectcall-platform/internal/attempt"
	"reflectcall-platform/internal/audit"
	"reflectcall-platform/internal/schedule"
)

// Planner creates and enqueues scheduled attempts when a user's call window
// opens. Retries after a failed dial are owned by the dispatcher's retry
// policy; the planner only ever enqueues fresh attempts (attempt count 0),
// which keeps it from re-dialing a call that is already in flight.
type Planner struct {
	resolver  *schedule.Resolver
	attempts  *attempt.Service
	directory Directory
	audit     *audit.Service
	log       *slog.Logger

	clock func() time.Time
}

func NewPlanner(resolver *schedule.Resolver, attempts *attempt.Service, directory Directory, auditSvc *audit.Service, log *slog.Logger) *Planner {
	if log == nil {
		log = slog.Default()
	}
	return &Planner{resolver: resolver, attempts: attempts, directory: directory, audit: auditSvc, log: log, clock: time.Now}
}

// PlanOnce walks all profiles and enqueues an attempt for every user whose
// window contains the current local time. Safe to call on every tick: the
// per-(user, date) uniqueness of attempts makes repeat planning a no-op.
func (p *Planner) PlanOnce(ctx context.Context) error {
	profiles, err := p.directory.ListProfiles(ctx)
	if err != nil {
		return err
	}
	now := p.clock()

	for _, prof := range profiles {
		loc := time.UTC
		if prof.Timezone != "" {
			l, err := time.LoadLocation(prof.Timezone)
			if err != nil {
				p.log.Warn("bad timezone, falling back to UTC", "user_id", prof.UserID, "tz", prof.Timezone)
			} else {
				loc = l
			}
		}
		local := now.In(loc)
		date := local.Format("2006-01-02")

		windows, _, err := p.resolver.Resolve(ctx, prof.UserID, date, loc)
		if err != nil {
			if !errors.Is(err, schedule.ErrNotFound) {
				p.log.Error("window resolution failed", "user_id", prof.UserID, "err", err)
			}
			continue
		}
		open := false
		for _, w := range windows {
			if w.Contains(local) {
				open = true
				break
			}
		}
		if !open {
			continue
		}

		if err := p.planUser(ctx, prof.UserID, date); err != nil {
			p.log.Error("planning failed", "user_id", prof.UserID, "date", date, "err", err)
		}
	}
	return nil
}

func (p *Planner) planUser(ctx context.Context, userID, date string) error {
	att, err := p.attempts.CreateAttempt(ctx, userID, date, attempt.SourceScheduled)
	switch {
	case err == nil:
		_ = p.audit.LogAttemptCreated(ctx, userID, att.ID, string(attempt.SourceScheduled))
	case errors.Is(err, attempt.ErrAlreadyExists):
		att, err = p.attempts.Get(ctx, userID, date)
	}
	if err != nil {
		return err
	}
	// A non-zero attempt count means a dial already happened today; any
	// follow-up belongs to the retry path, not the planner.
	if att.Status != attempt.StatusPending || att.AttemptCount > 0 {
		return nil
	}

	if _, err := p.attempts.Enqueue(ctx, att.ID); err != nil {
		if errors.Is(err, attempt.ErrPreconditionFailed) {
			return nil
		}
		return err
	}
	p.log.Info("attempt enqueued", "user_id", userID, "date", date, "attempt_id", att.ID)
	return nil
}

// RunLoop plans on every tick until ctx is canceled.
func (p *Planner) RunLoop(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := p.PlanOnce(ctx); err != nil {
				p.log.Error("plan", "err", err)
			}
		}
	}
}

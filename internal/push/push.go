// Package push sends each running conversation its daily reminder.
package push

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xaenox/slimday-bot/internal/clock"
	"github.com/xaenox/slimday-bot/internal/knowledge"
	"github.com/xaenox/slimday-bot/internal/models"
	"github.com/xaenox/slimday-bot/internal/state"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSchedule = "0 8 * * *"

	maxConcurrentPushes = 4
	stopTimeout         = 30 * time.Second
)

type Pusher interface {
	Push(ctx context.Context, conversationID, text string) error
}

// Job builds and sends the reminders for one run.
type Job struct {
	states state.Store
	clock  *clock.Clock
	tables *knowledge.Tables
	pusher Pusher
	logger *zap.Logger
}

func NewJob(states state.Store, clk *clock.Clock, tables *knowledge.Tables, pusher Pusher, logger *zap.Logger) *Job {
	return &Job{
		states: states,
		clock:  clk,
		tables: tables,
		pusher: pusher,
		logger: logger,
	}
}

// Result counts what one run did.
type Result struct {
	Sent    int
	Skipped int
	Failed  int
}

// Run pushes to every conversation whose program is between day 1 and the
// last day. A failed push is logged and does not stop the others.
func (j *Job) Run(ctx context.Context) Result {
	var (
		res     Result
		targets []target
	)
	for _, id := range j.states.Conversations(ctx) {
		start, ok := j.states.EnsureStart(ctx, id)
		if !ok {
			res.Skipped++
			continue
		}
		day := j.clock.RawDay(start)
		if day < 1 || day > models.ProgramDays {
			res.Skipped++
			continue
		}
		targets = append(targets, target{id: id, day: day})
	}

	outcomes := make([]error, len(targets))
	var g errgroup.Group
	g.SetLimit(maxConcurrentPushes)
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			outcomes[i] = j.pusher.Push(ctx, t.id, j.Message(t.day))
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range outcomes {
		if err != nil {
			res.Failed++
			j.logger.Error("Failed to push daily reminder",
				zap.Error(err),
				zap.String("conversation_id", targets[i].id),
				zap.Int("day", targets[i].day))
			continue
		}
		res.Sent++
	}

	j.logger.Info("Daily push finished",
		zap.Int("sent", res.Sent),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed))
	return res
}

type target struct {
	id  string
	day int
}

// Message is the reminder text for a program day.
func (j *Job) Message(day int) string {
	dt := j.tables.DayType(day)

	var sb strings.Builder
	fmt.Fprintf(&sb, "☀️ 早安！今天是第 %d 天（%s）", day, dt.Label())
	if tmpl := j.tables.PushTemplate(dt); tmpl != "" {
		fmt.Fprintf(&sb, "\n\n%s", tmpl)
	}
	fmt.Fprintf(&sb, "\n\n💬 %s", j.tables.Companion(day))
	return sb.String()
}

// Scheduler runs a Job on a cron schedule in the program timezone.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

func NewScheduler(schedule string, loc *time.Location, job *Job, logger *zap.Logger) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(schedule, func() {
		job.Run(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("invalid push schedule %q: %w", schedule, err)
	}

	return &Scheduler{cron: c, logger: logger}, nil
}

// Start runs the schedule until ctx is done, then waits for a running job.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron.Start()
	s.logger.Info("Push scheduler started",
		zap.Time("next_run", s.Next()))

	<-ctx.Done()

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(stopTimeout):
		s.logger.Warn("Timed out waiting for running push job")
	}
	s.logger.Info("Push scheduler stopped")
	return nil
}

// Next is the time of the next run, zero when the scheduler is not running.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

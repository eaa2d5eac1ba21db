// Package schedule posts the daily channel message.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/onnwee/meme-machine/telemetry"
)

// Sender delivers a message to a channel.
type Sender interface {
	Send(ctx context.Context, channelID, text string) error
}

// Scheduler wraps a gocron scheduler running in a fixed location.
type Scheduler struct {
	scheduler gocron.Scheduler
	loc       *time.Location
	daily     gocron.Job
}

// New creates a scheduler whose clock times are interpreted in loc (UTC when nil).
func New(loc *time.Location) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	s, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, loc: loc}, nil
}

// ParseClock parses "HH:MM" (24h) into hour and minute.
func ParseClock(s string) (hour, minute uint, err error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid clock %q: want HH:MM", s)
	}
	h, err := strconv.ParseUint(hh, 10, 8)
	if err != nil || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.ParseUint(mm, 10, 8)
	if err != nil || m > 59 || len(mm) != 2 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return uint(h), uint(m), nil
}

// ScheduleDaily posts text to channelID every day at clock. ctx is the parent
// context of every send and should live as long as the scheduler.
// Returns the job ID.
func (s *Scheduler) ScheduleDaily(ctx context.Context, clock, channelID, text string, sender Sender) (string, error) {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return "", err
	}
	job, err := s.scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(hour, minute, 0))),
		gocron.NewTask(func() { sendDaily(ctx, sender, channelID, text) }),
		gocron.WithName("daily-message"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create daily message job: %w", err)
	}
	s.daily = job
	slog.Info("daily message scheduled", slog.String("at", clock), slog.String("tz", s.loc.String()), slog.String("channel", channelID), slog.String("component", "schedule"))
	return job.ID().String(), nil
}

// NextRun returns the next time the daily message fires. It is only known after Start.
func (s *Scheduler) NextRun() (time.Time, error) {
	if s.daily == nil {
		return time.Time{}, fmt.Errorf("no daily message scheduled")
	}
	return s.daily.NextRun()
}

// Start begins running jobs.
func (s *Scheduler) Start() {
	s.scheduler.Start()
}

// Stop shuts the scheduler down and waits for running jobs.
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}

func sendDaily(ctx context.Context, sender Sender, channelID, text string) {
	sctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := sender.Send(sctx, channelID, text); err != nil {
		slog.Error("daily message failed", slog.String("channel", channelID), slog.Any("err", err), slog.String("component", "schedule"))
		return
	}
	telemetry.IncDailyMessage()
	slog.Info("daily message sent", slog.String("channel", channelID), slog.String("component", "schedule"))
}

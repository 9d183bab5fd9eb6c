// ABOUTME: Cron-backed firing of user reminders with periodic store resync
// ABOUTME: The reminder tools mutate the lists; this picks the changes up

package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/taskstream/assistant/internal/content"
	"github.com/taskstream/assistant/internal/store"
)

// DefaultResyncInterval is how often reminder lists are reloaded.
const DefaultResyncInterval = time.Minute

// Notifier delivers a fired reminder to a user.
type Notifier func(userID int64, message string)

// ReminderSource is the subset of the store the scheduler needs.
type ReminderSource interface {
	ListReminders(ctx context.Context) (map[int64][]content.Reminder, error)
}

// Scheduler keeps a cron schedule in sync with every user's reminder list
// and fires the notifier when an entry comes due.
type Scheduler struct {
	source ReminderSource
	notify Notifier
	logger *slog.Logger
	cron   *cron.Cron

	mu      sync.Mutex
	entries []cron.EntryID
}

// New builds a scheduler. The notifier must be non-blocking; cron runs each
// job on its own goroutine but a stuck notifier still leaks them.
func New(source ReminderSource, notify Notifier, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		source: source,
		notify: notify,
		logger: logger.With("component", "scheduler"),
		cron:   cron.New(),
	}
}

// Run starts the cron engine and resyncs every interval until the context is
// cancelled. Pass 0 for the default interval.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultResyncInterval
	}

	if err := s.Resync(ctx); err != nil {
		s.logger.Error("initial reminder sync failed", "error", err)
	}
	s.cron.Start()
	defer s.cron.Stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Resync(ctx); err != nil {
				s.logger.Error("reminder sync failed", "error", err)
			}
		}
	}
}

// Resync replaces the scheduled entries with the store's current reminder
// lists. Entries with invalid schedules are skipped; one bad reminder must
// not block the rest of a user's list.
func (s *Scheduler) Resync(ctx context.Context) error {
	lists, err := s.source.ListReminders(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.entries {
		s.cron.Remove(id)
	}
	s.entries = s.entries[:0]

	for userID, reminders := range lists {
		for _, reminder := range reminders {
			id, err := s.cron.AddFunc(reminder.Schedule, s.jobFor(userID, reminder.Message))
			if err != nil {
				s.logger.Warn("skipping reminder with bad schedule",
					"user_id", userID, "schedule", reminder.Schedule, "error", err)
				continue
			}
			s.entries = append(s.entries, id)
		}
	}
	s.logger.Debug("reminder schedule synced", "entries", len(s.entries))
	return nil
}

// EntryCount reports the number of scheduled reminders.
func (s *Scheduler) EntryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Scheduler) jobFor(userID int64, message string) func() {
	return func() {
		s.logger.Info("reminder fired", "user_id", userID)
		s.notify(userID, message)
	}
}

var _ ReminderSource = (store.Store)(nil)

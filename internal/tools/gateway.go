// ABOUTME: Gateway binding tools to one turn's stream, user, and confirm policy
// ABOUTME: Every mutation renders a card and passes the confirmation gate

package tools

import (
	"context"
	"log/slog"

	"github.com/taskstream/assistant/internal/content"
	"github.com/taskstream/assistant/internal/store"
	"github.com/taskstream/assistant/internal/stream"
)

// Category is the auto-confirm policy bucket a mutation falls into.
type Category int

const (
	ActionCreate Category = iota
	ActionUpdate
	ActionDelete
	ActionReminder
)

// Gateway carries the per-turn context every tool needs: the user, the
// store, the event stream, and the resolved auto-confirm switches. One
// Gateway exists per turn; tools are cheap structs around it.
type Gateway struct {
	Store  store.Store
	Stream *stream.Stream
	UserID int64
	Auto   store.AutoConfirm
	Logger *slog.Logger
}

// NewGateway builds a per-turn gateway. Pass nil logger for default.
func NewGateway(st store.Store, s *stream.Stream, userID int64, auto store.AutoConfirm, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		Store:  st,
		Stream: s,
		UserID: userID,
		Auto:   auto,
		Logger: logger.With("component", "tools", "user_id", userID),
	}
}

// autoConfirmed reports whether the user bypasses confirmation for the category.
func (g *Gateway) autoConfirmed(cat Category) bool {
	switch cat {
	case ActionCreate:
		return g.Auto.Create
	case ActionUpdate:
		return g.Auto.Update
	case ActionDelete:
		return g.Auto.Delete
	case ActionReminder:
		return g.Auto.Reminder
	}
	return false
}

// confirmCard sends the card through the stream and resolves the gate for
// the category. The returned bool is the user's decision; an error means the
// stream itself failed and the turn cannot continue.
func (g *Gateway) confirmCard(ctx context.Context, card *content.ActionCard, cat Category) (bool, error) {
	needConfirm := !g.autoConfirmed(cat)
	confirmed, err := g.Stream.SendCard(ctx, card, needConfirm)
	if err != nil {
		return false, err
	}
	g.Logger.Debug("card resolved",
		"action_id", card.ActionID, "type", int(card.Type),
		"need_confirm", needConfirm, "confirmed", confirmed)
	return confirmed, nil
}

// RegisterAll registers the full tool set on the registry.
func RegisterAll(r *Registry, g *Gateway) {
	r.Register(&CreateTask{g})
	r.Register(&DeleteTask{g})
	r.Register(&UpdateTask{g})
	r.Register(&GetTasks{g})
	r.Register(&GetUrgentTasks{g})

	r.Register(&CreateLongTermTask{g})
	r.Register(&DeleteLongTermTask{g})
	r.Register(&UpdateLongTermTask{g})
	r.Register(&GetLongTermTasks{g})

	r.Register(&UpdateJournal{g})
	r.Register(&GetJournal{g})
	r.Register(&GetJournalsInRange{g})

	r.Register(&GetMemo{g})

	r.Register(&AddReminder{g})
	r.Register(&ReplaceReminderList{g})
}

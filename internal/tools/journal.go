// ABOUTME: Journal tools: gated rewrite plus single and range reads
// ABOUTME: The update card carries a before/after diff of the entry

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/taskstream/assistant/internal/content"
	"github.com/taskstream/assistant/internal/store"
)

// UpdateJournal proposes a before/after diff and rewrites the entry.
type UpdateJournal struct{ g *Gateway }

func (t *UpdateJournal) Name() string { return "update_journal" }
func (t *UpdateJournal) Description() string {
	return "Rewrite the user's journal entry for a date. The full new content replaces the old entry."
}
func (t *UpdateJournal) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"date": {"type": "string", "description": "Journal date, YYYY-MM-DD"},
			"content": {"type": "string", "description": "The complete new journal content"}
		},
		"required": ["date", "content"]
	}`)
}

func (t *UpdateJournal) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Date    string `json:"date"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}

	before := ""
	existing, err := t.g.Store.GetJournal(ctx, t.g.UserID, params.Date)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", err
	}
	if existing != nil {
		before = existing.Content
	}

	card := &content.ActionCard{
		Type: content.CardUpdateJournal,
		Data: content.JournalDiffPayload{
			Before: content.JournalVersion{Date: params.Date, UserID: t.g.UserID, Content: before},
			After:  content.JournalVersion{Date: params.Date, UserID: t.g.UserID, Content: params.Content},
		},
	}
	confirmed, err := t.g.confirmCard(ctx, card, ActionUpdate)
	if err != nil {
		return "", err
	}
	if !confirmed {
		return "The user declined the journal update.", nil
	}

	err = t.g.Store.UpsertJournal(ctx, &store.Journal{
		Date:    params.Date,
		UserID:  t.g.UserID,
		Content: params.Content,
	})
	if err != nil {
		return fmt.Sprintf("Failed to update the journal: %v", err), nil
	}
	return "Journal updated.", nil
}

// GetJournal reads one journal entry.
type GetJournal struct{ g *Gateway }

func (t *GetJournal) Name() string        { return "get_journal" }
func (t *GetJournal) Description() string { return "Read the user's journal entry for a date." }
func (t *GetJournal) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"date": {"type": "string", "description": "Journal date, YYYY-MM-DD"}
		},
		"required": ["date"]
	}`)
}

func (t *GetJournal) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Date string `json:"date"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}

	journal, err := t.g.Store.GetJournal(ctx, t.g.UserID, params.Date)
	if errors.Is(err, store.ErrNotFound) {
		return "No journal entry for that date.", nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Date: %s\nContent: %s", journal.Date, journal.Content), nil
}

// GetJournalsInRange reads all journal entries in a date range.
type GetJournalsInRange struct{ g *Gateway }

func (t *GetJournalsInRange) Name() string { return "get_journals_in_date_range" }
func (t *GetJournalsInRange) Description() string {
	return "Read all journal entries within a date range."
}
func (t *GetJournalsInRange) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"start_date": {"type": "string", "description": "Start date, YYYY-MM-DD"},
			"end_date": {"type": "string", "description": "End date, YYYY-MM-DD"}
		},
		"required": ["start_date", "end_date"]
	}`)
}

func (t *GetJournalsInRange) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}

	journals, err := t.g.Store.ListJournalsInRange(ctx, t.g.UserID, params.StartDate, params.EndDate)
	if err != nil {
		return "", err
	}
	if len(journals) == 0 {
		return "No journal entries in that period.", nil
	}

	var out strings.Builder
	for _, journal := range journals {
		fmt.Fprintf(&out, "Date: %s\nContent: %s\n---\n", journal.Date, journal.Content)
	}
	return out.String(), nil
}

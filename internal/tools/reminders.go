// ABOUTME: Reminder tools: append one reminder or replace the whole list
// ABOUTME: Schedules are cron expressions validated before the card is shown

package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/taskstream/assistant/internal/content"
)

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

func validateReminder(r content.Reminder) error {
	if r.Message == "" {
		return fmt.Errorf("reminder message is required")
	}
	if _, err := cronParser.Parse(r.Schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", r.Schedule, err)
	}
	return nil
}

// AddReminder appends one reminder to the user's list after the gate.
type AddReminder struct{ g *Gateway }

func (t *AddReminder) Name() string { return "add_reminder" }
func (t *AddReminder) Description() string {
	return "Add a recurring reminder. The schedule is a five-field cron expression (minute hour day month weekday)."
}
func (t *AddReminder) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"schedule": {"type": "string", "description": "Cron expression, e.g. \"0 9 * * *\" for 09:00 daily"},
			"message": {"type": "string", "description": "What to remind the user about"}
		},
		"required": ["schedule", "message"]
	}`)
}

func (t *AddReminder) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var reminder content.Reminder
	if err := json.Unmarshal(args, &reminder); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if err := validateReminder(reminder); err != nil {
		return err.Error(), nil
	}

	card := &content.ActionCard{
		Type: content.CardAddReminder,
		Data: content.ReminderPayload{Reminder: reminder},
	}
	confirmed, err := t.g.confirmCard(ctx, card, ActionReminder)
	if err != nil {
		return "", err
	}
	if !confirmed {
		return "The user declined to add the reminder.", nil
	}

	cfg, err := t.g.Store.GetAssistantConfig(ctx, t.g.UserID)
	if err != nil {
		return "", err
	}
	cfg.Reminders = append(cfg.Reminders, reminder)
	if err := t.g.Store.SaveAssistantConfig(ctx, cfg); err != nil {
		return fmt.Sprintf("Failed to save the reminder: %v", err), nil
	}
	return fmt.Sprintf("Reminder added (%d total).", len(cfg.Reminders)), nil
}

// ReplaceReminderList swaps the user's entire reminder list after the gate.
type ReplaceReminderList struct{ g *Gateway }

func (t *ReplaceReminderList) Name() string { return "replace_reminder_list" }
func (t *ReplaceReminderList) Description() string {
	return "Replace the user's entire reminder list. Use an empty list to clear all reminders."
}
func (t *ReplaceReminderList) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"reminders": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"schedule": {"type": "string", "description": "Cron expression"},
						"message": {"type": "string", "description": "Reminder text"}
					},
					"required": ["schedule", "message"]
				},
				"description": "The complete replacement list"
			}
		},
		"required": ["reminders"]
	}`)
}

func (t *ReplaceReminderList) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Reminders []content.Reminder `json:"reminders"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	for _, reminder := range params.Reminders {
		if err := validateReminder(reminder); err != nil {
			return err.Error(), nil
		}
	}

	card := &content.ActionCard{
		Type: content.CardReplaceReminders,
		Data: content.ReminderListPayload{Reminders: params.Reminders},
	}
	confirmed, err := t.g.confirmCard(ctx, card, ActionReminder)
	if err != nil {
		return "", err
	}
	if !confirmed {
		return "The user declined to replace the reminder list.", nil
	}

	cfg, err := t.g.Store.GetAssistantConfig(ctx, t.g.UserID)
	if err != nil {
		return "", err
	}
	cfg.Reminders = params.Reminders
	if err := t.g.Store.SaveAssistantConfig(ctx, cfg); err != nil {
		return fmt.Sprintf("Failed to save the reminder list: %v", err), nil
	}
	return fmt.Sprintf("Reminder list replaced (%d reminders).", len(params.Reminders)), nil
}

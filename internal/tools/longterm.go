// ABOUTME: Long-term task tools: create, delete, update, and list
// ABOUTME: Membership weights drive the store's progress recomputation

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/taskstream/assistant/internal/content"
	"github.com/taskstream/assistant/internal/store"
)

// CreateLongTermTask proposes and, on confirmation, creates a long-term task.
type CreateLongTermTask struct{ g *Gateway }

func (t *CreateLongTermTask) Name() string { return "create_long_term_task" }
func (t *CreateLongTermTask) Description() string {
	return "Create a long-term task (a goal whose progress aggregates weighted member tasks)."
}
func (t *CreateLongTermTask) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"title": {"type": "string", "description": "Long-term task title (required)"},
			"description": {"type": "string", "description": "Description"},
			"start_date": {"type": "string", "description": "Start date, YYYY-MM-DD"},
			"due_date": {"type": "string", "description": "Due date, YYYY-MM-DD"},
			"sub_task_ids": {
				"type": "object",
				"additionalProperties": {"type": "number"},
				"description": "Member task IDs mapped to weights, e.g. {\"1\": 0.5, \"2\": 0.5}"
			}
		},
		"required": ["title"]
	}`)
}

func (t *CreateLongTermTask) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Title          string             `json:"title"`
		Description    string             `json:"description"`
		StartDate      string             `json:"start_date"`
		DueDate        string             `json:"due_date"`
		SubTaskWeights map[string]float64 `json:"sub_task_ids"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.Title == "" {
		return "A long-term task title is required.", nil
	}

	card := &content.ActionCard{
		Type: content.CardCreateLongTerm,
		Data: content.LongTermPayload{
			Title:          params.Title,
			Description:    params.Description,
			StartDate:      params.StartDate,
			DueDate:        params.DueDate,
			SubTaskWeights: params.SubTaskWeights,
		},
	}
	confirmed, err := t.g.confirmCard(ctx, card, ActionCreate)
	if err != nil {
		return "", err
	}
	if !confirmed {
		return "The user declined to create the long-term task.", nil
	}

	task := &store.LongTermTask{
		UserID:         t.g.UserID,
		Title:          params.Title,
		Description:    params.Description,
		StartDate:      params.StartDate,
		DueDate:        params.DueDate,
		SubTaskWeights: params.SubTaskWeights,
	}
	if err := t.g.Store.CreateLongTermTask(ctx, task); err != nil {
		return fmt.Sprintf("Failed to create the long-term task: %v", err), nil
	}
	return fmt.Sprintf("Long-term task created with ID %d.", task.ID), nil
}

// DeleteLongTermTask proposes and, on confirmation, deletes a long-term task.
type DeleteLongTermTask struct{ g *Gateway }

func (t *DeleteLongTermTask) Name() string { return "delete_long_term_task" }
func (t *DeleteLongTermTask) Description() string {
	return "Delete a long-term task by ID, after confirmation. Member tasks are unlinked, not deleted."
}
func (t *DeleteLongTermTask) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"task_id": {"type": "integer", "description": "ID of the long-term task to delete"}
		},
		"required": ["task_id"]
	}`)
}

func (t *DeleteLongTermTask) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		TaskID int64 `json:"task_id"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}

	task, err := t.g.Store.GetLongTermTask(ctx, params.TaskID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Sprintf("Long-term task %d does not exist.", params.TaskID), nil
	}
	if err != nil {
		return "", err
	}
	if task.UserID != t.g.UserID {
		return fmt.Sprintf("Long-term task %d does not exist.", params.TaskID), nil
	}

	card := &content.ActionCard{
		Type: content.CardConfirm,
		Data: content.ConfirmPayload{
			Title:       "Delete long-term task: " + task.Title,
			Description: fmt.Sprintf("ID: %d", task.ID),
			TargetID:    task.ID,
		},
	}
	confirmed, err := t.g.confirmCard(ctx, card, ActionDelete)
	if err != nil {
		return "", err
	}
	if !confirmed {
		return "The user declined to delete the long-term task.", nil
	}

	if err := t.g.Store.DeleteLongTermTask(ctx, task.ID); err != nil {
		return fmt.Sprintf("Failed to delete long-term task %d: %v", task.ID, err), nil
	}
	return fmt.Sprintf("Long-term task %d deleted.", task.ID), nil
}

// UpdateLongTermTask proposes an original/updated diff and applies it.
type UpdateLongTermTask struct{ g *Gateway }

func (t *UpdateLongTermTask) Name() string { return "update_long_term_task" }
func (t *UpdateLongTermTask) Description() string {
	return "Update fields of a long-term task. Passing sub_task_ids resyncs membership and progress."
}
func (t *UpdateLongTermTask) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"task_id": {"type": "integer", "description": "ID of the long-term task to update"},
			"title": {"type": "string", "description": "New title"},
			"description": {"type": "string", "description": "New description"},
			"start_date": {"type": "string", "description": "New start date, YYYY-MM-DD"},
			"due_date": {"type": "string", "description": "New due date, YYYY-MM-DD"},
			"sub_task_ids": {
				"type": "object",
				"additionalProperties": {"type": "number"},
				"description": "New member task IDs mapped to weights, e.g. {\"1\": 0.5}"
			}
		},
		"required": ["task_id"]
	}`)
}

// longTermSnapshot is the card-facing view used in update diffs.
type longTermSnapshot struct {
	ID             int64              `json:"id"`
	Title          string             `json:"title"`
	Description    string             `json:"description,omitempty"`
	StartDate      string             `json:"start_date,omitempty"`
	DueDate        string             `json:"due_date,omitempty"`
	Progress       float64            `json:"progress"`
	SubTaskWeights map[string]float64 `json:"sub_task_ids"`
}

func snapshotLongTerm(task *store.LongTermTask) longTermSnapshot {
	return longTermSnapshot{
		ID:             task.ID,
		Title:          task.Title,
		Description:    task.Description,
		StartDate:      task.StartDate,
		DueDate:        task.DueDate,
		Progress:       task.Progress,
		SubTaskWeights: task.SubTaskWeights,
	}
}

func (t *UpdateLongTermTask) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		TaskID         int64              `json:"task_id"`
		Title          *string            `json:"title"`
		Description    *string            `json:"description"`
		StartDate      *string            `json:"start_date"`
		DueDate        *string            `json:"due_date"`
		SubTaskWeights map[string]float64 `json:"sub_task_ids"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}

	task, err := t.g.Store.GetLongTermTask(ctx, params.TaskID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Sprintf("Long-term task %d does not exist.", params.TaskID), nil
	}
	if err != nil {
		return "", err
	}
	if task.UserID != t.g.UserID {
		return fmt.Sprintf("Long-term task %d does not exist.", params.TaskID), nil
	}

	original := snapshotLongTerm(task)

	if params.Title != nil {
		task.Title = *params.Title
	}
	if params.Description != nil {
		task.Description = *params.Description
	}
	if params.StartDate != nil {
		task.StartDate = *params.StartDate
	}
	if params.DueDate != nil {
		task.DueDate = *params.DueDate
	}
	if params.SubTaskWeights != nil {
		task.SubTaskWeights = params.SubTaskWeights
	}

	originalJSON, err := json.Marshal(original)
	if err != nil {
		return "", fmt.Errorf("encoding original: %w", err)
	}
	updatedJSON, err := json.Marshal(snapshotLongTerm(task))
	if err != nil {
		return "", fmt.Errorf("encoding updated: %w", err)
	}

	card := &content.ActionCard{
		Type: content.CardUpdate,
		Data: content.UpdatePayload{Original: originalJSON, Updated: updatedJSON},
	}
	confirmed, err := t.g.confirmCard(ctx, card, ActionUpdate)
	if err != nil {
		return "", err
	}
	if !confirmed {
		return "The user declined to update the long-term task.", nil
	}

	// Only pass weights through when the model supplied them, so an
	// unrelated field edit doesn't resync membership.
	if params.SubTaskWeights == nil {
		task.SubTaskWeights = nil
	}
	if err := t.g.Store.UpdateLongTermTask(ctx, task); err != nil {
		return fmt.Sprintf("Failed to update long-term task %d: %v", task.ID, err), nil
	}
	return fmt.Sprintf("Long-term task %d updated.", task.ID), nil
}

// GetLongTermTasks lists a user's long-term tasks.
type GetLongTermTasks struct{ g *Gateway }

func (t *GetLongTermTasks) Name() string { return "get_long_term_tasks" }
func (t *GetLongTermTasks) Description() string {
	return "List the user's long-term tasks with their progress."
}
func (t *GetLongTermTasks) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"uncompleted_only": {"type": "boolean", "description": "Only return tasks below full progress"}
		}
	}`)
}

func (t *GetLongTermTasks) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		UncompletedOnly bool `json:"uncompleted_only"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return "", fmt.Errorf("parse args: %w", err)
		}
	}

	tasks, err := t.g.Store.ListLongTermTasks(ctx, t.g.UserID, params.UncompletedOnly)
	if err != nil {
		return "", err
	}
	if len(tasks) == 0 {
		return "No long-term tasks found.", nil
	}

	summaries := make([]map[string]any, len(tasks))
	for i, task := range tasks {
		summaries[i] = map[string]any{
			"id":       task.ID,
			"title":    task.Title,
			"progress": task.Progress,
			"due_date": task.DueDate,
		}
	}
	encoded, err := json.Marshal(summaries)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

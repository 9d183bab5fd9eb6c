// ABOUTME: Task tools: create, delete, update, list, and urgent lookup
// ABOUTME: Mutations render cards and execute only on a confirmed gate

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/taskstream/assistant/internal/content"
	"github.com/taskstream/assistant/internal/store"
)

// CreateTask proposes and, on confirmation, creates a task.
type CreateTask struct{ g *Gateway }

func (t *CreateTask) Name() string { return "create_task" }
func (t *CreateTask) Description() string {
	return "Create a new task for the user. The task is shown as a card and may require confirmation."
}
func (t *CreateTask) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"title": {"type": "string", "description": "Task title (required)"},
			"description": {"type": "string", "description": "Task description"},
			"due_date": {"type": "string", "description": "Due date, YYYY-MM-DD HH:MM. Omit unless the user mentioned one"},
			"assigned_start_time": {"type": "string", "description": "Start time, HH:MM"},
			"assigned_end_time": {"type": "string", "description": "End time, HH:MM"},
			"tags": {"type": "array", "items": {"type": "string"}, "description": "Tag list"},
			"record_result": {"type": "boolean", "description": "Whether to record an outcome when done"},
			"long_term_task_id": {"type": "integer", "description": "Linked long-term task ID"}
		},
		"required": ["title"]
	}`)
}

func (t *CreateTask) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Title             string   `json:"title"`
		Description       string   `json:"description"`
		DueDate           string   `json:"due_date"`
		AssignedStartTime string   `json:"assigned_start_time"`
		AssignedEndTime   string   `json:"assigned_end_time"`
		Tags              []string `json:"tags"`
		RecordResult      bool     `json:"record_result"`
		LongTermTaskID    *int64   `json:"long_term_task_id"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.Title == "" {
		return "A task title is required.", nil
	}
	if params.Tags == nil {
		params.Tags = []string{}
	}
	assignedDate := time.Now().Format("2006-01-02")

	card := &content.ActionCard{
		Type: content.CardCreateTask,
		Data: content.TaskPayload{
			Title:             params.Title,
			Description:       params.Description,
			DueDate:           params.DueDate,
			AssignedDate:      assignedDate,
			AssignedStartTime: params.AssignedStartTime,
			AssignedEndTime:   params.AssignedEndTime,
			Tags:              params.Tags,
			RecordResult:      params.RecordResult,
			ResultPictureURLs: []string{},
			LongTermTaskID:    params.LongTermTaskID,
		},
	}
	confirmed, err := t.g.confirmCard(ctx, card, ActionCreate)
	if err != nil {
		return "", err
	}
	if !confirmed {
		return "The user declined to create the task.", nil
	}

	task := &store.Task{
		UserID:            t.g.UserID,
		Title:             params.Title,
		Description:       params.Description,
		Status:            store.StatusTodo,
		DueDate:           params.DueDate,
		AssignedDate:      assignedDate,
		AssignedStartTime: params.AssignedStartTime,
		AssignedEndTime:   params.AssignedEndTime,
		Tags:              params.Tags,
		RecordResult:      params.RecordResult,
		LongTermTaskID:    params.LongTermTaskID,
	}
	if err := t.g.Store.CreateTask(ctx, task); err != nil {
		return fmt.Sprintf("Failed to create the task: %v", err), nil
	}
	return fmt.Sprintf("Task created with ID %d.", task.ID), nil
}

// DeleteTask proposes and, on confirmation, deletes a task.
type DeleteTask struct{ g *Gateway }

func (t *DeleteTask) Name() string        { return "delete_task" }
func (t *DeleteTask) Description() string { return "Delete a task by ID, after confirmation." }
func (t *DeleteTask) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"task_id": {"type": "integer", "description": "ID of the task to delete"}
		},
		"required": ["task_id"]
	}`)
}

func (t *DeleteTask) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		TaskID int64 `json:"task_id"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}

	task, err := t.g.Store.GetTask(ctx, params.TaskID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Sprintf("Task %d does not exist.", params.TaskID), nil
	}
	if err != nil {
		return "", err
	}
	if task.UserID != t.g.UserID {
		return fmt.Sprintf("Task %d does not exist.", params.TaskID), nil
	}

	card := &content.ActionCard{
		Type: content.CardConfirm,
		Data: content.ConfirmPayload{
			Title:       "Delete task: " + task.Title,
			Description: fmt.Sprintf("ID: %d", task.ID),
			TargetID:    task.ID,
		},
	}
	confirmed, err := t.g.confirmCard(ctx, card, ActionDelete)
	if err != nil {
		return "", err
	}
	if !confirmed {
		return "The user declined to delete the task.", nil
	}

	if err := t.g.Store.DeleteTask(ctx, task.ID); err != nil {
		return fmt.Sprintf("Failed to delete task %d: %v", task.ID, err), nil
	}
	return fmt.Sprintf("Task %d deleted.", task.ID), nil
}

// UpdateTask proposes an original/updated diff and applies it on confirmation.
type UpdateTask struct{ g *Gateway }

func (t *UpdateTask) Name() string { return "update_task" }
func (t *UpdateTask) Description() string {
	return "Update fields of an existing task. Unspecified fields keep their current values."
}
func (t *UpdateTask) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"task_id": {"type": "integer", "description": "ID of the task to update"},
			"title": {"type": "string", "description": "New title"},
			"description": {"type": "string", "description": "New description"},
			"status": {"type": "integer", "description": "New status: 1 todo, 2 doing, 3 done"},
			"due_date": {"type": "string", "description": "New due date, YYYY-MM-DD HH:MM"},
			"assigned_start_time": {"type": "string", "description": "New start time, HH:MM"},
			"assigned_end_time": {"type": "string", "description": "New end time, HH:MM"},
			"tags": {"type": "array", "items": {"type": "string"}, "description": "New tag list"},
			"record_result": {"type": "boolean", "description": "Whether to record an outcome"},
			"result": {"type": "string", "description": "Task outcome"},
			"long_term_task_id": {"type": "integer", "description": "New linked long-term task ID"}
		},
		"required": ["task_id"]
	}`)
}

// taskSnapshot is the card-facing view of a task used in update diffs.
type taskSnapshot struct {
	ID                int64    `json:"id"`
	Title             string   `json:"title"`
	Description       string   `json:"description,omitempty"`
	Status            int      `json:"status"`
	DueDate           string   `json:"due_date,omitempty"`
	AssignedDate      string   `json:"assigned_date,omitempty"`
	AssignedStartTime string   `json:"assigned_start_time,omitempty"`
	AssignedEndTime   string   `json:"assigned_end_time,omitempty"`
	Tags              []string `json:"tags"`
	RecordResult      bool     `json:"record_result"`
	Result            string   `json:"result,omitempty"`
	LongTermTaskID    *int64   `json:"long_term_task_id,omitempty"`
}

func snapshotTask(task *store.Task) taskSnapshot {
	return taskSnapshot{
		ID:                task.ID,
		Title:             task.Title,
		Description:       task.Description,
		Status:            task.Status,
		DueDate:           task.DueDate,
		AssignedDate:      task.AssignedDate,
		AssignedStartTime: task.AssignedStartTime,
		AssignedEndTime:   task.AssignedEndTime,
		Tags:              task.Tags,
		RecordResult:      task.RecordResult,
		Result:            task.Result,
		LongTermTaskID:    task.LongTermTaskID,
	}
}

func (t *UpdateTask) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		TaskID            int64     `json:"task_id"`
		Title             *string   `json:"title"`
		Description       *string   `json:"description"`
		Status            *int      `json:"status"`
		DueDate           *string   `json:"due_date"`
		AssignedStartTime *string   `json:"assigned_start_time"`
		AssignedEndTime   *string   `json:"assigned_end_time"`
		Tags              *[]string `json:"tags"`
		RecordResult      *bool     `json:"record_result"`
		Result            *string   `json:"result"`
		LongTermTaskID    *int64    `json:"long_term_task_id"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}

	task, err := t.g.Store.GetTask(ctx, params.TaskID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Sprintf("Task %d does not exist.", params.TaskID), nil
	}
	if err != nil {
		return "", err
	}
	if task.UserID != t.g.UserID {
		return fmt.Sprintf("Task %d does not exist.", params.TaskID), nil
	}

	original := snapshotTask(task)

	if params.Title != nil {
		task.Title = *params.Title
	}
	if params.Description != nil {
		task.Description = *params.Description
	}
	if params.Status != nil {
		task.Status = *params.Status
	}
	if params.DueDate != nil {
		task.DueDate = *params.DueDate
	}
	if params.AssignedStartTime != nil {
		task.AssignedStartTime = *params.AssignedStartTime
	}
	if params.AssignedEndTime != nil {
		task.AssignedEndTime = *params.AssignedEndTime
	}
	if params.Tags != nil {
		task.Tags = *params.Tags
	}
	if params.RecordResult != nil {
		task.RecordResult = *params.RecordResult
	}
	if params.Result != nil {
		task.Result = *params.Result
	}
	if params.LongTermTaskID != nil {
		task.LongTermTaskID = params.LongTermTaskID
	}

	originalJSON, err := json.Marshal(original)
	if err != nil {
		return "", fmt.Errorf("encoding original: %w", err)
	}
	updatedJSON, err := json.Marshal(snapshotTask(task))
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
		return "The user declined to update the task.", nil
	}

	if err := t.g.Store.UpdateTask(ctx, task); err != nil {
		return fmt.Sprintf("Failed to update task %d: %v", task.ID, err), nil
	}
	return fmt.Sprintf("Task %d updated.", task.ID), nil
}

// GetTasks lists tasks assigned within a date range.
type GetTasks struct{ g *Gateway }

func (t *GetTasks) Name() string { return "get_tasks" }
func (t *GetTasks) Description() string {
	return "List the user's tasks assigned within a date range."
}
func (t *GetTasks) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"start_date": {"type": "string", "description": "Start date, YYYY-MM-DD"},
			"end_date": {"type": "string", "description": "End date, YYYY-MM-DD"}
		},
		"required": ["start_date", "end_date"]
	}`)
}

func (t *GetTasks) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}

	tasks, err := t.g.Store.ListTasksInRange(ctx, t.g.UserID, params.StartDate, params.EndDate)
	if err != nil {
		return "", err
	}
	if len(tasks) == 0 {
		return "No tasks in that period.", nil
	}
	return summarizeTasks(tasks)
}

// GetUrgentTasks lists unfinished tasks that carry a due date.
type GetUrgentTasks struct{ g *Gateway }

func (t *GetUrgentTasks) Name() string { return "get_urgent_tasks" }
func (t *GetUrgentTasks) Description() string {
	return "List unfinished tasks that have a due date, plus unfinished long-term tasks."
}
func (t *GetUrgentTasks) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *GetUrgentTasks) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	tasks, err := t.g.Store.ListTasks(ctx, t.g.UserID)
	if err != nil {
		return "", err
	}
	var urgent []*store.Task
	for _, task := range tasks {
		if task.DueDate != "" && task.Status != store.StatusDone {
			urgent = append(urgent, task)
		}
	}

	longTerm, err := t.g.Store.ListLongTermTasks(ctx, t.g.UserID, true)
	if err != nil {
		return "", err
	}
	onlyDated := longTerm[:0]
	for _, lt := range longTerm {
		if lt.DueDate != "" {
			onlyDated = append(onlyDated, lt)
		}
	}

	if len(urgent) == 0 && len(onlyDated) == 0 {
		return "Nothing urgent right now.", nil
	}

	out := map[string]any{}
	if len(urgent) > 0 {
		summaries := make([]map[string]any, len(urgent))
		for i, task := range urgent {
			summaries[i] = map[string]any{
				"id": task.ID, "title": task.Title,
				"due_date": task.DueDate, "status": task.Status,
			}
		}
		out["tasks"] = summaries
	}
	if len(onlyDated) > 0 {
		summaries := make([]map[string]any, len(onlyDated))
		for i, lt := range onlyDated {
			summaries[i] = map[string]any{
				"id": lt.ID, "title": lt.Title,
				"due_date": lt.DueDate, "progress": lt.Progress,
			}
		}
		out["long_term_tasks"] = summaries
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func summarizeTasks(tasks []*store.Task) (string, error) {
	summaries := make([]map[string]any, len(tasks))
	for i, task := range tasks {
		summaries[i] = map[string]any{
			"id":       task.ID,
			"title":    task.Title,
			"status":   task.Status,
			"due_date": task.DueDate,
		}
	}
	encoded, err := json.Marshal(summaries)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

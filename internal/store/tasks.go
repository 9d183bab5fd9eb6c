// ABOUTME: Task CRUD for the SQLite store
// ABOUTME: Keeps linked long-term task progress in sync on every mutation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// marshalJSONText encodes a value as JSON text for storage, with "" for nil.
func marshalJSONText(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// unmarshalStringList decodes a JSON array column that may be empty or NULL.
func unmarshalStringList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

// CreateTask inserts a task. If the task is linked to a long-term task, that
// task's progress is recomputed.
func (s *SQLiteStore) CreateTask(ctx context.Context, task *Task) error {
	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	if task.Status == 0 {
		task.Status = StatusTodo
	}

	tags, err := marshalJSONText(task.Tags)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}
	pictures, err := marshalJSONText(task.ResultPictureURLs)
	if err != nil {
		return fmt.Errorf("encoding result pictures: %w", err)
	}

	query := `
		INSERT INTO tasks (
			user_id, title, description, status, due_date,
			assigned_date, assigned_start_time, assigned_end_time,
			tags, record_result, result, result_picture_url,
			long_term_task_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		task.UserID, task.Title, task.Description, task.Status, task.DueDate,
		task.AssignedDate, task.AssignedStartTime, task.AssignedEndTime,
		tags, boolToInt(task.RecordResult), task.Result, pictures,
		task.LongTermTaskID,
		task.CreatedAt.UTC().Format(time.RFC3339),
		task.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}

	task.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading task id: %w", err)
	}

	if task.LongTermTaskID != nil {
		if _, err := s.RecomputeLongTermProgress(ctx, *task.LongTermTaskID); err != nil {
			return fmt.Errorf("recomputing progress: %w", err)
		}
	}

	s.logger.Debug("created task", "id", task.ID, "user_id", task.UserID)
	return nil
}

// GetTask retrieves a task by ID. Returns ErrNotFound if absent.
func (s *SQLiteStore) GetTask(ctx context.Context, id int64) (*Task, error) {
	row := s.db.QueryRowContext(ctx, taskSelect+" WHERE id = ?", id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying task: %w", err)
	}
	return task, nil
}

// UpdateTask rewrites a task by ID. Progress is recomputed for the new
// long-term link and, if the link changed, for the previous one as well.
func (s *SQLiteStore) UpdateTask(ctx context.Context, task *Task) error {
	var prevLink *int64
	err := s.db.QueryRowContext(ctx,
		`SELECT long_term_task_id FROM tasks WHERE id = ?`, task.ID).Scan(&prevLink)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("querying task: %w", err)
	}

	task.UpdatedAt = time.Now()
	tags, err := marshalJSONText(task.Tags)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}
	pictures, err := marshalJSONText(task.ResultPictureURLs)
	if err != nil {
		return fmt.Errorf("encoding result pictures: %w", err)
	}

	query := `
		UPDATE tasks SET
			title = ?, description = ?, status = ?, due_date = ?,
			assigned_date = ?, assigned_start_time = ?, assigned_end_time = ?,
			tags = ?, record_result = ?, result = ?, result_picture_url = ?,
			long_term_task_id = ?, updated_at = ?
		WHERE id = ?
	`
	_, err = s.db.ExecContext(ctx, query,
		task.Title, task.Description, task.Status, task.DueDate,
		task.AssignedDate, task.AssignedStartTime, task.AssignedEndTime,
		tags, boolToInt(task.RecordResult), task.Result, pictures,
		task.LongTermTaskID,
		task.UpdatedAt.UTC().Format(time.RFC3339),
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("updating task: %w", err)
	}

	if task.LongTermTaskID != nil {
		if _, err := s.RecomputeLongTermProgress(ctx, *task.LongTermTaskID); err != nil {
			return fmt.Errorf("recomputing progress: %w", err)
		}
	}
	if prevLink != nil && (task.LongTermTaskID == nil || *prevLink != *task.LongTermTaskID) {
		if _, err := s.RecomputeLongTermProgress(ctx, *prevLink); err != nil {
			return fmt.Errorf("recomputing previous progress: %w", err)
		}
	}

	s.logger.Debug("updated task", "id", task.ID)
	return nil
}

// DeleteTask removes a task by ID and recomputes any linked progress.
// Returns ErrNotFound if the task doesn't exist.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id int64) error {
	var link *int64
	err := s.db.QueryRowContext(ctx,
		`SELECT long_term_task_id FROM tasks WHERE id = ?`, id).Scan(&link)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("querying task: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}

	if link != nil {
		if _, err := s.RecomputeLongTermProgress(ctx, *link); err != nil {
			return fmt.Errorf("recomputing progress: %w", err)
		}
	}

	s.logger.Debug("deleted task", "id", id)
	return nil
}

// ListTasks returns all tasks for a user, newest first.
func (s *SQLiteStore) ListTasks(ctx context.Context, userID int64) ([]*Task, error) {
	rows, err := s.db.QueryContext(ctx,
		taskSelect+" WHERE user_id = ? ORDER BY id DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ListTasksInRange returns tasks whose assigned date falls within
// [startDate, endDate], inclusive. Dates are YYYY-MM-DD strings.
func (s *SQLiteStore) ListTasksInRange(ctx context.Context, userID int64, startDate, endDate string) ([]*Task, error) {
	rows, err := s.db.QueryContext(ctx,
		taskSelect+` WHERE user_id = ? AND assigned_date >= ? AND assigned_date <= ?
			ORDER BY assigned_date, assigned_start_time`,
		userID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("querying tasks in range: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

const taskSelect = `
	SELECT id, user_id, title, COALESCE(description, ''), status,
		COALESCE(due_date, ''), COALESCE(assigned_date, ''),
		COALESCE(assigned_start_time, ''), COALESCE(assigned_end_time, ''),
		COALESCE(tags, ''), record_result, COALESCE(result, ''),
		COALESCE(result_picture_url, ''), long_term_task_id,
		created_at, updated_at
	FROM tasks`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var task Task
	var tags, pictures, createdAtStr, updatedAtStr string
	var recordResult int

	err := row.Scan(
		&task.ID, &task.UserID, &task.Title, &task.Description, &task.Status,
		&task.DueDate, &task.AssignedDate,
		&task.AssignedStartTime, &task.AssignedEndTime,
		&tags, &recordResult, &task.Result,
		&pictures, &task.LongTermTaskID,
		&createdAtStr, &updatedAtStr,
	)
	if err != nil {
		return nil, err
	}

	task.Tags = unmarshalStringList(tags)
	task.ResultPictureURLs = unmarshalStringList(pictures)
	task.RecordResult = recordResult != 0

	task.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	task.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &task, nil
}

func collectTasks(rows *sql.Rows) ([]*Task, error) {
	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ABOUTME: Long-term task CRUD and weighted progress recomputation
// ABOUTME: Progress derives from member task status and per-task weights

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// CreateLongTermTask inserts a long-term task. Tasks named in SubTaskWeights
// are linked to it and the initial progress is computed from their status.
func (s *SQLiteStore) CreateLongTermTask(ctx context.Context, task *LongTermTask) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	weights, err := marshalWeights(task.SubTaskWeights)
	if err != nil {
		return fmt.Errorf("encoding sub task weights: %w", err)
	}

	query := `
		INSERT INTO long_term_tasks (user_id, title, description, start_date, due_date, progress, sub_task_ids, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		task.UserID, task.Title, task.Description, task.StartDate, task.DueDate,
		task.Progress, weights,
		task.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting long-term task: %w", err)
	}
	task.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading long-term task id: %w", err)
	}

	if len(task.SubTaskWeights) > 0 {
		if err := s.syncMembership(ctx, task.ID, task.SubTaskWeights); err != nil {
			return err
		}
		progress, err := s.RecomputeLongTermProgress(ctx, task.ID)
		if err != nil {
			return fmt.Errorf("recomputing progress: %w", err)
		}
		task.Progress = progress
	}

	s.logger.Debug("created long-term task", "id", task.ID, "user_id", task.UserID)
	return nil
}

// GetLongTermTask retrieves a long-term task by ID. Returns ErrNotFound if absent.
func (s *SQLiteStore) GetLongTermTask(ctx context.Context, id int64) (*LongTermTask, error) {
	row := s.db.QueryRowContext(ctx, longTermSelect+" WHERE id = ?", id)
	task, err := scanLongTermTask(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying long-term task: %w", err)
	}
	return task, nil
}

// UpdateLongTermTask rewrites a long-term task. When SubTaskWeights is
// non-nil the task membership is synced to it and progress recomputed;
// previously linked tasks not in the new set are unlinked.
func (s *SQLiteStore) UpdateLongTermTask(ctx context.Context, task *LongTermTask) error {
	existing, err := s.GetLongTermTask(ctx, task.ID)
	if err != nil {
		return err
	}

	weights := task.SubTaskWeights
	if weights == nil {
		weights = existing.SubTaskWeights
	}
	encoded, err := marshalWeights(weights)
	if err != nil {
		return fmt.Errorf("encoding sub task weights: %w", err)
	}

	query := `
		UPDATE long_term_tasks SET
			title = ?, description = ?, start_date = ?, due_date = ?,
			progress = ?, sub_task_ids = ?
		WHERE id = ?
	`
	_, err = s.db.ExecContext(ctx, query,
		task.Title, task.Description, task.StartDate, task.DueDate,
		task.Progress, encoded, task.ID,
	)
	if err != nil {
		return fmt.Errorf("updating long-term task: %w", err)
	}

	if task.SubTaskWeights != nil {
		if err := s.syncMembership(ctx, task.ID, task.SubTaskWeights); err != nil {
			return err
		}
		progress, err := s.RecomputeLongTermProgress(ctx, task.ID)
		if err != nil {
			return fmt.Errorf("recomputing progress: %w", err)
		}
		task.Progress = progress
	}

	s.logger.Debug("updated long-term task", "id", task.ID)
	return nil
}

// DeleteLongTermTask removes a long-term task and unlinks its member tasks.
// Returns ErrNotFound if the task doesn't exist.
func (s *SQLiteStore) DeleteLongTermTask(ctx context.Context, id int64) error {
	if _, err := s.GetLongTermTask(ctx, id); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET long_term_task_id = NULL WHERE long_term_task_id = ?`, id); err != nil {
		return fmt.Errorf("unlinking tasks: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM long_term_tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting long-term task: %w", err)
	}

	s.logger.Debug("deleted long-term task", "id", id)
	return nil
}

// ListLongTermTasks returns a user's long-term tasks, newest first. With
// uncompletedOnly set, tasks at full progress are excluded.
func (s *SQLiteStore) ListLongTermTasks(ctx context.Context, userID int64, uncompletedOnly bool) ([]*LongTermTask, error) {
	query := longTermSelect + " WHERE user_id = ?"
	if uncompletedOnly {
		query += " AND progress < 1.0"
	}
	query += " ORDER BY id DESC"

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying long-term tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*LongTermTask
	for rows.Next() {
		task, err := scanLongTermTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning long-term task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// RecomputeLongTermProgress derives progress from the linked member tasks.
//
// Each member contributes its stored weight (default 1.0 for new members);
// a done task counts its full weight, a doing task half. When the total
// weight is at most 1.0 the progress is the completed weight itself,
// otherwise it is the completed/total ratio. With no members, progress
// resets to zero and the weight map is cleared.
func (s *SQLiteStore) RecomputeLongTermProgress(ctx context.Context, id int64) (float64, error) {
	task, err := s.GetLongTermTask(ctx, id)
	if err != nil {
		return 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status FROM tasks WHERE long_term_task_id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("querying member tasks: %w", err)
	}
	defer rows.Close()

	type member struct {
		id     int64
		status int
	}
	var members []member
	for rows.Next() {
		var m member
		if err := rows.Scan(&m.id, &m.status); err != nil {
			return 0, fmt.Errorf("scanning member task: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var progress float64
	weights := map[string]float64{}

	if len(members) > 0 {
		var totalWeight, completedWeight float64
		for _, m := range members {
			key := strconv.FormatInt(m.id, 10)
			weight, ok := task.SubTaskWeights[key]
			if !ok {
				weight = 1.0
			}
			switch m.status {
			case StatusDone:
				completedWeight += weight
			case StatusDoing:
				completedWeight += weight * 0.5
			}
			totalWeight += weight
			weights[key] = weight
		}

		if totalWeight <= 1.0 {
			progress = completedWeight
		} else {
			progress = completedWeight / totalWeight
		}
	}

	encoded, err := marshalWeights(weights)
	if err != nil {
		return 0, fmt.Errorf("encoding sub task weights: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE long_term_tasks SET progress = ?, sub_task_ids = ? WHERE id = ?`,
		progress, encoded, id)
	if err != nil {
		return 0, fmt.Errorf("storing progress: %w", err)
	}

	s.logger.Debug("recomputed progress", "id", id, "progress", progress)
	return progress, nil
}

// syncMembership links the tasks named in weights to the long-term task and
// unlinks members that are no longer named.
func (s *SQLiteStore) syncMembership(ctx context.Context, id int64, weights map[string]float64) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM tasks WHERE long_term_task_id = ?`, id)
	if err != nil {
		return fmt.Errorf("querying members: %w", err)
	}
	defer rows.Close()

	current := map[string]bool{}
	for rows.Next() {
		var taskID int64
		if err := rows.Scan(&taskID); err != nil {
			return fmt.Errorf("scanning member id: %w", err)
		}
		current[strconv.FormatInt(taskID, 10)] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for key := range weights {
		taskID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid task id %q in weights: %w", key, err)
		}
		if _, err := s.db.ExecContext(ctx,
			`UPDATE tasks SET long_term_task_id = ? WHERE id = ?`, id, taskID); err != nil {
			return fmt.Errorf("linking task %d: %w", taskID, err)
		}
		delete(current, key)
	}

	for key := range current {
		taskID, _ := strconv.ParseInt(key, 10, 64)
		if _, err := s.db.ExecContext(ctx,
			`UPDATE tasks SET long_term_task_id = NULL WHERE id = ?`, taskID); err != nil {
			return fmt.Errorf("unlinking task %d: %w", taskID, err)
		}
	}
	return nil
}

const longTermSelect = `
	SELECT id, user_id, title, COALESCE(description, ''),
		COALESCE(start_date, ''), COALESCE(due_date, ''),
		progress, COALESCE(sub_task_ids, ''), created_at
	FROM long_term_tasks`

func scanLongTermTask(row rowScanner) (*LongTermTask, error) {
	var task LongTermTask
	var weights, createdAtStr string

	err := row.Scan(
		&task.ID, &task.UserID, &task.Title, &task.Description,
		&task.StartDate, &task.DueDate,
		&task.Progress, &weights, &createdAtStr,
	)
	if err != nil {
		return nil, err
	}

	task.SubTaskWeights = map[string]float64{}
	if weights != "" {
		if err := json.Unmarshal([]byte(weights), &task.SubTaskWeights); err != nil {
			// Unreadable weight maps degrade to defaults rather than failing reads.
			task.SubTaskWeights = map[string]float64{}
		}
	}

	task.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &task, nil
}

func marshalWeights(weights map[string]float64) (string, error) {
	if weights == nil {
		weights = map[string]float64{}
	}
	b, err := json.Marshal(weights)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ABOUTME: Dialogue history and assistant config persistence
// ABOUTME: Turns serialize as JSON in the dialogue row's messages column

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskstream/assistant/internal/content"
)

// CreateDialogue inserts a dialogue with its current turns.
func (s *SQLiteStore) CreateDialogue(ctx context.Context, dialogue *Dialogue) error {
	if dialogue.Timestamp.IsZero() {
		dialogue.Timestamp = time.Now()
	}
	turns, err := marshalTurns(dialogue.Turns)
	if err != nil {
		return fmt.Errorf("encoding turns: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO dialogues (user_id, title, timestamp, messages) VALUES (?, ?, ?, ?)`,
		dialogue.UserID, dialogue.Title,
		dialogue.Timestamp.UTC().Format(time.RFC3339), turns)
	if err != nil {
		return fmt.Errorf("inserting dialogue: %w", err)
	}

	dialogue.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading dialogue id: %w", err)
	}
	s.logger.Debug("created dialogue", "id", dialogue.ID, "user_id", dialogue.UserID)
	return nil
}

// GetDialogue retrieves a dialogue by ID. Returns ErrNotFound if absent.
func (s *SQLiteStore) GetDialogue(ctx context.Context, id int64) (*Dialogue, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, COALESCE(title, ''), timestamp, messages FROM dialogues WHERE id = ?`, id)
	dialogue, err := scanDialogue(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying dialogue: %w", err)
	}
	return dialogue, nil
}

// AppendTurn adds one completed turn to a dialogue's history.
func (s *SQLiteStore) AppendTurn(ctx context.Context, dialogueID int64, turn content.Turn) error {
	dialogue, err := s.GetDialogue(ctx, dialogueID)
	if err != nil {
		return err
	}

	dialogue.Turns = append(dialogue.Turns, turn)
	turns, err := marshalTurns(dialogue.Turns)
	if err != nil {
		return fmt.Errorf("encoding turns: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE dialogues SET messages = ?, timestamp = ? WHERE id = ?`,
		turns, time.Now().UTC().Format(time.RFC3339), dialogueID)
	if err != nil {
		return fmt.Errorf("updating dialogue: %w", err)
	}

	s.logger.Debug("appended turn", "dialogue_id", dialogueID, "turns", len(dialogue.Turns))
	return nil
}

// RenameDialogue sets a dialogue's title. Returns ErrNotFound if absent.
func (s *SQLiteStore) RenameDialogue(ctx context.Context, id int64, title string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE dialogues SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return fmt.Errorf("renaming dialogue: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDialogues returns a user's dialogues, newest first.
func (s *SQLiteStore) ListDialogues(ctx context.Context, userID int64) ([]*Dialogue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, COALESCE(title, ''), timestamp, messages
			FROM dialogues WHERE user_id = ? ORDER BY id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying dialogues: %w", err)
	}
	defer rows.Close()

	var dialogues []*Dialogue
	for rows.Next() {
		dialogue, err := scanDialogue(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning dialogue: %w", err)
		}
		dialogues = append(dialogues, dialogue)
	}
	return dialogues, rows.Err()
}

// DeleteDialogue removes a dialogue by ID. Returns ErrNotFound if absent.
func (s *SQLiteStore) DeleteDialogue(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dialogues WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting dialogue: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDialogue(row rowScanner) (*Dialogue, error) {
	var dialogue Dialogue
	var timestampStr, turns string

	err := row.Scan(&dialogue.ID, &dialogue.UserID, &dialogue.Title, &timestampStr, &turns)
	if err != nil {
		return nil, err
	}

	dialogue.Timestamp, err = time.Parse(time.RFC3339, timestampStr)
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp: %w", err)
	}
	if turns != "" {
		if err := json.Unmarshal([]byte(turns), &dialogue.Turns); err != nil {
			return nil, fmt.Errorf("decoding turns: %w", err)
		}
	}
	return &dialogue, nil
}

func marshalTurns(turns []content.Turn) (string, error) {
	if turns == nil {
		turns = []content.Turn{}
	}
	b, err := json.Marshal(turns)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// GetAssistantConfig retrieves a user's assistant settings, or defaults if
// the user has never saved any.
func (s *SQLiteStore) GetAssistantConfig(ctx context.Context, userID int64) (*AssistantConfig, error) {
	var cfg AssistantConfig
	var enablePrompt, acCreate, acUpdate, acDelete, acReminder int
	var reminders string

	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, api_key, model, base_url,
			COALESCE(prompt, ''), COALESCE(character, ''), COALESCE(long_term_memory, ''),
			enable_prompt,
			auto_confirm_create, auto_confirm_update, auto_confirm_delete, auto_confirm_reminder,
			COALESCE(reminder_list, '')
		FROM assistant_configs WHERE user_id = ?`, userID,
	).Scan(
		&cfg.UserID, &cfg.APIKey, &cfg.Model, &cfg.BaseURL,
		&cfg.Prompt, &cfg.Character, &cfg.LongTermMemory,
		&enablePrompt,
		&acCreate, &acUpdate, &acDelete, &acReminder,
		&reminders,
	)
	if err == sql.ErrNoRows {
		return &AssistantConfig{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying assistant config: %w", err)
	}

	cfg.EnablePrompt = enablePrompt != 0
	cfg.AutoConfirm = AutoConfirm{
		Create:   acCreate != 0,
		Update:   acUpdate != 0,
		Delete:   acDelete != 0,
		Reminder: acReminder != 0,
	}
	if reminders != "" {
		if err := json.Unmarshal([]byte(reminders), &cfg.Reminders); err != nil {
			return nil, fmt.Errorf("decoding reminder list: %w", err)
		}
	}
	return &cfg, nil
}

// ListReminders returns every user's reminder list, keyed by user ID. Rows
// with an empty list are skipped. Used by the scheduler's resync pass.
func (s *SQLiteStore) ListReminders(ctx context.Context) (map[int64][]content.Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, reminder_list FROM assistant_configs
			WHERE reminder_list IS NOT NULL AND reminder_list NOT IN ('', '[]', 'null')`)
	if err != nil {
		return nil, fmt.Errorf("querying reminder lists: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]content.Reminder)
	for rows.Next() {
		var userID int64
		var raw string
		if err := rows.Scan(&userID, &raw); err != nil {
			return nil, fmt.Errorf("scanning reminder list: %w", err)
		}
		var reminders []content.Reminder
		if err := json.Unmarshal([]byte(raw), &reminders); err != nil {
			return nil, fmt.Errorf("decoding reminder list for user %d: %w", userID, err)
		}
		if len(reminders) > 0 {
			out[userID] = reminders
		}
	}
	return out, rows.Err()
}

// SaveAssistantConfig writes a user's assistant settings, replacing any
// previous row.
func (s *SQLiteStore) SaveAssistantConfig(ctx context.Context, cfg *AssistantConfig) error {
	reminders, err := marshalJSONText(cfg.Reminders)
	if err != nil {
		return fmt.Errorf("encoding reminder list: %w", err)
	}

	query := `
		INSERT INTO assistant_configs (
			user_id, api_key, model, base_url, prompt, character, long_term_memory,
			enable_prompt,
			auto_confirm_create, auto_confirm_update, auto_confirm_delete, auto_confirm_reminder,
			reminder_list
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			api_key = excluded.api_key,
			model = excluded.model,
			base_url = excluded.base_url,
			prompt = excluded.prompt,
			character = excluded.character,
			long_term_memory = excluded.long_term_memory,
			enable_prompt = excluded.enable_prompt,
			auto_confirm_create = excluded.auto_confirm_create,
			auto_confirm_update = excluded.auto_confirm_update,
			auto_confirm_delete = excluded.auto_confirm_delete,
			auto_confirm_reminder = excluded.auto_confirm_reminder,
			reminder_list = excluded.reminder_list
	`
	_, err = s.db.ExecContext(ctx, query,
		cfg.UserID, cfg.APIKey, cfg.Model, cfg.BaseURL,
		cfg.Prompt, cfg.Character, cfg.LongTermMemory,
		boolToInt(cfg.EnablePrompt),
		boolToInt(cfg.AutoConfirm.Create), boolToInt(cfg.AutoConfirm.Update),
		boolToInt(cfg.AutoConfirm.Delete), boolToInt(cfg.AutoConfirm.Reminder),
		reminders,
	)
	if err != nil {
		return fmt.Errorf("saving assistant config: %w", err)
	}
	s.logger.Debug("saved assistant config", "user_id", cfg.UserID)
	return nil
}

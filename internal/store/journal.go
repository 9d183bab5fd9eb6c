// ABOUTME: Journal and memo persistence for the SQLite store
// ABOUTME: Journals key on (date, user); memos are one row per user

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// GetJournal retrieves a user's journal for a date. Returns ErrNotFound if absent.
func (s *SQLiteStore) GetJournal(ctx context.Context, userID int64, date string) (*Journal, error) {
	var journal Journal
	err := s.db.QueryRowContext(ctx,
		`SELECT date, user_id, content FROM journals WHERE user_id = ? AND date = ?`,
		userID, date,
	).Scan(&journal.Date, &journal.UserID, &journal.Content)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	return &journal, nil
}

// UpsertJournal writes a journal entry, replacing any existing entry for the
// same user and date.
func (s *SQLiteStore) UpsertJournal(ctx context.Context, journal *Journal) error {
	query := `
		INSERT INTO journals (date, user_id, content)
		VALUES (?, ?, ?)
		ON CONFLICT(date, user_id) DO UPDATE SET content = excluded.content
	`
	if _, err := s.db.ExecContext(ctx, query,
		journal.Date, journal.UserID, journal.Content); err != nil {
		return fmt.Errorf("upserting journal: %w", err)
	}
	s.logger.Debug("wrote journal", "user_id", journal.UserID, "date", journal.Date)
	return nil
}

// ListJournalsInRange returns journals within [startDate, endDate], inclusive,
// ordered by date. Dates are YYYY-MM-DD strings.
func (s *SQLiteStore) ListJournalsInRange(ctx context.Context, userID int64, startDate, endDate string) ([]*Journal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, user_id, content FROM journals
			WHERE user_id = ? AND date >= ? AND date <= ?
			ORDER BY date`,
		userID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("querying journals: %w", err)
	}
	defer rows.Close()

	var journals []*Journal
	for rows.Next() {
		var journal Journal
		if err := rows.Scan(&journal.Date, &journal.UserID, &journal.Content); err != nil {
			return nil, fmt.Errorf("scanning journal: %w", err)
		}
		journals = append(journals, &journal)
	}
	return journals, rows.Err()
}

// GetMemo retrieves a user's memo. Returns an empty memo if none exists yet.
func (s *SQLiteStore) GetMemo(ctx context.Context, userID int64) (*Memo, error) {
	var memo Memo
	var updatedAtStr string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, COALESCE(content, ''), updated_at FROM memos WHERE user_id = ?`,
		userID,
	).Scan(&memo.UserID, &memo.Content, &updatedAtStr)
	if err == sql.ErrNoRows {
		return &Memo{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying memo: %w", err)
	}

	memo.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &memo, nil
}

// SetMemo writes a user's memo, replacing any previous content.
func (s *SQLiteStore) SetMemo(ctx context.Context, memo *Memo) error {
	memo.UpdatedAt = time.Now()
	query := `
		INSERT INTO memos (user_id, content, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			content = excluded.content,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query,
		memo.UserID, memo.Content,
		memo.UpdatedAt.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("writing memo: %w", err)
	}
	s.logger.Debug("wrote memo", "user_id", memo.UserID)
	return nil
}

// ABOUTME: Store interface and data types for taskstream persistence
// ABOUTME: Defines users, tasks, long-term tasks, journals, memos, and dialogues

package store

import (
	"context"
	"errors"
	"time"

	"github.com/taskstream/assistant/internal/content"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateUser is returned when creating a user whose username is taken
var ErrDuplicateUser = errors.New("username already exists")

// Task status values. The numeric codes are part of the persisted format.
const (
	StatusTodo  = 1
	StatusDoing = 2
	StatusDone  = 3
)

// User is an account holder
type User struct {
	ID           int64
	Username     string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// Task is a short-term task, optionally linked to a long-term task
type Task struct {
	ID                int64
	UserID            int64
	Title             string
	Description       string
	Status            int
	DueDate           string
	AssignedDate      string
	AssignedStartTime string
	AssignedEndTime   string
	Tags              []string
	RecordResult      bool
	Result            string
	ResultPictureURLs []string
	LongTermTaskID    *int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// LongTermTask is a long-running goal whose progress is derived from the
// weighted completion of its member tasks. SubTaskWeights maps the decimal
// string form of a task id to that task's weight.
type LongTermTask struct {
	ID             int64
	UserID         int64
	Title          string
	Description    string
	StartDate      string
	DueDate        string
	Progress       float64
	SubTaskWeights map[string]float64
	CreatedAt      time.Time
}

// Journal is one user's entry for one calendar date
type Journal struct {
	Date    string
	UserID  int64
	Content string
}

// Memo is a user's single free-form scratch note
type Memo struct {
	UserID    int64
	Content   string
	UpdatedAt time.Time
}

// Dialogue is one persisted conversation: an ordered list of completed turns
type Dialogue struct {
	ID        int64
	UserID    int64
	Title     string
	Timestamp time.Time
	Turns     []content.Turn
}

// AutoConfirm holds the per-category confirmation bypass switches
type AutoConfirm struct {
	Create   bool
	Update   bool
	Delete   bool
	Reminder bool
}

// AssistantConfig is a user's assistant settings: model access, persona,
// confirmation policy, long-term memory, and the reminder list.
type AssistantConfig struct {
	UserID         int64
	APIKey         string
	Model          string
	BaseURL        string
	Prompt         string
	Character      string
	LongTermMemory string
	EnablePrompt   bool
	AutoConfirm    AutoConfirm
	Reminders      []content.Reminder
}

// Store defines the persistence interface
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// Tasks
	CreateTask(ctx context.Context, task *Task) error
	GetTask(ctx context.Context, id int64) (*Task, error)
	UpdateTask(ctx context.Context, task *Task) error
	DeleteTask(ctx context.Context, id int64) error
	ListTasks(ctx context.Context, userID int64) ([]*Task, error)
	ListTasksInRange(ctx context.Context, userID int64, startDate, endDate string) ([]*Task, error)

	// Long-term tasks
	CreateLongTermTask(ctx context.Context, task *LongTermTask) error
	GetLongTermTask(ctx context.Context, id int64) (*LongTermTask, error)
	UpdateLongTermTask(ctx context.Context, task *LongTermTask) error
	DeleteLongTermTask(ctx context.Context, id int64) error
	ListLongTermTasks(ctx context.Context, userID int64, uncompletedOnly bool) ([]*LongTermTask, error)
	RecomputeLongTermProgress(ctx context.Context, id int64) (float64, error)

	// Journals
	GetJournal(ctx context.Context, userID int64, date string) (*Journal, error)
	UpsertJournal(ctx context.Context, journal *Journal) error
	ListJournalsInRange(ctx context.Context, userID int64, startDate, endDate string) ([]*Journal, error)

	// Memos
	GetMemo(ctx context.Context, userID int64) (*Memo, error)
	SetMemo(ctx context.Context, memo *Memo) error

	// Dialogues
	CreateDialogue(ctx context.Context, dialogue *Dialogue) error
	GetDialogue(ctx context.Context, id int64) (*Dialogue, error)
	AppendTurn(ctx context.Context, dialogueID int64, turn content.Turn) error
	RenameDialogue(ctx context.Context, id int64, title string) error
	ListDialogues(ctx context.Context, userID int64) ([]*Dialogue, error)
	DeleteDialogue(ctx context.Context, id int64) error

	// Assistant config
	GetAssistantConfig(ctx context.Context, userID int64) (*AssistantConfig, error)
	SaveAssistantConfig(ctx context.Context, cfg *AssistantConfig) error
	ListReminders(ctx context.Context) (map[int64][]content.Reminder, error)

	// Close releases any resources held by the store
	Close() error
}

// ABOUTME: Closed tagged union of card payloads over the known card types
// ABOUTME: Unknown types decode into OpaquePayload for forward compatibility

package content

import (
	"encoding/json"
)

// Payload is the type-specific body of an ActionCard. The set of
// implementations is closed over the known card types; anything else decodes
// into OpaquePayload.
type Payload interface {
	isPayload()
}

// TaskPayload is the full proposed task for a create-task card (type 1).
type TaskPayload struct {
	Title             string   `json:"title"`
	Description       string   `json:"description,omitempty"`
	DueDate           string   `json:"due_date,omitempty"`
	AssignedDate      string   `json:"assigned_date,omitempty"`
	AssignedStartTime string   `json:"assigned_start_time,omitempty"`
	AssignedEndTime   string   `json:"assigned_end_time,omitempty"`
	Tags              []string `json:"tags"`
	RecordResult      bool     `json:"record_result"`
	Result            string   `json:"result,omitempty"`
	ResultPictureURLs []string `json:"result_picture_url"`
	LongTermTaskID    *int64   `json:"long_term_task_id,omitempty"`
}

// ConfirmPayload is a generic confirmation card (type 2), used for deletes.
type ConfirmPayload struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	TargetID    int64  `json:"task_id"`
}

// UpdatePayload is an {original, updated} entity pair (type 3). The snapshots
// keep their entity-specific shape, so they stay raw JSON.
type UpdatePayload struct {
	Original json.RawMessage `json:"original"`
	Updated  json.RawMessage `json:"updated"`
}

// LongTermPayload is the full proposed long-term task (type 4).
type LongTermPayload struct {
	Title          string             `json:"title"`
	Description    string             `json:"description,omitempty"`
	StartDate      string             `json:"start_date,omitempty"`
	DueDate        string             `json:"due_date,omitempty"`
	Progress       float64            `json:"progress"`
	SubTaskWeights map[string]float64 `json:"sub_task_ids,omitempty"`
}

// JournalVersion is one side of a journal diff.
type JournalVersion struct {
	Date    string `json:"date"`
	UserID  int64  `json:"user_id"`
	Content string `json:"content"`
}

// JournalDiffPayload is a {before, after} journal pair (type 7).
type JournalDiffPayload struct {
	Before JournalVersion `json:"before"`
	After  JournalVersion `json:"after"`
}

// Reminder is a scheduled reminder entry. Schedule is a cron expression.
type Reminder struct {
	Schedule string `json:"schedule"`
	Message  string `json:"message"`
}

// ReminderPayload is a single reminder to append (type 8).
type ReminderPayload struct {
	Reminder
}

// ReminderListPayload is a full replacement reminder list (type 9).
type ReminderListPayload struct {
	Reminders []Reminder `json:"reminders"`
}

// OpaquePayload carries an unrecognized card body verbatim.
type OpaquePayload map[string]any

func (TaskPayload) isPayload()         {}
func (ConfirmPayload) isPayload()      {}
func (UpdatePayload) isPayload()       {}
func (LongTermPayload) isPayload()     {}
func (JournalDiffPayload) isPayload()  {}
func (ReminderPayload) isPayload()     {}
func (ReminderListPayload) isPayload() {}
func (OpaquePayload) isPayload()       {}

// decodePayload parses a raw card body according to the card type.
func decodePayload(t CardType, raw json.RawMessage) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch t {
	case CardCreateTask:
		var v TaskPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case CardConfirm:
		var v ConfirmPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case CardUpdate:
		var v UpdatePayload
		err = json.Unmarshal(raw, &v)
		p = v
	case CardCreateLongTerm:
		var v LongTermPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case CardUpdateJournal:
		var v JournalDiffPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case CardAddReminder:
		var v ReminderPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case CardReplaceReminders:
		var v ReminderListPayload
		err = json.Unmarshal(raw, &v)
		p = v
	default:
		var v OpaquePayload
		err = json.Unmarshal(raw, &v)
		p = v
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ABOUTME: Rebuilds provider message history from persisted mixed-content turns
// ABOUTME: Finalized cards replay as successful tool call/result pairs

package history

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/taskstream/assistant/internal/content"
	"github.com/taskstream/assistant/internal/llm"
)

// DefaultWindow is the number of most recent turns included per request.
const DefaultWindow = 10

// cardPlaceholder stands in for card types that have no tool equivalent.
const cardPlaceholder = "[Displayed a card]"

// Decode converts the last window turns into role-tagged messages the
// provider understands. Text segments become assistant content; cards replay
// as a tool call carrying the accumulated text, followed by a synthetic
// successful tool result. A window of 0 means DefaultWindow.
func Decode(turns []content.Turn, window int) []llm.Message {
	if window == 0 {
		window = DefaultWindow
	}
	if window > 0 && len(turns) > window {
		turns = turns[len(turns)-window:]
	}

	var messages []llm.Message
	for _, turn := range turns {
		messages = append(messages, llm.Message{
			Role:    llm.RoleUser,
			Content: turn.User,
		})
		messages = append(messages, decodeAssistant(turn.Assistant)...)
	}
	return messages
}

func decodeAssistant(items []content.Item) []llm.Message {
	var (
		messages  []llm.Message
		textParts []string
	)

	flushWith := func(call *llm.ToolCall) {
		text := strings.Join(textParts, "\n")
		textParts = nil
		if call == nil {
			if text != "" {
				messages = append(messages, llm.Message{
					Role:    llm.RoleAssistant,
					Content: text,
				})
			}
			return
		}
		messages = append(messages,
			llm.Message{
				Role:      llm.RoleAssistant,
				Content:   text,
				ToolCalls: []llm.ToolCall{*call},
			},
			llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Content:    fmt.Sprintf("Action %s completed successfully.", call.Function.Name),
			},
		)
	}

	for _, item := range items {
		if item.IsText() {
			if item.Text != "" {
				textParts = append(textParts, item.Text)
			}
			continue
		}

		name, args, ok := cardToToolCall(item.Card)
		if !ok {
			// No tool equivalent: keep the card visible as plain text.
			textParts = append(textParts, cardPlaceholder)
			continue
		}
		flushWith(&llm.ToolCall{
			ID:   "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
			Type: "function",
			Function: llm.FunctionCall{
				Name:      name,
				Arguments: args,
			},
		})
	}
	flushWith(nil)
	return messages
}

// cardToToolCall infers the tool invocation a finalized card stands for.
func cardToToolCall(card *content.ActionCard) (name string, args string, ok bool) {
	payload := map[string]any{}

	switch data := card.Data.(type) {
	case content.TaskPayload:
		name = "create_task"
		putNonEmpty(payload, "title", data.Title)
		putNonEmpty(payload, "description", data.Description)
		putNonEmpty(payload, "due_date", data.DueDate)
		if len(data.Tags) > 0 {
			payload["tags"] = data.Tags
		}
		if data.RecordResult {
			payload["record_result"] = true
		}
		if data.LongTermTaskID != nil {
			payload["long_term_task_id"] = *data.LongTermTaskID
		}

	case content.ConfirmPayload:
		if strings.HasPrefix(data.Title, "Delete long-term task") {
			name = "delete_long_term_task"
		} else {
			name = "delete_task"
		}
		payload["task_id"] = data.TargetID

	case content.UpdatePayload:
		name = "update_task"
		var updated map[string]any
		if err := json.Unmarshal(data.Updated, &updated); err == nil {
			for _, key := range []string{"id", "title", "description", "status", "due_date"} {
				if v, exists := updated[key]; exists && v != nil {
					payload[key] = v
				}
			}
		}

	case content.LongTermPayload:
		name = "create_long_term_task"
		putNonEmpty(payload, "title", data.Title)
		putNonEmpty(payload, "description", data.Description)
		putNonEmpty(payload, "start_date", data.StartDate)
		putNonEmpty(payload, "due_date", data.DueDate)
		if len(data.SubTaskWeights) > 0 {
			payload["sub_task_ids"] = data.SubTaskWeights
		}

	case content.JournalDiffPayload:
		name = "update_journal"
		putNonEmpty(payload, "date", data.After.Date)
		putNonEmpty(payload, "content", data.After.Content)

	case content.ReminderPayload:
		name = "add_reminder"
		putNonEmpty(payload, "schedule", data.Schedule)
		putNonEmpty(payload, "message", data.Message)

	case content.ReminderListPayload:
		name = "replace_reminder_list"
		payload["reminders"] = data.Reminders

	default:
		return "", "", false
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", "", false
	}
	return name, string(encoded), true
}

func putNonEmpty(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

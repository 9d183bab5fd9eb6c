// ABOUTME: Tests for history reconstruction from persisted turns
// ABOUTME: Covers card replay as tool calls, placeholders, and the window

package history

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskstream/assistant/internal/content"
	"github.com/taskstream/assistant/internal/llm"
)

func TestDecode_PlainTextTurn(t *testing.T) {
	turns := []content.Turn{{
		User:      "hello",
		Assistant: []content.Item{{Text: "hi there"}},
	}}

	messages := Decode(turns, 0)
	require.Len(t, messages, 2)
	assert.Equal(t, llm.RoleUser, messages[0].Role)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, llm.RoleAssistant, messages[1].Role)
	assert.Equal(t, "hi there", messages[1].Content)
}

func TestDecode_CardReplaysAsToolCallPair(t *testing.T) {
	turns := []content.Turn{{
		User: "add a task to buy milk",
		Assistant: []content.Item{
			{Text: "Sure, creating it now."},
			{Card: &content.ActionCard{
				Type:             content.CardCreateTask,
				ActionID:         "a1",
				UserConfirmation: content.ConfirmYes,
				Data:             content.TaskPayload{Title: "Buy milk", Tags: []string{"errand"}},
			}},
			{Text: "Done!"},
		},
	}}

	messages := Decode(turns, 0)
	require.Len(t, messages, 4)

	call := messages[1]
	assert.Equal(t, llm.RoleAssistant, call.Role)
	assert.Equal(t, "Sure, creating it now.", call.Content)
	require.Len(t, call.ToolCalls, 1)
	assert.Equal(t, "create_task", call.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"title":"Buy milk","tags":["errand"]}`, call.ToolCalls[0].Function.Arguments)
	assert.Contains(t, call.ToolCalls[0].ID, "call_")
	assert.Len(t, call.ToolCalls[0].ID, len("call_")+8)

	result := messages[2]
	assert.Equal(t, llm.RoleTool, result.Role)
	assert.Equal(t, call.ToolCalls[0].ID, result.ToolCallID)
	assert.Equal(t, "Action create_task completed successfully.", result.Content)

	trailing := messages[3]
	assert.Equal(t, llm.RoleAssistant, trailing.Role)
	assert.Equal(t, "Done!", trailing.Content)
	assert.Empty(t, trailing.ToolCalls)
}

func TestDecode_DeleteCardNamesByTitle(t *testing.T) {
	decode := func(title string) string {
		turns := []content.Turn{{
			User: "delete it",
			Assistant: []content.Item{{Card: &content.ActionCard{
				Type: content.CardConfirm,
				Data: content.ConfirmPayload{Title: title, TargetID: 4},
			}}},
		}}
		messages := Decode(turns, 0)
		require.Len(t, messages, 3)
		require.Len(t, messages[1].ToolCalls, 1)
		return messages[1].ToolCalls[0].Function.Name
	}

	assert.Equal(t, "delete_task", decode("Delete task: Buy milk"))
	assert.Equal(t, "delete_long_term_task", decode("Delete long-term task: Ship feature"))
}

func TestDecode_JournalCardUsesAfterVersion(t *testing.T) {
	turns := []content.Turn{{
		User: "update my journal",
		Assistant: []content.Item{{Card: &content.ActionCard{
			Type: content.CardUpdateJournal,
			Data: content.JournalDiffPayload{
				Before: content.JournalVersion{Date: "2026-08-27", Content: "old"},
				After:  content.JournalVersion{Date: "2026-08-27", Content: "new text"},
			},
		}}},
	}}

	messages := Decode(turns, 0)
	require.Len(t, messages, 3)
	assert.Equal(t, "update_journal", messages[1].ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"date":"2026-08-27","content":"new text"}`,
		messages[1].ToolCalls[0].Function.Arguments)
}

func TestDecode_UnknownCardBecomesPlaceholder(t *testing.T) {
	turns := []content.Turn{{
		User: "show me something",
		Assistant: []content.Item{
			{Text: "Here:"},
			{Card: &content.ActionCard{
				Type: content.CardType(6),
				Data: content.OpaquePayload{"whatever": 1.0},
			}},
		},
	}}

	messages := Decode(turns, 0)
	require.Len(t, messages, 2)
	assert.Equal(t, "Here:\n[Displayed a card]", messages[1].Content)
	assert.Empty(t, messages[1].ToolCalls)
}

func TestDecode_WindowKeepsMostRecentTurns(t *testing.T) {
	var turns []content.Turn
	for i := 0; i < 15; i++ {
		turns = append(turns, content.Turn{
			User:      fmt.Sprintf("message %d", i),
			Assistant: []content.Item{{Text: "ok"}},
		})
	}

	messages := Decode(turns, 0)
	// Default window of 10 turns, two messages each.
	require.Len(t, messages, 20)
	assert.Equal(t, "message 5", messages[0].Content)
	assert.Equal(t, "message 14", messages[18].Content)

	messages = Decode(turns, 3)
	require.Len(t, messages, 6)
	assert.Equal(t, "message 12", messages[0].Content)
}

func TestDecode_ReminderCards(t *testing.T) {
	turns := []content.Turn{{
		User: "remind me",
		Assistant: []content.Item{
			{Card: &content.ActionCard{
				Type: content.CardAddReminder,
				Data: content.ReminderPayload{Reminder: content.Reminder{
					Schedule: "0 9 * * *", Message: "stand up",
				}},
			}},
			{Card: &content.ActionCard{
				Type: content.CardReplaceReminders,
				Data: content.ReminderListPayload{Reminders: []content.Reminder{
					{Schedule: "0 21 * * *", Message: "journal"},
				}},
			}},
		},
	}}

	messages := Decode(turns, 0)
	require.Len(t, messages, 5)
	assert.Equal(t, "add_reminder", messages[1].ToolCalls[0].Function.Name)
	assert.Equal(t, "replace_reminder_list", messages[3].ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"reminders":[{"schedule":"0 21 * * *","message":"journal"}]}`,
		messages[3].ToolCalls[0].Function.Arguments)
}

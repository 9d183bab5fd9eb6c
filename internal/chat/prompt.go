// ABOUTME: System prompt assembly from character preset, custom prompt, and memory
// ABOUTME: Presets form a closed set; unknown names fall back to the default

package chat

import (
	"strings"
	"time"

	"github.com/taskstream/assistant/internal/store"
)

// characterPresets is the closed set of assistant personas.
var characterPresets = map[string]string{
	"default": "You are a capable personal assistant. You manage the user's tasks, " +
		"long-term goals, journals, reminders and memos through the tools provided. " +
		"Be concise and act on the user's behalf whenever a tool fits.",
	"gentle": "You are a warm, encouraging personal assistant. You manage the user's " +
		"tasks, long-term goals, journals, reminders and memos through the tools " +
		"provided. Be supportive, patient, and never pushy.",
	"formal": "You are a precise, professional personal assistant. You manage the " +
		"user's tasks, long-term goals, journals, reminders and memos through the " +
		"tools provided. Keep a businesslike tone and report results exactly.",
	"humorous": "You are a witty personal assistant with a light touch. You manage " +
		"the user's tasks, long-term goals, journals, reminders and memos through " +
		"the tools provided. Keep things fun, but get the work done.",
	"strict": "You are a no-nonsense personal assistant focused on execution. You " +
		"manage the user's tasks, long-term goals, journals, reminders and memos " +
		"through the tools provided. Hold the user accountable to their plans.",
}

// BuildSystemPrompt assembles the system message for a turn: persona, the
// user's custom prompt when enabled, long-term memory, and the current time.
func BuildSystemPrompt(cfg *store.AssistantConfig, now time.Time) string {
	persona, ok := characterPresets[cfg.Character]
	if !ok {
		persona = characterPresets["default"]
	}

	var b strings.Builder
	b.WriteString(persona)

	if cfg.EnablePrompt && cfg.Prompt != "" {
		b.WriteString("\n\n")
		b.WriteString(cfg.Prompt)
	}
	if cfg.LongTermMemory != "" {
		b.WriteString("\n\nThings you remember about the user:\n")
		b.WriteString(cfg.LongTermMemory)
	}

	b.WriteString("\n\nThe current time is ")
	b.WriteString(now.Format("2006-01-02 15:04 Monday"))
	b.WriteString(".")
	return b.String()
}

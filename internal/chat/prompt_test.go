// ABOUTME: Tests for system prompt assembly

package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/taskstream/assistant/internal/store"
)

func TestBuildSystemPrompt_Preset(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	prompt := BuildSystemPrompt(&store.AssistantConfig{Character: "strict"}, now)
	assert.Contains(t, prompt, "no-nonsense")
	assert.Contains(t, prompt, "2026-03-14 09:30 Saturday")
}

func TestBuildSystemPrompt_UnknownCharacterFallsBack(t *testing.T) {
	prompt := BuildSystemPrompt(&store.AssistantConfig{Character: "pirate"}, time.Now())
	assert.Contains(t, prompt, "capable personal assistant")
}

func TestBuildSystemPrompt_CustomPromptGate(t *testing.T) {
	cfg := &store.AssistantConfig{
		Character: "default",
		Prompt:    "Always answer in haiku.",
	}

	// Disabled custom prompt stays out.
	prompt := BuildSystemPrompt(cfg, time.Now())
	assert.NotContains(t, prompt, "haiku")

	cfg.EnablePrompt = true
	prompt = BuildSystemPrompt(cfg, time.Now())
	assert.Contains(t, prompt, "Always answer in haiku.")
}

func TestBuildSystemPrompt_LongTermMemory(t *testing.T) {
	cfg := &store.AssistantConfig{
		Character:      "gentle",
		LongTermMemory: "The user runs marathons.",
	}
	prompt := BuildSystemPrompt(cfg, time.Now())
	assert.Contains(t, prompt, "Things you remember about the user:")
	assert.Contains(t, prompt, "The user runs marathons.")
}

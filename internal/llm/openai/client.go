// ABOUTME: OpenAI-compatible chat completions client
// ABOUTME: Supports blocking completion and SSE streaming with tool-call assembly

package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/taskstream/assistant/internal/llm"
)

// Client implements the llm.Provider interface for OpenAI-compatible APIs.
type Client struct {
	config     *llm.Config
	httpClient *http.Client
}

// New creates a new OpenAI-compatible client with the given configuration.
func New(config *llm.Config) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// chatRequest is the OpenAI chat completions request body.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Tools       []llm.Tool    `json:"tools,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float32      `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// chatResponse is the OpenAI chat completions response body.
type chatResponse struct {
	Choices []choice      `json:"choices"`
	Usage   responseUsage `json:"usage"`
}

// choice represents a single completion choice.
type choice struct {
	Message responseMessage `json:"message"`
}

// responseMessage is the OpenAI message format in responses.
type responseMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ToolCalls []llm.ToolCall `json:"tool_calls,omitempty"`
}

// responseUsage is the OpenAI token usage format.
type responseUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// streamChunk is one SSE data frame of a streaming completion.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string          `json:"content"`
			ToolCalls []toolCallDelta `json:"tool_calls,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *responseUsage `json:"usage"`
}

// toolCallDelta is a fragment of a tool call; fragments for the same call
// share an index and their argument strings concatenate.
type toolCallDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

func (c *Client) newRequest(ctx context.Context, reqBody chatRequest) (*http.Request, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	return req, nil
}

func (c *Client) baseRequest(messages []llm.Message, tools []llm.Tool) chatRequest {
	reqBody := chatRequest{
		Model:    c.config.Model,
		Messages: messages,
	}
	if len(tools) > 0 {
		reqBody.Tools = tools
	}
	if c.config.MaxTokens > 0 {
		reqBody.MaxTokens = c.config.MaxTokens
	}
	if c.config.Temperature != 0 {
		temp := c.config.Temperature
		reqBody.Temperature = &temp
	}
	return reqBody
}

// Complete sends a chat completion request and returns the full response.
func (c *Client) Complete(ctx context.Context, messages []llm.Message, tools []llm.Tool) (*llm.Response, error) {
	req, err := c.newRequest(ctx, c.baseRequest(messages, tools))
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	msg := chatResp.Choices[0].Message
	return &llm.Response{
		Content:   msg.Content,
		ToolCalls: msg.ToolCalls,
		Usage: llm.Usage{
			InputTokens:  chatResp.Usage.PromptTokens,
			OutputTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:  chatResp.Usage.TotalTokens,
		},
	}, nil
}

// Stream sends a streaming chat completion request. Text deltas are forwarded
// to onText as they arrive; tool-call fragments are assembled by index and
// returned on the final response alongside the full concatenated text.
func (c *Client) Stream(ctx context.Context, messages []llm.Message, tools []llm.Tool, onText llm.TextFunc) (*llm.Response, error) {
	reqBody := c.baseRequest(messages, tools)
	reqBody.Stream = true

	req, err := c.newRequest(ctx, reqBody)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var (
		text    strings.Builder
		calls   []llm.ToolCall
		byIndex = map[int]int{}
		usage   llm.Usage
		scanner = bufio.NewScanner(resp.Body)
	)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil, fmt.Errorf("parsing stream chunk: %w", err)
		}
		if chunk.Usage != nil {
			usage = llm.Usage{
				InputTokens:  chunk.Usage.PromptTokens,
				OutputTokens: chunk.Usage.CompletionTokens,
				TotalTokens:  chunk.Usage.TotalTokens,
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta

		if delta.Content != "" {
			text.WriteString(delta.Content)
			if onText != nil {
				if err := onText(delta.Content); err != nil {
					return nil, err
				}
			}
		}

		for _, frag := range delta.ToolCalls {
			pos, ok := byIndex[frag.Index]
			if !ok {
				pos = len(calls)
				byIndex[frag.Index] = pos
				calls = append(calls, llm.ToolCall{Type: "function"})
			}
			if frag.ID != "" {
				calls[pos].ID = frag.ID
			}
			if frag.Type != "" {
				calls[pos].Type = frag.Type
			}
			if frag.Function.Name != "" {
				calls[pos].Function.Name = frag.Function.Name
			}
			calls[pos].Function.Arguments += frag.Function.Arguments
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stream: %w", err)
	}

	return &llm.Response{
		Content:   text.String(),
		ToolCalls: calls,
		Usage:     usage,
	}, nil
}

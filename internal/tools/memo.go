// ABOUTME: Memo tool: read-only access to the user's scratch note

package tools

import (
	"context"
	"encoding/json"
)

// GetMemo reads the user's memo.
type GetMemo struct{ g *Gateway }

func (t *GetMemo) Name() string        { return "get_memo" }
func (t *GetMemo) Description() string { return "Read the user's memo note." }
func (t *GetMemo) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *GetMemo) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	memo, err := t.g.Store.GetMemo(ctx, t.g.UserID)
	if err != nil {
		return "", err
	}
	if memo.Content == "" {
		return "The memo is empty.", nil
	}
	return "Memo content: " + memo.Content, nil
}

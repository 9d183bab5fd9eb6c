// ABOUTME: JSON codecs matching the persisted mixed-content format
// ABOUTME: Items marshal as {type, data} objects, turns as two role-tagged entries

package content

import (
	"encoding/json"
	"fmt"
)

// wireItem is the persisted/wire shape of a mixed-content item.
type wireItem struct {
	Type             CardType        `json:"type"`
	ActionID         string          `json:"action_id,omitempty"`
	UserConfirmation string          `json:"user_confirmation,omitempty"`
	Data             json.RawMessage `json:"data"`
}

// MarshalJSON encodes a text segment as {"type":0,"data":{"content":…}} and a
// card as {"type":N,"action_id":…,"user_confirmation":…,"data":{…}}.
func (i Item) MarshalJSON() ([]byte, error) {
	if i.IsText() {
		data, err := json.Marshal(map[string]string{"content": i.Text})
		if err != nil {
			return nil, err
		}
		return json.Marshal(wireItem{Type: CardText, Data: data})
	}
	return json.Marshal(i.Card)
}

// UnmarshalJSON decodes the persisted item shape back into Item.
func (i *Item) UnmarshalJSON(b []byte) error {
	var w wireItem
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if w.Type == CardText {
		var body struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal(w.Data, &body); err != nil {
			return err
		}
		*i = Item{Text: body.Content}
		return nil
	}
	payload, err := decodePayload(w.Type, w.Data)
	if err != nil {
		return fmt.Errorf("decoding card type %d payload: %w", w.Type, err)
	}
	*i = Item{Card: &ActionCard{
		Type:             w.Type,
		ActionID:         w.ActionID,
		UserConfirmation: w.UserConfirmation,
		Data:             payload,
	}}
	return nil
}

// MarshalJSON encodes the card in the wire shape.
func (c *ActionCard) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(c.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireItem{
		Type:             c.Type,
		ActionID:         c.ActionID,
		UserConfirmation: c.UserConfirmation,
		Data:             data,
	})
}

// UnmarshalJSON decodes a card from the wire shape.
func (c *ActionCard) UnmarshalJSON(b []byte) error {
	var item Item
	if err := item.UnmarshalJSON(b); err != nil {
		return err
	}
	if item.Card == nil {
		return fmt.Errorf("expected card, got text segment")
	}
	*c = *item.Card
	return nil
}

// turnEntry is one role-tagged entry of a persisted turn.
type turnEntry struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// MarshalJSON persists a turn as the two-entry array
// [{"role":"user","content":…}, {"role":"assistant","content":[…]}].
func (t Turn) MarshalJSON() ([]byte, error) {
	user, err := json.Marshal(t.User)
	if err != nil {
		return nil, err
	}
	assistant, err := json.Marshal(t.Assistant)
	if err != nil {
		return nil, err
	}
	return json.Marshal([]turnEntry{
		{Role: "user", Content: user},
		{Role: "assistant", Content: assistant},
	})
}

// UnmarshalJSON reads the persisted two-entry turn shape. Assistant content
// that is a bare string (legacy turns) becomes a single text segment.
func (t *Turn) UnmarshalJSON(b []byte) error {
	var entries []turnEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return err
	}
	out := Turn{}
	for _, e := range entries {
		switch e.Role {
		case "user":
			if err := json.Unmarshal(e.Content, &out.User); err != nil {
				return fmt.Errorf("decoding user content: %w", err)
			}
		case "assistant":
			var items []Item
			if err := json.Unmarshal(e.Content, &items); err != nil {
				var plain string
				if err2 := json.Unmarshal(e.Content, &plain); err2 != nil {
					return fmt.Errorf("decoding assistant content: %w", err)
				}
				items = []Item{{Text: plain}}
			}
			out.Assistant = items
		}
	}
	*t = out
	return nil
}

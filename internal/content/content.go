// ABOUTME: Mixed-content types shared by streaming, tools, history, and persistence
// ABOUTME: Defines ActionCard, the card payload union, Item, and Turn

package content

import (
	"errors"
)

// ErrEmptyText is returned when an empty text segment would be stored.
var ErrEmptyText = errors.New("empty text segment")

// CardType identifies the kind of proposed mutation an ActionCard carries.
// The numeric values are part of the persisted and wire formats.
type CardType int

const (
	// CardText is the pseudo-type used on the wire for text segments (type 0).
	CardText CardType = 0

	CardCreateTask       CardType = 1 // full proposed task
	CardConfirm          CardType = 2 // generic confirmation, used for deletes
	CardUpdate           CardType = 3 // {original, updated} entity pair
	CardCreateLongTerm   CardType = 4 // full proposed long-term task
	CardUpdateJournal    CardType = 7 // {before, after} journal versions
	CardAddReminder      CardType = 8 // single reminder to append
	CardReplaceReminders CardType = 9 // full replacement reminder list
)

// Confirmation states recorded on a finalized card.
const (
	ConfirmYes = "Y"
	ConfirmNo  = "N"
)

// ActionCard is a proposed mutation rendered to the client. UserConfirmation
// is set exactly once, when the confirmation gate resolves.
type ActionCard struct {
	Type             CardType
	ActionID         string
	UserConfirmation string
	Data             Payload
}

// Item is one element of a turn's assistant content: a text segment or a
// card, in production order. Exactly one field is set.
type Item struct {
	Text string
	Card *ActionCard
}

// IsText reports whether the item is a text segment.
func (i Item) IsText() bool { return i.Card == nil }

// Turn is one user message plus the assistant's full mixed-content response.
type Turn struct {
	User      string
	Assistant []Item
}

// PlainText concatenates all text segments of the assistant content, in order.
func (t Turn) PlainText() string {
	var out string
	for _, item := range t.Assistant {
		if item.IsText() {
			out += item.Text
		}
	}
	return out
}

// ABOUTME: Per-turn ordered event stream with a mixed text/card record
// ABOUTME: Producers publish deltas and cards; one consumer drains for SSE delivery

package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskstream/assistant/internal/action"
	"github.com/taskstream/assistant/internal/content"
)

// ErrStreamClosed is returned when publishing after a terminal event.
var ErrStreamClosed = errors.New("stream already closed")

// Event names delivered over SSE, in grammar order.
const (
	EventReady       = "ready"
	EventStart       = "start"
	EventPartialText = "partial_text"
	EventCards       = "cards"
	EventTextDone    = "text_done"
	EventEnd         = "end"
	EventError       = "error"
)

// Event is one SSE event: a name and a pre-marshaled JSON payload.
type Event struct {
	Name string
	Data []byte
}

// Stream is the ordered event channel and mixed-content record for a single
// turn. Exactly one of EndStream or SendError terminates it; later publishes
// fail with ErrStreamClosed and later Recv calls drain then report io.EOF.
//
// The internal queue is unbounded, so publishers never block on a slow
// consumer; the consumer goroutine runs independently and each published
// event is visible to it before the publisher's next blocking operation.
type Stream struct {
	actions        *action.Registry
	confirmTimeout time.Duration
	logger         *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Event
	done    bool
	items   []content.Item
	textBuf strings.Builder
}

// New creates a stream for one turn. Cards sent with needConfirm suspend on
// the given registry for up to confirmTimeout.
func New(actions *action.Registry, confirmTimeout time.Duration, logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Stream{
		actions:        actions,
		confirmTimeout: confirmTimeout,
		logger:         logger.With("component", "stream"),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Start publishes the turn-start event carrying the dialogue id.
func (s *Stream) Start(dialogueID int64) error {
	return s.publish(EventStart, map[string]any{"dialogue_id": dialogueID})
}

// StreamText publishes a text delta and appends it to the open text segment.
func (s *Stream) StreamText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return ErrStreamClosed
	}
	s.textBuf.WriteString(text)
	return s.enqueueLocked(EventPartialText, map[string]any{
		"content":  text,
		"delta":    text,
		"finished": false,
	})
}

// SendCard closes the open text segment, records the card, publishes it, and
// if needConfirm suspends until the user resolves it or the timeout elapses.
// The recorded card is finalized with "Y" or "N" before SendCard returns.
func (s *Stream) SendCard(ctx context.Context, card *content.ActionCard, needConfirm bool) (bool, error) {
	if card.ActionID == "" {
		card.ActionID = uuid.NewString()
	}
	if !needConfirm {
		card.UserConfirmation = content.ConfirmYes
	}

	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return false, ErrStreamClosed
	}
	s.flushTextLocked()
	// Stored by pointer: the confirmation written below lands in the record.
	s.items = append(s.items, content.Item{Card: card})

	cardJSON, err := json.Marshal(card)
	if err != nil {
		s.mu.Unlock()
		return false, err
	}
	if err := s.enqueueLocked(EventCards, map[string]any{
		"cards": []json.RawMessage{cardJSON},
	}); err != nil {
		s.mu.Unlock()
		return false, err
	}
	s.mu.Unlock()

	if !needConfirm {
		return true, nil
	}

	s.logger.Debug("waiting for confirmation", "action_id", card.ActionID)
	confirmed := s.actions.Wait(ctx, card.ActionID, s.confirmTimeout)

	s.mu.Lock()
	if confirmed {
		card.UserConfirmation = content.ConfirmYes
	} else {
		card.UserConfirmation = content.ConfirmNo
	}
	s.mu.Unlock()
	return confirmed, nil
}

// EndStream closes the turn normally: text_done with the full concatenated
// text, then end with the dialogue id. A second terminal call is a no-op.
func (s *Stream) EndStream(dialogueID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.flushTextLocked()

	var all strings.Builder
	for _, item := range s.items {
		if item.IsText() {
			all.WriteString(item.Text)
		}
	}
	s.enqueueLocked(EventTextDone, map[string]any{"content": all.String()})
	s.enqueueLocked(EventEnd, map[string]any{"dialogue_id": dialogueID})
	s.done = true
	s.cond.Broadcast()
}

// SendError closes the turn with an error event. No-op if already terminated,
// so a failure after a normal close never corrupts the grammar.
func (s *Stream) SendError(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.enqueueLocked(EventError, map[string]any{"message": message})
	s.done = true
	s.cond.Broadcast()
}

// FinalContent returns the ordered mixed record: coalesced text segments and
// finalized cards. Call after the stream has terminated.
func (s *Stream) FinalContent() []content.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushTextLocked()
	out := make([]content.Item, len(s.items))
	copy(out, s.items)
	return out
}

// Recv returns the next event in publication order. After the terminal event
// has been drained it returns io.EOF; context cancellation returns ctx.Err().
func (s *Stream) Recv(ctx context.Context) (Event, error) {
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue = s.queue[1:]
			return ev, nil
		}
		if s.done {
			return Event{}, io.EOF
		}
		if err := ctx.Err(); err != nil {
			return Event{}, err
		}
		s.cond.Wait()
	}
}

// flushTextLocked coalesces the accumulated deltas into one text item.
func (s *Stream) flushTextLocked() {
	if s.textBuf.Len() == 0 {
		return
	}
	s.items = append(s.items, content.Item{Text: s.textBuf.String()})
	s.textBuf.Reset()
}

func (s *Stream) publish(name string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return ErrStreamClosed
	}
	return s.enqueueLocked(name, payload)
}

func (s *Stream) enqueueLocked(name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	s.queue = append(s.queue, Event{Name: name, Data: data})
	s.cond.Broadcast()
	return nil
}

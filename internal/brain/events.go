package brain

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
)

type EventType string

const (
	EventConversationID EventType = "conversation_id"
	EventText           EventType = "text"
	EventAnalyzing      EventType = "analyzing"
	EventMetadata       EventType = "metadata"
	EventDone           EventType = "done"
	EventError          EventType = "error"
)

// Terminal reports whether no event may follow t.
func (t EventType) Terminal() bool {
	return t == EventDone || t == EventError
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Event is one server-sent chat event. Only the fields of its Type are encoded.
type Event struct {
	Type           EventType
	ConversationID int64
	Content        string
	Insights       []model.Insight
	MessageID      *int64
	Usage          Usage
	Error          string
}

func (e Event) MarshalJSON() ([]byte, error) {
	payload := map[string]any{"type": e.Type}
	switch e.Type {
	case EventConversationID:
		payload["conversation_id"] = strconv.FormatInt(e.ConversationID, 10)
	case EventText:
		payload["content"] = e.Content
	case EventMetadata:
		insights := e.Insights
		if insights == nil {
			insights = []model.Insight{}
		}
		payload["insights"] = insights
	case EventDone:
		if e.MessageID != nil {
			payload["message_id"] = strconv.FormatInt(*e.MessageID, 10)
		} else {
			payload["message_id"] = nil
		}
		payload["usage"] = e.Usage
	case EventError:
		payload["error"] = e.Error
	}
	return json.Marshal(payload)
}

// EventSink receives chat events in order. A Send error means the client is
// gone; the pipeline stops relaying but still persists what it has.
type EventSink interface {
	Send(ctx context.Context, ev Event) error
}

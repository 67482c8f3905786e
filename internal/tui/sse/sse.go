// Package sse reads the chat endpoints' event stream.
package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
)

// ErrNoTerminalEvent means the stream ended without done or error.
var ErrNoTerminalEvent = errors.New("stream ended before done or error event")

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Event is one decoded `data:` frame. Fields not used by Type are zero.
type Event struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Content        string          `json:"content,omitempty"`
	Insights       []model.Insight `json:"insights,omitempty"`
	MessageID      *string         `json:"message_id,omitempty"`
	Usage          *Usage          `json:"usage,omitempty"`
	Error          string          `json:"error,omitempty"`
}

func (e Event) Terminal() bool {
	return e.Type == "done" || e.Type == "error"
}

// Read calls fn for every event in r until a terminal event, EOF, ctx is
// done or fn fails. Frames may span several data lines; they are joined with
// newlines as the SSE format requires.
func Read(ctx context.Context, r io.Reader, fn func(Event) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data []string
	flush := func() (bool, error) {
		if len(data) == 0 {
			return false, nil
		}
		payload := strings.Join(data, "\n")
		data = data[:0]

		var ev Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return false, fmt.Errorf("decoding event %q: %w", payload, err)
		}
		if err := fn(ev); err != nil {
			return false, err
		}
		return ev.Terminal(), nil
	}

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Text()
		switch {
		case line == "":
			done, err := flush()
			if err != nil || done {
				return err
			}
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stream: %w", err)
	}

	done, err := flush()
	if err != nil {
		return err
	}
	if !done {
		return ErrNoTerminalEvent
	}
	return nil
}

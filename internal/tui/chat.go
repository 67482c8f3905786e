package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/tui/sse"
)

// ChatPrinter writes a streamed chat turn to a terminal. Live mode echoes
// text deltas as they arrive; otherwise the answer is rendered as markdown
// once complete.
type ChatPrinter struct {
	out      io.Writer
	live     bool
	renderer *glamour.TermRenderer

	text           strings.Builder
	ConversationID string
	MessageID      string
	Insights       []model.Insight
	Usage          sse.Usage
	Err            string
}

func NewChatPrinter(out io.Writer, live bool, width int) *ChatPrinter {
	p := &ChatPrinter{out: out, live: live}
	if !live {
		if width <= 0 {
			width = 80
		}
		p.renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
	}
	return p
}

// Text is the answer accumulated so far.
func (p *ChatPrinter) Text() string {
	return p.text.String()
}

// Handle is an sse.Read callback.
func (p *ChatPrinter) Handle(ev sse.Event) error {
	switch ev.Type {
	case "conversation_id":
		p.ConversationID = ev.ConversationID
	case "text":
		p.text.WriteString(ev.Content)
		if p.live {
			fmt.Fprint(p.out, ev.Content)
		}
	case "analyzing":
		if p.live {
			fmt.Fprintln(p.out)
		}
		fmt.Fprintln(p.out, hintStyle.Render("Analyzing for suggested updates..."))
	case "metadata":
		p.Insights = ev.Insights
	case "done":
		if ev.MessageID != nil {
			p.MessageID = *ev.MessageID
		}
		if ev.Usage != nil {
			p.Usage = *ev.Usage
		}
		p.finish()
	case "error":
		p.Err = ev.Error
		p.finish()
		fmt.Fprintln(p.out, errorStyle.Render("error: "+ev.Error))
	}
	return nil
}

func (p *ChatPrinter) finish() {
	if p.live {
		fmt.Fprintln(p.out)
	} else if p.text.Len() > 0 {
		rendered := p.text.String()
		if p.renderer != nil {
			if r, err := p.renderer.Render(rendered); err == nil {
				rendered = r
			}
		}
		fmt.Fprint(p.out, rendered)
	}
	if len(p.Insights) > 0 {
		fmt.Fprint(p.out, FormatInsights(p.Insights))
	}
}

// FormatInsights lists proposed changes one per line.
func FormatInsights(insights []model.Insight) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Suggested updates"))
	b.WriteString("\n")
	for _, in := range insights {
		u := in.SuggestedUpdate
		head := fmt.Sprintf("[%s/%s %.0f%%]", in.Type, in.Action, in.Confidence*100)
		line := fmt.Sprintf("%s %s", head, u.EntityName)
		if u.Field != "" {
			line += fmt.Sprintf(": %s", u.Field)
			if u.CurrentValue != nil {
				line += fmt.Sprintf(" %v →", u.CurrentValue)
			}
			line += fmt.Sprintf(" %v", u.SuggestedValue)
		}
		b.WriteString("  " + line + "\n")
		if u.Reason != "" {
			b.WriteString("    " + hintStyle.Render(u.Reason) + "\n")
		}
	}
	return b.String()
}

package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/brain"
	"github.com/gin-gonic/gin"
)

// sseSink writes pipeline events as `data: <json>\n\n` frames and flushes
// after each one so deltas reach the client unbuffered.
type sseSink struct {
	w gin.ResponseWriter
}

func newSSESink(c *gin.Context) *sseSink {
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(200)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()
	return &sseSink{w: c.Writer}
}

func (s *sseSink) Send(ctx context.Context, ev brain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", ev.Type, err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("writing %s event: %w", ev.Type, err)
	}
	s.w.Flush()
	return nil
}

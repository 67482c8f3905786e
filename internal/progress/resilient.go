package progress

import (
	"context"
	"errors"
	"log/slog"
)

// Resilient wraps a store so failures never reach the wizard: reads fall back
// to "nothing saved" and writes are dropped. Every failure is logged.
type Resilient struct {
	inner Store
}

func NewResilient(inner Store) *Resilient {
	return &Resilient{inner: inner}
}

func (r *Resilient) Load(ctx context.Context, id SessionID) (*Snapshot, error) {
	snap, err := r.inner.Load(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNoSnapshot) {
			slog.WarnContext(ctx, "progress load failed, starting fresh",
				"session_id", id, "error", err)
		}
		return nil, ErrNoSnapshot
	}
	return snap, nil
}

func (r *Resilient) Save(ctx context.Context, snap Snapshot) error {
	if err := r.inner.Save(ctx, snap); err != nil {
		slog.WarnContext(ctx, "progress save failed",
			"session_id", snap.SessionID, "error", err)
	}
	return nil
}

func (r *Resilient) Delete(ctx context.Context, id SessionID) error {
	if err := r.inner.Delete(ctx, id); err != nil {
		slog.WarnContext(ctx, "progress delete failed",
			"session_id", id, "error", err)
	}
	return nil
}

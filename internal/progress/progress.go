// Package progress persists in-progress wizard answers so a reload or a
// crashed terminal never loses work.
package progress

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
)

// ErrNoSnapshot is returned by Load when nothing was saved for the session.
var ErrNoSnapshot = errors.New("no saved progress for session")

var ErrInvalidSessionID = errors.New("invalid session id")

// SessionID identifies one wizard session. It is created once and passed
// explicitly to everything that reads or writes progress.
type SessionID string

func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// ParseSessionID accepts only UUIDs so keys stay well-formed.
func ParseSessionID(s string) (SessionID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", ErrInvalidSessionID
	}
	return SessionID(u.String()), nil
}

// Snapshot is the full wizard position. Loading one replaces the in-memory
// state; it is never merged field by field.
type Snapshot struct {
	SessionID    SessionID     `json:"session_id"`
	Answers      model.Answers `json:"answers"`
	CurrentStep  int           `json:"current_step"`
	FurthestStep int           `json:"furthest_step"`
	SavedAt      time.Time     `json:"saved_at"`
}

type Store interface {
	Load(ctx context.Context, id SessionID) (*Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
	Delete(ctx context.Context, id SessionID) error
}

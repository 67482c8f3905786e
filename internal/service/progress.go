package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/progress"
)

var ErrInvalidProgress = errors.New("invalid progress snapshot")

// ProgressService is the server-side mirror of the wizard's progress store.
type ProgressService interface {
	Load(ctx context.Context, sessionID string) (*progress.Snapshot, error)
	Save(ctx context.Context, sessionID string, answers model.Answers, currentStep, furthestStep int) (*progress.Snapshot, error)
	Delete(ctx context.Context, sessionID string) error
}

type progressService struct {
	store   progress.Store
	catalog CatalogProvider
	now     func() time.Time
}

func NewProgressService(store progress.Store, catalog CatalogProvider) ProgressService {
	return &progressService{store: store, catalog: catalog, now: time.Now}
}

func (s *progressService) Load(ctx context.Context, sessionID string) (*progress.Snapshot, error) {
	sid, err := progress.ParseSessionID(sessionID)
	if err != nil {
		return nil, err
	}
	return s.store.Load(ctx, sid)
}

// Save replaces the snapshot. Steps must lie within the current catalog and
// the current step may not pass the furthest one reached.
func (s *progressService) Save(ctx context.Context, sessionID string, answers model.Answers, currentStep, furthestStep int) (*progress.Snapshot, error) {
	sid, err := progress.ParseSessionID(sessionID)
	if err != nil {
		return nil, err
	}

	total := s.catalog.Current().TotalSteps()
	if furthestStep < currentStep {
		furthestStep = currentStep
	}
	if currentStep < 1 || furthestStep > total {
		return nil, fmt.Errorf("%w: steps must be between 1 and %d", ErrInvalidProgress, total)
	}
	if answers == nil {
		answers = model.Answers{}
	}

	snap := progress.Snapshot{
		SessionID:    sid,
		Answers:      answers,
		CurrentStep:  currentStep,
		FurthestStep: furthestStep,
		SavedAt:      s.now().UTC(),
	}
	if err := s.store.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("saving progress: %w", err)
	}
	return &snap, nil
}

func (s *progressService) Delete(ctx context.Context, sessionID string) error {
	sid, err := progress.ParseSessionID(sessionID)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, sid)
}

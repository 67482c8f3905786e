package service_test

import (
	"context"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/progress"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/service"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/store"
)

type mockAssessmentStore struct {
	createFn  func(ctx context.Context, a *model.Assessment) error
	getByIDFn func(ctx context.Context, id int64) (*model.Assessment, error)
}

func (m *mockAssessmentStore) Create(ctx context.Context, a *model.Assessment) error {
	if m.createFn != nil {
		return m.createFn(ctx, a)
	}
	return nil
}

func (m *mockAssessmentStore) GetByID(ctx context.Context, id int64) (*model.Assessment, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

type mockResponseStore struct {
	createBatchFn func(ctx context.Context, responses []model.Response) error
	listFn        func(ctx context.Context, assessmentID int64) ([]model.Response, error)
}

func (m *mockResponseStore) CreateBatch(ctx context.Context, responses []model.Response) error {
	if m.createBatchFn != nil {
		return m.createBatchFn(ctx, responses)
	}
	return nil
}

func (m *mockResponseStore) ListByAssessment(ctx context.Context, assessmentID int64) ([]model.Response, error) {
	if m.listFn != nil {
		return m.listFn(ctx, assessmentID)
	}
	return nil, nil
}

type mockConversationStore struct {
	listVisibleFn func(ctx context.Context, assessmentID int64, contextType model.ContextType, userID *string) ([]model.Conversation, error)
}

func (m *mockConversationStore) Create(context.Context, *model.Conversation) error {
	return nil
}

func (m *mockConversationStore) GetByID(context.Context, int64) (*model.Conversation, error) {
	return nil, store.ErrNotFound
}

func (m *mockConversationStore) ListVisible(ctx context.Context, assessmentID int64, contextType model.ContextType, userID *string) ([]model.Conversation, error) {
	if m.listVisibleFn != nil {
		return m.listVisibleFn(ctx, assessmentID, contextType, userID)
	}
	return nil, nil
}

type mockMessageStore struct {
	listByConversationsFn func(ctx context.Context, ids []int64) (map[int64][]model.Message, error)
}

func (m *mockMessageStore) Create(context.Context, *model.Message) error {
	return nil
}

func (m *mockMessageStore) GetByID(context.Context, int64) (*model.Message, error) {
	return nil, store.ErrNotFound
}

func (m *mockMessageStore) ListByConversation(context.Context, int64) ([]model.Message, error) {
	return nil, nil
}

func (m *mockMessageStore) ListByConversations(ctx context.Context, ids []int64) (map[int64][]model.Message, error) {
	if m.listByConversationsFn != nil {
		return m.listByConversationsFn(ctx, ids)
	}
	return map[int64][]model.Message{}, nil
}

func (m *mockMessageStore) SetMetadata(context.Context, int64, *model.MessageMetadata) error {
	return nil
}

// mockTxRunner runs fn directly against the mock stores.
type mockTxRunner struct {
	assessments *mockAssessmentStore
	responses   *mockResponseStore
	calls       int
}

func (m *mockTxRunner) WithTx(ctx context.Context, fn func(stores service.StoreProvider) error) error {
	m.calls++
	return fn(m)
}

func (m *mockTxRunner) Assessments() store.AssessmentStore { return m.assessments }
func (m *mockTxRunner) Responses() store.ResponseStore     { return m.responses }

type mockProgressStore struct {
	deleteFn func(ctx context.Context, id progress.SessionID) error
	deleted  []progress.SessionID
}

func (m *mockProgressStore) Load(context.Context, progress.SessionID) (*progress.Snapshot, error) {
	return nil, progress.ErrNoSnapshot
}

func (m *mockProgressStore) Save(context.Context, progress.Snapshot) error {
	return nil
}

func (m *mockProgressStore) Delete(ctx context.Context, id progress.SessionID) error {
	m.deleted = append(m.deleted, id)
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/store"
)

// ChatHistoryService is the read path of the conversation store.
type ChatHistoryService interface {
	// List returns the conversations of one context newest-first, each with
	// its messages in creation order. Anonymous callers only see ownerless
	// conversations; signed-in callers also see their own.
	List(ctx context.Context, assessmentID int64, contextType model.ContextType, userID *string) ([]model.Conversation, error)
}

type chatHistoryService struct {
	assessments   store.AssessmentStore
	conversations store.ConversationStore
	messages      store.MessageStore
}

func NewChatHistoryService(assessments store.AssessmentStore, conversations store.ConversationStore, messages store.MessageStore) ChatHistoryService {
	return &chatHistoryService{
		assessments:   assessments,
		conversations: conversations,
		messages:      messages,
	}
}

func (s *chatHistoryService) List(ctx context.Context, assessmentID int64, contextType model.ContextType, userID *string) ([]model.Conversation, error) {
	if _, err := s.assessments.GetByID(ctx, assessmentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("loading assessment: %w", err)
	}

	convs, err := s.conversations.ListVisible(ctx, assessmentID, contextType, userID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	convs = slices.DeleteFunc(convs, func(c model.Conversation) bool { return !c.VisibleTo(userID) })
	if len(convs) == 0 {
		return []model.Conversation{}, nil
	}

	ids := make([]int64, len(convs))
	for i, c := range convs {
		ids[i] = c.ID
	}
	byConv, err := s.messages.ListByConversations(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	for i := range convs {
		convs[i].Messages = byConv[convs[i].ID]
		if convs[i].Messages == nil {
			convs[i].Messages = []model.Message{}
		}
	}
	return convs, nil
}

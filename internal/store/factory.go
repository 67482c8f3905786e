package store

import (
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/core/db"
)

type Stores struct {
	db db.DBTX
}

func NewStores(db db.DBTX) *Stores {
	return &Stores{db: db}
}

func (s *Stores) Assessments() AssessmentStore {
	return newAssessmentStore(s.db)
}

func (s *Stores) Responses() ResponseStore {
	return newResponseStore(s.db)
}

func (s *Stores) Results() ResultsStore {
	return newResultsStore(s.db)
}

func (s *Stores) Conversations() ConversationStore {
	return newConversationStore(s.db)
}

func (s *Stores) Messages() MessageStore {
	return newMessageStore(s.db)
}

func (s *Stores) Journey() JourneyStore {
	return newJourneyStore(s.db)
}

func (s *Stores) LLMEvals() LLMEvalStore {
	return newLLMEvalStore(s.db)
}

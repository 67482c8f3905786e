package service

import (
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/metrics"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/progress"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/store"
)

type Services struct {
	stores   *store.Stores
	txRunner TxRunner
	catalog  CatalogProvider
	progress progress.Store
	metrics  *metrics.Metrics
}

func NewServices(stores *store.Stores, txRunner TxRunner, catalog CatalogProvider, progressStore progress.Store, m *metrics.Metrics) *Services {
	return &Services{
		stores:   stores,
		txRunner: txRunner,
		catalog:  catalog,
		progress: progressStore,
		metrics:  m,
	}
}

func (s *Services) Assessments() AssessmentService {
	return NewAssessmentService(s.txRunner, s.stores.Assessments(), s.stores.Responses(), s.catalog, s.progress, s.metrics)
}

func (s *Services) ChatHistory() ChatHistoryService {
	return NewChatHistoryService(s.stores.Assessments(), s.stores.Conversations(), s.stores.Messages())
}

func (s *Services) Progress() ProgressService {
	return NewProgressService(s.progress, s.catalog)
}

package progress_test

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/progress"
)

func sampleSnapshot(id progress.SessionID) progress.Snapshot {
	return progress.Snapshot{
		SessionID: id,
		Answers: model.Answers{
			"company_name":   model.ScalarAnswer{Text: "Acme"},
			"erp_systems":    model.MultiSelectAnswer{Values: []string{"sap", "other"}},
			"top_priorities": model.RankedAnswer{Ranked: []string{"growth", "cost_reduction"}},
			"contact":        model.StructuredAnswer{Fields: map[string]any{"name": "Ana", "email": "ana@acme.test"}},
		},
		CurrentStep:  3,
		FurthestStep: 4,
		SavedAt:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// storeContract runs the round-trip behaviour every Store must share.
func storeContract(newStore func() progress.Store) {
	var (
		ctx   context.Context
		store progress.Store
		id    progress.SessionID
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = newStore()
		id = progress.NewSessionID()
	})

	It("reports ErrNoSnapshot for an unknown session", func() {
		_, err := store.Load(ctx, id)
		Expect(errors.Is(err, progress.ErrNoSnapshot)).To(BeTrue())
	})

	It("returns exactly what was saved", func() {
		want := sampleSnapshot(id)
		Expect(store.Save(ctx, want)).To(Succeed())

		got, err := store.Load(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(*got).To(Equal(want))
	})

	It("replaces rather than merges on a second save", func() {
		Expect(store.Save(ctx, sampleSnapshot(id))).To(Succeed())
		second := progress.Snapshot{
			SessionID:    id,
			Answers:      model.Answers{"industry": model.ScalarAnswer{Text: "retail"}},
			CurrentStep:  1,
			FurthestStep: 1,
			SavedAt:      time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		}
		Expect(store.Save(ctx, second)).To(Succeed())

		got, err := store.Load(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Answers).To(HaveLen(1))
		Expect(got.Answers).To(HaveKey("industry"))
	})

	It("forgets a deleted session", func() {
		Expect(store.Save(ctx, sampleSnapshot(id))).To(Succeed())
		Expect(store.Delete(ctx, id)).To(Succeed())

		_, err := store.Load(ctx, id)
		Expect(errors.Is(err, progress.ErrNoSnapshot)).To(BeTrue())
	})
}

var _ = Describe("MemoryStore", func() {
	storeContract(func() progress.Store { return progress.NewMemoryStore() })
})

var _ = Describe("LocalStore", func() {
	storeContract(func() progress.Store {
		s, err := progress.OpenLocalStore(filepath.Join(GinkgoT().TempDir(), "progress.db"))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(s.Close)
		return s
	})

	It("remembers the most recent session", func() {
		ctx := context.Background()
		s, err := progress.OpenLocalStore(filepath.Join(GinkgoT().TempDir(), "progress.db"))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(s.Close)

		_, err = s.LastSession(ctx)
		Expect(errors.Is(err, progress.ErrNoSnapshot)).To(BeTrue())

		id := progress.NewSessionID()
		Expect(s.Save(ctx, sampleSnapshot(id))).To(Succeed())
		last, err := s.LastSession(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(last).To(Equal(id))
	})
})

var _ = Describe("RedisStore", func() {
	var fake *fakeRedis

	storeContract(func() progress.Store {
		fake = newFakeRedis()
		return progress.NewRedisStore(fake, 7*24*time.Hour)
	})

	It("writes under a prefixed key with the configured TTL", func() {
		fake = newFakeRedis()
		store := progress.NewRedisStore(fake, time.Hour)
		id := progress.NewSessionID()

		Expect(store.Save(context.Background(), sampleSnapshot(id))).To(Succeed())
		Expect(fake.data).To(HaveKey("progress:" + string(id)))
		Expect(fake.ttls["progress:"+string(id)]).To(Equal(time.Hour))
	})

	It("wraps backend failures", func() {
		fake = newFakeRedis()
		fake.failErr = errors.New("connection refused")
		store := progress.NewRedisStore(fake, time.Hour)

		_, err := store.Load(context.Background(), progress.NewSessionID())
		Expect(err).To(MatchError(ContainSubstring("connection refused")))
		Expect(errors.Is(err, progress.ErrNoSnapshot)).To(BeFalse())
	})
})

var _ = Describe("Resilient", func() {
	ctx := context.Background()
	boom := errors.New("disk full")

	It("swallows write and delete failures", func() {
		r := progress.NewResilient(&mockStore{
			saveFn:   func(context.Context, progress.Snapshot) error { return boom },
			deleteFn: func(context.Context, progress.SessionID) error { return boom },
		})
		Expect(r.Save(ctx, sampleSnapshot(progress.NewSessionID()))).To(Succeed())
		Expect(r.Delete(ctx, progress.NewSessionID())).To(Succeed())
	})

	It("degrades read failures to no snapshot", func() {
		r := progress.NewResilient(&mockStore{
			loadFn: func(context.Context, progress.SessionID) (*progress.Snapshot, error) { return nil, boom },
		})
		snap, err := r.Load(ctx, progress.NewSessionID())
		Expect(snap).To(BeNil())
		Expect(errors.Is(err, progress.ErrNoSnapshot)).To(BeTrue())
	})

	It("passes successful loads through", func() {
		want := sampleSnapshot(progress.NewSessionID())
		r := progress.NewResilient(&mockStore{
			loadFn: func(context.Context, progress.SessionID) (*progress.Snapshot, error) { return &want, nil },
		})
		got, err := r.Load(ctx, want.SessionID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(&want))
	})
})

var _ = Describe("ParseSessionID", func() {
	It("accepts UUIDs and normalizes case", func() {
		id, err := progress.ParseSessionID("3F2504E0-4F89-41D3-9A0C-0305E82C3301")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(id)).To(Equal("3f2504e0-4f89-41d3-9a0c-0305e82c3301"))
	})

	It("rejects anything else", func() {
		_, err := progress.ParseSessionID("progress:*")
		Expect(err).To(MatchError(progress.ErrInvalidSessionID))
	})
})

package brain_test

import (
	"context"
	"errors"
	"time"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/common/llm"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/brain"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const projectXReply = `{"insights": [{
	"type": "project",
	"action": "update",
	"confidence": 0.92,
	"suggestedUpdate": {
		"entityId": "",
		"entityName": "Project X",
		"field": "status",
		"currentValue": "",
		"suggestedValue": "in_progress",
		"reason": "Work has started"
	}
}]}`

var _ = Describe("ParseInsights", func() {
	ctx := context.Background()

	It("returns an empty list for an empty array", func() {
		insights, err := brain.ParseInsights(ctx, `[]`)
		Expect(err).NotTo(HaveOccurred())
		Expect(insights).To(BeEmpty())
	})

	It("returns an empty list for an empty wrapper", func() {
		insights, err := brain.ParseInsights(ctx, `{"insights": []}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(insights).To(BeEmpty())
	})

	DescribeTable("treats replies that report nothing as empty",
		func(raw string) {
			insights, err := brain.ParseInsights(ctx, raw)
			Expect(err).NotTo(HaveOccurred())
			Expect(insights).To(BeEmpty())
		},
		Entry("trailing prose with braces", `{"insights": []} (no changes {none})`),
		Entry("footnote marker before the object", `Note [1]: {"insights": []}`),
		Entry("null insights", `{"insights": null}`),
	)

	It("ignores prose after a populated reply", func() {
		insights, err := brain.ParseInsights(ctx, projectXReply+"\n\nLet me know if {anything} else changes.")
		Expect(err).NotTo(HaveOccurred())
		Expect(insights).To(HaveLen(1))
	})

	It("extracts an explicit status change", func() {
		insights, err := brain.ParseInsights(ctx, projectXReply)
		Expect(err).NotTo(HaveOccurred())
		Expect(insights).To(HaveLen(1))

		in := insights[0]
		Expect(in.Type).To(Equal(model.InsightProject))
		Expect(in.Action).To(Equal(model.InsightActionUpdate))
		Expect(in.SuggestedUpdate.EntityName).To(Equal("Project X"))
		Expect(in.SuggestedUpdate.Field).To(Equal("status"))
		Expect(in.SuggestedUpdate.SuggestedValue).To(Equal("in_progress"))
		Expect(in.SuggestedUpdate.EntityID).To(BeNil())
		Expect(in.SuggestedUpdate.CurrentValue).To(BeNil())
	})

	It("accepts a bare array wrapped in a code fence", func() {
		raw := "```json\n" + `[{"type":"risk","action":"update","confidence":0.8,
			"suggestedUpdate":{"entityId":17,"entityName":"Vendor delay","field":"severity","suggestedValue":"high","reason":"x"}}]` + "\n```"
		insights, err := brain.ParseInsights(ctx, raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(insights).To(HaveLen(1))
		Expect(insights[0].SuggestedUpdate.EntityID).To(HaveValue(Equal("17")))
	})

	It("drops entries at or below the confidence threshold", func() {
		raw := `[
			{"type":"project","action":"update","confidence":0.7,"suggestedUpdate":{"entityName":"A","field":"status","suggestedValue":"done"}},
			{"type":"project","action":"update","confidence":0.71,"suggestedUpdate":{"entityName":"B","field":"status","suggestedValue":"done"}},
			{"type":"project","action":"update","suggestedUpdate":{"entityName":"C","field":"status","suggestedValue":"done"}}
		]`
		insights, err := brain.ParseInsights(ctx, raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(insights).To(HaveLen(1))
		Expect(insights[0].SuggestedUpdate.EntityName).To(Equal("B"))
	})

	It("drops unknown types and incomplete suggestions", func() {
		raw := `[
			{"type":"epic","action":"update","confidence":0.9,"suggestedUpdate":{"entityName":"A","field":"status","suggestedValue":"done"}},
			{"type":"sprint","action":"update","confidence":0.9,"suggestedUpdate":{"entityName":"","field":"status","suggestedValue":"done"}},
			{"type":"sprint","action":"update","confidence":0.9,"suggestedUpdate":{"entityName":"S1","field":"status","suggestedValue":""}},
			{"type":"sprint","action":"delete","confidence":0.9,"suggestedUpdate":{"entityName":"S1","field":"status","suggestedValue":"done"}},
			{"type":"pbi","action":"update","confidence":0.9}
		]`
		insights, err := brain.ParseInsights(ctx, raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(insights).To(BeEmpty())
	})

	It("forces the create action for new_ types", func() {
		raw := `[{"type":"new_risk","action":"update","confidence":0.85,
			"suggestedUpdate":{"entityName":"Vendor lock-in","field":"severity","suggestedValue":"high"}}]`
		insights, err := brain.ParseInsights(ctx, raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(insights).To(HaveLen(1))
		Expect(insights[0].Action).To(Equal(model.InsightActionCreate))
	})

	It("keeps the later of two conflicting suggestions in the earlier position", func() {
		raw := `[
			{"type":"project","action":"update","confidence":0.9,"suggestedUpdate":{"entityName":"ERP","field":"status","suggestedValue":"in_progress"}},
			{"type":"risk","action":"update","confidence":0.9,"suggestedUpdate":{"entityName":"Budget","field":"severity","suggestedValue":"low"}},
			{"type":"project","action":"update","confidence":0.8,"suggestedUpdate":{"entityName":"erp","field":"Status","suggestedValue":"completed"}}
		]`
		insights, err := brain.ParseInsights(ctx, raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(insights).To(HaveLen(2))
		Expect(insights[0].SuggestedUpdate.SuggestedValue).To(Equal("completed"))
		Expect(insights[1].Type).To(Equal(model.InsightRisk))
	})

	It("fails on replies without JSON", func() {
		_, err := brain.ParseInsights(ctx, "There are no suggestions here.")
		Expect(err).To(MatchError(brain.ErrExtractionFailed))
	})

	It("fails on objects without an insights array", func() {
		_, err := brain.ParseInsights(ctx, `{"suggestions": []}`)
		Expect(err).To(MatchError(brain.ErrExtractionFailed))
	})

	It("fails on a malformed object followed by prose", func() {
		_, err := brain.ParseInsights(ctx, `{"insights": 3} and [see notes]`)
		Expect(err).To(MatchError(brain.ErrExtractionFailed))
	})
})

var _ = Describe("InsightExtractor", func() {
	var (
		extractor *brain.InsightExtractor
		mockLLM   *mockLLMClient
		evals     *mockLLMEvalStore
		ctx       context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		mockLLM = &mockLLMClient{}
		evals = &mockLLMEvalStore{}
		extractor = brain.NewInsightExtractor(mockLLM, evals, brain.WithRetryBackoff(time.Millisecond))
	})

	Describe("Extract", func() {
		It("returns parsed insights and logs an eval", func() {
			mockLLM.chatFn = replyJSON(projectXReply)
			messageID := int64(55)

			insights, err := extractor.Extract(ctx, brain.ExtractRequest{
				MessageID: &messageID,
				Text:      "Mark Project X as in_progress.",
				Summary:   model.JourneySummary{Projects: 2},
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(insights).To(HaveLen(1))
			Expect(mockLLM.calls()).To(Equal(1))
			Expect(evals.evals).To(HaveLen(1))
			Expect(evals.evals[0].Stage).To(Equal(model.LLMEvalStageInsightExtraction))
			Expect(evals.evals[0].MessageID).To(HaveValue(Equal(messageID)))
			Expect(evals.evals[0].PromptTokens).To(Equal(120))
			Expect(evals.evals[0].Error).To(BeNil())
			Expect(evals.evals[0].InputText).To(ContainSubstring("- Projects: 2"))
		})

		It("does not call the model for empty text", func() {
			insights, err := extractor.Extract(ctx, brain.ExtractRequest{Text: "  "})
			Expect(err).NotTo(HaveOccurred())
			Expect(insights).To(BeEmpty())
			Expect(mockLLM.calls()).To(Equal(0))
			Expect(evals.evals).To(BeEmpty())
		})

		It("retries a retryable failure once", func() {
			attempts := 0
			mockLLM.chatFn = func(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
				attempts++
				if attempts == 1 {
					return nil, errors.New("connection refused")
				}
				return replyJSON(`{"insights": []}`)(ctx, req, result)
			}

			insights, err := extractor.Extract(ctx, brain.ExtractRequest{Text: "Keep going."})
			Expect(err).NotTo(HaveOccurred())
			Expect(insights).To(BeEmpty())
			Expect(mockLLM.calls()).To(Equal(2))
		})

		It("gives up after the last attempt", func() {
			mockLLM.chatFn = func(context.Context, llm.Request, any) (*llm.Response, error) {
				return nil, errors.New("connection refused")
			}

			_, err := extractor.Extract(ctx, brain.ExtractRequest{Text: "Keep going."})
			Expect(err).To(MatchError(brain.ErrExtractionFailed))
			Expect(mockLLM.calls()).To(Equal(2))
			Expect(evals.evals).To(HaveLen(1))
			Expect(evals.evals[0].Error).NotTo(BeNil())
		})

		It("does not retry cancellation", func() {
			mockLLM.chatFn = func(context.Context, llm.Request, any) (*llm.Response, error) {
				return nil, context.Canceled
			}

			_, err := extractor.Extract(ctx, brain.ExtractRequest{Text: "Keep going."})
			Expect(err).To(MatchError(brain.ErrExtractionFailed))
			Expect(mockLLM.calls()).To(Equal(1))
		})

		It("reports malformed output as a failed extraction", func() {
			mockLLM.chatFn = func(_ context.Context, _ llm.Request, result any) (*llm.Response, error) {
				return &llm.Response{}, llm.DecodeJSON("not json at all", result)
			}

			_, err := extractor.Extract(ctx, brain.ExtractRequest{Text: "Keep going."})
			Expect(err).To(MatchError(brain.ErrExtractionFailed))
			Expect(mockLLM.calls()).To(Equal(2))
		})

		It("succeeds when eval logging fails", func() {
			mockLLM.chatFn = replyJSON(projectXReply)
			evals.createFn = func(context.Context, *model.LLMEval) error {
				return errors.New("db down")
			}

			insights, err := extractor.Extract(ctx, brain.ExtractRequest{Text: "Mark Project X as in_progress."})
			Expect(err).NotTo(HaveOccurred())
			Expect(insights).To(HaveLen(1))
		})
	})

	Describe("Annotate", func() {
		var messages *memMessageStore

		BeforeEach(func() {
			messages = newMemMessageStore()
		})

		It("attaches found insights to the message", func() {
			mockLLM.chatFn = replyJSON(projectXReply)
			messageID := int64(7)

			meta := extractor.Annotate(ctx, messages, brain.ExtractRequest{MessageID: &messageID, Text: "Mark Project X as in_progress."})

			Expect(meta.InsightStatus).To(Equal(model.InsightStatusFound))
			Expect(messages.metadataFor(messageID)).To(Equal(meta))
		})

		It("records a failed extraction as failed with no insights", func() {
			mockLLM.chatFn = func(context.Context, llm.Request, any) (*llm.Response, error) {
				return nil, context.Canceled
			}
			messageID := int64(8)

			meta := extractor.Annotate(ctx, messages, brain.ExtractRequest{MessageID: &messageID, Text: "text"})

			Expect(meta.InsightStatus).To(Equal(model.InsightStatusFailed))
			Expect(meta.Insights).To(BeEmpty())
			Expect(messages.metadataFor(messageID)).To(Equal(meta))
		})

		It("skips attachment when the message was not persisted", func() {
			mockLLM.chatFn = replyJSON(projectXReply)

			meta := extractor.Annotate(ctx, messages, brain.ExtractRequest{Text: "Mark Project X as in_progress."})

			Expect(meta.InsightStatus).To(Equal(model.InsightStatusFound))
			Expect(messages.metadata).To(BeEmpty())
		})
	})
})

var _ = Describe("InsightMetadata", func() {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	It("distinguishes failure from nothing found", func() {
		failed := brain.InsightMetadata(nil, brain.ErrExtractionFailed, now)
		none := brain.InsightMetadata(nil, nil, now)

		Expect(failed.InsightStatus).To(Equal(model.InsightStatusFailed))
		Expect(none.InsightStatus).To(Equal(model.InsightStatusNone))
		Expect(failed.Insights).To(BeEmpty())
		Expect(none.Insights).To(BeEmpty())
		Expect(none.ExtractedAt).To(Equal(now))
	})

	It("marks non-empty results as found", func() {
		meta := brain.InsightMetadata([]model.Insight{{Type: model.InsightRisk}}, nil, now)
		Expect(meta.InsightStatus).To(Equal(model.InsightStatusFound))
		Expect(meta.Insights).To(HaveLen(1))
	})
})

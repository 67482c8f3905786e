package brain_test

import (
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/brain"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func float64Ptr(v float64) *float64 { return &v }
func intPtr(v int) *int             { return &v }

var _ = Describe("BuildSystemPrompt", func() {
	var in brain.PromptInput

	BeforeEach(func() {
		in = brain.PromptInput{
			Assessment: &model.Assessment{
				CompanyName:     "Acme",
				Industry:        "manufacturing",
				CompanySize:     "51-200",
				ChangeReadiness: 4,
			},
			Results: &model.Results{
				OverallScore: 2.75,
				MaturityScores: map[string]float64{
					"technology": 3,
					"data":       2.5,
				},
				Recommendations: []model.Recommendation{
					{Title: "Automate invoicing", Tier: model.TierQuickWin},
					{Title: "Dashboards", Tier: model.TierQuickWin},
					{Title: "ERP upgrade", Tier: model.TierStrategic},
				},
			},
		}
	})

	It("renders company and results for general chat", func() {
		prompt := brain.BuildSystemPrompt(in)

		Expect(prompt).To(ContainSubstring("- Name: Acme"))
		Expect(prompt).To(ContainSubstring("- Industry: manufacturing"))
		Expect(prompt).To(ContainSubstring("- Change readiness: 4/5"))
		Expect(prompt).To(ContainSubstring("- Overall maturity: 2.8/5"))
		Expect(prompt).To(ContainSubstring("  - Quick wins: 2"))
		Expect(prompt).To(ContainSubstring("  - Strategic initiatives: 1"))
		Expect(prompt).To(ContainSubstring("  - Transformational initiatives: 0"))
		Expect(prompt).To(ContainSubstring("## How to respond"))
		Expect(prompt).NotTo(ContainSubstring("## Transformation Journey"))
		Expect(prompt).NotTo(ContainSubstring("## Suggesting changes"))
	})

	It("lists maturity areas in a stable order", func() {
		prompt := brain.BuildSystemPrompt(in)
		Expect(prompt).To(MatchRegexp(`(?s)data: 2\.5/5.*technology: 3\.0/5`))
		Expect(brain.BuildSystemPrompt(in)).To(Equal(prompt))
	})

	It("adds journey statistics for journey chat", func() {
		in.Journey = &model.JourneyData{
			Projects: []model.Project{
				{ID: 1, Title: "ERP Migration", Status: "in_progress", Priority: "high", Progress: 40, EstimatedSavings: 100000, ActualSavings: float64Ptr(25000)},
				{ID: 2, Title: "Dashboards", Status: "completed", Priority: "medium", Progress: 100, Description: "Actual Annual Savings: $12,500"},
			},
			BacklogItems: []model.BacklogItem{
				{Status: "done", StoryPoints: intPtr(5)},
				{Status: "todo", StoryPoints: intPtr(3)},
			},
			Sprints: []model.Sprint{{Status: "active"}, {Status: "completed"}},
			Risks:   []model.Risk{{Severity: "high", Status: "open"}, {Severity: "low", Status: "mitigated"}},
		}

		prompt := brain.BuildSystemPrompt(in)

		Expect(prompt).To(ContainSubstring("## Transformation Journey"))
		Expect(prompt).To(ContainSubstring("- Projects: 2 (1 completed, 1 in progress), average progress 70%"))
		Expect(prompt).To(ContainSubstring("5 of 8 story points done"))
		Expect(prompt).To(ContainSubstring("- Sprints: 2 (1 active, 1 completed)"))
		Expect(prompt).To(ContainSubstring("- Risks: 2 (1 open, 1 high severity)"))
		Expect(prompt).To(ContainSubstring("- Realized annual savings: $37,500"))
		Expect(prompt).To(ContainSubstring("[id 1] ERP Migration: in_progress, high priority, 40% complete"))
		Expect(prompt).To(ContainSubstring("## Suggesting changes"))
	})

	It("tolerates missing results", func() {
		in.Results = nil
		Expect(brain.BuildSystemPrompt(in)).To(ContainSubstring("(no results yet)"))
	})
})

var _ = DescribeTable("LegacySavingsFromDescription",
	func(desc string, want float64, ok bool) {
		got, found := brain.LegacySavingsFromDescription(desc)
		Expect(found).To(Equal(ok))
		Expect(got).To(BeNumerically("~", want, 0.001))
	},
	Entry("dollar amount with commas", "Actual Annual Savings: $125,000", 125000.0, true),
	Entry("case insensitive without dollar", "notes\nactual annual savings: 4500.50", 4500.5, true),
	Entry("thousands suffix", "Actual Annual Savings: $45k", 45000.0, true),
	Entry("millions suffix", "Actual Annual Savings: $1.2M per year", 1200000.0, true),
	Entry("no figure", "Estimated savings pending", 0.0, false),
	Entry("label without number", "Actual Annual Savings: TBD", 0.0, false),
)

var _ = Describe("RealizedSavings", func() {
	It("prefers the structured field over the description", func() {
		p := model.Project{ActualSavings: float64Ptr(10), Description: "Actual Annual Savings: $99"}
		Expect(brain.RealizedSavings(p)).To(Equal(10.0))
	})

	It("falls back to the description", func() {
		p := model.Project{Description: "Actual Annual Savings: $99"}
		Expect(brain.RealizedSavings(p)).To(Equal(99.0))
	})
})

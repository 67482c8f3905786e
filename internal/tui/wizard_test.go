package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/catalog"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/progress"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/wizard"
)

type fakeSaver struct {
	touched   []progress.Snapshot
	flushed   int
	discarded int
}

func (f *fakeSaver) Touch(snap progress.Snapshot) { f.touched = append(f.touched, snap) }
func (f *fakeSaver) Flush()                       { f.flushed++ }
func (f *fakeSaver) Discard()                     { f.discarded++ }

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

var (
	keyTab   = tea.KeyMsg{Type: tea.KeyTab}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keySpace = tea.KeyMsg{Type: tea.KeySpace}
	keyNext  = tea.KeyMsg{Type: tea.KeyCtrlN}
	keyBack  = tea.KeyMsg{Type: tea.KeyCtrlB}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
)

func send(w *Wizard, msgs ...tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	for _, m := range msgs {
		_, cmd = w.Update(m)
	}
	return cmd
}

// fillRequired answers every required question up to and including the
// last step and leaves ctrl on it.
func fillRequired(ctrl *wizard.Controller) {
	for {
		for _, q := range ctrl.VisibleQuestions(ctrl.CurrentStep()) {
			if !q.Required {
				continue
			}
			var ans model.Answer
			switch q.Type {
			case catalog.TypeMultiSelect:
				ans = model.MultiSelectAnswer{Values: []string{ctrl.VisibleOptions(q)[0].Value}}
			case catalog.TypeRanking:
				ans = model.RankedAnswer{Ranked: []string{q.Options[0].Value}}
			case catalog.TypeStructured:
				ans = model.StructuredAnswer{Fields: map[string]any{"name": "Ana Diaz", "email": "ana@acme.test"}}
			case catalog.TypeSingleSelect:
				ans = model.ScalarAnswer{Text: q.Options[0].Value}
			case catalog.TypeScale:
				ans = model.ScalarAnswer{Text: "3"}
			default:
				ans = model.ScalarAnswer{Text: "Acme"}
			}
			Expect(ctrl.SetAnswer(q.Key, ans)).To(Succeed())
		}
		if ctrl.IsLastStep() {
			return
		}
		Expect(ctrl.Next().Action).To(Equal(wizard.ActionAdvanced))
	}
}

var _ = Describe("Wizard", func() {
	var (
		ctrl      *wizard.Controller
		saver     *fakeSaver
		submitted []model.Submission
		submitErr error
		w         *Wizard
	)

	BeforeEach(func() {
		ctrl = wizard.New(catalog.Default(), progress.NewSessionID())
		saver = &fakeSaver{}
		submitted = nil
		submitErr = nil
	})

	JustBeforeEach(func() {
		w = NewWizard(context.Background(), ctrl, saver, func(_ context.Context, sub model.Submission) (int64, error) {
			submitted = append(submitted, sub)
			return 42, submitErr
		})
	})

	It("stores typed text and autosaves each change", func() {
		send(w, runes("A"), runes("c"), runes("m"), runes("e"))

		Expect(ctrl.Answer("company_name")).To(Equal(model.ScalarAnswer{Text: "Acme"}))
		Expect(saver.touched).NotTo(BeEmpty())
		Expect(saver.touched[len(saver.touched)-1].Answers).To(HaveKey("company_name"))
	})

	It("selects the option under the cursor", func() {
		send(w, keyTab, keyDown, keySpace)

		Expect(ctrl.Answer("industry")).To(Equal(model.ScalarAnswer{Text: "retail"}))
		Expect(w.View()).To(ContainSubstring("(•) Retail & E-commerce"))
	})

	It("reveals a conditional question once its trigger is chosen", func() {
		send(w, keyTab)
		for range 6 {
			send(w, keyDown)
		}
		send(w, keySpace)

		Expect(ctrl.Answer("industry")).To(Equal(model.ScalarAnswer{Text: "other"}))
		Expect(w.View()).To(ContainSubstring("Please specify your industry."))
	})

	It("blocks on an incomplete step and focuses the first missing question", func() {
		send(w, runes("X"), keyTab, keySpace, keyNext)

		Expect(ctrl.CurrentStep()).To(Equal(1))
		Expect(w.err).To(MatchError(wizard.ErrStepIncomplete))
		t, ok := w.focused()
		Expect(ok).To(BeTrue())
		Expect(t.q.Key).To(Equal("company_size"))
	})

	It("moves between steps", func() {
		Expect(ctrl.SetAnswer("company_name", model.ScalarAnswer{Text: "Acme"})).To(Succeed())
		Expect(ctrl.SetAnswer("industry", model.ScalarAnswer{Text: "retail"})).To(Succeed())
		Expect(ctrl.SetAnswer("company_size", model.ScalarAnswer{Text: "1-50"})).To(Succeed())
		Expect(ctrl.SetAnswer("role", model.ScalarAnswer{Text: "executive"})).To(Succeed())

		send(w, keyNext)
		Expect(ctrl.CurrentStep()).To(Equal(2))
		Expect(w.View()).To(ContainSubstring("Step 2 of 6"))

		send(w, keyBack)
		Expect(ctrl.CurrentStep()).To(Equal(1))
	})

	It("flushes progress and quits on escape", func() {
		cmd := send(w, keyEsc)

		Expect(w.Quit).To(BeTrue())
		Expect(saver.flushed).To(Equal(1))
		Expect(cmd).NotTo(BeNil())
	})

	Context("on the last step", func() {
		BeforeEach(func() {
			fillRequired(ctrl)
		})

		It("submits, discards saved progress and quits", func() {
			cmd := send(w, keyNext)
			Expect(cmd).NotTo(BeNil())
			Expect(w.submitting).To(BeTrue())

			quit := send(w, cmd())
			Expect(quit).NotTo(BeNil())
			Expect(w.AssessmentID).To(Equal(int64(42)))
			Expect(saver.discarded).To(Equal(1))
			Expect(submitted).To(HaveLen(1))
			Expect(submitted[0].Assessment.CompanyName).To(Equal("Acme"))
			Expect(submitted[0].Assessment.ContactEmail).To(Equal("ana@acme.test"))
		})

		It("keeps the wizard open when submission fails", func() {
			submitErr = errors.New("connection refused")

			cmd := send(w, keyNext)
			send(w, cmd())

			Expect(w.AssessmentID).To(BeZero())
			Expect(w.submitting).To(BeFalse())
			Expect(saver.discarded).To(BeZero())
			Expect(w.View()).To(ContainSubstring("submission failed"))
		})

		It("edits one field of a structured answer", func() {
			send(w, keyTab, runes("!"))

			ans, ok := ctrl.Answer("contact").(model.StructuredAnswer)
			Expect(ok).To(BeTrue())
			Expect(ans.Fields).To(HaveKeyWithValue("email", "ana@acme.test!"))
			Expect(ans.Fields).To(HaveKeyWithValue("name", "Ana Diaz"))
		})
	})

	Context("on a ranking question", func() {
		BeforeEach(func() {
			fillRequired(ctrl)
			Expect(ctrl.GoTo(5)).To(Succeed())
			Expect(ctrl.SetAnswer("top_priorities", nil)).To(Succeed())
		})

		It("numbers selections in the order chosen", func() {
			send(w, keyDown, keySpace, keyDown, keySpace)

			Expect(ctrl.Answer("top_priorities")).To(Equal(model.RankedAnswer{Ranked: []string{"growth", "customer_experience"}}))
			view := w.View()
			Expect(view).To(ContainSubstring("[1] Grow revenue"))
			Expect(view).To(ContainSubstring("[2] Improve customer experience"))
		})

		It("refuses more than the maximum", func() {
			send(w, keySpace, keyDown, keySpace, keyDown, keySpace, keyDown, keySpace)

			Expect(w.err).To(MatchError(wizard.ErrRankingFull))
			Expect(ctrl.Answer("top_priorities").(model.RankedAnswer).Ranked).To(HaveLen(3))
		})
	})
})

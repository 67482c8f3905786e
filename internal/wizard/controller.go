// Package wizard drives the assessment questionnaire: step navigation,
// completeness checks, conditional visibility and building the submission.
package wizard

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/catalog"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/progress"
)

var (
	ErrStepIncomplete  = errors.New("please answer all required questions before continuing")
	ErrStepLocked      = errors.New("step has not been reached yet")
	ErrUnknownQuestion = errors.New("unknown question")
	ErrWrongAnswerKind = errors.New("answer does not match question type")
	ErrRankingFull     = errors.New("maximum number of ranked items already selected")
)

type Action string

const (
	ActionAdvanced Action = "advanced"
	ActionSubmit   Action = "submit"
	ActionBlocked  Action = "blocked"
)

// NextResult tells the caller what Next did. FocusKey names the first
// unanswered required question when Action is ActionBlocked.
type NextResult struct {
	Action   Action
	FocusKey string
	Err      error
}

// Controller is not safe for concurrent use; the UI owns it.
type Controller struct {
	catalog      *catalog.Catalog
	session      progress.SessionID
	answers      model.Answers
	currentStep  int
	furthestStep int

	// onChange is called after every mutation, typically Autosaver.Touch.
	onChange func()
}

func New(c *catalog.Catalog, session progress.SessionID) *Controller {
	return &Controller{
		catalog:      c,
		session:      session,
		answers:      model.Answers{},
		currentStep:  1,
		furthestStep: 1,
	}
}

// OnChange registers fn to run after every answer or step change.
func (w *Controller) OnChange(fn func()) {
	w.onChange = fn
}

func (w *Controller) changed() {
	if w.onChange != nil {
		w.onChange()
	}
}

func (w *Controller) Catalog() *catalog.Catalog { return w.catalog }
func (w *Controller) Session() progress.SessionID { return w.session }
func (w *Controller) CurrentStep() int { return w.currentStep }
func (w *Controller) FurthestStep() int { return w.furthestStep }
func (w *Controller) TotalSteps() int { return w.catalog.TotalSteps() }
func (w *Controller) IsLastStep() bool { return w.currentStep == w.catalog.TotalSteps() }

func (w *Controller) Answer(key string) model.Answer {
	return w.answers[key]
}

// Answers returns a copy of the answer map.
func (w *Controller) Answers() model.Answers {
	return w.answers.Clone()
}

// IsVisible reports whether q is shown given the current answers.
func (w *Controller) IsVisible(q *catalog.Question) bool {
	return q.ShowIf == nil || q.ShowIf.Met(w.answers)
}

// VisibleQuestions returns the questions of step that are currently shown.
func (w *Controller) VisibleQuestions(step int) []*catalog.Question {
	s := w.catalog.Step(step)
	if s == nil {
		return nil
	}
	out := make([]*catalog.Question, 0, len(s.Questions))
	for i := range s.Questions {
		q := &s.Questions[i]
		if w.IsVisible(q) {
			out = append(out, q)
		}
	}
	return out
}

// VisibleOptions narrows q's options by the answer to q.FilterOptionsBy.
func (w *Controller) VisibleOptions(q *catalog.Question) []catalog.Option {
	if q.FilterOptionsBy == "" {
		return q.Options
	}
	value := model.AnswerText(w.answers[q.FilterOptionsBy])
	out := make([]catalog.Option, 0, len(q.Options))
	for _, opt := range q.Options {
		if opt.VisibleTo(value) {
			out = append(out, opt)
		}
	}
	return out
}

// firstMissing returns the first visible required question without an answer.
func (w *Controller) firstMissing(step int) string {
	for _, q := range w.VisibleQuestions(step) {
		if q.Required && model.AnswerIsEmpty(w.answers[q.Key]) {
			return q.Key
		}
	}
	return ""
}

// IsStepComplete is true iff every visible required question in step is answered.
func (w *Controller) IsStepComplete(step int) bool {
	if w.catalog.Step(step) == nil {
		return false
	}
	return w.firstMissing(step) == ""
}

// Next advances past the current step, or asks the caller to submit on the last one.
func (w *Controller) Next() NextResult {
	if missing := w.firstMissing(w.currentStep); missing != "" {
		return NextResult{Action: ActionBlocked, FocusKey: missing, Err: ErrStepIncomplete}
	}
	if w.IsLastStep() {
		return NextResult{Action: ActionSubmit}
	}

	w.currentStep++
	if w.currentStep > w.furthestStep {
		w.furthestStep = w.currentStep
	}
	w.changed()
	return NextResult{Action: ActionAdvanced}
}

func (w *Controller) Back() {
	if w.currentStep > 1 {
		w.currentStep--
		w.changed()
	}
}

// GoTo jumps to any step already reached. Skipping ahead is not allowed.
func (w *Controller) GoTo(step int) error {
	if step < 1 || step > w.furthestStep {
		return fmt.Errorf("%w: step %d (furthest %d)", ErrStepLocked, step, w.furthestStep)
	}
	if step != w.currentStep {
		w.currentStep = step
		w.changed()
	}
	return nil
}

// SetAnswer stores an answer. A nil or empty answer clears the question.
func (w *Controller) SetAnswer(key string, ans model.Answer) error {
	q, ok := w.catalog.Question(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, key)
	}
	if model.AnswerIsEmpty(ans) {
		delete(w.answers, key)
	} else {
		if ans.Kind() != q.AnswerKind() {
			return fmt.Errorf("%w: %s expects %s, got %s", ErrWrongAnswerKind, key, q.AnswerKind(), ans.Kind())
		}
		w.answers[key] = ans
	}
	w.pruneFiltered(key)
	w.changed()
	return nil
}

// pruneFiltered drops selections of questions filtered by parent that the
// new parent answer hides.
func (w *Controller) pruneFiltered(parent string) {
	for _, step := range w.catalog.Steps {
		for i := range step.Questions {
			q := &step.Questions[i]
			if q.FilterOptionsBy != parent {
				continue
			}
			ans, ok := w.answers[q.Key]
			if !ok {
				continue
			}
			if kept := keepVisible(ans, w.VisibleOptions(q)); model.AnswerIsEmpty(kept) {
				delete(w.answers, q.Key)
			} else {
				w.answers[q.Key] = kept
			}
		}
	}
}

func keepVisible(ans model.Answer, opts []catalog.Option) model.Answer {
	visible := func(v string) bool {
		return slices.ContainsFunc(opts, func(o catalog.Option) bool { return o.Value == v })
	}
	keep := func(values []string) []string {
		out := make([]string, 0, len(values))
		for _, v := range values {
			if visible(v) {
				out = append(out, v)
			}
		}
		return out
	}
	switch a := ans.(type) {
	case model.ScalarAnswer:
		if !visible(a.Text) {
			return nil
		}
	case model.MultiSelectAnswer:
		return model.MultiSelectAnswer{Values: keep(a.Values)}
	case model.RankedAnswer:
		return model.RankedAnswer{Ranked: keep(a.Ranked)}
	}
	return ans
}

// ToggleOption flips value in a multi-select answer.
func (w *Controller) ToggleOption(key, value string) error {
	q, ok := w.catalog.Question(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, key)
	}
	if q.Type != catalog.TypeMultiSelect {
		return fmt.Errorf("%w: %s is not multi-select", ErrWrongAnswerKind, key)
	}

	cur, _ := w.answers[key].(model.MultiSelectAnswer)
	values := slices.Clone(cur.Values)
	if i := slices.Index(values, value); i >= 0 {
		values = slices.Delete(values, i, i+1)
	} else {
		values = append(values, value)
	}
	return w.SetAnswer(key, model.MultiSelectAnswer{Values: values})
}

// ToggleRanked adds value at the next rank, or removes it and closes the gap.
// Adding beyond MaxSelections fails with ErrRankingFull.
func (w *Controller) ToggleRanked(key, value string) error {
	q, ok := w.catalog.Question(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, key)
	}
	if q.Type != catalog.TypeRanking {
		return fmt.Errorf("%w: %s is not a ranking", ErrWrongAnswerKind, key)
	}

	cur, _ := w.answers[key].(model.RankedAnswer)
	ranked := slices.Clone(cur.Ranked)
	if i := slices.Index(ranked, value); i >= 0 {
		ranked = slices.Delete(ranked, i, i+1)
	} else {
		if len(ranked) >= q.MaxSelections {
			return ErrRankingFull
		}
		ranked = append(ranked, value)
	}
	return w.SetAnswer(key, model.RankedAnswer{Ranked: ranked})
}

// Snapshot captures the full position for the progress store.
func (w *Controller) Snapshot(now time.Time) progress.Snapshot {
	return progress.Snapshot{
		SessionID:    w.session,
		Answers:      w.answers.Clone(),
		CurrentStep:  w.currentStep,
		FurthestStep: w.furthestStep,
		SavedAt:      now,
	}
}

// Restore replaces answers and position with snap. Steps are clamped to the
// catalog, which may have shrunk since the snapshot was taken.
func (w *Controller) Restore(snap progress.Snapshot) {
	total := w.catalog.TotalSteps()
	clamp := func(n int) int { return max(1, min(n, total)) }

	w.answers = snap.Answers.Clone()
	if w.answers == nil {
		w.answers = model.Answers{}
	}
	for _, step := range w.catalog.Steps {
		for _, q := range step.Questions {
			if q.FilterOptionsBy != "" {
				w.pruneFiltered(q.FilterOptionsBy)
			}
		}
	}
	w.currentStep = clamp(snap.CurrentStep)
	w.furthestStep = max(clamp(snap.FurthestStep), w.currentStep)
}

// Question keys whose answers populate Assessment fields.
const (
	keyCompanyName     = "company_name"
	keyIndustry        = "industry"
	keyIndustryOther   = "industry_other"
	keyCompanySize     = "company_size"
	keyRole            = "role"
	keyChangeReadiness = "change_readiness"
	keyContact         = "contact"
)

const defaultChangeReadiness = 3

// BuildSubmission turns the answers into one Assessment and one Response per
// answered visible question, in catalog order. Question text is resolved now.
func (w *Controller) BuildSubmission(now time.Time) model.Submission {
	a := model.Assessment{
		SessionID:       string(w.session),
		CompanyName:     strings.TrimSpace(model.AnswerText(w.answers[keyCompanyName])),
		Industry:        model.AnswerText(w.answers[keyIndustry]),
		CompanySize:     model.AnswerText(w.answers[keyCompanySize]),
		Role:            model.AnswerText(w.answers[keyRole]),
		ChangeReadiness: w.changeReadiness(),
		Status:          model.AssessmentStatusCompleted,
		CompletedAt:     &now,
	}
	if a.Industry == "other" {
		if other := strings.TrimSpace(model.AnswerText(w.answers[keyIndustryOther])); other != "" {
			a.Industry = other
		}
	}
	if contact, ok := w.answers[keyContact].(model.StructuredAnswer); ok {
		a.ContactName = fieldString(contact, "name")
		a.ContactEmail = fieldString(contact, "email")
	}

	var responses []model.Response
	for step := 1; step <= w.catalog.TotalSteps(); step++ {
		for _, q := range w.VisibleQuestions(step) {
			ans := w.answers[q.Key]
			if model.AnswerIsEmpty(ans) {
				continue
			}
			responses = append(responses, model.Response{
				StepNumber:   step,
				QuestionKey:  q.Key,
				QuestionText: q.Text,
				Answer:       ans,
			})
		}
	}

	return model.Submission{Assessment: a, Responses: responses}
}

func (w *Controller) changeReadiness() int {
	q, ok := w.catalog.Question(keyChangeReadiness)
	if !ok {
		return defaultChangeReadiness
	}
	if score, ok := q.ScoreMap[model.AnswerText(w.answers[keyChangeReadiness])]; ok {
		return score
	}
	return defaultChangeReadiness
}

func fieldString(a model.StructuredAnswer, name string) string {
	s, _ := a.Fields[name].(string)
	return strings.TrimSpace(s)
}

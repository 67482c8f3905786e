package tui

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/catalog"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/progress"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/wizard"
)

// Saver receives snapshots after every change. wizard.Autosaver implements it.
type Saver interface {
	Touch(snap progress.Snapshot)
	Flush()
	Discard()
}

// SubmitFunc sends a finished submission and returns the assessment id.
type SubmitFunc func(ctx context.Context, sub model.Submission) (int64, error)

type submitResultMsg struct {
	id  int64
	err error
}

// target is one focusable input: a whole question, or one field of a
// structured question.
type target struct {
	q     *catalog.Question
	field string
}

func (t target) inputKey() string {
	if t.field == "" {
		return t.q.Key
	}
	return t.q.Key + "." + t.field
}

func (t target) isText() bool {
	switch t.q.Type {
	case catalog.TypeText, catalog.TypeTextarea, catalog.TypeEmail, catalog.TypeStructured:
		return true
	}
	return false
}

// Wizard is the bubbletea model for the assessment questionnaire.
type Wizard struct {
	ctx    context.Context
	ctrl   *wizard.Controller
	saver  Saver
	submit SubmitFunc
	now    func() time.Time

	focus  int
	cursor map[string]int
	inputs map[string]textinput.Model

	status     string
	err        error
	submitting bool
	width      int

	// AssessmentID is set once the submission succeeded.
	AssessmentID int64
	// Quit reports the user left without submitting.
	Quit bool
}

// NewWizard drives ctrl. Every change is handed to saver.
func NewWizard(ctx context.Context, ctrl *wizard.Controller, saver Saver, submit SubmitFunc) *Wizard {
	w := &Wizard{
		ctx:    ctx,
		ctrl:   ctrl,
		saver:  saver,
		submit: submit,
		now:    time.Now,
		cursor: make(map[string]int),
		inputs: make(map[string]textinput.Model),
	}
	ctrl.OnChange(func() {
		w.saver.Touch(ctrl.Snapshot(w.now()))
	})
	w.syncFocus()
	return w
}

func (w *Wizard) Init() tea.Cmd {
	return textinput.Blink
}

func (w *Wizard) targets() []target {
	var out []target
	for _, q := range w.ctrl.VisibleQuestions(w.ctrl.CurrentStep()) {
		if q.Type == catalog.TypeStructured {
			for _, f := range q.Fields {
				out = append(out, target{q: q, field: f})
			}
			continue
		}
		out = append(out, target{q: q})
	}
	return out
}

func (w *Wizard) focused() (target, bool) {
	ts := w.targets()
	if len(ts) == 0 {
		return target{}, false
	}
	w.focus = max(0, min(w.focus, len(ts)-1))
	return ts[w.focus], true
}

// input returns the text input for t, seeded from the stored answer.
func (w *Wizard) input(t target) textinput.Model {
	if in, ok := w.inputs[t.inputKey()]; ok {
		return in
	}
	in := textinput.New()
	in.CharLimit = 2000
	in.Width = 60
	if t.field != "" {
		in.Placeholder = t.field
		if s, ok := w.ctrl.Answer(t.q.Key).(model.StructuredAnswer); ok {
			v, _ := s.Fields[t.field].(string)
			in.SetValue(v)
		}
	} else {
		in.SetValue(model.AnswerText(w.ctrl.Answer(t.q.Key)))
	}
	w.inputs[t.inputKey()] = in
	return in
}

func (w *Wizard) syncFocus() {
	cur, ok := w.focused()
	for _, t := range w.targets() {
		if !t.isText() {
			continue
		}
		in := w.input(t)
		if ok && t.inputKey() == cur.inputKey() {
			in.Focus()
		} else {
			in.Blur()
		}
		w.inputs[t.inputKey()] = in
	}
}

func (w *Wizard) moveFocus(delta int) {
	n := len(w.targets())
	if n == 0 {
		return
	}
	w.focus = (w.focus + delta + n) % n
	w.syncFocus()
}

func (w *Wizard) focusQuestion(key string) {
	for i, t := range w.targets() {
		if t.q.Key == key {
			w.focus = i
			break
		}
	}
	w.syncFocus()
}

// options lists the choices for a select, scale or ranking question.
func (w *Wizard) options(q *catalog.Question) []catalog.Option {
	if q.Type == catalog.TypeScale && q.Scale != nil {
		opts := make([]catalog.Option, 0, q.Scale.Max-q.Scale.Min+1)
		for v := q.Scale.Min; v <= q.Scale.Max; v++ {
			s := strconv.Itoa(v)
			opts = append(opts, catalog.Option{Value: s, Label: s})
		}
		return opts
	}
	return w.ctrl.VisibleOptions(q)
}

func (w *Wizard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w.width = msg.Width
		return w, nil
	case submitResultMsg:
		w.submitting = false
		if msg.err != nil {
			w.err = fmt.Errorf("submission failed: %w", msg.err)
			return w, nil
		}
		w.saver.Discard()
		w.AssessmentID = msg.id
		return w, tea.Quit
	case tea.KeyMsg:
		return w.handleKey(msg)
	}
	return w, nil
}

func (w *Wizard) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if w.submitting {
		return w, nil
	}

	switch msg.String() {
	case "ctrl+c", "esc":
		w.saver.Flush()
		w.Quit = true
		return w, tea.Quit
	case "ctrl+s":
		w.saver.Flush()
		w.status = "Progress saved"
		return w, nil
	case "ctrl+n":
		return w.next()
	case "ctrl+b":
		w.ctrl.Back()
		w.resetStep()
		return w, nil
	case "tab":
		w.moveFocus(1)
		return w, nil
	case "shift+tab":
		w.moveFocus(-1)
		return w, nil
	}

	t, ok := w.focused()
	if !ok {
		return w, nil
	}
	if t.isText() {
		return w.handleTextKey(t, msg)
	}
	return w.handleOptionKey(t, msg)
}

func (w *Wizard) handleTextKey(t target, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "down":
		w.moveFocus(1)
		return w, nil
	case "up":
		w.moveFocus(-1)
		return w, nil
	}

	in, cmd := w.input(t).Update(msg)
	w.inputs[t.inputKey()] = in
	w.setErr(w.commitText(t, in.Value()))
	return w, cmd
}

func (w *Wizard) commitText(t target, value string) error {
	if t.field == "" {
		return w.ctrl.SetAnswer(t.q.Key, model.ScalarAnswer{Text: value})
	}
	fields := map[string]any{}
	if s, ok := w.ctrl.Answer(t.q.Key).(model.StructuredAnswer); ok {
		fields = maps.Clone(s.Fields)
	}
	fields[t.field] = value
	return w.ctrl.SetAnswer(t.q.Key, model.StructuredAnswer{Fields: fields})
}

func (w *Wizard) handleOptionKey(t target, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	opts := w.options(t.q)
	if len(opts) == 0 {
		return w, nil
	}
	cur := max(0, min(w.cursor[t.q.Key], len(opts)-1))

	switch msg.String() {
	case "up", "k":
		w.cursor[t.q.Key] = (cur - 1 + len(opts)) % len(opts)
	case "down", "j":
		w.cursor[t.q.Key] = (cur + 1) % len(opts)
	case " ", "enter", "x":
		w.setErr(w.choose(t.q, opts[cur].Value))
	}
	return w, nil
}

func (w *Wizard) choose(q *catalog.Question, value string) error {
	switch q.Type {
	case catalog.TypeMultiSelect:
		return w.ctrl.ToggleOption(q.Key, value)
	case catalog.TypeRanking:
		return w.ctrl.ToggleRanked(q.Key, value)
	default:
		return w.ctrl.SetAnswer(q.Key, model.ScalarAnswer{Text: value})
	}
}

func (w *Wizard) setErr(err error) {
	w.err = err
	if err == nil {
		w.status = ""
	}
}

func (w *Wizard) next() (tea.Model, tea.Cmd) {
	res := w.ctrl.Next()
	switch res.Action {
	case wizard.ActionBlocked:
		w.err = res.Err
		w.focusQuestion(res.FocusKey)
		return w, nil
	case wizard.ActionSubmit:
		w.submitting = true
		w.err = nil
		w.status = "Submitting..."
		sub := w.ctrl.BuildSubmission(w.now())
		return w, func() tea.Msg {
			id, err := w.submit(w.ctx, sub)
			return submitResultMsg{id: id, err: err}
		}
	default:
		w.resetStep()
		return w, nil
	}
}

func (w *Wizard) resetStep() {
	w.focus = 0
	w.err = nil
	w.status = ""
	w.syncFocus()
}

func (w *Wizard) View() string {
	step := w.ctrl.Catalog().Step(w.ctrl.CurrentStep())
	if step == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Step %d of %d · %s", step.Number, w.ctrl.TotalSteps(), step.Title)))
	b.WriteString("\n")
	if step.Description != "" {
		b.WriteString(subtitleStyle.Render(step.Description))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	cur, _ := w.focused()
	for _, q := range w.ctrl.VisibleQuestions(step.Number) {
		b.WriteString(w.renderQuestion(q, cur))
		b.WriteString("\n")
	}

	if w.err != nil {
		b.WriteString(errorStyle.Render(w.err.Error()))
		b.WriteString("\n")
	} else if w.status != "" {
		b.WriteString(statusStyle.Render(w.status))
		b.WriteString("\n")
	}

	action := "ctrl+n next"
	if w.ctrl.IsLastStep() {
		action = "ctrl+n submit"
	}
	b.WriteString(hintStyle.Render(fmt.Sprintf("tab move · space select · %s · ctrl+b back · ctrl+s save · esc quit", action)))

	width := w.width
	if width <= 0 {
		width = 80
	}
	return boxStyle.Width(max(40, width-4)).Render(b.String())
}

func (w *Wizard) renderQuestion(q *catalog.Question, cur target) string {
	var b strings.Builder
	label := q.Text
	if q.Required {
		label += " *"
	}
	if cur.q == q {
		b.WriteString(focusedStyle.Render("› " + label))
	} else {
		b.WriteString(questionStyle.Render("  " + label))
	}
	b.WriteString("\n")

	switch q.Type {
	case catalog.TypeText, catalog.TypeTextarea, catalog.TypeEmail:
		in := w.input(target{q: q})
		b.WriteString("    " + in.View() + "\n")
	case catalog.TypeStructured:
		for _, f := range q.Fields {
			in := w.input(target{q: q, field: f})
			b.WriteString(fmt.Sprintf("    %-8s %s\n", f, in.View()))
		}
	default:
		b.WriteString(w.renderOptions(q, cur.q == q))
	}
	return b.String()
}

func (w *Wizard) renderOptions(q *catalog.Question, focused bool) string {
	ans := w.ctrl.Answer(q.Key)
	var lines []string
	for i, opt := range w.options(q) {
		mark := "( )"
		switch a := ans.(type) {
		case model.ScalarAnswer:
			if a.Text == opt.Value {
				mark = "(•)"
			}
		case model.MultiSelectAnswer:
			mark = "[ ]"
			if a.Contains(opt.Value) {
				mark = "[x]"
			}
		case model.RankedAnswer:
			mark = "[ ]"
			if rank := slices.Index(a.Ranked, opt.Value); rank >= 0 {
				mark = fmt.Sprintf("[%d]", rank+1)
			}
		default:
			if q.Type == catalog.TypeMultiSelect || q.Type == catalog.TypeRanking {
				mark = "[ ]"
			}
		}

		line := fmt.Sprintf("    %s %s", mark, opt.Label)
		if focused && i == w.cursor[q.Key] {
			line = focusedStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...) + "\n"
}

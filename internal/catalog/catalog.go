package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/model"
)

//go:embed questions.yaml
var defaultYAML []byte

type QuestionType string

const (
	TypeSingleSelect QuestionType = "single_select"
	TypeMultiSelect  QuestionType = "multi_select"
	TypeText         QuestionType = "text"
	TypeTextarea     QuestionType = "textarea"
	TypeEmail        QuestionType = "email"
	TypeScale        QuestionType = "scale"
	TypeRanking      QuestionType = "ranking"
	TypeStructured   QuestionType = "structured"
)

var ErrInvalidCatalog = errors.New("invalid question catalog")

type Catalog struct {
	Version string `yaml:"version" json:"version"`
	Steps   []Step `yaml:"steps" json:"steps"`

	byKey  map[string]*Question
	stepOf map[string]int
}

type Step struct {
	Number      int        `yaml:"number" json:"number"`
	Title       string     `yaml:"title" json:"title"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Questions   []Question `yaml:"questions" json:"questions"`
}

type Question struct {
	Key      string       `yaml:"key" json:"key"`
	Text     string       `yaml:"text" json:"text"`
	Type     QuestionType `yaml:"type" json:"type"`
	Required bool         `yaml:"required,omitempty" json:"required,omitempty"`
	Options  []Option     `yaml:"options,omitempty" json:"options,omitempty"`
	// Fields names the sub-fields of a structured question.
	Fields []string `yaml:"fields,omitempty" json:"fields,omitempty"`
	ShowIf *Condition `yaml:"show_if,omitempty" json:"show_if,omitempty"`
	// FilterOptionsBy is the key of a question whose answer narrows Options
	// carrying an Industries list.
	FilterOptionsBy string         `yaml:"filter_options_by,omitempty" json:"filter_options_by,omitempty"`
	MaxSelections   int            `yaml:"max_selections,omitempty" json:"max_selections,omitempty"`
	ScoreMap        map[string]int `yaml:"score_map,omitempty" json:"score_map,omitempty"`
	Scale           *ScaleRange    `yaml:"scale,omitempty" json:"scale,omitempty"`
}

type Option struct {
	Value      string   `yaml:"value" json:"value"`
	Label      string   `yaml:"label" json:"label"`
	Industries []string `yaml:"industries,omitempty" json:"industries,omitempty"`
}

// Condition shows a question only when another answer matches. Equals compares
// a scalar answer; Includes checks membership in a multi-select or ranking.
type Condition struct {
	Question string `yaml:"question" json:"question"`
	Equals   string `yaml:"equals,omitempty" json:"equals,omitempty"`
	Includes string `yaml:"includes,omitempty" json:"includes,omitempty"`
}

type ScaleRange struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

// Load parses and validates a YAML catalog.
func Load(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default returns the embedded catalog. It panics if the embedded file is
// invalid, which the package tests rule out.
func Default() *Catalog {
	c, err := Load(bytes.NewReader(defaultYAML))
	if err != nil {
		panic(fmt.Sprintf("embedded question catalog: %v", err))
	}
	return c
}

// Validate checks structural rules and builds the key index.
func (c *Catalog) Validate() error {
	if len(c.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidCatalog)
	}

	byKey := make(map[string]*Question)
	stepOf := make(map[string]int)
	for si := range c.Steps {
		step := &c.Steps[si]
		if step.Number != si+1 {
			return fmt.Errorf("%w: step %d is numbered %d", ErrInvalidCatalog, si+1, step.Number)
		}
		for qi := range step.Questions {
			q := &step.Questions[qi]
			if q.Key == "" {
				return fmt.Errorf("%w: step %d question %d has no key", ErrInvalidCatalog, step.Number, qi+1)
			}
			if _, dup := byKey[q.Key]; dup {
				return fmt.Errorf("%w: duplicate question key %q", ErrInvalidCatalog, q.Key)
			}
			if err := q.validate(byKey); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalidCatalog, q.Key, err)
			}
			byKey[q.Key] = q
			stepOf[q.Key] = step.Number
		}
	}

	c.byKey = byKey
	c.stepOf = stepOf
	return nil
}

// validate checks q against the questions declared before it.
func (q *Question) validate(earlier map[string]*Question) error {
	switch q.Type {
	case TypeSingleSelect, TypeMultiSelect, TypeRanking:
		if len(q.Options) == 0 {
			return fmt.Errorf("%s question needs options", q.Type)
		}
	case TypeStructured:
		if len(q.Fields) == 0 {
			return errors.New("structured question needs fields")
		}
	case TypeScale:
		if q.Scale == nil || q.Scale.Min >= q.Scale.Max {
			return errors.New("scale question needs min < max")
		}
	case TypeText, TypeTextarea, TypeEmail:
	default:
		return fmt.Errorf("unknown type %q", q.Type)
	}

	if q.Type == TypeRanking && q.MaxSelections <= 0 {
		return errors.New("ranking question needs max_selections")
	}

	if q.ShowIf != nil {
		if _, ok := earlier[q.ShowIf.Question]; !ok {
			return fmt.Errorf("show_if references %q, which is not declared earlier", q.ShowIf.Question)
		}
		if (q.ShowIf.Equals == "") == (q.ShowIf.Includes == "") {
			return errors.New("show_if needs exactly one of equals or includes")
		}
	}

	if q.FilterOptionsBy != "" {
		if _, ok := earlier[q.FilterOptionsBy]; !ok {
			return fmt.Errorf("filter_options_by references %q, which is not declared earlier", q.FilterOptionsBy)
		}
	}

	for _, score := range q.ScoreMap {
		if score < 1 || score > 5 {
			return fmt.Errorf("score_map values must be within 1..5, got %d", score)
		}
	}
	return nil
}

func (c *Catalog) TotalSteps() int {
	return len(c.Steps)
}

// Step returns step n (1-based) or nil when out of range.
func (c *Catalog) Step(n int) *Step {
	if n < 1 || n > len(c.Steps) {
		return nil
	}
	return &c.Steps[n-1]
}

func (c *Catalog) Question(key string) (*Question, bool) {
	q, ok := c.byKey[key]
	return q, ok
}

// StepOf returns the step number declaring key, or 0.
func (c *Catalog) StepOf(key string) int {
	return c.stepOf[key]
}

// AnswerKind maps the question type onto the Answer variant it stores.
func (q *Question) AnswerKind() model.AnswerKind {
	switch q.Type {
	case TypeMultiSelect:
		return model.AnswerKindMultiSelect
	case TypeRanking:
		return model.AnswerKindRanked
	case TypeStructured:
		return model.AnswerKindStructured
	default:
		return model.AnswerKindScalar
	}
}

// HasOption reports whether v is one of the declared option values.
func (q *Question) HasOption(v string) bool {
	return slices.ContainsFunc(q.Options, func(o Option) bool { return o.Value == v })
}

// Met reports whether the condition holds for the given answers.
func (cond *Condition) Met(answers model.Answers) bool {
	ans := answers[cond.Question]
	if model.AnswerIsEmpty(ans) {
		return false
	}
	if cond.Equals != "" {
		return model.AnswerText(ans) == cond.Equals
	}
	switch a := ans.(type) {
	case model.MultiSelectAnswer:
		return a.Contains(cond.Includes)
	case model.RankedAnswer:
		return slices.Contains(a.Ranked, cond.Includes)
	}
	return false
}

// VisibleTo reports whether an option is shown for the discriminating value.
// Options without Industries are always shown.
func (o Option) VisibleTo(value string) bool {
	if len(o.Industries) == 0 {
		return true
	}
	return slices.Contains(o.Industries, value)
}

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// AnswerKind selects the Answer variant. It follows the question type declared
// in the catalog, so the same stored JSON array can be a multi-select or a ranking.
type AnswerKind string

const (
	AnswerKindScalar      AnswerKind = "scalar"
	AnswerKindMultiSelect AnswerKind = "multi_select"
	AnswerKindStructured  AnswerKind = "structured"
	AnswerKindRanked      AnswerKind = "ranked"
)

// Answer is one of ScalarAnswer, MultiSelectAnswer, StructuredAnswer or RankedAnswer.
type Answer interface {
	Kind() AnswerKind
	// IsEmpty reports whether the answer counts as unanswered for completeness checks.
	IsEmpty() bool
	// Value is the bare JSON shape stored in answer_value: string, []string or object.
	Value() any
}

type ScalarAnswer struct {
	Text string
}

type MultiSelectAnswer struct {
	Values []string
}

type StructuredAnswer struct {
	Fields map[string]any
}

// RankedAnswer holds selections in rank order; index 0 is rank 1.
type RankedAnswer struct {
	Ranked []string
}

func (ScalarAnswer) Kind() AnswerKind { return AnswerKindScalar }
func (MultiSelectAnswer) Kind() AnswerKind { return AnswerKindMultiSelect }
func (StructuredAnswer) Kind() AnswerKind { return AnswerKindStructured }
func (RankedAnswer) Kind() AnswerKind { return AnswerKindRanked }

func (a ScalarAnswer) IsEmpty() bool { return a.Text == "" }
func (a MultiSelectAnswer) IsEmpty() bool { return len(a.Values) == 0 }
func (a RankedAnswer) IsEmpty() bool { return len(a.Ranked) == 0 }

// IsEmpty is true when no field holds a value.
func (a StructuredAnswer) IsEmpty() bool {
	for _, v := range a.Fields {
		if s, ok := v.(string); v != nil && (!ok || s != "") {
			return false
		}
	}
	return true
}

func (a ScalarAnswer) Value() any { return a.Text }

func (a MultiSelectAnswer) Value() any {
	if a.Values == nil {
		return []string{}
	}
	return a.Values
}

func (a StructuredAnswer) Value() any { return a.Fields }

func (a RankedAnswer) Value() any {
	if a.Ranked == nil {
		return []string{}
	}
	return a.Ranked
}

// Contains reports whether v is among the selected values.
func (a MultiSelectAnswer) Contains(v string) bool {
	for _, s := range a.Values {
		if s == v {
			return true
		}
	}
	return false
}

// AnswerIsEmpty treats a nil Answer as unanswered.
func AnswerIsEmpty(a Answer) bool {
	return a == nil || a.IsEmpty()
}

// AnswerText returns the scalar text of a, or "" for other variants.
func AnswerText(a Answer) string {
	if s, ok := a.(ScalarAnswer); ok {
		return s.Text
	}
	return ""
}

// MarshalAnswer encodes the bare value stored in answer_value.
func MarshalAnswer(a Answer) (json.RawMessage, error) {
	if a == nil {
		return json.RawMessage("null"), nil
	}
	return json.Marshal(a.Value())
}

// DecodeAnswer decodes a bare answer_value as the given kind. Scalars accept
// numbers and booleans and keep their JSON text.
func DecodeAnswer(kind AnswerKind, raw json.RawMessage) (Answer, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	switch kind {
	case AnswerKindScalar:
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return ScalarAnswer{Text: s}, nil
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			return ScalarAnswer{Text: n.String()}, nil
		}
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			return ScalarAnswer{Text: strconv.FormatBool(b)}, nil
		}
		return nil, fmt.Errorf("decoding scalar answer: unexpected %s", raw)
	case AnswerKindMultiSelect, AnswerKindRanked:
		var values []string
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, fmt.Errorf("decoding %s answer: %w", kind, err)
		}
		if kind == AnswerKindRanked {
			return RankedAnswer{Ranked: values}, nil
		}
		return MultiSelectAnswer{Values: values}, nil
	case AnswerKindStructured:
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("decoding structured answer: %w", err)
		}
		return StructuredAnswer{Fields: fields}, nil
	default:
		return nil, fmt.Errorf("unknown answer kind %q", kind)
	}
}

// InferAnswer decodes answer_value from its JSON shape alone. Arrays come back
// as MultiSelectAnswer; use AnswerAs when the question is a ranking.
func InferAnswer(raw json.RawMessage) (Answer, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	switch raw[0] {
	case '[':
		return DecodeAnswer(AnswerKindMultiSelect, raw)
	case '{':
		return DecodeAnswer(AnswerKindStructured, raw)
	default:
		return DecodeAnswer(AnswerKindScalar, raw)
	}
}

// AnswerAs converts between the list variants; other mismatches are returned unchanged.
func AnswerAs(kind AnswerKind, a Answer) Answer {
	switch v := a.(type) {
	case MultiSelectAnswer:
		if kind == AnswerKindRanked {
			return RankedAnswer{Ranked: v.Values}
		}
	case RankedAnswer:
		if kind == AnswerKindMultiSelect {
			return MultiSelectAnswer{Values: v.Ranked}
		}
	}
	return a
}

// Answers is an answer map keyed by question key. Its JSON form tags each
// value with its kind so a snapshot restores the exact variants it saved.
type Answers map[string]Answer

type taggedAnswer struct {
	Kind  AnswerKind      `json:"kind"`
	Value json.RawMessage `json:"value"`
}

func (a Answers) MarshalJSON() ([]byte, error) {
	out := make(map[string]taggedAnswer, len(a))
	for key, ans := range a {
		if ans == nil {
			continue
		}
		raw, err := MarshalAnswer(ans)
		if err != nil {
			return nil, fmt.Errorf("encoding answer %q: %w", key, err)
		}
		out[key] = taggedAnswer{Kind: ans.Kind(), Value: raw}
	}
	return json.Marshal(out)
}

func (a *Answers) UnmarshalJSON(data []byte) error {
	var in map[string]taggedAnswer
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	out := make(Answers, len(in))
	for key, t := range in {
		ans, err := DecodeAnswer(t.Kind, t.Value)
		if err != nil {
			return fmt.Errorf("decoding answer %q: %w", key, err)
		}
		if ans != nil {
			out[key] = ans
		}
	}
	*a = out
	return nil
}

// Clone returns a shallow copy with list variants copied.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		switch t := v.(type) {
		case MultiSelectAnswer:
			out[k] = MultiSelectAnswer{Values: append([]string(nil), t.Values...)}
		case RankedAnswer:
			out[k] = RankedAnswer{Ranked: append([]string(nil), t.Ranked...)}
		default:
			out[k] = v
		}
	}
	return out
}

package election

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Kind selects how the choices of an answer are read.
type Kind string

const (
	// Approval answers are unordered sets of choices.
	Approval Kind = "approval"
	// Preferential answers rank choices, most preferred first.
	Preferential Kind = "preferential"
)

// Question is one contest of the election.
//
// MaxChoices 0 stands for the number of choices.
type Question struct {
	Prompt     string
	Kind       Kind
	Choices    []string
	MinChoices int
	MaxChoices int
}

// Answer is a voter's selection for one question, as indices into Question.Choices.
type Answer struct {
	Choices []int `json:"choices"`
}

// Equal compares the selections; a nil and an empty selection are equal.
// A nil answer, a spoiled entry, only equals another nil answer.
func (a *Answer) Equal(other *Answer) bool {
	if a == nil || other == nil {
		return a == other
	}
	if len(a.Choices) != len(other.Choices) {
		return false
	}
	for i := range a.Choices {
		if a.Choices[i] != other.Choices[i] {
			return false
		}
	}
	return true
}

func (a *Answer) key() string {
	return fmt.Sprint(a.Choices)
}

func (q *Question) maxChoices() int {
	if q.MaxChoices == 0 {
		return len(q.Choices)
	}
	return q.MaxChoices
}

// Validate checks the shape of the question.
func (q *Question) Validate() error {
	switch q.Kind {
	case Approval, Preferential:
	default:
		return fmt.Errorf("election: unknown question kind %q", q.Kind)
	}
	if len(q.Choices) == 0 {
		return fmt.Errorf("election: question %q has no choices", q.Prompt)
	}
	if q.MinChoices < 0 || q.MaxChoices < 0 || q.MinChoices > q.maxChoices() || q.maxChoices() > len(q.Choices) {
		return fmt.Errorf("election: question %q: invalid choice bounds [%d, %d]", q.Prompt, q.MinChoices, q.MaxChoices)
	}
	return nil
}

// Check returns ErrInvalidAnswer unless a selects between MinChoices and MaxChoices distinct choices.
func (q *Question) Check(a *Answer) error {
	if a == nil {
		return fmt.Errorf("%w: missing", ErrInvalidAnswer)
	}
	if n := len(a.Choices); n < q.MinChoices || n > q.maxChoices() {
		return fmt.Errorf("%w: %d choices, need between %d and %d", ErrInvalidAnswer, n, q.MinChoices, q.maxChoices())
	}
	seen := make(map[int]bool, len(a.Choices))
	for _, c := range a.Choices {
		if c < 0 || c >= len(q.Choices) {
			return fmt.Errorf("%w: no choice %d", ErrInvalidAnswer, c)
		}
		if seen[c] {
			return fmt.Errorf("%w: choice %d selected twice", ErrInvalidAnswer, c)
		}
		seen[c] = true
	}
	return nil
}

// normalize returns a copy of a in canonical form: approval choices are unordered, so they are sorted.
func (q *Question) normalize(a *Answer) *Answer {
	out := &Answer{Choices: append([]int{}, a.Choices...)}
	if q.Kind == Approval {
		sort.Ints(out.Choices)
	}
	return out
}

// Pretty renders the answer with the names of the choices.
func (q *Question) Pretty(a *Answer) string {
	names := make([]string, len(a.Choices))
	for i, c := range a.Choices {
		name := fmt.Sprintf("#%d", c)
		if c >= 0 && c < len(q.Choices) {
			name = q.Choices[c]
		}
		if q.Kind == Preferential {
			name = fmt.Sprintf("%d. %s", i+1, name)
		}
		names[i] = name
	}
	return strings.Join(names, ", ")
}

// textLength bounds the length of the text of any valid answer.
func (q *Question) textLength() int {
	widest := &Answer{Choices: make([]int, q.maxChoices())}
	for i := range widest.Choices {
		widest.Choices[i] = len(q.Choices) - 1
	}
	text, _ := json.Marshal(widest)
	return len(text)
}

// Domain implements hash.WriterToWithDomain.
func (*Question) Domain() string { return "Question" }

// WriteTo implements io.WriterTo.
func (q *Question) WriteTo(w io.Writer) (int64, error) {
	data := []interface{}{q.Prompt, string(q.Kind), q.MinChoices, q.MaxChoices, len(q.Choices)}
	for _, c := range q.Choices {
		data = append(data, c)
	}
	return writeAll(w, data...)
}

package election

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Result is the flat list of decrypted answers of one question, in the order of the last mix.
// A nil answer is a spoiled entry, one that did not decode to a valid answer.
type Result struct {
	Answers []*Answer
}

// Spoiled returns the number of entries that are not counted.
func (r *Result) Spoiled() int {
	n := 0
	for _, a := range r.Answers {
		if a == nil {
			n++
		}
	}
	return n
}

// AnswerCount is a distinct answer and the number of ballots carrying it.
type AnswerCount struct {
	Answer *Answer
	Count  int
}

// Count groups identical answers, most frequent first. Ties keep the order of first appearance.
// Spoiled entries are left out.
func (r *Result) Count() []AnswerCount {
	index := make(map[string]int)
	var out []AnswerCount
	for _, a := range r.Answers {
		if a == nil {
			continue
		}
		k := a.key()
		if i, ok := index[k]; ok {
			out[i].Count++
			continue
		}
		index[k] = len(out)
		out = append(out, AnswerCount{Answer: a, Count: 1})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// Tally counts how many answers select each choice.
func (r *Result) Tally() map[int]int {
	out := make(map[int]int)
	for _, a := range r.Answers {
		if a == nil {
			continue
		}
		for _, c := range a.Choices {
			out[c]++
		}
	}
	return out
}

// WriteBLT renders the result of question q in the ballot-list format read by STV counting tools:
// a header with the number of candidates and seats, an optional line of withdrawn candidates,
// one line per distinct ballot, a 0 sentinel, then the quoted candidate names and title.
func WriteBLT(w io.Writer, e *Election, q, seats int, withdrawn []int) error {
	question, err := e.Question(q)
	if err != nil {
		return err
	}
	result := e.Results[q]
	if result == nil {
		return fmt.Errorf("%w: question %d has no result", ErrNotReady, q)
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d %d\n", len(question.Choices), seats)
	if len(withdrawn) > 0 {
		ids := make([]string, len(withdrawn))
		for i, c := range withdrawn {
			if c < 0 || c >= len(question.Choices) {
				return fmt.Errorf("election: no choice %d to withdraw", c)
			}
			ids[i] = fmt.Sprintf("-%d", c+1)
		}
		fmt.Fprintln(bw, strings.Join(ids, " "))
	}
	for _, c := range result.Count() {
		fmt.Fprintf(bw, "%d", c.Count)
		for _, choice := range c.Answer.Choices {
			fmt.Fprintf(bw, " %d", choice+1)
		}
		fmt.Fprintln(bw, " 0")
	}
	fmt.Fprintln(bw, "0")
	for _, name := range question.Choices {
		fmt.Fprintf(bw, "%q\n", name)
	}
	fmt.Fprintf(bw, "%q\n", e.Name+" - "+question.Prompt)
	return bw.Flush()
}

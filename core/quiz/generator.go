package quiz

import (
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	blankMCQ  = "_____"
	blankFill = "______"

	fullProgramQuestion  = "Write a simple program related to this chapter topic."
	mixedProgramQuestion = "Write a simple program based on today's topic."
)

var wordRegex = regexp.MustCompile(`\w+`)

// Generator builds quizzes out of raw chapter text by masking words of its sentences.
// It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewGenerator returns a Generator seeded from src, or from the clock when src is nil.
func NewGenerator(src rand.Source) *Generator {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Generator{rnd: rand.New(src)}
}

// splitOnDots splits text on `.` and keeps trimmed parts longer than minLen characters.
func splitOnDots(text string, minLen int) []string {
	var out []string
	for _, s := range strings.Split(text, ".") {
		if s = strings.TrimSpace(s); utf8.RuneCountInString(s) > minLen {
			out = append(out, s)
		}
	}
	return out
}

func window(sentences []string, from, to int) []string {
	if from >= len(sentences) {
		return nil
	}
	if to > len(sentences) {
		to = len(sentences)
	}
	return sentences[from:to]
}

func longWords(s string) []string {
	var words []string
	for _, w := range wordRegex.FindAllString(s, -1) {
		if utf8.RuneCountInString(w) > 4 {
			words = append(words, w)
		}
	}
	return words
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

// replaceFirstFold replaces the first case-insensitive occurrence of old in s.
func replaceFirstFold(s, old, repl string) string {
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(old))
	done := false
	return re.ReplaceAllStringFunc(s, func(m string) string {
		if done {
			return m
		}
		done = true
		return repl
	})
}

// mcq masks the first long word of s. Up to 3 distinct other long words are picked as distractors,
// padded with the reversed answer.
func (g *Generator) mcq(s string, minWords int) (Question, bool) {
	words := longWords(s)
	if len(words) == 0 || len(words) < minWords {
		return Question{}, false
	}
	correct := words[0]

	seen := map[string]bool{strings.ToLower(correct): true}
	var candidates []string
	for _, w := range words[1:] {
		if lw := strings.ToLower(w); !seen[lw] {
			seen[lw] = true
			candidates = append(candidates, w)
		}
	}
	g.rnd.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
	if len(candidates) > 3 {
		candidates = candidates[:3]
	}
	for len(candidates) < 3 {
		candidates = append(candidates, reverse(correct))
	}

	options := append([]string{correct}, candidates...)
	g.rnd.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })
	return Question{
		Question: "Fill in the blank: " + replaceFirstFold(s, correct, blankMCQ),
		Options:  options,
		Answer:   correct,
	}, true
}

// fill masks the last word of s; sentences with fewer than 4 words are skipped.
func fill(s string, all bool) (Question, bool) {
	words := strings.Fields(s)
	if len(words) < 4 {
		return Question{}, false
	}
	answer := words[len(words)-1]
	n := 1
	if all {
		n = -1
	}
	return Question{Question: strings.Replace(s, answer, blankFill, n), Answer: answer}, true
}

// GenerateFull builds a chapter quiz: mcq from the first 5 sentences, fill from the next 5,
// 3 short and 2 long questions, and one program question.
func (g *Generator) GenerateFull(text string) Questions {
	qs := NewQuestions()
	sentences := splitOnDots(text, 25)
	if len(sentences) == 0 {
		return qs
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, s := range window(sentences, 0, 5) {
		if q, ok := g.mcq(s, 1); ok {
			qs.MCQ = append(qs.MCQ, q)
		}
	}
	for _, s := range window(sentences, 5, 10) {
		if q, ok := fill(s, false); ok {
			qs.Fill = append(qs.Fill, q)
		}
	}
	for _, s := range window(sentences, 10, 13) {
		qs.Short = append(qs.Short, Question{Question: "Explain: " + s})
	}
	for _, s := range window(sentences, 13, 15) {
		qs.Long = append(qs.Long, Question{Question: "Write a detailed note on: " + s})
	}
	qs.Program = append(qs.Program, Question{Question: fullProgramQuestion})
	return qs
}

// GenerateMixed builds the daily/weekly quiz: up to 10 mcq, 5 fill, 5 short, 4 long and one
// program question.
func (g *Generator) GenerateMixed(text string) Questions {
	qs := NewQuestions()
	sentences := splitOnDots(text, 20)
	if len(sentences) == 0 {
		return qs
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, s := range window(sentences, 0, 10) {
		if q, ok := g.mcq(s, 2); ok {
			qs.MCQ = append(qs.MCQ, q)
		}
	}
	for _, s := range window(sentences, 10, 15) {
		if q, ok := fill(s, true); ok {
			qs.Fill = append(qs.Fill, q)
		}
	}
	for _, s := range window(sentences, 15, 20) {
		qs.Short = append(qs.Short, Question{Question: "Explain briefly: " + s})
	}
	for _, s := range window(sentences, 20, 24) {
		qs.Long = append(qs.Long, Question{Question: "Write a detailed answer on: " + s})
	}
	qs.Program = append(qs.Program, Question{Question: mixedProgramQuestion})
	return qs
}

// Sample returns up to n distinct random items of items.
func (g *Generator) Sample(items []string, n int) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	cp := append([]string(nil), items...)
	g.rnd.Shuffle(len(cp), func(i, j int) { cp[i], cp[j] = cp[j], cp[i] })
	if n < len(cp) {
		cp = cp[:n]
	}
	return cp
}

// Pick returns a random item of items, or "" when empty.
func (g *Generator) Pick(items []string) string {
	if len(items) == 0 {
		return ""
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return items[g.rnd.Intn(len(items))]
}

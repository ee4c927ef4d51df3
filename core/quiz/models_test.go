package quiz

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrade(t *testing.T) {
	qs := Questions{
		MCQ:  []Question{{Question: "q1", Answer: "Java"}, {Question: "q2", Answer: "loop"}},
		Fill: []Question{{Question: "q3", Answer: "class"}},
	}
	ans := Answers{MCQ: []string{"  java ", "wrong"}}

	res := Grade(qs, ans, true)
	assert.Equal(t, 1, res.Correct)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 33.33, res.Percent)
	assert.Equal(t, []Mistake{
		{Type: "mcq", Question: "q2", Expected: "loop", Given: "wrong"},
		{Type: "fill", Question: "q3", Expected: "class", Given: ""},
	}, res.Mistakes)

	res = Grade(qs, ans, false)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, float64(50), res.Percent)

	res = Grade(NewQuestions(), Answers{}, true)
	assert.Zero(t, res.Percent)
	assert.NotNil(t, res.Mistakes)
}

func TestAITip(t *testing.T) {
	assert.Equal(t, excellentTip, AITip(nil))
	assert.Equal(t, "Revise core concepts of Loops | Revise core concepts of Arrays",
		AITip([]string{"Loops", "Arrays", "Loops"}))
}

func TestStreak(t *testing.T) {
	today := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	day := func(n int) time.Time { return today.AddDate(0, 0, -n).Add(3 * time.Hour) }

	tests := []struct {
		name  string
		dates []time.Time
		want  int
	}{
		{name: "none", want: 0},
		{name: "today only", dates: []time.Time{day(0)}, want: 1},
		{name: "three days", dates: []time.Time{day(0), day(1), day(2)}, want: 3},
		{name: "not yet today", dates: []time.Time{day(1), day(2)}, want: 2},
		{name: "gap", dates: []time.Time{day(0), day(2), day(3)}, want: 1},
		{name: "broken", dates: []time.Time{day(2), day(3)}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Streak(tt.dates, today))
		})
	}
}

func TestTopicStat_Record(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ts TopicStat

	ts.Record(3, 4, now)
	assert.Equal(t, 1, ts.Attempts)
	assert.Equal(t, float64(75), ts.MasteryScore)
	assert.Equal(t, float64(75), ts.ImprovementRate)
	assert.Equal(t, now, ts.LastImprovedAt)

	next := now.AddDate(0, 0, 1)
	ts.Record(1, 4, next)
	assert.Equal(t, float64(50), ts.MasteryScore)
	assert.Equal(t, float64(75), ts.LastMasteryScore)
	assert.Equal(t, float64(-25), ts.ImprovementRate)
	assert.Equal(t, now, ts.LastImprovedAt)
	assert.Equal(t, next, ts.LastAttempted)

	// idle for 20 days: 8/12 decayed by 5%
	ts.Record(4, 4, next.AddDate(0, 0, 20))
	assert.Equal(t, 63.33, ts.MasteryScore)
	assert.Equal(t, 16.67, ts.ImprovementRate)
}

func TestTopicStat_Decay(t *testing.T) {
	now := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

	ts := TopicStat{MasteryScore: 80, LastAttempted: now.AddDate(0, 0, -15)}
	assert.True(t, ts.Decay(now))
	assert.Equal(t, float64(76), ts.MasteryScore)

	ts = TopicStat{MasteryScore: 80, LastAttempted: now.AddDate(0, 0, -10)}
	assert.False(t, ts.Decay(now))
	assert.Equal(t, float64(80), ts.MasteryScore)

	ts = TopicStat{LastAttempted: now.AddDate(0, 0, -30)}
	assert.False(t, ts.Decay(now))
}

func TestBankQuestion_ToQuestion(t *testing.T) {
	bq := BankQuestion{Question: "2+2?", OptionA: "3", OptionB: "4", OptionC: "5", OptionD: "22", CorrectOption: "b"}
	q := bq.ToQuestion()
	assert.Equal(t, "4", q.Answer)
	assert.Equal(t, []string{"3", "4", "5", "22"}, q.Options)
}

func TestNewBankQuestion_Validate(t *testing.T) {
	validate := validator.New()

	nbq := NewBankQuestion{
		Subject: " Java ", Question: "Which keyword stops a loop?",
		OptionA: "stop", OptionB: "break", OptionC: "exit", OptionD: "halt", CorrectOption: " b ",
	}
	require.NoError(t, nbq.Validate(validate))
	assert.Equal(t, "java", nbq.Subject)
	assert.Equal(t, "B", nbq.CorrectOption)
	assert.Equal(t, "medium", nbq.Difficulty)

	nbq.CorrectOption = "E"
	assert.Error(t, nbq.Validate(validate))

	nbq.CorrectOption, nbq.Difficulty = "A", "insane"
	assert.Error(t, nbq.Validate(validate))
}

const loopsText = "A for loop repeats a block a fixed number of times. " +
	"A while loop repeats until its condition becomes false. " +
	"The break statement exits the nearest enclosing loop. " +
	"The continue statement skips to the next iteration. " +
	"Nested loops multiply the number of iterations. " +
	"An infinite loop never reaches its exit condition. " +
	"Loop counters are usually declared inside the header. " +
	"Short one. " +
	"Labelled breaks can leave several nested loops at once. " +
	"Iterators hide the index bookkeeping from the caller. " +
	"A do while loop always runs its body at least once. " +
	"Recursion can replace loops in functional code."

func TestGenerator_GenerateFull(t *testing.T) {
	g := NewGenerator(rand.NewSource(1))

	assert.True(t, g.GenerateFull("").IsEmpty())
	assert.True(t, g.GenerateFull("Too short. Also short.").IsEmpty())

	qs := g.GenerateFull(loopsText)
	require.Len(t, qs.MCQ, 5)
	assert.Len(t, qs.Fill, 5)
	assert.Len(t, qs.Short, 1)
	assert.Empty(t, qs.Long)
	assert.Equal(t, []Question{{Question: fullProgramQuestion}}, qs.Program)

	for _, q := range qs.MCQ {
		assert.True(t, strings.HasPrefix(q.Question, "Fill in the blank: "), q.Question)
		assert.Contains(t, q.Question, blankMCQ)
		assert.Len(t, q.Options, 4)
		assert.Contains(t, q.Options, q.Answer)
	}
	assert.Equal(t, "while", qs.MCQ[1].Answer)
	assert.Equal(t, "condition", qs.Fill[0].Answer)
	assert.Equal(t, "An infinite loop never reaches its exit "+blankFill, qs.Fill[0].Question)
	assert.Equal(t, "header", qs.Fill[1].Answer)
	assert.Equal(t, "Explain: Recursion can replace loops in functional code", qs.Short[0].Question)
}

func TestGenerator_GenerateMixed(t *testing.T) {
	g := NewGenerator(rand.NewSource(1))
	qs := g.GenerateMixed(loopsText)

	// every sentence longer than 20 characters has at least 2 long words
	assert.Len(t, qs.MCQ, 10)
	assert.Len(t, qs.Fill, 1)
	assert.Equal(t, []Question{{Question: mixedProgramQuestion}}, qs.Program)
}

func TestGenerator_mcq(t *testing.T) {
	g := NewGenerator(rand.NewSource(1))

	q, ok := g.mcq("Loops run and run and run", 1)
	require.True(t, ok)
	assert.Equal(t, "Loops", q.Answer)
	assert.ElementsMatch(t, []string{"Loops", "spooL", "spooL", "spooL"}, q.Options)
	assert.Equal(t, "Fill in the blank: _____ run and run and run", q.Question)

	_, ok = g.mcq("Loops run and run and run", 2)
	assert.False(t, ok)
}

func TestFill(t *testing.T) {
	_, ok := fill("too few words", false)
	assert.False(t, ok)

	q, ok := fill("the cat saw the cat", false)
	require.True(t, ok)
	assert.Equal(t, "cat", q.Answer)
	assert.Equal(t, "the ______ saw the cat", q.Question)

	q, _ = fill("the cat saw the cat", true)
	assert.Equal(t, "the ______ saw the ______", q.Question)
}

func TestReplaceFirstFold(t *testing.T) {
	assert.Equal(t, "_ is java", replaceFirstFold("Java is java", "JAVA", "_"))
	assert.Equal(t, "a+b", replaceFirstFold("a+b", "c", "_"))
}

func TestGenerator_SampleAndPick(t *testing.T) {
	g := NewGenerator(rand.NewSource(1))
	items := []string{"a", "b", "c", "d"}

	sample := g.Sample(items, 2)
	assert.Len(t, sample, 2)
	assert.NotEqual(t, sample[0], sample[1])
	assert.Equal(t, []string{"a", "b", "c", "d"}, items)
	assert.ElementsMatch(t, items, g.Sample(items, 10))

	assert.Empty(t, g.Pick(nil))
	assert.Contains(t, items, g.Pick(items))
}

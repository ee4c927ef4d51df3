package tutor

import (
	"html"
	"regexp"
	"strings"
	"time"
)

// Answer modes
const (
	ModeAuto      = "auto"
	ModeFullTopic = "full_topic"
	ModeProgram   = "program"
	ModeDiagnose  = "diagnose"
)

// Answer sources
const (
	SourceFile   = "file"
	SourceBook   = "book"
	SourceGlobal = "global"
	SourceClock  = "clock"
	SourceCode   = "code"
)

const (
	summarySentences = 5
	fileFallbackLen  = 1000
	clockLayout      = "Monday 02 January 2006, 03:04 PM"
)

var clockRegex = regexp.MustCompile(`(?i)\b(time|date)\b`)

// DetectMode picks how an answer is laid out. An explicit mode wins, then attached code, then
// keywords of the question.
func DetectMode(question, explicit string, hasCode bool) string {
	switch strings.ToLower(strings.TrimSpace(explicit)) {
	case "full", "full_topic", "topic", "detailed":
		return ModeFullTopic
	case "program", "code":
		return ModeProgram
	case "diagnose", "debug":
		return ModeDiagnose
	}
	if hasCode {
		return ModeDiagnose
	}
	q := strings.ToLower(question)
	switch {
	case containsAny(q, "write program", "generate code", "program to"):
		return ModeProgram
	case containsAny(q, "error", "exception", "debug", "fix this"):
		return ModeDiagnose
	case containsAny(q, "full explanation", "deep dive", "complete topic"):
		return ModeFullTopic
	}
	return ModeAuto
}

// ChooseLanguage returns the programming language answers should use, java by default.
func ChooseLanguage(explicit, question string) string {
	if lang := strings.ToLower(strings.TrimSpace(explicit)); lang != "" {
		return lang
	}
	q := strings.ToLower(question)
	switch {
	case strings.Contains(q, "python"):
		return "python"
	case strings.Contains(q, "c++"), strings.Contains(q, "cpp"):
		return "cpp"
	case strings.Contains(q, "c "):
		return "c"
	}
	return "java"
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func isClockQuestion(question string) bool {
	return clockRegex.MatchString(question)
}

func clockAnswer(now time.Time) string {
	return now.Format(clockLayout)
}

// Summarize returns the first sentences of a document as a summary and as an HTML list.
func Summarize(sentences []string) (string, string) {
	if len(sentences) > summarySentences {
		sentences = sentences[:summarySentences]
	}
	var b strings.Builder
	b.WriteString("<ul>")
	for _, s := range sentences {
		b.WriteString("<li>" + html.EscapeString(s) + "</li>")
	}
	b.WriteString("</ul>")
	return strings.Join(sentences, " "), b.String()
}

// FormatAnswer lays out content as a small HTML fragment for the chat page.
func FormatAnswer(question, content, mode, language string) string {
	var b strings.Builder
	q := html.EscapeString(strings.TrimSpace(question))
	switch mode {
	case ModeFullTopic:
		b.WriteString("<div class='full-topic'><h2>" + q + "</h2>")
		for _, s := range strings.SplitAfter(content, ". ") {
			if s = strings.TrimSpace(s); s != "" {
				b.WriteString("<p>" + html.EscapeString(s) + "</p>")
			}
		}
	case ModeProgram:
		b.WriteString("<div class='program-answer'><h2>" + q + "</h2>")
		b.WriteString("<p>" + html.EscapeString(content) + "</p>")
		b.WriteString("<pre><code class='language-" + html.EscapeString(language) + "'></code></pre>")
	case ModeDiagnose:
		b.WriteString("<div class='diagnose-answer'><h2>" + q + "</h2>")
		b.WriteString("<pre><code class='language-" + html.EscapeString(language) + "'>" + html.EscapeString(content) + "</code></pre>")
	default:
		b.WriteString("<div class='answer'><h2>Answer</h2>")
		b.WriteString("<p>" + html.EscapeString(content) + "</p>")
	}
	b.WriteString("</div>")
	return b.String()
}

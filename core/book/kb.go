package book

import (
	"sort"
	"strings"
)

// DefaultHeading collects the text found before the first heading of a page.
const DefaultHeading = "General"

type Section struct {
	Heading   string   `json:"heading"`
	Sentences []string `json:"sentences"`
	File      string   `json:"file"`
}

func (s Section) Text() string {
	return strings.Join(s.Sentences, " ")
}

type Subject struct {
	Name     string
	Folder   string
	sections map[string]*Section
	headings []string // insertion order
}

func NewSubject(name, folder string) *Subject {
	return &Subject{Name: name, Folder: folder, sections: make(map[string]*Section)}
}

// AddSection stores a section. Sections without sentences are ignored and a later section
// with the same heading replaces the earlier one.
func (s *Subject) AddSection(sec Section) {
	if len(sec.Sentences) == 0 {
		return
	}
	if _, ok := s.sections[sec.Heading]; !ok {
		s.headings = append(s.headings, sec.Heading)
	}
	cp := sec
	s.sections[sec.Heading] = &cp
}

func (s *Subject) Headings() []string {
	return append([]string(nil), s.headings...)
}

func (s *Subject) Section(heading string) (Section, bool) {
	sec, ok := s.sections[heading]
	if !ok {
		return Section{}, false
	}
	return *sec, true
}

// Sections returns all sections in insertion order.
func (s *Subject) Sections() []Section {
	secs := make([]Section, 0, len(s.headings))
	for _, h := range s.headings {
		secs = append(secs, *s.sections[h])
	}
	return secs
}

func (s *Subject) SectionsForFile(file string) []Section {
	var secs []Section
	for _, h := range s.headings {
		if sec := s.sections[h]; sec.File == file {
			secs = append(secs, *sec)
		}
	}
	return secs
}

// KnowledgeBase is the in-memory content of all books, keyed by subject (book slug).
// It is built once at startup and only read afterwards.
type KnowledgeBase struct {
	subjects map[string]*Subject
}

func NewKnowledgeBase(subjects ...*Subject) *KnowledgeBase {
	kb := &KnowledgeBase{subjects: make(map[string]*Subject, len(subjects))}
	for _, s := range subjects {
		kb.subjects[s.Name] = s
	}
	return kb
}

// Subjects returns subject names sorted alphabetically.
func (kb *KnowledgeBase) Subjects() []string {
	names := make([]string, 0, len(kb.subjects))
	for name := range kb.subjects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (kb *KnowledgeBase) Subject(name string) (*Subject, bool) {
	s, ok := kb.subjects[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

func (kb *KnowledgeBase) Section(subject, heading string) (Section, bool) {
	s, ok := kb.Subject(subject)
	if !ok {
		return Section{}, false
	}
	return s.Section(heading)
}

// FindSection looks for a heading across all subjects, subjects visited in sorted order.
func (kb *KnowledgeBase) FindSection(heading string) (string, Section, bool) {
	for _, name := range kb.Subjects() {
		if sec, ok := kb.subjects[name].Section(heading); ok {
			return name, sec, true
		}
	}
	return "", Section{}, false
}

func (kb *KnowledgeBase) IsEmpty() bool {
	return len(kb.subjects) == 0
}

// SearchResult holds the sentences matching a question.
type SearchResult struct {
	Subject   string
	Sentences []string
}

func (r SearchResult) Text() string {
	return strings.Join(r.Sentences, " ")
}

// Search returns the sentences of the given subject (or of every subject when empty) that contain
// any of the question words. Subject is the first subject with a match.
func (kb *KnowledgeBase) Search(question, subject string) SearchResult {
	words := QueryWords(question)
	var res SearchResult
	if len(words) == 0 {
		return res
	}

	names := kb.Subjects()
	if subject != "" {
		names = []string{strings.ToLower(strings.TrimSpace(subject))}
	}
	for _, name := range names {
		s, ok := kb.subjects[name]
		if !ok {
			continue
		}
		for _, sec := range s.Sections() {
			for _, sent := range sec.Sentences {
				if MatchesAny(sent, words) {
					if res.Subject == "" {
						res.Subject = name
					}
					res.Sentences = append(res.Sentences, sent)
				}
			}
		}
	}
	return res
}

// QueryWords lowers and splits a question, ignoring words shorter than 3 characters.
func QueryWords(question string) []string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(question)) {
		w = strings.Trim(w, "?!.,;:\"'()")
		if len(w) >= 3 {
			words = append(words, w)
		}
	}
	return words
}

func MatchesAny(sentence string, words []string) bool {
	ls := strings.ToLower(sentence)
	for _, w := range words {
		if strings.Contains(ls, w) {
			return true
		}
	}
	return false
}

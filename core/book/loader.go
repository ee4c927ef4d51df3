package book

import (
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"

	"github.com/NaveenRoman/AI-TUTor/core"
)

var fileNumberRegex = regexp.MustCompile(`\d+`)

// CatalogBook is a Book and its Chapters as found on disk.
type CatalogBook struct {
	Book     Book
	Chapters []Chapter
}

// Loader reads the books directory: one folder per subject, one HTML (or PDF) file per chapter.
type Loader struct {
	logger core.Logger
}

func NewLoader(logger core.Logger) *Loader {
	return &Loader{logger: logger}
}

// Load builds the KnowledgeBase and the catalog of books found in fsys.
// Chapter files are ordered by the first number in their name; files without a number are skipped.
func (l *Loader) Load(fsys fs.FS) (*KnowledgeBase, []CatalogBook, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, nil, errors.Wrap(err, "reading books dir")
	}

	var (
		subjects []*Subject
		catalog  []CatalogBook
	)
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		subj, cb, err := l.loadSubject(fsys, entry.Name())
		if err != nil {
			return nil, nil, errors.Wrapf(err, "loading %s", entry.Name())
		}
		subjects = append(subjects, subj)
		catalog = append(catalog, cb)
	}
	return NewKnowledgeBase(subjects...), catalog, nil
}

type chapterFile struct {
	name  string
	order int
}

func (l *Loader) loadSubject(fsys fs.FS, folder string) (*Subject, CatalogBook, error) {
	slug := strings.ToLower(folder)
	subj := NewSubject(slug, folder)
	cb := CatalogBook{Book: Book{
		Slug:   slug,
		Title:  titleCase(slug) + " Programming",
		Folder: folder,
	}}

	entries, err := fs.ReadDir(fsys, folder)
	if err != nil {
		return nil, cb, err
	}
	var files []chapterFile
	for _, entry := range entries {
		ext := strings.ToLower(path.Ext(entry.Name()))
		if entry.IsDir() || !(ext == ".html" || ext == ".htm" || ext == ".pdf") {
			continue
		}
		num := fileNumberRegex.FindString(entry.Name())
		if num == "" {
			l.logger.Warn("skipping unnumbered chapter file", "file", path.Join(folder, entry.Name()))
			continue
		}
		order, _ := strconv.Atoi(num)
		files = append(files, chapterFile{name: entry.Name(), order: order})
	}
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].order != files[j].order {
			return files[i].order < files[j].order
		}
		return files[i].name < files[j].name
	})

	for _, f := range files {
		ch, sections, err := l.loadChapter(fsys, path.Join(folder, f.name), f)
		if err != nil {
			l.logger.Error("loading chapter", err, "file", path.Join(folder, f.name))
			continue
		}
		for _, sec := range sections {
			subj.AddSection(sec)
		}
		cb.Chapters = append(cb.Chapters, ch)
	}
	return subj, cb, nil
}

func (l *Loader) loadChapter(fsys fs.FS, fp string, f chapterFile) (Chapter, []Section, error) {
	data, err := fs.ReadFile(fsys, fp)
	if err != nil {
		return Chapter{}, nil, err
	}
	ext := path.Ext(f.name)
	fallback := strings.TrimSuffix(f.name, ext)

	if strings.ToLower(ext) == ".pdf" {
		text, err := extractPDF(data)
		if err != nil {
			return Chapter{}, nil, err
		}
		sec := Section{Heading: fallback, Sentences: core.SplitSentences(text), File: f.name}
		return Chapter{Title: fallback, HeadingID: fallback, Order: f.order, File: f.name}, []Section{sec}, nil
	}

	pg, err := parsePage(strings.NewReader(string(data)), f.name)
	if err != nil {
		return Chapter{}, nil, err
	}
	title := pg.Title
	if title == "" {
		title = pg.FirstH1
	}
	if title == "" {
		title = fallback
	}
	ch := Chapter{Title: title, Order: f.order, File: f.name}
	for _, sec := range pg.Sections {
		if len(sec.Sentences) > 0 {
			ch.HeadingID = sec.Heading
			break
		}
	}
	return ch, pg.Sections, nil
}

// titleCase upper-cases the first letter of every word, like "data-structures" -> "Data-Structures".
func titleCase(s string) string {
	runes := []rune(s)
	prevLetter := false
	for i, r := range runes {
		if unicode.IsLetter(r) {
			if !prevLetter {
				runes[i] = unicode.ToUpper(r)
			} else {
				runes[i] = unicode.ToLower(r)
			}
			prevLetter = true
		} else {
			prevLetter = false
		}
	}
	return string(runes)
}

package book

import (
	"bytes"
	"io"
	"path"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/NaveenRoman/AI-TUTor/core"
)

var ErrEmptyDocument = errors.New("empty document")

// ExtractText returns the plain text of a document. The format is picked from the file extension:
// PDF and HTML are parsed, anything else is read as text.
func ExtractText(name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyDocument
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".pdf":
		return extractPDF(data)
	case ".html", ".htm":
		root, err := html.Parse(bytes.NewReader(data))
		if err != nil {
			return "", errors.Wrap(err, "parsing html")
		}
		return core.CollapseSpaces(nodeText(root)), nil
	default:
		return core.CollapseSpaces(string(data)), nil
	}
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.Wrap(err, "pdf reader")
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", errors.Wrap(err, "pdf plaintext")
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", errors.Wrap(err, "pdf read")
	}
	return core.CollapseSpaces(string(b)), nil
}

// page is a parsed HTML chapter.
type page struct {
	Title    string
	FirstH1  string
	Sections []Section // in document order, unique headings
}

// parsePage splits an HTML page into sections at every h1, h2 and h3. The text of p and li
// elements is split into sentences and attached to the current heading. A repeated heading
// restarts its section.
func parsePage(r io.Reader, file string) (page, error) {
	root, err := html.Parse(r)
	if err != nil {
		return page{}, errors.Wrap(err, "parsing html")
	}

	var (
		pg      page
		index   = map[string]int{}
		current = DefaultHeading
	)
	start := func(heading string) {
		current = heading
		if i, ok := index[heading]; ok {
			pg.Sections[i].Sentences = nil
			return
		}
		index[heading] = len(pg.Sections)
		pg.Sections = append(pg.Sections, Section{Heading: heading, File: file})
	}
	start(DefaultHeading)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style:
				return
			case atom.Title:
				if pg.Title == "" {
					pg.Title = core.CollapseSpaces(nodeText(n))
				}
				return
			case atom.H1, atom.H2, atom.H3:
				heading := core.CollapseSpaces(nodeText(n))
				if n.DataAtom == atom.H1 && pg.FirstH1 == "" {
					pg.FirstH1 = heading
				}
				start(heading)
				return
			case atom.P, atom.Li:
				if sents := core.SplitSentences(nodeText(n)); len(sents) > 0 {
					i := index[current]
					pg.Sections[i].Sentences = append(pg.Sections[i].Sentences, sents...)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return pg, nil
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

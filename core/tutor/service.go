package tutor

import (
	"context"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/activity"
	"github.com/NaveenRoman/AI-TUTor/core/book"
)

const (
	askSomething   = "Ask something"
	noBookMatch    = "No matching content found."
	noGlobalAnswer = "No answer found."
	maxUploadSize  = 20 << 20
)

var (
	// errors
	ErrDocumentNotFound = errors.New("document not found")
	ErrDocumentTooLarge = errors.New("document too large")
)

func init() {
	core.RegisterErrorStatus(http.StatusNotFound, ErrDocumentNotFound)
	core.RegisterErrorStatus(http.StatusRequestEntityTooLarge, ErrDocumentTooLarge)
}

type Document struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Name          string    `json:"name"`
	Text          string    `json:"text"`
	Sentences     []string  `json:"sentences"`
	Summary       string    `json:"summary"`
	KeyPointsHTML string    `json:"key_points_html"`
	CreatedAt     time.Time `json:"created_at"`
}

type AskRequest struct {
	Question string `json:"question"`
	FileID   string `json:"file_id"`
	Book     string `json:"book"`
	Mode     string `json:"mode"`
	Language string `json:"language"`
	Code     string `json:"code"`
}

type Answer struct {
	Answer  string `json:"answer"`
	Mode    string `json:"mode,omitempty"`
	Source  string `json:"source,omitempty"`
	Subject string `json:"subject,omitempty"`
}

type (
	// DocumentStore keeps uploaded documents for a limited time.
	DocumentStore interface {
		SaveDocument(ctx context.Context, doc Document) error
		// GetDocument fails with ErrDocumentNotFound when the document is unknown or expired.
		GetDocument(ctx context.Context, id string) (Document, error)
	}

	// Answerer turns the extract found for a question into a written answer.
	Answerer interface {
		Answer(ctx context.Context, question, extract, mode, language string) (string, error)
	}

	Service interface {
		Upload(ctx context.Context, userID, name string, data []byte) (Document, error)
		Ask(ctx context.Context, userID string, ar AskRequest) (Answer, error)
	}

	service struct {
		store       DocumentStore
		kb          *book.KnowledgeBase
		answerer    Answerer // optional
		activitySvc activity.Service
		logger      core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(store DocumentStore, kb *book.KnowledgeBase, answerer Answerer, activitySvc activity.Service, logger core.Logger) Service {
	return &service{
		store:       store,
		kb:          kb,
		answerer:    answerer,
		activitySvc: activitySvc,
		logger:      logger,
	}
}

func (svc *service) Upload(ctx context.Context, userID, name string, data []byte) (Document, error) {
	if len(data) > maxUploadSize {
		return Document{}, ErrDocumentTooLarge
	}
	text, err := book.ExtractText(name, data)
	if err == nil && text == "" {
		err = book.ErrEmptyDocument
	}
	if err != nil {
		return Document{}, core.NewValidationError(err, core.FieldError{Field: "file", Error: err.Error()})
	}

	sentences := core.SplitSentences(text)
	summary, keyPoints := Summarize(sentences)
	doc := Document{
		ID:            uuid.NewString(),
		UserID:        userID,
		Name:          path.Base(name),
		Text:          text,
		Sentences:     sentences,
		Summary:       summary,
		KeyPointsHTML: keyPoints,
		CreatedAt:     core.Now(),
	}
	if err := svc.store.SaveDocument(ctx, doc); err != nil {
		return Document{}, errors.Wrap(err, "saving document")
	}
	return doc, nil
}

// Ask answers from, in order: attached code, the clock, an uploaded document, a book, then every book.
func (svc *service) Ask(ctx context.Context, userID string, ar AskRequest) (Answer, error) {
	question := core.CleanString(ar.Question)
	if question == "" && ar.Code == "" {
		return Answer{Answer: askSomething}, nil
	}
	mode := DetectMode(question, ar.Mode, ar.Code != "")
	lang := ChooseLanguage(ar.Language, question)
	if err := svc.activitySvc.Log(ctx, userID, activity.ActionTutorAsk); err != nil {
		svc.logger.Error("logging tutor usage", err)
	}

	if ar.Code != "" && mode == ModeDiagnose {
		return Answer{Answer: FormatAnswer("Code diagnosis", ar.Code, ModeDiagnose, lang), Mode: mode, Source: SourceCode}, nil
	}
	if isClockQuestion(question) {
		return Answer{Answer: FormatAnswer(question, clockAnswer(core.Now()), mode, lang), Mode: mode, Source: SourceClock}, nil
	}

	if ar.FileID != "" {
		doc, err := svc.store.GetDocument(ctx, ar.FileID)
		if err == nil && doc.UserID != userID {
			err = ErrDocumentNotFound
		}
		switch {
		case err == nil:
			var extract []string
			words := book.QueryWords(question)
			for _, s := range doc.Sentences {
				if book.MatchesAny(s, words) {
					extract = append(extract, s)
				}
			}
			content, found := strings.Join(extract, " "), len(extract) > 0
			if !found {
				content = truncate(doc.Text, fileFallbackLen)
			}
			return svc.answer(ctx, question, content, found, mode, lang, SourceFile, ""), nil
		case errors.Cause(err) != ErrDocumentNotFound:
			return Answer{}, errors.Wrap(err, "getting document")
		}
	}

	if _, ok := svc.kb.Subject(ar.Book); ok && ar.Book != "" {
		res := svc.kb.Search(question, ar.Book)
		content, found := res.Text(), len(res.Sentences) > 0
		if !found {
			content = noBookMatch
		}
		return svc.answer(ctx, question, content, found, mode, lang, SourceBook, ""), nil
	}

	res := svc.kb.Search(question, "")
	content, found := res.Text(), len(res.Sentences) > 0
	if !found {
		content = noGlobalAnswer
	}
	return svc.answer(ctx, question, content, found, mode, lang, SourceGlobal, res.Subject), nil
}

// answer formats the extract, first letting the Answerer (when configured) write it up.
func (svc *service) answer(ctx context.Context, question, extract string, found bool, mode, lang, source, subject string) Answer {
	content := extract
	if found && svc.answerer != nil {
		written, err := svc.answerer.Answer(ctx, question, extract, mode, lang)
		if err != nil {
			svc.logger.Warn("llm answer failed, using the extract", err)
		} else if written != "" {
			content = written
		}
	}
	return Answer{Answer: FormatAnswer(question, content, mode, lang), Mode: mode, Source: source, Subject: subject}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

package book_test

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NaveenRoman/AI-TUTor/core/activity"
	"github.com/NaveenRoman/AI-TUTor/core/book"
	"github.com/NaveenRoman/AI-TUTor/core/user"
	emailsvc "github.com/NaveenRoman/AI-TUTor/services/email"
	inmemdb "github.com/NaveenRoman/AI-TUTor/storage/database/inmem"
	"github.com/NaveenRoman/AI-TUTor/tests"
)

var bg = context.Background()

func booksFS() fstest.MapFS {
	return fstest.MapFS{
		"README.md":         {Data: []byte("books")},
		".git/HEAD":         {Data: []byte("ref")},
		"python/notes.html": {Data: []byte("<p>Unnumbered.</p>")},
		"python/readme.txt": {Data: []byte("1 text file")},
		"python/1_intro.html": {Data: []byte(`<html><head><title>Intro to Python</title></head><body>
			<p>Python is readable. It is dynamic.</p>
			<h2>Variables</h2>
			<p>Variables hold values.</p>
			<ul><li>Names are case sensitive.</li></ul>
			<script>var ignored = "yes";</script>
		</body></html>`)},
		"python/2_lists.html":          {Data: []byte(`<h2>Slicing</h2><p>Slices copy a range.</p>`)},
		"python/10_classes.html":       {Data: []byte(`<h1>Classes</h1><p>Classes bundle state and behaviour.</p>`)},
		"data-structures/1_arrays.htm": {Data: []byte(`<h1>Arrays</h1><p>Arrays are contiguous.</p>`)},
	}
}

func loadBooks(t *testing.T) (*book.KnowledgeBase, []book.CatalogBook) {
	kb, catalog, err := book.NewLoader(testutil.NewLogger(t)).Load(booksFS())
	require.NoError(t, err)
	return kb, catalog
}

func TestLoader_Load(t *testing.T) {
	kb, catalog := loadBooks(t)

	assert.Equal(t, []string{"data-structures", "python"}, kb.Subjects())
	require.Len(t, catalog, 2)
	assert.Equal(t, "Data-Structures Programming", catalog[0].Book.Title)

	py := catalog[1]
	assert.Equal(t, "python", py.Book.Slug)
	assert.Equal(t, "Python Programming", py.Book.Title)
	require.Len(t, py.Chapters, 3)

	titles := make([]string, 0, len(py.Chapters))
	for _, ch := range py.Chapters {
		titles = append(titles, ch.Title)
	}
	assert.Equal(t, []string{"Intro to Python", "2_lists", "Classes"}, titles)
	assert.Equal(t, []int{1, 2, 10}, []int{py.Chapters[0].Order, py.Chapters[1].Order, py.Chapters[2].Order})
	assert.Equal(t, book.DefaultHeading, py.Chapters[0].HeadingID)
	assert.Equal(t, "Slicing", py.Chapters[1].HeadingID)
	assert.Equal(t, "Classes", py.Chapters[2].HeadingID)

	sec, ok := kb.Section("python", "Variables")
	require.True(t, ok)
	assert.Equal(t, []string{"Variables hold values.", "Names are case sensitive."}, sec.Sentences)
	assert.Equal(t, "1_intro.html", sec.File)

	sec, ok = kb.Section("python", book.DefaultHeading)
	require.True(t, ok)
	assert.Equal(t, "Python is readable. It is dynamic.", sec.Text())
	assert.NotContains(t, sec.Text(), "ignored")
}

func TestLoader_Load_rootFiles(t *testing.T) {
	kb, catalog, err := book.NewLoader(testutil.NewLogger(t)).Load(fstest.MapFS{"python": {Data: []byte("not a dir")}})
	require.NoError(t, err)
	assert.True(t, kb.IsEmpty())
	assert.Empty(t, catalog)
}

func TestKnowledgeBase_Search(t *testing.T) {
	kb, _ := loadBooks(t)

	res := kb.Search("how do arrays work", "")
	assert.Equal(t, "data-structures", res.Subject)
	assert.Equal(t, []string{"Arrays are contiguous."}, res.Sentences)

	res = kb.Search("slices", "PYTHON")
	assert.Equal(t, "python", res.Subject)
	assert.Equal(t, "Slices copy a range.", res.Text())

	res = kb.Search("arrays", "python")
	assert.Empty(t, res.Sentences)
	assert.Empty(t, res.Subject)

	assert.Empty(t, kb.Search("a an", "").Sentences)

	subject, sec, ok := kb.FindSection("Arrays")
	require.True(t, ok)
	assert.Equal(t, "data-structures", subject)
	assert.Equal(t, "1_arrays.htm", sec.File)
}

func TestQueryWords(t *testing.T) {
	assert.Equal(t, []string{"what", "map"}, book.QueryWords("What is a Map?"))
	assert.Nil(t, book.QueryWords("is it ok"))
	assert.True(t, book.MatchesAny("HashMaps store pairs.", []string{"hashmap"}))
	assert.False(t, book.MatchesAny("Trees branch.", []string{"hashmap"}))
}

func TestSubject_AddSection(t *testing.T) {
	s := book.NewSubject("java", "Java")
	s.AddSection(book.Section{Heading: "Empty"})
	s.AddSection(book.Section{Heading: "Loops", Sentences: []string{"for loops."}, File: "1.html"})
	s.AddSection(book.Section{Heading: "Classes", Sentences: []string{"classes."}, File: "2.html"})
	s.AddSection(book.Section{Heading: "Loops", Sentences: []string{"while loops."}, File: "3.html"})

	assert.Equal(t, []string{"Loops", "Classes"}, s.Headings())
	sec, ok := s.Section("Loops")
	require.True(t, ok)
	assert.Equal(t, "while loops.", sec.Text())
	assert.Len(t, s.SectionsForFile("2.html"), 1)
	assert.Empty(t, s.SectionsForFile("1.html"))
}

func TestExtractText(t *testing.T) {
	text, err := book.ExtractText("page.HTML", []byte("<h1>Title</h1><p>Body   text.</p><style>p{}</style>"))
	require.NoError(t, err)
	assert.Equal(t, "Title Body text.", text)

	text, err = book.ExtractText("notes.txt", []byte("  plain\n\ttext "))
	require.NoError(t, err)
	assert.Equal(t, "plain text", text)

	_, err = book.ExtractText("empty.txt", nil)
	assert.Equal(t, book.ErrEmptyDocument, err)
}

type bookApp struct {
	svc   book.Service
	users user.Service
	usr   user.User
}

func setupService(t *testing.T) *bookApp {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(t)
	db := inmemdb.Open()
	userRepo := inmemdb.NewUserRepository(db)
	userSvc := user.NewService(userRepo, emailsvc.NewConsoleServiceMock(conf, logger), conf, logger)
	activitySvc := activity.NewService(inmemdb.NewActivityRepository(db))

	kb, catalog := loadBooks(t)
	svc := book.NewService(inmemdb.NewBookRepository(db), kb, userSvc, activitySvc, logger)
	require.NoError(t, svc.SyncCatalog(bg, catalog))
	return &bookApp{svc: svc, users: userSvc, usr: testutil.CreateStudent(t, userRepo)}
}

func TestService_SyncCatalog(t *testing.T) {
	app := setupService(t)

	books, err := app.svc.List(bg)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "Data-Structures Programming", books[0].Title)

	before, err := app.svc.Outline(bg, app.usr.ID, "python")
	require.NoError(t, err)

	_, catalog := loadBooks(t)
	require.NoError(t, app.svc.SyncCatalog(bg, catalog))

	books, err = app.svc.List(bg)
	require.NoError(t, err)
	assert.Len(t, books, 2)

	after, err := app.svc.Outline(bg, app.usr.ID, "python")
	require.NoError(t, err)
	assert.Equal(t, before.Book.ID, after.Book.ID)
	assert.Equal(t, before.Chapters[0].ID, after.Chapters[0].ID)
}

func TestService_Read(t *testing.T) {
	app := setupService(t)

	ch, sections, err := app.svc.Read(bg, app.usr.ID, "python", 1)
	require.NoError(t, err)
	assert.Equal(t, "Intro to Python", ch.Title)
	require.Len(t, sections, 2)
	assert.Equal(t, book.DefaultHeading, sections[0].Heading)
	assert.Equal(t, "Variables", sections[1].Heading)

	_, _, err = app.svc.Read(bg, app.usr.ID, "python", 99)
	assert.Equal(t, book.ErrChapterNotFound, errors.Cause(err))

	_, _, err = app.svc.Read(bg, app.usr.ID, "rust", 1)
	assert.Equal(t, book.ErrNotFound, errors.Cause(err))
}

func TestService_MarkChapterComplete(t *testing.T) {
	app := setupService(t)

	var hooked []book.Chapter
	app.svc.OnChapterComplete(func(ctx context.Context, usr user.User, b book.Book, ch book.Chapter) error {
		hooked = append(hooked, ch)
		return nil
	})
	app.svc.OnChapterComplete(func(ctx context.Context, usr user.User, b book.Book, ch book.Chapter) error {
		return errors.New("hooks failing are only logged")
	})

	subject, err := app.svc.LastCompletedSubject(bg, app.usr.ID)
	require.NoError(t, err)
	assert.Empty(t, subject)

	p, err := app.svc.MarkChapterComplete(bg, app.usr, "python", 1)
	require.NoError(t, err)
	assert.True(t, p.Completed)
	assert.False(t, p.CompletedAt.IsZero())

	// completing twice is a no-op
	_, err = app.svc.MarkChapterComplete(bg, app.usr, "python", 1)
	require.NoError(t, err)
	require.Len(t, hooked, 1)
	assert.Equal(t, 1, hooked[0].Order)

	profile, err := app.users.Profile(bg, app.usr.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, profile.XP)
	assert.Equal(t, hooked[0].ID, profile.CurrentChapterID)

	out, err := app.svc.Outline(bg, app.usr.ID, "python")
	require.NoError(t, err)
	require.Len(t, out.Chapters, 3)
	assert.True(t, out.Chapters[0].Completed)
	assert.True(t, out.Chapters[1].Unlocked)
	assert.False(t, out.Chapters[2].Unlocked)
	assert.Equal(t, 1, out.Progress.CompletedChapters)
	assert.Equal(t, 33.33, out.Progress.PercentComplete)

	progress, err := app.svc.Progress(bg, app.usr.ID)
	require.NoError(t, err)
	require.Len(t, progress, 1)
	assert.Equal(t, 3, progress[0].TotalChapters)

	subject, err = app.svc.LastCompletedSubject(bg, app.usr.ID)
	require.NoError(t, err)
	assert.Equal(t, "python", subject)
}

func TestService_StudyPlan(t *testing.T) {
	app := setupService(t)

	_, err := app.svc.MarkChapterComplete(bg, app.usr, "python", 1)
	require.NoError(t, err)
	_, _, err = app.svc.Read(bg, app.usr.ID, "python", 2)
	require.NoError(t, err)

	plan, err := app.svc.StudyPlan(bg, app.usr.ID, []string{"loops"})
	require.NoError(t, err)
	require.Len(t, plan, 7)
	assert.Equal(t, book.StudyDay{Day: 1, Topic: "loops", Chapter: "2_lists"}, plan[0])
	assert.Equal(t, book.StudyDay{Day: 2, Topic: "Revision", Chapter: "Weekly quiz"}, plan[1])
	assert.Equal(t, 7, plan[6].Day)
}

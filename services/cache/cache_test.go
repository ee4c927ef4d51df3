package cachesvc_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/quiz"
	"github.com/NaveenRoman/AI-TUTor/core/tutor"
	cachesvc "github.com/NaveenRoman/AI-TUTor/services/cache"
	inmemdb "github.com/NaveenRoman/AI-TUTor/storage/database/inmem"
	"github.com/NaveenRoman/AI-TUTor/tests"
)

var bg = context.Background()

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	m := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return m, rdb
}

func TestNewClient_disabled(t *testing.T) {
	conf := testutil.NewConfig()
	conf.Redis.Disabled = true
	rdb, err := cachesvc.NewClient(bg, conf)
	require.NoError(t, err)
	assert.Nil(t, rdb)

	m := miniredis.RunT(t)
	conf.Redis.Disabled = false
	conf.Redis.Addr = m.Addr()
	rdb, err = cachesvc.NewClient(bg, conf)
	require.NoError(t, err)
	require.NotNil(t, rdb)
	assert.NoError(t, rdb.Close())
}

func TestRedisDocumentStore(t *testing.T) {
	m, rdb := newRedis(t)
	store := cachesvc.NewRedisDocumentStore(rdb, time.Hour)

	doc := tutor.Document{ID: "d1", UserID: "u1", Name: "notes.txt", Sentences: []string{"Go has goroutines."}}
	require.NoError(t, store.SaveDocument(bg, doc))
	assert.True(t, m.Exists("tutor:doc:d1"))
	assert.Equal(t, time.Hour, m.TTL("tutor:doc:d1"))

	got, err := store.GetDocument(bg, "d1")
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	_, err = store.GetDocument(bg, "missing")
	assert.Equal(t, tutor.ErrDocumentNotFound, err)

	m.FastForward(2 * time.Hour)
	_, err = store.GetDocument(bg, "d1")
	assert.Equal(t, tutor.ErrDocumentNotFound, err)

	require.NoError(t, m.Set("tutor:doc:bad", "{"))
	_, err = store.GetDocument(bg, "bad")
	assert.Error(t, err)
}

func TestMemoryDocumentStore(t *testing.T) {
	defer func(f func() time.Time) { core.NowFunc = f }(core.NowFunc)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	core.NowFunc = func() time.Time { return now }

	store := cachesvc.NewMemoryDocumentStore(time.Hour)
	doc := tutor.Document{ID: "d1", Name: "notes.txt"}
	require.NoError(t, store.SaveDocument(bg, doc))

	got, err := store.GetDocument(bg, "d1")
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	now = now.Add(61 * time.Minute)
	_, err = store.GetDocument(bg, "d1")
	assert.Equal(t, tutor.ErrDocumentNotFound, err)
}

func TestCachedQuizRepository(t *testing.T) {
	m, rdb := newRedis(t)
	inner := inmemdb.NewQuizRepository(inmemdb.Open())
	repo := cachesvc.NewCachedQuizRepository(inner, rdb, testutil.NewLogger(t))

	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	key := "tutor:daily:2026-03-02"

	_, err := repo.GetDailyQuiz(bg, date)
	assert.Equal(t, quiz.ErrNotFound, err)
	assert.False(t, m.Exists(key))

	_, err = repo.SaveDailyQuiz(bg, quiz.DailyQuiz{Date: date, Subject: "java", Questions: quiz.NewQuestions()})
	require.NoError(t, err)
	require.True(t, m.Exists(key))
	assert.Equal(t, 26*time.Hour, m.TTL(key))

	// served from redis while cached
	_, err = inner.SaveDailyQuiz(bg, quiz.DailyQuiz{Date: date, Subject: "python", Questions: quiz.NewQuestions()})
	require.NoError(t, err)
	dq, err := repo.GetDailyQuiz(bg, date.Add(15*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "java", dq.Subject)

	t.Run("miss", func(t *testing.T) {
		m.Del(key)
		dq, err := repo.GetDailyQuiz(bg, date)
		require.NoError(t, err)
		assert.Equal(t, "python", dq.Subject)
		assert.True(t, m.Exists(key), "cached again")
	})

	t.Run("garbage", func(t *testing.T) {
		require.NoError(t, m.Set(key, "not json"))
		dq, err := repo.GetDailyQuiz(bg, date)
		require.NoError(t, err)
		assert.Equal(t, "python", dq.Subject)
	})
}

func TestRedisLocker(t *testing.T) {
	m, rdb := newRedis(t)
	locker := cachesvc.NewRedisLocker(rdb, testutil.NewLogger(t))

	unlock, ok, err := locker.TryLock(bg, "daily_quiz", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Minute, m.TTL("tutor:lock:daily_quiz"))

	_, ok, err = locker.TryLock(bg, "daily_quiz", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = locker.TryLock(bg, "study_emails", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	unlock()
	assert.False(t, m.Exists("tutor:lock:daily_quiz"))
	unlock2, ok, err := locker.TryLock(bg, "daily_quiz", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// a stale unlock leaves the new holder alone
	unlock()
	assert.True(t, m.Exists("tutor:lock:daily_quiz"))
	unlock2()
	assert.False(t, m.Exists("tutor:lock:daily_quiz"))
}

func TestMemoryLocker(t *testing.T) {
	defer func(f func() time.Time) { core.NowFunc = f }(core.NowFunc)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	core.NowFunc = func() time.Time { return now }

	locker := cachesvc.NewMemoryLocker()
	unlock, ok, err := locker.TryLock(bg, "job", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = locker.TryLock(bg, "job", time.Minute)
	assert.False(t, ok)

	unlock()
	_, ok, _ = locker.TryLock(bg, "job", time.Minute)
	assert.True(t, ok)

	// expired locks can be taken over
	now = now.Add(2 * time.Minute)
	_, ok, _ = locker.TryLock(bg, "job", time.Minute)
	assert.True(t, ok)
}

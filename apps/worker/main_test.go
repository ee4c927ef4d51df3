package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NaveenRoman/AI-TUTor/core/tasks"
	cachesvc "github.com/NaveenRoman/AI-TUTor/services/cache"
	"github.com/NaveenRoman/AI-TUTor/tests"
)

func Test_schedule(t *testing.T) {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(t)
	conf.Worker.DailyQuizSpec = "5 0 * * *"
	conf.Worker.WeeklyQuizSpec = "0 6 * * 1"
	conf.Worker.StudyEmailSpec = "0 7 * * *"

	runner := tasks.NewRunner(nil, nil, nil, nil, nil, nil, cachesvc.NewMemoryLocker(), conf, logger)
	sched, err := schedule(context.Background(), runner, logger)
	require.NoError(t, err)
	assert.Len(t, sched.Entries(), 3)

	conf.Worker.WeakTopicSpec = "every day"
	_, err = schedule(context.Background(), runner, logger)
	assert.Error(t, err)
}

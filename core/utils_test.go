package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWeekStart(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want time.Time
	}{
		{"monday", time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC), time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)},
		{"wednesday", time.Date(2025, 3, 5, 23, 59, 0, 0, time.UTC), time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)},
		{"sunday", time.Date(2025, 3, 9, 1, 0, 0, 0, time.UTC), time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WeekStart(tt.t))
		})
	}
}

func TestNowIsMockable(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 12, 30, 0, 0, time.FixedZone("IST", 19800))
	NowFunc = func() time.Time { return fixed }
	defer func() { NowFunc = time.Now }()

	assert.Equal(t, fixed.UTC(), Now())
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Today())
}

func TestStats(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 2.0, Mean([]float64{1, 2, 3}))
	assert.Equal(t, 0.0, PStdev(nil))
	assert.Equal(t, 2.0, PStdev([]float64{2, 4, 4, 4, 5, 5, 7, 9}))
	assert.Equal(t, 3.14, Round(3.14159, 2))
	assert.Equal(t, 100.0, Clamp(130, 0, 100))
	assert.Equal(t, 0.0, Clamp(-1, 0, 100))
}

func TestCleanString(t *testing.T) {
	assert.Equal(t, "Hello", CleanString("  Hello \n"))
	assert.Equal(t, "hello", CleanString("  HeLLo ", true))
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "   ", nil},
		{"single", "Java is a language", []string{"Java is a language"}},
		{
			"many",
			"Java runs on the JVM. Is it fast?  Yes!\nIt is.",
			[]string{"Java runs on the JVM.", "Is it fast?", "Yes!", "It is."},
		},
		{"decimal", "Version 1.8 is old. Use 17.", []string{"Version 1.8 is old.", "Use 17."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSentences(tt.text))
		})
	}
}

func TestErrorStatus(t *testing.T) {
	status, ok := ErrorStatus(ErrUpgradeRequired)
	assert.True(t, ok)
	assert.Equal(t, 402, status)

	_, ok = ErrorStatus(NewShutdownError("x"))
	assert.False(t, ok)
}

package core

import (
	"math"
	"strings"
	"time"
)

var NowFunc = time.Now // mockable

// Now returns the current UTC time.
func Now() time.Time {
	return NowFunc().UTC()
}

// Today returns the current UTC date at midnight.
func Today() time.Time {
	return TruncateDay(Now())
}

func TruncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// WeekStart returns the Monday of the week `t` belongs to.
func WeekStart(t time.Time) time.Time {
	day := TruncateDay(t)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Round rounds `val` half away from zero to `places` decimals.
func Round(val float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(val*p) / p
}

func Clamp(val, min, max float64) float64 {
	return math.Max(min, math.Min(max, val))
}

func Mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// PStdev is the population standard deviation of vals.
func PStdev(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	mean := Mean(vals)
	var sq float64
	for _, v := range vals {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq / float64(len(vals)))
}

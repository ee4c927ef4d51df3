package skill

import (
	"github.com/NaveenRoman/AI-TUTor/core"
)

// Sample is one scored interview answer, as used by the behavior analysis.
type Sample struct {
	TotalScore       float64 // 0-10
	ConfidenceScore  float64 // 0-10
	TimeTakenSeconds float64
}

type Behavior struct {
	PerformanceSlope float64 `json:"performance_slope"`
	ConsistencyScore float64 `json:"consistency_score"`
	ConfidenceTrend  float64 `json:"confidence_trend"`
	TimeStability    float64 `json:"time_stability"`
	BehaviorScore    float64 `json:"behavior_score"`
	RiskFlag         bool    `json:"risk_flag"`
}

// AnalyzeSession scores how a candidate behaved across a session. Samples must be in chronological
// order; fewer than 2 samples cannot be analyzed.
func AnalyzeSession(samples []Sample) (Behavior, bool) {
	if len(samples) < 2 {
		return Behavior{}, false
	}

	totals := make([]float64, len(samples))
	times := make([]float64, len(samples))
	for i, s := range samples {
		totals[i] = s.TotalScore
		times[i] = s.TimeTakenSeconds
	}
	first, last := samples[0], samples[len(samples)-1]

	slope := last.TotalScore - first.TotalScore
	consistency := core.Clamp(100-core.PStdev(totals)*10, 0, 100)
	trend := last.ConfidenceScore - first.ConfidenceScore
	stability := core.Clamp(100-core.PStdev(times)*5, 0, 100)

	behavior := .3*consistency +
		.3*core.Clamp(trend*10, 0, 100) +
		.2*core.Clamp(slope*10, 0, 100) +
		.2*stability

	return Behavior{
		PerformanceSlope: core.Round(slope, 2),
		ConsistencyScore: core.Round(consistency, 2),
		ConfidenceTrend:  core.Round(trend, 2),
		TimeStability:    core.Round(stability, 2),
		BehaviorScore:    score(behavior),
		RiskFlag:         slope < -2 || consistency < 40,
	}, true
}

// RiskLevel escalates to high only when readiness and behavior are both weak and performance drops.
func RiskLevel(readiness, behavior, slope float64) string {
	switch {
	case readiness < 40 && behavior < 50 && slope < 0:
		return RiskHigh
	case behavior < 60:
		return RiskMedium
	default:
		return RiskLow
	}
}

package skill

import (
	"time"

	"github.com/NaveenRoman/AI-TUTor/core"
)

// Risk levels
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Difficulties
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

var RiskLevels = []string{RiskLow, RiskMedium, RiskHigh}

// Profile is the placement readiness profile of a user. Scores are in [0, 100].
type Profile struct {
	UserID             string    `json:"user_id"`
	TechnicalScore     float64   `json:"technical_score"`
	AccuracyScore      float64   `json:"accuracy_score"`
	CommunicationScore float64   `json:"communication_score"`
	ConsistencyScore   float64   `json:"consistency_score"`
	ConfidenceScore    float64   `json:"confidence_score"`
	ReadinessScore     float64   `json:"readiness_score"`
	BehaviorScore      float64   `json:"behavior_score"`
	RiskLevel          string    `json:"risk_level"`
	NextDifficulty     string    `json:"next_difficulty"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func NewProfile(userID string, now time.Time) Profile {
	return Profile{UserID: userID, RiskLevel: RiskLow, NextDifficulty: DifficultyMedium, UpdatedAt: now}
}

type ReadinessHistory struct {
	UserID         string    `json:"user_id"`
	Date           time.Time `json:"date"`
	ReadinessScore float64   `json:"readiness_score"`
}

type ProfileFilter struct {
	UserIDs      []string
	MinReadiness float64
	RiskLevels   []string
	Limit        int // 0: no limit
}

// Match reports whether p satisfies the filter, Limit aside.
func (f *ProfileFilter) Match(p Profile) bool {
	if f == nil {
		return true
	}
	if f.UserIDs != nil && !contains(f.UserIDs, p.UserID) {
		return false
	}
	if p.ReadinessScore < f.MinReadiness {
		return false
	}
	if len(f.RiskLevels) > 0 && !contains(f.RiskLevels, p.RiskLevel) {
		return false
	}
	return true
}

func contains(items []string, s string) bool {
	for _, it := range items {
		if it == s {
			return true
		}
	}
	return false
}

func score(v float64) float64 {
	return core.Round(core.Clamp(v, 0, 100), 2)
}

// Compute refreshes the quiz derived scores of p.
//   - technical: mean topic mastery
//   - accuracy: mean quiz attempt score
//   - consistency: 100 - 2*pstdev of the 5 latest attempt scores, needs 2 attempts
//   - confidence: kept when already set, else accuracy + 10
//   - readiness: .5 technical + .2 communication + .2 consistency + .1 confidence
//
// recentScores must be ordered from the most recent attempt.
func Compute(p Profile, masteries, attemptScores, recentScores []float64) Profile {
	technical := core.Mean(masteries)
	accuracy := core.Mean(attemptScores)

	if len(recentScores) > 5 {
		recentScores = recentScores[:5]
	}
	var consistency float64
	if len(recentScores) >= 2 {
		consistency = core.Clamp(100-core.PStdev(recentScores)*2, 0, 100)
	}

	confidence := p.ConfidenceScore
	if confidence <= 0 {
		confidence = core.Clamp(accuracy+10, 0, 100)
	}
	communication := p.CommunicationScore

	p.TechnicalScore = score(technical)
	p.AccuracyScore = score(accuracy)
	p.CommunicationScore = score(communication)
	p.ConsistencyScore = score(consistency)
	p.ConfidenceScore = score(confidence)
	p.ReadinessScore = score(technical*.5 + communication*.2 + consistency*.2 + confidence*.1)
	return p
}

// AdaptiveDifficulty picks the next interview difficulty from the average answer scores (0-10) of
// the latest completed sessions, compared on a 0-100 scale. Without sessions the current difficulty is kept.
func AdaptiveDifficulty(current string, sessionAverages []float64) string {
	if len(sessionAverages) == 0 {
		if current == "" {
			return DifficultyMedium
		}
		return current
	}
	avg := core.Mean(sessionAverages) * 10
	switch {
	case avg >= 75:
		return DifficultyHard
	case avg <= 40:
		return DifficultyEasy
	default:
		return DifficultyMedium
	}
}

package skill

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	p := Compute(NewProfile("u1", time.Now()), []float64{80, 60}, []float64{70, 90}, []float64{90, 70})

	assert.Equal(t, 70.0, p.TechnicalScore)
	assert.Equal(t, 80.0, p.AccuracyScore)
	assert.Equal(t, 80.0, p.ConsistencyScore)
	assert.Equal(t, 90.0, p.ConfidenceScore)
	assert.Equal(t, 0.0, p.CommunicationScore)
	assert.Equal(t, 60.0, p.ReadinessScore)

	t.Run("keeps confidence and communication", func(t *testing.T) {
		p := NewProfile("u1", time.Now())
		p.ConfidenceScore = 50
		p.CommunicationScore = 100
		p = Compute(p, []float64{100}, []float64{100}, []float64{100})

		assert.Equal(t, 50.0, p.ConfidenceScore)
		assert.Equal(t, 0.0, p.ConsistencyScore, "one attempt is not enough for consistency")
		assert.Equal(t, 75.0, p.ReadinessScore)
	})

	t.Run("only the 5 latest attempts count for consistency", func(t *testing.T) {
		p := Compute(Profile{}, nil, nil, []float64{60, 60, 60, 60, 60, 0, 0})
		assert.Equal(t, 100.0, p.ConsistencyScore)
	})
}

func TestAnalyzeSession(t *testing.T) {
	_, ok := AnalyzeSession([]Sample{{TotalScore: 5}})
	assert.False(t, ok)

	b, ok := AnalyzeSession([]Sample{
		{TotalScore: 5, ConfidenceScore: 5, TimeTakenSeconds: 30},
		{TotalScore: 7, ConfidenceScore: 6, TimeTakenSeconds: 30},
		{TotalScore: 9, ConfidenceScore: 8, TimeTakenSeconds: 30},
	})
	require.True(t, ok)
	assert.Equal(t, 4.0, b.PerformanceSlope)
	assert.Equal(t, 83.67, b.ConsistencyScore)
	assert.Equal(t, 3.0, b.ConfidenceTrend)
	assert.Equal(t, 100.0, b.TimeStability)
	assert.InDelta(t, 62.1, b.BehaviorScore, .01)
	assert.False(t, b.RiskFlag)

	b, _ = AnalyzeSession([]Sample{{TotalScore: 9}, {TotalScore: 2}})
	assert.True(t, b.RiskFlag)
}

func TestRiskLevel(t *testing.T) {
	assert.Equal(t, RiskHigh, RiskLevel(30, 40, -1))
	assert.Equal(t, RiskMedium, RiskLevel(30, 40, 1))
	assert.Equal(t, RiskMedium, RiskLevel(80, 59, 1))
	assert.Equal(t, RiskLow, RiskLevel(30, 60, -5))
}

func TestAdaptiveDifficulty(t *testing.T) {
	tests := []struct {
		name    string
		current string
		avgs    []float64
		want    string
	}{
		{"no sessions", "", nil, DifficultyMedium},
		{"no sessions keeps current", DifficultyHard, nil, DifficultyHard},
		{"strong", DifficultyEasy, []float64{8, 7.5}, DifficultyHard},
		{"weak", DifficultyHard, []float64{4, 3}, DifficultyEasy},
		{"average", DifficultyEasy, []float64{6}, DifficultyMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AdaptiveDifficulty(tt.current, tt.avgs))
		})
	}
}

func TestProfileFilter_Match(t *testing.T) {
	p := Profile{UserID: "u1", ReadinessScore: 65, RiskLevel: RiskMedium}

	var nilFilter *ProfileFilter
	assert.True(t, nilFilter.Match(p))
	assert.True(t, (&ProfileFilter{MinReadiness: 60, RiskLevels: []string{RiskLow, RiskMedium}}).Match(p))
	assert.False(t, (&ProfileFilter{MinReadiness: 70}).Match(p))
	assert.False(t, (&ProfileFilter{RiskLevels: []string{RiskHigh}}).Match(p))
	assert.False(t, (&ProfileFilter{UserIDs: []string{"u2"}}).Match(p))
}

func TestPredictor_heuristic(t *testing.T) {
	pr := NewPredictor(nil)

	pred := pr.Predict(Profile{ReadinessScore: 80, BehaviorScore: 70, ConsistencyScore: 90}, 8)
	assert.Equal(t, CategoryTier1, pred.Category)
	assert.Equal(t, 79.0, pred.Tier1Probability)
	assert.Equal(t, 20.0, pred.FailureRisk)

	pred = pr.Predict(Profile{ReadinessScore: 30, BehaviorScore: 20, ConsistencyScore: 10}, 2)
	assert.Equal(t, CategoryHighRisk, pred.Category)
	assert.Equal(t, 70.0, pred.FailureRisk)

	pred = pr.Predict(Profile{ReadinessScore: 50, BehaviorScore: 50, ConsistencyScore: 50}, 5)
	assert.Equal(t, CategoryNeedsImprovement, pred.Category)

	assert.Equal(t, .5, pr.HiringProbability(Profile{ReadinessScore: 50, BehaviorScore: 50, ConsistencyScore: 50}, 5))
}

func TestPredictor_model(t *testing.T) {
	model, err := LoadModel(BuiltinModel)
	require.NoError(t, err)
	pr := NewPredictor(model)

	strong := Profile{ReadinessScore: 95, TechnicalScore: 95, CommunicationScore: 90, ConfidenceScore: 90, ConsistencyScore: 95, BehaviorScore: 90}
	weak := Profile{ReadinessScore: 10, TechnicalScore: 10, CommunicationScore: 5, ConfidenceScore: 10, ConsistencyScore: 5, BehaviorScore: 10}

	probs := model.Probabilities(strong)
	var sum float64
	for _, p := range probs {
		sum += p
	}
	assert.InDelta(t, 1, sum, 1e-9)

	assert.Greater(t, pr.HiringProbability(strong, 0), pr.HiringProbability(weak, 0))
	assert.Equal(t, CategoryHighRisk, pr.Predict(weak, 0).Category)
}

func TestDecodeModel_invalid(t *testing.T) {
	_, err := DecodeModel(strings.NewReader("features: [readiness]\nmeans: [1]\nscales: [1]\n"))
	assert.Error(t, err)
}

func TestInstitutionOutlook(t *testing.T) {
	assert.Contains(t, InstitutionOutlook(75), "High")
	assert.Contains(t, InstitutionOutlook(55), "Moderate")
	assert.Contains(t, InstitutionOutlook(20), "Low")
}

package skill

import (
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/NaveenRoman/AI-TUTor/core"
	appfs "github.com/NaveenRoman/AI-TUTor/fs"
)

// Placement categories
const (
	CategoryTier1            = "Tier-1 Ready"
	CategoryService          = "Service Ready"
	CategoryHighRisk         = "High Risk"
	CategoryNeedsImprovement = "Needs Improvement"

	// BuiltinModel selects the placement model shipped with the app.
	BuiltinModel = "builtin"

	builtinModelPath = "assets/ml/placement_model.yaml"
)

var featureNames = []string{"readiness", "technical", "communication", "confidence", "consistency", "behavior"}

type Prediction struct {
	Category           string  `json:"category"`
	Tier1Probability   float64 `json:"tier1_probability"`
	ServiceProbability float64 `json:"service_probability"`
	FailureRisk        float64 `json:"failure_risk"`
}

// Model is a multinomial logistic regression over standardized profile scores.
type Model struct {
	Features []string     `yaml:"features"`
	Means    []float64    `yaml:"means"`
	Scales   []float64    `yaml:"scales"`
	Classes  []ModelClass `yaml:"classes"`
}

type ModelClass struct {
	Label     string    `yaml:"label"`
	Intercept float64   `yaml:"intercept"`
	Weights   []float64 `yaml:"weights"`
}

// LoadModel reads a Model: BuiltinModel loads the embedded one, any other value is a file path.
func LoadModel(path string) (*Model, error) {
	var (
		r   io.ReadCloser
		err error
	)
	if path == BuiltinModel {
		r, err = appfs.FS.Open(builtinModelPath)
	} else {
		r, err = os.Open(path)
	}
	if err != nil {
		return nil, errors.Wrap(err, "opening placement model")
	}
	//goland:noinspection GoUnhandledErrorResult
	defer r.Close()
	return DecodeModel(r)
}

func DecodeModel(r io.Reader) (*Model, error) {
	var m Model
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		return nil, errors.Wrap(err, "decoding placement model")
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Model) validate() error {
	n := len(featureNames)
	if len(m.Features) != n || len(m.Means) != n || len(m.Scales) != n {
		return errors.Errorf("placement model needs %d features, means and scales", n)
	}
	for i, f := range m.Features {
		if f != featureNames[i] {
			return errors.Errorf("placement model feature %d is %q, want %q", i, f, featureNames[i])
		}
		if m.Scales[i] == 0 {
			return errors.Errorf("placement model scale of %s is 0", f)
		}
	}
	labels := map[string]bool{}
	for _, c := range m.Classes {
		if len(c.Weights) != n {
			return errors.Errorf("placement model class %q needs %d weights", c.Label, n)
		}
		labels[c.Label] = true
	}
	for _, l := range []string{CategoryHighRisk, CategoryService, CategoryTier1} {
		if !labels[l] {
			return errors.Errorf("placement model misses class %q", l)
		}
	}
	return nil
}

// Probabilities returns the softmax probability of every class label.
func (m *Model) Probabilities(p Profile) map[string]float64 {
	x := []float64{p.ReadinessScore, p.TechnicalScore, p.CommunicationScore, p.ConfidenceScore, p.ConsistencyScore, p.BehaviorScore}
	z := make([]float64, len(m.Classes))
	maxZ := math.Inf(-1)
	for k, c := range m.Classes {
		z[k] = c.Intercept
		for i, w := range c.Weights {
			z[k] += w * (x[i] - m.Means[i]) / m.Scales[i]
		}
		maxZ = math.Max(maxZ, z[k])
	}
	var sum float64
	for k := range z {
		z[k] = math.Exp(z[k] - maxZ)
		sum += z[k]
	}
	probs := make(map[string]float64, len(z))
	for k, c := range m.Classes {
		probs[c.Label] = z[k] / sum
	}
	return probs
}

// Predictor predicts placement outcomes with the Model when available, or with fixed weights.
type Predictor struct {
	model *Model
}

func NewPredictor(model *Model) *Predictor {
	return &Predictor{model: model}
}

// Predict uses avgInterview, the mean answer score (0-10) of the latest completed interview sessions,
// only when no model is loaded.
func (pr *Predictor) Predict(p Profile, avgInterview float64) Prediction {
	if pr.model != nil {
		probs := pr.model.Probabilities(p)
		category := CategoryHighRisk
		for _, l := range []string{CategoryService, CategoryTier1} {
			if probs[l] > probs[category] {
				category = l
			}
		}
		return Prediction{
			Category:           category,
			Tier1Probability:   core.Round(probs[CategoryTier1]*100, 2),
			ServiceProbability: core.Round(probs[CategoryService]*100, 2),
			FailureRisk:        core.Round(probs[CategoryHighRisk]*100, 2),
		}
	}

	readiness, behavior, consistency := p.ReadinessScore, p.BehaviorScore, p.ConsistencyScore
	tier1 := math.Min(100, core.Round(.4*readiness+.3*behavior+.2*consistency+.1*avgInterview*10, 2))
	service := math.Min(100, core.Round(.5*readiness+.2*consistency+.2*avgInterview*10+.1*behavior, 2))

	var category string
	switch {
	case tier1 >= 75:
		category = CategoryTier1
	case service >= 65:
		category = CategoryService
	case readiness < 40:
		category = CategoryHighRisk
	default:
		category = CategoryNeedsImprovement
	}
	return Prediction{
		Category:           category,
		Tier1Probability:   tier1,
		ServiceProbability: service,
		FailureRisk:        core.Round(math.Max(0, 100-readiness), 2),
	}
}

// HiringProbability is the probability (0-1, 4 decimals) of being hired by any company.
func (pr *Predictor) HiringProbability(p Profile, avgInterview float64) float64 {
	if pr.model != nil {
		probs := pr.model.Probabilities(p)
		return core.Round(probs[CategoryTier1]+probs[CategoryService], 4)
	}
	return core.Round(pr.Predict(p, avgInterview).ServiceProbability/100, 4)
}

// InstitutionOutlook summarizes the placement chances of a batch from its average readiness.
func InstitutionOutlook(avgReadiness float64) string {
	switch {
	case avgReadiness >= 70:
		return "High placement probability (70%+ likely selection)"
	case avgReadiness >= 50:
		return "Moderate placement probability"
	default:
		return "Low placement probability - needs intervention"
	}
}

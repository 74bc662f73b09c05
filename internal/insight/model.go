package insight

import (
	"math"

	"stealthcompany.com/holdmed/internal/clinical"
)

// Classification is the binary complication-risk class
type Classification string

const (
	ClassificationLow  Classification = "low"
	ClassificationHigh Classification = "high"
)

// Probabilities holds P(no complication) at index 0 and P(complication) at index 1.
type Probabilities [2]float64

const probabilityTolerance = 1e-9

// Valid reports whether both components lie in [0,1] and sum to 1.
func (p Probabilities) Valid() bool {
	for _, v := range p {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return false
		}
	}
	return math.Abs(p[0]+p[1]-1) <= probabilityTolerance
}

// ComplicationPercent is the rounded complication probability shown on the risk badge.
func (p Probabilities) ComplicationPercent() int {
	return int(math.Round(p[1] * 100))
}

// Assessment is what a Model produces for the latest readings of a patient.
type Assessment struct {
	Classification      Classification
	Probabilities       Probabilities
	Narrative           string
	TemperatureRecorded bool
}

// Model scores the latest readings of a patient. Any implementation must keep
// the two-class, two-probability output shape.
type Model interface {
	Name() string
	Assess(latest clinical.VitalSignSample, labs *clinical.LabResultSample) Assessment
}

const (
	DefaultTemperatureThreshold = 37.3

	HighRiskNarrative = "ALERT: High probability of complication detected. Elevated temperature and rising blood pressure trend."
	LowRiskNarrative  = "Low probability of complication. Vital signs stable."
)

var (
	HighRiskProbabilities = Probabilities{0.25, 0.75}
	LowRiskProbabilities  = Probabilities{0.80, 0.20}
)

// MissingTemperaturePolicy is the classification used when the latest vital
// sample has no temperature. Absence of evidence is treated as low risk.
// NOTE: this is a clinical-safety decision and should be reviewed before any
// real deployment.
const MissingTemperaturePolicy = ClassificationLow

// TemperatureThresholdModel is a placeholder rule, NOT a validated clinical
// model: high risk when the latest temperature strictly exceeds Threshold.
type TemperatureThresholdModel struct {
	Threshold float64
}

// NewTemperatureThresholdModel returns the model with the default 37.3 °C threshold.
func NewTemperatureThresholdModel() *TemperatureThresholdModel {
	return &TemperatureThresholdModel{Threshold: DefaultTemperatureThreshold}
}

func (m *TemperatureThresholdModel) Name() string {
	return "temperature-threshold"
}

func (m *TemperatureThresholdModel) Assess(latest clinical.VitalSignSample, _ *clinical.LabResultSample) Assessment {
	if latest.Temperature == nil {
		return assessmentFor(MissingTemperaturePolicy, false)
	}
	if *latest.Temperature > m.Threshold {
		return assessmentFor(ClassificationHigh, true)
	}
	return assessmentFor(ClassificationLow, true)
}

func assessmentFor(c Classification, temperatureRecorded bool) Assessment {
	if c == ClassificationHigh {
		return Assessment{
			Classification:      ClassificationHigh,
			Probabilities:       HighRiskProbabilities,
			Narrative:           HighRiskNarrative,
			TemperatureRecorded: temperatureRecorded,
		}
	}
	return Assessment{
		Classification:      ClassificationLow,
		Probabilities:       LowRiskProbabilities,
		Narrative:           LowRiskNarrative,
		TemperatureRecorded: temperatureRecorded,
	}
}

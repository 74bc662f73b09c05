package insight

import (
	"errors"
	"fmt"
	"time"

	"stealthcompany.com/holdmed/internal/clinical"
)

var (
	ErrNilPatient           = errors.New("patient is required")
	ErrNoVitalData          = errors.New("no vital-sign data")
	ErrInvalidProbabilities = errors.New("model returned an invalid probability pair")
)

// RiskInsight is the engine output for one patient. It is derived from the
// record alone and never persisted.
type RiskInsight struct {
	PatientID             string                    `json:"patient_id"`
	PatientName           string                    `json:"patient_name"`
	Classification        Classification            `json:"classification"`
	ComplicationPredicted bool                      `json:"complication_predicted"`
	Probabilities         Probabilities             `json:"probabilities"`
	ComplicationPercent   int                       `json:"complication_percent"`
	Narrative             string                    `json:"insights"`
	LatestVitals          clinical.VitalSignSample  `json:"latest_vital_signs"`
	LatestLabs            *clinical.LabResultSample `json:"latest_lab_results"`
	TemperatureRecorded   bool                      `json:"temperature_recorded"`
	Model                 string                    `json:"model"`
	AsOf                  time.Time                 `json:"as_of"`
	Notes                 *NoteDigest               `json:"processed_notes,omitempty"`
}

// Engine turns patient records into risk insights using a Model.
type Engine struct {
	model Model
}

// NewEngine creates an engine around model, defaulting to the temperature threshold rule.
func NewEngine(model Model) *Engine {
	if model == nil {
		model = NewTemperatureThresholdModel()
	}
	return &Engine{model: model}
}

// ModelName returns the name of the underlying model
func (e *Engine) ModelName() string {
	return e.model.Name()
}

// Compute derives the insight for p from its latest vital and lab samples.
func (e *Engine) Compute(p *clinical.Patient) (*RiskInsight, error) {
	if p == nil {
		return nil, ErrNilPatient
	}

	latest, ok := clinical.LatestVitalSample(p)
	if !ok {
		return nil, fmt.Errorf("patient %s: %w", p.ID, ErrNoVitalData)
	}

	var labs *clinical.LabResultSample
	if lab, ok := clinical.LatestLabSample(p); ok {
		labs = &lab
	}

	assessment := e.model.Assess(latest, labs)
	if !assessment.Probabilities.Valid() {
		return nil, fmt.Errorf("model %s for patient %s: %w", e.model.Name(), p.ID, ErrInvalidProbabilities)
	}

	ri := &RiskInsight{
		PatientID:             p.ID,
		PatientName:           p.Name,
		Classification:        assessment.Classification,
		ComplicationPredicted: assessment.Classification == ClassificationHigh,
		Probabilities:         assessment.Probabilities,
		ComplicationPercent:   assessment.Probabilities.ComplicationPercent(),
		Narrative:             assessment.Narrative,
		LatestVitals:          latest,
		LatestLabs:            labs,
		TemperatureRecorded:   assessment.TemperatureRecorded,
		Model:                 e.model.Name(),
		AsOf:                  latest.Timestamp,
	}

	if note, ok := clinical.LatestNote(p); ok {
		digest := DigestNote(note.Content)
		ri.Notes = &digest
	}

	return ri, nil
}

var defaultEngine = NewEngine(nil)

// ComputeInsight computes the insight for p with the default placeholder model.
func ComputeInsight(p *clinical.Patient) (*RiskInsight, error) {
	return defaultEngine.Compute(p)
}

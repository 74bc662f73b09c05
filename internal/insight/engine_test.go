package insight

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stealthcompany.com/holdmed/internal/clinical"
)

func patientWithTemps(id string, temps ...*float64) *clinical.Patient {
	p := &clinical.Patient{ID: id, Name: "Patient " + id}
	base := time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)
	for i, temp := range temps {
		p.VitalSigns = append(p.VitalSigns, clinical.VitalSignSample{
			Timestamp:             base.Add(time.Duration(i) * 2 * time.Hour),
			BloodPressureSystolic: clinical.Value(130 + float64(i)*5),
			Temperature:           temp,
		})
	}
	return p
}

func TestComputeInsightClassification(t *testing.T) {
	tests := []struct {
		name          string
		temps         []*float64
		wantClass     Classification
		wantProbs     Probabilities
		wantNarrative string
		wantRecorded  bool
	}{
		{
			name:          "latest above threshold is high risk",
			temps:         []*float64{clinical.Value(36.5), clinical.Value(37.0), clinical.Value(37.5)},
			wantClass:     ClassificationHigh,
			wantProbs:     Probabilities{0.25, 0.75},
			wantNarrative: HighRiskNarrative,
			wantRecorded:  true,
		},
		{
			name:          "threshold itself is low risk",
			temps:         []*float64{clinical.Value(37.3)},
			wantClass:     ClassificationLow,
			wantProbs:     Probabilities{0.80, 0.20},
			wantNarrative: LowRiskNarrative,
			wantRecorded:  true,
		},
		{
			name:          "only the latest sample counts",
			temps:         []*float64{clinical.Value(39.0), clinical.Value(36.8)},
			wantClass:     ClassificationLow,
			wantProbs:     Probabilities{0.80, 0.20},
			wantNarrative: LowRiskNarrative,
			wantRecorded:  true,
		},
		{
			name:          "missing latest temperature defaults to low risk",
			temps:         []*float64{clinical.Value(38.5), nil},
			wantClass:     MissingTemperaturePolicy,
			wantProbs:     Probabilities{0.80, 0.20},
			wantNarrative: LowRiskNarrative,
			wantRecorded:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := patientWithTemps("42", tt.temps...)
			ri, err := ComputeInsight(p)
			require.NoError(t, err)

			assert.Equal(t, p.ID, ri.PatientID)
			assert.Equal(t, tt.wantClass, ri.Classification)
			assert.Equal(t, tt.wantClass == ClassificationHigh, ri.ComplicationPredicted)
			assert.Equal(t, tt.wantProbs, ri.Probabilities)
			assert.True(t, ri.Probabilities.Valid())
			assert.Equal(t, tt.wantNarrative, ri.Narrative)
			assert.Equal(t, tt.wantRecorded, ri.TemperatureRecorded)
			assert.Equal(t, p.VitalSigns[len(p.VitalSigns)-1].Timestamp, ri.AsOf)
		})
	}
}

func TestComputeInsightNoVitals(t *testing.T) {
	p := &clinical.Patient{ID: "9", LabResults: []clinical.LabResultSample{{Glucose: clinical.Value(100)}}}

	ri, err := ComputeInsight(p)
	assert.Nil(t, ri)
	assert.ErrorIs(t, err, ErrNoVitalData)

	_, err = ComputeInsight(nil)
	assert.ErrorIs(t, err, ErrNilPatient)
}

func TestComputeInsightLabs(t *testing.T) {
	p := patientWithTemps("3", clinical.Value(36.9))

	ri, err := ComputeInsight(p)
	require.NoError(t, err)
	assert.Nil(t, ri.LatestLabs, "labs must be reported unavailable, not zero-filled")

	p.LabResults = []clinical.LabResultSample{
		{Glucose: clinical.Value(95)},
		{Glucose: clinical.Value(120), Hemoglobin: clinical.Value(12.5)},
	}
	ri, err = ComputeInsight(p)
	require.NoError(t, err)
	require.NotNil(t, ri.LatestLabs)
	assert.Equal(t, 120.0, *ri.LatestLabs.Glucose)
}

func TestComputeInsightIsPure(t *testing.T) {
	p := patientWithTemps("5", clinical.Value(37.8))
	first, err := ComputeInsight(p)
	require.NoError(t, err)
	second, err := ComputeInsight(p)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, p.VitalSigns, 1)
}

func TestComputeInsightNotes(t *testing.T) {
	p := patientWithTemps("6", clinical.Value(37.0))
	p.ClinicalNotes = []clinical.ClinicalNote{
		{Content: "Uneventful night."},
		{Content: "High fever and abdominal pain after surgery."},
	}

	ri, err := ComputeInsight(p)
	require.NoError(t, err)
	require.NotNil(t, ri.Notes)
	assert.Equal(t, []string{"fever", "pain"}, ri.Notes.MedicalTerms)
	assert.Equal(t, LowRiskNarrative, ri.Narrative)
}

type brokenModel struct{}

func (brokenModel) Name() string { return "broken" }

func (brokenModel) Assess(clinical.VitalSignSample, *clinical.LabResultSample) Assessment {
	return Assessment{Classification: ClassificationHigh, Probabilities: Probabilities{0.6, 0.6}}
}

func TestEngineRejectsInvalidProbabilities(t *testing.T) {
	engine := NewEngine(brokenModel{})
	_, err := engine.Compute(patientWithTemps("1", clinical.Value(37)))
	assert.ErrorIs(t, err, ErrInvalidProbabilities)
	assert.Equal(t, "broken", engine.ModelName())
}

func TestProbabilities(t *testing.T) {
	tests := []struct {
		name  string
		probs Probabilities
		valid bool
	}{
		{"high branch", HighRiskProbabilities, true},
		{"low branch", LowRiskProbabilities, true},
		{"does not sum to one", Probabilities{0.5, 0.6}, false},
		{"negative component", Probabilities{-0.2, 1.2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.probs.Valid())
		})
	}

	assert.Equal(t, 75, HighRiskProbabilities.ComplicationPercent())
	assert.Equal(t, 20, LowRiskProbabilities.ComplicationPercent())
}

func TestDigestNote(t *testing.T) {
	d := DigestNote("Patient presented high fever and intense abdominal pain. Exams indicate possible infection; fever persists.")

	assert.Equal(t, []string{"fever", "infection", "pain"}, d.MedicalTerms)
	assert.Contains(t, d.Keywords, "abdominal")
	assert.Contains(t, d.Keywords, "fever")
	assert.NotContains(t, d.Keywords, "and")
	assert.NotContains(t, d.Keywords, "patient")

	empty := DigestNote("")
	assert.Empty(t, empty.Keywords)
	assert.Empty(t, empty.MedicalTerms)
}

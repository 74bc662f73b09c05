package clinical

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrMissingPatientID = errors.New("patient id is required")
	ErrUnorderedSeries  = errors.New("series is not in chronological order")
)

// Patient is a post-operative patient with its full monitoring history.
// Series are ordered chronologically; the last element is the latest sample.
type Patient struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Age           int               `json:"age"`
	Gender        string            `json:"gender"`
	SurgeryType   string            `json:"surgery_type"`
	SurgeryDate   time.Time         `json:"surgery_date"`
	VitalSigns    []VitalSignSample `json:"vital_signs"`
	LabResults    []LabResultSample `json:"lab_results"`
	ClinicalNotes []ClinicalNote    `json:"clinical_notes,omitempty"`
}

// VitalSignSample is a single bedside reading. A nil field was not recorded.
type VitalSignSample struct {
	Timestamp              time.Time `json:"timestamp"`
	BloodPressureSystolic  *float64  `json:"blood_pressure_systolic"`
	BloodPressureDiastolic *float64  `json:"blood_pressure_diastolic,omitempty"`
	HeartRate              *float64  `json:"heart_rate"`
	Temperature            *float64  `json:"temperature"`
	OxygenSaturation       *float64  `json:"oxygen_saturation"`
	RespiratoryRate        *float64  `json:"respiratory_rate,omitempty"`
}

// LabResultSample is a single laboratory panel. A nil field was not measured.
type LabResultSample struct {
	Timestamp       time.Time `json:"timestamp"`
	Glucose         *float64  `json:"glucose"`
	Hemoglobin      *float64  `json:"hemoglobin"`
	WhiteBloodCells *float64  `json:"white_blood_cells"`
	Creatinine      *float64  `json:"creatinine,omitempty"`
	Sodium          *float64  `json:"sodium,omitempty"`
	Potassium       *float64  `json:"potassium,omitempty"`
}

// ClinicalNote is free text written by the care team.
type ClinicalNote struct {
	Timestamp time.Time `json:"timestamp"`
	NoteType  string    `json:"note_type"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
}

// PatientSummary is the roster projection of a patient, without series.
type PatientSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Age         int       `json:"age"`
	Gender      string    `json:"gender"`
	SurgeryType string    `json:"surgery_type"`
	SurgeryDate time.Time `json:"surgery_date"`
	VitalCount  int       `json:"vital_count"`
	LabCount    int       `json:"lab_count"`
}

// Value returns a pointer to v, for building samples.
func Value(v float64) *float64 {
	return &v
}

// LatestVitalSample returns the most recent vital-sign sample. The boolean
// is false when the patient has no vital signs recorded.
func LatestVitalSample(p *Patient) (VitalSignSample, bool) {
	if p == nil || len(p.VitalSigns) == 0 {
		return VitalSignSample{}, false
	}
	return p.VitalSigns[len(p.VitalSigns)-1], true
}

// LatestLabSample returns the most recent lab panel, if any.
func LatestLabSample(p *Patient) (LabResultSample, bool) {
	if p == nil || len(p.LabResults) == 0 {
		return LabResultSample{}, false
	}
	return p.LabResults[len(p.LabResults)-1], true
}

// LatestNote returns the most recent clinical note, if any.
func LatestNote(p *Patient) (ClinicalNote, bool) {
	if p == nil || len(p.ClinicalNotes) == 0 {
		return ClinicalNote{}, false
	}
	return p.ClinicalNotes[len(p.ClinicalNotes)-1], true
}

// Validate checks identity and that every series is non-decreasing in time.
func (p *Patient) Validate() error {
	if p.ID == "" {
		return ErrMissingPatientID
	}
	for i := 1; i < len(p.VitalSigns); i++ {
		if p.VitalSigns[i].Timestamp.Before(p.VitalSigns[i-1].Timestamp) {
			return fmt.Errorf("patient %s vital signs at index %d: %w", p.ID, i, ErrUnorderedSeries)
		}
	}
	for i := 1; i < len(p.LabResults); i++ {
		if p.LabResults[i].Timestamp.Before(p.LabResults[i-1].Timestamp) {
			return fmt.Errorf("patient %s lab results at index %d: %w", p.ID, i, ErrUnorderedSeries)
		}
	}
	for i := 1; i < len(p.ClinicalNotes); i++ {
		if p.ClinicalNotes[i].Timestamp.Before(p.ClinicalNotes[i-1].Timestamp) {
			return fmt.Errorf("patient %s clinical notes at index %d: %w", p.ID, i, ErrUnorderedSeries)
		}
	}
	return nil
}

// Summary projects the patient for roster listings.
func (p *Patient) Summary() PatientSummary {
	return PatientSummary{
		ID:          p.ID,
		Name:        p.Name,
		Age:         p.Age,
		Gender:      p.Gender,
		SurgeryType: p.SurgeryType,
		SurgeryDate: p.SurgeryDate,
		VitalCount:  len(p.VitalSigns),
		LabCount:    len(p.LabResults),
	}
}

package fhir

import (
	"sort"
	"time"

	"stealthcompany.com/holdmed/internal/clinical"
)

// LOINC codes of the readings we keep
const (
	loincSystolic        = "8480-6"
	loincDiastolic       = "8462-4"
	loincBloodPressure   = "85354-9"
	loincHeartRate       = "8867-4"
	loincTemperature     = "8310-5"
	loincOxygenSat       = "59408-5"
	loincOxygenSatPulse  = "2708-6"
	loincRespiratoryRate = "9279-1"

	loincGlucose         = "2339-0"
	loincGlucoseSerum    = "2345-7"
	loincHemoglobin      = "718-7"
	loincWhiteBloodCells = "6690-2"
	loincCreatinine      = "2160-0"
	loincSodium          = "2951-2"
	loincPotassium       = "2823-3"
)

type vitalSetter func(*clinical.VitalSignSample, float64)
type labSetter func(*clinical.LabResultSample, float64)

var vitalSetters = map[string]vitalSetter{
	loincSystolic:        func(s *clinical.VitalSignSample, v float64) { s.BloodPressureSystolic = clinical.Value(v) },
	loincDiastolic:       func(s *clinical.VitalSignSample, v float64) { s.BloodPressureDiastolic = clinical.Value(v) },
	loincHeartRate:       func(s *clinical.VitalSignSample, v float64) { s.HeartRate = clinical.Value(v) },
	loincTemperature:     func(s *clinical.VitalSignSample, v float64) { s.Temperature = clinical.Value(v) },
	loincOxygenSat:       func(s *clinical.VitalSignSample, v float64) { s.OxygenSaturation = clinical.Value(v) },
	loincOxygenSatPulse:  func(s *clinical.VitalSignSample, v float64) { s.OxygenSaturation = clinical.Value(v) },
	loincRespiratoryRate: func(s *clinical.VitalSignSample, v float64) { s.RespiratoryRate = clinical.Value(v) },
}

// white blood cells are reported in 10*3/uL and stored per μL
var labSetters = map[string]labSetter{
	loincGlucose:         func(s *clinical.LabResultSample, v float64) { s.Glucose = clinical.Value(v) },
	loincGlucoseSerum:    func(s *clinical.LabResultSample, v float64) { s.Glucose = clinical.Value(v) },
	loincHemoglobin:      func(s *clinical.LabResultSample, v float64) { s.Hemoglobin = clinical.Value(v) },
	loincWhiteBloodCells: func(s *clinical.LabResultSample, v float64) { s.WhiteBloodCells = clinical.Value(v) },
	loincCreatinine:      func(s *clinical.LabResultSample, v float64) { s.Creatinine = clinical.Value(v) },
	loincSodium:          func(s *clinical.LabResultSample, v float64) { s.Sodium = clinical.Value(v) },
	loincPotassium:       func(s *clinical.LabResultSample, v float64) { s.Potassium = clinical.Value(v) },
}

// normalize converts the units we know to the ones clinical records use
func normalize(code string, q *Quantity) (float64, bool) {
	if q == nil || q.Value == nil {
		return 0, false
	}
	v := *q.Value
	switch code {
	case loincTemperature:
		if q.Code == "[degF]" || q.Unit == "degF" || q.Unit == "°F" {
			v = (v - 32) * 5 / 9
		}
	case loincWhiteBloodCells:
		if q.Code == "10*3/uL" || q.Unit == "10*3/uL" || q.Unit == "10^3/uL" {
			v *= 1000
		}
	}
	return v, true
}

// readings flattens an observation into (code, value) pairs, expanding panels
// such as blood pressure into their components.
func readings(o *Observation) map[string]float64 {
	out := make(map[string]float64)
	for _, c := range o.Code.Coding {
		if v, ok := normalize(c.Code, o.ValueQuantity); ok {
			out[c.Code] = v
		}
	}
	for _, comp := range o.Component {
		for _, c := range comp.Code.Coding {
			if v, ok := normalize(c.Code, comp.ValueQuantity); ok {
				out[c.Code] = v
			}
		}
	}
	return out
}

// ageAt returns the age in whole years on day at, or 0 when birth is unknown.
func ageAt(birthDate string, at time.Time) int {
	birth, ok := parseFHIRTime(birthDate)
	if !ok || at.Before(birth) {
		return 0
	}
	age := at.Year() - birth.Year()
	if at.Month() < birth.Month() || (at.Month() == birth.Month() && at.Day() < birth.Day()) {
		age--
	}
	return age
}

func gender(g string) string {
	switch g {
	case "male":
		return "M"
	case "female":
		return "F"
	case "":
		return ""
	default:
		return "O"
	}
}

// MapPatient builds a clinical record from the FHIR resources of one patient.
// Observations taken at the same instant are merged into one sample, and
// series come out in chronological order. procedure may be nil.
func MapPatient(pt *Patient, observations []Observation, procedure *Procedure, now time.Time) *clinical.Patient {
	p := &clinical.Patient{
		ID:     pt.ID,
		Name:   pt.DisplayName(),
		Age:    ageAt(pt.BirthDate, now),
		Gender: gender(pt.Gender),
	}

	if procedure != nil {
		p.SurgeryType = procedure.Code.label()
		if t, ok := procedure.performed(); ok {
			p.SurgeryDate = t
		}
	}

	vitals := make(map[time.Time]*clinical.VitalSignSample)
	labs := make(map[time.Time]*clinical.LabResultSample)

	for i := range observations {
		o := &observations[i]
		if o.Status == "entered-in-error" || o.Status == "cancelled" {
			continue
		}
		at, ok := o.effective()
		if !ok {
			continue
		}

		for code, v := range readings(o) {
			if set, ok := vitalSetters[code]; ok {
				s := vitals[at]
				if s == nil {
					s = &clinical.VitalSignSample{Timestamp: at}
					vitals[at] = s
				}
				set(s, v)
				continue
			}
			if set, ok := labSetters[code]; ok {
				s := labs[at]
				if s == nil {
					s = &clinical.LabResultSample{Timestamp: at}
					labs[at] = s
				}
				set(s, v)
			}
		}
	}

	for _, s := range vitals {
		p.VitalSigns = append(p.VitalSigns, *s)
	}
	for _, s := range labs {
		p.LabResults = append(p.LabResults, *s)
	}
	sort.Slice(p.VitalSigns, func(i, j int) bool {
		return p.VitalSigns[i].Timestamp.Before(p.VitalSigns[j].Timestamp)
	})
	sort.Slice(p.LabResults, func(i, j int) bool {
		return p.LabResults[i].Timestamp.Before(p.LabResults[j].Timestamp)
	})

	return p
}

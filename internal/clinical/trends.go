package clinical

import "math"

// Direction of a metric between its first and latest recorded values
type Direction string

const (
	DirectionRising  Direction = "rising"
	DirectionFalling Direction = "falling"
	DirectionStable  Direction = "stable"
)

// Trend summarizes one metric over a patient's series.
type Trend struct {
	Metric    string    `json:"metric"`
	Unit      string    `json:"unit"`
	Samples   int       `json:"samples"`
	First     float64   `json:"first"`
	Latest    float64   `json:"latest"`
	Delta     float64   `json:"delta"`
	Direction Direction `json:"direction"`
}

type metricDef struct {
	name      string
	unit      string
	tolerance float64
}

var (
	systolicMetric    = metricDef{"blood_pressure_systolic", "mmHg", 2}
	diastolicMetric   = metricDef{"blood_pressure_diastolic", "mmHg", 2}
	heartRateMetric   = metricDef{"heart_rate", "bpm", 2}
	temperatureMetric = metricDef{"temperature", "°C", 0.1}
	oxygenMetric      = metricDef{"oxygen_saturation", "%", 1}
	respiratoryMetric = metricDef{"respiratory_rate", "breaths/min", 1}
	glucoseMetric     = metricDef{"glucose", "mg/dL", 5}
	hemoglobinMetric  = metricDef{"hemoglobin", "g/dL", 0.2}
	leukocyteMetric   = metricDef{"white_blood_cells", "/μL", 250}
	creatinineMetric  = metricDef{"creatinine", "mg/dL", 0.1}
	sodiumMetric      = metricDef{"sodium", "mmol/L", 1}
	potassiumMetric   = metricDef{"potassium", "mmol/L", 0.1}
)

// Trends computes first/latest/delta for every metric that has at least one
// recorded value. Missing readings are skipped, not treated as zero.
func Trends(p *Patient) []Trend {
	if p == nil {
		return nil
	}

	vitals := []struct {
		def metricDef
		get func(VitalSignSample) *float64
	}{
		{systolicMetric, func(s VitalSignSample) *float64 { return s.BloodPressureSystolic }},
		{diastolicMetric, func(s VitalSignSample) *float64 { return s.BloodPressureDiastolic }},
		{heartRateMetric, func(s VitalSignSample) *float64 { return s.HeartRate }},
		{temperatureMetric, func(s VitalSignSample) *float64 { return s.Temperature }},
		{oxygenMetric, func(s VitalSignSample) *float64 { return s.OxygenSaturation }},
		{respiratoryMetric, func(s VitalSignSample) *float64 { return s.RespiratoryRate }},
	}
	labs := []struct {
		def metricDef
		get func(LabResultSample) *float64
	}{
		{glucoseMetric, func(s LabResultSample) *float64 { return s.Glucose }},
		{hemoglobinMetric, func(s LabResultSample) *float64 { return s.Hemoglobin }},
		{leukocyteMetric, func(s LabResultSample) *float64 { return s.WhiteBloodCells }},
		{creatinineMetric, func(s LabResultSample) *float64 { return s.Creatinine }},
		{sodiumMetric, func(s LabResultSample) *float64 { return s.Sodium }},
		{potassiumMetric, func(s LabResultSample) *float64 { return s.Potassium }},
	}

	var trends []Trend
	for _, m := range vitals {
		values := make([]float64, 0, len(p.VitalSigns))
		for _, s := range p.VitalSigns {
			if v := m.get(s); v != nil {
				values = append(values, *v)
			}
		}
		if t, ok := buildTrend(m.def, values); ok {
			trends = append(trends, t)
		}
	}
	for _, m := range labs {
		values := make([]float64, 0, len(p.LabResults))
		for _, s := range p.LabResults {
			if v := m.get(s); v != nil {
				values = append(values, *v)
			}
		}
		if t, ok := buildTrend(m.def, values); ok {
			trends = append(trends, t)
		}
	}
	return trends
}

func buildTrend(def metricDef, values []float64) (Trend, bool) {
	if len(values) == 0 {
		return Trend{}, false
	}
	first, latest := values[0], values[len(values)-1]
	delta := latest - first

	direction := DirectionStable
	switch {
	case math.Abs(delta) < def.tolerance:
	case delta > 0:
		direction = DirectionRising
	default:
		direction = DirectionFalling
	}

	return Trend{
		Metric:    def.name,
		Unit:      def.unit,
		Samples:   len(values),
		First:     first,
		Latest:    latest,
		Delta:     math.Round(delta*100) / 100,
		Direction: direction,
	}, true
}

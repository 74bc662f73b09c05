package store

import (
	"time"

	"stealthcompany.com/holdmed/internal/clinical"
)

func demoTime(day, hour int) time.Time {
	return time.Date(2024, 6, day, hour, 0, 0, 0, time.UTC)
}

// DemoRoster is the static roster shown before a real record store is wired in.
func DemoRoster() []*clinical.Patient {
	v := clinical.Value
	return []*clinical.Patient{
		{
			ID:          "1",
			Name:        "João Silva",
			Age:         65,
			Gender:      "M",
			SurgeryType: "Cardiac surgery",
			SurgeryDate: demoTime(20, 10),
			VitalSigns: []clinical.VitalSignSample{
				{Timestamp: demoTime(20, 12), BloodPressureSystolic: v(130), HeartRate: v(75), Temperature: v(36.5), OxygenSaturation: v(98)},
				{Timestamp: demoTime(20, 14), BloodPressureSystolic: v(135), HeartRate: v(80), Temperature: v(37.0), OxygenSaturation: v(97)},
				{Timestamp: demoTime(20, 16), BloodPressureSystolic: v(140), HeartRate: v(85), Temperature: v(37.5), OxygenSaturation: v(96)},
			},
			LabResults: []clinical.LabResultSample{
				{Timestamp: demoTime(20, 12), Glucose: v(120), Hemoglobin: v(12.5), WhiteBloodCells: v(8000)},
			},
		},
		{
			ID:          "2",
			Name:        "Maria Santos",
			Age:         45,
			Gender:      "F",
			SurgeryType: "Abdominal surgery",
			SurgeryDate: demoTime(21, 8),
			VitalSigns: []clinical.VitalSignSample{
				{Timestamp: demoTime(21, 10), BloodPressureSystolic: v(120), HeartRate: v(70), Temperature: v(36.8), OxygenSaturation: v(99)},
				{Timestamp: demoTime(21, 12), BloodPressureSystolic: v(125), HeartRate: v(72), Temperature: v(37.2), OxygenSaturation: v(98)},
			},
			LabResults: []clinical.LabResultSample{
				{Timestamp: demoTime(21, 10), Glucose: v(95), Hemoglobin: v(11.8), WhiteBloodCells: v(7500)},
			},
		},
	}
}

// NewDemoStore returns a MemoryStore seeded with DemoRoster.
func NewDemoStore() *MemoryStore {
	ms, err := NewMemoryStore(DemoRoster()...)
	if err != nil {
		// The demo roster is static and ordered.
		panic(err)
	}
	return ms
}

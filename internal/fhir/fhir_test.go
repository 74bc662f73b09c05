package fhir

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"stealthcompany.com/holdmed/internal/clinical"
)

const patientBundle = `{
  "resourceType": "Bundle",
  "type": "searchset",
  "entry": [
    {"resource": {"resourceType": "Patient", "id": "p1", "gender": "male", "birthDate": "1959-03-10",
      "name": [{"use": "official", "given": ["João"], "family": "Silva"}]}},
    {"resource": {"resourceType": "Patient", "id": "p2", "gender": "female", "birthDate": "1979-01-01",
      "name": [{"text": "Maria Santos"}]}}
  ]
}`

const vitalsBundle = `{
  "resourceType": "Bundle",
  "type": "searchset",
  "entry": [
    {"resource": {"resourceType": "Observation", "id": "o3", "status": "final",
      "code": {"coding": [{"system": "http://loinc.org", "code": "8310-5"}]},
      "effectiveDateTime": "2024-06-20T16:00:00Z", "valueQuantity": {"value": 99.5, "unit": "degF", "code": "[degF]"}}},
    {"resource": {"resourceType": "Observation", "id": "o1", "status": "final",
      "code": {"coding": [{"system": "http://loinc.org", "code": "8310-5"}]},
      "effectiveDateTime": "2024-06-20T12:00:00Z", "valueQuantity": {"value": 36.5, "unit": "Cel"}}},
    {"resource": {"resourceType": "Observation", "id": "o2", "status": "final",
      "code": {"coding": [{"system": "http://loinc.org", "code": "85354-9"}]},
      "effectiveDateTime": "2024-06-20T12:00:00Z",
      "component": [
        {"code": {"coding": [{"code": "8480-6"}]}, "valueQuantity": {"value": 130}},
        {"code": {"coding": [{"code": "8462-4"}]}, "valueQuantity": {"value": 85}}
      ]}},
    {"resource": {"resourceType": "Observation", "id": "o4", "status": "entered-in-error",
      "code": {"coding": [{"code": "8867-4"}]},
      "effectiveDateTime": "2024-06-20T13:00:00Z", "valueQuantity": {"value": 180}}}
  ]
}`

const labsBundle = `{
  "resourceType": "Bundle",
  "type": "searchset",
  "entry": [
    {"resource": {"resourceType": "Observation", "id": "l1", "status": "final",
      "code": {"coding": [{"code": "6690-2"}]},
      "effectiveDateTime": "2024-06-20T12:30:00Z", "valueQuantity": {"value": 8, "code": "10*3/uL"}}},
    {"resource": {"resourceType": "Observation", "id": "l2", "status": "final",
      "code": {"coding": [{"code": "2345-7"}]},
      "effectiveDateTime": "2024-06-20T12:30:00Z", "valueQuantity": {"value": 120}}}
  ]
}`

const procedureBundle = `{
  "resourceType": "Bundle",
  "type": "searchset",
  "entry": [
    {"resource": {"resourceType": "Procedure", "id": "pr1", "status": "completed",
      "code": {"coding": [{"display": "Coronary artery bypass"}], "text": "Cardiac surgery"},
      "performedPeriod": {"start": "2024-06-20T08:00:00Z"}}}
  ]
}`

const emptyBundle = `{"resourceType": "Bundle", "type": "searchset"}`

func newFHIRServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", fhirContentType)
		q := r.URL.Query()
		switch r.URL.Path {
		case "/Patient":
			w.Write([]byte(patientBundle))
		case "/Observation":
			if q.Get("subject") != "Patient/p1" {
				w.Write([]byte(emptyBundle))
				return
			}
			if q.Get("category") == "laboratory" {
				w.Write([]byte(labsBundle))
			} else {
				w.Write([]byte(vitalsBundle))
			}
		case "/Procedure":
			if q.Get("subject") == "Patient/p1" {
				w.Write([]byte(procedureBundle))
			} else {
				w.Write([]byte(emptyBundle))
			}
		default:
			http.NotFound(w, r)
		}
	}))
}

type memoryWriter struct {
	mu       sync.Mutex
	patients map[string]*clinical.Patient
	fail     string
}

func (m *memoryWriter) UpsertPatient(ctx context.Context, p *clinical.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == m.fail {
		return errors.New("write failed")
	}
	if m.patients == nil {
		m.patients = make(map[string]*clinical.Patient)
	}
	m.patients[p.ID] = p
	return nil
}

type fakeLocker struct {
	locked, unlocked bool
	err              error
}

func (l *fakeLocker) Lock(ctx context.Context, owner string, ttl time.Duration) error {
	if l.err != nil {
		return l.err
	}
	l.locked = true
	return nil
}

func (l *fakeLocker) Unlock(ctx context.Context) error {
	l.unlocked = true
	return nil
}

func TestIngesterRun(t *testing.T) {
	srv := newFHIRServer(t)
	defer srv.Close()

	writer := &memoryWriter{}
	locker := &fakeLocker{}
	in := NewIngester(NewClient(srv.URL, time.Second), writer, locker, 10)
	in.now = func() time.Time { return time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC) }

	res, err := in.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Fetched: 2, Stored: 2, Failed: 0}, res)
	assert.True(t, locker.locked)
	assert.True(t, locker.unlocked)

	p1 := writer.patients["p1"]
	require.NotNil(t, p1)
	assert.Equal(t, "João Silva", p1.Name)
	assert.Equal(t, 65, p1.Age)
	assert.Equal(t, "M", p1.Gender)
	assert.Equal(t, "Cardiac surgery", p1.SurgeryType)
	assert.Equal(t, time.Date(2024, 6, 20, 8, 0, 0, 0, time.UTC), p1.SurgeryDate)
	require.NoError(t, p1.Validate())

	// entered-in-error reading is dropped; the two remaining instants become two samples
	require.Len(t, p1.VitalSigns, 2)
	first, latest := p1.VitalSigns[0], p1.VitalSigns[1]
	assert.Equal(t, 36.5, *first.Temperature)
	assert.Equal(t, 130.0, *first.BloodPressureSystolic)
	assert.Equal(t, 85.0, *first.BloodPressureDiastolic)
	assert.Nil(t, first.HeartRate)
	assert.InDelta(t, 37.5, *latest.Temperature, 1e-9)

	require.Len(t, p1.LabResults, 1)
	assert.Equal(t, 8000.0, *p1.LabResults[0].WhiteBloodCells)
	assert.Equal(t, 120.0, *p1.LabResults[0].Glucose)

	p2 := writer.patients["p2"]
	require.NotNil(t, p2)
	assert.Equal(t, "Maria Santos", p2.Name)
	assert.Equal(t, "F", p2.Gender)
	assert.Empty(t, p2.VitalSigns)
	assert.Empty(t, p2.SurgeryType)
}

func TestIngesterRunCountsFailures(t *testing.T) {
	srv := newFHIRServer(t)
	defer srv.Close()

	in := NewIngester(NewClient(srv.URL, time.Second), &memoryWriter{fail: "p2"}, &fakeLocker{}, 10)
	res, err := in.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stored)
	assert.Equal(t, 1, res.Failed)
}

func TestIngesterRunLockFailure(t *testing.T) {
	in := NewIngester(NewClient("http://127.0.0.1:1", time.Second), &memoryWriter{}, &fakeLocker{err: errors.New("held")}, 10)
	_, err := in.Run(context.Background())
	assert.Error(t, err)
}

func TestPatientsRespectsLimitAndPaging(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		b := Bundle{ResourceType: "Bundle", Type: "searchset"}
		id := "a"
		if page == "2" {
			id = "b"
		} else {
			b.Link = []BundleLink{{Relation: "next", URL: srv.URL + "/Patient?page=2"}}
		}
		raw, _ := json.Marshal(Patient{ResourceType: "Patient", ID: id})
		b.Entry = []BundleEntry{{Resource: raw}}
		json.NewEncoder(w).Encode(b)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)

	all, err := c.Patients(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "b", all[1].ID)

	one, err := c.Patients(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestFetchBundleErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Patients(context.Background(), 5)
	assert.ErrorContains(t, err, "503")
}

func TestAgeAt(t *testing.T) {
	at := time.Date(2024, 6, 21, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 65, ageAt("1959-03-10", at))
	assert.Equal(t, 64, ageAt("1959-12-10", at))
	assert.Equal(t, 0, ageAt("", at))
	assert.Equal(t, 0, ageAt("not-a-date", at))
}

package fhir

import (
	"encoding/json"
	"strings"
	"time"
)

// Bundle is a FHIR searchset response
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type"`
	Total        int           `json:"total,omitempty"`
	Entry        []BundleEntry `json:"entry"`
	Link         []BundleLink  `json:"link,omitempty"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl"`
	Resource json.RawMessage `json:"resource"`
}

type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

// next returns the URL of the following page, if any
func (b *Bundle) next() string {
	for _, l := range b.Link {
		if l.Relation == "next" {
			return l.URL
		}
	}
	return ""
}

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// hasCode reports whether any coding carries code
func (c CodeableConcept) hasCode(code string) bool {
	for _, cd := range c.Coding {
		if cd.Code == code {
			return true
		}
	}
	return false
}

// label is the human readable name of the concept
func (c CodeableConcept) label() string {
	if c.Text != "" {
		return c.Text
	}
	for _, cd := range c.Coding {
		if cd.Display != "" {
			return cd.Display
		}
	}
	return ""
}

type Quantity struct {
	Value *float64 `json:"value,omitempty"`
	Unit  string   `json:"unit,omitempty"`
	Code  string   `json:"code,omitempty"`
}

type Reference struct {
	Reference string `json:"reference"`
}

type HumanName struct {
	Use    string   `json:"use,omitempty"`
	Text   string   `json:"text,omitempty"`
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
}

// Patient is the subset of the FHIR Patient resource we map
type Patient struct {
	ResourceType string      `json:"resourceType"`
	ID           string      `json:"id"`
	Name         []HumanName `json:"name,omitempty"`
	Gender       string      `json:"gender,omitempty"`
	BirthDate    string      `json:"birthDate,omitempty"`
}

// DisplayName prefers the official name, then the first one recorded.
func (p *Patient) DisplayName() string {
	if len(p.Name) == 0 {
		return ""
	}
	name := p.Name[0]
	for _, n := range p.Name {
		if n.Use == "official" {
			name = n
			break
		}
	}
	if name.Text != "" {
		return name.Text
	}
	parts := append(append([]string{}, name.Given...), name.Family)
	return strings.TrimSpace(strings.Join(parts, " "))
}

type ObservationComponent struct {
	Code          CodeableConcept `json:"code"`
	ValueQuantity *Quantity       `json:"valueQuantity,omitempty"`
}

// Observation is a vital sign or laboratory result
type Observation struct {
	ResourceType      string                 `json:"resourceType"`
	ID                string                 `json:"id"`
	Status            string                 `json:"status,omitempty"`
	Category          []CodeableConcept      `json:"category,omitempty"`
	Code              CodeableConcept        `json:"code"`
	Subject           Reference              `json:"subject"`
	EffectiveDateTime string                 `json:"effectiveDateTime,omitempty"`
	Issued            string                 `json:"issued,omitempty"`
	ValueQuantity     *Quantity              `json:"valueQuantity,omitempty"`
	Component         []ObservationComponent `json:"component,omitempty"`
}

// effective is when the observation was taken, falling back to when it was issued
func (o *Observation) effective() (time.Time, bool) {
	for _, s := range []string{o.EffectiveDateTime, o.Issued} {
		if t, ok := parseFHIRTime(s); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

type Period struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Procedure is the surgery the patient is being monitored after
type Procedure struct {
	ResourceType      string          `json:"resourceType"`
	ID                string          `json:"id"`
	Status            string          `json:"status,omitempty"`
	Code              CodeableConcept `json:"code"`
	Subject           Reference       `json:"subject"`
	PerformedDateTime string          `json:"performedDateTime,omitempty"`
	PerformedPeriod   *Period         `json:"performedPeriod,omitempty"`
}

func (p *Procedure) performed() (time.Time, bool) {
	if t, ok := parseFHIRTime(p.PerformedDateTime); ok {
		return t, true
	}
	if p.PerformedPeriod != nil {
		return parseFHIRTime(p.PerformedPeriod.Start)
	}
	return time.Time{}, false
}

var fhirTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseFHIRTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range fhirTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

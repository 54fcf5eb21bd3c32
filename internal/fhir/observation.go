// Package fhir maps sensor readings to and from FHIR Observation
// resources. The data generator exports readings as a Bundle of
// Observations and the classify API accepts a single Observation,
// extracting the sensor components it knows.
package fhir

import (
	"encoding/json"
	"fmt"
	"time"

	"carewatch/internal/types"
)

// Coding systems and component codes carried by sensor Observations.
const (
	LoincSystem    = "http://loinc.org"
	SnomedSystem   = "http://snomed.info/sct"
	UnitsSystem    = "http://unitsofmeasure.org"
	CategorySystem = "http://terminology.hl7.org/CodeSystem/observation-category"

	// CodeVitalsPanel is the LOINC panel code on the Observation itself.
	CodeVitalsPanel = "85353-1"
	// CodeTemperature is the LOINC body temperature component.
	CodeTemperature = "8310-5"
	// CodeMotion is the SNOMED activity component.
	CodeMotion = "52821000"
	// CodeSound is the LOINC sound level component.
	CodeSound = "89020-2"
)

// Bundle is a FHIR collection of Observation resources.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type"`
	Entry        []BundleEntry `json:"entry"`
}

// BundleEntry wraps one resource inside a Bundle.
type BundleEntry struct {
	Resource Observation `json:"resource"`
}

// Observation is the subset of a FHIR Observation the service reads and
// writes. Unknown fields in incoming payloads are ignored.
type Observation struct {
	ResourceType      string            `json:"resourceType"`
	ID                string            `json:"id,omitempty"`
	Status            string            `json:"status,omitempty"`
	Category          []CodeableConcept `json:"category,omitempty"`
	Code              CodeableConcept   `json:"code,omitempty"`
	Subject           *Reference        `json:"subject,omitempty"`
	EffectiveDateTime string            `json:"effectiveDateTime,omitempty"`
	Issued            string            `json:"issued,omitempty"`
	Component         []Component       `json:"component,omitempty"`
}

// CodeableConcept is a coded value with an optional free-text label.
type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// Coding is a single code from a terminology system.
type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

// Reference points at another resource.
type Reference struct {
	Reference string `json:"reference"`
}

// Component is one observed value inside an Observation.
type Component struct {
	Code          CodeableConcept `json:"code"`
	ValueQuantity *Quantity       `json:"valueQuantity,omitempty"`
	ValueInteger  *int            `json:"valueInteger,omitempty"`
	ValueString   string          `json:"valueString,omitempty"`
}

// Quantity is a measured value with its unit.
type Quantity struct {
	Value  float64 `json:"value"`
	Unit   string  `json:"unit,omitempty"`
	System string  `json:"system,omitempty"`
	Code   string  `json:"code,omitempty"`
}

// hasCode reports whether any coding on the component carries the code.
// The three sensor codes do not collide across their systems, so the
// system is not consulted.
func (c *Component) hasCode(code string) bool {
	for _, coding := range c.Code.Coding {
		if coding.Code == code {
			return true
		}
	}
	return false
}

func (c *Component) intValue() int {
	if c.ValueInteger == nil {
		return 0
	}
	return *c.ValueInteger
}

// ParseObservation decodes an Observation payload, tolerating FHIR fields
// the service does not model.
func ParseObservation(data []byte) (*Observation, error) {
	var obs Observation
	if err := json.Unmarshal(data, &obs); err != nil {
		return nil, fmt.Errorf("decoding observation: %w", err)
	}
	return &obs, nil
}

// NewObservation maps a sensor reading onto a vital-signs Observation with
// the three sensor components and, for labeled readings, the activity
// classification as a text-coded component.
func NewObservation(r *types.SensorReading, patientID string) Observation {
	ts := r.Timestamp.UTC().Format(time.RFC3339)
	motion := int(r.MotionLevel)
	sound := int(r.SoundLevel)

	obs := Observation{
		ResourceType: "Observation",
		ID:           r.ID,
		Status:       "final",
		Category: []CodeableConcept{{
			Coding: []Coding{{
				System:  CategorySystem,
				Code:    "vital-signs",
				Display: "Vital Signs",
			}},
		}},
		Code: CodeableConcept{
			Coding: []Coding{{
				System:  LoincSystem,
				Code:    CodeVitalsPanel,
				Display: "Vital signs, weight, height, head circumference, oxygen saturation & BMI panel",
			}},
			Text: "Sensor Reading",
		},
		Subject:           &Reference{Reference: "Patient/" + patientID},
		EffectiveDateTime: ts,
		Issued:            ts,
		Component: []Component{
			{
				Code: CodeableConcept{
					Coding: []Coding{{System: LoincSystem, Code: CodeTemperature, Display: "Body temperature"}},
				},
				ValueQuantity: &Quantity{
					Value:  r.Temperature,
					Unit:   "Cel",
					System: UnitsSystem,
					Code:   "Cel",
				},
			},
			{
				Code: CodeableConcept{
					Coding: []Coding{{System: SnomedSystem, Code: CodeMotion, Display: "Activity"}},
				},
				ValueInteger: &motion,
			},
			{
				Code: CodeableConcept{
					Coding: []Coding{{System: LoincSystem, Code: CodeSound, Display: "Sound level"}},
				},
				ValueInteger: &sound,
			},
		},
	}

	if r.ActivityClass != "" {
		obs.Component = append(obs.Component, Component{
			Code:        CodeableConcept{Text: "Activity Classification"},
			ValueString: string(r.ActivityClass),
		})
	}
	return obs
}

// NewBundle wraps readings into a collection Bundle of Observations.
func NewBundle(readings []types.SensorReading, patientID string) Bundle {
	entries := make([]BundleEntry, len(readings))
	for i := range readings {
		entries[i] = BundleEntry{Resource: NewObservation(&readings[i], patientID)}
	}
	return Bundle{
		ResourceType: "Bundle",
		Type:         "collection",
		Entry:        entries,
	}
}

// Package outage holds the record schema exchanged on the outage channel: an
// ordered batch of grid outage events.
package outage

import (
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	errspkg "github.com/electsolve/outagewire/internal/runtime/errors"
)

// ObjectType is the metadata value identifying a Batch payload.
const ObjectType = "outageEvent[]"

// Optional carries a value together with an explicit presence flag, so an
// omitted field stays distinguishable from one holding the zero value.
type Optional[T any] struct {
	Value   T
	Present bool
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Present: true}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Present
}

// RawDocument is an uninterpreted sub-document. Codecs carry it byte for byte
// without looking inside. A nil RawDocument is absent.
type RawDocument []byte

// Extension is a free-form typed attribute attached to an event.
type Extension struct {
	Name  string
	Value string
	Type  ExtType
}

// MapLocation is a map coordinate pair.
type MapLocation struct {
	X float64
	Y Optional[float64]
}

// GPSLocation is a latitude/longitude pair.
type GPSLocation struct {
	Latitude  float64
	Longitude float64
	Validity  Optional[bool]
}

// ObjectRef names a piece of equipment. It is a reference, not ownership.
type ObjectRef struct {
	Name                string
	ObjectTypeQualifier string
	ObjectID            string
}

// Event is one observed grid outage incident.
type Event struct {
	ObjectID string
	Verb     Verb
	Comments string

	// Extensions keeps order. A nil slice is absent, an empty non-nil slice
	// is present but empty.
	Extensions []Extension

	ObjectName      string
	MapLocation     *MapLocation
	GPSLocation     *GPSLocation
	GridLocation    string
	Area            string
	ProblemLocation string
	Device          *ObjectRef
	DeviceType      string
	OutagedPhase    Phase
	SubstationCode  string
	Feeder          string
	Status          Status

	StartTime     Optional[time.Time]
	CompletedTime Optional[time.Time]

	// Counts are numeric text so leading zeros survive.
	CustomersAffected      string
	CustomersRestored      string
	PriorityCustomersCount string
	EventCount             string

	ReasonExtensions RawDocument
}

// EffectiveVerb returns the event verb, defaulting to VerbCreate when absent.
func (e Event) EffectiveVerb() Verb {
	if e.Verb == "" {
		return VerbCreate
	}
	return e.Verb
}

// Validate checks the event against the schema. path prefixes field names in
// the returned SchemaViolationError.
func (e Event) Validate(path string) error {
	if e.ObjectID == "" {
		return errspkg.NewSchemaViolation(path+".objectID", "object id is required", nil)
	}
	if err := e.validateText(path); err != nil {
		return err
	}
	if !e.Verb.Valid() {
		return errspkg.NewSchemaViolation(path+".verb", fmt.Sprintf("unknown verb token %q", e.Verb), nil)
	}
	if !e.Status.Valid() {
		return errspkg.NewSchemaViolation(path+".status", fmt.Sprintf("unknown status token %q", e.Status), nil)
	}
	if !e.OutagedPhase.Valid() {
		return errspkg.NewSchemaViolation(path+".outagedPhase", fmt.Sprintf("unknown phase token %q", e.OutagedPhase), nil)
	}
	for i, ext := range e.Extensions {
		extPath := fmt.Sprintf("%s.extensionsList[%d]", path, i)
		if ext.Name == "" {
			return errspkg.NewSchemaViolation(extPath+".extName", "extension name is required", nil)
		}
		if !ext.Type.Valid() {
			return errspkg.NewSchemaViolation(extPath+".extType", fmt.Sprintf("unknown extension type token %q", ext.Type), nil)
		}
	}
	if m := e.MapLocation; m != nil {
		if !isFinite(m.X) {
			return errspkg.NewSchemaViolation(path+".mapLocation.x", "coordinate must be finite", nil)
		}
		if y, ok := m.Y.Get(); ok && !isFinite(y) {
			return errspkg.NewSchemaViolation(path+".mapLocation.y", "coordinate must be finite", nil)
		}
	}
	if g := e.GPSLocation; g != nil {
		if !isFinite(g.Latitude) {
			return errspkg.NewSchemaViolation(path+".gpsLocation.latitude", "coordinate must be finite", nil)
		}
		if !isFinite(g.Longitude) {
			return errspkg.NewSchemaViolation(path+".gpsLocation.longitude", "coordinate must be finite", nil)
		}
	}
	counts := []struct{ name, value string }{
		{"customersAffected", e.CustomersAffected},
		{"customersRestored", e.CustomersRestored},
		{"priorityCustomersCount", e.PriorityCustomersCount},
		{"eventCount", e.EventCount},
	}
	for _, c := range counts {
		if !IsNumericText(c.value) {
			return errspkg.NewSchemaViolation(path+"."+c.name, fmt.Sprintf("%q is not numeric text", c.value), nil)
		}
	}
	return nil
}

// validateText rejects text fields that are not valid UTF-8. Codecs would
// otherwise disagree on them: JSON substitutes U+FFFD, XML refuses them.
func (e Event) validateText(path string) error {
	fields := []struct{ name, value string }{
		{"objectID", e.ObjectID},
		{"comments", e.Comments},
		{"objectName", e.ObjectName},
		{"gridLocation", e.GridLocation},
		{"area", e.Area},
		{"problemLocation", e.ProblemLocation},
		{"deviceType", e.DeviceType},
		{"substationCode", e.SubstationCode},
		{"feeder", e.Feeder},
	}
	if d := e.Device; d != nil {
		fields = append(fields,
			struct{ name, value string }{"device.name", d.Name},
			struct{ name, value string }{"device.objectTypeQualifier", d.ObjectTypeQualifier},
			struct{ name, value string }{"device.objectID", d.ObjectID},
		)
	}
	for i, ext := range e.Extensions {
		extPath := fmt.Sprintf("extensionsList[%d]", i)
		fields = append(fields,
			struct{ name, value string }{extPath + ".extName", ext.Name},
			struct{ name, value string }{extPath + ".extValue", ext.Value},
		)
	}
	for _, f := range fields {
		if !utf8.ValidString(f.value) {
			return errspkg.NewSchemaViolation(path+"."+f.name, "text is not valid UTF-8", nil)
		}
	}
	return nil
}

// Batch is an ordered sequence of events.
type Batch []Event

// Validate checks every event, reporting the first violation.
func (b Batch) Validate() error {
	for i, ev := range b {
		if err := ev.Validate(EventPath(i)); err != nil {
			return err
		}
	}
	return nil
}

// EventPath returns the field path prefix of the i-th event.
func EventPath(i int) string {
	return fmt.Sprintf("outageEvent[%d]", i)
}

// IsNumericText reports whether s is empty or made of ASCII decimal digits.
func IsNumericText(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

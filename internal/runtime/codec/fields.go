package codec

import (
	"strconv"
	"time"

	errspkg "github.com/electsolve/outagewire/internal/runtime/errors"
	"github.com/electsolve/outagewire/internal/runtime/outage"
)

// Field path suffixes shared by all codecs.
const (
	fieldVerb             = ".verb"
	fieldStatus           = ".status"
	fieldOutagedPhase     = ".outagedPhase"
	fieldStartTime        = ".startTime"
	fieldCompletedTime    = ".completedTime"
	fieldMapLocation      = ".mapLocation"
	fieldGPSLocation      = ".gpsLocation"
	fieldExtensions       = ".extensionsList"
	fieldReasonExtensions = ".reasonExtensions"
)

func violation(path, reason string, err error) error {
	return errspkg.NewSchemaViolation(path, reason, err)
}

// enumFields decodes the three event-level enumerations.
func enumFields(path, verb, status, phase string, ev *outage.Event) error {
	var err error
	if ev.Verb, err = outage.ParseVerb(verb); err != nil {
		return violation(path+fieldVerb, "unknown token", err)
	}
	if ev.Status, err = outage.ParseStatus(status); err != nil {
		return violation(path+fieldStatus, "unknown token", err)
	}
	if ev.OutagedPhase, err = outage.ParsePhase(phase); err != nil {
		return violation(path+fieldOutagedPhase, "unknown token", err)
	}
	return nil
}

func parseExtType(path, token string) (outage.ExtType, error) {
	t, err := outage.ParseExtType(token)
	if err != nil {
		return "", violation(path, "unknown token", err)
	}
	return t, nil
}

// Timestamps travel as RFC 3339 text with the value's own UTC offset. A zero
// offset decodes in time.UTC, any other in a fixed unnamed zone, so zone
// names are not preserved but the offset and instant are.
func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(path, s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, violation(path, "malformed timestamp", err)
	}
	// time.Parse picks time.Local when the offset matches it.
	_, offset := t.Zone()
	if offset == 0 {
		return t.UTC(), nil
	}
	return t.In(time.FixedZone("", offset)), nil
}

func optionalTimeText(o outage.Optional[time.Time]) *string {
	if !o.Present {
		return nil
	}
	s := formatTime(o.Value)
	return &s
}

func parseOptionalTime(path string, s *string) (outage.Optional[time.Time], error) {
	if s == nil {
		return outage.Optional[time.Time]{}, nil
	}
	t, err := parseTime(path, *s)
	if err != nil {
		return outage.Optional[time.Time]{}, err
	}
	return outage.Some(t), nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseFloat(path, s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, violation(path, "malformed number", err)
	}
	return f, nil
}

// parseBool accepts the xsd:boolean lexical forms.
func parseBool(path, s string) (bool, error) {
	switch s {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, violation(path, "malformed boolean "+strconv.Quote(s), nil)
}

// finish validates the decoded batch so rules not expressible in a wire
// struct (required ids, numeric text) are enforced identically everywhere.
func finish(batch outage.Batch) (outage.Batch, error) {
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	return batch, nil
}

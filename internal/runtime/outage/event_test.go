package outage

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/electsolve/outagewire/internal/runtime/errors"
)

func TestParseTokens(t *testing.T) {
	verb, err := ParseVerb("Delete")
	require.NoError(t, err)
	assert.Equal(t, VerbDelete, verb)

	verb, err = ParseVerb("")
	require.NoError(t, err)
	assert.Equal(t, Verb(""), verb)

	_, err = ParseVerb("delete")
	assert.Error(t, err, "tokens are case sensitive")

	status, err := ParseStatus("Restored")
	require.NoError(t, err)
	assert.Equal(t, StatusRestored, status)

	_, err = ParseStatus("Flickering")
	assert.Error(t, err)

	phase, err := ParsePhase("B")
	require.NoError(t, err)
	assert.Equal(t, PhaseB, phase)

	ext, err := ParseExtType("boolean")
	require.NoError(t, err)
	assert.Equal(t, ExtBoolean, ext)

	_, err = ParseExtType("number")
	assert.Error(t, err)
}

func TestEffectiveVerb(t *testing.T) {
	assert.Equal(t, VerbCreate, Event{}.EffectiveVerb())
	assert.Equal(t, VerbDelete, Event{Verb: VerbDelete}.EffectiveVerb())
}

func TestOptional(t *testing.T) {
	var absent Optional[bool]
	v, ok := absent.Get()
	assert.False(t, ok)
	assert.False(t, v)

	present := Some(false)
	v, ok = present.Get()
	assert.True(t, ok)
	assert.False(t, v)
	assert.NotEqual(t, absent, present)
}

func TestBatchValidate(t *testing.T) {
	valid := Batch{{ObjectID: "2017-10-27-0003", Status: StatusRestored, CustomersAffected: "006"}}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name string
		ev   Event
		path string
	}{
		{"missing id", Event{}, "outageEvent[1].objectID"},
		{"bad verb", Event{ObjectID: "x", Verb: "Remove"}, "outageEvent[1].verb"},
		{"bad status", Event{ObjectID: "x", Status: "Flickering"}, "outageEvent[1].status"},
		{"bad phase", Event{ObjectID: "x", OutagedPhase: "D"}, "outageEvent[1].outagedPhase"},
		{"bad ext type", Event{ObjectID: "x", Extensions: []Extension{{Name: "n", Type: "number"}}}, "outageEvent[1].extensionsList[0].extType"},
		{"missing ext name", Event{ObjectID: "x", Extensions: []Extension{{Value: "v"}}}, "outageEvent[1].extensionsList[0].extName"},
		{"bad count", Event{ObjectID: "x", EventCount: "1.5"}, "outageEvent[1].eventCount"},
		{"nan map x", Event{ObjectID: "x", MapLocation: &MapLocation{X: math.NaN()}}, "outageEvent[1].mapLocation.x"},
		{"inf latitude", Event{ObjectID: "x", GPSLocation: &GPSLocation{Latitude: math.Inf(1)}}, "outageEvent[1].gpsLocation.latitude"},
		{"invalid utf8 comments", Event{ObjectID: "x", Comments: "caf\xe9"}, "outageEvent[1].comments"},
		{"invalid utf8 device", Event{ObjectID: "x", Device: &ObjectRef{ObjectID: "\xff"}}, "outageEvent[1].device.objectID"},
		{"invalid utf8 ext name", Event{ObjectID: "x", Extensions: []Extension{{Name: "\xc3("}}}, "outageEvent[1].extensionsList[0].extName"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := append(Batch{valid[0]}, tt.ev).Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errspkg.ErrSchemaViolation))

			var sv *errspkg.SchemaViolationError
			require.True(t, errors.As(err, &sv))
			assert.Equal(t, tt.path, sv.Path)
		})
	}
}

func TestIsNumericText(t *testing.T) {
	assert.True(t, IsNumericText(""))
	assert.True(t, IsNumericText("0006"))
	assert.False(t, IsNumericText("-1"))
	assert.False(t, IsNumericText("１"))
}

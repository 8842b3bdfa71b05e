package codec

import (
	"time"

	"github.com/electsolve/outagewire/internal/runtime/outage"
)

const reasonContainer = `<q1:outageReasonContainer xmlns:q1="http://www.multispeak.org/Version_4.1_Release">` +
	`<q1:outageReasonList><q1:outageReasonItem><q1:category>Cause</q1:category>` +
	`<q1:outageReason><q1:description>Animal</q1:description>` +
	`<q1:outageReportingCodeList><q1:outageReportingCode>020</q1:outageReportingCode></q1:outageReportingCodeList>` +
	`</q1:outageReason></q1:outageReasonItem></q1:outageReasonList></q1:outageReasonContainer>`

func fullEvent(id string) outage.Event {
	start := time.Date(2017, 10, 27, 10, 46, 0, 123000000, time.UTC)
	return outage.Event{
		ObjectID: id,
		Extensions: []outage.Extension{
			{Name: "isClosed", Value: "True", Type: outage.ExtBoolean},
			{Name: "substationName", Value: "PARKWAY_T2", Type: outage.ExtString},
			{Name: "feederCode", Value: "3"},
		},
		ObjectName:      "T61563680002",
		MapLocation:     &outage.MapLocation{X: 2191236.56044671, Y: outage.Some(13757840.7320126)},
		GPSLocation:     &outage.GPSLocation{Latitude: 29.576805699162243, Longitude: -98.299250294859718, Validity: outage.Some(true)},
		GridLocation:    "61563680",
		Area:            "West",
		ProblemLocation: "T61563680002",
		Device: &outage.ObjectRef{
			Name:                "T61563680002",
			ObjectTypeQualifier: "transformerBank",
			ObjectID:            "86101734-89a6-11e6-90e7-1866da2dc956",
		},
		DeviceType:             "Transformer",
		OutagedPhase:           outage.PhaseB,
		SubstationCode:         "60",
		Feeder:                 "P301",
		Status:                 outage.StatusRestored,
		StartTime:              outage.Some(start),
		CompletedTime:          outage.Some(start.Add(3 * time.Hour)),
		CustomersAffected:      "006",
		CustomersRestored:      "1",
		PriorityCustomersCount: "0",
		EventCount:             "1",
		ReasonExtensions:       outage.RawDocument(reasonContainer),
	}
}

// sampleBatch mirrors the producer scenario: two restored events and a
// deletion of the second id.
func sampleBatch() outage.Batch {
	return outage.Batch{
		fullEvent("2017-10-27-0003"),
		fullEvent("2017-10-27-0002"),
		{
			ObjectID: "2017-10-27-0002",
			Verb:     outage.VerbDelete,
			Comments: "1 associated calls deleted\r\n  -----\n\tOct 27 2017  1:46PM <discarded> & \"quoted\"",
		},
	}
}

// presenceBatch exercises the distinction between absent fields and fields
// present with their zero value.
func presenceBatch() outage.Batch {
	return outage.Batch{
		{
			ObjectID:         "absent",
			Extensions:       nil,
			ReasonExtensions: nil,
		},
		{
			ObjectID:         "present-zero",
			Extensions:       []outage.Extension{},
			MapLocation:      &outage.MapLocation{X: 0, Y: outage.Some(0.0)},
			GPSLocation:      &outage.GPSLocation{Validity: outage.Some(false)},
			Device:           &outage.ObjectRef{},
			StartTime:        outage.Some(time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)),
			ReasonExtensions: outage.RawDocument{},
		},
		{
			ObjectID:    "map-without-y",
			MapLocation: &outage.MapLocation{X: -1.5},
			GPSLocation: &outage.GPSLocation{Latitude: 1, Longitude: 2},
		},
	}
}

func allCodecs() []Codec {
	return []Codec{XML{}, XML{Indent: true}, JSON{}, Protowire{}}
}

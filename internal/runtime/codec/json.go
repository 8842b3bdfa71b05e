package codec

import (
	"fmt"
	"unicode/utf8"

	"github.com/electsolve/outagewire/internal/runtime/jsoncodec"
	"github.com/electsolve/outagewire/internal/runtime/outage"
)

const jsonRoot = "outageEvent"

// JSON encodes a batch as a JSON array of event objects. Absent optional
// fields are omitted; reasonExtensions is a string holding the raw
// sub-document, so it must be valid UTF-8.
type JSON struct{}

func (JSON) Name() string        { return "json" }
func (JSON) ContentType() string { return "application/json" }

type jsonEvent struct {
	ObjectID               string           `json:"objectID"`
	Verb                   string           `json:"verb,omitempty"`
	Comments               string           `json:"comments,omitempty"`
	ExtensionsList         *[]jsonExtension `json:"extensionsList,omitempty"`
	ObjectName             string           `json:"objectName,omitempty"`
	MapLocation            *jsonMapLocation `json:"mapLocation,omitempty"`
	GPSLocation            *jsonGPSLocation `json:"gpsLocation,omitempty"`
	GridLocation           string           `json:"gridLocation,omitempty"`
	Area                   string           `json:"area,omitempty"`
	ProblemLocation        string           `json:"problemLocation,omitempty"`
	Device                 *jsonObjectRef   `json:"device,omitempty"`
	DeviceType             string           `json:"deviceType,omitempty"`
	OutagedPhase           string           `json:"outagedPhase,omitempty"`
	SubstationCode         string           `json:"substationCode,omitempty"`
	Feeder                 string           `json:"feeder,omitempty"`
	Status                 string           `json:"status,omitempty"`
	StartTime              *string          `json:"startTime,omitempty"`
	CompletedTime          *string          `json:"completedTime,omitempty"`
	CustomersAffected      string           `json:"customersAffected,omitempty"`
	CustomersRestored      string           `json:"customersRestored,omitempty"`
	PriorityCustomersCount string           `json:"priorityCustomersCount,omitempty"`
	EventCount             string           `json:"eventCount,omitempty"`
	ReasonExtensions       *string          `json:"reasonExtensions,omitempty"`
}

type jsonExtension struct {
	Name  string `json:"extName"`
	Value string `json:"extValue,omitempty"`
	Type  string `json:"extType,omitempty"`
}

type jsonMapLocation struct {
	X float64  `json:"x"`
	Y *float64 `json:"y,omitempty"`
}

type jsonGPSLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Validity  *bool   `json:"validity,omitempty"`
}

type jsonObjectRef struct {
	Name                string `json:"name,omitempty"`
	ObjectTypeQualifier string `json:"objectTypeQualifier,omitempty"`
	ObjectID            string `json:"objectID,omitempty"`
}

func (JSON) Encode(batch outage.Batch) ([]byte, error) {
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	events := make([]jsonEvent, len(batch))
	for i, ev := range batch {
		w, err := newJSONEvent(outage.EventPath(i), ev)
		if err != nil {
			return nil, err
		}
		events[i] = w
	}
	data, err := jsoncodec.Marshal(events)
	if err != nil {
		return nil, violation(jsonRoot, "encode document", err)
	}
	return data, nil
}

// Decode accepts a JSON array of events. A JSON null decodes to an empty batch.
func (JSON) Decode(data []byte) (outage.Batch, error) {
	if isBlank(data) {
		return outage.Batch{}, nil
	}
	var items []jsoncodec.RawMessage
	if err := jsoncodec.Unmarshal(data, &items); err != nil {
		return nil, violation(jsonRoot, "malformed document", err)
	}

	batch := make(outage.Batch, 0, len(items))
	for i, item := range items {
		path := outage.EventPath(i)
		var w jsonEvent
		if err := jsoncodec.Unmarshal(item, &w); err != nil {
			return nil, violation(path, "malformed event", err)
		}
		ev, err := w.event(path)
		if err != nil {
			return nil, err
		}
		batch = append(batch, ev)
	}
	return finish(batch)
}

func newJSONEvent(path string, ev outage.Event) (jsonEvent, error) {
	w := jsonEvent{
		ObjectID:               ev.ObjectID,
		Verb:                   string(ev.Verb),
		Comments:               ev.Comments,
		ObjectName:             ev.ObjectName,
		GridLocation:           ev.GridLocation,
		Area:                   ev.Area,
		ProblemLocation:        ev.ProblemLocation,
		DeviceType:             ev.DeviceType,
		OutagedPhase:           string(ev.OutagedPhase),
		SubstationCode:         ev.SubstationCode,
		Feeder:                 ev.Feeder,
		Status:                 string(ev.Status),
		StartTime:              optionalTimeText(ev.StartTime),
		CompletedTime:          optionalTimeText(ev.CompletedTime),
		CustomersAffected:      ev.CustomersAffected,
		CustomersRestored:      ev.CustomersRestored,
		PriorityCustomersCount: ev.PriorityCustomersCount,
		EventCount:             ev.EventCount,
	}
	if ev.Extensions != nil {
		exts := make([]jsonExtension, len(ev.Extensions))
		for i, ext := range ev.Extensions {
			exts[i] = jsonExtension{Name: ext.Name, Value: ext.Value, Type: string(ext.Type)}
		}
		w.ExtensionsList = &exts
	}
	if m := ev.MapLocation; m != nil {
		w.MapLocation = &jsonMapLocation{X: m.X}
		if y, ok := m.Y.Get(); ok {
			w.MapLocation.Y = &y
		}
	}
	if g := ev.GPSLocation; g != nil {
		w.GPSLocation = &jsonGPSLocation{Latitude: g.Latitude, Longitude: g.Longitude}
		if v, ok := g.Validity.Get(); ok {
			w.GPSLocation.Validity = &v
		}
	}
	if d := ev.Device; d != nil {
		w.Device = &jsonObjectRef{Name: d.Name, ObjectTypeQualifier: d.ObjectTypeQualifier, ObjectID: d.ObjectID}
	}
	if ev.ReasonExtensions != nil {
		if !utf8.Valid(ev.ReasonExtensions) {
			return jsonEvent{}, violation(path+fieldReasonExtensions, "sub-document is not valid UTF-8", nil)
		}
		raw := string(ev.ReasonExtensions)
		w.ReasonExtensions = &raw
	}
	return w, nil
}

func (w jsonEvent) event(path string) (outage.Event, error) {
	ev := outage.Event{
		ObjectID:               w.ObjectID,
		Comments:               w.Comments,
		ObjectName:             w.ObjectName,
		GridLocation:           w.GridLocation,
		Area:                   w.Area,
		ProblemLocation:        w.ProblemLocation,
		DeviceType:             w.DeviceType,
		SubstationCode:         w.SubstationCode,
		Feeder:                 w.Feeder,
		CustomersAffected:      w.CustomersAffected,
		CustomersRestored:      w.CustomersRestored,
		PriorityCustomersCount: w.PriorityCustomersCount,
		EventCount:             w.EventCount,
	}
	if err := enumFields(path, w.Verb, w.Status, w.OutagedPhase, &ev); err != nil {
		return outage.Event{}, err
	}

	if w.ExtensionsList != nil {
		ev.Extensions = make([]outage.Extension, 0, len(*w.ExtensionsList))
		for i, item := range *w.ExtensionsList {
			extType, err := parseExtType(fmt.Sprintf("%s%s[%d].extType", path, fieldExtensions, i), item.Type)
			if err != nil {
				return outage.Event{}, err
			}
			ev.Extensions = append(ev.Extensions, outage.Extension{Name: item.Name, Value: item.Value, Type: extType})
		}
	}
	if m := w.MapLocation; m != nil {
		ev.MapLocation = &outage.MapLocation{X: m.X}
		if m.Y != nil {
			ev.MapLocation.Y = outage.Some(*m.Y)
		}
	}
	if g := w.GPSLocation; g != nil {
		ev.GPSLocation = &outage.GPSLocation{Latitude: g.Latitude, Longitude: g.Longitude}
		if g.Validity != nil {
			ev.GPSLocation.Validity = outage.Some(*g.Validity)
		}
	}
	if d := w.Device; d != nil {
		ev.Device = &outage.ObjectRef{Name: d.Name, ObjectTypeQualifier: d.ObjectTypeQualifier, ObjectID: d.ObjectID}
	}

	var err error
	if ev.StartTime, err = parseOptionalTime(path+fieldStartTime, w.StartTime); err != nil {
		return outage.Event{}, err
	}
	if ev.CompletedTime, err = parseOptionalTime(path+fieldCompletedTime, w.CompletedTime); err != nil {
		return outage.Event{}, err
	}
	if w.ReasonExtensions != nil {
		ev.ReasonExtensions = append(outage.RawDocument{}, *w.ReasonExtensions...)
	}
	return ev, nil
}

package codec

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/electsolve/outagewire/internal/runtime/outage"
)

// Protowire writes the batch in the protocol buffers wire format without a
// generated schema. Enumerations are string fields holding their token and
// optional scalars are present only when set. The layout is:
//
//	message Batch       { repeated Event events = 1; }
//	message Event       { string object_id = 1; string verb = 2; string comments = 3;
//	                      ExtensionList extensions_list = 4; string object_name = 5;
//	                      MapLocation map_location = 6; GPSLocation gps_location = 7;
//	                      string grid_location = 8; string area = 9; string problem_location = 10;
//	                      ObjectRef device = 11; string device_type = 12; string outaged_phase = 13;
//	                      string substation_code = 14; string feeder = 15; string status = 16;
//	                      optional string start_time = 17; optional string completed_time = 18;
//	                      string customers_affected = 19; string customers_restored = 20;
//	                      string priority_customers_count = 21; string event_count = 22;
//	                      optional bytes reason_extensions = 23; }
//	message ExtensionList { repeated Extension item = 1; }
//	message Extension   { string name = 1; string value = 2; string type = 3; }
//	message MapLocation { double x = 1; optional double y = 2; }
//	message GPSLocation { double latitude = 1; double longitude = 2; optional bool validity = 3; }
//	message ObjectRef   { string name = 1; string object_type_qualifier = 2; string object_id = 3; }
type Protowire struct{}

func (Protowire) Name() string        { return "protowire" }
func (Protowire) ContentType() string { return "application/x-protobuf" }

const (
	pbBatchEvents protowire.Number = 1

	pbEventObjectID               protowire.Number = 1
	pbEventVerb                   protowire.Number = 2
	pbEventComments               protowire.Number = 3
	pbEventExtensionsList         protowire.Number = 4
	pbEventObjectName             protowire.Number = 5
	pbEventMapLocation            protowire.Number = 6
	pbEventGPSLocation            protowire.Number = 7
	pbEventGridLocation           protowire.Number = 8
	pbEventArea                   protowire.Number = 9
	pbEventProblemLocation        protowire.Number = 10
	pbEventDevice                 protowire.Number = 11
	pbEventDeviceType             protowire.Number = 12
	pbEventOutagedPhase           protowire.Number = 13
	pbEventSubstationCode         protowire.Number = 14
	pbEventFeeder                 protowire.Number = 15
	pbEventStatus                 protowire.Number = 16
	pbEventStartTime              protowire.Number = 17
	pbEventCompletedTime          protowire.Number = 18
	pbEventCustomersAffected      protowire.Number = 19
	pbEventCustomersRestored      protowire.Number = 20
	pbEventPriorityCustomersCount protowire.Number = 21
	pbEventEventCount             protowire.Number = 22
	pbEventReasonExtensions       protowire.Number = 23

	pbListItem protowire.Number = 1

	pbExtName  protowire.Number = 1
	pbExtValue protowire.Number = 2
	pbExtType  protowire.Number = 3

	pbMapX protowire.Number = 1
	pbMapY protowire.Number = 2

	pbGPSLatitude  protowire.Number = 1
	pbGPSLongitude protowire.Number = 2
	pbGPSValidity  protowire.Number = 3

	pbRefName      protowire.Number = 1
	pbRefQualifier protowire.Number = 2
	pbRefObjectID  protowire.Number = 3
)

func (Protowire) Encode(batch outage.Batch) ([]byte, error) {
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	var b []byte
	for _, ev := range batch {
		b = protowire.AppendTag(b, pbBatchEvents, protowire.BytesType)
		b = protowire.AppendBytes(b, appendEvent(nil, ev))
	}
	return b, nil
}

func (Protowire) Decode(data []byte) (outage.Batch, error) {
	batch := outage.Batch{}
	if isBlank(data) {
		return batch, nil
	}
	err := eachField("outageEvent", data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != pbBatchEvents {
			return unknownField, nil
		}
		path := outage.EventPath(len(batch))
		raw, n, err := consumeBytes(path, typ, b)
		if err != nil {
			return 0, err
		}
		ev, err := decodeEvent(path, raw)
		if err != nil {
			return 0, err
		}
		batch = append(batch, ev)
		return n, nil
	})
	if err != nil {
		return nil, err
	}
	return finish(batch)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendDouble(b []byte, num protowire.Number, f float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(f))
}

func appendEvent(b []byte, ev outage.Event) []byte {
	b = protowire.AppendTag(b, pbEventObjectID, protowire.BytesType)
	b = protowire.AppendString(b, ev.ObjectID)
	b = appendString(b, pbEventVerb, string(ev.Verb))
	b = appendString(b, pbEventComments, ev.Comments)
	if ev.Extensions != nil {
		var list []byte
		for _, ext := range ev.Extensions {
			var item []byte
			item = appendString(item, pbExtName, ext.Name)
			item = appendString(item, pbExtValue, ext.Value)
			item = appendString(item, pbExtType, string(ext.Type))
			list = appendMessage(list, pbListItem, item)
		}
		b = appendMessage(b, pbEventExtensionsList, list)
	}
	b = appendString(b, pbEventObjectName, ev.ObjectName)
	if m := ev.MapLocation; m != nil {
		loc := appendDouble(nil, pbMapX, m.X)
		if y, ok := m.Y.Get(); ok {
			loc = appendDouble(loc, pbMapY, y)
		}
		b = appendMessage(b, pbEventMapLocation, loc)
	}
	if g := ev.GPSLocation; g != nil {
		loc := appendDouble(nil, pbGPSLatitude, g.Latitude)
		loc = appendDouble(loc, pbGPSLongitude, g.Longitude)
		if v, ok := g.Validity.Get(); ok {
			loc = protowire.AppendTag(loc, pbGPSValidity, protowire.VarintType)
			loc = protowire.AppendVarint(loc, protowire.EncodeBool(v))
		}
		b = appendMessage(b, pbEventGPSLocation, loc)
	}
	b = appendString(b, pbEventGridLocation, ev.GridLocation)
	b = appendString(b, pbEventArea, ev.Area)
	b = appendString(b, pbEventProblemLocation, ev.ProblemLocation)
	if d := ev.Device; d != nil {
		var ref []byte
		ref = appendString(ref, pbRefName, d.Name)
		ref = appendString(ref, pbRefQualifier, d.ObjectTypeQualifier)
		ref = appendString(ref, pbRefObjectID, d.ObjectID)
		b = appendMessage(b, pbEventDevice, ref)
	}
	b = appendString(b, pbEventDeviceType, ev.DeviceType)
	b = appendString(b, pbEventOutagedPhase, string(ev.OutagedPhase))
	b = appendString(b, pbEventSubstationCode, ev.SubstationCode)
	b = appendString(b, pbEventFeeder, ev.Feeder)
	b = appendString(b, pbEventStatus, string(ev.Status))
	if s := optionalTimeText(ev.StartTime); s != nil {
		b = protowire.AppendTag(b, pbEventStartTime, protowire.BytesType)
		b = protowire.AppendString(b, *s)
	}
	if s := optionalTimeText(ev.CompletedTime); s != nil {
		b = protowire.AppendTag(b, pbEventCompletedTime, protowire.BytesType)
		b = protowire.AppendString(b, *s)
	}
	b = appendString(b, pbEventCustomersAffected, ev.CustomersAffected)
	b = appendString(b, pbEventCustomersRestored, ev.CustomersRestored)
	b = appendString(b, pbEventPriorityCustomersCount, ev.PriorityCustomersCount)
	b = appendString(b, pbEventEventCount, ev.EventCount)
	if ev.ReasonExtensions != nil {
		b = appendMessage(b, pbEventReasonExtensions, ev.ReasonExtensions)
	}
	return b
}

// unknownField tells eachField to skip a field it does not recognise.
const unknownField = -1

// eachField walks the fields of one message. fn returns the number of bytes
// it consumed from b, or unknownField.
func eachField(path string, data []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return violation(path, "malformed field tag", protowire.ParseError(n))
		}
		data = data[n:]
		consumed, err := fn(num, typ, data)
		if err != nil {
			return err
		}
		if consumed == unknownField {
			consumed = protowire.ConsumeFieldValue(num, typ, data)
			if consumed < 0 {
				return violation(path, fmt.Sprintf("malformed field %d", num), protowire.ParseError(consumed))
			}
		}
		data = data[consumed:]
	}
	return nil
}

func wireTypeMismatch(path string, got, want protowire.Type) error {
	return violation(path, fmt.Sprintf("wire type %d, want %d", got, want), nil)
}

func consumeBytes(path string, typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, wireTypeMismatch(path, typ, protowire.BytesType)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, violation(path, "malformed field", protowire.ParseError(n))
	}
	return v, n, nil
}

func consumeString(path string, typ protowire.Type, b []byte) (string, int, error) {
	v, n, err := consumeBytes(path, typ, b)
	return string(v), n, err
}

func consumeDouble(path string, typ protowire.Type, b []byte) (float64, int, error) {
	if typ != protowire.Fixed64Type {
		return 0, 0, wireTypeMismatch(path, typ, protowire.Fixed64Type)
	}
	v, n := protowire.ConsumeFixed64(b)
	if n < 0 {
		return 0, 0, violation(path, "malformed field", protowire.ParseError(n))
	}
	return math.Float64frombits(v), n, nil
}

func consumeBool(path string, typ protowire.Type, b []byte) (bool, int, error) {
	if typ != protowire.VarintType {
		return false, 0, wireTypeMismatch(path, typ, protowire.VarintType)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return false, 0, violation(path, "malformed field", protowire.ParseError(n))
	}
	return protowire.DecodeBool(v), n, nil
}

// stringField binds a field number to a string destination.
type stringField struct {
	name string
	dst  *string
}

func decodeEvent(path string, data []byte) (outage.Event, error) {
	var (
		ev                       outage.Event
		verb, status, phase      string
		startTime, completedTime *string
	)
	textFields := map[protowire.Number]stringField{
		pbEventObjectID:               {".objectID", &ev.ObjectID},
		pbEventVerb:                   {fieldVerb, &verb},
		pbEventComments:               {".comments", &ev.Comments},
		pbEventObjectName:             {".objectName", &ev.ObjectName},
		pbEventGridLocation:           {".gridLocation", &ev.GridLocation},
		pbEventArea:                   {".area", &ev.Area},
		pbEventProblemLocation:        {".problemLocation", &ev.ProblemLocation},
		pbEventDeviceType:             {".deviceType", &ev.DeviceType},
		pbEventOutagedPhase:           {fieldOutagedPhase, &phase},
		pbEventSubstationCode:         {".substationCode", &ev.SubstationCode},
		pbEventFeeder:                 {".feeder", &ev.Feeder},
		pbEventStatus:                 {fieldStatus, &status},
		pbEventCustomersAffected:      {".customersAffected", &ev.CustomersAffected},
		pbEventCustomersRestored:      {".customersRestored", &ev.CustomersRestored},
		pbEventPriorityCustomersCount: {".priorityCustomersCount", &ev.PriorityCustomersCount},
		pbEventEventCount:             {".eventCount", &ev.EventCount},
	}

	err := eachField(path, data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if f, ok := textFields[num]; ok {
			s, n, err := consumeString(path+f.name, typ, b)
			*f.dst = s
			return n, err
		}
		switch num {
		case pbEventExtensionsList:
			raw, n, err := consumeBytes(path+fieldExtensions, typ, b)
			if err != nil {
				return 0, err
			}
			if ev.Extensions == nil {
				ev.Extensions = []outage.Extension{}
			}
			ev.Extensions, err = decodeExtensions(path+fieldExtensions, raw, ev.Extensions)
			return n, err
		case pbEventMapLocation:
			raw, n, err := consumeBytes(path+fieldMapLocation, typ, b)
			if err != nil {
				return 0, err
			}
			ev.MapLocation, err = decodeMapLocation(path+fieldMapLocation, raw)
			return n, err
		case pbEventGPSLocation:
			raw, n, err := consumeBytes(path+fieldGPSLocation, typ, b)
			if err != nil {
				return 0, err
			}
			ev.GPSLocation, err = decodeGPSLocation(path+fieldGPSLocation, raw)
			return n, err
		case pbEventDevice:
			raw, n, err := consumeBytes(path+".device", typ, b)
			if err != nil {
				return 0, err
			}
			ev.Device, err = decodeObjectRef(path+".device", raw)
			return n, err
		case pbEventStartTime:
			s, n, err := consumeString(path+fieldStartTime, typ, b)
			startTime = &s
			return n, err
		case pbEventCompletedTime:
			s, n, err := consumeString(path+fieldCompletedTime, typ, b)
			completedTime = &s
			return n, err
		case pbEventReasonExtensions:
			raw, n, err := consumeBytes(path+fieldReasonExtensions, typ, b)
			ev.ReasonExtensions = append(outage.RawDocument{}, raw...)
			return n, err
		}
		return unknownField, nil
	})
	if err != nil {
		return outage.Event{}, err
	}

	if err := enumFields(path, verb, status, phase, &ev); err != nil {
		return outage.Event{}, err
	}
	if ev.StartTime, err = parseOptionalTime(path+fieldStartTime, startTime); err != nil {
		return outage.Event{}, err
	}
	if ev.CompletedTime, err = parseOptionalTime(path+fieldCompletedTime, completedTime); err != nil {
		return outage.Event{}, err
	}
	return ev, nil
}

func decodeExtensions(path string, data []byte, exts []outage.Extension) ([]outage.Extension, error) {
	err := eachField(path, data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != pbListItem {
			return unknownField, nil
		}
		itemPath := fmt.Sprintf("%s[%d]", path, len(exts))
		raw, n, err := consumeBytes(itemPath, typ, b)
		if err != nil {
			return 0, err
		}
		var ext outage.Extension
		var extType string
		err = eachField(itemPath, raw, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			var s string
			var n int
			var err error
			switch num {
			case pbExtName:
				s, n, err = consumeString(itemPath+".extName", typ, b)
				ext.Name = s
			case pbExtValue:
				s, n, err = consumeString(itemPath+".extValue", typ, b)
				ext.Value = s
			case pbExtType:
				s, n, err = consumeString(itemPath+".extType", typ, b)
				extType = s
			default:
				return unknownField, nil
			}
			return n, err
		})
		if err != nil {
			return 0, err
		}
		if ext.Type, err = parseExtType(itemPath+".extType", extType); err != nil {
			return 0, err
		}
		exts = append(exts, ext)
		return n, nil
	})
	return exts, err
}

func decodeMapLocation(path string, data []byte) (*outage.MapLocation, error) {
	loc := &outage.MapLocation{}
	err := eachField(path, data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case pbMapX:
			x, n, err := consumeDouble(path+".x", typ, b)
			loc.X = x
			return n, err
		case pbMapY:
			y, n, err := consumeDouble(path+".y", typ, b)
			loc.Y = outage.Some(y)
			return n, err
		}
		return unknownField, nil
	})
	return loc, err
}

func decodeGPSLocation(path string, data []byte) (*outage.GPSLocation, error) {
	loc := &outage.GPSLocation{}
	err := eachField(path, data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case pbGPSLatitude:
			v, n, err := consumeDouble(path+".latitude", typ, b)
			loc.Latitude = v
			return n, err
		case pbGPSLongitude:
			v, n, err := consumeDouble(path+".longitude", typ, b)
			loc.Longitude = v
			return n, err
		case pbGPSValidity:
			v, n, err := consumeBool(path+".validity", typ, b)
			loc.Validity = outage.Some(v)
			return n, err
		}
		return unknownField, nil
	})
	return loc, err
}

func decodeObjectRef(path string, data []byte) (*outage.ObjectRef, error) {
	ref := &outage.ObjectRef{}
	err := eachField(path, data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var dst *string
		var name string
		switch num {
		case pbRefName:
			dst, name = &ref.Name, ".name"
		case pbRefQualifier:
			dst, name = &ref.ObjectTypeQualifier, ".objectTypeQualifier"
		case pbRefObjectID:
			dst, name = &ref.ObjectID, ".objectID"
		default:
			return unknownField, nil
		}
		s, n, err := consumeString(path+name, typ, b)
		*dst = s
		return n, err
	})
	return ref, err
}

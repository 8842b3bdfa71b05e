package codec

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/electsolve/outagewire/internal/runtime/outage"
)

const (
	xmlRootElement  = "ArrayOfOutageEvent"
	xmlEventElement = "outageEvent"
)

// XML is the MultiSpeak-style document codec. Events are children of an
// ArrayOfOutageEvent root; reasonExtensions travel as raw inner XML of the
// outageReasonCodeList element.
type XML struct {
	// Indent pretty-prints the document when set.
	Indent bool
}

func (XML) Name() string        { return "xml" }
func (XML) ContentType() string { return "application/xml" }

type xmlDocument struct {
	XMLName xml.Name   `xml:"ArrayOfOutageEvent"`
	Events  []xmlEvent `xml:"outageEvent"`
}

type xmlEvent struct {
	XMLName                xml.Name           `xml:"outageEvent"`
	ObjectID               string             `xml:"objectID,attr"`
	Verb                   string             `xml:"verb,attr,omitempty"`
	Comments               string             `xml:"comments,omitempty"`
	ExtensionsList         *xmlExtensionsList `xml:"extensionsList"`
	ObjectName             string             `xml:"objectName,omitempty"`
	MapLocation            *xmlMapLocation    `xml:"mapLocation"`
	GPSLocation            *xmlGPSLocation    `xml:"GPSLocation"`
	GridLocation           string             `xml:"gridLocation,omitempty"`
	Area                   string             `xml:"area,omitempty"`
	ProblemLocation        string             `xml:"problemLocation,omitempty"`
	DeviceID               *xmlObjectRef      `xml:"deviceID"`
	DeviceType             string             `xml:"deviceType,omitempty"`
	OutagedPhase           string             `xml:"outagedPhase,omitempty"`
	SubstationCode         string             `xml:"substationCode,omitempty"`
	Feeder                 string             `xml:"feeder,omitempty"`
	OutageStatus           string             `xml:"outageStatus,omitempty"`
	StartTime              *string            `xml:"startTime"`
	Completed              *string            `xml:"completed"`
	CustomersAffected      string             `xml:"customersAffected,omitempty"`
	CustomersRestored      string             `xml:"customersRestored,omitempty"`
	PriorityCustomersCount string             `xml:"priorityCustomersCount,omitempty"`
	ODEventCount           string             `xml:"ODEventCount,omitempty"`
	OutageReasonCodeList   *xmlRawDocument    `xml:"outageReasonCodeList"`
}

type xmlExtensionsList struct {
	Items []xmlExtension `xml:"extensionsItem"`
}

type xmlExtension struct {
	ExtName  string `xml:"extName"`
	ExtValue string `xml:"extValue,omitempty"`
	ExtType  string `xml:"extType,omitempty"`
}

type xmlMapLocation struct {
	X string  `xml:"X"`
	Y *string `xml:"Y"`
}

type xmlGPSLocation struct {
	Latitude    string  `xml:"latitude"`
	Longitude   string  `xml:"longitude"`
	GPSValidity *string `xml:"GPSValidity"`
}

type xmlObjectRef struct {
	Name     string `xml:"name,attr,omitempty"`
	Noun     string `xml:"noun,attr,omitempty"`
	ObjectID string `xml:"objectID,attr,omitempty"`
}

type xmlRawDocument struct {
	Inner []byte `xml:",innerxml"`
}

// Encode writes a UTF-8 document with an XML declaration.
func (c XML) Encode(batch outage.Batch) ([]byte, error) {
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	doc := xmlDocument{Events: make([]xmlEvent, len(batch))}
	for i, ev := range batch {
		w, err := newXMLEvent(outage.EventPath(i), ev)
		if err != nil {
			return nil, err
		}
		doc.Events[i] = w
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	if c.Indent {
		enc.Indent("", "  ")
	}
	if err := enc.Encode(doc); err != nil {
		return nil, violation(xmlRootElement, "encode document", err)
	}
	return buf.Bytes(), nil
}

// Decode reads the events in document order. Unknown child elements of an
// event are ignored.
func (XML) Decode(data []byte) (outage.Batch, error) {
	if isBlank(data) {
		return outage.Batch{}, nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))

	root, err := firstElement(dec)
	if err != nil {
		return nil, violation(xmlRootElement, "malformed document", err)
	}
	if root.Name.Local != xmlRootElement {
		return nil, violation(xmlRootElement, fmt.Sprintf("unexpected root element %q", root.Name.Local), nil)
	}

	batch := outage.Batch{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, violation(xmlRootElement, "malformed document", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			path := outage.EventPath(len(batch))
			if t.Name.Local != xmlEventElement {
				return nil, violation(path, fmt.Sprintf("unexpected element %q", t.Name.Local), nil)
			}
			var w xmlEvent
			if err := dec.DecodeElement(&w, &t); err != nil {
				return nil, violation(path, "malformed event", err)
			}
			ev, err := w.event(path)
			if err != nil {
				return nil, err
			}
			batch = append(batch, ev)
		case xml.EndElement:
			if err := trailingContent(dec); err != nil {
				return nil, violation(xmlRootElement, "content after root element", err)
			}
			return finish(batch)
		}
	}
}

func firstElement(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return xml.StartElement{}, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start, nil
		}
	}
}

func trailingContent(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return fmt.Errorf("unexpected element %q", t.Name.Local)
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return errors.New("unexpected character data")
			}
		}
	}
}

// xmlText collects the first string that cannot be represented in XML 1.0.
// The encoder would otherwise replace such characters silently.
type xmlText struct {
	err error
}

func (x *xmlText) check(path, s string) string {
	if x.err == nil && !isXMLText(s) {
		x.err = violation(path, "character not allowed in XML", nil)
	}
	return s
}

func isXMLText(s string) bool {
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size == 1 {
				return false
			}
		}
		switch {
		case r == '\t' || r == '\n' || r == '\r':
		case r >= 0x20 && r <= 0xD7FF:
		case r >= 0xE000 && r <= 0xFFFD:
		case r >= 0x10000 && r <= 0x10FFFF:
		default:
			return false
		}
	}
	return true
}

// checkWellFormed verifies raw parses as XML content so the enclosing
// document stays well-formed.
func checkWellFormed(raw []byte) error {
	dec := xml.NewDecoder(io.MultiReader(
		strings.NewReader("<r>"), bytes.NewReader(raw), strings.NewReader("</r>"),
	))
	for {
		_, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func newXMLEvent(path string, ev outage.Event) (xmlEvent, error) {
	var x xmlText
	w := xmlEvent{
		ObjectID:               x.check(path+".objectID", ev.ObjectID),
		Verb:                   string(ev.Verb),
		Comments:               x.check(path+".comments", ev.Comments),
		ObjectName:             x.check(path+".objectName", ev.ObjectName),
		GridLocation:           x.check(path+".gridLocation", ev.GridLocation),
		Area:                   x.check(path+".area", ev.Area),
		ProblemLocation:        x.check(path+".problemLocation", ev.ProblemLocation),
		DeviceType:             x.check(path+".deviceType", ev.DeviceType),
		OutagedPhase:           string(ev.OutagedPhase),
		SubstationCode:         x.check(path+".substationCode", ev.SubstationCode),
		Feeder:                 x.check(path+".feeder", ev.Feeder),
		OutageStatus:           string(ev.Status),
		StartTime:              optionalTimeText(ev.StartTime),
		Completed:              optionalTimeText(ev.CompletedTime),
		CustomersAffected:      ev.CustomersAffected,
		CustomersRestored:      ev.CustomersRestored,
		PriorityCustomersCount: ev.PriorityCustomersCount,
		ODEventCount:           ev.EventCount,
	}
	if ev.Extensions != nil {
		w.ExtensionsList = &xmlExtensionsList{Items: make([]xmlExtension, len(ev.Extensions))}
		for i, ext := range ev.Extensions {
			extPath := fmt.Sprintf("%s%s[%d]", path, fieldExtensions, i)
			w.ExtensionsList.Items[i] = xmlExtension{
				ExtName:  x.check(extPath+".extName", ext.Name),
				ExtValue: x.check(extPath+".extValue", ext.Value),
				ExtType:  string(ext.Type),
			}
		}
	}
	if m := ev.MapLocation; m != nil {
		w.MapLocation = &xmlMapLocation{X: formatFloat(m.X)}
		if y, ok := m.Y.Get(); ok {
			s := formatFloat(y)
			w.MapLocation.Y = &s
		}
	}
	if g := ev.GPSLocation; g != nil {
		w.GPSLocation = &xmlGPSLocation{Latitude: formatFloat(g.Latitude), Longitude: formatFloat(g.Longitude)}
		if v, ok := g.Validity.Get(); ok {
			s := fmt.Sprint(v)
			w.GPSLocation.GPSValidity = &s
		}
	}
	if d := ev.Device; d != nil {
		w.DeviceID = &xmlObjectRef{
			Name:     x.check(path+".device.name", d.Name),
			Noun:     x.check(path+".device.objectTypeQualifier", d.ObjectTypeQualifier),
			ObjectID: x.check(path+".device.objectID", d.ObjectID),
		}
	}
	if ev.ReasonExtensions != nil {
		if err := checkWellFormed(ev.ReasonExtensions); err != nil {
			return xmlEvent{}, violation(path+fieldReasonExtensions, "sub-document is not well-formed XML", err)
		}
		w.OutageReasonCodeList = &xmlRawDocument{Inner: ev.ReasonExtensions}
	}
	return w, x.err
}

func (w xmlEvent) event(path string) (outage.Event, error) {
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
		EventCount:             w.ODEventCount,
	}
	if err := enumFields(path, w.Verb, w.OutageStatus, w.OutagedPhase, &ev); err != nil {
		return outage.Event{}, err
	}

	if w.ExtensionsList != nil {
		ev.Extensions = make([]outage.Extension, 0, len(w.ExtensionsList.Items))
		for i, item := range w.ExtensionsList.Items {
			extPath := fmt.Sprintf("%s%s[%d]", path, fieldExtensions, i)
			extType, err := parseExtType(extPath+".extType", item.ExtType)
			if err != nil {
				return outage.Event{}, err
			}
			ev.Extensions = append(ev.Extensions, outage.Extension{Name: item.ExtName, Value: item.ExtValue, Type: extType})
		}
	}

	if m := w.MapLocation; m != nil {
		x, err := parseFloat(path+fieldMapLocation+".x", m.X)
		if err != nil {
			return outage.Event{}, err
		}
		ev.MapLocation = &outage.MapLocation{X: x}
		if m.Y != nil {
			y, err := parseFloat(path+fieldMapLocation+".y", *m.Y)
			if err != nil {
				return outage.Event{}, err
			}
			ev.MapLocation.Y = outage.Some(y)
		}
	}

	if g := w.GPSLocation; g != nil {
		lat, err := parseFloat(path+fieldGPSLocation+".latitude", g.Latitude)
		if err != nil {
			return outage.Event{}, err
		}
		lon, err := parseFloat(path+fieldGPSLocation+".longitude", g.Longitude)
		if err != nil {
			return outage.Event{}, err
		}
		ev.GPSLocation = &outage.GPSLocation{Latitude: lat, Longitude: lon}
		if g.GPSValidity != nil {
			valid, err := parseBool(path+fieldGPSLocation+".validity", *g.GPSValidity)
			if err != nil {
				return outage.Event{}, err
			}
			ev.GPSLocation.Validity = outage.Some(valid)
		}
	}

	if d := w.DeviceID; d != nil {
		ev.Device = &outage.ObjectRef{Name: d.Name, ObjectTypeQualifier: d.Noun, ObjectID: d.ObjectID}
	}

	var err error
	if ev.StartTime, err = parseOptionalTime(path+fieldStartTime, w.StartTime); err != nil {
		return outage.Event{}, err
	}
	if ev.CompletedTime, err = parseOptionalTime(path+fieldCompletedTime, w.Completed); err != nil {
		return outage.Event{}, err
	}

	if r := w.OutageReasonCodeList; r != nil {
		ev.ReasonExtensions = append(outage.RawDocument{}, r.Inner...)
	}
	return ev, nil
}

package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electsolve/outagewire/internal/runtime/outage"
)

func TestXMLDocumentShape(t *testing.T) {
	data, err := XML{}.Encode(sampleBatch())
	require.NoError(t, err)
	doc := string(data)

	assert.True(t, strings.HasPrefix(doc, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, doc, `<ArrayOfOutageEvent><outageEvent objectID="2017-10-27-0003">`)
	assert.Contains(t, doc, `<outageEvent objectID="2017-10-27-0002" verb="Delete">`)
	assert.Contains(t, doc, `<outageStatus>Restored</outageStatus>`)
	assert.Contains(t, doc, `<customersAffected>006</customersAffected>`)
	assert.Contains(t, doc, `<extType>boolean</extType>`)
	assert.Contains(t, doc, `<deviceID name="T61563680002" noun="transformerBank" objectID="86101734-89a6-11e6-90e7-1866da2dc956"></deviceID>`)
	assert.Contains(t, doc, "<outageReasonCodeList>"+reasonContainer+"</outageReasonCodeList>",
		"the sub-document must be embedded verbatim")
}

func TestXMLRawDocumentIsByteIdentical(t *testing.T) {
	raw := "\n  <q1:a xmlns:q1=\"urn:x\"   attr='single'>\r\n<q1:b/>&amp;</q1:a>\n<!-- note -->"
	batch := outage.Batch{{ObjectID: "a", ReasonExtensions: outage.RawDocument(raw)}}

	for _, c := range []XML{{}, {Indent: true}} {
		data, err := c.Encode(batch)
		require.NoError(t, err)
		got, err := c.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, raw, string(got[0].ReasonExtensions))
	}
}

func TestXMLRejectsIllFormedRawDocument(t *testing.T) {
	batch := outage.Batch{{ObjectID: "a", ReasonExtensions: outage.RawDocument("<open>")}}
	_, err := XML{}.Encode(batch)
	assertViolation(t, err, "outageEvent[0].reasonExtensions")
}

func TestXMLRejectsUnrepresentableText(t *testing.T) {
	batch := outage.Batch{{ObjectID: "a", Extensions: []outage.Extension{{Name: "n", Value: "bell\x07"}}}}
	_, err := XML{}.Encode(batch)
	assertViolation(t, err, "outageEvent[0].extensionsList[0].extValue")

	batch = outage.Batch{{ObjectID: "a", Comments: "\xff"}}
	_, err = XML{}.Encode(batch)
	assertViolation(t, err, "outageEvent[0].comments")
}

func TestXMLIgnoresUnknownEventChildren(t *testing.T) {
	input := `<?xml version="1.0"?>
<!-- produced elsewhere -->
<ArrayOfOutageEvent xmlns="http://www.multispeak.org/Version_4.1_Release">
  <outageEvent objectID="a">
    <utility>electsolve</utility>
    <outageStatus>Active</outageStatus>
  </outageEvent>
</ArrayOfOutageEvent>
`
	got, err := XML{}.Decode([]byte(input))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, outage.StatusActive, got[0].Status)
}

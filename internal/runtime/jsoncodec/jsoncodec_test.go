package jsoncodec

import (
	"strings"
	"testing"
)

type testPayload struct {
	ObjectID string `json:"objectID"`
	Count    string `json:"count,omitempty"`
}

func TestMarshalAndUnmarshal(t *testing.T) {
	in := testPayload{ObjectID: "2017-10-27-0003", Count: "006"}
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var out testPayload
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if out != in {
		t.Fatalf("expected round trip to match, got %#v", out)
	}

	indented, err := MarshalIndent(in, "", "  ")
	if err != nil {
		t.Fatalf("marshal indent failed: %v", err)
	}
	if !strings.Contains(string(indented), "\n  \"objectID\"") {
		t.Fatalf("expected indented output, got %s", string(indented))
	}
}

func TestValid(t *testing.T) {
	if !Valid([]byte(`[["CorrelationId","text"]]`)) {
		t.Fatal("expected valid document")
	}
	if Valid([]byte(`[["CorrelationId"`)) {
		t.Fatal("expected truncated document to be invalid")
	}
}

func TestRawMessageDefersDecoding(t *testing.T) {
	var items []RawMessage
	if err := Unmarshal([]byte(`[{"objectID":"a"}, 5]`), &items); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 raw items, got %d", len(items))
	}

	var first testPayload
	if err := Unmarshal(items[0], &first); err != nil || first.ObjectID != "a" {
		t.Fatalf("expected first item to decode, got %#v (%v)", first, err)
	}
	var second testPayload
	if err := Unmarshal(items[1], &second); err == nil {
		t.Fatal("expected number to fail decoding into a struct")
	}
}

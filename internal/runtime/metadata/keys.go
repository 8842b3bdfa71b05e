// Package metadata implements the typed key/value side-channel attached to
// every outage message.
package metadata

// Well-known keys set by producers and read by consumers. Consumers tolerate
// any other key.
const (
	KeyObjectType    = "ObjectType"
	KeySchemaVersion = "SchemaVersion"
	KeyCorrelationID = "CorrelationId"
	KeyContentType   = "ContentType"
)

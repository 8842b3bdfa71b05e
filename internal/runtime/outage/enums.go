package outage

import "fmt"

// Verb is the change an event describes. The zero value means the verb was
// omitted, which consumers treat as VerbCreate.
type Verb string

const (
	VerbCreate Verb = "Create"
	VerbUpdate Verb = "Update"
	VerbDelete Verb = "Delete"
)

var verbs = tokenSet(VerbCreate, VerbUpdate, VerbDelete)

// ParseVerb returns the Verb for token. The empty token yields the absent verb.
func ParseVerb(token string) (Verb, error) {
	return parseToken(verbs, token, "verb")
}

// Valid reports whether v is absent or one of the known tokens.
func (v Verb) Valid() bool { return v == "" || verbs[v] }

// Status is the lifecycle state of an outage.
type Status string

const (
	StatusUnconfirmed       Status = "Unconfirmed"
	StatusConfirmed         Status = "Confirmed"
	StatusAssigned          Status = "Assigned"
	StatusDispatched        Status = "Dispatched"
	StatusActive            Status = "Active"
	StatusPartiallyRestored Status = "PartiallyRestored"
	StatusRestored          Status = "Restored"
	StatusCanceled          Status = "Canceled"
	StatusClosed            Status = "Closed"
)

var statuses = tokenSet(
	StatusUnconfirmed, StatusConfirmed, StatusAssigned, StatusDispatched, StatusActive,
	StatusPartiallyRestored, StatusRestored, StatusCanceled, StatusClosed,
)

func ParseStatus(token string) (Status, error) {
	return parseToken(statuses, token, "status")
}

func (s Status) Valid() bool { return s == "" || statuses[s] }

// Phase identifies the outaged phases of the affected equipment.
type Phase string

const (
	PhaseA       Phase = "A"
	PhaseB       Phase = "B"
	PhaseC       Phase = "C"
	PhaseAB      Phase = "AB"
	PhaseAC      Phase = "AC"
	PhaseBC      Phase = "BC"
	PhaseABC     Phase = "ABC"
	PhaseN       Phase = "N"
	PhaseUnknown Phase = "Unknown"
)

var phases = tokenSet(PhaseA, PhaseB, PhaseC, PhaseAB, PhaseAC, PhaseBC, PhaseABC, PhaseN, PhaseUnknown)

func ParsePhase(token string) (Phase, error) {
	return parseToken(phases, token, "phase")
}

func (p Phase) Valid() bool { return p == "" || phases[p] }

// ExtType names the type of an extension value.
type ExtType string

const (
	ExtBoolean  ExtType = "boolean"
	ExtChar     ExtType = "char"
	ExtDate     ExtType = "date"
	ExtDateTime ExtType = "dateTime"
	ExtDecimal  ExtType = "decimal"
	ExtDouble   ExtType = "double"
	ExtFloat    ExtType = "float"
	ExtInt      ExtType = "int"
	ExtLong     ExtType = "long"
	ExtShort    ExtType = "short"
	ExtString   ExtType = "string"
	ExtTime     ExtType = "time"
)

var extTypes = tokenSet(
	ExtBoolean, ExtChar, ExtDate, ExtDateTime, ExtDecimal, ExtDouble,
	ExtFloat, ExtInt, ExtLong, ExtShort, ExtString, ExtTime,
)

func ParseExtType(token string) (ExtType, error) {
	return parseToken(extTypes, token, "extension type")
}

func (t ExtType) Valid() bool { return t == "" || extTypes[t] }

func tokenSet[T ~string](tokens ...T) map[T]bool {
	set := make(map[T]bool, len(tokens))
	for _, tok := range tokens {
		set[tok] = true
	}
	return set
}

func parseToken[T ~string](set map[T]bool, token, kind string) (T, error) {
	if token == "" {
		return "", nil
	}
	if !set[T(token)] {
		return "", fmt.Errorf("unknown %s token %q", kind, token)
	}
	return T(token), nil
}

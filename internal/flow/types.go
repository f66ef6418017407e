// Package flow defines the shared entity model for the managed NiFi flow
// graph: process groups, processors, connections and templates, plus their
// run states as reported by the NiFi REST API.
package flow

import "strings"

// RootGroupID is the alias NiFi accepts for the top-level process group.
const RootGroupID = "root"

// EntityType identifies the kind of a flow component.
type EntityType string

const (
	TypeProcessGroup EntityType = "process-group"
	TypeProcessor    EntityType = "processor"
	TypeConnection   EntityType = "connection"
	TypeTemplate     EntityType = "template"
)

// Label returns a human-readable name for the type ("process group").
func (t EntityType) Label() string {
	return strings.ReplaceAll(string(t), "-", " ")
}

// State mirrors the run states NiFi reports for components.
type State string

const (
	StateRunning  State = "RUNNING"
	StateStopped  State = "STOPPED"
	StateInvalid  State = "INVALID"
	StateDisabled State = "DISABLED"
	StateUnknown  State = "UNKNOWN"
)

// ParseState maps a raw runStatus string from the API to a State.
// Unrecognized values collapse to StateUnknown.
func ParseState(s string) State {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "RUNNING":
		return StateRunning
	case "STOPPED":
		return StateStopped
	case "INVALID":
		return StateInvalid
	case "DISABLED":
		return StateDisabled
	default:
		return StateUnknown
	}
}

// Entity is one component of the flow graph as held in the state cache.
// Records are replaced wholesale on refresh, never mutated field-by-field.
type Entity struct {
	// ID is the opaque NiFi component identifier.
	ID string
	// Type is the component kind.
	Type EntityType
	// Name is the display name. Names are not guaranteed unique.
	Name string
	// ParentID is the enclosing process group ID ("" for the root group).
	ParentID string
	// State is the last observed run state.
	State State
	// ClassName is the Java processor class for processors
	// (e.g. "org.apache.nifi.processors.standard.GenerateFlowFile").
	ClassName string
}

// Package intent translates a free-form chat utterance into a structured
// operation request.
//
// Extraction is a priority-ordered table lookup: each rule is a plain data
// record (trigger pattern, operation kind, slot extractor) and the table is
// evaluated in declaration order with the most specific triggers first. The
// first matching rule wins. Extraction never fails; an utterance that
// matches nothing yields KindUnknown with the original text attached for
// diagnostic display.
package intent

import "flowchat/internal/flow"

// Kind is the operation category extracted from an utterance.
type Kind string

const (
	KindList    Kind = "list"
	KindShow    Kind = "show"
	KindCreate  Kind = "create"
	KindDelete  Kind = "delete"
	KindStart   Kind = "start"
	KindStop    Kind = "stop"
	KindStatus  Kind = "status"
	KindSearch  Kind = "search"
	KindDocs    Kind = "get-docs"
	KindUnknown Kind = "unknown"
)

// Mutating reports whether the kind changes remote state.
func (k Kind) Mutating() bool {
	switch k {
	case KindCreate, KindDelete, KindStart, KindStop:
		return true
	}
	return false
}

// Request is the slot-filled result of extracting one utterance. It lives
// for a single request-response cycle.
type Request struct {
	// Kind is the detected operation. KindUnknown is a terminal sentinel:
	// it is surfaced to the user upstream and never reaches the validator.
	Kind Kind
	// TargetType is the component kind the operation addresses, when one
	// was named ("" when absent).
	TargetType flow.EntityType
	// Target is the free-text name or ID of the addressed entity.
	Target string
	// Params carries the remaining extracted slots: "name" for create,
	// "term" for search, "filter" for documentation lookups, "scope" for an
	// enclosing group, "all" when the utterance addressed every matching
	// component, and "utterance" on unknown intents.
	Params map[string]string
}

// Param returns a named slot value or "".
func (r Request) Param(key string) string {
	if r.Params == nil {
		return ""
	}
	return r.Params[key]
}

// All reports whether the utterance addressed every matching component
// ("stop all processors ...").
func (r Request) All() bool {
	return r.Param("all") == "true"
}

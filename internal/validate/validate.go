// Package validate checks an extracted operation request against the cached
// remote state and the static constraints of each operation kind, before
// anything is dispatched.
//
// Validation failures are user-correctable and never fatal: each one maps
// to a taxonomy kind the formatter turns into actionable guidance. Remote
// failures encountered while resolving targets are passed through unchanged
// so the pipeline can apply its remote-error messaging instead.
package validate

import (
	"context"
	"fmt"

	"flowchat/internal/cache"
	"flowchat/internal/flow"
	"flowchat/internal/intent"
)

// ErrorKind classifies a validation failure.
type ErrorKind string

const (
	UnresolvedIntent       ErrorKind = "unresolved-intent"
	TargetNotFound         ErrorKind = "target-not-found"
	AmbiguousTarget        ErrorKind = "ambiguous-target"
	InvalidStateTransition ErrorKind = "invalid-state-transition"
	MissingParameter       ErrorKind = "missing-parameter"
)

// Error is a recoverable validation failure, surfaced to the user as
// guidance rather than treated as a fault.
type Error struct {
	Kind    ErrorKind
	Message string
	// Candidates carries the matching entities when Kind is
	// AmbiguousTarget, so the user can be asked to disambiguate.
	Candidates []flow.Entity
}

func (e *Error) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Kind, e.Message)
}

// Operation is a fully validated request: free-text identifiers have been
// replaced by resolved entities, eliminating ambiguity downstream.
type Operation struct {
	Kind       intent.Kind
	TargetType flow.EntityType
	// Targets holds the resolved entities the operation acts on. Empty for
	// scope-level operations (list, status, search, docs, create).
	Targets []flow.Entity
	// Scope is the enclosing process group ID the operation runs against.
	Scope string
	// Params carries pass-through slots (create name, search term, docs
	// filter).
	Params map[string]string
	// Stale is set when target resolution had to fall back to stale cache
	// data because the remote was unreachable.
	Stale bool
}

// singleTargetKinds are the kinds whose target must resolve to exactly one
// entity, so ambiguous name matches are rejected. Scope and
// connection-endpoint resolution enforce uniqueness unconditionally, since
// an arbitrary pick there misroutes the whole operation.
var singleTargetKinds = map[intent.Kind]struct{}{
	intent.KindStart:  {},
	intent.KindStop:   {},
	intent.KindShow:   {},
	intent.KindDelete: {},
	intent.KindCreate: {},
}

// Validator resolves and checks operation requests against the shared
// state cache.
type Validator struct {
	cache *cache.Cache
}

// New creates a Validator backed by the shared cache.
func New(c *cache.Cache) *Validator {
	return &Validator{cache: c}
}

// Validate applies the rule chain to req. It returns either a dispatchable
// Operation, a *Error describing what the user must correct, or a remote
// error when target resolution could not reach NiFi and had nothing cached
// to fall back on.
func (v *Validator) Validate(ctx context.Context, req intent.Request) (*Operation, error) {
	// Rule 1: unknown intents are handled upstream; reaching here with one
	// is a contract violation surfaced as guidance, not a panic.
	if req.Kind == intent.KindUnknown {
		return nil, &Error{
			Kind:    UnresolvedIntent,
			Message: "I could not work out what operation you want.",
		}
	}

	op := &Operation{
		Kind:       req.Kind,
		TargetType: req.TargetType,
		Params:     req.Params,
		Scope:      flow.RootGroupID,
	}

	// Resolve the enclosing scope first; every later lookup is relative
	// to it.
	if scopeName := req.Param("scope"); scopeName != "" && scopeName != flow.RootGroupID {
		// An ambiguous scope misroutes the whole operation, so it is
		// rejected for every kind.
		scopeEnt, err := v.resolveSingle(ctx, scopeName, flow.TypeProcessGroup, true, op)
		if err != nil {
			return nil, err
		}
		op.Scope = scopeEnt.ID
	}

	// Rule 4: create needs a type and a name before anything else.
	if req.Kind == intent.KindCreate {
		if req.TargetType == "" {
			return nil, &Error{
				Kind:    MissingParameter,
				Message: "I need to know what to create: a process group, a processor, or a connection.",
			}
		}
		if req.TargetType == flow.TypeConnection {
			return v.validateConnect(ctx, req, op)
		}
		if req.Param("name") == "" {
			return nil, &Error{
				Kind:    MissingParameter,
				Message: fmt.Sprintf("I need a name for the new %s, e.g. \"create a %s named Ingest\".", req.TargetType.Label(), req.TargetType.Label()),
			}
		}
		// Processors cannot exist without a type; NiFi rejects the create.
		if req.TargetType == flow.TypeProcessor && req.Param("class") == "" {
			return nil, &Error{
				Kind:    MissingParameter,
				Message: "I need the processor type, e.g. \"create a GenerateFlowFile processor named Gen\".",
			}
		}
		return op, nil
	}

	// Rule 2: resolve an explicit target identifier.
	if req.Target != "" {
		_, unique := singleTargetKinds[req.Kind]
		ent, err := v.resolveSingle(ctx, req.Target, req.TargetType, unique, op)
		if err != nil {
			return nil, err
		}
		op.Targets = []flow.Entity{ent}
		if op.TargetType == "" {
			op.TargetType = ent.Type
		}
	}

	// Expand "all <type> in <scope>" into the concrete target list.
	if req.All() && len(op.Targets) == 0 && (req.Kind == intent.KindStart || req.Kind == intent.KindStop) {
		targets, err := v.expandAll(ctx, req, op)
		if err != nil {
			return nil, err
		}
		op.Targets = targets
	}

	switch req.Kind {
	case intent.KindStart, intent.KindStop:
		if len(op.Targets) == 0 {
			return nil, &Error{
				Kind:    MissingParameter,
				Message: fmt.Sprintf("I need to know what to %s: name a processor or process group.", req.Kind),
			}
		}
		// Rule 3: state compatibility, for explicitly named single targets.
		if !req.All() && len(op.Targets) == 1 {
			if err := checkTransition(req.Kind, op.Targets[0]); err != nil {
				return nil, err
			}
		}

	case intent.KindShow:
		if len(op.Targets) == 0 {
			return nil, &Error{
				Kind:    MissingParameter,
				Message: "I need to know which component to show. Name a processor, process group, or connection.",
			}
		}

	case intent.KindDelete:
		if len(op.Targets) == 0 {
			return nil, &Error{
				Kind:    MissingParameter,
				Message: "I need to know what to delete. Name the component explicitly.",
			}
		}

	case intent.KindSearch:
		if op.Params["term"] == "" {
			return nil, &Error{
				Kind:    MissingParameter,
				Message: "I need a term to search for, e.g. \"search for kafka\".",
			}
		}
	}

	return op, nil
}

// validateConnect resolves both endpoints of a connection request. The
// resolved source and destination land in Targets, in that order.
func (v *Validator) validateConnect(ctx context.Context, req intent.Request, op *Operation) (*Operation, error) {
	src := req.Param("source")
	dst := req.Param("destination")
	if src == "" || dst == "" {
		return nil, &Error{
			Kind:    MissingParameter,
			Message: "I need both endpoints, e.g. \"connect GenerateData to PutFile\".",
		}
	}

	srcEnt, err := v.resolveSingle(ctx, src, flow.TypeProcessor, true, op)
	if err != nil {
		return nil, err
	}
	dstEnt, err := v.resolveSingle(ctx, dst, flow.TypeProcessor, true, op)
	if err != nil {
		return nil, err
	}
	if srcEnt.ParentID != dstEnt.ParentID {
		return nil, &Error{
			Kind: InvalidStateTransition,
			Message: fmt.Sprintf("%q and %q live in different groups; connections can only join components in the same group.",
				srcEnt.Name, dstEnt.Name),
		}
	}

	op.Targets = []flow.Entity{srcEnt, dstEnt}
	op.Scope = srcEnt.ParentID
	return op, nil
}

// resolveSingle resolves a name or ID to one entity, producing
// TargetNotFound when nothing matches. When unique is set, multiple matches
// are rejected as AmbiguousTarget instead of picking one.
func (v *Validator) resolveSingle(ctx context.Context, nameOrID string, hint flow.EntityType, unique bool, op *Operation) (flow.Entity, error) {
	ents, stale, err := v.cache.Resolve(ctx, nameOrID, hint)
	if stale {
		op.Stale = true
	}
	if len(ents) == 0 {
		if err != nil {
			// Remote unreachable and nothing cached: not a user error.
			return flow.Entity{}, err
		}
		return flow.Entity{}, &Error{
			Kind:    TargetNotFound,
			Message: fmt.Sprintf("I could not find anything named %q in the flow.", nameOrID),
		}
	}
	if len(ents) > 1 && unique {
		return flow.Entity{}, &Error{
			Kind:       AmbiguousTarget,
			Message:    fmt.Sprintf("%q matches %d components; tell me which one you mean.", nameOrID, len(ents)),
			Candidates: ents,
		}
	}
	return ents[0], nil
}

// expandAll lists every cached entity of the requested type in scope that
// is eligible for the transition.
func (v *Validator) expandAll(ctx context.Context, req intent.Request, op *Operation) ([]flow.Entity, error) {
	t := req.TargetType
	if t == "" {
		t = flow.TypeProcessor
	}

	if !v.cache.Fresh(op.Scope) {
		if err := v.cache.Refresh(ctx, op.Scope); err != nil {
			op.Stale = true
		}
	}

	var targets []flow.Entity
	for _, e := range v.cache.EntitiesIn(op.Scope, t) {
		if transitionAllowed(req.Kind, e.State) {
			targets = append(targets, e)
		}
	}
	if len(targets) == 0 {
		return nil, &Error{
			Kind: TargetNotFound,
			Message: fmt.Sprintf("No %ss in that group are eligible to %s.",
				t.Label(), req.Kind),
		}
	}
	return targets, nil
}

// checkTransition enforces the start/stop state rules: start requires a
// stopped or disabled target, stop requires a running one. A violation is
// not fatal; it is surfaced as "already running/stopped".
func checkTransition(kind intent.Kind, ent flow.Entity) error {
	if transitionAllowed(kind, ent.State) {
		return nil
	}
	verb := "start"
	state := "running"
	if kind == intent.KindStop {
		verb = "stop"
		state = "stopped"
	}
	return &Error{
		Kind: InvalidStateTransition,
		Message: fmt.Sprintf("%q is already %s, so there is nothing to %s.",
			ent.Name, state, verb),
	}
}

func transitionAllowed(kind intent.Kind, state flow.State) bool {
	switch kind {
	case intent.KindStart:
		return state == flow.StateStopped || state == flow.StateDisabled
	case intent.KindStop:
		return state == flow.StateRunning
	default:
		return true
	}
}

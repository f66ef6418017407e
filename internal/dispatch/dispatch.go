// Package dispatch turns a validated operation into the ordered sequence of
// remote calls that realizes it, applying the retry policy and recording the
// outcome of every step.
//
// Read-only operations are retried on any transient failure. Mutating calls
// are retried only when the failed request provably never reached the remote,
// so a retry can never double-apply an effect. A timeout on a mutating call
// is therefore terminal: the operation may or may not have been applied, and
// the result says so instead of guessing.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"flowchat/common/retry"
	"flowchat/internal/cache"
	"flowchat/internal/flow"
	"flowchat/internal/intent"
	"flowchat/internal/nifi"
	"flowchat/internal/validate"
)

// Remote is the slice of the NiFi client the dispatcher needs. *nifi.Client
// satisfies it; tests substitute a stub.
type Remote interface {
	FetchScope(ctx context.Context, scope string) ([]flow.Entity, error)
	Search(ctx context.Context, term, scope string) ([]flow.Entity, error)
	Templates(ctx context.Context) ([]flow.Entity, error)
	Status(ctx context.Context, groupID string) (*nifi.GroupStatus, error)
	EntityState(ctx context.Context, ent flow.Entity) (flow.State, error)
	ProcessorTypes(ctx context.Context, filter string) ([]nifi.TypeDoc, error)
	CreateProcessGroup(ctx context.Context, parentID, name string) (flow.Entity, error)
	CreateProcessor(ctx context.Context, parentID, name, className string) (flow.Entity, error)
	CreateConnection(ctx context.Context, parentID string, src, dst flow.Entity) (flow.Entity, error)
	Remove(ctx context.Context, ent flow.Entity) error
	SetRunState(ctx context.Context, ent flow.Entity, state flow.State) error
}

// TargetResult records the outcome for one entity of a multi-target
// operation. Failures here are per-target: one target failing does not stop
// the others.
type TargetResult struct {
	Target flow.Entity
	// State is the confirmed run state after the transition, when the
	// confirmation poll succeeded.
	State flow.State
	Err   error
}

// Result is the dispatch outcome handed to the formatter.
type Result struct {
	Kind intent.Kind
	// Entities carries the payload of list, show and search operations.
	Entities []flow.Entity
	// Status carries the payload of status operations.
	Status *nifi.GroupStatus
	// Docs carries the payload of documentation lookups.
	Docs []nifi.TypeDoc
	// Created is the entity produced by a create operation.
	Created *flow.Entity
	// Targets holds per-entity outcomes for start, stop and delete.
	Targets []TargetResult
	// Stale marks results assembled from cache data that could not be
	// refreshed.
	Stale bool
}

// Failed reports whether every target of a transition failed, or the single
// outcome of a non-target operation was an error.
func (r *Result) Failed() bool {
	if len(r.Targets) == 0 {
		return false
	}
	for _, t := range r.Targets {
		if t.Err == nil {
			return false
		}
	}
	return true
}

// Dispatcher executes validated operations against the remote instance.
type Dispatcher struct {
	remote Remote
	cache  *cache.Cache
	// idempotent is the retry policy for read-only calls, mutating the one
	// for state-changing calls. They differ only in their ShouldRetry class.
	idempotent retry.Config
	mutating   retry.Config
	// confirmWait is the pause before the post-transition state poll, giving
	// NiFi time to apply the transition.
	confirmWait time.Duration
}

// New creates a Dispatcher. maxAttempts bounds every retried call, including
// the first attempt.
func New(remote Remote, c *cache.Cache, maxAttempts int) *Dispatcher {
	base := retry.DefaultConfig.WithAttempts(maxAttempts)
	idem := base
	idem.ShouldRetry = nifi.Retryable
	mut := base
	mut.ShouldRetry = nifi.RetrySafe
	return &Dispatcher{
		remote:      remote,
		cache:       c,
		idempotent:  idem,
		mutating:    mut,
		confirmWait: 500 * time.Millisecond,
	}
}

// Dispatch runs op and returns its result. Remote failures of read-only
// operations come back as errors; per-target failures of transitions are
// embedded in the result instead so partial success stays visible.
func (d *Dispatcher) Dispatch(ctx context.Context, op *validate.Operation) (*Result, error) {
	res := &Result{Kind: op.Kind, Stale: op.Stale}

	var err error
	switch op.Kind {
	case intent.KindList:
		err = d.list(ctx, op, res)
	case intent.KindShow:
		err = d.show(ctx, op, res)
	case intent.KindStatus:
		err = d.status(ctx, op, res)
	case intent.KindSearch:
		err = d.search(ctx, op, res)
	case intent.KindDocs:
		err = d.docs(ctx, op, res)
	case intent.KindCreate:
		err = d.create(ctx, op, res)
	case intent.KindDelete:
		d.remove(ctx, op, res)
	case intent.KindStart:
		d.transition(ctx, op, res, flow.StateRunning)
	case intent.KindStop:
		d.transition(ctx, op, res, flow.StateStopped)
	default:
		err = fmt.Errorf("dispatch: no executor for kind %q", op.Kind)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// list refreshes the scope and returns its direct children, falling back to
// stale cache data when the refresh fails but something usable is cached.
func (d *Dispatcher) list(ctx context.Context, op *validate.Operation, res *Result) error {
	refreshErr := retry.Do(ctx, d.idempotent, func() error {
		return d.cache.Refresh(ctx, op.Scope)
	})

	res.Entities = d.cache.EntitiesIn(op.Scope, op.TargetType)
	if op.TargetType == flow.TypeTemplate {
		return d.listTemplates(ctx, op, res)
	}
	if refreshErr != nil {
		if len(res.Entities) == 0 {
			return refreshErr
		}
		res.Stale = true
	}
	return nil
}

// listTemplates fetches templates directly; they live outside the group
// hierarchy and are not cached.
func (d *Dispatcher) listTemplates(ctx context.Context, op *validate.Operation, res *Result) error {
	var templates []flow.Entity
	err := retry.Do(ctx, d.idempotent, func() error {
		var fetchErr error
		templates, fetchErr = d.remote.Templates(ctx)
		return fetchErr
	})
	if err != nil {
		return err
	}
	res.Entities = templates
	return nil
}

func (d *Dispatcher) show(ctx context.Context, op *validate.Operation, res *Result) error {
	res.Entities = op.Targets
	return nil
}

func (d *Dispatcher) status(ctx context.Context, op *validate.Operation, res *Result) error {
	groupID := op.Scope
	if len(op.Targets) == 1 && op.Targets[0].Type == flow.TypeProcessGroup {
		groupID = op.Targets[0].ID
	}
	return retry.Do(ctx, d.idempotent, func() error {
		status, err := d.remote.Status(ctx, groupID)
		if err != nil {
			return err
		}
		res.Status = status
		return nil
	})
}

func (d *Dispatcher) search(ctx context.Context, op *validate.Operation, res *Result) error {
	return retry.Do(ctx, d.idempotent, func() error {
		matches, err := d.remote.Search(ctx, op.Params["term"], op.Scope)
		if err != nil {
			return err
		}
		res.Entities = matches
		return nil
	})
}

func (d *Dispatcher) docs(ctx context.Context, op *validate.Operation, res *Result) error {
	return retry.Do(ctx, d.idempotent, func() error {
		docs, err := d.remote.ProcessorTypes(ctx, op.Params["filter"])
		if err != nil {
			return err
		}
		res.Docs = docs
		return nil
	})
}

// create issues the creation call and invalidates the parent scope so the
// next lookup sees the new entity. The call is retried only while the
// request never left the process.
func (d *Dispatcher) create(ctx context.Context, op *validate.Operation, res *Result) error {
	name := op.Params["name"]

	var created flow.Entity
	err := retry.Do(ctx, d.mutating, func() error {
		var createErr error
		switch op.TargetType {
		case flow.TypeProcessor:
			created, createErr = d.remote.CreateProcessor(ctx, op.Scope, name, op.Params["class"])
		case flow.TypeConnection:
			created, createErr = d.remote.CreateConnection(ctx, op.Scope, op.Targets[0], op.Targets[1])
		default:
			created, createErr = d.remote.CreateProcessGroup(ctx, op.Scope, name)
		}
		return createErr
	})
	if err != nil {
		return err
	}

	d.cache.Invalidate(op.Scope)
	slog.Info("dispatch: created entity",
		"type", created.Type, "name", created.Name, "id", created.ID)
	res.Created = &created
	return nil
}

// remove deletes each target independently and records per-target outcomes.
func (d *Dispatcher) remove(ctx context.Context, op *validate.Operation, res *Result) {
	mutated := false
	for _, target := range op.Targets {
		err := retry.Do(ctx, d.mutating, func() error {
			return d.remote.Remove(ctx, target)
		})
		if err == nil {
			mutated = true
		}
		res.Targets = append(res.Targets, TargetResult{Target: target, Err: err})
	}
	if mutated {
		d.cache.Invalidate(op.Scope)
	}
}

// transition moves every target to the desired run state, one independent
// two-step sequence per target: apply the transition, then poll once for the
// resulting state. A failed step ends that target's sequence only; the
// remaining targets still run.
func (d *Dispatcher) transition(ctx context.Context, op *validate.Operation, res *Result, want flow.State) {
	mutated := false
	for _, target := range op.Targets {
		tr := TargetResult{Target: target, State: flow.StateUnknown}

		err := retry.Do(ctx, d.mutating, func() error {
			return d.remote.SetRunState(ctx, target, want)
		})
		if err != nil {
			slog.Warn("dispatch: transition failed",
				"target", target.Name, "id", target.ID, "want", want, "err", err)
			tr.Err = err
			res.Targets = append(res.Targets, tr)
			continue
		}
		mutated = true

		tr.State = d.confirmState(ctx, target, want)
		res.Targets = append(res.Targets, tr)
	}
	if mutated {
		d.cache.Invalidate(op.Scope)
	}
}

// confirmState polls the target once after a short settle pause. The poll is
// best-effort: a failure leaves the state unknown without failing the
// already-applied transition.
func (d *Dispatcher) confirmState(ctx context.Context, target flow.Entity, want flow.State) flow.State {
	select {
	case <-ctx.Done():
		return flow.StateUnknown
	case <-time.After(d.confirmWait):
	}

	var state flow.State
	err := retry.Do(ctx, d.idempotent, func() error {
		var pollErr error
		state, pollErr = d.remote.EntityState(ctx, target)
		return pollErr
	})
	if err != nil {
		slog.Warn("dispatch: state confirmation failed",
			"target", target.Name, "id", target.ID, "err", err)
		return flow.StateUnknown
	}
	if state != want {
		slog.Info("dispatch: state not yet settled",
			"target", target.Name, "want", want, "got", state)
	}
	return state
}

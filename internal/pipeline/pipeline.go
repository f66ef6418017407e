// Package pipeline runs one chat utterance through the full ask cycle:
// intent extraction, validation against cached remote state, dispatch, audit
// and reply formatting.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"flowchat/common/trace"
	"flowchat/internal/dispatch"
	"flowchat/internal/format"
	"flowchat/internal/intent"
	"flowchat/internal/observability"
	"flowchat/internal/store"
	"flowchat/internal/validate"
)

// Reply is the outcome of one ask cycle.
type Reply struct {
	// Text is the rendered chat reply, markdown-ish.
	Text string
	// Kind is the extracted operation kind, for callers that surface it.
	Kind intent.Kind
	// TraceID correlates the reply with log lines and the audit trail.
	TraceID string
}

// Pipeline wires the ask stages together. One instance serves every
// concurrent session.
type Pipeline struct {
	validator  *validate.Validator
	dispatcher *dispatch.Dispatcher
	// audit may be nil when auditing is disabled.
	audit *store.Store
}

// New assembles a Pipeline.
func New(v *validate.Validator, d *dispatch.Dispatcher, audit *store.Store) *Pipeline {
	return &Pipeline{validator: v, dispatcher: d, audit: audit}
}

// Ask processes one utterance and always returns a reply: every failure mode
// renders as user-facing text rather than an error.
func (p *Pipeline) Ask(ctx context.Context, utterance, sessionID string) Reply {
	traceID := trace.GenerateID()
	ctx = trace.WithTraceID(ctx, traceID)

	req := intent.Extract(utterance)
	log := observability.WithTrace(ctx).With("session_id", sessionID, "kind", req.Kind)
	log.Info("ask: received utterance", "length", len(utterance))

	if req.Kind == intent.KindUnknown {
		p.writeAudit(ctx, traceID, sessionID, req.Kind, "", "rejected", "unresolved intent")
		return Reply{Text: format.Unknown(utterance, traceID), Kind: req.Kind, TraceID: traceID}
	}

	op, err := p.validator.Validate(ctx, req)
	if err != nil {
		var verr *validate.Error
		if errors.As(err, &verr) {
			log.Info("ask: validation rejected request", "reason", verr.Kind)
			p.writeAudit(ctx, traceID, sessionID, req.Kind, req.Target, "rejected", string(verr.Kind))
			return Reply{Text: format.ValidationError(verr, traceID), Kind: req.Kind, TraceID: traceID}
		}
		// Target resolution could not reach NiFi and nothing was cached.
		log.Warn("ask: validation failed against remote", "err", err)
		p.writeAudit(ctx, traceID, sessionID, req.Kind, req.Target, "error", err.Error())
		return Reply{Text: format.RemoteFailure(err, traceID), Kind: req.Kind, TraceID: traceID}
	}

	res, err := p.dispatcher.Dispatch(ctx, op)
	if err != nil {
		log.Warn("ask: dispatch failed", "err", err)
		p.writeAudit(ctx, traceID, sessionID, req.Kind, targetLabel(op), "error", err.Error())
		return Reply{Text: format.RemoteFailure(err, traceID), Kind: req.Kind, TraceID: traceID}
	}

	result := "success"
	if res.Failed() {
		result = "error"
	}
	p.writeAudit(ctx, traceID, sessionID, req.Kind, targetLabel(op), result, "")
	log.Info("ask: dispatched", "result", result, "stale", res.Stale)

	return Reply{Text: format.Result(res, traceID), Kind: req.Kind, TraceID: traceID}
}

// writeAudit records the cycle outcome; audit failures are logged, never
// surfaced to the user.
func (p *Pipeline) writeAudit(ctx context.Context, traceID, sessionID string, kind intent.Kind, target, result, errMsg string) {
	if p.audit == nil {
		return
	}
	if err := p.audit.WriteAudit(ctx, traceID, sessionID, string(kind), target, result, errMsg); err != nil {
		slog.Error("ask: audit write failed", "trace_id", traceID, "err", err)
	}
}

// targetLabel summarizes an operation's targets for the audit record.
func targetLabel(op *validate.Operation) string {
	switch len(op.Targets) {
	case 0:
		if name := op.Params["name"]; name != "" {
			return name
		}
		return op.Params["term"]
	case 1:
		return op.Targets[0].Name
	default:
		names := make([]string, 0, len(op.Targets))
		for _, t := range op.Targets {
			names = append(names, t.Name)
		}
		return strings.Join(names, ",")
	}
}

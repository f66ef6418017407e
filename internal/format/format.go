// Package format renders operation results and failures as chat replies.
//
// Formatting is a pure projection of its inputs: no remote calls, no cache
// access, no state. The same result always renders to the same text.
package format

import (
	"fmt"
	"strings"

	"flowchat/internal/dispatch"
	"flowchat/internal/flow"
	"flowchat/internal/intent"
	"flowchat/internal/nifi"
	"flowchat/internal/validate"
)

// maxDocEntries caps the documentation listing; NiFi ships hundreds of
// processor types and an unfiltered dump would drown the chat.
const maxDocEntries = 25

// stateEmoji maps run states to the status markers used in replies.
var stateEmoji = map[flow.State]string{
	flow.StateRunning:  "✅",
	flow.StateStopped:  "⏹️",
	flow.StateInvalid:  "❌",
	flow.StateDisabled: "🚫",
	flow.StateUnknown:  "❓",
}

// Result renders a successful dispatch result.
func Result(res *dispatch.Result, traceID string) string {
	var sb strings.Builder

	switch res.Kind {
	case intent.KindList, intent.KindSearch:
		writeEntityTable(&sb, res)
	case intent.KindShow:
		writeEntityDetails(&sb, res)
	case intent.KindStatus:
		writeStatus(&sb, res.Status)
	case intent.KindDocs:
		writeDocs(&sb, res.Docs)
	case intent.KindCreate:
		writeCreated(&sb, res.Created)
	case intent.KindStart, intent.KindStop, intent.KindDelete:
		writeTargetOutcomes(&sb, res)
	default:
		sb.WriteString("Done.")
	}

	if res.Stale {
		sb.WriteString("\n\n⚠️ NiFi was unreachable, so this reflects the last known state and may be out of date.")
	}
	sb.WriteString(fmt.Sprintf("\n\n(trace: %s)", traceID))
	return sb.String()
}

func writeEntityTable(sb *strings.Builder, res *dispatch.Result) {
	label := "components"
	if res.Kind == intent.KindSearch {
		label = "matches"
	}
	if len(res.Entities) == 0 {
		sb.WriteString(fmt.Sprintf("No %s found.", label))
		return
	}

	sb.WriteString(fmt.Sprintf("**%s (%d)**\n\n", title(label), len(res.Entities)))
	sb.WriteString("| Name | Type | State | ID |\n")
	sb.WriteString("|------|------|-------|----|\n")
	for _, e := range res.Entities {
		state := "-"
		if e.State != flow.StateUnknown {
			state = fmt.Sprintf("%s %s", stateEmoji[e.State], strings.ToLower(string(e.State)))
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | `%s` |\n",
			e.Name, e.Type.Label(), state, e.ID))
	}
}

func writeEntityDetails(sb *strings.Builder, res *dispatch.Result) {
	if len(res.Entities) == 0 {
		sb.WriteString("Nothing to show.")
		return
	}
	e := res.Entities[0]
	sb.WriteString(fmt.Sprintf("**%s: %s**\n\n", title(e.Type.Label()), e.Name))
	sb.WriteString(fmt.Sprintf("ID:     `%s`\n", e.ID))
	sb.WriteString(fmt.Sprintf("Type:   %s\n", e.Type.Label()))
	if e.State != flow.StateUnknown {
		sb.WriteString(fmt.Sprintf("State:  %s %s\n", stateEmoji[e.State], strings.ToLower(string(e.State))))
	}
	if e.ClassName != "" {
		sb.WriteString(fmt.Sprintf("Class:  %s\n", e.ClassName))
	}
	if e.ParentID != "" {
		sb.WriteString(fmt.Sprintf("Group:  `%s`\n", e.ParentID))
	}
}

func writeStatus(sb *strings.Builder, st *nifi.GroupStatus) {
	if st == nil {
		sb.WriteString("No status available.")
		return
	}
	name := st.Name
	if name == "" {
		name = st.ID
	}
	sb.WriteString(fmt.Sprintf("**Status: %s**\n\n", name))
	sb.WriteString(fmt.Sprintf("✅ Running:  %d\n", st.Running))
	sb.WriteString(fmt.Sprintf("⏹️ Stopped:  %d\n", st.Stopped))
	if st.Invalid > 0 {
		sb.WriteString(fmt.Sprintf("❌ Invalid:  %d\n", st.Invalid))
	}
	if st.Disabled > 0 {
		sb.WriteString(fmt.Sprintf("🚫 Disabled: %d\n", st.Disabled))
	}
	if st.Queued != "" {
		sb.WriteString(fmt.Sprintf("📦 Queued:   %s\n", st.Queued))
	}
	sb.WriteString(fmt.Sprintf("⬇️ In:       %d bytes\n", st.BytesIn))
	sb.WriteString(fmt.Sprintf("⬆️ Out:      %d bytes\n", st.BytesOut))
}

func writeDocs(sb *strings.Builder, docs []nifi.TypeDoc) {
	if len(docs) == 0 {
		sb.WriteString("No matching processor types found.")
		return
	}
	sb.WriteString(fmt.Sprintf("**Processor types (%d)**\n\n", len(docs)))
	shown := docs
	if len(shown) > maxDocEntries {
		shown = shown[:maxDocEntries]
	}
	for _, d := range shown {
		sb.WriteString(fmt.Sprintf("**%s**\n", d.ShortName()))
		if d.Description != "" {
			sb.WriteString(fmt.Sprintf("  %s\n", oneLine(d.Description)))
		}
		if len(d.Tags) > 0 {
			sb.WriteString(fmt.Sprintf("  Tags: %s\n", strings.Join(d.Tags, ", ")))
		}
		sb.WriteString("\n")
	}
	if len(docs) > maxDocEntries {
		sb.WriteString(fmt.Sprintf("…and %d more. Narrow it down, e.g. \"docs for kafka\".\n", len(docs)-maxDocEntries))
	}
}

func writeCreated(sb *strings.Builder, created *flow.Entity) {
	if created == nil {
		sb.WriteString("Created.")
		return
	}
	sb.WriteString(fmt.Sprintf("✅ Created %s **%s** (`%s`).",
		created.Type.Label(), created.Name, created.ID))
}

// writeTargetOutcomes lists the per-target results of a transition or
// delete. Partial failure renders both the successes and the failures.
func writeTargetOutcomes(sb *strings.Builder, res *dispatch.Result) {
	verb := map[intent.Kind]string{
		intent.KindStart:  "Started",
		intent.KindStop:   "Stopped",
		intent.KindDelete: "Deleted",
	}[res.Kind]

	var ok, failed []dispatch.TargetResult
	for _, t := range res.Targets {
		if t.Err == nil {
			ok = append(ok, t)
		} else {
			failed = append(failed, t)
		}
	}

	switch {
	case len(failed) == 0 && len(ok) == 1:
		t := ok[0]
		sb.WriteString(fmt.Sprintf("✅ %s %s **%s**.", verb, t.Target.Type.Label(), t.Target.Name))
		if res.Kind != intent.KindDelete && t.State != flow.StateUnknown {
			sb.WriteString(fmt.Sprintf(" Confirmed state: %s.", strings.ToLower(string(t.State))))
		}
		return
	case len(ok) == 0 && len(failed) == 1:
		t := failed[0]
		sb.WriteString(fmt.Sprintf("❌ Could not %s %s **%s**: %s",
			strings.ToLower(verb), t.Target.Type.Label(), t.Target.Name, remoteReason(t.Err)))
		return
	}

	sb.WriteString(fmt.Sprintf("**%s %d of %d**\n\n", verb, len(ok), len(res.Targets)))
	for _, t := range ok {
		sb.WriteString(fmt.Sprintf("✅ %s\n", t.Target.Name))
	}
	for _, t := range failed {
		sb.WriteString(fmt.Sprintf("❌ %s: %s\n", t.Target.Name, remoteReason(t.Err)))
	}
}

// ValidationError renders a validation failure as actionable guidance.
func ValidationError(verr *validate.Error, traceID string) string {
	var sb strings.Builder
	sb.WriteString(verr.Message)

	switch verr.Kind {
	case validate.AmbiguousTarget:
		sb.WriteString("\n")
		for _, c := range verr.Candidates {
			sb.WriteString(fmt.Sprintf("\n- **%s** (%s, `%s`)", c.Name, c.Type.Label(), c.ID))
		}
		sb.WriteString("\n\nRepeat the request with the ID or a more specific name.")
	case validate.TargetNotFound:
		sb.WriteString(" Try \"list process groups\" to see what exists.")
	case validate.UnresolvedIntent:
		sb.WriteString("\n\n" + Capabilities())
	}

	sb.WriteString(fmt.Sprintf("\n\n(trace: %s)", traceID))
	return sb.String()
}

// RemoteFailure renders an operation that failed against NiFi, naming
// whether the effect may have been applied.
func RemoteFailure(err error, traceID string) string {
	var sb strings.Builder
	sb.WriteString("❌ ")
	sb.WriteString(remoteReason(err))
	sb.WriteString(fmt.Sprintf("\n\n(trace: %s)", traceID))
	return sb.String()
}

// Unknown renders the reply for an utterance no rule matched.
func Unknown(utterance, traceID string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("I did not understand %q.\n\n", strings.TrimSpace(utterance)))
	sb.WriteString(Capabilities())
	sb.WriteString(fmt.Sprintf("\n\n(trace: %s)", traceID))
	return sb.String()
}

// Capabilities returns the short usage summary shown on unrecognized input.
func Capabilities() string {
	return strings.Join([]string{
		"Here is what I can do:",
		"- `list process groups` / `list processors in the Ingest group`",
		"- `show the GenerateData processor`",
		"- `start` / `stop` a processor or process group, or `stop all processors`",
		"- `create a process group named Staging`",
		"- `delete the Scratch process group`",
		"- `status of the root group`",
		"- `search for kafka`",
		"- `docs for ConsumeKafka`",
	}, "\n")
}

// oneLine collapses a multi-line description into a single line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// title uppercases the first letter of s.
func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// remoteReason translates a remote error into user-facing language. The
// timeout case calls out that the change may still have been applied.
func remoteReason(err error) string {
	re, ok := nifi.AsRemoteError(err)
	if !ok {
		return err.Error()
	}
	switch re.Kind {
	case nifi.ErrTimeout:
		return "NiFi did not answer in time. The change may still have been applied; check with \"status\" before retrying."
	case nifi.ErrUnavailable:
		return "NiFi is unreachable right now. Please try again in a moment."
	case nifi.ErrRejected:
		if re.Message != "" {
			return fmt.Sprintf("NiFi rejected the request: %s", re.Message)
		}
		return fmt.Sprintf("NiFi rejected the request (HTTP %d).", re.Status)
	default:
		return re.Error()
	}
}

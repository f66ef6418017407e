package nifi

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"flowchat/internal/flow"
)

// FetchScope returns every process group, processor and connection under the
// given process group, recursively, flattened into a single list. An empty
// scope means the root group. NiFi nests children one level per request, so
// the walk issues one listing call per group encountered.
func (c *Client) FetchScope(ctx context.Context, scope string) ([]flow.Entity, error) {
	if scope == "" {
		scope = flow.RootGroupID
	}
	var out []flow.Entity
	if err := c.walkGroup(ctx, scope, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) walkGroup(ctx context.Context, groupID string, out *[]flow.Entity) error {
	res, err := c.get(ctx, "/flow/process-groups/"+groupID)
	if err != nil {
		return fmt.Errorf("list group %s: %w", groupID, err)
	}

	flowNode := res.Get("processGroupFlow.flow")

	var children []string
	flowNode.Get("processGroups").ForEach(func(_, pg gjson.Result) bool {
		id := pg.Get("id").String()
		*out = append(*out, flow.Entity{
			ID:       id,
			Type:     flow.TypeProcessGroup,
			Name:     firstString(pg, "component.name", "status.name"),
			ParentID: groupID,
			State:    groupState(pg),
		})
		children = append(children, id)
		return true
	})

	flowNode.Get("processors").ForEach(func(_, proc gjson.Result) bool {
		*out = append(*out, flow.Entity{
			ID:        proc.Get("id").String(),
			Type:      flow.TypeProcessor,
			Name:      firstString(proc, "component.name", "status.name"),
			ParentID:  groupID,
			State:     flow.ParseState(firstString(proc, "component.state", "status.runStatus")),
			ClassName: proc.Get("component.type").String(),
		})
		return true
	})

	flowNode.Get("connections").ForEach(func(_, conn gjson.Result) bool {
		*out = append(*out, flow.Entity{
			ID:       conn.Get("id").String(),
			Type:     flow.TypeConnection,
			Name:     connectionName(conn),
			ParentID: groupID,
			State:    flow.StateUnknown,
		})
		return true
	})

	for _, child := range children {
		if err := c.walkGroup(ctx, child, out); err != nil {
			return err
		}
	}
	return nil
}

// Templates lists all flow templates registered on the instance.
func (c *Client) Templates(ctx context.Context) ([]flow.Entity, error) {
	res, err := c.get(ctx, "/flow/templates")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	var out []flow.Entity
	res.Get("templates").ForEach(func(_, t gjson.Result) bool {
		out = append(out, flow.Entity{
			ID:       firstString(t, "id", "template.id"),
			Type:     flow.TypeTemplate,
			Name:     t.Get("template.name").String(),
			ParentID: t.Get("template.groupId").String(),
			State:    flow.StateUnknown,
		})
		return true
	})
	return out, nil
}

// Search walks the flow under scope and returns entities whose name or
// processor class contains term (case-insensitive). Templates are included
// when they match as well.
func (c *Client) Search(ctx context.Context, term, scope string) ([]flow.Entity, error) {
	ents, err := c.FetchScope(ctx, scope)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(term)

	var matches []flow.Entity
	for _, e := range ents {
		if strings.Contains(strings.ToLower(e.Name), needle) ||
			strings.Contains(strings.ToLower(e.ClassName), needle) {
			matches = append(matches, e)
		}
	}

	templates, err := c.Templates(ctx)
	if err != nil {
		// Template listing is an enrichment here; a failure should not sink
		// an otherwise successful search.
		return matches, nil
	}
	for _, t := range templates {
		if strings.Contains(strings.ToLower(t.Name), needle) {
			matches = append(matches, t)
		}
	}
	return matches, nil
}

// GroupStatus aggregates the status counters NiFi reports for one process
// group.
type GroupStatus struct {
	ID          string
	Name        string
	Running     int64
	Stopped     int64
	Invalid     int64
	Disabled    int64
	Queued      string
	QueuedCount int64
	BytesIn     int64
	BytesOut    int64
}

// Status fetches the recursive status snapshot of a process group.
func (c *Client) Status(ctx context.Context, groupID string) (*GroupStatus, error) {
	if groupID == "" {
		groupID = flow.RootGroupID
	}
	res, err := c.get(ctx, "/flow/process-groups/"+groupID+"/status?recursive=true")
	if err != nil {
		return nil, fmt.Errorf("group status %s: %w", groupID, err)
	}

	status := res.Get("processGroupStatus")
	// Newer NiFi versions nest the counters in aggregateSnapshot; older ones
	// report them flat on the status object.
	snap := status.Get("aggregateSnapshot")
	if !snap.Exists() {
		snap = status
	}

	return &GroupStatus{
		ID:          status.Get("id").String(),
		Name:        firstString(status, "name", "aggregateSnapshot.name"),
		Running:     snap.Get("runningCount").Int(),
		Stopped:     snap.Get("stoppedCount").Int(),
		Invalid:     snap.Get("invalidCount").Int(),
		Disabled:    snap.Get("disabledCount").Int(),
		Queued:      snap.Get("queued").String(),
		QueuedCount: snap.Get("flowFilesQueued").Int(),
		BytesIn:     snap.Get("bytesIn").Int(),
		BytesOut:    snap.Get("bytesOut").Int(),
	}, nil
}

// EntityState fetches the current run state of a single entity. Used by the
// dispatcher's confirmation poll after a state transition.
func (c *Client) EntityState(ctx context.Context, ent flow.Entity) (flow.State, error) {
	switch ent.Type {
	case flow.TypeProcessor:
		res, err := c.get(ctx, "/processors/"+ent.ID)
		if err != nil {
			return flow.StateUnknown, fmt.Errorf("processor state %s: %w", ent.ID, err)
		}
		return flow.ParseState(res.Get("component.state").String()), nil

	case flow.TypeProcessGroup:
		status, err := c.Status(ctx, ent.ID)
		if err != nil {
			return flow.StateUnknown, err
		}
		if status.Running > 0 {
			return flow.StateRunning, nil
		}
		return flow.StateStopped, nil

	default:
		return flow.StateUnknown, nil
	}
}

// firstString returns the first existing path in res, or "".
func firstString(res gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := res.Get(p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// groupState derives a coarse run state for a process group from its
// component counters: a group with anything running counts as running.
func groupState(pg gjson.Result) flow.State {
	if pg.Get("runningCount").Int() > 0 {
		return flow.StateRunning
	}
	if pg.Get("stoppedCount").Int() > 0 || pg.Get("disabledCount").Int() > 0 {
		return flow.StateStopped
	}
	return flow.StateStopped
}

// connectionName builds a readable label for a connection, which often has
// no name of its own, from its endpoints.
func connectionName(conn gjson.Result) string {
	if name := conn.Get("component.name").String(); name != "" {
		return name
	}
	src := conn.Get("component.source.name").String()
	dst := conn.Get("component.destination.name").String()
	if src == "" && dst == "" {
		return conn.Get("id").String()
	}
	return src + " -> " + dst
}

package nifi

import (
	"context"
	"fmt"

	"flowchat/internal/flow"
)

// revisionBody is the optimistic-lock envelope NiFi requires on mutations.
type revisionBody struct {
	Version int64 `json:"version"`
}

// CreateProcessGroup creates a new, empty process group under parentID and
// returns the created entity.
func (c *Client) CreateProcessGroup(ctx context.Context, parentID, name string) (flow.Entity, error) {
	if parentID == "" {
		parentID = flow.RootGroupID
	}
	body := map[string]any{
		"revision": revisionBody{Version: 0},
		"component": map[string]any{
			"name":     name,
			"position": map[string]int{"x": 100, "y": 100},
		},
	}
	res, err := c.post(ctx, "/process-groups/"+parentID+"/process-groups", body)
	if err != nil {
		return flow.Entity{}, fmt.Errorf("create process group %q: %w", name, err)
	}
	return flow.Entity{
		ID:       res.Get("id").String(),
		Type:     flow.TypeProcessGroup,
		Name:     firstString(res, "component.name"),
		ParentID: parentID,
		State:    flow.StateStopped,
	}, nil
}

// CreateProcessor creates a processor of the given Java class under
// parentID. className must be a fully qualified processor type as listed by
// ProcessorTypes.
func (c *Client) CreateProcessor(ctx context.Context, parentID, name, className string) (flow.Entity, error) {
	if parentID == "" {
		parentID = flow.RootGroupID
	}
	body := map[string]any{
		"revision": revisionBody{Version: 0},
		"component": map[string]any{
			"type":     className,
			"name":     name,
			"position": map[string]int{"x": 100, "y": 100},
		},
	}
	res, err := c.post(ctx, "/process-groups/"+parentID+"/processors", body)
	if err != nil {
		return flow.Entity{}, fmt.Errorf("create processor %q: %w", name, err)
	}
	return flow.Entity{
		ID:        res.Get("id").String(),
		Type:      flow.TypeProcessor,
		Name:      firstString(res, "component.name"),
		ParentID:  parentID,
		State:     flow.ParseState(res.Get("component.state").String()),
		ClassName: className,
	}, nil
}

// CreateConnection wires src to dst inside parentID. Both endpoints must be
// processors in the same group; NiFi routes the default relationships.
func (c *Client) CreateConnection(ctx context.Context, parentID string, src, dst flow.Entity) (flow.Entity, error) {
	if parentID == "" {
		parentID = flow.RootGroupID
	}
	body := map[string]any{
		"revision": revisionBody{Version: 0},
		"component": map[string]any{
			"source": map[string]any{
				"id":      src.ID,
				"type":    "PROCESSOR",
				"groupId": src.ParentID,
			},
			"destination": map[string]any{
				"id":      dst.ID,
				"type":    "PROCESSOR",
				"groupId": dst.ParentID,
			},
		},
	}
	res, err := c.post(ctx, "/process-groups/"+parentID+"/connections", body)
	if err != nil {
		return flow.Entity{}, fmt.Errorf("connect %q to %q: %w", src.Name, dst.Name, err)
	}
	return flow.Entity{
		ID:       res.Get("id").String(),
		Type:     flow.TypeConnection,
		Name:     src.Name + " -> " + dst.Name,
		ParentID: parentID,
		State:    flow.StateUnknown,
	}, nil
}

// Remove deletes an entity. NiFi requires the current revision version as a
// query parameter, so a fresh read precedes the delete.
func (c *Client) Remove(ctx context.Context, ent flow.Entity) error {
	if ent.Type == flow.TypeTemplate {
		if _, err := c.delete(ctx, "/templates/"+ent.ID); err != nil {
			return fmt.Errorf("delete template %s: %w", ent.ID, err)
		}
		return nil
	}

	endpoint, err := entityEndpoint(ent.Type)
	if err != nil {
		return err
	}
	current, err := c.get(ctx, endpoint+"/"+ent.ID)
	if err != nil {
		return fmt.Errorf("read revision of %s: %w", ent.ID, err)
	}
	version := current.Get("revision.version").Int()

	if _, err := c.delete(ctx, fmt.Sprintf("%s/%s?version=%d", endpoint, ent.ID, version)); err != nil {
		return fmt.Errorf("delete %s %s: %w", ent.Type.Label(), ent.ID, err)
	}
	return nil
}

// SetRunState transitions an entity to the requested run state.
//
// Processors are updated through a revision-checked PUT on the component.
// Process groups use the bulk flow endpoint, which transitions every
// component inside the group and needs no revision.
func (c *Client) SetRunState(ctx context.Context, ent flow.Entity, state flow.State) error {
	switch ent.Type {
	case flow.TypeProcessor:
		current, err := c.get(ctx, "/processors/"+ent.ID)
		if err != nil {
			return fmt.Errorf("read revision of %s: %w", ent.ID, err)
		}
		body := map[string]any{
			"revision": revisionBody{Version: current.Get("revision.version").Int()},
			"component": map[string]any{
				"id":    ent.ID,
				"state": string(state),
			},
		}
		if _, err := c.put(ctx, "/processors/"+ent.ID, body); err != nil {
			return fmt.Errorf("set processor %s to %s: %w", ent.ID, state, err)
		}
		return nil

	case flow.TypeProcessGroup:
		body := map[string]any{
			"id":    ent.ID,
			"state": string(state),
		}
		if _, err := c.put(ctx, "/flow/process-groups/"+ent.ID, body); err != nil {
			return fmt.Errorf("set group %s to %s: %w", ent.ID, state, err)
		}
		return nil

	default:
		return fmt.Errorf("%s does not support run-state transitions", ent.Type.Label())
	}
}

func entityEndpoint(t flow.EntityType) (string, error) {
	switch t {
	case flow.TypeProcessGroup:
		return "/process-groups", nil
	case flow.TypeProcessor:
		return "/processors", nil
	case flow.TypeConnection:
		return "/connections", nil
	default:
		return "", fmt.Errorf("no endpoint for entity type %q", t)
	}
}

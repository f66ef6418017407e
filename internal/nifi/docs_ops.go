package nifi

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// TypeDoc describes one installed processor type, as reported by the
// component documentation endpoint.
type TypeDoc struct {
	// Type is the fully qualified Java class name.
	Type string
	// Description is the usage summary shipped with the component bundle.
	Description string
	// Tags are the searchable keywords attached to the type.
	Tags []string
	// Bundle identifies the NAR the type ships in ("group:artifact:version").
	Bundle string
}

// ShortName returns the class name without its package prefix.
func (d TypeDoc) ShortName() string {
	if i := strings.LastIndex(d.Type, "."); i >= 0 {
		return d.Type[i+1:]
	}
	return d.Type
}

// ProcessorTypes lists the installed processor types, optionally filtered by
// a case-insensitive substring match on class name, tags or description.
func (c *Client) ProcessorTypes(ctx context.Context, filter string) ([]TypeDoc, error) {
	res, err := c.get(ctx, "/flow/processor-types")
	if err != nil {
		return nil, fmt.Errorf("list processor types: %w", err)
	}

	needle := strings.ToLower(filter)
	var out []TypeDoc
	res.Get("processorTypes").ForEach(func(_, pt gjson.Result) bool {
		doc := TypeDoc{
			Type:        pt.Get("type").String(),
			Description: pt.Get("description").String(),
			Bundle: fmt.Sprintf("%s:%s:%s",
				pt.Get("bundle.group").String(),
				pt.Get("bundle.artifact").String(),
				pt.Get("bundle.version").String()),
		}
		pt.Get("tags").ForEach(func(_, tag gjson.Result) bool {
			doc.Tags = append(doc.Tags, tag.String())
			return true
		})
		if needle == "" || docMatches(doc, needle) {
			out = append(out, doc)
		}
		return true
	})
	return out, nil
}

func docMatches(doc TypeDoc, needle string) bool {
	if strings.Contains(strings.ToLower(doc.Type), needle) ||
		strings.Contains(strings.ToLower(doc.Description), needle) {
		return true
	}
	for _, tag := range doc.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

package trace_test

import (
	"context"
	"strings"
	"testing"

	"flowchat/common/trace"
)

func TestGenerateIDFormat(t *testing.T) {
	id := trace.GenerateID()
	if !strings.HasPrefix(id, "t_") {
		t.Errorf("missing prefix: %q", id)
	}
	if len(id) < 10 {
		t.Errorf("id too short: %q", id)
	}
}

func TestGenerateIDUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := trace.GenerateID()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id: %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := trace.WithTraceID(context.Background(), "t_abc123")
	if got := trace.FromContext(ctx); got != "t_abc123" {
		t.Errorf("got %q, want t_abc123", got)
	}
}

func TestFromContextEmpty(t *testing.T) {
	if got := trace.FromContext(context.Background()); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

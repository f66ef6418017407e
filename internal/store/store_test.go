package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"flowchat/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "flowchat-test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWriteAndReadAudit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.WriteAudit(ctx, "t_1", "sess-1", "stop", "GenerateData", "success", ""); err != nil {
		t.Fatalf("WriteAudit: %v", err)
	}
	if err := s.WriteAudit(ctx, "t_2", "sess-1", "create", "Staging", "error", "remote-timeout"); err != nil {
		t.Fatalf("WriteAudit: %v", err)
	}

	entries, err := s.RecentAudit(ctx, 10)
	if err != nil {
		t.Fatalf("RecentAudit: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries: got %d, want 2", len(entries))
	}

	// Newest first.
	if entries[0].TraceID != "t_2" {
		t.Errorf("order: got %q first, want t_2", entries[0].TraceID)
	}
	if entries[0].ErrorMessage.String != "remote-timeout" {
		t.Errorf("error message: got %q", entries[0].ErrorMessage.String)
	}
	if entries[1].Kind != "stop" || entries[1].Target.String != "GenerateData" {
		t.Errorf("entry: got kind=%q target=%q", entries[1].Kind, entries[1].Target.String)
	}
}

func TestWriteAuditOptionalFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.WriteAudit(ctx, "t_3", "sess-2", "list", "", "success", ""); err != nil {
		t.Fatalf("WriteAudit: %v", err)
	}

	entries, err := s.RecentAudit(ctx, 1)
	if err != nil {
		t.Fatalf("RecentAudit: %v", err)
	}
	if entries[0].Target.Valid {
		t.Error("empty target should be stored as NULL")
	}
	if entries[0].ErrorMessage.Valid {
		t.Error("empty error should be stored as NULL")
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowchat-test.db")

	s1, err := store.New(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	s1.Close()

	s2, err := store.New(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	s2.Close()
}

package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"flowchat/internal/cache"
	"flowchat/internal/dispatch"
	"flowchat/internal/flow"
	"flowchat/internal/nifi"
	"flowchat/internal/pipeline"
	"flowchat/internal/server"
	"flowchat/internal/store"
	"flowchat/internal/validate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeRemote answers every read with a single root-level process group and
// accepts every mutation.
type fakeRemote struct{}

func (fakeRemote) FetchScope(_ context.Context, _ string) ([]flow.Entity, error) {
	return []flow.Entity{
		{ID: "pg-1", Type: flow.TypeProcessGroup, Name: "Ingest", ParentID: "root", State: flow.StateRunning},
	}, nil
}

func (fakeRemote) Search(_ context.Context, _, _ string) ([]flow.Entity, error) {
	return nil, nil
}

func (fakeRemote) Templates(_ context.Context) ([]flow.Entity, error) { return nil, nil }

func (fakeRemote) Status(_ context.Context, groupID string) (*nifi.GroupStatus, error) {
	return &nifi.GroupStatus{ID: groupID, Running: 1}, nil
}

func (fakeRemote) EntityState(_ context.Context, _ flow.Entity) (flow.State, error) {
	return flow.StateRunning, nil
}

func (fakeRemote) ProcessorTypes(_ context.Context, _ string) ([]nifi.TypeDoc, error) {
	return nil, nil
}

func (fakeRemote) CreateProcessGroup(_ context.Context, parentID, name string) (flow.Entity, error) {
	return flow.Entity{ID: "pg-new", Type: flow.TypeProcessGroup, Name: name, ParentID: parentID}, nil
}

func (fakeRemote) CreateProcessor(_ context.Context, parentID, name, className string) (flow.Entity, error) {
	return flow.Entity{ID: "proc-new", Type: flow.TypeProcessor, Name: name, ParentID: parentID}, nil
}

func (fakeRemote) CreateConnection(_ context.Context, parentID string, src, dst flow.Entity) (flow.Entity, error) {
	return flow.Entity{ID: "conn-new", Type: flow.TypeConnection, Name: src.Name + " -> " + dst.Name, ParentID: parentID}, nil
}

func (fakeRemote) Remove(_ context.Context, _ flow.Entity) error { return nil }

func (fakeRemote) SetRunState(_ context.Context, _ flow.Entity, _ flow.State) error { return nil }

type fakeProber struct{ err error }

func (p fakeProber) About(_ context.Context) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return "1.23.2", nil
}

func newTestRouter(t *testing.T, prober server.Prober) *gin.Engine {
	t.Helper()

	remote := fakeRemote{}
	stateCache := cache.New(remote, time.Minute)
	auditStore, err := store.New(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open audit store: %v", err)
	}
	t.Cleanup(func() { auditStore.Close() })

	p := pipeline.New(
		validate.New(stateCache),
		dispatch.New(remote, stateCache, 3),
		auditStore,
	)
	return server.New(p, prober, auditStore).SetupRoutes()
}

func postChat(t *testing.T, router *gin.Engine, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestChatEndpoint(t *testing.T) {
	router := newTestRouter(t, fakeProber{})

	rec := postChat(t, router, server.ChatRequest{Query: "list process groups", SessionID: "sess-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}

	var resp server.ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(resp.Response, "Ingest") {
		t.Errorf("response missing listing:\n%s", resp.Response)
	}
	if resp.Intent != "list" {
		t.Errorf("intent: got %q, want list", resp.Intent)
	}
	if resp.SessionID != "sess-1" {
		t.Errorf("session: got %q, want sess-1", resp.SessionID)
	}
	if resp.TraceID == "" {
		t.Error("trace ID missing")
	}
}

func TestChatAssignsSessionID(t *testing.T) {
	router := newTestRouter(t, fakeProber{})

	rec := postChat(t, router, server.ChatRequest{Query: "list process groups"})
	var resp server.ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SessionID == "" {
		t.Error("server must assign a session ID when none is given")
	}
}

func TestChatRequiresQuery(t *testing.T) {
	router := newTestRouter(t, fakeProber{})

	rec := postChat(t, router, map[string]string{"session_id": "sess-1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rec.Code)
	}
}

func TestAuditEndpoint(t *testing.T) {
	router := newTestRouter(t, fakeProber{})

	// A chat request leaves an audit row behind.
	postChat(t, router, server.ChatRequest{Query: "list process groups", SessionID: "sess-audit"})

	req := httptest.NewRequest(http.MethodGet, "/api/audit?limit=10", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var body struct {
		Entries []server.AuditRecord `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Entries) != 1 {
		t.Fatalf("entries: got %d, want 1", len(body.Entries))
	}
	got := body.Entries[0]
	if got.Kind != "list" || got.SessionID != "sess-audit" || got.Result != "success" {
		t.Errorf("entry: got %+v", got)
	}
	if got.TraceID == "" {
		t.Error("trace ID missing from audit entry")
	}
}

func TestAuditEndpointRejectsBadLimit(t *testing.T) {
	router := newTestRouter(t, fakeProber{})

	req := httptest.NewRequest(http.MethodGet, "/api/audit?limit=zero", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rec.Code)
	}
}

func TestHealthzReportsNiFi(t *testing.T) {
	router := newTestRouter(t, fakeProber{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["nifi"] != "ok" {
		t.Errorf("nifi: got %v, want ok", body["nifi"])
	}
	if body["nifi_version"] != "1.23.2" {
		t.Errorf("nifi_version: got %v", body["nifi_version"])
	}
}

func TestHealthzStaysUpWhenNiFiDown(t *testing.T) {
	router := newTestRouter(t, fakeProber{err: errors.New("connection refused")})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["nifi"] != "unreachable" {
		t.Errorf("nifi: got %v, want unreachable", body["nifi"])
	}
}

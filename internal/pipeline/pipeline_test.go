package pipeline_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"flowchat/internal/cache"
	"flowchat/internal/dispatch"
	"flowchat/internal/nifi"
	"flowchat/internal/pipeline"
	"flowchat/internal/store"
	"flowchat/internal/validate"
)

// stubNiFi is a tiny in-memory NiFi: a flat root group with named processors
// whose run state can be read and transitioned over the same endpoints the
// real API exposes.
type stubNiFi struct {
	mu     sync.Mutex
	states map[string]string // processor ID -> state
	names  map[string]string // processor ID -> name
	// rejectPut lists processor IDs whose transition request gets a 409.
	rejectPut map[string]bool

	mutations int
	listings  int
}

func newStubNiFi() *stubNiFi {
	return &stubNiFi{
		states: map[string]string{
			"proc-1": "RUNNING",
			"proc-2": "RUNNING",
		},
		names: map[string]string{
			"proc-1": "GenerateData",
			"proc-2": "PutFile",
		},
		rejectPut: map[string]bool{},
	}
}

func (s *stubNiFi) server(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/flow/about", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"about": map[string]any{"version": "1.23.2"}})
	})
	mux.HandleFunc("/flow/process-groups/root", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.listings++

		var processors []map[string]any
		for id, state := range s.states {
			processors = append(processors, map[string]any{
				"id": id,
				"component": map[string]any{
					"name":  s.names[id],
					"state": state,
					"type":  "org.apache.nifi.processors.standard.Test",
				},
			})
		}
		json.NewEncoder(w).Encode(map[string]any{
			"processGroupFlow": map[string]any{
				"flow": map[string]any{
					"processGroups": []map[string]any{},
					"processors":    processors,
					"connections":   []map[string]any{},
				},
			},
		})
	})
	mux.HandleFunc("/processors/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/processors/")

		s.mu.Lock()
		defer s.mu.Unlock()
		state, ok := s.states[id]
		if !ok {
			http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
			return
		}

		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{
				"id":       id,
				"revision": map[string]any{"version": 1},
				"component": map[string]any{
					"id": id, "name": s.names[id], "state": state,
				},
			})
		case http.MethodPut:
			s.mutations++
			if s.rejectPut[id] {
				http.Error(w, `{"message":"processor has active threads"}`, http.StatusConflict)
				return
			}
			var body struct {
				Component struct {
					State string `json:"state"`
				} `json:"component"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			s.states[id] = body.Component.State
			json.NewEncoder(w).Encode(map[string]any{"id": id})
		default:
			http.Error(w, "", http.StatusMethodNotAllowed)
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (s *stubNiFi) mutationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutations
}

func newPipeline(t *testing.T, baseURL string) *pipeline.Pipeline {
	t.Helper()

	client := nifi.New(nifi.Config{BaseURL: baseURL, Timeout: 5 * time.Second})
	stateCache := cache.New(client, time.Minute)
	auditStore, err := store.New(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open audit store: %v", err)
	}
	t.Cleanup(func() { auditStore.Close() })

	return pipeline.New(
		validate.New(stateCache),
		dispatch.New(client, stateCache, 3),
		auditStore,
	)
}

func TestAskListProcessors(t *testing.T) {
	stub := newStubNiFi()
	p := newPipeline(t, stub.server(t).URL)

	reply := p.Ask(context.Background(), "list all processors", "sess-1")

	if !strings.Contains(reply.Text, "GenerateData") || !strings.Contains(reply.Text, "PutFile") {
		t.Errorf("listing missing processors:\n%s", reply.Text)
	}
	if reply.TraceID == "" {
		t.Error("reply must carry a trace ID")
	}
	if stub.mutationCount() != 0 {
		t.Errorf("listing performed %d mutations", stub.mutationCount())
	}
}

func TestAskStopAllPartialFailure(t *testing.T) {
	stub := newStubNiFi()
	stub.rejectPut["proc-2"] = true
	p := newPipeline(t, stub.server(t).URL)

	reply := p.Ask(context.Background(), "Stop all processors in the root group", "sess-1")

	if !strings.Contains(reply.Text, "✅ GenerateData") {
		t.Errorf("missing successful outcome:\n%s", reply.Text)
	}
	if !strings.Contains(reply.Text, "❌ PutFile") {
		t.Errorf("missing failed outcome:\n%s", reply.Text)
	}
}

// A missing target must be caught by validation: beyond the cache refresh
// listing, nothing may reach NiFi.
func TestAskStartUnknownFlow(t *testing.T) {
	stub := newStubNiFi()
	p := newPipeline(t, stub.server(t).URL)

	reply := p.Ask(context.Background(), "Start the Data Processing flow", "sess-1")

	if !strings.Contains(reply.Text, "could not find") {
		t.Errorf("expected a not-found reply:\n%s", reply.Text)
	}
	if stub.mutationCount() != 0 {
		t.Errorf("rejected operation still sent %d mutations", stub.mutationCount())
	}
}

func TestAskUnknownUtterance(t *testing.T) {
	stub := newStubNiFi()
	p := newPipeline(t, stub.server(t).URL)

	reply := p.Ask(context.Background(), "weather tomorrow in Berlin", "sess-1")

	if !strings.Contains(reply.Text, "did not understand") {
		t.Errorf("expected guidance reply:\n%s", reply.Text)
	}
	if stub.mutationCount() != 0 || stub.listings != 0 {
		t.Error("unknown utterances must not touch the remote")
	}
}

func TestAskAlreadyStopped(t *testing.T) {
	stub := newStubNiFi()
	stub.states["proc-2"] = "STOPPED"
	p := newPipeline(t, stub.server(t).URL)

	reply := p.Ask(context.Background(), "stop PutFile", "sess-1")

	if !strings.Contains(reply.Text, "already stopped") {
		t.Errorf("expected already-stopped guidance:\n%s", reply.Text)
	}
	if stub.mutationCount() != 0 {
		t.Errorf("no-op transition still sent %d mutations", stub.mutationCount())
	}
}

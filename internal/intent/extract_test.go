package intent_test

import (
	"testing"

	"flowchat/internal/flow"
	"flowchat/internal/intent"
)

func TestExtractScenarios(t *testing.T) {
	tests := []struct {
		name       string
		utterance  string
		wantKind   intent.Kind
		wantType   flow.EntityType
		wantTarget string
		wantAll    bool
		wantScope  string
	}{
		{
			name:      "list all process groups",
			utterance: "List all process groups",
			wantKind:  intent.KindList,
			wantType:  flow.TypeProcessGroup,
			wantAll:   true,
		},
		{
			name:      "list processors",
			utterance: "show me the processors",
			wantKind:  intent.KindList,
			wantType:  flow.TypeProcessor,
		},
		{
			name:      "stop all processors in root group",
			utterance: "Stop all processors in the root group",
			wantKind:  intent.KindStop,
			wantType:  flow.TypeProcessor,
			wantAll:   true,
			wantScope: "root",
		},
		{
			name:       "start named flow",
			utterance:  "Start the Data Processing flow",
			wantKind:   intent.KindStart,
			wantType:   flow.TypeProcessGroup,
			wantTarget: "Data Processing",
		},
		{
			name:       "start quoted processor",
			utterance:  `start the "Fetch Files" processor`,
			wantKind:   intent.KindStart,
			wantType:   flow.TypeProcessor,
			wantTarget: "Fetch Files",
		},
		{
			name:       "stop bare proper noun",
			utterance:  "stop GenerateData",
			wantKind:   intent.KindStop,
			wantTarget: "GenerateData",
		},
		{
			name:      "status of root",
			utterance: "what is the status of the flow",
			wantKind:  intent.KindStatus,
			wantType:  flow.TypeProcessGroup,
		},
		{
			name:       "delete named group",
			utterance:  "delete the Scratch process group",
			wantKind:   intent.KindDelete,
			wantType:   flow.TypeProcessGroup,
			wantTarget: "Scratch",
		},
		{
			name:      "list templates",
			utterance: "list the templates",
			wantKind:  intent.KindList,
			wantType:  flow.TypeTemplate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := intent.Extract(tt.utterance)

			if req.Kind != tt.wantKind {
				t.Errorf("Kind: got %q, want %q", req.Kind, tt.wantKind)
			}
			if req.TargetType != tt.wantType {
				t.Errorf("TargetType: got %q, want %q", req.TargetType, tt.wantType)
			}
			if req.Target != tt.wantTarget {
				t.Errorf("Target: got %q, want %q", req.Target, tt.wantTarget)
			}
			if req.All() != tt.wantAll {
				t.Errorf("All: got %v, want %v", req.All(), tt.wantAll)
			}
			if tt.wantScope != "" && req.Param("scope") != tt.wantScope {
				t.Errorf("scope: got %q, want %q", req.Param("scope"), tt.wantScope)
			}
		})
	}
}

func TestExtractCreate(t *testing.T) {
	req := intent.Extract("Create a process group named Ingest")

	if req.Kind != intent.KindCreate {
		t.Fatalf("Kind: got %q, want %q", req.Kind, intent.KindCreate)
	}
	if req.TargetType != flow.TypeProcessGroup {
		t.Errorf("TargetType: got %q, want %q", req.TargetType, flow.TypeProcessGroup)
	}
	if req.Param("name") != "Ingest" {
		t.Errorf("name: got %q, want %q", req.Param("name"), "Ingest")
	}
}

func TestExtractCreateProcessorClass(t *testing.T) {
	req := intent.Extract("create a GenerateFlowFile processor named Gen")

	if req.Kind != intent.KindCreate {
		t.Fatalf("Kind: got %q, want %q", req.Kind, intent.KindCreate)
	}
	if req.TargetType != flow.TypeProcessor {
		t.Errorf("TargetType: got %q, want %q", req.TargetType, flow.TypeProcessor)
	}
	if req.Param("class") != "GenerateFlowFile" {
		t.Errorf("class: got %q, want GenerateFlowFile", req.Param("class"))
	}
	if req.Param("name") != "Gen" {
		t.Errorf("name: got %q, want Gen", req.Param("name"))
	}

	// No type token before the keyword means no class slot.
	req = intent.Extract("create a processor named Gen")
	if req.Param("class") != "" {
		t.Errorf("class: got %q, want empty", req.Param("class"))
	}
}

func TestExtractConnect(t *testing.T) {
	tests := []struct {
		name      string
		utterance string
		wantSrc   string
		wantDst   string
		wantScope string
	}{
		{
			name:      "bare names",
			utterance: "connect GenerateData to PutFile",
			wantSrc:   "GenerateData",
			wantDst:   "PutFile",
		},
		{
			name:      "type keywords stripped",
			utterance: "connect the Fetch Files processor to the Write Output processor",
			wantSrc:   "Fetch Files",
			wantDst:   "Write Output",
		},
		{
			name:      "scoped",
			utterance: "connect GenerateData to PutFile in the Ingest group",
			wantSrc:   "GenerateData",
			wantDst:   "PutFile",
			wantScope: "Ingest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := intent.Extract(tt.utterance)

			if req.Kind != intent.KindCreate {
				t.Fatalf("Kind: got %q, want %q", req.Kind, intent.KindCreate)
			}
			if req.TargetType != flow.TypeConnection {
				t.Errorf("TargetType: got %q, want %q", req.TargetType, flow.TypeConnection)
			}
			if req.Param("source") != tt.wantSrc {
				t.Errorf("source: got %q, want %q", req.Param("source"), tt.wantSrc)
			}
			if req.Param("destination") != tt.wantDst {
				t.Errorf("destination: got %q, want %q", req.Param("destination"), tt.wantDst)
			}
			if req.Param("scope") != tt.wantScope {
				t.Errorf("scope: got %q, want %q", req.Param("scope"), tt.wantScope)
			}
		})
	}
}

func TestExtractSearch(t *testing.T) {
	req := intent.Extract("search for kafka")

	if req.Kind != intent.KindSearch {
		t.Fatalf("Kind: got %q, want %q", req.Kind, intent.KindSearch)
	}
	if req.Param("term") != "kafka" {
		t.Errorf("term: got %q, want %q", req.Param("term"), "kafka")
	}
}

func TestExtractDocs(t *testing.T) {
	req := intent.Extract("docs for ConsumeKafka")

	if req.Kind != intent.KindDocs {
		t.Fatalf("Kind: got %q, want %q", req.Kind, intent.KindDocs)
	}
	if req.Param("filter") != "ConsumeKafka" {
		t.Errorf("filter: got %q, want %q", req.Param("filter"), "ConsumeKafka")
	}
}

func TestExtractUnknown(t *testing.T) {
	req := intent.Extract("make me a sandwich with extra pickles please?!")
	// "make" triggers create; pick something with no trigger words at all.
	req = intent.Extract("weather tomorrow in Berlin")

	if req.Kind != intent.KindUnknown {
		t.Fatalf("Kind: got %q, want %q", req.Kind, intent.KindUnknown)
	}
	if req.Param("utterance") == "" {
		t.Error("expected original utterance to be preserved")
	}
}

func TestExtractEmpty(t *testing.T) {
	req := intent.Extract("   ")
	if req.Kind != intent.KindUnknown {
		t.Fatalf("Kind: got %q, want %q", req.Kind, intent.KindUnknown)
	}
}

// Extraction must be a pure function: same input, same output, no matter how
// often or in what order it runs.
func TestExtractDeterministic(t *testing.T) {
	utterance := "Stop all processors in the root group"
	first := intent.Extract(utterance)
	for i := 0; i < 10; i++ {
		got := intent.Extract(utterance)
		if got.Kind != first.Kind || got.Target != first.Target ||
			got.TargetType != first.TargetType || got.Param("scope") != first.Param("scope") {
			t.Fatalf("run %d differed: got %+v, want %+v", i, got, first)
		}
	}
}

func TestMutating(t *testing.T) {
	mutating := []intent.Kind{intent.KindCreate, intent.KindDelete, intent.KindStart, intent.KindStop}
	for _, k := range mutating {
		if !k.Mutating() {
			t.Errorf("%s should be mutating", k)
		}
	}
	readOnly := []intent.Kind{intent.KindList, intent.KindShow, intent.KindStatus, intent.KindSearch, intent.KindDocs}
	for _, k := range readOnly {
		if k.Mutating() {
			t.Errorf("%s should not be mutating", k)
		}
	}
}

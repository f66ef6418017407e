package intent

import (
	"regexp"

	"flowchat/internal/flow"
)

// rule is one entry in the extraction table: a trigger pattern, the kind it
// resolves to, and an optional slot extractor run on the match.
type rule struct {
	name    string
	pattern *regexp.Regexp
	kind    Kind
	slots   func(m []string, req *Request)
}

// rules is evaluated top to bottom; the first trigger that matches wins.
// Order encodes specificity and MUST NOT be reshuffled: earlier rules are
// more specific, and ties between equally specific triggers are broken by
// position. Reordering changes observable behavior.
var rules = []rule{
	{
		name:    "docs-for-type",
		pattern: regexp.MustCompile(`(?i)\b(?:docs?|documentation)\b(?:\s+(?:for|on|about)\s+(.+))?$`),
		kind:    KindDocs,
		slots: func(m []string, req *Request) {
			if m[1] != "" {
				req.Params["filter"] = unquote(m[1])
			}
		},
	},
	{
		name:    "docs-available-types",
		pattern: regexp.MustCompile(`(?i)\bwhat\s+processors?(?:\s+types)?\s+(?:are\s+available|exist|can\s+i\s+use)\b`),
		kind:    KindDocs,
	},
	{
		name:    "search",
		pattern: regexp.MustCompile(`(?i)\b(?:search\s+(?:for\s+)?|find\s+|look\s+for\s+|locate\s+)(.+)$`),
		kind:    KindSearch,
		slots: func(m []string, req *Request) {
			req.Params["term"] = trimNoise(unquote(m[1]))
		},
	},
	{
		name:    "connect",
		pattern: regexp.MustCompile(`(?i)\bconnect\s+(?:the\s+)?(.+?)\s+(?:to|and|with)\s+(?:the\s+)?(.+)$`),
		kind:    KindCreate,
		slots: func(m []string, req *Request) {
			req.TargetType = flow.TypeConnection
			req.Params["source"] = trimNoise(unquote(m[1]))
			req.Params["destination"] = trimNoise(unquote(scopePattern.ReplaceAllString(m[2], "")))
		},
	},
	{
		name:    "create",
		pattern: regexp.MustCompile(`(?i)\b(?:create|add|make|build)\b|\bnew\s+(?:process\s+group|processor|connection|flow)\b`),
		kind:    KindCreate,
	},
	{
		name:    "delete",
		pattern: regexp.MustCompile(`(?i)\b(?:delete|remove|destroy)\b`),
		kind:    KindDelete,
	},
	{
		name:    "start",
		pattern: regexp.MustCompile(`(?i)\b(?:start|run|launch|resume)\b`),
		kind:    KindStart,
	},
	{
		name:    "stop",
		pattern: regexp.MustCompile(`(?i)\b(?:stop|halt|pause|shut\s*down)\b`),
		kind:    KindStop,
	},
	{
		name:    "status",
		pattern: regexp.MustCompile(`(?i)\b(?:status|health|healthy|monitor)\b|\bhow\s+(?:is|are)\b.*\b(?:flow|group|processor)`),
		kind:    KindStatus,
	},
	{
		name:    "list",
		pattern: regexp.MustCompile(`(?i)\b(?:list|show|get|display|what)\b.*\b(?:process\s+groups|processors|connections|templates|flows)\b`),
		kind:    KindList,
	},
	{
		name:    "show",
		pattern: regexp.MustCompile(`(?i)\b(?:show|describe|details?\s+(?:of|for|about)|info(?:rmation)?\s+(?:on|about))\b`),
		kind:    KindShow,
	},
}

// typeVocab maps type keywords to entity types, longest keyword first so
// "process group" wins over "group" never matching "processor" by prefix.
var typeVocab = []struct {
	pattern *regexp.Regexp
	t       flow.EntityType
}{
	{regexp.MustCompile(`(?i)\bprocess\s+groups?\b`), flow.TypeProcessGroup},
	{regexp.MustCompile(`(?i)\bprocessors?\b`), flow.TypeProcessor},
	{regexp.MustCompile(`(?i)\bconnections?\b`), flow.TypeConnection},
	{regexp.MustCompile(`(?i)\btemplates?\b`), flow.TypeTemplate},
	{regexp.MustCompile(`(?i)\bflows?\b`), flow.TypeProcessGroup},
	{regexp.MustCompile(`(?i)\bgroups?\b`), flow.TypeProcessGroup},
}

var (
	// scopePattern matches an enclosing-group clause: "in the root group",
	// "inside the Ingest process group".
	scopePattern = regexp.MustCompile(`(?i)\s+in(?:side)?\s+(?:the\s+)?(.+?)\s+(?:process\s+)?group\b`)
	// allPattern matches "all"/"every" qualifiers.
	allPattern = regexp.MustCompile(`(?i)\b(?:all|every)\b\s*`)
	// quotedPattern captures a single- or double-quoted span.
	quotedPattern = regexp.MustCompile("[\"'`]([^\"'`]+)[\"'`]")
	// namedPattern captures "named X" / "called X".
	namedPattern = regexp.MustCompile(`(?i)\b(?:named|called)\s+(.+)$`)
	// verbObjectPattern captures the object between an action verb and a
	// type keyword: "start the Data Processing flow" -> "Data Processing".
	verbObjectPattern = regexp.MustCompile(`(?i)\b(?:start|run|launch|resume|stop|halt|pause|show|describe|delete|remove|destroy)\s+(?:the\s+)?(.+?)\s+(?:process\s+group|processor|connection|template|flow)\b`)
	// typeTrailingPattern captures the name after a type keyword:
	// "start processor GenerateData" -> "GenerateData".
	typeTrailingPattern = regexp.MustCompile(`(?i)\b(?:process\s+group|processor|connection|template|flow)\s+(.+)$`)
	// articlePattern strips leading articles and filler from captures.
	articlePattern = regexp.MustCompile(`(?i)^(?:the|a|an|my|this|that)\s+`)
	// classPattern captures the processor type preceding the keyword:
	// "create a GenerateFlowFile processor named Gen" -> "GenerateFlowFile".
	classPattern = regexp.MustCompile(`(?i)\b(?:create|add|make|build)\s+(?:(?:a|an|the|new)\s+)*([A-Za-z][A-Za-z0-9_.]*)\s+processors?\b`)
)

// fillerWords are captures that carry no identifying information and must
// not be mistaken for entity names.
var fillerWords = map[string]struct{}{
	"all": {}, "every": {}, "the": {}, "a": {}, "an": {}, "my": {},
	"me": {}, "please": {}, "it": {}, "them": {},
}

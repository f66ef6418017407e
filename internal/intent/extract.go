package intent

import (
	"strings"
	"unicode"

	"flowchat/internal/flow"
)

// Extract parses an utterance into a Request. It is a pure function over
// the utterance and the static rule table: no cache state, no remote calls,
// deterministic for a given input.
func Extract(utterance string) Request {
	req := Request{Kind: KindUnknown, Params: map[string]string{}}

	q := strings.TrimSpace(utterance)
	if q == "" {
		req.Params["utterance"] = utterance
		return req
	}

	for _, r := range rules {
		m := r.pattern.FindStringSubmatch(q)
		if m == nil {
			continue
		}
		req.Kind = r.kind
		if r.slots != nil {
			r.slots(m, &req)
		}
		fillCommonSlots(q, &req)
		return req
	}

	req.Params["utterance"] = utterance
	return req
}

// fillCommonSlots extracts the slots shared by every matched rule: target
// type, enclosing scope, the "all" qualifier and the target identifier.
func fillCommonSlots(q string, req *Request) {
	// Scope clause first, and strip it so it cannot be mistaken for part of
	// a target name.
	if m := scopePattern.FindStringSubmatch(q); m != nil {
		req.Params["scope"] = strings.TrimSpace(m[1])
		q = scopePattern.ReplaceAllString(q, "")
	}

	if allPattern.MatchString(q) {
		req.Params["all"] = "true"
		q = allPattern.ReplaceAllString(q, "")
	}

	if req.TargetType == "" {
		for _, tv := range typeVocab {
			if tv.pattern.MatchString(q) {
				req.TargetType = tv.t
				break
			}
		}
	}

	switch req.Kind {
	case KindCreate:
		// Connections are named by their endpoints, not a name slot.
		if req.TargetType != flow.TypeConnection {
			if name := extractName(q); name != "" {
				req.Params["name"] = name
			}
		}
		if req.TargetType == flow.TypeProcessor {
			if m := classPattern.FindStringSubmatch(q); m != nil {
				if class := cleanName(m[1]); class != "" {
					req.Params["class"] = class
				}
			}
		}
	case KindSearch, KindDocs:
		// Term and filter slots were already taken from the trigger match.
	case KindList:
		// Listings are scope-level; a leftover phrase is never a target.
	default:
		req.Target = extractName(q)
	}
}

// extractName pulls a target identifier out of q, trying the most reliable
// signals first: quoted spans, "named"/"called" clauses, the object between
// an action verb and a type keyword, text trailing a type keyword, and
// finally a trailing run of capitalized tokens.
func extractName(q string) string {
	if m := quotedPattern.FindStringSubmatch(q); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := namedPattern.FindStringSubmatch(q); m != nil {
		return cleanName(m[1])
	}
	if m := verbObjectPattern.FindStringSubmatch(q); m != nil {
		if name := cleanName(m[1]); name != "" {
			return name
		}
	}
	if m := typeTrailingPattern.FindStringSubmatch(q); m != nil {
		if name := cleanName(m[1]); name != "" {
			return name
		}
	}
	return trailingProperNoun(q)
}

// cleanName normalizes a captured span and rejects filler-only captures.
func cleanName(s string) string {
	s = articlePattern.ReplaceAllString(strings.TrimSpace(s), "")
	s = strings.Trim(s, ".,!? ")
	if _, filler := fillerWords[strings.ToLower(s)]; filler {
		return ""
	}
	return s
}

// trailingProperNoun returns the longest trailing run of tokens that start
// with an uppercase letter, skipping a final punctuation mark. This catches
// bare references like "start GenerateData".
func trailingProperNoun(q string) string {
	tokens := strings.Fields(strings.Trim(q, ".,!? "))
	if len(tokens) < 2 {
		return ""
	}
	start := len(tokens)
	for i := len(tokens) - 1; i >= 1; i-- {
		r := []rune(tokens[i])[0]
		if !unicode.IsUpper(r) {
			break
		}
		start = i
	}
	if start == len(tokens) {
		return ""
	}
	return cleanName(strings.Join(tokens[start:], " "))
}

// unquote strips a surrounding quote pair, if present.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if m := quotedPattern.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// trimNoise removes trailing type keywords and articles from a search term:
// "find the kafka processors" searches for "kafka".
func trimNoise(s string) string {
	s = articlePattern.ReplaceAllString(strings.TrimSpace(s), "")
	for _, tv := range typeVocab {
		s = tv.pattern.ReplaceAllString(s, "")
	}
	return strings.Trim(s, ".,!? ")
}

// Package introspect walks JSON-Schema-shaped documents and harvests
// annotated paths. It never validates data against the schema and never
// fails: malformed or partial nodes simply carry no annotations.
package introspect

import (
	"encoding/json"
	"sort"
)

// Kind is one annotation category recognized during the walk.
type Kind string

const (
	// KindRedact marks values that must be masked in logs and reports
	// (x-redact: true).
	KindRedact Kind = "redact"
	// KindDefault marks paths where a default is applied (default present).
	KindDefault Kind = "default"
	// KindCapability marks paths linked to a capability surface
	// (x-capability present).
	KindCapability Kind = "capability"
)

// Annotation keys recognized on schema nodes.
const (
	keyRedact     = "x-redact"
	keyDefault    = "default"
	keyCapability = "x-capability"
)

// Annotation is one annotated path. A path may carry several kinds at once.
type Annotation struct {
	Path  string `json:"path"`
	Kinds []Kind `json:"kinds"`
}

// Walk traverses a schema document and returns every annotated path,
// de-duplicated and sorted. Unparseable input yields an empty result, not an
// error.
func Walk(schema json.RawMessage) []Annotation {
	var doc any
	if err := json.Unmarshal(schema, &doc); err != nil {
		return nil
	}

	found := make(map[string]map[Kind]bool)
	walkNode(doc, "", found)

	paths := make([]string, 0, len(found))
	for p := range found {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	out := make([]Annotation, 0, len(paths))
	for _, p := range paths {
		kinds := make([]Kind, 0, len(found[p]))
		for k := range found[p] {
			kinds = append(kinds, k)
		}
		sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
		out = append(out, Annotation{Path: p, Kinds: kinds})
	}
	return out
}

func walkNode(node any, path string, found map[string]map[Kind]bool) {
	obj, ok := node.(map[string]any)
	if !ok {
		// Arrays of schemas only appear under known keywords, handled by
		// the parent; scalars carry nothing.
		return
	}

	mark := func(kind Kind) {
		if found[path] == nil {
			found[path] = make(map[Kind]bool)
		}
		found[path][kind] = true
	}

	if v, ok := obj[keyRedact]; ok {
		if b, ok := v.(bool); ok && b {
			mark(KindRedact)
		}
	}
	if _, ok := obj[keyDefault]; ok {
		mark(KindDefault)
	}
	if _, ok := obj[keyCapability]; ok {
		mark(KindCapability)
	}

	// Named children extend the path.
	for _, keyword := range []string{"properties", "patternProperties", "$defs", "definitions"} {
		if children, ok := obj[keyword].(map[string]any); ok {
			for name, child := range children {
				walkNode(child, path+"/"+name, found)
			}
		}
	}

	// Array elements collapse to a wildcard segment.
	switch items := obj["items"].(type) {
	case map[string]any:
		walkNode(items, path+"/*", found)
	case []any:
		for _, item := range items {
			walkNode(item, path+"/*", found)
		}
	}
	if extra, ok := obj["additionalProperties"].(map[string]any); ok {
		walkNode(extra, path+"/*", found)
	}

	// Combinator branches are transparent: they describe the same location.
	for _, keyword := range []string{"anyOf", "oneOf", "allOf"} {
		if branches, ok := obj[keyword].([]any); ok {
			for _, branch := range branches {
				walkNode(branch, path, found)
			}
		}
	}
	if not, ok := obj["not"].(map[string]any); ok {
		walkNode(not, path, found)
	}
}

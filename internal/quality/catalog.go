// Package quality maps user-facing quality labels to the provider-specific
// format codes the upstream API actually requires.
//
// The mapping is data-driven per task: each task carries an "available
// formats" payload captured from the provider's search results, and the
// payload's shape is wildly inconsistent (an array, a single object, or
// either of those JSON-encoded into a string). All of that tolerance lives
// in [ParseCatalog]; everything downstream works with a plain Catalog.
package quality

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Label is a user-facing fidelity tier.
type Label = string

// The closed set of quality labels, lowest to highest fidelity.
const (
	LabelLow      Label = "low"
	LabelMid      Label = "mid"
	LabelHigh     Label = "high"
	LabelLossless Label = "lossless"
)

// Levels lists all labels ordered from lowest to highest fidelity.
var Levels = []Label{LabelLow, LabelMid, LabelHigh, LabelLossless}

// Known reports whether label is part of the closed label set.
func Known(label Label) bool {
	for _, l := range Levels {
		if l == label {
			return true
		}
	}
	return false
}

// Entry is one parsed row of a formats payload: a quality label and the
// provider format code derived for it.
type Entry struct {
	Label Label
	Code  string
	Size  int64 // Declared byte size, 0 if the payload omits it
}

// Catalog maps quality labels to provider format codes.
type Catalog map[Label]string

// Code returns the format code for a label and whether one exists.
func (c Catalog) Code(label Label) (string, bool) {
	code, ok := c[label]
	return code, ok
}

// ParseCatalog parses a raw "available formats" payload into a Catalog.
//
// The payload may be empty, a JSON object, a JSON array of objects, or a
// JSON string containing either of those. Parsing is tolerant: malformed or
// empty payloads yield an empty catalog, never an error. When a label
// appears more than once, the first entry wins.
func ParseCatalog(payload string) Catalog {
	catalog := Catalog{}

	for _, entry := range ParseEntries(payload) {
		if _, exists := catalog[entry.Label]; !exists {
			catalog[entry.Label] = entry.Code
		}
	}

	return catalog
}

// ParseEntries parses a raw formats payload into its ordered entries.
// Entries lacking a label or any code field are dropped.
func ParseEntries(payload string) []Entry {
	payload = strings.TrimSpace(payload)
	if payload == "" || payload == "null" {
		return nil
	}

	var decoded any
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return nil
	}

	// A string payload is JSON-encoded JSON; decode exactly once more.
	if inner, ok := decoded.(string); ok {
		decoded = nil
		if err := json.Unmarshal([]byte(inner), &decoded); err != nil {
			return nil
		}
	}

	var raw []any
	switch v := decoded.(type) {
	case []any:
		raw = v
	case map[string]any:
		raw = []any{v}
	default:
		return nil
	}

	var entries []Entry
	for _, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}

		entry, ok := parseEntry(obj)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}

	return entries
}

// codeFields is the priority order for deriving a format code from an entry.
var codeFields = []string{"android", "ios", "format"}

func parseEntry(obj map[string]any) (Entry, bool) {
	label, ok := stringField(obj, "quality")
	if !ok {
		return Entry{}, false
	}

	var code string
	for _, field := range codeFields {
		if value, ok := stringField(obj, field); ok {
			code = value
			break
		}
	}
	if code == "" {
		return Entry{}, false
	}

	entry := Entry{Label: label, Code: code}

	if size, ok := obj["size"].(float64); ok {
		entry.Size = int64(size)
	}

	return entry, true
}

// stringField reads obj[key] as a non-empty string, stringifying numeric
// values since the provider is inconsistent about quoting format codes.
func stringField(obj map[string]any, key string) (string, bool) {
	switch v := obj[key].(type) {
	case string:
		if v == "" {
			return "", false
		}
		return v, true
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v)), true
		}
		return fmt.Sprintf("%v", v), true
	}
	return "", false
}

// Package report formats resolved references as JSON.
package report

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/skdltmxn/clrrefs/internal/resolve"
)

// Entry is one reference in the flat report.
type Entry struct {
	Assembly string `json:"assembly"`
	Type     string `json:"type"`
}

// Group lists the types referenced from one assembly.
type Group struct {
	Assembly string   `json:"assembly"`
	Types    []string `json:"types"`
}

// Flat returns one entry per reference, in input order.
func Flat(refs []resolve.Reference) []Entry {
	out := make([]Entry, 0, len(refs))
	for _, r := range refs {
		out = append(out, Entry{Assembly: r.Assembly, Type: r.Type})
	}
	return out
}

// Grouped collects references by assembly. Groups are sorted by assembly
// name; types keep their input order.
func Grouped(refs []resolve.Reference) []Group {
	index := make(map[string]int)
	out := make([]Group, 0)
	for _, r := range refs {
		i, ok := index[r.Assembly]
		if !ok {
			i = len(out)
			index[r.Assembly] = i
			out = append(out, Group{Assembly: r.Assembly})
		}
		out[i].Types = append(out[i].Types, r.Type)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Assembly < out[j].Assembly
	})
	return out
}

// Write encodes the report as a single JSON array followed by a newline.
func Write(w io.Writer, refs []resolve.Reference, group bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if group {
		return enc.Encode(Grouped(refs))
	}
	return enc.Encode(Flat(refs))
}

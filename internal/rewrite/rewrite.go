// Package rewrite rewrites embedded entity references inside serialized
// payloads. References are not normalized foreign keys: they appear as
// plain substrings inside opaque JSON blobs and as id= attributes inside
// at-mention tokens, so rewriting works on the serialized form. Only
// identifiers present in the remap table are ever touched, and
// replacements are applied longest-key-first in a single pass so that no
// identifier that is a prefix of another can be partially rewritten.
package rewrite

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/emrgen/canvas/internal/toolset"
)

// RemapTable maps old entity identifiers to their newly allocated
// replacements. Tables are request-scoped: built once before a copy phase
// and only ever read afterwards.
type RemapTable map[string]string

// String replaces every occurrence of a remap key in s with its new
// identifier. Keys are applied longest-first in a single pass; replaced
// text is never rescanned.
func String(s string, remap RemapTable) string {
	if len(remap) == 0 || s == "" {
		return s
	}

	keys := make([]string, 0, len(remap))
	for k := range remap {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, k, remap[k])
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

// Bytes is String over a raw serialized payload.
func Bytes(data []byte, remap RemapTable) []byte {
	if len(remap) == 0 || len(data) == 0 {
		return data
	}
	return []byte(String(string(data), remap))
}

// Value rewrites every reference inside an arbitrary JSON-serializable
// value tree and returns the decoded result. With an empty table the
// result is deep-equal to the input.
func Value(v any, remap RemapTable) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(Bytes(data, remap), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Struct rewrites in through the serialized form and decodes the result
// into out, preserving static typing for callers.
func Struct(in any, remap RemapTable, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(Bytes(data, remap), out)
}

var (
	mentionPattern = regexp.MustCompile(`@\{[^{}]*\}`)
	mentionIDAttr  = regexp.MustCompile(`(\bid=)([A-Za-z0-9-]+)`)
)

// Mentions rewrites only the id= attribute values inside at-mention
// tokens (@{type=document,id=doc-...,name=...}), leaving all surrounding
// text untouched. Identifiers absent from the table are kept as-is.
func Mentions(text string, remap RemapTable) string {
	if len(remap) == 0 || text == "" {
		return text
	}
	return mentionPattern.ReplaceAllStringFunc(text, func(token string) string {
		return mentionIDAttr.ReplaceAllStringFunc(token, func(attr string) string {
			groups := mentionIDAttr.FindStringSubmatch(attr)
			if replacement, ok := remap[groups[2]]; ok {
				return groups[1] + replacement
			}
			return attr
		})
	})
}

// Toolsets replaces each toolset wholesale using the toolset remap table.
// An unresolvable reference is not an error: the original toolset is kept
// unchanged, since the referenced capability may not have been importable.
func Toolsets(items []*toolset.Toolset, table toolset.RemapTable) []*toolset.Toolset {
	if len(items) == 0 {
		return items
	}
	out := make([]*toolset.Toolset, len(items))
	for i, item := range items {
		if item != nil {
			if mapped, ok := table[item.ID]; ok && mapped != nil {
				out[i] = mapped
				continue
			}
		}
		out[i] = item
	}
	return out
}

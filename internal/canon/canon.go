// Package canon implements deterministic, content-addressable serialization:
// canonical JSON bytes and SHA-256 hex hashes over them. Object keys sort,
// designated set-like arrays sort and dedup, and numbers re-encode through
// their shortest round-trip form so two semantically equal values always
// produce byte-identical output.
package canon

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// SetTag marks a field whose JSON array value must be sorted and deduplicated
// before hashing. Use the struct tag `canon:"set"` on a []string (or other
// JSON-comparable slice) field; Bytes walks tagged fields via a first pass
// through encoding/json and a second canonicalizing pass over the raw tree.
const SetTag = "set"

// Bytes returns the canonical JSON encoding of v: object keys sorted,
// `canon:"set"`-tagged array fields sorted+deduped, numbers shortest-form.
func Bytes(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canon: marshal: %w", err)
	}

	setPaths := collectSetPaths(v, "")

	var generic any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canon: decode: %w", err)
	}

	normalized := normalize(generic, "", setPaths)

	var buf bytes.Buffer
	if err := encode(&buf, normalized); err != nil {
		return nil, fmt.Errorf("canon: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// HashHex returns the lowercase hex SHA-256 digest of Bytes(v).
func HashHex(v any) (string, error) {
	b, err := Bytes(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// collectSetPaths reflects over v's struct tags to find which dotted JSON
// paths are marked `canon:"set"`.
func collectSetPaths(v any, prefix string) map[string]bool {
	paths := map[string]bool{}
	collectSetPathsRec(v, prefix, paths)
	return paths
}

func normalize(v any, path string, setPaths map[string]bool) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			childPath := k
			if path != "" {
				childPath = path + "." + k
			}
			out[k] = normalize(vv, childPath, setPaths)
		}
		return out
	case []any:
		items := make([]any, len(t))
		for i, item := range t {
			items[i] = normalize(item, path, setPaths)
		}
		if setPaths[path] {
			items = sortDedup(items)
		}
		return items
	default:
		return t
	}
}

func sortDedup(items []any) []any {
	seen := map[string]any{}
	keys := make([]string, 0, len(items))
	for _, item := range items {
		b, err := encodeToBytes(item)
		if err != nil {
			continue
		}
		k := string(b)
		if _, ok := seen[k]; !ok {
			seen[k] = item
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, seen[k])
	}
	return out
}

func encodeToBytes(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encode writes v as canonical JSON: sorted object keys, numbers through
// their shortest round-trip representation, no HTML escaping.
func encode(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(t.String())
	case string:
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		buf.Write(b)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := encode(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		buf.Write(b)
	}
	return nil
}

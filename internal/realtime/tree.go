package realtime

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Join builds a store path from its segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Clean validates a path and returns it without leading or trailing slashes.
// Segments must be non-empty and must not contain . $ # [ ] characters, the
// same restriction the hosted realtime database enforces on keys.
func Clean(path string) (string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "", nil
	}
	for _, seg := range strings.Split(trimmed, "/") {
		if seg == "" || strings.ContainsAny(seg, ".$#[]") {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return trimmed, nil
}

func segments(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// ancestors returns every proper ancestor of path, shortest first.
func ancestors(path string) []string {
	segs := segments(path)
	out := make([]string, 0, len(segs))
	for i := 1; i < len(segs); i++ {
		out = append(out, strings.Join(segs[:i], "/"))
	}
	return out
}

// childPrefix is the key prefix shared by every descendant of path.
func childPrefix(path string) string {
	if path == "" {
		return ""
	}
	return path + "/"
}

// normalize round-trips a value through JSON so every backend sees the same
// shapes: map[string]any, string, float64, bool and nil.
func normalize(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return out, nil
}

// flatten converts a normalized value into leaf paths. Empty maps and nil
// produce no leaves, which makes writing them equivalent to a delete.
func flatten(path string, value any, out map[string]any) {
	switch v := value.(type) {
	case nil:
	case map[string]any:
		for k, child := range v {
			flatten(Join(nonEmpty(path, k)...), child, out)
		}
	case []any:
		for i, child := range v {
			flatten(Join(nonEmpty(path, strconv.Itoa(i))...), child, out)
		}
	default:
		out[path] = v
	}
}

func nonEmpty(parts ...string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// assemble rebuilds the value stored at path from a set of leaves. Leaves that
// are neither path itself nor below it are ignored. It returns nil when
// nothing is stored at or below path.
func assemble(path string, leaves map[string]any) any {
	if path != "" {
		if v, ok := leaves[path]; ok {
			return v
		}
	}
	prefix := childPrefix(path)

	keys := make([]string, 0, len(leaves))
	for k := range leaves {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)

	root := map[string]any{}
	for _, k := range keys {
		segs := segments(strings.TrimPrefix(k, prefix))
		node := root
		for i, seg := range segs {
			if i == len(segs)-1 {
				node[seg] = leaves[k]
				break
			}
			next, ok := node[seg].(map[string]any)
			if !ok {
				next = map[string]any{}
				node[seg] = next
			}
			node = next
		}
	}
	return root
}

// checkOverlap rejects multi-path updates where one path is an ancestor of
// another, since the result would depend on application order.
func checkOverlap(paths []string) error {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if prev == cur || prev == "" || strings.HasPrefix(cur, prev+"/") {
			return fmt.Errorf("%w: overlapping update paths %q and %q", ErrInvalidPath, prev, cur)
		}
	}
	return nil
}

// prepareUpdate validates and normalizes a multi-path update.
func prepareUpdate(values map[string]any) (map[string]map[string]any, []string, error) {
	prepared := make(map[string]map[string]any, len(values))
	paths := make([]string, 0, len(values))
	for raw, value := range values {
		path, err := Clean(raw)
		if err != nil {
			return nil, nil, err
		}
		norm, err := normalize(value)
		if err != nil {
			return nil, nil, err
		}
		leaves := map[string]any{}
		flatten(path, norm, leaves)
		if _, ok := leaves[""]; ok {
			return nil, nil, fmt.Errorf("%w: scalar value at root", ErrInvalidPath)
		}
		prepared[path] = leaves
		paths = append(paths, path)
	}
	if err := checkOverlap(paths); err != nil {
		return nil, nil, err
	}
	sort.Strings(paths)
	return prepared, paths, nil
}

// encodeLeaf and decodeLeaf define the on-disk representation of a leaf for
// the byte-oriented backends.
func encodeLeaf(v any) ([]byte, error) {
	return json.Marshal(v)
}

func decodeLeaf(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

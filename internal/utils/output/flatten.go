package output

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/law-makers/harvest/pkg/models"
)

// ListSeparator joins lists of scalars into one cell
const ListSeparator = "; "

// Flatten turns a nested record into one level of dotted keys. Nested
// maps become "parent.child", lists of scalars are joined with "; " and
// lists of maps are indexed as "key.N.sub" starting at 0.
func Flatten(rec models.Record) map[string]string {
	out := make(map[string]string)
	flattenInto(out, "", map[string]any(rec))
	return out
}

func flattenInto(out map[string]string, prefix string, v any) {
	switch t := v.(type) {
	case nil:
		return
	case models.Record:
		flattenInto(out, prefix, map[string]any(t))
	case map[string]any:
		for k, child := range t {
			flattenInto(out, join(prefix, k), child)
		}
	case []any:
		flattenList(out, prefix, t)
	case []string:
		if len(t) > 0 {
			out[prefix] = strings.Join(t, ListSeparator)
		}
	case []map[string]any:
		for i, m := range t {
			flattenInto(out, join(prefix, strconv.Itoa(i)), m)
		}
	default:
		if s := scalar(t); s != "" {
			out[prefix] = s
		}
	}
}

func flattenList(out map[string]string, prefix string, list []any) {
	if len(list) == 0 {
		return
	}
	allScalar := true
	for _, item := range list {
		switch item.(type) {
		case map[string]any, models.Record, []any:
			allScalar = false
		}
	}
	if allScalar {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			if s := scalar(item); s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) > 0 {
			out[prefix] = strings.Join(parts, ListSeparator)
		}
		return
	}
	for i, item := range list {
		flattenInto(out, join(prefix, strconv.Itoa(i)), item)
	}
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// SortedKeys returns the keys of a flattened record with "url" first
func SortedKeys(flat map[string]string) []string {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i] == models.FieldURL || keys[j] == models.FieldURL {
			return keys[i] == models.FieldURL
		}
		return keys[i] < keys[j]
	})
	return keys
}

package extract

import "github.com/law-makers/harvest/pkg/models"

// Merge folds src into dst. Nested maps merge key by key; for scalars and
// lists src wins unless its value is empty. Empty values never override.
func Merge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for k, v := range src {
		if models.IsZeroValue(v) {
			continue
		}
		srcMap, srcIsMap := asMap(v)
		dstMap, dstIsMap := asMap(dst[k])
		if srcIsMap && dstIsMap {
			dst[k] = Merge(copyMap(dstMap), srcMap)
			continue
		}
		dst[k] = v
	}
	return dst
}

// Fill copies into dst only the keys dst does not already carry
func Fill(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for k, v := range src {
		if models.IsZeroValue(v) {
			continue
		}
		if existing, ok := dst[k]; ok && !models.IsZeroValue(existing) {
			srcMap, srcIsMap := asMap(v)
			dstMap, dstIsMap := asMap(existing)
			if srcIsMap && dstIsMap {
				dst[k] = Fill(copyMap(dstMap), srcMap)
			}
			continue
		}
		dst[k] = v
	}
	return dst
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case models.Record:
		return t, true
	}
	return nil, false
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

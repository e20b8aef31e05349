package patch

import (
	"reflect"
	"sort"

	"github.com/snorwin/jsonpatch"

	"github.com/iudanet/docsync/internal/models"
)

// DiffOptions tunes ComputePatch.
type DiffOptions struct {
	// Deep diffs nested objects and arrays structurally instead of
	// replacing the whole locale value.
	Deep bool
}

// ComputePatch returns the ordered operations that transform original's
// fields into updated's fields. Sys is not diffed.
//
// A field absent from original is emitted as a single add of the whole
// locale map, so no op references a container that does not exist yet.
// Deep-equal locale values produce nothing.
func ComputePatch(original, updated models.Entity, opts DiffOptions) []Op {
	var ops []Op

	for _, id := range unionKeys(original.Fields, updated.Fields) {
		before, inOriginal := original.Fields[id]
		after, inUpdated := updated.Fields[id]

		switch {
		case !inOriginal && inUpdated:
			if len(after) == 0 {
				continue
			}
			ops = append(ops, Op{Op: KindAdd, Path: Path{"fields", id}, Value: localeMap(after)})
		case inOriginal && !inUpdated:
			ops = append(ops, Op{Op: KindRemove, Path: Path{"fields", id}})
		default:
			ops = append(ops, diffLocales(id, before, after, opts)...)
		}
	}

	return ops
}

func diffLocales(fieldID string, before, after map[string]any, opts DiffOptions) []Op {
	var ops []Op

	for _, loc := range unionKeys(before, after) {
		ov, inBefore := before[loc]
		uv, inAfter := after[loc]
		path := FieldPath(fieldID, loc)

		switch {
		case !inBefore && inAfter:
			ops = append(ops, Op{Op: KindAdd, Path: path, Value: models.CloneValue(uv)})
		case inBefore && !inAfter:
			ops = append(ops, Op{Op: KindRemove, Path: path})
		case reflect.DeepEqual(ov, uv):
			// equal by value, nothing to send
		case opts.Deep && isContainer(ov) && isContainer(uv) && sameKind(ov, uv):
			ops = append(ops, deepDiff(path, ov, uv)...)
		default:
			ops = append(ops, Op{Op: KindReplace, Path: path, Value: models.CloneValue(uv)})
		}
	}

	return ops
}

// deepDiff delegates structural diffing of nested values to jsonpatch and
// re-roots the resulting pointers under path. Anything jsonpatch cannot
// express falls back to a wholesale replace.
func deepDiff(path Path, before, after any) []Op {
	replace := []Op{{Op: KindReplace, Path: path, Value: models.CloneValue(after)}}

	list, err := jsonpatch.CreateJSONPatch(after, before)
	if err != nil {
		return replace
	}

	patches := list.List()
	ops := make([]Op, 0, len(patches))
	for _, p := range patches {
		sub, err := ParsePointer(p.Path)
		if err != nil {
			return replace
		}
		full := append(path.Clone(), sub...)
		switch Kind(p.Operation) {
		case KindAdd, KindReplace:
			ops = append(ops, Op{Op: Kind(p.Operation), Path: full, Value: models.CloneValue(p.Value)})
		case KindRemove:
			ops = append(ops, Op{Op: KindRemove, Path: full})
		default:
			return replace
		}
	}
	return ops
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

func sameKind(a, b any) bool {
	return reflect.TypeOf(a) == reflect.TypeOf(b)
}

func localeMap(locales map[string]any) map[string]any {
	out := make(map[string]any, len(locales))
	for k, v := range locales {
		out[k] = models.CloneValue(v)
	}
	return out
}

func unionKeys[M ~map[string]V, V any](a, b M) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

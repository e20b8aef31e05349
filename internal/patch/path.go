package patch

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidOp indicates an operation that cannot be applied to the tree.
var ErrInvalidOp = errors.New("invalid operation")

// Path is a structural path into a document tree, e.g. ["fields", "title", "en-US"].
// Array elements are addressed by their decimal index.
type Path []string

// FieldPath builds ["fields", fieldID, locale].
func FieldPath(fieldID, locale string) Path {
	return Path{"fields", fieldID, locale}
}

func (p Path) String() string {
	return "/" + strings.Join(p, "/")
}

// Clone returns a copy of p.
func (p Path) Clone() Path {
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// Equal reports whether two paths address the same node.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix addresses p or one of its ancestors.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	return p[:len(prefix)].Equal(prefix)
}

// Overlaps reports whether a change at a can affect the value at b or vice versa.
func Overlaps(a, b Path) bool {
	return a.HasPrefix(b) || b.HasPrefix(a)
}

// FieldLocale returns the field id and locale of a ["fields", id, locale, ...] path.
func (p Path) FieldLocale() (fieldID, locale string, ok bool) {
	if len(p) < 3 || p[0] != "fields" {
		return "", "", false
	}
	return p[1], p[2], true
}

// ParsePointer converts a JSON pointer ("/a/b~1c") into a Path.
func ParsePointer(pointer string) (Path, error) {
	if pointer == "" {
		return Path{}, nil
	}
	if !strings.HasPrefix(pointer, "/") {
		return nil, fmt.Errorf("invalid pointer %q: must start with '/'", pointer)
	}
	segments := strings.Split(pointer[1:], "/")
	out := make(Path, len(segments))
	for i, s := range segments {
		s = strings.ReplaceAll(s, "~1", "/")
		out[i] = strings.ReplaceAll(s, "~0", "~")
	}
	return out, nil
}

// GetAt returns the value at path inside tree.
func GetAt(tree any, path Path) (any, bool) {
	node := tree
	for _, seg := range path {
		switch t := node.(type) {
		case map[string]any:
			v, ok := t[seg]
			if !ok {
				return nil, false
			}
			node = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(t) {
				return nil, false
			}
			node = t[idx]
		default:
			return nil, false
		}
	}
	return node, true
}

// leafFunc mutates a container at the final path segment and returns the
// (possibly reallocated) container.
type leafFunc func(container any, key string) (any, error)

// mutate walks path and applies leaf at the last segment. When create is
// set, missing intermediate maps are created.
func mutate(node any, path Path, create bool, leaf leafFunc) (any, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidOp)
	}
	if len(path) == 1 {
		return leaf(node, path[0])
	}

	seg := path[0]
	switch t := node.(type) {
	case map[string]any:
		child, ok := t[seg]
		if !ok || child == nil {
			if !create {
				return nil, fmt.Errorf("%w: missing container at %q", ErrInvalidOp, seg)
			}
			child = map[string]any{}
		}
		updated, err := mutate(child, path[1:], create, leaf)
		if err != nil {
			return nil, err
		}
		t[seg] = updated
		return t, nil
	case []any:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(t) {
			return nil, fmt.Errorf("%w: bad array index %q", ErrInvalidOp, seg)
		}
		updated, err := mutate(t[idx], path[1:], create, leaf)
		if err != nil {
			return nil, err
		}
		t[idx] = updated
		return t, nil
	default:
		return nil, fmt.Errorf("%w: %q is not a container", ErrInvalidOp, seg)
	}
}

func setLeaf(value any, insert bool) leafFunc {
	return func(container any, key string) (any, error) {
		switch t := container.(type) {
		case map[string]any:
			t[key] = value
			return t, nil
		case []any:
			if key == "-" {
				return append(t, value), nil
			}
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx > len(t) || (!insert && idx == len(t)) {
				return nil, fmt.Errorf("%w: bad array index %q", ErrInvalidOp, key)
			}
			if !insert {
				t[idx] = value
				return t, nil
			}
			t = append(t, nil)
			copy(t[idx+1:], t[idx:])
			t[idx] = value
			return t, nil
		default:
			return nil, fmt.Errorf("%w: parent of %q is not a container", ErrInvalidOp, key)
		}
	}
}

func removeLeaf(container any, key string) (any, error) {
	switch t := container.(type) {
	case map[string]any:
		delete(t, key)
		return t, nil
	case []any:
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(t) {
			return nil, fmt.Errorf("%w: bad array index %q", ErrInvalidOp, key)
		}
		return append(t[:idx], t[idx+1:]...), nil
	default:
		return nil, fmt.Errorf("%w: parent of %q is not a container", ErrInvalidOp, key)
	}
}

// SetAt sets value at path inside tree in place, creating missing maps.
func SetAt(tree map[string]any, path Path, value any) error {
	_, err := mutate(tree, path, true, setLeaf(value, false))
	return err
}

// RemoveAt deletes the value at path inside tree in place.
// Removing an absent map key is a no-op.
func RemoveAt(tree map[string]any, path Path) error {
	_, err := mutate(tree, path, false, removeLeaf)
	if err != nil && len(path) > 1 {
		if _, ok := GetAt(tree, path[:len(path)-1]); !ok {
			return nil
		}
	}
	return err
}

package patch

import (
	"fmt"

	"github.com/iudanet/docsync/internal/models"
)

// Kind is the operation type.
type Kind string

const (
	KindAdd     Kind = "add"
	KindReplace Kind = "replace"
	KindRemove  Kind = "remove"
	// KindInsertText inserts SI into the string at Path, at rune Offset.
	KindInsertText Kind = "si"
	// KindDeleteText deletes SD from the string at Path, at rune Offset.
	KindDeleteText Kind = "sd"
)

// Op is a single structural operation. It is also the wire format of
// document changes on the realtime channel.
type Op struct {
	Value  any    `json:"value"`
	Op     Kind   `json:"op"`
	SI     string `json:"si,omitempty"`
	SD     string `json:"sd,omitempty"`
	Path   Path   `json:"path"`
	Offset int    `json:"offset,omitempty"`
}

func (o Op) String() string {
	switch o.Op {
	case KindInsertText:
		return fmt.Sprintf("si %s@%d %q", o.Path, o.Offset, o.SI)
	case KindDeleteText:
		return fmt.Sprintf("sd %s@%d %q", o.Path, o.Offset, o.SD)
	default:
		return fmt.Sprintf("%s %s", o.Op, o.Path)
	}
}

// Paths returns the paths touched by ops.
func Paths(ops []Op) []Path {
	out := make([]Path, 0, len(ops))
	for _, op := range ops {
		out = append(out, op.Path)
	}
	return out
}

// Apply applies ops to a copy of tree. Either every op applies or tree is
// returned unchanged together with the error.
func Apply(tree map[string]any, ops []Op) (map[string]any, error) {
	out, ok := models.CloneValue(tree).(map[string]any)
	if !ok || out == nil {
		out = map[string]any{}
	}
	for i, op := range ops {
		if err := applyOne(out, op); err != nil {
			return tree, fmt.Errorf("op %d (%s): %w", i, op, err)
		}
	}
	return out, nil
}

func applyOne(tree map[string]any, op Op) error {
	if len(op.Path) == 0 {
		return fmt.Errorf("%w: empty path", ErrInvalidOp)
	}
	switch op.Op {
	case KindAdd:
		_, err := mutate(tree, op.Path, true, setLeaf(models.CloneValue(op.Value), true))
		return err
	case KindReplace:
		_, err := mutate(tree, op.Path, true, setLeaf(models.CloneValue(op.Value), false))
		return err
	case KindRemove:
		return RemoveAt(tree, op.Path)
	case KindInsertText:
		cur, err := textAt(tree, op.Path)
		if err != nil {
			return err
		}
		runes := []rune(cur)
		if op.Offset < 0 || op.Offset > len(runes) {
			return fmt.Errorf("%w: insert offset %d out of range", ErrInvalidOp, op.Offset)
		}
		next := string(runes[:op.Offset]) + op.SI + string(runes[op.Offset:])
		return SetAt(tree, op.Path, next)
	case KindDeleteText:
		cur, err := textAt(tree, op.Path)
		if err != nil {
			return err
		}
		runes := []rune(cur)
		del := []rune(op.SD)
		end := op.Offset + len(del)
		if op.Offset < 0 || end > len(runes) {
			return fmt.Errorf("%w: delete range %d..%d out of range", ErrInvalidOp, op.Offset, end)
		}
		if string(runes[op.Offset:end]) != op.SD {
			return fmt.Errorf("%w: deleted text does not match", ErrInvalidOp)
		}
		return SetAt(tree, op.Path, string(runes[:op.Offset])+string(runes[end:]))
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidOp, op.Op)
	}
}

// textAt reads a string target; an absent value reads as "".
func textAt(tree map[string]any, path Path) (string, error) {
	v, ok := GetAt(tree, path)
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: text op on %T", ErrInvalidOp, v)
	}
	return s, nil
}

// ApplyToFields applies ops addressed at ["fields", ...] to a copy of fields.
// Paths outside "fields" are rejected: sys is owned by the backend.
func ApplyToFields(fields models.Fields, ops []Op) (models.Fields, error) {
	for _, op := range ops {
		if len(op.Path) < 2 || op.Path[0] != "fields" {
			return fields, fmt.Errorf("%w: path %s is outside fields", ErrInvalidOp, op.Path)
		}
	}
	tree := models.Entity{Fields: fields}.Tree()
	delete(tree, "sys")
	out, err := Apply(tree, ops)
	if err != nil {
		return fields, err
	}
	return models.FieldsFromTree(out), nil
}

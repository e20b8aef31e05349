package document

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/iudanet/docsync/internal/models"
	"github.com/iudanet/docsync/internal/patch"
	"github.com/iudanet/docsync/internal/validation"
)

// SetValueAt applies value at path locally and sends it to the backend.
// It returns once the backend acknowledged the edit, or with the reason
// it did not. Invalid values are rejected before anything changes.
//
// Strings in text fields are sent as character insert/delete operations.
// An empty string or nil removes the value.
func (d *Document) SetValueAt(ctx context.Context, path patch.Path, value any) error {
	field, known, err := d.lookupField(path)
	if err != nil {
		return err
	}
	if value == nil {
		return d.RemoveValueAt(ctx, path)
	}
	if len(path) == 3 && known {
		if err := validation.ValidateFieldValue(field, value); err != nil {
			return err
		}
	}
	value, err = normalize(path, field, value)
	if err != nil {
		return err
	}

	d.mu.Lock()
	if err := d.mutableLocked(); err != nil {
		d.mu.Unlock()
		return err
	}

	cur, exists := patch.GetAt(d.tree, path)
	text, isText := value.(string)
	curText, curIsText := cur.(string)
	textMode := isText && len(path) == 3 && (!exists || curIsText) && (!known || field.Type.IsString())

	var ops []patch.Op
	switch {
	case textMode && text == "":
		if exists {
			ops = []patch.Op{{Op: patch.KindRemove, Path: path.Clone()}}
		}
	case textMode:
		ops = patch.TextOps(path, curText, text)
	case !exists:
		ops = []patch.Op{{Op: patch.KindAdd, Path: path.Clone(), Value: value}}
	case !reflect.DeepEqual(cur, value):
		ops = []patch.Op{{Op: patch.KindReplace, Path: path.Clone(), Value: value}}
	}
	return d.editLocked(ctx, ops)
}

// RemoveValueAt removes the value at path. Removing an absent value is a no-op.
func (d *Document) RemoveValueAt(ctx context.Context, path patch.Path) error {
	if _, _, err := d.lookupField(path); err != nil {
		return err
	}

	d.mu.Lock()
	if err := d.mutableLocked(); err != nil {
		d.mu.Unlock()
		return err
	}
	var ops []patch.Op
	if _, exists := patch.GetAt(d.tree, path); exists {
		ops = []patch.Op{{Op: patch.KindRemove, Path: path.Clone()}}
	}
	return d.editLocked(ctx, ops)
}

// editLocked applies ops optimistically, queues them and waits for the
// outcome. It is called with d.mu held and releases it.
func (d *Document) editLocked(ctx context.Context, ops []patch.Op) error {
	if len(ops) == 0 {
		d.mu.Unlock()
		return nil
	}

	tree, err := patch.Apply(d.tree, ops)
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("%w: %w", models.ErrInvalidFieldValue, err)
	}
	before := d.tree
	d.tree = tree
	d.pending++
	d.setDirtyLocked()
	d.noteChangeLocked(before, d.sys, OriginLocal)

	j := &job{
		kind:  jobEdit,
		ctx:   ctx,
		ops:   ops,
		base:  d.sys.Version,
		epoch: d.epoch,
		done:  make(chan error, 1),
	}
	d.enqueueLocked(j)
	d.mu.Unlock()

	d.deliver()
	return j.wait(ctx)
}

// lookupField checks that path addresses a field value and finds the field
// in the content type.
func (d *Document) lookupField(path patch.Path) (models.Field, bool, error) {
	fieldID, locale, ok := path.FieldLocale()
	if !ok {
		return models.Field{}, false, fmt.Errorf("%w: path %s does not address a field value", models.ErrInvalidFieldValue, path)
	}
	if err := validation.ValidateLocale(locale); err != nil {
		return models.Field{}, false, fmt.Errorf("%w: %w", models.ErrInvalidFieldValue, err)
	}

	field, known := d.contentType.Field(fieldID)
	if !known && len(d.contentType.Fields) > 0 {
		return models.Field{}, false, &models.FieldValueError{FieldID: fieldID, Reason: "unknown field"}
	}
	return field, known, nil
}

// mutableLocked reports why the document cannot take edits right now.
func (d *Document) mutableLocked() error {
	switch {
	case d.current == StatusDestroyed:
		return models.ErrDocumentDestroyed
	case d.handle == nil:
		return fmt.Errorf("%w: %w", models.ErrDocumentStale, models.ErrTransport)
	case models.DeriveState(d.sys) == models.StateDeleted:
		return models.ErrEntityDeleted
	}
	return nil
}

// normalize converts value into the JSON shape values have after a round
// trip through the backend, so that equality checks against remote values
// hold.
func normalize(path patch.Path, field models.Field, value any) (any, error) {
	switch value.(type) {
	case string, bool:
		return value, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		fieldID, _, _ := path.FieldLocale()
		return nil, &models.FieldValueError{
			Value:   value,
			FieldID: fieldID,
			Type:    field.Type,
			Reason:  "not representable as JSON",
		}
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	return out, nil
}

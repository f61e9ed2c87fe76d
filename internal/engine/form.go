package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pronym/relay/internal/store"
)

// Mode selects the write semantics of a Form.
type Mode int

const (
	// ModeCreate builds a new record; every required field must be present.
	ModeCreate Mode = iota

	// ModeReplace overwrites an existing record in full; absent optional
	// scalars reset to their zero value.
	ModeReplace

	// ModePatch updates only the fields present in the payload. Absent
	// fields are filtered out before classification, so untouched scalars
	// and relationships keep their current values.
	ModePatch
)

// Form validates a payload against a schema and persists the resulting
// object graph. Validation and persistence are separate steps: Validate
// classifies and checks every field, resolving nested objects recursively;
// Save then persists in a fixed order so references exist before the records
// that carry them.
type Form struct {
	schema      *Schema
	mode        Mode
	payload     map[string]any
	existing    Record
	assignments map[string]any

	validated bool
	cleaned   map[int]any
	present   map[int]bool
	preSave   map[*RelationshipDescriptor]*relationEntry
	postSave  map[*RelationshipDescriptor][]*relationEntry
}

// relationEntry is one resolved relationship value: either a nested form to
// save, or an already persisted record referenced by identifier.
type relationEntry struct {
	form   *Form
	record Record
}

// NewForm builds a form. existing must be nil for ModeCreate and the record
// being written for ModeReplace and ModePatch.
func NewForm(schema *Schema, payload map[string]any, mode Mode, existing Record) *Form {
	return &Form{
		schema:      schema,
		mode:        mode,
		payload:     payload,
		existing:    existing,
		assignments: make(map[string]any),
		cleaned:     make(map[int]any),
		present:     make(map[int]bool),
		preSave:     make(map[*RelationshipDescriptor]*relationEntry),
		postSave:    make(map[*RelationshipDescriptor][]*relationEntry),
	}
}

// Assign forces a Go field to a value at save time, bypassing payload
// validation. Used for server-controlled fields such as the owning account.
func (f *Form) Assign(goField string, value any) {
	f.assignments[goField] = value
}

// Validate classifies and checks every payload field. A non-nil summary
// describes client failures; a non-nil error is an internal fault. On a nil,
// nil return the form is ready to Save.
func (f *Form) Validate(ctx context.Context) (*ErrorSummary, error) {
	summary := &ErrorSummary{}

	for _, sf := range f.schema.Scalars {
		raw, ok := f.payload[sf.Name]
		if !ok {
			if f.mode == ModePatch {
				continue
			}
			if sf.Required() {
				summary.AddFieldError(sf.Name, msgRequired)
			}
			continue
		}

		value, err := coerceScalar(raw, sf.Type)
		if err != nil {
			summary.AddFieldError(sf.Name, msgInvalidType)
			continue
		}

		if sf.Rules != "" {
			if err := f.schema.registry.validate.Var(value, sf.Rules); err != nil {
				var verrs validator.ValidationErrors
				if !errors.As(err, &verrs) {
					return nil, fmt.Errorf("validating field %s: %w", sf.Name, err)
				}
				for _, fe := range verrs {
					summary.AddFieldError(sf.Name, ruleMessage(fe))
				}
				continue
			}
		}

		f.cleaned[sf.Index] = value
		f.present[sf.Index] = true
	}

	for _, desc := range f.schema.Relationships {
		raw, ok := f.payload[desc.Name]
		if !ok {
			if f.mode == ModePatch {
				continue
			}
			if desc.Kind == RelSingular {
				summary.AddFieldError(desc.Name, msgRequired)
			} else {
				summary.AddFieldError(desc.Name, msgNonArray)
			}
			continue
		}

		related, err := desc.Related()
		if err != nil {
			return nil, err
		}

		if desc.Kind == RelSingular {
			entry, failure, err := f.resolveEntry(ctx, desc, related, raw)
			if err != nil {
				return nil, err
			}
			if failure != nil {
				summary.SetFieldErrors(desc.Name, failure)
				continue
			}
			f.preSave[desc] = entry
			continue
		}

		items, ok := raw.([]any)
		if !ok {
			summary.AddFieldError(desc.Name, msgNonArray)
			continue
		}

		var indexed []IndexedError
		entries := make([]*relationEntry, 0, len(items))
		for i, item := range items {
			entry, failure, err := f.resolveEntry(ctx, desc, related, item)
			if err != nil {
				return nil, err
			}
			if failure != nil {
				indexed = append(indexed, IndexedError{Index: i, Errors: failure})
				continue
			}
			entries = append(entries, entry)
		}
		if len(indexed) > 0 {
			summary.SetFieldErrors(desc.Name, indexed)
			continue
		}
		f.postSave[desc] = entries
	}

	if !summary.Empty() {
		return summary, nil
	}
	f.validated = true
	return nil, nil
}

// resolveEntry turns one relationship value into a relation entry. A JSON
// object becomes a nested create form validated recursively; an identifier
// resolves to an existing record; anything else is a type failure. The
// second return carries the client-facing failure value when resolution
// fails.
func (f *Form) resolveEntry(ctx context.Context, desc *RelationshipDescriptor, related *Schema, raw any) (*relationEntry, any, error) {
	if nested, ok := raw.(map[string]any); ok {
		sub := NewForm(related, nested, ModeCreate, nil)
		sum, err := sub.Validate(ctx)
		if err != nil {
			return nil, nil, err
		}
		if desc.Validate != nil {
			if extra := desc.Validate(nested); !extra.Empty() {
				if sum == nil {
					sum = &ErrorSummary{}
				}
				sum.RequestErrors = append(sum.RequestErrors, extra.RequestErrors...)
				for field, value := range extra.FieldErrors {
					sum.SetFieldErrors(field, value)
				}
				sub.validated = false
			}
		}
		if !sum.Empty() {
			return nil, nestedFailure(sum), nil
		}
		return &relationEntry{form: sub}, nil, nil
	}

	id, ok := coerceID(raw)
	if !ok {
		return nil, []string{msgInvalidType}, nil
	}
	rec, err := related.Source.Get(ctx, id)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, []string{fmt.Sprintf("Invalid id specified: %d", id)}, nil
		}
		return nil, nil, fmt.Errorf("resolving %s reference %d: %w", related.Name, id, err)
	}
	return &relationEntry{record: rec}, nil, nil
}

// nestedFailure renders a nested form's summary as the failure value for the
// enclosing field.
func nestedFailure(sum *ErrorSummary) any {
	if len(sum.RequestErrors) == 0 {
		return sum.FieldErrors
	}
	out := map[string]any{"request_errors": sum.RequestErrors}
	for field, value := range sum.FieldErrors {
		out[field] = value
	}
	return out
}

// Save persists the validated object graph and returns the written record.
//
// Persistence runs in three phases. Singular references save first, so the
// record can carry their identifiers at insert time. The record itself saves
// second, with cleaned scalars and forced assignments applied. Set-valued
// relations save last: child records receive the now-known parent identifier
// before their own insert, and many-to-many sets are replaced wholesale with
// exactly the validated members.
func (f *Form) Save(ctx context.Context) (Record, error) {
	if !f.validated {
		return nil, fmt.Errorf("form for model %s has not passed validation", f.schema.Name)
	}

	instance := f.existing
	if instance == nil {
		instance = f.schema.New()
	}

	for _, desc := range f.schema.Relationships {
		entry, ok := f.preSave[desc]
		if !ok {
			continue
		}
		rec, err := entry.resolve(ctx)
		if err != nil {
			return nil, err
		}
		setField(instance, desc.Index, rec)
	}

	for idx, value := range f.cleaned {
		setField(instance, idx, value)
	}
	if f.mode == ModeReplace {
		for _, sf := range f.schema.Scalars {
			if !f.present[sf.Index] {
				setField(instance, sf.Index, nil)
			}
		}
	}
	for goField, value := range f.assignments {
		if err := setFieldByName(instance, goField, value); err != nil {
			return nil, err
		}
	}

	if instance.PrimaryKey() == 0 {
		if err := f.schema.Source.Insert(ctx, instance); err != nil {
			return nil, fmt.Errorf("inserting %s: %w", f.schema.Name, err)
		}
	} else {
		if err := f.schema.Source.Update(ctx, instance); err != nil {
			return nil, fmt.Errorf("updating %s: %w", f.schema.Name, err)
		}
	}

	for _, desc := range f.schema.Relationships {
		entries, ok := f.postSave[desc]
		if !ok {
			continue
		}
		related, err := desc.Related()
		if err != nil {
			return nil, err
		}

		members := make([]Record, 0, len(entries))
		for _, entry := range entries {
			var rec Record
			if entry.form != nil {
				if desc.Kind == RelHasMany {
					entry.form.Assign(desc.ForeignKey, instance.PrimaryKey())
				}
				rec, err = entry.form.Save(ctx)
				if err != nil {
					return nil, err
				}
			} else {
				rec = entry.record
				if desc.Kind == RelHasMany {
					if err := setFieldByName(rec, desc.ForeignKey, instance.PrimaryKey()); err != nil {
						return nil, err
					}
					if err := related.Source.Update(ctx, rec); err != nil {
						return nil, fmt.Errorf("attaching %s to %s: %w", related.Name, f.schema.Name, err)
					}
				}
			}
			members = append(members, rec)
		}

		if desc.Kind == RelManyToMany {
			if err := f.schema.Source.ReplaceSet(ctx, instance, desc.GoName, members); err != nil {
				return nil, fmt.Errorf("replacing %s.%s: %w", f.schema.Name, desc.Name, err)
			}
		}
		setRecordSlice(instance, desc.Index, members)
	}

	return instance, nil
}

// resolve returns the referenced record, saving the nested form first when
// the value arrived as an object.
func (e *relationEntry) resolve(ctx context.Context) (Record, error) {
	if e.form != nil {
		return e.form.Save(ctx)
	}
	return e.record, nil
}

package engine

import (
	"context"
	"fmt"
	"net/http"
	"reflect"

	"github.com/pronym/relay/internal/domain"
)

// SearchAction lists the records of a collection. An optional Filter narrows
// the listing using the query payload.
type SearchAction struct {
	Filter func(payload map[string]any, member *domain.AccountMember, rec Record) bool
}

// Authorize implements Action.
func (a *SearchAction) Authorize(member *domain.AccountMember, resource any) bool { return true }

// Validate implements Action. Listings take the query payload as-is.
func (a *SearchAction) Validate(ctx context.Context, payload map[string]any, member *domain.AccountMember, resource any) (*Validated, *ErrorSummary, error) {
	return &Validated{Payload: payload}, nil, nil
}

// Execute implements Action.
func (a *SearchAction) Execute(ctx context.Context, v *Validated, member *domain.AccountMember, resource any) (map[string]any, *Failure, error) {
	coll, ok := resource.(*Collection)
	if !ok {
		return nil, nil, fmt.Errorf("search requires a collection resource, got %T", resource)
	}

	recs, err := coll.Schema.Source.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("listing %s: %w", coll.Schema.Name, err)
	}
	recs = coll.visible(member, recs)

	if a.Filter != nil {
		filtered := make([]Record, 0, len(recs))
		for _, rec := range recs {
			if a.Filter(v.Payload, member, rec) {
				filtered = append(filtered, rec)
			}
		}
		recs = filtered
	}

	return map[string]any{"results": coll.Schema.SerializeAll(recs)}, nil, nil
}

// CreateAction validates a payload as a new record of the collection's model
// and persists its object graph.
type CreateAction struct {
	schema      *Schema
	assignOwner bool
}

// NewCreateAction builds the standard create action for a model.
func NewCreateAction(schema *Schema) *CreateAction {
	return &CreateAction{schema: schema}
}

// NewOwnedCreateAction builds a create action that force-assigns the
// caller's account to the model's owner field, regardless of the payload.
func NewOwnedCreateAction(schema *Schema) *CreateAction {
	if schema.OwnerField == "" {
		panic(fmt.Sprintf("model %s has no owner field", schema.Name))
	}
	return &CreateAction{schema: schema, assignOwner: true}
}

// Authorize implements Action.
func (a *CreateAction) Authorize(member *domain.AccountMember, resource any) bool { return true }

// Validate implements Action.
func (a *CreateAction) Validate(ctx context.Context, payload map[string]any, member *domain.AccountMember, resource any) (*Validated, *ErrorSummary, error) {
	form := NewForm(a.schema, payload, ModeCreate, nil)
	summary, err := form.Validate(ctx)
	if err != nil || summary != nil {
		return nil, summary, err
	}
	return &Validated{Payload: payload, Form: form}, nil, nil
}

// Execute implements Action.
func (a *CreateAction) Execute(ctx context.Context, v *Validated, member *domain.AccountMember, resource any) (map[string]any, *Failure, error) {
	if a.assignOwner && member != nil {
		v.Form.Assign(a.schema.OwnerField, member.AccountID)
	}
	rec, err := v.Form.Save(ctx)
	if err != nil {
		return nil, nil, err
	}
	return a.schema.Serialize(rec), nil, nil
}

// RetrieveAction renders a single record.
type RetrieveAction struct {
	schema *Schema
}

// NewRetrieveAction builds the standard retrieve action for a model.
func NewRetrieveAction(schema *Schema) *RetrieveAction {
	return &RetrieveAction{schema: schema}
}

// Authorize implements Action.
func (a *RetrieveAction) Authorize(member *domain.AccountMember, resource any) bool { return true }

// Validate implements Action.
func (a *RetrieveAction) Validate(ctx context.Context, payload map[string]any, member *domain.AccountMember, resource any) (*Validated, *ErrorSummary, error) {
	return &Validated{Payload: payload}, nil, nil
}

// Execute implements Action.
func (a *RetrieveAction) Execute(ctx context.Context, v *Validated, member *domain.AccountMember, resource any) (map[string]any, *Failure, error) {
	rec, ok := resource.(Record)
	if !ok {
		return nil, nil, fmt.Errorf("retrieve requires a record resource, got %T", resource)
	}
	return a.schema.Serialize(rec), nil, nil
}

// WriteAction rewrites an existing record, in full (ModeReplace) or
// partially (ModePatch).
type WriteAction struct {
	schema *Schema
	mode   Mode
}

// NewReplaceAction builds the full-overwrite action for a model.
func NewReplaceAction(schema *Schema) *WriteAction {
	return &WriteAction{schema: schema, mode: ModeReplace}
}

// NewModifyAction builds the partial-update action for a model. Only fields
// present in the payload are touched.
func NewModifyAction(schema *Schema) *WriteAction {
	return &WriteAction{schema: schema, mode: ModePatch}
}

// Authorize implements Action.
func (a *WriteAction) Authorize(member *domain.AccountMember, resource any) bool { return true }

// Validate implements Action.
func (a *WriteAction) Validate(ctx context.Context, payload map[string]any, member *domain.AccountMember, resource any) (*Validated, *ErrorSummary, error) {
	rec, ok := resource.(Record)
	if !ok {
		return nil, nil, fmt.Errorf("write requires a record resource, got %T", resource)
	}
	form := NewForm(a.schema, payload, a.mode, rec)
	summary, err := form.Validate(ctx)
	if err != nil || summary != nil {
		return nil, summary, err
	}
	return &Validated{Payload: payload, Form: form}, nil, nil
}

// Execute implements Action.
func (a *WriteAction) Execute(ctx context.Context, v *Validated, member *domain.AccountMember, resource any) (map[string]any, *Failure, error) {
	rec, err := v.Form.Save(ctx)
	if err != nil {
		return nil, nil, err
	}
	return a.schema.Serialize(rec), nil, nil
}

// DeleteAction removes a record. A successful delete responds with an empty
// body.
type DeleteAction struct {
	schema *Schema
}

// NewDeleteAction builds the standard delete action for a model.
func NewDeleteAction(schema *Schema) *DeleteAction {
	return &DeleteAction{schema: schema}
}

// Authorize implements Action.
func (a *DeleteAction) Authorize(member *domain.AccountMember, resource any) bool { return true }

// Validate implements Action.
func (a *DeleteAction) Validate(ctx context.Context, payload map[string]any, member *domain.AccountMember, resource any) (*Validated, *ErrorSummary, error) {
	return &Validated{Payload: payload}, nil, nil
}

// Execute implements Action.
func (a *DeleteAction) Execute(ctx context.Context, v *Validated, member *domain.AccountMember, resource any) (map[string]any, *Failure, error) {
	rec, ok := resource.(Record)
	if !ok {
		return nil, nil, fmt.Errorf("delete requires a record resource, got %T", resource)
	}
	if err := a.schema.Source.Delete(ctx, rec.PrimaryKey()); err != nil {
		return nil, nil, fmt.Errorf("deleting %s %d: %w", a.schema.Name, rec.PrimaryKey(), err)
	}
	return nil, nil, nil
}

// CollectionActions is the default method map for a collection endpoint:
// GET lists, POST creates.
func CollectionActions(schema *Schema) map[string]Action {
	return map[string]Action{
		http.MethodGet:  &SearchAction{},
		http.MethodPost: NewCreateAction(schema),
	}
}

// DetailActions is the default method map for a single-record endpoint:
// GET retrieves, PUT replaces, PATCH modifies, DELETE removes.
func DetailActions(schema *Schema) map[string]Action {
	return map[string]Action{
		http.MethodGet:    NewRetrieveAction(schema),
		http.MethodPut:    NewReplaceAction(schema),
		http.MethodPatch:  NewModifyAction(schema),
		http.MethodDelete: NewDeleteAction(schema),
	}
}

// OwnedScope restricts a collection to records whose owner field matches the
// caller's account.
func OwnedScope(schema *Schema) func(member *domain.AccountMember, rec Record) bool {
	if schema.OwnerField == "" {
		panic(fmt.Sprintf("model %s has no owner field", schema.Name))
	}
	return func(member *domain.AccountMember, rec Record) bool {
		if member == nil {
			return false
		}
		return ownerID(rec, schema.OwnerField) == member.AccountID
	}
}

// OwnedResource authorizes access to a record resource only when its owner
// field matches the caller's account. Non-record resources pass through.
func OwnedResource(schema *Schema) func(member *domain.AccountMember, resource any) bool {
	if schema.OwnerField == "" {
		panic(fmt.Sprintf("model %s has no owner field", schema.Name))
	}
	return func(member *domain.AccountMember, resource any) bool {
		rec, ok := resource.(Record)
		if !ok {
			return true
		}
		if member == nil {
			return false
		}
		return ownerID(rec, schema.OwnerField) == member.AccountID
	}
}

func ownerID(rec Record, goField string) int64 {
	return reflect.ValueOf(rec).Elem().FieldByName(goField).Int()
}

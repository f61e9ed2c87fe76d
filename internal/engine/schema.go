package engine

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// RelKind classifies a relationship by where it sits in the persistence order.
type RelKind int

const (
	// RelSingular is a one-valued reference persisted before the parent, so
	// the parent can carry the reference at insert time.
	RelSingular RelKind = iota

	// RelManyToMany is a set-valued association persisted after the parent,
	// replaced wholesale on every write.
	RelManyToMany

	// RelHasMany is a set of child records carrying a foreign reference back
	// to the parent, persisted after the parent once its identifier is known.
	RelHasMany
)

// String returns the tag spelling of the kind.
func (k RelKind) String() string {
	switch k {
	case RelSingular:
		return "one"
	case RelManyToMany:
		return "many"
	case RelHasMany:
		return "has"
	default:
		return fmt.Sprintf("RelKind(%d)", int(k))
	}
}

// NestedValidator adds model-specific checks to a nested object payload, on
// top of the generic per-field validation. A nil return means no extra
// failures.
type NestedValidator func(payload map[string]any) *ErrorSummary

// FieldSerializer overrides how one relationship value is rendered. It
// receives a single related record and returns the value to place in the
// output; for set-valued relations it is applied per member.
type FieldSerializer func(rec Record) any

// FieldOverride customizes validation or serialization for one relationship
// field of a model.
type FieldOverride struct {
	Validate  NestedValidator
	Serialize FieldSerializer
}

// Model describes one record type for registration. Prototype must be a
// pointer to a struct embedding PK; its fields are classified by reflection
// at registration time, never per request.
//
// Field classification follows struct tags:
//
//	json:"name"          scalar, exposed under the given name
//	validate:"rules"     scalar validation rules
//	rel:"one"            *T         singular reference, persisted pre-save
//	rel:"many"           []*T       many-to-many set, persisted post-save
//	rel:"has,fk=Field"   []*T       child records; Field is the Go field on T
//	                                that receives the parent identifier
type Model struct {
	Name       string
	Prototype  Record
	Source     RecordSource
	OwnerField string // Go field name holding the owning account identifier
	Overrides  map[string]FieldOverride
}

// ScalarField is a non-relationship payload field backed by one struct field.
type ScalarField struct {
	Name   string // payload name from the json tag
	GoName string
	Index  int
	Type   reflect.Type
	Rules  string // validate tag, empty when unconstrained
}

// Required reports whether the field must be present on full writes.
func (f ScalarField) Required() bool {
	for _, rule := range strings.Split(f.Rules, ",") {
		if rule == "required" {
			return true
		}
	}
	return false
}

// RelationshipDescriptor is the resolved shape of one relationship field:
// its kind, the related model, and where the relationship is persisted in
// the save order.
type RelationshipDescriptor struct {
	Name       string
	GoName     string
	Index      int
	Kind       RelKind
	ForeignKey string // RelHasMany only: Go field on the child
	Validate   NestedValidator
	Serialize  FieldSerializer

	owner       *Schema
	relatedType reflect.Type // struct type of the related record
}

// PostSave reports whether the relationship is persisted after the parent.
func (d *RelationshipDescriptor) PostSave() bool {
	return d.Kind != RelSingular
}

// Related resolves the related model's schema. When the related type equals
// the declaring type (a self-referential relation, such as a record's
// children of its own kind), the declaring schema itself is selected rather
// than consulting the registry, so reverse relations on the owning side
// cannot be confused with a forward reference.
func (d *RelationshipDescriptor) Related() (*Schema, error) {
	if d.relatedType == d.owner.typ {
		return d.owner, nil
	}
	related, ok := d.owner.registry.schemaForType(d.relatedType)
	if !ok {
		return nil, fmt.Errorf("model %s: field %s relates to unregistered type %s",
			d.owner.Name, d.Name, d.relatedType)
	}
	return related, nil
}

// Schema is the classified shape of one registered model.
type Schema struct {
	Name          string
	Source        RecordSource
	OwnerField    string
	Scalars       []ScalarField
	Relationships []*RelationshipDescriptor

	typ      reflect.Type // struct type, not pointer
	registry *Registry
}

// New returns a fresh zero instance of the model.
func (s *Schema) New() Record {
	return reflect.New(s.typ).Interface().(Record)
}

// Relationship returns the descriptor for the named payload field.
func (s *Schema) Relationship(name string) (*RelationshipDescriptor, bool) {
	for _, d := range s.Relationships {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// Registry holds the schemas of all registered models. Classification work
// happens once at registration; request handling only reads the resolved
// descriptors. Registration order does not matter: related schemas resolve
// lazily, so mutually referential models can register in any order.
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]*Schema
	byType   map[reflect.Type]*Schema
	validate *validator.Validate
}

// NewRegistry creates an empty model registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:   make(map[string]*Schema),
		byType:   make(map[reflect.Type]*Schema),
		validate: validator.New(),
	}
}

// Register classifies the model's fields and stores its schema.
func (r *Registry) Register(m Model) (*Schema, error) {
	if m.Name == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if m.Prototype == nil {
		return nil, fmt.Errorf("model %s: prototype is required", m.Name)
	}
	if m.Source == nil {
		return nil, fmt.Errorf("model %s: record source is required", m.Name)
	}

	pt := reflect.TypeOf(m.Prototype)
	if pt.Kind() != reflect.Ptr || pt.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("model %s: prototype must be a pointer to struct", m.Name)
	}
	st := pt.Elem()

	schema := &Schema{
		Name:     m.Name,
		Source:   m.Source,
		typ:      st,
		registry: r,
	}

	pkType := reflect.TypeOf(PK{})
	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		if field.Anonymous && field.Type == pkType {
			continue
		}
		if !field.IsExported() {
			continue
		}

		relTag := field.Tag.Get("rel")
		if relTag != "" {
			desc, err := buildRelationship(schema, field, i, relTag, m.Overrides[fieldName(field)])
			if err != nil {
				return nil, fmt.Errorf("model %s: %w", m.Name, err)
			}
			schema.Relationships = append(schema.Relationships, desc)
			continue
		}

		name := fieldName(field)
		if name == "" {
			continue
		}
		schema.Scalars = append(schema.Scalars, ScalarField{
			Name:   name,
			GoName: field.Name,
			Index:  i,
			Type:   field.Type,
			Rules:  field.Tag.Get("validate"),
		})
	}

	if m.OwnerField != "" {
		of, ok := st.FieldByName(m.OwnerField)
		if !ok {
			return nil, fmt.Errorf("model %s: owner field %s does not exist", m.Name, m.OwnerField)
		}
		if of.Type.Kind() != reflect.Int64 {
			return nil, fmt.Errorf("model %s: owner field %s must be int64", m.Name, m.OwnerField)
		}
		schema.OwnerField = m.OwnerField
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[m.Name]; exists {
		return nil, fmt.Errorf("model %s: already registered", m.Name)
	}
	r.byName[m.Name] = schema
	r.byType[st] = schema
	return schema, nil
}

// MustRegister is Register panicking on error, for wiring at startup.
func (r *Registry) MustRegister(m Model) *Schema {
	schema, err := r.Register(m)
	if err != nil {
		panic(err)
	}
	return schema
}

// Schema returns the schema registered under the given name.
func (r *Registry) Schema(name string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byName[name]
	return s, ok
}

func (r *Registry) schemaForType(t reflect.Type) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byType[t]
	return s, ok
}

func buildRelationship(owner *Schema, field reflect.StructField, index int, tag string, override FieldOverride) (*RelationshipDescriptor, error) {
	name := fieldName(field)
	if name == "" {
		name = strings.ToLower(field.Name)
	}

	desc := &RelationshipDescriptor{
		Name:      name,
		GoName:    field.Name,
		Index:     index,
		Validate:  override.Validate,
		Serialize: override.Serialize,
		owner:     owner,
	}

	parts := strings.Split(tag, ",")
	switch parts[0] {
	case "one":
		if field.Type.Kind() != reflect.Ptr || field.Type.Elem().Kind() != reflect.Struct {
			return nil, fmt.Errorf("field %s: rel:\"one\" requires a pointer to struct", field.Name)
		}
		desc.Kind = RelSingular
		desc.relatedType = field.Type.Elem()

	case "many", "has":
		if field.Type.Kind() != reflect.Slice ||
			field.Type.Elem().Kind() != reflect.Ptr ||
			field.Type.Elem().Elem().Kind() != reflect.Struct {
			return nil, fmt.Errorf("field %s: rel:%q requires a slice of struct pointers", field.Name, parts[0])
		}
		desc.relatedType = field.Type.Elem().Elem()
		if parts[0] == "many" {
			desc.Kind = RelManyToMany
			break
		}
		desc.Kind = RelHasMany
		for _, opt := range parts[1:] {
			if fk, ok := strings.CutPrefix(opt, "fk="); ok {
				desc.ForeignKey = fk
			}
		}
		if desc.ForeignKey == "" {
			return nil, fmt.Errorf("field %s: rel:\"has\" requires an fk= option", field.Name)
		}
		if _, ok := desc.relatedType.FieldByName(desc.ForeignKey); !ok {
			return nil, fmt.Errorf("field %s: foreign key field %s does not exist on %s",
				field.Name, desc.ForeignKey, desc.relatedType)
		}

	default:
		return nil, fmt.Errorf("field %s: unknown rel kind %q", field.Name, parts[0])
	}

	if !desc.relatedType.Implements(recordInterface) &&
		!reflect.PtrTo(desc.relatedType).Implements(recordInterface) {
		return nil, fmt.Errorf("field %s: related type %s does not implement Record",
			field.Name, desc.relatedType)
	}

	return desc, nil
}

var recordInterface = reflect.TypeOf((*Record)(nil)).Elem()

// fieldName extracts the payload name from the json tag. Fields tagged "-"
// are hidden from payloads and serialization.
func fieldName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" {
		return strings.ToLower(field.Name)
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return strings.ToLower(field.Name)
	}
	return name
}

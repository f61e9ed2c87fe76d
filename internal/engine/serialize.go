package engine

import "reflect"

// Serialize renders a record as a generic map, recursing through loaded
// relationships. Fields hidden from payloads (json:"-") never appear. A
// relationship with a serializer override renders through it instead of the
// default recursive form.
func (s *Schema) Serialize(rec Record) map[string]any {
	out := map[string]any{"id": rec.PrimaryKey()}

	for _, sf := range s.Scalars {
		out[sf.Name] = fieldValue(rec, sf.Index)
	}

	for _, desc := range s.Relationships {
		related, err := desc.Related()
		if err != nil {
			// Unresolvable relations render as absent rather than failing
			// the whole response.
			continue
		}

		fv := reflect.ValueOf(rec).Elem().Field(desc.Index)
		if desc.Kind == RelSingular {
			if fv.IsNil() {
				out[desc.Name] = nil
				continue
			}
			child := fv.Interface().(Record)
			if desc.Serialize != nil {
				out[desc.Name] = desc.Serialize(child)
			} else {
				out[desc.Name] = related.Serialize(child)
			}
			continue
		}

		members := make([]any, 0, fv.Len())
		for i := 0; i < fv.Len(); i++ {
			child := fv.Index(i).Interface().(Record)
			if desc.Serialize != nil {
				members = append(members, desc.Serialize(child))
			} else {
				members = append(members, related.Serialize(child))
			}
		}
		out[desc.Name] = members
	}

	return out
}

// SerializeAll renders a slice of records under the given schema.
func (s *Schema) SerializeAll(recs []Record) []any {
	out := make([]any, 0, len(recs))
	for _, rec := range recs {
		out = append(out, s.Serialize(rec))
	}
	return out
}

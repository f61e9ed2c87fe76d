package engine

// Validation failure messages. These are part of the wire contract and must
// not change casually; clients match on them.
const (
	msgRequired    = "This field is required."
	msgInvalidType = "Received invalid data type."
	msgNonArray    = "Received non-array in JSON where we expected an array."
)

// ErrorSummary separates failures of the request as a whole from failures of
// individual fields. RequestErrors covers malformed bodies and execution
// failures; FieldErrors maps a field name to its failures, where a value is
// one of []string (flat messages), map[string]any (a nested object's own
// summary), or []IndexedError (per-entry failures in an array value).
type ErrorSummary struct {
	RequestErrors []string       `json:"request_errors,omitempty"`
	FieldErrors   map[string]any `json:"field_errors,omitempty"`
}

// IndexedError attributes validation failures to one entry of an array value
// by its position. Errors carries either []string for entry-level failures or
// map[string]any for a nested object's field failures.
type IndexedError struct {
	Index  int `json:"index"`
	Errors any `json:"errors"`
}

// Empty reports whether the summary carries no failures.
func (s *ErrorSummary) Empty() bool {
	return s == nil || (len(s.RequestErrors) == 0 && len(s.FieldErrors) == 0)
}

// AddRequestError appends a request-level failure.
func (s *ErrorSummary) AddRequestError(msg string) {
	s.RequestErrors = append(s.RequestErrors, msg)
}

// AddFieldError appends a flat message to the named field's failures.
func (s *ErrorSummary) AddFieldError(field, msg string) {
	if s.FieldErrors == nil {
		s.FieldErrors = make(map[string]any)
	}
	switch existing := s.FieldErrors[field].(type) {
	case []string:
		s.FieldErrors[field] = append(existing, msg)
	case nil:
		s.FieldErrors[field] = []string{msg}
	default:
		// A structured value is already present; flat messages do not merge
		// into it.
		s.FieldErrors[field] = []string{msg}
	}
}

// SetFieldErrors attaches a structured failure value (a nested summary or a
// list of indexed errors) to the named field.
func (s *ErrorSummary) SetFieldErrors(field string, value any) {
	if s.FieldErrors == nil {
		s.FieldErrors = make(map[string]any)
	}
	s.FieldErrors[field] = value
}

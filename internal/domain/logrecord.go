package domain

import "time"

// LogRecord is an immutable audit row capturing one completed API exchange.
// It is created exactly once per request, after the response has been built,
// and never mutated. Header and payload strings are redacted before the
// record is constructed.
type LogRecord struct {
	ID              int64     `json:"id"`
	TraceID         string    `json:"trace_id"`
	EndpointName    string    `json:"endpoint_name"`
	SourceIP        string    `json:"source_ip"`
	Path            string    `json:"path"`
	Host            string    `json:"host"`
	Port            int       `json:"port"`
	IsAuthenticated bool      `json:"is_authenticated"`
	MemberID        *int64    `json:"member_id,omitempty"`
	Method          string    `json:"method"`
	RequestHeaders  string    `json:"request_headers"`
	RequestPayload  string    `json:"request_payload"`
	ResponsePayload string    `json:"response_payload"`
	StatusCode      int       `json:"status_code"`
	CreatedAt       time.Time `json:"created_at"`
}

// Validate checks if the LogRecord has valid data.
func (l *LogRecord) Validate() error {
	if l.EndpointName == "" {
		return ErrEmptyEndpointName
	}
	return nil
}

// Package redact provides utilities for scrubbing sensitive information from
// request traces before they are persisted or logged: configured payload
// fields and headers are replaced with a fixed marker, and free-form error
// strings are stripped of credentials and tokens.
package redact

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
)

// Marker replaces the value of every redacted header and payload field.
const Marker = "******"

// Precompiled patterns for free-form error strings.
var (
	// Database connection strings with embedded credentials.
	dbConnRegex = regexp.MustCompile(`(?i)(postgres|mysql|mongodb|db|database|connection)://[^@\s]+@`)

	// Credentials and secrets in key=value or key: value form.
	passwordRegex = regexp.MustCompile(`(?i)(password|passwd|pwd|secret)([=:\s]['"]?)[^'"&\s]{3,}`)

	// Standard three-part base64url-encoded JWT tokens.
	jwtTokenRegex = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`)
)

// Error redacts sensitive information from an error's Error() output so it
// can be logged safely.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}
	result := dbConnRegex.ReplaceAllString(input, "[REDACTED_CREDENTIAL]")
	result = passwordRegex.ReplaceAllString(result, "${1}${2}"+Marker)
	result = jwtTokenRegex.ReplaceAllString(result, "[REDACTED_JWT]")
	return result
}

// Headers renders the request headers as "Name=value" lines, replacing the
// value of any header named in redacted (case-insensitive) with the marker.
// Lines are sorted so the output is stable.
func Headers(h http.Header, redacted []string) string {
	hidden := make(map[string]struct{}, len(redacted))
	for _, name := range redacted {
		hidden[strings.ToLower(name)] = struct{}{}
	}

	lines := make([]string, 0, len(h))
	for name, values := range h {
		value := strings.Join(values, ", ")
		if _, ok := hidden[strings.ToLower(name)]; ok {
			value = Marker
		}
		lines = append(lines, fmt.Sprintf("%s=%s", name, value))
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

// Payload re-serializes a JSON object payload with the named top-level
// fields replaced by the marker. A non-object or undecodable payload yields
// an empty string; the raw bytes are never passed through unexamined.
func Payload(raw []byte, fields []string) string {
	if len(raw) == 0 {
		return ""
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	for _, field := range fields {
		if _, ok := payload[field]; ok {
			payload[field] = Marker
		}
	}
	out, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return string(out)
}

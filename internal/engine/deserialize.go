package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// DeserializationError marks a body the endpoint could not turn into a
// payload map. The dispatcher reports it as a request error with status 400.
type DeserializationError struct {
	Message string
}

func (e *DeserializationError) Error() string {
	return e.Message
}

// Deserializer extracts the request payload as a generic map.
type Deserializer interface {
	Deserialize(r *http.Request) (map[string]any, error)
}

// JSONDeserializer reads a JSON object body. An empty body is an empty
// payload; anything else must parse as a JSON object.
type JSONDeserializer struct{}

// Deserialize implements Deserializer.
func (JSONDeserializer) Deserialize(r *http.Request) (map[string]any, error) {
	body, ok := bodyBytes(r)
	if !ok {
		return nil, fmt.Errorf("request body was not buffered")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	payload := map[string]any{}
	if err := dec.Decode(&payload); err != nil {
		return nil, &DeserializationError{Message: "Could not parse JSON from request body."}
	}
	return payload, nil
}

// QueryDeserializer reads the payload from URL query parameters, taking the
// first value of each key. Used for GET requests, which carry no body.
type QueryDeserializer struct{}

// Deserialize implements Deserializer.
func (QueryDeserializer) Deserialize(r *http.Request) (map[string]any, error) {
	payload := map[string]any{}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			payload[key] = values[0]
		}
	}
	return payload, nil
}

// Package engine turns an incoming HTTP request into a validated, authorized,
// executed, and serialized JSON response.
//
// The three primary concepts are validators, processors (actions), and
// serializers. An Endpoint dispatches a request through a fixed pipeline:
// authentication, resource resolution, action lookup, authorization, body
// deserialization, validation, execution, response serialization, and finally
// audit logging. Each stage short-circuits to a fixed status code on failure.
//
// Model-backed endpoints register their record types with a Registry, which
// classifies each struct field as a scalar or a relationship (singular
// pre-save, many-to-many post-save, or one-to-many post-save). Form performs
// nested validation and two-phase persistence of whole object graphs,
// including partial (patch) semantics.
package engine

package engine

import (
	"context"

	"github.com/pronym/relay/internal/domain"
)

// Failure is a rejected execution: a set of request-level errors and the
// status code to report them under. The dispatcher serializes it into the
// standard error envelope.
type Failure struct {
	Errors []string
	Status int
}

// Validated carries the outcome of an action's validation step into its
// execution step. Model-backed actions hand over the bound form; custom
// actions use the payload directly.
type Validated struct {
	Payload map[string]any
	Form    *Form
}

// Action is one operation an endpoint exposes under an HTTP method. The
// dispatcher drives the three steps in order: Authorize gates the caller,
// Validate checks the payload, Execute performs the work.
//
// Validate returns a summary for client failures (reported as 400) and an
// error for internal faults (reported as 500). Execute returns the response
// body, or a Failure with its own status, or an internal error. A nil body
// with no failure produces an empty 200.
type Action interface {
	Authorize(member *domain.AccountMember, resource any) bool
	Validate(ctx context.Context, payload map[string]any, member *domain.AccountMember, resource any) (*Validated, *ErrorSummary, error)
	Execute(ctx context.Context, v *Validated, member *domain.AccountMember, resource any) (map[string]any, *Failure, error)
}

// NullResource is the resource of endpoints that do not operate on a
// record, such as token issuance.
type NullResource struct{}

// Collection is the resource of list and create endpoints: a model plus an
// optional visibility scope. A nil Scope exposes every record.
type Collection struct {
	Schema *Schema
	Scope  func(member *domain.AccountMember, rec Record) bool
}

// visible applies the collection scope to a listing.
func (c *Collection) visible(member *domain.AccountMember, recs []Record) []Record {
	if c.Scope == nil {
		return recs
	}
	out := make([]Record, 0, len(recs))
	for _, rec := range recs {
		if c.Scope(member, rec) {
			out = append(out, rec)
		}
	}
	return out
}

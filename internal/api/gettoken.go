// Package api assembles the HTTP surface: the token issuance endpoint, the
// router, and the glue between engine endpoints and the rest of the system.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/pronym/relay/internal/domain"
	"github.com/pronym/relay/internal/engine"
	"github.com/pronym/relay/internal/service"
	"github.com/pronym/relay/internal/token"
)

// msgBadCredentials is returned on any failed login attempt.
const msgBadCredentials = "Unable to authenticate with those credentials."

// GetTokenAction exchanges a username/password pair for an encoded whitelist
// token. It runs on an unauthenticated endpoint; the pipeline skips the
// bearer-token stage entirely.
type GetTokenAction struct {
	accounts *service.AccountService
	tokens   *token.Service
}

// NewGetTokenAction creates the token issuance action.
func NewGetTokenAction(accounts *service.AccountService, tokens *token.Service) *GetTokenAction {
	if accounts == nil || tokens == nil {
		panic("account service and token service are required")
	}
	return &GetTokenAction{accounts: accounts, tokens: tokens}
}

// Authorize implements engine.Action.
func (a *GetTokenAction) Authorize(member *domain.AccountMember, resource any) bool {
	return true
}

// Validate implements engine.Action. Both credentials must be present as
// strings; their values are only judged at execution.
func (a *GetTokenAction) Validate(ctx context.Context, payload map[string]any, member *domain.AccountMember, resource any) (*engine.Validated, *engine.ErrorSummary, error) {
	summary := &engine.ErrorSummary{}
	for _, field := range []string{"username", "password"} {
		raw, ok := payload[field]
		if !ok {
			summary.AddFieldError(field, "This field is required.")
			continue
		}
		if _, ok := raw.(string); !ok {
			summary.AddFieldError(field, "Received invalid data type.")
		}
	}
	if !summary.Empty() {
		return nil, summary, nil
	}
	return &engine.Validated{Payload: payload}, nil, nil
}

// Execute implements engine.Action.
func (a *GetTokenAction) Execute(ctx context.Context, v *engine.Validated, member *domain.AccountMember, resource any) (map[string]any, *engine.Failure, error) {
	username := v.Payload["username"].(string)
	password := v.Payload["password"].(string)

	caller, err := a.accounts.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return nil, &engine.Failure{
				Errors: []string{msgBadCredentials},
				Status: http.StatusBadRequest,
			}, nil
		}
		return nil, nil, err
	}

	row, err := a.tokens.Issue(ctx, caller)
	if err != nil {
		return nil, nil, err
	}
	encoded, err := a.tokens.Encode(row)
	if err != nil {
		return nil, nil, err
	}

	return map[string]any{
		"token":   encoded,
		"expires": row.ExpiresAt(a.tokens.TTL()).UTC().Format(time.RFC3339),
	}, nil, nil
}

// NewGetTokenEndpoint wraps the action in a fully configured endpoint. The
// password is masked in request audit records and the issued token in
// response audit records.
func NewGetTokenEndpoint(accounts *service.AccountService, tokens *token.Service, recorder engine.Recorder, opts EndpointOptions) *engine.Endpoint {
	return &engine.Endpoint{
		Name:        "get_token",
		RequireAuth: false,
		Actions: map[string]engine.Action{
			http.MethodPost: NewGetTokenAction(accounts, tokens),
		},
		Recorder:               recorder,
		RedactedRequestFields:  []string{"password"},
		RedactedResponseFields: []string{"token"},
		RaiseOnFault:           opts.RaiseOnFault,
		Logger:                 opts.Logger,
	}
}

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pronym/relay/internal/domain"
	"github.com/pronym/relay/internal/platform/logger"
	"github.com/pronym/relay/internal/redact"
	"github.com/pronym/relay/internal/store"
)

// Authenticator resolves an encoded bearer token to the calling member.
type Authenticator interface {
	Resolve(ctx context.Context, encoded string) (*domain.AccountMember, error)
}

// Recorder persists one audit record per handled request.
type Recorder interface {
	Record(ctx context.Context, rec *domain.LogRecord) error
}

// Endpoint is one routable API surface: a fixed pipeline around a method-to-
// action map. It implements http.Handler.
//
// Every request runs the same stages in order, each with a fixed failure
// status: authentication (401), resource resolution (404), action lookup
// (405), authorization (403), deserialization (400), validation (400),
// execution (failure status or 500). Exactly one audit record is written per
// request no matter which stage exits, including panics.
type Endpoint struct {
	// Name identifies the endpoint in audit records.
	Name string

	// RequireAuth demands a valid bearer token. When false the pipeline
	// skips authentication and proceeds anonymously.
	RequireAuth bool

	// Authenticator resolves tokens. Required when RequireAuth is true.
	Authenticator Authenticator

	// Resource resolves the target of the request. A nil func yields
	// NullResource; a nil result or a not-found error yields 404.
	Resource func(r *http.Request, member *domain.AccountMember) (any, error)

	// Actions maps HTTP methods to operations. A method with no entry
	// yields 405.
	Actions map[string]Action

	// AuthorizeResource gates an authenticated caller against the resolved
	// resource, before the action's own Authorize. Nil allows all.
	AuthorizeResource func(member *domain.AccountMember, resource any) bool

	// Recorder receives the audit record. Nil disables persistence; the
	// structured log line is still emitted.
	Recorder Recorder

	// Transact, when set, wraps action execution in a transaction.
	Transact Transactor

	// RedactedHeaders, RedactedRequestFields, and RedactedResponseFields
	// name values masked in audit records. Authorization is always masked.
	RedactedHeaders        []string
	RedactedRequestFields  []string
	RedactedResponseFields []string

	// RaiseOnFault re-panics instead of converting a panic to a 500, for
	// debugging. Never enable outside development.
	RaiseOnFault bool

	Logger *slog.Logger
}

// response is the buffered outcome of the pipeline. The body is held until
// the audit record is built, then written.
type response struct {
	status int
	body   []byte
}

func emptyResponse(status int) response {
	return response{status: status}
}

func jsonResponse(status int, payload any) response {
	body, err := json.Marshal(payload)
	if err != nil {
		return response{status: http.StatusInternalServerError,
			body: []byte(`{"request_errors":["Server Error"]}`)}
	}
	return response{status: status, body: body}
}

func errorResponse(status int, summary *ErrorSummary) response {
	return jsonResponse(status, summary)
}

var serverErrorResponse = response{
	status: http.StatusInternalServerError,
	body:   []byte(`{"request_errors":["Server Error"]}`),
}

// ServeHTTP implements http.Handler.
func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := e.log()
	start := time.Now()
	traceID := uuid.NewString()

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		rawBody = nil
	}
	r = withBody(r, rawBody)
	ctx := logger.WithLogger(r.Context(), log.With(slog.String("trace_id", traceID)))
	r = r.WithContext(ctx)

	var member *domain.AccountMember
	resp := func() (resp response) {
		defer func() {
			if rec := recover(); rec != nil {
				if e.RaiseOnFault {
					panic(rec)
				}
				log.Error("panic while handling request",
					slog.String("endpoint", e.Name),
					slog.String("trace_id", traceID),
					slog.Any("panic", rec))
				resp = serverErrorResponse
			}
		}()
		return e.process(r, &member)
	}()

	e.record(r, rawBody, member, resp, traceID)

	log.Info("request handled",
		slog.String("endpoint", e.Name),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", resp.status),
		slog.String("trace_id", traceID),
		slog.Duration("duration", time.Since(start)))

	if len(resp.body) > 0 {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(resp.status)
	if len(resp.body) > 0 {
		w.Write(resp.body) //nolint:errcheck
	}
}

// process runs the pipeline stages and returns the buffered response. The
// resolved member is reported through the pointer so the audit record sees
// it even when a later stage fails.
func (e *Endpoint) process(r *http.Request, memberOut **domain.AccountMember) response {
	ctx := r.Context()
	log := logger.FromContextOrDefault(ctx, e.log())

	var member *domain.AccountMember
	if e.RequireAuth {
		member = e.authenticate(r)
		if member == nil {
			return emptyResponse(http.StatusUnauthorized)
		}
		*memberOut = member
	}

	resource, err := e.resolveResource(r, member)
	if err != nil {
		log.Error("resource resolution failed",
			slog.String("endpoint", e.Name),
			slog.String("error", redact.Error(err)))
		return serverErrorResponse
	}
	if resource == nil {
		return emptyResponse(http.StatusNotFound)
	}

	action, ok := e.Actions[r.Method]
	if !ok {
		return emptyResponse(http.StatusMethodNotAllowed)
	}

	if member != nil {
		if e.AuthorizeResource != nil && !e.AuthorizeResource(member, resource) {
			return emptyResponse(http.StatusForbidden)
		}
		if !action.Authorize(member, resource) {
			return emptyResponse(http.StatusForbidden)
		}
	}

	payload, err := e.deserialize(r)
	if err != nil {
		var derr *DeserializationError
		if errors.As(err, &derr) {
			return errorResponse(http.StatusBadRequest,
				&ErrorSummary{RequestErrors: []string{derr.Message}})
		}
		log.Error("deserialization failed",
			slog.String("endpoint", e.Name),
			slog.String("error", redact.Error(err)))
		return serverErrorResponse
	}

	validated, summary, err := action.Validate(ctx, payload, member, resource)
	if err != nil {
		log.Error("validation failed internally",
			slog.String("endpoint", e.Name),
			slog.String("error", redact.Error(err)))
		return serverErrorResponse
	}
	if !summary.Empty() {
		return errorResponse(http.StatusBadRequest, summary)
	}

	var (
		result  map[string]any
		failure *Failure
	)
	run := func(ctx context.Context) error {
		var execErr error
		result, failure, execErr = action.Execute(ctx, validated, member, resource)
		return execErr
	}
	if e.Transact != nil {
		err = e.Transact.InTransaction(ctx, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		log.Error("execution failed",
			slog.String("endpoint", e.Name),
			slog.String("error", redact.Error(err)))
		return serverErrorResponse
	}
	if failure != nil {
		status := failure.Status
		if status == 0 {
			status = http.StatusBadRequest
		}
		return errorResponse(status, &ErrorSummary{RequestErrors: failure.Errors})
	}

	if result == nil {
		return emptyResponse(http.StatusOK)
	}
	return jsonResponse(http.StatusOK, result)
}

// authenticate parses the Authorization header and resolves the token.
// The expected form is "Token <encoded>", scheme case-insensitive. Any
// failure yields an anonymous caller.
func (e *Endpoint) authenticate(r *http.Request) *domain.AccountMember {
	if e.Authenticator == nil {
		return nil
	}
	parts := strings.Split(r.Header.Get("Authorization"), " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "token") {
		return nil
	}
	member, err := e.Authenticator.Resolve(r.Context(), parts[1])
	if err != nil {
		return nil
	}
	return member
}

func (e *Endpoint) resolveResource(r *http.Request, member *domain.AccountMember) (any, error) {
	if e.Resource == nil {
		return &NullResource{}, nil
	}
	resource, err := e.Resource(r, member)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}
	return resource, nil
}

func (e *Endpoint) deserialize(r *http.Request) (map[string]any, error) {
	var d Deserializer
	if r.Method == http.MethodGet {
		d = QueryDeserializer{}
	} else {
		d = JSONDeserializer{}
	}
	return d.Deserialize(r)
}

// record builds and persists the audit record. Recording failures are logged
// and never affect the response.
func (e *Endpoint) record(r *http.Request, rawBody []byte, member *domain.AccountMember, resp response, traceID string) {
	log := e.log()

	host, port := splitHostPort(r)
	rec := &domain.LogRecord{
		TraceID:         traceID,
		EndpointName:    e.Name,
		SourceIP:        sourceIP(r),
		Path:            r.URL.Path,
		Host:            host,
		Port:            port,
		IsAuthenticated: member != nil,
		Method:          r.Method,
		RequestHeaders:  redact.Headers(r.Header, append([]string{"Authorization"}, e.RedactedHeaders...)),
		StatusCode:      resp.status,
		CreatedAt:       time.Now().UTC(),
	}
	if member != nil {
		rec.MemberID = &member.ID
	}
	if r.Method != http.MethodGet {
		rec.RequestPayload = redact.Payload(rawBody, e.RedactedRequestFields)
	}
	if len(resp.body) > 0 {
		rec.ResponsePayload = redact.Payload(resp.body, e.RedactedResponseFields)
	}

	if e.Recorder == nil {
		return
	}
	if err := e.Recorder.Record(r.Context(), rec); err != nil {
		log.Error("failed to record request",
			slog.String("endpoint", e.Name),
			slog.String("trace_id", traceID),
			slog.String("error", redact.Error(err)))
	}
}

func (e *Endpoint) log() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// sourceIP prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address.
func sourceIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func splitHostPort(r *http.Request) (string, int) {
	host, portStr, err := net.SplitHostPort(r.Host)
	if err != nil {
		if r.TLS != nil {
			return r.Host, 443
		}
		return r.Host, 80
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 0
	}
	return host, port
}

type bodyContextKey struct{}

func withBody(r *http.Request, body []byte) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), bodyContextKey{}, body))
}

func bodyBytes(r *http.Request) ([]byte, bool) {
	body, ok := r.Context().Value(bodyContextKey{}).([]byte)
	return body, ok
}

// Package remote implements the service collaborators over HTTP: the record
// store that holds tenants and conversations, and the document service that
// processes uploads, answers questions and manages spreadsheet links.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/capitalize-ai/docsession/internal/model"
	"github.com/capitalize-ai/docsession/pkg/metrics"
	"github.com/capitalize-ai/docsession/pkg/tracing"
)

const (
	// HeaderActiveTenant carries the tenant id a call is scoped to.
	HeaderActiveTenant = "X-Active-Company"
	// HeaderTenantName carries the tenant display name where the service needs it.
	HeaderTenantName = "X-Company-Name"

	defaultTimeout = 30 * time.Second
)

// TokenFunc returns the caller's bearer credential from ctx.
type TokenFunc func(ctx context.Context) string

// Options configures a client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Token     TokenFunc
	UserAgent string
}

// Error is a non-2xx response from a remote collaborator. A 404 unwraps to
// model.ErrNotFound.
type Error struct {
	Operation string
	Status    int
	Message   string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Operation, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Operation, e.Status, e.Message)
}

// UserMessage returns the message the collaborator reported, if any.
func (e *Error) UserMessage() string {
	if e.Message == "" {
		return "Something went wrong."
	}
	return e.Message
}

// Unwrap maps a 404 to model.ErrNotFound.
func (e *Error) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return model.ErrNotFound
	}
	return nil
}

// errorBody covers the error shapes of both collaborators.
type errorBody struct {
	Error   string `json:"error"`
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

func (b *errorBody) text() string {
	switch {
	case b == nil:
		return ""
	case b.Error != "":
		return b.Error
	case b.Detail != "":
		return b.Detail
	default:
		return b.Message
	}
}

type client struct {
	http   *resty.Client
	token  TokenFunc
	tracer trace.Tracer
}

func newClient(name string, opts Options) *client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "docsession/1.0"
	}
	token := opts.Token
	if token == nil {
		token = func(context.Context) string { return "" }
	}

	return &client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
			SetHeader("User-Agent", userAgent).
			SetTimeout(timeout),
		token:  token,
		tracer: tracing.Tracer("remote." + name),
	}
}

// request builds a request carrying the caller's credential and, when set,
// the tenant the call is scoped to.
func (c *client) request(ctx context.Context, tenantID string) *resty.Request {
	req := c.http.R().
		SetContext(ctx).
		SetError(&errorBody{})
	if tok := c.token(ctx); tok != "" {
		req.SetAuthToken(tok)
	}
	if tenantID != "" {
		req.SetHeader(HeaderActiveTenant, tenantID)
	}
	return req
}

// call runs one remote operation inside a span and records its outcome.
func (c *client) call(ctx context.Context, operation, tenantID string, fn func(ctx context.Context) (*resty.Response, error)) (*resty.Response, error) {
	ctx, span := c.tracer.Start(ctx, operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("tenant.id", tenantID)),
	)
	defer span.End()

	start := time.Now()
	resp, err := fn(ctx)
	if err != nil {
		err = fmt.Errorf("%s: %w", operation, err)
	} else if resp.IsError() {
		err = responseError(operation, resp)
	}
	metrics.RecordRemoteCall(operation, err, time.Since(start).Seconds())

	if resp != nil {
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return resp, err
	}
	return resp, nil
}

func responseError(operation string, resp *resty.Response) error {
	rerr := &Error{Operation: operation, Status: resp.StatusCode()}
	if body, ok := resp.Error().(*errorBody); ok {
		rerr.Message = body.text()
	}
	return rerr
}

// IsStatus reports whether err is a remote error with the given status.
func IsStatus(err error, status int) bool {
	var rerr *Error
	return errors.As(err, &rerr) && rerr.Status == status
}

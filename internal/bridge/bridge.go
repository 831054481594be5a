// Package bridge forwards a text payload to a single HTTP endpoint as a JSON
// envelope and hands the endpoint's response body back to the caller.
package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const contentTypeJSON = "application/json"

// Sender is the bridge contract shared by every host.
type Sender interface {
	Send(ctx context.Context, text string) (string, error)
}

// Doer executes HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Bridge POSTs envelopes to one endpoint. It is safe for concurrent use.
type Bridge struct {
	endpoint string
	field    string
	client   Doer
	log      *slog.Logger
}

// Option configures optional bridge behavior.
type Option func(*Bridge)

// WithHTTPClient overrides the default HTTP client, including its redirect
// policy.
func WithHTTPClient(client Doer) Option {
	return func(b *Bridge) {
		if client != nil {
			b.client = client
		}
	}
}

// WithEnvelopeField switches the JSON field that carries the text.
func WithEnvelopeField(field string) Option {
	return func(b *Bridge) {
		field = strings.TrimSpace(field)
		if field != "" {
			b.field = field
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(b *Bridge) {
		if log != nil {
			b.log = log
		}
	}
}

// New builds a bridge bound to endpoint, which must be an absolute http(s) URL.
func New(endpoint string, opts ...Option) (*Bridge, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("endpoint is empty")
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("endpoint scheme must be http or https (endpoint = %s)", endpoint)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("endpoint host is empty (endpoint = %s)", endpoint)
	}

	b := &Bridge{
		endpoint: endpoint,
		field:    DefaultEnvelopeField,
		client:   newHTTPClient(),
		log:      slog.Default(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}

	if !ValidEnvelopeField(b.field) {
		return nil, fmt.Errorf("envelope field must be %q or %q (field = %s)", FieldBody, FieldText, b.field)
	}

	return b, nil
}

// newHTTPClient returns a client that hands 3xx answers back instead of
// following them, since a followed redirect is replayed as a GET without
// the envelope.
func newHTTPClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Endpoint returns the URL the bridge posts to.
func (b *Bridge) Endpoint() string {
	return b.endpoint
}

// EnvelopeField returns the JSON field name wrapping the text.
func (b *Bridge) EnvelopeField() string {
	return b.field
}

// Send wraps text, posts it and returns the response body of a 2xx answer.
// Every failure is a *Error whose Kind tells transport, status, decode and
// cancellation apart.
func (b *Bridge) Send(ctx context.Context, text string) (string, error) {
	requestID := uuid.NewString()
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return "", newError(KindCanceled, "send", context.Cause(ctx))
	}

	payload, err := encodeEnvelope(b.field, text)
	if err != nil {
		return "", newError(KindDecode, "serialization error", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", newError(KindTransport, "create request", err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)

	b.log.DebugContext(ctx, "Sending request",
		"requestID", requestID,
		"endpoint", b.endpoint,
		"envelopeField", b.field,
		"payloadBytes", len(payload))

	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", newError(KindCanceled, "do request", context.Cause(ctx))
		}
		return "", newError(KindTransport, "do request", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			b.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"requestID", requestID,
				"endpoint", b.endpoint)
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		b.logFailedResponse(ctx, requestID, resp, time.Since(start))

		return "", &Error{
			Kind:       KindStatus,
			Op:         "post",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return "", newError(KindCanceled, "read response body", context.Cause(ctx))
		}
		return "", newError(KindTransport, "read response body", err)
	}

	if !utf8.Valid(body) {
		return "", newError(KindDecode, "read response body", errors.New("body is not valid UTF-8 text"))
	}

	b.log.DebugContext(ctx, "Request succeeded",
		"requestID", requestID,
		"endpoint", b.endpoint,
		"statusCode", resp.StatusCode,
		"bodyBytes", len(body),
		"durationMs", time.Since(start).Milliseconds())

	return string(body), nil
}

func (b *Bridge) logFailedResponse(
	ctx context.Context,
	requestID string,
	resp *http.Response,
	elapsed time.Duration,
) {
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, diagnosticBodyReadLimit))

	fields := []any{
		"requestID", requestID,
		"endpoint", b.endpoint,
		"statusCode", resp.StatusCode,
		"status", resp.Status,
		"body", diagnosticSnippet(resp.Header.Get("Content-Type"), body),
		"durationMs", elapsed.Milliseconds(),
	}
	if readErr != nil {
		fields = append(fields, "readError", readErr)
	}

	b.log.WarnContext(ctx, "Request failed with unexpected status", fields...)
}

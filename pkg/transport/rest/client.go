package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/getmockd/pipeline/pkg/collection"
	"github.com/getmockd/pipeline/pkg/pipe"
	"github.com/getmockd/pipeline/pkg/ratelimit"
)

const (
	domain = "rest"

	// DefaultTimeout bounds a single exchange when no timeout is configured.
	DefaultTimeout = 30 * time.Second

	tracerName = "github.com/getmockd/pipeline/pkg/transport/rest"
)

// ErrorResponse is the error body servers are expected to return.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// Transport is the HTTP pipe transport.
type Transport struct {
	httpClient *http.Client
	token      string
	signer     *Signer
	headers    http.Header
	tracer     trace.Tracer
	limiter    *ratelimit.Bucket
}

// Option configures a Transport.
type Option func(*Transport)

// WithHTTPClient uses a copy of client, so later options such as
// WithTimeout never modify the caller's client. The client's Timeout is kept.
func WithHTTPClient(client *http.Client) Option {
	return func(t *Transport) {
		if client != nil {
			c := *client
			t.httpClient = &c
		}
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(t *Transport) {
		t.httpClient.Timeout = timeout
	}
}

// WithToken sets a static bearer token.
func WithToken(token string) Option {
	return func(t *Transport) {
		t.token = token
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(t *Transport) {
		t.headers.Add(key, value)
	}
}

// WithSigner mints a short-lived HS256 token per request. It takes
// precedence over WithToken.
func WithSigner(secret, subject string, ttl time.Duration) Option {
	return func(t *Transport) {
		t.signer = NewSigner(secret, subject, ttl)
	}
}

// WithTracerProvider sets the provider used to trace exchanges. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(t *Transport) {
		if tp != nil {
			t.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithRateLimit throttles exchanges to rate per second with the given burst.
// A throttled exchange waits for a token and gives up when its context ends.
func WithRateLimit(rate float64, burst int) Option {
	return func(t *Transport) {
		if rate > 0 {
			t.limiter = ratelimit.NewBucket(rate, burst)
		}
	}
}

// New creates a Transport.
func New(opts ...Option) *Transport {
	t := &Transport{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		headers: make(http.Header),
		tracer:  otel.GetTracerProvider().Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Exchange performs req against the collection endpoint.
func (t *Transport) Exchange(ctx context.Context, req *pipe.Request) (any, error) {
	cfg := req.Config
	if cfg.URL() == nil {
		return nil, collection.InvalidArgument(domain, "collection %q has no base URL", cfg.Name())
	}

	ctx, span := t.tracer.Start(ctx, "pipe."+string(req.Op),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("pipe.collection", cfg.Name()),
			attribute.String("pipe.operation", string(req.Op)),
		))
	defer span.End()

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			err = collection.TransportFailure(domain, fmt.Errorf("rate limit wait: %w", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, collection.KindOf(err).String())
			return nil, err
		}
	}

	payload, status, err := t.exchange(ctx, req)
	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, collection.KindOf(err).String())
		return nil, err
	}
	return payload, nil
}

func (t *Transport) exchange(ctx context.Context, req *pipe.Request) (any, int, error) {
	cfg := req.Config
	var (
		resp *http.Response
		err  error
	)
	switch req.Op {
	case pipe.OpReadAll:
		resp, err = t.get(ctx, cfg.URL())
	case pipe.OpReadOne:
		resp, err = t.get(ctx, cfg.RecordURL(req.ID))
	case pipe.OpReadParams:
		u := cfg.URL()
		q := u.Query()
		for k, v := range req.Params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
		resp, err = t.get(ctx, u)
	case pipe.OpSave:
		if collection.IdentityKey(req.ID) == "" {
			resp, err = t.send(ctx, http.MethodPost, cfg.URL(), req.Body)
		} else {
			resp, err = t.send(ctx, http.MethodPut, cfg.RecordURL(req.ID), req.Body)
		}
	case pipe.OpRemove:
		resp, err = t.delete(ctx, cfg.RecordURL(req.ID))
	default:
		return nil, 0, collection.InvalidArgument(domain, "unsupported operation %q", req.Op)
	}
	if err != nil {
		return nil, 0, collection.TransportFailure(domain, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound && (req.Op == pipe.OpReadOne || req.Op == pipe.OpRemove) {
		nf := collection.NotFound(domain, cfg.Name(), req.ID)
		nf.Status = resp.StatusCode
		return nil, resp.StatusCode, nf
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, parseError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, collection.TransportFailure(domain, err)
	}
	payload, err := decode(body, cfg.ResponseRoot())
	return payload, resp.StatusCode, err
}

// decode parses body and applies the response root. An empty body is a nil
// payload.
func decode(body []byte, root string) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	data, err := oj.Parse(body)
	if err != nil {
		return nil, collection.ParseFailure(domain, err)
	}
	if root == "" {
		return data, nil
	}
	x, err := jp.ParseString(root)
	if err != nil {
		return nil, collection.ParseFailure(domain, fmt.Errorf("invalid response root %q: %w", root, err))
	}
	found := x.Get(data)
	switch len(found) {
	case 0:
		return nil, collection.ParseFailure(domain, fmt.Errorf("response root %q not found", root))
	case 1:
		return found[0], nil
	default:
		return found, nil
	}
}

func (t *Transport) get(ctx context.Context, u *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return t.do(req)
}

func (t *Transport) send(ctx context.Context, method string, u *url.URL, body collection.Record) (*http.Response, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return t.do(req)
}

func (t *Transport) delete(ctx context.Context, u *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return t.do(req)
}

func (t *Transport) do(req *http.Request) (*http.Response, error) {
	for k, vs := range t.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	switch {
	case t.signer != nil:
		token, err := t.signer.Token()
		if err != nil {
			return nil, fmt.Errorf("signing request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	case t.token != "":
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	return t.httpClient.Do(req)
}

func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	cause := fmt.Errorf("request failed: status %d", resp.StatusCode)
	var errResp ErrorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
		cause = errors.New(errResp.Message)
		if errResp.Error != "" {
			cause = fmt.Errorf("%s: %s", errResp.Error, errResp.Message)
		}
	}
	e := collection.TransportFailure(domain, cause)
	e.Status = resp.StatusCode
	return e
}

var _ pipe.Transport = (*Transport)(nil)

package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/getmockd/pipeline/pkg/collection"
	"github.com/getmockd/pipeline/pkg/pipe"
)

func mockServer(t *testing.T, handler http.HandlerFunc, opts ...collection.Option) (*httptest.Server, *collection.Config) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	cfg := collection.MustNew("users", append([]collection.Option{collection.WithBaseURL(ts.URL)}, opts...)...)
	return ts, cfg
}

func jsonHandler(t *testing.T, statusCode int, body interface{}) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if body != nil {
			if err := json.NewEncoder(w).Encode(body); err != nil {
				t.Errorf("failed to encode response: %v", err)
			}
		}
	}
}

func exchange(t *testing.T, tr *Transport, req *pipe.Request) (any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return tr.Exchange(ctx, req)
}

func TestExchange_RequestMapping(t *testing.T) {
	tests := []struct {
		name       string
		req        pipe.Request
		wantMethod string
		wantPath   string
		wantQuery  string
		wantBody   bool
	}{
		{name: "read all", req: pipe.Request{Op: pipe.OpReadAll}, wantMethod: "GET", wantPath: "/users"},
		{name: "read one", req: pipe.Request{Op: pipe.OpReadOne, ID: 7}, wantMethod: "GET", wantPath: "/users/7"},
		{name: "read params", req: pipe.Request{Op: pipe.OpReadParams, Params: map[string]string{"limit": "5"}}, wantMethod: "GET", wantPath: "/users", wantQuery: "limit=5"},
		{name: "save new", req: pipe.Request{Op: pipe.OpSave, Body: collection.Record{"name": "a"}}, wantMethod: "POST", wantPath: "/users", wantBody: true},
		{name: "save existing", req: pipe.Request{Op: pipe.OpSave, ID: "x", Body: collection.Record{"id": "x"}}, wantMethod: "PUT", wantPath: "/users/x", wantBody: true},
		{name: "remove", req: pipe.Request{Op: pipe.OpRemove, ID: "x"}, wantMethod: "DELETE", wantPath: "/users/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, cfg := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != tt.wantMethod {
					t.Errorf("method = %s, want %s", r.Method, tt.wantMethod)
				}
				if r.URL.Path != tt.wantPath {
					t.Errorf("path = %s, want %s", r.URL.Path, tt.wantPath)
				}
				if r.URL.RawQuery != tt.wantQuery {
					t.Errorf("query = %s, want %s", r.URL.RawQuery, tt.wantQuery)
				}
				if tt.wantBody {
					if ct := r.Header.Get("Content-Type"); ct != "application/json" {
						t.Errorf("content type = %q", ct)
					}
					var body map[string]any
					if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
						t.Errorf("decode body: %v", err)
					}
				}
				w.WriteHeader(http.StatusOK)
			})
			req := tt.req
			req.Config = cfg
			payload, err := exchange(t, New(), &req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if payload != nil {
				t.Errorf("empty body should yield nil payload, got %v", payload)
			}
		})
	}
}

func TestExchange_DecodesPayload(t *testing.T) {
	_, cfg := mockServer(t, jsonHandler(t, http.StatusOK, []map[string]any{
		{"id": 1, "name": "Alice"},
		{"id": 2, "name": "Bob"},
	}))

	payload, err := exchange(t, New(), &pipe.Request{Config: cfg, Op: pipe.OpReadAll})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	records, err := pipe.Records(payload)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[1]["name"] != "Bob" {
		t.Errorf("name = %v", records[1]["name"])
	}
	if collection.IdentityKey(records[0]["id"]) != "1" {
		t.Errorf("id = %v", records[0]["id"])
	}
}

func TestExchange_ResponseRoot(t *testing.T) {
	envelope := map[string]any{"data": []map[string]any{{"id": "a"}}, "total": 1}

	t.Run("extracts payload", func(t *testing.T) {
		_, cfg := mockServer(t, jsonHandler(t, http.StatusOK, envelope), collection.WithResponseRoot("$.data"))
		payload, err := exchange(t, New(), &pipe.Request{Config: cfg, Op: pipe.OpReadAll})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		records, err := pipe.Records(payload)
		if err != nil || len(records) != 1 || records[0]["id"] != "a" {
			t.Errorf("records = %v, err = %v", records, err)
		}
	})

	t.Run("missing root", func(t *testing.T) {
		_, cfg := mockServer(t, jsonHandler(t, http.StatusOK, envelope), collection.WithResponseRoot("$.items"))
		_, err := exchange(t, New(), &pipe.Request{Config: cfg, Op: pipe.OpReadAll})
		if !errors.Is(err, collection.ErrParseFailure) {
			t.Errorf("expected ParseFailure, got %v", err)
		}
	})
}

func TestExchange_Errors(t *testing.T) {
	t.Run("not found on read one", func(t *testing.T) {
		_, cfg := mockServer(t, jsonHandler(t, http.StatusNotFound, nil))
		_, err := exchange(t, New(), &pipe.Request{Config: cfg, Op: pipe.OpReadOne, ID: "x"})
		if !errors.Is(err, collection.ErrNotFound) {
			t.Fatalf("expected NotFound, got %v", err)
		}
	})

	t.Run("not found on read all is a transport failure", func(t *testing.T) {
		_, cfg := mockServer(t, jsonHandler(t, http.StatusNotFound, nil))
		_, err := exchange(t, New(), &pipe.Request{Config: cfg, Op: pipe.OpReadAll})
		if !errors.Is(err, collection.ErrTransportFailure) {
			t.Fatalf("expected TransportFailure, got %v", err)
		}
	})

	t.Run("server error carries message and status", func(t *testing.T) {
		_, cfg := mockServer(t, jsonHandler(t, http.StatusInternalServerError, ErrorResponse{Error: "internal", Message: "db down"}))
		_, err := exchange(t, New(), &pipe.Request{Config: cfg, Op: pipe.OpReadAll})
		var cerr *collection.Error
		if !errors.As(err, &cerr) {
			t.Fatalf("expected *collection.Error, got %T", err)
		}
		if cerr.Kind != collection.KindTransportFailure || cerr.Status != http.StatusInternalServerError {
			t.Errorf("kind = %v, status = %d", cerr.Kind, cerr.Status)
		}
		if !strings.Contains(err.Error(), "db down") {
			t.Errorf("error %q should carry server message", err)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		_, cfg := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{not json"))
		})
		_, err := exchange(t, New(), &pipe.Request{Config: cfg, Op: pipe.OpReadAll})
		if !errors.Is(err, collection.ErrParseFailure) {
			t.Fatalf("expected ParseFailure, got %v", err)
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		cfg := collection.MustNew("users", collection.WithBaseURL(ts.URL))
		ts.Close()
		_, err := exchange(t, New(), &pipe.Request{Config: cfg, Op: pipe.OpReadAll})
		if !errors.Is(err, collection.ErrTransportFailure) {
			t.Fatalf("expected TransportFailure, got %v", err)
		}
	})

	t.Run("no base url", func(t *testing.T) {
		_, err := exchange(t, New(), &pipe.Request{Config: collection.MustNew("users"), Op: pipe.OpReadAll})
		if !errors.Is(err, collection.ErrInvalidArgument) {
			t.Fatalf("expected InvalidArgument, got %v", err)
		}
	})
}

func TestExchange_Auth(t *testing.T) {
	t.Run("static token and headers", func(t *testing.T) {
		_, cfg := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer secret-token" {
				t.Errorf("Authorization = %q", got)
			}
			if got := r.Header.Get("X-Tenant"); got != "acme" {
				t.Errorf("X-Tenant = %q", got)
			}
		})
		_, err := exchange(t, New(WithToken("secret-token"), WithHeader("X-Tenant", "acme")), &pipe.Request{Config: cfg, Op: pipe.OpReadAll})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("signed token", func(t *testing.T) {
		_, cfg := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			sub, err := VerifyToken("s3cret", token)
			if err != nil {
				t.Errorf("VerifyToken: %v", err)
			}
			if sub != "pipectl" {
				t.Errorf("subject = %q", sub)
			}
		})
		tr := New(WithToken("ignored"), WithSigner("s3cret", "pipectl", time.Minute))
		if _, err := exchange(t, tr, &pipe.Request{Config: cfg, Op: pipe.OpReadAll}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestVerifyToken_RejectsWrongSecret(t *testing.T) {
	token, err := NewSigner("a", "me", time.Minute).Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if _, err := VerifyToken("b", token); err == nil {
		t.Error("expected verification failure")
	}
	if _, err := NewSigner("", "me", 0).Token(); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestExchange_HonorsContext(t *testing.T) {
	release := make(chan struct{})
	_, cfg := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := New().Exchange(ctx, &pipe.Request{Config: cfg, Op: pipe.OpReadAll})
		errc <- err
	}()
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled in chain, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("exchange did not return after cancel")
	}
}

func TestExchange_Tracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, cfg := mockServer(t, jsonHandler(t, http.StatusBadGateway, nil))
	tr := New(WithTracerProvider(tp))
	if _, err := exchange(t, tr, &pipe.Request{Config: cfg, Op: pipe.OpReadAll}); err == nil {
		t.Fatal("expected error")
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "pipe.read-all" {
		t.Errorf("span name = %q", span.Name())
	}
	if span.Status().Code != codes.Error {
		t.Errorf("span status = %v", span.Status().Code)
	}
	attrs := map[string]string{}
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs["pipe.collection"] != "users" || attrs["http.response.status_code"] != "502" {
		t.Errorf("attributes = %v", attrs)
	}
}

func TestTransport_WithPipe(t *testing.T) {
	_, cfg := mockServer(t, jsonHandler(t, http.StatusOK, map[string]any{"id": "a", "name": "Alice"}))
	p := pipe.New(cfg, New())

	payload, err := pipe.Await(context.Background(), func(ok pipe.SuccessFunc, fail pipe.FailureFunc) *pipe.Handle {
		return p.Read(context.Background(), "a", ok, fail)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, err := pipe.Record(payload)
	if err != nil || rec["name"] != "Alice" {
		t.Errorf("record = %v, err = %v", rec, err)
	}
}

func TestExchange_RateLimit(t *testing.T) {
	_, cfg := mockServer(t, jsonHandler(t, http.StatusOK, []any{}))
	tr := New(WithRateLimit(0.001, 1))

	if _, err := exchange(t, tr, &pipe.Request{Config: cfg, Op: pipe.OpReadAll}); err != nil {
		t.Fatalf("first exchange: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := tr.Exchange(ctx, &pipe.Request{Config: cfg, Op: pipe.OpReadAll})
	if collection.KindOf(err) != collection.KindTransportFailure {
		t.Fatalf("expected transport failure while throttled, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected wrapped deadline, got %v", err)
	}
}

func TestWithHTTPClient_CopiesClient(t *testing.T) {
	shared := &http.Client{Timeout: time.Minute}
	tr := New(WithHTTPClient(shared), WithTimeout(time.Second))

	if shared.Timeout != time.Minute {
		t.Errorf("caller's client timeout changed to %v", shared.Timeout)
	}
	if tr.httpClient == shared {
		t.Error("transport should hold its own copy of the client")
	}
	if tr.httpClient.Timeout != time.Second {
		t.Errorf("transport timeout = %v, want 1s", tr.httpClient.Timeout)
	}

	defaultTimeout := http.DefaultClient.Timeout
	New(WithHTTPClient(http.DefaultClient), WithTimeout(time.Millisecond))
	if http.DefaultClient.Timeout != defaultTimeout {
		t.Error("http.DefaultClient must not be modified")
	}
}

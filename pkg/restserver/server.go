package restserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/getmockd/pipeline/pkg/collection"
	"github.com/getmockd/pipeline/pkg/httputil"
	"github.com/getmockd/pipeline/pkg/logging"
	"github.com/getmockd/pipeline/pkg/ratelimit"
	"github.com/getmockd/pipeline/pkg/store"
	"github.com/getmockd/pipeline/pkg/transport/rest"
)

const (
	domain = "restserver"

	// FilterParam is the query parameter carrying a filter expression.
	FilterParam = "filter"

	maxBodyBytes = 10 << 20
)

// CollectionInfo describes one served collection.
type CollectionInfo struct {
	Name          string `json:"name"`
	IdentityField string `json:"identityField"`
	Count         int    `json:"count"`
}

// Server is an http.Handler serving a set of stores.
type Server struct {
	router *mux.Router
	log    *slog.Logger
	secret string
	extra  map[string]http.Handler
	limit  *ratelimit.Bucket

	mu     sync.RWMutex
	stores map[string]store.Store
}

// Option configures a Server.
type Option func(*Server)

// WithStore serves s under its collection name.
func WithStore(s store.Store) Option {
	return func(srv *Server) {
		srv.stores[s.Name()] = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(srv *Server) {
		if l != nil {
			srv.log = l
		}
	}
}

// WithBearerSecret requires every collection request to carry an HS256
// bearer token signed with secret.
func WithBearerSecret(secret string) Option {
	return func(srv *Server) {
		srv.secret = secret
	}
}

// WithHandler mounts h at path ahead of the collection routes, e.g. a
// metrics endpoint. Extra handlers are not behind the bearer check.
func WithHandler(path string, h http.Handler) Option {
	return func(srv *Server) {
		srv.extra[path] = h
	}
}

// WithRateLimit answers 429 once collection requests exceed rate per second
// beyond the given burst.
func WithRateLimit(rate float64, burst int) Option {
	return func(srv *Server) {
		if rate > 0 {
			srv.limit = ratelimit.NewBucket(rate, burst)
		}
	}
}

// New creates a Server.
func New(opts ...Option) *Server {
	srv := &Server{
		log:    logging.Nop(),
		extra:  make(map[string]http.Handler),
		stores: make(map[string]store.Store),
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.log = srv.log.With("component", domain)
	srv.routes()
	return srv
}

// Register adds or replaces the store serving s.Name().
func (srv *Server) Register(s store.Store) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.stores[s.Name()] = s
}

// ServeHTTP implements http.Handler.
func (srv *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	srv.router.ServeHTTP(w, r)
}

func (srv *Server) routes() {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusNotFound, "not_found", "no route for "+r.URL.Path)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" not allowed on "+r.URL.Path)
	})
	for path, h := range srv.extra {
		r.Handle(path, h)
	}

	wrap := func(h http.HandlerFunc) http.Handler {
		var handler http.Handler = h
		if srv.secret != "" {
			handler = RequireBearer(srv.secret)(handler)
		}
		if srv.limit != nil {
			handler = ratelimit.Middleware(srv.limit)(handler)
		}
		return srv.logRequests(handler)
	}
	r.Handle("/", wrap(srv.listCollections)).Methods(http.MethodGet).Name("collections")
	r.Handle("/{name}", wrap(srv.readAll)).Methods(http.MethodGet).Name("list")
	r.Handle("/{name}", wrap(srv.create)).Methods(http.MethodPost).Name("create")
	r.Handle("/{name}/{id}", wrap(srv.readOne)).Methods(http.MethodGet).Name("item")
	r.Handle("/{name}/{id}", wrap(srv.update)).Methods(http.MethodPut).Name("update")
	r.Handle("/{name}/{id}", wrap(srv.remove)).Methods(http.MethodDelete).Name("remove")
	srv.router = r
}

func (srv *Server) lookup(w http.ResponseWriter, r *http.Request) (store.Store, bool) {
	name := mux.Vars(r)["name"]
	srv.mu.RLock()
	s, ok := srv.stores[name]
	srv.mu.RUnlock()
	if !ok {
		httputil.WriteError(w, http.StatusNotFound, "not_found", "no collection "+name)
	}
	return s, ok
}

func (srv *Server) listCollections(w http.ResponseWriter, _ *http.Request) {
	srv.mu.RLock()
	out := make([]CollectionInfo, 0, len(srv.stores))
	for _, s := range srv.stores {
		out = append(out, CollectionInfo{Name: s.Name(), IdentityField: s.IdentityField(), Count: s.Count()})
	}
	srv.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	httputil.WriteOK(w, out)
}

func (srv *Server) readAll(w http.ResponseWriter, r *http.Request) {
	s, ok := srv.lookup(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	params := make(map[string]string, len(query))
	for k := range query {
		if k != FilterParam {
			params[k] = query.Get(k)
		}
	}

	var records []collection.Record
	if expr := query.Get(FilterParam); expr != "" {
		filtered, err := s.Filter(expr)
		if err != nil {
			httputil.WriteCollectionError(w, err)
			return
		}
		for _, rec := range filtered {
			if matches(rec, params) {
				records = append(records, rec)
			}
		}
	} else if len(params) > 0 {
		records = s.Match(params)
	} else {
		records = s.ReadAll()
	}
	if records == nil {
		records = []collection.Record{}
	}
	httputil.WriteOK(w, records)
}

func (srv *Server) readOne(w http.ResponseWriter, r *http.Request) {
	s, ok := srv.lookup(w, r)
	if !ok {
		return
	}
	rec, err := s.Read(mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteCollectionError(w, err)
		return
	}
	httputil.WriteOK(w, rec)
}

func (srv *Server) create(w http.ResponseWriter, r *http.Request) {
	s, ok := srv.lookup(w, r)
	if !ok {
		return
	}
	rec, ok := decodeRecord(w, r)
	if !ok {
		return
	}
	stored, err := s.Save(rec)
	if err != nil {
		httputil.WriteCollectionError(w, err)
		return
	}
	srv.log.Debug("record saved", "collection", s.Name(), "id", stored[s.IdentityField()])
	httputil.WriteCreated(w, stored)
}

func (srv *Server) update(w http.ResponseWriter, r *http.Request) {
	s, ok := srv.lookup(w, r)
	if !ok {
		return
	}
	rec, ok := decodeRecord(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	field := s.IdentityField()
	if v, has := rec.Identity(field); has {
		if collection.IdentityKey(v) != id {
			httputil.WriteCollectionError(w, collection.InvalidArgument(domain, "body %s %q does not match path %q", field, collection.IdentityKey(v), id))
			return
		}
	} else if existing, err := s.Read(id); err == nil {
		rec[field] = existing[field]
	} else {
		rec[field] = id
	}
	stored, err := s.Save(rec)
	if err != nil {
		httputil.WriteCollectionError(w, err)
		return
	}
	srv.log.Debug("record saved", "collection", s.Name(), "id", id)
	httputil.WriteOK(w, stored)
}

func (srv *Server) remove(w http.ResponseWriter, r *http.Request) {
	s, ok := srv.lookup(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	existing, err := s.Read(id)
	if err != nil {
		httputil.WriteCollectionError(w, err)
		return
	}
	if err := s.Remove(existing); err != nil {
		httputil.WriteCollectionError(w, err)
		return
	}
	srv.log.Debug("record removed", "collection", s.Name(), "id", id)
	httputil.WriteNoContent(w)
}

func decodeRecord(w http.ResponseWriter, r *http.Request) (collection.Record, bool) {
	var rec collection.Record
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&rec); err != nil {
		httputil.WriteCollectionError(w, collection.InvalidArgument(domain, "invalid JSON body: %v", err))
		return nil, false
	}
	if rec == nil {
		httputil.WriteCollectionError(w, collection.InvalidArgument(domain, "body must be a JSON object"))
		return nil, false
	}
	return rec, true
}

func matches(rec collection.Record, params map[string]string) bool {
	for k, v := range params {
		if collection.IdentityKey(rec[k]) != v {
			return false
		}
	}
	return true
}

func (srv *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		srv.log.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// RequireBearer rejects requests without a valid HS256 bearer token signed
// with secret.
func RequireBearer(secret string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				httputil.WriteUnauthorized(w, "missing bearer token")
				return
			}
			if _, err := rest.VerifyToken(secret, token); err != nil {
				httputil.WriteUnauthorized(w, "invalid bearer token: "+err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/getmockd/pipeline/internal/id"
	"github.com/getmockd/pipeline/pkg/cli/internal/parse"
	"github.com/getmockd/pipeline/pkg/collection"
	"github.com/getmockd/pipeline/pkg/metrics"
	"github.com/getmockd/pipeline/pkg/restserver"
	"github.com/getmockd/pipeline/pkg/store"
	"github.com/getmockd/pipeline/pkg/store/file"
	"github.com/getmockd/pipeline/pkg/store/sqlite"
)

// Store backends accepted by serve --store.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// serveOptions configures a local record server.
type serveOptions struct {
	Backend     string
	Data        string
	Collections []string
	Metrics     bool
	Secret      string
	RateLimit   float64
}

var (
	serveAddr        string
	serveBackend     string
	serveData        string
	serveCollections string
	serveMetrics     bool
	serveRateLimit   float64
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve local record stores over HTTP",
	Long: `Serve local record stores with the REST conventions pipectl reads and
writes. Collections come from --collections, or from the manifest, or from
--collection.

Backends:
  memory   records live in process memory (default)
  file     one JSON file per collection under --data (a directory)
  sqlite   one SQLite database at --data (a file)

Examples:
  pipectl serve --collections users,orders
  pipectl serve --config pipes.yaml --store sqlite --data ./pipeline.db --metrics`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := serveOptions{
			Backend:     serveBackend,
			Data:        serveData,
			Collections: parse.SplitTrim(serveCollections, ","),
			Metrics:     serveMetrics,
			Secret:      settings.Secret,
			RateLimit:   serveRateLimit,
		}
		handler, closeFn, err := buildServer(cmd.Context(), opts, settings.log)
		if err != nil {
			return err
		}
		defer func() {
			if err := closeFn(); err != nil {
				settings.log.Error("failed to close stores", "error", err)
			}
		}()

		ln, err := net.Listen("tcp", serveAddr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", serveAddr, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "serving %v on http://%s\n", opts.Collections, ln.Addr())
		return serveUntilDone(cmd.Context(), ln, handler, settings.log)
	},
}

// buildServer opens the stores and assembles the HTTP handler. The returned
// function flushes and closes the stores.
func buildServer(ctx context.Context, opts serveOptions, log *slog.Logger) (http.Handler, func() error, error) {
	names := opts.Collections
	if len(names) == 0 && settings.manifest != nil {
		names = settings.manifest.Names()
	}
	if len(names) == 0 && settings.Collection != "" {
		names = []string{settings.Collection}
	}
	if len(names) == 0 {
		return nil, nil, ErrNoCollection
	}

	persister, err := openPersister(opts, log)
	if err != nil {
		return nil, nil, err
	}

	var (
		srvOpts    = []restserver.Option{restserver.WithLogger(log)}
		persistent []*store.Persistent
		reg        *prometheus.Registry
	)
	if opts.Metrics {
		reg = prometheus.NewRegistry()
		srvOpts = append(srvOpts, restserver.WithHandler("/metrics", metrics.Handler(reg)))
	}
	if opts.Secret != "" {
		srvOpts = append(srvOpts, restserver.WithBearerSecret(opts.Secret))
	}
	if opts.RateLimit > 0 {
		srvOpts = append(srvOpts, restserver.WithRateLimit(opts.RateLimit, int(opts.RateLimit)))
	}

	closeAll := func() error {
		var errs []error
		for _, p := range persistent {
			errs = append(errs, p.Flush(context.Background()))
		}
		if persister != nil {
			errs = append(errs, persister.Close())
		}
		return errors.Join(errs...)
	}

	for _, name := range names {
		cfg, err := serveConfig(name)
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		gen, err := serveGenerator(name)
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		storeOpts := []store.Option{store.WithLogger(log), store.WithGenerator(gen)}

		var s store.Store
		if persister == nil {
			s, err = store.NewMemory(cfg, storeOpts...)
		} else {
			var p *store.Persistent
			p, err = store.OpenPersistent(ctx, cfg, persister, storeOpts...)
			if err == nil {
				persistent = append(persistent, p)
				s = p
			}
		}
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("open collection %q: %w", name, err)
		}
		if reg != nil {
			if err := metrics.RegisterStore(reg, s); err != nil {
				_ = closeAll()
				return nil, nil, err
			}
		}
		srvOpts = append(srvOpts, restserver.WithStore(s))
		log.Info("collection ready", "collection", name, "backend", opts.Backend, "records", s.Count())
	}

	return restserver.New(srvOpts...), closeAll, nil
}

func openPersister(opts serveOptions, log *slog.Logger) (store.Persister, error) {
	switch opts.Backend {
	case "", BackendMemory:
		return nil, nil
	case BackendFile:
		if opts.Data == "" {
			return nil, errors.New("--data directory is required for the file backend")
		}
		return file.New(opts.Data, file.WithLogger(log))
	case BackendSQLite:
		if opts.Data == "" {
			return nil, errors.New("--data database path is required for the sqlite backend")
		}
		return sqlite.Open(opts.Data)
	default:
		return nil, fmt.Errorf("unknown store backend %q (want memory, file, or sqlite)", opts.Backend)
	}
}

// serveConfig builds a served collection's configuration, taking the
// identity field and schema from the manifest when it declares the name.
func serveConfig(name string) (*collection.Config, error) {
	var opts []collection.Option
	if settings.manifest != nil {
		if spec, ok := settings.manifest.Lookup(name); ok {
			opts = append(opts,
				collection.WithIdentityField(spec.IdentityField),
				collection.WithSchema(spec.Schema))
		}
	}
	if settings.IDField != "" {
		opts = append(opts, collection.WithIdentityField(settings.IDField))
	}
	return collection.New(name, opts...)
}

// serveGenerator returns a fresh identity generator for the named collection.
func serveGenerator(name string) (id.Generator, error) {
	var kind string
	if settings.manifest != nil {
		if spec, ok := settings.manifest.Lookup(name); ok {
			kind = spec.Generator
		}
	}
	return id.ByName(kind)
}

func serveUntilDone(ctx context.Context, ln net.Listener, h http.Handler, log *slog.Logger) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8080", "Listen address")
	serveCmd.Flags().StringVar(&serveBackend, "store", BackendMemory, "Store backend (memory, file, sqlite)")
	serveCmd.Flags().StringVar(&serveData, "data", "", "Data directory (file) or database path (sqlite)")
	serveCmd.Flags().StringVar(&serveCollections, "collections", "", "Comma-separated collections to serve")
	serveCmd.Flags().BoolVar(&serveMetrics, "metrics", false, "Expose Prometheus metrics at /metrics")
	serveCmd.Flags().Float64Var(&serveRateLimit, "rate-limit", 0, "Maximum collection requests per second (0 disables)")
	rootCmd.AddCommand(serveCmd)
}

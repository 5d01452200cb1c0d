package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/pipeline/internal/cliconfig"
	"github.com/getmockd/pipeline/pkg/config"
	"github.com/getmockd/pipeline/pkg/logging"
)

var (
	// Persistent flags available to all subcommands
	configPath     string
	envFile        string
	baseURL        string
	collectionName string
	idField        string
	token          string
	secret         string
	timeout        time.Duration
	logLevel       string
	logFormat      string

	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// settings is the resolved configuration shared by subcommands.
var settings struct {
	cliconfig.Settings
	manifest *config.Manifest
	log      *slog.Logger
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pipectl",
	Short: "pipectl reads and writes remote record collections",
	Long: `pipectl drives remote REST collections through asynchronous pipes and
serves local record stores over the same HTTP conventions.

Settings come from flags, PIPECTL_* environment variables, a .env file,
and a collection manifest (--config), in that order of precedence.`,
	SilenceUsage:      true,
	SilenceErrors:     true, // We handle errors in Main()
	PersistentPreRunE: resolveSettings,
}

// Main runs pipectl and returns its exit code.
func Main() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// Execute runs pipectl and exits the process.
func Execute() {
	os.Exit(Main())
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Collection manifest (.yaml, .yml, .toml, .json)")
	pf.StringVar(&envFile, "env-file", "", "Dotenv file to load (default: .env when present)")
	pf.StringVar(&baseURL, "base-url", "", "Base URL of the remote service")
	pf.StringVarP(&collectionName, "collection", "c", "", "Collection name")
	pf.StringVar(&idField, "id-field", "", "Record identity field (default: id)")
	pf.StringVar(&token, "token", "", "Static bearer token")
	pf.StringVar(&secret, "secret", "", "HS256 secret for signed bearer tokens")
	pf.DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	pf.StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
}

// resolveSettings layers env, .env and manifest values under explicit flags.
func resolveSettings(cmd *cobra.Command, _ []string) error {
	s, err := cliconfig.Load(envFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	override := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	override("config", &s.Config, configPath)
	override("base-url", &s.BaseURL, baseURL)
	override("collection", &s.Collection, collectionName)
	override("id-field", &s.IDField, idField)
	override("token", &s.Token, token)
	override("secret", &s.Secret, secret)
	override("log-level", &s.LogLevel, logLevel)
	override("log-format", &s.LogFormat, logFormat)
	if flags.Changed("timeout") {
		s.Timeout = timeout
	}

	settings.Settings = s
	settings.log = logging.New(logging.Config{
		Level:  logging.ParseLevel(s.LogLevel),
		Format: logging.ParseFormat(s.LogFormat),
		Output: cmd.ErrOrStderr(),
	})

	if s.Config != "" {
		m, err := config.LoadManifest(s.Config)
		if err != nil {
			return err
		}
		settings.manifest = m
		if s.Collection == "" && len(m.Collections) == 1 {
			settings.Collection = m.Collections[0].Name
		}
	}
	settings.log.Debug("settings resolved", "collection", settings.Collection, "baseURL", settings.BaseURL, "config", s.Config)
	return nil
}

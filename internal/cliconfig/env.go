package cliconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultEnvFile is the dotenv file loaded when none is named.
const DefaultEnvFile = ".env"

// Settings holds the values pipectl can take from the environment.
type Settings struct {
	Config     string        `env:"PIPECTL_CONFIG"`
	BaseURL    string        `env:"PIPECTL_BASE_URL"`
	Collection string        `env:"PIPECTL_COLLECTION"`
	IDField    string        `env:"PIPECTL_ID_FIELD"`
	Token      string        `env:"PIPECTL_TOKEN"`
	Secret     string        `env:"PIPECTL_SECRET"`
	Timeout    time.Duration `env:"PIPECTL_TIMEOUT" envDefault:"30s"`
	LogLevel   string        `env:"PIPECTL_LOG_LEVEL" envDefault:"warn"`
	LogFormat  string        `env:"PIPECTL_LOG_FORMAT" envDefault:"text"`
}

// Load reads the dotenv file at path (DefaultEnvFile when empty) and then
// parses Settings from the environment. A missing default file is ignored;
// a missing named file is an error.
func Load(path string) (Settings, error) {
	named := path != ""
	if !named {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if named || !errors.Is(err, fs.ErrNotExist) {
			return Settings{}, fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	return Parse()
}

// Parse reads Settings from the current environment only.
func Parse() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}
	return s, nil
}

// Lookup reports whether the named variable is set, for callers that need
// to tell an explicit value from a default.
func Lookup(name string) bool {
	_, ok := os.LookupEnv(name)
	return ok
}

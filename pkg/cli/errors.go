package cli

import "errors"

// Common CLI errors
var (
	ErrNoCollection = errors.New("no collection selected - pass --collection or set PIPECTL_COLLECTION")
	ErrNoBaseURL    = errors.New("no base URL - pass --base-url, set PIPECTL_BASE_URL, or declare it in the manifest")
	ErrNoManifest   = errors.New("no manifest - pass --config or set PIPECTL_CONFIG")
)

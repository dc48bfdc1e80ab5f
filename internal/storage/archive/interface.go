// internal/storage/archive/interface.go
package archive

import (
	"context"
	"fmt"
	"mime"
	"path"

	"github.com/newthinker/driftlab/internal/core"
)

// Storage holds run artifacts (trade ledgers, equity curves, results) and
// offline market data snapshots. Paths are slash separated and relative.
type Storage interface {
	// Write stores data at the given path
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths under the prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// Config selects and configures a backend
type Config struct {
	Type string // "localfs" or "s3"
	Path string
	S3   S3Config
}

// New builds the backend named by cfg.Type
func New(cfg Config) (Storage, error) {
	switch cfg.Type {
	case "", "localfs":
		if cfg.Path == "" {
			return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("localfs storage requires a path"))
		}
		return NewLocalFS(cfg.Path)
	case "s3":
		if cfg.S3.Bucket == "" {
			return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("s3 storage requires a bucket"))
		}
		return NewS3(cfg.S3)
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown storage type %q", cfg.Type))
	}
}

// contentType guesses the MIME type of an artifact from its extension
func contentType(p string) string {
	switch path.Ext(p) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	}
	if t := mime.TypeByExtension(path.Ext(p)); t != "" {
		return t
	}
	return "application/octet-stream"
}

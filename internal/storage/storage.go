// Package storage abstracts the object store holding the columnar dataset.
// It provides a unified API over a local file system backend and a Google
// Cloud Storage backend; the merge-upload store and the query engine only
// ever see the ObjectStore interface.
package storage

import (
	"context"
	"errors"
	"io"

	"github.com/mitchellh/mapstructure"

	"github.com/fitledger/fitledger/internal/config"
	"github.com/fitledger/fitledger/internal/support/exception"

	"go.uber.org/fx"
)

// ErrObjectNotFound signals that the requested object does not exist.
// Callers treat this as a normal empty state, never as a failure.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore defines the object storage operations used by the pipeline.
// Keys are slash-separated paths relative to the configured root
// (bucket or base directory).
type ObjectStore interface {
	// Upload replaces the object at key with the contents of data.
	// Implementations must replace atomically: a crash mid-write leaves
	// either the previous object or the new one, never a truncated object.
	Upload(ctx context.Context, key string, data io.Reader) error
	// Download returns a reader over the object at key. It returns
	// ErrObjectNotFound (possibly wrapped) when the object does not exist.
	// The caller must close the returned reader.
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object at key. Deleting a missing object is not
	// an error.
	Delete(ctx context.Context, key string) error
	// List calls fn for each object key under prefix.
	List(ctx context.Context, prefix string, fn func(key string) error) error
	// Close releases backend resources.
	Close() error
}

// NewObjectStore constructs the ObjectStore selected by the storage
// configuration block. The backend-specific options are decoded with
// mapstructure using the yaml tag names.
func NewObjectStore(cfg *config.Config) (ObjectStore, error) {
	sc := cfg.Fitledger.Storage
	switch sc.Type {
	case "local", "":
		var opts LocalOptions
		if err := decodeOptions(sc.Options, &opts); err != nil {
			return nil, err
		}
		return NewLocalStore(opts)
	case "gcs":
		var opts GCSOptions
		if err := decodeOptions(sc.Options, &opts); err != nil {
			return nil, err
		}
		return NewGCSStore(context.Background(), opts)
	default:
		return nil, exception.Newf(exception.ModuleConfig, "unknown storage type %q", sc.Type)
	}
}

func decodeOptions(raw map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return exception.New(exception.ModuleConfig, "failed to create storage options decoder", err, false)
	}
	if err := decoder.Decode(raw); err != nil {
		return exception.New(exception.ModuleConfig, "failed to decode storage options", err, false)
	}
	return nil
}

// Module provides the configured ObjectStore and closes it on shutdown.
var Module = fx.Options(
	fx.Provide(NewObjectStore),
	fx.Invoke(func(lc fx.Lifecycle, store ObjectStore) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return store.Close()
			},
		})
	}),
)

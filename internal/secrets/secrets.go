// Package secrets manages the OAuth client credentials and refresh token for
// the wearable provider. The credential mapping lives as a single JSON
// object in a managed location (a local file or a GCS object) and is
// rewritten in full whenever the refresh token rotates.
package secrets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"

	"github.com/mitchellh/mapstructure"

	"github.com/fitledger/fitledger/internal/config"
	"github.com/fitledger/fitledger/internal/storage"
	"github.com/fitledger/fitledger/internal/support/exception"
	"github.com/fitledger/fitledger/internal/support/logger"

	"go.uber.org/fx"
)

// ErrSecretNotFound signals that the credential mapping has not been
// provisioned at the configured location.
var ErrSecretNotFound = errors.New("secret not found")

// Credentials is the credential mapping held in the secret store.
type Credentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
}

// Store reads and rotates the credential mapping.
//
// The backing store has no partial-field update and no versioning:
// UpdateRefreshToken performs a read-merge-write of the full mapping, and a
// concurrent writer can be lost (last-write-wins). This is acceptable under
// the single-scheduled-run assumption.
type Store interface {
	// Fetch returns the current credential mapping.
	Fetch(ctx context.Context) (Credentials, error)
	// UpdateRefreshToken overwrites only the refresh-token field, leaving
	// the client id and secret untouched.
	UpdateRefreshToken(ctx context.Context, refreshToken string) error
}

// objectSecretStore implements Store over an ObjectStore holding a single
// JSON object. The file and GCS backends differ only in the ObjectStore
// they are constructed with.
type objectSecretStore struct {
	store storage.ObjectStore
	key   string
}

var _ Store = (*objectSecretStore)(nil)

func (s *objectSecretStore) Fetch(ctx context.Context) (Credentials, error) {
	var creds Credentials
	r, err := s.store.Download(ctx, s.key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return creds, exception.New(exception.ModuleSecrets, "credential mapping is not provisioned", ErrSecretNotFound, false)
		}
		return creds, exception.New(exception.ModuleSecrets, "failed to read credential mapping", err, false)
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return creds, exception.New(exception.ModuleSecrets, "failed to read credential mapping", err, false)
	}
	if err := json.Unmarshal(raw, &creds); err != nil {
		return creds, exception.New(exception.ModuleSecrets, "credential mapping is not valid JSON", err, false)
	}
	return creds, nil
}

func (s *objectSecretStore) UpdateRefreshToken(ctx context.Context, refreshToken string) error {
	// Read-merge-write: the store has no partial-field update, so the full
	// mapping is fetched, the refresh token replaced and the mapping
	// rewritten wholesale.
	creds, err := s.Fetch(ctx)
	if err != nil {
		return err
	}
	creds.RefreshToken = refreshToken

	raw, err := json.Marshal(creds)
	if err != nil {
		return exception.New(exception.ModuleSecrets, "failed to encode credential mapping", err, false)
	}
	if err := s.store.Upload(ctx, s.key, bytes.NewReader(raw)); err != nil {
		return exception.New(exception.ModuleSecrets, "failed to persist rotated refresh token", err, false)
	}
	logger.Debugf("Rotated refresh token persisted to secret store.")
	return nil
}

type fileOptions struct {
	Path string `yaml:"path"`
}

type gcsOptions struct {
	Bucket          string `yaml:"bucket"`
	Object          string `yaml:"object"`
	CredentialsFile string `yaml:"credentials_file"`
}

// NewStore constructs the secret store selected by the secrets
// configuration block.
func NewStore(cfg *config.Config) (Store, error) {
	sc := cfg.Fitledger.Secrets
	switch sc.Type {
	case "file", "":
		var opts fileOptions
		if err := decodeOptions(sc.Options, &opts); err != nil {
			return nil, err
		}
		if opts.Path == "" {
			return nil, exception.Newf(exception.ModuleConfig, "secrets: path must be specified for the file backend")
		}
		backing, err := storage.NewLocalStore(storage.LocalOptions{BaseDir: filepath.Dir(opts.Path)})
		if err != nil {
			return nil, exception.New(exception.ModuleSecrets, "failed to open secret file location", err, false)
		}
		return &objectSecretStore{store: backing, key: filepath.Base(opts.Path)}, nil
	case "gcs":
		var opts gcsOptions
		if err := decodeOptions(sc.Options, &opts); err != nil {
			return nil, err
		}
		if opts.Object == "" {
			return nil, exception.Newf(exception.ModuleConfig, "secrets: object must be specified for the gcs backend")
		}
		backing, err := storage.NewGCSStore(context.Background(), storage.GCSOptions{
			Bucket:          opts.Bucket,
			CredentialsFile: opts.CredentialsFile,
		})
		if err != nil {
			return nil, exception.New(exception.ModuleSecrets, "failed to open secret bucket", err, false)
		}
		return &objectSecretStore{store: backing, key: opts.Object}, nil
	default:
		return nil, exception.Newf(exception.ModuleConfig, "unknown secrets type %q", sc.Type)
	}
}

// NewStoreWithBacking builds a Store over an existing ObjectStore. Used by
// tests and by deployments that co-locate the secret with the dataset.
func NewStoreWithBacking(backing storage.ObjectStore, key string) Store {
	return &objectSecretStore{store: backing, key: key}
}

func decodeOptions(raw map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return exception.New(exception.ModuleConfig, "failed to create secrets options decoder", err, false)
	}
	if err := decoder.Decode(raw); err != nil {
		return exception.New(exception.ModuleConfig, "failed to decode secrets options", err, false)
	}
	return nil
}

// Module provides the configured secret store.
var Module = fx.Options(
	fx.Provide(NewStore),
)

package config

import (
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fitledger/fitledger/internal/support/exception"
	"github.com/fitledger/fitledger/internal/support/logger"

	"go.uber.org/fx"
)

const moduleName = exception.ModuleConfig

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	// EmbeddedConfig contains the raw bytes of the configuration file.
	EmbeddedConfig EmbeddedConfig
	// EnvFilePath is the path to the .env file, if any.
	EnvFilePath string `name:"envFilePath" optional:"true"`
}

// LoadConfig loads configuration from the embedded YAML and environment
// variables. `${VAR}` references in the YAML are expanded against the
// environment after the optional .env file has been loaded, so credentials
// and bucket names never need to live in the embedded file.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()

	expanded := os.Expand(string(embeddedConfig), func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		// Leave unknown references untouched so missing variables surface
		// as validation failures instead of silently emptying fields.
		return "${" + key + "}"
	})

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, exception.New(moduleName, "failed to unmarshal embedded config", err, false)
	}
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads and provides *Config.
// It also sets the global logger level from the loaded configuration.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := LoadConfig(params.EnvFilePath, params.EmbeddedConfig)
	if err != nil {
		return nil, err
	}

	logger.SetLogLevel(cfg.Fitledger.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Fitledger.System.Logging.Level)

	return cfg, nil
}

// Module provides the application configuration.
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
)

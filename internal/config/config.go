// Package config loads viewcore settings from an optional YAML file and
// VIEWCORE_* environment variables. Environment values override the file.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"viewcore/internal/blob"
	"viewcore/internal/codec"
	"viewcore/internal/core"
	"viewcore/pkg/domain"
)

// EnvConfigFile names the YAML file read before the environment.
const EnvConfigFile = "VIEWCORE_CONFIG"

// Config is the full process configuration.
type Config struct {
	Storage core.StoreConfig `yaml:"storage"`
	State   StateConfig      `yaml:"state"`
	Log     LogConfig        `yaml:"log"`
	Metrics MetricsConfig    `yaml:"metrics"`
}

// StateConfig selects the state saving method.
type StateConfig struct {
	Method      domain.StateSavingMethod `yaml:"method"`
	Partial     bool                     `yaml:"partial"`
	TokenSecret string                   `yaml:"token_secret"`
	TokenTTL    time.Duration            `yaml:"token_ttl"`
}

type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// MetricsConfig picks an exporter: none, expvar or prometheus.
type MetricsConfig struct {
	Exporter  string `yaml:"exporter"`
	Namespace string `yaml:"namespace"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Storage: core.StoreConfig{Driver: core.StorageMemory, MaxViews: 20},
		State:   StateConfig{Method: domain.StateSavingServer, Partial: true, TokenTTL: time.Hour},
		Log:     LogConfig{Format: "text", Level: "info"},
		Metrics: MetricsConfig{Exporter: "none", Namespace: "viewcore"},
	}
}

// Load reads the process environment.
func Load() (Config, error) { return LoadFrom(os.LookupEnv) }

// LoadFrom builds a Config from defaults, the file named by VIEWCORE_CONFIG
// and then the variables visible through lookup.
func LoadFrom(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path, ok := lookup(EnvConfigFile); ok && path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile decodes YAML at path over cfg. Unknown keys are rejected.
func LoadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = f.Close() }()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

type envVar struct {
	name string
	set  func(cfg *Config, v string) error
}

func str(dst func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, v string) error { *dst(cfg) = v; return nil }
}

var envVars = []envVar{
	{"VIEWCORE_STORAGE_DRIVER", func(c *Config, v string) error { c.Storage.Driver = core.StorageDriver(v); return nil }},
	{"VIEWCORE_SQLITE_PATH", str(func(c *Config) *string { return &c.Storage.SQLitePath })},
	{"VIEWCORE_POSTGRES_DSN", str(func(c *Config) *string { return &c.Storage.PostgresDSN })},
	{"VIEWCORE_BOLT_PATH", str(func(c *Config) *string { return &c.Storage.BoltPath })},
	{"VIEWCORE_MAX_VIEWS", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		c.Storage.MaxViews = n
		return err
	}},
	{"VIEWCORE_BLOB_DRIVER", func(c *Config, v string) error { c.Storage.Blob.Driver = blob.Driver(v); return nil }},
	{"VIEWCORE_BLOB_PREFIX", str(func(c *Config) *string { return &c.Storage.BlobPrefix })},
	{"VIEWCORE_BLOB_FS_ROOT", str(func(c *Config) *string { return &c.Storage.Blob.FSRoot })},
	{"VIEWCORE_BLOB_S3_BUCKET", str(func(c *Config) *string { return &c.Storage.Blob.S3.Bucket })},
	{"VIEWCORE_BLOB_S3_REGION", str(func(c *Config) *string { return &c.Storage.Blob.S3.Region })},
	{"VIEWCORE_BLOB_S3_ENDPOINT", str(func(c *Config) *string { return &c.Storage.Blob.S3.Endpoint })},
	{"VIEWCORE_BLOB_S3_PATH_STYLE", func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		c.Storage.Blob.S3.PathStyle = b
		return err
	}},
	{"VIEWCORE_STATE_METHOD", func(c *Config, v string) error {
		c.State.Method = domain.StateSavingMethod(strings.ToLower(v))
		return nil
	}},
	{"VIEWCORE_PARTIAL_STATE", func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		c.State.Partial = b
		return err
	}},
	{"VIEWCORE_TOKEN_SECRET", str(func(c *Config) *string { return &c.State.TokenSecret })},
	{"VIEWCORE_TOKEN_TTL", func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		c.State.TokenTTL = d
		return err
	}},
	{"VIEWCORE_LOG_FORMAT", str(func(c *Config) *string { return &c.Log.Format })},
	{"VIEWCORE_LOG_LEVEL", str(func(c *Config) *string { return &c.Log.Level })},
	{"VIEWCORE_METRICS_EXPORTER", str(func(c *Config) *string { return &c.Metrics.Exporter })},
	{"VIEWCORE_METRICS_NAMESPACE", str(func(c *Config) *string { return &c.Metrics.Namespace })},
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error
	for _, ev := range envVars {
		v, ok := lookup(ev.name)
		if !ok || v == "" {
			continue
		}
		if err := ev.set(cfg, v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ev.name, err))
		}
	}
	return errors.Join(errs...)
}

// Validate reports inconsistent settings.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case core.StorageMemory, core.StorageSQLite, core.StoragePostgres, core.StorageBolt, core.StorageBlob:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	if c.Storage.MaxViews < 0 {
		errs = append(errs, errors.New("max views must not be negative"))
	}
	switch c.State.Method {
	case domain.StateSavingServer:
	case domain.StateSavingClient:
		if len(c.State.TokenSecret) < codec.MinSecretLen {
			errs = append(errs, fmt.Errorf("client state needs a token secret of at least %d bytes", codec.MinSecretLen))
		}
		if c.State.TokenTTL <= 0 {
			errs = append(errs, errors.New("client state needs a positive token ttl"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown state method %q", c.State.Method))
	}
	switch c.Metrics.Exporter {
	case "", "none", "expvar", "prometheus":
	default:
		errs = append(errs, fmt.Errorf("unknown metrics exporter %q", c.Metrics.Exporter))
	}
	return errors.Join(errs...)
}

// Logger builds the configured logger writing to w.
func (c Config) Logger(w io.Writer) (core.Logger, error) {
	return core.NewLogger(c.Log.Format, c.Log.Level, w)
}

// MetricsRecorder returns the configured recorder, or nil for "none".
// Prometheus collectors register with reg.
func (c Config) MetricsRecorder(reg prometheus.Registerer) (core.MetricsRecorder, error) {
	switch c.Metrics.Exporter {
	case "", "none":
		return nil, nil
	case "expvar":
		return core.NewExpvarRecorder(c.Metrics.Namespace), nil
	case "prometheus":
		return core.NewPrometheusRecorder(c.Metrics.Namespace, reg)
	default:
		return nil, fmt.Errorf("unknown metrics exporter %q", c.Metrics.Exporter)
	}
}

// OpenStateManager builds the state manager for the configured method.
// The returned store is nil for client state saving and must be closed by
// the caller otherwise.
func (c Config) OpenStateManager(ctx context.Context, opts ...core.StateManagerOption) (*core.StateManager, domain.StateStore, error) {
	opts = append([]core.StateManagerOption{core.WithPartialState(c.State.Partial)}, opts...)
	if c.State.Method == domain.StateSavingClient {
		signer, err := codec.NewSigner([]byte(c.State.TokenSecret), c.State.TokenTTL)
		if err != nil {
			return nil, nil, err
		}
		m, err := core.NewStateManager(append(opts, core.WithClientState(signer))...)
		return m, nil, err
	}
	store, err := core.OpenStateStore(ctx, c.Storage)
	if err != nil {
		return nil, nil, err
	}
	m, err := core.NewStateManager(append(opts, core.WithServerState(store))...)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return m, store, nil
}

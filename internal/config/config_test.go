package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/prometheus/client_golang/prometheus"

	"viewcore/internal/blob"
	"viewcore/internal/core"
	"viewcore/pkg/domain"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(env(nil))
	assert.Equal(t, err, nil)
	assert.Equal(t, cfg, Default())
	assert.Equal(t, cfg.Storage.Driver, core.StorageMemory)
	assert.Equal(t, cfg.State.Method, domain.StateSavingServer)
	assert.Equal(t, cfg.State.Partial, true)
}

func TestLoadEnvOverrides(t *testing.T) {
	cfg, err := LoadFrom(env(map[string]string{
		"VIEWCORE_STORAGE_DRIVER":     "blob",
		"VIEWCORE_BLOB_DRIVER":        "s3",
		"VIEWCORE_BLOB_S3_BUCKET":     "views",
		"VIEWCORE_BLOB_S3_PATH_STYLE": "true",
		"VIEWCORE_MAX_VIEWS":          "5",
		"VIEWCORE_STATE_METHOD":       "CLIENT",
		"VIEWCORE_TOKEN_SECRET":       "0123456789abcdef",
		"VIEWCORE_TOKEN_TTL":          "90s",
		"VIEWCORE_PARTIAL_STATE":      "false",
		"VIEWCORE_LOG_FORMAT":         "json",
	}))
	assert.Equal(t, err, nil)
	assert.Equal(t, cfg.Storage.Driver, core.StorageBlob)
	assert.Equal(t, cfg.Storage.Blob.Driver, blob.DriverS3)
	assert.Equal(t, cfg.Storage.Blob.S3.Bucket, "views")
	assert.Equal(t, cfg.Storage.Blob.S3.PathStyle, true)
	assert.Equal(t, cfg.Storage.MaxViews, 5)
	assert.Equal(t, cfg.State.Method, domain.StateSavingClient)
	assert.Equal(t, cfg.State.TokenTTL, 90*time.Second)
	assert.Equal(t, cfg.State.Partial, false)
	assert.Equal(t, cfg.Log.Format, "json")
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "viewcore.yaml")
	doc := `
storage:
  driver: sqlite
  sqlite_path: /var/lib/viewcore/views.db
state:
  method: server
  partial: false
  token_ttl: 2h
log:
  level: debug
`
	assert.Equal(t, os.WriteFile(path, []byte(doc), 0o600), nil)

	cfg, err := LoadFrom(env(map[string]string{
		EnvConfigFile:        path,
		"VIEWCORE_LOG_LEVEL": "warn",
	}))
	assert.Equal(t, err, nil)
	assert.Equal(t, cfg.Storage.Driver, core.StorageSQLite)
	assert.Equal(t, cfg.Storage.SQLitePath, "/var/lib/viewcore/views.db")
	assert.Equal(t, cfg.State.Partial, false)
	assert.Equal(t, cfg.State.TokenTTL, 2*time.Hour)
	assert.Equal(t, cfg.Log.Level, "warn")
	assert.Equal(t, cfg.Log.Format, "text")
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	assert.Equal(t, os.WriteFile(path, []byte("storage:\n  drivr: memory\n"), 0o600), nil)
	_, err := LoadFrom(env(map[string]string{EnvConfigFile: path}))
	assert.NotEqual(t, err, nil)
}

func TestLoadFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	assert.Equal(t, os.WriteFile(path, nil, 0o600), nil)
	cfg := Default()
	assert.Equal(t, LoadFile(path, &cfg), nil)
	assert.Equal(t, cfg, Default())
}

func TestValidate(t *testing.T) {
	cases := map[string]map[string]string{
		"driver":       {"VIEWCORE_STORAGE_DRIVER": "redis"},
		"method":       {"VIEWCORE_STATE_METHOD": "cookie"},
		"short secret": {"VIEWCORE_STATE_METHOD": "client", "VIEWCORE_TOKEN_SECRET": "short"},
		"exporter":     {"VIEWCORE_METRICS_EXPORTER": "statsd"},
		"bad int":      {"VIEWCORE_MAX_VIEWS": "many"},
		"bad bool":     {"VIEWCORE_PARTIAL_STATE": "sometimes"},
		"negative":     {"VIEWCORE_MAX_VIEWS": "-1"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom(env(vars))
			assert.NotEqual(t, err, nil)
		})
	}
}

func TestLogger(t *testing.T) {
	cfg := Default()
	cfg.Log = LogConfig{Format: "json", Level: "debug"}
	var buf bytes.Buffer
	l, err := cfg.Logger(&buf)
	assert.Equal(t, err, nil)
	l.Debug("restored", "view", "orders")
	assert.Equal(t, strings.Contains(buf.String(), `"view":"orders"`), true)

	cfg.Log.Format = "xml"
	_, err = cfg.Logger(&buf)
	assert.NotEqual(t, err, nil)
}

func TestMetricsRecorder(t *testing.T) {
	cfg := Default()
	m, err := cfg.MetricsRecorder(nil)
	assert.Equal(t, err, nil)
	assert.Equal(t, m, nil)

	cfg.Metrics = MetricsConfig{Exporter: "prometheus", Namespace: "cfgtest"}
	m, err = cfg.MetricsRecorder(prometheus.NewRegistry())
	assert.Equal(t, err, nil)
	assert.NotEqual(t, m, nil)

	cfg.Metrics = MetricsConfig{Exporter: "expvar", Namespace: "viewcore_config_test"}
	m, err = cfg.MetricsRecorder(nil)
	assert.Equal(t, err, nil)
	assert.NotEqual(t, m, nil)
}

func TestOpenStateManager(t *testing.T) {
	ctx := context.Background()
	cfg := Default()
	m, store, err := cfg.OpenStateManager(ctx)
	assert.Equal(t, err, nil)
	assert.Equal(t, m.Method(), domain.StateSavingServer)
	assert.NotEqual(t, store, nil)
	assert.Equal(t, store.Close(), nil)

	cfg.State = StateConfig{Method: domain.StateSavingClient, TokenSecret: "0123456789abcdef", TokenTTL: time.Minute}
	m, store, err = cfg.OpenStateManager(ctx)
	assert.Equal(t, err, nil)
	assert.Equal(t, m.Method(), domain.StateSavingClient)
	assert.Equal(t, store, nil)

	cfg = Default()
	cfg.Storage = core.StoreConfig{Driver: core.StorageBolt, BoltPath: filepath.Join(t.TempDir(), "v.bolt")}
	_, store, err = cfg.OpenStateManager(ctx)
	assert.Equal(t, err, nil)
	assert.Equal(t, store.Close(), nil)
}

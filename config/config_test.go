package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crank25519.mleku.dev/client"
	"crank25519.mleku.dev/host"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, Log{Level: "info", Format: "console"}, c.Log)
	assert.Equal(t, "memory", c.Store.Backend)
	assert.Equal(t, host.DefaultConfig.MaxInstructionsPerTx, c.Bank.MaxInstructionsPerTx)
	assert.Equal(t, host.DefaultRent, c.Bank.Rent)
	assert.Equal(t, client.DefaultOptions.ChunkSize, c.Client.ChunkSize)
	assert.Equal(t, client.DefaultOptions.CrankBatch, c.Client.CrankBatch)
	assert.Empty(t, c.Metrics.Buckets)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crank.yaml")
	data := `
log:
  level: debug
  format: json
store:
  backend: pebble
  path: /var/lib/crank
bank:
  maxInstructionsPerTx: 16
  rent:
    lamportsPerByteYear: 10
    exemptionThreshold: 1
client:
  chunkSize: 512
  timeout: 90s
metrics:
  listen: 127.0.0.1:9102
  buckets: [1, 4, 16]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, Log{Level: "debug", Format: "json"}, c.Log)
	assert.Equal(t, Store{Backend: "pebble", Path: "/var/lib/crank"}, c.Store)
	assert.Equal(t, 16, c.Bank.MaxInstructionsPerTx)
	assert.Equal(t, host.Rent{LamportsPerByteYear: 10, ExemptionThreshold: 1}, c.Bank.Rent)
	assert.Equal(t, 512, c.Client.ChunkSize)
	assert.Equal(t, client.DefaultOptions.CrankBatch, c.Client.CrankBatch)
	assert.Equal(t, 90*time.Second, c.Client.Timeout)
	assert.Equal(t, "127.0.0.1:9102", c.Metrics.Listen)
	assert.Equal(t, []float64{1, 4, 16}, c.Metrics.Buckets)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("CRANK_STORE_BACKEND", "leveldb")
	t.Setenv("CRANK_STORE_PATH", "/tmp/crank")
	t.Setenv("CRANK_CLIENT_CRANKBATCH", "8")
	t.Setenv("CRANK_CLIENT_TIMEOUT", "2m")
	t.Setenv("CRANK_BANK_AIRDROP", "42")
	t.Setenv("CRANK_METRICS_BUCKETS", "1,2,3")

	c, err := Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, Store{Backend: "leveldb", Path: "/tmp/crank"}, c.Store)
	assert.Equal(t, 8, c.Client.CrankBatch)
	assert.Equal(t, 2*time.Minute, c.Client.Timeout)
	assert.Equal(t, uint64(42), c.Bank.Airdrop)
	assert.Equal(t, []float64{1, 2, 3}, c.Metrics.Buckets)
}

func TestLoadMissingFile(t *testing.T) {
	v := viper.New()
	v.SetConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load(v)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"log format", map[string]string{"CRANK_LOG_FORMAT": "xml"}},
		{"backend", map[string]string{"CRANK_STORE_BACKEND": "sqlite"}},
		{"backend without path", map[string]string{"CRANK_STORE_BACKEND": "bolt"}},
		{"instruction limit", map[string]string{"CRANK_BANK_MAXINSTRUCTIONSPERTX": "0"}},
		{"chunk size", map[string]string{"CRANK_CLIENT_CHUNKSIZE": "-1"}},
		{"buckets", map[string]string{"CRANK_METRICS_BUCKETS": "4,2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(viper.New())
			assert.Error(t, err)
		})
	}
}

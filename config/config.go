// Package config loads crankctl settings from defaults, an optional YAML
// file and CRANK_ prefixed environment variables, in increasing priority.
package config

import (
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"crank25519.mleku.dev/client"
	"crank25519.mleku.dev/host"
)

// EnvPrefix prefixes every environment override, e.g. CRANK_STORE_BACKEND
const EnvPrefix = "CRANK"

type Config struct {
	Log     Log            `mapstructure:"log"`
	Store   Store          `mapstructure:"store"`
	Bank    Bank           `mapstructure:"bank"`
	Client  client.Options `mapstructure:"client"`
	Metrics Metrics        `mapstructure:"metrics"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Store selects the account store backend
type Store struct {
	// Backend is memory, leveldb, bolt or pebble
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

type Bank struct {
	host.Config `mapstructure:",squash"`
	// Airdrop is credited to the payer before a run
	Airdrop uint64 `mapstructure:"airdrop"`
}

type Metrics struct {
	// Listen is the address /metrics is served on; empty disables it
	Listen string `mapstructure:"listen"`
	// Buckets of the instructions per transaction histogram
	Buckets []float64 `mapstructure:"buckets"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.path", "")
	v.SetDefault("bank.maxInstructionsPerTx", host.DefaultConfig.MaxInstructionsPerTx)
	v.SetDefault("bank.lamportsPerSignature", host.DefaultConfig.LamportsPerSignature)
	v.SetDefault("bank.rent.lamportsPerByteYear", host.DefaultRent.LamportsPerByteYear)
	v.SetDefault("bank.rent.exemptionThreshold", host.DefaultRent.ExemptionThreshold)
	v.SetDefault("bank.airdrop", uint64(10_000_000_000))
	v.SetDefault("client.chunkSize", client.DefaultOptions.ChunkSize)
	v.SetDefault("client.crankBatch", client.DefaultOptions.CrankBatch)
	v.SetDefault("client.timeout", time.Duration(0))
	v.SetDefault("client.label", "")
	v.SetDefault("metrics.listen", "")
	v.SetDefault("metrics.buckets", []float64{})
}

// Load reads v into a Config. When v has a config file set it must exist.
// Every known key can be overridden from the environment.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := v.ConfigFileUsed(); file != "" {
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", file)
		}
	}

	c := &Config{}
	err := v.Unmarshal(c, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate rejects settings no component would accept
func (c *Config) Validate() error {
	switch c.Log.Format {
	case "console", "json":
	default:
		return errors.Errorf("log.format %q is not console or json", c.Log.Format)
	}
	switch c.Store.Backend {
	case "memory":
	case "leveldb", "bolt", "pebble":
		if c.Store.Path == "" {
			return errors.Errorf("store.path is required for the %s backend", c.Store.Backend)
		}
	default:
		return errors.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	if c.Bank.MaxInstructionsPerTx <= 0 {
		return errors.New("bank.maxInstructionsPerTx must be positive")
	}
	if c.Client.ChunkSize <= 0 || c.Client.CrankBatch <= 0 {
		return errors.New("client.chunkSize and client.crankBatch must be positive")
	}
	if c.Client.Timeout < 0 {
		return errors.New("client.timeout is negative")
	}
	for i := 1; i < len(c.Metrics.Buckets); i++ {
		if c.Metrics.Buckets[i] <= c.Metrics.Buckets[i-1] {
			return errors.New("metrics.buckets must be increasing")
		}
	}
	return nil
}

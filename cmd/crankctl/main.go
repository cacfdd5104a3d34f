// Command crankctl compiles curve25519 jobs and runs them, one crank at a
// time, against a local ledger.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"crank25519.mleku.dev/logging"
)

var logger = logging.MustGetLogger("crankctl")

func main() {
	// cobra has printed the error already
	if newRootCmd(viper.New()).Execute() != nil {
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:          "crankctl",
		Short:        "Run curve25519 jobs one crank at a time",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "YAML config file")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("store", "", "account store: memory, leveldb, bolt or pebble")
	flags.String("store-path", "", "location of a persistent account store")
	flags.String("metrics-listen", "", "serve /metrics on this address while running")
	bindFlags(v, flags, map[string]string{
		"log.level":      "log-level",
		"store.backend":  "store",
		"store.path":     "store-path",
		"metrics.listen": "metrics-listen",
	})

	root.AddCommand(
		versionCmd(),
		compileCmd(),
		multiscalarCmd(v),
		hashCmd(v),
		roundTripCmd(v),
	)
	return root
}

// bindFlags makes each flag override its config key when set
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

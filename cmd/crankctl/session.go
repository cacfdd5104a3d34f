package main

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"crank25519.mleku.dev/client"
	"crank25519.mleku.dev/config"
	"crank25519.mleku.dev/host"
	"crank25519.mleku.dev/logging"
	"crank25519.mleku.dev/program"
	"crank25519.mleku.dev/signer"
	"crank25519.mleku.dev/store"
)

// session is the ledger a command runs its job against
type session struct {
	cfg    *config.Config
	store  store.Store
	bank   *host.Bank
	payer  *signer.Keypair
	client *client.Client
	server *http.Server
}

// setup loads the configuration and brings up the store, the bank with the
// processor registered, a funded payer and the optional metrics endpoint
func setup(cmd *cobra.Command, v *viper.Viper) (*session, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	if err := logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Writer: cmd.ErrOrStderr()}); err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s store", cfg.Store.Backend)
	}
	s := &session{cfg: cfg, store: st}

	reg := prometheus.NewRegistry()
	s.bank = host.NewBank(st, cfg.Bank.Config, host.NewMetrics(reg, cfg.Metrics.Buckets...))
	if err := s.bank.RegisterProgram(program.ID, program.NewProcessor(program.NewMetrics(reg))); err != nil {
		s.close()
		return nil, err
	}

	if s.payer, err = signer.Generate(); err != nil {
		s.close()
		return nil, err
	}
	if err := s.bank.Airdrop(host.Address(s.payer.PublicKey()), cfg.Bank.Airdrop); err != nil {
		s.close()
		return nil, errors.WithMessage(err, "funding payer")
	}
	s.client = client.New(s.bank, s.payer, program.ID, cfg.Client)

	if cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		s.server = &http.Server{Addr: cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorw("metrics server failed", "listen", cfg.Metrics.Listen, "error", err)
			}
		}()
		logger.Infow("serving metrics", "listen", cfg.Metrics.Listen)
	}
	logger.Debugw("session ready", "store", cfg.Store.Backend, "payer", host.Address(s.payer.PublicKey()), "program", program.ID)
	return s, nil
}

func (s *session) close() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			logger.Warnw("stopping metrics server", "error", err)
		}
	}
	if s.payer != nil {
		s.payer.Zero()
	}
	if err := s.store.Close(); err != nil {
		logger.Warnw("closing store", "error", err)
	}
}

package main

import (
	"context"
	"fmt"
	"os"

	"flota/internal/backend"
	"flota/internal/cli"
	"flota/internal/config"
	applog "flota/internal/log"
	"flota/internal/services"
)

func main() {
	cli.LoadEnvFile()
	if err := newRootCmd(os.Stdout, openConfigured).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openConfigured opens the backend selected by the environment. Logs go to
// stderr so command output stays clean.
func openConfigured(ctx context.Context) (*env, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Component: "flotactl",
		Handler:   stderrHandler(cfg.LogLevel),
	})

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}
	return &env{
		cfg:   cfg,
		fleet: services.NewFleetService(store.Backend, services.WithLogger(logger)),
		close: store.Close,
	}, nil
}

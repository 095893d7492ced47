// Package main provides the EcoRoute trainer: offline training and evaluation
// of the route policy, the Pub/Sub job worker and operator token minting.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/logrusorgru/aurora"
	"github.com/rs/zerolog"

	"github.com/ecoroute/ecoroute/internal/agent"
	"github.com/ecoroute/ecoroute/internal/bootstrap"
	"github.com/ecoroute/ecoroute/internal/config"
	"github.com/ecoroute/ecoroute/internal/modelstore"
	"github.com/ecoroute/ecoroute/internal/provider/resilience"
	"github.com/ecoroute/ecoroute/internal/telemetry"
	"github.com/ecoroute/ecoroute/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "ecoroute-trainer"

const usage = `usage: trainer <command> [flags]

commands:
  train      train a policy and save it to the model store
  evaluate   run greedy episodes with a stored policy
  probe      check that the providers return route data
  worker     consume training jobs from Pub/Sub
  token      mint an operator or viewer access token
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, aurora.Red(err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "train":
		err = runTrain(ctx, cfg, args)
	case "evaluate":
		err = runEvaluate(ctx, cfg, args)
	case "probe":
		err = runProbe(ctx, cfg, args)
	case "worker":
		err = runWorker(ctx, cfg, args)
	case "token":
		err = runToken(cfg, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, aurora.Red(fmt.Sprintf("%s: %v", cmd, err)))
		os.Exit(1)
	}
}

// runtime is the provider and storage stack shared by the subcommands.
type runtime struct {
	cfg       config.Config
	log       zerolog.Logger
	registry  *resilience.Registry
	providers bootstrap.Providers
	store     modelstore.Repository
	closers   []func()
}

func newRuntime(ctx context.Context, cfg config.Config, offline bool) (*runtime, error) {
	log := bootstrap.NewLogger(serviceName, Version, cfg)

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTelEnabled,
		SampleRatio:    0.01,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}
	rt := &runtime{cfg: cfg, log: log, registry: resilience.NewRegistry()}
	rt.closers = append(rt.closers, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	})

	providerMetrics, err := telemetry.NewProviderMetrics(tp.Meter)
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("initializing provider metrics: %w", err)
	}

	rt.providers = bootstrap.NewProviders(cfg, bootstrap.ProviderOptions{
		Registry: rt.registry,
		Metrics:  providerMetrics,
		Offline:  offline || cfg.OfflineProviders,
		Logger:   log,
	})

	store, closeStore, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.store = store
	rt.closers = append(rt.closers, closeStore)

	return rt, nil
}

func (rt *runtime) runner(hp *agent.Hyperparameters, maxSteps int, probe worker.ProbeConfig) *worker.Runner {
	return worker.NewRunner(worker.RunnerConfig{
		NewEnv:          rt.providers.EnvFactory(rt.cfg, rt.log),
		Store:           rt.store,
		Hyperparameters: hp,
		MaxEpisodeSteps: maxSteps,
		Probe:           probe,
		Logger:          rt.log,
	})
}

// close runs the closers in reverse order.
func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

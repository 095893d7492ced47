package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/logrusorgru/aurora"

	"github.com/ecoroute/ecoroute/internal/agent"
	"github.com/ecoroute/ecoroute/internal/api/handler"
	"github.com/ecoroute/ecoroute/internal/auth"
	"github.com/ecoroute/ecoroute/internal/config"
	"github.com/ecoroute/ecoroute/internal/provider/resilience"
	"github.com/ecoroute/ecoroute/internal/worker"
)

func colors() aurora.Aurora {
	return aurora.NewAurora(os.Getenv("NO_COLOR") == "")
}

func seedOrNow(seed int64) int64 {
	if seed == 0 {
		return time.Now().UnixNano()
	}
	return seed
}

func runTrain(ctx context.Context, cfg config.Config, args []string) error {
	hp := agent.DefaultHyperparameters()

	fs := flag.NewFlagSet("train", flag.ExitOnError)
	timesteps := fs.Int("timesteps", hp.TotalTimesteps, "environment steps to train for")
	model := fs.String("model", cfg.ModelName, "name to save the policy under")
	seed := fs.Int64("seed", 0, "random seed (0 picks one from the clock)")
	maxSteps := fs.Int("max-steps", agent.DefaultMaxEpisodeSteps, "steps before an episode is truncated")
	evalEpisodes := fs.Int("eval-episodes", 0, "greedy episodes to run after training")
	report := fs.String("report", "", "write an HTML reward chart to this path")
	offline := fs.Bool("offline", false, "use fixed in-memory providers")
	fs.Float64Var(&hp.LearningRate, "learning-rate", hp.LearningRate, "SGD step size")
	fs.Float64Var(&hp.Gamma, "gamma", hp.Gamma, "discount factor")
	fs.IntVar(&hp.LearningStarts, "learning-starts", hp.LearningStarts, "steps before updates begin")
	fs.Float64Var(&hp.ExplorationFraction, "exploration-fraction", hp.ExplorationFraction, "share of training over which epsilon decays")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := newRuntime(ctx, cfg, *offline)
	if err != nil {
		return err
	}
	defer rt.close()

	runner := rt.runner(&hp, *maxSteps, worker.ProbeConfig{})
	job := worker.Job{JobType: worker.JobTrain, ModelName: *model, Timesteps: *timesteps, Seed: seedOrNow(*seed)}

	res, err := runner.Train(ctx, job)
	if err != nil {
		return err
	}

	au := colors()
	fmt.Println(au.Bold(au.Green("training complete")))
	fmt.Printf("  model            %s (%d bytes)\n", au.Cyan(res.ModelName), res.BlobSize)
	fmt.Printf("  timesteps        %d\n", res.Stats.Timesteps)
	fmt.Printf("  episodes         %d\n", len(res.Stats.Episodes))
	fmt.Printf("  absent episodes  %d\n", res.Stats.AbsentEpisodes)
	fmt.Printf("  mean reward      %s\n", au.Yellow(fmt.Sprintf("%.2f", res.Stats.MeanReward())))
	fmt.Printf("  duration         %s\n", res.Stats.Duration.Round(time.Millisecond))

	var eval *agent.EvaluationResult
	if *evalEpisodes > 0 {
		result, err := runner.Evaluate(ctx, worker.Job{
			JobType:   worker.JobEvaluate,
			ModelName: *model,
			Episodes:  *evalEpisodes,
			Seed:      job.Seed + 1,
		})
		if err != nil {
			return err
		}
		eval = &result
		printEvaluation(au, *model, result)
	}

	if *report != "" {
		f, err := os.Create(*report)
		if err != nil {
			return fmt.Errorf("creating report: %w", err)
		}
		if err := agent.WriteReport(f, res.Stats, eval); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Printf("  report           %s\n", au.Cyan(*report))
	}

	return nil
}

func runEvaluate(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ExitOnError)
	model := fs.String("model", cfg.ModelName, "stored policy to evaluate")
	episodes := fs.Int("episodes", worker.DefaultEpisodes, "greedy episodes to run")
	seed := fs.Int64("seed", 0, "random seed (0 picks one from the clock)")
	maxSteps := fs.Int("max-steps", agent.DefaultMaxEpisodeSteps, "steps before an episode is truncated")
	offline := fs.Bool("offline", false, "use fixed in-memory providers")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := newRuntime(ctx, cfg, *offline)
	if err != nil {
		return err
	}
	defer rt.close()

	result, err := rt.runner(nil, *maxSteps, worker.ProbeConfig{}).Evaluate(ctx, worker.Job{
		JobType:   worker.JobEvaluate,
		ModelName: *model,
		Episodes:  *episodes,
		Seed:      seedOrNow(*seed),
	})
	if err != nil {
		return err
	}

	printEvaluation(colors(), *model, result)
	return nil
}

func printEvaluation(au aurora.Aurora, model string, result agent.EvaluationResult) {
	fmt.Println(au.Bold(au.Green("evaluation complete")))
	fmt.Printf("  model            %s\n", au.Cyan(model))
	fmt.Printf("  episodes         %d (%d steps)\n", result.Episodes, result.Steps)
	fmt.Printf("  total reward     %.2f\n", result.TotalReward)
	fmt.Printf("  mean reward      %s\n", au.Yellow(fmt.Sprintf("%.2f", result.MeanReward())))
}

func runProbe(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	scenarios := fs.Int("scenarios", 4, "sampled scenarios to reset")
	concurrency := fs.Int("concurrency", 2, "parallel probes")
	seed := fs.Int64("seed", 0, "random seed (0 picks one from the clock)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := newRuntime(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer rt.close()

	runner := rt.runner(nil, 0, worker.ProbeConfig{Scenarios: *scenarios, Concurrency: *concurrency})
	result := runner.Probe(ctx, seedOrNow(*seed))

	au := colors()
	fmt.Printf("%d of %d scenarios had route data (%s)\n",
		result.Successful, result.Total, result.Duration.Round(time.Millisecond))
	for _, e := range result.Errors {
		fmt.Printf("  %s %s: %s\n", au.Red("x"), e.Scenario, e.Error)
	}
	for _, h := range rt.registry.Snapshot() {
		level := au.Green(string(h.Level()))
		switch h.Level() {
		case resilience.LevelDegraded:
			level = au.Yellow(string(h.Level()))
		case resilience.LevelUnhealthy:
			level = au.Red(string(h.Level()))
		}
		fmt.Printf("  %-8s %s (%d ok, %d failed)\n", h.Name, level, h.Successes, h.Failures)
	}

	return result.Err()
}

func runWorker(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("worker", flag.ExitOnError)
	maxSteps := fs.Int("max-steps", agent.DefaultMaxEpisodeSteps, "steps before an episode is truncated")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := newRuntime(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer rt.close()
	log := rt.log

	jobs, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		ProjectID:        cfg.PubSubProjectID,
		SubscriptionName: cfg.PubSubSubscription,
		Runner:           rt.runner(nil, *maxSteps, worker.ProbeConfig{}),
		Logger:           log,
	})
	if err != nil {
		return err
	}
	defer jobs.Close()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      healthRouter(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	err = jobs.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Error().Err(shutdownErr).Msg("health server forced to shutdown")
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("worker stopped")
	return nil
}

// healthRouter answers liveness probes while the worker consumes jobs.
func healthRouter() http.Handler {
	ops := handler.NewOpsHandler(Version, BuildTime, nil, nil)
	r := chi.NewRouter()
	r.Get("/health", ops.HealthCheck)
	r.Get("/v1/ops/health", ops.HealthCheck)
	return r
}

func runToken(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	subject := fs.String("subject", "", "token subject, e.g. an operator email (required)")
	role := fs.String("role", auth.RoleOperator, "operator or viewer")
	ttl := fs.Duration("ttl", auth.DefaultTokenTTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *subject == "" {
		return errors.New("-subject is required")
	}
	if *role != auth.RoleOperator && *role != auth.RoleViewer {
		return fmt.Errorf("unknown role %q", *role)
	}

	jwt := auth.NewJWTService(auth.JWTConfig{
		SigningKey: cfg.JWTSigningKey,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
	})
	token, expiresAt, err := jwt.Issue(*subject, *role, *ttl)
	if err != nil {
		return err
	}

	au := colors()
	fmt.Fprintf(os.Stderr, "%s for %s, expires %s\n",
		au.Green(*role+" token"), au.Cyan(*subject), expiresAt.Format(time.RFC3339))
	fmt.Println(token)
	return nil
}

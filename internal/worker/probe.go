package worker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ProbeConfig configures the provider health check.
type ProbeConfig struct {
	// Scenarios is the number of sampled scenarios to reset (default: 4).
	Scenarios int

	// Concurrency is the number of parallel probes (default: 2).
	Concurrency int

	// Timeout bounds each reset (default: 30 seconds).
	Timeout time.Duration
}

func (c ProbeConfig) withDefaults() ProbeConfig {
	if c.Scenarios <= 0 {
		c.Scenarios = 4
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 2
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// ProbeResult summarises a health check.
type ProbeResult struct {
	StartTime  time.Time
	Duration   time.Duration
	Total      int
	Successful int
	Failed     int
	Errors     []ProbeError
}

// ProbeError describes one failed probe.
type ProbeError struct {
	Scenario string
	Error    string
}

// Err fails the check when more probes failed than succeeded.
func (r ProbeResult) Err() error {
	if r.Failed > r.Successful {
		return fmt.Errorf("health check failed: %d of %d probes had no route data", r.Failed, r.Total)
	}
	return nil
}

type probeOutcome struct {
	ok  bool
	err ProbeError
}

// Probe resets fresh environments against the live providers and counts
// the scenarios that produced at least one usable candidate route.
func (r *Runner) Probe(ctx context.Context, seed int64) ProbeResult {
	started := time.Now()
	result := ProbeResult{StartTime: started, Total: r.probe.Scenarios}

	r.logger.Info().
		Int("scenarios", r.probe.Scenarios).
		Int("concurrency", r.probe.Concurrency).
		Msg("starting provider health check")

	seeds := make(chan int64, r.probe.Scenarios)
	outcomes := make(chan probeOutcome, r.probe.Scenarios)

	var wg sync.WaitGroup
	for i := 0; i < r.probe.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range seeds {
				select {
				case <-ctx.Done():
					outcomes <- probeOutcome{err: ProbeError{Error: ctx.Err().Error()}}
				default:
					outcomes <- r.probeOne(ctx, s)
				}
			}
		}()
	}

	for i := 0; i < r.probe.Scenarios; i++ {
		seeds <- seed + int64(i)
	}
	close(seeds)

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	for o := range outcomes {
		if o.ok {
			result.Successful++
			continue
		}
		result.Failed++
		result.Errors = append(result.Errors, o.err)
	}

	result.Duration = time.Since(started)
	r.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("provider health check completed")

	return result
}

func (r *Runner) probeOne(ctx context.Context, seed int64) probeOutcome {
	ctx, cancel := context.WithTimeout(ctx, r.probe.Timeout)
	defer cancel()

	env, err := r.cfg.NewEnv(seed)
	if err != nil {
		return probeOutcome{err: ProbeError{Error: err.Error()}}
	}
	if _, err := env.Reset(ctx); err != nil {
		return probeOutcome{err: ProbeError{Scenario: env.Scenario().Key(), Error: err.Error()}}
	}

	for _, route := range env.Routes() {
		if route.Present() {
			return probeOutcome{ok: true}
		}
	}
	return probeOutcome{err: ProbeError{Scenario: env.Scenario().Key(), Error: "no candidate route has data"}}
}

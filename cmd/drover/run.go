package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/driftlock/drover/internal/dispatch"
	"github.com/driftlock/drover/internal/job"
	"github.com/driftlock/drover/internal/log"
	"github.com/driftlock/drover/internal/model"
	"github.com/driftlock/drover/internal/pipeline"
	"github.com/driftlock/drover/internal/platform"
	"github.com/driftlock/drover/internal/pool"
	"github.com/driftlock/drover/internal/report"
	"github.com/driftlock/drover/internal/source"
	"github.com/driftlock/drover/internal/validate"
)

var (
	flagIDs        []string
	flagTarget     int64
	flagProxyURL   string
	flagProxyFile  string
	flagUseArchive bool
	flagValidators int
	flagWorkers    int
	flagCooldown   int
	flagTimeout    int
	flagBlacklist  []string
	flagQuiet      bool
	flagSchedule   string
	flagSim        bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run fetches proxy candidates and drives all jobs to their target",
	RunE:  doRun,
}

func init() {
	f := runCmd.Flags()
	f.StringSliceVar(&flagIDs, "ids", nil, "job identifiers to drive")
	f.Int64VarP(&flagTarget, "target", "n", 0, "target delta per job")
	f.StringVar(&flagProxyURL, "proxy-url", "", "URL to fetch proxy candidates from")
	f.StringVar(&flagProxyFile, "proxy-file", "", "local file containing proxy candidates")
	f.BoolVar(&flagUseArchive, "use-archive", false, "use the dated proxy archive API")
	f.IntVar(&flagValidators, "validators", 0, "validator workers (default 75)")
	f.IntVar(&flagWorkers, "workers", 0, "dispatch workers (default 50)")
	f.IntVar(&flagCooldown, "cooldown", 0, "per-proxy cooldown per job in seconds (default 300)")
	f.IntVar(&flagTimeout, "timeout", 0, "request timeout in seconds (default 3)")
	f.StringSliceVar(&flagBlacklist, "blacklist", nil, "job identifiers to exclude")
	f.BoolVar(&flagQuiet, "quiet", false, "only print completions and the final summary")
	f.StringVar(&flagSchedule, "schedule", "", "cron schedule for timer mode")
	f.BoolVar(&flagSim, "sim", false, "use the in-memory sim platform (dry run)")
	runCmd.MarkFlagsMutuallyExclusive("proxy-url", "proxy-file", "use-archive")
}

func doRun(cmd *cobra.Command, _ []string) error {
	applyRunFlags(cmd, &config)

	ctx := cmd.Context()
	attrs := slog.Group("drover",
		slog.String("cmd", "run"),
		slog.Int("pid", os.Getpid()),
	)
	ctx = log.ContextAttrs(ctx, attrs)

	// first signal cancels the run context (graceful stop), a second
	// one abandons in-flight I/O and terminates immediately
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		hard := make(chan os.Signal, 1)
		signal.Notify(hard, os.Interrupt, syscall.SIGTERM)
		<-hard
		slog.Warn("second interrupt: terminating immediately")
		os.Exit(130)
	}()

	if config.Service.Mode == model.ServiceModeTimer {
		if config.Service.Schedule == nil {
			return fmt.Errorf("timer mode requires service.schedule")
		}
		return pipeline.RunEvery(ctx, *config.Service.Schedule, func(ctx context.Context) {
			if err := runOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "scheduled run failed", "error", err)
			}
		})
	}
	return runOnce(ctx)
}

func runOnce(ctx context.Context) error {
	candidates, err := fetchCandidates(ctx)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return model.ErrNoCandidates
	}
	candidates = source.Cap(candidates, config.CandidateCap())
	slog.InfoContext(ctx, "candidates ready", "count", len(candidates))

	adapter, err := platform.New(config.Platform, config.Timeout())
	if err != nil {
		return err
	}

	ids := pipeline.Blacklist(config.Jobs.IDs, config.Jobs.Blacklist)
	if len(ids) == 0 {
		return model.ErrNoJobs
	}
	jobs, failed, err := pipeline.Prepare(ctx, adapter, ids, config.Jobs.Target,
		job.WithCooldown(config.Cooldown()),
		job.WithTimeout(config.Timeout()),
	)
	if err != nil {
		return err
	}

	probeURL := validate.DefaultProbeURL
	if config.Platform.ProbeURL != nil {
		probeURL = *config.Platform.ProbeURL
	}

	p := pool.New(len(candidates))
	validator := validate.New(p, validate.Probe(probeURL, config.Timeout()))
	dispatcher := dispatch.New(p, jobs, config.Workers())
	sink := report.NewConsole(os.Stdout, config.ReportStyle() == model.ReportStyleQuiet)

	pl := pipeline.New(p, validator, dispatcher, jobs, sink, pipeline.Options{
		Validators: config.Validators(),
		Poll:       config.Poll(),
		FailedJobs: failed,
	})
	_, err = pl.Run(ctx, candidates)
	return err
}

func fetchCandidates(ctx context.Context) ([]string, error) {
	src := config.Source
	switch {
	case src.File != nil && *src.File != "":
		return source.FromFile(*src.File)
	case src.Archive != nil && src.Archive.Enabled != nil && *src.Archive.Enabled:
		archiveURL := source.DefaultArchiveURL
		if src.Archive.URL != nil {
			archiveURL = *src.Archive.URL
		}
		days := model.DefaultArchiveDays
		if src.Archive.Days != nil {
			days = *src.Archive.Days
		}
		return source.FromArchive(ctx, nil, archiveURL, days)
	case src.URL != nil && *src.URL != "":
		return source.FromURL(ctx, nil, *src.URL)
	default:
		return nil, fmt.Errorf("%w: no candidate source configured", model.ErrNoCandidates)
	}
}

// applyRunFlags merges CLI flags over config values; flags win.
func applyRunFlags(cmd *cobra.Command, cfg *model.Config) {
	changed := cmd.Flags().Changed
	if changed("ids") {
		cfg.Jobs.IDs = flagIDs
	}
	if changed("target") {
		cfg.Jobs.Target = flagTarget
	}
	if changed("blacklist") {
		cfg.Jobs.Blacklist = flagBlacklist
	}
	if changed("proxy-url") {
		cfg.Source = model.Source{URL: &flagProxyURL}
	}
	if changed("proxy-file") {
		cfg.Source = model.Source{File: &flagProxyFile}
	}
	if changed("use-archive") {
		cfg.Source = model.Source{Archive: &model.Archive{Enabled: &flagUseArchive}}
	}
	if cfg.Pipeline == nil {
		cfg.Pipeline = &model.Pipeline{}
	}
	if changed("validators") {
		cfg.Pipeline.Validators = &flagValidators
	}
	if changed("workers") {
		cfg.Pipeline.Workers = &flagWorkers
	}
	if changed("cooldown") {
		cfg.Pipeline.Cooldown = &flagCooldown
	}
	if changed("timeout") {
		cfg.Pipeline.Timeout = &flagTimeout
	}
	if changed("quiet") && flagQuiet {
		style := model.ReportStyleQuiet
		cfg.Report = &model.Report{Style: &style}
	}
	if changed("schedule") {
		cfg.Service.Mode = model.ServiceModeTimer
		cfg.Service.Schedule = &flagSchedule
	}
	if changed("sim") && flagSim {
		cfg.Platform = model.Platform{Kind: model.PlatformSim}
	}
}

// applyEnv merges environment values under config-file values but below
// flags. Keys mirror the .env the tool historically read.
func applyEnv(cfg *model.Config) {
	if v, ok := os.LookupEnv("DROVER_PROXY_URL"); ok && v != "" {
		cfg.Source = model.Source{URL: &v}
	}
	if v, ok := envInt64("DROVER_TARGET"); ok {
		cfg.Jobs.Target = v
	}
	if cfg.Pipeline == nil {
		cfg.Pipeline = &model.Pipeline{}
	}
	if v, ok := envInt("DROVER_VALIDATORS"); ok {
		cfg.Pipeline.Validators = &v
	}
	if v, ok := envInt("DROVER_WORKERS"); ok {
		cfg.Pipeline.Workers = &v
	}
	if v, ok := envInt("DROVER_COOLDOWN"); ok {
		cfg.Pipeline.Cooldown = &v
	}
	if v, ok := envInt("DROVER_TIMEOUT"); ok {
		cfg.Pipeline.Timeout = &v
	}
}

func envInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring non-numeric environment value", "key", key, "value", v)
		return 0, false
	}
	return n, true
}

func envInt64(key string) (int64, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		slog.Warn("ignoring non-numeric environment value", "key", key, "value", v)
		return 0, false
	}
	return n, true
}

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tabnet-harvester/internal/api"
	"tabnet-harvester/internal/api/handler"
	"tabnet-harvester/internal/config"
	"tabnet-harvester/internal/model"
	"tabnet-harvester/internal/pipeline"
	"tabnet-harvester/internal/runner"
	"tabnet-harvester/internal/store"
	"tabnet-harvester/pkg/router"
	"tabnet-harvester/pkg/utils"
)

// CLI Constants
const (
	CmdRun   = "run"
	CmdServe = "serve"
	CmdPlan  = "plan"

	FlagConfig        = "config"
	FlagLogLevel      = "log-level"
	FlagLogFormat     = "log-format"
	FlagYears         = "years"
	FlagAgeBands      = "age-bands"
	FlagDiagnoses     = "diagnoses"
	FlagStages        = "stages"
	FlagConcurrency   = "concurrency"
	FlagTimeout       = "timeout"
	FlagRetries       = "retries"
	FlagProgressSteps = "progress-steps"
	FlagOutput        = "output"
	FlagStrict        = "strict"
	FlagNoStore       = "no-store"
	FlagStorePath     = "store"
	FlagS3Bucket      = "s3-bucket"
	FlagAddr          = "addr"
)

// CLI Variables
var (
	configPath    string
	logLevel      string
	logFormat     string
	years         string
	ageBands      string
	diagnoses     string
	stages        string
	concurrency   int
	timeout       time.Duration
	retries       int
	progressSteps int
	outputFile    string
	strictMerge   bool
	noStore       bool
	storePath     string
	s3Bucket      string
	addr          string

	cfg *config.Config
)

// Root command
var rootCmd = &cobra.Command{
	Use:   "harvester",
	Short: "Harvest oncology statistics from the TabNet tabulation service",
	Long: `harvester queries the TabNet tabulation service for every combination of
year, sex, age band and diagnosis code, and merges the per-region counts into a
single JSON document.

Stages always run in this order:
  totals      years × sexes                      → [year][region]["totais"][sex]
  age_bands   years × sexes × age bands          → [year][region][band]["totaisCID"][sex]
  diagnoses   years × sexes × age bands × codes  → [year][region][band][code][sex]

Examples:
  harvester plan --years 2019-2021
  harvester run --years 2023 --stages totals,age_bands
  harvester run --years 2020-2024 --diagnoses C50,C61 --concurrency 32
  harvester serve --addr :8080`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Command definitions
var (
	runCmd = &cobra.Command{
		Use:   CmdRun,
		Short: "Run a harvest and write the result document",
		RunE:  runHarvest,
	}

	serveCmd = &cobra.Command{
		Use:   CmdServe,
		Short: "Serve the run API",
		Long: `Serve the run API: POST /api/v1/runs starts a harvest in the background,
GET /api/v1/runs/{id}/progress, /errors and /result follow it. Metrics are
exposed on /metrics and the API documentation on /swagger/.`,
		RunE: runServe,
	}

	planCmd = &cobra.Command{
		Use:   CmdPlan,
		Short: "Print the number of queries each stage would issue",
		RunE:  runPlan,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, FlagConfig, "c", "", "Configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&logLevel, FlagLogLevel, "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, FlagLogFormat, "", "Log format: console or json")

	for _, cmd := range []*cobra.Command{runCmd, planCmd} {
		cmd.Flags().StringVarP(&years, FlagYears, "y", "", "Years: 2020, 2019-2021 or 2018,2020")
		cmd.Flags().StringVar(&ageBands, FlagAgeBands, "", "Comma-separated age bands, * for all")
		cmd.Flags().StringVar(&diagnoses, FlagDiagnoses, "", "Comma-separated diagnosis codes, * for all")
		cmd.Flags().StringVar(&stages, FlagStages, "", "Comma-separated stages: totals,age_bands,diagnoses")
	}

	runCmd.Flags().IntVarP(&concurrency, FlagConcurrency, "j", 0, "Queries in flight")
	runCmd.Flags().DurationVar(&timeout, FlagTimeout, 0, "Per-attempt timeout")
	runCmd.Flags().IntVar(&retries, FlagRetries, 0, "Attempts per query")
	runCmd.Flags().IntVar(&progressSteps, FlagProgressSteps, 0, "Progress reports per stage")
	runCmd.Flags().StringVarP(&outputFile, FlagOutput, "o", "", "Output document")
	runCmd.Flags().BoolVar(&strictMerge, FlagStrict, false, "Fail on conflicting leaf values when merging stages")
	runCmd.Flags().BoolVar(&noStore, FlagNoStore, false, "Do not record the run in the run store")
	runCmd.Flags().StringVar(&s3Bucket, FlagS3Bucket, "", "Also upload the document to this S3 bucket")

	for _, cmd := range []*cobra.Command{runCmd, serveCmd} {
		cmd.Flags().StringVar(&storePath, FlagStorePath, "", "Run store database path")
	}
	serveCmd.Flags().StringVar(&addr, FlagAddr, "", "Listen address")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(planCmd)
}

// loadConfig builds the configuration: defaults, then file, then environment,
// then the flags that were set explicitly.
func loadConfig(cmd *cobra.Command, _ []string) error {
	var err error
	if configPath != "" {
		if cfg, err = config.LoadFromFile(configPath); err != nil {
			return err
		}
	} else {
		cfg = config.DefaultConfig()
	}
	config.LoadFromEnv(cfg)
	applyFlags(cmd, cfg)
	cfg.Resolve()

	return setupLogger(cfg.Log)
}

func applyFlags(cmd *cobra.Command, c *config.Config) {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}

	if changed(FlagLogLevel) {
		c.Log.Level = logLevel
	}
	if changed(FlagLogFormat) {
		c.Log.Format = logFormat
	}
	if changed(FlagYears) {
		c.Run.Years = years
	}
	if changed(FlagAgeBands) {
		c.Run.AgeBands = []string{ageBands}
		if ageBands != "*" {
			c.Run.AgeBands = utils.SplitList(ageBands)
		}
	}
	if changed(FlagDiagnoses) {
		c.Run.Diagnoses = []string{diagnoses}
		if diagnoses != "*" {
			c.Run.Diagnoses = utils.SplitList(diagnoses)
		}
	}
	if changed(FlagStages) {
		c.Run.Stages = utils.SplitList(stages)
	}
	if changed(FlagConcurrency) {
		c.Run.Concurrency = concurrency
	}
	if changed(FlagTimeout) {
		c.Fetch.Timeout = timeout
	}
	if changed(FlagRetries) {
		c.Fetch.Retries = retries
	}
	if changed(FlagProgressSteps) {
		c.Run.ProgressSteps = progressSteps
	}
	if changed(FlagOutput) {
		c.Output.File = outputFile
	}
	if changed(FlagStrict) {
		c.Merge.Strict = strictMerge
	}
	if changed(FlagNoStore) {
		c.Store.Enabled = !noStore
	}
	if changed(FlagStorePath) {
		c.Store.Path = storePath
	}
	if changed(FlagS3Bucket) {
		c.Sink.S3.Bucket = s3Bucket
	}
	if changed(FlagAddr) {
		c.HTTP.Addr = addr
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runHarvest(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	params, err := cfg.Params()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	var st *store.Store
	if cfg.Store.Enabled {
		if st, err = openStore(cfg.Store.Path); err != nil {
			return err
		}
		defer st.Close()
	}

	runID := uuid.New().String()
	if st != nil {
		if err := st.CreateRun(runID, params); err != nil {
			return err
		}
	}

	r, err := runner.New(ctx, cfg, st)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	r.Reporter = pipeline.NewConsoleReporter(out)

	fmt.Fprintf(out, "🧾 Run %s\n", runID)
	outcome, runErr := r.Execute(ctx, runID, params, cfg.Output.File)
	if outcome != nil {
		pipeline.RenderReport(out, outcome.Report, outcome.Exports)
	}
	return runErr
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	st, err := openStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	r, err := runner.New(ctx, cfg, st)
	if err != nil {
		return err
	}
	outputs := utils.NewOutputManager(cfg.Output.Dir)

	start := func(ctx context.Context, runID string, params model.RunParams) {
		log := zap.L().With(zap.String("run_id", runID))
		path, err := outputs.ResultPath(runID, params.OutputFile)
		if err != nil {
			log.Error("serve: no output directory", zap.Error(err))
			if serr := st.UpdateRunStatus(runID, model.RunFailed); serr != nil {
				log.Warn("serve: failed to update run status", zap.Error(serr))
			}
			return
		}
		if _, err := r.Execute(ctx, runID, params, path); err != nil {
			log.Error("serve: run failed", zap.Error(err))
		}
	}

	h := handler.NewRunsHandler(ctx, st, start, cfg.Run.MinYear, cfg.Run.MaxYear)
	rt := router.New()
	api.RegisterRoutes(rt, h)

	err = rt.Start(ctx, router.ServerConfig{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	})
	stop()
	h.Wait()
	return err
}

func runPlan(cmd *cobra.Command, _ []string) error {
	params, err := cfg.Params()
	if err != nil {
		return err
	}

	plan := pipeline.Plan(params)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "📋 Years %v · %d age bands · %d diagnosis codes\n",
		params.Years, len(params.AgeBands), len(params.Diagnoses))

	ordered := make([]model.Stage, 0, len(plan))
	for stage := range plan {
		ordered = append(ordered, stage)
	}
	sort.Slice(ordered, func(i, j int) bool { return stageIndex(ordered[i]) < stageIndex(ordered[j]) })

	total := 0
	for _, stage := range ordered {
		fmt.Fprintf(out, "  %-10s %d queries\n", stage, plan[stage])
		total += plan[stage]
	}
	fmt.Fprintf(out, "  %-10s %d queries\n", "total", total)
	return nil
}

func stageIndex(s model.Stage) int {
	for i, st := range model.Stages {
		if st == s {
			return i
		}
	}
	return len(model.Stages)
}

func openStore(path string) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return store.Open(path)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

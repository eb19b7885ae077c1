package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iota-uz/roster-sync/modules/roster/domain/roster"
	"github.com/iota-uz/roster-sync/modules/roster/infrastructure/memstore"
	"github.com/iota-uz/roster-sync/modules/roster/infrastructure/remotestore"
	"github.com/iota-uz/roster-sync/modules/roster/infrastructure/reportfile"
	"github.com/iota-uz/roster-sync/modules/roster/infrastructure/tabular"
	"github.com/iota-uz/roster-sync/modules/roster/services"
	"github.com/iota-uz/roster-sync/pkg/configuration"
	"github.com/iota-uz/roster-sync/pkg/eventbus"
)

type importOptions struct {
	input        string
	sheet        string
	apply        bool
	concurrency  int
	defaultYear  int
	strictLevels bool
	callTimeout  time.Duration
	report       string
	baseURL      string
	token        string
	progress     bool
}

func newImportCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import enrollment rows from a CSV, XLSX or JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := configuration.Use()
			if !cmd.Flags().Changed("strict-levels") {
				opts.strictLevels = conf.Import.StrictLevels
			}
			return runImport(cmd, conf, opts)
		},
	}

	cmd.Flags().StringVar(&opts.input, "input", "", "Input file: .csv, .xlsx or .json (required)")
	cmd.Flags().StringVar(&opts.sheet, "sheet", "", "XLSX sheet name (default: first sheet)")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "Write changes to the store (default is dry-run)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "Rows processed in parallel (default: ROSTER_IMPORT_CONCURRENCY)")
	cmd.Flags().IntVar(&opts.defaultYear, "default-year", 0, "Year for rows without one (default: ROSTER_IMPORT_DEFAULT_YEAR)")
	cmd.Flags().BoolVar(&opts.strictLevels, "strict-levels", false, "Fail rows whose level cannot be classified")
	cmd.Flags().DurationVar(&opts.callTimeout, "call-timeout", 0, "Timeout of each remote call (default: ROSTER_IMPORT_CALL_TIMEOUT)")
	cmd.Flags().StringVar(&opts.report, "report", "", "Write a per-row report; format from extension: .xlsx, .csv or .json")
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "", "Store base URL (default: ROSTER_STORE_URL)")
	cmd.Flags().StringVar(&opts.token, "token", "", "Store API token (default: ROSTER_STORE_TOKEN)")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "Print progress to stderr")

	_ = cmd.MarkFlagRequired("input")
	return cmd
}

type importResult struct {
	Status      string             `json:"status"`
	Input       string             `json:"input"`
	Apply       bool               `json:"apply"`
	Summary     roster.JobSummary  `json:"summary"`
	Failures    []roster.RowResult `json:"failures,omitempty"`
	PlannedOrgs []roster.OrgRecord `json:"planned_orgs,omitempty"`
	Report      string             `json:"report,omitempty"`
}

func runImport(cmd *cobra.Command, conf *configuration.Configuration, opts importOptions) error {
	ctx := cmd.Context()
	log := logrus.NewEntry(conf.Logger()).WithField("component", "roster-import")

	var reportFormat reportfile.Format
	if opts.report != "" {
		f, err := reportfile.ParseFormat(strings.TrimPrefix(filepath.Ext(opts.report), "."))
		if err != nil {
			return withCode(exitUsage, fmt.Errorf("invalid --report: %w", err))
		}
		reportFormat = f
	}

	records, err := tabular.Open(opts.input, opts.sheet)
	if err != nil {
		return withCode(exitUsage, fmt.Errorf("read --input: %w", err))
	}

	storeOpts := conf.Store
	if strings.TrimSpace(opts.baseURL) != "" {
		storeOpts.BaseURL = opts.baseURL
	}
	if strings.TrimSpace(opts.token) != "" {
		storeOpts.Token = opts.token
	}
	client, err := remotestore.New(storeOpts,
		remotestore.WithLogger(log),
		remotestore.WithRequestIDHeader(conf.RequestIDHeader),
	)
	if err != nil {
		return withCode(exitUsage, err)
	}

	var (
		store roster.Store = client
		dry   *memstore.DryRun
	)
	if !opts.apply {
		dry = memstore.NewDryRun(client)
		store = dry
	}

	svcOpts := services.ImportOptions{
		Concurrency:  firstPositive(opts.concurrency, conf.Import.Concurrency),
		CallTimeout:  firstPositiveDuration(opts.callTimeout, conf.Import.CallTimeout),
		StrictLevels: opts.strictLevels,
		DefaultYear:  firstPositive(opts.defaultYear, conf.Import.DefaultYear),
		Logger:       log,
	}
	if opts.progress {
		svcOpts.EventBus = progressBus(cmd, log.Logger, len(records))
	}

	summary, err := services.NewImportService(store, svcOpts).Run(ctx, records)
	if err != nil {
		return withCode(exitRemote, err)
	}

	if opts.report != "" {
		if err := writeReport(opts.report, reportFormat, summary); err != nil {
			return withCode(exitReport, err)
		}
	}

	result := importResult{
		Status:   "applied",
		Input:    opts.input,
		Apply:    opts.apply,
		Failures: summary.Failures(),
		Report:   opts.report,
	}
	if dry != nil {
		result.Status = "dry-run"
		result.PlannedOrgs = dry.PlannedOrgs()
	}
	result.Summary = summary
	result.Summary.Results = nil
	if err := writeJSONLine(cmd.OutOrStdout(), result); err != nil {
		return err
	}

	switch {
	case summary.Cancelled:
		return withCode(exitCancelled, fmt.Errorf("import cancelled; unprocessed rows are reported as skipped"))
	case summary.Errors > 0:
		return withCode(exitRowErrors, fmt.Errorf("%d of %d rows failed", summary.Errors, summary.RowsTotal))
	}
	return nil
}

func progressBus(cmd *cobra.Command, logger *logrus.Logger, total int) eventbus.EventBus {
	bus := eventbus.NewEventPublisher(logger)
	every := max(1, total/20)
	bus.Subscribe(func(e *services.JobStartedEvent) {
		fmt.Fprintf(cmd.ErrOrStderr(), "snapshot: %d organizations, %d courses\n", e.Orgs, e.Courses)
	})
	bus.Subscribe(func(e *services.RowProcessedEvent) {
		if e.Done%every == 0 || e.Done == e.Total {
			fmt.Fprintf(cmd.ErrOrStderr(), "processed %d/%d rows\n", e.Done, e.Total)
		}
	})
	bus.Subscribe(func(e *services.JobFinishedEvent) {
		fmt.Fprintf(cmd.ErrOrStderr(), "done in %s\n", e.Summary.Elapsed.Round(time.Millisecond))
	})
	return bus
}

func writeReport(path string, format reportfile.Format, summary roster.JobSummary) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := reportfile.Write(f, format, summary); err != nil {
		_ = f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}

func firstPositive(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func firstPositiveDuration(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}

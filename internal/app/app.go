package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tdh8316/osintagg/internal/cli"
	"github.com/tdh8316/osintagg/internal/config"
	"github.com/tdh8316/osintagg/internal/export"
	"github.com/tdh8316/osintagg/internal/httpx"
	"github.com/tdh8316/osintagg/internal/output"
	"github.com/tdh8316/osintagg/internal/probe"
	"github.com/tdh8316/osintagg/internal/registry"
	"github.com/tdh8316/osintagg/internal/result"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// now is swapped in tests for stable export file names.
var now = time.Now

func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := cli.Parse(args, stdout, stderr)
	if err != nil {
		if errors.Is(err, cli.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}

	log := newLogger(stderr, opts.Verbose)
	printer := output.NewPrinter(stdout, output.ColorEnabled(stdout, opts.NoColor), opts.Verbose)

	if opts.Command == cli.CommandReport {
		return runReport(opts.ReportFile, printer, stderr)
	}

	cfg, err := config.Loader{ConfigPath: opts.ConfigPath}.Load(opts.Overrides)
	if err != nil {
		fmt.Fprintf(stderr, "config error: %v\n", err)
		return exitUsage
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "config error: %v\n", err)
		return exitUsage
	}

	format, err := exportFormat(cfg.Export, opts.Output)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}

	httpClient, err := httpx.NewClient(httpx.ClientConfig{
		Timeout:  cfg.Timeout,
		ProxyURL: cfg.Proxy,
		WithTor:  cfg.Tor,
	})
	if err != nil {
		fmt.Fprintf(stderr, "failed to initialize HTTP client: %v\n", err)
		return exitError
	}

	reg, err := registry.Load(ctx, httpClient, cfg.PlatformsFile, cfg.UserAgent)
	if err != nil {
		fmt.Fprintf(stderr, "registry error: %v\n", err)
		return exitError
	}
	log.WithField("platforms", reg.Len()).Debug("registry loaded")

	if opts.ListPlatforms {
		printer.Platforms(reg.Names())
		return exitOK
	}

	username := strings.TrimSpace(opts.Username)
	if err := registry.ValidateUsername(username); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}

	specs, ok := selectPlatforms(reg, opts.Platforms, printer, stderr)
	if !ok {
		return exitUsage
	}

	if !opts.NoBanner {
		printer.Banner(cli.Version)
	}
	printer.ScanHeader(username, len(specs))

	engine := probe.NewEngine(httpClient, probe.Config{
		UserAgent:   cfg.UserAgent,
		Timeout:     cfg.Timeout,
		Delay:       cfg.Delay,
		Concurrency: cfg.Concurrency,
	}, log)

	outcomes, err := engine.Probe(ctx, username, specs)
	if err != nil {
		fmt.Fprintf(stderr, "scan error: %v\n", err)
		return exitError
	}

	res := result.Collect(username, outcomes, func(i int, o probe.Outcome) {
		printer.Outcome(i, len(specs), o)
	})

	if ctx.Err() != nil {
		fmt.Fprintln(stdout)
		printer.Warn("Scan interrupted by user (%d of %d platforms checked)", res.Summary.Total, len(specs))
		return exitOK
	}

	printer.Summary(res)

	if format == "" {
		return exitOK
	}
	path := opts.Output
	if path == "" {
		path = export.DefaultFilename(username, format, now())
	}
	if err := export.ToFile(path, format, res); err != nil {
		fmt.Fprintf(stderr, "export failed: %v\n", err)
		return exitError
	}
	printer.Success("Results exported to %s", path)
	return exitOK
}

func runReport(path string, printer *output.Printer, stderr io.Writer) int {
	res, err := export.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "report error: %v\n", err)
		return exitError
	}

	printer.Info("Report for '%s' (%s)", res.Username, res.StartedAt.Format(time.RFC3339))
	if err := printer.Outcomes(res); err != nil {
		fmt.Fprintf(stderr, "report error: %v\n", err)
		return exitError
	}
	printer.Summary(res)
	return exitOK
}

// selectPlatforms applies the --platforms filter. Unknown names are reported
// and skipped; an empty selection is a usage error.
func selectPlatforms(reg *registry.Registry, names []string, printer *output.Printer, stderr io.Writer) ([]registry.PlatformSpec, bool) {
	if len(names) == 0 {
		return reg.All(), true
	}

	if unknown := reg.Unknown(names); len(unknown) > 0 {
		printer.Warn("Unknown platforms ignored: %s", strings.Join(unknown, ", "))
	}

	specs := reg.Filter(names)
	if len(specs) == 0 {
		fmt.Fprintf(stderr, "error: no valid platforms selected (available: %s)\n", strings.Join(reg.Names(), ", "))
		return nil, false
	}
	return specs, true
}

// exportFormat resolves the export format. --output without --export picks
// the format from the file extension, falling back to JSON.
func exportFormat(name, outputPath string) (export.Format, error) {
	if name != "" {
		return export.ParseFormat(name)
	}
	if outputPath == "" {
		return "", nil
	}
	if strings.EqualFold(filepath.Ext(outputPath), ".csv") {
		return export.FormatCSV, nil
	}
	return export.FormatJSON, nil
}

func newLogger(w io.Writer, verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
	log.SetLevel(logrus.WarnLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

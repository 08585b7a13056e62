package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tdh8316/osintagg/internal/config"
)

// Version is stamped at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

var ErrHelp = errors.New("help requested")

type Command int

const (
	CommandScan Command = iota
	CommandReport
)

type Options struct {
	Command Command

	Username      string
	Platforms     []string
	Output        string
	Verbose       bool
	NoBanner      bool
	NoColor       bool
	ListPlatforms bool
	ConfigPath    string

	// ReportFile is the exported JSON file read by the report command.
	ReportFile string

	// Overrides holds only the config flags that were set explicitly.
	Overrides config.Overrides
}

// scanFlagSet tracks scan flags before they are converted into config overrides.
type scanFlagSet struct {
	timeout       time.Duration
	delay         time.Duration
	concurrency   int
	platformsFile string
	userAgent     string
	proxy         string
	tor           bool
	export        string
}

func bindScanFlags(f *pflag.FlagSet, opts *Options, flags *scanFlagSet) {
	f.StringVarP(&opts.Username, "username", "u", "", "username to search for")
	f.StringSliceVarP(&opts.Platforms, "platforms", "p", nil, "platforms to check, comma-separated or repeated (default: all)")
	f.StringVarP(&opts.Output, "output", "o", "", "export file path (default: osint_results_USERNAME_TIMESTAMP.EXT)")
	f.BoolVar(&opts.NoBanner, "no-banner", false, "do not print the banner")
	f.BoolVar(&opts.ListPlatforms, "list-platforms", false, "list available platforms and exit")

	f.StringVar(&flags.export, "export", "", "export results as json or csv")
	flags.timeout = config.DefaultRuntimeConfig().Timeout
	flags.delay = config.DefaultDelay
	f.Var((*secondsValue)(&flags.timeout), "timeout", "per-request timeout (10s, 1500ms or bare seconds)")
	f.Var((*secondsValue)(&flags.delay), "delay", "pause between requests (1s, 500ms or bare seconds)")
	f.IntVar(&flags.concurrency, "concurrency", config.DefaultConcurrency, fmt.Sprintf("concurrent requests (1-%d)", config.MaxConcurrency))
	f.StringVar(&flags.platformsFile, "platforms-file", "", "custom platform registry (JSON/YAML path or http(s) URL)")
	f.StringVar(&flags.userAgent, "user-agent", "", "User-Agent header sent with every request")
	f.StringVar(&flags.proxy, "proxy", "", "proxy URL (http, https or socks5)")
	f.BoolVarP(&flags.tor, "tor", "t", false, "route requests through the local Tor proxy")
}

func (f scanFlagSet) toOverrides(fs *pflag.FlagSet) config.Overrides {
	ov := config.Overrides{}
	changed := fs.Changed

	if changed("timeout") {
		ov.Timeout = &f.timeout
	}
	if changed("delay") {
		ov.Delay = &f.delay
	}
	if changed("concurrency") {
		ov.Concurrency = &f.concurrency
	}
	if changed("platforms-file") {
		ov.PlatformsFile = f.platformsFile
	}
	if changed("user-agent") {
		ov.UserAgent = f.userAgent
	}
	if changed("proxy") {
		ov.Proxy = f.proxy
	}
	if changed("tor") {
		ov.Tor = &f.tor
	}
	if changed("export") {
		ov.Export = f.export
	}
	return ov
}

// Parse parses args into Options. Help and version output are written to
// stdout and reported as ErrHelp; any other error is a usage error.
func Parse(args []string, stdout, stderr io.Writer) (Options, error) {
	var (
		opts  Options
		flags scanFlagSet
		ran   bool
	)

	root := &cobra.Command{
		Use:   "osintagg [flags] -u USERNAME",
		Short: "Check whether a username exists across public platforms",
		Long: "osintagg probes each known platform for a profile page of the given\n" +
			"username and reports which ones exist. Results can be exported as JSON or CSV.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			ran = true
			opts.Command = CommandScan
			if len(args) == 1 {
				if opts.Username != "" {
					return fmt.Errorf("unexpected argument %q (use -p A,B or repeat -p)", args[0])
				}
				opts.Username = args[0]
			}
			if opts.Username == "" && !opts.ListPlatforms {
				return errors.New("a username is required (-u USERNAME)")
			}
			opts.Platforms = cleanList(opts.Platforms)
			opts.Overrides = flags.toOverrides(cmd.Flags())
			return nil
		},
	}
	root.SetVersionTemplate("osintagg version {{.Version}}\n")
	if args == nil {
		// cobra falls back to os.Args on nil.
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output and debug logging")
	pf.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	pf.StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file (default: "+config.DefaultConfigPath+" if present)")

	bindScanFlags(root.Flags(), &opts, &flags)

	root.AddCommand(&cobra.Command{
		Use:   "report FILE",
		Short: "Print the summary of a previously exported JSON result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ran = true
			opts.Command = CommandReport
			opts.ReportFile = args[0]
			return nil
		},
	})

	if err := root.Execute(); err != nil {
		return Options{}, err
	}
	if !ran {
		return Options{}, ErrHelp
	}
	return opts, nil
}

// secondsValue is a pflag.Value for durations that also takes bare
// numbers as seconds, matching the config file and env vars.
type secondsValue time.Duration

func (d *secondsValue) Set(s string) error {
	v, err := config.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = secondsValue(v)
	return nil
}

func (d *secondsValue) String() string { return time.Duration(*d).String() }

func (d *secondsValue) Type() string { return "duration" }

func cleanList(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

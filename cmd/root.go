package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/KaramelBytes/autolysis/internal/ai"
	cfgpkg "github.com/KaramelBytes/autolysis/internal/config"
	"github.com/KaramelBytes/autolysis/internal/logging"
	"github.com/KaramelBytes/autolysis/internal/pipeline"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	debug   bool
	// Overrides (applied only when set)
	flagHTTPTimeoutSec int
	flagModel          string
	flagFormat         string
	flagBins           int
	flagEncodings      []string
	flagDelimiter      string
	flagNoNarrative    bool
	flagLogFormat      string

	// Loaded configuration
	cfg *cfgpkg.Global
)

var (
	okMark   = color.New(color.FgGreen).SprintFunc()
	warnMark = color.New(color.FgYellow).SprintFunc()
	errMark  = color.New(color.FgRed, color.Bold).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:   "autolysis <dataset> [output_dir]",
	Short: "Autolysis: automated exploratory analysis of a CSV dataset",
	Long: `Autolysis loads a delimited dataset, computes descriptive statistics, renders a
correlation heatmap and per-column histograms, asks a language model for a
narrative, and writes everything to README.md in the output directory
(the current directory by default).

The API credential is read from AIPROXY_TOKEN (or AUTOLYSIS_API_KEY, or a .env file).`,
	Args:              cobra.RangeArgs(1, 2),
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	RunE:              runAnalysis,
}

// Execute is the entry point called by main.main()
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errMark("✗ Error:"), err)
		stop()
		os.Exit(1)
	}
}

func init() {
	// Persistent global flags available to all subcommands
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ~/.autolysis/config.yaml)")
	pf.BoolVar(&debug, "debug", false, "enable debug logging")
	pf.StringVar(&flagLogFormat, "log-format", "", "log output: console or json (overrides config)")

	f := rootCmd.Flags()
	f.IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	f.StringVar(&flagModel, "model", "", "chat model used for the narrative (overrides config)")
	f.StringVar(&flagFormat, "format", "", "image format: png, svg, pdf, jpg, tif or eps (overrides config)")
	f.IntVar(&flagBins, "bins", 0, "histogram bins; 0 uses Sturges' rule (overrides config)")
	f.StringSliceVar(&flagEncodings, "encoding", nil, "encodings to try in order, e.g. utf-8,latin-1 (overrides config)")
	f.StringVar(&flagDelimiter, "delimiter", "", `field delimiter; empty auto-detects, "\t" for tab (overrides config)`)
	f.BoolVar(&flagNoNarrative, "no-narrative", false, "skip the language model narrative; no credential needed")
}

// loadConfig reads .env, config file and environment, then applies flag overrides.
func loadConfig(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "%s failed to load .env: %v\n", warnMark("⚠ Warning:"), err)
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg = c
	applyOverrides(cmd, cfg)
	return nil
}

func applyOverrides(cmd *cobra.Command, c *cfgpkg.Global) {
	f := cmd.Flags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		c.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("model") && flagModel != "" {
		c.Model = flagModel
	}
	if f.Changed("format") && flagFormat != "" {
		c.ImageFormat = strings.ToLower(flagFormat)
	}
	if f.Changed("bins") {
		c.HistogramBins = flagBins
	}
	if f.Changed("encoding") && len(flagEncodings) > 0 {
		c.Encodings = flagEncodings
	}
	if f.Changed("delimiter") {
		c.Delimiter = flagDelimiter
	}
	if f.Changed("no-narrative") && flagNoNarrative {
		c.Narrate = false
	}
	if f.Changed("log-format") && flagLogFormat != "" {
		c.LogFormat = flagLogFormat
	}
	if debug {
		c.LogLevel = "debug"
	}
}

func runAnalysis(cmd *cobra.Command, args []string) error {
	// Arguments are valid from here on; failures are not usage errors.
	cmd.SilenceUsage = true
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	datasetPath := args[0]
	outDir := "."
	if len(args) == 2 {
		outDir = args[1]
	}

	var rt ai.Runtime
	if cfg.Narrate {
		rt = ai.NewClient(cfg.APIKey, cfg.BaseURL, cfg.HTTPTimeout())
	}
	p, err := pipeline.New(cfg, rt, log)
	if err != nil {
		return err
	}
	res, err := p.Run(cmd.Context(), datasetPath, outDir)
	if err != nil {
		return err
	}
	printResult(cmd.OutOrStdout(), res)
	return nil
}

func printResult(w io.Writer, res *pipeline.Result) {
	fmt.Fprintf(w, "%s Analyzed %s (%d rows, %d columns)\n", okMark("✓"), res.Summary.Source, res.Summary.Shape.Rows, res.Summary.Shape.Cols)
	fmt.Fprintf(w, "%s %d image(s) written\n", okMark("✓"), len(res.Artifacts))
	if !res.Narrative.Available {
		fmt.Fprintf(w, "%s Narrative unavailable: %s\n", warnMark("⚠"), res.Narrative.Reason)
	}
	if res.ReportErr != nil {
		fmt.Fprintf(w, "%s Report not written: %v\n", warnMark("⚠"), res.ReportErr)
		return
	}
	fmt.Fprintf(w, "%s Report: %s\n", okMark("✓"), res.ReportPath)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

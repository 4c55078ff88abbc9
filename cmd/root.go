package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"repocrawl/config"
	"repocrawl/logger"
	"repocrawl/models"
	"repocrawl/report"
	"repocrawl/service"
	"repocrawl/session"
)

func newRootCmd() *cobra.Command {
	v := viper.New()
	var configFile string

	cmd := &cobra.Command{
		Use:   "repocrawl [account]",
		Short: "Export every public repository of a GitHub user or organization as CSV.",
		Long: `repocrawl lists the public repositories of a GitHub user or organization,
enriches each one with commit, pull request, contributor, release, language
and README data, and writes the result to a dated CSV file.

The account may be given as an argument or through the ACCOUNT environment
variable. GITHUB_TOKEN raises the rate limit from 60 to 5000 requests per hour.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				v.Set("ACCOUNT", args[0])
			}
			return run(cmd, v, configFile)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "config file (default .env in the working directory)")
	flags.String("token", "", "GitHub token (GITHUB_TOKEN)")
	flags.String("api-url", config.DefaultAPIURL, "GitHub REST API base URL (GITHUB_API_URL)")
	flags.String("output-dir", ".", "directory the CSV is written to (OUTPUT_DIR)")
	flags.String("log-level", "info", "log level: debug, info, warn, error (LOG_LEVEL)")
	flags.String("log-format", "", "log format: json or console (LOG_FORMAT)")
	flags.Bool("store", false, "also store the crawl in Postgres (STORE_RESULTS)")

	for key, flag := range map[string]string{
		"GITHUB_TOKEN":   "token",
		"GITHUB_API_URL": "api-url",
		"OUTPUT_DIR":     "output-dir",
		"LOG_LEVEL":      "log-level",
		"LOG_FORMAT":     "log-format",
		"STORE_RESULTS":  "store",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	return cmd
}

func run(cmd *cobra.Command, v *viper.Viper, configFile string) error {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		pterm.Error.Println(err)
		return err
	}

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFormat); err != nil {
		pterm.Error.Printfln("Failed to initialize logger: %v", err)
		return err
	}
	defer logger.Sync()

	if cfg.GitHubToken == "" {
		pterm.Warning.Println(service.NoTokenWarning)
	}

	svc, err := service.NewService(cfg)
	if err != nil {
		pterm.Error.Println(err)
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("Error during service shutdown", zap.Error(err))
		}
	}()

	spinner, _ := pterm.DefaultSpinner.Start("Starting repository fetch...")
	status := newStatusSink(spinner)
	sess := session.New(cmd.Context(), status.update)

	stop := cancelOnSignal(sess)
	defer stop()

	result, err := svc.StartCrawl(sess, cfg.Account)
	if err != nil {
		spinner.Fail(status.lastOr(err.Error()))
		return err
	}
	if len(result.Records) == 0 && !result.Cancelled {
		spinner.Warning(status.last())
		return nil
	}

	path, err := svc.Export(result)
	if err != nil {
		spinner.Fail(fmt.Sprintf("An error occurred: %v", err))
		return err
	}
	spinner.Success(status.last())
	pterm.Info.Printfln("CSV written to %s", path)

	if result.Cancelled {
		pterm.Warning.Printfln("Crawl was cancelled; the export covers %d repositories.", len(result.Records))
	}

	if cfg.StoreResults {
		id, err := svc.Store(cmd.Context(), result)
		if err != nil {
			pterm.Warning.Printfln("Failed to store crawl: %v", err)
		} else {
			pterm.Info.Printfln("Crawl stored with id %d", id)
		}
	}

	printSummary(result)
	return nil
}

// statusSink forwards session status to the spinner and remembers the last
// message.
type statusSink struct {
	mu      sync.Mutex
	spinner *pterm.SpinnerPrinter
	msg     string
}

func newStatusSink(spinner *pterm.SpinnerPrinter) *statusSink {
	return &statusSink{spinner: spinner}
}

func (s *statusSink) update(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msg = msg
	s.spinner.UpdateText(msg)
}

func (s *statusSink) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.msg
}

func (s *statusSink) lastOr(fallback string) string {
	if msg := s.last(); msg != "" {
		return msg
	}
	return fallback
}

// cancelOnSignal cancels sess on SIGINT or SIGTERM. The in-flight window
// still finishes and its records are exported.
func cancelOnSignal(sess *session.Session) func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigChan:
			logger.Info("Shutdown signal received, finishing current window")
			sess.Cancel()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigChan)
		close(done)
	}
}

func printSummary(result *models.CrawlResult) {
	summary := report.Summarize(result)
	data := pterm.TableData{{"Metric", "Value"}}
	data = append(data, summary.Rows()...)
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		logger.Warn("Failed to render summary", zap.Error(err))
	}
}

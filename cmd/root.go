package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"loadpulse/internal/banner"
	"loadpulse/internal/cli"
	"loadpulse/internal/config"
	"loadpulse/internal/dummy"
	"loadpulse/internal/storage"
)

var (
	planFile string
	liveView bool
	verbose  bool

	// Quick-mode flags (no plan file)
	url      string
	vus      int
	duration time.Duration
	timeout  time.Duration
	thinkMin time.Duration
	thinkMax time.Duration
	health   string
	outPfx   string
)

var rootCmd = &cobra.Command{
	Use:   "loadpulse",
	Short: "loadpulse - scenario-driven HTTP load harness",
	Long: `
loadpulse drives populations of virtual users against an HTTP service,
aggregates latency and error metrics, and gates on configured
thresholds. Exit code is non-zero when the verdict fails, so it slots
straight into CI.

Run a full plan:    loadpulse --plan plan.yaml --out results
Quick single run:   loadpulse --url http://localhost:8080 --vus 10 --duration 30s`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if cfg == nil {
			cmd.Help()
			return
		}

		log := newLogger()
		defer log.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		passed, err := cli.Run(ctx, cfg, log, liveView)
		if err != nil {
			fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
			os.Exit(1)
		}
		if !passed {
			os.Exit(1)
		}
	},
}

func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(dummyCmd)
	rootCmd.AddCommand(historyCmd)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose structured logging")

	rootCmd.Flags().StringVar(&planFile, "plan", "", "YAML test plan file")
	rootCmd.Flags().BoolVar(&liveView, "live", false, "Show the live dashboard while running")

	rootCmd.Flags().StringVarP(&url, "url", "u", "", "Target base URL (quick mode, no plan file)")
	rootCmd.Flags().IntVarP(&vus, "vus", "U", 10, "Virtual users (quick mode)")
	rootCmd.Flags().DurationVarP(&duration, "duration", "d", 10*time.Second, "Test duration (quick mode)")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Per-request timeout")
	rootCmd.Flags().DurationVar(&thinkMin, "think-min", time.Second, "Minimum think time between iterations")
	rootCmd.Flags().DurationVar(&thinkMax, "think-max", 3*time.Second, "Maximum think time between iterations")
	rootCmd.Flags().StringVar(&health, "health", "/health", "Health check path")
	rootCmd.Flags().StringVarP(&outPfx, "out", "o", "", "Output filename prefix for report artifacts")
}

// resolveConfig builds the plan from --plan or the quick-mode flags.
// Nil config with nil error means neither was given.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	if planFile != "" {
		cfg, err := config.Load(planFile)
		if err != nil {
			return nil, err
		}
		if cmd.Flags().Changed("out") {
			cfg.OutPrefix = outPfx
		}
		return cfg, nil
	}

	if url == "" {
		return nil, nil
	}

	cfg := config.Default()
	cfg.BaseURL = url
	cfg.HealthPath = health
	cfg.Timeout = timeout
	cfg.ThinkMin = thinkMin
	cfg.ThinkMax = thinkMax
	cfg.OutPrefix = outPfx
	cfg.Scenarios = []config.Scenario{{
		Name:     "default",
		Executor: config.ExecutorConstant,
		VUs:      vus,
		Duration: duration,
	}}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger() *zap.Logger {
	if verbose {
		log, _ := zap.NewDevelopment()
		return log
	}
	c := zap.NewProductionConfig()
	c.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	log, _ := c.Build()
	return log
}

var dummyCmd = &cobra.Command{
	Use:   "dummy",
	Short: "Run the built-in dummy target server",
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")
		if err := dummy.Start(dummy.ServerConfig{Port: port}); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past runs and their verdicts",
	Run: func(cmd *cobra.Command, args []string) {
		store, err := storage.Open()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer store.Close()

		records, err := store.List()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if len(records) == 0 {
			fmt.Println("no runs recorded yet")
			return
		}

		fmt.Printf("%-20s %-30s %8s %7s %9s %9s %s\n",
			"WHEN", "TARGET", "REQS", "ERR%", "AVG(ms)", "P95(ms)", "VERDICT")
		for _, rec := range records {
			verdict := "PASS"
			if !rec.Passed {
				verdict = "FAIL"
			}
			fmt.Printf("%-20s %-30s %8d %6.2f%% %9.1f %9.1f %s\n",
				rec.Timestamp.Format("2006-01-02 15:04:05"),
				rec.Target, rec.Requests, rec.ErrorRate*100,
				rec.AvgMs, rec.P95Ms, verdict)
		}
	},
}

func init() {
	dummyCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"spaceplan/internal/action"
	"spaceplan/internal/agent"
	"spaceplan/internal/brief"
	"spaceplan/internal/config"
	"spaceplan/internal/intent"
	"spaceplan/internal/oracle"
	"spaceplan/internal/program"
	"spaceplan/internal/server"
	"spaceplan/internal/snapshot"
	"spaceplan/internal/typology"
)

var (
	// Global flags
	cfgPath string
	verbose bool

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "spaceplan",
	Short: "spaceplan - conversational space programming for architectural projects",
	Long: `spaceplan turns free-text requests into exact area programs.

A program is a set of named areas (per-unit size × count) and groups. Requests
are classified to an action or handled by the tool-calling agent; every change
comes back as a reviewable proposal with exact, drift-free numbers.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if verbose {
			cfg.Logging.Debug = true
		}
		return cfg.Validate()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [text|file]",
	Short: "Classify input text: prompt, brief, or garbage",
	Long: `Runs the input classifier and prints category, quality tier, recommended
handling strategy and the extracted signals. Pass a file path to classify its
contents, or the text itself.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

var scaleCmd = &cobra.Command{
	Use:   "scale <typology> <area-m2>",
	Short: "Check an area figure against its building typology",
	Args:  cobra.ExactArgs(2),
	RunE:  runScale,
}

var runCmd = &cobra.Command{
	Use:   "run [request]",
	Short: "Execute one agent turn against a program snapshot",
	Long: `Runs a single request through the tool-calling agent and prints the
resulting proposals. The program snapshot is loaded from --snapshot; without
one the turn starts from an empty program.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTurn,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the agent over HTTP",
	RunE:  runServe,
}

var (
	snapshotPath string
	selectIDs    []string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath(), "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd.Flags().StringVar(&snapshotPath, "snapshot", "", "program snapshot JSON file")
	runCmd.Flags().StringSliceVar(&selectIDs, "select", nil, "selected node ids")

	rootCmd.AddCommand(analyzeCmd, scaleCmd, runCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "spaceplan.yaml"
	}
	return home + "/.spaceplan/config.yaml"
}

// buildRuntime wires the oracle, executor, actions and orchestrator the
// same way for run and serve.
func buildRuntime(ctx context.Context, reg prometheus.Registerer) (*agent.Orchestrator, error) {
	oc, err := oracle.NewGemini(ctx, cfg.Oracle.APIKey, cfg.Oracle.Model, cfg.OracleTimeout(), logger)
	if err != nil {
		return nil, fmt.Errorf("oracle init: %w", err)
	}
	exec := intent.NewExecutor(logger)
	registry := action.NewRegistry(logger)
	registry.MustRegister(action.NewCreateAction(oc, exec, logger))
	registry.MustRegister(action.NewScaleAction(exec, logger))
	registry.MustRegister(action.NewUnfoldAction(oc, exec, logger))
	registry.MustRegister(action.NewOrganizeAction(oc, exec, logger))
	registry.MustRegister(action.NewParseBriefAction(oc, exec, logger))

	metrics := agent.NewMetrics(reg)
	return agent.NewOrchestrator(oc, exec, registry, cfg.Agent.MaxIterations, cfg.ToolTimeout(), metrics, logger), nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	if data, err := os.ReadFile(text); err == nil {
		text = string(data)
	}

	cls := brief.Analyze(text)
	fmt.Printf("Category:   %s (confidence %.2f)\n", cls.Category, cls.Confidence)
	fmt.Printf("Quality:    %s\n", cls.Quality)
	fmt.Printf("Strategy:   %s\n", cls.Strategy)
	for _, w := range cls.Warnings {
		fmt.Printf("Warning:    %s\n", w)
	}
	for _, s := range cls.Suggestions {
		fmt.Printf("Suggestion: %s\n", s)
	}
	return nil
}

func runScale(cmd *cobra.Command, args []string) error {
	area, err := strconv.ParseFloat(args[1], 64)
	if err != nil || area <= 0 {
		return fmt.Errorf("area must be a positive number, got %q", args[1])
	}
	typ := typology.Match(args[0])
	if typ == nil {
		return fmt.Errorf("unknown typology %q", args[0])
	}

	analysis := typology.AnalyzeScale(area, typ)
	fmt.Printf("Severity:   %s (confidence %.2f)\n", analysis.Severity, analysis.Confidence)
	fmt.Printf("Assessment: %s\n", analysis.Message)
	for _, alt := range analysis.Alternatives {
		fmt.Printf("  - %s\n", alt.Label)
	}
	return nil
}

func runTurn(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	orch, err := buildRuntime(ctx, nil)
	if err != nil {
		return err
	}

	snap := &program.Context{}
	if snapshotPath != "" {
		snap, err = snapshot.Load(snapshotPath)
		if err != nil {
			return err
		}
	}
	sel := program.Selection{NodeIDs: selectIDs}
	request := strings.Join(args, " ")

	// Requests the registry recognizes are answered without the
	// conversational loop; everything else goes through the agent.
	resp, handled := orch.RunDirect(ctx, request, sel, snap)
	if !handled {
		resp, err = orch.RunTurn(ctx, request, sel, snap)
		if err != nil {
			return err
		}
	}

	fmt.Println(resp.Message)
	for _, p := range resp.Proposals {
		fmt.Printf("  [%s] %s: %s\n", p.Status, p.Kind, p.Summary)
	}
	if verbose {
		for _, rec := range resp.ToolLog {
			status := "ok"
			if rec.IsError {
				status = "error"
			}
			fmt.Printf("  tool %s (%s, %dms): %s\n", rec.Tool, status, rec.DurationMs, rec.Result)
		}
	}
	if resp.Terminal != agent.TerminalDone {
		fmt.Printf("Turn ended early: %s\n", resp.Terminal)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	orch, err := buildRuntime(ctx, reg)
	if err != nil {
		return err
	}

	srv := server.New(cfg.Server.Addr, orch, reg, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

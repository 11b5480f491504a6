// Package main is the entry point for wec, the Workflow Execution Core CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cortexflow/wec/internal/config"
	"github.com/cortexflow/wec/internal/document"
	"github.com/cortexflow/wec/internal/extensions"
	"github.com/cortexflow/wec/internal/logging"
	"github.com/cortexflow/wec/internal/planner"
	"github.com/cortexflow/wec/internal/wec/dispatcher"
	"github.com/cortexflow/wec/internal/wec/eventlog"
	"github.com/cortexflow/wec/internal/wec/interpreter"
	"github.com/cortexflow/wec/internal/wec/observer"
	"github.com/cortexflow/wec/internal/wec/watchtui"

	tea "github.com/charmbracelet/bubbletea"
)

var (
	cfgPath     string
	logDirFlag  string
	resumeFlag  bool
	observeFlag bool
	logger      zerolog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "wec",
		Short: "Workflow Execution Core — a deterministic interpreter for declarative AI-planned workflows",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initLogging()
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.wec/config.yaml)")

	rootCmd.AddCommand(executeCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initLogging bootstraps the process-level zerolog logger used for the
// CLI's run lifecycle and outcome messages, and the component-level
// internal/logging logger the Interpreter and C1/C4/C5 carry their own
// WithComponent loggers from — two loggers with two jobs.
func initLogging() error {
	level := zerolog.InfoLevel
	componentLevel := logging.LevelInfo
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(lvl)); err == nil {
			level = parsed
		}
		componentLevel = logging.ParseLevel(lvl)
	}
	zerolog.SetGlobalLevel(level)
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
	logging.SetLevel(componentLevel)
	return nil
}

func loadConfig() (*config.Config, error) {
	if cfgPath != "" {
		return config.LoadFromPath(cfgPath)
	}
	return config.Load()
}

// executeCmd implements `wec execute <aol_path> [--resume] [--log-dir DIR]`.
func executeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execute <workflow.aol>",
		Short: "Execute a workflow document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecute(args[0])
		},
	}
	cmd.Flags().BoolVar(&resumeFlag, "resume", false, "resume from the last successful step recorded in the event log")
	cmd.Flags().StringVar(&logDirFlag, "log-dir", "", "directory holding the event log (default from config)")
	cmd.Flags().BoolVar(&observeFlag, "observe", false, "expose a WebSocket feed of the run's events")
	return cmd
}

func runExecute(path string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	wf, err := document.Load(path)
	if err != nil {
		return fmt.Errorf("load workflow: %w", err)
	}

	logDir := cfg.EventLog.Dir
	if logDirFlag != "" {
		logDir = logDirFlag
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	log, err := eventlog.Open(cfg.EventLog.Backend, logDir, path)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer log.Close()

	if !resumeFlag {
		if existing, _ := log.Events(); len(existing) > 0 {
			return fmt.Errorf("event log for %q already has recorded events; pass --resume to continue it", path)
		}
	}

	var hub *observer.Hub
	var execLog eventlog.Log = log
	if observeFlag {
		hub = observer.NewHub(observer.DefaultConfig())
		if err := hub.Start(); err != nil {
			return fmt.Errorf("start observer: %w", err)
		}
		defer hub.Stop()
		execLog = observer.NewTeeLog(log, hub)
		logger.Info().Int("port", observer.DefaultPort).Msg("observer listening")
	}

	registry := buildRegistry()

	var opts []interpreter.Option
	if cfg.Retry.DefaultMaxRetries > 0 {
		opts = append(opts, interpreter.WithDefaultMaxRetries(cfg.Retry.DefaultMaxRetries))
	}
	if cfg.Planner.AgentURL != "" {
		opts = append(opts, interpreter.WithPlanner(planner.New(cfg.Planner.AgentURL)))
	}
	opts = append(opts, interpreter.WithStrictEmptyEntitlements(cfg.Entitlements.StrictEmptyList))

	interp := interpreter.New(wf, registry, execLog, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Warn().Msg("interrupt received, cancelling run")
		cancel()
	}()

	logger.Info().Str("workflow", path).Bool("resume", resumeFlag).Msg("starting interpreter")

	if err := interp.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("workflow aborted")
		return err
	}

	logger.Info().Str("workflow", path).Msg("workflow complete")
	return nil
}

func buildRegistry() *dispatcher.Registry {
	reg := dispatcher.NewRegistry()
	reg.Register("Bash", extensions.NewBashExtension())
	reg.Register("FileAccess", extensions.NewFileExtension())
	if apiKey := os.Getenv("TAVILY_API_KEY"); apiKey != "" {
		reg.Register("WebSearch", extensions.NewWebSearchExtension(apiKey))
	}
	return reg
}

// planCmd implements `wec plan <prompt> <output_path>`, submitting a
// natural-language prompt to the Planner and writing its reply verbatim —
// the Planner's own output format is out of scope here; wec only relays it.
func planCmd() *cobra.Command {
	var agentURL string
	cmd := &cobra.Command{
		Use:   "plan <prompt> <output_path>",
		Short: "Ask the configured Planner agent to draft a workflow for a prompt",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			url := agentURL
			if url == "" {
				url = cfg.Planner.AgentURL
			}
			if url == "" {
				return fmt.Errorf("no planner agent URL configured (set planner.agent_url or --agent-url)")
			}

			client := planner.New(url)
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			result, err := client.Plan(ctx, args[0])
			if err != nil {
				return fmt.Errorf("plan request: %w", err)
			}

			if err := os.MkdirAll(filepath.Dir(args[1]), 0755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
			return os.WriteFile(args[1], []byte(result), 0644)
		},
	}
	cmd.Flags().StringVar(&agentURL, "agent-url", "", "planner agent URL (overrides config)")
	return cmd
}

// watchCmd implements `wec watch <workflow.aol>`, a live terminal view of a
// run's event log. The log is located from the workflow file's stem under
// the log directory, the same way `execute` names it.
func watchCmd() *cobra.Command {
	var backend string
	cmd := &cobra.Command{
		Use:   "watch <workflow.aol>",
		Short: "Watch a workflow's event log live in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if backend == "" {
				backend = cfg.EventLog.Backend
			}
			logDir := cfg.EventLog.Dir
			if logDirFlag != "" {
				logDir = logDirFlag
			}

			log, err := eventlog.Open(backend, logDir, args[0])
			if err != nil {
				return fmt.Errorf("open event log: %w", err)
			}
			defer log.Close()

			model := watchtui.New(log, filepath.Base(args[0]))
			program := tea.NewProgram(model)
			_, err = program.Run()
			return err
		},
	}
	cmd.Flags().StringVar(&backend, "backend", "", "event log backend: json or sqlite (default from config)")
	cmd.Flags().StringVar(&logDirFlag, "log-dir", "", "directory holding the event log (default from config)")
	return cmd
}

// serveCmd implements `wec serve`, starting a standalone observer Hub. It
// is not connected to any run: `execute --observe` starts its own Hub in
// the executing process, so this Hub publishes no run events.
func serveCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a standalone event observer WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			hub := observer.NewHub(observer.Config{Port: port, HistorySize: observer.DefaultConfig().HistorySize})
			if err := hub.Start(); err != nil {
				return fmt.Errorf("start observer: %w", err)
			}
			logger.Info().Int("port", port).Msg("observer serving")

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			<-sigCh

			return hub.Stop()
		},
	}
	cmd.Flags().IntVar(&port, "port", observer.DefaultPort, "port to listen on")
	return cmd
}

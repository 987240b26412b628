package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"datadesigner/internal/agent"
	"datadesigner/internal/config"
	"datadesigner/internal/dataset"
	"datadesigner/internal/llm"
	"datadesigner/internal/logging"
	"datadesigner/internal/nemo"
	"datadesigner/internal/store"
	"datadesigner/internal/tools"
)

var (
	// Global flags
	verbose    bool
	configPath string
	sessionID  string
	timeout    time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "designer",
	Short: "Conversational synthetic data designer",
	Long: `designer is a chat-driven agent for designing synthetic datasets.

Describe the dataset you want in plain language; the agent translates
it into a schema of sampler and LLM-generated columns, submits a
generation job to the remote data designer service, polls it to
completion, and imports the results into a local DuckDB viewer.

Run without arguments to start the interactive chat.`,
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

		// Category file logging is opt-in via .designer/config.json.
		if ws, err := os.Getwd(); err == nil {
			if err := logging.Initialize(ws); err != nil {
				logger.Warn("file logging unavailable", zap.Error(err))
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

// askCmd processes a single message and exits
var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Process one message and print the reply",
	Long: `Sends a single message through the agent and prints the reply.
Conversation history persists per session, so repeated ask calls with
the same --session continue one conversation.

Example:
  designer ask "a table of 100 customers with name, age, and a short bio"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

// tablesCmd lists imported dataset tables
var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List imported dataset tables with row counts",
	RunE:  listTables,
}

// previewCmd shows the first rows of an imported table
var previewCmd = &cobra.Command{
	Use:   "preview [table]",
	Short: "Print the first rows of an imported dataset table",
	Args:  cobra.ExactArgs(1),
	RunE:  previewTable,
}

// watchCmd runs the output-directory watcher in the foreground
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the results directory and auto-import new files",
	RunE:  runWatch,
}

// initCmd writes a starter config file
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Writes the default configuration to the --config path so it can
be edited. Existing files are not overwritten.`,
	RunE: runInit,
}

// statusCmd shows configuration and service reachability
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and remote service status",
	RunE:  showStatus,
}

// toolsCmd lists the agent's tool surface
var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools available to the agent, by category",
	RunE:  listTools,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "designer.yaml", "Config file path")
	rootCmd.PersistentFlags().StringVarP(&sessionID, "session", "s", "default", "Session identifier")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Per-turn timeout (includes job polling)")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(tablesCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(toolsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtime bundles everything a command needs to serve the agent.
type runtime struct {
	cfg      *config.Config
	agent    *agent.Agent
	datasets *dataset.Store
	client   *nemo.Client
	close    func()
}

// buildRuntime loads config and wires the session store, remote client,
// viewer database, tool registry, and orchestrator together.
func buildRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sessions, err := store.FromConfig(ctx, &cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}

	client := nemo.NewClient(nemo.Config{
		BaseURL: cfg.Designer.BaseURL,
		Project: cfg.Designer.Project,
		Timeout: cfg.GetDesignerTimeout(),
	})

	var datasets *dataset.Store
	if cfg.Dataset.DatabasePath != "" {
		datasets, err = dataset.Open(cfg.Dataset.DatabasePath)
		if err != nil {
			logger.Warn("viewer database unavailable, imports disabled", zap.Error(err))
			datasets = nil
		}
	}

	registry := tools.NewRegistry()
	tools.NewToolset(sessions, client, datasets, cfg.Dataset.OutputDir).RegisterAll(registry)

	model := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.GetLLMTimeout(),
	})

	opts := []agent.Option{}
	var checkpoint *agent.Checkpoint
	if cfg.Agent.CheckpointPath != "" {
		checkpoint, err = agent.OpenCheckpoint(cfg.Agent.CheckpointPath)
		if err != nil {
			logger.Warn("checkpoint store unavailable, history will not persist", zap.Error(err))
		} else {
			opts = append(opts, agent.WithCheckpoint(checkpoint))
		}
	}

	designer, err := agent.New(model, registry, agent.Config{
		MaxIterations:   cfg.Agent.MaxIterations,
		HistoryLimit:    cfg.Agent.HistoryLimit,
		PollInterval:    cfg.GetPollInterval(),
		MaxPollAttempts: cfg.Agent.MaxPollAttempts,
	}, opts...)
	if err != nil {
		return nil, err
	}

	return &runtime{
		cfg:      cfg,
		agent:    designer,
		datasets: datasets,
		client:   client,
		close: func() {
			if checkpoint != nil {
				_ = checkpoint.Close()
			}
			if datasets != nil {
				_ = datasets.Close()
			}
		},
	}, nil
}

// runAsk handles one message end to end.
func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	rt, err := buildRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	message := strings.Join(args, " ")
	logger.Info("Processing message",
		zap.String("session", sessionID),
		zap.Int("length", len(message)))

	result, err := rt.agent.ProcessTurn(ctx, sessionID, message)
	if err != nil {
		return fmt.Errorf("turn failed: %w", err)
	}

	fmt.Println(result.Reply)
	if result.JobID != "" {
		logger.Info("Turn finished",
			zap.String("phase", string(result.Phase)),
			zap.String("job", result.JobID),
			zap.String("outcome", string(result.Outcome)))
	}
	return nil
}

// listTables prints imported viewer tables with their row counts.
func listTables(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(context.Background())
	if err != nil {
		return err
	}
	defer rt.close()

	if rt.datasets == nil {
		return fmt.Errorf("no viewer database configured (set dataset.database_path)")
	}

	tables, err := rt.datasets.Tables()
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	if len(tables) == 0 {
		fmt.Println("No datasets imported yet.")
		return nil
	}

	for _, table := range tables {
		count, err := rt.datasets.RowCount(table)
		if err != nil {
			fmt.Printf("  %s (row count unavailable: %v)\n", table, err)
			continue
		}
		fmt.Printf("  %s (%d rows)\n", table, count)
	}
	return nil
}

// previewTable prints the first rows of one table.
func previewTable(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(context.Background())
	if err != nil {
		return err
	}
	defer rt.close()

	if rt.datasets == nil {
		return fmt.Errorf("no viewer database configured (set dataset.database_path)")
	}

	rows, err := rt.datasets.Preview(args[0], 10)
	if err != nil {
		return fmt.Errorf("preview %s: %w", args[0], err)
	}
	if len(rows) == 0 {
		fmt.Println("(empty table)")
		return nil
	}

	for i, row := range rows {
		fmt.Printf("%d: %v\n", i+1, row)
	}
	return nil
}

// runWatch blocks on the auto-import watcher until interrupted.
func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := buildRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	if rt.datasets == nil {
		return fmt.Errorf("no viewer database configured (set dataset.database_path)")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Stopping watcher")
		cancel()
	}()

	fmt.Printf("Watching %s for result files. Press Ctrl+C to stop.\n", rt.cfg.Dataset.OutputDir)
	watcher := dataset.NewWatcher(rt.datasets, rt.cfg.Dataset.OutputDir)
	if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("watcher: %w", err)
	}
	return nil
}

// listTools prints the registered tool surface grouped by category, in
// priority order. Registration needs no credentials, so this works
// before the config is fully set up.
func listTools(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	sessions := store.New(store.NewFileBackend(cfg.Store.Path), nil)
	client := nemo.NewClient(nemo.Config{
		BaseURL: cfg.Designer.BaseURL,
		Project: cfg.Designer.Project,
	})
	registry := tools.NewRegistry()
	tools.NewToolset(sessions, client, nil, cfg.Dataset.OutputDir).RegisterAll(registry)

	categories := []tools.ToolCategory{
		tools.CategorySchema, tools.CategoryJob, tools.CategoryDataset, tools.CategoryGeneral,
	}
	for _, cat := range categories {
		listed := registry.GetByCategory(cat)
		if len(listed) == 0 {
			continue
		}
		fmt.Printf("%s\n", cat)
		for _, tool := range listed {
			fmt.Printf("  %-24s %s\n", tool.Name, tool.Description)
		}
	}
	fmt.Printf("\n%d tools registered\n", registry.Count())
	return nil
}

// runInit writes the default config to disk.
func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config file %s already exists; not overwriting.\n", configPath)
		return nil
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		return err
	}
	fmt.Printf("Wrote default config to %s\n", configPath)
	fmt.Println("Set OPENAI_API_KEY or LITELLM_API_KEY before chatting.")
	return nil
}

// showStatus reports config and probes the remote service.
func showStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	fmt.Println("Data Designer Status")
	fmt.Println("====================")
	fmt.Printf("Config:       %s\n", configPath)
	fmt.Printf("Service:      %s (project %s)\n", cfg.Designer.BaseURL, cfg.Designer.Project)
	fmt.Printf("Store:        %s\n", cfg.Store.Backend)
	fmt.Printf("Model:        %s via %s\n", cfg.LLM.Model, cfg.LLM.BaseURL)
	if cfg.LLM.APIKey != "" {
		fmt.Println("API key:      configured")
	} else {
		fmt.Println("API key:      NOT configured (set OPENAI_API_KEY or LITELLM_API_KEY)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client := nemo.NewClient(nemo.Config{
		BaseURL: cfg.Designer.BaseURL,
		Project: cfg.Designer.Project,
		Timeout: 10 * time.Second,
	})
	if err := client.Health(ctx); err != nil {
		fmt.Printf("Health:       unreachable (%v)\n", err)
	} else {
		fmt.Println("Health:       ok")
	}
	return nil
}

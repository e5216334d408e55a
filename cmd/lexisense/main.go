package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/hrygo/lexisense/ai"
	"github.com/hrygo/lexisense/ai/agents"
	"github.com/hrygo/lexisense/ai/agents/tools"
	"github.com/hrygo/lexisense/ai/core/llm"
	"github.com/hrygo/lexisense/ai/knowledge"
	"github.com/hrygo/lexisense/ai/metrics"
	"github.com/hrygo/lexisense/ai/observability/logging"
	"github.com/hrygo/lexisense/ai/orchestrator"
	"github.com/hrygo/lexisense/ai/routing"
	"github.com/hrygo/lexisense/ai/session"
	"github.com/hrygo/lexisense/internal/profile"
	"github.com/hrygo/lexisense/internal/version"
	"github.com/hrygo/lexisense/server"
	"github.com/hrygo/lexisense/store"
	"github.com/hrygo/lexisense/store/db/postgres"
	"github.com/hrygo/lexisense/store/db/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   "lexisense",
	Short: `An AI-powered legal consultation service. Classifies, plans, executes, and reviews answers across labor, family, contract, company, criminal, and procedural law.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// Only load .env for direct binary execution; systemd units
		// carry their environment in the unit file.
		if !isRunningAsSystemdService() {
			_ = godotenv.Load()
		}
		return nil
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		instanceProfile := &profile.Profile{
			Mode:    viper.GetString("mode"),
			Addr:    viper.GetString("addr"),
			Port:    viper.GetInt("port"),
			Data:    viper.GetString("data"),
			Driver:  viper.GetString("driver"),
			DSN:     viper.GetString("dsn"),
			Version: version.GetCurrentVersion(viper.GetString("mode")),
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			return fmt.Errorf("invalid profile: %w", err)
		}
		return run(instanceProfile)
	},
}

func run(p *profile.Profile) error {
	logger := logging.Setup(p.Mode)

	aiConfig := ai.NewConfigFromProfile(p)
	if err := aiConfig.Validate(); err != nil {
		return err
	}
	if !aiConfig.Enabled {
		return errors.New("LLM API key is required; set LEXISENSE_AI_LLM_API_KEY")
	}

	service, err := llm.NewService(&aiConfig.LLM)
	if err != nil {
		return fmt.Errorf("create llm service: %w", err)
	}
	intentService, err := llm.NewService(&aiConfig.Intent)
	if err != nil {
		return fmt.Errorf("create intent llm service: %w", err)
	}

	exporter := metrics.NewPrometheusExporter(metrics.DefaultConfig())

	registry := tools.NewRegistry()
	registry.Register(tools.NewLawSearchTool(knowledge.NewRetriever()))
	registry.Register(tools.NewCalculatorTool())
	registry.Register(tools.NewDatetimeTool())
	registry.Register(tools.NewExtractParamsTool())
	invoker := tools.NewInvoker(registry,
		tools.WithTimeout(aiConfig.ToolTimeout),
		tools.WithRateLimit(rate.Limit(10), 20),
		tools.WithObserver(exporter))

	executor := agents.NewReActExecutor(service, registry, invoker,
		agents.WithMaxSteps(aiConfig.MaxSteps),
		agents.WithExecutorLogger(logger))
	critic, err := agents.NewCriticEvaluator(service, logger)
	if err != nil {
		return fmt.Errorf("create critic: %w", err)
	}
	controller := agents.NewRefinementController(executor, critic, invoker, service,
		agents.WithMaxRounds(aiConfig.MaxCriticRounds),
		agents.WithControllerLogger(logger))
	agentRegistry := agents.NewAgentRegistry(agents.NewPlanner(), controller, logger)
	classifier := routing.NewIntentClassifier(intentService,
		routing.WithFallback(aiConfig.FallbackDomain, aiConfig.FallbackIntent),
		routing.WithClassifierLogger(logger))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	managerOpts := []session.ManagerOption{
		session.WithIdleTimeout(aiConfig.SessionIdleTimeout),
		session.WithHistorySize(aiConfig.SessionHistorySize),
	}
	if driver, err := newDBDriver(p); err != nil {
		printDatabaseError(err, p)
		return fmt.Errorf("create db driver: %w", err)
	} else if driver != nil {
		storeInstance := store.New(driver)
		if err := storeInstance.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		defer storeInstance.Close()
		managerOpts = append(managerOpts, session.WithStore(storeInstance))
	}
	sessions := session.NewManager(logger, managerOpts...)
	defer sessions.Shutdown(context.Background())

	orch := orchestrator.New(classifier, agentRegistry, sessions, service,
		orchestrator.WithMetrics(exporter),
		orchestrator.WithLogger(logger))

	go service.Warmup(ctx)

	s := server.NewServer(p, orch, sessions, exporter, logger)

	c := make(chan os.Signal, 1)
	signal.Notify(c, terminationSignals...)
	go func() {
		<-c
		logger.Info("shutting down")
		cancel()
	}()

	printGreetings(p)

	if err := s.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// newDBDriver returns the configured persistence driver, or nil when
// persistence is disabled (memory-only sessions).
func newDBDriver(p *profile.Profile) (store.Driver, error) {
	switch p.Driver {
	case "sqlite":
		return sqlite.NewDB(p)
	case "postgres":
		return postgres.NewDB(p)
	case "", "memory":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown driver %q (sqlite, postgres, memory)", p.Driver)
	}
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 28090)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28090, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "session persistence driver (sqlite, postgres, memory)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name(aka. DSN)")

	for _, name := range []string{"mode", "addr", "port", "data", "driver", "dsn"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("lexisense")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("LexiSense %s started successfully!\n", p.Version)
	fmt.Printf("Mode: %s\n", p.Mode)
	fmt.Printf("Session persistence: %s\n", p.Driver)
	if len(p.Addr) == 0 {
		fmt.Printf("Server running on port %d\n", p.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", p.Addr, p.Port)
	}
}

// isRunningAsSystemdService detects if the process is running under systemd.
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

// printDatabaseError provides actionable messages for the common
// database connection failures.
func printDatabaseError(err error, p *profile.Profile) {
	errMsg := err.Error()
	switch {
	case strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no such host"):
		fmt.Fprintln(os.Stderr, "PostgreSQL is not reachable. Start it, or use --driver=sqlite for development.")
	case strings.Contains(errMsg, "SSL is not enabled") || strings.Contains(errMsg, "sslmode"):
		fmt.Fprintln(os.Stderr, "PostgreSQL SSL mismatch. Add ?sslmode=disable to the DSN.")
	case strings.Contains(errMsg, "password authentication failed"):
		fmt.Fprintln(os.Stderr, "PostgreSQL authentication failed. Check the credentials in the DSN or .env file.")
	default:
		fmt.Fprintln(os.Stderr, "Database error:", errMsg)
	}
	if p.Driver == "postgres" {
		fmt.Fprintln(os.Stderr, "Sessions can also run without persistence: --driver=memory")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jcdickinson/phpdomain/internal/config"
	"github.com/jcdickinson/phpdomain/internal/daemon"
	"github.com/jcdickinson/phpdomain/internal/logging"
	"github.com/jcdickinson/phpdomain/internal/mcp"
)

var (
	debug   bool
	rootDir string
)

var rootCmd = &cobra.Command{
	Use:   "phpdomain",
	Short: "PHP API documentation builder and MCP server",
	Long: `phpdomain reads reStructuredText and Markdown sources that describe PHP
objects with php directives, resolves their cross-references and serves the
result to MCP clients. Without a subcommand it runs the MCP server on stdio.`,
	Run: runServe,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("command failed: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "run daemon in-process (visible log output)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "root", "C", ".", "project directory")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(objectsCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(clearCacheCmd)
}

func loadConfig() *config.Config {
	cfg, err := config.Load(rootDir)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	return cfg
}

// consoleLogger logs to stderr at the configured level.
func consoleLogger(cfg *config.Config) *slog.Logger {
	level := cfg.Log.Level
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(logging.Console(os.Stderr, level))
}

// connectDaemon returns a client for the daemon serving the project. In
// debug mode the daemon runs in-process so its log output is visible.
func connectDaemon() (*daemon.Client, error) {
	cfg := loadConfig()
	socketPath := config.SocketPath(cfg.Root)

	if !debug {
		return daemon.ConnectOrSpawn(socketPath, cfg.Root)
	}

	// In debug mode: stop any existing daemon, then start in-process
	client := daemon.NewClient(socketPath)
	if client.IsAvailable() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client.Shutdown(shutdownCtx)
		cancel()
		time.Sleep(200 * time.Millisecond)
	}

	logger := consoleLogger(cfg)
	srv := daemon.NewServer(daemon.NewService(cfg, logger), socketPath, logger)
	go func() {
		if err := srv.Start(context.Background()); err != nil {
			logger.Error("in-process daemon failed", "error", err)
		}
	}()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
		if client.IsAvailable() {
			return client, nil
		}
	}

	return nil, fmt.Errorf("in-process daemon did not start within 5 seconds")
}

func runServe(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	server := mcp.NewServer(client)

	errCh := make(chan error)
	go func() { errCh <- server.Run() }()

	if err := waitForSignal(errCh); err != nil {
		log.Fatalf("server error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(ctx)
}

func waitForSignal(errCh chan error) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		log.Printf("received signal: %s", sig)
		return nil
	case err := <-errCh:
		return err
	}
}

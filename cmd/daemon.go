package cmd

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jcdickinson/phpdomain/internal/config"
	"github.com/jcdickinson/phpdomain/internal/daemon"
	"github.com/jcdickinson/phpdomain/internal/logging"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background daemon (usually spawned automatically)",
	Run:   runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(rootDir)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logPath := config.LogPath(cfg.Root)
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		slog.Error("failed to create log directory", "error", err)
		os.Exit(1)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		slog.Error("failed to open log file", "error", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := slog.New(logging.File(logFile, cfg.Log.Level))
	slog.SetDefault(logger)

	srv := daemon.NewServer(daemon.NewService(cfg, logger), config.SocketPath(cfg.Root), logger)
	if err := srv.Start(context.Background()); err != nil {
		logger.Error("daemon failed", "error", err)
		os.Exit(1)
	}
}

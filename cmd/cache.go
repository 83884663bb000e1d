package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jcdickinson/phpdomain/internal/config"
	"github.com/jcdickinson/phpdomain/internal/daemon"
	"github.com/jcdickinson/phpdomain/internal/rpc"
)

var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Drop cached doctrees and the saved build environment",
	Long: `Remove every cached doctree and the project's saved environment so the
next build reads all sources again. Talks to the daemon when one is running.`,
	Run: runClearCache,
}

func runClearCache(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	var resp *rpc.ClearCacheResponse
	var err error
	client := daemon.NewClient(config.SocketPath(cfg.Root))
	if client.IsAvailable() {
		resp, err = client.ClearCache(context.Background())
	} else {
		svc := daemon.NewService(cfg, slog.Default())
		resp, err = svc.ClearCache()
		svc.Close()
	}
	if err != nil {
		slog.Error("failed to clear cache", "error", err)
		os.Exit(1)
	}
	fmt.Printf("removed %d cached doctrees\n", resp.Removed)
}

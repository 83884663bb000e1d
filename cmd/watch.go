package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jcdickinson/phpdomain/internal/daemon"
	"github.com/jcdickinson/phpdomain/internal/rpc"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild whenever a source changes",
	Long: `Build the project, then watch its sources and rebuild incrementally after
each burst of changes. Runs in this process until interrupted.`,
	Args: cobra.NoArgs,
	Run:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	logger := consoleLogger(cfg)
	svc := daemon.NewService(cfg, logger)
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report := func(res *rpc.BuildResult, err error) {
		if err != nil {
			logger.Error("build failed", "error", err)
			return
		}
		fmt.Printf("%d documents (%d read), %d objects, %d unresolved, %d warnings in %dms\n",
			res.Documents, res.Read, res.Objects, res.Unresolved, res.Warnings, res.DurationMs)
	}

	report(svc.Build(ctx, false, nil))
	if err := svc.Watch(ctx, report); err != nil {
		log.Fatalf("watch failed: %v", err)
	}
}

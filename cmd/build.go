package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/jcdickinson/phpdomain/internal/build"
	"github.com/jcdickinson/phpdomain/internal/rpc"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the project documentation",
	Long: `Read every changed source, resolve cross-references and write the output
directory. Exits with status 1 when the build logged warnings.`,
	Example: `  phpdomain build
  phpdomain build --force
  phpdomain build --local -C docs`,
	Args: cobra.NoArgs,
	Run:  runBuild,
}

var (
	buildForce bool
	buildLocal bool
	buildJSON  bool
)

func init() {
	buildCmd.Flags().BoolVarP(&buildForce, "force", "f", false, "re-read every source")
	buildCmd.Flags().BoolVar(&buildLocal, "local", false, "build in this process and log warnings to the terminal")
	buildCmd.Flags().BoolVar(&buildJSON, "json", false, "output the result as JSON")
}

func runBuild(cmd *cobra.Command, args []string) {
	progress := func(msg string) {
		if !buildJSON {
			fmt.Printf("  %s\n", msg)
		}
	}

	var res *rpc.BuildResult
	if buildLocal {
		cfg := loadConfig()
		out, err := build.New(cfg, consoleLogger(cfg)).Build(context.Background(), build.Options{Force: buildForce, Progress: progress})
		if err != nil {
			log.Fatalf("build failed: %v", err)
		}
		res = &out.BuildResult
	} else {
		client, err := connectDaemon()
		if err != nil {
			log.Fatalf("failed to connect to daemon: %v", err)
		}
		res, err = client.Build(context.Background(), rpc.BuildRequest{Force: buildForce}, progress)
		if err != nil {
			log.Fatalf("build failed: %v", err)
		}
	}

	if buildJSON {
		out, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(out))
	} else {
		fmt.Printf("%d documents (%d read, %d cached, %d removed), %d objects, %d namespaces\n",
			res.Documents, res.Read, res.Cached, res.Removed, res.Objects, res.Namespaces)
		fmt.Printf("%d references, %d unresolved, %d warnings in %dms\n",
			res.Refs, res.Unresolved, res.Warnings, res.DurationMs)
		fmt.Printf("output written to %s\n", res.OutDir)
	}

	if res.Warnings > 0 {
		if !buildLocal && !buildJSON {
			fmt.Println("see `phpdomain logs` for the warnings")
		}
		os.Exit(1)
	}
}

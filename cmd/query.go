package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jcdickinson/phpdomain/internal/config"
	"github.com/jcdickinson/phpdomain/internal/daemon"
	"github.com/jcdickinson/phpdomain/internal/rpc"
)

var queryJSON bool

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <target>",
	Short: "Resolve a cross-reference against the built project",
	Example: `  phpdomain resolve 'App\Widget'
  phpdomain resolve --role meth --type 'App\Widget' render
  phpdomain resolve --namespace App 'Title <Widget::$name>'`,
	Args: cobra.ExactArgs(1),
	Run:  runResolve,
}

var (
	resolveRole      string
	resolveNamespace string
	resolveType      string
)

func init() {
	resolveCmd.Flags().StringVar(&resolveRole, "role", "any", "role to resolve as (func, class, meth, attr, const, ns, ...)")
	resolveCmd.Flags().StringVar(&resolveNamespace, "namespace", "", "namespace in effect at the reference")
	resolveCmd.Flags().StringVar(&resolveType, "type", "", "canonical name of the enclosing type")
	resolveCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
}

func runResolve(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Resolve(context.Background(), rpc.ResolveRequest{
		Role:          resolveRole,
		Target:        args[0],
		Namespace:     resolveNamespace,
		EnclosingType: resolveType,
	})
	if err != nil {
		log.Fatalf("resolve failed: %v", err)
	}

	if queryJSON {
		printJSON(resp)
	} else if resp.Found {
		fmt.Printf("%s (%s) in %s#%s\n", resp.Name, resp.Kind, resp.DocName, resp.Anchor)
		fmt.Printf("  %s\n", resp.URI)
		if resp.Fallback {
			fmt.Println("  resolved by the global fallback")
		}
	} else {
		fmt.Printf("unresolved: %s\n", resp.Message)
	}
	if !resp.Found {
		os.Exit(1)
	}
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Print the namespace index",
	Args:  cobra.NoArgs,
	Run:   runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
}

func runIndex(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Namespaces(context.Background())
	if err != nil {
		log.Fatalf("namespace index failed: %v", err)
	}

	if queryJSON {
		printJSON(resp.Index)
		return
	}
	if len(resp.Index.Groups) == 0 {
		fmt.Println("no namespaces documented")
		return
	}
	for _, g := range resp.Index.Groups {
		fmt.Println(g.Letter)
		for _, e := range g.Entries {
			indent := "  "
			if e.Subtype == 2 {
				indent = "    "
			}
			line := indent + e.Name
			if e.Qualifier != "" {
				line += " (" + e.Qualifier + ")"
			}
			if e.Synopsis != "" {
				line += " - " + e.Synopsis
			}
			fmt.Println(line)
		}
	}
}

var objectsCmd = &cobra.Command{
	Use:   "objects",
	Short: "List documented objects",
	Example: `  phpdomain objects
  phpdomain objects --kind class --kind interface
  phpdomain objects --doc api/widget`,
	Args: cobra.NoArgs,
	Run:  runObjects,
}

var (
	objectsKinds []string
	objectsDocs  []string
)

func init() {
	objectsCmd.Flags().StringSliceVar(&objectsKinds, "kind", nil, "filter to object kinds (repeatable)")
	objectsCmd.Flags().StringSliceVar(&objectsDocs, "doc", nil, "filter to documents (repeatable)")
	objectsCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
}

func runObjects(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Objects(context.Background(), rpc.ObjectsRequest{Kinds: objectsKinds, DocNames: objectsDocs})
	if err != nil {
		log.Fatalf("listing objects failed: %v", err)
	}

	if queryJSON {
		printJSON(resp.Objects)
		return
	}
	for _, o := range resp.Objects {
		fmt.Printf("%-10s %s  %s:%d\n", o.Kind, o.Name, o.DocName, o.Line)
	}
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search documented objects by name",
	Example: `  phpdomain search render
  phpdomain search --kind method --limit 5 create`,
	Args: cobra.ExactArgs(1),
	Run:  runSearch,
}

var (
	searchKinds []string
	searchLimit int
)

func init() {
	searchCmd.Flags().StringSliceVar(&searchKinds, "kind", nil, "filter to object kinds (repeatable)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "max results")
	searchCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
}

func runSearch(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Search(context.Background(), rpc.SearchRequest{
		Query: args[0],
		Kinds: searchKinds,
		Limit: searchLimit,
	})
	if err != nil {
		log.Fatalf("search failed: %v", err)
	}

	if queryJSON {
		printJSON(resp.Results)
		return
	}
	if len(resp.Results) == 0 {
		fmt.Println("no results")
		return
	}
	for i, r := range resp.Results {
		fmt.Printf("%d. %s (%s) in %s\n", i+1, r.Name, r.Kind, r.DocName)
		if r.Signature != "" {
			fmt.Printf("   %s\n", r.Signature)
		}
	}
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show build and daemon state",
	Args:  cobra.NoArgs,
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Status(context.Background())
	if err != nil {
		log.Fatalf("status failed: %v", err)
	}

	if queryJSON {
		printJSON(resp)
		return
	}

	fmt.Printf("project: %s\n", resp.Root)
	if !resp.Built {
		fmt.Println("not built yet")
		return
	}
	state := []string{fmt.Sprintf("%d documents", resp.Documents), fmt.Sprintf("%d objects", resp.Objects),
		fmt.Sprintf("%d namespaces", resp.Namespaces), fmt.Sprintf("%d unresolved", resp.Unresolved)}
	fmt.Printf("built %s: %s\n", resp.LastBuild, strings.Join(state, ", "))
	if resp.Watching {
		fmt.Println("watching for changes")
	}
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background daemon",
	Args:  cobra.NoArgs,
	Run:   runStop,
}

func runStop(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	client := daemon.NewClient(config.SocketPath(cfg.Root))
	if !client.IsAvailable() {
		fmt.Println("daemon is not running")
		return
	}

	// The daemon may drop the connection while exiting; either way it stops.
	client.Shutdown(context.Background())
	fmt.Println("daemon stopped")
}

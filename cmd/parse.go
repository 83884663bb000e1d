package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jcdickinson/phpdomain/internal/daemon"
	"github.com/jcdickinson/phpdomain/internal/logging"
	"github.com/jcdickinson/phpdomain/internal/php"
	"github.com/jcdickinson/phpdomain/internal/rpc"
)

var parseCmd = &cobra.Command{
	Use:   "parse <kind> <signature>",
	Short: "Parse a signature the way a php directive would",
	Long: `Parse a single declaration signature and print its canonical name and
rendered form. Exits with status 1 when the signature is rejected.`,
	Example: `  phpdomain parse class 'final Widget' --namespace App
  phpdomain parse method 'public static create(array $opts): self' --type 'App\Widget'
  phpdomain parse enum 'Suit: string' --namespace App --json`,
	Args: cobra.ExactArgs(2),
	Run:  runParse,
}

var (
	parseNamespace string
	parseType      string
	parseNoIndex   bool
	parseJSON      bool
)

func init() {
	parseCmd.Flags().StringVar(&parseNamespace, "namespace", "", "namespace in effect")
	parseCmd.Flags().StringVar(&parseType, "type", "", "canonical name of the enclosing type")
	parseCmd.Flags().BoolVar(&parseNoIndex, "noindex", false, "parse as a :noindex: declaration")
	parseCmd.Flags().BoolVar(&parseJSON, "json", false, "output as JSON")
}

func runParse(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	counter := logging.NewCounter(logging.Console(os.Stderr, cfg.Log.Level))
	logger := slog.New(counter)
	svc := daemon.NewService(cfg, logger)
	defer svc.Close()

	resp := svc.Parse(rpc.ParseRequest{
		Kind:          args[0],
		Signature:     args[1],
		Namespace:     parseNamespace,
		EnclosingType: parseType,
		InClassBody:   parseType != "",
		Options:       php.DirectiveOptions{NoIndex: parseNoIndex},
	})

	if resp.Code != "" {
		logger.Warn(resp.Error, "code", resp.Code)
	}

	if parseJSON {
		out, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(out))
	} else if resp.Declaration != nil {
		d := resp.Declaration
		fmt.Printf("name:      %s\n", d.Name)
		fmt.Printf("kind:      %s\n", d.Kind)
		if d.Namespace != "" {
			fmt.Printf("namespace: %s\n", d.Namespace)
		}
		fmt.Printf("rendered:  %s\n", resp.Text)
		if resp.IndexText != "" {
			fmt.Printf("index:     %s\n", resp.IndexText)
		}
		if resp.TocName != "" {
			fmt.Printf("toc:       %s\n", resp.TocName)
		}
	}

	if counter.Warnings() > 0 {
		os.Exit(1)
	}
}

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/jcdickinson/phpdomain/internal/extract"
)

var extractCmd = &cobra.Command{
	Use:   "extract <php-dir>",
	Short: "Generate reStructuredText stubs from PHP sources",
	Long: `Scan PHP sources with tree-sitter and write one reStructuredText stub per
file, declaring its namespaces, classes, functions and members with php
directives. Without --out the stubs are printed.`,
	Example: `  phpdomain extract src
  phpdomain extract src --out docs/api --private`,
	Args: cobra.ExactArgs(1),
	Run:  runExtract,
}

var (
	extractOut      string
	extractPrivate  bool
	extractExcludes []string
)

func init() {
	extractCmd.Flags().StringVarP(&extractOut, "out", "o", "", "directory to write stubs to")
	extractCmd.Flags().BoolVar(&extractPrivate, "private", false, "include private members")
	extractCmd.Flags().StringSliceVar(&extractExcludes, "exclude", []string{"vendor", "tests"}, "gitignore-style patterns to skip (repeatable)")
}

func runExtract(cmd *cobra.Command, args []string) {
	ex := extract.New(extract.Options{Private: extractPrivate})
	files, err := ex.Tree(context.Background(), args[0], extractExcludes)
	if err != nil {
		log.Fatalf("extract failed: %v", err)
	}

	if extractOut == "" {
		for _, f := range files {
			fmt.Println(f.RST())
		}
		return
	}

	if err := extract.WriteTree(extractOut, files); err != nil {
		log.Fatalf("writing stubs failed: %v", err)
	}
	fmt.Fprintf(os.Stderr, "wrote %d stubs to %s\n", len(files), extractOut)
}

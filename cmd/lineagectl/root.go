package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tendant/content-lineage/internal/logger"
	"github.com/tendant/content-lineage/pkg/lineage"
	"github.com/tendant/content-lineage/pkg/lineage/config"
)

var (
	verbose bool
	kind    string
	actor   string
	jsonOut bool
)

var log = zerolog.Nop()

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lineagectl",
	Short: "Inspect and manage versioned files and documents",
	Long: `lineagectl works directly against the lineage database and content store
configured through LINEAGE_* environment variables (or a .env file).`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := "warn"
		if verbose {
			level = "debug"
		}
		log = logger.New(logger.Config{
			Level:   level,
			Pretty:  true,
			Output:  os.Stderr,
			Service: "lineagectl",
		})
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&kind, "kind", "k", string(lineage.KindFile), "Item kind: file or document")
	rootCmd.PersistentFlags().StringVar(&actor, "as", "", "Act as this user (ID or email)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
}

// openService builds the service for the selected kind; the caller must close the returned services
func openService(ctx context.Context) (lineage.Service, *config.Services) {
	cfg, err := config.Load(config.WithEnv(), config.WithEventLogging(false))
	if err != nil {
		fatal("Error loading configuration: %v", err)
	}
	svcs, err := cfg.BuildServices(ctx, log, nil)
	if err != nil {
		fatal("Error initializing lineage: %v", err)
	}

	switch lineage.Kind(kind) {
	case lineage.KindFile:
		return svcs.Files, svcs
	case lineage.KindDocument:
		return svcs.Documents, svcs
	default:
		svcs.Close()
		fatal("Unknown kind %q: use file or document", kind)
		return nil, nil
	}
}

func printJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fatal("Error encoding JSON: %v", err)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/wbrown/janus-odata/odata/annotations"
	"github.com/wbrown/janus-odata/odata/config"
	"github.com/wbrown/janus-odata/odata/demo"
	"github.com/wbrown/janus-odata/odata/storage"
)

var (
	configPath string
	dataDir    string
	inMemory   bool
	verbose    bool

	// cfg is loaded before any subcommand runs
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "odata",
	Short: "Structural plan cache for OData requests",
	Long: `Runs parameterized OData requests over a demo sales model.

Requests that differ only in literal values share one compiled plan: the
request is hashed, compared against the resident plans with the same digest,
and its literals are bound to the slots of the plan that matches.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		// Flags override file values
		if cmd.Flags().Changed("data-dir") {
			loaded.DataDir = dataDir
		}
		if cmd.Flags().Changed("in-memory") {
			loaded.InMemory = inMemory
		}
		if cmd.Flags().Changed("verbose") {
			loaded.Verbose = verbose
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Database directory (overrides data_dir in config)")
	rootCmd.PersistentFlags().BoolVar(&inMemory, "in-memory", false, "Use an in-memory database loaded with the demo dataset")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print query annotations to stderr")

	rootCmd.AddCommand(loadCmd, runCmd, queryCmd, explainCmd)
}

// storageOptions maps the configuration onto database options
func storageOptions(c *config.Config) storage.Options {
	opts := storage.DefaultOptions()
	opts.InMemory = c.InMemory
	opts.CacheSize = c.Cache.MaxSize
	opts.CacheTTL = c.Cache.TTL.Duration
	opts.Planner.MaxExpandDepth = c.Planner.MaxExpandDepth
	opts.Planner.AllowOpenProperties = c.Planner.AllowOpenProperties
	return opts
}

// openDatabase opens the configured database. An in-memory database starts
// empty, so it is loaded with the demo dataset; a persistent one must have
// been loaded with the load command.
func openDatabase(s *demo.Schema) (*storage.Database, error) {
	db, err := storage.Open(cfg.DataDir, s.Model, storageOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.InMemory {
		if err := db.Load(demo.Dataset()); err != nil {
			db.Close()
			return nil, err
		}
	} else if n, err := db.Count(s.Customers.Name); err != nil || n == 0 {
		db.Close()
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("database %s is empty; run 'odata load' or pass --in-memory", cfg.DataDir)
	}

	if cfg.Verbose {
		db.SetHandler(annotations.ConsoleHandler())
	}
	return db, nil
}

// commandContext returns a context cancelled on interrupt
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt)
}

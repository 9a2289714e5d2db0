package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wbrown/janus-odata/odata/demo"
	"github.com/wbrown/janus-odata/odata/storage"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Write the demo dataset to the data directory",
	Long: `Writes the demo Customers and Orders entity sets to the badger database in
the data directory. Existing entities with the same keys are replaced.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.InMemory {
			return fmt.Errorf("load writes to disk; drop --in-memory")
		}

		s := demo.NewSchema()
		db, err := storage.Open(cfg.DataDir, s.Model, storageOptions(cfg))
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if err := db.Load(demo.Dataset()); err != nil {
			return err
		}

		fmt.Printf("Loaded demo dataset into %s\n", cfg.DataDir)
		for _, set := range s.Model.EntitySets {
			n, err := db.Count(set.Name)
			if err != nil {
				return err
			}
			fmt.Printf("  %-10s %s\n", set.Name, color.CyanString("%d entities", n))
		}
		return nil
	},
}

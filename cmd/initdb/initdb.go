// Package initdb provides the init command for Syrinx
package initdb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/syrinxlabs/syrinx/internal/conf"
	"github.com/syrinxlabs/syrinx/internal/datastore"
)

// Command creates and returns the init command
func Command(settings *conf.Settings) *cobra.Command {
	var writeConfig string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the catalog schema, or write a starter configuration",
		Long: `Init connects to the configured database, creates or migrates the four
catalog tables, and reports the resulting row counts. With --write-config
it instead writes a default configuration file to the given path and
exits without touching any database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("write-config") {
				return writeDefaultConfig(writeConfig)
			}
			return runInit(settings)
		},
	}

	cmd.Flags().StringVar(&writeConfig, "write-config", "", "Write a default configuration file to this path and exit")

	return cmd
}

func writeDefaultConfig(path string) error {
	if path == "" {
		return fmt.Errorf("--write-config needs a destination path")
	}
	if err := conf.Save(conf.Default(), path); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	fmt.Printf("Wrote default configuration to %s\n", path)
	fmt.Println("Edit database.url and the dataroots paths before running init again.")
	return nil
}

func runInit(settings *conf.Settings) error {
	store, err := datastore.New(settings, nil)
	if err != nil {
		return err
	}
	if err := store.Open(); err != nil {
		return fmt.Errorf("failed to initialize catalog: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	counts, err := store.RowCounts(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Catalog ready (%s backend, %s)\n", store.Backend(), store.Path())
	tables := make([]string, 0, len(counts))
	for table := range counts {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	for _, table := range tables {
		fmt.Printf("  %-12s %d rows\n", table, counts[table])
	}
	return nil
}

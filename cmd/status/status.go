// Package status provides the status command for Syrinx
package status

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/syrinxlabs/syrinx/internal/conf"
	"github.com/syrinxlabs/syrinx/internal/datastore"
	"github.com/syrinxlabs/syrinx/internal/datastore/repository"
)

// Command creates and returns the status command
func Command(settings *conf.Settings) *cobra.Command {
	var recordingID uint

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report catalog row counts and backend health",
		Long: `Status reports per-table row counts, the distinct model versions and
annotation types in the catalog, and backend details. With
--recording-id it instead drills into one recording and lists its
syllables with their annotations and embedding counts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(settings, recordingID)
		},
	}

	cmd.Flags().UintVar(&recordingID, "recording-id", 0, "Show one recording and its syllables instead of the catalog overview")

	return cmd
}

func runStatus(settings *conf.Settings, recordingID uint) error {
	store, err := datastore.New(settings, nil)
	if err != nil {
		return err
	}
	if err := store.Open(); err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	queryTimeout, err := settings.Query.TimeoutDuration()
	if err != nil {
		return err
	}
	repos := repository.NewRepositories(store, queryTimeout, nil)

	ctx := context.Background()

	if recordingID != 0 {
		return printRecording(ctx, repos, recordingID)
	}
	return printOverview(ctx, store, repos)
}

func printOverview(ctx context.Context, store *datastore.DataStore, repos *repository.Repositories) error {
	counts, err := store.RowCounts(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Backend:  %s (%s)\n", store.Backend(), store.Path())
	if store.Backend() == conf.BackendSQLite {
		if stat, err := os.Stat(store.Path()); err == nil {
			fmt.Printf("Size:     %.1f MB\n", float64(stat.Size())/1024/1024)
		}
	}

	fmt.Println("Tables:")
	tables := make([]string, 0, len(counts))
	for table := range counts {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	for _, table := range tables {
		fmt.Printf("  %-12s %d rows\n", table, counts[table])
	}

	versions, err := repos.Embeddings.ModelVersions(ctx)
	if err != nil {
		return err
	}
	if len(versions) > 0 {
		fmt.Printf("Model versions:   %s\n", strings.Join(versions, ", "))
	}

	types, err := repos.Annotations.Types(ctx)
	if err != nil {
		return err
	}
	if len(types) > 0 {
		fmt.Printf("Annotation types: %s\n", strings.Join(types, ", "))
	}
	return nil
}

func printRecording(ctx context.Context, repos *repository.Repositories, id uint) error {
	rec, err := repos.Recordings.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("no recording with id %d", id)
	}

	fmt.Printf("Recording %d\n", rec.ID)
	fmt.Printf("  path:     %s\n", rec.FilePath)
	fmt.Printf("  checksum: %s\n", rec.Checksum)
	fmt.Printf("  indexed:  %s\n", rec.CreatedAt.Format(time.DateTime))
	if rec.Extra != "" {
		fmt.Printf("  extra:    %s\n", rec.Extra)
	}

	syllables, err := repos.Syllables.ListByRecording(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("  syllables: %d\n", len(syllables))

	for _, syl := range syllables {
		embeddings, err := repos.Embeddings.ListBySyllable(ctx, syl.ID)
		if err != nil {
			return err
		}
		annotations, err := repos.Annotations.ListBySyllable(ctx, syl.ID)
		if err != nil {
			return err
		}

		fmt.Printf("    [%d] %.3fs-%.3fs %s (%d embeddings)\n",
			syl.ID, syl.StartTime, syl.EndTime, syl.SpectrogramPath, len(embeddings))
		for _, ann := range annotations {
			fmt.Printf("        %s %s=%s\n", ann.AnnotationType, ann.Key, ann.Value)
		}
	}
	return nil
}

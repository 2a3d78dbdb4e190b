// Package ingest provides the ingest command for Syrinx
package ingest

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/syrinxlabs/syrinx/internal/conf"
	"github.com/syrinxlabs/syrinx/internal/datastore"
	"github.com/syrinxlabs/syrinx/internal/datastore/repository"
	"github.com/syrinxlabs/syrinx/internal/indexer"
	"github.com/syrinxlabs/syrinx/internal/logging"
	"github.com/syrinxlabs/syrinx/internal/observability"
)

// Command creates and returns the ingest command
func Command(settings *conf.Settings) *cobra.Command {
	var dumpMetrics bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Scan the data roots and index new artifacts into the catalog",
		Long: `Ingest walks the configured audio and feature roots, parses sidecar
manifests, verifies artifact checksums, and upserts recordings,
syllables, embeddings, and annotations in batched transactions.
Artifacts already cataloged are skipped; a cataloged artifact whose
content changed on disk aborts the run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(settings, dumpMetrics)
		},
	}

	cmd.Flags().BoolVar(&dumpMetrics, "metrics", false, "Dump ingest metrics to stderr after the run")

	return cmd
}

func runIngest(settings *conf.Settings, dumpMetrics bool) error {
	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	store, err := datastore.New(settings, m.Datastore)
	if err != nil {
		return err
	}
	if err := store.Open(); err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	// The embedded backend writes WAL segments next to the database
	// file, so make sure the partition can absorb a bulk run first.
	if store.Backend() == conf.BackendSQLite {
		if err := datastore.ValidateResourceAvailability(store.Path(), "ingest"); err != nil {
			return err
		}
		snapshot := datastore.CaptureResourceSnapshot(store.Path())
		logging.Info("resources before ingest", "summary", snapshot.FormatResourceSummary())
	}

	queryTimeout, err := settings.Query.TimeoutDuration()
	if err != nil {
		return err
	}
	repos := repository.NewRepositories(store, queryTimeout, m.Datastore)

	ix, err := indexer.New(settings, store, repos, m.Indexer)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := ix.Index(ctx)
	if err != nil {
		return err
	}

	printSummary(summary)

	if dumpMetrics {
		if err := m.WriteText(os.Stderr); err != nil {
			return fmt.Errorf("failed to dump metrics: %w", err)
		}
	}
	return nil
}

func printSummary(s *indexer.Summary) {
	fmt.Printf("Ingest complete in %s (run %s)\n", s.Elapsed.Round(time.Millisecond), s.RunID)
	fmt.Printf("  discovered:  %d audio files, %d segment manifests, %d embedding manifests\n",
		s.AudioFiles, s.SegmentsManifests, s.EmbeddingsManifests)
	fmt.Printf("  recordings:  %d new, %d already cataloged\n", s.Recordings.Inserted, s.Recordings.Skipped)
	fmt.Printf("  syllables:   %d new, %d already cataloged\n", s.Syllables.Inserted, s.Syllables.Skipped)
	fmt.Printf("  embeddings:  %d new, %d already cataloged\n", s.Embeddings.Inserted, s.Embeddings.Skipped)
	fmt.Printf("  annotations: %d new, %d already cataloged\n", s.Annotations.Inserted, s.Annotations.Skipped)
}

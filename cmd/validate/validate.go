// Package validate provides the validate command for Syrinx
package validate

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
	"github.com/syrinxlabs/syrinx/internal/observability"
)

// Command creates and returns the validate command
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Re-verify every cataloged artifact against its stored checksum",
		Long: `Validate re-hashes every audio file, spectrogram segment, and embedding
vector the catalog knows about and compares the digests against the
stored checksums. Unlike ingest, a mismatch does not stop the sweep:
all missing, unreadable, and modified artifacts are reported together
so the tree can be repaired in one pass.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(settings)
		},
	}

	return cmd
}

func runValidate(settings *conf.Settings) error {
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

	report, err := ix.Validate(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Checked %d artifacts in %s (run %s)\n",
		report.Checked, report.Elapsed.Round(time.Millisecond), report.RunID)

	if report.OK() {
		fmt.Println("All cataloged artifacts match their stored checksums.")
		return nil
	}

	for i := range report.Failures {
		f := &report.Failures[i]
		switch f.Reason {
		case "checksum_mismatch":
			fmt.Printf("  %s id=%d %s: checksum mismatch (stored %s, found %s)\n",
				f.Table, f.ID, f.Path, f.Expected, f.Actual)
		default:
			fmt.Printf("  %s id=%d %s: %s\n", f.Table, f.ID, f.Path, f.Reason)
		}
	}
	return fmt.Errorf("%d of %d artifacts failed validation", len(report.Failures), report.Checked)
}

package indexer

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"github.com/syrinxlabs/syrinx/internal/conf"
	"github.com/syrinxlabs/syrinx/internal/errors"
)

// newHasher returns a fresh hash state for the configured algorithm.
func newHasher(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case conf.ChecksumSHA256:
		return sha256.New(), nil
	case conf.ChecksumSHA512:
		return sha512.New(), nil
	case conf.ChecksumBLAKE2B:
		return blake2b.New256(nil)
	default:
		return nil, errors.Newf("unsupported checksum algorithm %q", algorithm).
			Component("indexer").
			Category(errors.CategoryConfiguration).
			Context("algorithm", algorithm).
			Build()
	}
}

// checksumFile hashes the file at path with the configured algorithm and
// returns the lowercase hex digest plus the number of bytes read.
func (ix *Indexer) checksumFile(path string) (string, int64, error) {
	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		if ix.metrics != nil {
			ix.metrics.RecordChecksumError(ix.algorithm, "open")
		}
		return "", 0, errors.New(err).
			Component("indexer").
			Category(errors.CategoryFileIO).
			Context("operation", "checksum").
			Context("path", path).
			Build()
	}
	defer f.Close() //nolint:errcheck // read-only

	h, err := newHasher(ix.algorithm)
	if err != nil {
		return "", 0, err
	}

	n, err := io.Copy(h, f)
	if err != nil {
		if ix.metrics != nil {
			ix.metrics.RecordChecksumError(ix.algorithm, "read")
		}
		return "", 0, errors.New(err).
			Component("indexer").
			Category(errors.CategoryFileIO).
			Context("operation", "checksum").
			Context("path", path).
			Build()
	}

	if ix.metrics != nil {
		ix.metrics.RecordChecksum(ix.algorithm, time.Since(start).Seconds(), n)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), n, nil
}

// splitManifestChecksum splits an "<algorithm>:<hex>" manifest checksum
// into its parts. The catalog itself stores bare hex digests; the prefix
// exists so a manifest generated with the wrong algorithm is rejected
// instead of failing every comparison.
func splitManifestChecksum(value string) (algorithm, hexDigest string, ok bool) {
	algorithm, hexDigest, ok = strings.Cut(value, ":")
	if !ok || algorithm == "" || hexDigest == "" {
		return "", "", false
	}
	return algorithm, strings.ToLower(hexDigest), true
}

// forEachFile runs fn(i) for i in [0, n) on a bounded worker pool and
// returns the first error. A failing task cancels the remaining ones
// through the group context.
func forEachFile(ctx context.Context, workers, n int, fn func(i int) error) error {
	if n == 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, workers)
	for i := range n {
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()
			return fn(i)
		})
	}
	return g.Wait()
}

// artifactRef ties a manifest expectation to a file on disk.
type artifactRef struct {
	Manifest string // manifest that references the artifact
	Rel      string // catalog-relative artifact path
	Abs      string // filesystem path for reads
	Expected string // manifest-declared hex digest
}

// verifyArtifacts recomputes every referenced artifact's checksum in
// parallel and fails on the first missing or modified file. The returned
// digests are aligned with refs.
func (ix *Indexer) verifyArtifacts(ctx context.Context, refs []artifactRef) ([]string, error) {
	sums := make([]string, len(refs))
	err := forEachFile(ctx, ix.workerCount(len(refs)), len(refs), func(i int) error {
		ref := refs[i]

		if _, err := os.Stat(ref.Abs); err != nil {
			if os.IsNotExist(err) {
				ix.recordIntegrityFailure("missing_file")
				return errors.Newf("referenced artifact %s does not exist", ref.Rel).
					Component("indexer").
					Category(errors.CategoryIntegrity).
					Context("path", ref.Rel).
					Context("manifest", ref.Manifest).
					Build()
			}
			return errors.New(err).
				Component("indexer").
				Category(errors.CategoryFileIO).
				Context("path", ref.Rel).
				Context("manifest", ref.Manifest).
				Build()
		}

		sum, _, err := ix.checksumFile(ref.Abs)
		if err != nil {
			return err
		}
		if sum != ref.Expected {
			ix.recordIntegrityFailure("checksum_mismatch")
			return errors.Newf("checksum mismatch for %s", ref.Rel).
				Component("indexer").
				Category(errors.CategoryIntegrity).
				ChecksumContext(ref.Rel, ref.Expected, sum).
				Context("manifest", ref.Manifest).
				Context("algorithm", ix.algorithm).
				Build()
		}
		sums[i] = sum
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sums, nil
}

func (ix *Indexer) recordIntegrityFailure(reason string) {
	if ix.metrics != nil {
		ix.metrics.RecordIntegrityFailure(reason)
	}
}

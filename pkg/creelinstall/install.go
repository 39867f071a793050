// Package creelinstall plans, installs, and cleans up the file artifacts
// backing a resolved module set, and persists the resulting state.
package creelinstall

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/mmilitzer/creel/internal/thread"
	"github.com/mmilitzer/creel/pkg/creelartifact"
	"github.com/mmilitzer/creel/pkg/creelcache"
	"github.com/mmilitzer/creel/pkg/creeldigest"
	"github.com/mmilitzer/creel/pkg/creelresolve"
	"github.com/mmilitzer/creel/pkg/creelstate"
)

const (
	maxRetries     = 3
	retryBaseDelay = 250 * time.Millisecond
)

// Installer materializes a chosen module set's artifacts on disk and keeps
// the persisted state file in sync with what was installed.
type Installer struct {
	Root      string
	StatePath string
	Workers   int
	Overwrite bool
	Algorithm creeldigest.Algorithm
	Fetcher   creelartifact.Fetcher
	Notifier  creelresolve.Notifier
	// Cache, if set, is consulted before every fetch under the digest the
	// previous run recorded for that artifact, and populated with every
	// fetch's content under its own digest. An artifact with no recorded
	// digest is always fetched, even if identical bytes are already cached.
	Cache *creelcache.Cache
}

// Summary reports the outcome of one Run.
type Summary struct {
	Installed []*creelartifact.Artifact
	Kept      []*creelartifact.Artifact
	Removed   []*creelartifact.Artifact
	Failed    []*FailedArtifact
	// CacheHits and CacheMisses count Cache lookups performed while
	// installing. Both stay zero when Cache is nil.
	CacheHits int
	// CacheMisses counts installs that found no cached content for the
	// artifact's expected digest (including every install with no digest
	// hint at all, e.g. a first-ever install).
	CacheMisses int
	// Retries counts the total number of retry attempts (not including
	// each artifact's first attempt) across every install in this run.
	Retries int
}

// FailedArtifact pairs an artifact with the error that aborted its install
// after exhausting retries.
type FailedArtifact struct {
	Artifact *creelartifact.Artifact
	Err      error
}

// Plan collects the artifact list for each chosen module into a single set
// keyed by file path, raising DuplicateArtifactError for every colliding
// path rather than stopping at the first one, so a host can report the
// whole set of conflicts in one pass.
func Plan(artifactLists [][]*creelartifact.Artifact) ([]*creelartifact.Artifact, error) {
	seen := map[string]*creelartifact.Artifact{}
	order := make([]string, 0)
	var planErr error
	for _, list := range artifactLists {
		for _, artifact := range list {
			if _, exists := seen[artifact.Key()]; exists {
				planErr = multierr.Append(planErr, &DuplicateArtifactError{FilePath: artifact.Key()})
				continue
			}
			seen[artifact.Key()] = artifact
			order = append(order, artifact.Key())
		}
	}
	if planErr != nil {
		return nil, planErr
	}
	sort.Strings(order)
	out := make([]*creelartifact.Artifact, 0, len(order))
	for _, key := range order {
		out = append(out, seen[key])
	}
	return out, nil
}

// diffResult is the outcome of comparing a plan against previously persisted
// state.
type diffResult struct {
	install []*creelartifact.Artifact
	keep    []*creelartifact.Artifact
	remove  []*creelartifact.Artifact
}

func (in *Installer) diff(planned []*creelartifact.Artifact, previous *creelstate.State) diffResult {
	prevByPath := map[string]creelstate.Record{}
	for _, record := range previous.Records {
		prevByPath[record.FilePath] = record
	}
	plannedPaths := map[string]bool{}

	var result diffResult
	for _, artifact := range planned {
		plannedPaths[artifact.Key()] = true
		record, hadPrevious := prevByPath[artifact.Key()]
		exists := artifact.Exists(in.Root)
		if hadPrevious {
			// Carried as a cache lookup hint even on branches that don't
			// compare it themselves: a file missing or overwritten on disk
			// may still have its bytes sitting in the cache under the
			// digest it had last run.
			artifact.Digest = record.Digest
		}

		switch {
		case in.Overwrite:
			result.install = append(result.install, artifact)
		case !exists:
			result.install = append(result.install, artifact)
		case artifact.Volatile:
			// Routed through install so Copy can rehash the on-disk
			// content without touching it.
			result.install = append(result.install, artifact)
		case !hadPrevious:
			result.install = append(result.install, artifact)
		default:
			// Compare the file's current on-disk digest against what was
			// recorded last run, to detect local drift without refetching.
			modified, err := artifact.WasModified(in.Root, in.Algorithm)
			if err != nil || modified {
				result.install = append(result.install, artifact)
			} else {
				result.keep = append(result.keep, artifact)
			}
		}
	}
	for _, record := range previous.Records {
		if !plannedPaths[record.FilePath] {
			result.remove = append(result.remove, &creelartifact.Artifact{
				FilePath:  record.FilePath,
				SourceURL: record.URL,
				Volatile:  record.Volatile,
				Digest:    record.Digest,
			})
		}
	}
	return result
}

// Run executes the full plan/diff/install/cleanup/persist procedure for an
// already-planned artifact set.
func (in *Installer) Run(ctx context.Context, planned []*creelartifact.Artifact) (*Summary, error) {
	notifier := in.Notifier
	if notifier == nil {
		notifier = creelresolve.NopNotifier()
	}

	previous, err := creelstate.Load(in.StatePath)
	if err != nil {
		notifier.Warn(fmt.Sprintf("persisted state unreadable, treating as absent: %v", err))
	}

	diffed := in.diff(planned, previous)

	var mu sync.Mutex
	var installed []*creelartifact.Artifact
	var failed []*FailedArtifact
	var cacheHits, cacheMisses, retries atomic.Int64

	jobs := make([]func(context.Context) error, 0, len(diffed.install))
	for _, artifact := range diffed.install {
		artifact := artifact
		jobs = append(jobs, func(jobCtx context.Context) error {
			if err := in.installWithRetry(jobCtx, artifact, notifier, &cacheHits, &cacheMisses, &retries); err != nil {
				mu.Lock()
				failed = append(failed, &FailedArtifact{Artifact: artifact, Err: err})
				mu.Unlock()
				notifier.Error(fmt.Sprintf("install failed for %s: %v", artifact.FilePath, err))
				return nil // a failed artifact does not abort the others
			}
			mu.Lock()
			installed = append(installed, artifact)
			mu.Unlock()
			return nil
		})
	}
	if err := thread.Parallelize(ctx, jobs, in.Workers); err != nil {
		return nil, err
	}

	summary := &Summary{
		Kept:        diffed.keep,
		Installed:   installed,
		Failed:      failed,
		CacheHits:   int(cacheHits.Load()),
		CacheMisses: int(cacheMisses.Load()),
		Retries:     int(retries.Load()),
	}

	for _, artifact := range diffed.remove {
		if err := artifact.Delete(in.Root); err != nil {
			notifier.Warn(fmt.Sprintf("cleanup failed for %s: %v", artifact.FilePath, err))
			continue
		}
		summary.Removed = append(summary.Removed, artifact)
	}

	persisted := append([]*creelartifact.Artifact{}, summary.Installed...)
	persisted = append(persisted, summary.Kept...)
	if err := creelstate.FromArtifacts(persisted).Save(in.StatePath); err != nil {
		return summary, err
	}

	return summary, nil
}

func (in *Installer) installWithRetry(ctx context.Context, artifact *creelartifact.Artifact, notifier creelresolve.Notifier, cacheHits, cacheMisses, retries *atomic.Int64) error {
	fetcher := in.Fetcher
	if in.Cache != nil {
		fetcher = &cachingFetcher{
			inner:  in.Fetcher,
			cache:  in.Cache,
			digest: artifact.Digest,
			hits:   cacheHits,
			misses: cacheMisses,
		}
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			retries.Inc()
			delay := retryBaseDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			notifier.Warn(fmt.Sprintf("retrying %s (attempt %d/%d)", artifact.FilePath, attempt+1, maxRetries+1))
		}
		progress := func(a *creelartifact.Artifact, done, total int64) {
			notifier.Progress(a, done, total)
		}
		err := artifact.Copy(ctx, in.Root, fetcher, in.Algorithm, progress)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
	}
	return &TransferFailedError{FilePath: artifact.FilePath, Cause: lastErr}
}

// cachingFetcher wraps a repository Fetcher with a digest-keyed Cache
// consult: if the wrapped artifact's expected digest is already cached, its
// content is served from disk instead of refetched; otherwise the real
// fetch's stream is mirrored into the cache as it is read.
type cachingFetcher struct {
	inner  creelartifact.Fetcher
	cache  *creelcache.Cache
	digest string
	hits   *atomic.Int64
	misses *atomic.Int64
}

func (f *cachingFetcher) Fetch(ctx context.Context, sourceURL string) (io.ReadCloser, error) {
	if f.digest != "" {
		if rc, ok, err := f.cache.Get(ctx, f.digest); err != nil {
			return nil, err
		} else if ok {
			f.hits.Inc()
			return rc, nil
		}
	}
	f.misses.Inc()

	rc, err := f.inner.Fetch(ctx, sourceURL)
	if err != nil {
		return nil, err
	}
	return &cachePopulatingReader{rc: rc, cache: f.cache, ctx: ctx}, nil
}

// cachePopulatingReader tees a fetch's bytes into an in-memory buffer as
// they're read, then stores the buffer in the cache on Close, so a miss
// populates the cache without a second read of the source.
type cachePopulatingReader struct {
	rc    io.ReadCloser
	cache *creelcache.Cache
	ctx   context.Context
	buf   bytes.Buffer
}

func (r *cachePopulatingReader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	if n > 0 {
		r.buf.Write(p[:n])
	}
	return n, err
}

func (r *cachePopulatingReader) Close() error {
	err := r.rc.Close()
	if err == nil {
		_, _ = r.cache.Put(r.ctx, bytes.NewReader(r.buf.Bytes()))
	}
	return err
}

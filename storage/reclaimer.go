package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// UploadPrefix is the reference prefix of files living in the upload area.
const UploadPrefix = "/uploads/"

const defaultConcurrency = 4

// Outcome describes what a reclamation attempt did.
type Outcome int

const (
	// OutcomeSkipped means the reference is not a managed upload and nothing was touched.
	OutcomeSkipped Outcome = iota
	// OutcomeRemoved means the file was deleted.
	OutcomeRemoved
	// OutcomeMissing means the reference was managed but no file existed.
	OutcomeMissing
	// OutcomeFailed means resolution or deletion errored; Result.Err holds the reason.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeRemoved:
		return "removed"
	case OutcomeMissing:
		return "missing"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the outcome of reclaiming a single media reference.
type Result struct {
	Ref     string
	Path    string
	Outcome Outcome
	Err     error
}

// Reclaimer deletes uploaded media files that are no longer referenced.
// It never returns an error to its caller: failures are logged and reported in Result.
type Reclaimer struct {
	root        string
	concurrency int
	logger      zerolog.Logger
}

// Option configures a Reclaimer.
type Option func(*Reclaimer)

// WithConcurrency bounds how many files ReclaimAll deletes at once.
func WithConcurrency(n int) Option {
	return func(r *Reclaimer) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// NewReclaimer creates a reclaimer rooted at the upload directory, creating it if needed.
func NewReclaimer(root string, logger zerolog.Logger, opts ...Option) (*Reclaimer, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve upload root %s: %w", root, err)
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create upload root %s: %w", absRoot, err)
	}

	r := &Reclaimer{
		root:        absRoot,
		concurrency: defaultConcurrency,
		logger:      logger.With().Str("component", "reclaimer").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Root returns the absolute upload directory.
func (r *Reclaimer) Root() string {
	return r.root
}

// Resolve maps a media reference to a path inside the upload root.
// ok is false for references that must never be touched.
func (r *Reclaimer) Resolve(ref string) (path string, ok bool) {
	if ref == "" || !strings.HasPrefix(ref, UploadPrefix) {
		return "", false
	}

	name := strings.TrimPrefix(ref, UploadPrefix)
	if name == "" {
		return "", false
	}

	target := filepath.Join(r.root, filepath.FromSlash(name))
	rel, err := filepath.Rel(r.root, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return target, true
}

// Reclaim deletes the file behind ref if it is a managed upload.
func (r *Reclaimer) Reclaim(ctx context.Context, ref string) Result {
	target, ok := r.Resolve(ref)
	if !ok {
		return Result{Ref: ref, Outcome: OutcomeSkipped}
	}

	result := Result{Ref: ref, Path: target}
	if err := ctx.Err(); err != nil {
		return r.fail(result, err)
	}

	info, err := os.Lstat(target)
	if errors.Is(err, fs.ErrNotExist) {
		result.Outcome = OutcomeMissing
		r.logger.Debug().Str("ref", ref).Str("path", target).Msg("media file already gone")
		return result
	}
	if err != nil {
		return r.fail(result, err)
	}
	if info.IsDir() {
		result.Outcome = OutcomeSkipped
		r.logger.Warn().Str("ref", ref).Str("path", target).Msg("media reference points at a directory, not removing")
		return result
	}

	if err := os.Remove(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			result.Outcome = OutcomeMissing
			return result
		}
		return r.fail(result, err)
	}

	result.Outcome = OutcomeRemoved
	r.logger.Info().Str("ref", ref).Str("path", target).Msg("media file removed")
	return result
}

// ReclaimAll reclaims every reference independently. Results follow the order of refs.
func (r *Reclaimer) ReclaimAll(ctx context.Context, refs []string) []Result {
	results := make([]Result, len(refs))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			results[i] = r.Reclaim(ctx, ref)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (r *Reclaimer) fail(result Result, err error) Result {
	result.Outcome = OutcomeFailed
	result.Err = err
	r.logger.Error().Err(err).Str("ref", result.Ref).Str("path", result.Path).Msg("error deleting media file")
	return result
}

package fileregistry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/lifeline-agents/lifeline"
	"github.com/lifeline-agents/lifeline/manifest"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// Registry reads manifests from dir (lazy, cached).
type Registry struct {
	dir         string
	concurrency int
	logger      *zap.Logger
	mu          sync.RWMutex
	cache       []*manifest.Manifest // nil until loaded
}

// Option configures a Registry.
type Option func(*Registry)

// WithConcurrency sets how many files are parsed at once. Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(r *Registry) {
		if n >= 1 {
			r.concurrency = n
		}
	}
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Registry that reads YAML manifests from dir.
func New(dir string, opts ...Option) *Registry {
	r := &Registry{
		dir:         dir,
		concurrency: defaultConcurrency,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Manifests returns the parsed manifests in file-name order. Loads and caches on first call.
// The first parse error aborts the load; nothing is cached in that case.
func (r *Registry) Manifests(ctx context.Context) ([]*manifest.Manifest, error) {
	r.mu.RLock()
	cached := r.cache
	r.mu.RUnlock()
	if cached != nil {
		return slices.Clone(cached), nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cache != nil {
		return slices.Clone(r.cache), nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	paths, err := r.listFiles()
	if err != nil {
		return nil, err
	}
	out := make([]*manifest.Manifest, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			m, err := manifest.ParseFile(path)
			if err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(path), err)
			}
			out[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	r.cache = out
	r.logger.Debug("manifests loaded", zap.String("dir", r.dir), zap.Int("files", len(out)))
	return slices.Clone(out), nil
}

// RegisterAll registers every manifest in file-name order.
func (r *Registry) RegisterAll(ctx context.Context, e *lifeline.Engine) error {
	manifests, err := r.Manifests(ctx)
	if err != nil {
		return err
	}
	for _, m := range manifests {
		if err := m.Register(e); err != nil {
			return err
		}
	}
	return nil
}

// Reload clears the cache so the next call re-reads the directory.
func (r *Registry) Reload() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = nil
}

func (r *Registry) listFiles() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("fileregistry: read dir: %w", err)
	}
	var paths []string
	for _, ent := range entries {
		name := ent.Name()
		if ent.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		paths = append(paths, filepath.Join(r.dir, name))
	}
	return paths, nil
}

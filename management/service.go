// Package management inspects and clears the caches known to a cache.Manager,
// directly or over HTTP.
package management

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/goliatone/go-cacheable/cache"
	"golang.org/x/sync/errgroup"
)

// Service lists and clears caches by name.
type Service struct {
	manager cache.Manager
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(manager cache.Manager, opts ...Option) *Service {
	s := &Service{manager: manager, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Caches returns the summary of every cache, keyed by name.
func (s *Service) Caches(ctx context.Context) (map[string]map[string]any, error) {
	out := make(map[string]map[string]any)
	for _, name := range s.manager.Names() {
		info, err := s.Cache(ctx, name)
		if err != nil {
			return nil, err
		}
		out[name] = info
	}
	return out, nil
}

// Cache returns the summary of one cache. Backends that do not report
// statistics only expose their implementation type.
func (s *Service) Cache(ctx context.Context, name string) (map[string]any, error) {
	c, err := s.manager.Cache(name)
	if err != nil {
		return nil, err
	}

	provider, ok := c.(cache.InfoProvider)
	if !ok {
		return map[string]any{
			"implementation": fmt.Sprintf("%T", c.NativeCache()),
		}, nil
	}
	return provider.Info(ctx)
}

// InvalidateAll clears every cache concurrently.
func (s *Service) InvalidateAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range s.manager.Names() {
		g.Go(func() error {
			return s.Invalidate(ctx, name)
		})
	}
	return g.Wait()
}

// Invalidate clears one cache.
func (s *Service) Invalidate(ctx context.Context, name string) error {
	c, err := s.manager.Cache(name)
	if err != nil {
		return err
	}
	if err := c.InvalidateAll(ctx); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "cache cleared", slog.String("cache", name))
	return nil
}

// InvalidateKey removes one key from one cache.
func (s *Service) InvalidateKey(ctx context.Context, name, key string) error {
	c, err := s.manager.Cache(name)
	if err != nil {
		return err
	}
	if err := c.Invalidate(ctx, key); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "cache key evicted", slog.String("cache", name), slog.String("key", key))
	return nil
}

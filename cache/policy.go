package cache

import (
	"context"
	"log/slog"

	"github.com/goliatone/go-errors"
)

// Verdict is an error policy decision.
type Verdict int

const (
	// Fatal surfaces the backend error and abandons the remaining steps.
	Fatal Verdict = iota
	// Recovered swallows the error and continues as a miss or no-op.
	Recovered
)

func (v Verdict) String() string {
	if v == Recovered {
		return "recovered"
	}
	return "fatal"
}

// ErrorPolicy decides what a backend failure means for the current dispatch.
// It never sees errors raised by the cached operation itself.
type ErrorPolicy interface {
	HandleLoadError(ctx context.Context, c Named, key any, err error) Verdict
	HandlePutError(ctx context.Context, c Named, key, value any, err error) Verdict
	HandleInvalidateError(ctx context.Context, c Named, key any, err error) Verdict
	HandleInvalidateAllError(ctx context.Context, c Named, err error) Verdict
}

// FatalPolicy treats every backend failure as fatal.
type FatalPolicy struct{}

func (FatalPolicy) HandleLoadError(context.Context, Named, any, error) Verdict {
	return Fatal
}

func (FatalPolicy) HandlePutError(context.Context, Named, any, any, error) Verdict {
	return Fatal
}

func (FatalPolicy) HandleInvalidateError(context.Context, Named, any, error) Verdict {
	return Fatal
}

func (FatalPolicy) HandleInvalidateAllError(context.Context, Named, error) Verdict {
	return Fatal
}

// RecoverPolicy logs every backend failure and recovers from it.
type RecoverPolicy struct {
	Logger *slog.Logger
}

// NewRecoverPolicy returns a RecoverPolicy logging to logger, or to
// slog.Default when logger is nil.
func NewRecoverPolicy(logger *slog.Logger) *RecoverPolicy {
	return &RecoverPolicy{Logger: logger}
}

func (p *RecoverPolicy) HandleLoadError(ctx context.Context, c Named, key any, err error) Verdict {
	p.log(ctx, "cache load failed", c, err, slog.Any("key", key))
	return Recovered
}

func (p *RecoverPolicy) HandlePutError(ctx context.Context, c Named, key, _ any, err error) Verdict {
	p.log(ctx, "cache put failed", c, err, slog.Any("key", key))
	return Recovered
}

func (p *RecoverPolicy) HandleInvalidateError(ctx context.Context, c Named, key any, err error) Verdict {
	p.log(ctx, "cache invalidate failed", c, err, slog.Any("key", key))
	return Recovered
}

func (p *RecoverPolicy) HandleInvalidateAllError(ctx context.Context, c Named, err error) Verdict {
	p.log(ctx, "cache invalidate all failed", c, err)
	return Recovered
}

func (p *RecoverPolicy) log(ctx context.Context, msg string, c Named, err error, extra ...slog.Attr) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []slog.Attr{slog.String("error", err.Error())}
	if c != nil {
		attrs = append(attrs, slog.String("cache", c.Name()))
	}
	attrs = append(attrs, extra...)
	attrs = append(attrs, errors.ToSlogAttributes(err)...)
	logger.LogAttrs(ctx, slog.LevelWarn, msg, attrs...)
}

// PolicyFuncs builds a policy from individual hooks. Unset hooks are fatal.
type PolicyFuncs struct {
	Load          func(ctx context.Context, c Named, key any, err error) Verdict
	Put           func(ctx context.Context, c Named, key, value any, err error) Verdict
	Invalidate    func(ctx context.Context, c Named, key any, err error) Verdict
	InvalidateAll func(ctx context.Context, c Named, err error) Verdict
}

func (p PolicyFuncs) HandleLoadError(ctx context.Context, c Named, key any, err error) Verdict {
	if p.Load == nil {
		return Fatal
	}
	return p.Load(ctx, c, key, err)
}

func (p PolicyFuncs) HandlePutError(ctx context.Context, c Named, key, value any, err error) Verdict {
	if p.Put == nil {
		return Fatal
	}
	return p.Put(ctx, c, key, value, err)
}

func (p PolicyFuncs) HandleInvalidateError(ctx context.Context, c Named, key any, err error) Verdict {
	if p.Invalidate == nil {
		return Fatal
	}
	return p.Invalidate(ctx, c, key, err)
}

func (p PolicyFuncs) HandleInvalidateAllError(ctx context.Context, c Named, err error) Verdict {
	if p.InvalidateAll == nil {
		return Fatal
	}
	return p.InvalidateAll(ctx, c, err)
}

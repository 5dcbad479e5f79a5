package cache

import (
	"context"
	"log/slog"

	"github.com/LavishGent/cachefacade/internal/types"
)

// newLogger turns an optional types.Logger into a *slog.Logger.
func newLogger(l types.Logger) *slog.Logger {
	switch logger := l.(type) {
	case nil:
		return slog.Default()
	case *slog.Logger:
		if logger == nil {
			return slog.Default()
		}
		return logger
	default:
		return slog.New(slogAdapter{logger: l})
	}
}

// slogAdapter lets a plain types.Logger sit behind slog.
//
//nolint:govet // Simple adapter struct - alignment optimization minimal
type slogAdapter struct {
	attrs  []slog.Attr
	logger types.Logger
	group  string
}

func (a slogAdapter) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

//nolint:gocritic // slog.Handler interface requires passing Record by value
func (a slogAdapter) Handle(ctx context.Context, r slog.Record) error {
	args := make([]any, 0, (len(a.attrs)+r.NumAttrs())*2)

	for _, attr := range a.attrs {
		args = append(args, attr.Key, attr.Value.Any())
	}
	r.Attrs(func(attr slog.Attr) bool {
		args = append(args, a.qualify(attr.Key), attr.Value.Any())
		return true
	})

	switch {
	case r.Level < slog.LevelInfo:
		a.logger.Debug(r.Message, args...)
	case r.Level < slog.LevelWarn:
		a.logger.Info(r.Message, args...)
	case r.Level < slog.LevelError:
		a.logger.Warn(r.Message, args...)
	default:
		a.logger.Error(r.Message, args...)
	}
	return nil
}

func (a slogAdapter) qualify(key string) string {
	if a.group == "" {
		return key
	}
	return a.group + "." + key
}

func (a slogAdapter) WithAttrs(attrs []slog.Attr) slog.Handler {
	// Attributes are qualified by the group open when they were added.
	newAttrs := make([]slog.Attr, len(a.attrs), len(a.attrs)+len(attrs))
	copy(newAttrs, a.attrs)
	for _, attr := range attrs {
		newAttrs = append(newAttrs, slog.Attr{Key: a.qualify(attr.Key), Value: attr.Value})
	}
	return slogAdapter{
		logger: a.logger,
		attrs:  newAttrs,
		group:  a.group,
	}
}

func (a slogAdapter) WithGroup(name string) slog.Handler {
	newGroup := name
	if a.group != "" {
		newGroup = a.group + "." + name
	}
	return slogAdapter{
		logger: a.logger,
		attrs:  a.attrs,
		group:  newGroup,
	}
}

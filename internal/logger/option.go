package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// coreWithLevel wraps a zapcore.Core and overrides its minimum level.
type coreWithLevel struct {
	zapcore.Core

	// level is the minimum log level for this core to process messages.
	level zapcore.Level
}

// Enabled reports whether the provided log level is enabled on this core.
func (c *coreWithLevel) Enabled(l zapcore.Level) bool {
	return c.level.Enabled(l)
}

// Check adds the core to a checked entry if the entry's level is enabled,
// otherwise returns the checked entry unchanged.
//
//nolint:gocritic // AddCore requires ent to be passed by value.
func (c *coreWithLevel) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}

	return ce
}

// With returns a new coreWithLevel carrying the added fields at the same level.
//
//nolint:ireturn,nolintlint // Returning zapcore.Core is intended for zap integration.
func (c *coreWithLevel) With(fields []zapcore.Field) zapcore.Core {
	return &coreWithLevel{
		c.Core.With(fields),
		c.level,
	}
}

// WithLevel returns a zap.Option deriving a logger with the specified minimum
// level from an existing one, leaving the original untouched.
//
//nolint:ireturn,nolintlint // Returning zap.Option is intended for zap integration.
func WithLevel(lvl zapcore.Level) zap.Option {
	return zap.WrapCore(
		func(core zapcore.Core) zapcore.Core {
			return &coreWithLevel{core, lvl}
		})
}

// Quiet returns a context whose logger drops messages below the warning level.
// Unattended runs use it so routine update checks stay off the invoking user's
// terminal. It never raises verbosity: when the effective level is already warn
// or quieter, the context is returned unchanged.
func Quiet(ctx context.Context) context.Context {
	if Level() >= zapcore.WarnLevel {
		return ctx
	}

	quieter := FromContext(ctx).Desugar().WithOptions(WithLevel(zapcore.WarnLevel)).Sugar()

	return ToContext(ctx, quieter)
}

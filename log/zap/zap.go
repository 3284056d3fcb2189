// Package zap adapts a *zap.Logger to swrcache.Logger.
package zap

import (
	"sort"

	"github.com/unkn0wn-root/swrcache"
	"go.uber.org/zap"
)

var _ swrcache.Logger = Logger{}

type Logger struct{ L *zap.Logger }

// New names the logger after component ("store", "transport", ...).
func New(l *zap.Logger, component string) Logger {
	if component != "" {
		l = l.Named(component)
	}
	return Logger{L: l}
}

func (z Logger) Debug(msg string, f swrcache.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f swrcache.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f swrcache.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f swrcache.Fields) { z.L.Error(msg, fields(f)...) }

// fields are sorted by name so encoded lines are stable.
func fields(f swrcache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]zap.Field, 0, len(f))
	for _, k := range names {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}

package app

import (
	stdslog "log/slog"
	"os"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/swrcache"
	"github.com/unkn0wn-root/swrcache/internal/config"
	logruslog "github.com/unkn0wn-root/swrcache/log/logrus"
	sloglog "github.com/unkn0wn-root/swrcache/log/slog"
	zaplog "github.com/unkn0wn-root/swrcache/log/zap"
)

// logging builds per-component loggers for the configured backend.
type logging struct {
	component func(name string) swrcache.Logger
	slog      *stdslog.Logger // set for the slog backend only
	sync      func()
}

func newLogging(cfg *config.Config) (*logging, error) {
	switch cfg.LogBackend {
	case "zap":
		lvl, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		zc := zap.NewProductionConfig()
		zc.Level = zap.NewAtomicLevelAt(lvl)
		zl, err := zc.Build()
		if err != nil {
			return nil, err
		}
		return &logging{
			component: func(name string) swrcache.Logger { return zaplog.New(zl, name) },
			sync:      func() { _ = zl.Sync() },
		}, nil

	case "slog":
		var lvl stdslog.Level
		if err := lvl.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return nil, err
		}
		sl := stdslog.New(stdslog.NewJSONHandler(os.Stderr, &stdslog.HandlerOptions{Level: lvl}))
		return &logging{
			component: func(name string) swrcache.Logger { return sloglog.New(sl, name) },
			slog:      sl,
			sync:      func() {},
		}, nil

	default:
		lvl, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		ll := logrus.New()
		ll.SetFormatter(&logrus.JSONFormatter{})
		ll.SetLevel(lvl)
		return &logging{
			component: func(name string) swrcache.Logger { return logruslog.New(ll, name) },
			sync:      func() {},
		}, nil
	}
}

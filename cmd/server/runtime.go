package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Harshitk-cp/cogserver/internal/agents"
	"github.com/Harshitk-cp/cogserver/internal/atomspace"
	"github.com/Harshitk-cp/cogserver/internal/config"
	"github.com/Harshitk-cp/cogserver/internal/request"
	"github.com/Harshitk-cp/cogserver/internal/server"
	"github.com/Harshitk-cp/cogserver/internal/store"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// runtime is everything both serve and run need: the table, the loop, its
// agents and the command processor with any storage opened at startup.
type runtime struct {
	logger *zap.Logger
	srv    *server.Server
	proc   *request.Processor
	agents []server.MindAgent
}

func newRuntime(ctx context.Context, logger *zap.Logger) (*runtime, error) {
	table := atomspace.NewTable(logger.Named("atomspace"))
	srv := server.New(table, server.Config{CycleDuration: config.CycleDuration()}, logger.Named("server"))
	rt := &runtime{logger: logger, srv: srv}

	if freq := config.DeductionFrequency(); freq > 0 {
		a := agents.NewDeductionAgent(logger.Named("deduction"))
		if err := srv.PlugInMindAgent(a, freq); err != nil {
			return nil, err
		}
		rt.agents = append(rt.agents, a)
	}
	if freq := config.ForgettingFrequency(); freq > 0 {
		a := agents.NewForgettingAgent(config.ForgettingThreshold(), logger.Named("forgetting"))
		if err := srv.PlugInMindAgent(a, freq); err != nil {
			return nil, err
		}
		rt.agents = append(rt.agents, a)
	}
	srv.PlugInInputHandler(agents.NewActivityLogger(logger.Named("activity")))

	var opts []request.Option
	if url := config.DatabaseURL(); url != "" {
		openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		sql, err := store.OpenSQL(openCtx, url, logger.Named("sql"))
		cancel()
		if err != nil {
			return nil, errors.Wrap(err, "open SQL storage")
		}
		opts = append(opts, request.WithSQL(sql))
	}
	if path := config.CachePath(); path != "" {
		cache, err := store.OpenCache(store.CacheConfig{Path: path, SyncWrites: true, Logger: logger.Named("cache")})
		if err != nil {
			// Release the SQL pool opened above.
			_ = request.NewProcessor(logger, opts...).Close()
			return nil, errors.Wrap(err, "open cache")
		}
		logger.Info("opened cache", zap.String("path", path))
		opts = append(opts, request.WithCache(cache))
	}
	rt.proc = request.NewProcessor(logger.Named("request"), opts...)
	return rt, nil
}

// close waits for bulk operations and releases storage. The loop must have
// stopped.
func (rt *runtime) close() {
	rt.srv.WaitBulk()
	if err := rt.proc.Close(); err != nil {
		rt.logger.Warn("failed to close storage", zap.Error(err))
	}
}

// printer answers console commands on stdout.
type printer struct{}

func (printer) CallBack(msg string) {
	fmt.Fprintln(os.Stdout, msg)
}

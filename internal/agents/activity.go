package agents

import (
	"github.com/Harshitk-cp/cogserver/internal/server"
	"go.uber.org/zap"
)

// ActivityLogger is an input handler: it runs after every cycle that
// processed requests and records the table size at that point.
type ActivityLogger struct {
	logger *zap.Logger
	runs   int
	last   server.Stats
}

func NewActivityLogger(logger *zap.Logger) *ActivityLogger {
	return &ActivityLogger{logger: logger}
}

func (a *ActivityLogger) Name() string { return "activity-logger" }

func (a *ActivityLogger) Run(srv *server.Server) {
	a.runs++
	a.last = srv.Stats()
	a.last.Atoms = int64(srv.AtomSpace().Size())
	a.logger.Debug("requests processed",
		zap.Int64("cycle", a.last.Cycle),
		zap.Int("queue_depth", a.last.QueueDepth),
		zap.Int64("atoms", a.last.Atoms))
}

func (a *ActivityLogger) Runs() int { return a.runs }

func (a *ActivityLogger) Last() server.Stats { return a.last }

// Package request turns command lines and REST calls into server requests
// that run on the cognitive loop.
package request

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/Harshitk-cp/cogserver/internal/server"
	"github.com/Harshitk-cp/cogserver/internal/store"
	"github.com/cockroachdb/errors"
	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"
)

const openTimeout = 10 * time.Second

type (
	SQLOpener   func(ctx context.Context, url string) (store.Backend, error)
	CacheOpener func(path string) (store.Backend, error)
)

// Processor executes console commands. It owns the SQL and cache
// connections the commands open; those are only touched from the loop and
// from bulk operations, which never overlap with a cycle.
type Processor struct {
	logger     *zap.Logger
	openSQL    SQLOpener
	openCache  CacheOpener
	sqlStore   store.Backend
	cacheStore store.Backend
}

type Option func(*Processor)

func WithSQLOpener(open SQLOpener) Option {
	return func(p *Processor) { p.openSQL = open }
}

func WithCacheOpener(open CacheOpener) Option {
	return func(p *Processor) { p.openCache = open }
}

// WithSQL and WithCache install a connection opened at startup.
func WithSQL(b store.Backend) Option {
	return func(p *Processor) { p.sqlStore = b }
}

func WithCache(b store.Backend) Option {
	return func(p *Processor) { p.cacheStore = b }
}

func NewProcessor(logger *zap.Logger, opts ...Option) *Processor {
	p := &Processor{logger: logger}
	p.openSQL = func(ctx context.Context, url string) (store.Backend, error) {
		return store.OpenSQL(ctx, url, logger.Named("sql"))
	}
	p.openCache = func(path string) (store.Backend, error) {
		return store.OpenCache(store.CacheConfig{Path: path, SyncWrites: true, Logger: logger.Named("cache")})
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Command wraps one console line for the request queue.
func (p *Processor) Command(line string, cb server.CallBack) server.Request {
	return &Command{proc: p, line: line, cb: cb}
}

// Close releases any open storage connections. Call it after the loop has
// stopped.
func (p *Processor) Close() error {
	var errs error
	if p.sqlStore != nil {
		errs = errors.CombineErrors(errs, p.sqlStore.Close())
		p.sqlStore = nil
	}
	if p.cacheStore != nil {
		errs = errors.CombineErrors(errs, p.cacheStore.Close())
		p.cacheStore = nil
	}
	return errs
}

type Command struct {
	proc *Processor
	line string
	cb   server.CallBack
}

func (c *Command) Requester() server.CallBack { return c.cb }

// Execute answers through the callback. Command failures are answers, not
// request errors, so only a broken line is returned as an error.
func (c *Command) Execute(srv *server.Server) error {
	name, rest := splitCommand(c.line)
	if name == "" {
		return nil
	}

	var args []string
	if name != "data" {
		var err error
		if args, err = shellquote.Split(rest); err != nil {
			return errors.Wrapf(err, "%s: invalid command syntax", name)
		}
	}

	cmd, ok := commands[name]
	if !ok {
		c.answer("unknown command >>" + name + "<<\n" + usageLine())
		return nil
	}
	if len(args) < cmd.minArgs || (cmd.maxArgs >= 0 && len(args) > cmd.maxArgs) {
		c.answer(name + ": invalid command syntax\nUsage: " + cmd.usage)
		return nil
	}

	c.proc.logger.Debug("executing command", zap.String("command", name), zap.Int("args", len(args)))
	c.answer(cmd.run(c, srv, args, rest))
	return nil
}

func (c *Command) answer(msg string) {
	if c.cb != nil && msg != "" {
		c.cb.CallBack(msg)
	}
}

func splitCommand(line string) (string, string) {
	line = strings.TrimSpace(line)
	i := strings.IndexFunc(line, unicode.IsSpace)
	if i < 0 {
		return line, ""
	}
	return line[:i], strings.TrimSpace(line[i:])
}

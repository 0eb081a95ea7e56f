package request

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Harshitk-cp/cogserver/internal/atomspace"
	"github.com/Harshitk-cp/cogserver/internal/buildconfig"
	"github.com/Harshitk-cp/cogserver/internal/request/atomfile"
	"github.com/Harshitk-cp/cogserver/internal/server"
	"github.com/Harshitk-cp/cogserver/internal/store"
)

type command struct {
	usage   string
	help    string
	minArgs int
	maxArgs int // -1 for any
	run     func(c *Command, srv *server.Server, args []string, raw string) string
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":        {"help [command]", "show this list, or help for one command", 0, 1, runHelp},
		"ls":          {"ls [<handle> | <type> <name>]", "list the atom table, one atom and its incoming set, or a node", 0, 2, runLs},
		"load":        {"load <filename>", "load atoms from a YAML atom file", 1, 1, runLoad},
		"data":        {"data <yaml>", "load atoms from the YAML document that follows", 0, -1, runData},
		"sql-open":    {"sql-open <url>", "open a connection to SQL storage", 1, 1, runSQLOpen},
		"sql-close":   {"sql-close", "close the connection to SQL storage", 0, 0, runSQLClose},
		"sql-load":    {"sql-load", "load the atom table from SQL storage", 0, 0, runSQLLoad},
		"sql-store":   {"sql-store", "store the atom table to SQL storage", 0, 0, runSQLStore},
		"cache-open":  {"cache-open <path>", "open the atom cache at path (:memory: for a scratch cache)", 1, 1, runCacheOpen},
		"cache-close": {"cache-close", "close the atom cache", 0, 0, runCacheClose},
		"cache-load":  {"cache-load", "load the atom table from the cache", 0, 0, runCacheLoad},
		"cache-store": {"cache-store", "store the atom table to the cache", 0, 0, runCacheStore},
		"agents":      {"agents", "list registered mind agents", 0, 0, runAgents},
		"version":     {"version", "show the server version", 0, 0, runVersion},
		"exit":        {"exit", "end the session", 0, 0, runExit},
		"shutdown":    {"shutdown", "stop the server, and exit", 0, 0, runShutdown},
	}
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func usageLine() string {
	return "\tAvailable commands: " + strings.Join(commandNames(), " ")
}

func runHelp(_ *Command, _ *server.Server, args []string, _ string) string {
	var b strings.Builder
	if len(args) == 1 {
		if cmd, ok := commands[args[0]]; ok {
			return fmt.Sprintf("%s\n    %s\n", cmd.usage, cmd.help)
		}
		fmt.Fprintf(&b, "No help available for command %q\n\n", args[0])
	}
	b.WriteString("Available commands:\n")
	for _, name := range commandNames() {
		cmd := commands[name]
		fmt.Fprintf(&b, "    %-30s -- %s\n", cmd.usage, cmd.help)
	}
	return b.String()
}

func runLs(_ *Command, srv *server.Server, args []string, _ string) string {
	table := srv.AtomSpace()
	switch len(args) {
	case 0:
		var b strings.Builder
		_ = table.Print(&b, atomspace.TypeAtom, true)
		return b.String()
	case 1:
		h, err := atomspace.ParseHandle(args[0])
		if err != nil {
			return "Invalid ls format: handle must be numeric"
		}
		return listAtom(table, h)
	default:
		typ, ok := atomspace.TypeByName(args[0])
		if !ok || !typ.IsNode() {
			return fmt.Sprintf("Unknown node type %q", args[0])
		}
		h, ok := table.GetHandle(typ, args[1])
		if !ok {
			return "Invalid handle/unknown node"
		}
		return listAtom(table, h)
	}
}

// listAtom prints h and, indented, every link pointing at it.
func listAtom(table *atomspace.Table, h atomspace.Handle) string {
	a, err := table.Get(h)
	if err != nil {
		return "Invalid handle/unknown node"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d: %s\n", h, a)
	incoming, _ := table.Incoming(h)
	for _, in := range incoming {
		if l, err := table.Get(in); err == nil {
			fmt.Fprintf(&b, "\t%d: %s\n", in, l)
		}
	}
	return b.String()
}

func runLoad(_ *Command, srv *server.Server, args []string, _ string) string {
	f, err := atomfile.ParseFile(args[0])
	if err != nil {
		return fmt.Sprintf("load %s failed: %v", args[0], err)
	}
	added, err := f.Apply(srv.AtomSpace())
	if err != nil {
		return fmt.Sprintf("load %s failed: %v", args[0], err)
	}
	return fmt.Sprintf("load %s successful: %d new atoms", args[0], added)
}

func runData(_ *Command, srv *server.Server, _ []string, raw string) string {
	if raw == "" {
		return "data: invalid command syntax\nUsage: " + commands["data"].usage
	}
	f, err := atomfile.Parse(strings.NewReader(raw))
	if err != nil {
		return fmt.Sprintf("data load failed: %v", err)
	}
	added, err := f.Apply(srv.AtomSpace())
	if err != nil {
		return fmt.Sprintf("data load failed: %v", err)
	}
	return fmt.Sprintf("data load successful: %d new atoms", added)
}

func runSQLOpen(c *Command, _ *server.Server, args []string, _ string) string {
	p := c.proc
	if p.sqlStore != nil {
		return "Error: SQL connection already open"
	}
	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()
	b, err := p.openSQL(ctx, args[0])
	if err != nil {
		return "Error: " + err.Error()
	}
	p.sqlStore = b
	return "Opened SQL storage"
}

func runSQLClose(c *Command, _ *server.Server, _ []string, _ string) string {
	p := c.proc
	if p.sqlStore == nil {
		return "Warning: SQL connection not open"
	}
	err := p.sqlStore.Close()
	p.sqlStore = nil
	if err != nil {
		return "Error: " + err.Error()
	}
	return "SQL connection closed"
}

func runSQLLoad(c *Command, srv *server.Server, _ []string, _ string) string {
	if c.proc.sqlStore == nil {
		return "Error: No SQL connection is open"
	}
	startBulk(c, srv, "sql-load", c.proc.sqlStore, store.Backend.Load)
	return "SQL loader thread started"
}

func runSQLStore(c *Command, srv *server.Server, _ []string, _ string) string {
	if c.proc.sqlStore == nil {
		return "Error: No SQL connection is open"
	}
	startBulk(c, srv, "sql-store", c.proc.sqlStore, store.Backend.Store)
	return "SQL data store thread started"
}

func runCacheOpen(c *Command, _ *server.Server, args []string, _ string) string {
	p := c.proc
	if p.cacheStore != nil {
		return "Error: cache already open"
	}
	b, err := p.openCache(args[0])
	if err != nil {
		return "Error: " + err.Error()
	}
	p.cacheStore = b
	return fmt.Sprintf("Opened cache %q", args[0])
}

func runCacheClose(c *Command, _ *server.Server, _ []string, _ string) string {
	p := c.proc
	if p.cacheStore == nil {
		return "Warning: cache not open"
	}
	err := p.cacheStore.Close()
	p.cacheStore = nil
	if err != nil {
		return "Error: " + err.Error()
	}
	return "cache closed"
}

func runCacheLoad(c *Command, srv *server.Server, _ []string, _ string) string {
	if c.proc.cacheStore == nil {
		return "Error: No cache is open"
	}
	startBulk(c, srv, "cache-load", c.proc.cacheStore, store.Backend.Load)
	return "cache loader thread started"
}

func runCacheStore(c *Command, srv *server.Server, _ []string, _ string) string {
	if c.proc.cacheStore == nil {
		return "Error: No cache is open"
	}
	startBulk(c, srv, "cache-store", c.proc.cacheStore, store.Backend.Store)
	return "cache data store thread started"
}

// startBulk runs op against the whole table once the current cycle ends.
func startBulk(c *Command, srv *server.Server, name string, b store.Backend,
	op func(store.Backend, context.Context, *atomspace.Table) error) {
	srv.RunBulk(name, func(ctx context.Context) error {
		return op(b, ctx, srv.AtomSpace())
	}, c.cb)
}

func runAgents(_ *Command, srv *server.Server, _ []string, _ string) string {
	agents := srv.MindAgents()
	if len(agents) == 0 {
		return "No mind agents registered\n"
	}
	var b strings.Builder
	for _, a := range agents {
		fmt.Fprintf(&b, "%s (every %d cycles)\n", a.Name, a.Frequency)
	}
	return b.String()
}

func runVersion(_ *Command, _ *server.Server, _ []string, _ string) string {
	return buildconfig.String()
}

func runExit(_ *Command, _ *server.Server, _ []string, _ string) string {
	return "Goodbye"
}

func runShutdown(_ *Command, srv *server.Server, _ []string, _ string) string {
	srv.Stop()
	return "Shutting down"
}

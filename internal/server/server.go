// Package server runs the cognitive loop: it drains queued requests, runs
// mind agents at their frequencies and paces cycles to a wall-clock period.
package server

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Harshitk-cp/cogserver/internal/atomspace"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const DefaultCycleDuration = 100 * time.Millisecond

var (
	ErrInvalidFrequency = errors.New("mind agent frequency must be at least 1")
	ErrAlreadyRunning   = errors.New("cognitive loop already running")
)

// CallBack delivers request output to whoever submitted the request.
type CallBack interface {
	CallBack(message string)
}

// CallBackFunc adapts a function to CallBack.
type CallBackFunc func(message string)

func (f CallBackFunc) CallBack(message string) { f(message) }

// Request is one unit of external work, executed on the cognitive loop.
// An error is reported to the requester's callback.
type Request interface {
	Execute(srv *Server) error
	Requester() CallBack
}

// MindAgent is run by the loop every frequency cycles.
type MindAgent interface {
	Run(srv *Server)
}

// Named agents report under their own name in logs and metrics.
type Named interface {
	Name() string
}

type State int32

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

type Config struct {
	CycleDuration time.Duration
}

type registration struct {
	agent     MindAgent
	frequency int64
}

// AgentInfo describes one registered mind agent.
type AgentInfo struct {
	Name      string `json:"name"`
	Frequency int64  `json:"frequency"`
}

// Stats is a point-in-time view that is safe to read from any goroutine.
type Stats struct {
	State      string `json:"state"`
	Cycle      int64  `json:"cycle"`
	QueueDepth int    `json:"queue_depth"`
	Atoms      int64  `json:"atoms"`
}

// Server owns the atom table and the loop that mutates it. Agents and input
// handlers are registered before the loop starts or from code already
// running on it.
type Server struct {
	cfg    Config
	logger *zap.Logger
	table  *atomspace.Table
	queue  *RequestQueue

	agents        []registration
	inputHandlers []MindAgent

	cycleCount atomic.Int64
	atomCount  atomic.Int64

	// run is the live loop, if any. It is cleared only when the loop
	// returns, so a stopped loop that is still winding down blocks a
	// restart.
	runMu sync.Mutex
	run   *loopRun

	// cycleMu is held for the body of every cycle and for bulk operations.
	cycleMu sync.Mutex
	bulk    sync.WaitGroup
}

func New(table *atomspace.Table, cfg Config, logger *zap.Logger) *Server {
	if cfg.CycleDuration < 0 {
		cfg.CycleDuration = 0
	}
	s := &Server{
		cfg:    cfg,
		logger: logger,
		table:  table,
		queue:  NewRequestQueue(),
	}
	s.cycleCount.Store(1)
	s.atomCount.Store(int64(table.Size()))
	return s
}

func (s *Server) AtomSpace() *atomspace.Table { return s.table }
func (s *Server) Logger() *zap.Logger { return s.logger }
func (s *Server) CycleCount() int64 { return s.cycleCount.Load() }

// loopRun is one lifetime of ServerLoop or RunCycles. Stop cancels ctx.
type loopRun struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (s *Server) begin(parent context.Context) (*loopRun, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.run != nil {
		return nil, ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(parent)
	s.run = &loopRun{ctx: ctx, cancel: cancel}
	return s.run, nil
}

func (s *Server) end(r *loopRun) {
	r.cancel()
	s.runMu.Lock()
	s.run = nil
	s.runMu.Unlock()
}

// State is Running from the moment a loop starts until it returns.
func (s *Server) State() State {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.run != nil {
		return Running
	}
	return Stopped
}

func (s *Server) Stats() Stats {
	return Stats{
		State:      s.State().String(),
		Cycle:      s.CycleCount(),
		QueueDepth: s.queue.Size(),
		Atoms:      s.atomCount.Load(),
	}
}

// PushRequest queues r for the next cycle. Safe from any goroutine.
func (s *Server) PushRequest(r Request) {
	s.queue.Push(r)
}

func (s *Server) RequestQueueSize() int {
	return s.queue.Size()
}

// PlugInMindAgent schedules agent to run on every cycle whose number is a
// multiple of frequency.
func (s *Server) PlugInMindAgent(agent MindAgent, frequency int) error {
	if frequency < 1 {
		return errors.Wrapf(ErrInvalidFrequency, "agent %s with frequency %d", agentName(agent), frequency)
	}
	s.agents = append(s.agents, registration{agent: agent, frequency: int64(frequency)})
	s.logger.Info("mind agent registered", zap.String("agent", agentName(agent)), zap.Int("frequency", frequency))
	return nil
}

// UnplugMindAgent removes the first registration of agent.
func (s *Server) UnplugMindAgent(agent MindAgent) bool {
	for i, r := range s.agents {
		if r.agent == agent {
			s.agents = append(s.agents[:i], s.agents[i+1:]...)
			return true
		}
	}
	return false
}

// PlugInInputHandler registers an agent that runs once after any cycle that
// processed requests. Only the paced loop runs input handlers.
func (s *Server) PlugInInputHandler(agent MindAgent) {
	s.inputHandlers = append(s.inputHandlers, agent)
}

func (s *Server) MindAgents() []AgentInfo {
	out := make([]AgentInfo, 0, len(s.agents))
	for _, r := range s.agents {
		out = append(out, AgentInfo{Name: agentName(r.agent), Frequency: r.frequency})
	}
	return out
}

// ServerLoop runs paced cycles until Stop is called or ctx is done. A cycle
// that overruns its budget is followed immediately by the next one, without
// making up for lost time.
func (s *Server) ServerLoop(ctx context.Context) error {
	r, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer s.end(r)

	s.logger.Info("cognitive loop started", zap.Duration("cycle_duration", s.cfg.CycleDuration))

	pacer := rate.NewLimiter(rate.Every(s.cfg.CycleDuration), 1)
	pacer.Allow()
	for r.ctx.Err() == nil {
		if elapsed := s.runCycle(true); s.cfg.CycleDuration > 0 && elapsed > s.cfg.CycleDuration {
			cycleOverruns.Inc()
		}
		if err := pacer.Wait(r.ctx); err != nil {
			break
		}
	}

	s.logger.Info("cognitive loop stopped", zap.Int64("cycle", s.CycleCount()))
	return nil
}

// RunCycles runs n cycles back to back, or until Stop when n is 0. It skips
// pacing and input handlers, which makes it the entry point for tests and
// batch runs.
func (s *Server) RunCycles(n int) error {
	r, err := s.begin(context.Background())
	if err != nil {
		return err
	}
	defer s.end(r)

	for i := 0; (n == 0 || i < n) && r.ctx.Err() == nil; i++ {
		s.runCycle(false)
	}
	return nil
}

// Stop ends the loop before its next cycle and interrupts its pacing wait.
// A cycle in progress completes. The loop reports Stopped, and accepts a new
// start, once it has returned.
func (s *Server) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.run != nil {
		s.run.cancel()
	}
}

func (s *Server) runCycle(withInput bool) time.Duration {
	start := time.Now()
	s.cycleMu.Lock()

	processed := s.processRequests()
	if withInput && processed > 0 {
		s.processInput()
	}
	s.processMindAgents()

	if s.cycleCount.Add(1) < 0 {
		s.cycleCount.Store(0)
	}
	s.atomCount.Store(int64(s.table.Size()))
	s.cycleMu.Unlock()

	elapsed := time.Since(start)
	cyclesTotal.Inc()
	cycleDuration.Observe(elapsed.Seconds())
	return elapsed
}

// processRequests executes the requests queued when the cycle began. Anything
// pushed meanwhile waits for the next cycle.
func (s *Server) processRequests() int {
	pending := s.queue.Size()
	requestQueueDepth.Set(float64(pending))

	processed := 0
	for ; processed < pending; processed++ {
		req, ok := s.queue.Pop()
		if !ok {
			break
		}
		s.execute(req)
	}
	return processed
}

func (s *Server) execute(req Request) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.Newf("request panicked: %v", r)
			s.logger.Error("request failed", zap.Error(err), zap.Int64("cycle", s.CycleCount()))
			requestsTotal.WithLabelValues("panic").Inc()
			reply(req, "Error: "+err.Error())
		}
	}()

	if err := req.Execute(s); err != nil {
		s.logger.Warn("request failed", zap.Error(err), zap.Int64("cycle", s.CycleCount()))
		requestsTotal.WithLabelValues("error").Inc()
		reply(req, "Error: "+err.Error())
		return
	}
	requestsTotal.WithLabelValues("ok").Inc()
}

func reply(req Request, msg string) {
	if cb := req.Requester(); cb != nil {
		cb.CallBack(msg)
	}
}

func (s *Server) processInput() {
	for _, h := range s.inputHandlers {
		s.runAgent(h)
	}
}

func (s *Server) processMindAgents() {
	cycle := s.CycleCount()
	for _, r := range s.agents {
		if cycle%r.frequency == 0 {
			s.runAgent(r.agent)
		}
	}
}

func (s *Server) runAgent(agent MindAgent) {
	name := agentName(agent)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("mind agent panicked",
				zap.String("agent", name),
				zap.Int64("cycle", s.CycleCount()),
				zap.Any("panic", r))
			agentRunsTotal.WithLabelValues(name, "panic").Inc()
		}
	}()
	agent.Run(s)
	agentRunsTotal.WithLabelValues(name, "ok").Inc()
}

// RunBulk runs fn on its own goroutine while holding the cycle lock, so no
// cycle runs until fn returns. The outcome goes to cb.
func (s *Server) RunBulk(name string, fn func(ctx context.Context) error, cb CallBack) {
	s.bulk.Add(1)
	go func() {
		defer s.bulk.Done()
		s.cycleMu.Lock()
		defer s.cycleMu.Unlock()

		start := time.Now()
		err := fn(context.Background())
		s.atomCount.Store(int64(s.table.Size()))

		if err != nil {
			s.logger.Error("bulk operation failed", zap.String("operation", name), zap.Error(err))
			bulkOperations.WithLabelValues(name, "error").Inc()
			if cb != nil {
				cb.CallBack(fmt.Sprintf("%s failed: %v", name, err))
			}
			return
		}
		s.logger.Info("bulk operation complete",
			zap.String("operation", name),
			zap.Duration("took", time.Since(start)),
			zap.Int("atoms", s.table.Size()))
		bulkOperations.WithLabelValues(name, "ok").Inc()
		if cb != nil {
			cb.CallBack(fmt.Sprintf("%s complete: %d atoms", name, s.table.Size()))
		}
	}()
}

// WaitBulk blocks until every bulk operation started so far has finished.
func (s *Server) WaitBulk() {
	s.bulk.Wait()
}

func agentName(a MindAgent) string {
	if n, ok := a.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", a)
}

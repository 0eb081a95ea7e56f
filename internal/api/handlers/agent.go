package handlers

import (
	"net/http"
	"time"

	"github.com/Harshitk-cp/cogserver/internal/server"
	"github.com/go-chi/chi/v5"
)

// AgentHandler lists mind agents and runs one on demand, outside its
// schedule.
type AgentHandler struct {
	srv     *server.Server
	timeout time.Duration
	byName  map[string]server.MindAgent
}

func NewAgentHandler(srv *server.Server, timeout time.Duration, agents ...server.MindAgent) *AgentHandler {
	h := &AgentHandler{srv: srv, timeout: timeout, byName: make(map[string]server.MindAgent)}
	for _, a := range agents {
		if n, ok := a.(server.Named); ok {
			h.byName[n.Name()] = a
		}
	}
	return h
}

type agentsResponse struct {
	Agents []server.AgentInfo `json:"agents"`
	Stats  server.Stats       `json:"stats"`
}

type runAgentResponse struct {
	Agent  string `json:"agent"`
	Cycle  int64  `json:"cycle"`
	Result any    `json:"result,omitempty"`
}

// reporter is implemented by agents that summarize their last run.
type reporter interface {
	Report() any
}

func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	results := make(chan agentsResponse, 1)
	h.srv.PushRequest(&loopFunc{fn: func(srv *server.Server) {
		results <- agentsResponse{Agents: srv.MindAgents(), Stats: srv.Stats()}
	}})
	resp, err := await(r.Context(), results, h.timeout)
	if err != nil {
		writeAwaitError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Run executes the named agent once on the next cycle.
func (h *AgentHandler) Run(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	agent, ok := h.byName[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown agent")
		return
	}

	results := make(chan runAgentResponse, 1)
	h.srv.PushRequest(&loopFunc{fn: func(srv *server.Server) {
		agent.Run(srv)
		results <- runAgentResponse{Agent: name, Cycle: srv.CycleCount(), Result: lastResult(agent)}
	}})
	resp, err := await(r.Context(), results, h.timeout)
	if err != nil {
		writeAwaitError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func lastResult(a server.MindAgent) any {
	if r, ok := a.(reporter); ok {
		return r.Report()
	}
	return nil
}

// loopFunc runs fn on the cognitive loop.
type loopFunc struct {
	fn func(srv *server.Server)
}

func (l *loopFunc) Execute(srv *server.Server) error {
	l.fn(srv)
	return nil
}

func (l *loopFunc) Requester() server.CallBack { return nil }

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Harshitk-cp/cogserver/internal/agents"
	"github.com/Harshitk-cp/cogserver/internal/atomspace"
	"github.com/Harshitk-cp/cogserver/internal/request"
	"github.com/Harshitk-cp/cogserver/internal/server"
	"github.com/Harshitk-cp/cogserver/internal/truthvalue"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

const testTimeout = 2 * time.Second

type harness struct {
	table  *atomspace.Table
	srv    *server.Server
	router *chi.Mux
}

// newHarness routes every handler the way the API does. The loop is not
// started until start is called, so tests can seed the table first.
func newHarness(t *testing.T, timeout time.Duration, mindAgents ...server.MindAgent) *harness {
	t.Helper()
	table := atomspace.NewTable(zap.NewNop())
	srv := server.New(table, server.Config{CycleDuration: time.Millisecond}, zap.NewNop())
	proc := request.NewProcessor(zap.NewNop())

	atom := NewAtomHandler(srv, timeout)
	cmd := NewCommandHandler(srv, proc, timeout)
	agent := NewAgentHandler(srv, timeout, mindAgents...)
	console := NewConsoleHandler(srv, proc, zap.NewNop())

	r := chi.NewRouter()
	r.Post("/atom", atom.Create)
	r.Get("/atom/{handle}", atom.Get)
	r.Post("/requests", cmd.Run)
	r.Get("/console", console.Serve)
	r.Get("/agents", agent.List)
	r.Post("/agents/{name}/run", agent.Run)

	return &harness{table: table, srv: srv, router: r}
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.srv.ServerLoop(ctx)
	}()
	t.Cleanup(func() {
		h.srv.Stop()
		cancel()
		<-done
	})
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestCreateAndGetAtom(t *testing.T) {
	h := newHarness(t, testTimeout)
	h.start(t)

	cat := request.AtomSpec{
		Type:       "ConceptNode",
		Name:       "cat",
		TruthValue: &truthvalue.Spec{Simple: &truthvalue.SimpleSpec{Str: 0.8, Count: 10}},
	}
	rec := h.do(t, http.MethodPost, "/atom", cat)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[createAtomResponse](t, rec)
	assert.Equal(t, "created", created.Result)

	rec = h.do(t, http.MethodPost, "/atom", cat)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, createAtomResponse{Result: "merged", Handle: created.Handle}, decode[createAtomResponse](t, rec))

	rec = h.do(t, http.MethodPost, "/atom", request.AtomSpec{Type: "ConceptNode", Name: "mammal"})
	require.Equal(t, http.StatusCreated, rec.Code)
	mammal := decode[createAtomResponse](t, rec).Handle

	rec = h.do(t, http.MethodPost, "/atom", request.AtomSpec{
		Type:     "InheritanceLink",
		Outgoing: []atomspace.Handle{created.Handle, mammal},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	link := decode[createAtomResponse](t, rec).Handle

	rec = h.do(t, http.MethodGet, "/atom/"+created.Handle.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[request.AtomView](t, rec)
	assert.Equal(t, "ConceptNode", view.Type)
	assert.Equal(t, "cat", view.Name)
	assert.Equal(t, []atomspace.Handle{link}, view.Incoming)
	require.NotNil(t, view.TruthValue.Simple)
	assert.InDelta(t, 0.8, view.TruthValue.Simple.Str, 1e-9)

	rec = h.do(t, http.MethodGet, "/atom/"+link.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view = decode[request.AtomView](t, rec)
	assert.Equal(t, []atomspace.Handle{created.Handle, mammal}, view.Outgoing)
	assert.Empty(t, view.Incoming)
	assert.Contains(t, rec.Body.String(), `"incoming":[]`)
}

func TestAtomRequestErrors(t *testing.T) {
	h := newHarness(t, testTimeout)
	h.start(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"malformed json", http.MethodPost, "/atom", `{"type":`, http.StatusBadRequest},
		{"unknown type", http.MethodPost, "/atom", request.AtomSpec{Type: "BogusNode"}, http.StatusBadRequest},
		{"abstract type", http.MethodPost, "/atom", request.AtomSpec{Type: "Node", Name: "x"}, http.StatusBadRequest},
		{"named link", http.MethodPost, "/atom", request.AtomSpec{Type: "ListLink", Name: "x"}, http.StatusBadRequest},
		{"dangling target", http.MethodPost, "/atom", request.AtomSpec{Type: "ListLink", Outgoing: []atomspace.Handle{99999}}, http.StatusBadRequest},
		{"bad truth value", http.MethodPost, "/atom", request.AtomSpec{
			Type:       "ConceptNode",
			Name:       "x",
			TruthValue: &truthvalue.Spec{Simple: &truthvalue.SimpleSpec{Str: 1.5}},
		}, http.StatusBadRequest},
		{"non-numeric handle", http.MethodGet, "/atom/cat", nil, http.StatusBadRequest},
		{"unknown handle", http.MethodGet, "/atom/99999", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Contains(t, decode[map[string]string](t, rec), "error")
		})
	}
	assert.Zero(t, h.table.Size())
}

func TestStoppedLoopTimesOut(t *testing.T) {
	h := newHarness(t, 20*time.Millisecond)

	rec := h.do(t, http.MethodPost, "/atom", request.AtomSpec{Type: "ConceptNode", Name: "cat"})
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)

	rec = h.do(t, http.MethodPost, "/requests", commandRequest{Command: "version"})
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)

	// The queued requests still run, and their late answers do not block.
	require.NoError(t, h.srv.RunCycles(1))
	assert.Equal(t, 1, h.table.Size())
}

func TestCommand(t *testing.T) {
	h := newHarness(t, testTimeout)
	h.start(t)

	rec := h.do(t, http.MethodPost, "/requests", commandRequest{Command: "version"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(decode[commandResponse](t, rec).Answer, "cogserver "))

	rec = h.do(t, http.MethodPost, "/requests", commandRequest{Command: "data atoms: [{type: ConceptNode, name: cat}]"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "data load successful: 1 new atoms", decode[commandResponse](t, rec).Answer)

	rec = h.do(t, http.MethodPost, "/requests", commandRequest{Command: `ls ConceptNode "cat`})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(decode[commandResponse](t, rec).Answer, "Error: ls: invalid command syntax"))

	rec = h.do(t, http.MethodPost, "/requests", commandRequest{Command: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConsoleSession(t *testing.T) {
	h := newHarness(t, testTimeout)
	h.start(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ts := httptest.NewServer(h.router)
	defer ts.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/console", nil)
	require.NoError(t, err)
	defer ws.Close()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(testTimeout)))

	read := func() string {
		t.Helper()
		kind, data, err := ws.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, websocket.TextMessage, kind)
		return string(data)
	}

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("version")))
	assert.True(t, strings.HasPrefix(read(), "cogserver "))

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("\n")))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("data atoms: [{type: ConceptNode, name: cat}]")))
	assert.Equal(t, "data load successful: 1 new atoms", read())

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("exit")))
	assert.Equal(t, "Goodbye", read())

	_, _, err = ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func newTaxonomy(t *testing.T, table *atomspace.Table) {
	t.Helper()
	node := func(name string) atomspace.Handle {
		h, _, err := table.AddNode(atomspace.TypeConceptNode, name, truthvalue.NewSimple(0.2, 100))
		require.NoError(t, err)
		return h
	}
	cat, mammal, animal := node("cat"), node("mammal"), node("animal")
	for _, pair := range [][]atomspace.Handle{{cat, mammal}, {mammal, animal}} {
		_, _, err := table.AddLink(atomspace.TypeInheritanceLink, pair, truthvalue.NewSimple(0.9, 50))
		require.NoError(t, err)
	}
}

func TestAgents(t *testing.T) {
	deduction := agents.NewDeductionAgent(zap.NewNop())
	h := newHarness(t, testTimeout, deduction)
	newTaxonomy(t, h.table)
	require.NoError(t, h.srv.PlugInMindAgent(deduction, 100000))
	h.start(t)

	rec := h.do(t, http.MethodGet, "/agents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[agentsResponse](t, rec)
	assert.Equal(t, []server.AgentInfo{{Name: "deduction", Frequency: 100000}}, list.Agents)
	assert.Equal(t, "running", list.Stats.State)
	assert.EqualValues(t, 5, list.Stats.Atoms)

	rec = h.do(t, http.MethodPost, "/agents/deduction/run", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var run struct {
		Agent  string                 `json:"agent"`
		Cycle  int64                  `json:"cycle"`
		Result agents.DeductionResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "deduction", run.Agent)
	assert.Positive(t, run.Cycle)
	assert.Equal(t, agents.DeductionResult{Chains: 1, Derived: 1}, run.Result)

	rec = h.do(t, http.MethodPost, "/agents/forgetting/run", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/Harshitk-cp/cogserver/internal/request"
	"github.com/Harshitk-cp/cogserver/internal/server"
)

// CommandHandler runs one console command per HTTP call.
type CommandHandler struct {
	srv     *server.Server
	proc    *request.Processor
	timeout time.Duration
}

func NewCommandHandler(srv *server.Server, proc *request.Processor, timeout time.Duration) *CommandHandler {
	return &CommandHandler{srv: srv, proc: proc, timeout: timeout}
}

type commandRequest struct {
	Command string `json:"command"`
}

type commandResponse struct {
	Answer string `json:"answer"`
}

// Run answers with the command's first reply. Bulk operations reply once
// they have started; their outcome is logged, not returned.
func (h *CommandHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		writeError(w, http.StatusBadRequest, "command is required")
		return
	}

	answers := make(chan string, 4)
	h.srv.PushRequest(h.proc.Command(req.Command, server.CallBackFunc(func(msg string) {
		select {
		case answers <- msg:
		default:
		}
	})))

	answer, err := await(r.Context(), answers, h.timeout)
	if err != nil {
		writeAwaitError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Answer: answer})
}

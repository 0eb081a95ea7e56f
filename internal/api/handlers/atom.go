package handlers

import (
	"net/http"
	"time"

	"github.com/Harshitk-cp/cogserver/internal/atomspace"
	"github.com/Harshitk-cp/cogserver/internal/request"
	"github.com/Harshitk-cp/cogserver/internal/server"
	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
)

// AtomHandler serves the REST atom API. Every call runs as a request on the
// cognitive loop.
type AtomHandler struct {
	srv     *server.Server
	timeout time.Duration
}

func NewAtomHandler(srv *server.Server, timeout time.Duration) *AtomHandler {
	return &AtomHandler{srv: srv, timeout: timeout}
}

type createAtomResponse struct {
	Result string           `json:"result"`
	Handle atomspace.Handle `json:"handle"`
}

func (h *AtomHandler) Create(w http.ResponseWriter, r *http.Request) {
	var spec request.AtomSpec
	if err := decodeBody(w, r, &spec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, _, err := spec.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	results := make(chan request.CreateResult, 1)
	h.srv.PushRequest(&request.CreateAtom{Spec: spec, Result: results})
	res, err := await(r.Context(), results, h.timeout)
	if err != nil {
		writeAwaitError(w, err)
		return
	}

	switch {
	case res.Err == nil && res.Merged:
		writeJSON(w, http.StatusOK, createAtomResponse{Result: "merged", Handle: res.Handle})
	case res.Err == nil:
		writeJSON(w, http.StatusCreated, createAtomResponse{Result: "created", Handle: res.Handle})
	case errors.Is(res.Err, atomspace.ErrInvalidHandle), errors.Is(res.Err, atomspace.ErrInvalidType),
		errors.Is(res.Err, request.ErrBadAtom):
		writeError(w, http.StatusBadRequest, res.Err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "failed to create atom")
	}
}

func (h *AtomHandler) Get(w http.ResponseWriter, r *http.Request) {
	handle, err := atomspace.ParseHandle(chi.URLParam(r, "handle"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid handle")
		return
	}

	results := make(chan request.GetResult, 1)
	h.srv.PushRequest(&request.GetAtom{Handle: handle, Result: results})
	res, err := await(r.Context(), results, h.timeout)
	if err != nil {
		writeAwaitError(w, err)
		return
	}
	if res.Err != nil {
		if errors.Is(res.Err, atomspace.ErrInvalidHandle) {
			writeError(w, http.StatusNotFound, "atom not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to read atom")
		return
	}
	writeJSON(w, http.StatusOK, res.Atom)
}

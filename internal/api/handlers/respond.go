package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
)

// maxBodyBytes caps request bodies; atom files go through the console.
const maxBodyBytes = 1 << 20

var errLoopTimeout = errors.New("cognitive loop did not answer in time")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// await waits for the loop to answer a request. The channel must be
// buffered so a late answer never blocks the loop.
func await[T any](ctx context.Context, ch <-chan T, timeout time.Duration) (T, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case v := <-ch:
		return v, nil
	case <-timer.C:
		var zero T
		return zero, errLoopTimeout
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func writeAwaitError(w http.ResponseWriter, err error) {
	if errors.Is(err, errLoopTimeout) {
		writeError(w, http.StatusGatewayTimeout, err.Error())
		return
	}
	writeError(w, http.StatusServiceUnavailable, err.Error())
}
